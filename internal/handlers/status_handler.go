package handlers

import (
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/koios/lighthouse-client/pkg/display"
	"github.com/koios/lighthouse-client/pkg/lighthouse"
	"github.com/koios/lighthouse-client/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ConnectionStatus is the part of a lighthouse connection the status API reports
type ConnectionStatus interface {
	State() lighthouse.State
	Subscribed() bool
	SessionID() string
}

// FrameRecorder exposes the most recent frame produced
type FrameRecorder interface {
	LastFrame() (display.Frame, bool)
	Produced() int64
}

// HealthChecker reports whether an optional backend is reachable
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}

// StatusHandler serves the local status API
type StatusHandler struct {
	conn     ConnectionStatus
	frames   FrameRecorder
	redis    HealthChecker
	gatherer prometheus.Gatherer
	username string
	logger   *zap.Logger
}

// NewStatusHandler creates a new status handler. redis may be nil.
func NewStatusHandler(conn ConnectionStatus, frames FrameRecorder, redis HealthChecker, gatherer prometheus.Gatherer, username string, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		conn:     conn,
		frames:   frames,
		redis:    redis,
		gatherer: gatherer,
		username: username,
		logger:   logger,
	}
}

// Router returns the routes of the status API
func (h *StatusHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", h.handleHealth)
	r.Get("/status", h.handleStatus)
	r.Get("/frame.png", h.handleFrame)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	return r
}

// handleHealth handles GET /health - healthy while the connection is authenticated
func (h *StatusHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := h.conn.State()
	status := http.StatusOK
	health := "healthy"
	if state != lighthouse.StateAuthenticated {
		status = http.StatusServiceUnavailable
		health = "unhealthy"
	}

	writeJSON(w, status, map[string]interface{}{
		"status":  health,
		"service": "lighthouse-client",
		"state":   state.String(),
	}, h.logger)
}

// handleStatus handles GET /status - reports connection and producer details
func (h *StatusHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := models.Status{
		State:          h.conn.State().String(),
		Subscribed:     h.conn.Subscribed(),
		SessionID:      h.conn.SessionID(),
		Username:       h.username,
		FramesProduced: h.frames.Produced(),
		Redis:          "disabled",
		Timestamp:      time.Now().UTC(),
	}

	if h.redis != nil {
		status.Redis = "unhealthy"
		if h.redis.IsHealthy(r.Context()) {
			status.Redis = "healthy"
		}
	}

	writeJSON(w, http.StatusOK, &status, h.logger)
}

// handleFrame handles GET /frame.png - renders the most recent frame
func (h *StatusHandler) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame, ok := h.frames.LastFrame()
	if !ok {
		http.Error(w, "No frame produced yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, frame.Image()); err != nil {
		h.logger.Error("Failed to encode frame", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
