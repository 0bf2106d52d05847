package handlers

import (
	"context"

	"github.com/koios/lighthouse-client/internal/snake"
	"github.com/koios/lighthouse-client/pkg/lighthouse"
	"go.uber.org/zap"
)

// Steerer changes the direction of the animation
type Steerer interface {
	Steer(dir snake.Vec2) bool
}

// EventPublisher republishes input events to other services
type EventPublisher interface {
	PublishInputEvent(ctx context.Context, sessionID string, event lighthouse.InputEvent) error
}

// EventHandler reacts to input events coming back from the lighthouse
type EventHandler struct {
	steerer   Steerer
	publisher EventPublisher
	sessionID string
	logger    *zap.Logger
}

// NewEventHandler creates a new event handler. publisher may be nil.
func NewEventHandler(steerer Steerer, publisher EventPublisher, sessionID string, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		steerer:   steerer,
		publisher: publisher,
		sessionID: sessionID,
		logger:    logger,
	}
}

// HandleInput steers on arrow key presses and republishes every event
func (h *EventHandler) HandleInput(ctx context.Context, event lighthouse.InputEvent) {
	switch e := event.(type) {
	case lighthouse.KeyEvent:
		h.logger.Debug("Key event",
			zap.Int("source", e.Source),
			zap.Int("key", e.Key),
			zap.Bool("down", e.Down))
		if dir, ok := arrowDirection(e.Key); ok && e.Down {
			if !h.steerer.Steer(dir) {
				h.logger.Debug("Ignored reversal", zap.Int("key", e.Key))
			}
		}
	case lighthouse.TapEvent:
		h.logger.Debug("Tap event",
			zap.Int("source", e.Source),
			zap.Int("x", e.X),
			zap.Int("y", e.Y))
	case lighthouse.StatusEvent:
		h.logger.Info("Lighthouse status",
			zap.Int("source", e.Source),
			zap.String("message", e.Message))
	}

	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishInputEvent(ctx, h.sessionID, event); err != nil {
		h.logger.Warn("Failed to publish input event", zap.Error(err))
	}
}

func arrowDirection(key int) (snake.Vec2, bool) {
	switch key {
	case lighthouse.KeyLeft:
		return snake.Left, true
	case lighthouse.KeyUp:
		return snake.Up, true
	case lighthouse.KeyRight:
		return snake.Right, true
	case lighthouse.KeyDown:
		return snake.Down, true
	}
	return snake.Vec2{}, false
}
