package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koios/lighthouse-client/internal/config"
	"github.com/koios/lighthouse-client/internal/handlers"
	"github.com/koios/lighthouse-client/internal/producer"
	redisclient "github.com/koios/lighthouse-client/internal/redis"
	"github.com/koios/lighthouse-client/internal/snake"
	"github.com/koios/lighthouse-client/pkg/display"
	"github.com/koios/lighthouse-client/pkg/lighthouse"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// overrides holds command line flags that take precedence over the environment
type overrides struct {
	url      string
	interval time.Duration
	port     int
}

func rootCmd() *cobra.Command {
	var flags overrides

	cmd := &cobra.Command{
		Use:   "lighthouse-snake",
		Short: "Play snake on the lighthouse display",
		Long: `Connect to the lighthouse, stream a snake animation to it and steer the
snake with the arrow keys of the lighthouse web frontend.

Credentials are read from LIGHTHOUSE_USERNAME and LIGHTHOUSE_TOKEN, optionally
from a .env file or the YAML file named by LIGHTHOUSE_CONFIG_FILE.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("url") {
				cfg.Lighthouse.URL = flags.url
			}
			if cmd.Flags().Changed("interval") {
				cfg.Snake.IntervalMillis = int(flags.interval / time.Millisecond)
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = flags.port
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&flags.url, "url", lighthouse.DefaultURL, "Lighthouse websocket URL")
	cmd.Flags().DurationVar(&flags.interval, "interval", time.Second, "Time between two snake steps")
	cmd.Flags().IntVar(&flags.port, "port", 8080, "Port of the status server (0 disables it)")

	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = atomicLevel
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapConfig.Build()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) (err error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := lighthouse.NewMetrics(registry)

	creds := cfg.Credentials()
	logger.Info("Connecting to lighthouse",
		zap.String("url", cfg.Lighthouse.URL),
		zap.String("credentials", creds.String()))

	conn, err := lighthouse.Dial(ctx, cfg.Lighthouse.URL, creds,
		lighthouse.WithLogger(logger),
		lighthouse.WithMetrics(metrics),
		lighthouse.WithEventBuffer(cfg.Lighthouse.EventBuffer))
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		err = multierr.Append(err, conn.Close())
	}()

	if err := conn.RequestEventStream(ctx); err != nil {
		return fmt.Errorf("failed to request input events: %w", err)
	}

	// Redis is optional; the client keeps running without it
	var (
		publisher handlers.EventPublisher
		health    handlers.HealthChecker
		sinkOpts  []producer.Option
	)
	if cfg.Redis.Addr != "" {
		rdb, redisErr := redisclient.NewClient(ctx, cfg.Redis, creds.Username, logger.Named("redis"))
		if redisErr != nil {
			logger.Warn("Continuing without Redis", zap.Error(redisErr))
		} else {
			defer func() {
				err = multierr.Append(err, rdb.Close())
			}()
			publisher, health = rdb, rdb
			sinkOpts = append(sinkOpts, producer.WithSink(rdb))
		}
	}

	game := snake.New(display.LighthouseGeometry, rand.New(rand.NewSource(time.Now().UnixNano())))
	queue := lighthouse.NewFrameQueue()
	interval := time.Duration(cfg.Snake.IntervalMillis) * time.Millisecond
	ticker := producer.NewTicker(game, queue, interval, logger.Named("producer"), sinkOpts...)

	if cfg.Server.Port > 0 {
		status := handlers.NewStatusHandler(conn, ticker, health, registry, creds.Username, logger)
		httpServer := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      status.Router(),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		}

		go func() {
			logger.Info("Starting status server", zap.Int("port", cfg.Server.Port))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Status server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Status server shutdown failed", zap.Error(err))
			}
		}()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		runProducer(runCtx, ticker, logger)
	}()

	handler := handlers.NewEventHandler(game, publisher, conn.SessionID(), logger.Named("input"))
	mux := lighthouse.NewMultiplexer(conn, queue, handler, logger)

	runErr := mux.Run(runCtx)

	logger.Info("Shutting down...")
	cancel()
	queue.Close()
	<-producerDone

	// Interrupts end the run on purpose
	if errors.Is(runErr, context.Canceled) && ctx.Err() != nil {
		runErr = nil
	}
	return runErr
}

// runProducer runs ticker until it stops; cancellation is the normal way out
func runProducer(ctx context.Context, ticker *producer.Ticker, logger *zap.Logger) {
	if err := ticker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Frame producer failed", zap.Error(err))
	}
}
