package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/koios/lighthouse-client/internal/config"
	"github.com/koios/lighthouse-client/pkg/display"
	"github.com/koios/lighthouse-client/pkg/lighthouse"
	"github.com/koios/lighthouse-client/pkg/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNoFrame is returned by LoadFrame when no frame is stored for the user
var ErrNoFrame = errors.New("no frame stored")

// Client wraps the Redis client used to share input events and frames
type Client struct {
	client   *redis.Client
	config   config.RedisConfig
	username string
	logger   *zap.Logger
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(ctx context.Context, cfg config.RedisConfig, username string, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		PoolTimeout:  30 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB))

	return &Client{
		client:   rdb,
		config:   cfg,
		username: username,
		logger:   logger,
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// InputChannel is the pub/sub channel input events are published on
func InputChannel(username string) string {
	return fmt.Sprintf("lighthouse:%s:input", username)
}

// FrameKey is the key holding the latest frame
func FrameKey(username string) string {
	return fmt.Sprintf("lighthouse:%s:frame", username)
}

// PublishInputEvent publishes event to the user's input channel
func (c *Client) PublishInputEvent(ctx context.Context, sessionID string, event lighthouse.InputEvent) error {
	body, err := json.Marshal(models.NewInputMessage(c.username, sessionID, event, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to marshal input event: %w", err)
	}

	channel := InputChannel(c.username)
	if err := c.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel %s: %w", channel, err)
	}

	c.logger.Debug("Published input event",
		zap.String("channel", channel),
		zap.String("kind", string(event.Kind())),
		zap.Int("source", event.SourceID()))

	return nil
}

// StoreFrame stores frame as the user's latest frame. It expires after the
// configured TTL so stale frames disappear when the client stops.
func (c *Client) StoreFrame(ctx context.Context, frame display.Frame) error {
	g := frame.Geometry()
	record := models.FrameRecord{
		Username: c.username,
		Rows:     g.Rows,
		Cols:     g.Cols,
		Hash:     frame.Hash(),
		Pixels:   display.Encode(frame),
		StoredAt: time.Now().UTC(),
	}

	body, err := json.Marshal(&record)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	key := FrameKey(c.username)
	ttl := time.Duration(c.config.FrameTTL) * time.Second
	if err := c.client.Set(ctx, key, body, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store frame at %s: %w", key, err)
	}

	return nil
}

// LoadFrame reads back the latest frame stored for the user
func (c *Client) LoadFrame(ctx context.Context) (display.Frame, error) {
	body, err := c.client.Get(ctx, FrameKey(c.username)).Bytes()
	if errors.Is(err, redis.Nil) {
		return display.Frame{}, ErrNoFrame
	}
	if err != nil {
		return display.Frame{}, fmt.Errorf("failed to load frame: %w", err)
	}

	var record models.FrameRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return display.Frame{}, fmt.Errorf("failed to unmarshal frame: %w", err)
	}

	return display.Decode(display.Geometry{Rows: record.Rows, Cols: record.Cols}, record.Pixels)
}

// IsHealthy checks if Redis connection is healthy
func (c *Client) IsHealthy(ctx context.Context) bool {
	return c.client.Ping(ctx).Err() == nil
}
