// Package producer drives a frame source on a timer and hands the frames to a FrameQueue.
package producer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/koios/lighthouse-client/pkg/display"
	"github.com/koios/lighthouse-client/pkg/lighthouse"
	"go.uber.org/zap"
)

// FrameSource computes the next frame. Implementations must be safe to call
// while other goroutines mutate their state.
type FrameSource interface {
	Advance() display.Frame
}

// FrameSink receives a copy of every produced frame
type FrameSink interface {
	StoreFrame(ctx context.Context, frame display.Frame) error
}

// Option configures a Ticker
type Option func(*Ticker)

// WithSink stores each produced frame in sink
func WithSink(sink FrameSink) Option {
	return func(t *Ticker) {
		t.sink = sink
	}
}

// Ticker advances a FrameSource every interval and offers the frame to a queue.
// Because the queue holds one frame, a slow consumer stalls the ticker instead
// of building a backlog.
type Ticker struct {
	source   FrameSource
	queue    *lighthouse.FrameQueue
	interval time.Duration
	logger   *zap.Logger
	sink     FrameSink

	last     atomic.Pointer[display.Frame]
	produced atomic.Int64
}

// NewTicker creates a ticker; Run starts it
func NewTicker(source FrameSource, queue *lighthouse.FrameQueue, interval time.Duration, logger *zap.Logger, options ...Option) *Ticker {
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Ticker{
		source:   source,
		queue:    queue,
		interval: interval,
		logger:   logger,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Run produces frames until ctx ends or the queue is closed by someone else.
// It closes the queue on return.
func (t *Ticker) Run(ctx context.Context) error {
	defer t.queue.Close()

	t.logger.Info("Starting frame producer", zap.Duration("interval", t.interval))

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		frame := t.source.Advance()
		t.last.Store(&frame)
		t.produced.Add(1)
		t.store(ctx, frame)

		if err := t.queue.Offer(ctx, frame); err != nil {
			if errors.Is(err, lighthouse.ErrQueueClosed) {
				t.logger.Info("Frame queue closed, stopping producer")
				return nil
			}
			t.logger.Info("Frame producer stopped", zap.Error(err))
			return err
		}

		if timer == nil {
			timer = time.NewTimer(t.interval)
		} else {
			timer.Reset(t.interval)
		}
		select {
		case <-ctx.Done():
			t.logger.Info("Frame producer stopped", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (t *Ticker) store(ctx context.Context, frame display.Frame) {
	if t.sink == nil {
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := t.sink.StoreFrame(storeCtx, frame); err != nil {
		t.logger.Warn("Failed to store frame", zap.Error(err))
	}
}

// LastFrame returns the most recently produced frame
func (t *Ticker) LastFrame() (display.Frame, bool) {
	if f := t.last.Load(); f != nil {
		return *f, true
	}
	return display.Frame{}, false
}

// Produced returns the number of frames computed so far
func (t *Ticker) Produced() int64 {
	return t.produced.Load()
}
