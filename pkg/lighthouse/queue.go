package lighthouse

import (
	"context"
	"sync"

	"github.com/koios/lighthouse-client/pkg/display"
)

// FrameSource is the consumer view of a stream of frames
type FrameSource interface {
	// Frames delivers frames in the order they were produced
	Frames() <-chan display.Frame
	// Done is closed once no further frames will be produced
	Done() <-chan struct{}
}

// FrameQueue hands frames from one producer to one consumer with capacity 1.
// Offer blocks while a frame is pending, so at most one untransmitted frame exists.
type FrameQueue struct {
	frames    chan display.Frame
	done      chan struct{}
	closeOnce sync.Once
}

var _ FrameSource = (*FrameQueue)(nil)

// NewFrameQueue creates an open queue
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{
		frames: make(chan display.Frame, 1),
		done:   make(chan struct{}),
	}
}

// Offer enqueues a frame, waiting until the previous one has been taken.
// It returns ErrQueueClosed after Close and ctx.Err() when ctx ends first.
func (q *FrameQueue) Offer(ctx context.Context, frame display.Frame) error {
	// Check first so a closed queue never accepts a frame into a free slot
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.frames <- frame:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the end of the stream. A frame already queued stays readable.
func (q *FrameQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}

// Frames returns the receive side of the queue
func (q *FrameQueue) Frames() <-chan display.Frame {
	return q.frames
}

// Done is closed by Close
func (q *FrameQueue) Done() <-chan struct{} {
	return q.done
}

// Pending reports whether a frame is waiting to be taken
func (q *FrameQueue) Pending() bool {
	return len(q.frames) > 0
}
