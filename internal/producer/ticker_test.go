package producer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/koios/lighthouse-client/pkg/display"
	"github.com/koios/lighthouse-client/pkg/lighthouse"
	"go.uber.org/zap"
)

var grid = display.Geometry{Rows: 1, Cols: 1}

type countingSource struct {
	mu sync.Mutex
	n  uint8
}

func (s *countingSource) Advance() display.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return display.Fill(grid, display.RGB(s.n, 0, 0))
}

type memorySink struct {
	mu     sync.Mutex
	frames []display.Frame
	err    error
}

func (s *memorySink) StoreFrame(_ context.Context, frame display.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return s.err
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func TestTickerProducesInOrder(t *testing.T) {
	queue := lighthouse.NewFrameQueue()
	sink := &memorySink{}
	ticker := NewTicker(&countingSource{}, queue, time.Millisecond, zap.NewNop(), WithSink(sink))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ticker.Run(ctx) }()

	for want := uint8(1); want <= 5; want++ {
		select {
		case frame := <-queue.Frames():
			if got := frame.At(0, 0).Red; got != want {
				t.Fatalf("frame %d has value %d", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", want)
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}

	select {
	case <-queue.Done():
	default:
		t.Error("Run should close the queue")
	}

	if sink.count() < 5 {
		t.Errorf("sink stored %d frames, want at least 5", sink.count())
	}
	last, ok := ticker.LastFrame()
	if !ok || last.At(0, 0).Red < 5 {
		t.Errorf("LastFrame = %v, %v", last.Pixels(), ok)
	}
}

func TestTickerBlocksOnFullQueue(t *testing.T) {
	queue := lighthouse.NewFrameQueue()
	ticker := NewTicker(&countingSource{}, queue, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ticker.Run(ctx)

	// Nobody consumes: one frame fills the slot, the second offer blocks
	time.Sleep(50 * time.Millisecond)
	if got := ticker.Produced(); got != 2 {
		t.Errorf("produced %d frames while blocked, want 2", got)
	}
}

func TestTickerStopsWhenQueueClosed(t *testing.T) {
	queue := lighthouse.NewFrameQueue()
	ticker := NewTicker(&countingSource{}, queue, time.Millisecond, nil)
	queue.Close()

	if err := ticker.Run(context.Background()); err != nil {
		t.Errorf("Run returned %v, want nil", err)
	}
}

func TestTickerSinkErrorsAreNotFatal(t *testing.T) {
	queue := lighthouse.NewFrameQueue()
	sink := &memorySink{err: errors.New("redis down")}
	ticker := NewTicker(&countingSource{}, queue, time.Millisecond, nil, WithSink(sink))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ticker.Run(ctx)

	for i := 0; i < 3; i++ {
		select {
		case <-queue.Frames():
		case <-time.After(2 * time.Second):
			t.Fatal("producer stalled after sink error")
		}
	}
}

func TestTickerFirstFrameIsImmediate(t *testing.T) {
	queue := lighthouse.NewFrameQueue()
	ticker := NewTicker(&countingSource{}, queue, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ticker.Run(ctx) }()

	select {
	case frame := <-queue.Frames():
		if got := frame.At(0, 0).Red; got != 1 {
			t.Errorf("first frame has value %d, want 1", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first frame should not wait for the interval")
	}

	// Cancelling while waiting for the next tick stops the producer promptly
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not stop on cancel")
	}
}
