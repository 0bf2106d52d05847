package lighthouse

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/koios/lighthouse-client/pkg/display"
	"go.uber.org/zap"
)

// fakeConn records sent frames and lets the test inject events
type fakeConn struct {
	mu      sync.Mutex
	sent    []display.Frame
	sendErr error
	gate    chan struct{} // when set, each send waits for a token

	events chan InputEvent
	done   chan struct{}
	err    error
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan InputEvent, 16), done: make(chan struct{})}
}

func (c *fakeConn) SendFrame(ctx context.Context, frame display.Frame) error {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case <-c.done:
		return &TransportError{Op: "send frame", Err: ErrClosed}
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, frame)
	return nil
}

func (c *fakeConn) Events() <-chan InputEvent { return c.events }

func (c *fakeConn) Done() <-chan struct{} { return c.done }

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeConn) sentFrames() []display.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]display.Frame(nil), c.sent...)
}

func (c *fakeConn) end(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	close(c.done)
	close(c.events)
}

type recordingHandler struct {
	mu     sync.Mutex
	events []InputEvent
}

func (h *recordingHandler) HandleInput(_ context.Context, event InputEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *recordingHandler) received() []InputEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]InputEvent(nil), h.events...)
}

func runMultiplexer(ctx context.Context, m *Multiplexer) <-chan error {
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("multiplexer did not stop")
	}
	return nil
}

func TestMultiplexerForwards(t *testing.T) {
	conn := newFakeConn()
	queue := NewFrameQueue()
	handler := &recordingHandler{}
	m := NewMultiplexer(conn, queue, handler, zap.NewNop())

	done := runMultiplexer(context.Background(), m)

	events := []InputEvent{KeyEvent{Key: KeyLeft, Down: true}, TapEvent{X: 1, Y: 2}}
	for _, e := range events {
		conn.events <- e
	}
	for i := uint8(1); i <= 3; i++ {
		if err := queue.Offer(context.Background(), solid(i)); err != nil {
			t.Fatalf("offer %d failed: %v", i, err)
		}
	}
	queue.Close()

	if err := waitErr(t, done); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	sent := conn.sentFrames()
	if len(sent) != 3 {
		t.Fatalf("sent %d frames, want 3", len(sent))
	}
	for i, f := range sent {
		if !f.Equal(solid(uint8(i + 1))) {
			t.Errorf("frame %d out of order: %v", i, f.Pixels())
		}
	}

	got := handler.received()
	if len(got) != len(events) {
		t.Fatalf("handled %d events, want %d", len(got), len(events))
	}
	for i := range events {
		if got[i] != events[i] {
			t.Errorf("event %d = %#v, want %#v", i, got[i], events[i])
		}
	}
}

func TestMultiplexerBackpressure(t *testing.T) {
	conn := newFakeConn()
	conn.gate = make(chan struct{})
	queue := NewFrameQueue()
	m := NewMultiplexer(conn, queue, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runMultiplexer(ctx, m)

	// Frame 1 is taken by the multiplexer and held in the gated send
	_ = queue.Offer(ctx, solid(1))
	deadline := time.Now().Add(time.Second)
	for queue.Pending() {
		if time.Now().After(deadline) {
			t.Fatal("multiplexer never took the first frame")
		}
		time.Sleep(time.Millisecond)
	}

	// Frame 2 fills the slot, frame 3 must wait
	if err := queue.Offer(ctx, solid(2)); err != nil {
		t.Fatalf("offer 2 failed: %v", err)
	}
	third := make(chan error, 1)
	go func() { third <- queue.Offer(ctx, solid(3)) }()

	select {
	case err := <-third:
		t.Fatalf("third offer should block, returned %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	for i := 0; i < 3; i++ {
		conn.gate <- struct{}{}
	}
	if err := <-third; err != nil {
		t.Fatalf("offer 3 failed: %v", err)
	}
	queue.Close()

	if err := waitErr(t, done); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	sent := conn.sentFrames()
	if len(sent) != 3 {
		t.Fatalf("sent %d frames, want 3", len(sent))
	}
	for i, f := range sent {
		if !f.Equal(solid(uint8(i + 1))) {
			t.Errorf("frame %d out of order", i)
		}
	}
}

func TestMultiplexerFairness(t *testing.T) {
	conn := newFakeConn()
	queue := NewFrameQueue()

	gotEvent := make(chan int, 1)
	handler := InputHandlerFunc(func(_ context.Context, event InputEvent) {
		gotEvent <- len(conn.sentFrames())
	})
	m := NewMultiplexer(conn, queue, handler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A producer that always has a frame ready
	go func() {
		for i := 0; ; i++ {
			if err := queue.Offer(ctx, solid(uint8(i))); err != nil {
				return
			}
		}
	}()
	for !queue.Pending() {
		time.Sleep(time.Millisecond)
	}

	done := runMultiplexer(ctx, m)
	conn.events <- StatusEvent{Message: "ping"}

	select {
	case framesBefore := <-gotEvent:
		if framesBefore > 1000 {
			t.Errorf("event waited behind %d frames", framesBefore)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event was starved by the frame source")
	}

	cancel()
	if err := waitErr(t, done); !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}

func TestMultiplexerTermination(t *testing.T) {
	t.Run("queue closed with pending frame", func(t *testing.T) {
		conn := newFakeConn()
		queue := NewFrameQueue()
		_ = queue.Offer(context.Background(), solid(9))
		queue.Close()

		m := NewMultiplexer(conn, queue, nil, nil)
		if err := waitErr(t, runMultiplexer(context.Background(), m)); err != nil {
			t.Fatalf("Run returned %v", err)
		}
		if sent := conn.sentFrames(); len(sent) != 1 || !sent[0].Equal(solid(9)) {
			t.Errorf("pending frame should be transmitted, sent %d", len(sent))
		}
	})

	t.Run("connection closed cleanly", func(t *testing.T) {
		conn := newFakeConn()
		m := NewMultiplexer(conn, NewFrameQueue(), nil, nil)
		done := runMultiplexer(context.Background(), m)

		conn.end(nil)
		if err := waitErr(t, done); err != nil {
			t.Fatalf("Run returned %v, want nil", err)
		}
	})

	t.Run("connection closed cleanly with pending frame", func(t *testing.T) {
		// Both arms are ready; either choice must end in an orderly shutdown
		for i := 0; i < 100; i++ {
			conn := newFakeConn()
			queue := NewFrameQueue()
			_ = queue.Offer(context.Background(), solid(2))
			conn.end(nil)

			m := NewMultiplexer(conn, queue, nil, nil)
			if err := waitErr(t, runMultiplexer(context.Background(), m)); err != nil {
				t.Fatalf("iteration %d: Run returned %v, want nil", i, err)
			}
		}
	})

	t.Run("connection failed with pending frame", func(t *testing.T) {
		conn := newFakeConn()
		queue := NewFrameQueue()
		_ = queue.Offer(context.Background(), solid(2))
		cause := &TransportError{Op: "receive", Err: errors.New("reset")}
		conn.end(cause)

		m := NewMultiplexer(conn, queue, nil, nil)
		err := waitErr(t, runMultiplexer(context.Background(), m))
		if !errors.Is(err, cause) {
			t.Fatalf("Run returned %v, want the receive error", err)
		}
	})

	t.Run("connection failed", func(t *testing.T) {
		conn := newFakeConn()
		m := NewMultiplexer(conn, NewFrameQueue(), nil, nil)
		done := runMultiplexer(context.Background(), m)

		cause := &TransportError{Op: "receive", Err: errors.New("reset")}
		conn.end(cause)

		err := waitErr(t, done)
		var transportErr *TransportError
		if !errors.As(err, &transportErr) {
			t.Fatalf("Run returned %v, want TransportError", err)
		}
	})

	t.Run("send failure is fatal", func(t *testing.T) {
		conn := newFakeConn()
		conn.sendErr = &TransportError{Op: "send frame", Err: errors.New("broken pipe")}
		queue := NewFrameQueue()
		m := NewMultiplexer(conn, queue, nil, nil)
		done := runMultiplexer(context.Background(), m)

		_ = queue.Offer(context.Background(), solid(1))

		err := waitErr(t, done)
		if !errors.Is(err, conn.sendErr) {
			t.Fatalf("Run returned %v, want the send error", err)
		}
	})
}

func TestMultiplexerWithConnection(t *testing.T) {
	conn, pipe, streamID := subscribed(t, WithGeometry(tiny))
	queue := NewFrameQueue()
	handler := &recordingHandler{}
	m := NewMultiplexer(conn, queue, handler, zap.NewNop())

	done := runMultiplexer(context.Background(), m)

	if err := queue.Offer(context.Background(), solid(5)); err != nil {
		t.Fatalf("offer failed: %v", err)
	}
	msg := pipe.expect(t, VerbPut)
	if len(msg.Payload) != 3 || msg.Payload[0] != 5 {
		t.Errorf("payload = %v", msg.Payload)
	}

	pipe.sendEvent(t, streamID, KeyEvent{Key: KeyRight, Down: true})
	deadline := time.Now().Add(2 * time.Second)
	for len(handler.received()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event was not forwarded")
		}
		time.Sleep(time.Millisecond)
	}

	conn.Close()
	if err := waitErr(t, done); err != nil {
		t.Fatalf("Run returned %v, want nil after close", err)
	}
}

func TestMultiplexerServerHangupWithPendingFrame(t *testing.T) {
	for i := 0; i < 50; i++ {
		conn, pipe := authenticated(t, WithGeometry(tiny))
		pipe.hangup(io.EOF)

		select {
		case <-conn.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("connection did not observe the hangup")
		}
		if err := conn.Err(); err != nil {
			t.Fatalf("Err() = %v, want nil after normal close", err)
		}

		queue := NewFrameQueue()
		if err := queue.Offer(context.Background(), solid(4)); err != nil {
			t.Fatalf("offer failed: %v", err)
		}

		m := NewMultiplexer(conn, queue, nil, zap.NewNop())
		if err := waitErr(t, runMultiplexer(context.Background(), m)); err != nil {
			t.Fatalf("iteration %d: Run returned %v, want nil", i, err)
		}
	}
}
