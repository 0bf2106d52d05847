package lighthouse

import (
	"context"
	"errors"

	"github.com/koios/lighthouse-client/pkg/display"
	"go.uber.org/zap"
)

// InputHandler receives input events forwarded by a Multiplexer
type InputHandler interface {
	HandleInput(ctx context.Context, event InputEvent)
}

// InputHandlerFunc adapts a function to InputHandler
type InputHandlerFunc func(ctx context.Context, event InputEvent)

// HandleInput calls f(ctx, event)
func (f InputHandlerFunc) HandleInput(ctx context.Context, event InputEvent) {
	f(ctx, event)
}

// FrameConn is the part of a Connection a Multiplexer drives
type FrameConn interface {
	SendFrame(ctx context.Context, frame display.Frame) error
	Events() <-chan InputEvent
	Err() error
	Done() <-chan struct{}
}

var _ FrameConn = (*Connection)(nil)

// Multiplexer forwards frames from a FrameSource to a connection and input
// events from the connection to an InputHandler, in a single loop
type Multiplexer struct {
	conn    FrameConn
	source  FrameSource
	handler InputHandler
	logger  *zap.Logger
}

// NewMultiplexer creates a multiplexer. A nil handler discards events.
func NewMultiplexer(conn FrameConn, source FrameSource, handler InputHandler, logger *zap.Logger) *Multiplexer {
	if handler == nil {
		handler = InputHandlerFunc(func(context.Context, InputEvent) {})
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Multiplexer{
		conn:    conn,
		source:  source,
		handler: handler,
		logger:  logger,
	}
}

// Run merges both sources until one of them ends.
//
// Each iteration waits on whichever source is ready first; when both are
// ready the choice is uniformly random, so neither can starve the other.
// Run returns nil when the frame source is done or the connection closed
// cleanly, the transport error when a send fails or the connection broke,
// and ctx.Err() when ctx is cancelled.
func (m *Multiplexer) Run(ctx context.Context) error {
	m.logger.Info("Multiplexer started")

	frames := m.source.Frames()
	events := m.conn.Events()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Multiplexer context cancelled, stopping")
			return ctx.Err()

		case frame := <-frames:
			if err := m.send(ctx, frame); err != nil {
				return err
			}

		case event, ok := <-events:
			if !ok {
				return m.connectionEnded()
			}
			m.handler.HandleInput(ctx, event)

		case <-m.source.Done():
			// Transmit the frame that was queued before the source closed
			select {
			case frame := <-frames:
				if err := m.send(ctx, frame); err != nil {
					return err
				}
			default:
			}
			m.logger.Info("Frame source closed, stopping")
			return nil
		}
	}
}

func (m *Multiplexer) send(ctx context.Context, frame display.Frame) error {
	err := m.conn.SendFrame(ctx, frame)
	if err == nil {
		return nil
	}

	// A send that races the end of the connection reports how the connection ended
	select {
	case <-m.conn.Done():
		return m.connectionEnded()
	default:
	}

	m.logger.Error("Failed to send frame", zap.Error(err))
	return err
}

func (m *Multiplexer) connectionEnded() error {
	err := m.conn.Err()
	if err != nil && !errors.Is(err, ErrClosed) {
		m.logger.Error("Connection failed, stopping", zap.Error(err))
		return err
	}
	m.logger.Info("Connection closed, stopping")
	return nil
}
