package lighthouse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/koios/lighthouse-client/pkg/display"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// State is the authentication state of a Connection
type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultEventBuffer is the number of input events held for a slow consumer
const DefaultEventBuffer = 32

const tracerName = "github.com/koios/lighthouse-client/pkg/lighthouse"

// Option configures a Connection
type Option func(*connectionOptions)

type connectionOptions struct {
	logger      *zap.Logger
	metrics     *Metrics
	eventBuffer int
	geometry    display.Geometry
}

func defaultConnectionOptions() connectionOptions {
	return connectionOptions{
		logger:      zap.NewNop(),
		eventBuffer: DefaultEventBuffer,
		geometry:    display.LighthouseGeometry,
	}
}

// WithLogger sets the logger used by the connection
func WithLogger(logger *zap.Logger) Option {
	return func(o *connectionOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records connection activity in m
func WithMetrics(m *Metrics) Option {
	return func(o *connectionOptions) {
		o.metrics = m
	}
}

// WithEventBuffer sets how many unconsumed input events are kept before new ones are dropped
func WithEventBuffer(n int) Option {
	return func(o *connectionOptions) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}

// WithGeometry sets the display grid frames must match
func WithGeometry(g display.Geometry) Option {
	return func(o *connectionOptions) {
		o.geometry = g
	}
}

// Connection is an authenticated session with the lighthouse server.
//
// SendFrame and ReceiveInputEvent may run concurrently with each other,
// but neither may run concurrently with itself.
type Connection struct {
	transport Transport
	creds     Credentials
	opts      connectionOptions
	logger    *zap.Logger
	tracer    trace.Tracer
	sessionID string

	mu          sync.RWMutex
	state       State
	subscribed  bool
	streamID    int64
	err         error
	pumpStarted bool

	writeMu sync.Mutex
	lastID  atomic.Int64

	events chan InputEvent
	done   chan struct{}
}

// New creates an unauthenticated connection over an open transport.
// Call Authenticate before using it.
func New(transport Transport, creds Credentials, options ...Option) *Connection {
	opts := defaultConnectionOptions()
	for _, opt := range options {
		opt(&opts)
	}

	sessionID := uuid.NewString()

	return &Connection{
		transport: transport,
		creds:     creds,
		opts:      opts,
		logger:    opts.logger.With(zap.String("session_id", sessionID)),
		tracer:    otel.Tracer(tracerName),
		sessionID: sessionID,
		state:     StateUnauthenticated,
		events:    make(chan InputEvent, opts.eventBuffer),
		done:      make(chan struct{}),
	}
}

// Dial opens a websocket to url and authenticates with creds
func Dial(ctx context.Context, url string, creds Credentials, options ...Option) (*Connection, error) {
	transport, err := DialWebsocket(ctx, url)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}

	conn := New(transport, creds, options...)
	if err := conn.Authenticate(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// SessionID identifies this connection in logs
func (c *Connection) SessionID() string {
	return c.sessionID
}

// State returns the current authentication state
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribed reports whether the input event stream was requested
func (c *Connection) Subscribed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscribed
}

// Err returns the transport error that ended the connection, or nil
func (c *Connection) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Events returns the inbound input events. The channel is closed when the connection ends.
func (c *Connection) Events() <-chan InputEvent {
	return c.events
}

// Done is closed when the connection ends
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Authenticate performs the handshake. On rejection it returns an *AuthError,
// on transport failure a *TransportError; either way the connection is closed.
// Cancelling ctx while the handshake is pending closes the transport.
func (c *Connection) Authenticate(ctx context.Context) (err error) {
	c.mu.Lock()
	if c.state != StateUnauthenticated {
		state := c.state
		c.mu.Unlock()
		return &StateError{Op: "authenticate", State: state}
	}
	c.state = StateAuthenticating
	c.mu.Unlock()

	ctx, span := c.tracer.Start(ctx, "lighthouse.Authenticate",
		trace.WithAttributes(attribute.String("lighthouse.user", c.creds.Username)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	stop := context.AfterFunc(ctx, func() {
		c.transport.Close()
	})
	defer stop()

	c.logger.Debug("Authenticating", zap.String("username", c.creds.Username))

	id := c.nextRequestID()
	if err := c.write(c.newMessage(id, VerbAuth, nil)); err != nil {
		return c.failHandshake(ctx, err)
	}

	response, err := c.awaitResponse(id)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			c.shutdown(nil)
			return err
		}
		return c.failHandshake(ctx, err)
	}

	if response.Code != StatusOK {
		c.shutdown(nil)
		return &AuthError{Code: response.Code, Message: response.Response}
	}

	if !stop() {
		return c.failHandshake(ctx, ctx.Err())
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return &TransportError{Op: "authenticate", Err: ErrClosed}
	}
	c.state = StateAuthenticated
	c.pumpStarted = true
	c.mu.Unlock()

	go c.readPump()

	c.logger.Info("Authenticated with lighthouse server", zap.String("username", c.creds.Username))
	return nil
}

// awaitResponse reads messages until the response to request id arrives
func (c *Connection) awaitResponse(id int64) (*ServerMessage, error) {
	for {
		data, err := c.transport.ReadMessage()
		if err != nil {
			return nil, err
		}

		var msg ServerMessage
		if err := msgpack.Unmarshal(data, &msg); err != nil {
			return nil, &AuthError{Message: fmt.Sprintf("malformed handshake response: %v", err)}
		}
		if msg.RequestID == id {
			return &msg, nil
		}

		c.logger.Debug("Ignoring message during handshake", zap.Int64("request_id", msg.RequestID))
	}
}

func (c *Connection) failHandshake(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	transportErr := &TransportError{Op: "authenticate", Err: err}
	c.shutdown(transportErr)
	return transportErr
}

// RequestEventStream asks the server to stream input events. Calling it
// again once subscribed is a no-op.
func (c *Connection) RequestEventStream(ctx context.Context) (err error) {
	c.mu.Lock()
	if c.state != StateAuthenticated {
		state := c.state
		c.mu.Unlock()
		return &StateError{Op: "request event stream", State: state}
	}
	if c.subscribed {
		c.mu.Unlock()
		return nil
	}
	id := c.nextRequestID()
	c.streamID = id
	c.mu.Unlock()

	_, span := c.tracer.Start(ctx, "lighthouse.RequestEventStream")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := c.write(c.newMessage(id, VerbStream, nil)); err != nil {
		transportErr := &TransportError{Op: "request event stream", Err: err}
		c.shutdown(transportErr)
		return transportErr
	}

	c.mu.Lock()
	c.subscribed = true
	c.mu.Unlock()

	c.logger.Info("Requested input event stream", zap.Int64("request_id", id))
	return nil
}

// SendFrame uploads a frame to the display
func (c *Connection) SendFrame(ctx context.Context, frame display.Frame) (err error) {
	switch state := c.State(); state {
	case StateAuthenticated:
	case StateClosed:
		return &TransportError{Op: "send frame", Err: ErrClosed}
	default:
		return &StateError{Op: "send frame", State: state}
	}

	if frame.Geometry() != c.opts.geometry {
		return &display.ShapeError{Got: frame.Geometry().Size(), Want: c.opts.geometry.Size()}
	}

	_, span := c.tracer.Start(ctx, "lighthouse.SendFrame")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	if err := c.write(c.newMessage(c.nextRequestID(), VerbPut, frame)); err != nil {
		transportErr := &TransportError{Op: "send frame", Err: err}
		c.shutdown(transportErr)
		return transportErr
	}
	c.opts.metrics.frameSent(time.Since(start))

	return nil
}

// ReceiveInputEvent blocks until the next input event arrives.
// It returns ErrClosed once the connection has ended.
func (c *Connection) ReceiveInputEvent(ctx context.Context) (InputEvent, error) {
	select {
	case event, ok := <-c.events:
		if !ok {
			return nil, ErrClosed
		}
		return event, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close ends the connection. It is safe to call more than once.
func (c *Connection) Close() error {
	return c.shutdown(nil)
}

// shutdown moves the connection to StateClosed and records cause as its terminal error
func (c *Connection) shutdown(cause error) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	c.err = cause
	pumpStarted := c.pumpStarted
	c.mu.Unlock()

	close(c.done)
	err := c.transport.Close()

	// Without a read pump nobody else will close the event channel
	if !pumpStarted {
		close(c.events)
	}

	if cause != nil {
		c.logger.Warn("Connection closed", zap.Error(cause))
	} else {
		c.logger.Info("Connection closed")
	}

	return err
}

// readPump decodes inbound messages until the transport ends
func (c *Connection) readPump() {
	defer close(c.events)

	for {
		data, err := c.transport.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				// closed locally
			default:
				if errors.Is(err, io.EOF) {
					c.shutdown(nil)
				} else {
					c.shutdown(&TransportError{Op: "receive", Err: err})
				}
			}
			return
		}

		var msg ServerMessage
		if err := msgpack.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Failed to unmarshal server message", zap.Error(err), zap.Int("size", len(data)))
			continue
		}

		c.dispatch(&msg)
	}
}

func (c *Connection) dispatch(msg *ServerMessage) {
	if !msg.Succeeded() {
		c.opts.metrics.responseFailed(msg.Code)
		c.logger.Warn("Request failed",
			zap.Int64("request_id", msg.RequestID),
			zap.Int("code", msg.Code),
			zap.String("response", msg.Response),
			zap.Strings("warnings", msg.Warnings))
		return
	}

	c.mu.RLock()
	streamID := c.streamID
	c.mu.RUnlock()

	if streamID == 0 || msg.RequestID != streamID || !msg.HasPayload() {
		return
	}

	event, err := DecodeInputEvent(msg.Payload)
	if err != nil {
		c.logger.Warn("Skipping input event", zap.Error(err))
		return
	}

	select {
	case c.events <- event:
		c.opts.metrics.eventReceived(event.Kind())
	default:
		c.opts.metrics.eventDropped()
		c.logger.Warn("Input event buffer full, dropping event",
			zap.String("kind", string(event.Kind())),
			zap.Int("buffer", cap(c.events)))
	}
}

func (c *Connection) nextRequestID() int64 {
	return c.lastID.Add(1)
}

func (c *Connection) newMessage(id int64, verb string, payload any) *ClientMessage {
	return &ClientMessage{
		RequestID:      id,
		Authentication: c.creds.authentication(),
		Verb:           verb,
		Path:           c.creds.modelPath(),
		Meta:           map[string]any{},
		Payload:        payload,
	}
}

func (c *Connection) write(msg *ClientMessage) error {
	data, err := msgpack.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", msg.Verb, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.transport.WriteMessage(data)
}
