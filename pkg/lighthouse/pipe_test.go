package lighthouse

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

var errPipeClosed = errors.New("pipe closed")

// pipeTransport is an in-memory Transport whose far end is driven by a test
type pipeTransport struct {
	toClient   chan []byte
	fromClient chan []byte
	closed     chan struct{}
	peerGone   chan error
	closeOnce  sync.Once
	hangOnce   sync.Once
}

func newPipeTransport() *pipeTransport {
	return &pipeTransport{
		toClient:   make(chan []byte, 16),
		fromClient: make(chan []byte, 16),
		closed:     make(chan struct{}),
		peerGone:   make(chan error, 1),
	}
}

func (p *pipeTransport) WriteMessage(data []byte) error {
	select {
	case <-p.closed:
		return errPipeClosed
	default:
	}
	select {
	case p.fromClient <- data:
		return nil
	case <-p.closed:
		return errPipeClosed
	}
}

func (p *pipeTransport) ReadMessage() ([]byte, error) {
	select {
	case data := <-p.toClient:
		return data, nil
	case err := <-p.peerGone:
		p.peerGone <- err
		return nil, err
	case <-p.closed:
		return nil, errPipeClosed
	}
}

func (p *pipeTransport) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeTransport) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// hangup ends the peer side; io.EOF signals a normal close
func (p *pipeTransport) hangup(err error) {
	p.hangOnce.Do(func() { p.peerGone <- err })
}

// capturedMessage mirrors ClientMessage with a raw payload
type capturedMessage struct {
	RequestID      int64          `msgpack:"REID"`
	Authentication Authentication `msgpack:"AUTH"`
	Verb           string         `msgpack:"VERB"`
	Path           []string       `msgpack:"PATH"`
	Payload        []byte         `msgpack:"PAYL"`
}

func (p *pipeTransport) expect(t *testing.T, verb string) capturedMessage {
	t.Helper()
	select {
	case data := <-p.fromClient:
		var msg capturedMessage
		if err := msgpack.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to unmarshal client message: %v", err)
		}
		if msg.Verb != verb {
			t.Fatalf("got verb %q, want %q", msg.Verb, verb)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s message", verb)
	}
	return capturedMessage{}
}

func (p *pipeTransport) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case data := <-p.fromClient:
		t.Fatalf("unexpected client message of %d bytes", len(data))
	case <-time.After(50 * time.Millisecond):
	}
}

func (p *pipeTransport) respond(t *testing.T, id int64, code int, response string, payload any) {
	t.Helper()
	msg := map[string]any{
		"RNUM":     code,
		"REID":     id,
		"RESPONSE": response,
		"WARNINGS": []string{},
		"PAYL":     payload,
	}
	data, err := msgpack.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal server message: %v", err)
	}
	p.toClient <- data
}

func (p *pipeTransport) sendEvent(t *testing.T, streamID int64, event InputEvent) {
	t.Helper()
	data, err := EncodeInputEvent(event)
	if err != nil {
		t.Fatalf("failed to encode event: %v", err)
	}
	p.respond(t, streamID, StatusOK, "OK", msgpack.RawMessage(data))
}
