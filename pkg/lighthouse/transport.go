package lighthouse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
)

// DefaultURL is the websocket endpoint of the lighthouse service
const DefaultURL = "wss://lighthouse.uni-kiel.de/websocket"

// Transport is a reliable, ordered, bidirectional message channel.
// ReadMessage and WriteMessage may run concurrently with each other;
// Close may be called from any goroutine. ReadMessage returns io.EOF
// after the peer closed the channel normally.
type Transport interface {
	WriteMessage(data []byte) error
	ReadMessage() ([]byte, error)
	Close() error
}

// WebsocketTransport carries messages as websocket binary frames
type WebsocketTransport struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// DialWebsocket opens a websocket transport to url
func DialWebsocket(ctx context.Context, url string) (*WebsocketTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return NewWebsocketTransport(conn), nil
}

// NewWebsocketTransport wraps an established websocket connection
func NewWebsocketTransport(conn *websocket.Conn) *WebsocketTransport {
	return &WebsocketTransport{conn: conn}
}

// WriteMessage sends data as one binary message
func (t *WebsocketTransport) WriteMessage(data []byte) error {
	return t.conn.WriteMessage(websocket.BinaryMessage, data)
}

// ReadMessage blocks until the next data message arrives
func (t *WebsocketTransport) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		if messageType == websocket.BinaryMessage || messageType == websocket.TextMessage {
			return data, nil
		}
	}
}

// Close sends a close frame and closes the underlying connection
func (t *WebsocketTransport) Close() error {
	t.closeOnce.Do(func() {
		err := t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			err = nil
		}
		t.closeErr = multierr.Append(err, t.conn.Close())
	})
	return t.closeErr
}
