package lighthouse

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned once a connection has ended
	ErrClosed = errors.New("connection closed")

	// ErrQueueClosed is returned when offering to a closed FrameQueue
	ErrQueueClosed = errors.New("frame queue closed")
)

// AuthError is returned when the server rejects the handshake
type AuthError struct {
	Code    int // response status, 0 for a malformed response
	Message string
}

func (e *AuthError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("authentication failed: %s", e.Message)
	}
	return fmt.Sprintf("authentication failed: %d %s", e.Code, e.Message)
}

// StateError is returned when an operation is invoked in the wrong connection state
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s: connection is %s", e.Op, e.State)
}

// TransportError wraps a failure of the underlying transport. It is fatal to the connection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failed during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
