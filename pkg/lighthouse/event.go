package lighthouse

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// EventKind names the variant of an InputEvent
type EventKind string

const (
	EventKindTap    EventKind = "tap"
	EventKindKey    EventKind = "key"
	EventKindStatus EventKind = "status"
)

// InputEvent is an event sent back by the device. The set of variants is
// closed: TapEvent, KeyEvent and StatusEvent.
type InputEvent interface {
	Kind() EventKind
	// SourceID identifies the client that produced the event
	SourceID() int

	inputEvent()
}

// TapEvent is a touch or click on a display coordinate
type TapEvent struct {
	Source int
	X, Y   int
}

// KeyEvent is a key press or release
type KeyEvent struct {
	Source int
	Key    int
	Down   bool
}

// StatusEvent is a device status notification
type StatusEvent struct {
	Source  int
	Message string
}

func (TapEvent) Kind() EventKind    { return EventKindTap }
func (KeyEvent) Kind() EventKind    { return EventKindKey }
func (StatusEvent) Kind() EventKind { return EventKindStatus }

func (e TapEvent) SourceID() int    { return e.Source }
func (e KeyEvent) SourceID() int    { return e.Source }
func (e StatusEvent) SourceID() int { return e.Source }

func (TapEvent) inputEvent()    {}
func (KeyEvent) inputEvent()    {}
func (StatusEvent) inputEvent() {}

// Key codes of the arrow keys
const (
	KeyLeft  = 37
	KeyUp    = 38
	KeyRight = 39
	KeyDown  = 40
)

// wireInputEvent is the msgpack shape of every event variant
type wireInputEvent struct {
	Type    string `msgpack:"type"`
	Source  int    `msgpack:"src"`
	X       int    `msgpack:"x,omitempty"`
	Y       int    `msgpack:"y,omitempty"`
	Key     int    `msgpack:"key,omitempty"`
	Down    bool   `msgpack:"dwn,omitempty"`
	Message string `msgpack:"msg,omitempty"`
}

// DecodeInputEvent parses a msgpack event payload
func DecodeInputEvent(data []byte) (InputEvent, error) {
	var w wireInputEvent
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input event: %w", err)
	}

	switch EventKind(w.Type) {
	case EventKindTap:
		return TapEvent{Source: w.Source, X: w.X, Y: w.Y}, nil
	case EventKindKey:
		return KeyEvent{Source: w.Source, Key: w.Key, Down: w.Down}, nil
	case EventKindStatus:
		return StatusEvent{Source: w.Source, Message: w.Message}, nil
	default:
		return nil, fmt.Errorf("unknown input event type: %q", w.Type)
	}
}

// EncodeInputEvent is the inverse of DecodeInputEvent
func EncodeInputEvent(event InputEvent) ([]byte, error) {
	w := wireInputEvent{Type: string(event.Kind()), Source: event.SourceID()}
	switch e := event.(type) {
	case TapEvent:
		w.X, w.Y = e.X, e.Y
	case KeyEvent:
		w.Key, w.Down = e.Key, e.Down
	case StatusEvent:
		w.Message = e.Message
	}
	return msgpack.Marshal(&w)
}
