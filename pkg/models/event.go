package models

import (
	"time"

	"github.com/koios/lighthouse-client/pkg/lighthouse"
)

// InputMessage is the JSON form of an input event republished to other services
type InputMessage struct {
	Type       string    `json:"type"`
	Username   string    `json:"username"`
	SessionID  string    `json:"session_id"`
	Source     int       `json:"source"`
	X          int       `json:"x,omitempty"`
	Y          int       `json:"y,omitempty"`
	Key        int       `json:"key,omitempty"`
	Down       bool      `json:"down,omitempty"`
	Message    string    `json:"message,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// NewInputMessage flattens event into an InputMessage
func NewInputMessage(username, sessionID string, event lighthouse.InputEvent, receivedAt time.Time) *InputMessage {
	msg := &InputMessage{
		Type:       string(event.Kind()),
		Username:   username,
		SessionID:  sessionID,
		Source:     event.SourceID(),
		ReceivedAt: receivedAt,
	}

	switch e := event.(type) {
	case lighthouse.TapEvent:
		msg.X, msg.Y = e.X, e.Y
	case lighthouse.KeyEvent:
		msg.Key, msg.Down = e.Key, e.Down
	case lighthouse.StatusEvent:
		msg.Message = e.Message
	}

	return msg
}

// FrameRecord is the JSON form of the most recent frame stored for a user
type FrameRecord struct {
	Username string    `json:"username"`
	Rows     int       `json:"rows"`
	Cols     int       `json:"cols"`
	Hash     uint64    `json:"hash"`
	Pixels   []byte    `json:"pixels"` // RGB triples, base64 in JSON
	StoredAt time.Time `json:"stored_at"`
}

// Status describes the state of a running client
type Status struct {
	State          string    `json:"state"`
	Subscribed     bool      `json:"subscribed"`
	SessionID      string    `json:"session_id"`
	Username       string    `json:"username"`
	FramesProduced int64     `json:"frames_produced"`
	Redis          string    `json:"redis"`
	Timestamp      time.Time `json:"timestamp"`
}
