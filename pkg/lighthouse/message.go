package lighthouse

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Verbs understood by the lighthouse server
const (
	VerbAuth   = "AUTH"
	VerbPut    = "PUT"
	VerbStream = "STREAM"
)

// StatusOK is the response code of a successful request
const StatusOK = 200

// Authentication is sent with every client message
type Authentication struct {
	Username string `msgpack:"USER"`
	Token    string `msgpack:"TOKEN"`
}

// ClientMessage is a request sent to the server
type ClientMessage struct {
	RequestID      int64          `msgpack:"REID"`
	Authentication Authentication `msgpack:"AUTH"`
	Verb           string         `msgpack:"VERB"`
	Path           []string       `msgpack:"PATH"`
	Meta           map[string]any `msgpack:"META"`
	Payload        any            `msgpack:"PAYL"`
}

// ServerMessage is a response or stream update sent by the server
type ServerMessage struct {
	Code      int                `msgpack:"RNUM"`
	RequestID int64              `msgpack:"REID"`
	Response  string             `msgpack:"RESPONSE"`
	Warnings  []string           `msgpack:"WARNINGS"`
	Payload   msgpack.RawMessage `msgpack:"PAYL"`
}

// HasPayload reports whether the message carries a non-nil payload
func (m *ServerMessage) HasPayload() bool {
	return len(m.Payload) > 0 && !bytes.Equal(m.Payload, []byte{msgpackNil})
}

// Succeeded reports whether the response code is 2xx
func (m *ServerMessage) Succeeded() bool {
	return m.Code >= 200 && m.Code < 300
}

const msgpackNil = 0xc0
