package display

import (
	"errors"
	"fmt"
)

// Sentinel errors for decode failures, matched with errors.Is
var (
	ErrBadLength     = errors.New("payload length is not a multiple of 3")
	ErrShapeMismatch = errors.New("payload pixel count does not match display geometry")
)

// ShapeError is returned when a pixel slice does not match the display geometry
type ShapeError struct {
	Got  int
	Want int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("invalid frame shape: got %d pixels, want %d", e.Got, e.Want)
}

// DecodeErrorKind identifies why a payload was rejected
type DecodeErrorKind int

const (
	BadLength DecodeErrorKind = iota + 1
	ShapeMismatch
)

// String returns the string representation of the kind.
func (k DecodeErrorKind) String() string {
	switch k {
	case BadLength:
		return "BadLength"
	case ShapeMismatch:
		return "ShapeMismatch"
	default:
		return "Unknown"
	}
}

// DecodeError is returned when a wire payload cannot be turned into a frame
type DecodeError struct {
	Kind   DecodeErrorKind
	Length int // payload length in bytes
	Want   int // expected payload length, set for ShapeMismatch
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case BadLength:
		return fmt.Sprintf("failed to decode frame: %d (length of payload) is not a multiple of 3", e.Length)
	case ShapeMismatch:
		return fmt.Sprintf("failed to decode frame: payload has %d bytes, want %d", e.Length, e.Want)
	default:
		return fmt.Sprintf("failed to decode frame: %d bytes", e.Length)
	}
}

// Is lets errors.Is match the kind sentinels
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrBadLength:
		return e.Kind == BadLength
	case ErrShapeMismatch:
		return e.Kind == ShapeMismatch
	}
	return false
}
