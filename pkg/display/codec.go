package display

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// BytesPerPixel is the number of channel bytes each pixel occupies on the wire
const BytesPerPixel = 3

// Encode flattens a frame into its wire payload: row-major pixels, each as R, G, B.
// The payload has no header and is always 3*Rows*Cols bytes long.
func Encode(f Frame) []byte {
	out := make([]byte, 0, len(f.pixels)*BytesPerPixel)
	for _, c := range f.pixels {
		out = append(out, c.Red, c.Green, c.Blue)
	}
	return out
}

// Decode reconstructs a frame for geometry g from a wire payload.
// It fails with a BadLength DecodeError unless len(data) is a multiple of 3,
// and with a ShapeMismatch DecodeError unless it holds exactly g.Size() pixels.
func Decode(g Geometry, data []byte) (Frame, error) {
	if len(data)%BytesPerPixel != 0 {
		return Frame{}, &DecodeError{Kind: BadLength, Length: len(data)}
	}
	if len(data)/BytesPerPixel != g.Size() {
		return Frame{}, &DecodeError{Kind: ShapeMismatch, Length: len(data), Want: g.Size() * BytesPerPixel}
	}

	pixels := make([]Color, g.Size())
	for i := range pixels {
		o := i * BytesPerPixel
		pixels[i] = Color{Red: data[o], Green: data[o+1], Blue: data[o+2]}
	}
	return Frame{geometry: g, pixels: pixels}, nil
}

var (
	_ msgpack.CustomEncoder = Frame{}
	_ msgpack.CustomDecoder = (*Frame)(nil)
)

// EncodeMsgpack writes the frame as a msgpack bin holding the wire payload
func (f Frame) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeBytes(Encode(f))
}

// DecodeMsgpack reads a msgpack bin into a frame of the lighthouse geometry.
// A frame that already carries a geometry keeps it.
func (f *Frame) DecodeMsgpack(dec *msgpack.Decoder) error {
	data, err := dec.DecodeBytes()
	if err != nil {
		return fmt.Errorf("failed to read frame payload: %w", err)
	}

	g := f.geometry
	if g.Size() == 0 {
		g = LighthouseGeometry
	}

	decoded, err := Decode(g, data)
	if err != nil {
		return err
	}
	*f = decoded
	return nil
}
