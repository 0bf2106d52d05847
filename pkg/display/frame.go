package display

import (
	"encoding/binary"
	"image"
	"image/color"

	"github.com/cespare/xxhash/v2"
)

// Device dimensions of the lighthouse display
const (
	LighthouseRows = 28
	LighthouseCols = 14
)

// Geometry describes the fixed pixel grid of a display
type Geometry struct {
	Rows int
	Cols int
}

// LighthouseGeometry is the grid of the lighthouse display
var LighthouseGeometry = Geometry{Rows: LighthouseRows, Cols: LighthouseCols}

// Size returns the number of pixels in the grid
func (g Geometry) Size() int {
	return g.Rows * g.Cols
}

// Index maps a coordinate to its row-major pixel index
func (g Geometry) Index(x, y int) int {
	return y*g.Cols + x
}

// Contains reports whether (x, y) lies on the grid
func (g Geometry) Contains(x, y int) bool {
	return x >= 0 && x < g.Cols && y >= 0 && y < g.Rows
}

// Frame is one immutable snapshot of the display. Pixel i is at row i/Cols, column i%Cols.
type Frame struct {
	geometry Geometry
	pixels   []Color
}

// New creates a frame from a row-major pixel slice.
// The slice is copied; its length must equal the grid size.
func New(g Geometry, pixels []Color) (Frame, error) {
	if len(pixels) != g.Size() {
		return Frame{}, &ShapeError{Got: len(pixels), Want: g.Size()}
	}

	owned := make([]Color, len(pixels))
	copy(owned, pixels)
	return Frame{geometry: g, pixels: owned}, nil
}

// Fill creates a frame where every pixel is c
func Fill(g Geometry, c Color) Frame {
	pixels := make([]Color, g.Size())
	for i := range pixels {
		pixels[i] = c
	}
	return Frame{geometry: g, pixels: pixels}
}

// Generate creates a frame by calling f for every coordinate, y outer and x inner
func Generate(g Geometry, f func(x, y int) Color) Frame {
	pixels := make([]Color, g.Size())
	for y := 0; y < g.Rows; y++ {
		for x := 0; x < g.Cols; x++ {
			pixels[g.Index(x, y)] = f(x, y)
		}
	}
	return Frame{geometry: g, pixels: pixels}
}

// Geometry returns the grid the frame was built for
func (f Frame) Geometry() Geometry {
	return f.geometry
}

// At returns the pixel at (x, y). Coordinates off the grid yield Black.
func (f Frame) At(x, y int) Color {
	if !f.geometry.Contains(x, y) {
		return Black
	}
	return f.pixels[f.geometry.Index(x, y)]
}

// Pixels returns a copy of the row-major pixel slice
func (f Frame) Pixels() []Color {
	out := make([]Color, len(f.pixels))
	copy(out, f.pixels)
	return out
}

// Equal reports structural equality of two frames
func (f Frame) Equal(other Frame) bool {
	if f.geometry != other.geometry || len(f.pixels) != len(other.pixels) {
		return false
	}
	for i := range f.pixels {
		if f.pixels[i] != other.pixels[i] {
			return false
		}
	}
	return true
}

// Hash returns a structural hash; equal frames hash equally
func (f Frame) Hash() uint64 {
	d := xxhash.New()
	var dims [8]byte
	binary.LittleEndian.PutUint32(dims[0:4], uint32(f.geometry.Rows))
	binary.LittleEndian.PutUint32(dims[4:8], uint32(f.geometry.Cols))
	_, _ = d.Write(dims[:])
	_, _ = d.Write(Encode(f))
	return d.Sum64()
}

// Image renders the frame as an RGBA image with one image pixel per display pixel
func (f Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.geometry.Cols, f.geometry.Rows))
	for y := 0; y < f.geometry.Rows; y++ {
		for x := 0; x < f.geometry.Cols; x++ {
			c := f.pixels[f.geometry.Index(x, y)]
			img.SetRGBA(x, y, color.RGBA{R: c.Red, G: c.Green, B: c.Blue, A: 0xff})
		}
	}
	return img
}
