package display

import "fmt"

// Color is a single RGB pixel value
type Color struct {
	Red   uint8
	Green uint8
	Blue  uint8
}

// Named colors
var (
	Black   = Color{0, 0, 0}
	White   = Color{255, 255, 255}
	Red     = Color{255, 0, 0}
	Green   = Color{0, 255, 0}
	Blue    = Color{0, 0, 255}
	Yellow  = Color{255, 255, 0}
	Cyan    = Color{0, 255, 255}
	Magenta = Color{255, 0, 255}
)

// RGB creates a color from its three channels
func RGB(r, g, b uint8) Color {
	return Color{Red: r, Green: g, Blue: b}
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.Red, c.Green, c.Blue)
}
