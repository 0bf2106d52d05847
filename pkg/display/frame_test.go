package display

import (
	"errors"
	"testing"
)

var small = Geometry{Rows: 2, Cols: 2}

func TestNew(t *testing.T) {
	t.Run("accepts exact size", func(t *testing.T) {
		f, err := New(small, []Color{Red, Green, Blue, White})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.At(1, 1); got != White {
			t.Errorf("At(1,1) = %v, want %v", got, White)
		}
	})

	t.Run("rejects wrong size", func(t *testing.T) {
		for _, n := range []int{0, 3, 5} {
			_, err := New(small, make([]Color, n))
			var shapeErr *ShapeError
			if !errors.As(err, &shapeErr) {
				t.Fatalf("len %d: expected ShapeError, got %v", n, err)
			}
			if shapeErr.Got != n || shapeErr.Want != 4 {
				t.Errorf("len %d: got %+v", n, shapeErr)
			}
		}
	})

	t.Run("copies input", func(t *testing.T) {
		pixels := []Color{Red, Red, Red, Red}
		f, _ := New(small, pixels)
		pixels[0] = Blue
		if f.At(0, 0) != Red {
			t.Error("frame should not alias the caller's slice")
		}
	})
}

func TestFill(t *testing.T) {
	f := Fill(LighthouseGeometry, Cyan)
	pixels := f.Pixels()
	if len(pixels) != LighthouseRows*LighthouseCols {
		t.Fatalf("got %d pixels, want %d", len(pixels), LighthouseRows*LighthouseCols)
	}
	for i, c := range pixels {
		if c != Cyan {
			t.Fatalf("pixel %d = %v, want %v", i, c, Cyan)
		}
	}
}

func TestGenerate(t *testing.T) {
	t.Run("row-major order", func(t *testing.T) {
		f := Generate(small, func(x, y int) Color { return RGB(uint8(x), uint8(y), 0) })
		want := []Color{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}
		got := f.Pixels()
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("pixel %d = %v, want %v", i, got[i], want[i])
			}
		}
	})

	t.Run("index formula on device grid", func(t *testing.T) {
		g := LighthouseGeometry
		fn := func(x, y int) Color { return RGB(uint8(x*7), uint8(y*3), uint8(x+y)) }
		pixels := Generate(g, fn).Pixels()
		for y := 0; y < g.Rows; y++ {
			for x := 0; x < g.Cols; x++ {
				if got := pixels[y*g.Cols+x]; got != fn(x, y) {
					t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, fn(x, y))
				}
			}
		}
	})
}

func TestEqualAndHash(t *testing.T) {
	a := Fill(small, Red)
	b, _ := New(small, []Color{Red, Red, Red, Red})
	c := Fill(small, Blue)
	d := Fill(Geometry{Rows: 4, Cols: 1}, Red)

	if !a.Equal(b) {
		t.Error("identical frames should be equal")
	}
	if a.Hash() != b.Hash() {
		t.Error("equal frames should hash equally")
	}
	if a.Equal(c) {
		t.Error("different pixels should not be equal")
	}
	if a.Equal(d) {
		t.Error("different geometry should not be equal")
	}
	if a.Hash() == d.Hash() {
		t.Error("different geometry should hash differently")
	}
}

func TestImage(t *testing.T) {
	f, _ := New(small, []Color{Red, Green, Blue, White})
	img := f.Image()

	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("bounds = %v, want 2x2", b)
	}
	if c := img.RGBAAt(1, 0); c.R != 0 || c.G != 255 || c.B != 0 || c.A != 255 {
		t.Errorf("pixel (1,0) = %v, want green", c)
	}
	if c := img.RGBAAt(0, 1); c.B != 255 {
		t.Errorf("pixel (0,1) = %v, want blue", c)
	}
}
