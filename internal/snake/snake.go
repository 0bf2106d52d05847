// Package snake is the example animation: a snake wandering the display.
package snake

import (
	"math/rand"
	"sync"

	"github.com/koios/lighthouse-client/pkg/display"
)

// Vec2 is a grid position or a unit direction
type Vec2 struct {
	X, Y int
}

// Directions
var (
	Up    = Vec2{0, -1}
	Down  = Vec2{0, 1}
	Left  = Vec2{-1, 0}
	Right = Vec2{1, 0}
)

// Add returns v+o wrapped onto the grid
func (v Vec2) Add(o Vec2, g display.Geometry) Vec2 {
	return Vec2{
		X: mod(v.X+o.X, g.Cols),
		Y: mod(v.Y+o.Y, g.Rows),
	}
}

// Opposite reports whether v points the other way from o
func (v Vec2) Opposite(o Vec2) bool {
	return v.X == -o.X && v.Y == -o.Y
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}

// Game is the mutable snake state shared between the producer and input handlers.
// Advance is the only way to move it; stepping and rendering happen under one lock.
type Game struct {
	mu       sync.Mutex
	geometry display.Geometry
	fields   []Vec2 // head first
	dir      Vec2
	color    display.Color
}

// New creates a one-field snake at a random position heading in a random direction
func New(g display.Geometry, rng *rand.Rand) *Game {
	return NewAt(g, RandomPos(g, rng), RandomDir(rng))
}

// NewAt creates a one-field snake at pos heading in dir
func NewAt(g display.Geometry, pos, dir Vec2) *Game {
	return &Game{
		geometry: g,
		fields:   []Vec2{pos},
		dir:      dir,
		color:    display.Green,
	}
}

// RandomPos picks a random position on the grid
func RandomPos(g display.Geometry, rng *rand.Rand) Vec2 {
	return Vec2{X: rng.Intn(g.Cols), Y: rng.Intn(g.Rows)}
}

// RandomDir picks one of the four directions
func RandomDir(rng *rand.Rand) Vec2 {
	return []Vec2{Up, Down, Left, Right}[rng.Intn(4)]
}

// Advance moves the snake one field and renders the result
func (s *Game) Advance() display.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.step()
	return s.render()
}

// Render draws the current state without moving
func (s *Game) Render() display.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.render()
}

// Steer changes direction. Reversing into the body is ignored for snakes longer than one field.
func (s *Game) Steer(dir Vec2) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.fields) > 1 && dir.Opposite(s.dir) {
		return false
	}
	s.dir = dir
	return true
}

// Head returns the position of the head
func (s *Game) Head() Vec2 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields[0]
}

// Direction returns the current heading
func (s *Game) Direction() Vec2 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

func (s *Game) step() {
	head := s.fields[0].Add(s.dir, s.geometry)
	copy(s.fields[1:], s.fields[:len(s.fields)-1])
	s.fields[0] = head
}

func (s *Game) render() display.Frame {
	pixels := make([]display.Color, s.geometry.Size())
	for i := range pixels {
		pixels[i] = display.Black
	}
	for _, f := range s.fields {
		pixels[s.geometry.Index(f.X, f.Y)] = s.color
	}

	frame, err := display.New(s.geometry, pixels)
	if err != nil {
		// pixels is always sized from the geometry
		panic(err)
	}
	return frame
}
