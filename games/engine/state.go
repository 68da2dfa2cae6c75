/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

// State is the read side shared by every game variant. Implementations are
// plain values; a tick always returns a new one.
type State interface {
	Over() bool
	Points() int
	Heading() Direction
	Step() uint64
}

// Engine advances one variant of the game. Tick must be a pure function of
// its arguments and the engine's own random source, and must return s
// unchanged once s.Over() is true.
type Engine[S State] interface {
	Reset() S
	Tick(s S, intent Direction) S
}

// Position is a cell on the grid.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) Add(d Direction) Position {
	return Position{X: p.X + d.DX, Y: p.Y + d.DY}
}

// Box is an axis-aligned rectangle with its origin at the top-left corner.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (b Box) Right() float64 {
	return b.X + b.W
}

func (b Box) Bottom() float64 {
	return b.Y + b.H
}

// Overlaps is the standard AABB test. Touching edges do not overlap.
func (b Box) Overlaps(o Box) bool {
	if b.X >= o.Right() || o.X >= b.Right() {
		return false
	}
	if b.Y >= o.Bottom() || o.Y >= b.Bottom() {
		return false
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func wrap(v, size int) int {
	v %= size
	if v < 0 {
		v += size
	}
	return v
}
