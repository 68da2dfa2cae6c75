/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

import (
	"golang.org/x/exp/rand"
)

// rejectionAttempts bounds random food draws before falling back to an
// exhaustive scan of free cells.
const rejectionAttempts = 64

type GridConfig struct {
	Width  int
	Height int
}

// GridState is the snake variant's authoritative state. The world is a torus:
// leaving one edge re-enters on the opposite edge.
type GridState struct {
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Snake     []Position `json:"snake"`
	Food      Position   `json:"food"`
	Direction Direction  `json:"direction"`
	Score     int        `json:"score"`
	GameOver  bool       `json:"game_over"`
	Tick      uint64     `json:"tick"`
}

func (s GridState) Over() bool         { return s.GameOver }
func (s GridState) Points() int        { return s.Score }
func (s GridState) Heading() Direction { return s.Direction }
func (s GridState) Step() uint64       { return s.Tick }

// Head returns the first segment, or the zero Position for an empty snake.
func (s GridState) Head() Position {
	if len(s.Snake) == 0 {
		return Position{}
	}
	return s.Snake[0]
}

// Grid runs the snake variant.
type Grid struct {
	cfg GridConfig
	rng *rand.Rand
}

func NewGrid(cfg GridConfig, seed uint64) *Grid {
	if cfg.Width < 1 {
		cfg.Width = 1
	}
	if cfg.Height < 1 {
		cfg.Height = 1
	}
	return &Grid{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (g *Grid) Config() GridConfig {
	return g.cfg
}

// Reset places a one-segment snake in the middle of the board heading right,
// with food on a random free cell.
func (g *Grid) Reset() GridState {
	snake := []Position{{X: g.cfg.Width / 2, Y: g.cfg.Height / 2}}

	s := GridState{
		Width:     g.cfg.Width,
		Height:    g.cfg.Height,
		Snake:     snake,
		Direction: Right,
	}

	food, ok := g.spawnFood(g.cfg.Width, g.cfg.Height, snake)
	if !ok {
		s.GameOver = true
		return s
	}
	s.Food = food

	return s
}

// Tick advances s by one step. Collision is checked against the segment list
// before the move, tail included.
func (g *Grid) Tick(s GridState, intent Direction) GridState {
	if s.GameOver || len(s.Snake) == 0 || s.Width < 1 || s.Height < 1 {
		return s
	}

	dir := s.Direction
	if intent.Valid() && !intent.IsOpposite(s.Direction) {
		dir = intent
	}

	next := s.Snake[0].Add(dir)
	head := Position{
		X: wrap(next.X, s.Width),
		Y: wrap(next.Y, s.Height),
	}

	if occupied(s.Snake, head) {
		s.GameOver = true
		return s
	}

	snake := make([]Position, 0, len(s.Snake)+1)
	snake = append(snake, head)
	snake = append(snake, s.Snake...)

	out := GridState{
		Width:     s.Width,
		Height:    s.Height,
		Food:      s.Food,
		Direction: dir,
		Score:     s.Score,
		Tick:      s.Tick + 1,
	}

	if head == s.Food {
		out.Snake = snake
		out.Score++

		food, ok := g.spawnFood(s.Width, s.Height, snake)
		if !ok {
			out.GameOver = true
			return out
		}
		out.Food = food

		return out
	}

	out.Snake = snake[:len(snake)-1]

	return out
}

// spawnFood draws a free cell uniformly at random. It reports false when the
// snake covers the whole board.
func (g *Grid) spawnFood(w, h int, snake []Position) (Position, bool) {
	for range rejectionAttempts {
		p := Position{X: g.rng.Intn(w), Y: g.rng.Intn(h)}
		if !occupied(snake, p) {
			return p, true
		}
	}

	taken := make(map[Position]bool, len(snake))
	for _, seg := range snake {
		taken[seg] = true
	}

	free := make([]Position, 0, w*h)
	for y := range h {
		for x := range w {
			p := Position{X: x, Y: y}
			if !taken[p] {
				free = append(free, p)
			}
		}
	}
	if len(free) == 0 {
		return Position{}, false
	}

	return free[g.rng.Intn(len(free))], true
}

func occupied(snake []Position, p Position) bool {
	for _, seg := range snake {
		if seg == p {
			return true
		}
	}
	return false
}
