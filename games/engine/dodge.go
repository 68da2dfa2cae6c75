/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

import (
	"golang.org/x/exp/rand"
)

type DodgeConfig struct {
	Width         float64
	Height        float64
	PlayerW       float64
	PlayerH       float64
	ObstacleW     float64
	ObstacleH     float64
	PlayerSpeed   float64
	ObstacleSpeed float64
	SpawnChance   float64
}

// DefaultDodgeConfig matches the original arcade cabinet layout.
func DefaultDodgeConfig() DodgeConfig {
	return DodgeConfig{
		Width:         400,
		Height:        600,
		PlayerW:       50,
		PlayerH:       20,
		ObstacleW:     50,
		ObstacleH:     20,
		PlayerSpeed:   5,
		ObstacleSpeed: 3,
		SpawnChance:   0.02,
	}
}

type Obstacle struct {
	Box
	SpawnTick uint64  `json:"spawn_tick"`
	Speed     float64 `json:"speed"`
}

// DodgeState is the lane-dodge variant's authoritative state. The arena is
// bounded; the player sits on the bottom edge.
type DodgeState struct {
	Width     float64    `json:"width"`
	Height    float64    `json:"height"`
	Player    Box        `json:"player"`
	Obstacles []Obstacle `json:"obstacles"`
	Score     int        `json:"score"`
	GameOver  bool       `json:"game_over"`
	Tick      uint64     `json:"tick"`
}

func (s DodgeState) Over() bool         { return s.GameOver }
func (s DodgeState) Points() int        { return s.Score }
func (s DodgeState) Heading() Direction { return None }
func (s DodgeState) Step() uint64       { return s.Tick }

// Dodge runs the obstacle variant. Each tick is one fixed time unit.
type Dodge struct {
	cfg DodgeConfig
	rng *rand.Rand
}

func NewDodge(cfg DodgeConfig, seed uint64) *Dodge {
	return &Dodge{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (d *Dodge) Config() DodgeConfig {
	return d.cfg
}

func (d *Dodge) Reset() DodgeState {
	return DodgeState{
		Width:  d.cfg.Width,
		Height: d.cfg.Height,
		Player: Box{
			X: d.cfg.Width/2 - d.cfg.PlayerW/2,
			Y: d.cfg.Height - d.cfg.PlayerH,
			W: d.cfg.PlayerW,
			H: d.cfg.PlayerH,
		},
		Obstacles: []Obstacle{},
	}
}

// Tick moves the player, advances and culls obstacles, maybe spawns one, and
// scores a point for surviving. A hit freezes the pre-tick state.
func (d *Dodge) Tick(s DodgeState, intent Direction) DodgeState {
	if s.GameOver {
		return s
	}

	player := s.Player
	if intent.Horizontal() {
		player.X = clamp(player.X+d.cfg.PlayerSpeed*float64(intent.DX), 0, max(s.Width-player.W, 0))
	}

	obstacles := make([]Obstacle, 0, len(s.Obstacles)+1)
	for _, ob := range s.Obstacles {
		ob.Y += ob.Speed
		if ob.Y >= s.Height {
			continue
		}
		obstacles = append(obstacles, ob)
	}

	if d.cfg.SpawnChance > 0 && d.rng.Float64() < d.cfg.SpawnChance {
		obstacles = append(obstacles, Obstacle{
			Box: Box{
				X: d.rng.Float64() * max(s.Width-d.cfg.ObstacleW, 0),
				Y: -d.cfg.ObstacleH,
				W: d.cfg.ObstacleW,
				H: d.cfg.ObstacleH,
			},
			SpawnTick: s.Tick + 1,
			Speed:     d.cfg.ObstacleSpeed,
		})
	}

	for _, ob := range obstacles {
		if player.Overlaps(ob.Box) {
			s.GameOver = true
			return s
		}
	}

	return DodgeState{
		Width:     s.Width,
		Height:    s.Height,
		Player:    player,
		Obstacles: obstacles,
		Score:     s.Score + 1,
		Tick:      s.Tick + 1,
	}
}
