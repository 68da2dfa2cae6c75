/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

// Direction is a unit step along one axis. The zero value means no change
// was requested.
type Direction struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

var (
	None  = Direction{}
	Up    = Direction{DX: 0, DY: -1}
	Down  = Direction{DX: 0, DY: 1}
	Left  = Direction{DX: -1, DY: 0}
	Right = Direction{DX: 1, DY: 0}
)

// Directions lists the four valid headings in a stable order.
var Directions = [4]Direction{Up, Down, Left, Right}

// ParseDirection maps a command token to a Direction. Unknown tokens
// return None and false.
func ParseDirection(token string) (Direction, bool) {
	switch token {
	case "up":
		return Up, true
	case "down":
		return Down, true
	case "left":
		return Left, true
	case "right":
		return Right, true
	}
	return None, false
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	case None:
		return "none"
	}
	return "invalid"
}

// Valid reports whether d is one of the four axis-aligned headings.
func (d Direction) Valid() bool {
	return d == Up || d == Down || d == Left || d == Right
}

func (d Direction) Opposite() Direction {
	return Direction{DX: -d.DX, DY: -d.DY}
}

// IsOpposite reports whether d points exactly against other. None is never
// opposite to anything.
func (d Direction) IsOpposite(other Direction) bool {
	return d.Valid() && other.Valid() && d == other.Opposite()
}

// Horizontal reports whether d travels along the x axis.
func (d Direction) Horizontal() bool {
	return d.DX != 0 && d.DY == 0
}

// Vertical reports whether d travels along the y axis.
func (d Direction) Vertical() bool {
	return d.DY != 0 && d.DX == 0
}
