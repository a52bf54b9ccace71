package field

import "fmt"

// Direction is the facing of a piece on the grid.
type Direction uint8

const (
	DirRight   Direction = 0
	DirUp      Direction = 1
	DirLeft    Direction = 2
	DirDown    Direction = 3
	DirInvalid Direction = 0xFF
)

var directionNames = map[Direction]string{
	DirRight:   "RIGHT",
	DirUp:      "UP",
	DirLeft:    "LEFT",
	DirDown:    "DOWN",
	DirInvalid: "INVALID",
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DIRECTION_%02X", uint8(d))
}

// IsValid reports whether d is one of the four compass facings.
func (d Direction) IsValid() bool {
	return d <= DirDown
}

// TurnLeft rotates d a quarter turn counterclockwise.
func (d Direction) TurnLeft() Direction {
	if !d.IsValid() {
		return DirInvalid
	}
	return (d + 1) & 3
}

// TurnRight rotates d a quarter turn clockwise.
func (d Direction) TurnRight() Direction {
	if !d.IsValid() {
		return DirInvalid
	}
	return (d + 3) & 3
}

// TurnAround reverses d.
func (d Direction) TurnAround() Direction {
	if !d.IsValid() {
		return DirInvalid
	}
	return (d + 2) & 3
}

// Delta returns the grid step taken when moving one tile in direction d.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case DirRight:
		return 1, 0
	case DirUp:
		return 0, -1
	case DirLeft:
		return -1, 0
	case DirDown:
		return 0, 1
	}
	return 0, 0
}

// Location is a tile coordinate plus a facing.
type Location struct {
	X         uint8
	Y         uint8
	Direction Direction
}

// NoLocation is the cleared location used for pieces that are not on the grid.
var NoLocation = Location{X: 0xFF, Y: 0xFF, Direction: DirInvalid}

func (l Location) String() string {
	return fmt.Sprintf("(%d,%d %s)", l.X, l.Y, l.Direction)
}

// SameTile reports whether both locations name the same tile, ignoring facing.
func (l Location) SameTile(other Location) bool {
	return l.X == other.X && l.Y == other.Y
}
