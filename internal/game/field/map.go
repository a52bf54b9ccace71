package field

import (
	"fmt"
	"strings"
)

// GridSize is the fixed side length of the tile grid.
const GridSize = 16

// Tile values. Values above TileVacant are start and special tiles in a map
// definition; they are normalized to TileVacant when the battle starts.
const (
	TileBlocked  uint8 = 0x00
	TileVacant   uint8 = 0x01
	TileOccupied uint8 = 0x10
)

// Overlay tile kinds. Traps are TileTrapBase|trapType.
const (
	OverlayBlock1   uint8 = 0x10
	OverlayBlock2   uint8 = 0x20
	OverlayWarpBase uint8 = 0x30
	OverlayTrapBase uint8 = 0x40
	OverlayBlock3   uint8 = 0x50
)

// Map is the terrain of one battle.
type Map struct {
	Width  uint8
	Height uint8
	Tiles  [GridSize][GridSize]uint8
	// StartTiles holds, per team, six packed start tile values: the low six
	// bits match a tile value and bits 6-7 give the initial facing.
	StartTiles [2][6]uint8
}

// MapAndRules is the battle setup shared by every component.
type MapAndRules struct {
	Map               Map
	Overlay           [GridSize][GridSize]uint8
	NumPlayers        uint8
	NumPlayersPerTeam uint8
	NumTeam0Players   uint8
	// StartFacingDirections packs a 4-bit facing per client.
	StartFacingDirections uint16
	MapNumber             uint32
	Name                  string
	Rules                 Rules
}

// InBounds reports whether (x, y) lies on the map.
func (m *MapAndRules) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < int(m.Map.Width) && y < int(m.Map.Height)
}

// Tile returns the tile value at (x, y), or TileBlocked outside the map.
func (m *MapAndRules) Tile(x, y int) uint8 {
	if !m.InBounds(x, y) {
		return TileBlocked
	}
	return m.Map.Tiles[y][x]
}

// TileIsVacant reports whether a piece can stand on (x, y).
func (m *MapAndRules) TileIsVacant(x, y int) bool {
	return m.InBounds(x, y) && m.Map.Tiles[y][x] == TileVacant
}

// SetOccupied marks (x, y) as holding a piece.
func (m *MapAndRules) SetOccupied(x, y int) {
	if m.InBounds(x, y) {
		m.Map.Tiles[y][x] |= TileOccupied
	}
}

// ClearOccupied removes the occupied mark from (x, y).
func (m *MapAndRules) ClearOccupied(x, y int) {
	if m.InBounds(x, y) {
		m.Map.Tiles[y][x] &^= TileOccupied
	}
}

// ClearAllOccupied removes every occupied mark.
func (m *MapAndRules) ClearAllOccupied() {
	for y := range m.Map.Tiles {
		for x := range m.Map.Tiles[y] {
			m.Map.Tiles[y][x] &^= TileOccupied
		}
	}
}

// StartFacing returns the initial facing recorded for a client.
func (m *MapAndRules) StartFacing(clientID int) Direction {
	return Direction((m.StartFacingDirections >> (clientID * 4)) & 0x0F)
}

// FindTile returns the first tile in row-major order whose value equals v.
func (m *MapAndRules) FindTile(v uint8) (Location, bool) {
	for y := 0; y < int(m.Map.Height); y++ {
		for x := 0; x < int(m.Map.Width); x++ {
			if m.Map.Tiles[y][x] == v {
				return Location{X: uint8(x), Y: uint8(y)}, true
			}
		}
	}
	return Location{}, false
}

func (m *Map) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Map: w=%d h=%d]\n", m.Width, m.Height)
	for y := 0; y < int(m.Height); y++ {
		b.WriteByte(' ')
		for x := 0; x < int(m.Width); x++ {
			fmt.Fprintf(&b, " %02X", m.Tiles[y][x])
		}
		b.WriteByte('\n')
	}
	return b.String()
}
