package field

import (
	"github.com/magefree/ep3-server-go/internal/game/cards"
)

// RangeSize is the side length of a range mask.
const RangeSize = 9

// Range mask cell values.
const (
	RangeOut         uint8 = 0
	RangeIn          uint8 = 1
	RangeEntireField uint8 = 2
)

// RangeMask is a 9x9 grid of reachable tiles centered on a piece, already
// rotated to the piece's facing. Index (y*9 + x); the piece sits at (4, 4).
type RangeMask [RangeSize * RangeSize]uint8

// IsEntireField reports whether the mask covers every tile.
func (r *RangeMask) IsEntireField() bool {
	return r[0] == RangeEntireField
}

// IsEmpty reports whether no tile is reachable.
func (r *RangeMask) IsEmpty() bool {
	for _, v := range r {
		if v != RangeOut {
			return false
		}
	}
	return true
}

// ComputeEffectiveRange decodes the range of a card into a mask around loc.
// The heavy fog pseudo-card covers only the tile ahead. Cells that fall off
// the map are left empty when m is not nil.
func ComputeEffectiveRange(lookup cards.Lookup, cardID uint16, loc Location, m *MapAndRules) RangeMask {
	var ret RangeMask

	var rows [6]uint32
	if cardID == cards.CardIDHeavyFogRange {
		rows[3] = 0x00000100
	} else {
		def := lookup.DefinitionForID(cardID)
		if def == nil {
			return ret
		}
		rows = def.Range
	}

	if rows[0] == cards.RangeEntireField {
		for z := range ret {
			ret[z] = RangeEntireField
		}
		return ret
	}

	var decoded RangeMask
	for y := 0; y < len(rows); y++ {
		row := rows[y]
		for x := 0; x < 5; x++ {
			if row&0xF != 0 {
				decoded[x+y*RangeSize+2] = RangeIn
			}
			row >>= 4
		}
	}

	for y := 0; y < RangeSize; y++ {
		mapY := y + int(loc.Y) - 4
		if m != nil && (mapY < 0 || mapY >= int(m.Map.Height)) {
			continue
		}
		for x := 0; x < RangeSize; x++ {
			mapX := x + int(loc.X) - 4
			if m != nil && (mapX < 0 || mapX >= int(m.Map.Width)) {
				continue
			}
			var upX, upY int
			switch loc.Direction {
			case DirLeft:
				upX, upY = y, RangeSize-x-1
			case DirRight:
				upX, upY = RangeSize-y-1, x
			case DirUp:
				upX, upY = x, y
			case DirDown:
				upX, upY = RangeSize-x-1, RangeSize-y-1
			default:
				// Pieces without a facing have no directional range.
				return RangeMask{}
			}
			ret[y*RangeSize+x] = decoded[upY*RangeSize+upX]
		}
	}
	return ret
}

// Contains reports whether loc falls inside the mask anchored at anchor.
func (r *RangeMask) Contains(anchor, loc Location) bool {
	if r.IsEntireField() {
		return true
	}
	dx := int(loc.X) - int(anchor.X)
	dy := int(loc.Y) - int(anchor.Y)
	if dx < -4 || dx > 4 || dy < -4 || dy > 4 {
		return false
	}
	return r[(dy+4)*RangeSize+dx+4] != RangeOut
}
