package field

import (
	"strings"
	"testing"

	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sampleMap = `
map_number: 7
name: Test Plains
width: 5
height: 4
tiles:
  - "01 01 01 01 01"
  - "02 01 00 01 45"
  - "01 01 01 01 01"
  - "01 01 03 01 01"
overlay:
  - "00 00 00 00 00"
  - "00 00 00 41 00"
  - "00 30 00 00 00"
  - "00 00 00 00 30"
start_tiles:
  - [0x42, 0x43]
  - [0x45]
rules:
  char_hp: 20
  min_dice: 8
  max_dice: 3
`

func TestLoadMap(t *testing.T) {
	m, err := LoadMap(strings.NewReader(sampleMap), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, uint32(7), m.MapNumber)
	assert.Equal(t, uint8(0x45), m.Map.Tiles[1][4])
	assert.Equal(t, uint8(0x41), m.Overlay[1][3])
	assert.Equal(t, uint8(0x43), m.Map.StartTiles[0][1])
	assert.Equal(t, uint8(20), m.Rules.CharHP)
	// reversed dice values are swapped on load
	assert.Equal(t, uint8(3), m.Rules.MinDiceValue)
	assert.Equal(t, uint8(8), m.Rules.MaxDiceValue)

	loc, ok := m.FindTile(0x03)
	require.True(t, ok)
	assert.Equal(t, Location{X: 2, Y: 3}, loc)
	_, ok = m.FindTile(0x09)
	assert.False(t, ok)
}

func TestLoadMapRejectsBadRows(t *testing.T) {
	_, err := LoadMap(strings.NewReader("width: 2\nheight: 1\ntiles: [\"01\"]\n"), nil)
	assert.Error(t, err)
	_, err = LoadMap(strings.NewReader("width: 1\nheight: 1\ntiles: [\"zz\"]\n"), nil)
	assert.Error(t, err)
	_, err = LoadMap(strings.NewReader("width: 17\nheight: 1\n"), nil)
	assert.Error(t, err)
}

func TestOccupiedBits(t *testing.T) {
	m := &MapAndRules{}
	m.Map.Width, m.Map.Height = 3, 3
	m.Map.Tiles[1][1] = TileVacant
	assert.True(t, m.TileIsVacant(1, 1))
	m.SetOccupied(1, 1)
	assert.False(t, m.TileIsVacant(1, 1))
	m.ClearAllOccupied()
	assert.True(t, m.TileIsVacant(1, 1))
	assert.False(t, m.TileIsVacant(-1, 0))
	assert.False(t, m.TileIsVacant(3, 0))
}

func TestDirections(t *testing.T) {
	assert.Equal(t, DirUp, DirRight.TurnLeft())
	assert.Equal(t, DirDown, DirRight.TurnRight())
	assert.Equal(t, DirLeft, DirRight.TurnAround())
	assert.Equal(t, DirRight, DirDown.TurnLeft())
	assert.Equal(t, DirInvalid, DirInvalid.TurnLeft())
	dx, dy := DirUp.Delta()
	assert.Equal(t, 0, dx)
	assert.Equal(t, -1, dy)
}

func TestDiceRanges(t *testing.T) {
	r := DefaultRules()
	lo, hi := r.AttackDiceRange(false)
	assert.Equal(t, [2]uint8{1, 6}, [2]uint8{lo, hi})

	r.ATKDiceRange2v1 = 0x34
	lo, hi = r.AttackDiceRange(true)
	assert.Equal(t, [2]uint8{3, 4}, [2]uint8{lo, hi})
	lo, hi = r.AttackDiceRange(false)
	assert.Equal(t, [2]uint8{1, 6}, [2]uint8{lo, hi})

	r.DEFDiceRange = 0x50
	lo, hi = r.DefenseDiceRange(false)
	assert.Equal(t, [2]uint8{5, 6}, [2]uint8{lo, hi})

	r.MinDiceValue, r.MaxDiceValue = 0, 0
	r.DEFDiceRange = 0
	lo, hi = r.DefenseDiceRange(false)
	assert.Equal(t, [2]uint8{1, 6}, [2]uint8{lo, hi})
}

func TestCheckAndResetInvalidFields(t *testing.T) {
	r := DefaultRules()
	assert.False(t, r.CheckAndResetInvalidFields())
	r.OverallTimeLimit = 40
	r.CharHP = 120
	r.DEFDiceRange = 0x62
	assert.True(t, r.CheckAndResetInvalidFields())
	assert.Equal(t, uint8(6), r.OverallTimeLimit)
	assert.Equal(t, uint8(0), r.CharHP)
	assert.Equal(t, uint8(0x26), r.DEFDiceRange)
}

type stubLookup map[uint16]*cards.Definition

func (s stubLookup) DefinitionForID(id uint16) *cards.Definition { return s[id] }

func TestComputeEffectiveRangeRotation(t *testing.T) {
	// one tile in front, two rows ahead of the piece
	def := &cards.Definition{CardID: 0x10}
	def.Range[2] = 0x00000100
	lookup := stubLookup{0x10: def}

	at := func(r RangeMask, x, y int) uint8 { return r[y*RangeSize+x] }

	up := ComputeEffectiveRange(lookup, 0x10, Location{X: 8, Y: 8, Direction: DirUp}, nil)
	assert.Equal(t, RangeIn, at(up, 4, 2))

	down := ComputeEffectiveRange(lookup, 0x10, Location{X: 8, Y: 8, Direction: DirDown}, nil)
	assert.Equal(t, RangeIn, at(down, 4, 6))

	// horizontal facings are mirrored relative to movement offsets
	right := ComputeEffectiveRange(lookup, 0x10, Location{X: 8, Y: 8, Direction: DirRight}, nil)
	assert.Equal(t, RangeIn, at(right, 2, 4))

	left := ComputeEffectiveRange(lookup, 0x10, Location{X: 8, Y: 8, Direction: DirLeft}, nil)
	assert.Equal(t, RangeIn, at(left, 6, 4))

	anchor := Location{X: 8, Y: 8, Direction: DirUp}
	assert.True(t, up.Contains(anchor, Location{X: 8, Y: 6}))
	assert.False(t, up.Contains(anchor, Location{X: 8, Y: 7}))
	assert.False(t, up.Contains(anchor, Location{X: 8, Y: 2}))
}

func TestComputeEffectiveRangeClipsToMap(t *testing.T) {
	def := &cards.Definition{CardID: 0x10}
	def.Range[3] = 0x00000100
	m := &MapAndRules{}
	m.Map.Width, m.Map.Height = 4, 4

	r := ComputeEffectiveRange(stubLookup{0x10: def}, 0x10, Location{X: 0, Y: 0, Direction: DirUp}, m)
	assert.True(t, r.IsEmpty())

	fog := ComputeEffectiveRange(stubLookup{}, cards.CardIDHeavyFogRange, Location{X: 1, Y: 1, Direction: DirUp}, m)
	assert.Equal(t, RangeIn, fog[3*RangeSize+4])

	missing := ComputeEffectiveRange(stubLookup{}, 0x99, Location{X: 1, Y: 1, Direction: DirUp}, m)
	assert.True(t, missing.IsEmpty())
}

func TestEntireFieldRange(t *testing.T) {
	def := &cards.Definition{CardID: 0x20}
	for z := range def.Range {
		def.Range[z] = cards.RangeEntireField
	}
	r := ComputeEffectiveRange(stubLookup{0x20: def}, 0x20, Location{Direction: DirUp}, nil)
	assert.True(t, r.IsEntireField())
	assert.True(t, r.Contains(Location{}, Location{X: 15, Y: 15}))
}
