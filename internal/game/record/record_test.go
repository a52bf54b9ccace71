package record

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/ep3-server-go/internal/game/battle"
	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/field"
)

const testCards = `
cards:
  - id: 0x0001
    name: Orland
    type: HUNTERS_SC
    class: HU_SC
    hp: "15"
    ap: "4"
    tp: "1"
    mv: "2"
  - id: 0x0030
    name: Saber
    type: ITEM
    class: SWORD_ITEM
    cost: 2
    hp: "3"
    ap: "+2"
    tp: "-1"
    mv: "?"
    right_colors: [1, 3]
    fixed_range: 1
`

const testMap = `
map_number: 1
name: Test Field
width: 5
height: 5
tiles:
  - "01 01 01 01 01"
  - "01 02 01 01 01"
  - "01 01 01 01 01"
  - "01 01 01 03 01"
  - "01 01 01 01 01"
start_tiles:
  - [0x02]
  - [0x03]
`

func deck(teamID uint8) battle.DeckEntry {
	d := battle.DeckEntry{Name: "test", TeamID: teamID}
	d.CardIDs[0] = 0x0001
	for z := 1; z < battle.DeckSize; z++ {
		d.CardIDs[z] = 0x0030
	}
	return d
}

func setupCommands(t *testing.T) []battle.Command {
	t.Helper()
	mr, err := field.LoadMap(strings.NewReader(testMap), nil)
	require.NoError(t, err)
	mr.NumPlayers = 2
	mr.NumTeam0Players = 1
	return []battle.Command{
		battle.SetMapCommand{ClientID: 0, MapAndRules: *mr},
		battle.RegisterDeckCommand{ClientID: 0, Deck: deck(0)},
		battle.RegisterDeckCommand{ClientID: 1, Deck: deck(1)},
		battle.SetNameCommand{ClientID: 0, PlayerName: "alpha"},
		battle.SetNameCommand{ClientID: 1, PlayerName: "beta"},
		battle.StartBattleCommand{ClientID: 0},
		battle.StarterRollDoneCommand{ClientID: 0},
		battle.StarterRollDoneCommand{ClientID: 1},
		battle.RedrawHandCommand{ClientID: 1},
		battle.EndRedrawCommand{ClientID: 0},
		battle.EndRedrawCommand{ClientID: 1},
		battle.EndPhaseCommand{ClientID: 0},
		battle.EndPhaseCommand{ClientID: 1},
	}
}

func recordBattle(t *testing.T, index cards.Lookup) *Record {
	t.Helper()
	tick := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := NewRecorder(index, 1234, Settings{SkipDeckVerify: true}, battle.Options{
		Logger: zaptest.NewLogger(t),
		Now: func() time.Time {
			tick = tick.Add(time.Second)
			return tick
		},
	})
	for z, cmd := range setupCommands(t) {
		_, err := r.Dispatch(uint32(z), cmd)
		require.NoError(t, err)
	}
	require.Equal(t, battle.SetupMainBattle, r.Battle().SetupPhase())
	return r.Snapshot()
}

func testIndex(t *testing.T) *cards.Index {
	t.Helper()
	idx, err := cards.LoadIndex(strings.NewReader(testCards), nil)
	require.NoError(t, err)
	return idx
}

func TestRecorderCapturesInput(t *testing.T) {
	rec := recordBattle(t, testIndex(t))
	assert.Len(t, rec.Entries, 13)
	assert.NotEmpty(t, rec.RandomValues)
	assert.NotEmpty(t, rec.FinalDigest)
	assert.Equal(t, int64(1234), rec.Seed)
	assert.True(t, rec.Entries[1].At.After(rec.Entries[0].At))
}

func TestReplayReproducesBattle(t *testing.T) {
	idx := testIndex(t)
	rec := recordBattle(t, idx)

	b, err := Replay(idx, rec, battle.Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	assert.Equal(t, rec.BattleID, b.ID)
	assert.Equal(t, rec.FinalDigest, b.Digest())
	assert.Equal(t, battle.SetupMainBattle, b.SetupPhase())
}

func TestReplayDetectsTampering(t *testing.T) {
	idx := testIndex(t)
	rec := recordBattle(t, idx)
	rec.RandomValues = rec.RandomValues[1:]

	_, err := Replay(idx, rec, battle.Options{})
	assert.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	idx := testIndex(t)
	rec := recordBattle(t, idx)

	data, err := Marshal(rec)
	require.NoError(t, err)
	out, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, rec.BattleID, out.BattleID)
	assert.Equal(t, rec.RandomValues, out.RandomValues)
	require.Len(t, out.Entries, len(rec.Entries))
	assert.Equal(t, rec.Entries[2].Command, out.Entries[2].Command)

	// The decoded record still replays.
	_, err = Replay(idx, out, battle.Options{})
	require.NoError(t, err)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not a record")))
	assert.Error(t, err)
}

func TestSaveAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	rec := recordBattle(t, testIndex(t))
	require.NoError(t, SaveToFile(dir, rec))

	out, err := LoadFromFile(dir, rec.BattleID)
	require.NoError(t, err)
	assert.Equal(t, rec.FinalDigest, out.FinalDigest)
}
