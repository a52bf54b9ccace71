package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/ep3-server-go/internal/game/battle"
	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/record"
	"github.com/magefree/ep3-server-go/internal/storage"
	"github.com/magefree/ep3-server-go/internal/tournament"
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

func testDeck(teamID uint8) battle.DeckEntry {
	d := battle.DeckEntry{Name: "test", TeamID: teamID}
	d.CardIDs[0] = 0x0001
	for z := 1; z < battle.DeckSize; z++ {
		d.CardIDs[z] = 0x0030
	}
	return d
}

// startCommands take a two player battle from registration to the first
// action phase.
func startCommands() []battle.Command {
	return []battle.Command{
		battle.RegisterDeckCommand{ClientID: 0, Deck: testDeck(0)},
		battle.RegisterDeckCommand{ClientID: 1, Deck: testDeck(1)},
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

func testMaps(t *testing.T) MapCatalog {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "field.yaml"), []byte(testMap), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644))
	maps, err := LoadMaps(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	return maps
}

func newTestManager(t *testing.T, tournaments *tournament.Manager) (*BattleManager, string) {
	t.Helper()
	idx, err := cards.LoadIndex(strings.NewReader(testCards), nil)
	require.NoError(t, err)
	recordsDir := t.TempDir()
	m := NewBattleManager(idx, testMaps(t), nil, tournaments, ManagerConfig{
		MaxBattles: 2,
		Settings:   record.Settings{SkipDeckVerify: true},
		RecordsDir: recordsDir,
	}, zaptest.NewLogger(t))
	t.Cleanup(m.Close)
	return m, recordsDir
}

func playToMainBattle(t *testing.T, room *Room) {
	t.Helper()
	for z, cmd := range startCommands() {
		code, err := room.Submit(context.Background(), uint32(z+1), cmd)
		require.NoError(t, err, cmd.Name())
		require.Equal(t, battle.ErrNone, code, cmd.Name())
	}
	require.Equal(t, battle.SetupMainBattle.String(), room.Info().Setup)
}

func TestLoadMapsRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(testMap), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte(testMap), 0o644))

	_, err := LoadMaps(dir, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "already loaded")
}

func TestCreateBattleValidatesRequest(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	_, err := m.CreateBattle(ctx, CreateBattleRequest{MapNumber: 99})
	assert.ErrorIs(t, err, errUnknownMap)

	_, err = m.CreateBattle(ctx, CreateBattleRequest{MapNumber: 1, NumPlayers: 5})
	assert.ErrorIs(t, err, errBadSeat)

	_, err = m.CreateBattle(ctx, CreateBattleRequest{MapNumber: 1, NumPlayers: 2, NumTeam0Players: 2})
	assert.ErrorIs(t, err, errBadSeat)

	_, err = m.CreateBattle(ctx, CreateBattleRequest{MapNumber: 1, NumPlayers: 2, Tournament: &TournamentLink{}})
	assert.ErrorIs(t, err, errTournamentNotFound)
}

func TestCreateBattleEvictsEndedRooms(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	first, err := m.CreateBattle(ctx, CreateBattleRequest{MapNumber: 1, NumPlayers: 2})
	require.NoError(t, err)
	_, err = m.CreateBattle(ctx, CreateBattleRequest{MapNumber: 1, NumPlayers: 2})
	require.NoError(t, err)

	_, err = m.CreateBattle(ctx, CreateBattleRequest{MapNumber: 1, NumPlayers: 2})
	assert.ErrorIs(t, err, errRoomFull)

	playToMainBattle(t, first)
	code, err := first.Submit(ctx, 50, battle.ForceResultCommand{ClientID: 0, SetWinner: true})
	require.NoError(t, err)
	require.Equal(t, battle.ErrNone, code)
	require.True(t, first.Ended())

	_, err = m.CreateBattle(ctx, CreateBattleRequest{MapNumber: 1, NumPlayers: 2})
	require.NoError(t, err)
	_, err = m.Room(first.ID)
	assert.ErrorIs(t, err, errRoomNotFound)
	assert.Len(t, m.List(), 2)
}

func TestFinishedBattleIsRecordedAndVerifies(t *testing.T) {
	m, dir := newTestManager(t, nil)
	ctx := context.Background()

	room, err := m.CreateBattle(ctx, CreateBattleRequest{MapNumber: 1, NumPlayers: 2})
	require.NoError(t, err)
	playToMainBattle(t, room)

	code, err := room.Submit(ctx, 50, battle.ForceResultCommand{ClientID: 1, SetWinner: true})
	require.NoError(t, err)
	require.Equal(t, battle.ErrNone, code)

	rec, err := record.LoadFromFile(dir, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, rec.BattleID)
	assert.NotEmpty(t, rec.FinalDigest)

	verified, err := m.VerifyRecord(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.FinalDigest, verified.FinalDigest)

	_, err = m.VerifyRecord(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRejectedCommandReachesSender(t *testing.T) {
	m, _ := newTestManager(t, nil)
	room, err := m.CreateBattle(context.Background(), CreateBattleRequest{MapNumber: 1, NumPlayers: 2})
	require.NoError(t, err)

	p, err := room.attach(0)
	require.NoError(t, err)
	<-p.send // joined

	code, err := room.Submit(context.Background(), 7, battle.RedrawHandCommand{ClientID: 0})
	require.NoError(t, err)
	require.NotEqual(t, battle.ErrNone, code)

	var f struct {
		Type   string `json:"type"`
		Seq    uint32 `json:"seq"`
		Status struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"status"`
	}
	for data := range p.send {
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type == frameError {
			break
		}
	}
	assert.Equal(t, frameError, f.Type)
	assert.Equal(t, uint32(7), f.Seq)
	assert.Equal(t, code.Error(), f.Status.Message)
}

func TestSeatsAndDisconnects(t *testing.T) {
	m, _ := newTestManager(t, nil)
	room, err := m.CreateBattle(context.Background(), CreateBattleRequest{MapNumber: 1, NumPlayers: 2})
	require.NoError(t, err)

	p, err := room.attach(1)
	require.NoError(t, err)
	_, err = room.attach(1)
	assert.ErrorIs(t, err, errSeatTaken)
	_, err = room.attach(4)
	assert.ErrorIs(t, err, errBadSeat)
	w, err := room.attach(watcherSeat)
	require.NoError(t, err)

	for _, c := range []*peer{p, w} {
		go func() {
			for range c.send {
			}
		}()
	}

	info := room.Info()
	assert.True(t, info.Seats[1])
	assert.Equal(t, 1, info.Watchers)

	playToMainBattle(t, room)
	room.detach(p)
	room.detach(w)

	info = room.Info()
	assert.False(t, info.Seats[1])
	assert.Zero(t, info.Watchers)
	room.recorder.Do(func(b *battle.Battle) {
		assert.True(t, b.IsCPU(1))
		assert.False(t, b.IsCPU(0))
	})
}

func TestSlowPeerIsReplacedByCPU(t *testing.T) {
	m, _ := newTestManager(t, nil)
	room, err := m.CreateBattle(context.Background(), CreateBattleRequest{MapNumber: 1, NumPlayers: 2})
	require.NoError(t, err)

	p, err := room.attach(1)
	require.NoError(t, err)
	playToMainBattle(t, room)
	for len(p.send) < cap(p.send) {
		p.send <- nil
	}

	room.Broadcast(&battle.ActionStateEvent{ClientID: 0, State: battle.NewActionState()})
	assert.False(t, room.Info().Seats[1])
	assert.Eventually(t, func() bool {
		cpu := false
		room.recorder.Do(func(b *battle.Battle) { cpu = b.IsCPU(1) })
		return cpu
	}, 5*time.Second, 10*time.Millisecond)

	// The dropped connection's own detach is a no-op.
	room.detach(p)
	room.recorder.Do(func(b *battle.Battle) {
		assert.False(t, b.IsCPU(0))
	})
}

func TestTournamentBattleReportsWinner(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "tournaments.yaml")
	tm := tournament.NewManager(statePath, nil, nil, zaptest.NewLogger(t))
	m, _ := newTestManager(t, tm)
	ctx := context.Background()

	tr, err := tm.CreateTournament("Cup", 1, m.maps[1].Rules, 4, 0)
	require.NoError(t, err)
	for team := 0; team < 4; team++ {
		require.NoError(t, tr.Register(team, uint32(100+team), "p", "team", ""))
	}
	require.NoError(t, tr.Start())
	round, opponent, ok := tr.NextMatch(0)
	require.True(t, ok)
	require.Equal(t, 1, round)
	require.Equal(t, 1, opponent)

	room, err := m.CreateBattle(ctx, CreateBattleRequest{
		MapNumber:  1,
		NumPlayers: 2,
		Tournament: &TournamentLink{TournamentID: tr.ID, Teams: [2]int{0, 1}},
	})
	require.NoError(t, err)
	playToMainBattle(t, room)
	_, err = room.Submit(ctx, 50, battle.ForceResultCommand{ClientID: 1, SetWinner: true})
	require.NoError(t, err)

	_, _, ok = tr.NextMatch(0)
	assert.False(t, ok, "team 0 lost")
	round, opponent, ok = tr.NextMatch(1)
	require.True(t, ok)
	assert.Equal(t, 2, round)
	assert.Equal(t, -1, opponent)

	reloaded := tournament.NewManager(statePath, nil, nil, zaptest.NewLogger(t))
	require.NoError(t, reloaded.Load())
	again, ok := reloaded.GetTournamentByName("Cup")
	require.True(t, ok)
	_, _, ok = again.NextMatch(0)
	assert.False(t, ok)
}
