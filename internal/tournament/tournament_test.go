package tournament

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/ep3-server-go/internal/game/dice"
	"github.com/magefree/ep3-server-go/internal/game/field"
)

var testDecks = []string{"COM:Hunters", "COM:Arkz"}

func newTestTournament(t *testing.T, teams int, flags Flags) *Tournament {
	t.Helper()
	tr, err := New("cup", 3, field.DefaultRules(), teams, flags, testDecks, dice.NewGenerator(42))
	require.NoError(t, err)
	return tr
}

func TestNewRejectsBadTeamCounts(t *testing.T) {
	for _, n := range []int{2, 3, 6, 64} {
		_, err := New("x", 0, field.DefaultRules(), n, 0, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidTeamCount, "teams=%d", n)
	}
}

func TestRegister(t *testing.T) {
	tr := newTestTournament(t, 4, FlagIs2v2)

	require.NoError(t, tr.Register(0, 100, "alice", "Red", "pw"))
	assert.ErrorIs(t, tr.Register(0, 101, "bob", "", "nope"), ErrWrongPassword)
	require.NoError(t, tr.Register(0, 101, "bob", "", "pw"))
	assert.ErrorIs(t, tr.Register(0, 102, "carol", "", "pw"), ErrTeamFull)
	assert.ErrorIs(t, tr.Register(1, 100, "alice", "Blue", ""), ErrAlreadyRegistered)
	assert.ErrorIs(t, tr.Register(9, 103, "dave", "", ""), ErrNoSuchTeam)

	idx, active := tr.TeamForAccount(101)
	assert.Equal(t, 0, idx)
	assert.True(t, active)

	assert.True(t, tr.Unregister(100))
	assert.True(t, tr.Unregister(101))
	snap := tr.Snapshot()
	assert.Empty(t, snap.Teams[0].Name)
	require.NoError(t, tr.Register(1, 100, "alice", "Blue", ""))
}

func TestStartWithoutCOMTeams(t *testing.T) {
	tr := newTestTournament(t, 4, 0)
	require.NoError(t, tr.Register(0, 1, "a", "A", ""))
	assert.ErrorIs(t, tr.Start(), ErrNotEnoughEntrants)
	require.NoError(t, tr.Register(2, 2, "b", "B", ""))
	require.NoError(t, tr.Start())
	assert.Equal(t, StateInProgress, tr.State())
	assert.ErrorIs(t, tr.Register(1, 3, "c", "C", ""), ErrAlreadyStarted)

	// Both semifinals are against empty entries.
	round, opp, ok := tr.NextMatch(0)
	require.True(t, ok)
	assert.Equal(t, 2, round)
	assert.Equal(t, 2, opp)

	snap := tr.Snapshot()
	assert.Equal(t, "(no entrant)", snap.Teams[1].Name)
	assert.Empty(t, snap.Teams[1].Players)
	require.Len(t, snap.Matches, 3)

	require.NoError(t, tr.ReportResult(0))
	assert.Equal(t, StateComplete, tr.State())
	winner, ok := tr.Winner()
	require.True(t, ok)
	assert.Equal(t, 0, winner)
	_, active := tr.TeamForAccount(2)
	assert.False(t, active)
	assert.ErrorIs(t, tr.ReportResult(0), ErrNotStarted)
}

func TestStartFillsCOMTeams(t *testing.T) {
	tr := newTestTournament(t, 4, FlagHasCOMTeams)
	require.NoError(t, tr.Register(0, 1, "a", "A", ""))
	require.NoError(t, tr.Start())

	snap := tr.Snapshot()
	for i := 1; i < 4; i++ {
		require.Len(t, snap.Teams[i].Players, 1)
		assert.True(t, snap.Teams[i].Players[0].IsCOM())
		assert.Contains(t, testDecks, snap.Teams[i].Players[0].COMDeck)
	}
	assert.Equal(t, "COM:1", snap.Teams[1].Name)

	// The COM-only semifinal resolves without a battle.
	assert.Equal(t, 1, snap.Matches[1].Round)
	assert.NotEqual(t, -1, snap.Matches[1].Winner)
	assert.True(t, snap.Matches[0].Pending)

	require.NoError(t, tr.ReportResult(0))
	round, opp, ok := tr.NextMatch(0)
	require.True(t, ok)
	assert.Equal(t, 2, round)
	assert.Contains(t, []int{2, 3}, opp)
	assert.ErrorIs(t, tr.ReportResult(1), ErrNoPendingMatch)

	require.NoError(t, tr.ReportResult(opp))
	winner, ok := tr.Winner()
	require.True(t, ok)
	assert.Equal(t, opp, winner)
}

func TestStartNeedsCOMDecks(t *testing.T) {
	tr, err := New("cup", 1, field.DefaultRules(), 4, FlagHasCOMTeams|FlagIs2v2, nil, dice.NewGenerator(1))
	require.NoError(t, err)
	require.NoError(t, tr.Register(0, 1, "a", "A", ""))
	assert.ErrorIs(t, tr.Start(), ErrNotEnoughCOMDecks)
	assert.Equal(t, StateRegistration, tr.State())
}

func TestUnregisterAfterStartForfeits(t *testing.T) {
	tr := newTestTournament(t, 4, 0)
	require.NoError(t, tr.Register(0, 1, "a", "A", ""))
	require.NoError(t, tr.Register(1, 2, "b", "B", ""))
	require.NoError(t, tr.Start())

	round, opp, ok := tr.NextMatch(0)
	require.True(t, ok)
	assert.Equal(t, 1, round)
	assert.Equal(t, 1, opp)

	assert.True(t, tr.Unregister(1))
	assert.False(t, tr.Unregister(1))
	winner, ok := tr.Winner()
	require.True(t, ok)
	assert.Equal(t, 1, winner)
}

func TestResizeOnStart(t *testing.T) {
	tr := newTestTournament(t, 16, FlagResizeOnStart|FlagShuffleEntries)
	require.NoError(t, tr.Register(5, 1, "a", "A", ""))
	require.NoError(t, tr.Register(12, 2, "b", "B", ""))
	require.NoError(t, tr.Start())
	assert.Equal(t, 4, tr.NumTeams())

	snap := tr.Snapshot()
	humans := 0
	for i, team := range snap.Teams {
		assert.Equal(t, i, team.Index)
		for _, p := range team.Players {
			if p.IsHuman() {
				humans++
			}
		}
	}
	assert.Equal(t, 2, humans)
	assert.Contains(t, tr.Bracket(), "[Match round=2")
}

func TestManagerCreateAndRemove(t *testing.T) {
	m := NewManager("", testDecks, dice.NewGenerator(1), zaptest.NewLogger(t))
	tr, err := m.CreateTournament("cup", 1, field.DefaultRules(), 4, 0)
	require.NoError(t, err)
	_, err = m.CreateTournament("cup", 1, field.DefaultRules(), 4, 0)
	assert.Error(t, err)

	got, ok := m.GetTournamentByName("cup")
	require.True(t, ok)
	assert.Same(t, tr, got)
	assert.Equal(t, 1, m.GetActiveTournamentCount())
	assert.Len(t, m.GetAllTournaments(), 1)

	assert.True(t, m.RemoveTournament(tr.ID))
	assert.False(t, m.RemoveTournament(tr.ID))
	_, ok = m.GetTournament(tr.ID)
	assert.False(t, ok)
}

func TestManagerStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tournaments.yaml")
	m := NewManager(path, testDecks, dice.NewGenerator(7), zaptest.NewLogger(t))

	open, err := m.CreateTournament("open", 2, field.DefaultRules(), 4, FlagIs2v2)
	require.NoError(t, err)
	require.NoError(t, open.Register(3, 10, "x", "X", "pw"))

	cup, err := m.CreateTournament("cup", 1, field.DefaultRules(), 8, 0)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, cup.Register(i, uint32(100+i), "", "", ""))
	}
	require.NoError(t, cup.Start())
	require.NoError(t, cup.ReportResult(1))
	require.NoError(t, m.Save())

	loaded := NewManager(path, testDecks, dice.NewGenerator(7), zaptest.NewLogger(t))
	require.NoError(t, loaded.Load())

	gotOpen, ok := loaded.GetTournamentByName("open")
	require.True(t, ok)
	assert.Equal(t, StateRegistration, gotOpen.State())
	assert.ErrorIs(t, gotOpen.Register(3, 11, "y", "", "bad"), ErrWrongPassword)

	gotCup, ok := loaded.GetTournament(cup.ID)
	require.True(t, ok)
	assert.Equal(t, StateInProgress, gotCup.State())
	assert.Equal(t, cup.Snapshot().Teams, gotCup.Snapshot().Teams)

	round, opp, ok := gotCup.NextMatch(1)
	require.True(t, ok)
	assert.Equal(t, 2, round)
	assert.Equal(t, -1, opp)
	require.NoError(t, gotCup.ReportResult(2))
	_, opp, ok = gotCup.NextMatch(1)
	require.True(t, ok)
	assert.Equal(t, 2, opp)
}

func TestReadStateRejectsInconsistentResults(t *testing.T) {
	m := NewManager("", nil, dice.NewGenerator(1), zaptest.NewLogger(t))
	state := `
- name: broken
  registration_complete: true
  teams:
    - {max_players: 1, rounds_cleared: 1, players: [{account_id: 1}]}
    - {max_players: 1, rounds_cleared: 1, players: [{account_id: 2}]}
    - {max_players: 1}
    - {max_players: 1}
`
	err := m.ReadState(bytes.NewBufferString(state))
	assert.ErrorIs(t, err, ErrInconsistentResult)
}

func TestWriteStateEmpty(t *testing.T) {
	m := NewManager("", nil, nil, nil)
	var buf bytes.Buffer
	require.NoError(t, m.WriteState(&buf))
	require.NoError(t, m.ReadState(&buf))
	assert.Empty(t, m.GetAllTournaments())
	assert.NoError(t, m.Load())
	assert.NoError(t, m.Save())
}
