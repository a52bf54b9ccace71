package battle

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/dice"
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
  - id: 0x0002
    name: Kranz
    type: HUNTERS_SC
    class: HU_SC
    hp: "14"
    ap: "3"
    tp: "2"
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

var testClock = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testDeck(scID uint16, teamID uint8, name string) DeckEntry {
	d := DeckEntry{Name: name, PlayerName: name, TeamID: teamID}
	d.CardIDs[0] = scID
	for z := 1; z < DeckSize; z++ {
		d.CardIDs[z] = 0x0030
	}
	return d
}

type harness struct {
	battle *Battle
	events *EventLog
}

func newHarness(t *testing.T, seed int64) *harness {
	t.Helper()
	return newHarnessWithCards(t, seed, testCards)
}

func newHarnessWithCards(t *testing.T, seed int64, cardYAML string) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	idx, err := cards.LoadIndex(strings.NewReader(cardYAML), logger)
	require.NoError(t, err)

	events := &EventLog{}
	b := New(idx, Options{
		Logger:         logger,
		Random:         dice.NewRecorder(dice.NewGenerator(seed), nil),
		Broadcaster:    events,
		Now:            func() time.Time { return testClock },
		SkipDeckVerify: true,
	})
	return &harness{battle: b, events: events}
}

func (h *harness) register(t *testing.T) {
	t.Helper()
	h.registerDecks(t, testDeck(0x0001, 0, "alpha"), testDeck(0x0002, 1, "beta"))
}

func (h *harness) registerDecks(t *testing.T, alpha, beta DeckEntry) {
	t.Helper()
	mr, err := field.LoadMap(strings.NewReader(testMap), nil)
	require.NoError(t, err)
	mr.NumPlayers = 2
	mr.NumTeam0Players = 1
	require.True(t, h.battle.SetMapAndRules(*mr))
	require.NoError(t, h.battle.RegisterDeck(0, alpha))
	require.NoError(t, h.battle.RegisterDeck(1, beta))
	h.battle.SetPlayerName(0, "alpha")
	h.battle.SetPlayerName(1, "beta")
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	h.register(t)
	h.startRegistered(t)
}

func (h *harness) startRegistered(t *testing.T) {
	t.Helper()
	started, err := h.battle.StartBattle()
	require.NoError(t, err)
	require.True(t, started)
}

// enterMainBattle runs the starter roll and redraw steps.
func (h *harness) enterMainBattle(t *testing.T) {
	t.Helper()
	h.start(t)
	h.finishSetup(t)
}

func (h *harness) finishSetup(t *testing.T) {
	t.Helper()
	for z := uint8(0); z < 2; z++ {
		h.battle.EndStarterRoll(z)
	}
	for z := uint8(0); z < 2; z++ {
		require.Equal(t, ErrNone, h.battle.EndRedrawPhase(z))
	}
	require.Equal(t, SetupMainBattle, h.battle.SetupPhase())
}

func TestRegistrationProgress(t *testing.T) {
	h := newHarness(t, 1)
	b := h.battle
	assert.Equal(t, RegistrationAwaitingNumPlayers, b.RegistrationPhase())

	mr, err := field.LoadMap(strings.NewReader(testMap), nil)
	require.NoError(t, err)
	mr.NumPlayers = 2
	mr.NumTeam0Players = 1
	require.True(t, b.SetMapAndRules(*mr))
	assert.Equal(t, RegistrationAwaitingPlayers, b.RegistrationPhase())

	// The map cannot be replaced once the player count is known.
	assert.False(t, b.SetMapAndRules(*mr))

	require.NoError(t, b.RegisterDeck(0, testDeck(0x0001, 0, "alpha")))
	assert.Equal(t, RegistrationAwaitingPlayers, b.RegistrationPhase())
	require.NoError(t, b.RegisterDeck(1, testDeck(0x0002, 0, "beta")))
	assert.Equal(t, RegistrationAwaitingDecks, b.RegistrationPhase())
	require.NoError(t, b.RegisterDeck(1, testDeck(0x0002, 1, "beta")))
	assert.Equal(t, RegistrationRegistered, b.RegistrationPhase())
	assert.NotEmpty(t, h.events.OfCode(EventDecks))
}

func TestSetMapDefaultsPlayersPerTeam(t *testing.T) {
	h := newHarness(t, 1)
	mr, err := field.LoadMap(strings.NewReader(testMap), nil)
	require.NoError(t, err)
	mr.NumPlayers = 4
	mr.NumTeam0Players = 2
	require.True(t, h.battle.SetMapAndRules(*mr))
	assert.Equal(t, uint8(2), h.battle.MapAndRules().NumPlayersPerTeam)
}

func TestDisableTimeLimitsClearsRules(t *testing.T) {
	logger := zaptest.NewLogger(t)
	b := New(cards.NewIndex(nil, logger), Options{Logger: logger, DisableTimeLimits: true})
	mr, err := field.LoadMap(strings.NewReader(testMap), nil)
	require.NoError(t, err)
	mr.NumPlayers = 2
	require.True(t, b.SetMapAndRules(*mr))
	assert.Zero(t, b.MapAndRules().Rules.OverallTimeLimit)
	assert.Zero(t, b.MapAndRules().Rules.PhaseTimeLimit)
}

func TestStartBattleRejectedWhenIncomplete(t *testing.T) {
	h := newHarness(t, 1)
	require.NoError(t, h.battle.RegisterDeck(0, testDeck(0x0001, 0, "alpha")))

	started, err := h.battle.StartBattle()
	require.NoError(t, err)
	assert.False(t, started)
	assert.False(t, h.battle.InProgress())
	assert.Len(t, h.events.OfCode(EventRejectBattleStart), 1)
}

func TestStartBattle(t *testing.T) {
	h := newHarness(t, 7)
	h.start(t)
	b := h.battle

	assert.True(t, b.InProgress())
	assert.Equal(t, SetupStarterRolls, b.SetupPhase())
	assert.Equal(t, RegistrationBattleStarted, b.RegistrationPhase())
	assert.Len(t, h.events.OfCode(EventLoadEnvironment), 1)

	for z := uint8(0); z < 2; z++ {
		p := b.Player(z)
		require.NotNil(t, p, "client %d", z)
		assert.Equal(t, 5, p.HandSize())
		require.NotNil(t, p.SC)
		assert.False(t, p.SC.Flags.IsDestroyed())
	}
	assert.Nil(t, b.Player(2))

	// Start tiles are normalized to vacant terrain once the SCs stand on them.
	assert.Equal(t, field.Location{X: 1, Y: 1}, field.Location{X: b.Player(0).SC.Loc.X, Y: b.Player(0).SC.Loc.Y})
	assert.Equal(t, field.Location{X: 3, Y: 3}, field.Location{X: b.Player(1).SC.Loc.X, Y: b.Player(1).SC.Loc.Y})

	flags := b.StateFlags()
	assert.Contains(t, []uint8{0, 1}, flags.FirstTeamTurn)
	assert.Equal(t, flags.FirstTeamTurn, flags.CurrentTeamTurn1)
}

func TestStartBattleRequiresRandomSource(t *testing.T) {
	logger := zaptest.NewLogger(t)
	idx, err := cards.LoadIndex(strings.NewReader(testCards), logger)
	require.NoError(t, err)
	h := &harness{battle: New(idx, Options{Logger: logger, SkipDeckVerify: true}), events: &EventLog{}}
	h.register(t)

	started, err := h.battle.StartBattle()
	assert.Error(t, err)
	assert.False(t, started)
}

func TestStarterRollAndRedraw(t *testing.T) {
	h := newHarness(t, 3)
	h.start(t)
	b := h.battle

	assert.Equal(t, ErrWrongPhase, b.RedrawInitialHand(0))

	b.EndStarterRoll(0)
	assert.Equal(t, SetupStarterRolls, b.SetupPhase())
	b.EndStarterRoll(1)
	assert.Equal(t, SetupHandRedrawOption, b.SetupPhase())

	assert.Equal(t, ErrNone, b.RedrawInitialHand(0))
	assert.Equal(t, 5, b.Player(0).HandSize())
	assert.Equal(t, ErrNoSuchPlayer, b.RedrawInitialHand(3))

	assert.Equal(t, ErrNone, b.EndRedrawPhase(0))
	assert.Equal(t, SetupHandRedrawOption, b.SetupPhase())
	assert.Equal(t, ErrNone, b.EndRedrawPhase(1))
	assert.Equal(t, SetupMainBattle, b.SetupPhase())
	assert.Equal(t, PhaseDice, b.BattlePhase())
	assert.Equal(t, uint16(1), b.RoundNum())
}

func TestEndPhaseAdvancesThroughRound(t *testing.T) {
	h := newHarness(t, 11)
	h.enterMainBattle(t)
	b := h.battle

	turn := b.StateFlags().CurrentTeamTurn1
	var active, waiting uint8 = 0, 1
	if b.Player(1).TeamID == turn {
		active, waiting = 1, 0
	}

	// Only the team in turn can end a phase.
	b.EndPhase(waiting)
	assert.Equal(t, PhaseDice, b.BattlePhase())

	b.EndPhase(active)
	assert.Equal(t, PhaseSet, b.BattlePhase())
	p := b.Player(active)
	assert.NotZero(t, p.ATKPoints+p.DEFPoints)

	b.EndPhase(active)
	assert.Equal(t, PhaseMove, b.BattlePhase())
	b.EndPhase(active)
	assert.Equal(t, PhaseAction, b.BattlePhase())
}

func TestCommandsRejectedOutsideTheirPhase(t *testing.T) {
	h := newHarness(t, 5)
	h.start(t)
	b := h.battle

	assert.Equal(t, ErrWrongPhase, b.DiscardFromHand(0, b.Player(0).HandRef(0)))
	assert.Equal(t, ErrWrongPhase, b.SetCardFromHand(0, b.Player(0).HandRef(0), 7, field.Location{}, 0xFF))
	assert.Equal(t, ErrWrongPhase, b.MoveCard(0, 0, field.Location{X: 2, Y: 1}))
	assert.Equal(t, ErrWrongPhase, b.DeclareAction(0, NewActionState()))
	assert.Equal(t, ErrWrongPhase, b.EndAttackList(0))
}

func TestDispatchReportsResults(t *testing.T) {
	h := newHarness(t, 5)
	h.start(t)
	h.events.Reset()

	code, err := h.battle.Dispatch(42, DiscardCommand{ClientID: 0, Ref: NoRef})
	require.NoError(t, err)
	assert.Equal(t, ErrWrongPhase, code)

	results := h.events.OfCode(EventActionResult)
	require.Len(t, results, 1)
	res := results[0].(*ActionResultEvent)
	assert.Equal(t, uint32(42), res.Sequence)
	assert.Equal(t, int32(ErrWrongPhase), res.ErrorCode)
	assert.Equal(t, ResponseImmediate, res.ResponsePhase)

	h.events.Reset()
	_, err = h.battle.Dispatch(43, EndRedrawCommand{ClientID: 0})
	require.NoError(t, err)
	results = h.events.OfCode(EventActionResult)
	require.Len(t, results, 2)
	assert.Equal(t, ResponseAck, results[0].(*ActionResultEvent).ResponsePhase)
	assert.Equal(t, ResponseFinal, results[1].(*ActionResultEvent).ResponsePhase)

	_, err = h.battle.Dispatch(44, nil)
	assert.Error(t, err)
}

func TestSameSeedSameBattle(t *testing.T) {
	play := func(t *testing.T) []Event {
		h := newHarness(t, 99)
		h.enterMainBattle(t)
		for z := uint8(0); z < 2; z++ {
			h.battle.EndPhase(z)
		}
		return h.events.Events
	}
	first := play(t)
	second := play(t)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestForceBattleResult(t *testing.T) {
	h := newHarness(t, 2)
	h.enterMainBattle(t)
	b := h.battle

	winner, err := b.WinnerTeam()
	require.NoError(t, err)
	assert.Equal(t, -1, winner)

	require.NoError(t, b.ForceBattleResult(1, true))
	assert.Equal(t, SetupBattleEnded, b.SetupPhase())
	winner, err = b.WinnerTeam()
	require.NoError(t, err)
	assert.Equal(t, int(b.Player(1).TeamID), winner)

	assert.False(t, b.IsFinished())
	b.EndBattle()
	assert.True(t, b.IsFinished())

	assert.Error(t, b.ForceBattleResult(3, true))
}

func TestForceDestroyStoryCharacterEndsBattle(t *testing.T) {
	h := newHarness(t, 4)
	h.enterMainBattle(t)
	b := h.battle

	// With no set cards there is nothing to destroy.
	assert.Error(t, b.ForceDestroyFieldCharacter(0, 0))

	b.Player(0).SC.Flags.Set(CardFlagDestroyed)
	b.checkForDestroyedCards()
	assert.True(t, b.checkForBattleEnd())
	winner, err := b.WinnerTeam()
	require.NoError(t, err)
	assert.Equal(t, int(b.Player(1).TeamID), winner)
}

func TestWinnerTeamRejectsInconsistentFlags(t *testing.T) {
	h := newHarness(t, 2)
	h.start(t)
	b := h.battle
	b.Player(0).AssistFlags.Set(AssistFlagHasWon)
	b.Player(1).AssistFlags.Set(AssistFlagHasWon)
	_, err := b.WinnerTeam()
	assert.Error(t, err)
}

func TestRefListBinary(t *testing.T) {
	l := NewRefList(4)
	l.Add(0x0102)
	l.Add(0x0305)
	data, err := l.MarshalBinary()
	require.NoError(t, err)

	var out RefList
	require.NoError(t, out.UnmarshalBinary(data))
	assert.Equal(t, l.Slice(), out.Slice())
	assert.True(t, out.Contains(0x0305))

	assert.Error(t, out.UnmarshalBinary([]byte{1}))
}

func TestRefListJSON(t *testing.T) {
	pa := NewActionState()
	pa.Targets.Add(0x0102)
	pa.Targets.Add(0x0305)
	pa.Actions.Add(0x0004)

	data, err := json.Marshal(pa)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Targets":[258,773]`)
	assert.Contains(t, string(data), `"Actions":[4]`)

	out := NewActionState()
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, pa.Targets.Slice(), out.Targets.Slice())
	assert.Equal(t, pa.Actions.Slice(), out.Actions.Slice())
	assert.Equal(t, MaxActionCards, out.Actions.Cap())

	empty, err := json.Marshal(NewRefList(4))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))

	l := NewRefList(2)
	assert.Error(t, json.Unmarshal([]byte(`[1,2,3]`), &l))
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &l))
}
