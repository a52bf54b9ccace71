package battle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/dice"
	"github.com/magefree/ep3-server-go/internal/game/field"
)

const actionCards = testCards + `
  - id: 0x0005
    name: Teifu
    type: HUNTERS_SC
    class: HU_SC
    hp: "15"
    ap: "3"
    tp: "2"
    mv: "2"
    right_colors: [2]
  - id: 0x0101
    name: Slash
    type: ACTION
    class: ATTACK_ACTION
    left_colors: [2]
  - id: 0x0102
    name: Zonde
    type: ACTION
    class: TECH
    left_colors: [5]
  - id: 0x0103
    name: Guard
    type: ACTION
    class: DEFENSE_ACTION
    left_colors: [1]
`

// Deck indexes of the action decks.
const (
	deckIndexZonde uint8 = 1
	deckIndexGuard uint8 = 2
	deckIndexSlash uint8 = 3
)

func actionDeck(teamID uint8, name string) DeckEntry {
	d := DeckEntry{Name: name, PlayerName: name, TeamID: teamID}
	d.CardIDs[0] = 0x0005
	d.CardIDs[deckIndexZonde] = 0x0102
	d.CardIDs[deckIndexGuard] = 0x0103
	for z := int(deckIndexSlash); z < DeckSize; z++ {
		d.CardIDs[z] = 0x0101
	}
	return d
}

// newActionHarness returns a battle in the action phase of a turn where
// attacks are allowed, with points to spend on both sides.
func newActionHarness(t *testing.T, seed int64) *harness {
	t.Helper()
	h := newHarnessWithCards(t, seed, actionCards)
	h.registerDecks(t, actionDeck(0, "alpha"), actionDeck(1, "beta"))
	h.startRegistered(t)
	h.finishSetup(t)

	b := h.battle
	b.battlePhase = PhaseAction
	b.roundNum = 2
	b.updateStateFlags(false)
	for z := uint8(0); z < 2; z++ {
		p := b.Player(z)
		p.ATKPoints, p.DEFPoints = 5, 5
		p.sendSetCardUpdates(b, true)
		p.updateHandAndEquipState(b, true)
	}
	return h
}

func attackWith(b *Battle, clientID uint8, actions ...uint8) ActionState {
	p := b.Player(clientID)
	pa := NewActionState()
	pa.ClientID = clientID
	pa.AttackerRef = p.Deck.SCCardRef()
	pa.Targets.Add(b.Player(clientID ^ 1).Deck.SCCardRef())
	for _, index := range actions {
		pa.Actions.Add(p.Deck.RefForIndex(index))
	}
	return pa
}

func TestHealRaisesHPWithoutDestroying(t *testing.T) {
	tests := []struct {
		name  string
		hp    int16
		maxHP int16
		value int16
		want  int16
	}{
		{"heal", 10, 15, 5, 15},
		{"capped at max", 10, 12, 5, 12},
		{"clamped value", 10, 15, 500, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 3)
			h.enterMainBattle(t)
			b := h.battle
			sc := b.Player(0).SC
			sc.HP, sc.MaxHP = tt.hp, tt.maxHP

			var cond Condition
			cond.Clear()
			cond.Type = cards.CondHeal
			assert.True(t, b.executeEffect(&cond, sc, tt.value, 0, cards.CondHeal, PermitPersistentStats, NoRef))
			assert.Equal(t, tt.want, sc.HP)
			assert.False(t, sc.Flags.IsDestroyed())
		})
	}
}

func TestHealNeedsPersistentStatPermission(t *testing.T) {
	h := newHarness(t, 3)
	h.enterMainBattle(t)
	b := h.battle
	sc := b.Player(0).SC
	sc.HP, sc.MaxHP = 10, 15

	var cond Condition
	cond.Clear()
	b.executeEffect(&cond, sc, 5, 0, cards.CondHeal, PermitChainStats, NoRef)
	assert.Equal(t, int16(10), sc.HP)
}

func TestEffectStatsStayClamped(t *testing.T) {
	tests := []struct {
		name  string
		t     cards.ConditionType
		value int16
		stat  func(c *Card) int16
		want  int16
	}{
		{"ap bonus", cards.CondMiscAPBonuses, 500, func(c *Card) int16 { return c.AP }, 99},
		{"tp bonus", cards.CondMiscTPBonuses, 500, func(c *Card) int16 { return c.TP }, 99},
		{"ap silence", cards.CondAPSilence, 500, func(c *Card) int16 { return c.AP }, 0},
		{"tp silence", cards.CondTPSilence, 500, func(c *Card) int16 { return c.TP }, 0},
		{"chain ap boost", cards.CondAPBoost, 500, func(c *Card) int16 { return int16(c.Chain.APEffectBonus) }, 99},
		{"chain tp boost", cards.CondTPBoost, 500, func(c *Card) int16 { return int16(c.Chain.TPEffectBonus) }, 99},
	}
	perms := PermitChainStats | PermitPersistentStats
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 3)
			h.enterMainBattle(t)
			b := h.battle
			sc := b.Player(0).SC

			var cond Condition
			cond.Clear()
			cond.Type = tt.t
			b.executeEffect(&cond, sc, tt.value, 0, tt.t, perms, NoRef)
			assert.Equal(t, tt.want, tt.stat(sc))
			for _, v := range []int16{sc.HP, sc.AP, sc.TP, cond.Value} {
				assert.GreaterOrEqual(t, v, int16(-99))
				assert.LessOrEqual(t, v, int16(99))
			}
		})
	}
	assert.Equal(t, int16(99), clampStat(1000))
	assert.Equal(t, int16(-99), clampStat(-1000))
}

func TestConditionSlotsAreCapped(t *testing.T) {
	h := newHarness(t, 3)
	h.enterMainBattle(t)
	b := h.battle
	sc := b.Player(0).SC
	sc.Chain.Conditions.Clear()

	kinds := []cards.ConditionType{
		cards.CondHold, cards.CondGuom, cards.CondParalyze, cards.CondPierce, cards.CondFreeze,
		cards.CondAcid, cards.CondImmobile, cards.CondAerial, cards.CondElude,
	}
	require.Len(t, kinds, MaxConditions)
	for z, kind := range kinds {
		eff := cards.Effect{Type: kind}
		assert.Equal(t, z, sc.applyAbnormalCondition(b, &eff, 0, sc.Ref, sc.Ref, 1, 1, 0))
	}
	eff := cards.Effect{Type: cards.CondParry}
	assert.Equal(t, -1, sc.applyAbnormalCondition(b, &eff, 0, sc.Ref, sc.Ref, 1, 1, 0))
	assert.Equal(t, MaxConditions, sc.Chain.Conditions.Count())
	assert.Nil(t, sc.Chain.Conditions.Find(cards.CondParry))
}

func TestUpdateOrdersCompactsByPosition(t *testing.T) {
	tests := []struct {
		name   string
		orders []int // -1 is an empty slot
		want   []int
	}{
		{"sorted", []int{0, 1, 2}, []int{0, 1, 2}},
		{"gap after clear", []int{0, -1, 2, 3}, []int{0, -1, 1, 2}},
		{"fresh condition", []int{0, 10, 1}, []int{0, 1, 2}},
		{"leading gap", []int{-1, -1, 4, 9}, []int{-1, -1, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cs Conditions
			cs.Clear()
			for z, order := range tt.orders {
				if order >= 0 {
					cs[z].Type = cards.CondHold
					cs[z].Order = uint8(order)
				}
			}
			before := cs.Count()
			cs.UpdateOrders()
			assert.Equal(t, before, cs.Count())
			for z, want := range tt.want {
				if want < 0 {
					assert.True(t, cs[z].IsEmpty())
					continue
				}
				assert.Equal(t, uint8(want), cs[z].Order, "slot %d", z)
			}
		})
	}
}

func TestClearingConditionKeepsRelativeOrder(t *testing.T) {
	h := newHarness(t, 3)
	h.enterMainBattle(t)
	b := h.battle
	sc := b.Player(0).SC
	sc.Chain.Conditions.Clear()

	for _, kind := range []cards.ConditionType{cards.CondHold, cards.CondGuom, cards.CondParalyze} {
		eff := cards.Effect{Type: kind}
		sc.applyAbnormalCondition(b, &eff, 0, sc.Ref, sc.Ref, 1, 1, 0)
	}
	cs := &sc.Chain.Conditions
	b.applyStatDeltasAndClearCondition(cs.Find(cards.CondGuom), sc)
	cs.UpdateOrders()

	assert.Equal(t, 2, cs.Count())
	assert.Less(t, cs.Find(cards.CondHold).Order, cs.Find(cards.CondParalyze).Order)
}

func TestInvalidLinkageIsNotQueued(t *testing.T) {
	tests := []struct {
		name    string
		actions []uint8
		want    ErrorCode
	}{
		{"unlinked first card", []uint8{deckIndexZonde}, ErrInvalidLinkage},
		{"unlinked second card", []uint8{deckIndexSlash, deckIndexZonde}, ErrInvalidLinkage},
		{"linked", []uint8{deckIndexSlash}, ErrNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newActionHarness(t, 8)
			b := h.battle
			pa := attackWith(b, 0, tt.actions...)

			ok, code := b.IsActionLegal(&pa)
			assert.Equal(t, tt.want, code)
			assert.Equal(t, tt.want == ErrNone, ok)

			assert.Equal(t, tt.want, b.DeclareAction(0, pa))
			if tt.want == ErrNone {
				assert.Equal(t, 1, b.numPendingAttacks)
				assert.True(t, b.Player(0).SC.Flags.Has(CardFlagAttackDeclared))
			} else {
				assert.Zero(t, b.numPendingAttacks)
			}
		})
	}
}

func TestIsActionLegalHasNoSideEffects(t *testing.T) {
	h := newActionHarness(t, 8)
	b := h.battle

	for _, pa := range []ActionState{
		attackWith(b, 0, deckIndexSlash),
		attackWith(b, 0, deckIndexZonde),
		attackWith(b, 1, deckIndexSlash),
	} {
		digest := b.Digest()
		events := len(h.events.Events)
		before := pa

		ok1, code1 := b.IsActionLegal(&pa)
		ok2, code2 := b.IsActionLegal(&pa)
		assert.Equal(t, ok1, ok2)
		assert.Equal(t, code1, code2)
		assert.Equal(t, digest, b.Digest())
		assert.Len(t, h.events.Events, events)
		assert.Equal(t, before, pa)
	}
}

func TestDefenseFailuresKeepTheirCodes(t *testing.T) {
	h := newActionHarness(t, 8)
	b := h.battle
	own := b.Player(0)
	guard := own.Deck.RefForIndex(deckIndexGuard)

	pa := NewActionState()
	pa.ClientID = 0
	pa.Targets.Add(own.Deck.SCCardRef())
	pa.Actions.Add(guard)
	_, code := b.IsActionLegal(&pa)
	assert.Equal(t, ErrInvalidDefense, code)

	// The opposing SC attacks with no action cards and has no top colors.
	pa.OriginalAttackerRef = b.Player(1).Deck.SCCardRef()
	_, code = b.IsActionLegal(&pa)
	assert.Equal(t, ErrDefenseColor, code)

	own.DEFPoints = 0
	own.updateHandAndEquipState(b, false)
	_, code = b.IsActionLegal(&pa)
	assert.Equal(t, ErrInsufficientPoints, code)
}

func TestActionQueueCapacity(t *testing.T) {
	h := newActionHarness(t, 8)
	b := h.battle

	b.numPendingAttacks = MaxQueued
	assert.Equal(t, ErrActionQueueFull, b.DeclareAction(0, attackWith(b, 0, deckIndexSlash)))
	assert.Equal(t, MaxQueued, b.numPendingAttacks)
	assert.False(t, b.Player(0).SC.Flags.Has(CardFlagAttackDeclared))

	b.numPendingAttacks = MaxQueued - 1
	assert.Equal(t, ErrNone, b.DeclareAction(0, attackWith(b, 0, deckIndexSlash)))
	assert.Equal(t, MaxQueued, b.numPendingAttacks)
	assert.Equal(t, b.Player(0).Deck.SCCardRef(), b.pendingAttacks[MaxQueued-1].AttackerRef)
}

func TestSettingBlockedReasons(t *testing.T) {
	tests := []struct {
		name string
		flag AssistFlags
		want ErrorCode
	}{
		{"skipping turn", AssistFlagIsSkippingTurn, ErrSkippingTurn},
		{"field characters blocked", AssistFlagCannotSetFC, ErrCannotSetFC},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 6)
			h.enterMainBattle(t)
			b := h.battle
			p := b.Player(0)
			p.AssistFlags.Set(tt.flag)
			p.updateHandAndEquipState(b, false)

			assert.Equal(t, tt.want, b.rulerErrorForSettingCard(0, p.HandRef(0), nil, 0xFF))
		})
	}
}

func TestParryCandidatesExcludeActorsAndStoryCharacters(t *testing.T) {
	h := newHarness(t, 6)
	h.enterMainBattle(t)
	b := h.battle
	d0, d1 := b.Player(0).Deck, b.Player(1).Deck
	attacker := d1.RefForIndex(1)
	setter := d1.RefForIndex(2)
	target := d0.RefForIndex(1)
	bystander := d0.RefForIndex(2)
	other := d1.RefForIndex(3)

	refs := []CardRef{attacker, d0.SCCardRef(), setter, target, bystander, d1.SCCardRef(), other}
	got := b.parryCandidates(refs, attacker, setter, target)
	assert.Equal(t, []CardRef{bystander, other}, got)

	assert.Empty(t, b.parryCandidates([]CardRef{attacker, target, d0.SCCardRef()}, attacker, setter, target))
	assert.Equal(t, NoRef, b.pickParryTarget(b.Player(0), nil))
}

func TestParryTargetIsDeterministic(t *testing.T) {
	pick := func(t *testing.T) (CardRef, string) {
		h := newHarness(t, 21)
		h.enterMainBattle(t)
		b := h.battle
		d0 := b.Player(0).Deck
		candidates := []CardRef{d0.RefForIndex(2), d0.RefForIndex(3), d0.RefForIndex(4)}
		ref := b.pickParryTarget(b.Player(0), candidates)
		require.Contains(t, candidates, ref)
		return ref, b.Digest()
	}
	ref1, digest1 := pick(t)
	ref2, digest2 := pick(t)
	assert.Equal(t, ref1, ref2)
	assert.Equal(t, digest1, digest2)
}

func TestParryPickUsesDiceSum(t *testing.T) {
	h := newHarness(t, 6)
	h.enterMainBattle(t)
	b := h.battle
	d0 := b.Player(0).Deck
	candidates := []CardRef{d0.RefForIndex(2), d0.RefForIndex(3), d0.RefForIndex(4)}

	// The first dice of the two rolls are 2 and 1, and 3 selects the first
	// candidate.
	b.rng = dice.NewRecorder(dice.NewStream([]uint32{1, 2, 0}, nil), nil)
	assert.Equal(t, candidates[0], b.pickParryTarget(b.Player(0), candidates))
}

func TestMovePathCostAndSteps(t *testing.T) {
	tests := []struct {
		name    string
		dest    field.Location
		blocked []field.Location
		cost    int
		steps   []field.Location
	}{
		{
			name:  "adjacent",
			dest:  field.Location{X: 2, Y: 1},
			cost:  1,
			steps: []field.Location{{X: 2, Y: 1}, {X: 2, Y: 1}},
		},
		{
			name:  "straight",
			dest:  field.Location{X: 3, Y: 1},
			cost:  2,
			steps: []field.Location{{X: 3, Y: 1}, {X: 3, Y: 1}, {X: 2, Y: 1}},
		},
		{
			name:    "around a blocked tile",
			dest:    field.Location{X: 2, Y: 2},
			blocked: []field.Location{{X: 2, Y: 1}},
			cost:    2,
			steps:   []field.Location{{X: 2, Y: 2}, {X: 2, Y: 2}, {X: 1, Y: 2}},
		},
		{
			name:    "blocked",
			dest:    field.Location{X: 3, Y: 1},
			blocked: []field.Location{{X: 2, Y: 1}},
		},
		{
			name: "beyond move range",
			dest: field.Location{X: 3, Y: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 12)
			h.enterMainBattle(t)
			b := h.battle
			p := b.Player(0)
			p.ATKPoints = 5
			p.sendSetCardUpdates(b, true)
			p.updateHandAndEquipState(b, true)
			for _, loc := range tt.blocked {
				b.mapAndRules.SetOccupied(int(loc.X), int(loc.Y))
			}

			path := b.MovePathTo(0, p.Deck.SCCardRef(), tt.dest)
			if tt.steps == nil {
				assert.Nil(t, path)
				return
			}
			require.NotNil(t, path)
			assert.Equal(t, tt.cost, path.Cost)
			require.Len(t, path.Steps, len(tt.steps))
			for z, want := range tt.steps {
				assert.Equal(t, want.X, path.Steps[z].X, "step %d", z)
				assert.Equal(t, want.Y, path.Steps[z].Y, "step %d", z)
			}
		})
	}
}

func TestStarterRollRerollsTies(t *testing.T) {
	tests := []struct {
		name      string
		rolls     []uint32
		wantFirst uint8
	}{
		{"lower sum opens", []uint32{0, 4}, 0},
		{"second team lower", []uint32{5, 1}, 1},
		{"tie rerolls", []uint32{2, 2, 3, 1}, 1},
		{"two ties", []uint32{0, 0, 5, 5, 1, 2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 1)
			h.start(t)
			b := h.battle
			stream := dice.NewStream(tt.rolls, nil)
			b.rng = dice.NewRecorder(stream, nil)

			require.NoError(t, b.determineFirstTeamTurn())
			assert.Equal(t, tt.wantFirst, b.firstTeamTurn)
			assert.Equal(t, tt.wantFirst, b.currentTeamTurn1)
			assert.Zero(t, stream.Remaining())
		})
	}
}
