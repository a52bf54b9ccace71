package battle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/field"
	"github.com/magefree/ep3-server-go/internal/game/rules"
)

// NumTrapTypes is the number of trap tile colors. Warp tiles use the same
// number of pair types.
const NumTrapTypes = 5

const (
	maxTrapTilesPerType = 8
	// roundLimit ends a battle that is still running after this many rounds.
	roundLimit = 1000
	// diceBoostAttempts bounds the reroll loop of the dice boost.
	diceBoostAttempts = 200
)

// DefaultTrapCardIDs are the assist cards a trap tile of each color can
// hand out when the battle options do not override them.
var DefaultTrapCardIDs = [NumTrapTypes][]uint16{
	// Red: Dice Fever, Heavy Fog, Muscular, Immortality, Snail Pace
	{0x00F7, 0x010F, 0x012E, 0x013B, 0x013C},
	// Blue: Gold Rush, Charity, Requiem
	{0x0131, 0x012B, 0x0133},
	// Purple: Powerless Rain, Trash 1, Empty Hand, Skip Draw
	{0x00FA, 0x0125, 0x0126, 0x0137},
	// Green: Brave Wind, Homesick, Fly
	{0x00FB, 0x014E, 0x0107},
	// Yellow: Dice+1, Battle Royale, Reverse Card, Giant Garden, Fix
	{0x00F6, 0x0242, 0x014B, 0x0145, 0x012D},
}

// Options configures a Battle. The zero value is usable except for Random,
// which must be set for a battle to start.
type Options struct {
	Logger      *zap.Logger
	Random      Random
	Broadcaster Broadcaster
	// Now is polled for the overall time limit. It defaults to time.Now.
	Now func() time.Time

	DisableInterference     bool
	AllowNonCPUInterference bool
	SkipDeckVerify          bool
	SkipD1D2Replace         bool
	DisableTimeLimits       bool
	Tournament              bool

	// TrapCardIDs overrides DefaultTrapCardIDs per trap color; an empty
	// entry keeps the default.
	TrapCardIDs [NumTrapTypes][]uint16
}

type playerSnapshot struct {
	chains        [NumChainSlots]ActionChain
	metadatas     [NumChainSlots]ActionMetadata
	shortStatuses [NumShortStatuses]CardShortStatus
}

// Battle is the authoritative state of one four-seat card battle. It is not
// safe for concurrent use; callers serialize every command.
type Battle struct {
	ID uuid.UUID

	logger      *zap.Logger
	options     Options
	index       cards.Lookup
	rng         Random
	broadcaster Broadcaster
	now         func() time.Time
	cycle       *rules.Cycle

	mapAndRules *field.MapAndRules
	decks       [MaxClients]*DeckEntry
	names       [MaxClients]string
	ownedCards  [MaxClients][]uint8
	players     [MaxClients]*Player
	assists     AssistServer

	stateFlags        StateFlags
	setupPhase        SetupPhase
	registrationPhase RegistrationPhase
	battlePhase       BattlePhase
	actionSubphase    cards.ActionSubphase
	roundNum          uint16
	firstTeamTurn     uint8
	currentTeamTurn1  uint8
	currentTeamTurn2  uint8

	teamEXP                 [2]int32
	teamDiceBonus           [2]uint8
	teamClientCount         [2]uint8
	teamNumAllyFCsDestroyed [2]int
	teamNumCardsDestroyed   [2]int

	// Declarations accepted this action phase.
	pendingAttacks    [MaxQueued]ActionState
	numPendingAttacks int
	// Attacks in resolution order; nextAttack is the one being resolved.
	attackRefs     [MaxQueued]CardRef
	attackStates   [MaxQueued]ActionState
	numAttacks     int
	nextAttack     int
	resolving      bool
	defenseStarted bool

	doneEnqueuing    [MaxClients]bool
	readyToEndPhase  [MaxClients]bool
	doneRedraw       [MaxClients]bool
	defenseListEnded [MaxClients]bool

	pbActionStates      [MaxClients]ActionState
	hasDonePB           [MaxClients]bool
	hasDonePBWithClient [MaxClients][MaxClients]bool

	warpPositions  [NumTrapTypes][2][2]uint8
	trapTiles      [NumTrapTypes][maxTrapTilesPerType][2]uint8
	numTrapTiles   [NumTrapTypes]uint8
	chosenTrapTile [NumTrapTypes]uint8

	moveError               ErrorCode
	setCardError            ErrorCode
	nextAssistCardSetNumber uint16
	shouldCopyPrevStates    bool
	prevStates              [MaxClients]playerSnapshot

	battleStart        time.Time
	overallTimeExpired bool
	inProgress         bool
	finished           bool
}

// New creates a battle in the registration phase.
func New(index cards.Lookup, opts Options) *Battle {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	b := &Battle{
		ID:                      uuid.New(),
		options:                 opts,
		index:                   index,
		rng:                     opts.Random,
		broadcaster:             opts.Broadcaster,
		now:                     now,
		mapAndRules:             &field.MapAndRules{Rules: field.DefaultRules()},
		setupPhase:              SetupRegistration,
		registrationPhase:       RegistrationAwaitingNumPlayers,
		battlePhase:             PhaseInvalid,
		actionSubphase:          cards.SubphaseAttack,
		roundNum:                1,
		firstTeamTurn:           0xFF,
		currentTeamTurn1:        0xFF,
		currentTeamTurn2:        0xFF,
		nextAssistCardSetNumber: 1,
	}
	b.logger = logger.With(zap.String("battle_id", b.ID.String()))
	b.cycle = rules.NewCycle(roundHooks{b}, b.logger)
	for t := range b.chosenTrapTile {
		b.chosenTrapTile[t] = 0xFF
	}
	b.stateFlags = NewStateFlags()
	b.updateStateFlags(true)
	return b
}

// Logger returns the battle's logger.
func (b *Battle) Logger() *zap.Logger { return b.logger }

// SetupPhase returns the lifecycle state.
func (b *Battle) SetupPhase() SetupPhase { return b.setupPhase }

// RegistrationPhase returns the registration state.
func (b *Battle) RegistrationPhase() RegistrationPhase { return b.registrationPhase }

// BattlePhase returns the round phase in progress.
func (b *Battle) BattlePhase() BattlePhase { return b.battlePhase }

// RoundNum returns the current round, starting at 1.
func (b *Battle) RoundNum() uint16 { return b.roundNum }

// StateFlags returns the last state record sent to clients.
func (b *Battle) StateFlags() StateFlags { return b.stateFlags }

// MapAndRules returns the battle's map and rules. Callers must not modify it.
func (b *Battle) MapAndRules() *field.MapAndRules { return b.mapAndRules }

// Player returns the state of a seated client, or nil.
func (b *Battle) Player(clientID uint8) *Player { return b.player(clientID) }

// TeamEXP returns the shared experience of a team.
func (b *Battle) TeamEXP(team uint8) int32 { return b.teamEXP[team&1] }

// TeamDiceBonus returns the dice bonus a team's experience grants.
func (b *Battle) TeamDiceBonus(team uint8) uint8 { return b.teamDiceBonus[team&1] }

// IsFinished reports whether clients acknowledged the end of the battle.
func (b *Battle) IsFinished() bool { return b.finished }

// InProgress reports whether the battle has started.
func (b *Battle) InProgress() bool { return b.inProgress }

// PlayerName returns the name registered for a client.
func (b *Battle) PlayerName(clientID uint8) string {
	if clientID >= MaxClients {
		return ""
	}
	return b.names[clientID]
}

// IsCPU reports whether a CPU plays clientID's deck.
func (b *Battle) IsCPU(clientID uint8) bool {
	return clientID < MaxClients && b.decks[clientID] != nil && b.decks[clientID].IsCPUPlayer
}

// WinnerTeam returns the team whose players have all won, or -1 while no
// team has won.
func (b *Battle) WinnerTeam() (int, error) {
	var players, winners [2]int
	for _, p := range b.players {
		if p == nil {
			continue
		}
		players[p.TeamID&1]++
		if p.AssistFlags.Has(AssistFlagHasWon) {
			winners[p.TeamID&1]++
		}
	}
	if players[0] == 0 || players[1] == 0 {
		return -1, fmt.Errorf("winner team: at least one team has no players")
	}
	if winners[0] > 0 && winners[1] > 0 {
		return -1, fmt.Errorf("winner team: both teams have winning players")
	}
	for team := 0; team < 2; team++ {
		if winners[team] == 0 {
			continue
		}
		if winners[team] != players[team] {
			return -1, fmt.Errorf("winner team: only some players on team %d have won", team)
		}
		return team, nil
	}
	return -1, nil
}

func (b *Battle) player(clientID uint8) *Player {
	if clientID >= MaxClients {
		return nil
	}
	return b.players[clientID]
}

func (b *Battle) send(ev Event) {
	if b.broadcaster != nil {
		b.broadcaster.Broadcast(ev)
	}
}

func (b *Battle) random(n int) int {
	if n <= 0 {
		return 0
	}
	return b.rng.Intn(n)
}

func (b *Battle) definitionForID(cardID uint16) *cards.Definition {
	if cardID == 0xFFFF || b.index == nil {
		return nil
	}
	return b.index.DefinitionForID(cardID)
}

func (b *Battle) cardIDForRef(ref CardRef) uint16 {
	if ref == NoRef {
		return 0xFFFF
	}
	p := b.player(ref.ClientID())
	if p == nil || p.Deck == nil {
		return 0xFFFF
	}
	return p.Deck.CardIDForRef(ref)
}

func (b *Battle) definitionForRef(ref CardRef) *cards.Definition {
	return b.definitionForID(b.cardIDForRef(ref))
}

// cardForRef returns the SC or set card with the given reference.
func (b *Battle) cardForRef(ref CardRef) *Card {
	if ref == NoRef {
		return nil
	}
	p := b.player(ref.ClientID())
	if p == nil {
		return nil
	}
	if p.SC != nil && p.SC.Ref == ref {
		return p.SC
	}
	for _, c := range p.SetCards {
		if c != nil && c.Ref == ref {
			return c
		}
	}
	return nil
}

func (b *Battle) currentTeamTurn() uint8 { return b.currentTeamTurn1 }

func (b *Battle) currentActionSubphase() cards.ActionSubphase { return b.actionSubphase }

func (b *Battle) prepareStateFlags() StateFlags {
	f := StateFlags{
		TurnNum:           b.roundNum,
		BattlePhase:       b.battlePhase,
		CurrentTeamTurn1:  b.currentTeamTurn1,
		CurrentTeamTurn2:  b.currentTeamTurn2,
		ActionSubphase:    b.actionSubphase,
		SetupPhase:        b.setupPhase,
		RegistrationPhase: b.registrationPhase,
		TeamDiceBonus:     b.teamDiceBonus,
		FirstTeamTurn:     b.firstTeamTurn,
	}
	for t := range b.teamEXP {
		f.TeamEXP[t] = uint32(max(b.teamEXP[t], 0))
	}
	if b.options.Tournament {
		f.TournamentFlag = 1
	}
	for z, p := range b.players {
		if p == nil {
			f.ClientSCCardTypes[z] = cards.TypeInvalid
		} else {
			f.ClientSCCardTypes[z] = p.SCType
		}
	}
	return f
}

// updateStateFlags publishes the state record when it changed.
func (b *Battle) updateStateFlags(always bool) {
	f := b.prepareStateFlags()
	if always || f != b.stateFlags {
		b.stateFlags = f
		b.send(&StateFlagsEvent{Flags: f})
	}
}

// addTeamEXP adds experience to a team and recomputes its dice bonus. Each
// Gold Rush affecting the team raises the gain by half.
func (b *Battle) addTeamEXP(team uint8, exp int32) {
	team &= 1
	for _, eff := range b.assists.ForTeam(b, team) {
		if eff == cards.AssistGoldRush {
			exp += exp / 2
		}
	}
	limit := int32(b.teamClientCount[team]) * 96
	b.teamEXP[team] = max(0, min(int32(int16(b.teamEXP[team]+exp)), limit))

	boost := 0
	if n := int32(b.teamClientCount[team]) * 12; n > 0 {
		boost = int(uint8(b.teamEXP[team] / n))
	}
	boost = int(uint8(b.adjustDiceBoostForCondition52(team, boost)))
	b.teamDiceBonus[team] = uint8(min(boost, 8))
}

func (b *Battle) forEachPlayer(fn func(p *Player)) {
	for _, p := range b.players {
		if p != nil {
			fn(p)
		}
	}
}

func (b *Battle) sendHandUpdates(always bool) {
	b.forEachPlayer(func(p *Player) { p.updateHandAndEquipState(b, always) })
}

func (b *Battle) refreshAssistFlags() {
	b.forEachPlayer(func(p *Player) { p.setAssistFlagsFromAssistEffects(b) })
}

func (b *Battle) computeAllOccupiedBits() {
	b.mapAndRules.ClearAllOccupied()
	b.forEachPlayer(func(p *Player) { p.setOccupiedBitsForSCAndCreatures(b) })
}

func (b *Battle) sendMapUpdate() {
	b.computeAllOccupiedBits()
	b.send(&MapUpdateEvent{Map: b.mapAndRules.Map, Overlay: b.mapAndRules.Overlay})
}

func (b *Battle) sendPlayerStats() {
	ev := &PlayerStatsEvent{}
	for z, p := range b.players {
		if p != nil {
			ev.Stats[z] = p.Stats
		}
	}
	b.send(ev)
}

func (b *Battle) sendDecks() {
	ev := &DecksEvent{}
	for z, d := range b.decks {
		if d == nil {
			ev.Entries[z].TeamID = 0xFF
			continue
		}
		ev.Present[z] = true
		ev.Entries[z] = *d
	}
	b.send(ev)
}

func (b *Battle) sendNames() {
	b.send(&PlayerNamesEvent{Names: b.names})
}

func (b *Battle) sendTrapTileLocations() {
	ev := &TrapTileLocationsEvent{}
	for t := range b.chosenTrapTile {
		if i := b.chosenTrapTile[t]; i != 0xFF {
			ev.Locations[t] = b.trapTiles[t][i]
		} else {
			ev.Locations[t] = [2]uint8{0xFF, 0xFF}
		}
	}
	b.send(ev)
}

// copyPrevStates snapshots what clients were last shown, so that updates
// produced while resolving a phase change are sent as one batch afterward.
func (b *Battle) copyPrevStates() {
	if b.shouldCopyPrevStates {
		return
	}
	b.shouldCopyPrevStates = true
	for z, p := range b.players {
		if p != nil {
			b.prevStates[z] = playerSnapshot{chains: p.chains, metadatas: p.metadatas, shortStatuses: p.shortStatuses}
		}
	}
}

func (b *Battle) sendSetCardUpdatesAndStatuses() {
	if !b.shouldCopyPrevStates {
		b.forEachPlayer(func(p *Player) {
			p.sendSetCardUpdates(b, false)
			p.sendShortStatusesIfNeeded(b, false)
		})
		return
	}
	b.shouldCopyPrevStates = false
	for z, p := range b.players {
		if p == nil {
			continue
		}
		p.chains = b.prevStates[z].chains
		p.metadatas = b.prevStates[z].metadatas
		p.sendSetCardUpdates(b, false)
		p.shortStatuses = b.prevStates[z].shortStatuses
		p.sendShortStatusesIfNeeded(b, false)
	}
}

func (b *Battle) checkForDestroyedCards() {
	b.forEachPlayer(func(p *Player) { p.onCardsDestroyed(b) })
	b.sendMapUpdate()
	b.sendHandUpdates(false)
}

func (b *Battle) destroyCardsWithZeroHP() {
	for _, p := range b.players {
		if p == nil {
			continue
		}
		destroyed := false
		for z := -1; z < MaxSetCards; z++ {
			card := p.SC
			if z >= 0 {
				card = p.SetCards[z]
			}
			if card != nil && !card.Flags.IsDestroyed() && card.HP < 1 {
				card.destroy(b, b.cardForRef(card.destroyerSCRef))
				destroyed = true
			}
		}
		if destroyed {
			p.updateHandAndEquipState(b, false)
		}
	}
}

// executeBombAssistEffect sends home every live set card whose HP is the
// highest or lowest on the field. Players shielded from assists do not
// contribute to the extremes, but their cards can still match them.
func (b *Battle) executeBombAssistEffect() {
	maxHP, minHP := int16(-999), int16(999)
	for z, p := range b.players {
		if p == nil || b.assists.ShouldBlock(b, uint8(z)) {
			continue
		}
		for _, card := range p.SetCards {
			if card != nil && !card.Flags.IsDestroyed() {
				maxHP = max(maxHP, card.HP)
				minHP = min(minHP, card.HP)
			}
		}
	}
	for _, p := range b.players {
		if p == nil {
			continue
		}
		for _, card := range p.SetCards {
			if card != nil && !card.Flags.IsDestroyed() && (card.HP == maxHP || card.HP == minHP) {
				p.handleHomesickFromBomb(b, card)
			}
		}
	}
}

// queueAttack appends an attack to the resolution queue.
func (b *Battle) queueAttack(c *Card, pa *ActionState) {
	if b.numAttacks >= MaxQueued {
		b.logger.Warn("attack queue is full", zap.Stringer("card", c.Ref))
		return
	}
	b.attackRefs[b.numAttacks] = c.Ref
	b.attackStates[b.numAttacks] = *pa
	b.numAttacks++
}

func (b *Battle) anyTargetExistsForAttack(as *ActionState) bool {
	attacker := b.cardForRef(as.AttackerRef)
	if attacker == nil || attacker.Flags.IsDestroyed() {
		return false
	}
	for z := 0; z < as.Targets.Len(); z++ {
		card := b.cardForRef(as.Targets.At(z))
		if card == nil {
			break
		}
		if !card.Flags.IsDestroyed() {
			return true
		}
	}
	return false
}

// roundHooks connects the round cycle to the battle's phase handlers.
type roundHooks struct {
	b *Battle
}

var stepPhases = map[rules.Step]BattlePhase{
	rules.StepDice:   PhaseDice,
	rules.StepSet:    PhaseSet,
	rules.StepMove:   PhaseMove,
	rules.StepAction: PhaseAction,
	rules.StepDraw:   PhaseDraw,
}

func (h roundHooks) After(_ context.Context, step rules.Step) {
	b := h.b
	switch step {
	case rules.StepDice:
		b.dicePhaseAfter()
	case rules.StepSet:
		b.setPhaseAfter()
	case rules.StepMove:
		b.movePhaseAfter()
	case rules.StepAction:
		b.actionPhaseAfter()
	case rules.StepDraw:
		b.drawPhaseAfter()
	}
}

func (h roundHooks) Before(_ context.Context, step rules.Step) {
	b := h.b
	b.battlePhase = stepPhases[step]
	switch step {
	case rules.StepDice:
		b.dicePhaseBefore()
	case rules.StepSet:
		b.setPhaseBefore()
	case rules.StepMove:
		b.movePhaseBefore()
	case rules.StepAction:
		b.actionPhaseBefore()
	case rules.StepDraw:
		b.drawPhaseBefore()
	}
}
