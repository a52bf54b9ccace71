package battle

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/field"
)

// Slots of Player.refs.
const (
	refHandBase   = 0
	refAssist     = 6
	refPrevAssist = 7
	refSetBase    = 8
	numPlayerRefs = 16
	discardLogLen = 16
)

// DeckEntry is a registered deck and the player that owns it.
type DeckEntry struct {
	Name        string
	PlayerName  string
	TeamID      uint8
	ClientID    uint8
	GodWhimFlag uint8
	IsCPUPlayer bool
	CardIDs     [DeckSize]uint16
}

// Player is the battle state of one client: its story character, set cards,
// hand, points and the snapshots last sent to clients.
type Player struct {
	ClientID uint8
	TeamID   uint8

	SCType   cards.CardType
	SCCardID uint16
	SCRef    CardRef
	SC       *Card
	SetCards [MaxSetCards]*Card

	refs           [numPlayerRefs]CardRef
	discardLog     [discardLogLen]CardRef
	discardReasons [discardLogLen]uint16

	Deck *Deck

	NumMulligansAllowed int
	ATKPoints           uint8
	DEFPoints           uint8
	ATKPoints2          uint8
	ATKPoints2Max       uint8
	ATKBonuses          uint8
	DEFBonuses          uint8
	DiceResults         [2]uint8
	DiceMax             uint8
	TotalSetCardsCost   uint8

	AssistRemainingTurns uint8
	AssistCardSetNumber  uint16
	SetAssistCardID      uint16
	AssistFlags          AssistFlags
	AssistDelayTurns     uint8
	godWhimHiddenCards   bool
	handStateA1          uint8

	StartFacing     field.Direction
	NumDestroyedFCs uint32
	Stats           PlayerBattleStats

	// An ally interferes at most once per battle in each direction.
	attackInterferences  uint8
	defenseInterferences uint8

	// Snapshots of what clients were last sent. Legality checks and assist
	// resolution read these rather than the live cards.
	handEquip     HandAndEquipState
	shortStatuses [NumShortStatuses]CardShortStatus
	chains        [NumChainSlots]ActionChain
	metadatas     [NumChainSlots]ActionMetadata
}

func newPlayer(clientID uint8) *Player {
	p := &Player{
		ClientID:            clientID,
		TeamID:              0xFF,
		SCType:              cards.TypeInvalid,
		SCRef:               NoRef,
		NumMulligansAllowed: 1,
		ATKPoints2Max:       6,
		DiceMax:             6,
		SetAssistCardID:     0xFFFF,
		StartFacing:         field.DirRight,
	}
	for z := range p.refs {
		p.refs[z] = NoRef
	}
	for z := range p.discardLog {
		p.discardLog[z] = NoRef
	}
	p.handEquip.Clear()
	for z := range p.shortStatuses {
		p.shortStatuses[z] = NewCardShortStatus()
	}
	for z := range p.chains {
		p.chains[z] = NewActionChain()
		p.metadatas[z] = NewActionMetadata()
	}
	return p
}

func (p *Player) init(b *Battle) error {
	entry := b.decks[p.ClientID]
	if entry == nil {
		return fmt.Errorf("client %d has no deck", p.ClientID)
	}
	p.Deck = NewDeck(p.ClientID, entry.CardIDs)
	if b.mapAndRules.Rules.DisableDeckShuffle {
		p.Deck.DisableShuffle()
	}
	if b.mapAndRules.Rules.DisableDeckLoop {
		p.Deck.DisableLoop()
	}

	p.SCRef = p.Deck.SCCardRef()
	p.SCCardID = p.Deck.SCCardID()
	p.TeamID = entry.TeamID
	def := b.definitionForRef(p.SCRef)
	if def == nil {
		return fmt.Errorf("client %d: SC card definition %04X is missing", p.ClientID, p.SCCardID)
	}
	if !def.Type.IsSC() {
		return fmt.Errorf("client %d: card %04X is not a story character", p.ClientID, p.SCCardID)
	}
	p.SCType = def.Type

	p.SC = newCard(p.SCCardID, p.SCRef, p.ClientID)
	if err := p.SC.init(b); err != nil {
		return fmt.Errorf("client %d: init SC: %w", p.ClientID, err)
	}
	p.drawInitialHand(b)
	b.onCardSet(p, p.SCRef)
	p.godWhimHiddenCards = entry.GodWhimFlag != 3
	return nil
}

// IsAlive reports whether the player's SC is still standing.
func (p *Player) IsAlive() bool {
	return p.SC != nil && !p.SC.Flags.IsDestroyed()
}

func (p *Player) assistEffects(b *Battle) []cards.AssistEffect {
	return b.assists.ForClient(b, p.ClientID)
}

func (p *Player) hasAssist(b *Battle, eff cards.AssistEffect) bool {
	for _, e := range p.assistEffects(b) {
		if e == eff {
			return true
		}
	}
	return false
}

func (p *Player) drawCardsAllowed(b *Battle) bool {
	if p.AssistFlags.Has(AssistFlagIsSkippingTurn) {
		return false
	}
	return !p.hasAssist(b, cards.AssistSkipDraw)
}

// applyAssistCardEffectOnSet runs the one-shot part of the assist set on this
// player. setter is the player who set it, or nil.
func (p *Player) applyAssistCardEffectOnSet(b *Battle, setter *Player) {
	cardID := p.SetAssistCardID
	if cardID == 0xFFFF {
		cardID = b.cardIDForRef(p.refs[refAssist])
	}
	eff := cards.AssistEffectForCardID(cardID)
	if eff == cards.AssistResistance || eff == cards.AssistIndependent {
		p.AssistCardSetNumber = 0
	}
	if b.assists.ShouldBlock(b, p.ClientID) {
		return
	}

	sameTeamSetter := setter == nil || setter.TeamID == p.TeamID
	switch eff {
	case cards.AssistCardReturn:
		if hand := p.firstEmptyHandIndex(); hand >= 0 {
			for z := range p.discardLog {
				if p.Deck.DrawRef(p.discardLog[z]) {
					p.refs[hand] = p.discardLog[z]
					p.discardLog[z] = NoRef
					break
				}
			}
		}

	case cards.AssistATKDice2:
		if sameTeamSetter {
			p.AssistDelayTurns = 2
		} else {
			p.AssistDelayTurns = 1
		}

	case cards.AssistExchange:
		p.ATKPoints, p.DEFPoints = p.DEFPoints, p.ATKPoints
		p.ATKPoints2 = p.ATKPoints
		p.updateHandAndEquipState(b, false)

	case cards.AssistSkipSet, cards.AssistSkipAct:
		p.AssistDelayTurns = 2

	case cards.AssistNecromancer:
		hand := -1
		for z := MaxHandSize - 1; z >= 0; z-- {
			if p.refs[z] != NoRef {
				hand = z
				break
			}
		}
		logIndex := -1
		for z := range p.discardLog {
			if def := b.definitionForRef(p.discardLog[z]); def != nil && def.Type.IsFC() {
				logIndex = z
				break
			}
		}
		if hand >= 0 && logIndex >= 0 && p.Deck.DrawRef(p.discardLog[logIndex]) {
			handRef := p.refs[hand]
			p.refs[hand] = p.discardLog[logIndex]
			p.discardLog[logIndex] = handRef
			p.Deck.SetDiscarded(handRef)
		}

	case cards.AssistLegacy:
		totalCost := 0
		for z := MaxSetCards - 1; z >= 0; z-- {
			card := p.SetCards[z]
			if card == nil {
				continue
			}
			cost := int(card.Def.SelfCost)
			if p.discardSetCard(b, p.refs[refSetBase+z], false) {
				totalCost += cost
			}
		}
		p.onCardsDestroyed(b)
		p.ATKPoints = uint8(min(9, int(p.ATKPoints)+(totalCost>>1)))
		p.updateHandAndEquipState(b, false)
		b.sendMapUpdate()

	case cards.AssistMuscular:
		for _, other := range b.players {
			if other == nil {
				continue
			}
			for _, card := range other.SetCards {
				if card != nil {
					card.AP++
					card.sendUpdatesIfNeeded(b, false)
				}
			}
			other.updateHandAndEquipState(b, false)
		}

	case cards.AssistChangeBody:
		for _, other := range b.players {
			if other == nil {
				continue
			}
			for _, card := range other.SetCards {
				if card != nil {
					card.AP, card.TP = card.TP, card.AP
					card.sendUpdatesIfNeeded(b, false)
				}
			}
			other.updateHandAndEquipState(b, false)
		}

	case cards.AssistGodWhim:
		p.replaceAllSetAssistsWithRandomAssists(b)

	case cards.AssistAssistReturn:
		if prev := p.refs[refPrevAssist]; prev != NoRef {
			if owner := b.player(prev.ClientID()); owner != nil && owner != p {
				owner.Deck.DrawRef(prev)
				owner.SetCardFromHand(b, prev, ShortStatusAssist, nil, prev.ClientID(), true)
			}
		}

	case cards.AssistRequiem:
		b.addTeamEXP(p.TeamID, int32(p.NumDestroyedFCs<<1))
		b.updateStateFlags(false)
		p.NumDestroyedFCs = 0
		b.teamNumCardsDestroyed[p.TeamID] = 0
		for _, other := range b.players {
			if other == nil || other.TeamID != p.TeamID {
				continue
			}
			other.forEachCard(func(card *Card) {
				card.numCardsDestroyedByTeamAtSet = 0
				card.numDestroyedAllyFCs = 0
			})
		}

	case cards.AssistSlowTime:
		for _, other := range b.players {
			if other == nil {
				continue
			}
			if other.AssistRemainingTurns < 10 {
				other.AssistRemainingTurns = uint8(min(9, int(other.AssistRemainingTurns)<<1))
			}
			other.forEachCard(func(card *Card) {
				for z := range card.Chain.Conditions {
					cond := &card.Chain.Conditions[z]
					if !cond.IsEmpty() && cond.RemainingTurns < 10 {
						cond.RemainingTurns = uint8(min(9, int(cond.RemainingTurns)<<1))
					}
				}
			})
			other.updateHandAndEquipState(b, false)
			other.sendSetCardUpdates(b, false)
		}

	case cards.AssistQuickTime:
		for _, other := range b.players {
			if other == nil {
				continue
			}
			if other.AssistRemainingTurns < 10 {
				other.AssistRemainingTurns = (other.AssistRemainingTurns + 1) >> 1
			}
			other.forEachCard(func(card *Card) {
				for z := range card.Chain.Conditions {
					cond := &card.Chain.Conditions[z]
					if !cond.IsEmpty() && cond.RemainingTurns < 10 {
						cond.RemainingTurns = (cond.RemainingTurns + 1) >> 1
					}
				}
			})
			other.updateHandAndEquipState(b, false)
			other.sendSetCardUpdates(b, false)
		}

	case cards.AssistSqueeze:
		p.setRandomAssistCardFromHandForFree(b)

	case cards.AssistBomb:
		p.AssistDelayTurns = 6

	case cards.AssistSkipTurn:
		if sameTeamSetter {
			p.AssistDelayTurns = 6
		} else {
			p.AssistDelayTurns = 5
		}
	}
}

// forEachCard calls fn with the SC and then every set card.
func (p *Player) forEachCard(fn func(*Card)) {
	if p.SC != nil {
		fn(p.SC)
	}
	for _, card := range p.SetCards {
		if card != nil {
			fn(card)
		}
	}
}

func (p *Player) applyDiceEffects(b *Battle) {
	for _, eff := range p.assistEffects(b) {
		for die := range p.DiceResults {
			if p.DiceResults[die] == 0 {
				continue
			}
			switch eff {
			case cards.AssistDiceFever:
				p.DiceResults[die] = 5
			case cards.AssistDiceHalf:
				p.DiceResults[die] = (p.DiceResults[die] + 1) >> 1
			case cards.AssistDicePlus1:
				p.DiceResults[die]++
			case cards.AssistDiceFeverPlus:
				p.DiceResults[die] = 6
			}
		}
	}
	for die := range p.DiceResults {
		p.DiceResults[die] = min(p.DiceResults[die], 9)
	}
}

// HandRef returns the card in hand slot z, or NoRef.
func (p *Player) HandRef(z int) CardRef {
	if z < 0 || z >= MaxHandSize {
		return NoRef
	}
	return p.refs[refHandBase+z]
}

// SetRef returns the card in set slot z, or NoRef.
func (p *Player) SetRef(z int) CardRef {
	if z < 0 || z >= MaxSetCards {
		return NoRef
	}
	return p.refs[refSetBase+z]
}

// AssistRef returns the assist card currently set on this player.
func (p *Player) AssistRef() CardRef {
	return p.refs[refAssist]
}

// HandSize returns the number of cards in hand.
func (p *Player) HandSize() int {
	n := 0
	for z := 0; z < MaxHandSize; z++ {
		if p.refs[z] != NoRef {
			n++
		}
	}
	return n
}

func (p *Player) handIndexForRef(ref CardRef) int {
	for z := 0; z < MaxHandSize; z++ {
		if p.refs[z] == ref {
			return z
		}
	}
	return -1
}

func (p *Player) setIndexForRef(ref CardRef) int {
	for z := 0; z < MaxSetCards; z++ {
		if p.refs[refSetBase+z] == ref {
			return z
		}
	}
	return -1
}

func (p *Player) firstEmptyHandIndex() int {
	return p.handIndexForRef(NoRef)
}

func (p *Player) computeTotalSetCardsCost() {
	p.TotalSetCardsCost = 0
	for _, card := range p.SetCards {
		if card != nil && card.Def != nil {
			p.TotalSetCardsCost += card.Def.SelfCost
		}
	}
}

// countSetCards returns the number of set cards that are not destroyed.
func (p *Player) countSetCards() int {
	n := 0
	for _, card := range p.SetCards {
		if card != nil && !card.Flags.IsDestroyed() {
			n++
		}
	}
	return n
}

// countSetRefs is used by Influence. It reads the first eight reference slots,
// which are the hand and assist slots rather than the set slots; the count is
// kept as clients compute it.
func (p *Player) countSetRefs() int {
	n := 0
	for z := 0; z < MaxSetCards; z++ {
		if p.refs[z] != NoRef {
			n++
		}
	}
	return n
}

func (p *Player) discardHandCardsMatching(b *Battle, match func(*cards.Definition) bool) {
	hand := [MaxHandSize]CardRef{}
	copy(hand[:], p.refs[:MaxHandSize])
	for _, ref := range hand {
		if def := b.definitionForRef(ref); def != nil && match(def) {
			p.DiscardRefFromHand(b, ref)
		}
	}
	p.moveNullHandRefsToEnd()
}

func (p *Player) discardAllAssistCardsFromHand(b *Battle) {
	p.discardHandCardsMatching(b, func(def *cards.Definition) bool {
		return def.Type == cards.TypeAssist
	})
}

func (p *Player) discardAllAttackActionCardsFromHand(b *Battle) {
	p.discardHandCardsMatching(b, func(def *cards.Definition) bool {
		return def.Type == cards.TypeAction && def.Class != cards.ClassDefenseAction
	})
}

func (p *Player) discardAllItemAndCreatureCardsFromHand(b *Battle) {
	p.discardHandCardsMatching(b, func(def *cards.Definition) bool {
		return def.Type.IsFC()
	})
}

func (p *Player) discardAndRedrawHand(b *Battle) {
	for p.refs[0] != NoRef {
		p.DiscardRefFromHand(b, p.refs[0])
	}
	b.send(&AnimationEvent{ChangeType: 3, ClientID: p.ClientID, CardRefs: [3]CardRef{NoRef, NoRef, NoRef}})
	p.Deck.Restart(b.rng)
	p.drawHand(b, 0)
	p.updateHandAndEquipState(b, false)
}

// discardSetCard discards a set card (or puts it back at the bottom of the
// deck). The card object stays in its slot marked destroyed until
// onCardsDestroyed compacts the slots.
func (p *Player) discardSetCard(b *Battle, ref CardRef, toDrawPile bool) bool {
	z := p.setIndexForRef(ref)
	if z < 0 {
		return false
	}
	p.Deck.SetDiscarded(ref)
	p.refs[refSetBase+z] = NoRef
	if card := p.SetCards[z]; card != nil {
		card.Flags.Set(CardFlagDestroyed)
	}
	if toDrawPile {
		p.Deck.SetDrawableAtEnd(ref)
	}
	p.logDiscard(ref, 0)
	return true
}

func (p *Player) discardRandomHandCard(b *Battle) {
	if n := p.HandSize(); n > 0 {
		p.DiscardRefFromHand(b, p.refs[b.random(n)])
	}
	p.moveNullHandRefsToEnd()
}

// DiscardRefFromHand discards a card from the hand and reports whether it was
// there.
func (p *Player) DiscardRefFromHand(b *Battle, ref CardRef) bool {
	z := p.handIndexForRef(ref)
	if z < 0 || ref == NoRef {
		return false
	}
	p.Deck.SetDiscarded(ref)
	p.refs[z] = NoRef
	p.moveNullHandRefsToEnd()
	p.logDiscard(ref, 0)
	p.updateHandAndEquipState(b, false)
	return true
}

func (p *Player) discardSetAssistCard(b *Battle) {
	p.SetAssistCardID = 0xFFFF
	if setter := b.player(p.refs[refAssist].ClientID()); setter != nil {
		setter.Deck.SetDiscarded(p.refs[refAssist])
		p.refs[refAssist] = NoRef
	}
	p.refs[refPrevAssist] = NoRef
	p.AssistRemainingTurns = 0
	p.updateHandAndEquipState(b, false)
	b.assists.populate(b)
	b.refreshAssistFlags()
	b.destroyCardsWithZeroHP()
}

// DoMulligan redraws the opening hand once.
func (p *Player) DoMulligan(b *Battle) bool {
	if !p.isMulliganAllowed() {
		return false
	}
	p.NumMulligansAllowed--
	for p.refs[0] != NoRef {
		p.DiscardRefFromHand(b, p.refs[0])
	}
	b.send(&AnimationEvent{ChangeType: 3, ClientID: p.ClientID, CardRefs: [3]CardRef{NoRef, NoRef, NoRef}})
	p.Deck.Mulligan(b.rng)
	p.drawHand(b, 5)
	for z := range p.discardLog {
		p.discardLog[z] = NoRef
	}
	return true
}

// drawHand draws up to the hand limit; override, when not zero, caps the
// number of cards drawn.
func (p *Player) drawHand(b *Battle, override int) {
	count := 5 - p.HandSize()
	for _, eff := range p.assistEffects(b) {
		switch eff {
		case cards.AssistRichPlus:
			count = 4 - p.HandSize()
		case cards.AssistRich:
			count = 6 - p.HandSize()
		}
	}
	if override != 0 && override < count {
		count = override
	}
	for ; count > 0; count-- {
		ref := p.Deck.Draw(b.rng)
		if z := p.firstEmptyHandIndex(); z >= 0 {
			p.refs[z] = ref
		}
		if b.setupPhase == SetupMainBattle {
			p.Stats.NumCardsDrawn++
		}
	}
	p.updateHandAndEquipState(b, false)
}

func (p *Player) drawInitialHand(b *Battle) {
	p.Deck.Restart(b.rng)
	for z := range p.refs {
		p.refs[z] = NoRef
	}
	p.drawHand(b, 5)
	p.updateHandAndEquipState(b, false)
}

// errorCodeForSettingCard validates setting a hand card into a slot. Slots
// 7..14 are the set card slots and 15 is the assist slot.
func (p *Player) errorCodeForSettingCard(b *Battle, ref CardRef, slot uint8, loc *field.Location, assistTarget uint8) ErrorCode {
	if code := b.rulerErrorForSettingCard(p.ClientID, ref, loc, assistTarget); code != 0 {
		return code
	}
	if p.handIndexForRef(ref) < 0 {
		return ErrCardNotInHand
	}
	if p.Deck.StateForRef(ref) != DeckInHand {
		return ErrCardNotInHand
	}
	def := b.definitionForRef(ref)
	if def == nil {
		return ErrUnknownCardID
	}
	switch def.Type {
	case cards.TypeItem, cards.TypeCreature:
		if slot < ShortStatusSetBase || slot >= ShortStatusAssist {
			return ErrInvalidSetSlot
		}
		if p.refs[int(slot)+1] != NoRef {
			return ErrSetSlotOccupied
		}
		if def.Type == cards.TypeCreature && (loc == nil || !b.mapAndRules.TileIsVacant(int(loc.X), int(loc.Y))) {
			return ErrTileOccupied
		}
		return 0
	case cards.TypeAssist:
		if slot == ShortStatusAssist {
			return 0
		}
		return ErrInvalidSetSlot
	}
	return ErrCardNotSettable
}

// allCardsWithinRange collects the cards of every player on team (or every
// team for 0xFF) that lie in range of loc, based on the short statuses.
func (b *Battle) allCardsWithinRange(r *field.RangeMask, loc field.Location, team uint8) []CardRef {
	var ret []CardRef
	for _, other := range b.players {
		if other != nil && (team == 0xFF || team == other.TeamID) {
			ret = append(ret, refsWithinRange(r, loc, &other.shortStatuses)...)
		}
	}
	return ret
}

// cardRefsWithinRangeOfType is like allCardsWithinRange but selects players
// by SC type; TypeItem selects every player.
func (b *Battle) cardRefsWithinRangeOfType(r *field.RangeMask, loc field.Location, scType cards.CardType) []CardRef {
	var ret []CardRef
	for _, other := range b.players {
		if other != nil && (other.SCType == scType || scType == cards.TypeItem) {
			ret = append(ret, refsWithinRange(r, loc, &other.shortStatuses)...)
		}
	}
	return ret
}

func (p *Player) isMulliganAllowed() bool {
	return p.NumMulligansAllowed > 0
}

func (p *Player) isTeamTurn(b *Battle) bool {
	return b.currentTeamTurn() == p.TeamID
}

func (p *Player) logDiscard(ref CardRef, reason uint16) {
	copy(p.discardLog[1:], p.discardLog[:discardLogLen-1])
	copy(p.discardReasons[1:], p.discardReasons[:discardLogLen-1])
	p.discardLog[0] = ref
	p.discardReasons[0] = reason
}

func (p *Player) popFromDiscardLog() CardRef {
	ret := p.discardLog[0]
	copy(p.discardLog[:], p.discardLog[1:])
	copy(p.discardReasons[:], p.discardReasons[1:])
	p.discardLog[discardLogLen-1] = NoRef
	p.discardReasons[discardLogLen-1] = 0
	return ret
}

// MoveCardToLocation moves the SC (index 0) or a set card (7..14). On failure
// the reason is left in the battle's move error.
func (p *Player) MoveCardToLocation(b *Battle, index uint8, loc field.Location) bool {
	var card *Card
	if index == 0 {
		card = p.SC
	} else if index >= ShortStatusSetBase && index < ShortStatusAssist {
		card = p.SetCards[index-ShortStatusSetBase]
	}
	if card == nil {
		b.moveError = ErrInvalidCardIndex
		return false
	}
	if code := card.moveErrorCode(b, loc); code != 0 {
		b.moveError = code
		return false
	}
	card.moveToLocation(b, loc)
	p.updateHandAndEquipState(b, false)
	p.sendShortStatusesIfNeeded(b, false)
	b.sendMapUpdate()
	b.sendPlayerStats()
	b.applyEffectsAfterCardMove(card)
	return true
}

func (p *Player) moveNullHandRefsToEnd() {
	w := 0
	for r := 0; r < MaxHandSize; r++ {
		if p.refs[r] != NoRef {
			p.refs[w] = p.refs[r]
			w++
		}
	}
	for ; w < MaxHandSize; w++ {
		p.refs[w] = NoRef
	}
}

// onCardsDestroyed removes destroyed set cards, compacts the set slots and
// returns cards whose effects send them back to the hand. Returns happen in
// set slot order.
func (p *Player) onCardsDestroyed(b *Battle) {
	type returning struct {
		ref        CardRef
		shouldHand bool
	}
	var destroyed []returning

	for z := 0; z < MaxSetCards; z++ {
		card := p.SetCards[z]
		if card == nil || !card.Flags.IsDestroyed() {
			continue
		}
		ref := p.refs[refSetBase+z]
		destroyed = append(destroyed, returning{ref, b.shouldReturnCardToHandOnDestruction(ref)})
		if p.handIndexForRef(ref) < 0 {
			p.logDiscard(ref, 1)
			p.Deck.SetDiscarded(ref)
		}
		p.refs[refSetBase+z] = NoRef
		p.SetCards[z] = nil
	}

	w := 0
	diverged := false
	for r := 0; r < MaxSetCards; r++ {
		if card := p.SetCards[r]; card != nil {
			if r != w {
				p.SetCards[w] = card
				p.refs[refSetBase+w] = p.refs[refSetBase+r]
				diverged = true
			}
			w++
		}
	}
	for ; w < MaxSetCards; w++ {
		p.SetCards[w] = nil
		p.refs[refSetBase+w] = NoRef
	}
	if diverged {
		p.sendSetCardUpdates(b, false)
	}

	for _, d := range destroyed {
		if !d.shouldHand {
			continue
		}
		if z := p.firstEmptyHandIndex(); z >= 0 && p.Deck.DrawRef(d.ref) {
			p.refs[z] = d.ref
		}
	}
}

func (p *Player) replaceAllSetAssistsWithRandomAssists(b *Battle) {
	ids := cards.AllAssistCardIDs()
	for _, other := range b.players {
		if other == nil || (other.refs[refAssist] == NoRef && other.SetAssistCardID == 0xFFFF) {
			continue
		}
		cardID := cards.CardIDGodWhim
		for cardID == cards.CardIDGodWhim {
			cardID = ids[b.random(len(ids))]
			if !p.godWhimHiddenCards {
				if def := b.definitionForID(cardID); def == nil || def.CannotDrop {
					cardID = cards.CardIDGodWhim
				}
			}
		}
		other.replaceAssistCardByID(b, cardID)
	}
}

func (p *Player) replaceAssistCardByID(b *Battle, cardID uint16) bool {
	def := b.definitionForID(cardID)
	if def == nil || def.Type != cards.TypeAssist {
		return false
	}
	p.discardSetAssistCard(b)
	p.SetAssistCardID = cardID
	p.AssistRemainingTurns = def.AssistTurns
	p.AssistCardSetNumber = b.nextAssistCardSetNumber
	b.nextAssistCardSetNumber++
	p.updateHandAndEquipState(b, false)
	b.assists.populate(b)
	b.refreshAssistFlags()
	p.applyAssistCardEffectOnSet(b, p)
	p.updateHandAndEquipState(b, false)
	return true
}

// returnSetCardToHand2 draws a set card back into the hand. The set slot
// itself is left as is; callers mark the card destroyed so the slot is
// cleared when destroyed cards are collected.
func (p *Player) returnSetCardToHand2(b *Battle, ref CardRef) bool {
	if p.setIndexForRef(ref) < 0 {
		return false
	}
	hand := p.firstEmptyHandIndex()
	if hand < 0 {
		return false
	}
	p.Deck.SetDiscarded(ref)
	if !p.Deck.DrawRef(ref) {
		return false
	}
	p.refs[hand] = ref
	p.updateHandAndEquipState(b, false)
	p.sendShortStatusesIfNeeded(b, false)
	return true
}

func (p *Player) returnSetCardToHand1(b *Battle, ref CardRef) bool {
	hand := p.firstEmptyHandIndex()
	if hand < 0 || ref == NoRef {
		return false
	}
	for z, card := range p.SetCards {
		if card == nil || card.Ref != ref {
			continue
		}
		setRef := p.refs[refSetBase+z]
		p.refs[refSetBase+z] = NoRef
		card.Flags.Set(CardFlagDestroyed)
		p.Deck.SetDiscarded(setRef)
		if p.Deck.DrawRef(setRef) {
			p.refs[hand] = setRef
			return true
		}
	}
	return false
}

func (p *Player) rollDice(b *Battle, n int) uint8 {
	var ret uint8
	for z := 0; z < n && z < 2; z++ {
		p.DiceResults[z] = uint8(b.random(int(p.DiceMax)) + 1)
		ret += p.DiceResults[z]
	}
	if n < 1 {
		p.DiceResults[0] = 0
	}
	if n < 2 {
		p.DiceResults[1] = 0
	}
	return ret
}

func (p *Player) rollDiceWithEffects(b *Battle, n int) uint8 {
	p.rollDice(b, n)
	p.applyDiceEffects(b)
	return p.DiceResults[0]
}

// sendSetCardUpdates sends the chain, metadata and conditions of every card,
// clearing the snapshots of empty slots.
func (p *Player) sendSetCardUpdates(b *Battle, always bool) {
	var mask uint16
	if p.SC != nil {
		p.SC.sendUpdatesIfNeeded(b, always)
	} else {
		p.chains[0] = NewActionChain()
		p.metadatas[0] = NewActionMetadata()
		mask |= 1
	}
	for z, card := range p.SetCards {
		if card != nil {
			card.sendUpdatesIfNeeded(b, always)
		} else {
			mask |= 1 << (z + 1)
			p.chains[z+1] = NewActionChain()
			p.metadatas[z+1] = NewActionMetadata()
		}
	}
	if mask != 0 && !b.shouldCopyPrevStates {
		b.send(&ClearSetConditionsEvent{ClientID: p.ClientID, Mask: mask})
	}
}

func (p *Player) setAssistFlagsFromAssistEffects(b *Battle) {
	p.AssistFlags.Clear(AssistFlagFixedRange | AssistFlagSummoningIsFree | AssistFlagLimitMoveTo1 |
		AssistFlagImmortal | AssistFlagSameCardBanned | AssistFlagCannotSetFC)
	for _, eff := range p.assistEffects(b) {
		switch eff {
		case cards.AssistSimple:
			p.AssistFlags.Set(AssistFlagFixedRange)
		case cards.AssistTerritory:
			p.AssistFlags.Set(AssistFlagSameCardBanned)
		case cards.AssistOldType:
			p.AssistFlags.Set(AssistFlagCannotSetFC)
		case cards.AssistFlatland:
			p.AssistFlags.Set(AssistFlagSummoningIsFree)
		case cards.AssistImmortality:
			p.AssistFlags.Set(AssistFlagImmortal)
		case cards.AssistSnailPace:
			p.AssistFlags.Set(AssistFlagLimitMoveTo1)
		}
	}
}

// SetCardFromHand puts a hand card into a set slot (7..14) or the assist
// slot (15) of assistTarget. With skipChecks the card is set for free and
// without validation. On failure the reason is left in the battle's set
// error.
func (p *Player) SetCardFromHand(b *Battle, ref CardRef, slot uint8, loc *field.Location, assistTarget uint8, skipChecks bool) bool {
	if !skipChecks {
		if code := p.errorCodeForSettingCard(b, ref, slot, loc, assistTarget); code != 0 {
			b.setCardError = code
			p.updateHandAndEquipState(b, false)
			return false
		}
	}

	if z := p.handIndexForRef(ref); z >= 0 {
		p.refs[z] = NoRef
		p.moveNullHandRefsToEnd()
	}
	if !skipChecks {
		p.subtractATKPoints(uint8(b.setCostForCard(p.ClientID, ref)))
	}
	p.Deck.SetInPlay(ref)

	def := b.definitionForRef(ref)
	if def == nil {
		return false
	}
	switch def.Type {
	case cards.TypeItem, cards.TypeCreature:
		if slot < ShortStatusSetBase || slot >= ShortStatusAssist {
			return false
		}
		p.refs[int(slot)+1] = ref
		card := newCard(b.cardIDForRef(ref), ref, p.ClientID)
		p.SetCards[slot-ShortStatusSetBase] = card
		if err := card.init(b); err != nil {
			b.logger.Error("failed to init set card", zap.Stringer("ref", ref), zap.Error(err))
			return false
		}
		if def.Type == cards.TypeCreature && loc != nil {
			card.Loc.X = loc.X
			card.Loc.Y = loc.Y
		}
		p.Stats.NumItemOrCreatureCardsSet++

	case cards.TypeAssist:
		if slot != ShortStatusAssist {
			return false
		}
		if target := b.player(assistTarget); target != nil {
			prev := target.refs[refAssist]
			target.discardSetAssistCard(b)
			target.refs[refAssist] = ref
			target.refs[refPrevAssist] = prev
			target.AssistRemainingTurns = def.AssistTurns
			target.AssistDelayTurns = 0
			target.AssistCardSetNumber = b.nextAssistCardSetNumber
			b.nextAssistCardSetNumber++

			p.updateHandAndEquipState(b, false)
			target.applyAssistCardEffectOnSet(b, p)
			target.updateHandAndEquipState(b, false)
			b.assists.populate(b)
			b.refreshAssistFlags()
		}
		p.Stats.NumAssistCardsSet++
	}
	p.Stats.NumCardsSet++

	p.computeTotalSetCardsCost()
	b.onCardSet(p, ref)
	if def.Type == cards.TypeAssist {
		b.checkForDestroyedCards()
	}
	p.updateHandAndEquipState(b, false)
	b.sendMapUpdate()
	b.send(&SetCardLogEvent{ClientID: p.ClientID, RoundNum: b.roundNum, CardRefs: []CardRef{ref}})
	return true
}

// startTileOffsets indexes the per-team start tile list by team size.
var startTileOffsets = [4]int{0, 0, 1, 3}

func (p *Player) setInitialLocation(b *Battle) error {
	mr := b.mapAndRules
	teamSize := int(mr.NumTeam0Players)
	if p.TeamID != 0 {
		teamSize = int(mr.NumPlayers) - int(mr.NumTeam0Players)
	}
	if teamSize >= len(startTileOffsets) || teamSize < 0 {
		return fmt.Errorf("too many players on team %d", p.TeamID)
	}
	indexInTeam := 0
	for z := uint8(0); z < p.ClientID; z++ {
		if other := b.players[z]; other != nil && other.TeamID == p.TeamID {
			indexInTeam++
		}
	}
	tile := mr.Map.StartTiles[p.TeamID&1][startTileOffsets[teamSize]+indexInTeam]
	facing := field.Direction((tile >> 6) & 3)
	p.StartFacing = facing
	mr.StartFacingDirections |= uint16(facing) << (p.ClientID << 2)

	loc, ok := mr.FindTile(tile & 0x3F)
	if !ok {
		return fmt.Errorf("client %d: start tile %02X not found on map", p.ClientID, tile&0x3F)
	}
	p.SC.Loc = field.Location{X: loc.X, Y: loc.Y, Direction: facing}
	return nil
}

func (p *Player) setOccupiedBitForCardOnWarpTile(b *Battle, card *Card) {
	if card == nil {
		return
	}
	for _, warp := range b.warpPositions {
		for end := 0; end < 2; end++ {
			if warp[end][0] == card.Loc.X && warp[end][1] == card.Loc.Y {
				b.mapAndRules.SetOccupied(int(warp[end^1][0]), int(warp[end^1][1]))
			}
		}
	}
}

func (p *Player) setOccupiedBitsForSCAndCreatures(b *Battle) {
	if p.SC != nil && !p.SC.Flags.IsDestroyed() {
		b.mapAndRules.SetOccupied(int(p.SC.Loc.X), int(p.SC.Loc.Y))
		p.setOccupiedBitForCardOnWarpTile(b, p.SC)
	}
	if p.SCType == cards.TypeArkzSC {
		for _, card := range p.SetCards {
			if card != nil {
				b.mapAndRules.SetOccupied(int(card.Loc.X), int(card.Loc.Y))
				p.setOccupiedBitForCardOnWarpTile(b, card)
			}
		}
	}
}

func (p *Player) subtractDEFPoints(cost uint8) {
	p.DEFPoints -= cost
}

// payForAction checks, and with deduct also pays, the point cost of a
// declared attack or defense.
func (p *Player) payForAction(b *Battle, pa *ActionState, deduct bool) bool {
	cost := b.attackOrDefenseCost(pa, false, nil)
	switch b.pendingActionType(pa) {
	case cards.ActionAttack:
		if int(cost) <= int(p.ATKPoints) {
			if deduct {
				p.subtractATKPoints(uint8(cost))
			}
			return true
		}
	case cards.ActionDefense:
		if int(cost) <= int(p.DEFPoints) {
			if deduct {
				p.subtractDEFPoints(uint8(cost))
			}
			return true
		}
	}
	return false
}

func (p *Player) subtractATKPoints(cost uint8) {
	p.ATKPoints -= cost
	p.ATKPoints2 = min(p.ATKPoints, p.ATKPoints2Max)
}

func (p *Player) prepareHandState(b *Battle) HandAndEquipState {
	var s HandAndEquipState
	s.DiceResults = p.DiceResults
	s.ATKPoints = p.ATKPoints
	s.DEFPoints = p.DEFPoints
	s.ATKPoints2 = p.ATKPoints2
	s.UnknownA1 = p.handStateA1
	s.TotalSetCardsCost = p.TotalSetCardsCost
	if d := b.decks[p.ClientID]; d != nil {
		s.IsCPUPlayer = d.IsCPUPlayer
	}
	s.AssistFlags = p.AssistFlags
	for z := 0; z < MaxHandSize; z++ {
		s.HandRefs[z] = p.refs[z]
		s.HandRefs2[z] = p.refs[z]
	}
	for z := 0; z < MaxSetCards; z++ {
		s.SetRefs[z] = p.refs[refSetBase+z]
		s.SetRefs2[z] = p.refs[refSetBase+z]
	}
	s.AssistRef = p.refs[refAssist]
	s.AssistRef2 = p.refs[refAssist]
	s.SCRef = p.SCRef
	if p.refs[refAssist] != NoRef {
		s.AssistCardSetNumber = p.AssistCardSetNumber
	}
	s.AssistCardID = p.SetAssistCardID
	s.AssistRemainingTurns = p.AssistRemainingTurns
	s.AssistDelayTurns = p.AssistDelayTurns
	s.ATKBonuses = p.ATKBonuses
	s.DEFBonuses = p.DEFBonuses
	return s
}

// updateHandAndEquipState refreshes the hand snapshot and sends it when it
// changed, then does the same for the short statuses.
func (p *Player) updateHandAndEquipState(b *Battle, always bool) {
	s := p.prepareHandState(b)
	if always || s != p.handEquip {
		p.handEquip = s
		b.send(&HandUpdateEvent{ClientID: p.ClientID, State: s})
	}
	p.sendShortStatusesIfNeeded(b, always)
}

func (p *Player) setRandomAssistCardFromHandForFree(b *Battle) {
	var candidates []CardRef
	for z := 0; z < MaxHandSize; z++ {
		ref := p.refs[z]
		def := b.definitionForRef(ref)
		if def != nil && def.Type == cards.TypeAssist && cards.AssistEffectForCardID(def.CardID) != cards.AssistSqueeze {
			candidates = append(candidates, ref)
		}
	}
	if len(candidates) == 0 {
		return
	}
	p.discardSetAssistCard(b)
	p.SetCardFromHand(b, candidates[b.random(len(candidates))], ShortStatusAssist, nil, p.ClientID, true)
}

func (p *Player) prepareShortStatuses(b *Battle) [NumShortStatuses]CardShortStatus {
	var ret [NumShortStatuses]CardShortStatus
	for z := range ret {
		ret[z] = NewCardShortStatus()
	}
	if p.SC != nil {
		ret[ShortStatusSC] = p.SC.ShortStatus(b)
	}
	for z := 0; z < MaxHandSize; z++ {
		ret[ShortStatusHandBase+z].CardRef = p.refs[z]
	}
	for z, card := range p.SetCards {
		if card != nil {
			ret[ShortStatusSetBase+z] = card.ShortStatus(b)
		}
	}
	ret[ShortStatusAssist].CardRef = p.refs[refAssist]
	return ret
}

func (p *Player) sendShortStatusesIfNeeded(b *Battle, always bool) {
	s := p.prepareShortStatuses(b)
	if always || s != p.shortStatuses {
		p.shortStatuses = s
		if !b.shouldCopyPrevStates {
			b.send(&ShortStatusesEvent{ClientID: p.ClientID, Statuses: s})
		}
	}
}

func (p *Player) drawPhaseBefore(b *Battle) {
	p.forEachCard(func(card *Card) { card.drawPhaseBefore(b) })
}

func (p *Player) actionPhaseBefore(b *Battle) {
	p.forEachCard(func(card *Card) { card.actionPhaseBefore(b) })
}

func (p *Player) movePhaseBefore(b *Battle) {
	p.forEachCard(func(card *Card) { card.movePhaseBefore(b) })
}

// handleBeforeTurnAssistEffects counts down a delayed assist and fires its
// effect when the delay runs out.
func (p *Player) handleBeforeTurnAssistEffects(b *Battle) {
	if p.AssistDelayTurns == 0 {
		return
	}
	p.AssistDelayTurns--
	if p.AssistDelayTurns != 0 {
		return
	}
	p.updateHandAndEquipState(b, false)
	for _, eff := range p.assistEffects(b) {
		switch eff {
		case cards.AssistBomb:
			b.executeBombAssistEffect()
		case cards.AssistATKDice2:
			p.ATKPoints = min(p.ATKPoints+2, 9)
			p.updateHandAndEquipState(b, false)
		case cards.AssistSkipTurn:
			p.AssistFlags.Set(AssistFlagIsSkippingTurn)
			p.updateHandAndEquipState(b, false)
		}
	}
}

// AssistTurnsRemaining returns -1 when no assist is set.
func (p *Player) AssistTurnsRemaining() int {
	if p.refs[refAssist] == NoRef && p.SetAssistCardID == 0xFFFF {
		return -1
	}
	return int(p.AssistRemainingTurns)
}

// setActionCardsForActionState commits a declared attack or defense: it pays
// the cost, links the action cards into the chains of the cards involved and
// discards them from the hand.
func (p *Player) setActionCardsForActionState(b *Battle, pa *ActionState) {
	if attacker := b.cardForRef(pa.AttackerRef); attacker != nil {
		attacker.Flags.Set(CardFlagAttackDeclared)
	}
	actionType := b.pendingActionType(pa)
	p.payForAction(b, pa, true)

	switch actionType {
	case cards.ActionAttack:
		card := b.cardForRef(pa.AttackerRef)
		if card == nil {
			break
		}
		card.Loc.Direction = pa.Facing
		var logged []CardRef
		for z := 0; ; {
			ref := pa.Actions.At(z)
			card.addAttackAction(b, pa, ref)
			card.setSetterRef(ref)
			if ref != NoRef {
				logged = append(logged, ref)
			}
			if def := b.definitionForRef(ref); def != nil {
				if def.Class.IsTechLike() {
					p.Stats.NumTechCardsSet++
				}
				switch def.Class {
				case cards.ClassAttackAction, cards.ClassConnectOnlyAttack, cards.ClassBossAttackAction:
					p.Stats.NumAttackActionsSet++
				}
				p.Stats.NumCardsSet++
			}
			z++
			if z >= MaxActionCards || pa.Actions.At(z) == NoRef {
				break
			}
		}
		if len(logged) > 0 {
			b.send(&SetCardLogEvent{ClientID: p.ClientID, RoundNum: b.roundNum, CardRefs: logged})
		}

	case cards.ActionDefense:
		for z := 0; z < pa.Targets.Len(); z++ {
			target := b.cardForRef(pa.Targets.At(z))
			if target == nil {
				continue
			}
			target.addDefense(b, pa)
			if target.ClientID == p.ClientID {
				p.Stats.DefenseActionsSetOnSelf++
			} else {
				p.Stats.DefenseActionsSetOnAlly++
			}
			p.Stats.NumCardsSet++
		}
		b.send(&SetCardLogEvent{ClientID: p.ClientID, RoundNum: b.roundNum, CardRefs: []CardRef{pa.DefenseRef}})
	}

	for z := 0; z < pa.Actions.Len(); z++ {
		p.DiscardRefFromHand(b, pa.Actions.At(z))
	}
	p.updateHandAndEquipState(b, false)
}

func (p *Player) dicePhaseBefore(b *Battle) {
	p.forEachCard(func(card *Card) { card.dicePhaseBefore(b) })
	p.computeTotalSetCardsCost()
	p.handStateA1 = 0
	if p.AssistRemainingTurns > 0 && p.AssistRemainingTurns < cards.AssistTurnsOnce && p.AssistDelayTurns == 0 {
		p.AssistRemainingTurns--
		if p.AssistRemainingTurns < 1 {
			p.discardSetAssistCard(b)
		}
	}
	if p.isTeamTurn(b) {
		p.ATKPoints = 0
		p.DEFPoints = 0
		p.ATKBonuses = 0
		p.DEFBonuses = 0
		p.rollDice(b, 2)
	}
	p.AssistFlags &= AssistFlagHasWon | AssistFlagWinnerByDefeat | AssistFlagWinnerByRandom | AssistFlagEligibleForDiceBoost
	p.setAssistFlagsFromAssistEffects(b)
	p.updateHandAndEquipState(b, false)
	p.sendSetCardUpdates(b, false)
}

// handleHomesickFromBomb sends a bombed set card back to the hand under
// Homesick, or to the top of the deck otherwise.
func (p *Player) handleHomesickFromBomb(b *Battle, card *Card) {
	if card == nil {
		return
	}
	inSet := false
	for _, c := range p.SetCards {
		if c == card {
			inSet = true
			break
		}
	}
	if !inSet {
		return
	}
	if p.hasAssist(b, cards.AssistHomesick) {
		p.returnSetCardToHand2(b, card.Ref)
		p.logDiscard(card.Ref, 1)
		card.Flags.Set(CardFlagDestroyed)
		return
	}
	if p.Deck.SetDrawableNext(card.Ref) {
		p.logDiscard(card.Ref, 1)
		card.Flags.Set(CardFlagDestroyed)
	}
}

func (p *Player) applyMainDieAssistEffects(b *Battle, v uint8) uint8 {
	for _, eff := range p.assistEffects(b) {
		switch eff {
		case cards.AssistDiceFever:
			v = 5
		case cards.AssistDiceHalf:
			v = (v + 1) >> 1
		case cards.AssistDicePlus1:
			v++
		case cards.AssistDiceFeverPlus:
			v = 6
		}
	}
	return v
}

func rollInRange(b *Battle, lo, hi uint8) uint8 {
	width := int(hi) - int(lo) + 1
	if width < 2 {
		return lo
	}
	return lo + uint8(b.random(width))
}

// rollMainDice rolls the attack and defense dice for the turn and applies
// exchange, boost, assist and team bonus adjustments.
func (p *Player) rollMainDice(b *Battle) {
	team := p.TeamID & 1
	solo := b.teamClientCount[team] < b.teamClientCount[team^1]
	rules := &b.mapAndRules.Rules
	atkLo, atkHi := rules.AttackDiceRange(solo)
	defLo, defHi := rules.DefenseDiceRange(solo)
	d0 := rollInRange(b, atkLo, atkHi)
	d1 := rollInRange(b, defLo, defHi)

	swap := false
	switch rules.DiceExchangeMode {
	case field.DiceExchangeHighDEF:
		swap = d0 > d1
	case field.DiceExchangeHighATK:
		swap = d0 < d1
	}
	if swap {
		p.ATKPoints, p.DEFPoints = d1, d0
		p.AssistFlags.Set(AssistFlagDiceWereExchanged)
	} else {
		p.ATKPoints, p.DEFPoints = d0, d1
		p.AssistFlags.Clear(AssistFlagDiceWereExchanged)
	}
	if b.clientHasATKDiceBoostCondition(p.ClientID) {
		p.ATKPoints++
	}

	atkBefore, defBefore := p.ATKPoints, p.DEFPoints
	p.ATKPoints = p.applyMainDieAssistEffects(b, p.ATKPoints)
	p.DEFPoints = p.applyMainDieAssistEffects(b, p.DEFPoints)
	p.DiceResults = [2]uint8{p.ATKPoints, p.DEFPoints}

	bonus := b.teamDiceBonus[team]
	p.ATKPoints = clampU8(p.ATKPoints+bonus, 1, 9)
	p.DEFPoints = clampU8(p.DEFPoints+bonus, 1, 9)
	p.ATKBonuses = p.ATKPoints - atkBefore
	p.DEFBonuses = p.DEFPoints - defBefore
	p.ATKPoints2 = min(p.ATKPoints2Max, p.ATKPoints)
	p.updateHandAndEquipState(b, false)
}

func clampU8(v, lo, hi uint8) uint8 {
	return max(lo, min(v, hi))
}

// resetAttackFlags clears the per-attack state of every card.
func (p *Player) resetAttackFlags(b *Battle) {
	p.forEachCard(func(card *Card) { card.resetAttackState(b) })
}

func (p *Player) computeTeamDiceBonusAfterDrawPhase(b *Battle) {
	p.forEachCard(func(card *Card) { card.clearMoveFlags() })
	t := b.currentTeamTurn() & 1
	boost := 0
	if n := int(b.teamClientCount[t]) * 12; n > 0 {
		boost = int(b.teamEXP[t]) / n
	}
	boost = b.adjustDiceBoostForCondition52(t, boost)
	b.teamDiceBonus[t] = uint8(max(0, min(boost, 8)))
	p.updateHandAndEquipState(b, false)
}
