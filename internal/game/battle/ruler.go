package battle

import (
	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/field"
)

// The legality checks in ruler*.go read only the snapshots each player last
// synchronized to clients (short statuses, hand and equip state, chains and
// metadata), never live card state. A rule decision therefore always agrees
// with what the clients were shown.

func (b *Battle) teamIDForClient(clientID uint8) uint8 {
	if clientID >= MaxClients || b.decks[clientID] == nil {
		return 0xFF
	}
	return b.decks[clientID].TeamID
}

func (b *Battle) statusTable(clientID uint8) *[NumShortStatuses]CardShortStatus {
	if clientID >= MaxClients || b.players[clientID] == nil {
		return nil
	}
	return &b.players[clientID].shortStatuses
}

func (b *Battle) handState(clientID uint8) *HandAndEquipState {
	if clientID >= MaxClients || b.players[clientID] == nil {
		return nil
	}
	return &b.players[clientID].handEquip
}

// scStatus returns the synchronized status of a client's story character.
func (b *Battle) scStatus(clientID uint8) *CardShortStatus {
	if t := b.statusTable(clientID); t != nil {
		return &t[ShortStatusSC]
	}
	return nil
}

func (b *Battle) scRefOfClient(clientID uint8) CardRef {
	if s := b.scStatus(clientID); s != nil {
		return s.CardRef
	}
	return NoRef
}

func (b *Battle) shortStatusForRef(ref CardRef) *CardShortStatus {
	t := b.statusTable(ref.ClientID())
	if t == nil {
		return nil
	}
	for z := range t {
		if t[z].CardRef == ref {
			return &t[z]
		}
	}
	return nil
}

// syncedChainForRef returns the synchronized chain whose acting card is ref.
func (b *Battle) syncedChainForRef(ref CardRef) *ActionChain {
	clientID := ref.ClientID()
	if clientID >= MaxClients || b.players[clientID] == nil {
		return nil
	}
	chains := &b.players[clientID].chains
	for z := range chains {
		if chains[z].ActingRef == ref {
			return &chains[z]
		}
	}
	return nil
}

func (b *Battle) cardExistsByStatus(s *CardShortStatus) bool {
	if s == nil || s.Flags.IsOutOfPlay() || s.CardRef == NoRef {
		return false
	}
	return b.teamIDForClient(s.CardRef.ClientID()) != 0xFF
}

// countExistingSetCards counts the set slots of a status table holding a
// card in play.
func (b *Battle) countExistingSetCards(t *[NumShortStatuses]CardShortStatus) int {
	n := 0
	for z := ShortStatusSetBase; z < ShortStatusAssist; z++ {
		if b.cardExistsByStatus(&t[z]) {
			n++
		}
	}
	return n
}

// conditionOnRef looks for a condition of type t on the synchronized chain
// of ref. When several match, the one with the highest order wins, or with
// byValue the one with the highest value.
func (b *Battle) conditionOnRef(ref CardRef, t cards.ConditionType, byValue bool) (Condition, bool) {
	chain := b.syncedChainForRef(ref)
	if chain == nil {
		return Condition{}, false
	}
	foundIndex := -1
	foundOrder := uint8(9)
	var foundValue int16
	for z := range chain.Conditions {
		cond := &chain.Conditions[z]
		if cond.Type != t {
			continue
		}
		if !byValue {
			if foundIndex == -1 || foundOrder < cond.Order {
				foundOrder = cond.Order
				foundIndex = z
			}
		} else if foundIndex == -1 || foundValue < cond.Value {
			foundValue = cond.Value
			foundIndex = z
		}
	}
	if foundIndex < 0 {
		return Condition{}, false
	}
	return chain.Conditions[foundIndex], true
}

func (b *Battle) refHasCondition(ref CardRef, t cards.ConditionType) bool {
	_, ok := b.conditionOnRef(ref, t, false)
	return ok
}

func (b *Battle) refHasAnyCondition(ref CardRef, ts ...cards.ConditionType) bool {
	for _, t := range ts {
		if b.refHasCondition(ref, t) {
			return true
		}
	}
	return false
}

// conditionValueSumOnRef adds up the values of every condition of type t on
// ref.
func (b *Battle) conditionValueSumOnRef(ref CardRef, t cards.ConditionType) int {
	chain := b.syncedChainForRef(ref)
	if chain == nil {
		return 0
	}
	sum := 0
	for z := range chain.Conditions {
		if chain.Conditions[z].Type == t {
			sum += int(chain.Conditions[z].Value)
		}
	}
	return sum
}

func (b *Battle) assistEffects(clientID uint8) []cards.AssistEffect {
	if clientID >= MaxClients {
		return nil
	}
	return b.assists.ForClient(b, clientID)
}

func (b *Battle) clientHasAssist(clientID uint8, eff cards.AssistEffect) bool {
	for _, e := range b.assistEffects(clientID) {
		if e == eff {
			return true
		}
	}
	return false
}

func (b *Battle) refIsBossSC(ref CardRef) bool {
	return cards.IsBossSC(b.cardIDForRef(ref))
}

// allySCRef returns the story character of the first teammate of ref's
// owner.
func (b *Battle) allySCRef(ref CardRef) CardRef {
	clientID := ref.ClientID()
	if b.statusTable(clientID) == nil {
		return NoRef
	}
	team := b.teamIDForClient(clientID)
	for z := uint8(0); z < MaxClients; z++ {
		if z != clientID && b.teamIDForClient(z) == team && b.statusTable(z) != nil {
			return b.scRefOfClient(z)
		}
	}
	return NoRef
}

// maxHPForRef returns the synchronized max HP of a card, falling back to the
// rules' character HP for story characters and to the printed HP otherwise.
func (b *Battle) maxHPForRef(ref CardRef) int16 {
	if s := b.shortStatusForRef(ref); s != nil && s.MaxHP > 0 {
		return int16(s.MaxHP)
	}
	def := b.definitionForRef(ref)
	if def == nil {
		return 0
	}
	if def.IsSC() && b.mapAndRules.Rules.CharHP > 0 && !b.refIsBossSC(ref) {
		return int16(b.mapAndRules.Rules.CharHP)
	}
	return int16(def.HP.Value)
}

// checkUsabilityForRefs converts the references to owners and card ids and
// evaluates the usability criterion of ref1 (effectIndex 0xFF) or of one of
// its effects against the user ref2 and the target ref3.
func (b *Battle) checkUsabilityForRefs(ref1, ref2, ref3 CardRef, effectIndex uint8, medium cards.AttackMedium) bool {
	if medium&0x80 != 0 {
		medium = cards.MediumUnknown
	}
	return b.checkUsability(ref1.ClientID(), b.cardIDForRef(ref1), ref2.ClientID(), b.cardIDForRef(ref2),
		b.cardIDForRef(ref3), effectIndex, false, medium)
}

// checkUsability evaluates a criterion code. For the usability criterion
// (effectIndex 0xFF) most criteria also require the two clients to match.
func (b *Battle) checkUsability(client1 uint8, id1 uint16, client2 uint8, id2, id3 uint16, effectIndex uint8, itemCheck bool, medium cards.AttackMedium) bool {
	if medium&0x80 != 0 {
		medium = cards.MediumUnknown
	}
	def1 := b.definitionForID(id1)
	def2 := b.definitionForID(id2)
	def3 := b.definitionForID(id3)
	if def1 == nil {
		return false
	}
	if def1.Type == cards.TypeItem && cards.IsBossSC(id2) {
		return false
	}

	var criterion cards.CriterionCode
	if effectIndex == 0xFF {
		criterion = def1.UsableCriterion
	} else {
		if effectIndex > 2 {
			return false
		}
		criterion = def1.Effects[effectIndex].ApplyCriterion
	}
	if itemCheck {
		switch criterion {
		case cards.CriterionSameTeam, cards.CriterionSamePlayer, cards.CriterionSameTeamNotSamePlayer,
			cards.CriterionFC, cards.CriterionNotSC, cards.CriterionSC:
			criterion = cards.CriterionNone
		}
	}

	ret := effectIndex&0x80 == 0 || client1 == client2 || client2 == 0xFF
	classIs := func(d *cards.Definition, classes ...cards.CardClass) bool {
		if d == nil {
			return false
		}
		for _, c := range classes {
			if d.Class == c {
				return true
			}
		}
		return false
	}
	notSC := func(d *cards.Definition) bool { return d == nil || !d.IsSC() }
	sameTeam := func() bool {
		return client1 < MaxClients && client2 < MaxClients &&
			b.teamIDForClient(client1) == b.teamIDForClient(client2)
	}

	switch criterion {
	case cards.CriterionNone:
		return ret
	case cards.CriterionHUClassSC:
		return classIs(def2, cards.ClassHUSC) && ret
	case cards.CriterionRAClassSC:
		return classIs(def2, cards.ClassRASC) && ret
	case cards.CriterionFOClassSC:
		return classIs(def2, cards.ClassFOSC) && ret
	case cards.CriterionSameTeam:
		return client1 == client2 || sameTeam()
	case cards.CriterionSamePlayer:
		// Passes when the two clients differ. Card data relies on this
		// inverted test, so it is kept.
		return client1 != client2
	case cards.CriterionSameTeamNotSamePlayer:
		return client1 != client2 && sameTeam()
	case cards.CriterionFC:
		return notSC(def3) && ret
	case cards.CriterionNotSC:
		return notSC(def2) && ret
	case cards.CriterionSC:
		return def2 != nil && def2.IsSC() && ret
	case cards.CriterionHUOrRAClassSC:
		return classIs(def2, cards.ClassHUSC, cards.ClassRASC) && ret
	case cards.CriterionHUOrFOClassSC:
		return classIs(def2, cards.ClassHUSC, cards.ClassFOSC) && ret
	case cards.CriterionRAOrFOClassSC:
		return classIs(def2, cards.ClassRASC, cards.ClassFOSC) && ret
	case cards.CriterionPhysicalOrUnknownMedium:
		return (medium == cards.MediumUnknown || medium == cards.MediumPhysical) && ret
	case cards.CriterionTechOrUnknownMedium:
		return (medium == cards.MediumUnknown || medium == cards.MediumTech) && ret
	case cards.CriterionPhysicalOrTechOrUnknownMedium:
		return (medium == cards.MediumUnknown || medium == cards.MediumPhysical || medium == cards.MediumTech) && ret
	case cards.CriterionNonPhysicalNonUnknownMediumNonSC:
		if medium != cards.MediumPhysical && medium != cards.MediumUnknown {
			return false
		}
		return notSC(def3) && ret
	case cards.CriterionNonPhysicalNonTechMediumNonSC:
		if medium != cards.MediumPhysical && medium != cards.MediumTech {
			return false
		}
		return notSC(def3) && ret
	case cards.CriterionNonPhysicalNonTechNonUnknownMediumNonSC:
		if medium != cards.MediumUnknown && medium != cards.MediumPhysical && medium != cards.MediumTech {
			return false
		}
		return notSC(def3) && ret
	}
	if found, ok := cards.CriterionIncludesCardID(criterion, id2); ok {
		return ret && found
	}
	return false
}

// cardLinkageIsValid reports whether action card right may follow left in a
// chain. Colors link when a right color of left matches a left color of
// right. Named android story characters cannot use color 3 to link off an
// item unless a Permission assist is active; Permission also lets any card
// with left color 3 link to a character card.
func cardLinkageIsValid(right, left, sc *cards.Definition, hasPermission bool) bool {
	if right == nil || left == nil {
		return false
	}
	androidBlocked := sc != nil && sc.IsNamedAndroidSC() && !hasPermission && left.Type == cards.TypeItem
	for _, rc := range left.RightColors {
		if rc == 0 || (androidBlocked && rc == 3) {
			continue
		}
		for _, lc := range right.LeftColors {
			if rc == lc {
				return true
			}
		}
	}
	if hasPermission && (left.IsSC() || left.IsFC()) {
		for _, lc := range right.LeftColors {
			if lc == 3 {
				return true
			}
		}
	}
	return false
}

func (b *Battle) refHasClassUsabilityCondition(ref CardRef) bool {
	def := b.definitionForRef(ref)
	return def != nil && def.UsableCriterion.HasClassUsabilityCondition()
}

func (b *Battle) refHasMightyKnuckle(ref CardRef) bool {
	def := b.definitionForRef(ref)
	return def != nil && def.HasEffect(cards.CondMightyKnuckle)
}

func (b *Battle) refOrSCHasFixedRange(ref CardRef) bool {
	if b.refHasCondition(ref, cards.CondFixedRange) {
		return true
	}
	def := b.definitionForRef(ref)
	if def == nil || def.Type != cards.TypeItem {
		return false
	}
	if b.statusTable(ref.ClientID()) == nil {
		return false
	}
	return b.refHasCondition(b.scRefOfClient(ref.ClientID()), cards.CondFixedRange)
}

// cardIsProtectedFromDestruction reports whether an Immortal assist covers
// the card, or any story character or set card on the field carries a
// protection condition naming the card's id.
func (b *Battle) cardIsProtectedFromDestruction(ref CardRef) bool {
	cardID := b.cardIDForRef(ref)
	if cardID == cards.CardIDNone {
		return false
	}
	if hes := b.handState(ref.ClientID()); hes != nil && hes.AssistFlags.Has(AssistFlagImmortal) {
		def := b.definitionForID(cardID)
		if def == nil {
			return false
		}
		if !def.IsSC() {
			return true
		}
	}
	protects := func(s *CardShortStatus) bool {
		if !b.cardExistsByStatus(s) {
			return false
		}
		cond, ok := b.conditionOnRef(s.CardRef, cards.CondUnknown46, false)
		return ok && uint16(cond.Value) == cardID
	}
	for z := uint8(0); z < MaxClients; z++ {
		t := b.statusTable(z)
		if t == nil {
			continue
		}
		if protects(&t[ShortStatusSC]) {
			return true
		}
		for w := ShortStatusSetBase; w < ShortStatusAssist; w++ {
			if protects(&t[w]) {
				return true
			}
		}
	}
	return false
}

// shouldAllowAttacksOnCurrentTurn is false only during the first team's
// first turn.
func (b *Battle) shouldAllowAttacksOnCurrentTurn() bool {
	return b.stateFlags.TurnNum > 1 || b.stateFlags.CurrentTeamTurn1 != b.stateFlags.FirstTeamTurn
}

func (b *Battle) isRefInSyncedHand(ref CardRef) bool {
	if ref == NoRef {
		return true
	}
	hes := b.handState(ref.ClientID())
	if hes == nil {
		return false
	}
	for _, r := range hes.HandRefs2 {
		if r == ref {
			return true
		}
	}
	return false
}

// setCostForCard returns the cost of setting a card, or a negative error
// code. Clone conditions naming the card and the owner's free-set condition
// make it free; Land Price, Deflation and Inflation adjust it.
func (b *Battle) setCostForCard(clientID uint8, ref CardRef) int32 {
	def := b.definitionForRef(ref)
	if def == nil || clientID == 0xFF || clientID != ref.ClientID() {
		return int32(ErrCardNotSettable)
	}
	ret := int32(def.SelfCost)
	if sc := b.scStatus(clientID); sc != nil && b.cardExistsByStatus(sc) &&
		b.refHasCondition(sc.CardRef, cards.CondUnknown69) {
		ret = 0
	}
	clones := func(s *CardShortStatus) bool {
		if !b.cardExistsByStatus(s) {
			return false
		}
		cond, ok := b.conditionOnRef(s.CardRef, cards.CondClone, false)
		return ok && uint16(cond.Value) == def.CardID
	}
	for z := uint8(0); z < MaxClients; z++ {
		t := b.statusTable(z)
		if t == nil {
			continue
		}
		if clones(&t[ShortStatusSC]) {
			ret = 0
		}
		for w := ShortStatusSetBase; w < ShortStatusAssist; w++ {
			if clones(&t[w]) {
				ret = 0
			}
		}
	}
	for _, eff := range b.assistEffects(clientID) {
		switch eff {
		case cards.AssistLandPrice:
			ret += ret >> 1
		case cards.AssistDeflation:
			ret = max(0, ret-1)
		case cards.AssistInflation:
			ret++
		}
	}
	return ret
}

// rulerErrorForSettingCard checks whether a client may set a card from its
// hand, optionally at loc (creatures) or on assistTarget (assists).
func (b *Battle) rulerErrorForSettingCard(clientID uint8, ref CardRef, loc *field.Location, assistTarget uint8) ErrorCode {
	hes := b.handState(clientID)
	if hes == nil {
		return ErrNoSuchPlayer
	}
	if hes.AssistFlags.Has(AssistFlagIsSkippingTurn) {
		return ErrSkippingTurn
	}
	if !b.isRefInSyncedHand(ref) {
		return ErrNotInSyncedHand
	}
	cardID := b.cardIDForRef(ref)
	if hes.AssistFlags.Has(AssistFlagSameCardBanned) && cardID != cards.CardIDNone {
		for z := uint8(0); z < MaxClients; z++ {
			other := b.handState(z)
			if other == nil {
				continue
			}
			for _, r := range other.SetRefs2 {
				if cardID == b.cardIDForRef(r) {
					return ErrSameCardBanned
				}
			}
			if cardID == b.cardIDForRef(other.AssistRef2) {
				return ErrSameCardBanned
			}
		}
	}

	def := b.definitionForID(cardID)
	if def == nil || def.Type > cards.TypeAssist || def.IsSC() || def.Type == cards.TypeAction {
		return ErrCardNotSettable
	}
	if def.Type == cards.TypeAssist {
		for _, eff := range b.assistEffects(clientID) {
			if eff == cards.AssistAssistless {
				return ErrAssistless
			}
		}
		// Legacy and Exchange may only be set on their owner.
		eff := cards.AssistEffectForCardID(def.CardID)
		if (eff == cards.AssistLegacy || eff == cards.AssistExchange) &&
			assistTarget != 0xFF && assistTarget != ref.ClientID() {
			return ErrNotUsableBySC
		}
	} else if hes.AssistFlags.Has(AssistFlagCannotSetFC) {
		return ErrCannotSetFC
	}

	cost := b.setCostForCard(clientID, ref)
	if cost < 0 {
		return ErrorCode(cost)
	}
	if int32(hes.ATKPoints) < cost {
		return ErrInsufficientPoints
	}

	t := b.statusTable(clientID)
	sc := &t[ShortStatusSC]
	if sc.CardRef == NoRef || !b.cardExistsByStatus(sc) ||
		!b.checkUsabilityForRefs(ref, sc.CardRef, NoRef, 0xFF, cards.MediumInvalid) {
		return ErrNotUsableBySC
	}
	inHand := false
	for z := ShortStatusHandBase; z < ShortStatusSetBase; z++ {
		if t[z].CardRef == ref {
			inHand = true
			break
		}
	}
	if !inHand {
		return ErrCardNotInHand
	}

	if def.IsFC() {
		limitByCount := b.refHasCondition(sc.CardRef, cards.CondFCLimitByCount)
		existing := 0
		for z := ShortStatusSetBase; z < ShortStatusAssist; z++ {
			s := &t[z]
			if s.CardRef == NoRef || !b.cardExistsByStatus(s) {
				continue
			}
			sdef := b.definitionForRef(s.CardRef)
			if sdef == nil {
				return ErrUnknownCardID
			}
			if limitByCount {
				existing += 2
			} else {
				existing += int(sdef.SelfCost)
			}
		}
		if limitByCount {
			existing += 2
		} else {
			existing += int(def.SelfCost)
		}
		if existing > 8 {
			return ErrFCCostLimit
		}
	}

	if def.Type == cards.TypeCreature {
		return b.creatureSummonError(clientID, def, loc)
	}
	return ErrNone
}

// creatureSummonError checks that loc lies in the client's summon area. The
// area is the band next to the client's start edge; creatures with a higher
// set cost must be placed closer to that edge.
func (b *Battle) creatureSummonError(clientID uint8, def *cards.Definition, loc *field.Location) ErrorCode {
	summonCost := int(def.SelfCost)
	for _, eff := range b.assistEffects(clientID) {
		if eff == cards.AssistFlatland {
			summonCost = 0
		}
	}
	m := b.mapAndRules
	if loc != nil && !m.TileIsVacant(int(loc.X), int(loc.Y)) {
		return ErrTileOccupied
	}
	team := b.teamIDForClient(clientID)
	if team == 0xFF {
		return ErrInvalidCardIndex
	}
	if loc == nil {
		return ErrNone
	}
	x, y := int(loc.X), int(loc.Y)
	w, h := int(m.Map.Width), int(m.Map.Height)

	areaLoc, areaSize, ok := b.creatureSummonArea(clientID)
	if !ok {
		if x > 0 && x < w-1 {
			if team != 1 {
				if (y < h-summonCost-1 && y > 0) || y == 1 {
					return ErrNone
				}
			} else if (summonCost+1 <= y && y < h-1) || y == h-2 {
				return ErrNone
			}
		}
		return ErrOutsideSummonArea
	}

	dx, dy := summonAreaOffsets(areaLoc.Direction)
	diff := max(int(areaSize)-summonCost, 0)
	if dx == 0 {
		// Never true; the perpendicular axis is not bounds-checked here.
		if x < 1 && x >= w-1 {
			return ErrOutsideSummonArea
		}
	} else if dx > 0 {
		if x < int(areaLoc.X) || x > int(areaLoc.X)+diff {
			return ErrOutsideSummonArea
		}
	} else if x > int(areaLoc.X) || x < int(areaLoc.X)-diff {
		return ErrOutsideSummonArea
	}
	if dy == 0 {
		// Never true, as above.
		if y < 1 && y >= h-1 {
			return ErrOutsideSummonArea
		}
	} else if dy > 0 {
		if y < int(areaLoc.Y) || y > int(areaLoc.Y)+diff {
			return ErrOutsideSummonArea
		}
	} else if y > int(areaLoc.Y) || y < int(areaLoc.Y)-diff {
		return ErrOutsideSummonArea
	}
	return ErrNone
}

// creatureSummonArea returns the start edge of a client's summon band, with
// the band's direction, and its width.
func (b *Battle) creatureSummonArea(clientID uint8) (field.Location, uint8, bool) {
	if b.mapAndRules == nil || clientID >= MaxClients {
		return field.Location{}, 0, false
	}
	m := &b.mapAndRules.Map
	loc := field.Location{Direction: b.mapAndRules.StartFacing(int(clientID))}
	var size uint8
	switch loc.Direction {
	case field.DirRight:
		loc.X, loc.Y = 1, 0
		size = m.Width - 3
	case field.DirLeft:
		loc.X, loc.Y = m.Width-2, 0
		size = m.Width - 3
	case field.DirUp:
		loc.X, loc.Y = 0, 1
		size = m.Height - 3
	case field.DirDown:
		loc.X, loc.Y = 0, m.Height-2
		size = m.Height - 3
	default:
		return field.Location{}, 0, false
	}
	return loc, size, true
}

// summonAreaOffsets gives the direction a summon band extends in. Up and
// down are the reverse of the grid step directions.
func summonAreaOffsets(d field.Direction) (int, int) {
	switch d {
	case field.DirLeft:
		return -1, 0
	case field.DirRight:
		return 1, 0
	case field.DirUp:
		return 0, 1
	case field.DirDown:
		return 0, -1
	}
	return 0, 0
}

// VerifyDeck checks a deck's card ids: the first card must be a story
// character, no other card may appear more than three times, and items and
// creatures must match the character's side. When owned is not nil, it
// gives the number of copies of each card id the player owns.
func (b *Battle) VerifyDeck(cardIDs [DeckSize]uint16, owned []uint8) ErrorCode {
	for _, id := range cardIDs {
		if b.definitionForID(id) == nil {
			return ErrDeckUnknownCard
		}
	}
	sc := b.definitionForID(cardIDs[0])
	if sc == nil || !sc.IsSC() {
		return ErrDeckInvalidSC
	}
	isArkz := sc.Type == cards.TypeArkzSC
	for z := 1; z < DeckSize; z++ {
		count := 0
		for w := 1; w < DeckSize; w++ {
			if cardIDs[z] == cardIDs[w] {
				count++
			}
		}
		if count > 3 {
			return ErrDeckTooManyCopies
		}
		if owned != nil && (int(cardIDs[z]) >= len(owned) || int(owned[cardIDs[z]]) < count) {
			return ErrDeckNotOwned
		}
		def := b.definitionForID(cardIDs[z])
		switch {
		case def == nil, def.IsSC():
			return ErrDeckExtraSC
		case def.Type == cards.TypeItem && isArkz:
			return ErrDeckItemForArkz
		case def.Type == cards.TypeCreature && !isArkz:
			return ErrDeckCreatureForHunters
		}
	}
	return ErrNone
}

// replaceD1D2RankCardsWithAttack swaps every D1 or D2 rank card for the
// basic Attack action card.
func (b *Battle) replaceD1D2RankCardsWithAttack(cardIDs *[DeckSize]uint16) {
	for z, id := range cardIDs {
		if def := b.definitionForID(id); def != nil && (def.Rank == cards.RankD1 || def.Rank == cards.RankD2) {
			cardIDs[z] = cards.CardIDAttack
		}
	}
}
