package battle

import (
	"github.com/magefree/ep3-server-go/internal/game/cards"
)

// pendingActionType classifies a declaration by its first action card: a
// defense action makes it a defense, anything else with an attacker is an
// attack.
func (b *Battle) pendingActionType(pa *ActionState) cards.ActionType {
	def := b.definitionForRef(pa.Actions.At(0))
	if def == nil || def.Type != cards.TypeAction {
		if pa.AttackerRef == NoRef {
			return cards.ActionInvalid
		}
		return cards.ActionAttack
	}
	if def.Class == cards.ClassDefenseAction {
		return cards.ActionDefense
	}
	return cards.ActionAttack
}

// attackMedium is technique if any action card is technique-like.
func (b *Battle) attackMedium(pa *ActionState) cards.AttackMedium {
	for z := 0; z < pa.Actions.Len(); z++ {
		if def := b.definitionForRef(pa.Actions.At(z)); def != nil && def.Class.IsTechLike() {
			return cards.MediumTech
		}
	}
	return cards.MediumPhysical
}

func (b *Battle) anyActionIsSupportTechOrPB(pa *ActionState) bool {
	if pa.AttackerRef == NoRef {
		return false
	}
	for z := 0; z < pa.Actions.Len(); z++ {
		if cards.IsSupportTechOrSupportPB(b.cardIDForRef(pa.Actions.At(z))) {
			return true
		}
	}
	return false
}

// CostForAction returns the ATK or DEF point cost of a declaration.
func (b *Battle) CostForAction(pa *ActionState) int16 {
	return b.attackOrDefenseCost(pa, false, nil)
}

// attackOrDefenseCost sums the self costs of the action cards with the
// attacker's cost conditions and the active assists. A Mighty Knuckle card
// must be last; with allowMightyKnuckle it costs all remaining ATK points,
// otherwise nothing extra. When allyCost is not nil it receives the summed
// ally costs.
func (b *Battle) attackOrDefenseCost(pa *ActionState, allowMightyKnuckle bool, allyCost *uint8) int16 {
	if pa.ClientID == 0xFF {
		return 99
	}
	if allyCost != nil {
		*allyCost = 0
	}
	finalCost := int16(1)
	var costBias, techBias, assistBias, totalCost, totalAllyCost int16
	hasMightyKnuckle := false

	actionType := b.pendingActionType(pa)
	scIfItem := NoRef
	if def := b.definitionForRef(pa.AttackerRef); def != nil && def.Type == cards.TypeItem {
		scIfItem = b.scRefOfClient(pa.AttackerRef.ClientID())
	}
	if b.refHasCondition(pa.AttackerRef, cards.CondAdd1ToMVCost) || b.refHasCondition(scIfItem, cards.CondAdd1ToMVCost) {
		costBias = 1
	}
	if (actionType == cards.ActionAttack || actionType == cards.ActionInvalid) &&
		(b.refHasCondition(pa.AttackerRef, cards.CondBigSwing) || b.refHasCondition(scIfItem, cards.CondBigSwing)) {
		costBias++
	}

	if pa.Actions.Len() == 0 {
		totalCost = costBias + 1
	} else {
		if b.refHasCondition(pa.AttackerRef, cards.CondTech) || b.refHasCondition(scIfItem, cards.CondTech) {
			techBias = -1
		}
		for z := 0; z < pa.Actions.Len(); z++ {
			ref := pa.Actions.At(z)
			def := b.definitionForRef(ref)
			if hasMightyKnuckle || def == nil || def.Type != cards.TypeAction {
				return 99
			}
			totalCost += int16(def.SelfCost) + costBias
			if def.Class.IsTechLike() {
				totalCost += techBias
			}
			totalAllyCost += int16(def.AllyCost)
			if b.refHasMightyKnuckle(ref) {
				hasMightyKnuckle = true
			}
			// Inflation and Deflation apply once per action card.
			for _, eff := range b.assistEffects(pa.ClientID) {
				switch eff {
				case cards.AssistInflation:
					assistBias++
				case cards.AssistDeflation:
					assistBias--
				}
			}
		}
	}

	for _, eff := range b.assistEffects(pa.ClientID) {
		if eff == cards.AssistBattleRoyale && pa.Actions.Len() == 0 {
			totalCost = 0
			finalCost = 0
		}
	}
	if hasMightyKnuckle {
		if !allowMightyKnuckle {
			finalCost = 0
		} else if hes := b.handState(pa.ClientID); hes != nil {
			finalCost = max(finalCost, int16(hes.ATKPoints))
		}
	}
	if allyCost != nil {
		*allyCost = uint8(totalAllyCost)
	}
	return max(finalCost, totalCost+assistBias)
}

// effectiveRangeForAttack returns the card id whose range pattern an attack
// uses, its target mode and the card that supplied them (the last action
// card, or the attacker itself). Fixed Range substitutes the attacker's own
// range; Simple and Heavy Fog assists override the range again.
func (b *Battle) effectiveRangeForAttack(pa *ActionState) (uint16, cards.TargetMode, CardRef, bool) {
	n := pa.Actions.Len()
	if n >= MaxActionCards {
		return 0, 0, NoRef, false
	}
	ref := pa.AttackerRef
	if n > 0 {
		ref = pa.Actions.At(n - 1)
	}
	cardID := b.cardIDForRef(ref)
	if cardID == cards.CardIDNone {
		return 0, 0, NoRef, false
	}
	def := b.definitionForID(cardID)
	clientID := pa.AttackerRef.ClientID()
	if clientID == 0xFF || def == nil {
		return 0, 0, NoRef, false
	}
	mode := def.TargetMode
	if b.refOrSCHasFixedRange(pa.AttackerRef) {
		cardID = b.cardIDForRef(pa.AttackerRef)
		if adef := b.definitionForID(cardID); adef != nil && mode < cards.TargetMultiRangeAllies {
			mode = adef.TargetMode
		}
	}
	for _, eff := range b.assistEffects(clientID) {
		switch eff {
		case cards.AssistSimple:
			cardID = b.cardIDForRef(pa.AttackerRef)
		case cards.AssistHeavyFog:
			cardID = cards.CardIDHeavyFogRange
		}
	}
	return cardID, mode, ref, true
}

// cardIDWithEffectiveRange is effectiveRangeForAttack for a single card.
// A non-NONE override replaces the card's own id before assists apply.
func (b *Battle) cardIDWithEffectiveRange(ref CardRef, override uint16) (uint16, cards.TargetMode) {
	cardID := override
	if cardID == cards.CardIDNone {
		cardID = b.cardIDForRef(ref)
	}
	var mode cards.TargetMode
	if cardID == cards.CardIDNone {
		return cardID, mode
	}
	def := b.definitionForID(cardID)
	clientID := ref.ClientID()
	if clientID == 0xFF || def == nil {
		return cardID, mode
	}
	mode = def.TargetMode
	if b.refOrSCHasFixedRange(ref) {
		if orig := b.definitionForRef(ref); orig != nil && mode < cards.TargetMultiRangeAllies {
			mode = orig.TargetMode
		}
	}
	for _, eff := range b.assistEffects(clientID) {
		switch eff {
		case cards.AssistSimple:
			cardID = b.cardIDForRef(ref)
		case cards.AssistHeavyFog:
			cardID = cards.CardIDHeavyFogRange
		}
	}
	return cardID, mode
}

// cardRefCanAttack reports whether a card may act as an attacker now.
// Action cards always can and assists never can.
func (b *Battle) cardRefCanAttack(ref CardRef) bool {
	if ref == NoRef || !b.shouldAllowAttacksOnCurrentTurn() {
		return false
	}
	def := b.definitionForRef(ref)
	if def == nil {
		return false
	}
	switch def.Type {
	case cards.TypeAction:
		return true
	case cards.TypeAssist:
		return false
	}
	clientID := ref.ClientID()
	if s := b.shortStatusForRef(ref); clientID == 0xFF || s == nil || !b.cardExistsByStatus(s) {
		return false
	}
	disabling := []cards.ConditionType{cards.CondHold, cards.CondGuom, cards.CondParalyze, cards.CondFreeze}
	if b.refHasAnyCondition(ref, disabling...) {
		return false
	}
	if def.Type == cards.TypeItem {
		sc := b.scRefOfClient(clientID)
		if sc == NoRef || b.refHasAnyCondition(sc, disabling...) {
			return false
		}
	}
	if def.Class == cards.ClassGuardItem && b.refHasCondition(ref, cards.CondShieldWeapon) {
		return true
	}
	if b.clientHasAssist(clientID, cards.AssistPermission) {
		return true
	}
	return !def.CannotAttack
}

// checkPierceAndRampage evaluates one condition of an attack against a
// target set card. It returns true when the condition grants rampage onto
// the card, and reports separately when the condition is a pierce type.
func (b *Battle) checkPierceAndRampage(ref CardRef, t cards.ConditionType, attackerRef, actionRef CardRef, effectIndex uint8, medium cards.AttackMedium) (hasRampage bool, hasPierce bool) {
	if t == cards.CondNone {
		return false, false
	}
	status := b.shortStatusForRef(ref)
	if ref != NoRef && (status == nil || !b.cardExistsByStatus(status)) {
		return false, false
	}
	if status == nil {
		return false, false
	}
	def := b.definitionForRef(status.CardRef)
	if def == nil {
		return false, false
	}
	var table *[NumShortStatuses]CardShortStatus
	if ref.ClientID() != 0xFF {
		table = b.statusTable(ref.ClientID())
	}
	if ref == NoRef {
		status = nil
		table = nil
	}
	apply := b.checkUsabilityForRefs(actionRef, attackerRef, ref, effectIndex, medium)

	huntersSC := func() (*CardShortStatus, bool) {
		if table == nil {
			return nil, false
		}
		sc := &table[ShortStatusSC]
		scDef := b.definitionForRef(sc.CardRef)
		return sc, scDef != nil && scDef.Type == cards.TypeHuntersSC
	}

	switch t {
	case cards.CondPierce, cards.CondMajorPierce, cards.CondHeavyPierce:
		return false, true
	case cards.CondRampage:
		return apply, false
	case cards.CondUnknown20:
		return status != nil && def.SelfCost < 3 && apply, false
	case cards.CondUnknown21:
		return status != nil && def.SelfCost > 2 && apply, false
	case cards.CondMajorRampage:
		if status == nil {
			return apply, false
		}
		if sc, ok := huntersSC(); ok && b.maxHPForRef(sc.CardRef) <= int16(sc.CurrentHP)*2 {
			return apply, false
		}
		return false, false
	case cards.CondHeavyRampage:
		if status == nil {
			return apply, false
		}
		if _, ok := huntersSC(); ok && b.countExistingSetCards(table) >= 3 {
			return apply, false
		}
		return false, false
	}
	return false, false
}

// attackHasRampageAndNotPierce reports whether the attack's last rampage or
// pierce effect, scanning action cards from last to first and then the
// attacker's conditions, is a rampage that reaches the set card ref.
func (b *Battle) attackHasRampageAndNotPierce(pa *ActionState, ref CardRef) bool {
	medium := b.attackMedium(pa)
	_, _, origRef, ok := b.effectiveRangeForAttack(pa)
	if !ok {
		return false
	}
	if origRef != NoRef && origRef != pa.AttackerRef &&
		!b.checkUsabilityForRefs(origRef, pa.AttackerRef, ref, 0xFF, cards.MediumInvalid) {
		return false
	}
	for x := pa.Actions.Len() - 1; x >= 0; x-- {
		actionRef := pa.Actions.At(x)
		def := b.definitionForRef(actionRef)
		if def == nil {
			continue
		}
		n := 0
		for n < len(def.Effects) && def.Effects[n].Type != cards.CondNone {
			n++
		}
		for e := n - 1; e >= 0; e-- {
			rampage, pierce := b.checkPierceAndRampage(ref, def.Effects[e].Type, pa.AttackerRef, actionRef, uint8(e), medium)
			if rampage {
				return true
			}
			if pierce {
				return false
			}
		}
	}
	if chain := b.syncedChainForRef(pa.AttackerRef); chain != nil {
		for z := MaxConditions - 1; z >= 0; z-- {
			cond := &chain.Conditions[z]
			rampage, pierce := b.checkPierceAndRampage(ref, cond.Type, pa.AttackerRef, cond.CardRef, cond.EffectIndex, medium)
			if rampage {
				return true
			}
			if pierce {
				return false
			}
		}
	}
	return false
}

// cardHasPierceOrRampage evaluates one condition of an attack against the
// story character of clientID. It returns true when the condition grants
// pierce onto it, and reports separately when the condition is a rampage
// type.
func (b *Battle) cardHasPierceOrRampage(clientID uint8, t cards.ConditionType, attackerRef, actionRef CardRef, effectIndex uint8, medium cards.AttackMedium) (hasPierce bool, hasRampage bool) {
	if t == cards.CondNone {
		return false, false
	}
	table := b.statusTable(clientID)
	scRef := NoRef
	if table != nil {
		scRef = table[ShortStatusSC].CardRef
	}
	apply := b.checkUsabilityForRefs(actionRef, attackerRef, scRef, effectIndex, medium)

	switch t {
	case cards.CondRampage, cards.CondUnknown20, cards.CondUnknown21, cards.CondMajorRampage, cards.CondHeavyRampage:
		return false, true
	case cards.CondPierce:
		return apply, false
	case cards.CondHeavyPierce:
		if table != nil {
			if def := b.definitionForRef(scRef); def != nil && def.Type == cards.TypeHuntersSC &&
				b.countExistingSetCards(table) > 2 {
				return apply, false
			}
		}
		return false, false
	case cards.CondMajorPierce:
		if table != nil {
			sc := &table[ShortStatusSC]
			if def := b.definitionForRef(scRef); def != nil && b.maxHPForRef(scRef) <= int16(sc.CurrentHP)*2 {
				return apply, false
			}
		}
		return false, false
	}
	return false, false
}

// attackHasPierceAndNotRampage reports whether the attack's last pierce or
// rampage effect is a pierce that reaches the story character of clientID
// past its items.
func (b *Battle) attackHasPierceAndNotRampage(pa *ActionState, clientID uint8) bool {
	if pa.AttackerRef.ClientID() == 0xFF || clientID >= MaxClients {
		return false
	}
	medium := b.attackMedium(pa)
	sc := b.scStatus(clientID)
	if sc == nil || !b.cardExistsByStatus(sc) || sc.CardRef == NoRef {
		return false
	}
	_, _, origRef, ok := b.effectiveRangeForAttack(pa)
	if !ok {
		return false
	}
	if origRef != NoRef && origRef != pa.AttackerRef &&
		!b.checkUsabilityForRefs(origRef, pa.AttackerRef, sc.CardRef, 0xFF, cards.MediumInvalid) {
		return false
	}
	for x := pa.Actions.Len() - 1; x >= 0; x-- {
		actionRef := pa.Actions.At(x)
		def := b.definitionForRef(actionRef)
		if def == nil {
			continue
		}
		n := 0
		for n < len(def.Effects) && def.Effects[n].Type != cards.CondNone {
			n++
		}
		for e := n - 1; e >= 0; e-- {
			pierce, rampage := b.cardHasPierceOrRampage(clientID, def.Effects[e].Type, pa.AttackerRef, actionRef, uint8(e), medium)
			if pierce {
				return true
			}
			if rampage {
				return false
			}
		}
	}
	if chain := b.syncedChainForRef(pa.AttackerRef); chain != nil {
		for z := MaxConditions - 1; z >= 0; z-- {
			cond := &chain.Conditions[z]
			pierce, rampage := b.cardHasPierceOrRampage(clientID, cond.Type, pa.AttackerRef, cond.CardRef, cond.EffectIndex, medium)
			if pierce {
				return true
			}
			if rampage {
				return false
			}
		}
	}
	return false
}

// countRampageTargetsForAttack counts the set cards of a Hunters client that
// the attack reaches by rampage.
func (b *Battle) countRampageTargetsForAttack(pa *ActionState, clientID uint8) int {
	t := b.statusTable(clientID)
	if t == nil || !b.cardExistsByStatus(&t[ShortStatusSC]) {
		return 0
	}
	def := b.definitionForRef(t[ShortStatusSC].CardRef)
	if def == nil || def.Type != cards.TypeHuntersSC {
		return 0
	}
	n := 0
	for z := ShortStatusSetBase; z < ShortStatusAssist; z++ {
		if b.cardExistsByStatus(&t[z]) && b.attackHasRampageAndNotPierce(pa, t[z].CardRef) {
			n++
		}
	}
	return n
}

// IsActionLegal checks a declared attack or defense against the current
// synchronized state. It has no side effects, so repeated calls on the same
// state give the same answer.
func (b *Battle) IsActionLegal(pa *ActionState) (bool, ErrorCode) {
	code := b.actionLegalityError(pa)
	return code == ErrNone, code
}

func (b *Battle) actionLegalityError(pa *ActionState) ErrorCode {
	hes := b.handState(pa.ClientID)
	if hes == nil {
		return ErrNoSuchPlayer
	}
	if hes.AssistFlags.Has(AssistFlagIsSkippingTurn) {
		return ErrAttackerSkipping
	}
	cost := b.attackOrDefenseCost(pa, false, nil)
	switch b.pendingActionType(pa) {
	case cards.ActionAttack:
		if int16(hes.ATKPoints) < cost {
			return ErrInsufficientPoints
		}
		return b.attackError(pa)
	case cards.ActionDefense:
		if int16(hes.DEFPoints) < cost {
			return ErrInsufficientPoints
		}
		return b.defenseError(pa)
	}
	return ErrInvalidActionType
}

func (b *Battle) attackError(pa *ActionState) ErrorCode {
	clientID := pa.ClientID
	if clientID == 0xFF {
		return ErrNoSuchPlayer
	}
	if hes := b.handState(clientID); hes != nil && hes.AssistFlags.Has(AssistFlagIsSkippingTurn) {
		return ErrAttackerSkipping
	}
	status := b.shortStatusForRef(pa.AttackerRef)
	if status == nil || !b.cardRefCanAttack(pa.AttackerRef) || status.Flags.Has(CardFlagAttackDeclared|CardFlagAttacking) {
		return ErrCannotAttack
	}
	if status.Flags.Has(CardFlagDestroyed) {
		return ErrCardDestroyed
	}
	attackerDef := b.definitionForRef(pa.AttackerRef)
	chain := b.syncedChainForRef(pa.AttackerRef)
	if chain == nil || chain.ActingRef != pa.AttackerRef || attackerDef == nil ||
		!(attackerDef.IsSC() || attackerDef.IsFC()) {
		return ErrCannotAttack
	}
	leftRef := chain.SetterRef
	if leftRef == NoRef {
		leftRef = pa.AttackerRef
	}

	hasPermission := false
	for _, eff := range b.assistEffects(clientID) {
		switch eff {
		case cards.AssistPermission:
			hasPermission = true
		case cards.AssistSkipAct:
			return ErrActionsSkipped
		}
	}

	conditional := 0
	n := pa.Actions.Len()
	for z := 0; z < n; z++ {
		rightRef := pa.Actions.At(z)
		if rightRef.ClientID() != clientID {
			return ErrActionNotOwned
		}
		var left *cards.Definition
		if z == 0 {
			left = b.definitionForRef(leftRef)
		} else {
			left = b.definitionForRef(pa.Actions.At(z - 1))
		}
		right := b.definitionForRef(rightRef)
		if right == nil || right.Type != cards.TypeAction || left == nil {
			return ErrNotActionCard
		}
		var sc *cards.Definition
		if owner := pa.AttackerRef.ClientID(); owner < MaxClients && b.players[owner] != nil {
			sc = b.definitionForRef(b.players[owner].chains[0].ActingRef)
		}
		if !cardLinkageIsValid(right, left, sc, hasPermission) {
			return ErrInvalidLinkage
		}
		if !b.checkUsabilityForRefs(rightRef, pa.AttackerRef, NoRef, 0xFF, cards.MediumInvalid) {
			return ErrActionNotUsable
		}
		if b.refHasClassUsabilityCondition(rightRef) {
			conditional++
		}
	}
	// Unreachable with a bounded action list; kept for the protocol code.
	if n > MaxActionCards {
		return ErrTooManyActions
	}

	// A Hunters SC may not make a plain attack while one of its items still
	// can; class-restricted action cards are exempt.
	if attackerDef.Type == cards.TypeHuntersSC && (n == 0 || n != conditional) {
		t := b.statusTable(clientID)
		for z := ShortStatusSetBase; z < ShortStatusAssist; z++ {
			if b.cardRefCanAttack(t[z].CardRef) {
				return ErrFCMustAttackFirst
			}
		}
	}
	return ErrNone
}

func (b *Battle) defenseError(pa *ActionState) ErrorCode {
	target := pa.Targets.At(0)
	defense := pa.Actions.At(0)
	if pa.OriginalAttackerRef == NoRef || target == NoRef || defense == NoRef || pa.ClientID >= MaxClients {
		return ErrInvalidDefense
	}
	if hes := b.handState(pa.ClientID); hes != nil && hes.AssistFlags.Has(AssistFlagIsSkippingTurn) {
		return ErrDefenderSkipping
	}
	status := b.shortStatusForRef(target)
	if status == nil || !b.cardExistsByStatus(status) || status.Flags.Has(CardFlagDefending) {
		return ErrDefenseTargetGone
	}
	if !b.defenseMatchesAnyAttackTopColor(pa) {
		return ErrDefenseColor
	}
	if !b.defenseCanApplyToAttack(defense, target, pa.OriginalAttackerRef) {
		return ErrDefenseNotApplicable
	}
	if b.clientHasAssist(pa.ClientID, cards.AssistSkipAct) {
		return ErrDefenderSkipping
	}
	if b.refHasAnyCondition(target, cards.CondHold, cards.CondCannotDefend) {
		return ErrDefenseTargetGone
	}
	return ErrNone
}

// defenseMatchesAnyAttackTopColor reports whether the defense card shares a
// top color with one of the attack's action cards, or with the attacker
// when it attacks without action cards.
func (b *Battle) defenseMatchesAnyAttackTopColor(pa *ActionState) bool {
	def := b.definitionForRef(pa.Actions.At(0))
	chain := b.syncedChainForRef(pa.OriginalAttackerRef)
	if def == nil || chain == nil {
		return false
	}
	if chain.AttackActions.Len() < 1 {
		if other := b.definitionForRef(pa.OriginalAttackerRef); other != nil && other.AnyTopColorMatches(def) {
			return true
		}
	}
	for z := 0; z < chain.AttackActions.Len(); z++ {
		if other := b.definitionForRef(chain.AttackActions.At(z)); other != nil && other.AnyTopColorMatches(def) {
			return true
		}
	}
	return false
}

var shieldClasses = map[cards.ConditionType]cards.CardClass{
	cards.CondNativeShield:  cards.ClassNativeCreature,
	cards.CondABeastShield:  cards.ClassABeastCreature,
	cards.CondMachineShield: cards.ClassMachineCreature,
	cards.CondDarkShield:    cards.ClassDarkCreature,
	cards.CondSwordShield:   cards.ClassSwordItem,
	cards.CondGunShield:     cards.ClassGunItem,
	cards.CondCaneShield:    cards.ClassCaneItem,
}

// defenseCanApplyToAttack applies the cost window of DEF_DISABLE_BY_COST on
// the attacker and the class filters of shield defenses. Note the argument
// order: the second ref is the attacking card whose chain is consulted and
// the third is the attacker's story character.
func (b *Battle) defenseCanApplyToAttack(defenseRef, attackerRef, attackerSCRef CardRef) bool {
	def := b.definitionForRef(defenseRef)
	if def == nil {
		return false
	}
	scDef := b.definitionForRef(attackerSCRef)
	attackerDef := b.definitionForRef(attackerRef)
	chain := b.syncedChainForRef(attackerRef)
	if chain == nil {
		return false
	}
	for z := range chain.Conditions {
		cond := &chain.Conditions[z]
		if cond.Type == cards.CondDEFDisableByCost {
			lo, hi := uint8(cond.Value/10), uint8(cond.Value%10)
			if def.SelfCost >= lo && def.SelfCost <= hi {
				return false
			}
		}
	}
	for _, eff := range def.Effects {
		class, ok := shieldClasses[eff.Type]
		if !ok {
			continue
		}
		if (scDef == nil || scDef.Class != class) && (attackerDef == nil || attackerDef.Class != class) {
			return false
		}
	}
	return true
}
