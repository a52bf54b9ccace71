package battle

import (
	"go.uber.org/zap"

	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/expr"
)

// StatSwapType is the AP/TP/HP exchange currently in force on a card.
type StatSwapType uint8

const (
	StatSwapNone StatSwapType = iota
	StatSwapAT
	StatSwapAH
)

func (t StatSwapType) String() string {
	switch t {
	case StatSwapNone:
		return "none"
	case StatSwapAT:
		return "a_t_swap"
	case StatSwapAH:
		return "a_h_swap"
	}
	return "invalid"
}

// Flags of the stat-delta effect events. The low bit pattern tells clients
// which stat moved.
const (
	statDeltaHP uint8 = 0x20
	statDeltaTP uint8 = 0x80
	statDeltaAP uint8 = 0xA0
)

// Operations of effect events that are not condition types.
const (
	opInterference  int8 = 0x7D
	opCardDestroyed int8 = 0x7E
)

func (b *Battle) statSwapType(c *Card) StatSwapType {
	if c == nil {
		return StatSwapNone
	}
	ret := StatSwapNone
	for z := range c.Chain.Conditions {
		cond := &c.Chain.Conditions[z]
		if cond.IsEmpty() || b.conditionHasAbilityTrap(cond) {
			continue
		}
		switch cond.Type {
		case cards.CondUnknown75:
			if ret == StatSwapAH {
				ret = StatSwapNone
			} else {
				ret = StatSwapAH
			}
		case cards.CondATSwap:
			if ret == StatSwapAT {
				ret = StatSwapNone
			} else {
				ret = StatSwapAT
			}
		}
	}
	return ret
}

func (b *Battle) effectiveAPTP(swap StatSwapType, hp, ap, tp int16) (int16, int16) {
	switch swap {
	case StatSwapAT:
		return tp, ap
	case StatSwapAH:
		return hp, tp
	}
	return ap, tp
}

// conditionHasAbilityTrap reports whether the card that granted cond is
// itself under an ability trap, which suspends the condition.
func (b *Battle) conditionHasAbilityTrap(cond *Condition) bool {
	card := b.cardForRef(cond.CardRef)
	if card == nil {
		return false
	}
	return b.cardHasConditionWithRef(card, cards.CondAbilityTrap, NoRef, NoRef)
}

// cardHasConditionWithRef looks for a condition of type t whose CardRef is
// not ref. When match is given, the result is whether ref equals match, not
// whether the found condition does: callers only ever pass NoRef for both,
// so this never matters in practice.
func (b *Battle) cardHasConditionWithRef(c *Card, t cards.ConditionType, ref, match CardRef) bool {
	for z := range c.Chain.Conditions {
		cond := &c.Chain.Conditions[z]
		if cond.Type == t && cond.CardRef != ref {
			if match != NoRef {
				return ref == match
			}
			return true
		}
	}
	return false
}

// originalEffectForCondition returns the card effect that created cond, or
// nil if the granting card is unknown or the slot is empty.
func (b *Battle) originalEffectForCondition(cond *Condition) *cards.Effect {
	def := b.definitionForRef(cond.CardRef)
	if def == nil || int(cond.EffectIndex) >= len(def.Effects) {
		return nil
	}
	eff := &def.Effects[cond.EffectIndex]
	if eff.Type == cards.CondNone {
		return nil
	}
	return eff
}

func (b *Battle) refIsEmptyOrKnown(ref CardRef) bool {
	return ref == NoRef || b.definitionForRef(ref) != nil
}

// validRefOrNone replaces a reference to an unknown card by NoRef and, for a
// nonzero code, tells clients which event carried the bad reference.
func (b *Battle) validRefOrNone(ref CardRef, code int8) CardRef {
	if b.refIsEmptyOrKnown(ref) {
		return ref
	}
	if code != 0 {
		res := NewEffectResult()
		res.Flags = 0x04
		res.Value = code
		res.Operation = opCardDestroyed
		b.send(&EffectEvent{Effect: res})
	}
	b.logger.Warn("effect references unknown card", zap.Stringer("ref", ref), zap.Int8("code", code))
	return NoRef
}

func clampStat(v int16) int16 {
	return clamp16(v, -99, 99)
}

func clampDisplay(v int16) int8 {
	return int8(clamp16(v, 0, 99))
}

func (b *Battle) sendExpChange(c *Card, attackerRef CardRef, value int16, showHP bool) {
	res := NewEffectResult()
	res.Flags = 0x02
	res.AttackerRef = b.validRefOrNone(attackerRef, 10)
	res.TargetRef = c.Ref
	res.DiceRollValue = uint8(value)
	res.AP = clampDisplay(c.AP)
	res.CurrentHP = clampDisplay(c.HP)
	if !showHP {
		res.CurrentHP = int8(uint8(res.CurrentHP) | 0x80)
	}
	// An overflowing TP is reported in the AP field and TP is left zero.
	// Clients were built against this, so it is kept.
	if c.TP > 99 {
		res.AP = 99
	} else {
		res.TP = clampDisplay(c.TP)
	}
	b.send(&EffectEvent{Effect: res})
}

func (b *Battle) sendCardDestroyed(c *Card, attackerRef CardRef) {
	res := NewEffectResult()
	res.Flags = 0x04
	res.AttackerRef = b.validRefOrNone(attackerRef, 0x13)
	res.TargetRef = c.Ref
	res.Operation = opCardDestroyed
	b.send(&EffectEvent{Effect: res})
}

// sendStatDelta reports a stat change. With clampToMax the delta is first
// limited so HP cannot exceed the card's maximum, and nothing is sent if no
// change remains.
func (b *Battle) sendStatDelta(c *Card, attackerRef CardRef, flags uint8, delta int16, clampToMax bool, showHP bool) {
	if flags == statDeltaHP && (delta > 50 || delta < -50) {
		if delta < 0 {
			delta = -c.HP
		} else {
			delta = c.MaxHP - c.HP
		}
	}
	if clampToMax {
		delta = min(delta+c.HP, c.MaxHP) - c.HP
		if delta == 0 {
			return
		}
	}
	res := NewEffectResult()
	res.Flags = flags | 0x02
	res.AttackerRef = b.validRefOrNone(attackerRef, 10)
	res.TargetRef = c.Ref
	res.Value = int8(-delta)
	res.AP = clampDisplay(c.AP)
	res.CurrentHP = clampDisplay(c.HP)
	res.TP = clampDisplay(c.TP)
	if !showHP {
		res.CurrentHP = int8(uint8(res.CurrentHP) | 0x80)
	}
	b.send(&EffectEvent{Effect: res})
}

// sendConditionRemoved announces that the condition in slot index of c is
// gone. index < 0 leaves the slot unspecified.
func (b *Battle) sendConditionRemoved(c *Card, attackerRef CardRef, t cards.ConditionType, index int) {
	res := NewEffectResult()
	res.Flags = 0x04
	res.AttackerRef = attackerRef
	res.TargetRef = c.Ref
	res.Operation = -int8(t)
	if index >= 0 {
		res.ConditionIndex = uint8(index)
	}
	b.send(&EffectEvent{Effect: res})
}

func (b *Battle) sendDiceUsed(attackerRef, targetRef CardRef, code int8, dice uint8) {
	res := NewEffectResult()
	res.Flags = 0x08
	res.AttackerRef = b.validRefOrNone(attackerRef, code)
	res.TargetRef = targetRef
	res.DiceRollValue = dice
	b.send(&EffectEvent{Effect: res})
}

func (b *Battle) computeTeamDiceBonus(team uint8) {
	value := 0
	if n := int(b.teamClientCount[team]) * 12; n > 0 {
		value = int(b.teamEXP[team]) / n
	}
	value = int(uint8(value))
	value = b.adjustDiceBoostForCondition52(team, value)
	b.teamDiceBonus[team] = uint8(min(value, 8))
}

// adjustDiceBoostForCondition52 is reached only without a card to inspect,
// so the multiplier below never applies. It is kept so that a future caller
// with a card behaves like the rest of the rules.
func (b *Battle) adjustDiceBoostForCondition52(team uint8, boost int) int {
	return b.adjustDiceBoostForCard(team, boost, nil)
}

func (b *Battle) adjustDiceBoostForCard(team uint8, boost int, c *Card) int {
	if c == nil || team == 0xFF || c.Flags.IsOutOfPlay() {
		return boost
	}
	if p := c.player(b); p == nil || p.TeamID != team {
		return boost
	}
	for z := range c.Chain.Conditions {
		cond := &c.Chain.Conditions[z]
		if cond.Type == cards.CondUnknown52 && !b.conditionHasAbilityTrap(cond) {
			boost = int(uint8(boost * int(cond.Value8)))
		}
	}
	return boost
}

// applyStatDeltasAndClearCondition undoes the persistent stat change a
// condition made, if it made one, and empties its slot.
func (b *Battle) applyStatDeltasAndClearCondition(cond *Condition, c *Card) {
	v := clampStat(cond.Value)
	t := cond.Type
	applied := cond.Flags&2 != 0
	ref := c.Ref
	cond.Clear()
	if !applied {
		return
	}

	switch t {
	case cards.CondATSwap0C, cards.CondATSwapPerm:
		ap := clampStat(c.AP)
		tp := clampStat(c.TP)
		b.sendStatDelta(c, ref, statDeltaAP, tp-ap, false, false)
		b.sendStatDelta(c, ref, statDeltaTP, ap-tp, false, false)
		c.AP, c.TP = tp, ap

	case cards.CondAHSwap, cards.CondAHSwapPerm:
		ap := clampStat(c.AP)
		hp := clampStat(c.HP)
		if hp != ap {
			b.sendStatDelta(c, ref, statDeltaAP, hp-ap, false, false)
			b.sendStatDelta(c, ref, statDeltaHP, ap-hp, false, false)
			c.setCurrentHP(b, ap, true, true)
			c.AP = hp
			b.destroyIfHPZero(c, ref)
		}

	case cards.CondAPOverride:
		// An override is meant to yield to another AP override still on the
		// card, but that lookup never finds one, so the full delta is always
		// undone.
		fallthrough
	case cards.CondMiscAPBonuses:
		b.sendStatDelta(c, ref, statDeltaAP, -v, false, false)
		c.AP = max(c.AP-v, 0)

	case cards.CondTPOverride:
		// Same never-found lookup as the AP case.
		fallthrough
	case cards.CondMiscTPBonuses:
		b.sendStatDelta(c, ref, statDeltaTP, -v, false, false)
		c.TP = max(c.TP-v, 0)

	case cards.CondAPSilence:
		b.sendStatDelta(c, ref, statDeltaAP, v, false, false)
		c.AP = max(c.AP+v, 0)

	case cards.CondTPSilence:
		b.sendStatDelta(c, ref, statDeltaTP, v, false, false)
		c.TP = max(c.TP+v, 0)
	}
}

// applyStatDeltasToCardFromConditionsWithRef clears every condition on c
// that ref granted, newest slot first.
func (b *Battle) applyStatDeltasToCardFromConditionsWithRef(ref CardRef, c *Card) {
	for z := MaxConditions - 1; z >= 0; z-- {
		cond := &c.Chain.Conditions[z]
		if !cond.IsEmpty() && cond.CardRef == ref {
			b.applyStatDeltasAndClearCondition(cond, c)
		}
	}
}

func (b *Battle) applyStatDeltasToAllCardsFromConditionsWithRef(ref CardRef) {
	for _, p := range b.players {
		if p == nil {
			continue
		}
		p.forEachCard(func(c *Card) { b.applyStatDeltasToCardFromConditionsWithRef(ref, c) })
	}
}

func (b *Battle) cardIsDestroyed(c *Card) bool {
	if c.Flags.IsOutOfPlay() {
		return true
	}
	if c.HP > 0 {
		return false
	}
	return !b.cardIsProtectedFromDestruction(c.Ref)
}

func (b *Battle) destroyIfHPZero(c *Card, attackerRef CardRef) {
	if c != nil && c.HP <= 0 {
		c.destroy(b, b.cardForRef(attackerRef))
	}
}

// attackStateFromChain rebuilds the declaration of the attack c is
// currently making.
func (b *Battle) attackStateFromChain(c *Card) ActionState {
	as := NewActionState()
	if c == nil {
		return as
	}
	as.AttackerRef = b.validRefOrNone(c.Ref, 4)
	b.copyValidRefs(&as.Actions, &c.Chain.AttackActions, 5)
	b.copyValidRefs(&as.Targets, &c.Chain.Targets, 6)
	return as
}

// copyValidRefs copies src into dst up to the first unknown ref, which
// ends the list.
func (b *Battle) copyValidRefs(dst, src *RefList, code int8) {
	dst.Clear()
	for z := 0; z < src.Len(); z++ {
		ref := b.validRefOrNone(src.At(z), code)
		if ref == NoRef {
			return
		}
		dst.Add(ref)
	}
}

// defenseStateForPair builds the declaration of the defenses defender set
// against attacker.
func (b *Battle) defenseStateForPair(attacker, defender *Card) ActionState {
	as := NewActionState()
	if attacker != nil && defender != nil {
		for z := 0; z < defender.Metadata.Defenses.Len(); z++ {
			ref := defender.Metadata.Defenses.At(z)
			if ref != NoRef && defender.Metadata.DefenseFor.At(z) == attacker.Ref {
				if ref = b.validRefOrNone(ref, 7); ref == NoRef {
					break
				}
				as.Actions.Add(ref)
			}
		}
	}
	if defender != nil {
		if ref := b.validRefOrNone(defender.Ref, 8); ref != NoRef {
			as.Targets.Add(ref)
		}
	}
	if attacker != nil {
		as.OriginalAttackerRef = b.validRefOrNone(attacker.Ref, 9)
	}
	return as
}

func (as *ActionState) effectiveAttackerRef() CardRef {
	if as.AttackerRef == NoRef {
		return as.OriginalAttackerRef
	}
	return as.AttackerRef
}

func (b *Battle) conditionAppliesOnSCOrItemAttack(cond *Condition) bool {
	def := b.definitionForRef(cond.CardRef)
	if def == nil || int(cond.EffectIndex) >= len(def.Effects) {
		return false
	}
	when := def.Effects[cond.EffectIndex].When
	return when == cards.WhenAfterCreatureOrHunterSCAttack || when == cards.WhenBeforeCreatureOrHunterSCAttack
}

// countActionCardsWithCondition counts the attack and defense cards of c,
// other than exceptRef, that carry an effect of type t.
func (b *Battle) countActionCardsWithCondition(c *Card, t cards.ConditionType, exceptRef CardRef) int {
	if c == nil {
		return 0
	}
	n := 0
	check := func(ref CardRef) {
		if ref == exceptRef {
			return
		}
		def := b.definitionForRef(ref)
		if def == nil {
			return
		}
		for _, eff := range def.Effects {
			if eff.Type == cards.CondNone {
				break
			}
			if eff.Type == t {
				n++
				break
			}
		}
	}
	for z := 0; z < c.Chain.AttackActions.Len(); z++ {
		check(c.Chain.AttackActions.At(z))
	}
	for z := 0; z < c.Metadata.Defenses.Len(); z++ {
		check(c.Metadata.Defenses.At(z))
	}
	return n
}

func (b *Battle) countActionCardsWithConditionForAllAttacks(t cards.ConditionType, exceptRef CardRef) int {
	n := 0
	for _, p := range b.players {
		if p == nil {
			continue
		}
		n += b.countActionCardsWithCondition(p.SC, t, exceptRef)
		for _, c := range p.SetCards {
			n += b.countActionCardsWithCondition(c, t, exceptRef)
		}
	}
	return n
}

func (b *Battle) countSetCardsWithCardIDExcept(cardID uint16, exceptRef CardRef) int {
	n := 0
	for _, p := range b.players {
		if p == nil {
			continue
		}
		for _, c := range p.SetCards {
			if c != nil && c.Ref != exceptRef && c.Def.CardID == cardID {
				n++
			}
		}
	}
	return n
}

// cardsByTeamAndClass lists SCs and set cards of class on team (0xFF for
// any team).
func (b *Battle) cardsByTeamAndClass(class cards.CardClass, team uint8, excludeDestroyed bool) []*Card {
	var ret []*Card
	check := func(c *Card) {
		if c != nil && (!excludeDestroyed || !c.Flags.IsDestroyed()) && c.Def.Class == class &&
			(team == 0xFF || c.TeamID == team) {
			ret = append(ret, c)
		}
	}
	for _, p := range b.players {
		if p == nil {
			continue
		}
		check(p.SC)
		for _, c := range p.SetCards {
			check(c)
		}
	}
	return ret
}

func (b *Battle) sumLastAttackDamage(out *[]*Card) (sum int32, count int) {
	check := func(c *Card) {
		if c == nil || c.lastAttackFinalDamage <= 0 {
			return
		}
		sum += int32(c.lastAttackFinalDamage)
		if out != nil {
			*out = append(*out, c)
		}
		count++
	}
	for _, p := range b.players {
		if p == nil {
			continue
		}
		check(p.SC)
		for _, c := range p.SetCards {
			check(c)
		}
	}
	return sum, count
}

func (b *Battle) maxAllAttackBonuses() (maxBonus int16, count int) {
	check := func(c *Card) {
		if c == nil {
			return
		}
		bonus := int16(c.Metadata.AttackBonus)
		maxBonus = max(maxBonus, bonus)
		if bonus > 0 {
			count++
		}
	}
	for _, p := range b.players {
		if p == nil {
			continue
		}
		check(p.SC)
		for _, c := range p.SetCards {
			check(c)
		}
	}
	return maxBonus, count
}

// findConditionWithParameters returns the latest-applied untrapped
// condition on c matching t (or any type for CondAny), the granting card
// and the 1-based effect number (0xFF for any).
func (b *Battle) findConditionWithParameters(c *Card, t cards.ConditionType, setRef CardRef, effectNum uint8) *Condition {
	var ret *Condition
	maxOrder := uint8(9)
	for z := range c.Chain.Conditions {
		cond := &c.Chain.Conditions[z]
		if cond.IsEmpty() || b.conditionHasAbilityTrap(cond) {
			continue
		}
		if t != cards.CondAny && cond.Type != t {
			continue
		}
		if setRef != NoRef && cond.CardRef != setRef {
			continue
		}
		if effectNum != 0xFF {
			orig := b.originalEffectForCondition(cond)
			if orig == nil || orig.EffectNum != effectNum {
				continue
			}
		}
		if ret == nil || maxOrder < cond.Order {
			maxOrder = cond.Order
			ret = cond
		}
	}
	return ret
}

// shouldCancelDueToAntiAbnormality reports whether c refuses the condition
// eff would grant.
func (b *Battle) shouldCancelDueToAntiAbnormality(eff *cards.Effect, c *Card, targetRef, scRef CardRef) bool {
	if c == nil {
		return false
	}
	if c.Flags.IsOutOfPlay() ||
		(c.Metadata.Flags.Has(MetadataFlagDamageBlocked) && c.Ref != targetRef && c.Ref != scRef) {
		return true
	}
	if c.Def.IsSC() && eff.Type == cards.CondFreeze {
		return true
	}
	switch eff.Type {
	case cards.CondGuom, cards.CondCurse, cards.CondImmobile, cards.CondHold, cards.CondParalyze,
		cards.CondAcid, cards.CondFreeze, cards.CondDrop:
		return b.findConditionWithParameters(c, cards.CondAntiAbnormality2, NoRef, 0xFF) != nil ||
			b.refIsBossSC(c.Ref)
	}
	return false
}

// shouldReturnCardToHandOnDestruction reports whether a Return condition on
// the card itself, or a Reborn naming its card id on any of its owner's
// cards, sends it back to the hand.
func (b *Battle) shouldReturnCardToHandOnDestruction(ref CardRef) bool {
	if ref == NoRef {
		return false
	}
	def := b.definitionForRef(ref)
	p := b.player(ref.ClientID())
	if def == nil || p == nil {
		return false
	}
	check := func(c *Card) bool {
		if c == nil {
			return false
		}
		for z := range c.Chain.Conditions {
			cond := &c.Chain.Conditions[z]
			if b.conditionHasAbilityTrap(cond) {
				continue
			}
			switch cond.Type {
			case cards.CondReturn:
				if !c.Flags.Has(CardFlagInactive) && c.Ref == ref {
					return true
				}
			case cards.CondReborn:
				if !c.Flags.IsOutOfPlay() && def.CardID == uint16(cond.Value) {
					return true
				}
			}
		}
		return false
	}
	for _, c := range p.SetCards {
		if check(c) {
			return true
		}
	}
	return check(p.SC)
}

// adjustAttackDamageDueToConditions applies the target's damage-reducing
// conditions to an incoming hit.
func (b *Battle) adjustAttackDamageDueToConditions(target *Card, dmg int16, attackerRef CardRef) int16 {
	medium := cards.MediumUnknown
	if attacker := b.cardForRef(attackerRef); attacker != nil {
		medium = attacker.Chain.Medium
	}
	for z := range target.Chain.Conditions {
		cond := &target.Chain.Conditions[z]
		if cond.IsEmpty() || b.conditionHasAbilityTrap(cond) {
			continue
		}
		if !b.checkUsabilityForRefs(cond.CardRef, target.Ref, attackerRef, cond.EffectIndex, medium) {
			continue
		}
		switch cond.Type {
		case cards.CondWeakHitBlock:
			if dmg <= cond.Value {
				dmg = 0
			}
		case cards.CondEXPDecoy:
			if p := target.player(b); p != nil {
				team := p.TeamID
				deducted := int16(b.teamEXP[team])
				if deducted < dmg {
					dmg -= deducted
					b.teamEXP[team] = 0
				} else {
					b.teamEXP[team] = int32(deducted - dmg)
					deducted = dmg
					dmg = 0
				}
				b.sendExpChange(target, attackerRef, -deducted, true)
				b.computeTeamDiceBonus(team)
			}
		case cards.CondUnknown73:
			if cond.Value <= dmg {
				dmg = 0
			}
		case cards.CondHalfguard:
			if cond.Value <= dmg {
				dmg /= 2
			}
		}
	}
	return dmg
}

// computeAttackAP applies the AP overrides that conditions anywhere on the
// field place on attacks against target.
func (b *Battle) computeAttackAP(target *Card, ap int16, attackerRef CardRef) int16 {
	attacker := b.cardForRef(attackerRef)
	medium := cards.MediumUnknown
	if attacker != nil {
		medium = attacker.Chain.Medium
	}
	check := func(c *Card) {
		if c == nil || c.Flags.IsOutOfPlay() {
			return
		}
		for z := range c.Chain.Conditions {
			cond := &c.Chain.Conditions[z]
			if cond.IsEmpty() || b.conditionHasAbilityTrap(cond) {
				continue
			}
			if !b.checkUsabilityForRefs(cond.CardRef, target.Ref, attackerRef, cond.EffectIndex, medium) {
				continue
			}
			if (cond.Type == cards.CondUnknown5F && target.Ref == cond.GiverRef) ||
				(cond.Type == cards.CondUnknown60 && target.Ref == cond.CardRef) {
				ap = int16(cond.Value8)
			}
		}
	}
	for _, p := range b.players {
		if p == nil {
			continue
		}
		for _, c := range p.SetCards {
			check(c)
		}
		check(p.SC)
	}
	if attacker != nil {
		if v, ok := attacker.ConditionValue(cards.CondUnknown7D, NoRef, 0xFF, 0xFFFF); ok && v != 0 {
			ap = int16(float32(ap) * 1.5)
		}
	}
	if v, ok := target.ConditionValue(cards.CondUnknown7D, NoRef, 0xFF, 0xFFFF); ok && v != 0 {
		ap = 0
	}
	return ap
}

// applyActionConditions runs the conditions on defender whose effect fires
// at when. An attacker applying its own conditions uses its attack state
// (or as, when given); otherwise the defender's defenses against attacker
// are used.
func (b *Battle) applyActionConditions(when cards.EffectWhen, attacker, defender *Card, perms EffectPermissions, as *ActionState) {
	var state ActionState
	if attacker == defender {
		state = b.attackStateFromChain(attacker)
		if as != nil {
			state = *as
		}
	} else {
		state = b.defenseStateForPair(attacker, defender)
	}
	b.applyDefenseConditions(&state, when, defender, perms)
}

func (b *Battle) applyDefenseConditions(as *ActionState, when cards.EffectWhen, defender *Card, perms EffectPermissions) {
	for z := range defender.Chain.Conditions {
		b.applyDefenseCondition(when, &defender.Chain.Conditions[z], z, as, defender, perms, false)
	}
}

// applyDefenseCondition re-evaluates one existing condition on defender. A
// condition whose source no longer targets the card is dropped; Guom ends
// once the card takes damage; Acid burns 1 HP at the start of its owner's
// dice phase. Otherwise the condition's expression is evaluated and applied
// within perms.
func (b *Battle) applyDefenseCondition(when cards.EffectWhen, cond *Condition, index int, as *ActionState,
	defender *Card, perms EffectPermissions, suppressDiceEvent bool) bool {
	if cond.IsEmpty() {
		return false
	}
	orig := b.originalEffectForCondition(cond)
	attackerRef := as.effectiveAttackerRef()
	trapped := b.conditionHasAbilityTrap(cond)

	if perms.Has(PermitPersistentStats) && !b.isCardTargetedByCondition(cond, as, defender) {
		b.sendConditionRemoved(defender, b.validRefOrNone(attackerRef, 0x0D), cond.Type, -1)
		b.applyStatDeltasAndClearCondition(cond, defender)
		defender.sendUpdatesIfNeeded(b, false)
		return false
	}

	if when == cards.WhenAfterAnyCardAttack && cond.Type == cards.CondGuom && perms.Has(PermitPersistentStats) {
		if s := defender.ShortStatus(b); s.Flags.Has(CardFlagTookDamage) {
			b.sendConditionRemoved(defender, attackerRef, cond.Type, index)
			b.applyStatDeltasAndClearCondition(cond, defender)
			defender.sendUpdatesIfNeeded(b, false)
			return false
		}
	}

	if when == cards.WhenBeforeDicePhaseThisTeamTurn && perms.Has(PermitPersistentStats) && !trapped &&
		cond.Type == cards.CondAcid {
		if hp := defender.HP; hp > 0 {
			b.sendStatDelta(defender, cond.CardRef, statDeltaHP, -1, false, true)
			defender.setCurrentHP(b, hp-1, true, true)
			b.destroyIfHPZero(defender, cond.GiverRef)
		}
	}

	if orig == nil || orig.When != when {
		perms &^= PermitPersistentStats
	}
	if perms == 0 || trapped {
		return false
	}

	dice := cond.DiceRollValue
	origFlags := cond.Flags
	stats := b.computeAttackEnvStats(as, defender, dice, cond.CardRef, cond.GiverRef)
	value, diceUsed := b.evaluateEffectExpr(&stats, orig.Expr)
	b.executeEffect(cond, defender, value, cond.Value, orig.Type, perms, attackerRef)
	if perms.Has(PermitPersistentStats) {
		if !defender.Flags.IsDestroyed() {
			defender.computeActionChainResults(b, true, false)
		}
		defender.Chain.CardAP = int8(defender.AP)
		defender.Chain.CardTP = int8(defender.TP)
		defender.sendUpdatesIfNeeded(b, false)
	}

	if diceUsed && origFlags&1 == 0 && !suppressDiceEvent {
		cond.Flags |= 1
		b.sendDiceUsed(attackerRef, cond.CardRef, 0x10, dice)
	}
	return true
}

// evaluateEffectExpr evaluates a card expression. Card data is validated at
// load time, so a failure here means a corrupt definition; it is logged and
// evaluates to 0.
func (b *Battle) evaluateEffectExpr(stats *expr.Stats, text string) (int16, bool) {
	if text == "" {
		return 0, false
	}
	res, err := expr.Evaluate(text, stats)
	if err != nil {
		b.logger.Error("cannot evaluate effect expression", zap.String("expr", text), zap.Error(err))
		return 0, res.DiceUsed
	}
	return int16(max(-0x8000, min(res.Value, 0x7FFF))), res.DiceUsed
}

// computeAttackEnvStats snapshots the statistics card expressions can
// reference, seen from card with targetRef (or giverRef) as the other
// party.
func (b *Battle) computeAttackEnvStats(as *ActionState, c *Card, dice uint8, targetRef, giverRef CardRef) expr.Stats {
	var st expr.Stats
	attacker := b.cardForRef(as.AttackerRef)
	if attacker == nil && as.OriginalAttackerRef != NoRef {
		attacker = b.cardForRef(as.OriginalAttackerRef)
	}
	p := c.player(b)

	st.SetInt(expr.StatNumSetCards, p.countSetCards())
	total := 0
	for _, other := range b.players {
		if other != nil {
			total += other.countSetCards()
		}
	}
	st.SetInt(expr.StatTotalNumSetCards, total)

	target := b.cardForRef(targetRef)
	if target == nil {
		target = b.cardForRef(giverRef)
	}
	targetTeam := uint8(0xFF)
	if target != nil {
		targetTeam = target.player(b).TeamID
	}
	targetTeamCount, otherTeamCount := 0, 0
	for _, other := range b.players {
		if other == nil {
			continue
		}
		if other.TeamID == targetTeam {
			targetTeamCount += other.countSetCards()
		} else {
			otherTeamCount += other.countSetCards()
		}
	}
	st.SetInt(expr.StatTargetTeamNumSetCards, targetTeamCount)
	st.SetInt(expr.StatNonTargetTeamNumSetCards, otherTeamCount)

	st.SetInt(expr.StatNumNativeCreatures, len(b.cardsByTeamAndClass(cards.ClassNativeCreature, 0xFF, true)))
	st.SetInt(expr.StatNumABeastCreatures, len(b.cardsByTeamAndClass(cards.ClassABeastCreature, 0xFF, true)))
	st.SetInt(expr.StatNumMachineCreatures, len(b.cardsByTeamAndClass(cards.ClassMachineCreature, 0xFF, true)))
	st.SetInt(expr.StatNumDarkCreatures, len(b.cardsByTeamAndClass(cards.ClassDarkCreature, 0xFF, true)))
	st.SetInt(expr.StatNumSwordItems, len(b.cardsByTeamAndClass(cards.ClassSwordItem, 0xFF, true)))
	st.SetInt(expr.StatNumGunItems, len(b.cardsByTeamAndClass(cards.ClassGunItem, 0xFF, true)))
	st.SetInt(expr.StatNumCaneItems, len(b.cardsByTeamAndClass(cards.ClassCaneItem, 0xFF, true)))
	st.SetInt(expr.StatNumSwordItemsOnTeam, len(b.cardsByTeamAndClass(cards.ClassSwordItem, c.TeamID, true)))

	// The hand holds card refs, but they are looked up as card ids here, so
	// the count depends on which ids the refs happen to collide with.
	fcsInHand := 0
	for z := 0; z < MaxHandSize; z++ {
		if def := b.definitionForID(uint16(p.HandRef(z))); def != nil && def.IsFC() {
			fcsInHand++
		}
	}
	st.SetInt(expr.StatNumFCsInHand, fcsInHand)
	st.SetInt(expr.StatNumDestroyedAllyFCs, c.numDestroyedAllyFCs)

	st.Set(expr.StatDiceRoll1, uint32(dice))
	st.Set(expr.StatDiceRoll2, uint32(dice))
	st.SetInt(expr.StatEffectiveAP, int(c.Chain.EffectiveAP))
	st.SetInt(expr.StatEffectiveTP, int(c.Chain.EffectiveTP))
	st.SetInt(expr.StatCurrentHP, int(c.HP))
	st.SetInt(expr.StatMaxHP, int(c.MaxHP))
	st.SetInt(expr.StatTeamDiceBonus, int(b.teamDiceBonus[c.TeamID&1]))

	apIfNot := func(m cards.AttackMedium) int {
		if attacker == nil || attacker.Chain.Medium == m {
			return 0
		}
		return int(attacker.Chain.Damage)
	}
	st.SetInt(expr.StatEffectiveAPIfNotTech, apIfNot(cards.MediumTech))
	st.SetInt(expr.StatEffectiveAPIfNotTech2, apIfNot(cards.MediumTech))
	st.SetInt(expr.StatEffectiveAPIfNotPhysical, apIfNot(cards.MediumPhysical))
	if attacker != nil {
		st.SetInt(expr.StatSCEffectiveAP, int(attacker.Chain.Damage))
	}

	st.SetInt(expr.StatAttackBonus, int(c.Metadata.AttackBonus))
	st.SetInt(expr.StatLastAttackPreliminaryDamage, int(c.lastAttackPreliminaryDamage))
	st.SetInt(expr.StatLastAttackDamage, int(c.lastAttackFinalDamage))
	sum, count := b.sumLastAttackDamage(nil)
	st.SetInt(expr.StatFinalLastAttackDamage, int(sum))
	st.SetInt(expr.StatLastAttackDamageCount, count)
	if target != nil {
		st.SetInt(expr.StatTargetAttackBonus, int(target.Metadata.AttackBonus))
		st.SetInt(expr.StatTargetCurrentHP, int(target.HP))
	}

	st.SetInt(expr.StatPlayerNumDestroyedFCs, int(p.NumDestroyedFCs))
	st.SetInt(expr.StatPlayerNumATKPoints, int(p.ATKPoints))
	st.SetInt(expr.StatCardCost, int(c.Def.SelfCost))
	st.SetInt(expr.StatDefinedMaxHP, int(c.MaxHP))

	// Action cards after targetRef's position in the chain (or all of them
	// when targetRef is the attacker) contribute their printed AP and TP.
	z := 0
	for zRef := as.AttackerRef; targetRef != zRef && z < MaxActionCards; z++ {
		if zRef = as.Actions.At(z); zRef == NoRef {
			break
		}
	}
	actionAP, actionTP := 0, 0
	for ; z < MaxActionCards && as.Actions.At(z) != NoRef; z++ {
		def := b.definitionForRef(as.Actions.At(z))
		if def == nil {
			continue
		}
		if def.AP.Type != cards.StatMinus {
			actionAP += int(def.AP.Value)
		}
		if def.TP.Type != cards.StatMinus {
			actionTP += int(def.TP.Value)
		}
	}
	st.SetInt(expr.StatActionCardsAP, actionAP)
	st.SetInt(expr.StatActionCardsTP, actionTP)
	return st
}
