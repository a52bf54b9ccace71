package battle

import (
	"go.uber.org/zap"

	"github.com/magefree/ep3-server-go/internal/game/cards"
)

// evaluateAndApplyEffects runs every effect of the card at setRef that
// triggers at when: it resolves the targets, checks each target's trigger
// condition, evaluates the expression and applies the resulting condition.
func (b *Battle) evaluateAndApplyEffects(when cards.EffectWhen, setRef CardRef, as *ActionState, scRef CardRef) {
	setRef = b.validRefOrNone(setRef, 1)
	def := b.definitionForRef(setRef)
	if def == nil {
		return
	}

	attackerRef := b.validRefOrNone(as.AttackerRef, 2)
	if attackerRef == NoRef {
		attackerRef = b.validRefOrNone(as.OriginalAttackerRef, 3)
	}

	// A card listed after another copy of itself in the same declaration
	// contributes no effects.
	containsSelf, containsCopy := false, false
	for z := 0; z < as.Actions.Len(); z++ {
		ref := as.Actions.At(z)
		if ref == setRef {
			containsSelf = true
			break
		}
		if other := b.definitionForRef(ref); other != nil && other.CardID == def.CardID {
			containsCopy = true
		}
	}
	if containsSelf && containsCopy {
		return
	}

	randomPercent := uint8(b.random(99))
	anyDiceUsed := false
	dice := diceRoll{clientID: setRef.ClientID(), value: 1}
	if p := b.player(setRef.ClientID()); p != nil {
		dice.value = p.rollDiceWithEffects(b, 1)
	}

	for effectIndex := uint8(0); int(effectIndex) < len(def.Effects); effectIndex++ {
		eff := &def.Effects[effectIndex]
		if eff.Type == cards.CondNone {
			break
		}
		if eff.When != when {
			continue
		}
		if eff.Arg3 == "" {
			b.logger.Error("card effect has no target selector",
				zap.Uint16("card_id", def.CardID), zap.Uint8("effect_index", effectIndex))
			continue
		}

		mode := TargetSelector(cards.AtoiSuffix(eff.Arg3))
		targets := b.targetedCardsForCondition(setRef, effectIndex, scRef, as, mode, true)

		// These effects apply once to the setter, and only if every target
		// passes the trigger condition.
		allMatched := false
		if len(targets) > 0 && (eff.Type == cards.CondUnknown64 ||
			eff.Type == cards.CondMiscDefenseBonuses || eff.Type == cards.CondMostlyHalfguards) {
			count := 0
			for _, t := range targets {
				dice.usedInExpr = false
				if b.evaluateArg2Condition(as, t, eff.Arg2, &dice, setRef, scRef, randomPercent, when) {
					count++
				}
				anyDiceUsed = anyDiceUsed || dice.usedInExpr
			}
			matched := count == len(targets)
			targets = nil
			if matched {
				setCard := b.cardForRef(setRef)
				if setCard == nil {
					setCard = b.cardForRef(scRef)
				}
				if setCard != nil {
					targets = append(targets, setCard)
				}
				allMatched = true
			}
		}

		for _, t := range targets {
			dice.usedInExpr = false
			if allMatched || b.evaluateArg2Condition(as, t, eff.Arg2, &dice, setRef, scRef, randomPercent, when) {
				stats := b.computeAttackEnvStats(as, t, dice.value, setRef, scRef)
				value, usedDice := b.evaluateEffectExpr(&stats, eff.Expr)
				dice.usedInExpr = dice.usedInExpr || usedDice

				res := b.computeReplacedTarget(t.Ref, attackerRef, replaceOptions{
					effect:         true,
					setRef:         setRef,
					scRef:          scRef,
					defEffectIndex: effectIndex,
				})
				target := res.card
				if target == nil {
					target = t
				}

				applied := -1
				if !res.defenderUnusable && !b.shouldCancelDueToAntiAbnormality(eff, target, setRef, scRef) {
					applied = target.applyAbnormalCondition(b, eff, effectIndex, setRef, scRef,
						value, int8(dice.value), int8(randomPercent))
				}
				if applied >= 0 {
					cond := &target.Chain.Conditions[applied]
					r := NewEffectResult()
					r.Flags = 0x04
					r.AttackerRef = b.validRefOrNone(attackerRef, 0x14)
					r.TargetRef = target.Ref
					r.Value = int8(cond.RemainingTurns)
					r.Operation = int8(eff.Type)
					b.send(&EffectEvent{Effect: r})
					if dice.usedInExpr {
						cond.Flags |= 1
					}
				}
				target.sendUpdatesIfNeeded(b, false)
			}
			anyDiceUsed = anyDiceUsed || dice.usedInExpr
		}
	}

	if anyDiceUsed {
		b.sendDiceUsed(attackerRef, setRef, 0x15, dice.value)
	}
}

// clearInvalidConditionsOnCard drops every condition on c whose source no
// longer targets it.
func (b *Battle) clearInvalidConditionsOnCard(c *Card, as *ActionState) {
	for z := range c.Chain.Conditions {
		cond := &c.Chain.Conditions[z]
		if cond.Type == cards.CondNone || b.isCardTargetedByCondition(cond, as, c) {
			continue
		}
		r := NewEffectResult()
		r.Flags = 0x04
		r.TargetRef = c.Ref
		r.Operation = -int8(cond.Type)
		b.send(&EffectEvent{Effect: r})
		b.applyStatDeltasAndClearCondition(cond, c)
		c.sendUpdatesIfNeeded(b, false)
	}
}

// onCardDestroyed runs the destruction triggers of the destroyed card and
// its defenses, then any Curse on the attacker.
func (b *Battle) onCardDestroyed(attacker, destroyed *Card) {
	attackState := b.attackStateFromChain(attacker)
	defenseState := b.defenseStateForPair(attacker, destroyed)

	b.evaluateAndApplyEffects(cards.WhenCardDestroyed, destroyed.Ref, &defenseState, NoRef)
	for z := 0; z < defenseState.Actions.Len(); z++ {
		b.evaluateAndApplyEffects(cards.WhenCardDestroyed, defenseState.Actions.At(z), &defenseState, destroyed.Ref)
	}

	if attacker != nil {
		for z := range attacker.Chain.Conditions {
			cond := &attacker.Chain.Conditions[z]
			if cond.Type == cards.CondCurse {
				b.executeEffect(cond, attacker, 0, 0, cards.CondCurse, PermitPersistentStats, NoRef)
			}
		}
	}
	b.sendCardDestroyed(destroyed, attackState.AttackerRef)
}

// onCardSet runs the set triggers of a card that just entered the field.
func (b *Battle) onCardSet(p *Player, ref CardRef) {
	scRef := NoRef
	if p.SC != nil {
		scRef = p.SC.Ref
	}
	as := NewActionState()
	b.evaluateAndApplyEffects(cards.WhenCardSet, ref, &as, scRef)
}

// onActionSet runs the triggers of action cards just added to a
// declaration. With a valid actionRef only that card is evaluated.
func (b *Battle) onActionSet(pa *ActionState, actionRef CardRef) {
	for z := 0; z < pa.Actions.Len(); z++ {
		ref := pa.Actions.At(z)
		if actionRef != NoRef && actionRef != ref {
			continue
		}
		if pa.OriginalAttackerRef == NoRef {
			b.evaluateAndApplyEffects(cards.WhenUnknown29, ref, pa, pa.AttackerRef)
			b.evaluateAndApplyEffects(cards.WhenUnknown2A, ref, pa, pa.AttackerRef)
		} else {
			b.evaluateAndApplyEffects(cards.WhenUnknown29, ref, pa, pa.Targets.At(0))
			b.evaluateAndApplyEffects(cards.WhenUnknown2B, ref, pa, pa.Targets.At(0))
		}
	}
}

// applyEffectsAfterAttackTargetResolution runs once the targets of a
// declared action are known.
func (b *Battle) applyEffectsAfterAttackTargetResolution(as *ActionState) {
	for z := 0; z < as.Actions.Len(); z++ {
		ref := b.validRefOrNone(as.Actions.At(z), 0x1E)
		if ref == NoRef {
			break
		}
		if b.validRefOrNone(as.OriginalAttackerRef, 0x1F) == NoRef {
			b.evaluateAndApplyEffects(cards.WhenCardSet, ref, as, b.validRefOrNone(as.AttackerRef, 0x21))
			b.evaluateAndApplyEffects(cards.WhenAfterAttackTargetResolution, ref, as, b.validRefOrNone(as.AttackerRef, 0x22))
		} else if target := b.validRefOrNone(as.Targets.At(0), 0x20); target != NoRef {
			b.evaluateAndApplyEffects(cards.WhenCardSet, ref, as, target)
			b.evaluateAndApplyEffects(cards.WhenUnknown15, ref, as, target)
		}
	}

	if as.OriginalAttackerRef != NoRef {
		return
	}
	attackerRef := b.validRefOrNone(as.AttackerRef, 0x23)
	b.evaluateAndApplyEffects(cards.WhenUnknown33, attackerRef, as, attackerRef)
	b.evaluateAndApplyEffects(cards.WhenUnknown34, attackerRef, as, attackerRef)
	// The loop is bounded by the target count but indexes the action list,
	// so it stops early when there are fewer actions than targets.
	for z := 0; z < as.Targets.Len(); z++ {
		if b.validRefOrNone(as.Actions.At(z), 0x27) == NoRef {
			break
		}
		b.evaluateAndApplyEffects(cards.WhenUnknown35, as.Targets.At(z), as, as.AttackerRef)
	}
}

func (b *Battle) scRefForCard(c *Card) CardRef {
	if p := c.player(b); p != nil && p.SC != nil {
		return p.SC.Ref
	}
	return NoRef
}

func (b *Battle) movePhaseBeforeForCard(c *Card) {
	as := b.attackStateFromChain(c)
	b.applyDefenseConditions(&as, cards.WhenBeforeMovePhase, c, PermitPersistentStats)
	b.evaluateAndApplyEffects(cards.WhenBeforeMovePhase, c.Ref, &as, NoRef)
	b.applyDefenseConditions(&as, cards.WhenBeforeMovePhaseAndAfterCardMoveFinal, c, PermitPersistentStats)
	b.evaluateAndApplyEffects(cards.WhenBeforeMovePhaseAndAfterCardMoveFinal, c.Ref, &as, NoRef)
}

func (b *Battle) dicePhaseBeforeForCard(c *Card) {
	as := NewActionState()
	as.AttackerRef = c.Ref
	as.Actions = c.Chain.AttackActions
	as.Targets = c.Chain.Targets
	scRef := b.scRefForCard(c)

	b.applyDefenseConditions(&as, cards.WhenBeforeDicePhaseAllTurnsFinal, c, PermitPersistentStats)
	b.evaluateAndApplyEffects(cards.WhenBeforeDicePhaseAllTurnsFinal, c.Ref, &as, scRef)
	if p := c.player(b); p != nil && p.isTeamTurn(b) {
		b.applyDefenseConditions(&as, cards.WhenBeforeDicePhaseThisTeamTurn, c, PermitPersistentStats)
		b.evaluateAndApplyEffects(cards.WhenBeforeDicePhaseThisTeamTurn, c.Ref, &as, scRef)
	}
}

// applyEffectsOnPhaseChange runs the triggers at when for c, its action
// cards and its targets; targets themselves trigger at targetWhen.
func (b *Battle) applyEffectsOnPhaseChange(c *Card, existing *ActionState, when, targetWhen cards.EffectWhen) {
	var as ActionState
	if existing == nil {
		as = b.attackStateFromChain(c)
	} else {
		as = *existing
	}

	b.applyDefenseConditions(&as, when, c, PermitPersistentStats)
	for z := 0; z < as.Targets.Len(); z++ {
		if target := b.cardForRef(as.Targets.At(z)); target != nil {
			targetState := b.defenseStateForPair(c, target)
			b.applyDefenseConditions(&targetState, when, target, PermitPersistentStats)
		}
	}
	b.evaluateAndApplyEffects(when, c.Ref, &as, b.scRefForCard(c))
	for z := 0; z < as.Actions.Len(); z++ {
		b.evaluateAndApplyEffects(when, as.Actions.At(z), &as, c.Ref)
	}
	for z := 0; z < as.Targets.Len(); z++ {
		target := b.cardForRef(as.Targets.At(z))
		if target == nil {
			continue
		}
		targetState := b.defenseStateForPair(c, target)
		b.evaluateAndApplyEffects(targetWhen, target.Ref, &targetState, c.Ref)
		for w := 0; w < targetState.Actions.Len(); w++ {
			b.evaluateAndApplyEffects(when, targetState.Actions.At(w), &targetState, target.Ref)
		}
	}
}

func (b *Battle) drawPhaseBeforeForCard(c *Card) {
	b.applyEffectsOnPhaseChange(c, nil, cards.WhenBeforeDrawPhase, cards.WhenUnknown0A)
}

func (b *Battle) actionPhaseBeforeForCard(c *Card) {
	if p := c.player(b); p != nil && p.isTeamTurn(b) {
		b.applyEffectsOnPhaseChange(c, nil, cards.WhenBeforeActPhase, cards.WhenUnknown0A)
	}
}

// applyEffectsOnAttackDeclared runs the 0A triggers of a queued attack and
// its targets.
func (b *Battle) applyEffectsOnAttackDeclared(c *Card, as *ActionState) {
	b.applyEffectsOnPhaseChange(c, as, cards.WhenUnknown0A, cards.WhenUnknown0A)
}

// applyAttackStatAdjustments runs the stat override and damage adjustment
// triggers of an attack, on the attacker (or its SC for an item) and on
// each target's defenses.
func (b *Battle) applyAttackStatAdjustments(c *Card, existing *ActionState) {
	var as ActionState
	if existing == nil {
		as = b.attackStateFromChain(c)
	} else {
		as = *existing
	}
	sc := b.cardForRef(b.scRefForCard(c))
	scRef := NoRef
	if sc != nil {
		scRef = sc.Ref
	}
	defender := c
	if c.Def != nil && c.Def.Type == cards.TypeItem && sc != nil {
		defender = sc
	}

	b.applyDefenseConditions(&as, cards.WhenAttackStatOverrides, c, PermitPersistentStats)
	b.applyDefenseConditions(&as, cards.WhenAttackDamageAdjustment, c, PermitPersistentStats)
	b.applyDefenseConditions(&as, cards.WhenUnknown22, defender, PermitPersistentStats)
	for z := 0; z < as.Targets.Len(); z++ {
		if target := b.cardForRef(as.Targets.At(z)); target != nil {
			ds := b.defenseStateForPair(c, target)
			b.applyDefenseConditions(&ds, cards.WhenAttackStatOverrides, target, PermitPersistentStats)
			b.applyDefenseConditions(&ds, cards.WhenDefenseDamageAdjustment, target, PermitPersistentStats)
		}
	}

	b.evaluateAndApplyEffects(cards.WhenAttackStatOverrides, c.Ref, &as, scRef)
	b.evaluateAndApplyEffects(cards.WhenAttackDamageAdjustment, c.Ref, &as, scRef)
	b.evaluateAndApplyEffects(cards.WhenUnknown22, defender.Ref, &as, scRef)
	for z := 0; z < as.Actions.Len(); z++ {
		b.evaluateAndApplyEffects(cards.WhenAttackStatOverrides, as.Actions.At(z), &as, c.Ref)
		b.evaluateAndApplyEffects(cards.WhenAttackDamageAdjustment, as.Actions.At(z), &as, c.Ref)
	}
	for z := 0; z < as.Targets.Len(); z++ {
		if target := b.cardForRef(as.Targets.At(z)); target != nil {
			ds := b.defenseStateForPair(c, target)
			b.evaluateAndApplyEffects(cards.WhenAttackStatOverrides, target.Ref, &ds, c.Ref)
			b.evaluateAndApplyEffects(cards.WhenDefenseDamageAdjustment, target.Ref, &ds, c.Ref)
		}
	}
}

// applyTargetEffectsBeforeAttack runs the set triggers of the defenses
// target declared against c.
func (b *Battle) applyTargetEffectsBeforeAttack(c, target *Card) {
	as := b.defenseStateForPair(c, target)
	for z := 0; z < as.Actions.Len(); z++ {
		b.evaluateAndApplyEffects(cards.WhenCardSet, as.Actions.At(z), &as, target.Ref)
		b.evaluateAndApplyEffects(cards.WhenUnknown15, as.Actions.At(z), &as, target.Ref)
	}
}

// attackTriggers names the four trigger points evaluated around an attack.
type attackTriggers struct {
	allCards           cards.EffectWhen
	attackerAndActions cards.EffectWhen
	creatureOrHunterSC cards.EffectWhen
	targetsAndDefenses cards.EffectWhen
}

var (
	beforeAttackTriggers = attackTriggers{
		allCards:           cards.WhenBeforeAnyCardAttack,
		attackerAndActions: cards.WhenBeforeThisCardAttack,
		creatureOrHunterSC: cards.WhenBeforeCreatureOrHunterSCAttack,
		targetsAndDefenses: cards.WhenBeforeThisCardAttacked,
	}
	afterAttackTriggers = attackTriggers{
		allCards:           cards.WhenAfterAnyCardAttack,
		attackerAndActions: cards.WhenAfterThisCardAttack,
		creatureOrHunterSC: cards.WhenAfterCreatureOrHunterSCAttack,
		targetsAndDefenses: cards.WhenAfterThisCardAttacked,
	}
)

func (b *Battle) applyEffectsAroundAttack(c *Card, tr attackTriggers) {
	as := b.attackStateFromChain(c)
	sc := b.cardForRef(b.scRefForCard(c))
	scRef := NoRef
	if sc != nil {
		scRef = sc.Ref
	}
	attacker := c
	if c.Def != nil && c.Def.Type == cards.TypeItem && sc != nil {
		attacker = sc
	}

	b.applyDefenseConditions(&as, tr.allCards, c, PermitPersistentStats)
	b.applyDefenseConditions(&as, tr.attackerAndActions, c, PermitPersistentStats)
	b.applyDefenseConditions(&as, tr.creatureOrHunterSC, attacker, PermitPersistentStats)
	for z := 0; z < as.Targets.Len(); z++ {
		if target := b.cardForRef(as.Targets.At(z)); target != nil {
			ts := b.defenseStateForPair(c, target)
			b.applyDefenseConditions(&ts, tr.allCards, target, PermitPersistentStats)
			b.applyDefenseConditions(&ts, tr.targetsAndDefenses, target, PermitPersistentStats)
		}
	}

	b.evaluateAndApplyEffects(tr.allCards, c.Ref, &as, scRef)
	b.evaluateAndApplyEffects(tr.attackerAndActions, c.Ref, &as, scRef)
	b.evaluateAndApplyEffects(tr.creatureOrHunterSC, attacker.Ref, &as, scRef)
	for z := 0; z < as.Actions.Len(); z++ {
		b.evaluateAndApplyEffects(tr.allCards, as.Actions.At(z), &as, c.Ref)
		b.evaluateAndApplyEffects(tr.attackerAndActions, as.Actions.At(z), &as, c.Ref)
	}
	for z := 0; z < as.Targets.Len(); z++ {
		target := b.cardForRef(as.Targets.At(z))
		if target == nil {
			continue
		}
		ts := b.defenseStateForPair(c, target)
		b.evaluateAndApplyEffects(tr.allCards, target.Ref, &ts, c.Ref)
		b.evaluateAndApplyEffects(tr.targetsAndDefenses, target.Ref, &ts, c.Ref)
		for w := 0; w < ts.Actions.Len(); w++ {
			b.evaluateAndApplyEffects(tr.allCards, ts.Actions.At(w), &ts, target.Ref)
			b.evaluateAndApplyEffects(tr.targetsAndDefenses, ts.Actions.At(w), &ts, target.Ref)
		}
	}
}

func (b *Battle) applyEffectsBeforeAttack(c *Card) {
	b.applyEffectsAroundAttack(c, beforeAttackTriggers)
}

func (b *Battle) applyEffectsAfterAttack(c *Card) {
	b.applyEffectsAroundAttack(c, afterAttackTriggers)
}

// applyEffectsAfterCardMove re-targets every condition on the field against
// the moved card's position, then runs its move triggers.
func (b *Battle) applyEffectsAfterCardMove(c *Card) {
	as := b.attackStateFromChain(c)
	for _, p := range b.players {
		if p == nil {
			continue
		}
		if p.SC != nil {
			b.clearInvalidConditionsOnCard(p.SC, &as)
		}
		for _, other := range p.SetCards {
			if other != nil {
				b.clearInvalidConditionsOnCard(other, &as)
			}
		}
	}
	b.applyDefenseConditions(&as, cards.WhenBeforeMovePhaseAndAfterCardMoveFinal, c, PermitPersistentStats)
	b.evaluateAndApplyEffects(cards.WhenBeforeMovePhaseAndAfterCardMoveFinal, c.Ref, &as, NoRef)
	b.applyDefenseConditions(&as, cards.WhenAfterCardMove, c, PermitPersistentStats)
	b.evaluateAndApplyEffects(cards.WhenAfterCardMove, c.Ref, &as, NoRef)
}

// interferenceAlly checks the ally side of an interference: the ally SC
// must be alive and, unless the battle allows otherwise, computer
// controlled.
func (b *Battle) interferenceAlly(ref CardRef) (*Card, bool) {
	if b.options.DisableInterference {
		return nil, false
	}
	allyRef := b.allySCRef(ref)
	if allyRef == NoRef || allyRef.ClientID() == 0xFF || ref.ClientID() == 0xFF {
		return nil, false
	}
	ally := b.cardForRef(allyRef)
	if ally == nil || ally.Flags.IsDestroyed() {
		return nil, false
	}
	hes := b.handState(allyRef.ClientID())
	if hes == nil || (!b.options.AllowNonCPUInterference && !hes.IsCPUPlayer) {
		return nil, false
	}
	return ally, true
}

// checkForAttackInterference lets a computer ally join c's attack once per
// battle, adding the interference bonus to its damage.
func (b *Battle) checkForAttackInterference(c *Card) {
	if c.Chain.Damage <= 0 {
		return
	}
	ally, ok := b.interferenceAlly(c.Ref)
	if !ok {
		return
	}
	p := c.player(b)
	if p == nil || p.attackInterferences >= 1 {
		return
	}
	rowRef := c.Ref
	if c.Def.Type == cards.TypeItem && p.SC != nil {
		rowRef = p.SC.Ref
	}
	rowID := b.cardIDForRef(rowRef)
	if rowID == cards.CardIDNone || ally.CardID == cards.CardIDNone {
		return
	}
	chance, found := interferenceChance(rowID, ally.CardID, true)
	if !found || uint8(b.random(99)) >= chance {
		return
	}

	p.attackInterferences++
	c.Chain.Flags.Set(ChainFlagInterferenceBonus)
	r := NewEffectResult()
	r.Flags = 0x04
	r.AttackerRef = b.validRefOrNone(c.Ref, 0x11)
	r.TargetRef = c.Ref
	r.Operation = opInterference
	b.send(&EffectEvent{Effect: r})
	b.logger.Info("ally interfered with attack", zap.Stringer("card", c.Ref), zap.Stringer("ally", ally.Ref))
}

// checkForDefenseInterference lets a computer ally block an attack that
// would destroy target, once per battle. It returns the damage to deal.
func (b *Battle) checkForDefenseInterference(attacker, target *Card, damage int16) int16 {
	if target.HP > damage {
		return damage
	}
	ally, ok := b.interferenceAlly(target.Ref)
	if !ok {
		return damage
	}
	if target.CardID == cards.CardIDNone || ally.CardID == cards.CardIDNone {
		return damage
	}
	p := target.player(b)
	if p == nil || p.defenseInterferences >= 1 {
		return damage
	}
	chance, found := interferenceChance(target.CardID, ally.CardID, false)
	if !found || uint8(b.random(99)) >= chance {
		return damage
	}

	p.defenseInterferences++
	r := NewEffectResult()
	r.Flags = 0x04
	r.AttackerRef = b.validRefOrNone(attacker.Ref, 0x12)
	r.TargetRef = target.Ref
	r.Operation = opInterference
	b.send(&EffectEvent{Effect: r})
	target.Metadata.Flags.Set(MetadataFlagDamageBlocked)
	b.logger.Info("ally blocked attack", zap.Stringer("card", target.Ref), zap.Stringer("ally", ally.Ref))
	return 0
}

// clientHasATKDiceBoostCondition reports whether any of the client's cards
// carries an untrapped ATK dice boost.
func (b *Battle) clientHasATKDiceBoostCondition(clientID uint8) bool {
	p := b.player(clientID)
	if p == nil {
		return false
	}
	has := func(c *Card) bool {
		if c == nil {
			return false
		}
		for z := range c.Chain.Conditions {
			cond := &c.Chain.Conditions[z]
			if cond.Type == cards.CondATKDiceBoost && !b.conditionHasAbilityTrap(cond) {
				return true
			}
		}
		return false
	}
	if has(p.SC) {
		return true
	}
	for _, c := range p.SetCards {
		if has(c) {
			return true
		}
	}
	return false
}
