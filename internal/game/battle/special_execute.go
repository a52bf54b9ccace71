package battle

import (
	"math"

	"go.uber.org/zap"

	"github.com/magefree/ep3-server-go/internal/game/cards"
)

// diceRoll is the die value an effect expression may read, and whether it
// actually did.
type diceRoll struct {
	clientID   uint8
	value      uint8
	usedInExpr bool
}

// argDigit returns the decimal digit at s[i], or a value above 9 when there
// is none.
func argDigit(s string, i int) uint8 {
	if i >= len(s) {
		return 0xD0
	}
	return s[i] - '0'
}

func argNumber(s string) int {
	if len(s) < 2 {
		return 0
	}
	return cards.Atoi(s[1:])
}

// executeEffect applies one evaluated condition to c. perms selects which
// kinds of state the caller currently allows to change. The result reports
// whether the condition stays meaningful after this application; callers
// only use it for logging.
func (b *Battle) executeEffect(cond *Condition, c *Card, exprValue int16, p5 int16, t cards.ConditionType,
	perms EffectPermissions, attackerRef CardRef) bool {
	clamped := clampStat(exprValue)
	cond.Value8 = int8(clamped)

	if b.conditionHasAbilityTrap(cond) || c.Flags.Has(CardFlagInactive) {
		return false
	}
	if c.Flags.IsOutOfPlay() ||
		(c.Metadata.Flags.Has(MetadataFlagDamageBlocked) && cond.CardRef != c.Ref && cond.GiverRef != c.Ref) {
		perms &^= PermitPersistentStats
	}
	if perms == 0 {
		return false
	}

	pos := max(clamped, 0)
	p5c := clamp16(p5, 0, 99)
	attackerSC := b.cardForRef(attackerRef)
	medium := cards.MediumUnknown
	if attackerSC != nil {
		medium = attackerSC.Chain.Medium
	}
	chain := &c.Chain
	md := &c.Metadata

	if ce := b.logger.Check(zap.DebugLevel, "execute effect"); ce != nil {
		ce.Write(zap.Stringer("card", c.Ref), zap.Stringer("type", t), zap.Int16("value", exprValue),
			zap.Stringer("perms", perms), zap.Stringer("attacker", attackerRef))
	}

	//exhaustive:enforce
	switch t {
	case cards.CondNone, cards.CondRampage, cards.CondImmobile, cards.CondHold, cards.CondCannotDefend,
		cards.CondGuom, cards.CondParalyze, cards.CondPierce, cards.CondUnused0F, cards.CondSetMVCostTo0,
		cards.CondUnused13, cards.CondAcid, cards.CondAdd1ToMVCost, cards.CondFreeze, cards.CondMajorPierce,
		cards.CondHeavyPierce, cards.CondMajorRampage, cards.CondHeavyRampage, cards.CondDEFDisableByCost:
		// Passive: these are consulted where they matter and have nothing
		// to apply here.
		return false

	case cards.CondUnknown20, cards.CondUnknown21, cards.CondClone, cards.CondFreeManeuver,
		cards.CondScaleMVCost, cards.CondAerial, cards.CondReturn, cards.CondReborn, cards.CondUnknown46,
		cards.CondTech, cards.CondBigSwing, cards.CondShieldWeapon, cards.CondATKDiceBoost,
		cards.CondGuardCreature, cards.CondUnknown52, cards.CondAntiAbnormality2, cards.CondFixedRange,
		cards.CondElude, cards.CondParry, cards.CondUnknown5F, cards.CondUnknown60, cards.CondFCLimitByCount,
		cards.CondUnknown69, cards.CondWeakHitBlock, cards.CondATSwap, cards.CondHalfguard, cards.CondUnknown73,
		cards.CondUnknown75, cards.CondReflect, cards.CondAny, cards.CondUnknown79, cards.CondUnknown7A,
		cards.CondUnknown7B, cards.CondUnknown7C, cards.CondUnknown7D:
		return false

	case cards.CondMVBonus, cards.CondUnknown39, cards.CondDefender, cards.CondSurvivalDecoys,
		cards.CondEXPDecoy, cards.CondSetMV:
		return true

	case cards.CondAPBoost:
		if perms.Has(PermitChainStats) {
			chain.APEffectBonus = int8(clampStat(int16(chain.APEffectBonus) + pos))
		}
		return true

	case cards.CondMultiStrike:
		if perms.Has(PermitChainStats) {
			chain.StrikeCount = uint8(pos)
		}
		return true

	case cards.CondDamageMod1:
		if perms.Has(PermitChainDamage) {
			chain.Damage = int8(pos)
		}
		return true

	case cards.CondTPBoost:
		if perms.Has(PermitChainStats) {
			chain.TPEffectBonus = int8(clampStat(int16(chain.TPEffectBonus) + pos))
		}
		return true

	case cards.CondGiveDamage:
		if perms.Has(PermitPersistentStats) {
			hp := clampStat(c.HP)
			newHP := clampStat(hp - pos)
			b.sendStatDelta(c, attackerRef, statDeltaHP, -pos, false, true)
			newHP = max(newHP, 0)
			if newHP != hp {
				c.setCurrentHP(b, newHP, true, true)
				b.destroyIfHPZero(c, attackerRef)
			}
		}
		return true

	case cards.CondATSwap0C, cards.CondATSwapPerm:
		if perms.Has(PermitPersistentStats) {
			ap := clampStat(c.AP)
			tp := clampStat(c.TP)
			b.sendStatDelta(c, attackerRef, statDeltaAP, tp-ap, false, false)
			b.sendStatDelta(c, attackerRef, statDeltaTP, ap-tp, false, false)
			c.AP, c.TP = tp, ap
			cond.Flags |= 2
		}
		return true

	case cards.CondAHSwap, cards.CondAHSwapPerm:
		if perms.Has(PermitPersistentStats) {
			ap := clampStat(c.AP)
			hp := clampStat(c.HP)
			b.sendStatDelta(c, attackerRef, statDeltaAP, hp-ap, false, false)
			b.sendStatDelta(c, attackerRef, statDeltaHP, ap-hp, true, false)
			cond.Flags |= 2
			if ap != hp {
				c.setCurrentHP(b, ap, true, true)
				c.AP = hp
				b.destroyIfHPZero(c, attackerRef)
			}
		}
		return true

	case cards.CondHeal:
		if perms.Has(PermitPersistentStats) {
			hp := clampStat(c.HP)
			newHP := clampStat(hp + pos)
			b.sendStatDelta(c, attackerRef, statDeltaHP, newHP-hp, true, true)
			if newHP != hp {
				c.setCurrentHP(b, newHP, true, true)
				b.destroyIfHPZero(c, attackerRef)
			}
		}
		return true

	case cards.CondReturnToHand:
		if perms.Has(PermitPersistentStats) {
			p := b.player(c.Ref.ClientID())
			if p == nil {
				return false
			}
			if c.Flags.IsDestroyed() || b.cardIsDestroyed(c) {
				return true
			}
			b.sendCardDestroyed(c, attackerRef)
			c.resetAttackState(b)
			if !p.returnSetCardToHand1(b, c.Ref) {
				return p.discardSetCard(b, c.Ref, false)
			}
		}
		return false

	case cards.CondMightyKnuckle:
		p := c.player(b)
		atk := p.ATKPoints
		if perms.Has(PermitChainStats) {
			chain.APEffectBonus = int8(clampStat(int16(chain.APEffectBonus) + p5c))
		}
		if perms.Has(PermitPersistentStats) {
			p.subtractATKPoints(atk)
		}
		return true

	case cards.CondUnitBlow:
		if perms.Has(PermitChainStats) {
			count := int16(min(b.countActionCardsWithConditionForAllAttacks(cards.CondUnitBlow, NoRef), 99))
			chain.APEffectBonus = int8(clampStat(int16(chain.APEffectBonus) + count*pos))
		}
		return false

	case cards.CondCurse:
		if perms.Has(PermitPersistentStats) {
			for z := 0; z < chain.Targets.Len(); z++ {
				target := b.cardForRef(chain.Targets.At(z))
				if target == nil || !target.ShortStatus(b).Flags.IsDestroyed() {
					continue
				}
				hp := clampStat(c.HP)
				newHP := max(hp-1, 0)
				b.sendStatDelta(c, attackerRef, statDeltaHP, -1, false, true)
				if hp != newHP {
					c.setCurrentHP(b, newHP, true, true)
					b.destroyIfHPZero(c, attackerRef)
				}
			}
		}
		return true

	case cards.CondComboAP:
		if perms.Has(PermitChainStats) {
			count := int16(min(b.countActionCardsWithConditionForAllAttacks(cards.CondComboAP, NoRef), 99))
			chain.APEffectBonus = int8(clampStat(int16(chain.APEffectBonus) + count*count))
		}
		return false

	case cards.CondPierceRampageBlock:
		if perms.Has(PermitPersistentStats) {
			chain.Flags.Set(ChainFlagEffectsDisabled)
		}
		if perms.Has(PermitChainStats | PermitChainDamage) {
			chain.Reset()
		}
		return true

	case cards.CondAbilityTrap:
		// Passive; conditionHasAbilityTrap consults it.
		return false

	case cards.CondAntiAbnormality1:
		if perms.Has(PermitPersistentStats) {
			for z := MaxConditions - 1; z >= 0; z-- {
				other := &chain.Conditions[z]
				if !isCurableAbnormality(other.Type) {
					continue
				}
				res := NewEffectResult()
				res.Flags = 0x04
				res.AttackerRef = b.validRefOrNone(attackerRef, 0x0C)
				res.TargetRef = c.Ref
				res.Operation = -int8(other.Type)
				res.ConditionIndex = uint8(z)
				b.send(&EffectEvent{Effect: res})
				b.applyStatDeltasAndClearCondition(other, c)
				c.sendUpdatesIfNeeded(b, false)
			}
		}
		return false

	case cards.CondUnknown1E:
		if perms.Has(PermitPersistentStats) {
			if attackerSC == nil || attackerSC.Chain.Medium == cards.MediumPhysical {
				hp := clampStat(c.HP)
				newHP := int16(math.Round(float64(hp) * 0.5))
				b.sendStatDelta(c, attackerRef, statDeltaHP, newHP-hp, false, true)
				if newHP != hp {
					c.setCurrentHP(b, newHP, true, true)
					b.destroyIfHPZero(c, attackerRef)
				}
			}
		}
		return true

	case cards.CondExplosion:
		if perms.Has(PermitTargetedAttackBonus) {
			count := int16(min(b.countActionCardsWithConditionForAllAttacks(cards.CondExplosion, NoRef), 99))
			md.AttackBonus = int8(clampStat(count * count))
		}
		return false

	case cards.CondUnknown22:
		if perms.Has(PermitPersistentStats) {
			b.sendStatDelta(c, attackerRef, statDeltaTP, pos-c.TP, false, true)
			c.TP = pos
		}
		return true

	case cards.CondReturnToDeck:
		if !perms.Has(PermitPersistentStats) {
			return true
		}
		p := b.player(c.Ref.ClientID())
		if p == nil {
			return false
		}
		c.resetAttackState(b)
		return p.discardSetCard(b, c.Ref, true)

	case cards.CondAPLoss:
		if perms.Has(PermitChainStats) {
			chain.APEffectBonus = int8(clampStat(int16(chain.APEffectBonus) - pos))
		}
		return true

	case cards.CondBonusFromLeader:
		if perms.Has(PermitChainStats) {
			n := int16(b.countSetCardsWithCardIDExcept(uint16(exprValue), NoRef))
			chain.APEffectBonus = int8(clampStat(int16(chain.APEffectBonus) + n))
		}
		return true

	case cards.CondFilial:
		if perms.Has(PermitPersistentStats) {
			b.sendStatDelta(c, attackerRef, statDeltaHP, pos, false, true)
			if pos != 0 {
				c.setCurrentHP(b, clampStat(clampStat(c.HP)+pos), true, false)
				b.destroyIfHPZero(c, attackerRef)
			}
		}
		return true

	case cards.CondSnatch:
		if perms.Has(PermitPersistentStats) {
			attackerPlayer := b.player(cond.CardRef.ClientID())
			targetPlayer := b.player(c.Ref.ClientID())
			if attackerPlayer != nil && targetPlayer != nil {
				at, tt := attackerPlayer.TeamID, targetPlayer.TeamID
				if int32(pos) < b.teamEXP[tt] {
					b.teamEXP[at] += int32(pos)
					b.teamEXP[tt] -= int32(pos)
				} else {
					pos = int16(b.teamEXP[tt])
					b.teamEXP[at] += b.teamEXP[tt]
					b.teamEXP[tt] = 0
				}
				b.computeTeamDiceBonus(at)
				b.computeTeamDiceBonus(tt)
				b.sendExpChange(c, attackerRef, -pos, true)
				b.updateStateFlags(false)
			}
		}
		return true

	case cards.CondHandDisrupter:
		if perms.Has(PermitPersistentStats) {
			p := c.player(b)
			for ; pos > 0; pos-- {
				n := p.HandSize()
				if n == 0 {
					break
				}
				d1 := int(p.rollDiceWithEffects(b, 2))
				d2 := int(p.rollDiceWithEffects(b, 1))
				if ref := p.HandRef((d1 + d2) % n); ref != NoRef {
					p.DiscardRefFromHand(b, ref)
				}
			}
			p.updateHandAndEquipState(b, false)
		}
		return true

	case cards.CondDrop:
		if perms.Has(PermitPersistentStats) {
			if p := c.player(b); p != nil {
				team := p.TeamID
				var delta int16
				if b.teamEXP[team] < 4 {
					b.teamEXP[team] = 0
				} else {
					delta = -3
					b.teamEXP[team] -= 3
				}
				b.computeTeamDiceBonus(team)
				b.sendExpChange(c, attackerRef, delta, true)
			}
		}
		return true

	case cards.CondActionDisrupter:
		if perms.Has(PermitPersistentStats) {
			for z := 0; z < chain.AttackActions.Len(); z++ {
				b.applyStatDeltasToAllCardsFromConditionsWithRef(chain.AttackActions.At(z))
			}
			chain.AttackActions.Clear()
		}
		return true

	case cards.CondSetHP:
		if perms.Has(PermitPersistentStats) && md.DefensePower < 99 {
			hp := c.HP
			b.sendStatDelta(c, attackerRef, statDeltaHP, pos-hp, false, true)
			if hp != pos {
				c.setCurrentHP(b, pos, true, false)
				b.destroyIfHPZero(c, attackerRef)
			}
		}
		return true

	case cards.CondNativeShield:
		return b.applyAttributeGuard(perms, cards.ClassNativeCreature, c, cond.GiverRef, attackerRef)
	case cards.CondABeastShield:
		return b.applyAttributeGuard(perms, cards.ClassABeastCreature, c, cond.GiverRef, attackerRef)
	case cards.CondMachineShield:
		return b.applyAttributeGuard(perms, cards.ClassMachineCreature, c, cond.GiverRef, attackerRef)
	case cards.CondDarkShield:
		return b.applyAttributeGuard(perms, cards.ClassDarkCreature, c, cond.GiverRef, attackerRef)
	case cards.CondSwordShield:
		return b.applyAttributeGuard(perms, cards.ClassSwordItem, c, cond.GiverRef, attackerRef)
	case cards.CondGunShield:
		return b.applyAttributeGuard(perms, cards.ClassGunItem, c, cond.GiverRef, attackerRef)
	case cards.CondCaneShield:
		return b.applyAttributeGuard(perms, cards.ClassCaneItem, c, cond.GiverRef, attackerRef)

	case cards.CondUnknown38:
		if p := c.player(b); p != nil && perms.Has(PermitPersistentStats) {
			p.subtractDEFPoints(uint8(int16(p.DEFPoints) - pos))
			p.updateHandAndEquipState(b, false)
		}
		return true

	case cards.CondGiveOrTakeEXP:
		if perms.Has(PermitPersistentStats) {
			if p := b.player(c.Ref.ClientID()); p != nil {
				team := p.TeamID
				existing := b.teamEXP[team]
				if int32(clamped)+existing < 0 {
					clamped = int16(-existing)
					b.teamEXP[team] = 0
				} else {
					b.teamEXP[team] = existing + int32(clamped)
				}
				b.sendExpChange(c, attackerRef, clamped, true)
				b.computeTeamDiceBonus(team)
				b.updateStateFlags(false)
			}
		}
		return true

	case cards.CondUnknown3D:
		if perms.Has(PermitPersistentStats) {
			b.sendStatDelta(c, attackerRef, statDeltaAP, pos-c.AP, false, true)
			c.AP = pos
		}
		return true

	case cards.CondDeathCompanion:
		if attackerSC != nil && perms.Has(PermitPersistentStats) {
			refs := []CardRef{attackerSC.Ref}
			if attackerSC != c {
				refs = append(refs, c.Ref)
			}
			b.killCardsIfUsable(cond, refs, attackerRef, medium)
		}
		return false

	case cards.CondGroup:
		if perms.Has(PermitChainStats) {
			n := int16(min(b.countSetCardsWithCardIDExcept(c.Def.CardID, c.Ref), 99))
			chain.APEffectBonus = int8(clampStat(int16(chain.APEffectBonus) + n*pos))
		}
		return true

	case cards.CondBerserk:
		if perms.Has(PermitPersistentStats) {
			hp := clampStat(c.HP)
			bonus, _ := b.maxAllAttackBonuses()
			newHP := clampStat(hp - bonus)
			b.sendStatDelta(c, attackerRef, statDeltaHP, newHP-hp, false, true)
			newHP = max(newHP, 0)
			if newHP != hp {
				c.setCurrentHP(b, newHP, true, true)
				b.destroyIfHPZero(c, attackerRef)
			}
		}
		return true

	case cards.CondUnknown49:
		if perms.Has(PermitPersistentStats) {
			attacker := b.cardForRef(attackerRef)
			if attacker != nil && attacker != c {
				for z := MaxConditions - 1; z >= 0; z-- {
					b.applyStatDeltasAndClearCondition(&attacker.Chain.Conditions[z], attacker)
				}
				attacker.Chain.Conditions = chain.Conditions
				for z := range attacker.Chain.Conditions {
					copied := &attacker.Chain.Conditions[z]
					if copied.Type != cards.CondUnknown49 {
						b.executeEffect(copied, attacker, pos, p5c, copied.Type, perms, attackerRef)
					}
				}
			}
		}
		return true

	case cards.CondAPGrowth:
		if perms.Has(PermitPersistentStats) {
			b.sendStatDelta(c, attackerRef, statDeltaAP, pos, false, true)
			c.AP = clampStat(c.AP + pos)
		}
		return true

	case cards.CondTPGrowth:
		if perms.Has(PermitPersistentStats) {
			b.sendStatDelta(c, attackerRef, statDeltaTP, pos, false, true)
			c.TP = clampStat(c.TP + pos)
		}
		return true

	case cards.CondCopy:
		if perms.Has(PermitPersistentStats) {
			attacker := b.cardForRef(attackerRef)
			if attacker != nil && attacker != c {
				newAP, newTP := c.AP, c.TP
				if pos < 51 {
					newAP, newTP = c.AP/2, c.TP/2
				}
				newAP, newTP = clampStat(newAP), clampStat(newTP)
				b.sendStatDelta(attacker, attackerRef, statDeltaAP, newAP-attacker.AP, false, false)
				b.sendStatDelta(attacker, attackerRef, statDeltaTP, newTP-attacker.TP, false, false)
				attacker.AP, attacker.TP = newAP, newTP
			}
		}
		return true

	case cards.CondMiscGuards:
		if perms.Has(PermitDefenseBonus) {
			md.DefenseBonus = int8(clampStat(pos + int16(md.DefenseBonus)))
		}
		return true

	case cards.CondAPOverride:
		if perms.Has(PermitPersistentStats) && cond.Flags&2 == 0 {
			cond.Value = clampStat(pos - c.AP)
			b.sendStatDelta(c, attackerRef, statDeltaAP, cond.Value, false, false)
			c.AP = pos
			cond.Flags |= 2
		}
		return true

	case cards.CondTPOverride:
		if perms.Has(PermitPersistentStats) && cond.Flags&2 == 0 {
			cond.Value = clampStat(pos - c.TP)
			b.sendStatDelta(c, attackerRef, statDeltaTP, cond.Value, false, false)
			c.TP = pos
			cond.Flags |= 2
		}
		return true

	case cards.CondUnknown64, cards.CondForwardDamage, cards.CondSlayersAssassins:
		if perms.Has(PermitAttackBonus) {
			md.AttackBonus = int8(clampStat(int16(md.AttackBonus) + pos))
		}
		return true

	case cards.CondBlockAttack:
		if perms.Has(PermitPersistentStats) {
			md.Flags.Set(MetadataFlagDamageBlocked)
		}
		return true

	case cards.CondComboTP:
		if perms.Has(PermitChainStats) {
			n := int16(b.countSetCardsWithCardIDExcept(uint16(exprValue), NoRef))
			chain.TPEffectBonus = int8(clampStat(n + int16(chain.TPEffectBonus)))
		}
		return true

	case cards.CondMiscAPBonuses:
		if perms.Has(PermitPersistentStats) && cond.Flags&2 == 0 {
			orig := clampStat(c.AP)
			c.AP = clamp16(pos+c.AP, 0, 99)
			cond.Value = clampStat(c.AP - orig)
			b.sendStatDelta(c, attackerRef, statDeltaAP, cond.Value, false, false)
			cond.Flags |= 2
		}
		return false

	case cards.CondMiscTPBonuses:
		if perms.Has(PermitPersistentStats) && cond.Flags&2 == 0 {
			orig := clampStat(c.TP)
			c.TP = clamp16(pos+c.TP, 0, 99)
			cond.Value = clampStat(c.TP - orig)
			b.sendStatDelta(c, attackerRef, statDeltaTP, cond.Value, false, false)
			cond.Flags |= 2
		}
		return false

	case cards.CondMiscDefenseBonuses, cards.CondWeakSpotInfluence:
		if perms.Has(PermitAttackBonus) {
			md.AttackBonus = int8(clamp16(int16(md.AttackBonus)-pos, 0, 99))
		}
		return true

	case cards.CondMostlyHalfguards, cards.CondDamageModifier2:
		if perms.Has(PermitTargetedAttackBonus) {
			md.AttackBonus = int8(pos)
		}
		return true

	case cards.CondPeriodicField:
		if perms.Has(PermitTargetedAttackBonus) && uint16(medium) == ((b.roundNum>>1)&1)+1 {
			md.AttackBonus = 0
		}
		return true

	case cards.CondAPSilence:
		if perms.Has(PermitPersistentStats) && cond.Flags&2 == 0 {
			prev := clampStat(c.AP)
			c.AP = clamp16(c.AP-pos, 0, 99)
			cond.Value = clampStat(prev - c.AP)
			b.sendStatDelta(c, attackerRef, statDeltaAP, -cond.Value, false, false)
			cond.Flags |= 2
		}
		return false

	case cards.CondTPSilence:
		if perms.Has(PermitPersistentStats) && cond.Flags&2 == 0 {
			prev := clampStat(c.TP)
			c.TP = clamp16(c.TP-pos, 0, 99)
			cond.Value = clampStat(prev - c.TP)
			b.sendStatDelta(c, attackerRef, statDeltaTP, -cond.Value, false, false)
			cond.Flags |= 2
		}
		return false

	case cards.CondRampageAPLoss:
		// Despite the name, this lowers the TP bonus.
		if perms.Has(PermitChainStats) {
			chain.TPEffectBonus = int8(clampStat(int16(chain.TPEffectBonus) - pos))
		}
		return true

	case cards.CondUnknown77:
		if attackerSC != nil && perms.Has(PermitPersistentStats) {
			refs := append([]CardRef{attackerSC.Ref}, attackerSC.Chain.Targets.Slice()...)
			b.killCardsIfUsable(cond, refs, attackerRef, medium)
		}
		return false

	default:
		// Card data may carry type values with no assigned meaning.
		return false
	}
}

func isCurableAbnormality(t cards.ConditionType) bool {
	switch t {
	case cards.CondImmobile, cards.CondHold, cards.CondCannotDefend, cards.CondGuom, cards.CondParalyze,
		cards.CondUnused13, cards.CondAcid, cards.CondAdd1ToMVCost, cards.CondCurse,
		cards.CondPierceRampageBlock, cards.CondFreeze, cards.CondUnknown1E, cards.CondDrop:
		return true
	}
	return false
}

// killCardsIfUsable drops every card of refs that the condition may affect
// to 0 HP.
func (b *Battle) killCardsIfUsable(cond *Condition, refs []CardRef, attackerRef CardRef, medium cards.AttackMedium) {
	for _, ref := range refs {
		target := b.cardForRef(ref)
		if target == nil || target.HP <= 0 {
			continue
		}
		if !b.checkUsabilityForRefs(cond.CardRef, cond.GiverRef, target.Ref, cond.EffectIndex, medium) {
			continue
		}
		b.sendStatDelta(target, attackerRef, statDeltaHP, -target.HP, false, true)
		target.setCurrentHP(b, 0, true, true)
		b.destroyIfHPZero(target, attackerRef)
	}
}

// applyAttributeGuard nullifies attacks of the guarded class: attacks
// coming from the condition's giver lose their chain, and either a matching
// giver or a matching attacker raises defense to the maximum.
func (b *Battle) applyAttributeGuard(perms EffectPermissions, class cards.CardClass, c *Card, giverRef, attackerRef CardRef) bool {
	if giver := b.cardForRef(giverRef); giver != nil && giver.Def.Class == class {
		if perms.Has(PermitChainDamage) {
			c.Chain.Reset()
		}
		if perms.Has(PermitDefenseBonus) {
			c.Metadata.DefensePower = 99
			c.Metadata.DefenseBonus = 0
		}
	}
	if attacker := b.cardForRef(attackerRef); attacker != nil && attacker.Def.Class == class &&
		perms.Has(PermitDefenseBonus) {
		c.Metadata.DefensePower = 99
		c.Metadata.DefenseBonus = 0
	}
	return true
}

// evaluateArg2Condition decides whether an effect's trigger condition
// (its second argument) holds for c.
func (b *Battle) evaluateArg2Condition(as *ActionState, c *Card, arg2 string, dice *diceRoll,
	setRef, scRef CardRef, randomPercent uint8, when cards.EffectWhen) bool {
	if arg2 == "" {
		return false
	}
	attackerRef := as.effectiveAttackerRef()
	setCard := b.cardForRef(setRef)
	setTrapped := setCard != nil && b.cardHasConditionWithRef(setCard, cards.CondAbilityTrap, NoRef, NoRef)

	switch arg2[0] {
	case 'C':
		c = setCard
		if c == nil {
			c = b.cardForRef(scRef)
		}
		if c == nil {
			return false
		}
		fallthrough
	case 'c':
		ch1, ch2 := argDigit(arg2, 1), argDigit(arg2, 2)
		if ch1 > 9 || ch2 > 9 {
			return false
		}
		p := b.player(c.Ref.ClientID())
		if p == nil {
			return false
		}
		for _, set := range p.SetCards {
			if set == nil || set.Def == nil {
				continue
			}
			for _, eff := range set.Def.Effects {
				if eff.Type == cards.CondNone {
					break
				}
				if eff.Arg2 == "" || (eff.Arg2[0] != 'c' && eff.Arg2[0] != 'C') {
					continue
				}
				other := argDigit(eff.Arg2, 1)
				if other > 9 {
					return false
				}
				if other == ch2 {
					return true
				}
			}
		}
		return false

	case 'b':
		attacker := b.cardForRef(attackerRef)
		return attacker != nil && int(attacker.Chain.Damage) <= argNumber(arg2)

	case 'd':
		if setTrapped {
			return false
		}
		low, high := argDigit(arg2, 1), argDigit(arg2, 2)
		if low > 9 || high > 9 {
			return false
		}
		if high < low {
			low, high = high, low
		}
		dice.usedInExpr = true
		return low <= dice.value && dice.value <= high

	case 'h':
		return argNumber(arg2) <= int(c.HP)

	case 'i':
		return argNumber(arg2) >= int(c.HP)

	case 'm':
		attacker := b.cardForRef(attackerRef)
		return attacker != nil && int(attacker.Chain.Damage) >= argNumber(arg2)

	case 'n':
		return b.evaluateArg2Predicate(as, c, argNumber(arg2), scRef)

	case 'o':
		v := uint8(argNumber(arg2))
		if v/10 == 1 {
			if other := setCard; other != nil {
				c = other
			} else if other := b.cardForRef(scRef); other != nil {
				c = other
			}
		}
		effectNum := v % 10
		if effectNum == 0 {
			effectNum = 0xFF
		}
		return b.findConditionWithParameters(c, cards.CondAny, setRef, effectNum) != nil

	case 'r':
		return !setTrapped && int(randomPercent) < argNumber(arg2)

	case 's':
		cost := int(c.Def.SelfCost)
		return cost >= int(argDigit(arg2, 1)) && cost <= int(argDigit(arg2, 2))

	case 't':
		if setCard == nil {
			return false
		}
		v := uint32(uint8(argNumber(arg2)))
		n := uint32(setCard.turnCount)
		if setCard.turnCount <= 0 {
			return false
		}
		if when == cards.WhenBeforeDicePhaseThisTeamTurn {
			period := v &^ 1
			if period == 0 {
				return false
			}
			return (n&^1)%period == 0
		}
		return n%(v+1) == 0
	}
	return false
}

func (b *Battle) evaluateArg2Predicate(as *ActionState, c *Card, n int, scRef CardRef) bool {
	classIs := func(class cards.CardClass) bool { return c.Def.Class == class }
	switch n {
	case 0:
		return true
	case 1:
		return c == nil || c.Def.Type == cards.TypeHuntersSC
	case 2:
		for z := 0; z < as.Targets.Len(); z++ {
			if target := b.cardForRef(as.Targets.At(z)); target != nil && target.Flags.IsDestroyed() {
				return true
			}
		}
		return false
	case 3:
		for z := 0; z < MaxActionCards; z++ {
			if ref := as.Actions.At(z); ref != NoRef {
				if def := b.definitionForRef(ref); def != nil && def.Class.IsTechLike() {
					return true
				}
			}
		}
		return false
	case 4:
		return c.Chain.Flags.Has(ChainFlagsAnyPierce)
	case 5:
		return c.Chain.Flags.Has(ChainFlagsAnyRampage)
	case 6:
		return classIs(cards.ClassNativeCreature)
	case 7:
		return classIs(cards.ClassABeastCreature)
	case 8:
		return classIs(cards.ClassMachineCreature)
	case 9:
		return classIs(cards.ClassDarkCreature)
	case 10:
		return classIs(cards.ClassSwordItem)
	case 11:
		return classIs(cards.ClassGunItem)
	case 12:
		return classIs(cards.ClassCaneItem)
	case 13:
		return classIs(cards.ClassGuardItem) || classIs(cards.ClassMagItem) ||
			b.refHasCondition(c.Ref, cards.CondGuardCreature)
	case 14:
		return c.Def.IsSC()
	case 15:
		return c.Chain.AttackActions.Len() == 0 && c.Metadata.Defenses.Len() == 0
	case 16:
		return b.refIsAerial(c.Ref)
	case 17:
		otherAP := int16(-1)
		if sc := b.cardForRef(scRef); sc != nil {
			otherAP = sc.AP
		} else if def := b.definitionForRef(scRef); def != nil {
			otherAP = int16(def.AP.Value)
		}
		return otherAP == c.AP
	case 18:
		for z := 0; z < as.Targets.Len(); z++ {
			if target := b.cardForRef(as.Targets.At(z)); target != nil && target.Def.IsSC() {
				return true
			}
		}
		return false
	case 19:
		return b.refHasCondition(c.Ref, cards.CondParalyze)
	case 20:
		return b.refHasCondition(c.Ref, cards.CondFreeze)
	case 21:
		if scRef == NoRef {
			return false
		}
		return c.Chain.Flags.Has(ChainFlagPierce(scRef.ClientID()))
	case 22:
		if scRef == NoRef {
			return false
		}
		return c.Chain.Flags.Has(ChainFlagRampage(scRef.ClientID()))
	}
	return false
}
