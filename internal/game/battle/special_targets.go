package battle

import (
	"go.uber.org/zap"

	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/field"
)

// Card IDs whose range shapes are borrowed by effects that have no range of
// their own.
const (
	rangeCardAdjacent   uint16 = 0x00D9 // one tile around the anchor
	rangeCardCrossSlay  uint16 = 0x009C
	rangeCardEarthquake uint16 = 0x00ED
)

// TargetSelector is the numeric target mode of a condition's third
// argument (the "p" code).
type TargetSelector int16

// Target selectors understood by targetedCardsForCondition.
const (
	TargetSetter              TargetSelector = 0x01
	TargetAttackTargets       TargetSelector = 0x02
	TargetCardRange           TargetSelector = 0x03
	TargetFollowingActions    TargetSelector = 0x04
	TargetSetterAlt           TargetSelector = 0x05
	TargetAttackerAndSC       TargetSelector = 0x06
	TargetAttackerFC          TargetSelector = 0x07
	TargetOwnSC               TargetSelector = 0x08
	TargetCardRangeOwnTeam    TargetSelector = 0x09
	TargetOwnTeam             TargetSelector = 0x0A
	TargetOwnTeamFCs          TargetSelector = 0x0B
	TargetGrounded            TargetSelector = 0x0C
	TargetFrozen              TargetSelector = 0x0D
	TargetLowHP               TargetSelector = 0x0E
	TargetAllFCs              TargetSelector = 0x0F
	TargetHighHP              TargetSelector = 0x10
	TargetSelf                TargetSelector = 0x11
	TargetOwnSCAlt            TargetSelector = 0x12
	TargetHUSCs               TargetSelector = 0x13
	TargetRASCs               TargetSelector = 0x14
	TargetFOSCs               TargetSelector = 0x15
	TargetAdjacentAllies      TargetSelector = 0x16
	TargetAdjacentNonItems    TargetSelector = 0x17
	TargetParalyzed           TargetSelector = 0x18
	TargetAerial              TargetSelector = 0x19
	TargetDamaged             TargetSelector = 0x1A
	TargetNativeCreatures     TargetSelector = 0x1B
	TargetABeastCreatures     TargetSelector = 0x1C
	TargetMachineCreatures    TargetSelector = 0x1D
	TargetDarkCreatures       TargetSelector = 0x1E
	TargetSwordItems          TargetSelector = 0x1F
	TargetGunItems            TargetSelector = 0x20
	TargetCaneItems           TargetSelector = 0x21
	TargetAttackTargetsNonSC  TargetSelector = 0x22
	TargetAdjacentLoneHunters TargetSelector = 0x23
	TargetAttackTargetsSC     TargetSelector = 0x24
	TargetOtherTeam           TargetSelector = 0x25
	TargetAdjacentAlliesOnly  TargetSelector = 0x26
	TargetExpensiveFCs        TargetSelector = 0x27
	TargetCheapFCs            TargetSelector = 0x28
	TargetAdjacentFCs         TargetSelector = 0x29
	TargetAttackTargetsAndSC  TargetSelector = 0x2A
	TargetSCsOfDestroyed      TargetSelector = 0x2B
	TargetOwnFCs              TargetSelector = 0x2C
	TargetLastAttackDamaged   TargetSelector = 0x2D
	TargetCrossNonItems       TargetSelector = 0x2E
	TargetOriginalAttackerSC  TargetSelector = 0x2F
	TargetAdjacentWithSetter  TargetSelector = 0x30
	TargetAdjacentAllyFCs     TargetSelector = 0x31
)

// anchorLocation returns card1's location facing away from card2, which is
// where range shapes of defensive effects are anchored.
func anchorLocation(card1, card2 *Card) field.Location {
	if card1 == nil {
		return field.Location{Direction: field.DirRight}
	}
	loc := card1.Loc
	switch {
	case card2 == nil || !card2.Facing.IsValid():
	case card2.Loc.X == card1.Loc.X && card2.Loc.Y == card1.Loc.Y:
		loc.Direction = card2.Facing
	default:
		loc.Direction = card2.Facing.TurnAround()
	}
	return loc
}

// rangeCardID applies assist range overrides only when card2 is facing a
// real direction.
func (b *Battle) rangeCardID(card1 *Card, def uint16, card2 *Card) uint16 {
	if card2 == nil || !card2.Facing.IsValid() {
		return def
	}
	ref := NoRef
	if card1 != nil {
		ref = card1.Ref
	}
	id, _ := b.cardIDWithEffectiveRange(ref, def)
	return id
}

func (b *Battle) rangeAround(card1, card2 *Card, def uint16, loc field.Location) field.RangeMask {
	return field.ComputeEffectiveRange(b.index, b.rangeCardID(card1, def, card2), loc, b.mapAndRules)
}

func (b *Battle) cardsForRefs(refs []CardRef) []*Card {
	var ret []*Card
	for _, ref := range refs {
		if c := b.cardForRef(ref); c != nil {
			ret = append(ret, c)
		}
	}
	return ret
}

func (b *Battle) allSetCards() []*Card {
	var ret []*Card
	for _, p := range b.players {
		if p == nil {
			continue
		}
		for _, c := range p.SetCards {
			if c != nil {
				ret = append(ret, c)
			}
		}
	}
	return ret
}

// findCards visits set cards and then the SC of each player, or the SC first
// when scFirst is set.
func (b *Battle) findCards(scFirst bool, match func(*Card) bool) []*Card {
	var ret []*Card
	for _, p := range b.players {
		if p == nil {
			continue
		}
		if scFirst && p.SC != nil && match(p.SC) {
			ret = append(ret, p.SC)
		}
		for _, c := range p.SetCards {
			if c != nil && match(c) {
				ret = append(ret, c)
			}
		}
		if !scFirst && p.SC != nil && match(p.SC) {
			ret = append(ret, p.SC)
		}
	}
	return ret
}

// findCardsWithCondition collects cards carrying a condition of type t.
// Assist effects never widen the search here: no caller passes an assist
// filter.
func (b *Battle) findCardsWithCondition(t cards.ConditionType) []*Card {
	return b.findCards(false, func(c *Card) bool {
		for i := range c.Chain.Conditions {
			if ct := c.Chain.Conditions[i].Type; ct == t || t == cards.ConditionAnyFF {
				return true
			}
		}
		return false
	})
}

func (b *Battle) findCardsInHPRange(lo, hi int16) []*Card {
	return b.findCards(true, func(c *Card) bool {
		return lo <= c.HP && c.HP <= hi
	})
}

func (b *Battle) findCardsDamagedByAtLeast(damage int16) []*Card {
	return b.findCards(false, func(c *Card) bool {
		return damage+c.HP <= c.MaxHP
	})
}

func (b *Battle) findCardsByAerial(aerial bool) []*Card {
	return b.findCards(false, func(c *Card) bool {
		return b.refIsAerial(c.Ref) == aerial
	})
}

func (b *Battle) findCardsOnTeam(clientID uint8, sameTeam bool) []*Card {
	p := b.player(clientID)
	if p == nil {
		return nil
	}
	var ret []*Card
	for _, other := range b.players {
		if other == nil {
			continue
		}
		collect := p.TeamID == other.TeamID
		if !sameTeam {
			collect = other.TeamID != 0xFF && p.TeamID != other.TeamID
		}
		if !collect {
			continue
		}
		if other.SC != nil {
			ret = append(ret, other.SC)
		}
		for _, c := range other.SetCards {
			if c != nil {
				ret = append(ret, c)
			}
		}
	}
	return ret
}

func (b *Battle) findSetCardsOnClientTeam(clientID uint8) []*Card {
	p := b.player(clientID)
	if p == nil {
		return nil
	}
	var ret []*Card
	for _, other := range b.players {
		if other == nil || other.TeamID != p.TeamID {
			continue
		}
		for _, c := range other.SetCards {
			if c != nil {
				ret = append(ret, c)
			}
		}
	}
	return ret
}

func (b *Battle) findSetCardsWithCostInRange(lo, hi uint8) []*Card {
	var ret []*Card
	for _, c := range b.allSetCards() {
		if c.Def != nil && lo <= c.Def.SelfCost && c.Def.SelfCost <= hi {
			ret = append(ret, c)
		}
	}
	return ret
}

func (b *Battle) findSCsOfClass(class cards.CardClass) []*Card {
	var ret []*Card
	for _, p := range b.players {
		if p != nil && p.SC != nil && p.SC.Def != nil && p.SC.Def.Class == class {
			ret = append(ret, p.SC)
		}
	}
	return ret
}

func (b *Battle) scForClient(clientID uint8) *Card {
	if p := b.player(clientID); p != nil {
		return p.SC
	}
	return nil
}

func (b *Battle) attackerCardAndSCIfItem(as *ActionState) []*Card {
	c := b.cardForRef(as.effectiveAttackerRef())
	if c == nil {
		return nil
	}
	var ret []*Card
	switch c.Def.Type {
	case cards.TypeItem:
		if p := c.player(b); p != nil && p.SC != nil {
			ret = append(ret, p.SC)
		}
		ret = append(ret, c)
	case cards.TypeHuntersSC, cards.TypeArkzSC, cards.TypeCreature:
		ret = append(ret, c)
	}
	return ret
}

func (b *Battle) attackerFC(as *ActionState) *Card {
	c := b.cardForRef(as.effectiveAttackerRef())
	if c != nil && (c.Def.Type == cards.TypeItem || c.Def.Type == cards.TypeCreature) {
		return c
	}
	return nil
}

// filterCardsByRange keeps the cards standing within the Earthquake-shaped
// area around card1, preserving input order.
func (b *Battle) filterCardsByRange(in []*Card, card1 *Card, loc field.Location, card2 *Card) []*Card {
	if card1 == nil || len(in) == 0 || card1.player(b) == nil {
		return nil
	}
	r := b.rangeAround(card1, card2, rangeCardEarthquake, loc)
	inRange := b.cardRefsWithinRangeOfType(&r, loc, cards.TypeItem)
	var ret []*Card
	for _, c := range in {
		for _, ref := range inRange {
			if ref == c.Ref {
				ret = append(ret, c)
				break
			}
		}
	}
	return ret
}

// attackTargetsOrOriginal returns the declared targets of an attack, or the
// original attacker when the state describes a defense.
func (b *Battle) attackTargetsOrOriginal(as *ActionState, card2 *Card, keep func(*Card) bool) []*Card {
	var ret []*Card
	if as.OriginalAttackerRef == NoRef {
		for i := 0; i < as.Targets.Len(); i++ {
			if c := b.cardForRef(as.Targets.At(i)); c != nil && keep(c) {
				ret = append(ret, c)
			}
		}
	} else if card2 != nil && keep(card2) {
		ret = append(ret, card2)
	}
	return ret
}

// loneHuntersFilter keeps a Hunters SC only if no other ref in the same
// result belongs to its client.
func (b *Battle) loneHuntersFilter(refs []CardRef) []*Card {
	var ret []*Card
	for _, ref := range refs {
		c := b.cardForRef(ref)
		if c == nil {
			continue
		}
		if c.Def.Type == cards.TypeHuntersSC {
			alone := true
			for _, other := range refs {
				if other != ref && other.ClientID() == ref.ClientID() {
					alone = false
					break
				}
			}
			if !alone {
				continue
			}
		}
		ret = append(ret, c)
	}
	return ret
}

// targetedCardsForCondition resolves a target selector for an effect of the
// card at cardRef, set by setterRef, during the action in as.
func (b *Battle) targetedCardsForCondition(cardRef CardRef, effectIndex uint8, setterRef CardRef,
	as *ActionState, mode TargetSelector, applyUsability bool) []*Card {
	clientID := cardRef.ClientID()
	card1 := b.cardForRef(cardRef)
	if card1 == nil {
		card1 = b.cardForRef(setterRef)
	}
	card2 := b.cardForRef(as.effectiveAttackerRef())
	loc := anchorLocation(card1, card2)
	medium := cards.MediumUnknown
	if card2 != nil {
		medium = card2.Chain.Medium
	}

	// withinRange returns the refs inside the range of rangeID around card1
	// on the given team, or ok=false when card1 has no player or the card at
	// cardRef has no definition.
	withinRange := func(rangeID uint16, team uint8, needDef bool) ([]CardRef, bool) {
		if card1 == nil || card1.player(b) == nil {
			return nil, false
		}
		if needDef && b.definitionForRef(cardRef) == nil {
			return nil, false
		}
		r := b.rangeAround(card1, card2, rangeID, loc)
		return b.allCardsWithinRange(&r, loc, team), true
	}
	ownRangeID := func() uint16 {
		if def := b.definitionForRef(cardRef); def != nil {
			return def.CardID
		}
		return cards.CardIDNone
	}

	var ret []*Card
	switch mode {
	case TargetSetter, TargetSetterAlt:
		if c := b.cardForRef(setterRef); c != nil {
			ret = append(ret, c)
		}

	case TargetAttackTargets:
		ret = b.attackTargetsOrOriginal(as, card2, func(*Card) bool { return true })

	case TargetCardRange:
		if card1 != nil && card1.player(b) != nil && b.definitionForRef(cardRef) != nil {
			r := b.rangeAround(card1, card2, ownRangeID(), loc)
			ret = append(ret, b.cardsForRefs(b.cardRefsWithinRangeOfType(&r, loc, cards.TypeItem))...)
			// The same area is scanned again for card1's team; duplicates stay.
			ret = append(ret, b.cardsForRefs(b.allCardsWithinRange(&r, loc, card1.TeamID))...)
		}

	case TargetFollowingActions:
		z := 0
		for ; z < as.Actions.Len() && as.Actions.At(z) != cardRef; z++ {
		}
		for ; z < as.Actions.Len(); z++ {
			if c := b.cardForRef(as.Actions.At(z)); c != nil {
				ret = append(ret, c)
			}
		}

	case TargetAttackerAndSC:
		ret = b.attackerCardAndSCIfItem(as)

	case TargetAttackerFC:
		if c := b.attackerFC(as); c != nil {
			ret = append(ret, c)
		}

	case TargetOwnSC, TargetOwnSCAlt:
		if c := b.scForClient(clientID); c != nil {
			ret = append(ret, c)
		}

	case TargetCardRangeOwnTeam:
		if card1 != nil {
			if refs, ok := withinRange(ownRangeID(), card1.TeamID, true); ok {
				ret = b.cardsForRefs(refs)
			}
		}

	case TargetOwnTeam:
		ret = b.filterCardsByRange(b.findCardsOnTeam(clientID, true), card1, loc, card2)

	case TargetOwnTeamFCs:
		ret = b.filterCardsByRange(b.findSetCardsOnClientTeam(clientID), card1, loc, card2)

	case TargetGrounded:
		ret = b.filterCardsByRange(b.findCardsByAerial(false), card1, loc, card2)

	case TargetFrozen:
		ret = b.filterCardsByRange(b.findCardsWithCondition(cards.CondFreeze), card1, loc, card2)

	case TargetLowHP:
		ret = b.filterCardsByRange(b.findCardsInHPRange(-1000, 3), card1, loc, card2)

	case TargetAllFCs:
		ret = b.filterCardsByRange(b.allSetCards(), card1, loc, card2)

	case TargetHighHP:
		ret = b.filterCardsByRange(b.findCardsInHPRange(8, 1000), card1, loc, card2)

	case TargetSelf:
		if c := b.cardForRef(cardRef); c != nil {
			ret = append(ret, c)
		}

	case TargetHUSCs:
		ret = b.findSCsOfClass(cards.ClassHUSC)
	case TargetRASCs:
		ret = b.findSCsOfClass(cards.ClassRASC)
	case TargetFOSCs:
		ret = b.findSCsOfClass(cards.ClassFOSC)

	case TargetAdjacentAllies:
		if card1 != nil {
			if refs, ok := withinRange(rangeCardAdjacent, card1.TeamID, true); ok {
				for _, c := range b.cardsForRefs(refs) {
					if c.Def.Type != cards.TypeItem && c != card1 {
						ret = append(ret, c)
					}
				}
			}
			ret = append(ret, card1)
		}

	case TargetAdjacentNonItems:
		if refs, ok := withinRange(rangeCardAdjacent, 0xFF, true); ok {
			for _, c := range b.cardsForRefs(refs) {
				if c.Def.Type != cards.TypeItem {
					ret = append(ret, c)
				}
			}
		}

	case TargetParalyzed:
		ret = b.findCardsWithCondition(cards.CondParalyze)

	case TargetAerial:
		ret = b.findCardsByAerial(true)

	case TargetDamaged:
		ret = b.findCardsDamagedByAtLeast(1)

	case TargetNativeCreatures:
		ret = b.cardsByTeamAndClass(cards.ClassNativeCreature, 0xFF, false)
	case TargetABeastCreatures:
		ret = b.cardsByTeamAndClass(cards.ClassABeastCreature, 0xFF, false)
	case TargetMachineCreatures:
		ret = b.cardsByTeamAndClass(cards.ClassMachineCreature, 0xFF, false)
	case TargetDarkCreatures:
		ret = b.cardsByTeamAndClass(cards.ClassDarkCreature, 0xFF, false)
	case TargetSwordItems:
		ret = b.cardsByTeamAndClass(cards.ClassSwordItem, 0xFF, false)
	case TargetGunItems:
		ret = b.cardsByTeamAndClass(cards.ClassGunItem, 0xFF, false)
	case TargetCaneItems:
		ret = b.cardsByTeamAndClass(cards.ClassCaneItem, 0xFF, false)

	case TargetAttackTargetsNonSC:
		ret = b.attackTargetsOrOriginal(as, card2, func(c *Card) bool { return c.Def != nil && !c.Def.IsSC() })

	case TargetAdjacentLoneHunters:
		if refs, ok := withinRange(rangeCardAdjacent, 0xFF, true); ok {
			ret = b.loneHuntersFilter(refs)
		}

	case TargetAttackTargetsSC:
		ret = b.attackTargetsOrOriginal(as, card2, func(c *Card) bool { return c.Def != nil && c.Def.IsSC() })

	case TargetOtherTeam:
		ret = b.filterCardsByRange(b.findCardsOnTeam(clientID, false), card1, loc, card2)

	case TargetAdjacentAlliesOnly:
		if card1 != nil {
			if refs, ok := withinRange(rangeCardAdjacent, card1.TeamID, true); ok {
				for _, c := range b.cardsForRefs(refs) {
					if c.Def.Type != cards.TypeItem && c.Ref != cardRef {
						ret = append(ret, c)
					}
				}
			}
		}

	case TargetExpensiveFCs:
		ret = b.filterCardsByRange(b.findSetCardsWithCostInRange(4, 99), card1, loc, card2)
	case TargetCheapFCs:
		ret = b.filterCardsByRange(b.findSetCardsWithCostInRange(0, 3), card1, loc, card2)

	case TargetAdjacentFCs, TargetAdjacentAllyFCs:
		if card1 == nil || card1.player(b) == nil {
			break
		}
		team := uint8(0xFF)
		if mode == TargetAdjacentAllyFCs {
			team = card1.TeamID
		}
		refs, _ := withinRange(rangeCardAdjacent, team, false)
		for _, c := range b.cardsForRefs(refs) {
			if c != card1 && c.Ref != cardRef && c.Def.IsFC() {
				ret = append(ret, c)
			}
		}
		for _, c := range card1.player(b).SetCards {
			if c == nil || c == card1 || c.Def.Type != cards.TypeItem {
				continue
			}
			present := false
			for _, r := range ret {
				if r == c {
					present = true
					break
				}
			}
			if !present {
				ret = append(ret, c)
			}
		}

	case TargetAttackTargetsAndSC:
		for _, c := range b.attackTargetsOrOriginal(as, card2, func(*Card) bool { return true }) {
			ret = append(ret, c)
			if c.Def.Type == cards.TypeItem {
				if p := c.player(b); p != nil && p.SC != nil {
					ret = append(ret, p.SC)
				}
			}
		}

	case TargetSCsOfDestroyed:
		for i := 0; i < as.Targets.Len(); i++ {
			c := b.cardForRef(as.Targets.At(i))
			if c == nil || c.Def == nil || c.Def.IsSC() || !c.Flags.IsDestroyed() {
				continue
			}
			if p := c.player(b); p != nil && p.SC != nil {
				ret = append(ret, p.SC)
			}
		}

	case TargetOwnFCs:
		if p := b.player(clientID); p != nil {
			for _, c := range p.SetCards {
				if c != nil {
					ret = append(ret, c)
				}
			}
			ret = b.filterCardsByRange(ret, card1, loc, card2)
		}

	case TargetLastAttackDamaged:
		b.sumLastAttackDamage(&ret)
		ret = b.filterCardsByRange(ret, card1, loc, card2)

	case TargetCrossNonItems:
		if refs, ok := withinRange(rangeCardCrossSlay, 0xFF, true); ok {
			for _, c := range b.cardsForRefs(refs) {
				if c.Def.Type != cards.TypeItem {
					ret = append(ret, c)
				}
			}
		}

	case TargetOriginalAttackerSC:
		if as.OriginalAttackerRef != NoRef {
			if c := b.scForClient(as.OriginalAttackerRef.ClientID()); c != nil {
				ret = append(ret, c)
			}
		}

	case TargetAdjacentWithSetter:
		if card1 == nil {
			break
		}
		if refs, ok := withinRange(rangeCardAdjacent, 0xFF, true); ok {
			ret = b.loneHuntersFilter(refs)
		}
		if c := b.cardForRef(setterRef); c != nil {
			ret = append(ret, c)
		}

	default:
		if ce := b.logger.Check(zap.DebugLevel, "unknown target selector"); ce != nil {
			ce.Write(zap.Int16("mode", int16(mode)), zap.Stringer("card", cardRef))
		}
	}

	if !applyUsability {
		return ret
	}
	var filtered []*Card
	for _, c := range ret {
		if b.checkUsabilityForRefs(cardRef, setterRef, c.Ref, effectIndex, medium) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// isCardTargetedByCondition reports whether cond still applies to c. A
// condition lasting until its source returns is re-targeted from scratch.
func (b *Battle) isCardTargetedByCondition(cond *Condition, as *ActionState, c *Card) bool {
	if cond.Type == cards.CondNone {
		return true
	}
	def := b.definitionForRef(cond.CardRef)
	source := b.cardForRef(cond.CardRef)
	sourceGone := source == nil || (source != c && source.Flags.IsDestroyed())

	if sourceGone && def != nil && (def.Type == cards.TypeItem || def.IsSC()) &&
		cond.RemainingTurns != TurnsUntilFieldEnd && c.Ref.ClientID() == cond.CardRef.ClientID() {
		return false
	}
	if cond.RemainingTurns != TurnsUntilReturn {
		return true
	}
	if source == nil || (source != c && source.Flags.IsDestroyed()) {
		return false
	}
	if def == nil || int(cond.EffectIndex) >= len(def.Effects) {
		return false
	}
	arg3 := def.Effects[cond.EffectIndex].Arg3
	if arg3 == "" {
		b.logger.Error("condition has no target selector",
			zap.Stringer("card", cond.CardRef), zap.Uint8("effect_index", cond.EffectIndex))
		return false
	}
	mode := TargetSelector(cards.AtoiSuffix(arg3))
	for _, t := range b.targetedCardsForCondition(cond.CardRef, cond.EffectIndex, cond.GiverRef, as, mode, false) {
		if t == c {
			return true
		}
	}
	return false
}

// replaceOptions names the context a target replacement is computed in.
type replaceOptions struct {
	// attack is set when an attack hits the target; effect when a card
	// effect lands on it.
	attack bool
	effect bool
	// resolving is set while targets are re-resolved before the attack
	// executes. Ability traps are ignored and Parry and Reflect never fire.
	resolving bool

	setRef         CardRef
	scRef          CardRef
	defEffectIndex uint8
}

// replaceResult is the outcome of computeReplacedTarget.
type replaceResult struct {
	card *Card
	// reflectMissed is set when some Reflect was present but was given by a
	// card other than the target.
	reflectMissed bool
	// defenderUnusable is set when a Defender takes the effect but the
	// effect cannot apply to it.
	defenderUnusable bool
}

// computeReplacedTarget decides whether an attack or effect on targetRef
// lands on another card instead, through Parry, Guard Creature, Defender,
// Survival Decoys or Reflect. A nil card means the target stands.
func (b *Battle) computeReplacedTarget(targetRef, attackerRef CardRef, opts replaceOptions) replaceResult {
	var res replaceResult
	attacker := b.cardForRef(attackerRef)
	target := b.cardForRef(targetRef)
	targetClient := targetRef.ClientID()
	targetTeam := uint8(0xFF)
	if target != nil {
		targetTeam = target.TeamID
	}
	loc := anchorLocation(target, attacker)
	if target == nil {
		loc = field.Location{Direction: field.DirRight}
	}
	medium := cards.MediumInvalid
	if attacker != nil {
		medium = attacker.Chain.Medium
	}

	if b.battlePhase != PhaseAction || b.currentActionSubphase() == cards.SubphaseAttack {
		return res
	}
	if targetRef == attackerRef || targetRef == opts.setRef {
		return res
	}

	hasPierce := targetClient != 0xFF && attacker != nil &&
		attacker.Chain.Flags.Has(ChainFlagPierce(targetClient))

	usable := func(holder *Card, cond *Condition) bool {
		if !opts.resolving && b.conditionHasAbilityTrap(cond) {
			return false
		}
		if cond.Type == cards.CondNone {
			return false
		}
		return b.checkUsabilityForRefs(cond.CardRef, holder.Ref, attackerRef, cond.EffectIndex, medium)
	}

	if target != nil && !target.Flags.IsOutOfPlay() {
		for i := range target.Chain.Conditions {
			cond := &target.Chain.Conditions[i]
			if !usable(target, cond) || cond.Type != cards.CondParry {
				continue
			}
			tp := target.player(b)
			if hasPierce || opts.resolving || tp == nil {
				continue
			}
			r := field.ComputeEffectiveRange(b.index, rangeCardAdjacent, loc, b.mapAndRules)
			candidates := b.parryCandidates(b.allCardsWithinRange(&r, loc, 0xFF), attackerRef, opts.setRef, targetRef)
			if ref := b.pickParryTarget(tp, candidates); ref != NoRef {
				res.card = b.cardForRef(ref)
				return res
			}
		}
	}

	var candidates []*Card
	// scan returns true when a Reflect decided the result.
	scan := func(holder *Card, clientID uint8) bool {
		for i := range holder.Chain.Conditions {
			if len(candidates) >= MaxTargets {
				break
			}
			cond := &holder.Chain.Conditions[i]
			if !usable(holder, cond) {
				continue
			}
			switch cond.Type {
			case cards.CondGuardCreature:
				if !hasPierce && opts.resolving && (opts.attack || opts.effect) &&
					targetClient == clientID && target != nil && target.Def.IsSC() {
					candidates = append(candidates, holder)
				}
			case cards.CondDefender:
				if !hasPierce && !opts.resolving && opts.effect && targetRef == cond.GiverRef {
					candidates = append(candidates, holder)
					if opts.defEffectIndex != 0xFF && opts.setRef != NoRef &&
						!b.checkUsabilityForRefs(opts.setRef, opts.scRef, holder.Ref, opts.defEffectIndex, medium) {
						res.defenderUnusable = true
					}
				}
			case cards.CondUnknown39:
				if !hasPierce && !opts.resolving && opts.attack && targetRef == cond.GiverRef {
					candidates = append(candidates, holder)
				}
			case cards.CondSurvivalDecoys:
				if !hasPierce && !opts.resolving && attacker != nil && attacker.Chain.Targets.Len() > 1 &&
					opts.attack && holder.TeamID == targetTeam {
					candidates = append(candidates, holder)
				}
			case cards.CondReflect:
				if !opts.resolving && opts.attack {
					if targetRef == cond.GiverRef {
						res.reflectMissed = false
						res.card = holder
						return true
					}
					res.reflectMissed = true
				}
			}
		}
		return false
	}

	for clientID := uint8(0); clientID < MaxClients; clientID++ {
		p := b.player(clientID)
		if p == nil {
			continue
		}
		for _, c := range p.SetCards {
			if c == nil || c.Flags.IsOutOfPlay() {
				continue
			}
			if scan(c, clientID) {
				return res
			}
		}
		if p.SC != nil && !p.SC.Flags.IsOutOfPlay() {
			if scan(p.SC, clientID) {
				return res
			}
		}
	}

	if len(candidates) == 0 {
		return res
	}
	// A candidate that is the acting card itself leaves the target alone.
	for _, c := range candidates {
		if opts.setRef == c.Ref || (opts.setRef == NoRef && attackerRef == c.Ref) {
			return res
		}
	}
	if len(candidates) == 1 {
		res.card = candidates[0]
		return res
	}
	index := 0
	if target != nil && !opts.resolving && target.player(b) != nil {
		tp := target.player(b)
		n := int(tp.rollDiceWithEffects(b, 2)) + int(tp.rollDiceWithEffects(b, 1))
		index = n % len(candidates)
	}
	res.card = candidates[index]
	return res
}

// parryCandidates filters the cards around a parrying target. The attacker,
// the setter, the target itself and every story character are left out.
func (b *Battle) parryCandidates(refs []CardRef, attackerRef, setRef, targetRef CardRef) []CardRef {
	var ret []CardRef
	for _, ref := range refs {
		if ref == attackerRef || ref == setRef || ref == targetRef {
			continue
		}
		if def := b.definitionForRef(ref); def != nil && def.IsSC() {
			continue
		}
		ret = append(ret, ref)
	}
	return ret
}

// pickParryTarget chooses among candidates with two dice rolls of the
// parrying card's owner. It returns NoRef when there are none.
func (b *Battle) pickParryTarget(tp *Player, candidates []CardRef) CardRef {
	if len(candidates) == 0 {
		return NoRef
	}
	n := int(tp.rollDiceWithEffects(b, 2)) + int(tp.rollDiceWithEffects(b, 1))
	return candidates[n%len(candidates)]
}

// replacedAttackTarget returns the card an attack on targetRef actually
// hits, or NoRef if it is not redirected. negated is set when a Reflect on
// the field belonged to some other card, which cancels the damage.
func (b *Battle) replacedAttackTarget(targetRef, attackerRef CardRef) (ref CardRef, negated bool) {
	res := b.computeReplacedTarget(targetRef, attackerRef, replaceOptions{
		attack:         true,
		setRef:         NoRef,
		scRef:          NoRef,
		defEffectIndex: 0xFF,
	})
	if res.card == nil {
		b.logger.Debug("attack target not replaced", zap.Stringer("target", targetRef))
		return NoRef, res.reflectMissed
	}
	b.logger.Debug("attack target replaced",
		zap.Stringer("target", targetRef), zap.Stringer("replacement", res.card.Ref))
	return res.card.Ref, res.reflectMissed
}

// replaceTargetsDueToDestructionOrConditions rewrites the targets of a
// queued attack before it executes. Destroyed items fall over to a guard
// item, then any surviving set card, then the SC; under Rampage only
// surviving targets stay. Every remaining target then passes through
// condition-based replacement.
func (b *Battle) replaceTargetsDueToDestructionOrConditions(as *ActionState) {
	attacker := b.cardForRef(b.validRefOrNone(as.AttackerRef, 3))
	if attacker == nil {
		as.Targets.Clear()
		return
	}

	var phase1 []CardRef
	for clientID := uint8(0); clientID < MaxClients; clientID++ {
		p := b.player(clientID)
		if !attacker.Chain.Flags.Has(ChainFlagRampage(clientID)) {
			for i := 0; i < as.Targets.Len(); i++ {
				targetRef := as.Targets.At(i)
				if targetRef.ClientID() != clientID {
					continue
				}
				target := b.cardForRef(b.validRefOrNone(targetRef, 5))
				def := b.definitionForRef(targetRef)
				if def == nil || p == nil {
					continue
				}
				if target != nil && !target.Flags.IsDestroyed() {
					phase1 = append(phase1, targetRef)
					continue
				}
				if def.Type != cards.TypeItem {
					continue
				}
				var replacement *Card
				for _, c := range p.SetCards {
					if c != nil && c.Ref != targetRef && !c.Flags.IsDestroyed() && c.isGuardItem() {
						replacement = c
						break
					}
				}
				if replacement == nil {
					for _, c := range p.SetCards {
						if c != nil && c.Ref != targetRef && !c.Flags.IsDestroyed() {
							replacement = c
							break
						}
					}
				}
				if replacement == nil {
					replacement = p.SC
				}
				if replacement != nil {
					phase1 = append(phase1, replacement.Ref)
				}
			}
			continue
		}

		if p == nil {
			continue
		}
		present, missing := 0, 0
		for i := 0; i < as.Targets.Len(); i++ {
			targetRef := as.Targets.At(i)
			if targetRef.ClientID() != clientID {
				continue
			}
			if target := b.cardForRef(targetRef); target == nil || target.Flags.IsDestroyed() {
				missing++
			} else {
				present++
				phase1 = append(phase1, target.Ref)
			}
		}
		if present == 0 && missing > 0 && p.countSetCards() == 0 &&
			p.SC != nil && p.SC.Def != nil && p.SC.Def.Type == cards.TypeHuntersSC {
			phase1 = append(phase1, p.SC.Ref)
		}
	}

	as.Targets.Clear()
	for _, ref := range phase1 {
		as.Targets.Add(b.validRefOrNone(ref, 4))
	}

	var phase2 []CardRef
	for i := 0; i < as.Targets.Len(); i++ {
		target := b.cardForRef(b.validRefOrNone(as.Targets.At(i), 7))
		if target == nil {
			continue
		}
		res := b.computeReplacedTarget(target.Ref, as.AttackerRef, replaceOptions{
			attack:         true,
			resolving:      true,
			setRef:         NoRef,
			scRef:          NoRef,
			defEffectIndex: 0xFF,
		})
		if res.card == nil {
			res.card = target
		}
		phase2 = append(phase2, b.validRefOrNone(res.card.Ref, 8))
	}

	as.Targets.Clear()
	for _, ref := range phase2 {
		as.Targets.Add(b.validRefOrNone(ref, 4))
	}
}
