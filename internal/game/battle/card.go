package battle

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/field"
)

// Card is one card instance on the field: a story character or a set item,
// creature or assist. Cards never point at their player or battle; every
// method that needs either takes the battle explicitly.
type Card struct {
	Ref      CardRef
	ClientID uint8
	CardID   uint16
	TeamID   uint8
	Def      *cards.Definition

	SCRef  CardRef
	SCDef  *cards.Definition
	SCType cards.CardType

	HP    int16
	MaxHP int16
	AP    int16
	TP    int16
	Flags CardFlags

	Loc    field.Location
	Facing field.Direction

	Chain    ActionChain
	Metadata ActionMetadata

	numDestroyedAllyFCsAtSet     int
	numCardsDestroyedByTeamAtSet int
	numDestroyedAllyFCs          int
	// turnCount starts at 1 and advances at every dice phase.
	turnCount int

	lastAttackPreliminaryDamage int16
	lastAttackFinalDamage       int16
	currentDefensePower         int16
	// destroyerSCRef is the SC of the player whose attack would have
	// destroyed this card while it was protected.
	destroyerSCRef CardRef
}

func newCard(cardID uint16, ref CardRef, clientID uint8) *Card {
	return &Card{
		Ref:            ref,
		ClientID:       clientID,
		CardID:         cardID,
		SCRef:          NoRef,
		SCType:         cards.TypeInvalid,
		Loc:            field.Location{Direction: field.DirRight},
		Facing:         field.DirInvalid,
		Chain:          NewActionChain(),
		Metadata:       NewActionMetadata(),
		turnCount:      1,
		destroyerSCRef: NoRef,
	}
}

func (c *Card) String() string {
	return fmt.Sprintf("Card[%s id=%04X hp=%d/%d ap=%d tp=%d flags=%s loc=%s]",
		c.Ref, c.CardID, c.HP, c.MaxHP, c.AP, c.TP, c.Flags, c.Loc)
}

func clamp16(v, lo, hi int16) int16 {
	return max(lo, min(v, hi))
}

func (c *Card) player(b *Battle) *Player {
	return b.players[c.ClientID]
}

func (c *Card) init(b *Battle) error {
	p := c.player(b)
	c.clearActionChainAndMetadata()
	c.TeamID = p.TeamID
	c.Def = b.definitionForID(c.CardID)
	if c.Def == nil {
		return fmt.Errorf("card %s: definition %04X is missing", c.Ref, c.CardID)
	}
	c.SCRef = p.SCRef
	c.SCDef = b.definitionForID(p.SCCardID)
	c.SCType = p.SCType

	if c.SCRef == c.Ref {
		base := int16(b.mapAndRules.Rules.CharHP)
		if base == 0 {
			base = 15
		}
		c.setCurrentAndMaxHP(clamp16(base+int16(c.Def.HP.Value), 1, 99))
	} else {
		c.setCurrentAndMaxHP(int16(c.Def.HP.Value))
	}
	c.AP = int16(c.Def.AP.Value)
	c.TP = int16(c.Def.TP.Value)
	c.numDestroyedAllyFCsAtSet = b.teamNumAllyFCsDestroyed[c.TeamID&1]
	c.numCardsDestroyedByTeamAtSet = b.teamNumCardsDestroyed[c.TeamID&1]
	c.Chain.CardAP = int8(c.AP)
	c.Chain.CardTP = int8(c.TP)
	c.Loc.Direction = p.StartFacing

	if c.SCRef != c.Ref {
		c.sendUpdatesIfNeeded(b, false)
	}
	return nil
}

// IsSCOrCreature reports whether the card can act on its own.
func (c *Card) IsSCOrCreature() bool {
	return c.Def.IsSC() || c.Def.Type == cards.TypeCreature
}

func (c *Card) isGuardItem() bool {
	return c.Def.Class == cards.ClassGuardItem
}

// ConditionValue returns the value of the matching condition; see
// Conditions.Value for the wildcard arguments.
func (c *Card) ConditionValue(t cards.ConditionType, cardRef CardRef, effectIndex uint8, value uint16) (int16, bool) {
	return c.Chain.Conditions.Value(t, cardRef, effectIndex, value)
}

// FindCondition returns the first condition of the given type, or nil.
func (c *Card) FindCondition(t cards.ConditionType) *Condition {
	return c.Chain.Conditions.Find(t)
}

// applyAbnormalCondition installs the condition granted by eff and returns
// its slot, or -1 when every slot is taken.
func (c *Card) applyAbnormalCondition(b *Battle, eff *cards.Effect, effectIndex uint8, targetRef, giverRef CardRef,
	value int16, diceRoll int8, randomPercent int8) int {
	// The existing slot is recomputed on every iteration, so when the loop
	// runs to the end only a match in the last slot survives.
	existing := -1
	for z := range c.Chain.Conditions {
		cond := &c.Chain.Conditions[z]
		if cond.Type != eff.Type {
			existing = -1
			continue
		}
		existing = z
		if eff.Type == cards.CondMVBonus || (cond.EffectIndex == effectIndex && cond.CardRef == targetRef) {
			break
		}
	}

	index := existing
	if index < 0 {
		for z := range c.Chain.Conditions {
			if c.Chain.Conditions[z].IsEmpty() {
				index = z
				break
			}
		}
	}
	if index < 0 {
		return -1
	}

	cond := &c.Chain.Conditions[index]
	var existingValue int16
	if eff.Type == cards.CondMVBonus && cond.Type == cards.CondMVBonus {
		existingValue = clamp16(cond.Value, -99, 99)
	}
	b.applyStatDeltasAndClearCondition(cond, c)

	cond.Type = eff.Type
	cond.CardRef = targetRef
	cond.GiverRef = giverRef
	cond.EffectIndex = effectIndex
	cond.Order = 10
	if diceRoll < 0 {
		cond.DiceRollValue = c.player(b).rollDiceWithEffects(b, 1)
	} else {
		cond.DiceRollValue = uint8(diceRoll)
	}
	cond.Flags = 0
	cond.Value = value + existingValue
	cond.Value8 = int8(value + existingValue)
	cond.RandomPercent = uint8(randomPercent)
	if len(eff.Arg1) > 0 {
		switch eff.Arg1[0] {
		case 'a':
			cond.AArgValue = int8(cards.AtoiSuffix(eff.Arg1))
		case 'e':
			cond.RemainingTurns = TurnsForever
		case 'f':
			cond.RemainingTurns = TurnsUntilFieldEnd
		case 'r':
			cond.RemainingTurns = TurnsUntilReturn
		case 't':
			cond.RemainingTurns = uint8(cards.AtoiSuffix(eff.Arg1))
		}
	}
	b.logger.Debug("condition applied",
		zap.Stringer("card", c.Ref),
		zap.Int("slot", index),
		zap.Stringer("condition", cond))
	c.Chain.Conditions.UpdateOrders()
	return index
}

// adjustAttackForAssists applies the assists that override the attacker's
// AP once defense is known.
func (c *Card) adjustAttackForAssists(b *Battle, attacker *Card, ap *int16, defense int16) {
	for _, eff := range b.assists.ForClient(b, attacker.ClientID) {
		switch eff {
		case cards.AssistSilentColosseum:
			if *ap-defense >= 7 {
				*ap = 0
			}
		case cards.AssistFix:
			if !attacker.Def.IsSC() {
				*ap = 2
			}
		}
	}
	for _, eff := range b.assists.ForClient(b, c.ClientID) {
		if eff == cards.AssistAPAbsorption && attacker.Chain.Medium == cards.MediumPhysical {
			*ap = 0
		}
	}
}

// commitAttack deals damage from attacker to this card and reports the
// damage that landed after conditions and assists.
func (c *Card) commitAttack(b *Battle, damage int16, attacker *Card, res *EffectResult, strike int) int16 {
	dmg := b.adjustAttackDamageDueToConditions(c, damage, attacker.Ref)

	for _, eff := range b.assists.ForClient(b, c.ClientID) {
		if eff != cards.AssistRansom || attacker.Chain.Medium != cards.MediumPhysical {
			continue
		}
		team := c.player(b).TeamID & 1
		exp := int16(max(0, min(b.teamEXP[team], int32(dmg))))
		b.teamEXP[team] -= int32(exp)
		dmg -= exp
		b.computeTeamDiceBonus(team)
		b.updateStateFlags(false)
		if res != nil {
			res.AP += int8(exp)
		}
	}

	if c.Metadata.Flags.Has(MetadataFlagDamageBlocked) {
		dmg = 0
	}

	attackerPlayer := attacker.player(b)
	attackerPlayer.Stats.DamageGiven += uint16(dmg)
	c.player(b).Stats.DamageTaken += uint16(dmg)
	c.HP = clamp16(c.HP-dmg, 0, c.MaxHP)
	if dmg > 0 && int(attackerPlayer.Stats.MaxAttackDamage) < int(dmg) {
		attackerPlayer.Stats.MaxAttackDamage = uint16(dmg)
	}
	c.lastAttackFinalDamage = dmg
	if dmg > 0 {
		c.Flags.Set(CardFlagTookDamage)
	}
	if c.HP < 1 {
		c.destroy(b, attacker)
	}

	out := NewEffectResult()
	if res != nil {
		out = *res
	}
	if strike == 0 {
		out.Flags = 0x11
	} else {
		out.Flags = 0x01
	}
	out.AttackerRef = attacker.Ref
	out.TargetRef = c.Ref
	out.Value = int8(dmg)
	b.send(&EffectEvent{Effect: out})

	c.propagateSharedHP(b)
	if c.Def.IsSC() {
		c.player(b).Stats.SCDamageTaken += uint16(dmg)
	}
	return dmg
}

// defensePowerAgainst sums the HP of the defense cards set against attacker
// and applies defensive conditions.
func (c *Card) defensePowerAgainst(b *Battle, attacker *Card) int16 {
	if attacker == nil {
		return 0
	}
	c.Metadata.DefensePower = 0
	c.Metadata.DefenseBonus = 0
	for z := 0; z < c.Metadata.Defenses.Len(); z++ {
		if c.Metadata.DefenseFor.At(z) != attacker.Ref {
			continue
		}
		if def := b.definitionForRef(c.Metadata.Defenses.At(z)); def != nil {
			c.Metadata.DefensePower += def.HP.Value
		}
	}
	b.applyActionConditions(cards.WhenBeforeAnyCardAttack, attacker, c, PermitDefensePower, nil)
	b.applyActionConditions(cards.WhenBeforeAnyCardAttack, attacker, c, PermitDefenseBonus, nil)
	return int16(c.Metadata.DefensePower) + int16(c.Metadata.DefenseBonus)
}

// destroy sets the card's HP to zero and, unless something protects it,
// marks it destroyed and runs every destruction consequence.
func (c *Card) destroy(b *Battle, attacker *Card) {
	p := c.player(b)
	c.HP = 0
	if c.Flags.IsDestroyed() {
		return
	}
	if b.cardIsProtectedFromDestruction(c.Ref) {
		if c.destroyerSCRef == NoRef && attacker != nil {
			c.destroyerSCRef = attacker.player(b).SCRef
		}
		return
	}

	b.onCardDestroyed(attacker, c)
	c.Flags.Set(CardFlagDestroyed)
	c.updateStatsOnDestruction(b)
	p.Stats.NumOwnedCardsDestroyed++
	b.logger.Debug("card destroyed", zap.Stringer("card", c.Ref))

	if attacker != nil && attacker.TeamID != c.TeamID {
		attacker.player(b).Stats.NumOpponentCardsDestroyed++
		b.addTeamEXP(c.TeamID^1, 3)
	}

	// A Hunters SC loses 1 HP whenever one of its items is destroyed.
	if c.SCType == cards.TypeHuntersSC && c.Def.Type == cards.TypeItem {
		sc := p.SC
		if _, elude := sc.ConditionValue(cards.CondElude, NoRef, 0xFF, 0xFFFF); !sc.Flags.IsDestroyed() && !elude {
			sc.setCurrentHP(b, sc.HP-1, true, true)
			p.Stats.SCDamageTaken++
			if attacker != nil && attacker.TeamID != c.TeamID {
				res := NewEffectResult()
				res.Flags = 0x41
				res.AttackerRef = attacker.Ref
				res.TargetRef = sc.Ref
				res.Value = 1
				b.send(&EffectEvent{Effect: res})
			}
			if sc.HP < 1 {
				sc.destroy(b, attacker)
			}
		}
	}

	if b.mapAndRules.Rules.HPType == field.HPDefeatTeam && p.SC == c {
		for _, card := range p.SetCards {
			if card != nil {
				card.Flags.Set(CardFlagDestroyed)
			}
		}
	}

	for clientID := uint8(0); clientID < MaxClients; clientID++ {
		other := b.players[clientID]
		if other == nil {
			continue
		}
		for _, eff := range b.assists.ForClient(b, clientID) {
			switch eff {
			case cards.AssistHomesick:
				if clientID == c.ClientID {
					p.returnSetCardToHand2(b, c.Ref)
				}
			case cards.AssistInheritance:
				if other.TeamID == p.TeamID {
					b.addTeamEXP(c.TeamID, int32(c.MaxHP))
				}
			}
		}
	}
}

func (c *Card) moveErrorCode(b *Battle, loc field.Location) ErrorCode {
	if c.player(b).AssistFlags.Has(AssistFlagIsSkippingTurn) {
		return ErrSkippingTurn
	}
	if c.Flags.IsDestroyed() {
		return ErrCardDestroyed
	}
	if !b.cardRefCanMove(c.ClientID, c.Ref, true) {
		return ErrCardCannotMove
	}
	if _, _, ok := b.movePathLengthAndCost(c.ClientID, c.Ref, loc); !ok {
		return ErrNoMovePath
	}
	return 0
}

// moveToLocation moves the card along its cheapest path, paying the cost in
// ATK points, and follows a warp if it lands on one end of a warp pair.
func (c *Card) moveToLocation(b *Battle, loc field.Location) ErrorCode {
	if code := c.moveErrorCode(b, loc); code != 0 {
		return code
	}
	length, cost, ok := b.movePathLengthAndCost(c.ClientID, c.Ref, loc)
	if !ok {
		return ErrNoMovePath
	}
	p := c.player(b)
	p.Stats.TotalMoveDistance += uint16(length)
	p.subtractATKPoints(uint8(cost))
	c.Loc = loc
	c.Flags.Set(CardFlagMoved)

	for warpType := range b.warpPositions {
		for end := 0; end < 2; end++ {
			pos := b.warpPositions[warpType][end]
			if pos[0] != c.Loc.X || pos[1] != c.Loc.Y {
				continue
			}
			ev := &AnimationEvent{ChangeType: 0, CardRefs: [3]CardRef{c.Ref, NoRef, NoRef}, Loc: c.Loc}
			other := b.warpPositions[warpType][end^1]
			c.Loc.X, c.Loc.Y = other[0], other[1]
			b.send(ev)
			return 0
		}
	}
	return 0
}

// propagateSharedHP copies an SC's HP to its teammates' SCs under the
// common-HP rule.
func (c *Card) propagateSharedHP(b *Battle) {
	if b.mapAndRules.Rules.HPType != field.HPCommon || !c.Def.IsSC() {
		return
	}
	for clientID := uint8(0); clientID < MaxClients; clientID++ {
		other := b.players[clientID]
		if clientID != c.ClientID && other != nil && other.TeamID == c.TeamID && other.SC != nil {
			other.SC.setCurrentHP(b, c.HP, false, true)
		}
	}
}

// chainIndex returns the snapshot slot of the card: 0 for the SC, 1..8 for
// set cards, or -1.
func (c *Card) chainIndex(b *Battle) int {
	p := c.player(b)
	if c.Ref == p.SCRef {
		return 0
	}
	for z := 0; z < MaxSetCards; z++ {
		if c.Ref == p.SetRef(z) {
			return z + 1
		}
	}
	return -1
}

// sendUpdatesIfNeeded publishes the card's conditions, chain and metadata
// where they differ from the player's snapshots.
func (c *Card) sendUpdatesIfNeeded(b *Battle, always bool) {
	index := c.chainIndex(b)
	if index < 0 {
		return
	}
	c.Chain.CardAP = int8(c.AP)
	c.Chain.CardTP = int8(c.TP)
	p := c.player(b)

	c.sendConditionsIfNeeded(b, always)

	chain := &p.chains[index]
	if always || !chain.SameChain(&c.Chain) {
		conds := chain.Conditions
		*chain = c.Chain
		chain.Conditions = conds
		if !b.shouldCopyPrevStates {
			b.send(&ChainUpdateEvent{ClientID: c.ClientID, Index: uint8(index), Chain: c.Chain})
		}
	}
	metadata := &p.metadatas[index]
	if always || *metadata != c.Metadata {
		*metadata = c.Metadata
		b.send(&MetadataUpdateEvent{ClientID: c.ClientID, Index: uint8(index), Metadata: c.Metadata})
	}
}

func (c *Card) sendConditionsIfNeeded(b *Battle, always bool) {
	index := c.chainIndex(b)
	if index < 0 {
		return
	}
	prev := &c.player(b).chains[index].Conditions
	if *prev == c.Chain.Conditions && !always {
		return
	}
	*prev = c.Chain.Conditions
	if !b.shouldCopyPrevStates {
		b.send(&ConditionsUpdateEvent{ClientID: c.ClientID, Index: uint8(index), Conditions: c.Chain.Conditions})
	}
}

func (c *Card) setCurrentAndMaxHP(hp int16) {
	c.HP = hp
	c.MaxHP = hp
}

// setCurrentHP sets the HP, clamped to [0, MaxHP] when enforceMax is set;
// otherwise the maximum grows to fit.
func (c *Card) setCurrentHP(b *Battle, hp int16, propagate bool, enforceMax bool) {
	if enforceMax {
		hp = clamp16(hp, 0, c.MaxHP)
	} else {
		hp = max(hp, 0)
		c.MaxHP = max(c.MaxHP, hp)
	}
	c.HP = hp
	c.player(b).updateHandAndEquipState(b, false)
	if propagate {
		c.propagateSharedHP(b)
	}
}

func (c *Card) updateStatsOnDestruction(b *Battle) {
	c.player(b).NumDestroyedFCs++
	team := c.TeamID & 1
	b.teamNumAllyFCsDestroyed[team]++
	b.teamNumCardsDestroyed[team]++
	for _, other := range b.players {
		if other == nil || other.TeamID != c.TeamID {
			continue
		}
		other.forEachCard(func(card *Card) { card.numDestroyedAllyFCs++ })
	}
}

func (c *Card) clearActionChainAndMetadata() {
	c.Flags &= cardFlagsKeptOnActionReset
	c.Chain.ClearInner()
	c.Chain.ActingRef = c.Ref
	c.Metadata.Clear()
	c.Metadata.CardRef = c.Ref
}

// computeActionChainResults recomputes the chain's effective AP and TP, the
// assist bonuses and the resulting damage.
func (c *Card) computeActionChainResults(b *Battle, applyConditions bool, ignoreOwnStats bool) {
	chain := &c.Chain
	chain.ComputeMedium(b.definitionForRef)
	chain.StrikeCount = 1
	chain.APEffectBonus = 0
	chain.TPEffectBonus = 0

	swap := b.statSwapType(c)
	ap, tp := b.effectiveAPTP(swap, c.HP, c.AP, c.TP)

	if !ignoreOwnStats {
		for z := 0; z < chain.AttackActions.Len(); z++ {
			if def := b.definitionForRef(chain.AttackActions.At(z)); def != nil {
				ap += int16(def.AP.Value)
				tp += int16(def.TP.Value)
			}
		}
	}

	p := c.player(b)
	if c.Def.IsSC() {
		for _, card := range p.SetCards {
			if card != nil && card.Def.Class == cards.ClassMagItem && !card.Flags.IsDestroyed() {
				cardAP, cardTP := b.effectiveAPTP(swap, card.HP, card.AP, card.TP)
				ap += cardAP
				tp += cardTP
			}
		}
	}

	// Items fight with their SC's stats added.
	if c.Def.Type == cards.TypeItem && c.SCDef != nil && p.SC != nil {
		sc := p.SC
		sc.computeActionChainResults(b, applyConditions, true)
		ap += int16(sc.Chain.EffectiveAP) + int16(sc.Chain.APEffectBonus)
		tp += int16(sc.Chain.EffectiveTP) + int16(sc.Chain.TPEffectBonus)
	}

	if !chain.Flags.Has(ChainFlagAPLocked) {
		chain.EffectiveAP = int8(min(ap, 99))
	}
	if !chain.Flags.Has(ChainFlagTPLocked) {
		chain.EffectiveTP = int8(min(tp, 99))
	}

	if applyConditions {
		b.applyActionConditions(cards.WhenBeforeAnyCardAttack, c, c, PermitChainStats, nil)
	}

	for _, eff := range b.assists.ForClient(b, c.ClientID) {
		c.applyAssistToChainBonuses(b, eff)
	}

	var damage int16
	switch chain.Medium {
	case cards.MediumTech:
		damage = int16(chain.EffectiveTP) + int16(chain.TPEffectBonus)
	case cards.MediumPhysical:
		damage = int16(chain.EffectiveAP) + int16(chain.APEffectBonus)
	}
	chain.Damage = int8(min(damage*int16(chain.DamageMultiplier), 99))

	if applyConditions {
		b.applyActionConditions(cards.WhenBeforeAnyCardAttack, c, c, PermitChainDamage, nil)
		if chain.Flags.Has(ChainFlagInterferenceBonus) {
			chain.Damage = int8(min(int16(chain.Damage)+5, 99))
		}
	}

	for _, eff := range b.assists.ForClient(b, c.ClientID) {
		switch eff {
		case cards.AssistAPAbsorption:
			if chain.Medium == cards.MediumPhysical {
				chain.Damage = 0
			}
		case cards.AssistSilentColosseum:
			if chain.Damage >= 7 {
				chain.Damage = 0
			}
		case cards.AssistFix:
			if !c.Def.IsSC() {
				chain.Damage = 2
			}
		}
	}
}

func (c *Card) applyAssistToChainBonuses(b *Battle, eff cards.AssistEffect) {
	chain := &c.Chain
	switch eff {
	case cards.AssistPowerlessRain:
		if c.IsSCOrCreature() && chain.Medium == cards.MediumPhysical {
			chain.APEffectBonus -= 2
		}
	case cards.AssistBraveWind:
		if c.IsSCOrCreature() && chain.Medium == cards.MediumPhysical {
			chain.APEffectBonus += 2
		}
	case cards.AssistInfluence:
		if c.IsSCOrCreature() {
			chain.APEffectBonus += int8(c.player(b).countSetRefs() >> 1)
		}
	case cards.AssistAPAbsorption:
		if chain.Medium == cards.MediumTech {
			chain.TPEffectBonus += 2
		}
	case cards.AssistTechField:
		if c.IsSCOrCreature() {
			chain.TPEffectBonus += 2
		}
	case cards.AssistForestRain:
		if c.Def.Class == cards.ClassNativeCreature {
			chain.APEffectBonus += 2
		}
	case cards.AssistCaveWind:
		if c.Def.Class == cards.ClassABeastCreature {
			chain.APEffectBonus += 2
		}
	case cards.AssistMineBrightness:
		if c.Def.Class == cards.ClassMachineCreature {
			chain.APEffectBonus += 2
		}
	case cards.AssistRuinDarkness:
		if c.Def.Class == cards.ClassDarkCreature {
			chain.APEffectBonus += 2
		}
	case cards.AssistSaberDance:
		if c.Def.Class == cards.ClassSwordItem {
			chain.APEffectBonus += 2
		}
	case cards.AssistBulletStorm:
		if c.Def.Class == cards.ClassGunItem {
			chain.APEffectBonus += 2
		}
	case cards.AssistCanePalace:
		if c.Def.Class == cards.ClassCaneItem {
			chain.TPEffectBonus += 2
		}
	case cards.AssistGiantGarden:
		if !c.Def.IsSC() && c.Def.SelfCost > 3 {
			chain.APEffectBonus += 2
		}
	case cards.AssistMarchOfTheMeek:
		if !c.Def.IsSC() && c.Def.SelfCost <= 3 {
			chain.APEffectBonus += 2
		}
	case cards.AssistSupport:
		if c.Def.IsSC() && c.hasAdjacentAllySC(b) {
			chain.APEffectBonus += 3
		}
	case cards.AssistVengeance:
		if !c.Def.IsSC() {
			chain.APEffectBonus += int8(b.teamNumAllyFCsDestroyed[c.TeamID&1] / 3)
		}
	}
}

func (c *Card) hasAdjacentAllySC(b *Battle) bool {
	for clientID := uint8(0); clientID < MaxClients; clientID++ {
		other := b.players[clientID]
		if other == nil || clientID == c.ClientID || other.TeamID != c.TeamID || other.SC == nil {
			continue
		}
		dx := int(c.Loc.X) - int(other.SC.Loc.X)
		dy := int(c.Loc.Y) - int(other.SC.Loc.Y)
		if dx > -2 && dx < 2 && dy > -2 && dy < 2 {
			return true
		}
	}
	return false
}

// resetAttackState clears the per-attack flags after an attack resolves and
// expires conditions that no longer apply.
func (c *Card) resetAttackState(b *Battle) {
	c.Flags.Clear(CardFlagTookDamage | CardFlagDefending)
	c.Metadata.Flags.Clear(MetadataFlagDamageBlocked | MetadataFlagUnderAttack)
	c.Chain.Flags.Clear(ChainFlagEffectsDisabled | ChainFlagInterferenceBonus)
	c.expireConditions(b, false)
}

// expireConditions drops conditions whose source no longer targets the card
// and those whose activation count ran out, then recomputes the chain.
func (c *Card) expireConditions(b *Battle, onlyAttackConditions bool) {
	changed := false
	for z := MaxConditions - 1; z >= 0; z-- {
		cond := &c.Chain.Conditions[z]
		if cond.IsEmpty() {
			continue
		}
		if onlyAttackConditions && !b.conditionAppliesOnSCOrItemAttack(cond) {
			continue
		}
		as := NewActionState()
		if !b.isCardTargetedByCondition(cond, &as, c) {
			b.applyStatDeltasAndClearCondition(cond, c)
			changed = true
		} else if cond.RemainingTurns == 0 {
			cond.AArgValue--
			if cond.AArgValue < 1 {
				b.applyStatDeltasAndClearCondition(cond, c)
				changed = true
			}
		}
	}
	c.computeActionChainResults(b, true, false)
	c.computeAttackBonus(b, nil, nil)
	if changed {
		c.sendUpdatesIfNeeded(b, false)
	}
}

func (c *Card) clearMoveFlags() {
	c.Flags.Clear(CardFlagAttackDeclared | CardFlagAttackDone | CardFlagAttacking)
}

func (c *Card) drawPhaseBefore(b *Battle) {
	c.Facing = field.DirInvalid
	b.drawPhaseBeforeForCard(c)
}

func (c *Card) actionPhaseBefore(b *Battle) {
	c.clearActionChainAndMetadata()
	b.actionPhaseBeforeForCard(c)
}

func (c *Card) movePhaseBefore(b *Battle) {
	b.movePhaseBeforeForCard(c)
}

// computeAttackBonusesForAll recomputes the attack bonus every card would
// take from attacker, defending team first.
func (c *Card) computeAttackBonusesForAll(b *Battle, as *ActionState) {
	check := func(card *Card) {
		if card == nil {
			return
		}
		if card.computeAttackBonus(b, c, as) {
			card.Metadata.Flags.Set(MetadataFlagUnderAttack)
		} else {
			card.Metadata.Flags.Clear(MetadataFlagUnderAttack)
		}
	}
	turn := b.currentTeamTurn2
	for pass := 0; pass < 2; pass++ {
		for _, p := range b.players {
			if p == nil || (p.TeamID == turn) != (pass == 1) {
				continue
			}
			check(p.SC)
			for _, card := range p.SetCards {
				check(card)
			}
		}
	}
}

func (c *Card) setSetterRef(ref CardRef) {
	if ref == NoRef {
		c.Chain.SetterRef = c.Ref
	} else {
		c.Chain.SetterRef = ref
	}
}

// addDefense records a declared defense on this card.
func (c *Card) addDefense(b *Battle, pa *ActionState) {
	c.Metadata.AddDefense(pa.DefenseRef, pa.OriginalAttackerRef, b.currentActionSubphase())
	b.onActionSet(pa, NoRef)
	for z := 0; z < c.Metadata.Targets.Len(); z++ {
		if card := b.cardForRef(c.Metadata.Targets.At(z)); card != nil {
			card.Chain.Subphase = b.currentActionSubphase()
			card.sendUpdatesIfNeeded(b, false)
		}
	}
	c.sendUpdatesIfNeeded(b, false)
}

// addAttackAction links one action card of a declared attack into this
// card's chain and queues the attack the first time.
func (c *Card) addAttackAction(b *Battle, pa *ActionState, ref CardRef) {
	c.Facing = pa.Facing
	c.Chain.AddAttackAction(ref, b.currentActionSubphase())

	for clientID := uint8(0); clientID < MaxClients; clientID++ {
		if b.countRampageTargetsForAttack(pa, clientID) != 0 {
			c.Chain.Flags.Set(ChainFlagRampage(clientID))
		}
		if b.attackHasPierceAndNotRampage(pa, clientID) {
			c.Chain.Flags.Set(ChainFlagPierce(clientID))
		}
	}
	if b.anyActionIsSupportTechOrPB(pa) {
		c.Chain.Flags.Set(ChainFlagSupportAction)
	}

	if c.Chain.Targets.Len() == 0 {
		for z := 0; z < pa.Targets.Len(); z++ {
			ref := pa.Targets.At(z)
			if ref == NoRef {
				break
			}
			c.Chain.AddTarget(ref)
			if target := b.cardForRef(ref); target != nil {
				target.Metadata.AddTarget(c.Ref)
				target.Flags.Set(CardFlagTargeted)
				target.sendUpdatesIfNeeded(b, false)
			}
		}
	}

	if c.Chain.AttackNumber&0x80 != 0 {
		c.Chain.AttackNumber = uint8(b.numAttacks)
		b.queueAttack(c, pa)
	}
	b.onActionSet(pa, ref)
	c.sendUpdatesIfNeeded(b, false)
}

// dicePhaseBefore ages the card's conditions by one turn.
func (c *Card) dicePhaseBefore(b *Battle) {
	c.turnCount++
	for z := MaxConditions - 1; z >= 0; z-- {
		cond := &c.Chain.Conditions[z]
		if cond.IsEmpty() {
			continue
		}
		as := NewActionState()
		if c.Flags.IsDestroyed() || !b.isCardTargetedByCondition(cond, &as, c) {
			cond.RemainingTurns = 1
		}
		if cond.RemainingTurns < TurnsForever {
			// Conditions applied with zero turns expire here instead of
			// wrapping around.
			if cond.RemainingTurns > 0 {
				cond.RemainingTurns--
			}
			if cond.RemainingTurns < 1 {
				b.applyStatDeltasAndClearCondition(cond, c)
			}
		}
	}
	b.dicePhaseBeforeForCard(c)
}

// computeAttackBonus records on this card the damage attacker's chain would
// deal to it, and reports whether attacker targets it.
func (c *Card) computeAttackBonus(b *Battle, attacker *Card, as *ActionState) bool {
	targeted := false
	var bonus int16
	if attacker != nil {
		var targets *RefList
		if as == nil {
			targets = &attacker.Chain.Targets
		} else {
			targets = &as.Targets
		}
		if targets.Contains(c.Ref) {
			bonus = int16(attacker.Chain.Damage)
			targeted = true
		}
	}

	c.Metadata.AttackBonus = int8(max(bonus, 0))
	c.lastAttackPreliminaryDamage = 0
	c.lastAttackFinalDamage = 0

	if attacker != nil {
		b.applyActionConditions(cards.WhenBeforeAnyCardAttack, attacker, c, PermitAttackBonus, as)
		b.applyActionConditions(cards.WhenBeforeThisCardAttacked, attacker, c, PermitTargetedAttackBonus, as)
		if attacker.Chain.Flags.Has(ChainFlagSupportAction) {
			c.Metadata.AttackBonus = 0
			return targeted
		}
	}
	if c.Flags.IsDestroyed() {
		c.Metadata.AttackBonus = 0
	}
	return targeted
}

// executeAttack resolves attacker's chain against this card if it holds an
// attack bonus from it.
func (c *Card) executeAttack(b *Battle, attacker *Card) {
	if attacker == nil {
		return
	}
	c.Flags.Clear(CardFlagTookDamage | CardFlagTargeted)
	ap := int16(c.Metadata.AttackBonus)
	var tp int16
	defense := c.defensePowerAgainst(b, attacker)
	if ap == 0 && !c.Metadata.Flags.Has(MetadataFlagUnderAttack) {
		return
	}

	res := NewEffectResult()
	res.Flags = 0x01
	res.AttackerRef = attacker.Ref
	res.TargetRef = c.Ref

	// A healing chain restores TP worth of HP per strike.
	if attacker.Chain.Medium == cards.MediumUnknown03 {
		for strike := 0; strike < int(attacker.Chain.StrikeCount); strike++ {
			c.HP = min(c.HP+int16(attacker.Chain.EffectiveTP), c.MaxHP)
		}
		c.propagateSharedHP(b)
		res.TP = attacker.Chain.EffectiveTP
		res.Value = -res.TP
		b.send(&EffectEvent{Effect: res})
		return
	}

	ap = b.computeAttackAP(c, ap, attacker.Ref)
	c.adjustAttackForAssists(b, attacker, &ap, defense)

	raw := ap - defense
	damage := max(raw, 0) - tp
	c.lastAttackPreliminaryDamage = damage

	target := c
	replacedRef, negated := b.replacedAttackTarget(c.Ref, attacker.Ref)
	if card := b.cardForRef(replacedRef); card != nil {
		target = card
	}
	if negated {
		damage = 0
	}
	if !c.Flags.IsDestroyed() && !attacker.Flags.IsDestroyed() {
		damage = b.checkForDefenseInterference(attacker, c, damage)
	}

	res.CurrentHP = int8(min(ap, 99))
	res.AP = int8(min(defense, 99))
	res.TP = int8(tp)

	p := c.player(b)
	p.Stats.NumAttacksTaken++

	if !target.Flags.IsDestroyed() {
		for strike := 0; strike < int(attacker.Chain.StrikeCount); strike++ {
			final := target.commitAttack(b, damage, attacker, &res, strike)
			p.Stats.ActionCardNegatedDamage += uint16(max(0, c.currentDefensePower-final))
		}
	} else {
		target.commitAttack(b, 0, attacker, &res, 0)
	}
	if target != c {
		c.commitAttack(b, 0, attacker, &res, 0)
	}
	b.sendPlayerStats()
}

func (c *Card) executeAttackOnAllValidTargets(b *Battle) {
	for _, p := range b.players {
		if p == nil {
			continue
		}
		if p.SC != nil {
			p.SC.executeAttack(b, c)
		}
		for _, card := range p.SetCards {
			if card != nil {
				card.executeAttack(b, c)
			}
		}
	}
}

// applyAttackResult resolves this card's queued attack: it retargets the
// chain, runs the before-attack effects, deals damage and runs the
// after-attack effects.
func (c *Card) applyAttackResult(b *Battle) {
	if !c.Chain.CanApplyAttack() {
		return
	}
	p := c.player(b)
	if n := uint16(c.Chain.AttackActions.Len()); p.Stats.MaxAttackComboSize < n {
		p.Stats.MaxAttackComboSize = n
	}

	as := NewActionState()
	as.AttackerRef = c.Ref
	as.Targets = c.Chain.Targets
	b.replaceTargetsDueToDestructionOrConditions(&as)
	c.Chain.Targets.Clear()
	for z := 0; z < as.Targets.Len(); z++ {
		ref := as.Targets.At(z)
		if ref == NoRef {
			break
		}
		c.Chain.Targets.Add(ref)
	}
	b.logger.Debug("resolving attack",
		zap.Stringer("attacker", c.Ref),
		zap.Stringer("targets", &c.Chain.Targets))

	effectsEnabled := !c.Chain.Flags.Has(ChainFlagEffectsDisabled)
	for z := 0; z < c.Chain.Targets.Len(); z++ {
		if card := b.cardForRef(c.Chain.Targets.At(z)); card != nil {
			card.currentDefensePower = int16(card.Metadata.AttackBonus)
			if effectsEnabled {
				b.applyTargetEffectsBeforeAttack(c, card)
			}
		}
	}

	c.computeActionChainResults(b, true, false)
	if effectsEnabled {
		b.applyEffectsBeforeAttack(c)
	}
	if !c.Flags.IsDestroyed() {
		c.computeActionChainResults(b, true, false)
		b.checkForAttackInterference(c)
	}
	c.computeActionChainResults(b, true, false)

	c.computeAttackBonusesForAll(b, nil)
	c.executeAttackOnAllValidTargets(b)

	if !c.Chain.Flags.Has(ChainFlagEffectsDisabled) {
		b.applyEffectsAfterAttack(c)
	}
	p.Stats.NumAttacksGiven++

	c.Chain.Flags.Clear(ChainFlagHasActions)
	c.Chain.Flags.Set(ChainFlagAttackDone)
	c.Flags.Set(CardFlagAttackDone)
	c.Chain.Targets.Clear()
	for _, other := range b.players {
		if other != nil {
			other.resetAttackFlags(b)
		}
	}
	c.sendUpdatesIfNeeded(b, false)
}

// ShortStatus returns the synchronized status of the card. Items report
// their SC's location.
func (c *Card) ShortStatus(b *Battle) CardShortStatus {
	if c.Def.Type == cards.TypeItem {
		if sc := c.player(b).SC; sc != nil {
			c.Loc = sc.Loc
		}
	}
	return CardShortStatus{
		CardRef:   c.Ref,
		CurrentHP: uint16(max(c.HP, 0)),
		MaxHP:     int8(c.MaxHP),
		Flags:     c.Flags,
		Loc:       c.Loc,
	}
}
