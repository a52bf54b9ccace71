package battle

import (
	"fmt"

	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/field"
)

// ActionState is one declared attack or defense as submitted by a client.
type ActionState struct {
	ClientID uint8
	Facing   field.Direction
	// AttackerRef is the acting card of an attack.
	AttackerRef CardRef
	// DefenseRef is the card a defense action is set on.
	DefenseRef CardRef
	Targets    RefList
	Actions    RefList
	// OriginalAttackerRef names the attacker a defense answers.
	OriginalAttackerRef CardRef
}

// NewActionState returns a cleared declaration.
func NewActionState() ActionState {
	return ActionState{
		ClientID:            0xFF,
		Facing:              field.DirRight,
		AttackerRef:         NoRef,
		DefenseRef:          NoRef,
		Targets:             NewRefList(MaxTargets),
		Actions:             NewRefList(MaxActionCards),
		OriginalAttackerRef: NoRef,
	}
}

func (as *ActionState) String() string {
	return fmt.Sprintf("ActionState[client=%d facing=%s attacker=%s defense=%s targets=%s actions=%s orig_attacker=%s]",
		as.ClientID, as.Facing, as.AttackerRef, as.DefenseRef, as.Targets.String(), as.Actions.String(), as.OriginalAttackerRef)
}

// ActionChain is the per-turn attack record of a card: its chained action
// cards, targets and computed damage, plus the card's condition slots.
type ActionChain struct {
	EffectiveAP   int8
	EffectiveTP   int8
	APEffectBonus int8
	Damage        int8
	ActingRef     CardRef
	// SetterRef is the card whose action placed this chain, used by effects
	// that look back at the setter.
	SetterRef        CardRef
	AttackActions    RefList
	Medium           cards.AttackMedium
	Targets          RefList
	Subphase         cards.ActionSubphase
	StrikeCount      uint8
	DamageMultiplier int8
	AttackNumber     uint8
	TPEffectBonus    int8
	CardAP           int8
	CardTP           int8
	Flags            ChainFlags

	Conditions Conditions
}

// NewActionChain returns a cleared chain with empty conditions.
func NewActionChain() ActionChain {
	c := ActionChain{
		ActingRef:        NoRef,
		SetterRef:        NoRef,
		AttackActions:    NewRefList(MaxActionCards),
		Medium:           cards.MediumUnknown,
		Targets:          NewRefList(MaxTargets),
		Subphase:         cards.SubphaseInvalid,
		StrikeCount:      1,
		DamageMultiplier: 1,
		AttackNumber:     0xFF,
	}
	c.Conditions.Clear()
	return c
}

// ClearInner resets everything except the condition slots and card stats.
func (c *ActionChain) ClearInner() {
	c.SetterRef = NoRef
	c.ActingRef = NoRef
	c.Medium = cards.MediumInvalid
	c.Flags = 0
	c.Subphase = cards.SubphaseInvalid
	c.AttackNumber = 0xFF
	c.Reset()
	c.Targets.Clear()
	c.AttackActions.Clear()
}

// Reset zeroes the computed values.
func (c *ActionChain) Reset() {
	c.EffectiveAP = 0
	c.EffectiveTP = 0
	c.APEffectBonus = 0
	c.TPEffectBonus = 0
	c.Damage = 0
	c.StrikeCount = 1
	c.DamageMultiplier = 1
}

// AddAttackAction appends an action card and marks the chain as pending in
// the given subphase.
func (c *ActionChain) AddAttackAction(ref CardRef, subphase cards.ActionSubphase) {
	if ref != NoRef {
		c.AttackActions.Add(ref)
	}
	c.Flags.Set(ChainFlagHasActions)
	c.Subphase = subphase
}

// AddTarget appends a target if there is room.
func (c *ActionChain) AddTarget(ref CardRef) {
	if ref != NoRef {
		c.Targets.Add(ref)
	}
}

// ComputeMedium sets the attack medium: technique if any action card is
// technique-like, physical otherwise.
func (c *ActionChain) ComputeMedium(lookup func(CardRef) *cards.Definition) {
	c.Medium = cards.MediumPhysical
	for z := 0; z < c.AttackActions.Len(); z++ {
		ref := c.AttackActions.At(z)
		if ref == NoRef {
			break
		}
		def := lookup(ref)
		if def != nil && def.Class.IsTechLike() {
			c.Medium = cards.MediumTech
		}
	}
}

// CanApplyAttack reports whether the chain still has an attack to resolve.
func (c *ActionChain) CanApplyAttack() bool {
	return !c.Flags.Has(ChainFlagAttackDone) && c.Targets.Len() != 0
}

// SameChain reports whether the chain parts (not the conditions) match.
func (c *ActionChain) SameChain(other *ActionChain) bool {
	a, b := *c, *other
	a.Conditions, b.Conditions = Conditions{}, Conditions{}
	return a == b
}

func (c *ActionChain) String() string {
	return fmt.Sprintf("ActionChain[ap=%d tp=%d ap_bonus=%d tp_bonus=%d damage=%d acting=%s setter=%s actions=%s medium=%s targets=%s subphase=%s strikes=%d mult=%d attack_num=%02X card_ap=%d card_tp=%d flags=%s]",
		c.EffectiveAP, c.EffectiveTP, c.APEffectBonus, c.TPEffectBonus, c.Damage, c.ActingRef, c.SetterRef,
		c.AttackActions.String(), c.Medium, c.Targets.String(), c.Subphase, c.StrikeCount, c.DamageMultiplier,
		c.AttackNumber, c.CardAP, c.CardTP, c.Flags)
}

// ActionMetadata is the defensive half of a card's per-turn record: who is
// attacking it and which defense cards protect it.
type ActionMetadata struct {
	CardRef  CardRef
	Subphase cards.ActionSubphase
	// Targets lists the attackers that named this card as a target.
	Targets      RefList
	Defenses     RefList
	DefenseFor   RefList
	DefensePower int8
	DefenseBonus int8
	AttackBonus  int8
	Flags        MetadataFlags
}

// NewActionMetadata returns a cleared record.
func NewActionMetadata() ActionMetadata {
	return ActionMetadata{
		CardRef:    NoRef,
		Subphase:   cards.SubphaseInvalid,
		Targets:    NewRefList(MaxTargets),
		Defenses:   NewRefList(MaxActionCards),
		DefenseFor: NewRefList(MaxActionCards),
	}
}

// Clear resets the record.
func (m *ActionMetadata) Clear() {
	*m = NewActionMetadata()
}

// ClearDefenses forgets all defense cards.
func (m *ActionMetadata) ClearDefenses() {
	m.Defenses.Clear()
	m.DefenseFor.Clear()
}

// AddTarget records an attacker targeting this card.
func (m *ActionMetadata) AddTarget(ref CardRef) {
	if ref != NoRef {
		m.Targets.Add(ref)
	}
}

// AddDefense records a defense card and the attacker it answers.
func (m *ActionMetadata) AddDefense(defenseRef, originalAttackerRef CardRef, subphase cards.ActionSubphase) {
	if defenseRef == NoRef || m.Defenses.Len() >= MaxActionCards {
		return
	}
	m.Defenses.Add(defenseRef)
	m.DefenseFor.Add(originalAttackerRef)
	m.Subphase = subphase
}

func (m *ActionMetadata) String() string {
	return fmt.Sprintf("ActionMetadata[card=%s subphase=%s targets=%s defenses=%s for=%s def_power=%d def_bonus=%d atk_bonus=%d flags=%02X]",
		m.CardRef, m.Subphase, m.Targets.String(), m.Defenses.String(), m.DefenseFor.String(),
		m.DefensePower, m.DefenseBonus, m.AttackBonus, uint32(m.Flags))
}
