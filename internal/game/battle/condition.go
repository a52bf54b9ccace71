package battle

import (
	"fmt"

	"github.com/magefree/ep3-server-go/internal/game/cards"
)

// Remaining-turn values with special meaning.
const (
	TurnsForever       uint8 = 99
	TurnsUntilFieldEnd uint8 = 100
	TurnsUntilReturn   uint8 = 102
)

// Condition is one active status effect slot on a card. A slot whose Type is
// CondNone is empty.
type Condition struct {
	Type           cards.ConditionType
	RemainingTurns uint8
	// AArgValue counts down activations for conditions with an "a" argument.
	AArgValue     int8
	DiceRollValue uint8
	Flags         uint8
	// EffectIndex is the index of the granting effect within its card.
	EffectIndex uint8
	// CardRef is the card whose definition carries the effect.
	CardRef CardRef
	Value   int16
	// GiverRef is the SC that was acting when the condition was applied.
	GiverRef      CardRef
	RandomPercent uint8
	Value8        int8
	// Order is the application order; lower values were applied earlier.
	Order     uint8
	UnknownA8 uint8
}

// Clear empties the slot.
func (c *Condition) Clear() {
	*c = Condition{CardRef: NoRef, GiverRef: NoRef}
}

// IsEmpty reports whether the slot holds no condition.
func (c *Condition) IsEmpty() bool {
	return c.Type == cards.CondNone
}

func (c *Condition) String() string {
	if c.IsEmpty() {
		return "Condition[NONE]"
	}
	return fmt.Sprintf("Condition[%s turns=%d a=%d dice=%d flags=%02X eff=%d card=%s value=%d giver=%s pct=%d order=%d]",
		c.Type, c.RemainingTurns, c.AArgValue, c.DiceRollValue, c.Flags, c.EffectIndex, c.CardRef,
		c.Value, c.GiverRef, c.RandomPercent, c.Order)
}

// Conditions is the fixed set of condition slots every card carries.
type Conditions [MaxConditions]Condition

// Clear empties every slot.
func (cs *Conditions) Clear() {
	for z := range cs {
		cs[z].Clear()
	}
}

// Count returns the number of occupied slots.
func (cs *Conditions) Count() int {
	n := 0
	for z := range cs {
		if !cs[z].IsEmpty() {
			n++
		}
	}
	return n
}

// Find returns the first slot of the given type, or nil.
func (cs *Conditions) Find(t cards.ConditionType) *Condition {
	for z := range cs {
		if cs[z].Type == t {
			return &cs[z]
		}
	}
	return nil
}

// Value looks up a condition matching every non-wildcard argument (CondAny,
// effect index 0xFF, NoRef and value 0xFFFF are wildcards). When several
// match, the value of the one with the highest order after the first match
// wins.
func (cs *Conditions) Value(t cards.ConditionType, cardRef CardRef, effectIndex uint8, value uint16) (int16, bool) {
	found := false
	var ret int16
	// The running maximum starts at 10 rather than 0, so later matches only
	// replace the first when their order exceeds 10.
	maxOrder := uint8(10)
	for z := range cs {
		cond := &cs[z]
		if (t == cards.CondAny || cond.Type == t) &&
			(effectIndex == 0xFF || cond.EffectIndex == effectIndex) &&
			(cardRef == NoRef || cond.CardRef == cardRef) &&
			(value == 0xFFFF || int(cond.Value) == int(value)) {
			if !found || maxOrder < cond.Order {
				ret = cond.Value
				maxOrder = cond.Order
			}
			found = true
		}
	}
	return ret, found
}

// Has reports whether any condition matches the arguments of Value.
func (cs *Conditions) Has(t cards.ConditionType, cardRef CardRef, effectIndex uint8, value uint16) bool {
	_, ok := cs.Value(t, cardRef, effectIndex, value)
	return ok
}

// UpdateOrders renumbers the occupied slots. The order values are first
// bubble-sorted across the occupied slots and then overwritten with 0..n-1 in
// slot order, so the final order always follows slot position.
func (cs *Conditions) UpdateOrders() {
	var indexes [MaxConditions]int
	n := 0
	for z := range cs {
		if !cs[z].IsEmpty() {
			indexes[n] = z
			n++
		}
	}
	for modified := true; modified; {
		modified = false
		for z := 0; z+1 < n; z++ {
			this, next := &cs[indexes[z]], &cs[indexes[z+1]]
			if next.Order < this.Order {
				this.Order, next.Order = next.Order, this.Order
				modified = true
			}
		}
	}
	for z := 0; z < n; z++ {
		cs[indexes[z]].Order = uint8(z)
	}
}
