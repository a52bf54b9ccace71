package battle

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
)

// CardRef identifies one card instance in a battle. The high byte is the
// owning client id and the low byte is the card's index in that client's
// deck.
type CardRef uint16

// NoRef is the empty reference.
const NoRef CardRef = 0xFFFF

// Capacity limits of the bounded reference lists.
const (
	MaxTargets     = 36
	MaxActionCards = 8
	MaxConditions  = 9
	MaxQueued      = 32
	MaxHandSize    = 6
	MaxSetCards    = 8
	DeckSize       = 31
	MaxClients     = 4
)

// MakeRef builds a reference from a client id and deck index.
func MakeRef(clientID uint8, index uint8) CardRef {
	return CardRef(uint16(clientID)<<8 | uint16(index))
}

// ClientID returns the owning client of the reference.
func (r CardRef) ClientID() uint8 {
	return uint8(r >> 8)
}

// Index returns the deck index of the reference.
func (r CardRef) Index() uint8 {
	return uint8(r)
}

// IsValid reports whether r is not the empty reference.
func (r CardRef) IsValid() bool {
	return r != NoRef
}

func (r CardRef) String() string {
	if r == NoRef {
		return "@----"
	}
	return fmt.Sprintf("@%04X", uint16(r))
}

// RefList is a bounded, ordered list of card references. Adding to a full
// list is a no-op; the capacity is part of the observable game behavior.
// RefList has value semantics so that chain snapshots can be copied.
type RefList struct {
	refs  [MaxTargets]CardRef
	n     uint8
	limit uint8
}

// NewRefList returns an empty list holding at most limit entries.
func NewRefList(limit int) RefList {
	if limit <= 0 || limit > MaxTargets {
		limit = MaxTargets
	}
	l := RefList{limit: uint8(limit)}
	l.Clear()
	return l
}

// Cap returns the maximum number of entries.
func (l *RefList) Cap() int {
	if l.limit == 0 {
		return MaxTargets
	}
	return int(l.limit)
}

// Len returns the number of entries.
func (l *RefList) Len() int {
	return int(l.n)
}

// At returns entry z, or NoRef when z is out of range.
func (l *RefList) At(z int) CardRef {
	if z < 0 || z >= int(l.n) {
		return NoRef
	}
	return l.refs[z]
}

// Set overwrites entry z if it exists.
func (l *RefList) Set(z int, ref CardRef) {
	if z >= 0 && z < int(l.n) {
		l.refs[z] = ref
	}
}

// Add appends ref and reports whether there was room.
func (l *RefList) Add(ref CardRef) bool {
	if int(l.n) >= l.Cap() {
		return false
	}
	l.refs[l.n] = ref
	l.n++
	return true
}

// AddUnique appends ref unless it is already present.
func (l *RefList) AddUnique(ref CardRef) bool {
	if l.Contains(ref) {
		return false
	}
	return l.Add(ref)
}

// Contains reports whether ref is in the list.
func (l *RefList) Contains(ref CardRef) bool {
	return l.IndexOf(ref) >= 0
}

// IndexOf returns the position of ref, or -1.
func (l *RefList) IndexOf(ref CardRef) int {
	for z := 0; z < int(l.n); z++ {
		if l.refs[z] == ref {
			return z
		}
	}
	return -1
}

// Remove deletes the first occurrence of ref, keeping order.
func (l *RefList) Remove(ref CardRef) bool {
	z := l.IndexOf(ref)
	if z < 0 {
		return false
	}
	l.RemoveAt(z)
	return true
}

// RemoveAt deletes entry z, keeping order.
func (l *RefList) RemoveAt(z int) {
	if z < 0 || z >= int(l.n) {
		return
	}
	copy(l.refs[z:l.n], l.refs[z+1:l.n])
	l.n--
	l.refs[l.n] = NoRef
}

// Clear empties the list.
func (l *RefList) Clear() {
	for z := range l.refs {
		l.refs[z] = NoRef
	}
	l.n = 0
}

// Slice returns a copy of the entries.
func (l *RefList) Slice() []CardRef {
	ret := make([]CardRef, l.n)
	copy(ret, l.refs[:l.n])
	return ret
}

// Array returns the entries padded with NoRef, the form sent to clients.
func (l *RefList) Array() [MaxTargets]CardRef {
	ret := l.refs
	for z := int(l.n); z < MaxTargets; z++ {
		ret[z] = NoRef
	}
	return ret
}

// Reset replaces the contents with refs, truncating to the capacity.
func (l *RefList) Reset(refs []CardRef) {
	l.Clear()
	for _, ref := range refs {
		if !l.Add(ref) {
			break
		}
	}
}

func (l *RefList) String() string {
	parts := make([]string, 0, l.n)
	for z := 0; z < int(l.n); z++ {
		parts = append(parts, l.refs[z].String())
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// MarshalBinary encodes the capacity, the length and the entries.
func (l RefList) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 2, 2+2*int(l.n))
	buf[0], buf[1] = l.limit, l.n
	for z := 0; z < int(l.n); z++ {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(l.refs[z]))
	}
	return buf, nil
}

// UnmarshalBinary decodes the form written by MarshalBinary.
func (l *RefList) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("ref list: short header")
	}
	limit, n := data[0], data[1]
	if int(limit) > MaxTargets || int(n) > MaxTargets || (limit != 0 && n > limit) {
		return fmt.Errorf("ref list: invalid size %d/%d", n, limit)
	}
	if len(data) != 2+2*int(n) {
		return fmt.Errorf("ref list: expected %d bytes, got %d", 2+2*int(n), len(data))
	}
	*l = NewRefList(int(limit))
	for z := 0; z < int(n); z++ {
		l.refs[z] = CardRef(binary.LittleEndian.Uint16(data[2+2*z:]))
	}
	l.n = n
	return nil
}

// MarshalJSON encodes the entries as an array of references.
func (l RefList) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Slice())
}

// UnmarshalJSON decodes an array of references. The list keeps its
// capacity; more entries than it holds is an error.
func (l *RefList) UnmarshalJSON(data []byte) error {
	var refs []CardRef
	if err := json.Unmarshal(data, &refs); err != nil {
		return fmt.Errorf("ref list: %w", err)
	}
	limit := l.Cap()
	if len(refs) > limit {
		return fmt.Errorf("ref list: %d entries, at most %d allowed", len(refs), limit)
	}
	*l = NewRefList(limit)
	l.Reset(refs)
	return nil
}
