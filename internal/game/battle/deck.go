package battle

import (
	"fmt"
	"strings"

	"github.com/magefree/ep3-server-go/internal/game/cards"
)

// Random is the battle random source as seen by the rules. All randomness
// flows through one instance so a battle can be replayed.
type Random interface {
	Intn(n int) int
	Float() float64
}

// DeckCardState is where one deck card currently is.
type DeckCardState uint8

const (
	DeckDrawable DeckCardState = iota
	DeckStoryCharacter
	DeckInHand
	DeckInPlay
	DeckDiscarded
	DeckInvalid
)

var deckCardStateNames = []string{"DRAWABLE", "STORY_CHARACTER", "IN_HAND", "IN_PLAY", "DISCARDED", "INVALID"}

func (s DeckCardState) String() string {
	if int(s) < len(deckCardStateNames) {
		return deckCardStateNames[s]
	}
	return "__UNKNOWN__"
}

type deckEntry struct {
	cardID    uint16
	deckIndex uint8
	state     DeckCardState
}

// Deck tracks the draw order and location of one client's 31 cards. Index 0
// is always the story character.
type Deck struct {
	clientID       uint8
	drawIndex      uint8
	shuffleEnabled bool
	loopEnabled    bool
	entries        [DeckSize]deckEntry
	refs           [DeckSize]CardRef
}

// NewDeck builds a deck from the 31 card ids of a deck entry.
func NewDeck(clientID uint8, cardIDs [DeckSize]uint16) *Deck {
	d := &Deck{
		clientID:       clientID,
		drawIndex:      1,
		shuffleEnabled: true,
		loopEnabled:    true,
	}
	for z := range d.entries {
		d.entries[z] = deckEntry{cardID: cardIDs[z], deckIndex: uint8(z), state: DeckDrawable}
		d.refs[z] = d.RefForIndex(uint8(z))
	}
	d.entries[0].state = DeckStoryCharacter
	return d
}

// DisableLoop stops discarded cards from returning when the deck runs out.
func (d *Deck) DisableLoop() { d.loopEnabled = false }

// DisableShuffle keeps the deck in its original order.
func (d *Deck) DisableShuffle() { d.shuffleEnabled = false }

// NumDrawable returns the number of cards left to draw.
func (d *Deck) NumDrawable() int {
	return DeckSize - int(d.drawIndex)
}

// Contains reports whether ref indexes a card of this deck.
func (d *Deck) Contains(ref CardRef) bool {
	return int(ref.Index()) < DeckSize
}

// CardIDForRef returns the card id behind ref, or CardIDNone.
func (d *Deck) CardIDForRef(ref CardRef) uint16 {
	if ref == NoRef || int(ref.Index()) >= DeckSize {
		return cards.CardIDNone
	}
	return d.entries[ref.Index()].cardID
}

// SCCardID returns the story character's card id.
func (d *Deck) SCCardID() uint16 { return d.entries[0].cardID }

// SCCardRef returns the story character's reference.
func (d *Deck) SCCardRef() CardRef { return d.refs[0] }

// RefForIndex returns the reference of deck index z.
func (d *Deck) RefForIndex(z uint8) CardRef {
	return MakeRef(d.clientID, z)
}

// StateForRef returns where the card behind ref is.
func (d *Deck) StateForRef(ref CardRef) DeckCardState {
	if int(ref.Index()) >= DeckSize {
		return DeckInvalid
	}
	return d.entries[ref.Index()].state
}

// SetInPlay moves a card from the hand to the field.
func (d *Deck) SetInPlay(ref CardRef) bool {
	if !d.Contains(ref) {
		return false
	}
	e := &d.entries[ref.Index()]
	if e.state != DeckInHand {
		return false
	}
	e.state = DeckInPlay
	return true
}

// Draw takes the next card. It restarts the deck when empty and returns NoRef
// if nothing can be drawn.
func (d *Deck) Draw(rng Random) CardRef {
	if d.NumDrawable() == 0 {
		d.Restart(rng)
	}
	if d.NumDrawable() == 0 {
		return NoRef
	}
	ref := d.refs[d.drawIndex]
	d.drawIndex++
	d.entries[ref.Index()].state = DeckInHand
	return ref
}

// DrawRef draws a specific card, either out of the discard pile or by moving
// it in front of the draw position.
func (d *Deck) DrawRef(ref CardRef) bool {
	if ref == NoRef || int(ref.Index()) >= DeckSize {
		return false
	}
	e := &d.entries[ref.Index()]
	if e.state == DeckDiscarded {
		e.state = DeckInHand
		return true
	}
	if e.state != DeckDrawable {
		return false
	}

	pos := -1
	for z, r := range d.refs {
		if r == ref {
			pos = z
			break
		}
	}
	if pos < 0 {
		return false
	}
	for ; pos > int(d.drawIndex); pos-- {
		d.refs[pos] = d.refs[pos-1]
	}
	d.refs[d.drawIndex] = ref
	e.state = DeckInHand
	d.drawIndex++
	return true
}

// Restart rebuilds the draw order: cards still held are moved before the draw
// position and drawable ones (including discards, if looping) after it.
func (d *Deck) Restart(rng Random) {
	if d.loopEnabled {
		for z := range d.entries {
			if d.entries[z].state == DeckDiscarded {
				d.entries[z].state = DeckDrawable
			}
		}
	}

	d.drawIndex = 0
	for z := range d.entries {
		if d.entries[z].state != DeckDrawable {
			d.refs[d.drawIndex] = d.RefForIndex(uint8(z))
			d.drawIndex++
		}
	}
	index := int(d.drawIndex)
	for z := range d.entries {
		if d.entries[z].state == DeckDrawable {
			d.refs[index] = d.RefForIndex(uint8(z))
			index++
		}
	}
	d.Shuffle(rng)
}

// Shuffle does DeckSize random swaps within the undrawn part of the deck.
// This is not a uniform shuffle; replays depend on this exact swap pattern.
func (d *Deck) Shuffle(rng Random) {
	if !d.shuffleEnabled {
		return
	}
	limit := d.NumDrawable()
	for z := 0; z < DeckSize; z++ {
		i1 := int(d.drawIndex) + rng.Intn(limit)
		i2 := int(d.drawIndex) + rng.Intn(limit)
		d.refs[i1], d.refs[i2] = d.refs[i2], d.refs[i1]
	}
}

// Mulligan returns the opening hand to the deck. The next five cards move to
// the front and the rest of the deck is shuffled.
func (d *Deck) Mulligan(rng Random) {
	for z := range d.entries {
		if d.entries[z].state == DeckDiscarded {
			d.entries[z].state = DeckDrawable
		}
	}
	d.drawIndex = 1
	if !d.shuffleEnabled {
		return
	}

	for z := 0; z < 5; z++ {
		index := z + int(d.drawIndex)
		d.refs[index], d.refs[index+5] = d.refs[index+5], d.refs[index]
	}
	limit := d.NumDrawable() - 5
	base := int(d.drawIndex) + 5
	for z := 0; z < DeckSize; z++ {
		i1 := rng.Intn(limit)
		i2 := rng.Intn(limit)
		d.refs[base+i1], d.refs[base+i2] = d.refs[base+i2], d.refs[base+i1]
	}
}

// SetDrawableNext puts a card back on top of the deck.
func (d *Deck) SetDrawableNext(ref CardRef) bool {
	if ref == NoRef || ref.ClientID() != d.clientID || int(ref.Index()) >= DeckSize {
		return false
	}
	e := &d.entries[ref.Index()]
	if e.state == DeckDrawable || d.drawIndex < 1 {
		return false
	}
	e.state = DeckDrawable
	d.drawIndex--
	d.refs[d.drawIndex] = ref
	return true
}

// SetDrawableAtEnd puts a card back at the bottom of the deck.
func (d *Deck) SetDrawableAtEnd(ref CardRef) bool {
	if !d.SetDrawableNext(ref) {
		return false
	}
	head := d.refs[d.drawIndex]
	for z := int(d.drawIndex); z < DeckSize-1; z++ {
		d.refs[z] = d.refs[z+1]
	}
	d.refs[DeckSize-1] = head
	return true
}

// SetDiscarded marks a card as discarded.
func (d *Deck) SetDiscarded(ref CardRef) {
	if int(ref.Index()) < DeckSize {
		d.entries[ref.Index()].state = DeckDiscarded
	}
}

// DrawOrder returns the current reference order, for diagnostics and tests.
func (d *Deck) DrawOrder() []CardRef {
	ret := make([]CardRef, DeckSize)
	copy(ret, d.refs[:])
	return ret
}

func (d *Deck) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Deck client=%d draw_index=%d shuffle=%t loop=%t\n",
		d.clientID, d.drawIndex, d.shuffleEnabled, d.loopEnabled)
	for z, e := range d.entries {
		fmt.Fprintf(&b, "  (%02d) ref=%s card_id=#%04X %s\n", z, d.refs[z], e.cardID, e.state)
	}
	return b.String()
}
