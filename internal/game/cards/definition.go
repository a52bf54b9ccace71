package cards

import (
	"fmt"
	"strconv"
	"strings"
)

// StatType describes how a card stat modifies the base value.
type StatType uint8

const (
	StatBlank StatType = iota
	StatValue
	StatPlus
	StatMinus
	StatEquals
	StatUnknown
	StatPlusUnknown
	StatMinusUnknown
	StatEqualsUnknown
)

// Stat is a decoded HP/AP/TP/MV stat. Code is the packed form
// type*1000+value, where a value of 999 means the stat is unknown ("?").
type Stat struct {
	Code  uint16
	Type  StatType
	Value int8
}

// DecodeStat unpacks a stat code.
func DecodeStat(code uint16) (Stat, error) {
	st := Stat{Code: code, Type: StatType(code / 1000)}
	value := int(code) - int(st.Type)*1000
	if value == 999 {
		st.Value = 0
		st.Type += 4
		return st, nil
	}
	switch st.Type {
	case StatBlank:
		st.Value = 0
	case StatValue, StatPlus, StatEquals:
		st.Value = int8(value)
	case StatMinus:
		st.Value = int8(-value)
	default:
		return Stat{}, fmt.Errorf("invalid card stat type in code %d", code)
	}
	return st, nil
}

// ParseStat accepts the printed forms "", "12", "+2", "-1", "=3", "?",
// "+?", "-?" and "=?".
func ParseStat(s string) (Stat, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "(blank)" {
		return Stat{}, nil
	}
	var base uint16 = 1000
	switch s[0] {
	case '+':
		base, s = 2000, s[1:]
	case '-':
		base, s = 3000, s[1:]
	case '=':
		base, s = 4000, s[1:]
	}
	if s == "?" {
		return DecodeStat(base + 999)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 998 {
		return Stat{}, fmt.Errorf("invalid stat %q", s)
	}
	return DecodeStat(base + uint16(n))
}

func (s Stat) String() string {
	switch s.Type {
	case StatBlank:
		return "(blank)"
	case StatValue:
		return strconv.Itoa(int(s.Value))
	case StatPlus:
		return fmt.Sprintf("+%d", s.Value)
	case StatMinus:
		return fmt.Sprintf("-%d", -int(s.Value))
	case StatEquals:
		return fmt.Sprintf("=%d", s.Value)
	case StatUnknown:
		return "?"
	case StatPlusUnknown:
		return "+?"
	case StatMinusUnknown:
		return "-?"
	case StatEqualsUnknown:
		return "=?"
	}
	return fmt.Sprintf("[%02X %02X]", uint8(s.Type), uint8(s.Value))
}

// Effect is one of the up to three effect slots of a card.
type Effect struct {
	// EffectNum is the 1-based index of this effect within the card.
	EffectNum      uint8
	Type           ConditionType
	Expr           string
	When           EffectWhen
	Arg1           string
	Arg2           string
	Arg3           string
	ApplyCriterion CriterionCode
	NameIndex      uint8
}

// IsEmpty reports whether the slot carries no effect.
func (e Effect) IsEmpty() bool {
	return e.EffectNum == 0 && e.Type == CondNone && e.Expr == "" && e.When == WhenNone &&
		e.Arg1 == "" && e.Arg2 == "" && e.Arg3 == "" && e.ApplyCriterion == CriterionNone && e.NameIndex == 0
}

// Arg3Number returns the numeric part of arg3 ("p05" -> 5), which selects the
// target mode of the effect.
func (e Effect) Arg3Number() int {
	return AtoiSuffix(e.Arg3)
}

// AtoiSuffix parses the digits after the first character of an effect
// argument the way the card data expects: leading digits only, 0 if none.
func AtoiSuffix(arg string) int {
	if len(arg) < 2 {
		return 0
	}
	return Atoi(arg[1:])
}

// Atoi parses leading decimal digits with an optional sign, ignoring any
// trailing text. It returns 0 when no digits are present.
func Atoi(s string) int {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		neg = s[i] == '-'
		i++
	}
	n := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		return -n
	}
	return n
}

// Definition is the static description of a card.
type Definition struct {
	CardID          uint16
	Name            string
	Type            CardType
	SelfCost        uint8
	AllyCost        uint8
	HP              Stat
	AP              Stat
	TP              Stat
	MV              Stat
	LeftColors      [8]uint8
	RightColors     [8]uint8
	TopColors       [8]uint8
	Range           [6]uint32
	TargetMode      TargetMode
	AssistTurns     uint8
	CannotMove      bool
	CannotAttack    bool
	CannotDrop      bool
	UsableCriterion CriterionCode
	Rank            Rank
	Class           CardClass
	Effects         [3]Effect
}

// Assist durations with special meaning.
const (
	AssistTurnsOnce    uint8 = 90
	AssistTurnsForever uint8 = 99
)

// IsSC reports whether the card is a story character.
func (d *Definition) IsSC() bool {
	return d.Type.IsSC()
}

// IsFC reports whether the card is an item or creature.
func (d *Definition) IsFC() bool {
	return d.Type.IsFC()
}

var namedAndroidSCs = idSet(0x0005, 0x0007, 0x0110, 0x0113, 0x0114, 0x0117, 0x011B, 0x011F)

// IsNamedAndroidSC reports whether the card is one of the named android
// story characters, which cannot link certain item colors.
func (d *Definition) IsNamedAndroidSC() bool {
	_, ok := namedAndroidSCs[d.CardID]
	return ok
}

// AnyTopColorMatches reports whether any nonzero top color of d appears in
// other's top colors.
func (d *Definition) AnyTopColorMatches(other *Definition) bool {
	for _, c := range d.TopColors {
		if c == 0 {
			continue
		}
		for _, oc := range other.TopColors {
			if c == oc {
				return true
			}
		}
	}
	return false
}

// HasEffect reports whether any effect slot, up to the first empty one, has
// the given type.
func (d *Definition) HasEffect(t ConditionType) bool {
	for _, eff := range d.Effects {
		if eff.Type == CondNone {
			return false
		}
		if eff.Type == t {
			return true
		}
	}
	return false
}

// RangeEntireField is the row value that marks a whole-field range.
const RangeEntireField uint32 = 0x000FFFFF

// DecodeRange expands a fixed range index stored in the center row into the
// explicit range pattern. Definitions without a fixed index are unchanged.
func (d *Definition) DecodeRange() error {
	index := (d.Range[4] >> 8) & 0xF
	if index == 0 {
		return nil
	}
	d.Range = [6]uint32{}
	switch index {
	case 1: // single cell in front
		d.Range[3] = 0x00000100
	case 2: // front and front diagonals
		d.Range[3] = 0x00001110
	case 3: // three cells in a line
		d.Range[1] = 0x00000100
		d.Range[2] = 0x00000100
		d.Range[3] = 0x00000100
	case 4: // all eight neighbors
		d.Range[3] = 0x00001110
		d.Range[4] = 0x00001010
		d.Range[5] = 0x00001110
	case 5: // two cells in a line
		d.Range[2] = 0x00000100
		d.Range[3] = 0x00000100
	case 6:
		for x := range d.Range {
			d.Range[x] = RangeEntireField
		}
	case 7: // union of 4 and 5
		d.Range[2] = 0x00000100
		d.Range[3] = 0x00001110
		d.Range[4] = 0x00001010
		d.Range[5] = 0x00001110
	case 8: // neighbors and own cell
		d.Range[3] = 0x00001110
		d.Range[4] = 0x00001110
		d.Range[5] = 0x00001110
	case 9:
	default:
		return fmt.Errorf("card %04X: invalid fixed range index %d", d.CardID, index)
	}
	return nil
}
