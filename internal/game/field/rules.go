package field

import "fmt"

// HPType selects how story character HP and defeat are handled.
type HPType uint8

const (
	HPDefeatPlayer HPType = 0
	HPDefeatTeam   HPType = 1
	HPCommon       HPType = 2
)

func (t HPType) String() string {
	switch t {
	case HPDefeatPlayer:
		return "defeat-player"
	case HPDefeatTeam:
		return "defeat-team"
	case HPCommon:
		return "common-hp"
	}
	return fmt.Sprintf("(%02X)", uint8(t))
}

// DiceExchangeMode controls whether the attack and defense dice are swapped
// after rolling.
type DiceExchangeMode uint8

const (
	DiceExchangeHighATK DiceExchangeMode = 0
	DiceExchangeHighDEF DiceExchangeMode = 1
	DiceExchangeNone    DiceExchangeMode = 2
)

// AllowedCards limits deck contents by rank.
type AllowedCards uint8

const (
	AllowAll     AllowedCards = 0
	AllowNOnly   AllowedCards = 1
	AllowNROnly  AllowedCards = 2
	AllowNRSOnly AllowedCards = 3
)

// Rules are the per-battle options. Dice ranges packed into one byte carry
// the minimum in the high nibble and the maximum in the low nibble.
type Rules struct {
	// OverallTimeLimit is in units of 5 minutes; 0 means unlimited.
	OverallTimeLimit   uint8            `yaml:"overall_time_limit" mapstructure:"overall_time_limit"`
	PhaseTimeLimit     uint8            `yaml:"phase_time_limit" mapstructure:"phase_time_limit"`
	AllowedCards       AllowedCards     `yaml:"allowed_cards" mapstructure:"allowed_cards"`
	MinDiceValue       uint8            `yaml:"min_dice" mapstructure:"min_dice"`
	MaxDiceValue       uint8            `yaml:"max_dice" mapstructure:"max_dice"`
	DisableDeckShuffle bool             `yaml:"disable_deck_shuffle" mapstructure:"disable_deck_shuffle"`
	DisableDeckLoop    bool             `yaml:"disable_deck_loop" mapstructure:"disable_deck_loop"`
	CharHP             uint8            `yaml:"char_hp" mapstructure:"char_hp"`
	HPType             HPType           `yaml:"hp_type" mapstructure:"hp_type"`
	NoAssistCards      bool             `yaml:"no_assist_cards" mapstructure:"no_assist_cards"`
	DisableDialogue    bool             `yaml:"disable_dialogue" mapstructure:"disable_dialogue"`
	DiceExchangeMode   DiceExchangeMode `yaml:"dice_exchange_mode" mapstructure:"dice_exchange_mode"`
	DisableDiceBoost   bool             `yaml:"disable_dice_boost" mapstructure:"disable_dice_boost"`
	DEFDiceRange       uint8            `yaml:"def_dice_range" mapstructure:"def_dice_range"`
	ATKDiceRange2v1    uint8            `yaml:"atk_dice_range_2v1" mapstructure:"atk_dice_range_2v1"`
	DEFDiceRange2v1    uint8            `yaml:"def_dice_range_2v1" mapstructure:"def_dice_range_2v1"`
}

// DefaultRules returns the rules used when a map does not specify any.
func DefaultRules() Rules {
	return Rules{
		OverallTimeLimit: 24,
		PhaseTimeLimit:   30,
		MinDiceValue:     1,
		MaxDiceValue:     6,
		CharHP:           15,
	}
}

func packedRange(v uint8) (uint8, uint8) {
	return (v >> 4) & 0x0F, v & 0x0F
}

func normalizeRange(lo, hi uint8) (uint8, uint8) {
	if lo == 0 {
		lo = 1
	}
	if hi == 0 {
		hi = 6
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

// AttackDiceRange returns the inclusive attack die range. soloVsTwo selects
// the override for the single player of a 2v1 battle.
func (r *Rules) AttackDiceRange(soloVsTwo bool) (uint8, uint8) {
	if soloVsTwo && r.ATKDiceRange2v1 != 0 && r.ATKDiceRange2v1 != 0xFF {
		return normalizeRange(packedRange(r.ATKDiceRange2v1))
	}
	return normalizeRange(r.MinDiceValue, r.MaxDiceValue)
}

// DefenseDiceRange returns the inclusive defense die range.
func (r *Rules) DefenseDiceRange(soloVsTwo bool) (uint8, uint8) {
	switch {
	case soloVsTwo && r.DEFDiceRange2v1 != 0 && r.DEFDiceRange2v1 != 0xFF:
		return normalizeRange(packedRange(r.DEFDiceRange2v1))
	case r.DEFDiceRange != 0 && r.DEFDiceRange != 0xFF:
		return normalizeRange(packedRange(r.DEFDiceRange))
	}
	return normalizeRange(r.MinDiceValue, r.MaxDiceValue)
}

func checkPackedRange(v *uint8) bool {
	changed := false
	lo, hi := packedRange(*v)
	if lo > 9 {
		lo, changed = 0, true
	}
	if hi > 9 {
		hi, changed = 0, true
	}
	if lo != 0 && hi != 0 && hi < lo {
		lo, hi, changed = hi, lo, true
	}
	*v = (lo << 4) | hi
	return changed
}

// CheckAndResetInvalidFields replaces out-of-range values with safe ones and
// reports whether anything changed.
func (r *Rules) CheckAndResetInvalidFields() bool {
	changed := false
	if r.OverallTimeLimit > 36 {
		r.OverallTimeLimit, changed = 6, true
	}
	if r.PhaseTimeLimit > 120 {
		r.PhaseTimeLimit, changed = 60, true
	}
	if r.AllowedCards > AllowNRSOnly {
		r.AllowedCards, changed = AllowAll, true
	}
	if r.MinDiceValue > 9 {
		r.MinDiceValue, changed = 0, true
	}
	if r.MaxDiceValue > 9 {
		r.MaxDiceValue, changed = 0, true
	}
	if r.MinDiceValue != 0 && r.MaxDiceValue != 0 && r.MaxDiceValue < r.MinDiceValue {
		r.MinDiceValue, r.MaxDiceValue, changed = r.MaxDiceValue, r.MinDiceValue, true
	}
	changed = checkPackedRange(&r.DEFDiceRange) || changed
	changed = checkPackedRange(&r.ATKDiceRange2v1) || changed
	changed = checkPackedRange(&r.DEFDiceRange2v1) || changed
	if r.CharHP > 99 {
		r.CharHP, changed = 0, true
	}
	if r.HPType > HPCommon {
		r.HPType, changed = HPDefeatPlayer, true
	}
	if r.DiceExchangeMode > DiceExchangeNone {
		r.DiceExchangeMode, changed = DiceExchangeHighATK, true
	}
	return changed
}

func (r Rules) String() string {
	return fmt.Sprintf("char_hp=%d hp_type=%s dice=[%d-%d] time=%d/%d",
		r.CharHP, r.HPType, r.MinDiceValue, r.MaxDiceValue, r.OverallTimeLimit, r.PhaseTimeLimit)
}
