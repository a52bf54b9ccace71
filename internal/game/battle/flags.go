package battle

import (
	"fmt"
	"strings"
)

// CardFlags is the per-card state bit register shared with clients through
// short statuses.
type CardFlags uint32

const (
	// CardFlagInactive is never set by the server but is honored wherever a
	// card is tested for being out of play.
	CardFlagInactive CardFlags = 0x00000001
	CardFlagDestroyed CardFlags = 0x00000002
	// CardFlagTookDamage is set when the last committed attack dealt damage.
	CardFlagTookDamage CardFlags = 0x00000004
	// CardFlagTargeted is set on every card named as a target of a declared
	// attack.
	CardFlagTargeted CardFlags = 0x00000008
	CardFlagMoved    CardFlags = 0x00000080
	// CardFlagAttackDeclared is set when an attack is registered for the
	// card during the action phase.
	CardFlagAttackDeclared CardFlags = 0x00000100
	CardFlagAttackDone     CardFlags = 0x00000200
	CardFlagAttacking      CardFlags = 0x00000400
	CardFlagDefending      CardFlags = 0x00000800

	// CardFlagsOutOfPlay is the mask tested by "is this card unusable".
	CardFlagsOutOfPlay = CardFlagInactive | CardFlagDestroyed
	// cardFlagsKeptOnActionReset survive the action-phase reset of a card.
	cardFlagsKeptOnActionReset CardFlags = 0x8000FA7F
)

var cardFlagNames = []struct {
	flag CardFlags
	name string
}{
	{CardFlagInactive, "inactive"},
	{CardFlagDestroyed, "destroyed"},
	{CardFlagTookDamage, "took_damage"},
	{CardFlagTargeted, "targeted"},
	{CardFlagMoved, "moved"},
	{CardFlagAttackDeclared, "attack_declared"},
	{CardFlagAttackDone, "attack_done"},
	{CardFlagAttacking, "attacking"},
	{CardFlagDefending, "defending"},
}

// Has reports whether any bit of mask is set.
func (f CardFlags) Has(mask CardFlags) bool { return f&mask != 0 }

// Set sets the bits of mask.
func (f *CardFlags) Set(mask CardFlags) { *f |= mask }

// Clear clears the bits of mask.
func (f *CardFlags) Clear(mask CardFlags) { *f &^= mask }

// IsDestroyed reports whether the destroyed bit is set.
func (f CardFlags) IsDestroyed() bool { return f.Has(CardFlagDestroyed) }

// IsOutOfPlay reports whether the card is destroyed or inactive.
func (f CardFlags) IsOutOfPlay() bool { return f.Has(CardFlagsOutOfPlay) }

func (f CardFlags) String() string {
	return formatFlags(uint32(f), func(yield func(uint32, string)) {
		for _, e := range cardFlagNames {
			yield(uint32(e.flag), e.name)
		}
	})
}

// ChainFlags is the flag register of an action chain.
type ChainFlags uint32

const (
	ChainFlagAttackDone ChainFlags = 0x00000004
	// ChainFlagHasActions is set once any action card has been added.
	ChainFlagHasActions ChainFlags = 0x00000008
	// ChainFlagAPLocked and ChainFlagTPLocked keep the effective AP/TP from
	// being recomputed.
	ChainFlagAPLocked ChainFlags = 0x00000010
	ChainFlagTPLocked ChainFlags = 0x00000020
	// ChainFlagEffectsDisabled suppresses the attack's before/after effects.
	ChainFlagEffectsDisabled ChainFlags = 0x00000040
	// ChainFlagInterferenceBonus adds 5 damage after an ally interferes.
	ChainFlagInterferenceBonus ChainFlags = 0x00000100
	chainFlagRampageBase       ChainFlags = 0x00000200
	chainFlagPierceBase        ChainFlags = 0x00002000
	// ChainFlagSupportAction cancels the target's attack bonus.
	ChainFlagSupportAction ChainFlags = 0x00020000

	ChainFlagsAnyRampage ChainFlags = 0x00001E00
	ChainFlagsAnyPierce  ChainFlags = 0x0001E000
)

// ChainFlagRampage is the per-client rampage bit.
func ChainFlagRampage(clientID uint8) ChainFlags { return chainFlagRampageBase << (clientID & 3) }

// ChainFlagPierce is the per-client pierce bit.
func ChainFlagPierce(clientID uint8) ChainFlags { return chainFlagPierceBase << (clientID & 3) }

// Has reports whether any bit of mask is set.
func (f ChainFlags) Has(mask ChainFlags) bool { return f&mask != 0 }

// Set sets the bits of mask.
func (f *ChainFlags) Set(mask ChainFlags) { *f |= mask }

// Clear clears the bits of mask.
func (f *ChainFlags) Clear(mask ChainFlags) { *f &^= mask }

func (f ChainFlags) String() string {
	return fmt.Sprintf("%08X", uint32(f))
}

// MetadataFlags is the flag register of an action metadata record.
type MetadataFlags uint32

const (
	// MetadataFlagDamageBlocked zeroes all damage committed to the card.
	MetadataFlagDamageBlocked MetadataFlags = 0x00000010
	// MetadataFlagUnderAttack is set while the card is a target of the
	// attack being resolved.
	MetadataFlagUnderAttack MetadataFlags = 0x00000020
)

// Has reports whether any bit of mask is set.
func (f MetadataFlags) Has(mask MetadataFlags) bool { return f&mask != 0 }

// Set sets the bits of mask.
func (f *MetadataFlags) Set(mask MetadataFlags) { *f |= mask }

// Clear clears the bits of mask.
func (f *MetadataFlags) Clear(mask MetadataFlags) { *f &^= mask }

// AssistFlags is the per-player flag register.
type AssistFlags uint32

const (
	AssistFlagReadyToEndPhase       AssistFlags = 0x00000001
	AssistFlagDiceWereExchanged     AssistFlags = 0x00000002
	AssistFlagHasWon                AssistFlags = 0x00000004
	AssistFlagReadyToEndStarterRoll AssistFlags = 0x00000008
	AssistFlagFixedRange            AssistFlags = 0x00000010
	AssistFlagSummoningIsFree       AssistFlags = 0x00000020
	AssistFlagLimitMoveTo1          AssistFlags = 0x00000040
	AssistFlagIsSkippingTurn        AssistFlags = 0x00000080
	AssistFlagImmortal              AssistFlags = 0x00000100
	AssistFlagSameCardBanned        AssistFlags = 0x00000200
	AssistFlagCannotSetFC           AssistFlags = 0x00000400
	AssistFlagWinnerByDefeat        AssistFlags = 0x00000800
	AssistFlagWinnerByRandom        AssistFlags = 0x00001000
	AssistFlagReadyToEndActionPhase AssistFlags = 0x00002000
	AssistFlagNotTimeLimit          AssistFlags = 0x00004000
	AssistFlagEligibleForDiceBoost  AssistFlags = 0x00008000
)

var assistFlagNames = []struct {
	flag AssistFlags
	name string
}{
	{AssistFlagReadyToEndPhase, "ready_to_end_phase"},
	{AssistFlagDiceWereExchanged, "dice_exchanged"},
	{AssistFlagHasWon, "has_won"},
	{AssistFlagReadyToEndStarterRoll, "ready_to_end_starter_roll"},
	{AssistFlagFixedRange, "fixed_range"},
	{AssistFlagSummoningIsFree, "summoning_is_free"},
	{AssistFlagLimitMoveTo1, "limit_move_to_1"},
	{AssistFlagIsSkippingTurn, "skipping_turn"},
	{AssistFlagImmortal, "immortal"},
	{AssistFlagSameCardBanned, "same_card_banned"},
	{AssistFlagCannotSetFC, "cannot_set_fc"},
	{AssistFlagWinnerByDefeat, "winner_by_defeat"},
	{AssistFlagWinnerByRandom, "winner_by_random"},
	{AssistFlagReadyToEndActionPhase, "ready_to_end_action_phase"},
	{AssistFlagNotTimeLimit, "not_time_limit"},
	{AssistFlagEligibleForDiceBoost, "eligible_for_dice_boost"},
}

// Has reports whether any bit of mask is set.
func (f AssistFlags) Has(mask AssistFlags) bool { return f&mask != 0 }

// Set sets the bits of mask.
func (f *AssistFlags) Set(mask AssistFlags) { *f |= mask }

// Clear clears the bits of mask.
func (f *AssistFlags) Clear(mask AssistFlags) { *f &^= mask }

func (f AssistFlags) String() string {
	return formatFlags(uint32(f), func(yield func(uint32, string)) {
		for _, e := range assistFlagNames {
			yield(uint32(e.flag), e.name)
		}
	})
}

// EffectPermissions gates which consequences the effect executor may apply
// for one call. Callers pass the category they are evaluating; effects
// outside that category are skipped.
type EffectPermissions uint32

const (
	// PermitChainStats allows changing the attacker's transient chain AP,
	// TP, strike count and multiplier.
	PermitChainStats EffectPermissions = 0x01
	// PermitChainDamage allows overriding the computed chain damage.
	PermitChainDamage EffectPermissions = 0x02
	// PermitPersistentStats allows changing HP, AP and TP directly and
	// everything else not covered by another bit.
	PermitPersistentStats EffectPermissions = 0x04
	// PermitDefensePower allows changing the defender's defense power.
	PermitDefensePower EffectPermissions = 0x08
	// PermitDefenseBonus allows changing the defender's defense bonus.
	PermitDefenseBonus EffectPermissions = 0x10
	// PermitAttackBonus allows changing the attack bonus recorded on a target
	// at resolution time.
	PermitAttackBonus EffectPermissions = 0x20
	// PermitTargetedAttackBonus allows changing the attack bonus while the
	// card is being attacked.
	PermitTargetedAttackBonus EffectPermissions = 0x40
)

// Has reports whether any bit of mask is set.
func (p EffectPermissions) Has(mask EffectPermissions) bool { return p&mask != 0 }

func (p EffectPermissions) String() string {
	return fmt.Sprintf("%02X", uint32(p))
}

func formatFlags(v uint32, names func(yield func(uint32, string))) string {
	if v == 0 {
		return "none"
	}
	var parts []string
	remaining := v
	names(func(bit uint32, name string) {
		if v&bit != 0 {
			parts = append(parts, name)
			remaining &^= bit
		}
	})
	if remaining != 0 {
		parts = append(parts, fmt.Sprintf("%08X", remaining))
	}
	return strings.Join(parts, "|")
}
