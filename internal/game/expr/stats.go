package expr

import (
	"fmt"
	"strings"
)

// Stat indexes one entry of an attack environment snapshot.
type Stat uint8

const (
	StatNumSetCards Stat = iota
	StatDiceRoll1
	StatEffectiveAP
	StatEffectiveTP
	StatCurrentHP
	StatMaxHP
	StatEffectiveAPIfNotTech
	StatEffectiveAPIfNotPhysical
	StatPlayerNumDestroyedFCs
	StatPlayerNumATKPoints
	StatDefinedMaxHP
	StatDiceRoll2
	StatCardCost
	StatTotalNumSetCards
	StatActionCardsAP
	StatActionCardsTP
	StatUnknownA1
	StatNumFCsInHand
	StatNumDestroyedAllyFCs
	StatTargetTeamNumSetCards
	StatNonTargetTeamNumSetCards
	StatNumNativeCreatures
	StatNumABeastCreatures
	StatNumMachineCreatures
	StatNumDarkCreatures
	StatNumSwordItems
	StatNumGunItems
	StatNumCaneItems
	StatEffectiveAPIfNotTech2
	StatTeamDiceBonus
	StatSCEffectiveAP
	StatAttackBonus
	StatNumSwordItemsOnTeam
	StatTargetAttackBonus
	StatLastAttackPreliminaryDamage
	StatLastAttackDamage
	StatFinalLastAttackDamage
	StatLastAttackDamageCount
	StatTargetCurrentHP

	NumStats
)

// statTokens are the reference names used in effect expressions, indexed by
// Stat.
var statTokens = [NumStats]string{
	"f", "d", "ap", "tp", "hp", "mhp", "dm", "tdm", "tf", "ac", "php",
	"dc", "cs", "a", "kap", "ktp", "dn", "hf", "df", "ff", "ef", "bi",
	"ab", "mc", "dk", "sa", "gn", "wd", "tt", "lv", "adm", "ddm", "sat",
	"edm", "ldm", "rdm", "fdm", "ndm", "ehp",
}

var statDescriptions = [NumStats]string{
	"num_set_cards", "dice_roll_value1", "effective_ap", "effective_tp",
	"current_hp", "max_hp", "effective_ap_if_not_tech",
	"effective_ap_if_not_physical", "player_num_destroyed_fcs",
	"player_num_atk_points", "defined_max_hp", "dice_roll_value2", "card_cost",
	"total_num_set_cards", "action_cards_ap", "action_cards_tp", "unknown_a1",
	"num_item_or_creature_cards_in_hand", "num_destroyed_ally_fcs",
	"target_team_num_set_cards", "non_target_team_num_set_cards",
	"num_native_creatures", "num_a_beast_creatures", "num_machine_creatures",
	"num_dark_creatures", "num_sword_type_items", "num_gun_type_items",
	"num_cane_type_items", "effective_ap_if_not_tech2", "team_dice_bonus",
	"sc_effective_ap", "attack_bonus", "num_sword_type_items_on_team",
	"target_attack_bonus", "last_attack_preliminary_damage",
	"last_attack_damage", "final_last_attack_damage",
	"last_attack_damage_count", "target_current_hp",
}

// Token returns the expression name of s.
func (s Stat) Token() string {
	if s < NumStats {
		return statTokens[s]
	}
	return ""
}

func (s Stat) String() string {
	if s < NumStats {
		return statDescriptions[s]
	}
	return fmt.Sprintf("stat_%02X", uint8(s))
}

// IsDiceRoll reports whether referencing s consumes the die roll.
func (s Stat) IsDiceRoll() bool {
	return s == StatDiceRoll1 || s == StatDiceRoll2
}

// LookupStat resolves an expression reference name.
func LookupStat(token string) (Stat, bool) {
	for z, name := range statTokens {
		if name == token {
			return Stat(z), true
		}
	}
	return 0, false
}

// Stats is the attack environment snapshot an expression is evaluated
// against.
type Stats [NumStats]uint32

// Get returns one entry.
func (s *Stats) Get(st Stat) uint32 {
	return s[st]
}

// Set stores one entry.
func (s *Stats) Set(st Stat, v uint32) {
	s[st] = v
}

// SetInt stores a signed value the way the snapshot holds it.
func (s *Stats) SetInt(st Stat, v int) {
	s[st] = uint32(int32(v))
}

func (s *Stats) String() string {
	var b strings.Builder
	for z := Stat(0); z < NumStats; z++ {
		if s[z] != 0 {
			fmt.Fprintf(&b, "%s=%d ", z.Token(), int32(s[z]))
		}
	}
	return strings.TrimSpace(b.String())
}
