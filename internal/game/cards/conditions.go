package cards

import "fmt"

// ConditionType is the kind of a status effect. The same values name card
// effect types; ANY matches every kind in condition searches.
type ConditionType uint8

const (
	CondNone               ConditionType = 0x00
	CondAPBoost            ConditionType = 0x01
	CondRampage            ConditionType = 0x02
	CondMultiStrike        ConditionType = 0x03
	CondDamageMod1         ConditionType = 0x04
	CondImmobile           ConditionType = 0x05
	CondHold               ConditionType = 0x06
	CondCannotDefend       ConditionType = 0x07
	CondTPBoost            ConditionType = 0x08
	CondGiveDamage         ConditionType = 0x09
	CondGuom               ConditionType = 0x0A
	CondParalyze           ConditionType = 0x0B
	CondATSwap0C           ConditionType = 0x0C
	CondAHSwap             ConditionType = 0x0D
	CondPierce             ConditionType = 0x0E
	CondUnused0F           ConditionType = 0x0F
	CondHeal               ConditionType = 0x10
	CondReturnToHand       ConditionType = 0x11
	CondSetMVCostTo0       ConditionType = 0x12
	CondUnused13           ConditionType = 0x13
	CondAcid               ConditionType = 0x14
	CondAdd1ToMVCost       ConditionType = 0x15
	CondMightyKnuckle      ConditionType = 0x16
	CondUnitBlow           ConditionType = 0x17
	CondCurse              ConditionType = 0x18
	CondComboAP            ConditionType = 0x19
	CondPierceRampageBlock ConditionType = 0x1A
	CondAbilityTrap        ConditionType = 0x1B
	CondFreeze             ConditionType = 0x1C
	CondAntiAbnormality1   ConditionType = 0x1D
	CondUnknown1E          ConditionType = 0x1E
	CondExplosion          ConditionType = 0x1F
	CondUnknown20          ConditionType = 0x20
	CondUnknown21          ConditionType = 0x21
	CondUnknown22          ConditionType = 0x22
	CondReturnToDeck       ConditionType = 0x23
	CondAerial             ConditionType = 0x24
	CondAPLoss             ConditionType = 0x25
	CondBonusFromLeader    ConditionType = 0x26
	CondFreeManeuver       ConditionType = 0x27
	CondScaleMVCost        ConditionType = 0x28
	CondClone              ConditionType = 0x29
	CondDEFDisableByCost   ConditionType = 0x2A
	CondFilial             ConditionType = 0x2B
	CondSnatch             ConditionType = 0x2C
	CondHandDisrupter      ConditionType = 0x2D
	CondDrop               ConditionType = 0x2E
	CondActionDisrupter    ConditionType = 0x2F
	CondSetHP              ConditionType = 0x30
	CondNativeShield       ConditionType = 0x31
	CondABeastShield       ConditionType = 0x32
	CondMachineShield      ConditionType = 0x33
	CondDarkShield         ConditionType = 0x34
	CondSwordShield        ConditionType = 0x35
	CondGunShield          ConditionType = 0x36
	CondCaneShield         ConditionType = 0x37
	CondUnknown38          ConditionType = 0x38
	CondUnknown39          ConditionType = 0x39
	CondDefender           ConditionType = 0x3A
	CondSurvivalDecoys     ConditionType = 0x3B
	CondGiveOrTakeEXP      ConditionType = 0x3C
	CondUnknown3D          ConditionType = 0x3D
	CondDeathCompanion     ConditionType = 0x3E
	CondEXPDecoy           ConditionType = 0x3F
	CondSetMV              ConditionType = 0x40
	CondGroup              ConditionType = 0x41
	CondBerserk            ConditionType = 0x42
	CondGuardCreature      ConditionType = 0x43
	CondTech               ConditionType = 0x44
	CondBigSwing           ConditionType = 0x45
	CondUnknown46          ConditionType = 0x46
	CondShieldWeapon       ConditionType = 0x47
	CondATKDiceBoost       ConditionType = 0x48
	CondUnknown49          ConditionType = 0x49
	CondMajorPierce        ConditionType = 0x4A
	CondHeavyPierce        ConditionType = 0x4B
	CondMajorRampage       ConditionType = 0x4C
	CondHeavyRampage       ConditionType = 0x4D
	CondAPGrowth           ConditionType = 0x4E
	CondTPGrowth           ConditionType = 0x4F
	CondReborn             ConditionType = 0x50
	CondCopy               ConditionType = 0x51
	CondUnknown52          ConditionType = 0x52
	CondMiscGuards         ConditionType = 0x53
	CondAPOverride         ConditionType = 0x54
	CondTPOverride         ConditionType = 0x55
	CondReturn             ConditionType = 0x56
	CondATSwapPerm         ConditionType = 0x57
	CondAHSwapPerm         ConditionType = 0x58
	CondSlayersAssassins   ConditionType = 0x59
	CondAntiAbnormality2   ConditionType = 0x5A
	CondFixedRange         ConditionType = 0x5B
	CondElude              ConditionType = 0x5C
	CondParry              ConditionType = 0x5D
	CondBlockAttack        ConditionType = 0x5E
	CondUnknown5F          ConditionType = 0x5F
	CondUnknown60          ConditionType = 0x60
	CondComboTP            ConditionType = 0x61
	CondMiscAPBonuses      ConditionType = 0x62
	CondMiscTPBonuses      ConditionType = 0x63
	CondUnknown64          ConditionType = 0x64
	CondMiscDefenseBonuses ConditionType = 0x65
	CondMostlyHalfguards   ConditionType = 0x66
	CondPeriodicField      ConditionType = 0x67
	CondFCLimitByCount     ConditionType = 0x68
	CondUnknown69          ConditionType = 0x69
	CondMVBonus            ConditionType = 0x6A
	CondForwardDamage      ConditionType = 0x6B
	CondWeakSpotInfluence  ConditionType = 0x6C
	CondDamageModifier2    ConditionType = 0x6D
	CondWeakHitBlock       ConditionType = 0x6E
	CondAPSilence          ConditionType = 0x6F
	CondTPSilence          ConditionType = 0x70
	CondATSwap             ConditionType = 0x71
	CondHalfguard          ConditionType = 0x72
	CondUnknown73          ConditionType = 0x73
	CondRampageAPLoss      ConditionType = 0x74
	CondUnknown75          ConditionType = 0x75
	CondReflect            ConditionType = 0x76
	CondUnknown77          ConditionType = 0x77
	CondAny                ConditionType = 0x78
	CondUnknown79          ConditionType = 0x79
	CondUnknown7A          ConditionType = 0x7A
	CondUnknown7B          ConditionType = 0x7B
	CondUnknown7C          ConditionType = 0x7C
	CondUnknown7D          ConditionType = 0x7D
)

var conditionTypeNames = map[ConditionType]string{
	CondNone:               "NONE",
	CondAPBoost:            "AP_BOOST",
	CondRampage:            "RAMPAGE",
	CondMultiStrike:        "MULTI_STRIKE",
	CondDamageMod1:         "DAMAGE_MOD_1",
	CondImmobile:           "IMMOBILE",
	CondHold:               "HOLD",
	CondCannotDefend:       "CANNOT_DEFEND",
	CondTPBoost:            "TP_BOOST",
	CondGiveDamage:         "GIVE_DAMAGE",
	CondGuom:               "GUOM",
	CondParalyze:           "PARALYZE",
	CondATSwap0C:           "A_T_SWAP_0C",
	CondAHSwap:             "A_H_SWAP",
	CondPierce:             "PIERCE",
	CondUnused0F:           "UNUSED_0F",
	CondHeal:               "HEAL",
	CondReturnToHand:       "RETURN_TO_HAND",
	CondSetMVCostTo0:       "SET_MV_COST_TO_0",
	CondUnused13:           "UNUSED_13",
	CondAcid:               "ACID",
	CondAdd1ToMVCost:       "ADD_1_TO_MV_COST",
	CondMightyKnuckle:      "MIGHTY_KNUCKLE",
	CondUnitBlow:           "UNIT_BLOW",
	CondCurse:              "CURSE",
	CondComboAP:            "COMBO_AP",
	CondPierceRampageBlock: "PIERCE_RAMPAGE_BLOCK",
	CondAbilityTrap:        "ABILITY_TRAP",
	CondFreeze:             "FREEZE",
	CondAntiAbnormality1:   "ANTI_ABNORMALITY_1",
	CondUnknown1E:          "UNKNOWN_1E",
	CondExplosion:          "EXPLOSION",
	CondUnknown20:          "UNKNOWN_20",
	CondUnknown21:          "UNKNOWN_21",
	CondUnknown22:          "UNKNOWN_22",
	CondReturnToDeck:       "RETURN_TO_DECK",
	CondAerial:             "AERIAL",
	CondAPLoss:             "AP_LOSS",
	CondBonusFromLeader:    "BONUS_FROM_LEADER",
	CondFreeManeuver:       "FREE_MANEUVER",
	CondScaleMVCost:        "SCALE_MV_COST",
	CondClone:              "CLONE",
	CondDEFDisableByCost:   "DEF_DISABLE_BY_COST",
	CondFilial:             "FILIAL",
	CondSnatch:             "SNATCH",
	CondHandDisrupter:      "HAND_DISRUPTER",
	CondDrop:               "DROP",
	CondActionDisrupter:    "ACTION_DISRUPTER",
	CondSetHP:              "SET_HP",
	CondNativeShield:       "NATIVE_SHIELD",
	CondABeastShield:       "A_BEAST_SHIELD",
	CondMachineShield:      "MACHINE_SHIELD",
	CondDarkShield:         "DARK_SHIELD",
	CondSwordShield:        "SWORD_SHIELD",
	CondGunShield:          "GUN_SHIELD",
	CondCaneShield:         "CANE_SHIELD",
	CondUnknown38:          "UNKNOWN_38",
	CondUnknown39:          "UNKNOWN_39",
	CondDefender:           "DEFENDER",
	CondSurvivalDecoys:     "SURVIVAL_DECOYS",
	CondGiveOrTakeEXP:      "GIVE_OR_TAKE_EXP",
	CondUnknown3D:          "UNKNOWN_3D",
	CondDeathCompanion:     "DEATH_COMPANION",
	CondEXPDecoy:           "EXP_DECOY",
	CondSetMV:              "SET_MV",
	CondGroup:              "GROUP",
	CondBerserk:            "BERSERK",
	CondGuardCreature:      "GUARD_CREATURE",
	CondTech:               "TECH",
	CondBigSwing:           "BIG_SWING",
	CondUnknown46:          "UNKNOWN_46",
	CondShieldWeapon:       "SHIELD_WEAPON",
	CondATKDiceBoost:       "ATK_DICE_BOOST",
	CondUnknown49:          "UNKNOWN_49",
	CondMajorPierce:        "MAJOR_PIERCE",
	CondHeavyPierce:        "HEAVY_PIERCE",
	CondMajorRampage:       "MAJOR_RAMPAGE",
	CondHeavyRampage:       "HEAVY_RAMPAGE",
	CondAPGrowth:           "AP_GROWTH",
	CondTPGrowth:           "TP_GROWTH",
	CondReborn:             "REBORN",
	CondCopy:               "COPY",
	CondUnknown52:          "UNKNOWN_52",
	CondMiscGuards:         "MISC_GUARDS",
	CondAPOverride:         "AP_OVERRIDE",
	CondTPOverride:         "TP_OVERRIDE",
	CondReturn:             "RETURN",
	CondATSwapPerm:         "A_T_SWAP_PERM",
	CondAHSwapPerm:         "A_H_SWAP_PERM",
	CondSlayersAssassins:   "SLAYERS_ASSASSINS",
	CondAntiAbnormality2:   "ANTI_ABNORMALITY_2",
	CondFixedRange:         "FIXED_RANGE",
	CondElude:              "ELUDE",
	CondParry:              "PARRY",
	CondBlockAttack:        "BLOCK_ATTACK",
	CondUnknown5F:          "UNKNOWN_5F",
	CondUnknown60:          "UNKNOWN_60",
	CondComboTP:            "COMBO_TP",
	CondMiscAPBonuses:      "MISC_AP_BONUSES",
	CondMiscTPBonuses:      "MISC_TP_BONUSES",
	CondUnknown64:          "UNKNOWN_64",
	CondMiscDefenseBonuses: "MISC_DEFENSE_BONUSES",
	CondMostlyHalfguards:   "MOSTLY_HALFGUARDS",
	CondPeriodicField:      "PERIODIC_FIELD",
	CondFCLimitByCount:     "FC_LIMIT_BY_COUNT",
	CondUnknown69:          "UNKNOWN_69",
	CondMVBonus:            "MV_BONUS",
	CondForwardDamage:      "FORWARD_DAMAGE",
	CondWeakSpotInfluence:  "WEAK_SPOT_INFLUENCE",
	CondDamageModifier2:    "DAMAGE_MODIFIER_2",
	CondWeakHitBlock:       "WEAK_HIT_BLOCK",
	CondAPSilence:          "AP_SILENCE",
	CondTPSilence:          "TP_SILENCE",
	CondATSwap:             "A_T_SWAP",
	CondHalfguard:          "HALFGUARD",
	CondUnknown73:          "UNKNOWN_73",
	CondRampageAPLoss:      "RAMPAGE_AP_LOSS",
	CondUnknown75:          "UNKNOWN_75",
	CondReflect:            "REFLECT",
	CondUnknown77:          "UNKNOWN_77",
	CondAny:                "ANY",
	CondUnknown79:          "UNKNOWN_79",
	CondUnknown7A:          "UNKNOWN_7A",
	CondUnknown7B:          "UNKNOWN_7B",
	CondUnknown7C:          "UNKNOWN_7C",
	CondUnknown7D:          "UNKNOWN_7D",
}

func (v ConditionType) String() string {
	if name, ok := conditionTypeNames[v]; ok {
		return name
	}
	return fmt.Sprintf("COND_%02X", uint8(v))
}

var conditionTypeByName = func() map[string]ConditionType {
	ret := make(map[string]ConditionType, len(conditionTypeNames))
	for v, name := range conditionTypeNames {
		ret[name] = v
	}
	return ret
}()

// ParseConditionType returns the ConditionType with the given name.
func ParseConditionType(name string) (ConditionType, error) {
	if name == "" {
		return 0, nil
	}
	if v, ok := conditionTypeByName[name]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown ConditionType %q", name)
}

// ConditionAnyFF is the 0xFF wildcard accepted by action chain condition
// searches alongside ANY.
const ConditionAnyFF ConditionType = 0xFF
