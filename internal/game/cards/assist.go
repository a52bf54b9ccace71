package cards

import "fmt"

// AssistEffect is the global rule change applied by an assist card.
type AssistEffect uint16

const (
	AssistNone            AssistEffect = 0x0000
	AssistDiceHalf        AssistEffect = 0x0001
	AssistDicePlus1       AssistEffect = 0x0002
	AssistDiceFever       AssistEffect = 0x0003
	AssistCardReturn      AssistEffect = 0x0004
	AssistLandPrice       AssistEffect = 0x0005
	AssistPowerlessRain   AssistEffect = 0x0006
	AssistBraveWind       AssistEffect = 0x0007
	AssistSilentColosseum AssistEffect = 0x0008
	AssistResistance      AssistEffect = 0x0009
	AssistIndependent     AssistEffect = 0x000A
	AssistAssistless      AssistEffect = 0x000B
	AssistATKDice2        AssistEffect = 0x000C
	AssistDeflation       AssistEffect = 0x000D
	AssistInflation       AssistEffect = 0x000E
	AssistExchange        AssistEffect = 0x000F
	AssistInfluence       AssistEffect = 0x0010
	AssistSkipSet         AssistEffect = 0x0011
	AssistSkipMove        AssistEffect = 0x0012
	AssistSkipAct         AssistEffect = 0x0013
	AssistSkipDraw        AssistEffect = 0x0014
	AssistFly             AssistEffect = 0x0015
	AssistNecromancer     AssistEffect = 0x0016
	AssistPermission      AssistEffect = 0x0017
	AssistShuffleAll      AssistEffect = 0x0018
	AssistLegacy          AssistEffect = 0x0019
	AssistAssistReverse   AssistEffect = 0x001A
	AssistStamina         AssistEffect = 0x001B
	AssistAPAbsorption    AssistEffect = 0x001C
	AssistHeavyFog        AssistEffect = 0x001D
	AssistTrash1          AssistEffect = 0x001E
	AssistEmptyHand       AssistEffect = 0x001F
	AssistHitman          AssistEffect = 0x0020
	AssistAssistTrash     AssistEffect = 0x0021
	AssistShuffleGroup    AssistEffect = 0x0022
	AssistAssistVanish    AssistEffect = 0x0023
	AssistCharity         AssistEffect = 0x0024
	AssistInheritance     AssistEffect = 0x0025
	AssistFix             AssistEffect = 0x0026
	AssistMuscular        AssistEffect = 0x0027
	AssistChangeBody      AssistEffect = 0x0028
	AssistGodWhim         AssistEffect = 0x0029
	AssistGoldRush        AssistEffect = 0x002A
	AssistAssistReturn    AssistEffect = 0x002B
	AssistRequiem         AssistEffect = 0x002C
	AssistRansom          AssistEffect = 0x002D
	AssistSimple          AssistEffect = 0x002E
	AssistSlowTime        AssistEffect = 0x002F
	AssistQuickTime       AssistEffect = 0x0030
	AssistTerritory       AssistEffect = 0x0031
	AssistOldType         AssistEffect = 0x0032
	AssistFlatland        AssistEffect = 0x0033
	AssistImmortality     AssistEffect = 0x0034
	AssistSnailPace       AssistEffect = 0x0035
	AssistTechField       AssistEffect = 0x0036
	AssistForestRain      AssistEffect = 0x0037
	AssistCaveWind        AssistEffect = 0x0038
	AssistMineBrightness  AssistEffect = 0x0039
	AssistRuinDarkness    AssistEffect = 0x003A
	AssistSaberDance      AssistEffect = 0x003B
	AssistBulletStorm     AssistEffect = 0x003C
	AssistCanePalace      AssistEffect = 0x003D
	AssistGiantGarden     AssistEffect = 0x003E
	AssistMarchOfTheMeek  AssistEffect = 0x003F
	AssistSupport         AssistEffect = 0x0040
	AssistRich            AssistEffect = 0x0041
	AssistReverseCard     AssistEffect = 0x0042
	AssistVengeance       AssistEffect = 0x0043
	AssistSqueeze         AssistEffect = 0x0044
	AssistHomesick        AssistEffect = 0x0045
	AssistBomb            AssistEffect = 0x0046
	AssistSkipTurn        AssistEffect = 0x0047
	AssistBattleRoyale    AssistEffect = 0x0048
	AssistDiceFeverPlus   AssistEffect = 0x0049
	AssistRichPlus        AssistEffect = 0x004A
	AssistCharityPlus     AssistEffect = 0x004B
	AssistAny             AssistEffect = 0x004C
)

var assistEffectNames = map[AssistEffect]string{
	AssistNone:            "NONE",
	AssistDiceHalf:        "DICE_HALF",
	AssistDicePlus1:       "DICE_PLUS_1",
	AssistDiceFever:       "DICE_FEVER",
	AssistCardReturn:      "CARD_RETURN",
	AssistLandPrice:       "LAND_PRICE",
	AssistPowerlessRain:   "POWERLESS_RAIN",
	AssistBraveWind:       "BRAVE_WIND",
	AssistSilentColosseum: "SILENT_COLOSSEUM",
	AssistResistance:      "RESISTANCE",
	AssistIndependent:     "INDEPENDENT",
	AssistAssistless:      "ASSISTLESS",
	AssistATKDice2:        "ATK_DICE_2",
	AssistDeflation:       "DEFLATION",
	AssistInflation:       "INFLATION",
	AssistExchange:        "EXCHANGE",
	AssistInfluence:       "INFLUENCE",
	AssistSkipSet:         "SKIP_SET",
	AssistSkipMove:        "SKIP_MOVE",
	AssistSkipAct:         "SKIP_ACT",
	AssistSkipDraw:        "SKIP_DRAW",
	AssistFly:             "FLY",
	AssistNecromancer:     "NECROMANCER",
	AssistPermission:      "PERMISSION",
	AssistShuffleAll:      "SHUFFLE_ALL",
	AssistLegacy:          "LEGACY",
	AssistAssistReverse:   "ASSIST_REVERSE",
	AssistStamina:         "STAMINA",
	AssistAPAbsorption:    "AP_ABSORPTION",
	AssistHeavyFog:        "HEAVY_FOG",
	AssistTrash1:          "TRASH_1",
	AssistEmptyHand:       "EMPTY_HAND",
	AssistHitman:          "HITMAN",
	AssistAssistTrash:     "ASSIST_TRASH",
	AssistShuffleGroup:    "SHUFFLE_GROUP",
	AssistAssistVanish:    "ASSIST_VANISH",
	AssistCharity:         "CHARITY",
	AssistInheritance:     "INHERITANCE",
	AssistFix:             "FIX",
	AssistMuscular:        "MUSCULAR",
	AssistChangeBody:      "CHANGE_BODY",
	AssistGodWhim:         "GOD_WHIM",
	AssistGoldRush:        "GOLD_RUSH",
	AssistAssistReturn:    "ASSIST_RETURN",
	AssistRequiem:         "REQUIEM",
	AssistRansom:          "RANSOM",
	AssistSimple:          "SIMPLE",
	AssistSlowTime:        "SLOW_TIME",
	AssistQuickTime:       "QUICK_TIME",
	AssistTerritory:       "TERRITORY",
	AssistOldType:         "OLD_TYPE",
	AssistFlatland:        "FLATLAND",
	AssistImmortality:     "IMMORTALITY",
	AssistSnailPace:       "SNAIL_PACE",
	AssistTechField:       "TECH_FIELD",
	AssistForestRain:      "FOREST_RAIN",
	AssistCaveWind:        "CAVE_WIND",
	AssistMineBrightness:  "MINE_BRIGHTNESS",
	AssistRuinDarkness:    "RUIN_DARKNESS",
	AssistSaberDance:      "SABER_DANCE",
	AssistBulletStorm:     "BULLET_STORM",
	AssistCanePalace:      "CANE_PALACE",
	AssistGiantGarden:     "GIANT_GARDEN",
	AssistMarchOfTheMeek:  "MARCH_OF_THE_MEEK",
	AssistSupport:         "SUPPORT",
	AssistRich:            "RICH",
	AssistReverseCard:     "REVERSE_CARD",
	AssistVengeance:       "VENGEANCE",
	AssistSqueeze:         "SQUEEZE",
	AssistHomesick:        "HOMESICK",
	AssistBomb:            "BOMB",
	AssistSkipTurn:        "SKIP_TURN",
	AssistBattleRoyale:    "BATTLE_ROYALE",
	AssistDiceFeverPlus:   "DICE_FEVER_PLUS",
	AssistRichPlus:        "RICH_PLUS",
	AssistCharityPlus:     "CHARITY_PLUS",
	AssistAny:             "ANY",
}

func (v AssistEffect) String() string {
	if name, ok := assistEffectNames[v]; ok {
		return name
	}
	return fmt.Sprintf("ASSIST_%04X", uint16(v))
}

var assistEffectByName = func() map[string]AssistEffect {
	ret := make(map[string]AssistEffect, len(assistEffectNames))
	for v, name := range assistEffectNames {
		ret[name] = v
	}
	return ret
}()

// ParseAssistEffect returns the AssistEffect with the given name.
func ParseAssistEffect(name string) (AssistEffect, error) {
	if name == "" {
		return 0, nil
	}
	if v, ok := assistEffectByName[name]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown AssistEffect %q", name)
}

// allAssistCardIDs lists assist cards in definition order. The order matters
// when a random assist is chosen.
var allAssistCardIDs = []uint16{
	0x0018, 0x0019, 0x001A, 0x00F5, 0x00F6, 0x00F7, 0x00F8, 0x00F9, 0x00FA,
	0x00FB, 0x00FC, 0x00FD, 0x00FE, 0x00FF, 0x0100, 0x0101, 0x0102, 0x0103,
	0x0104, 0x0105, 0x0106, 0x0107, 0x0108, 0x0109, 0x010A, 0x010B, 0x010C,
	0x010D, 0x010E, 0x010F, 0x0121, 0x0125, 0x0126, 0x0127, 0x0128, 0x0129,
	0x012A, 0x012B, 0x012C, 0x012D, 0x012E, 0x012F, 0x0130, 0x0131, 0x0132,
	0x0133, 0x0134, 0x0135, 0x0136, 0x0137, 0x0138, 0x0139, 0x013A, 0x013B,
	0x013C, 0x013D, 0x013E, 0x013F, 0x0140, 0x0141, 0x0142, 0x0143, 0x0144,
	0x0145, 0x0146, 0x0148, 0x014A, 0x014B, 0x014C, 0x014D, 0x014E, 0x023F,
	0x0240, 0x0241, 0x0242,
}

// AllAssistCardIDs returns the assist card ids in definition order.
func AllAssistCardIDs() []uint16 {
	return append([]uint16(nil), allAssistCardIDs...)
}

var assistEffectForCardID = map[uint16]AssistEffect{
	0x0018: AssistDiceFeverPlus,
	0x0019: AssistRichPlus,
	0x001A: AssistCharityPlus,
	0x00F5: AssistDiceHalf,
	0x00F6: AssistDicePlus1,
	0x00F7: AssistDiceFever,
	0x00F8: AssistCardReturn,
	0x00F9: AssistLandPrice,
	0x00FA: AssistPowerlessRain,
	0x00FB: AssistBraveWind,
	0x00FC: AssistSilentColosseum,
	0x00FD: AssistResistance,
	0x00FE: AssistIndependent,
	0x00FF: AssistAssistless,
	0x0100: AssistATKDice2,
	0x0101: AssistDeflation,
	0x0102: AssistInflation,
	0x0103: AssistExchange,
	0x0104: AssistInfluence,
	0x0105: AssistSkipSet,
	0x0106: AssistSkipMove,
	0x0121: AssistSkipAct,
	0x0137: AssistSkipDraw,
	0x0107: AssistFly,
	0x0108: AssistNecromancer,
	0x0109: AssistPermission,
	0x010A: AssistShuffleAll,
	0x010B: AssistLegacy,
	0x010C: AssistAssistReverse,
	0x010D: AssistStamina,
	0x010E: AssistAPAbsorption,
	0x010F: AssistHeavyFog,
	0x0125: AssistTrash1,
	0x0126: AssistEmptyHand,
	0x0127: AssistHitman,
	0x0128: AssistAssistTrash,
	0x0129: AssistShuffleGroup,
	0x012A: AssistAssistVanish,
	0x012B: AssistCharity,
	0x012C: AssistInheritance,
	0x012D: AssistFix,
	0x012E: AssistMuscular,
	0x012F: AssistChangeBody,
	0x0130: AssistGodWhim,
	0x0131: AssistGoldRush,
	0x0132: AssistAssistReturn,
	0x0133: AssistRequiem,
	0x0134: AssistRansom,
	0x0135: AssistSimple,
	0x0136: AssistSlowTime,
	0x023F: AssistQuickTime,
	0x0138: AssistTerritory,
	0x0139: AssistOldType,
	0x013A: AssistFlatland,
	0x013B: AssistImmortality,
	0x013C: AssistSnailPace,
	0x013D: AssistTechField,
	0x013E: AssistForestRain,
	0x013F: AssistCaveWind,
	0x0140: AssistMineBrightness,
	0x0141: AssistRuinDarkness,
	0x0142: AssistSaberDance,
	0x0143: AssistBulletStorm,
	0x0144: AssistCanePalace,
	0x0145: AssistGiantGarden,
	0x0146: AssistMarchOfTheMeek,
	0x0148: AssistSupport,
	0x014A: AssistRich,
	0x014B: AssistReverseCard,
	0x014C: AssistVengeance,
	0x014D: AssistSqueeze,
	0x014E: AssistHomesick,
	0x0240: AssistBomb,
	0x0241: AssistSkipTurn,
	0x0242: AssistBattleRoyale,
}

// AssistEffectForCardID maps an assist card id to its effect. Unknown ids
// map to AssistNone.
func AssistEffectForCardID(cardID uint16) AssistEffect {
	if eff, ok := assistEffectForCardID[cardID]; ok {
		return eff
	}
	return AssistNone
}
