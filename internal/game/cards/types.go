package cards

import "fmt"

// CardType is the top-level kind of a card definition.
type CardType uint8

const (
	TypeHuntersSC CardType = 0x00
	TypeArkzSC    CardType = 0x01
	TypeItem      CardType = 0x02
	TypeCreature  CardType = 0x03
	TypeAction    CardType = 0x04
	TypeAssist    CardType = 0x05
	TypeInvalid   CardType = 0xFF
)

var cardTypeNames = map[CardType]string{
	TypeHuntersSC: "HUNTERS_SC",
	TypeArkzSC:    "ARKZ_SC",
	TypeItem:      "ITEM",
	TypeCreature:  "CREATURE",
	TypeAction:    "ACTION",
	TypeAssist:    "ASSIST",
	TypeInvalid:   "INVALID",
}

func (t CardType) String() string {
	if name, ok := cardTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("CARD_TYPE_%02X", uint8(t))
}

// IsSC reports whether the type is a story character.
func (t CardType) IsSC() bool {
	return t == TypeHuntersSC || t == TypeArkzSC
}

// IsFC reports whether the type is a field character (item or creature).
func (t CardType) IsFC() bool {
	return t == TypeItem || t == TypeCreature
}

// CardClass is the finer-grained class used by criteria and effects.
type CardClass uint16

const (
	ClassHUSC              CardClass = 0x0000
	ClassRASC              CardClass = 0x0001
	ClassFOSC              CardClass = 0x0002
	ClassNativeCreature    CardClass = 0x000A
	ClassABeastCreature    CardClass = 0x000B
	ClassMachineCreature   CardClass = 0x000C
	ClassDarkCreature      CardClass = 0x000D
	ClassGuardItem         CardClass = 0x0015
	ClassMagItem           CardClass = 0x0017
	ClassSwordItem         CardClass = 0x0018
	ClassGunItem           CardClass = 0x0019
	ClassCaneItem          CardClass = 0x001A
	ClassAttackAction      CardClass = 0x001E
	ClassDefenseAction     CardClass = 0x001F
	ClassTech              CardClass = 0x0020
	ClassPhotonBlast       CardClass = 0x0021
	ClassConnectOnlyAttack CardClass = 0x0022
	ClassBossAttackAction  CardClass = 0x0023
	ClassBossTech          CardClass = 0x0024
	ClassAssist            CardClass = 0x0028
)

var cardClassNames = map[CardClass]string{
	ClassHUSC:              "HU_SC",
	ClassRASC:              "RA_SC",
	ClassFOSC:              "FO_SC",
	ClassNativeCreature:    "NATIVE_CREATURE",
	ClassABeastCreature:    "A_BEAST_CREATURE",
	ClassMachineCreature:   "MACHINE_CREATURE",
	ClassDarkCreature:      "DARK_CREATURE",
	ClassGuardItem:         "GUARD_ITEM",
	ClassMagItem:           "MAG_ITEM",
	ClassSwordItem:         "SWORD_ITEM",
	ClassGunItem:           "GUN_ITEM",
	ClassCaneItem:          "CANE_ITEM",
	ClassAttackAction:      "ATTACK_ACTION",
	ClassDefenseAction:     "DEFENSE_ACTION",
	ClassTech:              "TECH",
	ClassPhotonBlast:       "PHOTON_BLAST",
	ClassConnectOnlyAttack: "CONNECT_ONLY_ATTACK_ACTION",
	ClassBossAttackAction:  "BOSS_ATTACK_ACTION",
	ClassBossTech:          "BOSS_TECH",
	ClassAssist:            "ASSIST",
}

func (c CardClass) String() string {
	if name, ok := cardClassNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CARD_CLASS_%04X", uint16(c))
}

// IsTechLike reports whether action cards of this class make an attack a
// technique attack.
func (c CardClass) IsTechLike() bool {
	return c == ClassTech || c == ClassPhotonBlast || c == ClassBossTech
}

// Rank is the rarity rank of a card.
type Rank uint8

const (
	RankN1 Rank = 0x01
	RankR1 Rank = 0x02
	RankS  Rank = 0x03
	RankE  Rank = 0x04
	RankN2 Rank = 0x05
	RankN3 Rank = 0x06
	RankN4 Rank = 0x07
	RankR2 Rank = 0x08
	RankR3 Rank = 0x09
	RankR4 Rank = 0x0A
	RankSS Rank = 0x0B
	RankD1 Rank = 0x0C
	RankD2 Rank = 0x0D
	RankD3 Rank = 0x0E
)

var rankNames = []string{"N1", "R1", "S", "E", "N2", "N3", "N4", "R2", "R3", "R4", "SS", "D1", "D2", "D3"}

func (r Rank) String() string {
	if r >= 1 && int(r) <= len(rankNames) {
		return rankNames[r-1]
	}
	return fmt.Sprintf("(%02X)", uint8(r))
}

// TargetMode describes how an attack or assist chooses its targets.
type TargetMode uint8

const (
	TargetNone             TargetMode = 0x00
	TargetSingleRange      TargetMode = 0x01
	TargetMultiRange       TargetMode = 0x02
	TargetSelf             TargetMode = 0x03
	TargetTeam             TargetMode = 0x04
	TargetEveryone         TargetMode = 0x05
	TargetMultiRangeAllies TargetMode = 0x06
	TargetAllAllies        TargetMode = 0x07
	TargetAll              TargetMode = 0x08
	TargetOwnFCs           TargetMode = 0x09
)

var targetModeNames = []string{
	"NONE", "SINGLE_RANGE", "MULTI_RANGE", "SELF", "TEAM", "EVERYONE",
	"MULTI_RANGE_ALLIES", "ALL_ALLIES", "ALL", "OWN_FCS",
}

func (m TargetMode) String() string {
	if int(m) < len(targetModeNames) {
		return targetModeNames[m]
	}
	return "__UNKNOWN__"
}

// AttackMedium is the physical/technique nature of an attack.
type AttackMedium uint8

const (
	MediumUnknown   AttackMedium = 0
	MediumPhysical  AttackMedium = 1
	MediumTech      AttackMedium = 2
	MediumUnknown03 AttackMedium = 3
	MediumInvalid   AttackMedium = 0xFF
)

func (m AttackMedium) String() string {
	switch m {
	case MediumUnknown:
		return "UNKNOWN"
	case MediumPhysical:
		return "PHYSICAL"
	case MediumTech:
		return "TECH"
	case MediumUnknown03:
		return "UNKNOWN_03"
	case MediumInvalid:
		return "INVALID"
	}
	return fmt.Sprintf("MEDIUM_%02X", uint8(m))
}

// ActionType classifies a pending action declaration.
type ActionType uint8

const (
	ActionInvalid ActionType = 0
	ActionDefense ActionType = 1
	ActionAttack  ActionType = 2
)

// ActionSubphase is the attack/defense half of an action phase step.
type ActionSubphase uint8

const (
	SubphaseAttack  ActionSubphase = 0
	SubphaseDefense ActionSubphase = 2
	SubphaseInvalid ActionSubphase = 0xFF
)

func (s ActionSubphase) String() string {
	switch s {
	case SubphaseAttack:
		return "ATTACK"
	case SubphaseDefense:
		return "DEFENSE"
	case SubphaseInvalid:
		return "INVALID"
	}
	return fmt.Sprintf("SUBPHASE_%02X", uint8(s))
}

// CriterionCode restricts which cards an effect or card may be used with.
type CriterionCode uint8

const (
	CriterionNone                                    CriterionCode = 0x00
	CriterionHUClassSC                               CriterionCode = 0x01
	CriterionRAClassSC                               CriterionCode = 0x02
	CriterionFOClassSC                               CriterionCode = 0x03
	CriterionSameTeam                                CriterionCode = 0x04
	CriterionSamePlayer                              CriterionCode = 0x05
	CriterionSameTeamNotSamePlayer                   CriterionCode = 0x06
	CriterionFC                                      CriterionCode = 0x07
	CriterionNotSC                                   CriterionCode = 0x08
	CriterionSC                                      CriterionCode = 0x09
	CriterionHUOrRAClassSC                           CriterionCode = 0x0A
	CriterionHunterNonAndroidSC                      CriterionCode = 0x0B
	CriterionHunterHUClassMaleSC                     CriterionCode = 0x0C
	CriterionHunterFemaleSC                          CriterionCode = 0x0D
	CriterionHunterNonRAClassHumanSC                 CriterionCode = 0x0E
	CriterionHunterHUClassAndroidSC                  CriterionCode = 0x0F
	CriterionHunterNonRAClassNonNewmanSC             CriterionCode = 0x10
	CriterionHunterNonNewmanNonForceMaleSC           CriterionCode = 0x11
	CriterionHunterHUnewearlClassSC                  CriterionCode = 0x12
	CriterionHunterRAClassMaleSC                     CriterionCode = 0x13
	CriterionHunterRAClassFemaleSC                   CriterionCode = 0x14
	CriterionHunterRAOrFOClassFemaleSC               CriterionCode = 0x15
	CriterionHunterHUOrRAClassHumanSC                CriterionCode = 0x16
	CriterionHunterRAClassAndroidSC                  CriterionCode = 0x17
	CriterionHunterFOClassFemaleSC                   CriterionCode = 0x18
	CriterionHunterHumanFemaleSC                     CriterionCode = 0x19
	CriterionHunterAndroidSC                         CriterionCode = 0x1A
	CriterionHUOrFOClassSC                           CriterionCode = 0x1B
	CriterionRAOrFOClassSC                           CriterionCode = 0x1C
	CriterionPhysicalOrUnknownMedium                 CriterionCode = 0x1D
	CriterionTechOrUnknownMedium                     CriterionCode = 0x1E
	CriterionPhysicalOrTechOrUnknownMedium           CriterionCode = 0x1F
	CriterionNonPhysicalNonUnknownMediumNonSC        CriterionCode = 0x20
	CriterionNonPhysicalNonTechMediumNonSC           CriterionCode = 0x21
	CriterionNonPhysicalNonTechNonUnknownMediumNonSC CriterionCode = 0x22
)

// HasClassUsabilityCondition reports whether the criterion depends on the
// class of the using SC. Action cards with such criteria do not count as
// ordinary chained actions when a Hunters SC attacks.
func (c CriterionCode) HasClassUsabilityCondition() bool {
	return (c >= 0x01 && c < 0x04) || (c >= 0x09 && c < 0x1D)
}

// hunter SC id sets used by the named criteria.
var criterionCardIDs = map[CriterionCode]map[uint16]struct{}{
	CriterionHunterNonAndroidSC: idSet(0x0001, 0x0002, 0x0003, 0x0004, 0x0006, 0x0111, 0x0112, 0x0115,
		0x02AA, 0x02AB, 0x02AE, 0x02AF, 0x02B2, 0x02B3, 0x02B4, 0x02B5,
		0x02CC, 0x02CD, 0x02CE, 0x02CF, 0x02D1, 0x02D5, 0x02D6, 0x02D9),
	CriterionHunterHUClassMaleSC: idSet(0x0001, 0x0113, 0x02AA, 0x02AC, 0x02CC, 0x02D7),
	// 0x02CD (H-RAmarl) is absent here in the shipped data.
	CriterionHunterFemaleSC: idSet(0x0003, 0x0004, 0x0006, 0x0110, 0x0112, 0x0114, 0x02AB, 0x02AD,
		0x02AF, 0x02B1, 0x02B3, 0x02B5, 0x02CE, 0x02CF, 0x02D1, 0x02D4, 0x02D6, 0x02D8),
	CriterionHunterNonRAClassHumanSC: idSet(0x0001, 0x0003, 0x0004, 0x0111, 0x0115, 0x0112, 0x02AA,
		0x02AB, 0x02B2, 0x02B3, 0x02B4, 0x02B5, 0x02CC, 0x02CE, 0x02CF, 0x02D5, 0x02D6, 0x02D9),
	CriterionHunterHUClassAndroidSC: idSet(0x0110, 0x0113, 0x02AC, 0x02AD, 0x02D4, 0x02D7),
	CriterionHunterNonRAClassNonNewmanSC: idSet(0x0001, 0x0003, 0x0110, 0x0111, 0x0113, 0x02AA, 0x02AC,
		0x02AD, 0x02B2, 0x02B3, 0x02CC, 0x02CE, 0x02D4, 0x02D5, 0x02D7),
	// 0x02CD is a female SC but is present in this set.
	CriterionHunterNonNewmanNonForceMaleSC: idSet(0x0001, 0x0002, 0x0005, 0x0113, 0x02AA, 0x02AC,
		0x02AE, 0x02B0, 0x02CC, 0x02CD, 0x02D0, 0x02D7),
	CriterionHunterHUnewearlClassSC:   idSet(0x0004, 0x02AB, 0x02CF),
	CriterionHunterRAClassMaleSC:      idSet(0x0002, 0x0005, 0x02AE, 0x02B0, 0x02CD, 0x02D0),
	CriterionHunterRAClassFemaleSC:    idSet(0x0006, 0x0114, 0x02AF, 0x02B1, 0x02D1, 0x02D2),
	CriterionHunterRAOrFOClassFemaleSC: idSet(0x0003, 0x0006, 0x0112, 0x0114, 0x02AF, 0x02B1, 0x02B3,
		0x02B5, 0x02CE, 0x02D1, 0x02D6, 0x02D8),
	CriterionHunterHUOrRAClassHumanSC: idSet(0x0001, 0x0002, 0x0004, 0x0006, 0x02AA, 0x02AB, 0x02AE,
		0x02AF, 0x02CC, 0x02CD, 0x02CF, 0x02D1),
	CriterionHunterRAClassAndroidSC: idSet(0x0005, 0x0114, 0x02B0, 0x02B1, 0x02D0, 0x02D8),
	CriterionHunterFOClassFemaleSC:  idSet(0x0003, 0x0112, 0x02B3, 0x02B5, 0x02CE, 0x02D6),
	CriterionHunterHumanFemaleSC: idSet(0x0003, 0x0004, 0x0006, 0x0112, 0x02AB, 0x02AF, 0x02B3, 0x02B5,
		0x02CE, 0x02CF, 0x02D1, 0x02D6),
	CriterionHunterAndroidSC: idSet(0x0005, 0x0110, 0x0113, 0x0114, 0x02AC, 0x02AD, 0x02B0, 0x02B1,
		0x02D0, 0x02D4, 0x02D7, 0x02D8),
}

func idSet(ids ...uint16) map[uint16]struct{} {
	ret := make(map[uint16]struct{}, len(ids))
	for _, id := range ids {
		ret[id] = struct{}{}
	}
	return ret
}

// CriterionIncludesCardID reports whether a named hunter criterion lists the
// card id. The second result is false for criteria that are not id-based.
func CriterionIncludesCardID(c CriterionCode, cardID uint16) (bool, bool) {
	ids, ok := criterionCardIDs[c]
	if !ok {
		return false, false
	}
	_, found := ids[cardID]
	return found, true
}

// Card ids with special meaning to the rules.
const (
	CardIDGifoie        uint16 = 0x00D9
	CardIDHeavyFogRange uint16 = 0xFFFE
	CardIDAttack        uint16 = 0x008A
	CardIDFilterRange   uint16 = 0x00ED
	CardIDWideRange     uint16 = 0x009C
	CardIDGodWhim       uint16 = 0x0130
	CardIDNone          uint16 = 0xFFFF
)

// IsBossSC reports whether the card id belongs to a boss story character.
func IsBossSC(cardID uint16) bool {
	return cardID >= 0x029B && cardID < 0x029F
}

// IsSupportTechOrSupportPB reports whether the card id is one of the support
// technique or support photon blast cards.
func IsSupportTechOrSupportPB(cardID uint16) bool {
	switch cardID {
	case 0x00E1, 0x00E2, 0x00E6, 0x00EB, 0x00EC:
		return true
	}
	return false
}
