package cards

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sampleCards = `
cards:
  - id: 0x0001
    name: Orland
    type: HUNTERS_SC
    class: HU_SC
    hp: "15"
    ap: "4"
    tp: "1"
    mv: "2"
  - id: 0x0030
    name: Saber
    type: ITEM
    class: SWORD_ITEM
    cost: 2
    hp: "3"
    ap: "+2"
    tp: "-1"
    mv: "?"
    right_colors: [1, 3]
    fixed_range: 1
    effects:
      - type: AP_BOOST
        expr: "2"
        when: CARD_SET
        arg1: "t01"
        arg3: "p01"
  - id: 0x00D9
    name: Gifoie
    type: ACTION
    class: TECH
    cost: 3
    left_colors: [1]
    fixed_range: 4
`

func TestLoadIndex(t *testing.T) {
	idx, err := LoadIndex(strings.NewReader(sampleCards), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Equal(t, 3, idx.Len())

	saber := idx.DefinitionForID(0x0030)
	require.NotNil(t, saber)
	assert.Equal(t, TypeItem, saber.Type)
	assert.Equal(t, ClassSwordItem, saber.Class)
	assert.Equal(t, StatPlus, saber.AP.Type)
	assert.Equal(t, int8(2), saber.AP.Value)
	assert.Equal(t, int8(-1), saber.TP.Value)
	assert.Equal(t, StatUnknown, saber.MV.Type)
	assert.Equal(t, uint32(0x100), saber.Range[3])
	assert.Equal(t, uint32(0), saber.Range[4])
	assert.Equal(t, CondAPBoost, saber.Effects[0].Type)
	assert.Equal(t, uint8(1), saber.Effects[0].EffectNum)
	assert.Equal(t, 1, saber.Effects[0].Arg3Number())
	assert.True(t, saber.Effects[1].IsEmpty())

	gifoie := idx.DefinitionForID(CardIDGifoie)
	require.NotNil(t, gifoie)
	assert.Equal(t, [6]uint32{0, 0, 0, 0x1110, 0x1010, 0x1110}, gifoie.Range)
	assert.True(t, gifoie.Class.IsTechLike())

	assert.Nil(t, idx.DefinitionForID(0x7777))
	assert.Equal(t, uint16(0x0001), idx.All()[0].CardID)
}

func TestLoadIndexRejectsBadInput(t *testing.T) {
	_, err := LoadIndex(strings.NewReader("cards:\n  - id: 1\n    type: WIZARD\n"), nil)
	assert.Error(t, err)

	_, err = LoadIndex(strings.NewReader("cards:\n  - id: 1\n    effects:\n      - type: NOPE\n"), nil)
	assert.Error(t, err)

	_, err = LoadIndex(strings.NewReader("cards:\n  - id: 1\n  - id: 1\n"), nil)
	assert.Error(t, err)
}

func TestDecodeStat(t *testing.T) {
	st, err := DecodeStat(3004)
	require.NoError(t, err)
	assert.Equal(t, StatMinus, st.Type)
	assert.Equal(t, int8(-4), st.Value)
	assert.Equal(t, "-4", st.String())

	st, err = DecodeStat(2999)
	require.NoError(t, err)
	assert.Equal(t, StatPlusUnknown, st.Type)
	assert.Equal(t, "+?", st.String())

	_, err = DecodeStat(9005)
	assert.Error(t, err)
}

func TestDecodeRangeRejectsUnknownIndex(t *testing.T) {
	def := &Definition{CardID: 5}
	def.Range[4] = 0xA00
	assert.Error(t, def.DecodeRange())

	def.Range[4] = 0x600
	require.NoError(t, def.DecodeRange())
	for _, row := range def.Range {
		assert.Equal(t, RangeEntireField, row)
	}
}

func TestAtoi(t *testing.T) {
	assert.Equal(t, 12, Atoi("12abc"))
	assert.Equal(t, -3, Atoi("-3"))
	assert.Equal(t, 0, Atoi("x"))
	assert.Equal(t, 5, AtoiSuffix("p05"))
	assert.Equal(t, 0, AtoiSuffix("p"))
}

func TestAssistEffectForCardID(t *testing.T) {
	assert.Equal(t, AssistPermission, AssistEffectForCardID(0x0109))
	assert.Equal(t, AssistQuickTime, AssistEffectForCardID(0x023F))
	assert.Equal(t, AssistNone, AssistEffectForCardID(0x0001))
	for _, id := range AllAssistCardIDs() {
		assert.NotEqual(t, AssistNone, AssistEffectForCardID(id), "card %04X", id)
	}
}

func TestCriterionIDSets(t *testing.T) {
	found, ok := CriterionIncludesCardID(CriterionHunterFemaleSC, 0x0003)
	assert.True(t, ok)
	assert.True(t, found)

	found, ok = CriterionIncludesCardID(CriterionHunterFemaleSC, 0x02CD)
	assert.True(t, ok)
	assert.False(t, found)

	_, ok = CriterionIncludesCardID(CriterionSameTeam, 0x0001)
	assert.False(t, ok)

	assert.True(t, CriterionHUClassSC.HasClassUsabilityCondition())
	assert.False(t, CriterionSameTeam.HasClassUsabilityCondition())
	assert.True(t, CriterionHunterAndroidSC.HasClassUsabilityCondition())
}

func TestEnumNames(t *testing.T) {
	assert.Equal(t, "A_T_SWAP_0C", CondATSwap0C.String())
	v, err := ParseConditionType("REFLECT")
	require.NoError(t, err)
	assert.Equal(t, CondReflect, v)
	assert.Equal(t, "BEFORE_DICE_PHASE_ALL_TURNS_FINAL", WhenBeforeDicePhaseAllTurnsFinal.String())
	assert.Equal(t, "D2", RankD2.String())
	assert.Equal(t, "OWN_FCS", TargetOwnFCs.String())
}
