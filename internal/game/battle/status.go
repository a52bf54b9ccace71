package battle

import (
	"fmt"

	"github.com/magefree/ep3-server-go/internal/game/field"
)

// EffectResult describes one visible consequence of an effect or attack.
type EffectResult struct {
	AttackerRef CardRef
	TargetRef   CardRef
	Value       int8
	CurrentHP   int8
	AP          int8
	TP          int8
	Flags       uint8
	// Operation is the condition type applied, or its negation when a
	// condition was removed.
	Operation      int8
	ConditionIndex uint8
	DiceRollValue  uint8
}

// NewEffectResult returns a cleared result.
func NewEffectResult() EffectResult {
	return EffectResult{AttackerRef: NoRef, TargetRef: NoRef}
}

func (r EffectResult) String() string {
	return fmt.Sprintf("EffectResult[attacker=%s target=%s value=%d hp=%d ap=%d tp=%d flags=%02X op=%d cond=%d dice=%d]",
		r.AttackerRef, r.TargetRef, r.Value, r.CurrentHP, r.AP, r.TP, r.Flags, r.Operation, r.ConditionIndex, r.DiceRollValue)
}

// CardShortStatus is the compact per-card record synchronized to clients.
type CardShortStatus struct {
	CardRef   CardRef
	CurrentHP uint16
	Flags     CardFlags
	Loc       field.Location
	MaxHP     int8
}

// NewCardShortStatus returns an empty status.
func NewCardShortStatus() CardShortStatus {
	return CardShortStatus{CardRef: NoRef}
}

func (s CardShortStatus) String() string {
	return fmt.Sprintf("CardShortStatus[ref=%s hp=%d/%d flags=%s loc=%s]",
		s.CardRef, s.CurrentHP, s.MaxHP, s.Flags, s.Loc)
}

// Short status slot layout within a player's status table.
const (
	ShortStatusSC         = 0
	ShortStatusHandBase   = 1
	ShortStatusSetBase    = 7
	ShortStatusAssist     = 15
	NumShortStatuses      = 16
	NumChainSlots         = 9
	shortStatusRangeLimit = 4
)

// IsWithinRange reports whether the card behind s lies in the range mask
// anchored at loc.
func (s *CardShortStatus) IsWithinRange(r *field.RangeMask, anchor field.Location) bool {
	if s.CardRef == NoRef {
		return false
	}
	if r.IsEntireField() {
		return true
	}
	dx := int(s.Loc.X) - int(anchor.X)
	dy := int(s.Loc.Y) - int(anchor.Y)
	if dx < -shortStatusRangeLimit || dx > shortStatusRangeLimit ||
		dy < -shortStatusRangeLimit || dy > shortStatusRangeLimit {
		return false
	}
	return r[(dy+shortStatusRangeLimit)*field.RangeSize+dx+shortStatusRangeLimit] != field.RangeOut
}

// refsWithinRange returns the SC and set cards of a status table that lie in
// range.
func refsWithinRange(r *field.RangeMask, loc field.Location, statuses *[NumShortStatuses]CardShortStatus) []CardRef {
	var ret []CardRef
	if statuses[ShortStatusSC].IsWithinRange(r, loc) {
		ret = append(ret, statuses[ShortStatusSC].CardRef)
	}
	for z := ShortStatusSetBase; z < ShortStatusAssist; z++ {
		if statuses[z].IsWithinRange(r, loc) {
			ret = append(ret, statuses[z].CardRef)
		}
	}
	return ret
}

// HandAndEquipState is the per-player resource and card-slot record
// synchronized to clients.
type HandAndEquipState struct {
	DiceResults          [2]uint8
	ATKPoints            uint8
	DEFPoints            uint8
	ATKPoints2           uint8
	UnknownA1            uint8
	TotalSetCardsCost    uint8
	IsCPUPlayer          bool
	AssistFlags          AssistFlags
	HandRefs             [MaxHandSize]CardRef
	AssistRef            CardRef
	SetRefs              [MaxSetCards]CardRef
	SCRef                CardRef
	HandRefs2            [MaxHandSize]CardRef
	SetRefs2             [MaxSetCards]CardRef
	AssistRef2           CardRef
	AssistCardSetNumber  uint16
	AssistCardID         uint16
	AssistRemainingTurns uint8
	AssistDelayTurns     uint8
	ATKBonuses           uint8
	DEFBonuses           uint8
}

// Clear resets the record.
func (h *HandAndEquipState) Clear() {
	*h = HandAndEquipState{
		AssistRef:    NoRef,
		SCRef:        NoRef,
		AssistRef2:   NoRef,
		AssistCardID: 0xFFFF,
	}
	for z := range h.HandRefs {
		h.HandRefs[z] = NoRef
		h.HandRefs2[z] = NoRef
	}
	for z := range h.SetRefs {
		h.SetRefs[z] = NoRef
		h.SetRefs2[z] = NoRef
	}
}

// PlayerBattleStats accumulates per-player statistics used for the end of
// battle ranking.
type PlayerBattleStats struct {
	DamageGiven                uint16
	DamageTaken                uint16
	NumOpponentCardsDestroyed  uint16
	NumOwnedCardsDestroyed     uint16
	TotalMoveDistance          uint16
	NumCardsSet                uint16
	NumItemOrCreatureCardsSet  uint16
	NumAttackActionsSet        uint16
	NumTechCardsSet            uint16
	NumAssistCardsSet          uint16
	DefenseActionsSetOnSelf    uint16
	DefenseActionsSetOnAlly    uint16
	NumCardsDrawn              uint16
	MaxAttackDamage            uint16
	MaxAttackComboSize         uint16
	NumAttacksGiven            uint16
	NumAttacksTaken            uint16
	SCDamageTaken              uint16
	ActionCardNegatedDamage    uint16
}

var (
	rankThresholds = [...]float32{15, 25, 30, 40, 50, 60, 65, 75, 85}
	rankNames      = [...]string{"E", "D", "D+", "C", "C+", "B", "B+", "A", "A+", "S"}
)

// Score computes the ranking score after numRounds rounds.
func (s *PlayerBattleStats) Score(numRounds int) float32 {
	return 38.0 +
		0.8*float32(s.ActionCardNegatedDamage) -
		2.3*float32(numRounds) -
		1.8*float32(s.SCDamageTaken) +
		3.0*float32(s.MaxAttackComboSize) +
		float32(int(s.DamageGiven)-int(s.DamageTaken))
}

// Rank returns the rank index for the score after numRounds rounds.
func (s *PlayerBattleStats) Rank(numRounds int) uint8 {
	return RankForScore(s.Score(numRounds))
}

// RankName returns the printable rank after numRounds rounds.
func (s *PlayerBattleStats) RankName(numRounds int) string {
	return rankNames[s.Rank(numRounds)]
}

// RankForScore maps a score onto the rank table.
func RankForScore(score float32) uint8 {
	rank := 0
	for rank < len(rankThresholds) && rankThresholds[rank] <= score {
		rank++
	}
	return uint8(rank)
}

// NameForRank returns the printable form of a rank index.
func NameForRank(rank uint8) (string, error) {
	if int(rank) >= len(rankNames) {
		return "", fmt.Errorf("invalid rank %d", rank)
	}
	return rankNames[rank], nil
}
