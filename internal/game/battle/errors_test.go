package battle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allErrorCodes = []ErrorCode{
	ErrInsufficientPoints, ErrCardNotInHand, ErrInvalidSetSlot, ErrCardNotSettable,
	ErrUnknownCardID, ErrCardCannotMove, ErrTileOccupied, ErrNoMovePath,
	ErrInvalidCardIndex, ErrFCCostLimit, ErrSkippingTurn, ErrNotUsableBySC,
	ErrNoSuchPlayer, ErrActionQueueFull, ErrAttackerSkipping, ErrCannotAttack,
	ErrActionsSkipped, ErrActionNotOwned, ErrNotActionCard, ErrInvalidLinkage,
	ErrActionNotUsable, ErrTooManyActions, ErrFCMustAttackFirst, ErrAttackAlreadySet,
	ErrDefenseAlreadySet, ErrInvalidDefense, ErrDefenderSkipping, ErrDefenseTargetGone,
	ErrDefenseColor, ErrDefenseNotApplicable, ErrCardDestroyed, ErrInvalidActionType,
	ErrNotInSyncedHand, ErrMalformedCommand, ErrWrongPhase, ErrSameCardBanned,
	ErrAssistless, ErrCannotSetFC, ErrSetSlotOccupied, ErrOutsideSummonArea,
	ErrAllySetterMissing, ErrAllyInsufficientATK,
	ErrDeckInvalidSC, ErrDeckTooManyCopies, ErrDeckItemForArkz, ErrDeckCreatureForHunters,
	ErrDeckUnknownCard, ErrDeckNotOwned, ErrDeckExtraSC,
}

func TestErrorCodesAreDistinct(t *testing.T) {
	seen := map[ErrorCode]bool{}
	names := map[string]bool{}
	for _, code := range allErrorCodes {
		assert.Negative(t, int32(code))
		assert.False(t, seen[code], "code %d reused", code)
		seen[code] = true

		name, ok := errorCodeNames[code]
		require.True(t, ok, "code %d has no name", code)
		assert.False(t, names[name], "name %q reused", name)
		names[name] = true
	}
	assert.Len(t, errorCodeNames, len(allErrorCodes))
}

func TestErrorCodeText(t *testing.T) {
	assert.Equal(t, "action queue full (-0x71)", ErrActionQueueFull.Error())
	assert.Equal(t, "wrong phase (-0x5C)", ErrWrongPhase.Error())
	assert.Equal(t, "error -0x01", ErrorCode(-1).Error())
	assert.Equal(t, "error 0x01", ErrorCode(1).Error())
	assert.NoError(t, ErrNone.Err())
	assert.ErrorIs(t, ErrWrongPhase.Err(), ErrWrongPhase)
}
