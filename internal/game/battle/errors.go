package battle

import "fmt"

// ErrorCode is the signed result code returned to clients for a command. Zero
// means success; every rejection reason has its own negative value. The
// values are part of the client protocol.
type ErrorCode int32

const (
	ErrNone ErrorCode = 0

	ErrInsufficientPoints   ErrorCode = -0x80
	ErrCardNotInHand        ErrorCode = -0x7F
	ErrInvalidSetSlot       ErrorCode = -0x7E
	ErrCardNotSettable      ErrorCode = -0x7D
	ErrUnknownCardID        ErrorCode = -0x7C
	ErrCardCannotMove       ErrorCode = -0x7B
	ErrTileOccupied         ErrorCode = -0x7A
	ErrNoMovePath           ErrorCode = -0x79
	ErrInvalidCardIndex     ErrorCode = -0x78
	ErrFCCostLimit          ErrorCode = -0x77
	ErrSkippingTurn         ErrorCode = -0x76
	ErrNotUsableBySC        ErrorCode = -0x75
	ErrNoSuchPlayer         ErrorCode = -0x72
	ErrActionQueueFull      ErrorCode = -0x71
	ErrAttackerSkipping     ErrorCode = -0x70
	ErrCannotAttack         ErrorCode = -0x6F
	ErrActionsSkipped       ErrorCode = -0x6E
	ErrActionNotOwned       ErrorCode = -0x6D
	ErrNotActionCard        ErrorCode = -0x6C
	ErrInvalidLinkage       ErrorCode = -0x6B
	ErrActionNotUsable      ErrorCode = -0x6A
	ErrTooManyActions       ErrorCode = -0x69
	ErrFCMustAttackFirst    ErrorCode = -0x68
	ErrAttackAlreadySet     ErrorCode = -0x67
	ErrDefenseAlreadySet    ErrorCode = -0x66
	ErrInvalidDefense       ErrorCode = -0x65
	ErrDefenderSkipping     ErrorCode = -0x64
	ErrDefenseTargetGone    ErrorCode = -0x63
	ErrDefenseColor         ErrorCode = -0x62
	ErrDefenseNotApplicable ErrorCode = -0x61
	ErrCardDestroyed        ErrorCode = -0x60
	ErrInvalidActionType    ErrorCode = -0x5F
	ErrNotInSyncedHand      ErrorCode = -0x5E
	ErrMalformedCommand     ErrorCode = -0x5D
	ErrWrongPhase           ErrorCode = -0x5C
	ErrSameCardBanned       ErrorCode = -0x5B
	ErrAssistless           ErrorCode = -0x5A
	ErrCannotSetFC          ErrorCode = -0x59
	ErrSetSlotOccupied      ErrorCode = -0x58
	ErrOutsideSummonArea    ErrorCode = -0x57
	ErrAllySetterMissing    ErrorCode = -0x56
	ErrAllyInsufficientATK  ErrorCode = -0x55
)

// Deck verification codes.
const (
	ErrDeckInvalidSC          ErrorCode = -0x54
	ErrDeckTooManyCopies      ErrorCode = -0x53
	ErrDeckItemForArkz        ErrorCode = -0x52
	ErrDeckCreatureForHunters ErrorCode = -0x51
	ErrDeckUnknownCard        ErrorCode = -0x50
	ErrDeckNotOwned           ErrorCode = -0x4F
	ErrDeckExtraSC            ErrorCode = -0x4E
)

var errorCodeNames = map[ErrorCode]string{
	ErrInsufficientPoints:   "insufficient points",
	ErrCardNotInHand:        "card not in hand",
	ErrInvalidSetSlot:       "invalid set slot or location",
	ErrCardNotSettable:      "card cannot be set",
	ErrUnknownCardID:        "unknown card id",
	ErrCardCannotMove:       "card cannot move",
	ErrTileOccupied:         "tile occupied",
	ErrNoMovePath:           "no move path",
	ErrInvalidCardIndex:     "invalid card index",
	ErrFCCostLimit:          "field character cost limit reached",
	ErrSkippingTurn:         "player is skipping turn",
	ErrNotUsableBySC:        "card not usable by story character",
	ErrNoSuchPlayer:         "no such player",
	ErrActionQueueFull:      "action queue full",
	ErrAttackerSkipping:     "attacker is skipping turn",
	ErrCannotAttack:         "card cannot attack",
	ErrActionsSkipped:       "actions skipped",
	ErrActionNotOwned:       "action card not owned by client",
	ErrNotActionCard:        "not an action card",
	ErrInvalidLinkage:       "invalid action card linkage",
	ErrActionNotUsable:      "action card not usable by attacker",
	ErrTooManyActions:       "too many action cards",
	ErrFCMustAttackFirst:    "field characters must attack first",
	ErrAttackAlreadySet:     "attack already declared",
	ErrDefenseAlreadySet:    "defense already declared",
	ErrInvalidDefense:       "invalid defense",
	ErrDefenderSkipping:     "defender is skipping",
	ErrDefenseTargetGone:    "defense target cannot defend",
	ErrDefenseColor:         "defense color does not match attack",
	ErrDefenseNotApplicable: "defense does not apply to attacker",
	ErrCardDestroyed:        "card destroyed",
	ErrInvalidActionType:    "invalid action type",
	ErrNotInSyncedHand:      "card not in synchronized hand",
	ErrMalformedCommand:     "malformed command",
	ErrWrongPhase:           "wrong phase",
	ErrSameCardBanned:       "same card already set",
	ErrAssistless:           "assist cards blocked",
	ErrCannotSetFC:          "field characters blocked",
	ErrSetSlotOccupied:      "set slot occupied",
	ErrOutsideSummonArea:    "location outside summon area",
	ErrAllySetterMissing:    "card setter not present",
	ErrAllyInsufficientATK:  "allies lack attack points",

	ErrDeckInvalidSC:          "deck does not start with a story character",
	ErrDeckTooManyCopies:      "deck has more than three copies of a card",
	ErrDeckItemForArkz:        "deck has items for an arkz character",
	ErrDeckCreatureForHunters: "deck has creatures for a hunters character",
	ErrDeckUnknownCard:        "deck has an unknown card",
	ErrDeckNotOwned:           "deck card not owned",
	ErrDeckExtraSC:            "deck has more than one story character",
}

func (e ErrorCode) Error() string {
	if name, ok := errorCodeNames[e]; ok {
		return fmt.Sprintf("%s (-0x%02X)", name, -int32(e))
	}
	if e < 0 {
		return fmt.Sprintf("error -0x%02X", -int32(e))
	}
	return fmt.Sprintf("error 0x%02X", int32(e))
}

// Err returns nil for ErrNone and e otherwise.
func (e ErrorCode) Err() error {
	if e == ErrNone {
		return nil
	}
	return e
}
