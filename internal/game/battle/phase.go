package battle

import (
	"fmt"

	"github.com/magefree/ep3-server-go/internal/game/cards"
)

// BattlePhase is one step of the per-round cycle.
type BattlePhase uint8

const (
	PhaseInvalid BattlePhase = 0
	PhaseDice    BattlePhase = 1
	PhaseSet     BattlePhase = 2
	PhaseMove    BattlePhase = 3
	PhaseAction  BattlePhase = 4
	PhaseDraw    BattlePhase = 5
	PhaseNone    BattlePhase = 0xFF
)

var battlePhaseNames = map[BattlePhase]string{
	PhaseInvalid: "INVALID",
	PhaseDice:    "DICE",
	PhaseSet:     "SET",
	PhaseMove:    "MOVE",
	PhaseAction:  "ACTION",
	PhaseDraw:    "DRAW",
	PhaseNone:    "NONE",
}

func (p BattlePhase) String() string {
	if name, ok := battlePhaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%02X", uint8(p))
}

// SetupPhase is the coarse lifecycle state of a battle.
type SetupPhase uint8

const (
	SetupRegistration     SetupPhase = 0
	SetupStarterRolls     SetupPhase = 1
	SetupHandRedrawOption SetupPhase = 2
	SetupMainBattle       SetupPhase = 3
	SetupBattleEnded      SetupPhase = 4
	SetupInvalid          SetupPhase = 0xFF
)

var setupPhaseNames = map[SetupPhase]string{
	SetupRegistration:     "REGISTRATION",
	SetupStarterRolls:     "STARTER_ROLLS",
	SetupHandRedrawOption: "HAND_REDRAW_OPTION",
	SetupMainBattle:       "MAIN_BATTLE",
	SetupBattleEnded:      "BATTLE_ENDED",
	SetupInvalid:          "INVALID",
}

func (p SetupPhase) String() string {
	if name, ok := setupPhaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("SETUP_%02X", uint8(p))
}

// RegistrationPhase tracks player and deck registration before the battle.
type RegistrationPhase uint8

const (
	RegistrationAwaitingNumPlayers RegistrationPhase = 0
	RegistrationAwaitingPlayers    RegistrationPhase = 1
	RegistrationAwaitingDecks      RegistrationPhase = 2
	RegistrationRegistered         RegistrationPhase = 3
	RegistrationBattleStarted      RegistrationPhase = 4
	RegistrationInvalid            RegistrationPhase = 0xFF
)

var registrationPhaseNames = map[RegistrationPhase]string{
	RegistrationAwaitingNumPlayers: "AWAITING_NUM_PLAYERS",
	RegistrationAwaitingPlayers:    "AWAITING_PLAYERS",
	RegistrationAwaitingDecks:      "AWAITING_DECKS",
	RegistrationRegistered:         "REGISTERED",
	RegistrationBattleStarted:      "BATTLE_STARTED",
	RegistrationInvalid:            "INVALID",
}

func (p RegistrationPhase) String() string {
	if name, ok := registrationPhaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("REGISTRATION_%02X", uint8(p))
}

// StateFlags is the battle-wide state record synchronized to clients.
type StateFlags struct {
	TurnNum           uint16
	BattlePhase       BattlePhase
	CurrentTeamTurn1  uint8
	CurrentTeamTurn2  uint8
	ActionSubphase    cards.ActionSubphase
	SetupPhase        SetupPhase
	RegistrationPhase RegistrationPhase
	TeamEXP           [2]uint32
	TeamDiceBonus     [2]uint8
	FirstTeamTurn     uint8
	TournamentFlag    uint8
	ClientSCCardTypes [MaxClients]cards.CardType
}

// NewStateFlags returns the flags of a battle that has not started.
func NewStateFlags() StateFlags {
	return StateFlags{
		BattlePhase:       PhaseInvalid,
		ActionSubphase:    cards.SubphaseAttack,
		SetupPhase:        SetupRegistration,
		RegistrationPhase: RegistrationAwaitingNumPlayers,
	}
}

func (f StateFlags) String() string {
	return fmt.Sprintf("StateFlags[turn=%d phase=%s team1=%d team2=%d subphase=%s setup=%s reg=%s exp=%v dice_bonus=%v first=%d]",
		f.TurnNum, f.BattlePhase, f.CurrentTeamTurn1, f.CurrentTeamTurn2, f.ActionSubphase, f.SetupPhase,
		f.RegistrationPhase, f.TeamEXP, f.TeamDiceBonus, f.FirstTeamTurn)
}
