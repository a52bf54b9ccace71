package battle

import (
	"encoding/gob"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/magefree/ep3-server-go/internal/game/field"
)

// Command is one client request to the battle. Commands are plain data so
// that a battle can be replayed from its command log.
type Command interface {
	// Client returns the client that sent the command.
	Client() uint8
	// Name identifies the command in logs.
	Name() string
}

type SetMapCommand struct {
	ClientID    uint8
	MapAndRules field.MapAndRules
}

type RegisterDeckCommand struct {
	ClientID uint8
	Deck     DeckEntry
}

type CardCountsCommand struct {
	ClientID uint8
	Counts   []uint8
}

type SetNameCommand struct {
	ClientID     uint8
	PlayerName   string
	Disconnected bool
}

type StartBattleCommand struct{ ClientID uint8 }

type StarterRollDoneCommand struct{ ClientID uint8 }

type RedrawHandCommand struct{ ClientID uint8 }

type EndRedrawCommand struct{ ClientID uint8 }

type EndPhaseCommand struct{ ClientID uint8 }

type DiscardCommand struct {
	ClientID uint8
	Ref      CardRef
}

type SetCardCommand struct {
	ClientID     uint8
	Ref          CardRef
	Slot         uint8
	Loc          field.Location
	AssistTarget uint8
}

type MoveCommand struct {
	ClientID uint8
	Index    uint8
	Loc      field.Location
}

type DeclareActionCommand struct {
	ClientID uint8
	State    ActionState
}

type EndAttackListCommand struct{ ClientID uint8 }

type EndDefenseListCommand struct{ ClientID uint8 }

type PhotonBlastCommand struct {
	ClientID uint8
	Ref      CardRef
	Reason   uint8
}

type EndTurnCommand struct{ ClientID uint8 }

type EndBattleCommand struct{ ClientID uint8 }

// Administrative commands. They are recorded like any other so replays see
// the same interventions.
type ForceAssistCommand struct {
	ClientID uint8
	CardID   uint16
}

type ForceDestroyCommand struct {
	ClientID     uint8
	VisibleIndex int
}

type ForceResultCommand struct {
	ClientID  uint8
	SetWinner bool
}

func (c SetMapCommand) Client() uint8          { return c.ClientID }
func (c RegisterDeckCommand) Client() uint8    { return c.ClientID }
func (c CardCountsCommand) Client() uint8      { return c.ClientID }
func (c SetNameCommand) Client() uint8         { return c.ClientID }
func (c StartBattleCommand) Client() uint8     { return c.ClientID }
func (c StarterRollDoneCommand) Client() uint8 { return c.ClientID }
func (c RedrawHandCommand) Client() uint8      { return c.ClientID }
func (c EndRedrawCommand) Client() uint8       { return c.ClientID }
func (c EndPhaseCommand) Client() uint8        { return c.ClientID }
func (c DiscardCommand) Client() uint8         { return c.ClientID }
func (c SetCardCommand) Client() uint8         { return c.ClientID }
func (c MoveCommand) Client() uint8            { return c.ClientID }
func (c DeclareActionCommand) Client() uint8   { return c.ClientID }
func (c EndAttackListCommand) Client() uint8   { return c.ClientID }
func (c EndDefenseListCommand) Client() uint8  { return c.ClientID }
func (c PhotonBlastCommand) Client() uint8     { return c.ClientID }
func (c EndTurnCommand) Client() uint8         { return c.ClientID }
func (c EndBattleCommand) Client() uint8       { return c.ClientID }
func (c ForceAssistCommand) Client() uint8     { return c.ClientID }
func (c ForceDestroyCommand) Client() uint8    { return c.ClientID }
func (c ForceResultCommand) Client() uint8     { return c.ClientID }

func (SetMapCommand) Name() string          { return "set_map" }
func (RegisterDeckCommand) Name() string    { return "register_deck" }
func (CardCountsCommand) Name() string      { return "card_counts" }
func (SetNameCommand) Name() string         { return "set_name" }
func (StartBattleCommand) Name() string     { return "start_battle" }
func (StarterRollDoneCommand) Name() string { return "starter_roll_done" }
func (RedrawHandCommand) Name() string      { return "redraw_hand" }
func (EndRedrawCommand) Name() string       { return "end_redraw" }
func (EndPhaseCommand) Name() string        { return "end_phase" }
func (DiscardCommand) Name() string         { return "discard" }
func (SetCardCommand) Name() string         { return "set_card" }
func (MoveCommand) Name() string            { return "move" }
func (DeclareActionCommand) Name() string   { return "declare_action" }
func (EndAttackListCommand) Name() string   { return "end_attack_list" }
func (EndDefenseListCommand) Name() string  { return "end_defense_list" }
func (PhotonBlastCommand) Name() string     { return "photon_blast" }
func (EndTurnCommand) Name() string         { return "end_turn" }
func (EndBattleCommand) Name() string       { return "end_battle" }
func (ForceAssistCommand) Name() string     { return "force_assist" }
func (ForceDestroyCommand) Name() string    { return "force_destroy" }
func (ForceResultCommand) Name() string     { return "force_result" }

// RegisterCommandTypes makes every command encodable behind the Command
// interface with encoding/gob.
func RegisterCommandTypes() {
	for _, c := range []Command{
		SetMapCommand{}, RegisterDeckCommand{}, CardCountsCommand{}, SetNameCommand{},
		StartBattleCommand{}, StarterRollDoneCommand{}, RedrawHandCommand{}, EndRedrawCommand{},
		EndPhaseCommand{}, DiscardCommand{}, SetCardCommand{}, MoveCommand{},
		DeclareActionCommand{}, EndAttackListCommand{}, EndDefenseListCommand{},
		PhotonBlastCommand{}, EndTurnCommand{}, EndBattleCommand{},
		ForceAssistCommand{}, ForceDestroyCommand{}, ForceResultCommand{},
	} {
		gob.Register(c)
	}
}

func init() { RegisterCommandTypes() }

// Response phases of an ActionResultEvent. Some commands are acknowledged
// before they run and confirmed after.
const (
	ResponseImmediate uint8 = 0
	ResponseAck       uint8 = 1
	ResponseFinal     uint8 = 2
)

// Dispatch runs one command and broadcasts its result. seq is echoed back in
// every ActionResultEvent the command produces. The returned error is set
// for commands that fail outside the result code protocol.
func (b *Battle) Dispatch(seq uint32, cmd Command) (ErrorCode, error) {
	if cmd == nil {
		return ErrMalformedCommand, fmt.Errorf("dispatch: nil command")
	}
	log := b.logger.With(zap.String("command", cmd.Name()), zap.Uint8("client_id", cmd.Client()))
	result := func(code ErrorCode, phase uint8) {
		b.send(&ActionResultEvent{Sequence: seq, ErrorCode: int32(code), ResponsePhase: phase})
	}

	code := ErrNone
	switch c := cmd.(type) {
	case SetMapCommand:
		b.SetMapAndRules(c.MapAndRules)
		return ErrNone, nil
	case CardCountsCommand:
		b.SetOwnedCards(c.ClientID, c.Counts)
		return ErrNone, nil
	case RegisterDeckCommand:
		if err := b.RegisterDeck(c.ClientID, c.Deck); err != nil {
			log.Info("deck rejected", zap.Error(err))
			return deckErrorCode(err), err
		}
		return ErrNone, nil
	case SetNameCommand:
		b.SetPlayerName(c.ClientID, c.PlayerName)
		if c.Disconnected {
			b.ReplaceWithCPU(c.ClientID)
		}
		return ErrNone, nil
	case StartBattleCommand:
		if _, err := b.StartBattle(); err != nil {
			log.Error("battle failed to start", zap.Error(err))
			return ErrMalformedCommand, err
		}
		return ErrNone, nil
	case StarterRollDoneCommand:
		b.EndStarterRoll(c.ClientID)
		return ErrNone, nil
	case RedrawHandCommand:
		code = b.RedrawInitialHand(c.ClientID)
		result(code, ResponseImmediate)
	case EndRedrawCommand:
		result(ErrNone, ResponseAck)
		code = b.EndRedrawPhase(c.ClientID)
		result(code, ResponseFinal)
	case EndPhaseCommand:
		result(ErrNone, ResponseAck)
		b.EndPhase(c.ClientID)
		result(ErrNone, ResponseFinal)
	case DiscardCommand:
		code = b.DiscardFromHand(c.ClientID, c.Ref)
		result(code, ResponseImmediate)
	case SetCardCommand:
		code = b.SetCardFromHand(c.ClientID, c.Ref, c.Slot, c.Loc, c.AssistTarget)
		result(code, ResponseImmediate)
	case MoveCommand:
		code = b.MoveCard(c.ClientID, c.Index, c.Loc)
		result(code, ResponseImmediate)
	case DeclareActionCommand:
		code = b.DeclareAction(c.ClientID, c.State)
		result(code, ResponseImmediate)
	case EndAttackListCommand:
		code = b.EndAttackList(c.ClientID)
		result(ErrNone, ResponseImmediate)
	case EndDefenseListCommand:
		result(ErrNone, ResponseAck)
		b.EndDefenseList(c.ClientID)
		result(ErrNone, ResponseFinal)
	case PhotonBlastCommand:
		b.AnswerPhotonBlast(c.Ref, c.ClientID, c.Reason)
		return ErrNone, nil
	case EndTurnCommand:
		b.EndTurn(c.ClientID)
		result(ErrNone, ResponseImmediate)
	case EndBattleCommand:
		b.EndBattle()
		return ErrNone, nil
	case ForceAssistCommand:
		return forced(b.ForceReplaceAssist(c.ClientID, c.CardID))
	case ForceDestroyCommand:
		return forced(b.ForceDestroyFieldCharacter(c.ClientID, c.VisibleIndex))
	case ForceResultCommand:
		return forced(b.ForceBattleResult(c.ClientID, c.SetWinner))
	default:
		return ErrMalformedCommand, fmt.Errorf("dispatch: unknown command %T", cmd)
	}
	if code != ErrNone {
		log.Debug("command rejected", zap.Error(code))
	}
	return code, nil
}

func forced(err error) (ErrorCode, error) {
	if err != nil {
		return ErrMalformedCommand, err
	}
	return ErrNone, nil
}

func deckErrorCode(err error) ErrorCode {
	var code ErrorCode
	if errors.As(err, &code) {
		return code
	}
	return ErrMalformedCommand
}
