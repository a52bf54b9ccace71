package server

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/magefree/ep3-server-go/internal/game/battle"
)

// Frame types sent to clients.
const (
	frameJoined = "joined"
	frameEvent  = "event"
	frameError  = "error"
	frameClosed = "closed"
)

// inboundFrame is one client command. Payload holds the command fields; the
// client ID is always the seat the connection joined as.
type inboundFrame struct {
	Seq     uint32          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outboundFrame struct {
	Type   string          `json:"type"`
	Seq    uint32          `json:"seq,omitempty"`
	Code   uint8           `json:"code,omitempty"`
	Event  string          `json:"event,omitempty"`
	Data   any             `json:"data,omitempty"`
	Status json.RawMessage `json:"status,omitempty"`
}

// playerCommands lists the commands clients may send. Map selection and the
// forced outcomes are issued by the server.
var playerCommands = func() map[string]reflect.Type {
	out := make(map[string]reflect.Type)
	for _, c := range []battle.Command{
		battle.RegisterDeckCommand{}, battle.CardCountsCommand{}, battle.SetNameCommand{},
		battle.StartBattleCommand{}, battle.StarterRollDoneCommand{}, battle.RedrawHandCommand{},
		battle.EndRedrawCommand{}, battle.EndPhaseCommand{}, battle.DiscardCommand{},
		battle.SetCardCommand{}, battle.MoveCommand{}, battle.DeclareActionCommand{},
		battle.EndAttackListCommand{}, battle.EndDefenseListCommand{}, battle.PhotonBlastCommand{},
		battle.EndTurnCommand{}, battle.EndBattleCommand{},
	} {
		out[c.Name()] = reflect.TypeOf(c)
	}
	return out
}()

var declareActionType = reflect.TypeOf(battle.DeclareActionCommand{})

// decodeCommand builds the command named by f for seat.
func decodeCommand(seat uint8, f inboundFrame) (battle.Command, error) {
	t, ok := playerCommands[f.Type]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", f.Type)
	}
	v := reflect.New(t)
	if t == declareActionType {
		// Fields the client leaves out must read as empty references.
		v.Elem().FieldByName("State").Set(reflect.ValueOf(battle.NewActionState()))
	}
	if len(f.Payload) > 0 {
		if err := json.Unmarshal(f.Payload, v.Interface()); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", f.Type, err)
		}
	}
	v.Elem().FieldByName("ClientID").SetUint(uint64(seat))
	if t == declareActionType {
		v.Elem().FieldByName("State").FieldByName("ClientID").SetUint(uint64(seat))
	}
	cmd, ok := v.Elem().Interface().(battle.Command)
	if !ok {
		return nil, fmt.Errorf("command %q is not a battle command", f.Type)
	}
	return cmd, nil
}

// eventName returns "ShortStatuses" for *battle.ShortStatusesEvent.
func eventName(ev battle.Event) string {
	t := reflect.TypeOf(ev)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return strings.TrimSuffix(t.Name(), "Event")
}

func encodeEvent(ev battle.Event) ([]byte, error) {
	f := outboundFrame{Type: frameEvent, Code: uint8(ev.Code()), Event: eventName(ev), Data: ev}
	if r, ok := ev.(*battle.ActionResultEvent); ok {
		f.Seq = r.Sequence
	}
	return json.Marshal(f)
}
