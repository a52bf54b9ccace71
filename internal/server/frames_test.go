package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/magefree/ep3-server-go/internal/game/battle"
	"github.com/magefree/ep3-server-go/internal/storage"
	"github.com/magefree/ep3-server-go/internal/tournament"
)

func TestDecodeCommandUsesConnectionSeat(t *testing.T) {
	cmd, err := decodeCommand(2, inboundFrame{
		Type:    "set_name",
		Payload: json.RawMessage(`{"ClientID": 0, "PlayerName": "Kranz"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, battle.SetNameCommand{ClientID: 2, PlayerName: "Kranz"}, cmd)

	cmd, err = decodeCommand(1, inboundFrame{Type: "end_turn"})
	require.NoError(t, err)
	assert.Equal(t, battle.EndTurnCommand{ClientID: 1}, cmd)
}

func TestDecodeDeclareAction(t *testing.T) {
	cmd, err := decodeCommand(1, inboundFrame{
		Type:    "declare_action",
		Payload: json.RawMessage(`{"State": {"ClientID": 3, "AttackerRef": 256, "Targets": [2, 3], "Actions": [260]}}`),
	})
	require.NoError(t, err)
	decl, ok := cmd.(battle.DeclareActionCommand)
	require.True(t, ok)
	assert.Equal(t, uint8(1), decl.ClientID)
	assert.Equal(t, uint8(1), decl.State.ClientID)
	assert.Equal(t, battle.CardRef(256), decl.State.AttackerRef)
	assert.Equal(t, battle.NoRef, decl.State.DefenseRef)
	assert.Equal(t, battle.NoRef, decl.State.OriginalAttackerRef)
	assert.Equal(t, []battle.CardRef{2, 3}, decl.State.Targets.Slice())
	assert.Equal(t, []battle.CardRef{260}, decl.State.Actions.Slice())

	// The event sent back carries the lists as arrays.
	data, err := encodeEvent(&battle.ActionStateEvent{ClientID: 1, State: decl.State})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Targets":[2,3]`)
	assert.Contains(t, string(data), `"Actions":[260]`)

	_, err = decodeCommand(1, inboundFrame{
		Type:    "declare_action",
		Payload: json.RawMessage(`{"State": {"Actions": [1, 2, 3, 4, 5, 6, 7, 8, 9]}}`),
	})
	assert.ErrorContains(t, err, "decode declare_action payload")
}

func TestDecodeCommandRejectsServerCommands(t *testing.T) {
	for _, name := range []string{"set_map", "force_result", "force_assist", "force_destroy", "bogus"} {
		_, err := decodeCommand(0, inboundFrame{Type: name})
		assert.Error(t, err, name)
	}

	_, err := decodeCommand(0, inboundFrame{Type: "set_name", Payload: json.RawMessage(`[1]`)})
	assert.ErrorContains(t, err, "decode set_name payload")
}

func TestEncodeEvent(t *testing.T) {
	data, err := encodeEvent(&battle.ActionResultEvent{Sequence: 12, ErrorCode: int32(battle.ErrWrongPhase)})
	require.NoError(t, err)

	var f outboundFrame
	require.NoError(t, json.Unmarshal(data, &f))
	assert.Equal(t, frameEvent, f.Type)
	assert.Equal(t, "ActionResult", f.Event)
	assert.Equal(t, uint32(12), f.Seq)
	assert.Equal(t, uint8(battle.EventActionResult), f.Code)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "WRONG_PHASE", reason(battle.ErrWrongPhase))
	assert.Equal(t, "INVALID_SET_SLOT_OR_LOCATION", reason(battle.ErrInvalidSetSlot))
	assert.Equal(t, "ERROR__0X01", reason(battle.ErrorCode(-1)))
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("register: %w", battle.ErrDeckUnknownCard), codes.FailedPrecondition},
		{errRoomNotFound, codes.NotFound},
		{storage.ErrNotFound, codes.NotFound},
		{errRoomFull, codes.ResourceExhausted},
		{errSeatTaken, codes.AlreadyExists},
		{tournament.ErrTeamFull, codes.AlreadyExists},
		{fmt.Errorf("%w: 7", errUnknownMap), codes.InvalidArgument},
		{badRequest{errors.New("bad json")}, codes.InvalidArgument},
		{errUnauthorized, codes.PermissionDenied},
		{tournament.ErrWrongPassword, codes.PermissionDenied},
		{tournament.ErrAlreadyStarted, codes.FailedPrecondition},
		{errors.New("disk on fire"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, errorStatus(tt.err).Code(), tt.err.Error())
	}
}

func TestCommandStatusCarriesErrorInfo(t *testing.T) {
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Type     string            `json:"@type"`
			Reason   string            `json:"reason"`
			Domain   string            `json:"domain"`
			Metadata map[string]string `json:"metadata"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(statusJSON(commandStatus(battle.ErrTileOccupied, "move")), &body))

	assert.Equal(t, int(codes.FailedPrecondition), body.Code)
	require.Len(t, body.Details, 1)
	d := body.Details[0]
	assert.Equal(t, "type.googleapis.com/google.rpc.ErrorInfo", d.Type)
	assert.Equal(t, "TILE_OCCUPIED", d.Reason)
	assert.Equal(t, ErrorDomain, d.Domain)
	assert.Equal(t, "move", d.Metadata["command"])
	assert.Equal(t, "-122", d.Metadata["code"])
	assert.Equal(t, 400, httpStatus(codes.FailedPrecondition))
}
