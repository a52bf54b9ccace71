package server

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/magefree/ep3-server-go/internal/game/battle"
	"github.com/magefree/ep3-server-go/internal/storage"
	"github.com/magefree/ep3-server-go/internal/tournament"
)

// ErrorDomain tags every ErrorInfo this server produces.
const ErrorDomain = "ep3.battle"

var (
	errRoomNotFound       = errors.New("battle not found")
	errRoomFull           = errors.New("too many battles")
	errSeatTaken          = errors.New("seat already connected")
	errBadSeat            = errors.New("seat must be between 0 and 3")
	errUnknownMap         = errors.New("unknown map number")
	errUnauthorized       = errors.New("admin password required")
	errTournamentNotFound = errors.New("tournament not found")
)

// reason turns an error code into an upper snake case ErrorInfo reason, e.g.
// "WRONG_PHASE".
func reason(code battle.ErrorCode) string {
	msg := code.Error()
	if i := strings.Index(msg, " ("); i >= 0 {
		msg = msg[:i]
	}
	return strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_").Replace(msg))
}

// commandStatus describes a rejected command.
func commandStatus(code battle.ErrorCode, command string) *status.Status {
	st := status.New(codes.FailedPrecondition, code.Error())
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason: reason(code),
		Domain: ErrorDomain,
		Metadata: map[string]string{
			"code":    strconv.Itoa(int(code)),
			"command": command,
		},
	})
	if err != nil {
		return st
	}
	return detailed
}

// errorStatus maps a server error to a status.
func errorStatus(err error) *status.Status {
	var (
		code battle.ErrorCode
		bad  badRequest
	)
	switch {
	case errors.As(err, &code):
		return commandStatus(code, "")
	case errors.As(err, &bad):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, errRoomNotFound), errors.Is(err, errTournamentNotFound), errors.Is(err, storage.ErrNotFound):
		return status.New(codes.NotFound, err.Error())
	case errors.Is(err, errRoomFull):
		return status.New(codes.ResourceExhausted, err.Error())
	case errors.Is(err, errSeatTaken), errors.Is(err, tournament.ErrAlreadyRegistered),
		errors.Is(err, tournament.ErrTeamFull), errors.Is(err, storage.ErrAlreadyStored):
		return status.New(codes.AlreadyExists, err.Error())
	case errors.Is(err, errBadSeat), errors.Is(err, errUnknownMap), errors.Is(err, tournament.ErrNoSuchTeam),
		errors.Is(err, tournament.ErrInvalidTeamCount):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, errUnauthorized), errors.Is(err, tournament.ErrWrongPassword):
		return status.New(codes.PermissionDenied, err.Error())
	case errors.Is(err, tournament.ErrAlreadyStarted), errors.Is(err, tournament.ErrNotStarted),
		errors.Is(err, tournament.ErrNotEnoughEntrants), errors.Is(err, tournament.ErrNotEnoughCOMDecks),
		errors.Is(err, tournament.ErrNoPendingMatch):
		return status.New(codes.FailedPrecondition, err.Error())
	}
	if st, ok := status.FromError(err); ok {
		return st
	}
	return status.New(codes.Internal, err.Error())
}

// statusJSON renders st in the protobuf JSON mapping of google.rpc.Status.
func statusJSON(st *status.Status) json.RawMessage {
	data, err := protojson.Marshal(st.Proto())
	if err != nil {
		return json.RawMessage(strconv.Quote(st.Message()))
	}
	return data
}

// httpStatus picks the HTTP status for a gRPC code.
func httpStatus(c codes.Code) int {
	switch c {
	case codes.OK:
		return 200
	case codes.InvalidArgument, codes.FailedPrecondition:
		return 400
	case codes.PermissionDenied:
		return 403
	case codes.NotFound:
		return 404
	case codes.AlreadyExists:
		return 409
	case codes.ResourceExhausted:
		return 429
	default:
		return 500
	}
}
