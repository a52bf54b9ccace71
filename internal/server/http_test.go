package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/magefree/ep3-server-go/internal/config"
	"github.com/magefree/ep3-server-go/internal/tournament"
)

const testAdminPassword = "hunter2"

type apiFixture struct {
	srv     *httptest.Server
	battles *BattleManager
	tm      *tournament.Manager
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	tm := tournament.NewManager(filepath.Join(t.TempDir(), "tournaments.yaml"), []string{"COM:Hunters"}, nil, zaptest.NewLogger(t))
	battles, _ := newTestManager(t, tm)
	h := NewHTTPServer(config.WebSocketConfig{
		Path:         "/battle",
		PingInterval: time.Second,
		WriteTimeout: time.Second,
	}, string(hash), battles, tm, nil, zaptest.NewLogger(t))
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)
	return &apiFixture{srv: srv, battles: battles, tm: tm}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, admin bool) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	if admin {
		req.Header.Set(AdminHeader, testAdminPassword)
	}
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func (f *apiFixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f map[string]any
		require.NoError(t, conn.ReadJSON(&f))
		if f["type"] == frameType {
			return f
		}
	}
}

func TestBattleLifecycleOverHTTP(t *testing.T) {
	api := newAPI(t)

	resp, body := api.do(t, http.MethodGet, "/maps", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"Test Field"`)

	resp, body = api.do(t, http.MethodPost, "/battles", CreateBattleRequest{MapNumber: 1, NumPlayers: 2}, false)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var info RoomInfo
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, uint32(1), info.MapNumber)

	resp, body = api.do(t, http.MethodGet, "/battles", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []RoomInfo
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, info.ID, list[0].ID)

	resp, _ = api.do(t, http.MethodDelete, "/battles/"+info.ID.String(), nil, false)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = api.do(t, http.MethodDelete, "/battles/"+info.ID.String(), nil, true)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = api.do(t, http.MethodGet, "/battles/"+info.ID.String(), nil, false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateBattleRejectsUnknownFields(t *testing.T) {
	api := newAPI(t)
	resp, body := api.do(t, http.MethodPost, "/battles", map[string]any{"map_number": 1, "cheat": true}, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "decode request")
}

func TestWebSocketPlayAndWatch(t *testing.T) {
	api := newAPI(t)
	room, err := api.battles.CreateBattle(t.Context(), CreateBattleRequest{MapNumber: 1, NumPlayers: 2})
	require.NoError(t, err)
	path := "/battle/" + room.ID.String()

	player := api.dial(t, path+"?seat=0")
	joined := readUntil(t, player, frameJoined)
	assert.EqualValues(t, 0, joined["data"].(map[string]any)["seat"])

	watcher := api.dial(t, path)
	readUntil(t, watcher, frameJoined)

	_, err = api.battles.Room(room.ID)
	require.NoError(t, err)
	_, err = room.attach(0)
	assert.ErrorIs(t, err, errSeatTaken)

	// The payload's client ID is ignored in favor of the seat.
	require.NoError(t, player.WriteJSON(inboundFrame{
		Seq:     3,
		Type:    "redraw_hand",
		Payload: json.RawMessage(`{"ClientID": 1}`),
	}))
	f := readUntil(t, player, frameError)
	assert.EqualValues(t, 3, f["seq"])
	ev := readUntil(t, watcher, frameEvent)
	assert.Equal(t, "ActionResult", ev["event"])
	status := f["status"].(map[string]any)
	assert.Contains(t, status["message"], "wrong phase")

	require.NoError(t, player.WriteJSON(inboundFrame{Seq: 4, Type: "set_map"}))
	f = readUntil(t, player, frameError)
	assert.Contains(t, f["status"].(map[string]any)["message"], "unknown command")

	require.NoError(t, watcher.WriteJSON(inboundFrame{Seq: 1, Type: "end_turn"}))
	f = readUntil(t, watcher, frameError)
	assert.Contains(t, f["status"].(map[string]any)["message"], "watchers cannot send commands")

	resp, _ := api.do(t, http.MethodGet, "/battle/"+room.ID.String()+"?seat=9", nil, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestForceResultEndsBattle(t *testing.T) {
	api := newAPI(t)
	room, err := api.battles.CreateBattle(t.Context(), CreateBattleRequest{MapNumber: 1, NumPlayers: 2})
	require.NoError(t, err)
	playToMainBattle(t, room)

	path := "/battles/" + room.ID.String() + "/force"
	resp, body := api.do(t, http.MethodPost, path, forceRequest{Type: "explode"}, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	resp, body = api.do(t, http.MethodPost, path, forceRequest{Type: "result", ClientID: 0, SetWinner: true}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var info RoomInfo
	require.NoError(t, json.Unmarshal(body, &info))
	assert.True(t, info.Ended)

	resp, body = api.do(t, http.MethodGet, "/records/"+room.ID.String()+"/verify", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var verify map[string]any
	require.NoError(t, json.Unmarshal(body, &verify))
	assert.Equal(t, true, verify["verified"])
}

func TestTournamentRoutes(t *testing.T) {
	api := newAPI(t)

	resp, body := api.do(t, http.MethodPost, "/tournaments", createTournamentRequest{Name: "Cup", MapNumber: 1, NumTeams: 4}, false)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = api.do(t, http.MethodPost, "/tournaments", createTournamentRequest{
		Name: "Cup", MapNumber: 1, NumTeams: 4, Flags: uint8(tournament.FlagHasCOMTeams),
	}, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var snap tournament.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	base := "/tournaments/" + snap.ID.String()

	resp, body = api.do(t, http.MethodPost, base+"/register", registerRequest{Team: 0, AccountID: 7, PlayerName: "Kranz", TeamName: "Reds", Password: "pw"}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	resp, _ = api.do(t, http.MethodPost, base+"/register", registerRequest{Team: 0, AccountID: 8, PlayerName: "Ino"}, false)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "1v1 team is full")
	resp, _ = api.do(t, http.MethodPost, base+"/register", registerRequest{Team: 1, AccountID: 7, PlayerName: "Kranz"}, false)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = api.do(t, http.MethodPost, base+"/start", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, tournament.StateInProgress.String(), snap.State)

	// Team 1 is a COM team, so team 0 plays it in round 1.
	resp, body = api.do(t, http.MethodPost, base+"/matches", map[string]int{"team": 0}, false)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var info RoomInfo
	require.NoError(t, json.Unmarshal(body, &info))
	require.NotNil(t, info.Tournament)
	assert.Equal(t, [2]int{0, 1}, info.Tournament.Teams)

	resp, body = api.do(t, http.MethodPost, base+"/result", map[string]int{"winner": 0}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = api.do(t, http.MethodGet, "/tournaments", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []tournament.Snapshot
	require.NoError(t, json.Unmarshal(body, &all))
	require.Len(t, all, 1)
	assert.Equal(t, "Cup", all[0].Name)
}
