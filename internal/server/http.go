package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/magefree/ep3-server-go/internal/config"
	"github.com/magefree/ep3-server-go/internal/game/battle"
	"github.com/magefree/ep3-server-go/internal/game/field"
	"github.com/magefree/ep3-server-go/internal/storage"
	"github.com/magefree/ep3-server-go/internal/tournament"
)

// AdminHeader carries the admin password on administrative requests.
const AdminHeader = "X-Admin-Password"

// HTTPServer serves the battle websocket and the JSON lobby API.
type HTTPServer struct {
	cfg         config.WebSocketConfig
	adminHash   []byte
	battles     *BattleManager
	tournaments *tournament.Manager
	store       storage.RecordStore
	upgrader    websocket.Upgrader
	logger      *zap.Logger
	srv         *http.Server
}

// NewHTTPServer creates the server. tournaments and store may be nil.
func NewHTTPServer(cfg config.WebSocketConfig, adminHash string, battles *BattleManager, tournaments *tournament.Manager, store storage.RecordStore, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path == "" {
		cfg.Path = "/battle"
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	s := &HTTPServer{
		cfg:         cfg,
		battles:     battles,
		tournaments: tournaments,
		store:       store,
		upgrader:    newUpgrader(cfg),
		logger:      logger,
	}
	if adminHash != "" {
		s.adminHash = []byte(adminHash)
	}
	s.srv = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET "+strings.TrimSuffix(s.cfg.Path, "/")+"/{id}", s.serveBattle)

	mux.HandleFunc("GET /maps", s.handleMaps)
	mux.HandleFunc("GET /battles", s.handleListBattles)
	mux.HandleFunc("POST /battles", s.handleCreateBattle)
	mux.HandleFunc("GET /battles/{id}", s.handleGetBattle)
	mux.HandleFunc("DELETE /battles/{id}", s.admin(s.handleDeleteBattle))
	mux.HandleFunc("POST /battles/{id}/force", s.admin(s.handleForce))

	mux.HandleFunc("GET /records", s.handleListRecords)
	mux.HandleFunc("GET /records/{id}/verify", s.handleVerifyRecord)

	mux.HandleFunc("GET /tournaments", s.handleListTournaments)
	mux.HandleFunc("POST /tournaments", s.admin(s.handleCreateTournament))
	mux.HandleFunc("GET /tournaments/{id}", s.handleGetTournament)
	mux.HandleFunc("DELETE /tournaments/{id}", s.admin(s.handleDeleteTournament))
	mux.HandleFunc("POST /tournaments/{id}/register", s.handleRegister)
	mux.HandleFunc("POST /tournaments/{id}/unregister", s.handleUnregister)
	mux.HandleFunc("POST /tournaments/{id}/start", s.admin(s.handleStartTournament))
	mux.HandleFunc("POST /tournaments/{id}/matches", s.handleCreateMatch)
	mux.HandleFunc("POST /tournaments/{id}/result", s.admin(s.handleTournamentResult))
	return s.logRequests(mux)
}

// ListenAndServe blocks until Shutdown.
func (s *HTTPServer) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("address", s.cfg.Address), zap.String("battle_path", s.cfg.Path))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests. Hijacked websocket connections are
// closed by closing their rooms.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

// admin requires the admin password. Without a configured hash every admin
// route is refused.
func (s *HTTPServer) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		password := r.Header.Get(AdminHeader)
		if len(s.adminHash) == 0 || password == "" ||
			bcrypt.CompareHashAndPassword(s.adminHash, []byte(password)) != nil {
			s.logger.Warn("admin request refused", zap.String("path", r.URL.Path), zap.String("remote", r.RemoteAddr))
			writeError(w, errUnauthorized)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError responds with the google.rpc.Status of err.
func writeError(w http.ResponseWriter, err error) {
	st := errorStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(st.Code()))
	_, _ = w.Write(statusJSON(st))
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest{fmt.Errorf("decode request: %w", err)}
	}
	return nil
}

// badRequest marks a malformed request body.
type badRequest struct{ error }

func (e badRequest) Unwrap() error { return e.error }

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, badRequest{fmt.Errorf("invalid id %q", r.PathValue("id"))}
	}
	return id, nil
}

func (s *HTTPServer) handleMaps(w http.ResponseWriter, r *http.Request) {
	type mapInfo struct {
		MapNumber  uint32 `json:"map_number"`
		Name       string `json:"name"`
		NumPlayers uint8  `json:"num_players"`
	}
	out := []mapInfo{}
	for _, n := range s.battles.Maps() {
		m := s.battles.maps[n]
		out = append(out, mapInfo{MapNumber: n, Name: m.Name, NumPlayers: m.NumPlayers})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleListBattles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.battles.List())
}

func (s *HTTPServer) handleCreateBattle(w http.ResponseWriter, r *http.Request) {
	var req CreateBattleRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	// Tournament battles are opened through the tournament's matches route.
	req.Tournament = nil
	room, err := s.battles.CreateBattle(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room.Info())
}

func (s *HTTPServer) handleGetBattle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	room, err := s.battles.Room(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room.Info())
}

func (s *HTTPServer) handleDeleteBattle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.battles.Remove(id) {
		writeError(w, errRoomNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// forceRequest is an administrative intervention in a running battle.
type forceRequest struct {
	Type         string `json:"type"`
	ClientID     uint8  `json:"client_id"`
	CardID       uint16 `json:"card_id,omitempty"`
	VisibleIndex int    `json:"visible_index,omitempty"`
	SetWinner    bool   `json:"set_winner,omitempty"`
}

func (f forceRequest) command() (battle.Command, error) {
	switch f.Type {
	case "assist":
		return battle.ForceAssistCommand{ClientID: f.ClientID, CardID: f.CardID}, nil
	case "destroy":
		return battle.ForceDestroyCommand{ClientID: f.ClientID, VisibleIndex: f.VisibleIndex}, nil
	case "result":
		return battle.ForceResultCommand{ClientID: f.ClientID, SetWinner: f.SetWinner}, nil
	}
	return nil, badRequest{fmt.Errorf("unknown intervention %q", f.Type)}
}

func (s *HTTPServer) handleForce(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	room, err := s.battles.Room(id)
	if err != nil {
		writeError(w, err)
		return
	}
	var req forceRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	cmd, err := req.command()
	if err != nil {
		writeError(w, err)
		return
	}
	code, err := room.Submit(r.Context(), 0, cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	if code != battle.ErrNone {
		writeError(w, code)
		return
	}
	room.logger.Info("admin intervention", zap.String("command", cmd.Name()), zap.Uint8("client_id", req.ClientID))
	writeJSON(w, http.StatusOK, room.Info())
}

func (s *HTTPServer) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []storage.BattleSummary{})
		return
	}
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, badRequest{fmt.Errorf("invalid limit %q", q)})
			return
		}
		limit = n
	}
	list, err := s.store.ListSummaries(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleVerifyRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.battles.VerifyRecord(r.Context(), id)
	if rec == nil {
		writeError(w, err)
		return
	}
	result := map[string]any{
		"battle_id": rec.BattleID,
		"commands":  len(rec.Entries),
		"digest":    rec.FinalDigest,
		"verified":  err == nil,
	}
	if err != nil {
		result["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) tournament(w http.ResponseWriter, r *http.Request) (*tournament.Tournament, bool) {
	if s.tournaments == nil {
		writeError(w, errTournamentNotFound)
		return nil, false
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	t, ok := s.tournaments.GetTournament(id)
	if !ok {
		writeError(w, errTournamentNotFound)
		return nil, false
	}
	return t, true
}

// saveTournaments persists the bracket state after a change.
func (s *HTTPServer) saveTournaments() {
	if err := s.tournaments.Save(); err != nil {
		s.logger.Error("failed to save tournament state", zap.Error(err))
	}
}

func (s *HTTPServer) handleListTournaments(w http.ResponseWriter, r *http.Request) {
	out := []tournament.Snapshot{}
	if s.tournaments != nil {
		for _, t := range s.tournaments.GetAllTournaments() {
			out = append(out, t.Snapshot())
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type createTournamentRequest struct {
	Name      string       `json:"name"`
	MapNumber uint32       `json:"map_number"`
	NumTeams  int          `json:"num_teams"`
	Flags     uint8        `json:"flags"`
	Rules     *field.Rules `json:"rules,omitempty"`
}

func (s *HTTPServer) handleCreateTournament(w http.ResponseWriter, r *http.Request) {
	if s.tournaments == nil {
		writeError(w, errTournamentNotFound)
		return
	}
	var req createTournamentRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	m, ok := s.battles.maps[req.MapNumber]
	if !ok {
		writeError(w, fmt.Errorf("%w: %d", errUnknownMap, req.MapNumber))
		return
	}
	rules := m.Rules
	if req.Rules != nil {
		rules = *req.Rules
	}
	t, err := s.tournaments.CreateTournament(req.Name, req.MapNumber, rules, req.NumTeams, tournament.Flags(req.Flags))
	if err != nil {
		writeError(w, err)
		return
	}
	s.saveTournaments()
	writeJSON(w, http.StatusCreated, t.Snapshot())
}

func (s *HTTPServer) handleGetTournament(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t.Snapshot())
}

func (s *HTTPServer) handleDeleteTournament(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	s.tournaments.RemoveTournament(t.ID)
	s.saveTournaments()
	w.WriteHeader(http.StatusNoContent)
}

type registerRequest struct {
	Team       int    `json:"team"`
	AccountID  uint32 `json:"account_id"`
	PlayerName string `json:"player_name"`
	TeamName   string `json:"team_name,omitempty"`
	Password   string `json:"password,omitempty"`
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	var req registerRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.AccountID == 0 {
		writeError(w, badRequest{errors.New("account_id is required")})
		return
	}
	if err := t.Register(req.Team, req.AccountID, req.PlayerName, req.TeamName, req.Password); err != nil {
		writeError(w, err)
		return
	}
	s.saveTournaments()
	writeJSON(w, http.StatusOK, t.Snapshot())
}

func (s *HTTPServer) handleUnregister(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	var req struct {
		AccountID uint32 `json:"account_id"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !t.Unregister(req.AccountID) {
		writeError(w, tournament.ErrNoSuchTeam)
		return
	}
	s.saveTournaments()
	writeJSON(w, http.StatusOK, t.Snapshot())
}

func (s *HTTPServer) handleStartTournament(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	if err := t.Start(); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("tournament started", zap.String("tournament", t.Name), zap.Int("teams", t.NumTeams()))
	s.saveTournaments()
	writeJSON(w, http.StatusOK, t.Snapshot())
}

// handleCreateMatch opens the battle for a team's pending match. The
// requesting team plays as battle team 0.
func (s *HTTPServer) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	var req struct {
		Team int `json:"team"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	_, opponent, ok := t.NextMatch(req.Team)
	if !ok {
		writeError(w, tournament.ErrNoPendingMatch)
		return
	}
	if opponent < 0 {
		writeError(w, fmt.Errorf("%w: opponent not decided yet", tournament.ErrNoPendingMatch))
		return
	}
	perTeam := uint8(1)
	if t.Flags&tournament.FlagIs2v2 != 0 {
		perTeam = 2
	}
	rules := t.Rules
	room, err := s.battles.CreateBattle(r.Context(), CreateBattleRequest{
		MapNumber:       t.MapNumber,
		NumPlayers:      2 * perTeam,
		NumTeam0Players: perTeam,
		Rules:           &rules,
		Tournament:      &TournamentLink{TournamentID: t.ID, Teams: [2]int{req.Team, opponent}},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room.Info())
}

func (s *HTTPServer) handleTournamentResult(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tournament(w, r)
	if !ok {
		return
	}
	var req struct {
		Winner int `json:"winner"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := t.ReportResult(req.Winner); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("tournament result set by admin", zap.String("tournament", t.Name), zap.Int("team", req.Winner))
	s.saveTournaments()
	writeJSON(w, http.StatusOK, t.Snapshot())
}
