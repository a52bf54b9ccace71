package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magefree/ep3-server-go/internal/game/battle"
	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/dice"
	"github.com/magefree/ep3-server-go/internal/game/field"
	"github.com/magefree/ep3-server-go/internal/game/record"
	"github.com/magefree/ep3-server-go/internal/storage"
	"github.com/magefree/ep3-server-go/internal/tournament"
)

// MapCatalog holds the maps battles can be played on, by map number.
type MapCatalog map[uint32]*field.MapAndRules

// LoadMaps reads every .yaml or .yml map file in dir.
func LoadMaps(dir string, logger *zap.Logger) (MapCatalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read maps dir: %w", err)
	}
	out := make(MapCatalog)
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		m, err := field.LoadMapFile(filepath.Join(dir, e.Name()), logger)
		if err != nil {
			return nil, fmt.Errorf("load map %s: %w", e.Name(), err)
		}
		if _, dup := out[m.MapNumber]; dup {
			return nil, fmt.Errorf("load map %s: map number %d already loaded", e.Name(), m.MapNumber)
		}
		out[m.MapNumber] = m
	}
	return out, nil
}

// ManagerConfig configures a BattleManager.
type ManagerConfig struct {
	MaxBattles int
	Settings   record.Settings
	// RecordsDir, when set, also receives every finished record as a file.
	RecordsDir string
	// SaveTimeout bounds storing a finished record.
	SaveTimeout time.Duration
}

// CreateBattleRequest selects the map and seating of a new battle.
type CreateBattleRequest struct {
	MapNumber  uint32 `json:"map_number"`
	NumPlayers uint8  `json:"num_players"`
	// NumTeam0Players defaults to half of NumPlayers.
	NumTeam0Players uint8           `json:"num_team0_players,omitempty"`
	Rules           *field.Rules    `json:"rules,omitempty"`
	Tournament      *TournamentLink `json:"tournament,omitempty"`
}

// BattleManager owns every live battle room.
type BattleManager struct {
	mu          sync.RWMutex
	rooms       map[uuid.UUID]*Room
	cfg         ManagerConfig
	index       cards.Lookup
	maps        MapCatalog
	store       storage.RecordStore
	tournaments *tournament.Manager
	logger      *zap.Logger
	newSeed     func() (int64, error)
	now         func() time.Time
}

// NewBattleManager creates a manager. store and tournaments may be nil.
func NewBattleManager(index cards.Lookup, maps MapCatalog, store storage.RecordStore, tournaments *tournament.Manager, cfg ManagerConfig, logger *zap.Logger) *BattleManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBattles <= 0 {
		cfg.MaxBattles = 64
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 10 * time.Second
	}
	return &BattleManager{
		rooms:       make(map[uuid.UUID]*Room),
		cfg:         cfg,
		index:       index,
		maps:        maps,
		store:       store,
		tournaments: tournaments,
		logger:      logger,
		newSeed:     dice.NewSeed,
		now:         time.Now,
	}
}

// Maps returns the sorted map numbers available.
func (m *BattleManager) Maps() []uint32 {
	out := make([]uint32, 0, len(m.maps))
	for n := range m.maps {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CreateBattle opens a room on the requested map. Ended rooms are evicted
// when the manager is full.
func (m *BattleManager) CreateBattle(ctx context.Context, req CreateBattleRequest) (*Room, error) {
	tmpl, ok := m.maps[req.MapNumber]
	if !ok {
		return nil, fmt.Errorf("%w: %d", errUnknownMap, req.MapNumber)
	}
	if req.NumPlayers == 0 {
		req.NumPlayers = battle.MaxClients
	}
	if req.NumPlayers < 2 || req.NumPlayers > battle.MaxClients {
		return nil, fmt.Errorf("%w: %d players", errBadSeat, req.NumPlayers)
	}
	if req.NumTeam0Players == 0 {
		req.NumTeam0Players = req.NumPlayers / 2
	}
	if req.NumTeam0Players >= req.NumPlayers {
		return nil, fmt.Errorf("%w: team 0 has %d of %d players", errBadSeat, req.NumTeam0Players, req.NumPlayers)
	}
	settings := m.cfg.Settings
	if req.Tournament != nil {
		if m.tournaments == nil {
			return nil, errTournamentNotFound
		}
		if _, ok := m.tournaments.GetTournament(req.Tournament.TournamentID); !ok {
			return nil, fmt.Errorf("tournament %s: %w", req.Tournament.TournamentID, errTournamentNotFound)
		}
		settings.Tournament = true
	}

	m.mu.Lock()
	if len(m.rooms) >= m.cfg.MaxBattles {
		m.evictEndedLocked()
	}
	if len(m.rooms) >= m.cfg.MaxBattles {
		m.mu.Unlock()
		return nil, errRoomFull
	}
	seed, err := m.newSeed()
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("create battle: %w", err)
	}
	room := &Room{
		MapNumber: req.MapNumber,
		CreatedAt: m.now().UTC(),
		Link:      req.Tournament,
		watchers:  make(map[*peer]struct{}),
		onEnd:     m.battleEnded,
	}
	room.recorder = record.NewRecorder(m.index, seed, settings, battle.Options{
		Logger:      m.logger.Named("battle"),
		Broadcaster: room,
		Now:         m.now,
	})
	room.ID = room.recorder.Battle().ID
	room.logger = m.logger.With(zap.String("battle_id", room.ID.String()))
	m.rooms[room.ID] = room
	m.mu.Unlock()

	mr := *tmpl
	mr.NumPlayers = req.NumPlayers
	mr.NumTeam0Players = req.NumTeam0Players
	mr.NumPlayersPerTeam = 0
	if req.Rules != nil {
		mr.Rules = *req.Rules
	}
	if _, err := room.Submit(ctx, 0, battle.SetMapCommand{MapAndRules: mr}); err != nil {
		m.Remove(room.ID)
		return nil, err
	}
	room.logger.Info("battle created",
		zap.Uint32("map_number", req.MapNumber),
		zap.Uint8("num_players", req.NumPlayers),
		zap.Bool("tournament", req.Tournament != nil))
	return room, nil
}

func (m *BattleManager) evictEndedLocked() {
	for id, r := range m.rooms {
		if r.Ended() {
			r.close()
			delete(m.rooms, id)
		}
	}
}

// Room returns a live room.
func (m *BattleManager) Room(id uuid.UUID) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, errRoomNotFound
	}
	return r, nil
}

// List returns every live room, oldest first.
func (m *BattleManager) List() []RoomInfo {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Remove closes a room and forgets it.
func (m *BattleManager) Remove(id uuid.UUID) bool {
	m.mu.Lock()
	r, ok := m.rooms[id]
	delete(m.rooms, id)
	m.mu.Unlock()
	if ok {
		r.close()
	}
	return ok
}

// Close disconnects every room.
func (m *BattleManager) Close() {
	m.mu.Lock()
	rooms := m.rooms
	m.rooms = make(map[uuid.UUID]*Room)
	m.mu.Unlock()
	for _, r := range rooms {
		r.close()
	}
}

// battleEnded stores the record and reports tournament results.
func (m *BattleManager) battleEnded(room *Room, rec *record.Record, summary storage.BattleSummary) {
	log := room.logger
	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SaveTimeout)
		if err := m.store.SaveRecord(ctx, summary, rec); err != nil {
			log.Error("failed to store battle record", zap.Error(err))
		}
		cancel()
	}
	if m.cfg.RecordsDir != "" {
		if err := record.SaveToFile(m.cfg.RecordsDir, rec); err != nil {
			log.Error("failed to write battle record file", zap.Error(err))
		}
	}

	if room.Link == nil || m.tournaments == nil || summary.WinnerTeam < 0 {
		return
	}
	t, ok := m.tournaments.GetTournament(room.Link.TournamentID)
	if !ok {
		log.Warn("tournament of finished battle is gone", zap.String("tournament_id", room.Link.TournamentID.String()))
		return
	}
	team := room.Link.Teams[summary.WinnerTeam&1]
	if err := t.ReportResult(team); err != nil {
		log.Error("failed to report tournament result", zap.Int("team", team), zap.Error(err))
		return
	}
	log.Info("tournament result reported", zap.String("tournament", t.Name), zap.Int("team", team))
	if err := m.tournaments.Save(); err != nil {
		log.Error("failed to save tournament state", zap.Error(err))
	}
}

// VerifyRecord loads a stored record and replays it.
func (m *BattleManager) VerifyRecord(ctx context.Context, id uuid.UUID) (*record.Record, error) {
	var (
		rec *record.Record
		err error
	)
	switch {
	case m.store != nil:
		rec, err = m.store.LoadRecord(ctx, id)
	case m.cfg.RecordsDir != "":
		rec, err = record.LoadFromFile(m.cfg.RecordsDir, id)
		if errors.Is(err, fs.ErrNotExist) {
			err = storage.ErrNotFound
		}
	default:
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := record.Replay(m.index, rec, battle.Options{Logger: m.logger.Named("replay")}); err != nil {
		return rec, err
	}
	return rec, nil
}
