package tournament

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/magefree/ep3-server-go/internal/game/dice"
	"github.com/magefree/ep3-server-go/internal/game/field"
)

// TeamSnapshot captures team data for external use.
type TeamSnapshot struct {
	Index         int           `json:"index" yaml:"index"`
	Name          string        `json:"name" yaml:"name"`
	MaxPlayers    int           `json:"max_players" yaml:"max_players"`
	Players       []PlayerEntry `json:"players" yaml:"players"`
	RoundsCleared int           `json:"rounds_cleared" yaml:"rounds_cleared"`
	Active        bool          `json:"active" yaml:"active"`
}

// MatchSnapshot describes one non-entry match. Team fields are -1 while the
// side is undecided.
type MatchSnapshot struct {
	Round   int  `json:"round"`
	TeamA   int  `json:"team_a"`
	TeamB   int  `json:"team_b"`
	Winner  int  `json:"winner"`
	Pending bool `json:"pending"`
}

// Snapshot captures a consistent view of a tournament.
type Snapshot struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	MapNumber  uint32          `json:"map_number"`
	Flags      Flags           `json:"flags"`
	State      string          `json:"state"`
	Teams      []TeamSnapshot  `json:"teams"`
	Matches    []MatchSnapshot `json:"matches"`
	CreateTime time.Time       `json:"create_time"`
	StartTime  *time.Time      `json:"start_time,omitempty"`
	EndTime    *time.Time      `json:"end_time,omitempty"`
}

func teamIndex(m *Match) int {
	if m == nil || m.Winner == nil {
		return -1
	}
	return m.Winner.Index
}

// Snapshot returns a copy of the tournament state.
func (t *Tournament) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		ID:         t.ID,
		Name:       t.Name,
		MapNumber:  t.MapNumber,
		Flags:      t.Flags,
		State:      t.state.String(),
		CreateTime: t.CreateTime,
		StartTime:  cloneTime(t.StartTime),
		EndTime:    cloneTime(t.EndTime),
	}
	for _, team := range t.teams {
		s.Teams = append(s.Teams, TeamSnapshot{
			Index:         team.Index,
			Name:          team.Name,
			MaxPlayers:    team.MaxPlayers,
			Players:       append([]PlayerEntry(nil), team.Players...),
			RoundsCleared: team.RoundsCleared,
			Active:        team.Active,
		})
	}
	for _, m := range t.allMatches() {
		_, pending := t.pending[m]
		s.Matches = append(s.Matches, MatchSnapshot{
			Round:   m.Round,
			TeamA:   teamIndex(m.A),
			TeamB:   teamIndex(m.B),
			Winner:  teamIndex(m),
			Pending: pending,
		})
	}
	return s
}

// allMatches lists the non-entry matches round by round.
func (t *Tournament) allMatches() []*Match {
	var out []*Match
	current := t.zeroRound
	for len(current) > 1 {
		var next []*Match
		for z := 0; z < len(current); z += 2 {
			next = append(next, current[z].following)
		}
		out = append(out, next...)
		current = next
	}
	return out
}

func cloneTime(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	cp := *src
	return &cp
}

type savedTeam struct {
	MaxPlayers    int           `yaml:"max_players"`
	Players       []PlayerEntry `yaml:"players"`
	Name          string        `yaml:"name"`
	Password      string        `yaml:"password"`
	RoundsCleared int           `yaml:"rounds_cleared"`
}

type savedTournament struct {
	ID                     uuid.UUID   `yaml:"id"`
	Name                   string      `yaml:"name"`
	MapNumber              uint32      `yaml:"map_number"`
	Rules                  field.Rules `yaml:"rules"`
	Flags                  Flags       `yaml:"flags"`
	RegistrationIsComplete bool        `yaml:"registration_complete"`
	CreateTime             time.Time   `yaml:"create_time"`
	Teams                  []savedTeam `yaml:"teams"`
}

func (t *Tournament) saved() savedTournament {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := savedTournament{
		ID:                     t.ID,
		Name:                   t.Name,
		MapNumber:              t.MapNumber,
		Rules:                  t.Rules,
		Flags:                  t.Flags,
		RegistrationIsComplete: t.state != StateRegistration,
		CreateTime:             t.CreateTime,
	}
	for _, team := range t.teams {
		s.Teams = append(s.Teams, savedTeam{
			MaxPlayers:    team.MaxPlayers,
			Players:       append([]PlayerEntry(nil), team.Players...),
			Name:          team.Name,
			Password:      team.Password,
			RoundsCleared: team.RoundsCleared,
		})
	}
	return s
}

// restore rebuilds a tournament from saved state, replaying each team's
// cleared rounds through the bracket.
func restore(s savedTournament, comDecks []string, rng dice.Source) (*Tournament, error) {
	t := newTournament(s.Name, s.MapNumber, s.Rules, s.Flags, comDecks, rng)
	t.ID = s.ID
	t.CreateTime = s.CreateTime

	cleared := make([]int, len(s.Teams))
	for i, st := range s.Teams {
		team := &Team{
			Index:      i,
			MaxPlayers: st.MaxPlayers,
			Players:    append([]PlayerEntry(nil), st.Players...),
			Name:       st.Name,
			Password:   st.Password,
			Active:     true,
		}
		for _, p := range team.Players {
			if p.IsHuman() {
				t.accounts[p.AccountID] = struct{}{}
			}
		}
		t.teams = append(t.teams, team)
		cleared[i] = st.RoundsCleared
	}
	if !s.RegistrationIsComplete {
		return t, nil
	}
	n := len(t.teams)
	if n < MinTeams || n > MaxTeams || n&(n-1) != 0 {
		return nil, ErrInvalidTeamCount
	}

	t.state = StateInProgress
	t.createBracket()

	queue := make(map[*Match]struct{})
	for _, m := range t.zeroRound {
		queue[m.following] = struct{}{}
	}
	for len(queue) > 0 {
		var m *Match
		for m = range queue {
			break
		}
		delete(queue, m)

		if m.A.Winner == nil || m.B.Winner == nil {
			return nil, fmt.Errorf("%w: preceding matches are not resolved", ErrInconsistentResult)
		}
		a, b := &cleared[m.A.Winner.Index], &cleared[m.B.Winner.Index]
		switch {
		case *a > 0 && *b > 0:
			return nil, fmt.Errorf("%w: both teams won the same match", ErrInconsistentResult)
		case *a == 0 && *b == 0:
			continue
		case *a > 0:
			*a--
			if err := t.setWinnerWithoutTriggers(m, m.A.Winner); err != nil {
				return nil, err
			}
		default:
			*b--
			if err := t.setWinnerWithoutTriggers(m, m.B.Winner); err != nil {
				return nil, err
			}
		}
		if f := m.following; f != nil && f.A.Winner != nil && f.B.Winner != nil {
			queue[f] = struct{}{}
		}
	}

	// A match is pending once either side of it is decided.
	for _, m := range t.allMatches() {
		if m.Winner == nil && (m.A.Winner != nil || m.B.Winner != nil) {
			t.pending[m] = struct{}{}
		}
	}
	if (t.final.Winner == nil) == (len(t.pending) == 0) {
		return nil, fmt.Errorf("%w: pending matches do not match final result", ErrInconsistentResult)
	}
	if t.final.Winner != nil {
		t.state = StateComplete
	}
	return t, nil
}

// Manager holds every tournament and persists them to a state file.
type Manager struct {
	tournaments map[uuid.UUID]*Tournament
	byName      map[string]uuid.UUID
	statePath   string
	comDecks    []string
	rng         dice.Source
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewManager creates a tournament manager. An empty statePath disables
// persistence.
func NewManager(statePath string, comDecks []string, rng dice.Source, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = dice.NewGenerator(time.Now().UnixNano())
	}
	return &Manager{
		tournaments: make(map[uuid.UUID]*Tournament),
		byName:      make(map[string]uuid.UUID),
		statePath:   statePath,
		comDecks:    comDecks,
		rng:         rng,
		logger:      logger,
	}
}

// CreateTournament creates a new tournament with a unique name.
func (m *Manager) CreateTournament(name string, mapNumber uint32, rules field.Rules, numTeams int, flags Flags) (*Tournament, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byName[name]; exists {
		return nil, fmt.Errorf("tournament %q already exists", name)
	}
	t, err := New(name, mapNumber, rules, numTeams, flags, m.comDecks, m.rng)
	if err != nil {
		return nil, err
	}
	m.tournaments[t.ID] = t
	m.byName[name] = t.ID

	m.logger.Info("tournament created",
		zap.String("tournament_id", t.ID.String()),
		zap.String("name", name),
		zap.Uint32("map_number", mapNumber),
		zap.Int("teams", numTeams),
	)
	return t, nil
}

// GetTournament retrieves a tournament by ID.
func (m *Manager) GetTournament(id uuid.UUID) (*Tournament, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tournaments[id]
	return t, ok
}

// GetTournamentByName retrieves a tournament by name.
func (m *Manager) GetTournamentByName(name string) (*Tournament, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	return m.tournaments[id], true
}

// RemoveTournament removes a tournament.
func (m *Manager) RemoveTournament(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tournaments[id]
	if !ok {
		return false
	}
	delete(m.tournaments, id)
	delete(m.byName, t.Name)
	m.logger.Info("tournament removed", zap.String("tournament_id", id.String()))
	return true
}

// GetAllTournaments returns all tournaments ordered by creation time.
func (m *Manager) GetAllTournaments() []*Tournament {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Tournament, 0, len(m.tournaments))
	for _, t := range m.tournaments {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreateTime.Before(out[j].CreateTime) })
	return out
}

// GetActiveTournamentCount returns the count of unfinished tournaments.
func (m *Manager) GetActiveTournamentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, t := range m.tournaments {
		if t.State() != StateComplete {
			count++
		}
	}
	return count
}

// WriteState encodes every tournament as YAML.
func (m *Manager) WriteState(w io.Writer) error {
	var all []savedTournament
	for _, t := range m.GetAllTournaments() {
		all = append(all, t.saved())
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(all); err != nil {
		return fmt.Errorf("encode tournament state: %w", err)
	}
	return enc.Close()
}

// ReadState replaces the manager's tournaments with those decoded from r.
func (m *Manager) ReadState(r io.Reader) error {
	var all []savedTournament
	if err := yaml.NewDecoder(r).Decode(&all); err != nil && err != io.EOF {
		return fmt.Errorf("decode tournament state: %w", err)
	}
	tournaments := make(map[uuid.UUID]*Tournament, len(all))
	byName := make(map[string]uuid.UUID, len(all))
	for _, s := range all {
		t, err := restore(s, m.comDecks, m.rng)
		if err != nil {
			return fmt.Errorf("restore tournament %q: %w", s.Name, err)
		}
		tournaments[t.ID] = t
		byName[t.Name] = t.ID
	}

	m.mu.Lock()
	m.tournaments = tournaments
	m.byName = byName
	m.mu.Unlock()
	m.logger.Info("tournament state loaded", zap.Int("tournaments", len(tournaments)))
	return nil
}

// Save writes the state file, replacing it atomically.
func (m *Manager) Save() error {
	if m.statePath == "" {
		return nil
	}
	tmp, err := os.CreateTemp(filepath.Dir(m.statePath), ".tournaments-*")
	if err != nil {
		return fmt.Errorf("save tournament state: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := m.WriteState(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save tournament state: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.statePath); err != nil {
		return fmt.Errorf("save tournament state: %w", err)
	}
	return nil
}

// Load reads the state file. A missing file leaves the manager empty.
func (m *Manager) Load() error {
	if m.statePath == "" {
		return nil
	}
	f, err := os.Open(m.statePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load tournament state: %w", err)
	}
	defer f.Close()
	return m.ReadState(f)
}
