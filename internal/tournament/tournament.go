// Package tournament runs single-elimination brackets of one- or two-player
// teams. Empty seats can be filled with COM decks, and matches between teams
// with no human players are resolved without a battle.
package tournament

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magefree/ep3-server-go/internal/game/dice"
	"github.com/magefree/ep3-server-go/internal/game/field"
)

// State is the lifecycle stage of a tournament.
type State int

const (
	StateRegistration State = iota
	StateInProgress
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateRegistration:
		return "REGISTRATION"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// Flags select optional tournament behavior.
type Flags uint8

const (
	FlagIs2v2 Flags = 1 << iota
	// FlagHasCOMTeams fills teams without any entrant with COM decks.
	FlagHasCOMTeams
	// FlagShuffleEntries randomizes the bracket on start.
	FlagShuffleEntries
	// FlagResizeOnStart drops empty halves of the bracket on start.
	FlagResizeOnStart
)

const (
	MinTeams = 4
	MaxTeams = 32
)

var (
	ErrAlreadyStarted     = errors.New("tournament has already started")
	ErrNotStarted         = errors.New("tournament is not in progress")
	ErrTeamFull           = errors.New("team is full")
	ErrWrongPassword      = errors.New("incorrect password")
	ErrAlreadyRegistered  = errors.New("player already registered in same tournament")
	ErrNoSuchTeam         = errors.New("no such team")
	ErrNotEnoughEntrants  = errors.New("not enough registrants to start tournament")
	ErrNotEnoughCOMDecks  = errors.New("not enough COM decks to complete team")
	ErrNoPendingMatch     = errors.New("team has no pending match")
	ErrInvalidTeamCount   = errors.New("team count must be a power of 2 between 4 and 32")
	ErrInconsistentResult = errors.New("saved results are inconsistent")
)

// PlayerEntry is one seat on a team: a human account or a COM deck.
type PlayerEntry struct {
	AccountID uint32 `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	COMDeck   string `json:"com_deck,omitempty" yaml:"com_deck,omitempty"`
}

func (p PlayerEntry) IsCOM() bool   { return p.COMDeck != "" }
func (p PlayerEntry) IsHuman() bool { return p.AccountID != 0 }

// Team is a bracket entry.
type Team struct {
	Index         int
	MaxPlayers    int
	Players       []PlayerEntry
	Name          string
	Password      string
	RoundsCleared int
	Active        bool
}

func (t *Team) HasHumans() bool {
	return t.NumHumans() > 0
}

func (t *Team) NumHumans() int {
	n := 0
	for _, p := range t.Players {
		if p.IsHuman() {
			n++
		}
	}
	return n
}

func (t *Team) NumCOMs() int {
	n := 0
	for _, p := range t.Players {
		if p.IsCOM() {
			n++
		}
	}
	return n
}

func (t *Team) String() string {
	active := "active"
	if !t.Active {
		active = "inactive"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[Team/%d %s %dH/%dC/%dP name=%s rounds=%d", t.Index, active,
		t.NumHumans(), t.NumCOMs(), t.MaxPlayers, t.Name, t.RoundsCleared)
	for _, p := range t.Players {
		if p.IsHuman() {
			fmt.Fprintf(&b, " %08X", p.AccountID)
			if p.Name != "" {
				fmt.Fprintf(&b, " (%s)", p.Name)
			}
		}
	}
	b.WriteByte(']')
	return b.String()
}

// Match is a node of the bracket. Zero-round matches have no preceding
// matches; their winner is the entrant team itself.
type Match struct {
	Round     int
	A, B      *Match
	following *Match
	Winner    *Team
}

func newEntryMatch(team *Team) *Match {
	return &Match{Winner: team}
}

func newMatch(a, b *Match) *Match {
	m := &Match{Round: a.Round + 1, A: a, B: b}
	a.following = m
	b.following = m
	return m
}

// Opponent returns the team facing team in m.
func (m *Match) Opponent(team *Team) (*Team, error) {
	if m.A == nil || m.B == nil {
		return nil, fmt.Errorf("zero-round matches do not have opponents")
	}
	switch team {
	case m.A.Winner:
		return m.B.Winner, nil
	case m.B.Winner:
		return m.A.Winner, nil
	}
	return nil, fmt.Errorf("team %d is not registered for this match", team.Index)
}

func (m *Match) String() string {
	winner := "(none)"
	if m.Winner != nil {
		winner = m.Winner.String()
	}
	return fmt.Sprintf("[Match round=%d winner=%s]", m.Round, winner)
}

// Tournament is a single-elimination bracket.
type Tournament struct {
	ID         uuid.UUID
	Name       string
	MapNumber  uint32
	Rules      field.Rules
	Flags      Flags
	CreateTime time.Time
	StartTime  *time.Time
	EndTime    *time.Time

	state     State
	teams     []*Team
	zeroRound []*Match
	final     *Match
	pending   map[*Match]struct{}
	accounts  map[uint32]struct{}
	comDecks  []string
	rng       dice.Source
	now       func() time.Time
	mu        sync.RWMutex
}

// New creates a tournament with numTeams empty teams.
func New(name string, mapNumber uint32, rules field.Rules, numTeams int, flags Flags, comDecks []string, rng dice.Source) (*Tournament, error) {
	if numTeams < MinTeams || numTeams > MaxTeams || numTeams&(numTeams-1) != 0 {
		return nil, ErrInvalidTeamCount
	}
	t := newTournament(name, mapNumber, rules, flags, comDecks, rng)
	maxPlayers := 1
	if flags&FlagIs2v2 != 0 {
		maxPlayers = 2
	}
	for len(t.teams) < numTeams {
		t.teams = append(t.teams, &Team{Index: len(t.teams), MaxPlayers: maxPlayers, Active: true})
	}
	return t, nil
}

func newTournament(name string, mapNumber uint32, rules field.Rules, flags Flags, comDecks []string, rng dice.Source) *Tournament {
	if rng == nil {
		rng = dice.NewGenerator(time.Now().UnixNano())
	}
	return &Tournament{
		ID:         uuid.New(),
		Name:       name,
		MapNumber:  mapNumber,
		Rules:      rules,
		Flags:      flags,
		CreateTime: time.Now(),
		state:      StateRegistration,
		pending:    make(map[*Match]struct{}),
		accounts:   make(map[uint32]struct{}),
		comDecks:   append([]string(nil), comDecks...),
		rng:        rng,
		now:        time.Now,
	}
}

// State returns the current lifecycle stage.
func (t *Tournament) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// NumTeams returns the current bracket size.
func (t *Tournament) NumTeams() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.teams)
}

// Register adds a human player to a team. The first player to join an empty
// team names it and sets its password.
func (t *Tournament) Register(teamIndex int, accountID uint32, playerName, teamName, password string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateRegistration {
		return ErrAlreadyStarted
	}
	if teamIndex < 0 || teamIndex >= len(t.teams) {
		return ErrNoSuchTeam
	}
	team := t.teams[teamIndex]
	if len(team.Players) >= team.MaxPlayers {
		return ErrTeamFull
	}
	if team.Name != "" && password != team.Password {
		return ErrWrongPassword
	}
	if _, exists := t.accounts[accountID]; exists {
		return ErrAlreadyRegistered
	}
	t.accounts[accountID] = struct{}{}
	team.Players = append(team.Players, PlayerEntry{AccountID: accountID, Name: playerName})
	if team.Name == "" {
		team.Name = teamName
		team.Password = password
	}
	return nil
}

// Unregister removes a player. After the tournament has started, the
// player's team forfeits its pending match.
func (t *Tournament) Unregister(accountID uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, team := range t.teams {
		for i, p := range team.Players {
			if !p.IsHuman() || p.AccountID != accountID {
				continue
			}
			team.Players = append(team.Players[:i], team.Players[i+1:]...)
			if len(team.Players) == 0 {
				team.Name = ""
				team.Password = ""
			}
			if t.state == StateRegistration {
				delete(t.accounts, accountID)
				return true
			}
			for m := range t.pending {
				if m.A.Winner == team {
					t.setWinner(m, m.B.Winner)
					break
				} else if m.B.Winner == team {
					t.setWinner(m, m.A.Winner)
					break
				}
			}
			return true
		}
	}
	return false
}

// Start closes registration and builds the bracket.
func (t *Tournament) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateRegistration {
		return ErrAlreadyStarted
	}
	hasCOMTeams := t.Flags&FlagHasCOMTeams != 0

	humanTeams := 0
	for _, team := range t.teams {
		if team.HasHumans() {
			humanTeams++
		}
	}
	required := 2
	if hasCOMTeams {
		required = 1
	}
	if humanTeams < required {
		return ErrNotEnoughEntrants
	}

	for _, team := range t.teams {
		missing := team.MaxPlayers - len(team.Players)
		if (hasCOMTeams || len(team.Players) > 0) && missing > len(t.comDecks) {
			return ErrNotEnoughCOMDecks
		}
	}

	if t.Flags&FlagShuffleEntries != 0 && t.Flags&FlagResizeOnStart != 0 {
		// Pack human teams at the front so the resize below can drop the
		// most empty halves; the shuffle reorders them afterward.
		w := 0
		for r := range t.teams {
			if t.teams[r].HasHumans() {
				t.teams[r], t.teams[w] = t.teams[w], t.teams[r]
				w++
			}
		}
	}

	if t.Flags&FlagResizeOnStart != 0 {
		for len(t.teams) > MinTeams {
			half := len(t.teams) >> 1
			occupied := false
			for _, team := range t.teams[half:] {
				if team.HasHumans() {
					occupied = true
					break
				}
			}
			if occupied {
				break
			}
			t.teams = t.teams[:half]
		}
	}

	if t.Flags&FlagShuffleEntries != 0 {
		for z := len(t.teams); z > 0; z-- {
			i := int(t.rng.Raw() % uint32(z))
			t.teams[z-1], t.teams[i] = t.teams[i], t.teams[z-1]
		}
	}
	for i, team := range t.teams {
		team.Index = i
	}

	t.state = StateInProgress
	now := t.now()
	t.StartTime = &now
	t.createBracket()

	for z, m := range t.zeroRound {
		team := m.Winner
		if team.Name == "" {
			if hasCOMTeams {
				team.Name = fmt.Sprintf("COM:%d", z)
			} else {
				team.Name = "(no entrant)"
			}
		}
		if hasCOMTeams || len(team.Players) > 0 {
			for len(team.Players) < team.MaxPlayers {
				deck := t.comDecks[int(t.rng.Raw()%uint32(len(t.comDecks)))]
				team.Players = append(team.Players, PlayerEntry{COMDeck: deck})
			}
		}
	}

	for _, m := range t.zeroRound {
		t.onWinnerSet(m)
	}
	return nil
}

func (t *Tournament) createBracket() {
	t.zeroRound = t.zeroRound[:0]
	for _, team := range t.teams {
		t.zeroRound = append(t.zeroRound, newEntryMatch(team))
	}
	current := t.zeroRound
	for len(current) > 1 {
		next := make([]*Match, 0, len(current)/2)
		for z := 0; z < len(current); z += 2 {
			next = append(next, newMatch(current[z], current[z+1]))
		}
		current = next
	}
	t.final = current[0]
}

// resolveIfSkippable decides m without a battle when at most one side has
// humans on it. It reports whether m has a winner.
func (t *Tournament) resolveIfSkippable(m *Match) bool {
	if m.Winner != nil {
		return true
	}
	a, b := m.A.Winner, m.B.Winner
	if a == nil || b == nil {
		return false
	}
	if (len(a.Players) == 0) != (len(b.Players) == 0) {
		if len(a.Players) == 0 {
			t.setWinner(m, b)
		} else {
			t.setWinner(m, a)
		}
		return true
	}
	if !a.HasHumans() && !b.HasHumans() {
		if t.rng.Raw()&1 != 0 {
			t.setWinner(m, b)
		} else {
			t.setWinner(m, a)
		}
		return true
	}
	return false
}

func (t *Tournament) setWinnerWithoutTriggers(m *Match, team *Team) error {
	if m.A == nil || m.B == nil {
		return fmt.Errorf("winner set on zero-round match")
	}
	if team != m.A.Winner && team != m.B.Winner {
		return fmt.Errorf("team %d did not participate in match", team.Index)
	}
	m.Winner = team
	team.RoundsCleared++
	if team == m.A.Winner {
		m.B.Winner.Active = false
	} else {
		m.A.Winner.Active = false
	}
	return nil
}

func (t *Tournament) setWinner(m *Match, team *Team) {
	if err := t.setWinnerWithoutTriggers(m, team); err != nil {
		panic(err)
	}
	t.onWinnerSet(m)
}

func (t *Tournament) onWinnerSet(m *Match) {
	delete(t.pending, m)
	if f := m.following; f != nil && !t.resolveIfSkippable(f) {
		t.pending[f] = struct{}{}
	}
	if len(t.pending) == 0 && t.state != StateComplete {
		t.state = StateComplete
		now := t.now()
		t.EndTime = &now
	}
}

func (t *Tournament) nextMatchFor(team *Team) *Match {
	if t.state == StateRegistration {
		return nil
	}
	for m := range t.pending {
		if m.A.Winner == team || m.B.Winner == team {
			return m
		}
	}
	return nil
}

// NextMatch returns the round and opponent team index of the pending match
// for teamIndex. The opponent is -1 while the other side is undecided.
func (t *Tournament) NextMatch(teamIndex int) (round, opponent int, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if teamIndex < 0 || teamIndex >= len(t.teams) {
		return 0, 0, false
	}
	team := t.teams[teamIndex]
	m := t.nextMatchFor(team)
	if m == nil {
		return 0, 0, false
	}
	opp, err := m.Opponent(team)
	if err != nil {
		return 0, 0, false
	}
	if opp == nil {
		return m.Round, -1, true
	}
	return m.Round, opp.Index, true
}

// ReportResult records that teamIndex won its pending match.
func (t *Tournament) ReportResult(teamIndex int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateInProgress {
		return ErrNotStarted
	}
	if teamIndex < 0 || teamIndex >= len(t.teams) {
		return ErrNoSuchTeam
	}
	team := t.teams[teamIndex]
	m := t.nextMatchFor(team)
	if m == nil {
		return ErrNoPendingMatch
	}
	if err := t.setWinnerWithoutTriggers(m, team); err != nil {
		return err
	}
	t.onWinnerSet(m)
	return nil
}

// TeamForAccount returns the index of the active team accountID plays on.
func (t *Tournament) TeamForAccount(accountID uint32) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.accounts[accountID]; !ok {
		return 0, false
	}
	for _, team := range t.teams {
		for _, p := range team.Players {
			if p.AccountID == accountID {
				return team.Index, team.Active
			}
		}
	}
	return 0, false
}

// Winner returns the index of the champion once the tournament is complete.
func (t *Tournament) Winner() (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.state != StateComplete || t.final == nil || t.final.Winner == nil {
		return 0, false
	}
	return t.final.Winner.Index, true
}

// Bracket renders the bracket one match per line, final first.
func (t *Tournament) Bracket() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.final == nil {
		return ""
	}
	var b strings.Builder
	var walk func(m *Match, depth int)
	walk = func(m *Match, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		if m.A == nil {
			b.WriteString(m.Winner.String())
		} else {
			b.WriteString(m.String())
			if _, ok := t.pending[m]; ok {
				b.WriteString(" pending")
			}
		}
		b.WriteByte('\n')
		if m.A != nil {
			walk(m.A, depth+1)
			walk(m.B, depth+1)
		}
	}
	walk(t.final, 0)
	return b.String()
}
