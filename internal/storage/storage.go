// Package storage defines persistence for finished battle records.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/magefree/ep3-server-go/internal/game/battle"
	"github.com/magefree/ep3-server-go/internal/game/record"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyStored is returned when saving a battle id twice.
	ErrAlreadyStored = errors.New("already stored")
)

// BattleSummary is the searchable part of a stored battle.
type BattleSummary struct {
	BattleID   uuid.UUID
	StartedAt  time.Time
	EndedAt    time.Time
	MapNumber  uint32
	Rounds     int
	WinnerTeam int
	Players    []string
	Digest     string
}

// Summarize builds the summary of a finished battle. WinnerTeam is -1 when
// neither team won. EndedAt is the time of the last recorded command.
func Summarize(rec *record.Record, b *battle.Battle) BattleSummary {
	winner, _ := b.WinnerTeam()
	s := BattleSummary{
		BattleID:   rec.BattleID,
		StartedAt:  rec.StartedAt.UTC(),
		EndedAt:    rec.StartedAt.UTC(),
		MapNumber:  b.MapAndRules().MapNumber,
		Rounds:     int(b.RoundNum()),
		WinnerTeam: winner,
		Digest:     rec.FinalDigest,
	}
	if n := len(rec.Entries); n > 0 {
		s.EndedAt = rec.Entries[n-1].At.UTC()
	}
	for z := uint8(0); z < battle.MaxClients; z++ {
		if b.Player(z) != nil {
			s.Players = append(s.Players, b.PlayerName(z))
		}
	}
	return s
}

// RecordStore saves battle records and their summaries.
type RecordStore interface {
	SaveRecord(ctx context.Context, summary BattleSummary, rec *record.Record) error
	LoadRecord(ctx context.Context, id uuid.UUID) (*record.Record, error)
	// ListSummaries returns the most recently ended battles first.
	ListSummaries(ctx context.Context, limit int) ([]BattleSummary, error)
	Close() error
}
