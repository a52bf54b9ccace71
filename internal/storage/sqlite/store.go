// Package sqlite stores battle records in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/magefree/ep3-server-go/internal/game/record"
	"github.com/magefree/ep3-server-go/internal/storage"
	"github.com/magefree/ep3-server-go/internal/storage/sqlite/migrations"
)

// Store persists battle records in SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ storage.RecordStore = (*Store)(nil)

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// Open opens the database at path and applies the embedded migrations.
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: database path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("record store opened", zap.String("driver", "sqlite"), zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRecord inserts a record. Saving the same battle twice is an error.
func (s *Store) SaveRecord(ctx context.Context, summary storage.BattleSummary, rec *record.Record) error {
	data, err := record.Marshal(rec)
	if err != nil {
		return fmt.Errorf("save record %s: %w", summary.BattleID, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO battle_records (battle_id, started_at, ended_at, map_number, rounds, winner_team, players, digest, data)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.BattleID.String(),
		toMillis(summary.StartedAt),
		toMillis(summary.EndedAt),
		summary.MapNumber,
		summary.Rounds,
		summary.WinnerTeam,
		strings.Join(summary.Players, "\x1f"),
		summary.Digest,
		data,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("save record %s: %w", summary.BattleID, storage.ErrAlreadyStored)
	}
	if err != nil {
		return fmt.Errorf("save record %s: %w", summary.BattleID, err)
	}
	s.logger.Debug("record saved", zap.String("battle_id", summary.BattleID.String()), zap.Int("bytes", len(data)))
	return nil
}

func (s *Store) LoadRecord(ctx context.Context, id uuid.UUID) (*record.Record, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM battle_records WHERE battle_id = ?`, id.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", id, err)
	}
	return record.Unmarshal(data)
}

func (s *Store) ListSummaries(ctx context.Context, limit int) ([]storage.BattleSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT battle_id, started_at, ended_at, map_number, rounds, winner_team, players, digest
FROM battle_records ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []storage.BattleSummary
	for rows.Next() {
		var (
			id             string
			started, ended int64
			players        string
			summary        storage.BattleSummary
		)
		if err := rows.Scan(&id, &started, &ended, &summary.MapNumber, &summary.Rounds,
			&summary.WinnerTeam, &players, &summary.Digest); err != nil {
			return nil, fmt.Errorf("scan record summary: %w", err)
		}
		if summary.BattleID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("scan record summary: %w", err)
		}
		summary.StartedAt = fromMillis(started)
		summary.EndedAt = fromMillis(ended)
		if players != "" {
			summary.Players = strings.Split(players, "\x1f")
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
