// Package postgres stores battle records in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/magefree/ep3-server-go/internal/game/record"
	"github.com/magefree/ep3-server-go/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS battle_records (
    battle_id UUID PRIMARY KEY,
    started_at TIMESTAMPTZ NOT NULL,
    ended_at TIMESTAMPTZ NOT NULL,
    map_number BIGINT NOT NULL,
    rounds INTEGER NOT NULL,
    winner_team SMALLINT NOT NULL,
    players TEXT[] NOT NULL,
    digest TEXT NOT NULL,
    data BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_battle_records_ended_at ON battle_records (ended_at);
`

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// Store persists battle records through a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ storage.RecordStore = (*Store)(nil)

// Open connects to dsn and creates the schema if it is missing.
func Open(ctx context.Context, dsn string, maxConns int32, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	stats := pool.Stat()
	logger.Info("record store opened",
		zap.String("driver", "postgres"),
		zap.Int32("max_conns", stats.MaxConns()))
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) SaveRecord(ctx context.Context, summary storage.BattleSummary, rec *record.Record) error {
	data, err := record.Marshal(rec)
	if err != nil {
		return fmt.Errorf("save record %s: %w", summary.BattleID, err)
	}
	players := summary.Players
	if players == nil {
		players = []string{}
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO battle_records (battle_id, started_at, ended_at, map_number, rounds, winner_team, players, digest, data)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		summary.BattleID,
		summary.StartedAt,
		summary.EndedAt,
		int64(summary.MapNumber),
		summary.Rounds,
		int16(summary.WinnerTeam),
		players,
		summary.Digest,
		data,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
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
	err := s.pool.QueryRow(ctx, `SELECT data FROM battle_records WHERE battle_id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.pool.Query(ctx, `
SELECT battle_id, started_at, ended_at, map_number, rounds, winner_team, players, digest
FROM battle_records ORDER BY ended_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.BattleSummary, error) {
		var (
			summary   storage.BattleSummary
			mapNumber int64
			winner    int16
		)
		err := row.Scan(&summary.BattleID, &summary.StartedAt, &summary.EndedAt, &mapNumber,
			&summary.Rounds, &winner, &summary.Players, &summary.Digest)
		summary.MapNumber = uint32(mapNumber)
		summary.WinnerTeam = int(winner)
		summary.StartedAt = summary.StartedAt.UTC()
		summary.EndedAt = summary.EndedAt.UTC()
		return summary, err
	})
}
