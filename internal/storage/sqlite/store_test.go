package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/ep3-server-go/internal/game/battle"
	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/record"
	"github.com/magefree/ep3-server-go/internal/storage"
)

func smallRecord(t *testing.T) (*record.Record, storage.BattleSummary) {
	t.Helper()
	r := record.NewRecorder(cards.NewIndex(nil, nil), 7, record.Settings{}, battle.Options{})
	_, err := r.Dispatch(1, battle.SetNameCommand{ClientID: 0, PlayerName: "alpha"})
	require.NoError(t, err)
	_, err = r.Dispatch(2, battle.SetNameCommand{ClientID: 1, PlayerName: "beta"})
	require.NoError(t, err)
	rec := r.Snapshot()
	return rec, storage.BattleSummary{
		BattleID:   rec.BattleID,
		StartedAt:  time.UnixMilli(1_700_000_000_000).UTC(),
		EndedAt:    time.UnixMilli(1_700_000_600_000).UTC(),
		MapNumber:  3,
		Rounds:     12,
		WinnerTeam: 1,
		Players:    []string{"alpha", "beta"},
		Digest:     rec.FinalDigest,
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "records.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndLoadRecord(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	rec, summary := smallRecord(t)

	require.NoError(t, s.SaveRecord(ctx, summary, rec))
	out, err := s.LoadRecord(ctx, rec.BattleID)
	require.NoError(t, err)
	assert.Equal(t, rec.FinalDigest, out.FinalDigest)
	assert.Len(t, out.Entries, 2)

	err = s.SaveRecord(ctx, summary, rec)
	assert.ErrorContains(t, err, "already stored")
}

func TestLoadMissingRecord(t *testing.T) {
	s := openStore(t)
	_, err := s.LoadRecord(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListSummariesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	rec1, sum1 := smallRecord(t)
	rec2, sum2 := smallRecord(t)
	sum2.EndedAt = sum1.EndedAt.Add(time.Hour)
	require.NoError(t, s.SaveRecord(ctx, sum1, rec1))
	require.NoError(t, s.SaveRecord(ctx, sum2, rec2))

	list, err := s.ListSummaries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, sum2.BattleID, list[0].BattleID)
	assert.Equal(t, sum1, list[1])
}

func TestMigrationsRunOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	s, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), path, nil)
	require.NoError(t, err)
	defer s.Close()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestUpSection(t *testing.T) {
	assert.Equal(t, "\nA;\n", upSection("-- +migrate Up\nA;\n-- +migrate Down\nB;"))
	assert.Equal(t, "plain", upSection("plain"))
}
