package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"raffle-storefront/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteActivityRepository {
	t.Helper()
	repo, err := NewSQLiteActivityRepository(filepath.Join(t.TempDir(), "data", "activity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func activity(actor string, number int, status string, at time.Time) *model.Activity {
	return &model.Activity{
		RequestID: "req-1",
		ActorID:   actor,
		RaffleID:  "r1",
		Number:    number,
		Action:    model.ActionReserve,
		Status:    status,
		CreatedAt: at,
	}
}

func TestSQLiteInsertAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	first := activity("u-1", 1, model.ActivitySuccess, now.Add(-2*time.Minute))
	require.NoError(t, repo.Insert(ctx, first))
	assert.NotZero(t, first.ID)

	require.NoError(t, repo.Insert(ctx, activity("u-1", 2, model.ActivityFailed, now.Add(-time.Minute))))
	require.NoError(t, repo.Insert(ctx, activity("u-2", 3, model.ActivitySuccess, now)))

	items, total, err := repo.ListByActor(ctx, "u-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].Number)
	assert.Equal(t, 1, items[1].Number)
	assert.Equal(t, model.ActionReserve, items[0].Action)
	assert.Equal(t, "r1", items[0].RaffleID)
}

func TestSQLiteListPaginates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	var batch []*model.Activity
	for i := 1; i <= 5; i++ {
		batch = append(batch, activity("u-1", i, model.ActivitySuccess, now.Add(time.Duration(i)*time.Second)))
	}
	require.NoError(t, repo.BatchInsert(ctx, batch))

	items, total, err := repo.ListByActor(ctx, "u-1", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, items, 2)
	assert.Equal(t, 3, items[0].Number)
	assert.Equal(t, 2, items[1].Number)

	empty, _, err := repo.ListByActor(ctx, "nobody", 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestSQLiteDeleteOlderThan(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Insert(ctx, activity("u-1", 1, model.ActivitySuccess, now.Add(-48*time.Hour))))
	require.NoError(t, repo.Insert(ctx, activity("u-1", 2, model.ActivitySuccess, now)))

	deleted, err := repo.DeleteOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	items, total, err := repo.ListByActor(ctx, "u-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, 2, items[0].Number)
}

func TestSQLiteStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.BatchInsert(ctx, []*model.Activity{
		activity("u-1", 1, model.ActivitySuccess, time.Time{}),
		activity("u-1", 2, model.ActivityFailed, time.Time{}),
		activity("u-2", 3, model.ActivitySuccess, time.Time{}),
	}))

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats["total_activity"])
	assert.Equal(t, map[string]int64{"success": 2, "failed": 1}, stats["by_status"])
	assert.Equal(t, "SQLite", stats["backend"])
	assert.Contains(t, stats, "db_size_bytes")
}

func TestRebindNumbersPlaceholders(t *testing.T) {
	s := &sqlActivityStore{numbered: true}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", s.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	plain := &sqlActivityStore{}
	assert.Equal(t, "a = ?", plain.rebind("a = ?"))
}
