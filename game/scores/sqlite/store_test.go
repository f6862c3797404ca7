package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/dicemerge/game/scores"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scores.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestRecordAndTop(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, rec := range []scores.Record{
		{RunID: "run-a", SessionID: "a1b2", ConfigName: "classic", Score: 40, HighestDie: 5},
		{RunID: "run-b", SessionID: "c3d4", ConfigName: "small", Score: 90, HighestDie: 6},
		{RunID: "run-c", SessionID: "e5f6", ConfigName: "classic", Score: 40, HighestDie: 6},
	} {
		rec.RecordedAt = now.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Record(ctx, rec))
	}

	top, err := store.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "run-b", top[0].RunID)
	assert.Equal(t, "run-c", top[1].RunID, "ties on score break on highest die")
	assert.Equal(t, "run-a", top[2].RunID)
	assert.Equal(t, "small", top[0].ConfigName)
	assert.True(t, now.Add(time.Minute).Equal(top[0].RecordedAt), "recorded_at round-trips at millisecond precision")

	top, err = store.Top(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestRecordUpsertsPerRun(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, scores.Record{RunID: "run-a", Score: 10, HighestDie: 3, Moves: 4}))
	require.NoError(t, store.Record(ctx, scores.Record{RunID: "run-a", Score: 30, HighestDie: 4, Moves: 9}))

	top, err := store.Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 30, top[0].Score)
	assert.Equal(t, 9, top[0].Moves)
	assert.False(t, top[0].Final)

	// A worse snapshot never replaces a better one, but final sticks
	require.NoError(t, store.Record(ctx, scores.Record{RunID: "run-a", Score: 20, HighestDie: 4, Final: true}))

	top, err = store.Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 30, top[0].Score)
	assert.True(t, top[0].Final)
}

func TestRecordValidation(t *testing.T) {
	store := openTempStore(t)

	err := store.Record(context.Background(), scores.Record{})
	assert.ErrorIs(t, err, scores.ErrInvalidRecord)

	_, err = store.Top(context.Background(), -1)
	assert.ErrorIs(t, err, scores.ErrInvalidLimit)
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), scores.Record{RunID: "run-a", Score: 12, HighestDie: 3}))
	require.NoError(t, store.Close())

	// Migrations are not re-applied on the second open
	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	top, err := store.Top(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 12, top[0].Score)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestExtractUp(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE t (id INTEGER);\n-- +migrate Down\nDROP TABLE t;\n"
	assert.Equal(t, "\nCREATE TABLE t (id INTEGER);\n", extractUp(content))
	assert.Equal(t, "SELECT 1;", extractUp("SELECT 1;"))
}

func TestRecordKeepsTopTen(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < scores.DefaultTopLimit+2; i++ {
		require.NoError(t, store.Record(ctx, scores.Record{
			RunID:      fmt.Sprintf("run-%02d", i),
			Score:      (i + 1) * 10,
			HighestDie: 3,
			RecordedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}

	var rows int
	require.NoError(t, store.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM score_records`).Scan(&rows))
	assert.Equal(t, scores.DefaultTopLimit, rows)

	top, err := store.Top(ctx, scores.MaxTopLimit)
	require.NoError(t, err)
	require.Len(t, top, scores.DefaultTopLimit)
	assert.Equal(t, "run-11", top[0].RunID)
	assert.Equal(t, 30, top[len(top)-1].Score, "the two lowest runs are pruned")

	// A score below the board does not survive
	require.NoError(t, store.Record(ctx, scores.Record{RunID: "low", Score: 5, HighestDie: 2}))
	top, err = store.Top(ctx, 0)
	require.NoError(t, err)
	for _, rec := range top {
		assert.NotEqual(t, "low", rec.RunID)
	}

	_, err = store.Top(ctx, 50)
	assert.ErrorIs(t, err, scores.ErrInvalidLimit)
}
