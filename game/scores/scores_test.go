package scores

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/dicemerge/game/engine"
)

func TestNormalize(t *testing.T) {
	rec, err := Normalize(Record{RunID: " run-1 ", Score: 4, HighestDie: 2})
	require.NoError(t, err)
	assert.Equal(t, "run-1", rec.RunID)
	assert.False(t, rec.RecordedAt.IsZero())
	assert.Equal(t, time.UTC, rec.RecordedAt.Location())

	tests := []Record{
		{Score: 1, HighestDie: 1},
		{RunID: "r", Score: -1, HighestDie: 1},
		{RunID: "r", Score: 1, HighestDie: 0},
	}
	for _, tt := range tests {
		_, err := Normalize(tt)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	}
}

func TestCheckLimit(t *testing.T) {
	limit, err := CheckLimit(0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopLimit, limit)

	limit, err = CheckLimit(3)
	require.NoError(t, err)
	assert.Equal(t, 3, limit)

	_, err = CheckLimit(-1)
	assert.ErrorIs(t, err, ErrInvalidLimit)
	_, err = CheckLimit(MaxTopLimit + 1)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	// The board never shows more than the stores keep
	assert.Equal(t, DefaultTopLimit, MaxTopLimit)
	_, err = CheckLimit(50)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestRank(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []Record{
		{RunID: "low", Score: 10, HighestDie: 3, RecordedAt: base},
		{RunID: "late-tie", Score: 50, HighestDie: 5, RecordedAt: base.Add(time.Hour)},
		{RunID: "early-tie", Score: 50, HighestDie: 5, RecordedAt: base},
		{RunID: "high-die", Score: 50, HighestDie: 6, RecordedAt: base.Add(2 * time.Hour)},
	}

	Rank(records)

	var order []string
	for _, rec := range records {
		order = append(order, rec.RunID)
	}
	assert.Equal(t, []string{"high-die", "early-tie", "late-tie", "low"}, order)
}

func TestMerge(t *testing.T) {
	prev := Record{RunID: "r", Score: 20, HighestDie: 4, Final: false}

	better := Merge(prev, Record{RunID: "r", Score: 30, HighestDie: 4})
	assert.Equal(t, 30, better.Score)

	worse := Merge(prev, Record{RunID: "r", Score: 10, HighestDie: 4, Final: true})
	assert.Equal(t, 20, worse.Score)
	assert.True(t, worse.Final, "final flag sticks even when the snapshot is worse")

	finalFirst := Merge(Record{RunID: "r", Score: 20, HighestDie: 4, Final: true}, Record{RunID: "r", Score: 20, HighestDie: 4})
	assert.True(t, finalFirst.Final)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scores.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	// More runs than the file keeps
	for i := 0; i < MaxFileRecords+3; i++ {
		require.NoError(t, store.Record(ctx, Record{
			RunID:      "run-" + string(rune('a'+i)),
			Score:      i * 10,
			HighestDie: 2,
		}))
	}

	top, err := store.Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, MaxFileRecords)
	assert.Equal(t, (MaxFileRecords+2)*10, top[0].Score)
	assert.Equal(t, 30, top[len(top)-1].Score)

	// Upsert keeps one row per run
	require.NoError(t, store.Record(ctx, Record{RunID: "run-d", Score: 500, HighestDie: 7, Final: true}))
	top, err = store.Top(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "run-d", top[0].RunID)
	assert.True(t, top[0].Final)
	assert.NotEqual(t, "run-d", top[1].RunID)

	// Reopen from disk
	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	again, err := reopened.Top(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "run-d", again[0].RunID)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, err := NewFileStore(path)
	assert.Error(t, err)

	store := NewMemoryStore()
	assert.ErrorIs(t, store.Record(context.Background(), Record{}), ErrInvalidRecord)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, store.Record(ctx, Record{RunID: "r", Score: 1, HighestDie: 1}))
	_, err = store.Top(ctx, 1)
	assert.Error(t, err)
}

func snapshot(runID string, score int, final bool) engine.Event {
	return engine.Event{
		Type:       engine.EventScoreSnapshot,
		RunID:      runID,
		Score:      score,
		HighestDie: 3,
		Final:      final,
	}
}

func TestRecorder_Throttle(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	recorder := NewRecorder(store, 5*time.Second, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	src := Source{SessionID: "ab12", ConfigName: "classic", Moves: 3}

	wrote, err := recorder.Observe(ctx, src, snapshot("run-1", 6, false))
	require.NoError(t, err)
	assert.True(t, wrote, "first snapshot of a run is recorded")

	now = now.Add(2 * time.Second)
	wrote, err = recorder.Observe(ctx, src, snapshot("run-1", 14, false))
	require.NoError(t, err)
	assert.False(t, wrote, "snapshot inside the interval is dropped")

	wrote, err = recorder.Observe(ctx, src, snapshot("run-2", 4, false))
	require.NoError(t, err)
	assert.True(t, wrote, "throttling is per run")

	wrote, err = recorder.Observe(ctx, src, snapshot("run-1", 20, true))
	require.NoError(t, err)
	assert.True(t, wrote, "final snapshot is always recorded")

	now = now.Add(10 * time.Second)
	wrote, err = recorder.Observe(ctx, src, snapshot("run-1", 20, false))
	require.NoError(t, err)
	assert.True(t, wrote)

	top, err := recorder.Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "run-1", top[0].RunID)
	assert.Equal(t, 20, top[0].Score)
	assert.True(t, top[0].Final)
	assert.Equal(t, "ab12", top[0].SessionID)
	assert.Equal(t, 3, top[0].Moves)
}

func TestRecorder_IgnoresOtherEvents(t *testing.T) {
	store := NewMemoryStore()
	recorder := NewRecorder(store, 0)
	ctx := context.Background()

	for _, ev := range []engine.Event{
		{Type: engine.EventScoreChanged, RunID: "r", Score: 5, HighestDie: 2},
		{Type: engine.EventScoreSnapshot, Score: 5, HighestDie: 2},
	} {
		wrote, err := recorder.Observe(ctx, Source{}, ev)
		require.NoError(t, err)
		assert.False(t, wrote)
	}

	top, err := store.Top(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestRecorder_EngineIntegration(t *testing.T) {
	store := NewMemoryStore()
	recorder := NewRecorder(store, 0)
	ctx := context.Background()

	config := engine.DefaultGameConfig()
	config.GridSize = 3
	config.InitialDice = 2
	eng, err := engine.NewEngine(config, engine.WithSeed(5))
	require.NoError(t, err)
	eng.Subscribe(engine.ObserverFunc(func(ev engine.Event) {
		_, err := recorder.Observe(ctx, Source{SessionID: "s1", ConfigName: "classic"}, ev)
		require.NoError(t, err)
	}))

	eng.StartSession()
	for step := 0; step < 20000 && !eng.IsGameOver(); step++ {
		if pairs := eng.MergeablePairs(); len(pairs) > 0 {
			require.NoError(t, eng.Merge(pairs[0].A, pairs[0].B))
		} else if _, err := eng.SpawnDie(); err != nil {
			t.Fatalf("spawn: %v", err)
		}
	}
	require.True(t, eng.IsGameOver())

	top, err := store.Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, eng.GetScore(), top[0].Score)
	assert.Equal(t, eng.GetHighestDie(), top[0].HighestDie)
	assert.True(t, top[0].Final)
	assert.Equal(t, eng.GetState().RunID, top[0].RunID)
}

func TestRecorder_FlushHeldSnapshot(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	recorder := NewRecorder(store, time.Hour, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	src := Source{SessionID: "ab12", ConfigName: "small", Moves: 2}

	_, err := recorder.Observe(ctx, src, snapshot("run-1", 8, false))
	require.NoError(t, err)
	src.Moves = 5
	wrote, err := recorder.Observe(ctx, src, snapshot("run-1", 20, false))
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, 1, recorder.Pending())

	require.NoError(t, recorder.Flush(ctx, "run-1"))
	assert.Equal(t, 0, recorder.Pending())

	top, err := store.Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 20, top[0].Score)
	assert.Equal(t, 5, top[0].Moves)
	assert.False(t, top[0].Final)

	// Nothing held: flushing is a no-op and the run starts over unthrottled
	require.NoError(t, recorder.Flush(ctx, "run-1"))
	wrote, err = recorder.Observe(ctx, src, snapshot("run-1", 24, false))
	require.NoError(t, err)
	assert.True(t, wrote)
}

func TestRecorder_FinalDropsHeldSnapshot(t *testing.T) {
	store := NewMemoryStore()
	recorder := NewRecorder(store, time.Hour)
	ctx := context.Background()

	_, err := recorder.Observe(ctx, Source{}, snapshot("run-1", 6, false))
	require.NoError(t, err)
	_, err = recorder.Observe(ctx, Source{}, snapshot("run-1", 10, false))
	require.NoError(t, err)
	_, err = recorder.Observe(ctx, Source{}, snapshot("run-1", 12, true))
	require.NoError(t, err)
	assert.Equal(t, 0, recorder.Pending())

	top, err := store.Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 12, top[0].Score)
	assert.True(t, top[0].Final)
}

func TestRecorder_CloseFlushesEveryRun(t *testing.T) {
	store := NewMemoryStore()
	recorder := NewRecorder(store, time.Hour)
	ctx := context.Background()

	for _, run := range []string{"run-a", "run-b"} {
		_, err := recorder.Observe(ctx, Source{}, snapshot(run, 4, false))
		require.NoError(t, err)
		_, err = recorder.Observe(ctx, Source{}, snapshot(run, 16, false))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, recorder.Pending())

	require.NoError(t, recorder.Close(ctx))
	assert.Equal(t, 0, recorder.Pending())

	top, err := store.Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	for _, rec := range top {
		assert.Equal(t, 16, rec.Score)
	}
}
