package scores

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/dicemerge/game/engine"
)

// DefaultSnapshotInterval is the minimum gap between in-game snapshots of one run
const DefaultSnapshotInterval = 5 * time.Second

// Source identifies where a snapshot event came from
type Source struct {
	SessionID  string
	ConfigName string
	Moves      int
}

// Recorder turns score_snapshot events into stored records. In-game
// snapshots are rate limited per run; final snapshots are always written.
// The newest throttled snapshot of a run is held until the next write,
// Flush or Close, so an abandoned run still stores its latest score.
type Recorder struct {
	store    Store
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	last    map[string]time.Time
	pending map[string]Record
}

// RecorderOption customises a Recorder
type RecorderOption func(*Recorder)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a recorder writing to store. An interval of zero
// records every snapshot.
func NewRecorder(store Store, interval time.Duration, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:    store,
		interval: interval,
		now:      time.Now,
		last:     make(map[string]time.Time),
		pending:  make(map[string]Record),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe stores ev if it is a score snapshot that passes the rate limit.
// It reports whether a record was written; a throttled snapshot is held
// as the run's pending record instead.
func (r *Recorder) Observe(ctx context.Context, src Source, ev engine.Event) (bool, error) {
	if ev.Type != engine.EventScoreSnapshot || ev.RunID == "" {
		return false, nil
	}

	now := r.now()
	recordedAt := ev.Timestamp
	if recordedAt.IsZero() {
		recordedAt = now
	}
	rec := Record{
		RunID:      ev.RunID,
		SessionID:  src.SessionID,
		ConfigName: src.ConfigName,
		Score:      ev.Score,
		HighestDie: ev.HighestDie,
		Moves:      src.Moves,
		Final:      ev.Final,
		RecordedAt: recordedAt,
	}

	r.mu.Lock()
	if !ev.Final && !r.dueLocked(ev.RunID, now) {
		r.pending[ev.RunID] = rec
		r.mu.Unlock()
		return false, nil
	}
	r.mu.Unlock()

	if err := r.store.Record(ctx, rec); err != nil {
		return false, err
	}

	r.mu.Lock()
	delete(r.pending, ev.RunID)
	if ev.Final {
		delete(r.last, ev.RunID)
	} else {
		r.last[ev.RunID] = now
	}
	r.mu.Unlock()

	return true, nil
}

// Top returns the leaderboard from the underlying store
func (r *Recorder) Top(ctx context.Context, limit int) ([]Record, error) {
	return r.store.Top(ctx, limit)
}

// Flush writes the run's held snapshot, if any, and drops all state for
// the run. Call it when a run ends without a game over.
func (r *Recorder) Flush(ctx context.Context, runID string) error {
	r.mu.Lock()
	rec, ok := r.pending[runID]
	delete(r.pending, runID)
	delete(r.last, runID)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := r.store.Record(ctx, rec); err != nil {
		return fmt.Errorf("flush run %s: %w", runID, err)
	}
	return nil
}

// Close flushes every held snapshot. The store itself stays open.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	runs := make([]string, 0, len(r.pending))
	for runID := range r.pending {
		runs = append(runs, runID)
	}
	r.mu.Unlock()

	var errs []error
	for _, runID := range runs {
		if err := r.Flush(ctx, runID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending reports how many runs hold an unwritten snapshot
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Recorder) dueLocked(runID string, now time.Time) bool {
	if r.interval <= 0 {
		return true
	}
	last, ok := r.last[runID]
	return !ok || now.Sub(last) >= r.interval
}
