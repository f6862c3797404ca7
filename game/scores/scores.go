package scores

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultTopLimit is the size of the leaderboard
	DefaultTopLimit = 10

	// MaxTopLimit caps how many rows a caller may request. Stores keep
	// no more history than the leaderboard shows.
	MaxTopLimit = DefaultTopLimit
)

var (
	ErrInvalidRecord = errors.New("invalid score record")
	ErrInvalidLimit  = errors.New("invalid leaderboard limit")
)

// Record is a score snapshot of one run. A run keeps a single record,
// replaced whenever a better snapshot for the same run arrives.
type Record struct {
	RunID      string    `json:"run_id"`
	SessionID  string    `json:"session_id"`
	ConfigName string    `json:"config_name"`
	Score      int       `json:"score"`
	HighestDie int       `json:"highest_die"`
	Moves      int       `json:"moves"`
	Final      bool      `json:"final"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Store persists score records and serves the ranked list
type Store interface {
	Record(ctx context.Context, rec Record) error
	Top(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Normalize trims fields, fills RecordedAt and validates the record
func Normalize(rec Record) (Record, error) {
	rec.RunID = strings.TrimSpace(rec.RunID)
	rec.SessionID = strings.TrimSpace(rec.SessionID)
	rec.ConfigName = strings.TrimSpace(rec.ConfigName)

	if rec.RunID == "" {
		return rec, fmt.Errorf("%w: run id is required", ErrInvalidRecord)
	}
	if rec.Score < 0 {
		return rec, fmt.Errorf("%w: negative score %d", ErrInvalidRecord, rec.Score)
	}
	if rec.HighestDie < 1 {
		return rec, fmt.Errorf("%w: highest die must be at least 1, got %d", ErrInvalidRecord, rec.HighestDie)
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	rec.RecordedAt = rec.RecordedAt.UTC()
	return rec, nil
}

// CheckLimit maps a requested limit onto 1..MaxTopLimit, 0 meaning the default
func CheckLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return DefaultTopLimit, nil
	case limit < 0 || limit > MaxTopLimit:
		return 0, fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidLimit, limit, MaxTopLimit)
	}
	return limit, nil
}

// Supersedes reports whether next should replace prev for the same run
func Supersedes(next, prev Record) bool {
	if next.Score != prev.Score {
		return next.Score > prev.Score
	}
	return next.HighestDie >= prev.HighestDie
}

// Merge folds next into prev for the same run, keeping the final flag sticky
func Merge(prev, next Record) Record {
	if !Supersedes(next, prev) {
		prev.Final = prev.Final || next.Final
		return prev
	}
	next.Final = prev.Final || next.Final
	return next
}

// Less orders records for the leaderboard: score desc, highest die desc,
// earliest first on ties
func Less(a, b Record) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.HighestDie != b.HighestDie {
		return a.HighestDie > b.HighestDie
	}
	if !a.RecordedAt.Equal(b.RecordedAt) {
		return a.RecordedAt.Before(b.RecordedAt)
	}
	return a.RunID < b.RunID
}

// Rank sorts records in leaderboard order
func Rank(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return Less(records[i], records[j])
	})
}
