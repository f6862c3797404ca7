// Package sqlite provides a SQLite-backed scores.Store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/dicemerge/game/scores"
	"github.com/wricardo/mcp-training/dicemerge/game/scores/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists score records in SQLite, one row per run.
type Store struct {
	sqlDB *sql.DB
}

var _ scores.Store = (*Store)(nil)

// Open opens a score SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Record upserts rec by run ID and prunes everything outside the top
// scores.MaxTopLimit. An existing row is only replaced by a snapshot at
// least as good; the final flag never resets.
func (s *Store) Record(ctx context.Context, rec scores.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	rec, err := scores.Normalize(rec)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO score_records (
	run_id,
	session_id,
	config_name,
	score,
	highest_die,
	moves,
	final,
	recorded_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
	session_id = CASE WHEN `+supersedes+` THEN excluded.session_id ELSE score_records.session_id END,
	config_name = CASE WHEN `+supersedes+` THEN excluded.config_name ELSE score_records.config_name END,
	moves = CASE WHEN `+supersedes+` THEN excluded.moves ELSE score_records.moves END,
	recorded_at = CASE WHEN `+supersedes+` THEN excluded.recorded_at ELSE score_records.recorded_at END,
	highest_die = CASE WHEN `+supersedes+` THEN excluded.highest_die ELSE score_records.highest_die END,
	score = CASE WHEN `+supersedes+` THEN excluded.score ELSE score_records.score END,
	final = MAX(score_records.final, excluded.final)
`,
		rec.RunID,
		rec.SessionID,
		rec.ConfigName,
		rec.Score,
		rec.HighestDie,
		rec.Moves,
		boolToInt(rec.Final),
		rec.RecordedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record score: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
DELETE FROM score_records
WHERE run_id NOT IN (
	SELECT run_id FROM score_records
	ORDER BY `+rankOrder+`
	LIMIT ?
)
`, scores.MaxTopLimit)
	if err != nil {
		return fmt.Errorf("prune scores: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

// rankOrder is the leaderboard order, matching scores.Less
const rankOrder = `score DESC, highest_die DESC, recorded_at ASC, run_id ASC`

// supersedes mirrors scores.Supersedes for the upsert. SET expressions
// all read the pre-update row.
const supersedes = `(excluded.score > score_records.score OR (excluded.score = score_records.score AND excluded.highest_die >= score_records.highest_die))`

// Top lists the best records in leaderboard order.
func (s *Store) Top(ctx context.Context, limit int) ([]scores.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	limit, err := scores.CheckLimit(limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT run_id, session_id, config_name, score, highest_die, moves, final, recorded_at
FROM score_records
ORDER BY `+rankOrder+`
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	records := make([]scores.Record, 0, limit)
	for rows.Next() {
		var (
			rec        scores.Record
			final      int
			recordedAt int64
		)
		if err := rows.Scan(
			&rec.RunID,
			&rec.SessionID,
			&rec.ConfigName,
			&rec.Score,
			&rec.HighestDie,
			&rec.Moves,
			&final,
			&recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		rec.Final = final != 0
		rec.RecordedAt = time.UnixMilli(recordedAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scores: %w", err)
	}
	return records, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
