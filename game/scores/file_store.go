package scores

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MaxFileRecords caps the score history kept in a JSON file
const MaxFileRecords = DefaultTopLimit

// FileStore keeps the ranked score history in a single JSON file.
// An empty path keeps records in memory only.
type FileStore struct {
	path    string
	records []Record
	mu      sync.Mutex
}

// NewFileStore opens the history at path, creating parent directories
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path}
	if path == "" {
		return fs, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create scores directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("failed to read scores file: %w", err)
	}
	if len(data) == 0 {
		return fs, nil
	}
	if err := json.Unmarshal(data, &fs.records); err != nil {
		return nil, fmt.Errorf("failed to parse scores file: %w", err)
	}
	Rank(fs.records)
	return fs, nil
}

// NewMemoryStore returns a FileStore that never touches disk
func NewMemoryStore() *FileStore {
	return &FileStore{}
}

// Record upserts rec by run ID, re-ranks and truncates the history
func (fs *FileStore) Record(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, err := Normalize(rec)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	replaced := false
	for i := range fs.records {
		if fs.records[i].RunID == rec.RunID {
			fs.records[i] = Merge(fs.records[i], rec)
			replaced = true
			break
		}
	}
	if !replaced {
		fs.records = append(fs.records, rec)
	}

	Rank(fs.records)
	if len(fs.records) > MaxFileRecords {
		fs.records = fs.records[:MaxFileRecords]
	}

	return fs.flush()
}

// Top returns up to limit records in leaderboard order
func (fs *FileStore) Top(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit, err := CheckLimit(limit)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if limit > len(fs.records) {
		limit = len(fs.records)
	}
	out := make([]Record, limit)
	copy(out, fs.records[:limit])
	return out, nil
}

// Close is a no-op; every Record call is flushed immediately
func (fs *FileStore) Close() error {
	return nil
}

// flush writes the history atomically. Callers hold fs.mu.
func (fs *FileStore) flush() error {
	if fs.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(fs.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}

	tmpPath := fs.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write scores file: %w", err)
	}
	if err := os.Rename(tmpPath, fs.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace scores file: %w", err)
	}
	return nil
}
