package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps the reservation set in a single JSON file. Save writes to
// a temp file in the same directory and renames it over the target, so the
// on-disk state is always either the old or the new full record set.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed reservation store. The file is created
// on first Save; a missing file loads as an empty ledger.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger: file store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: failed to create data directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Load reads the full reservation set.
func (s *FileStore) Load(_ context.Context) ([]Reservation, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Reservation{}, nil
		}
		return nil, fmt.Errorf("ledger: failed to read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return []Reservation{}, nil
	}
	var out []Reservation
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("ledger: failed to decode %s: %w", s.path, err)
	}
	return out, nil
}

// Save atomically replaces the full reservation set.
func (s *FileStore) Save(_ context.Context, reservations []Reservation) error {
	data, err := json.MarshalIndent(reservations, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: failed to encode reservations: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".appointments-*.json")
	if err != nil {
		return fmt.Errorf("ledger: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("ledger: failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("ledger: failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ledger: failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("ledger: failed to replace %s: %w", s.path, err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
