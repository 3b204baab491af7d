// Package records persists per-article JSON records. A save after every stage
// is the pipeline's crash-resilience checkpoint.
package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"newsforge/internal/core"
)

// ErrNotFound is returned by Load when no record exists for the ID.
var ErrNotFound = errors.New("records: not found")

// Store is a directory of {id}.json files. Files are independent, so there is
// no cross-ID contention; saves are atomic via write-temp-then-rename.
type Store struct {
	dir string
}

// NewStore creates a record store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create record directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) pathFor(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Load reads the record for id. Returns ErrNotFound if absent.
func (s *Store) Load(id string) (*core.ArticleRecord, error) {
	raw, err := os.ReadFile(s.pathFor(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", id, err)
	}
	var rec core.ArticleRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record %s: %w", id, err)
	}
	return &rec, nil
}

// Save writes the record atomically. This is the pipeline checkpoint: it runs
// after every stage so a crash never loses completed stage work.
func (s *Store) Save(rec *core.ArticleRecord) error {
	if rec.ID == "" {
		return errors.New("records: cannot save record without ID")
	}
	blob, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
	}
	path := s.pathFor(rec.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0644); err != nil {
		return fmt.Errorf("failed to write record temp file %s: %w", rec.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace record %s: %w", rec.ID, err)
	}
	return nil
}

// ListIDs returns all record IDs in the store, sorted.
func (s *Store) ListIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list record directory: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".tmp") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the record file for id. Deleting a missing record is not an
// error.
func (s *Store) Delete(id string) error {
	err := os.Remove(s.pathFor(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
