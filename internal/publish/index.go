package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"newsforge/internal/core"
)

// IndexEntry is the summary projection of a published article stored in the
// master index.
type IndexEntry struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Slug            string   `json:"slug"`
	URL             string   `json:"url"`
	Description     string   `json:"description,omitempty"`
	PublishedISOUTC string   `json:"published_iso_utc"`
	ImageURL        string   `json:"image_url,omitempty"`
	AudioURL        string   `json:"audio_url,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	Trending        bool     `json:"trending,omitempty"`
}

type indexFile struct {
	Articles []IndexEntry `json:"articles"`
}

// Index is the master article index at public/all_articles.json. All
// mutations are serialized through one mutex and written atomically, so
// concurrent publishers cannot interleave partial writes.
type Index struct {
	path string
	mu   sync.Mutex
}

// NewIndex returns an index backed by the given file path. The file is
// created on first upsert.
func NewIndex(path string) *Index {
	return &Index{path: path}
}

// Entries returns the current index contents, newest first. A missing file is
// an empty index.
func (ix *Index) Entries() ([]IndexEntry, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.loadLocked()
}

// Upsert inserts or replaces the entry for its article ID and rewrites the
// index sorted by publish date descending.
func (ix *Index) Upsert(entry IndexEntry) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	entries, err := ix.loadLocked()
	if err != nil {
		return err
	}

	replaced := false
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	sortEntries(entries)
	return ix.saveLocked(entries)
}

// Remove deletes the entry for an article ID. Removing an absent ID is not an
// error.
func (ix *Index) Remove(articleID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	entries, err := ix.loadLocked()
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != articleID {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	return ix.saveLocked(kept)
}

func (ix *Index) loadLocked() ([]IndexEntry, error) {
	data, err := os.ReadFile(ix.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading master index: %w", err)
	}
	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing master index %s: %w", ix.path, err)
	}
	return f.Articles, nil
}

func (ix *Index) saveLocked(entries []IndexEntry) error {
	if err := os.MkdirAll(filepath.Dir(ix.path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	data, err := json.MarshalIndent(indexFile{Articles: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling master index: %w", err)
	}
	tmp := ix.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing master index: %w", err)
	}
	if err := os.Rename(tmp, ix.path); err != nil {
		return fmt.Errorf("replacing master index: %w", err)
	}
	return nil
}

// sortEntries orders by publish date descending. Unparseable dates sort with
// the epoch so the ordering stays total.
func sortEntries(entries []IndexEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return publishTime(entries[i]) > publishTime(entries[j])
	})
}

func publishTime(e IndexEntry) int64 {
	t, err := time.Parse(time.RFC3339, e.PublishedISOUTC)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// EntryFor projects a record into its index entry.
func EntryFor(rec *core.ArticleRecord, canonicalURL string) IndexEntry {
	return IndexEntry{
		ID:              rec.ID,
		Title:           rec.FinalPageH1,
		Slug:            rec.Slug,
		URL:             canonicalURL,
		Description:     metaDescription(rec),
		PublishedISOUTC: rec.PublishedISOUTC,
		ImageURL:        rec.SelectedImageURL,
		AudioURL:        rec.AudioURL,
		Keywords:        rec.FinalKeywords,
		Trending:        rec.ManualTrending,
	}
}
