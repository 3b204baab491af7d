// Package dedup is the content-similarity engine. It keeps one embedding per
// previously accepted article in a single JSON document and classifies new
// candidates as unique, near-duplicate, or duplicate by cosine similarity.
package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"newsforge/internal/core"
	"newsforge/internal/embedding"
	"newsforge/internal/logger"
)

// Classification outcomes.
const (
	ClassUnique        = "UNIQUE"
	ClassNearDuplicate = "NEAR_DUPLICATE"
	ClassDuplicate     = "DUPLICATE"
)

// Entry is one stored article fingerprint.
type Entry struct {
	ArticleID    string    `json:"article_id"`
	Vector       []float64 `json:"vector"`
	TitleExcerpt string    `json:"title_excerpt"`
	DateAddedUTC string    `json:"date_added_utc"`
}

// Options holds classification thresholds.
type Options struct {
	ThresholdDuplicate     float64 // >= means hard duplicate, not stored
	ThresholdNearDuplicate float64 // >= means near-duplicate, still stored
	MinTextLength          int
	MaxTextSnippet         int
}

// DefaultOptions mirrors the documented defaults.
func DefaultOptions() Options {
	return Options{
		ThresholdDuplicate:     0.92,
		ThresholdNearDuplicate: 0.82,
		MinTextLength:          75,
		MaxTextSnippet:         2000,
	}
}

// Verdict is the result of classifying one record against history.
type Verdict struct {
	Classification string
	Status         string // SUCCESS, SKIPPED_TEXT_TOO_SHORT, FAILED_EMBEDDING
	HighestID      string
	HighestScore   float64
	NearDuplicates []core.NearDuplicate
}

// Store is the persistent duplicate store: a mapping from article ID to
// fingerprint entry, written as a single JSON blob with atomic replace. The
// internal mutex is held across the full classify+insert window so two workers
// cannot both admit the same near-duplicate pair as unique.
type Store struct {
	path string

	mu      sync.Mutex
	entries map[string]Entry
}

// Open loads the store at path, creating an empty one if the file is absent.
func Open(path string) (*Store, error) {
	s := &Store{path: path, entries: make(map[string]Entry)}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read duplicate store %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &s.entries); err != nil {
		return nil, fmt.Errorf("failed to parse duplicate store %s: %w", path, err)
	}
	return s, nil
}

// Len returns the number of stored fingerprints.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Has reports whether an article ID has a stored fingerprint.
func (s *Store) Has(articleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[articleID]
	return ok
}

// Classify builds the record's fingerprint text, embeds it, and scores it
// against every stored entry. Hard duplicates are never inserted; unique and
// near-duplicate records are inserted and persisted before the lock releases.
func (s *Store) Classify(ctx context.Context, rec *core.ArticleRecord, embedder embedding.Embedder, opts Options) (Verdict, error) {
	text := BuildClassificationText(rec, opts.MaxTextSnippet)
	if len(text) < opts.MinTextLength {
		return Verdict{Classification: ClassUnique, Status: core.StatusSkippedTextTooShort}, nil
	}

	vector, err := embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, embedding.ErrTextTooShort) {
			return Verdict{Classification: ClassUnique, Status: core.StatusSkippedTextTooShort}, nil
		}
		return Verdict{Status: core.StatusFailedEmbedding}, fmt.Errorf("dedup embedding failed: %w", err)
	}

	// The guard covers compare and insert as one critical section.
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		s.insertLocked(rec, vector)
		return Verdict{Classification: ClassUnique, Status: core.StatusSuccess}, s.persistLocked()
	}

	type scored struct {
		id    string
		score float64
	}
	var all []scored
	for id, entry := range s.entries {
		if id == rec.ID {
			continue
		}
		all = append(all, scored{id: id, score: CosineSimilarity(vector, entry.Vector)})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })

	verdict := Verdict{Classification: ClassUnique, Status: core.StatusSuccess}
	if len(all) > 0 {
		verdict.HighestID = all[0].id
		verdict.HighestScore = all[0].score
	}

	isDuplicate := len(all) > 0 && all[0].score >= opts.ThresholdDuplicate
	switch {
	case isDuplicate:
		verdict.Classification = ClassDuplicate
	case len(all) > 0 && all[0].score >= opts.ThresholdNearDuplicate:
		verdict.Classification = ClassNearDuplicate
	}

	// Top-3 near matches; the highest entry is excluded when it is the hard
	// duplicate itself.
	start := 0
	if isDuplicate {
		start = 1
	}
	for i := start; i < len(all) && len(verdict.NearDuplicates) < 3; i++ {
		if all[i].score < opts.ThresholdNearDuplicate {
			break
		}
		verdict.NearDuplicates = append(verdict.NearDuplicates, core.NearDuplicate{
			ArticleID: all[i].id,
			Score:     all[i].score,
		})
	}

	if isDuplicate {
		logger.Info("Duplicate detected", "article_id", rec.ID, "match_id", verdict.HighestID, "score", verdict.HighestScore)
		return verdict, nil
	}

	s.insertLocked(rec, vector)
	return verdict, s.persistLocked()
}

func (s *Store) insertLocked(rec *core.ArticleRecord, vector []float64) {
	title := rec.InitialTitle
	if len(title) > 120 {
		title = title[:120]
	}
	s.entries[rec.ID] = Entry{
		ArticleID:    rec.ID,
		Vector:       vector,
		TitleExcerpt: title,
		DateAddedUTC: core.NowUTC(),
	}
}

// persistLocked writes the store atomically (write temp, then rename).
func (s *Store) persistLocked() error {
	blob, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal duplicate store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0644); err != nil {
		return fmt.Errorf("failed to write duplicate store temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace duplicate store: %w", err)
	}
	return nil
}

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	imageCreditRe = regexp.MustCompile(`(?i)(image|photo)\s+(credit|courtesy|source)s?:?\s*[^\n.]*`)
)

// BuildClassificationText produces the normalized fingerprint text: title,
// summary, and a bounded prefix of the raw scraped body, cleaned of image and
// photo credit lines and collapsed whitespace.
func BuildClassificationText(rec *core.ArticleRecord, maxSnippet int) string {
	if maxSnippet <= 0 {
		maxSnippet = 2000
	}
	prefix := rec.RawScrapedText
	if len(prefix) > maxSnippet {
		prefix = prefix[:maxSnippet]
	}
	combined := strings.Join([]string{rec.InitialTitle, rec.Summary, prefix}, "\n")
	combined = imageCreditRe.ReplaceAllString(combined, " ")
	combined = whitespaceRe.ReplaceAllString(combined, " ")
	return strings.TrimSpace(combined)
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Mismatched lengths and zero-norm vectors yield 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
