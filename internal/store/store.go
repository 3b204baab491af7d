// Package store is the SQLite-backed fetch cache: pages fetched once are
// reused across pipeline runs until their TTL expires.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Page is one cached fetch result.
type Page struct {
	URL       string
	Title     string
	Text      string
	HTML      string
	FetchedAt time.Time
}

// Cache is the on-disk fetch cache keyed by URL.
type Cache struct {
	db   *sql.DB
	path string
}

// Open creates or opens the cache database under dataDir.
func Open(dataDir string) (*Cache, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "newsforge.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening fetch cache: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS fetch_cache (
		url        TEXT PRIMARY KEY,
		title      TEXT,
		text       TEXT,
		html       TEXT,
		fetched_at DATETIME
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing fetch cache: %w", err)
	}

	return &Cache{db: db, path: dbPath}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached page for a URL if it exists and is younger than ttl.
func (c *Cache) Get(url string, ttl time.Duration) (*Page, bool, error) {
	row := c.db.QueryRow(
		`SELECT url, title, text, html, fetched_at FROM fetch_cache WHERE url = ?`, url)

	var p Page
	if err := row.Scan(&p.URL, &p.Title, &p.Text, &p.HTML, &p.FetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading fetch cache: %w", err)
	}
	if ttl > 0 && time.Since(p.FetchedAt) > ttl {
		return nil, false, nil
	}
	return &p, true, nil
}

// Put inserts or replaces the cached page for its URL.
func (c *Cache) Put(p Page) error {
	if p.FetchedAt.IsZero() {
		p.FetchedAt = time.Now().UTC()
	}
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO fetch_cache (url, title, text, html, fetched_at) VALUES (?, ?, ?, ?, ?)`,
		p.URL, p.Title, p.Text, p.HTML, p.FetchedAt)
	if err != nil {
		return fmt.Errorf("writing fetch cache: %w", err)
	}
	return nil
}

// Purge removes entries older than ttl and returns how many were dropped.
func (c *Cache) Purge(ttl time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	res, err := c.db.Exec(`DELETE FROM fetch_cache WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging fetch cache: %w", err)
	}
	return res.RowsAffected()
}
