package store

import (
	"testing"
	"time"
)

func TestCacheRoundTrip(t *testing.T) {
	cache, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = cache.Close() }()

	page := Page{
		URL:       "https://example.org/a",
		Title:     "A title",
		Text:      "Body text.",
		HTML:      "<html></html>",
		FetchedAt: time.Now().UTC(),
	}
	if err := cache.Put(page); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := cache.Get(page.URL, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("fresh entry not found")
	}
	if got.Title != page.Title || got.Text != page.Text {
		t.Errorf("got %+v", got)
	}
}

func TestCacheMiss(t *testing.T) {
	cache, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = cache.Close() }()

	if _, ok, err := cache.Get("https://example.org/missing", time.Hour); err != nil || ok {
		t.Fatalf("ok=%v err=%v, want miss", ok, err)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	cache, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = cache.Close() }()

	stale := Page{URL: "https://example.org/old", FetchedAt: time.Now().UTC().Add(-48 * time.Hour)}
	if err := cache.Put(stale); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := cache.Get(stale.URL, 24*time.Hour); ok {
		t.Error("stale entry returned within TTL window")
	}
	if _, ok, _ := cache.Get(stale.URL, 0); !ok {
		t.Error("zero TTL should disable expiry")
	}
}

func TestCacheReplace(t *testing.T) {
	cache, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = cache.Close() }()

	url := "https://example.org/r"
	_ = cache.Put(Page{URL: url, Title: "v1"})
	_ = cache.Put(Page{URL: url, Title: "v2"})

	got, ok, _ := cache.Get(url, 0)
	if !ok || got.Title != "v2" {
		t.Errorf("got %+v, want replaced entry", got)
	}
}

func TestCachePurge(t *testing.T) {
	cache, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = cache.Close() }()

	_ = cache.Put(Page{URL: "https://example.org/keep", FetchedAt: time.Now().UTC()})
	_ = cache.Put(Page{URL: "https://example.org/drop", FetchedAt: time.Now().UTC().Add(-72 * time.Hour)})

	n, err := cache.Purge(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("purged %d entries, want 1", n)
	}
	if _, ok, _ := cache.Get("https://example.org/keep", 0); !ok {
		t.Error("fresh entry purged")
	}
}
