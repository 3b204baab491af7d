package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"newsforge/internal/config"
	"newsforge/internal/publish"
)

func testConfig(dir string) *config.Config {
	return &config.Config{
		App: config.App{SiteDir: dir},
		Site: config.Site{
			Name:            "Newsforge Test",
			MaxHomeArticles: 2,
		},
	}
}

func seedIndex(t *testing.T, dir string, entries ...publish.IndexEntry) *publish.Index {
	t.Helper()
	idx := publish.NewIndex(filepath.Join(dir, "all_articles.json"))
	for _, e := range entries {
		if err := idx.Upsert(e); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	return idx
}

func TestHomePageListsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	idx := seedIndex(t, dir,
		publish.IndexEntry{ID: "a", Title: "Older story", Slug: "older-story",
			URL: "https://example.org/articles/older-story.html", PublishedISOUTC: "2026-08-20T10:00:00Z"},
		publish.IndexEntry{ID: "b", Title: "Newer story", Slug: "newer-story",
			URL: "https://example.org/articles/newer-story.html", PublishedISOUTC: "2026-08-24T10:00:00Z",
			Description: "Fresh description.", Trending: true},
	)

	if err := HomePage(testConfig(dir), idx); err != nil {
		t.Fatalf("HomePage: %v", err)
	}

	html, err := os.ReadFile(filepath.Join(dir, "index.html"))
	if err != nil {
		t.Fatalf("index.html missing: %v", err)
	}
	page := string(html)

	newer := strings.Index(page, "Newer story")
	older := strings.Index(page, "Older story")
	if newer < 0 || older < 0 {
		t.Fatalf("articles missing from page:\n%s", page)
	}
	if newer > older {
		t.Error("newest article should be listed first")
	}
	if !strings.Contains(page, `href="articles/newer-story.html"`) {
		t.Error("article link should be site relative")
	}
	if !strings.Contains(page, "Fresh description.") {
		t.Error("description missing")
	}
	if !strings.Contains(page, `class="trending"`) {
		t.Error("trending marker missing")
	}
	if !strings.Contains(page, "Newsforge Test") {
		t.Error("site name missing")
	}
}

func TestHomePageCapsArticleCount(t *testing.T) {
	dir := t.TempDir()
	idx := seedIndex(t, dir,
		publish.IndexEntry{ID: "a", Title: "First", URL: "u1", PublishedISOUTC: "2026-08-20T10:00:00Z"},
		publish.IndexEntry{ID: "b", Title: "Second", URL: "u2", PublishedISOUTC: "2026-08-21T10:00:00Z"},
		publish.IndexEntry{ID: "c", Title: "Third", URL: "u3", PublishedISOUTC: "2026-08-22T10:00:00Z"},
	)

	if err := HomePage(testConfig(dir), idx); err != nil {
		t.Fatal(err)
	}
	html, _ := os.ReadFile(filepath.Join(dir, "index.html"))
	if strings.Contains(string(html), "First") {
		t.Error("oldest article should fall off the capped home page")
	}
	if !strings.Contains(string(html), "Third") || !strings.Contains(string(html), "Second") {
		t.Error("newest two articles should be on the page")
	}
}

func TestHomePageEmptyIndex(t *testing.T) {
	dir := t.TempDir()
	idx := publish.NewIndex(filepath.Join(dir, "all_articles.json"))

	if err := HomePage(testConfig(dir), idx); err != nil {
		t.Fatalf("HomePage: %v", err)
	}
	html, _ := os.ReadFile(filepath.Join(dir, "index.html"))
	if !strings.Contains(string(html), "No articles yet.") {
		t.Error("empty state missing")
	}
}
