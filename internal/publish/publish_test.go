package publish

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"newsforge/internal/config"
	"newsforge/internal/core"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "Hello World", "hello-world"},
		{"punctuation dropped", "Complex Item: Flowchart of Neural Network!!!", "complex-item-flowchart-of-neural-network"},
		{"collapse hyphens", "a -- b   c", "a-b-c"},
		{"surrounding whitespace", "  Trimmed Title  ", "trimmed-title"},
		{"case insensitive", "MiXeD CaSe", "mixed-case"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSlugifyEquivalenceAndLength(t *testing.T) {
	variants := []string{
		"AI Breakthrough: New Model!",
		"ai breakthrough   new model",
		"  AI-Breakthrough, New Model?  ",
	}
	first := Slugify(variants[0])
	for _, v := range variants[1:] {
		if got := Slugify(v); got != first {
			t.Errorf("Slugify(%q) = %q, want %q", v, got, first)
		}
	}

	long := strings.Repeat("verylongword ", 20)
	slug := Slugify(long)
	if len(slug) > SlugMaxLen {
		t.Errorf("slug length %d exceeds %d", len(slug), SlugMaxLen)
	}
	if strings.HasSuffix(slug, "-") {
		t.Errorf("slug %q ends with hyphen", slug)
	}
	for _, r := range slug {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			t.Errorf("slug contains invalid rune %q", r)
		}
	}
}

func TestSlugSourceFallbackChain(t *testing.T) {
	rec := &core.ArticleRecord{ID: "abc123", InitialTitle: "Initial", GeneratedSEOH1: "SEO H1", FinalPageH1: "Final H1"}
	if got := SlugSource(rec); got != "Final H1" {
		t.Errorf("got %q, want final_page_h1", got)
	}
	rec.FinalPageH1 = ""
	if got := SlugSource(rec); got != "SEO H1" {
		t.Errorf("got %q, want generated_seo_h1", got)
	}
	rec.GeneratedSEOH1 = ""
	if got := SlugSource(rec); got != "Initial" {
		t.Errorf("got %q, want initial_title", got)
	}
	rec.InitialTitle = ""
	if got := SlugSource(rec); got != "abc123" {
		t.Errorf("got %q, want record ID", got)
	}
}

func TestTruncateAtWordBoundary(t *testing.T) {
	short := "A short title"
	if got := TruncateAtWordBoundary(short, 65); got != short {
		t.Errorf("short input modified: %q", got)
	}

	long := "The quick brown fox jumps over the extraordinarily lazy sleeping dog near the riverbank"
	got := TruncateAtWordBoundary(long, 65)
	if len([]rune(got)) > 65 {
		t.Errorf("output length %d exceeds 65", len([]rune(got)))
	}
	if !strings.HasPrefix(long, got) {
		t.Errorf("output %q is not a prefix of input", got)
	}
	if strings.HasSuffix(got, " ") {
		t.Errorf("output %q has trailing space", got)
	}
	// The cut must land on a word boundary because spaces exist within the
	// lookback window.
	if next := long[len(got)]; next != ' ' {
		t.Errorf("cut lands mid-word: ...%q | next rune %q", got[len(got)-10:], next)
	}

	// No boundary within the window: hard cut at max.
	solid := strings.Repeat("x", 100)
	if got := TruncateAtWordBoundary(solid, 65); len(got) != 65 {
		t.Errorf("hard cut length = %d, want 65", len(got))
	}
}

func TestTruncateMetaDescription(t *testing.T) {
	raw := "  A concise description.  "
	if got := TruncateMetaDescription(raw); got != "A concise description." {
		t.Errorf("got %q, want stripped raw", got)
	}

	long := strings.Repeat("meaningful words in a row ", 12)
	got := TruncateMetaDescription(long)
	if len([]rune(got)) > metaDescHardMaxLen {
		t.Errorf("length %d exceeds hard max %d", len([]rune(got)), metaDescHardMaxLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated description %q missing ellipsis", got)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Site: config.Site{
			BaseURL:    "https://news.example.com",
			Name:       "Newsforge",
			AuthorName: "Newsforge Editorial",
			LogoURL:    "https://news.example.com/logo.png",
		},
	}
}

func TestBuildJSONLDRequiredProperties(t *testing.T) {
	rec := &core.ArticleRecord{
		ID:                     "art-1",
		Slug:                   "quantum-chip-ships",
		FinalPageH1:            "Quantum Chip Ships",
		Summary:                "A quantum chip shipped.",
		PublishedISOUTC:        "2026-08-20T10:00:00Z",
		RetrievedAtUTC:         "2026-08-19T08:00:00Z",
		AssembledArticleBodyMD: "## Intro\n\nThe chip shipped today.\n\n<!-- IMAGE_PLACEHOLDER: chip photo -->",
		FinalKeywords:          []string{"quantum chip", "hardware"},
		PrimaryTopic:           "Quantum Computing",
	}
	raw, err := BuildJSONLD(rec, testConfig(t))
	if err != nil {
		t.Fatalf("BuildJSONLD: %v", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	for _, key := range []string{"@context", "@type", "headline", "mainEntityOfPage", "author", "publisher", "description", "articleBody", "wordCount"} {
		if _, ok := obj[key]; !ok {
			t.Errorf("missing required property %q", key)
		}
	}
	if obj["@type"] != "NewsArticle" {
		t.Errorf("@type = %v, want NewsArticle", obj["@type"])
	}
	if obj["datePublished"] != "2026-08-20T10:00:00Z" {
		t.Errorf("datePublished = %v", obj["datePublished"])
	}
	body, _ := obj["articleBody"].(string)
	if strings.Contains(body, "IMAGE_PLACEHOLDER") {
		t.Errorf("articleBody leaks HTML comment: %q", body)
	}
	if strings.Contains(body, "##") {
		t.Errorf("articleBody retains markdown syntax: %q", body)
	}
	main, _ := obj["mainEntityOfPage"].(map[string]any)
	if main["@id"] != "https://news.example.com/articles/quantum-chip-ships.html" {
		t.Errorf("mainEntityOfPage @id = %v", main["@id"])
	}
}

func TestBuildJSONLDDateInvariants(t *testing.T) {
	rec := &core.ArticleRecord{
		ID:          "art-2",
		Slug:        "s",
		FinalPageH1: "H",
		Summary:     "s",

		PublishedISOUTC: "not-a-date",
		RetrievedAtUTC:  "2026-08-19T08:00:00Z",
	}
	raw, err := BuildJSONLD(rec, testConfig(t))
	if err != nil {
		t.Fatalf("BuildJSONLD: %v", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		t.Fatal(err)
	}
	if _, ok := obj["datePublished"]; ok {
		t.Error("datePublished emitted for unparseable timestamp")
	}
	if _, ok := obj["dateModified"]; ok {
		t.Error("dateModified emitted without datePublished")
	}
}

func TestBuildJSONLDKeywordCap(t *testing.T) {
	rec := &core.ArticleRecord{ID: "art-3", Slug: "s", FinalPageH1: "H"}
	for i := 0; i < 30; i++ {
		rec.FinalKeywords = append(rec.FinalKeywords, string(rune('a'+i%26))+"kw")
	}
	raw, err := BuildJSONLD(rec, testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	var obj struct {
		Keywords string `json:"keywords"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		t.Fatal(err)
	}
	if n := len(strings.Split(obj.Keywords, ", ")); n > 15 {
		t.Errorf("keywords count = %d, want <= 15", n)
	}
}

func TestMarkdownToPlainText(t *testing.T) {
	md := "# Heading\n\nFirst paragraph with **bold** text.\n\n- item one\n- item two\n\n<!-- a comment -->\n"
	got := MarkdownToPlainText(md)
	want := "Heading First paragraph with bold text. item one item two"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestIndexUpsertSortAndAtomicity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all_articles.json")
	ix := NewIndex(path)

	entries := []IndexEntry{
		{ID: "b", Title: "B", PublishedISOUTC: "2026-08-10T00:00:00Z"},
		{ID: "c", Title: "C", PublishedISOUTC: "garbled"},
		{ID: "a", Title: "A", PublishedISOUTC: "2026-08-20T00:00:00Z"},
	}
	for _, e := range entries {
		if err := ix.Upsert(e); err != nil {
			t.Fatalf("Upsert(%s): %v", e.ID, err)
		}
	}

	got, err := ix.Entries()
	if err != nil {
		t.Fatal(err)
	}
	wantOrder := []string{"a", "b", "c"}
	if len(got) != len(wantOrder) {
		t.Fatalf("got %d entries, want %d", len(got), len(wantOrder))
	}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("entry %d = %s, want %s", i, got[i].ID, id)
		}
	}

	// Upsert by the same ID replaces rather than duplicates.
	if err := ix.Upsert(IndexEntry{ID: "b", Title: "B2", PublishedISOUTC: "2026-08-25T00:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	got, _ = ix.Entries()
	if len(got) != 3 {
		t.Fatalf("got %d entries after replace, want 3", len(got))
	}
	if got[0].ID != "b" || got[0].Title != "B2" {
		t.Errorf("replaced entry not re-sorted to front: %+v", got[0])
	}
}

func TestIndexRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all_articles.json")
	ix := NewIndex(path)
	if err := ix.Upsert(IndexEntry{ID: "x", PublishedISOUTC: "2026-08-01T00:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Remove("x"); err != nil {
		t.Fatal(err)
	}
	if err := ix.Remove("x"); err != nil {
		t.Errorf("removing absent ID: %v", err)
	}
	got, _ := ix.Entries()
	if len(got) != 0 {
		t.Errorf("index not empty after remove: %+v", got)
	}
}

func TestPublisherWritesArtifactAndIndex(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.App.SiteDir = filepath.Join(dir, "public")

	p := New(cfg)
	rec := &core.ArticleRecord{
		ID:                     "art-9",
		FinalPageH1:            "Edge Inference Lands",
		GeneratedTitleTag:      "Edge Inference Lands",
		Summary:                "Edge inference landed.",
		AssembledArticleBodyMD: "## Why it matters\n\nBecause latency.",
	}
	if err := p.JSONLD(rec); err != nil {
		t.Fatalf("JSONLD: %v", err)
	}
	if err := p.Publish(rec); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if rec.Slug != "edge-inference-lands" {
		t.Errorf("slug = %q", rec.Slug)
	}
	if rec.TerminalStatus != core.TerminalPublished {
		t.Errorf("terminal status = %q", rec.TerminalStatus)
	}
	if rec.PublishedISOUTC == "" {
		t.Error("publish timestamp not stamped")
	}
	if rec.StageStatus("publish") != core.StatusSuccess {
		t.Errorf("publish status = %q", rec.StageStatus("publish"))
	}

	pageBytes, err := os.ReadFile(filepath.Join(cfg.ArticlesDir(), "edge-inference-lands.html"))
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	page := string(pageBytes)
	for _, want := range []string{"<h1>Edge Inference Lands</h1>", "application/ld+json", `rel="canonical"`, "<h2>Why it matters</h2>"} {
		if !strings.Contains(page, want) {
			t.Errorf("artifact missing %q", want)
		}
	}

	got, err := p.Index().Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "art-9" {
		t.Errorf("index entries = %+v", got)
	}
	if got[0].URL != "https://news.example.com/articles/edge-inference-lands.html" {
		t.Errorf("canonical URL = %q", got[0].URL)
	}

	leftovers, err := filepath.Glob(filepath.Join(cfg.ArticlesDir(), "*.tmp"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}
