package stages

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newsforge/internal/config"
	"newsforge/internal/core"
	"newsforge/internal/llm"
	"newsforge/internal/publish"
	"newsforge/internal/search"
)

// scriptedLLM returns a test server that answers each chat request with the
// next content string, and the client pointed at it.
func scriptedLLM(t *testing.T, responses ...string) *llm.Client {
	t.Helper()
	i := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if i >= len(responses) {
			t.Errorf("unexpected extra LLM call %d", i)
			http.Error(w, "exhausted", http.StatusInternalServerError)
			return
		}
		content := responses[i]
		i++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		LLM: config.LLM{
			APIKey:             "test-key",
			Endpoint:           srv.URL,
			ModelDeterministic: "m-det",
			ModelAnalytical:    "m-ana",
			ModelCreative:      "m-cre",
		},
	}
	client, err := llm.NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func seoAnalyzer(t *testing.T, responses ...string) *Analyzer {
	t.Helper()
	return NewAnalyzer(scriptedLLM(t, responses...), search.NewMockProvider(), &config.Config{})
}

func TestKeywordIntelligenceOrdering(t *testing.T) {
	a := seoAnalyzer(t, `{
		"primary_keyword": "Quantum Chips",
		"secondary_keywords": ["quantum chips", "Error Correction"],
		"long_tail_keywords": ["quantum chips at scale"],
		"entity_keywords": ["QubitWorks", "error correction"]
	}`)
	rec := &core.ArticleRecord{ID: "art-kw", Summary: "A chip announcement."}

	if err := a.KeywordIntelligence(context.Background(), rec); err != nil {
		t.Fatalf("KeywordIntelligence: %v", err)
	}

	want := []string{"Quantum Chips", "Error Correction", "quantum chips at scale", "QubitWorks"}
	if len(rec.FinalKeywords) != len(want) {
		t.Fatalf("final_keywords = %v, want %v", rec.FinalKeywords, want)
	}
	for i, kw := range want {
		if rec.FinalKeywords[i] != kw {
			t.Errorf("final_keywords[%d] = %q, want %q", i, rec.FinalKeywords[i], kw)
		}
	}
	if rec.StageStatus("keyword_intelligence") != core.StatusSuccess {
		t.Errorf("keyword_intelligence_status = %q", rec.StageStatus("keyword_intelligence"))
	}
}

func TestKeywordIntelligenceEmptyPrimary(t *testing.T) {
	a := seoAnalyzer(t, `{"primary_keyword": " ", "secondary_keywords": [], "long_tail_keywords": [], "entity_keywords": []}`)
	rec := &core.ArticleRecord{ID: "art-kw2", Summary: "Something."}

	if err := a.KeywordIntelligence(context.Background(), rec); !errors.Is(err, ErrInsufficientInput) {
		t.Errorf("err = %v, want ErrInsufficientInput", err)
	}
}

func TestTitleSetsH1OnceAndSlug(t *testing.T) {
	a := seoAnalyzer(t, `{
		"generated_title_tag": "Quantum Chips Arrive",
		"generated_seo_h1": "Quantum Chips Arrive at Last",
		"final_page_h1": "Quantum Chips Arrive at Last!"
	}`)
	rec := &core.ArticleRecord{ID: "art-title", Summary: "A chip announcement."}

	if err := a.Title(context.Background(), rec); err != nil {
		t.Fatalf("Title: %v", err)
	}
	if rec.FinalPageH1 != "Quantum Chips Arrive at Last!" {
		t.Errorf("final_page_h1 = %q", rec.FinalPageH1)
	}
	if rec.Slug != "quantum-chips-arrive-at-last" {
		t.Errorf("slug = %q", rec.Slug)
	}
}

func TestTitleRefusesToOverwriteH1(t *testing.T) {
	a := seoAnalyzer(t, `{
		"generated_title_tag": "New Tag",
		"generated_seo_h1": "New SEO H1",
		"final_page_h1": "New H1"
	}`)
	rec := &core.ArticleRecord{
		ID:          "art-title2",
		Summary:     "A chip announcement.",
		FinalPageH1: "Original H1",
		Slug:        "original-h1",
	}

	if err := a.Title(context.Background(), rec); err != nil {
		t.Fatalf("Title: %v", err)
	}
	if rec.FinalPageH1 != "Original H1" {
		t.Errorf("final_page_h1 = %q, want unchanged", rec.FinalPageH1)
	}
	if rec.Slug != "original-h1" {
		t.Errorf("slug = %q, want unchanged", rec.Slug)
	}
	if rec.GeneratedTitleTag != "New Tag" {
		t.Errorf("generated_title_tag = %q, derived fields should still update", rec.GeneratedTitleTag)
	}
}

func TestTitleTruncatesTitleTag(t *testing.T) {
	long := strings.Repeat("quantum breakthrough ", 6)
	a := seoAnalyzer(t, `{
		"generated_title_tag": "`+long+`",
		"generated_seo_h1": "Short H1",
		"final_page_h1": "Short H1"
	}`)
	rec := &core.ArticleRecord{ID: "art-title3", Summary: "A chip announcement."}

	if err := a.Title(context.Background(), rec); err != nil {
		t.Fatalf("Title: %v", err)
	}
	if got := len([]rune(rec.GeneratedTitleTag)); got > publish.TitleTagMaxLen {
		t.Errorf("generated_title_tag length = %d, want <= %d", got, publish.TitleTagMaxLen)
	}
}

func TestDescriptionTruncated(t *testing.T) {
	long := strings.Repeat("An unusually verbose sentence about chips. ", 8)
	a := seoAnalyzer(t, `{"generated_meta_description": "`+strings.TrimSpace(long)+`"}`)
	rec := &core.ArticleRecord{ID: "art-desc", Summary: "A chip announcement."}

	if err := a.Description(context.Background(), rec); err != nil {
		t.Fatalf("Description: %v", err)
	}
	if got := len([]rune(rec.GeneratedMetaDescription)); got > 160 {
		t.Errorf("meta description length = %d, want <= 160", got)
	}
	if !strings.HasSuffix(rec.GeneratedMetaDescription, "...") {
		t.Errorf("meta description %q should end with ellipsis after truncation", rec.GeneratedMetaDescription)
	}
}
