package dedup

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"newsforge/internal/core"
	"newsforge/internal/embedding"
)

func testRecord(id, title, summary, raw string) *core.ArticleRecord {
	return &core.ArticleRecord{
		ID:             id,
		InitialTitle:   title,
		Summary:        summary,
		RawScrapedText: raw,
	}
}

func longText(base string) string {
	return base + " " + strings.Repeat("Universal AI Corp announced benchmark results across reasoning comprehension and language understanding tasks. ", 3)
}

func TestCosineSimilaritySymmetry(t *testing.T) {
	a := []float64{0.2, 0.5, 0.9, 0.1}
	b := []float64{0.7, 0.3, 0.2, 0.8}

	ab := CosineSimilarity(a, b)
	ba := CosineSimilarity(b, a)
	if math.Abs(ab-ba) > 1e-6 {
		t.Errorf("Cosine similarity not symmetric: %f vs %f", ab, ba)
	}
}

func TestCosineSimilarityZeroNorm(t *testing.T) {
	zero := []float64{0, 0, 0}
	other := []float64{1, 2, 3}
	if sim := CosineSimilarity(zero, other); sim != 0 {
		t.Errorf("Expected 0 similarity for zero-norm vector, got %f", sim)
	}
}

func TestCosineSimilarityLengthMismatch(t *testing.T) {
	if sim := CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}); sim != 0 {
		t.Errorf("Expected 0 similarity for mismatched lengths, got %f", sim)
	}
}

func TestClassifyFirstEntryIsUnique(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "historical_embeddings.json"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	rec := testRecord("first-article", "AI Breakthrough Announced", "", longText("New model achieves state of the art results."))
	verdict, err := store.Classify(context.Background(), rec, &embedding.MockEmbedder{}, DefaultOptions())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if verdict.Classification != ClassUnique {
		t.Errorf("Expected UNIQUE for empty store, got %s", verdict.Classification)
	}
	if !store.Has("first-article") {
		t.Error("Unique record should be stored")
	}
}

func TestClassifyDuplicateNotStored(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "historical_embeddings.json"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	embedder := &embedding.MockEmbedder{}
	ctx := context.Background()

	original := testRecord("original",
		"AI Breakthrough: New Model Achieves Human-Level Understanding",
		"Universal AI Corp announced that its Cognito-7 model reached human-level comprehension across standard benchmarks.",
		longText("The Cognito-7 model from Universal AI Corp demonstrates reasoning and comprehension."))
	if _, err := store.Classify(ctx, original, embedder, DefaultOptions()); err != nil {
		t.Fatalf("Classify original failed: %v", err)
	}

	candidate := testRecord("candidate",
		"Major AI Milestone: Cognito-7 Model Reaches Human-Like Comprehension and Reasoning",
		"Universal AI Corp announced that its Cognito-7 model reached human-level comprehension across standard benchmarks.",
		longText("The Cognito-7 model from Universal AI Corp demonstrates reasoning and comprehension."))
	verdict, err := store.Classify(ctx, candidate, embedder, DefaultOptions())
	if err != nil {
		t.Fatalf("Classify candidate failed: %v", err)
	}

	if verdict.HighestScore < 0.82 {
		t.Errorf("Expected similarity >= 0.82 for near-identical content, got %f", verdict.HighestScore)
	}
	if verdict.HighestID != "original" {
		t.Errorf("Expected highest match to be original, got %s", verdict.HighestID)
	}
	if verdict.Classification == ClassDuplicate && store.Has("candidate") {
		t.Error("Hard duplicate must not be added to the store")
	}
}

func TestClassifySkipsShortText(t *testing.T) {
	store, _ := Open(filepath.Join(t.TempDir(), "store.json"))
	rec := testRecord("short", "Tiny", "", "too short")

	verdict, err := store.Classify(context.Background(), rec, &embedding.MockEmbedder{}, DefaultOptions())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if verdict.Status != core.StatusSkippedTextTooShort {
		t.Errorf("Expected SKIPPED_TEXT_TOO_SHORT, got %s", verdict.Status)
	}
	if store.Has("short") {
		t.Error("Skipped record must not be stored")
	}
}

func TestClassifyEmbeddingFailure(t *testing.T) {
	store, _ := Open(filepath.Join(t.TempDir(), "store.json"))
	rec := testRecord("fail", "A Perfectly Reasonable Title", "", longText("body"))
	embedder := &embedding.MockEmbedder{Fail: errors.New("api down")}

	verdict, err := store.Classify(context.Background(), rec, embedder, DefaultOptions())
	if err == nil {
		t.Fatal("Expected error from failing embedder")
	}
	if verdict.Status != core.StatusFailedEmbedding {
		t.Errorf("Expected FAILED_EMBEDDING, got %s", verdict.Status)
	}
}

func TestStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "historical_embeddings.json")
	store, _ := Open(path)
	rec := testRecord("persisted", "A Title Long Enough To Matter", "", longText("content"))
	if _, err := store.Classify(context.Background(), rec, &embedding.MockEmbedder{}, DefaultOptions()); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if !reopened.Has("persisted") {
		t.Error("Expected entry to survive reopen")
	}
}

func TestBuildClassificationTextCleaning(t *testing.T) {
	rec := testRecord("x", "Title   Here", "Summary\n\ntext", "Body text. Image credit: Getty Images\nMore body.")
	text := BuildClassificationText(rec, 2000)

	if strings.Contains(text, "  ") {
		t.Error("Whitespace should be collapsed")
	}
	if strings.Contains(strings.ToLower(text), "getty") {
		t.Error("Image credits should be stripped")
	}
}

func TestBuildClassificationTextSnippetBound(t *testing.T) {
	raw := strings.Repeat("a", 5000)
	rec := testRecord("x", "T", "S", raw)
	text := BuildClassificationText(rec, 2000)
	if len(text) > 2100 {
		t.Errorf("Classification text should be bounded by the snippet limit, got %d chars", len(text))
	}
}
