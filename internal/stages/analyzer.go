// Package stages implements the specialist analyzer stages. Each stage reads
// a declared subset of the article record, makes one structured LLM call, and
// writes exactly one assessment block plus one status key. Conservative
// defaults for every block live here too, so a failed stage still leaves a
// complete record for downstream consumers.
package stages

import (
	"context"
	"errors"
	"fmt"

	"newsforge/internal/config"
	"newsforge/internal/core"
	"newsforge/internal/llm"
	"newsforge/internal/search"
)

// ErrInsufficientInput signals that a stage's declared inputs are missing.
// The stage runner converts it to SKIPPED_INSUFFICIENT_INPUT rather than a
// failure.
var ErrInsufficientInput = errors.New("stages: insufficient input")

// Analyzer bundles the collaborators shared by all assessment stages.
type Analyzer struct {
	LLM      *llm.Client
	Search   search.Provider
	Cfg      *config.Config
}

// NewAnalyzer wires an analyzer from its collaborators.
func NewAnalyzer(client *llm.Client, provider search.Provider, cfg *config.Config) *Analyzer {
	return &Analyzer{LLM: client, Search: provider, Cfg: cfg}
}

// snippet bounds the scraped text passed to analyzer prompts. Analyzers need
// enough body to judge, not the whole article.
func snippet(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max]
}

// requireText returns ErrInsufficientInput when a record has neither summary
// nor scraped body to analyze.
func requireText(rec *core.ArticleRecord) error {
	if rec.Summary == "" && rec.RawScrapedText == "" {
		return fmt.Errorf("%w: record %s has no summary or scraped text", ErrInsufficientInput, rec.ID)
	}
	return nil
}

// analysisPayload is the common user-message body for assessment prompts.
func analysisPayload(rec *core.ArticleRecord) string {
	summary := rec.Summary
	if prime := rec.EditorialPrimeAssessment; prime != nil && prime.FirstPassSummary != "" {
		summary = prime.FirstPassSummary
	}
	return fmt.Sprintf("Title: %s\n\nSummary: %s\n\nArticle text (excerpt):\n%s",
		rec.InitialTitle, summary, snippet(rec.RawScrapedText, 6000))
}

// callStage performs one structured LLM call and decodes the response into a
// typed assessment block.
func (a *Analyzer) callStage(ctx context.Context, profile llm.Profile, systemPrompt, payload string, expectKeys []string, out any) error {
	parsed, err := a.LLM.Call(ctx, profile, systemPrompt, payload, expectKeys)
	if err != nil {
		return err
	}
	return llm.DecodeInto(parsed, out)
}
