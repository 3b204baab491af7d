package stages

import (
	"context"

	"newsforge/internal/core"
	"newsforge/internal/llm"
	"newsforge/internal/logger"
)

// EditorialPrime is the first-pass triage stage. It establishes the core
// subject event and the working summary every later analyzer builds on.
func (a *Analyzer) EditorialPrime(ctx context.Context, rec *core.ArticleRecord) error {
	if err := requireText(rec); err != nil {
		return err
	}

	var block core.EditorialPrimeAssessment
	err := a.callStage(ctx, llm.ProfileDeterministicJSON, editorialPrimePrompt, analysisPayload(rec),
		[]string{"core_subject_event", "first_pass_summary", "preliminary_key_entities", "preliminary_importance_level", "tech_relevance_score"},
		&block)
	if err != nil {
		return err
	}

	// Manual picks flagged Breaking are treated as critical overrides so the
	// boring gate cannot drop them.
	if rec.ManualImportance == "Breaking" {
		block.CriticalOverrideTriggered = true
	}

	rec.EditorialPrimeAssessment = &block
	if rec.Summary == "" {
		rec.Summary = block.FirstPassSummary
	}
	if rec.PrimaryTopic == "" && len(block.PreliminaryKeyEntities) > 0 {
		rec.PrimaryTopic = block.PreliminaryKeyEntities[0]
	}
	rec.SetStageStatus("editorial_prime", core.StatusSuccess)

	logger.Debug("Editorial prime complete", "article_id", rec.ID,
		"importance", block.PreliminaryImportanceLevel, "override", block.CriticalOverrideTriggered)
	return nil
}
