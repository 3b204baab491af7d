package stages

import (
	"context"

	"newsforge/internal/core"
	"newsforge/internal/llm"
)

// Novelty grades how new the reported development is.
func (a *Analyzer) Novelty(ctx context.Context, rec *core.ArticleRecord) error {
	if err := requireText(rec); err != nil {
		return err
	}
	var block core.NoveltyAssessment
	err := a.callStage(ctx, llm.ProfileDeterministicJSON, noveltyPrompt, analysisPayload(rec),
		[]string{"novelty_level", "novelty_confidence", "breakthrough_evidence"},
		&block)
	if err != nil {
		return err
	}
	rec.NoveltyAssessment = &block
	rec.SetStageStatus("novelty", core.StatusSuccess)
	return nil
}

// ImpactScope estimates reach and magnitude.
func (a *Analyzer) ImpactScope(ctx context.Context, rec *core.ArticleRecord) error {
	if err := requireText(rec); err != nil {
		return err
	}
	var block core.ImpactScopeAssessment
	err := a.callStage(ctx, llm.ProfileAnalytical, impactScopePrompt, analysisPayload(rec),
		[]string{"estimated_impact_scale", "target_audience_relevance", "timeframe", "impact_magnitude_qualifier", "impact_confidence_score", "impact_rationale_summary"},
		&block)
	if err != nil {
		return err
	}
	rec.ImpactScopeAssessment = &block
	rec.SetStageStatus("impact_scope", core.StatusSuccess)
	return nil
}

// HypeDetector measures marketing inflation versus substantiated claims.
func (a *Analyzer) HypeDetector(ctx context.Context, rec *core.ArticleRecord) error {
	if err := requireText(rec); err != nil {
		return err
	}
	var block core.HypeAssessment
	err := a.callStage(ctx, llm.ProfileAnalytical, hypeDetectorPrompt, analysisPayload(rec),
		[]string{"hype_score", "substantiation_level", "identified_hype_phrases", "evidence_gaps_summary", "overall_content_tone_evaluation", "recommendation_for_publication"},
		&block)
	if err != nil {
		return err
	}
	rec.HypeAssessment = &block
	rec.SetStageStatus("hype_detector", core.StatusSuccess)
	return nil
}

// SophisticationStylist grades the writing for an expert audience.
func (a *Analyzer) SophisticationStylist(ctx context.Context, rec *core.ArticleRecord) error {
	if err := requireText(rec); err != nil {
		return err
	}
	var block core.StyleAssessment
	err := a.callStage(ctx, llm.ProfileAnalytical, stylePrompt, analysisPayload(rec),
		[]string{"technical_depth_level", "language_sophistication", "tone_suitability_for_experts", "clarity_of_explanation_score", "jargon_usage_evaluation", "overall_stylistic_recommendation"},
		&block)
	if err != nil {
		return err
	}
	rec.StyleAssessment = &block
	rec.SetStageStatus("sophistication_stylist", core.StatusSuccess)
	return nil
}
