package stages

import (
	"newsforge/internal/core"
)

// ApplyFallback writes the documented conservative default assessment block
// for a failed or skipped stage, so every later stage and the publisher see a
// complete record. It never overwrites a block the stage managed to write.
func ApplyFallback(stage string, rec *core.ArticleRecord) {
	switch stage {
	case "editorial_prime":
		if rec.EditorialPrimeAssessment == nil {
			rec.EditorialPrimeAssessment = &core.EditorialPrimeAssessment{
				CoreSubjectEvent:           rec.InitialTitle,
				FirstPassSummary:           rec.Summary,
				PreliminaryImportanceLevel: "Medium",
				TechRelevanceScore:         0.5,
			}
		}
	case "novelty":
		if rec.NoveltyAssessment == nil {
			rec.NoveltyAssessment = &core.NoveltyAssessment{
				NoveltyLevel:      "Incremental",
				NoveltyConfidence: 0.3,
			}
		}
	case "impact_scope":
		if rec.ImpactScopeAssessment == nil {
			rec.ImpactScopeAssessment = &core.ImpactScopeAssessment{
				EstimatedImpactScale:     "Uncertain/Too Early",
				Timeframe:                "Speculative",
				ImpactMagnitudeQualifier: "Moderate",
				ImpactConfidenceScore:    0.3,
				ImpactRationaleSummary:   "Assessment unavailable; conservative default applied.",
			}
		}
	case "hype_detector":
		if rec.HypeAssessment == nil {
			rec.HypeAssessment = &core.HypeAssessment{
				HypeScore:                    0.5,
				SubstantiationLevel:          "Poorly Substantiated",
				EvidenceGapsSummary:          "Assessment unavailable; conservative default applied.",
				RecommendationForPublication: "Proceed with Caution",
			}
		}
	case "sophistication_stylist":
		if rec.StyleAssessment == nil {
			rec.StyleAssessment = &core.StyleAssessment{
				TechnicalDepthLevel:            "Intermediate",
				LanguageSophistication:         "Adequate",
				ToneSuitabilityForExperts:      "Acceptable",
				ClarityOfExplanationScore:      0.5,
				OverallStylisticRecommendation: "Minor Style Tweaks",
			}
		}
	case "corroboration_cognito":
		if rec.CorroborationAssessment == nil {
			rec.CorroborationAssessment = &core.CorroborationAssessment{
				CorroborationLevel:      "Unable to Determine",
				CorroborationConfidence: 0.2,
			}
		}
	case "adjudicator_prime":
		if rec.FinalAdjudication == nil {
			rec.FinalAdjudication = &core.FinalAdjudication{
				FinalPublicationDecision:    core.DecisionFlagForReview,
				OverallValueExcitementScore: 30,
				DecisionRationale:           "Adjudication failed; routed to human review by default.",
			}
		}
	case "keyword_intelligence":
		if len(rec.FinalKeywords) == 0 && rec.PrimaryTopic != "" {
			rec.FinalKeywords = []string{rec.PrimaryTopic}
		}
	case "title":
		if rec.FinalPageH1 == "" {
			rec.FinalPageH1 = rec.InitialTitle
		}
	case "description":
		// Left empty: the publisher falls back to the summary.
	}
}
