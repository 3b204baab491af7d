package stages

import (
	"context"
	"fmt"
	"strings"

	"newsforge/internal/core"
	"newsforge/internal/logger"
)

// Score contributions per assessment signal. The bands are tuned so that a
// clean sweep of top grades lands well above the publish threshold and any
// critical failure lands below the reject line.
var (
	noveltyPoints = map[string]float64{
		"Revolutionary": 30, "Significant": 22, "Incremental": 10, "None": 0,
	}
	impactScalePoints = map[string]float64{
		"Global & Cross-Industry": 25, "Multiple Key Industries": 20, "Specific Tech Sector": 14,
		"Niche Application": 8, "Uncertain/Too Early": 6, "Localized/Limited": 4,
	}
	magnitudePoints = map[string]float64{
		"Transformative": 20, "Substantial": 15, "Moderate": 10, "Minor": 4, "Negligible": 0,
	}
	hypePoints = map[string]float64{
		"Proceed As Is": 10, "Proceed with Caution": 4, "Reject": 0,
	}
	stylePoints = map[string]float64{
		"Publish As Is (Style)": 10, "Minor Style Tweaks": 7, "Substantial Rewrite Recommended": 3, "Reject (Style Unsuitable)": 0,
	}
	corroborationPoints = map[string]float64{
		"Strongly Corroborated": 15, "Moderately Corroborated": 10, "Weakly Corroborated": 4,
		"Unable to Determine": 2, "Isolated Claim/Uncorroborated": 0,
	}
)

// AdjudicatorPrime synthesizes all upstream assessments into the single
// publish/reject decision. The rule table fully determines the outcome, so
// this stage is deterministic: no model call, no sampling drift on the one
// decision that gates publication.
func (a *Analyzer) AdjudicatorPrime(ctx context.Context, rec *core.ArticleRecord) error {
	if rec.NoveltyAssessment == nil && rec.ImpactScopeAssessment == nil &&
		rec.HypeAssessment == nil && rec.StyleAssessment == nil {
		return fmt.Errorf("%w: adjudicator needs at least one upstream assessment", ErrInsufficientInput)
	}

	adjudication := Synthesize(rec)
	rec.FinalAdjudication = &adjudication
	rec.SetStageStatus("adjudicator_prime", core.StatusSuccess)

	logger.Info("Adjudication complete", "article_id", rec.ID,
		"decision", adjudication.FinalPublicationDecision,
		"score", adjudication.OverallValueExcitementScore)
	return nil
}

// Synthesize derives the final adjudication from the six upstream assessment
// blocks. Missing blocks contribute zero and are flagged as concerns.
func Synthesize(rec *core.ArticleRecord) core.FinalAdjudication {
	var score float64
	var concerns []string
	var rationale []string

	if n := rec.NoveltyAssessment; n != nil {
		confidence := n.NoveltyConfidence
		if confidence <= 0 {
			confidence = 1
		}
		score += noveltyPoints[n.NoveltyLevel] * confidence
		rationale = append(rationale, fmt.Sprintf("novelty %s (%.2f)", n.NoveltyLevel, n.NoveltyConfidence))
	} else {
		concerns = append(concerns, "novelty assessment missing")
	}

	if im := rec.ImpactScopeAssessment; im != nil {
		score += impactScalePoints[im.EstimatedImpactScale]
		score += magnitudePoints[im.ImpactMagnitudeQualifier]
		rationale = append(rationale, fmt.Sprintf("impact %s/%s", im.EstimatedImpactScale, im.ImpactMagnitudeQualifier))
	} else {
		concerns = append(concerns, "impact assessment missing")
	}

	hypeRec := ""
	if h := rec.HypeAssessment; h != nil {
		hypeRec = h.RecommendationForPublication
		score += hypePoints[hypeRec]
		rationale = append(rationale, fmt.Sprintf("hype recommendation %q", hypeRec))
	} else {
		concerns = append(concerns, "hype assessment missing")
	}

	styleRec := ""
	if s := rec.StyleAssessment; s != nil {
		styleRec = s.OverallStylisticRecommendation
		score += stylePoints[styleRec]
		rationale = append(rationale, fmt.Sprintf("style recommendation %q", styleRec))
	} else {
		concerns = append(concerns, "style assessment missing")
	}

	corrLevel := ""
	if c := rec.CorroborationAssessment; c != nil {
		corrLevel = c.CorroborationLevel
		score += corroborationPoints[corrLevel]
		rationale = append(rationale, fmt.Sprintf("corroboration %s", corrLevel))
		if c.ConflictingInformationFlag {
			concerns = append(concerns, "conflicting information reported by other sources")
		}
	} else {
		concerns = append(concerns, "corroboration assessment missing")
	}

	if score > 100 {
		score = 100
	}

	boringNoOverride := false
	if p := rec.EditorialPrimeAssessment; p != nil {
		boringNoOverride = p.PreliminaryImportanceLevel == "Boring" && !p.CriticalOverrideTriggered
	}

	criticalFailure := corrLevel == "Isolated Claim/Uncorroborated" ||
		hypeRec == "Reject" ||
		styleRec == "Reject (Style Unsuitable)" ||
		boringNoOverride
	caution := hypeRec == "Proceed with Caution" ||
		styleRec == "Substantial Rewrite Recommended" ||
		corrLevel == "Weakly Corroborated"
	corroborated := corrLevel == "Strongly Corroborated" || corrLevel == "Moderately Corroborated"
	minorOnly := (styleRec == "" || styleRec == "Publish As Is (Style)" || styleRec == "Minor Style Tweaks") &&
		hypeRec != "Proceed with Caution"

	var decision string
	switch {
	case score < 50 || criticalFailure:
		decision = core.DecisionReject
	case score >= 85 && !caution && corroborated:
		decision = core.DecisionPublishImmediately
	case score >= 70 && score < 85 && minorOnly:
		decision = core.DecisionPublishMinorEdits
	default:
		decision = core.DecisionFlagForReview
	}

	if decision == core.DecisionFlagForReview && caution {
		concerns = append(concerns, "mixed upstream signals require human judgement")
	}

	return core.FinalAdjudication{
		FinalPublicationDecision:    decision,
		OverallValueExcitementScore: score,
		DecisionRationale:           strings.Join(rationale, "; "),
		SpecificConcerns:            concerns,
	}
}
