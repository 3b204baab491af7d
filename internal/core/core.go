// Package core defines the article record carried through the editorial
// pipeline and the assessment blocks written by each analyzer stage.
package core

import (
	"encoding/json"
	"time"
)

// Stage status values. These strings are contracts: they are persisted in
// article records and parsed by downstream tooling.
const (
	StatusSuccess                = "SUCCESS"
	StatusFailedWithFallback     = "FAILED_WITH_FALLBACK"
	StatusFailedLLMCall          = "FAILED_LLM_CALL"
	StatusFailedEmbedding        = "FAILED_EMBEDDING"
	StatusSkippedInsufficient    = "SKIPPED_INSUFFICIENT_INPUT"
	StatusSkippedTextTooShort    = "SKIPPED_TEXT_TOO_SHORT"
	StatusWarningPartialAssembly = "WARNING_PARTIAL_ASSEMBLY"
	StatusWarningAllBodyFailed   = "WARNING_ALL_BODY_SECTIONS_FAILED"
)

// Terminal pipeline statuses. A record carrying one of these is done: it will
// not be picked up by another pipeline run.
const (
	TerminalDuplicate           = "TERMINAL_DUPLICATE"
	TerminalRejectedBoring      = "TERMINAL_REJECTED_BORING"
	TerminalRejectedAdjudicator = "TERMINAL_REJECTED_ADJUDICATOR"
	TerminalPublished           = "TERMINAL_PUBLISHED"
)

// Final publication decisions produced by the adjudicator stage.
const (
	DecisionPublishImmediately = "Publish Immediately"
	DecisionPublishMinorEdits  = "Publish with Minor Edits (Automated)"
	DecisionFlagForReview      = "Flag for Human Review (Specific Concerns)"
	DecisionReject             = "Reject (Clear Reasons)"
)

// ArticleRecord is the single authoritative entity carried through the
// pipeline. It is created once at ingest and mutated only by stage status
// handlers adding or overwriting keys. Assessment blocks are pointers so that
// "stage has not run" is distinguishable from a zero-valued assessment.
type ArticleRecord struct {
	ID                string `json:"id"`                  // Slug-safe stable identifier assigned at ingest
	OriginalSourceURL string `json:"original_source_url"` // Where the candidate was scraped from
	InitialTitle      string `json:"initial_title"`       // Title as seen at ingest
	RawScrapedText    string `json:"raw_scraped_text"`    // Unprocessed scraped body text
	RetrievedAtUTC    string `json:"retrieved_at_utc"`    // ISO-8601 retrieval timestamp
	PublishedISOUTC   string `json:"published_iso_utc"`   // ISO-8601 publish timestamp (set by publisher)

	Summary          string `json:"summary,omitempty"`
	ProcessedSummary string `json:"processed_summary,omitempty"`

	PrimaryTopic      string   `json:"primary_topic,omitempty"`
	CandidateKeywords []string `json:"candidate_keywords,omitempty"`
	FinalKeywords     []string `json:"final_keywords,omitempty"` // Ordered; primary keyword at index 0

	// Per-stage assessment blocks.
	EditorialPrimeAssessment *EditorialPrimeAssessment `json:"editorial_prime_assessment,omitempty"`
	NoveltyAssessment        *NoveltyAssessment        `json:"novelty_assessment,omitempty"`
	ImpactScopeAssessment    *ImpactScopeAssessment    `json:"impact_scope_assessment,omitempty"`
	HypeAssessment           *HypeAssessment           `json:"hype_assessment,omitempty"`
	StyleAssessment          *StyleAssessment          `json:"style_assessment,omitempty"`
	CorroborationAssessment  *CorroborationAssessment  `json:"corroboration_assessment,omitempty"`
	FinalAdjudication        *FinalAdjudication        `json:"final_adjudication,omitempty"`

	// Per-stage statuses keyed by "<stage>_status". Once a stage writes its
	// status, earlier statuses are never touched again.
	StageStatuses map[string]string `json:"stage_statuses,omitempty"`

	// Terminal pipeline status, empty while the record is still in flight.
	TerminalStatus string `json:"terminal_status,omitempty"`

	ArticleOutline *ArticleOutline `json:"article_outline,omitempty"`

	AssembledArticleBodyMD      string `json:"assembled_article_body_md,omitempty"`
	GeneratedArticleBodyMDFinal string `json:"generated_article_body_md_final,omitempty"`

	Slug                     string          `json:"slug,omitempty"`
	FinalPageH1              string          `json:"final_page_h1,omitempty"` // Set exactly once by the title stage
	GeneratedTitleTag        string          `json:"generated_title_tag,omitempty"`
	GeneratedSEOH1           string          `json:"generated_seo_h1,omitempty"`
	GeneratedMetaDescription string          `json:"generated_meta_description,omitempty"`
	GeneratedJSONLDObject    json.RawMessage `json:"generated_json_ld_object,omitempty"`

	SelectedImageURL       string           `json:"selected_image_url,omitempty"`
	MediaCandidatesForBody []MediaCandidate `json:"media_candidates_for_body,omitempty"`

	AudioURL     string `json:"audio_url,omitempty"`
	TTSTaskState string `json:"tts_task_state,omitempty"`

	IsDuplicate              bool            `json:"is_duplicate"`
	HighestSimilarArticleID  string          `json:"highest_similar_article_id,omitempty"`
	SimilarityScoreToHighest float64         `json:"similarity_score_to_highest,omitempty"`
	NearDuplicatesFound      []NearDuplicate `json:"near_duplicates_found,omitempty"`

	// Manual ingest metadata ("picks" tool).
	ManualImportance string `json:"manual_importance,omitempty"` // Breaking, High, Normal
	ManualTrending   bool   `json:"manual_trending,omitempty"`
	ManualImageURL   string `json:"manual_image_url,omitempty"`

	// Extra holds experimental fields that have not yet graduated to a typed
	// slot. Stages must not depend on it for control flow.
	Extra map[string]json.RawMessage `json:"extra,omitempty"`
}

// StageStatus returns the recorded status for a stage, or "" if unset.
func (r *ArticleRecord) StageStatus(stage string) string {
	if r.StageStatuses == nil {
		return ""
	}
	return r.StageStatuses[stage+"_status"]
}

// SetStageStatus records the status for a stage. Earlier stage statuses are
// never modified by later stages.
func (r *ArticleRecord) SetStageStatus(stage, status string) {
	if r.StageStatuses == nil {
		r.StageStatuses = make(map[string]string)
	}
	r.StageStatuses[stage+"_status"] = status
}

// PrimaryKeyword returns the canonical primary keyword with the documented
// fallback chain: final_keywords[0], then primary_topic, then initial_title.
func (r *ArticleRecord) PrimaryKeyword() string {
	if len(r.FinalKeywords) > 0 && r.FinalKeywords[0] != "" {
		return r.FinalKeywords[0]
	}
	if r.PrimaryTopic != "" {
		return r.PrimaryTopic
	}
	return r.InitialTitle
}

// EditorialPrimeAssessment is the first-pass triage written by the
// editorial_prime stage.
type EditorialPrimeAssessment struct {
	CoreSubjectEvent           string   `json:"core_subject_event"`
	FirstPassSummary           string   `json:"first_pass_summary"`
	PreliminaryKeyEntities     []string `json:"preliminary_key_entities"`
	PreliminaryImportanceLevel string   `json:"preliminary_importance_level"` // Critical, High, Medium, Low, Boring
	TechRelevanceScore         float64  `json:"tech_relevance_score"`
	CriticalOverrideTriggered  bool     `json:"critical_override_triggered"`
}

// NoveltyAssessment grades how new the reported development actually is.
type NoveltyAssessment struct {
	NoveltyLevel         string   `json:"novelty_level"` // Revolutionary, Significant, Incremental, None
	NoveltyConfidence    float64  `json:"novelty_confidence"`
	BreakthroughEvidence []string `json:"breakthrough_evidence"`
}

// ImpactScopeAssessment estimates reach and magnitude of the development.
type ImpactScopeAssessment struct {
	EstimatedImpactScale     string             `json:"estimated_impact_scale"`
	AffectedSectors          []string           `json:"affected_sectors"`
	SecondaryAffectedSectors []string           `json:"secondary_affected_sectors"`
	TargetAudienceRelevance  map[string]float64 `json:"target_audience_relevance"` // Seven named audiences -> [0,1]
	Timeframe                string             `json:"timeframe"`                 // Immediate, Short-term, Medium-term, Long-term, Speculative
	ImpactMagnitudeQualifier string             `json:"impact_magnitude_qualifier"` // Transformative .. Negligible
	ImpactConfidenceScore    float64            `json:"impact_confidence_score"`
	ImpactRationaleSummary   string             `json:"impact_rationale_summary"`
}

// HypeAssessment measures marketing inflation versus substantiated claims.
type HypeAssessment struct {
	HypeScore                    float64  `json:"hype_score"`
	SubstantiationLevel          string   `json:"substantiation_level"` // Well-Substantiated .. Highly Unsubstantiated
	IdentifiedHypePhrases        []string `json:"identified_hype_phrases"`
	EvidenceGapsSummary          string   `json:"evidence_gaps_summary"`
	OverallContentToneEvaluation string   `json:"overall_content_tone_evaluation"`
	RecommendationForPublication string   `json:"recommendation_for_publication"` // Proceed As Is, Proceed with Caution, Reject
}

// StyleAssessment grades writing sophistication for an expert audience.
type StyleAssessment struct {
	TechnicalDepthLevel            string  `json:"technical_depth_level"`
	LanguageSophistication         string  `json:"language_sophistication"`
	ToneSuitabilityForExperts      string  `json:"tone_suitability_for_experts"`
	ClarityOfExplanationScore      float64 `json:"clarity_of_explanation_score"`
	JargonUsageEvaluation          string  `json:"jargon_usage_evaluation"`
	OverallStylisticRecommendation string  `json:"overall_stylistic_recommendation"` // Publish As Is (Style), Minor Style Tweaks, Substantial Rewrite Recommended, Reject (Style Unsuitable)
}

// CorroborationAssessment records independent-source support for the claims.
// The article's own domain is always excluded from corroboration counts.
type CorroborationAssessment struct {
	CorroborationLevel         string   `json:"corroboration_level"` // Strongly, Moderately, Weakly, Isolated Claim/Uncorroborated, Unable to Determine
	Tier1SupportingDomains     []string `json:"tier1_supporting_domains"`
	Tier2SupportingDomains     []string `json:"tier2_supporting_domains"`
	ConflictingInformationFlag bool     `json:"conflicting_information_flag"`
	CorroborationConfidence    float64  `json:"corroboration_confidence"`
}

// FinalAdjudication is the terminal pre-publish synthesis of all upstream
// assessments.
type FinalAdjudication struct {
	FinalPublicationDecision    string   `json:"final_publication_decision"`
	OverallValueExcitementScore float64  `json:"overall_value_excitement_score"` // [0,100]
	DecisionRationale           string   `json:"decision_rationale"`
	SpecificConcerns            []string `json:"specific_concerns,omitempty"`
}

// ArticleOutline is the ordered section plan produced by the outline stage and
// filled in by the section writer.
type ArticleOutline struct {
	Sections []OutlineSection `json:"sections"`
}

// OutlineSection is a single planned section of the article body.
type OutlineSection struct {
	Type              string `json:"type"` // introduction, body, analysis, conclusion, ...
	HeadingSuggestion string `json:"heading_suggestion"`
	FocusDescription  string `json:"focus_description,omitempty"`
	GeneratedMarkdown string `json:"generated_markdown,omitempty"`
	WriterStatus      string `json:"writer_status,omitempty"`
}

// MediaCandidate is one placeholder-to-image resolution candidate.
type MediaCandidate struct {
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	AltText     string `json:"alt_text"`
	VLMCaption  string `json:"vlm_caption,omitempty"`
}

// NearDuplicate records one prior article scored close to this record during
// dedup classification.
type NearDuplicate struct {
	ArticleID string  `json:"article_id"`
	Score     float64 `json:"score"`
}

// NowUTC returns the current time formatted the way the record store persists
// timestamps. Centralized so every stage stamps identically.
func NowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
