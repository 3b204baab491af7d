package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"newsforge/internal/core"
	"newsforge/internal/llm"
	"newsforge/internal/logger"
	"newsforge/internal/search"
)

// CorroborationCognito checks how independently corroborated the core subject
// event is. It consumes the search provider (live or simulated) and the prior
// editorial_prime output; the article's own domain never counts as
// corroboration.
func (a *Analyzer) CorroborationCognito(ctx context.Context, rec *core.ArticleRecord) error {
	prime := rec.EditorialPrimeAssessment
	if prime == nil || prime.CoreSubjectEvent == "" {
		return fmt.Errorf("%w: corroboration needs core_subject_event from editorial_prime", ErrInsufficientInput)
	}

	maxResults := a.Cfg.Search.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	results, err := a.Search.Search(ctx, prime.CoreSubjectEvent, search.Config{MaxResults: maxResults})
	if err != nil {
		logger.Warn("Corroboration search failed, treating as no results",
			"article_id", rec.ID, "provider", a.Search.GetName(), "error", err.Error())
		results = nil
	}

	ownDomain := domainOf(rec.OriginalSourceURL)
	filtered := results[:0:0]
	for _, r := range results {
		if ownDomain != "" && strings.EqualFold(r.SourceDomain, ownDomain) {
			continue
		}
		filtered = append(filtered, r)
	}

	if len(filtered) == 0 {
		rec.CorroborationAssessment = &core.CorroborationAssessment{
			CorroborationLevel:      "Unable to Determine",
			CorroborationConfidence: 0.2,
		}
		rec.SetStageStatus("corroboration_cognito", core.StatusSuccess)
		return nil
	}

	resultsJSON, err := json.MarshalIndent(filtered, "", "  ")
	if err != nil {
		return err
	}
	payload := fmt.Sprintf("Core subject event: %s\n\nSearch results:\n%s", prime.CoreSubjectEvent, resultsJSON)

	var block core.CorroborationAssessment
	err = a.callStage(ctx, llm.ProfileDeterministicJSON, corroborationPrompt, payload,
		[]string{"corroboration_level", "tier1_supporting_domains", "tier2_supporting_domains", "conflicting_information_flag", "corroboration_confidence"},
		&block)
	if err != nil {
		return err
	}

	// The model occasionally echoes the source domain back despite the
	// pre-filtered input.
	block.Tier1SupportingDomains = removeDomain(block.Tier1SupportingDomains, ownDomain)
	block.Tier2SupportingDomains = removeDomain(block.Tier2SupportingDomains, ownDomain)

	rec.CorroborationAssessment = &block
	rec.SetStageStatus("corroboration_cognito", core.StatusSuccess)
	return nil
}

func domainOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}

func removeDomain(domains []string, exclude string) []string {
	if exclude == "" {
		return domains
	}
	out := domains[:0]
	for _, d := range domains {
		if !strings.EqualFold(strings.TrimPrefix(d, "www."), exclude) {
			out = append(out, d)
		}
	}
	return out
}
