package stages

import (
	"context"
	"fmt"
	"strings"

	"newsforge/internal/core"
	"newsforge/internal/llm"
	"newsforge/internal/publish"
)

// keywordResponse is the keyword_intelligence stage wire shape.
type keywordResponse struct {
	PrimaryKeyword    string   `json:"primary_keyword"`
	SecondaryKeywords []string `json:"secondary_keywords"`
	LongTailKeywords  []string `json:"long_tail_keywords"`
	EntityKeywords    []string `json:"entity_keywords"`
}

// KeywordIntelligence fills final_keywords: primary at index 0, then
// secondary/LSI, long-tail, and entity phrases, deduplicated in order.
func (a *Analyzer) KeywordIntelligence(ctx context.Context, rec *core.ArticleRecord) error {
	if err := requireText(rec); err != nil {
		return err
	}

	var resp keywordResponse
	err := a.callStage(ctx, llm.ProfileDeterministicJSON, keywordPrompt, analysisPayload(rec),
		[]string{"primary_keyword", "secondary_keywords", "long_tail_keywords", "entity_keywords"},
		&resp)
	if err != nil {
		return err
	}
	if strings.TrimSpace(resp.PrimaryKeyword) == "" {
		return fmt.Errorf("%w: keyword stage returned empty primary keyword", ErrInsufficientInput)
	}

	seen := map[string]bool{}
	var ordered []string
	appendKeyword := func(kw string) {
		kw = strings.TrimSpace(kw)
		key := strings.ToLower(kw)
		if kw == "" || seen[key] {
			return
		}
		seen[key] = true
		ordered = append(ordered, kw)
	}
	appendKeyword(resp.PrimaryKeyword)
	for _, group := range [][]string{resp.SecondaryKeywords, resp.LongTailKeywords, resp.EntityKeywords} {
		for _, kw := range group {
			appendKeyword(kw)
		}
	}

	rec.CandidateKeywords = append(resp.SecondaryKeywords, resp.LongTailKeywords...)
	rec.FinalKeywords = ordered
	rec.SetStageStatus("keyword_intelligence", core.StatusSuccess)
	return nil
}

// titleResponse is the title stage wire shape.
type titleResponse struct {
	GeneratedTitleTag string `json:"generated_title_tag"`
	GeneratedSEOH1    string `json:"generated_seo_h1"`
	FinalPageH1       string `json:"final_page_h1"`
}

// Title produces the title tag, SEO H1, final page H1, and the slug. The
// final_page_h1 is set exactly once: if a prior run already wrote it, this
// stage refuses to overwrite and only fills the derived fields.
func (a *Analyzer) Title(ctx context.Context, rec *core.ArticleRecord) error {
	if err := requireText(rec); err != nil {
		return err
	}

	payload := fmt.Sprintf("Primary keyword: %s\n\n%s", rec.PrimaryKeyword(), analysisPayload(rec))

	var resp titleResponse
	err := a.callStage(ctx, llm.ProfileCreativeTitle, titlePrompt, payload,
		[]string{"generated_title_tag", "generated_seo_h1", "final_page_h1"},
		&resp)
	if err != nil {
		return err
	}

	rec.GeneratedTitleTag = publish.TruncateAtWordBoundary(resp.GeneratedTitleTag, publish.TitleTagMaxLen)
	rec.GeneratedSEOH1 = publish.TruncateAtWordBoundary(resp.GeneratedSEOH1, publish.PageH1MaxLen)

	if rec.FinalPageH1 == "" {
		h1 := resp.FinalPageH1
		if strings.TrimSpace(h1) == "" {
			h1 = resp.GeneratedSEOH1
		}
		if strings.TrimSpace(h1) == "" {
			h1 = rec.InitialTitle
		}
		rec.FinalPageH1 = publish.TruncateAtWordBoundary(h1, publish.PageH1MaxLen)
	}

	if rec.Slug == "" {
		rec.Slug = publish.Slugify(publish.SlugSource(rec))
	}

	rec.SetStageStatus("title", core.StatusSuccess)
	return nil
}

// Description produces the meta description, hard-capped at 160 characters.
func (a *Analyzer) Description(ctx context.Context, rec *core.ArticleRecord) error {
	if err := requireText(rec); err != nil {
		return err
	}

	payload := fmt.Sprintf("Primary keyword: %s\nH1: %s\n\n%s", rec.PrimaryKeyword(), rec.FinalPageH1, analysisPayload(rec))

	parsed, err := a.LLM.Call(ctx, llm.ProfileCreativeMeta, descriptionPrompt, payload, []string{"generated_meta_description"})
	if err != nil {
		return err
	}
	var desc struct {
		GeneratedMetaDescription string `json:"generated_meta_description"`
	}
	if err := llm.DecodeInto(parsed, &desc); err != nil {
		return err
	}

	rec.GeneratedMetaDescription = publish.TruncateMetaDescription(desc.GeneratedMetaDescription)
	rec.SetStageStatus("description", core.StatusSuccess)
	return nil
}
