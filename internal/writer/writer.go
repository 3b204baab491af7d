// Package writer plans the article outline and drafts each section through
// the LLM gateway.
package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"newsforge/internal/core"
	"newsforge/internal/llm"
	"newsforge/internal/logger"
)

const maxOutlineSections = 8

const outlinePrompt = `You are an editorial planner for a technology news site read by experts.
Given an article's working title, keywords, and source material, plan the
section structure of the final article.

Respond with a JSON object containing exactly:
  "sections": array of objects, each with:
    "type": one of "introduction", "body", "analysis", "conclusion"
    "heading_suggestion": short section heading (no markdown markup)
    "focus_description": one or two sentences on what the section covers

Rules: first section must be an introduction, last must be a conclusion,
between 3 and ` + "8" + ` sections total. Respond with JSON only.`

const sectionPrompt = `You are a senior technology writer drafting one section of an article for an
expert audience. Write tight, substantiated prose in Markdown. Start the
section with its heading as an H2 (## Heading). Where an illustrative image
would help, insert a comment of the form
<!-- IMAGE_PLACEHOLDER: short description of the desired image -->
on its own line. Do not invent facts that are not in the source material.

Respond with a JSON object containing exactly:
  "generated_markdown": the full section markdown including the heading`

// Writer plans and drafts article bodies.
type Writer struct {
	LLM *llm.Client
}

func New(client *llm.Client) *Writer {
	return &Writer{LLM: client}
}

type outlineResponse struct {
	Sections []struct {
		Type              string `json:"type"`
		HeadingSuggestion string `json:"heading_suggestion"`
		FocusDescription  string `json:"focus_description"`
	} `json:"sections"`
}

// Outline plans the section structure and stores it on the record. A record
// that already carries an outline keeps it, so crash-resumed runs do not
// replan.
func (w *Writer) Outline(ctx context.Context, rec *core.ArticleRecord) error {
	if rec.ArticleOutline != nil && len(rec.ArticleOutline.Sections) > 0 {
		rec.SetStageStatus("outline", core.StatusSuccess)
		return nil
	}
	if strings.TrimSpace(rec.Summary) == "" && strings.TrimSpace(rec.RawScrapedText) == "" {
		rec.SetStageStatus("outline", core.StatusSkippedInsufficient)
		return fmt.Errorf("no source material to outline for %s", rec.ID)
	}

	payload := outlinePayload(rec)
	parsed, err := w.LLM.Call(ctx, llm.ProfileDeterministicJSON, outlinePrompt, payload, []string{"sections"})
	if err != nil {
		return err
	}
	var resp outlineResponse
	if err := llm.DecodeInto(parsed, &resp); err != nil {
		return err
	}
	if len(resp.Sections) == 0 {
		return fmt.Errorf("outline stage returned no sections")
	}
	if len(resp.Sections) > maxOutlineSections {
		resp.Sections = resp.Sections[:maxOutlineSections]
	}

	outline := &core.ArticleOutline{}
	for _, s := range resp.Sections {
		if strings.TrimSpace(s.HeadingSuggestion) == "" {
			continue
		}
		outline.Sections = append(outline.Sections, core.OutlineSection{
			Type:              normalizeSectionType(s.Type),
			HeadingSuggestion: strings.TrimSpace(s.HeadingSuggestion),
			FocusDescription:  strings.TrimSpace(s.FocusDescription),
		})
	}
	if len(outline.Sections) == 0 {
		return fmt.Errorf("outline stage returned no usable sections")
	}

	rec.ArticleOutline = outline
	rec.SetStageStatus("outline", core.StatusSuccess)
	logger.Debug("Outline planned", "article_id", rec.ID, "sections", len(outline.Sections))
	return nil
}

// WriteSections drafts every outline section that has no markdown yet. One
// failing section does not abort the rest; the assembler reads per-section
// writer statuses.
func (w *Writer) WriteSections(ctx context.Context, rec *core.ArticleRecord) error {
	if rec.ArticleOutline == nil || len(rec.ArticleOutline.Sections) == 0 {
		rec.SetStageStatus("section_writer", core.StatusSkippedInsufficient)
		return fmt.Errorf("no outline to write for %s", rec.ID)
	}

	succeeded := 0
	for i := range rec.ArticleOutline.Sections {
		sec := &rec.ArticleOutline.Sections[i]
		if strings.TrimSpace(sec.GeneratedMarkdown) != "" && sec.WriterStatus == core.StatusSuccess {
			succeeded++
			continue
		}
		if err := w.writeSection(ctx, rec, sec); err != nil {
			sec.WriterStatus = core.StatusFailedLLMCall
			logger.Warn("Section draft failed", "article_id", rec.ID,
				"heading", sec.HeadingSuggestion, "error", err)
			continue
		}
		sec.WriterStatus = core.StatusSuccess
		succeeded++
	}

	if succeeded == 0 {
		rec.SetStageStatus("section_writer", core.StatusFailedLLMCall)
		return fmt.Errorf("every section draft failed for %s", rec.ID)
	}
	rec.SetStageStatus("section_writer", core.StatusSuccess)
	return nil
}

func (w *Writer) writeSection(ctx context.Context, rec *core.ArticleRecord, sec *core.OutlineSection) error {
	payload := fmt.Sprintf("Article title: %s\nSection heading: %s\nSection focus: %s\nSection type: %s\n\nSource material:\n%s",
		rec.FinalPageH1, sec.HeadingSuggestion, sec.FocusDescription, sec.Type, sourceMaterial(rec))

	parsed, err := w.LLM.Call(ctx, llm.ProfileCreativeMeta, sectionPrompt, payload, []string{"generated_markdown"})
	if err != nil {
		return err
	}
	var resp struct {
		GeneratedMarkdown string `json:"generated_markdown"`
	}
	if err := llm.DecodeInto(parsed, &resp); err != nil {
		return err
	}
	if strings.TrimSpace(resp.GeneratedMarkdown) == "" {
		return fmt.Errorf("section writer returned empty markdown")
	}
	sec.GeneratedMarkdown = strings.TrimSpace(resp.GeneratedMarkdown)
	return nil
}

func outlinePayload(rec *core.ArticleRecord) string {
	keywords, _ := json.Marshal(rec.FinalKeywords)
	return fmt.Sprintf("Title: %s\nKeywords: %s\n\nSource material:\n%s",
		rec.FinalPageH1, keywords, sourceMaterial(rec))
}

func sourceMaterial(rec *core.ArticleRecord) string {
	var parts []string
	if rec.Summary != "" {
		parts = append(parts, "Summary: "+rec.Summary)
	}
	if p := rec.EditorialPrimeAssessment; p != nil && p.CoreSubjectEvent != "" {
		parts = append(parts, "Core event: "+p.CoreSubjectEvent)
	}
	text := rec.RawScrapedText
	if len(text) > 6000 {
		text = text[:6000]
	}
	if text != "" {
		parts = append(parts, "Scraped text:\n"+text)
	}
	return strings.Join(parts, "\n\n")
}

func normalizeSectionType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "introduction", "intro":
		return "introduction"
	case "conclusion", "wrap-up":
		return "conclusion"
	case "analysis":
		return "analysis"
	default:
		return "body"
	}
}
