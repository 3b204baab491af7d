// Package media resolves image placeholders in generated article bodies
// against a candidate list and rewrites them into image markdown.
package media

import (
	"fmt"
	"regexp"
	"strings"

	"newsforge/internal/config"
	"newsforge/internal/core"
	"newsforge/internal/logger"
)

// placeholderRe matches the placeholder comments the section writer plants.
var placeholderRe = regexp.MustCompile(`<!--\s*IMAGE_PLACEHOLDER:\s*(.*?)\s*-->`)

// linePrefixRe captures a leading list marker or blockquote prefix on a
// standalone placeholder line.
var linePrefixRe = regexp.MustCompile(`^(\s*(?:[-*+]\s+|>\s+|\d+\.\s+)?)`)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)
var punctRe = regexp.MustCompile(`[^\w\s]`)

// trivialCaptions are captions too generic to print under an image.
var trivialCaptions = map[string]bool{
	"n/a":          true,
	"analysis n/a": true,
	"image selected based on search query match.": true,
}

// Integrator rewrites image placeholders using the configured caption style
// and candidate reuse limit.
type Integrator struct {
	captionStyle string
	maxReuse     int
}

// NewIntegrator builds an Integrator from config.
func NewIntegrator(cfg *config.Config) *Integrator {
	return &Integrator{
		captionStyle: cfg.Media.CaptionStyle,
		maxReuse:     cfg.Media.MaxReuse,
	}
}

// Integrate produces generated_article_body_md_final from the assembled body
// and the record's media candidates. Running it again over its own output is
// a no-op because resolved placeholders no longer match.
func (in *Integrator) Integrate(rec *core.ArticleRecord) error {
	body := rec.AssembledArticleBodyMD
	if rec.GeneratedArticleBodyMDFinal != "" {
		body = rec.GeneratedArticleBodyMDFinal
	}
	if strings.TrimSpace(body) == "" {
		rec.SetStageStatus("image_integration", core.StatusSkippedInsufficient)
		return fmt.Errorf("no assembled body to integrate for %s", rec.ID)
	}

	// Seed reuse counts with images already placed, so re-running over a
	// previously integrated body cannot exceed the reuse limit.
	useCount := make(map[int]int)
	for i, c := range rec.MediaCandidatesForBody {
		if c.ImageURL != "" {
			useCount[i] = strings.Count(body, "]("+c.ImageURL+")")
		}
	}
	resolved, unresolved := 0, 0

	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = in.rewriteLine(line, rec.MediaCandidatesForBody, useCount, &resolved, &unresolved)
	}
	rec.GeneratedArticleBodyMDFinal = strings.Join(lines, "\n")

	if rec.SelectedImageURL == "" {
		for idx, n := range useCount {
			if n > 0 {
				rec.SelectedImageURL = rec.MediaCandidatesForBody[idx].ImageURL
				break
			}
		}
	}

	rec.SetStageStatus("image_integration", core.StatusSuccess)
	logger.Debug("Image integration complete", "article_id", rec.ID,
		"resolved", resolved, "unresolved", unresolved)
	return nil
}

// rewriteLine resolves every placeholder on one line. Standalone placeholders
// become a block image with caption; inline placeholders are replaced in
// place.
func (in *Integrator) rewriteLine(line string, candidates []core.MediaCandidate, useCount map[int]int, resolved, unresolved *int) string {
	matches := placeholderRe.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 {
		return line
	}

	prefix := linePrefixRe.FindString(line)
	standalone := len(matches) == 1 &&
		strings.TrimSpace(line[len(prefix):]) == strings.TrimSpace(line[matches[0][0]:matches[0][1]])

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(line[last:m[0]])
		desc := line[m[2]:m[3]]

		idx := matchCandidate(desc, candidates, useCount, in.maxReuse)
		if idx < 0 {
			*unresolved++
			b.WriteString(line[m[0]:m[1]])
			last = m[1]
			continue
		}
		useCount[idx]++
		*resolved++
		cand := candidates[idx]

		image := fmt.Sprintf("![%s](%s)", cand.AltText, cand.ImageURL)
		caption := in.renderCaption(cand)
		if standalone {
			b.Reset()
			b.WriteString(prefix)
			b.WriteString(image)
			if caption != "" {
				b.WriteString("\n")
				b.WriteString(prefix)
				b.WriteString(caption)
			}
			return b.String()
		}
		b.WriteString(" ")
		b.WriteString(image)
		if caption != "" {
			b.WriteString(" ")
			b.WriteString(caption)
		}
		last = m[1]
	}
	b.WriteString(line[last:])
	return b.String()
}

// matchCandidate finds the first candidate whose description matches the
// placeholder, exact-normalized first, then fuzzy alphanumeric. Candidates at
// their reuse limit are skipped.
func matchCandidate(desc string, candidates []core.MediaCandidate, useCount map[int]int, maxReuse int) int {
	key := normalizeExact(desc)
	for i, c := range candidates {
		if useCount[i] >= maxReuse {
			continue
		}
		if normalizeExact(c.Description) == key {
			return i
		}
	}
	fuzzy := normalizeAlnum(desc)
	if fuzzy == "" {
		return -1
	}
	for i, c := range candidates {
		if useCount[i] >= maxReuse {
			continue
		}
		if normalizeAlnum(c.Description) == fuzzy {
			return i
		}
	}
	return -1
}

// normalizeExact lowercases, strips punctuation, and collapses whitespace.
func normalizeExact(s string) string {
	s = punctRe.ReplaceAllString(strings.ToLower(s), "")
	return strings.Join(strings.Fields(s), " ")
}

// normalizeAlnum keeps only [a-z0-9].
func normalizeAlnum(s string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToLower(s), "")
}

// renderCaption formats the candidate's caption in the configured style, or
// returns "" when the caption is too trivial to print.
func (in *Integrator) renderCaption(c core.MediaCandidate) string {
	caption := strings.TrimSpace(c.VLMCaption)
	if !captionWorthPrinting(caption, c.AltText) {
		return ""
	}
	switch in.captionStyle {
	case "html_figcaption":
		return "<figcaption>" + caption + "</figcaption>"
	case "plain":
		return caption
	default:
		return "*" + caption + "*"
	}
}

func captionWorthPrinting(caption, altText string) bool {
	if len(caption) <= 10 {
		return false
	}
	lower := strings.ToLower(caption)
	if trivialCaptions[lower] {
		return false
	}
	if strings.Contains(lower, "placeholder") || strings.Contains(lower, "simulated") {
		return false
	}
	normCaption := normalizeExact(caption)
	normAlt := normalizeExact(altText)
	if normAlt != "" && (strings.Contains(normCaption, normAlt) || strings.Contains(normAlt, normCaption)) {
		return false
	}
	return true
}
