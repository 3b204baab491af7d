// Package assemble joins per-section generated markdown into a single article
// body, preserving block structure at the seams.
package assemble

import (
	"fmt"
	"strings"

	"newsforge/internal/core"
	"newsforge/internal/logger"
)

// blockEnders are trailing patterns after which the next section must follow
// on a single newline rather than a blank line, so the joined markdown does
// not break the enclosing block.
var blockEnders = []string{
	"```",
	"</table>",
	"</pre>",
	"</ul>",
	"</ol>",
	"</div>",
}

// Assemble produces assembled_article_body_md from the record's outline and
// records the assembly status. Assembly is deterministic: identical section
// inputs always yield byte-identical output.
func Assemble(rec *core.ArticleRecord) error {
	if rec.ArticleOutline == nil || len(rec.ArticleOutline.Sections) == 0 {
		rec.SetStageStatus("content_assembler", core.StatusSkippedInsufficient)
		return fmt.Errorf("no outline sections to assemble for %s", rec.ID)
	}

	var pieces []string
	failedBody := 0
	bodySections := 0
	anyFailed := false

	for _, sec := range rec.ArticleOutline.Sections {
		isBody := sec.Type != "introduction" && sec.Type != "conclusion"
		if isBody {
			bodySections++
		}

		md := strings.TrimSpace(sec.GeneratedMarkdown)
		if md == "" {
			anyFailed = true
			if isBody {
				failedBody++
			}
			pieces = append(pieces, fmt.Sprintf("<!-- SECTION FAILED TO GENERATE: %s (Type: %s, Status: %s) -->",
				sec.HeadingSuggestion, sec.Type, sec.WriterStatus))
			continue
		}
		if sec.WriterStatus != core.StatusSuccess {
			anyFailed = true
			if isBody {
				failedBody++
			}
		}
		pieces = append(pieces, ensureHeading(md, sec.HeadingSuggestion))
	}

	var b strings.Builder
	for i, piece := range pieces {
		if i > 0 {
			if endsWithBlock(pieces[i-1]) {
				b.WriteString("\n")
			} else {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(piece)
	}
	rec.AssembledArticleBodyMD = b.String()

	switch {
	case !anyFailed:
		rec.SetStageStatus("content_assembler", core.StatusSuccess)
	case bodySections > 0 && failedBody == bodySections:
		rec.SetStageStatus("content_assembler", core.StatusWarningAllBodyFailed)
		logger.Warn("All body sections failed to generate", "article_id", rec.ID)
	default:
		rec.SetStageStatus("content_assembler", core.StatusWarningPartialAssembly)
		logger.Warn("Partial assembly", "article_id", rec.ID, "failed_body_sections", failedBody)
	}
	return nil
}

// ensureHeading prepends the suggested heading when the section markdown does
// not already start with it.
func ensureHeading(md, heading string) string {
	if strings.TrimSpace(heading) == "" {
		return md
	}
	firstLine := md
	if i := strings.IndexByte(md, '\n'); i >= 0 {
		firstLine = md[:i]
	}
	trimmed := strings.TrimLeft(strings.TrimSpace(firstLine), "# ")
	if strings.EqualFold(trimmed, strings.TrimSpace(heading)) {
		return md
	}
	return "## " + heading + "\n\n" + md
}

// endsWithBlock reports whether a section's trailing content closes a block
// construct.
func endsWithBlock(piece string) bool {
	tail := strings.TrimRight(piece, " \t\n")
	for _, ender := range blockEnders {
		if strings.HasSuffix(tail, ender) {
			return true
		}
	}
	return false
}
