// Package publish turns an approved article record into its public artifacts:
// slug, canonical URL, JSON-LD object, rendered HTML page, and the master
// article index entry.
package publish

import (
	"strings"
	"unicode"

	"newsforge/internal/core"
)

const (
	// SlugMaxLen caps the on-disk and canonical-URL key.
	SlugMaxLen = 75
	// TitleTagMaxLen is the hard cap for the <title> tag.
	TitleTagMaxLen = 65
	// PageH1MaxLen is the hard cap for the page H1.
	PageH1MaxLen = 75

	metaDescTargetLen  = 155
	metaDescHardMaxLen = 160

	// wordBoundaryWindow is how far back a truncator looks for a space
	// before giving up and cutting mid-word.
	wordBoundaryWindow = 20
)

// Slugify derives a URL-safe slug: lowercase, only [a-z0-9-], whitespace and
// hyphens collapsed to single hyphens, other punctuation dropped, capped at
// SlugMaxLen. Inputs differing only by case, punctuation, or surrounding
// whitespace produce the same slug.
func Slugify(s string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingHyphen = true
		}
	}
	slug := b.String()
	if len(slug) > SlugMaxLen {
		slug = strings.TrimRight(slug[:SlugMaxLen], "-")
	}
	return slug
}

// SlugSource picks the string the slug is derived from, walking the
// documented fallback chain ending at the record ID.
func SlugSource(rec *core.ArticleRecord) string {
	for _, candidate := range []string{rec.FinalPageH1, rec.GeneratedSEOH1, rec.InitialTitle} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	if kw := rec.PrimaryKeyword(); strings.TrimSpace(kw) != "" {
		return kw
	}
	return rec.ID
}

// TruncateAtWordBoundary caps s at max runes, backing up to the nearest word
// boundary if one exists within wordBoundaryWindow runes of the cut.
func TruncateAtWordBoundary(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := max
	for i := max; i > max-wordBoundaryWindow && i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRight(string(runes[:cut]), " \t\n")
}

// TruncateMetaDescription caps a meta description at the hard maximum of 160
// characters. Raw strings at or under the 155-character target pass through
// stripped but otherwise untouched; longer ones are cut at a word boundary
// with a trailing ellipsis.
func TruncateMetaDescription(s string) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= metaDescTargetLen {
		return s
	}
	return TruncateAtWordBoundary(s, metaDescTargetLen-3) + "..."
}
