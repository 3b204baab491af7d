package publish

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"newsforge/internal/config"
	"newsforge/internal/core"
)

const (
	articleBodyMaxLen = 3000
	maxJSONLDKeywords = 15
)

type jsonLDMainEntity struct {
	Type string `json:"@type"`
	ID   string `json:"@id"`
}

type jsonLDPerson struct {
	Type string `json:"@type"`
	Name string `json:"name"`
}

type jsonLDImage struct {
	Type string `json:"@type"`
	URL  string `json:"url"`
}

type jsonLDOrganization struct {
	Type string       `json:"@type"`
	Name string       `json:"name"`
	Logo *jsonLDImage `json:"logo,omitempty"`
}

type jsonLDThing struct {
	Type string `json:"@type"`
	Name string `json:"name"`
}

// jsonLDNewsArticle is the schema.org NewsArticle projection. Field order is
// stable because encoding/json preserves struct order.
type jsonLDNewsArticle struct {
	Context          string             `json:"@context"`
	Type             string             `json:"@type"`
	Headline         string             `json:"headline"`
	MainEntityOfPage jsonLDMainEntity   `json:"mainEntityOfPage"`
	Author           jsonLDPerson       `json:"author"`
	Publisher        jsonLDOrganization `json:"publisher"`
	Description      string             `json:"description"`
	ArticleBody      string             `json:"articleBody"`
	WordCount        int                `json:"wordCount"`
	DatePublished    string             `json:"datePublished,omitempty"`
	DateModified     string             `json:"dateModified,omitempty"`
	Image            []string           `json:"image,omitempty"`
	Keywords         string             `json:"keywords,omitempty"`
	About            []jsonLDThing      `json:"about,omitempty"`
}

// BuildJSONLD synthesizes the NewsArticle JSON-LD object for a record.
// Unparseable dates are omitted rather than emitted malformed, and
// dateModified is never present without datePublished.
func BuildJSONLD(rec *core.ArticleRecord, cfg *config.Config) (json.RawMessage, error) {
	body := rec.GeneratedArticleBodyMDFinal
	if body == "" {
		body = rec.AssembledArticleBodyMD
	}
	plain := MarkdownToPlainText(body)

	obj := jsonLDNewsArticle{
		Context:  "https://schema.org",
		Type:     "NewsArticle",
		Headline: rec.FinalPageH1,
		MainEntityOfPage: jsonLDMainEntity{
			Type: "WebPage",
			ID:   CanonicalURL(cfg.Site.BaseURL, rec.Slug),
		},
		Author:      jsonLDPerson{Type: "Person", Name: cfg.Site.AuthorName},
		Publisher:   jsonLDOrganization{Type: "Organization", Name: cfg.Site.Name},
		Description: metaDescription(rec),
		ArticleBody: TruncateAtWordBoundary(plain, articleBodyMaxLen),
		WordCount:   len(strings.Fields(plain)),
	}
	if obj.Headline == "" {
		obj.Headline = rec.InitialTitle
	}
	if cfg.Site.LogoURL != "" {
		obj.Publisher.Logo = &jsonLDImage{Type: "ImageObject", URL: cfg.Site.LogoURL}
	}

	if published, ok := normalizeUTC(rec.PublishedISOUTC); ok {
		obj.DatePublished = published
		if modified, ok := normalizeUTC(rec.RetrievedAtUTC); ok && modified > published {
			obj.DateModified = modified
		} else {
			obj.DateModified = published
		}
	}

	if rec.SelectedImageURL != "" {
		obj.Image = append(obj.Image, rec.SelectedImageURL)
	}
	for _, mc := range rec.MediaCandidatesForBody {
		if mc.ImageURL != "" && mc.ImageURL != rec.SelectedImageURL {
			obj.Image = append(obj.Image, mc.ImageURL)
		}
	}

	keywords := rec.FinalKeywords
	if len(keywords) > maxJSONLDKeywords {
		keywords = keywords[:maxJSONLDKeywords]
	}
	obj.Keywords = strings.Join(keywords, ", ")

	if rec.PrimaryTopic != "" {
		obj.About = []jsonLDThing{{Type: "Thing", Name: rec.PrimaryTopic}}
	}

	return json.Marshal(obj)
}

// metaDescription is the description used for both the meta tag and the
// JSON-LD object: the generated description, falling back to the summary.
func metaDescription(rec *core.ArticleRecord) string {
	if rec.GeneratedMetaDescription != "" {
		return rec.GeneratedMetaDescription
	}
	return TruncateMetaDescription(rec.Summary)
}

// normalizeUTC parses an ISO-8601 timestamp and reformats it as timezone-aware
// UTC. Returns false when the input cannot be parsed.
func normalizeUTC(ts string) (string, bool) {
	if ts == "" {
		return "", false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC().Format(time.RFC3339), true
		}
	}
	return "", false
}

// MarkdownToPlainText extracts the visible text of a Markdown document by
// walking the goldmark AST. HTML comments and raw HTML blocks carry no text
// nodes, so placeholders and section-failure markers never leak into the
// articleBody.
func MarkdownToPlainText(md string) string {
	src := []byte(md)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			switch t := n.(type) {
			case *ast.Text:
				b.Write(t.Segment.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					b.WriteByte(' ')
				}
			case *ast.String:
				b.Write(t.Value)
			}
			return ast.WalkContinue, nil
		}
		if n.Type() == ast.TypeBlock {
			b.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(b.String()), " ")
}
