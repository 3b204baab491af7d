package publish

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"newsforge/internal/config"
	"newsforge/internal/core"
	"newsforge/internal/logger"
)

// CanonicalURL composes the public URL for a slug.
func CanonicalURL(baseURL, slug string) string {
	return strings.TrimRight(baseURL, "/") + "/articles/" + slug + ".html"
}

// Publisher writes the public artifacts for approved records: the rendered
// HTML page and the master index entry. One Publisher is shared across
// pipeline workers; the index serializes its own mutations.
type Publisher struct {
	cfg *config.Config
	idx *Index
	md  goldmark.Markdown
}

// New returns a Publisher writing under the configured site directory.
func New(cfg *config.Config) *Publisher {
	return &Publisher{
		cfg: cfg,
		idx: NewIndex(cfg.MasterIndexPath()),
		md: goldmark.New(
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
	}
}

// Index exposes the master index, used by the delete tool.
func (p *Publisher) Index() *Index {
	return p.idx
}

// JSONLD synthesizes the record's NewsArticle JSON-LD object.
func (p *Publisher) JSONLD(rec *core.ArticleRecord) error {
	obj, err := BuildJSONLD(rec, p.cfg)
	if err != nil {
		return fmt.Errorf("building JSON-LD for %s: %w", rec.ID, err)
	}
	rec.GeneratedJSONLDObject = obj
	rec.SetStageStatus("json_ld", core.StatusSuccess)
	return nil
}

// Publish renders the HTML artifact, updates the master index, and marks the
// record terminally published. The publish timestamp is stamped on first
// publish and preserved on re-publish.
func (p *Publisher) Publish(rec *core.ArticleRecord) error {
	if rec.Slug == "" {
		rec.Slug = Slugify(SlugSource(rec))
	}
	if rec.PublishedISOUTC == "" {
		rec.PublishedISOUTC = core.NowUTC()
	}

	canonical := CanonicalURL(p.cfg.Site.BaseURL, rec.Slug)

	page, err := p.renderPage(rec, canonical)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", rec.ID, err)
	}

	if err := os.MkdirAll(p.cfg.ArticlesDir(), 0o755); err != nil {
		return fmt.Errorf("creating articles directory: %w", err)
	}
	htmlPath := filepath.Join(p.cfg.ArticlesDir(), rec.Slug+".html")
	tmpPath := htmlPath + ".tmp"
	if err := os.WriteFile(tmpPath, page, 0o644); err != nil {
		return fmt.Errorf("writing article page: %w", err)
	}
	if err := os.Rename(tmpPath, htmlPath); err != nil {
		return fmt.Errorf("writing article page: %w", err)
	}

	if err := p.idx.Upsert(EntryFor(rec, canonical)); err != nil {
		return fmt.Errorf("updating master index: %w", err)
	}

	rec.SetStageStatus("publish", core.StatusSuccess)
	rec.TerminalStatus = core.TerminalPublished

	logger.Info("Article published", "article_id", rec.ID, "slug", rec.Slug, "path", htmlPath)
	return nil
}

type pageData struct {
	TitleTag        string
	MetaDescription string
	CanonicalURL    string
	FaviconURL      string
	SiteName        string
	LogoURL         string
	H1              string
	PublishedISOUTC string
	AudioURL        string
	JSONLD          template.JS
	Body            template.HTML
}

func (p *Publisher) renderPage(rec *core.ArticleRecord, canonical string) ([]byte, error) {
	body := rec.GeneratedArticleBodyMDFinal
	if body == "" {
		body = rec.AssembledArticleBodyMD
	}
	var bodyHTML bytes.Buffer
	if err := p.md.Convert([]byte(body), &bodyHTML); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}

	titleTag := rec.GeneratedTitleTag
	if titleTag == "" {
		titleTag = TruncateAtWordBoundary(rec.FinalPageH1, TitleTagMaxLen)
	}

	data := pageData{
		TitleTag:        titleTag,
		MetaDescription: metaDescription(rec),
		CanonicalURL:    canonical,
		FaviconURL:      p.cfg.Site.FaviconURL,
		SiteName:        p.cfg.Site.Name,
		LogoURL:         p.cfg.Site.LogoURL,
		H1:              rec.FinalPageH1,
		PublishedISOUTC: rec.PublishedISOUTC,
		AudioURL:        rec.AudioURL,
		JSONLD:          template.JS(rec.GeneratedJSONLDObject),
		Body:            template.HTML(bodyHTML.String()),
	}

	var out bytes.Buffer
	if err := articleTemplate.Execute(&out, data); err != nil {
		return nil, fmt.Errorf("executing article template: %w", err)
	}
	return out.Bytes(), nil
}

var articleTemplate = template.Must(template.New("article").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.TitleTag}}</title>
{{if .MetaDescription}}<meta name="description" content="{{.MetaDescription}}">
{{end}}<link rel="canonical" href="{{.CanonicalURL}}">
{{if .FaviconURL}}<link rel="icon" href="{{.FaviconURL}}">
{{end}}{{if .JSONLD}}<script type="application/ld+json">{{.JSONLD}}</script>
{{end}}</head>
<body>
<header>
{{if .LogoURL}}<a href="/"><img src="{{.LogoURL}}" alt="{{.SiteName}}" class="site-logo"></a>
{{else}}<a href="/">{{.SiteName}}</a>
{{end}}</header>
<main>
<article>
<h1>{{.H1}}</h1>
{{if .PublishedISOUTC}}<time datetime="{{.PublishedISOUTC}}">{{.PublishedISOUTC}}</time>
{{end}}{{if .AudioURL}}<audio controls src="{{.AudioURL}}"></audio>
{{end}}{{.Body}}
</article>
</main>
</body>
</html>
`))
