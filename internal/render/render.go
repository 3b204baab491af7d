// Package render regenerates the static site home page from the master
// article index.
package render

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"newsforge/internal/config"
	"newsforge/internal/publish"
)

const defaultMaxHomeArticles = 20

type homeData struct {
	SiteName   string
	LogoURL    string
	FaviconURL string
	Articles   []homeArticle
	BuiltAt    string
}

type homeArticle struct {
	Title       string
	URL         string
	Description string
	Published   string
	ImageURL    string
	AudioURL    string
	Trending    bool
}

// HomePage renders index.html in the site directory from the newest index
// entries. The index is already sorted newest first, so the page is the head
// of the list capped at the configured article count.
func HomePage(cfg *config.Config, idx *publish.Index) error {
	entries, err := idx.Entries()
	if err != nil {
		return fmt.Errorf("loading master index: %w", err)
	}

	limit := cfg.Site.MaxHomeArticles
	if limit <= 0 {
		limit = defaultMaxHomeArticles
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}

	data := homeData{
		SiteName:   cfg.Site.Name,
		LogoURL:    cfg.Site.LogoURL,
		FaviconURL: cfg.Site.FaviconURL,
		BuiltAt:    time.Now().UTC().Format(time.RFC3339),
	}
	for _, e := range entries {
		data.Articles = append(data.Articles, homeArticle{
			Title:       e.Title,
			URL:         articleHref(e.URL),
			Description: e.Description,
			Published:   displayDate(e.PublishedISOUTC),
			ImageURL:    e.ImageURL,
			AudioURL:    e.AudioURL,
			Trending:    e.Trending,
		})
	}

	var out strings.Builder
	if err := homeTemplate.Execute(&out, data); err != nil {
		return fmt.Errorf("rendering home page: %w", err)
	}

	if err := os.MkdirAll(cfg.App.SiteDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(cfg.App.SiteDir, "index.html")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(out.String()), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// articleHref prefers a site-relative link so the generated page works from
// any host, falling back to the canonical URL.
func articleHref(canonical string) string {
	if i := strings.Index(canonical, "/articles/"); i >= 0 {
		return canonical[i+1:]
	}
	return canonical
}

func displayDate(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return ""
	}
	return t.UTC().Format("January 2, 2006")
}

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.SiteName}}</title>
{{- if .FaviconURL}}
<link rel="icon" href="{{.FaviconURL}}">
{{- end}}
</head>
<body>
<header>
{{- if .LogoURL}}
<img src="{{.LogoURL}}" alt="{{.SiteName}}" class="logo">
{{- end}}
<h1>{{.SiteName}}</h1>
</header>
<main>
{{- range .Articles}}
<article{{if .Trending}} class="trending"{{end}}>
<h2><a href="{{.URL}}">{{.Title}}</a></h2>
{{- if .Published}}
<time>{{.Published}}</time>
{{- end}}
{{- if .ImageURL}}
<img src="{{.ImageURL}}" alt="">
{{- end}}
<p>{{.Description}}</p>
{{- if .AudioURL}}
<audio controls src="{{.AudioURL}}"></audio>
{{- end}}
</article>
{{- end}}
{{- if not .Articles}}
<p>No articles yet.</p>
{{- end}}
</main>
<footer><small>Generated {{.BuiltAt}}</small></footer>
</body>
</html>
`))
