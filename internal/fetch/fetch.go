// Package fetch scrapes candidate article pages and turns them into pipeline
// records. Fetched pages are cached so repeated runs do not re-scrape.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"newsforge/internal/config"
	"newsforge/internal/core"
	"newsforge/internal/logger"
	"newsforge/internal/store"
)

// mainContentSelectors are tried in order before falling back to the whole
// body.
var mainContentSelectors = []string{
	"article", "main", "[role='main']",
	".main-content", ".entry-content", ".post-content", ".post-body", ".article-body",
	".content", "#content",
}

// Fetcher scrapes pages into records.
type Fetcher struct {
	cfg        *config.Config
	cache      *store.Cache
	httpClient *http.Client
}

// New builds a Fetcher. The cache may be nil, in which case every fetch hits
// the network.
func New(cfg *config.Config, cache *store.Cache) *Fetcher {
	timeout := cfg.Ingest.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		cfg:        cfg,
		cache:      cache,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch returns the page at rawURL, from cache when fresh.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*store.Page, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	if f.cache != nil {
		if page, ok, err := f.cache.Get(rawURL, f.cfg.Ingest.CacheTTL); err != nil {
			logger.Warn("Fetch cache read failed", "url", rawURL, "error", err)
		} else if ok {
			logger.Debug("Fetch cache hit", "url", rawURL)
			return page, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if ua := f.cfg.Ingest.UserAgent; ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: HTTP %d", rawURL, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}

	page := &store.Page{
		URL:       rawURL,
		HTML:      string(raw),
		FetchedAt: time.Now().UTC(),
	}
	page.Title, page.Text = extractContent(page.HTML)

	if f.cache != nil {
		if err := f.cache.Put(*page); err != nil {
			logger.Warn("Fetch cache write failed", "url", rawURL, "error", err)
		}
	}
	return page, nil
}

// IngestOptions carry manual-pick metadata onto the new record.
type IngestOptions struct {
	Title      string
	Importance string // Breaking, High, Normal
	Trending   bool
	ImageURL   string
}

// Ingest fetches a URL and creates the pipeline record for it, preserving the
// raw scrape under the raw research directory.
func (f *Fetcher) Ingest(ctx context.Context, rawURL string, opts IngestOptions) (*core.ArticleRecord, error) {
	page, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	title := opts.Title
	if title == "" {
		title = page.Title
	}
	if title == "" {
		title = fallbackTitle(page.Text)
	}

	rec := &core.ArticleRecord{
		ID:                uuid.NewString(),
		OriginalSourceURL: rawURL,
		InitialTitle:      title,
		RawScrapedText:    page.Text,
		RetrievedAtUTC:    core.NowUTC(),
		ManualImportance:  opts.Importance,
		ManualTrending:    opts.Trending || opts.Importance == "Breaking",
		ManualImageURL:    opts.ImageURL,
	}

	if err := f.saveRawResearch(rec, page); err != nil {
		logger.Warn("Failed to save raw research record", "article_id", rec.ID, "error", err)
	}
	return rec, nil
}

// saveRawResearch preserves the scrape alongside the pipeline record for
// later auditing.
func (f *Fetcher) saveRawResearch(rec *core.ArticleRecord, page *store.Page) error {
	dir := f.cfg.RawResearchDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	blob, err := json.MarshalIndent(map[string]any{
		"article_id":     rec.ID,
		"url":            page.URL,
		"title":          page.Title,
		"fetched_at_utc": page.FetchedAt.Format(time.RFC3339),
		"text":           page.Text,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, rec.ID+".json"), blob, 0o644)
}

// extractContent pulls the title and main text out of an HTML document.
func extractContent(html string) (title, text string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}

	title = strings.TrimSpace(doc.Find("head title").First().Text())
	if title == "" {
		title, _ = doc.Find("meta[property='og:title']").Attr("content")
		title = strings.TrimSpace(title)
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript, .sidebar, .ad, .advertisement, .cookie-banner").Remove()

	var b strings.Builder
	collect := func(s *goquery.Selection) {
		s.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre").Each(func(_ int, item *goquery.Selection) {
			t := strings.TrimSpace(item.Text())
			if t == "" {
				return
			}
			b.WriteString(t)
			b.WriteString("\n\n")
		})
	}

	for _, selector := range mainContentSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			collect(sel.First())
			if b.Len() > 0 {
				break
			}
		}
	}
	if b.Len() == 0 {
		collect(doc.Find("body"))
	}

	return title, strings.TrimSpace(b.String())
}

func fallbackTitle(text string) string {
	words := strings.Fields(text)
	if len(words) > 10 {
		return strings.Join(words[:10], " ") + "..."
	}
	return strings.Join(words, " ")
}
