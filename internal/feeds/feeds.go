// Package feeds discovers candidate articles from RSS and Atom feeds and
// applies the recency filter before ingest.
package feeds

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsforge/internal/config"
	"newsforge/internal/logger"
)

// Candidate is one feed entry eligible for ingest.
type Candidate struct {
	Title     string
	URL       string
	Published time.Time
	FeedURL   string
}

type rssDoc struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
}

type atomDoc struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string     `xml:"title"`
	Links   []atomLink `xml:"link"`
	Updated string     `xml:"updated"`
	Publish string     `xml:"published"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

// Discoverer fetches feeds and yields recent candidates.
type Discoverer struct {
	cfg        *config.Config
	httpClient *http.Client
}

func New(cfg *config.Config) *Discoverer {
	timeout := cfg.Ingest.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Discoverer{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
}

// Discover fetches every feed URL and returns the union of candidates that
// pass the recency filter. Individual feed failures are logged and skipped.
func (d *Discoverer) Discover(ctx context.Context, feedURLs []string) ([]Candidate, error) {
	maxAge := time.Duration(d.cfg.Ingest.MaxArticleAgeHours) * time.Hour

	var out []Candidate
	seen := map[string]bool{}
	for _, feedURL := range feedURLs {
		candidates, err := d.fetchFeed(ctx, feedURL)
		if err != nil {
			logger.Warn("Feed fetch failed", "feed", feedURL, "error", err)
			continue
		}
		for _, c := range FilterRecent(candidates, maxAge, time.Now()) {
			if c.URL == "" || seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			out = append(out, c)
		}
	}
	return out, nil
}

func (d *Discoverer) fetchFeed(ctx context.Context, feedURL string) ([]Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	if ua := d.cfg.Ingest.UserAgent; ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned HTTP %d", feedURL, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, err
	}
	return Parse(raw, feedURL)
}

// Parse decodes an RSS 2.0 or Atom document into candidates.
func Parse(raw []byte, feedURL string) ([]Candidate, error) {
	var rss rssDoc
	if err := xml.Unmarshal(raw, &rss); err == nil && len(rss.Channel.Items) > 0 {
		out := make([]Candidate, 0, len(rss.Channel.Items))
		for _, item := range rss.Channel.Items {
			out = append(out, Candidate{
				Title:     strings.TrimSpace(item.Title),
				URL:       strings.TrimSpace(item.Link),
				Published: parseFeedTime(item.PubDate),
				FeedURL:   feedURL,
			})
		}
		return out, nil
	}

	var atom atomDoc
	if err := xml.Unmarshal(raw, &atom); err == nil && len(atom.Entries) > 0 {
		out := make([]Candidate, 0, len(atom.Entries))
		for _, entry := range atom.Entries {
			ts := entry.Publish
			if ts == "" {
				ts = entry.Updated
			}
			out = append(out, Candidate{
				Title:     strings.TrimSpace(entry.Title),
				URL:       atomHref(entry.Links),
				Published: parseFeedTime(ts),
				FeedURL:   feedURL,
			})
		}
		return out, nil
	}

	return nil, fmt.Errorf("unrecognized feed format for %s", feedURL)
}

// FilterRecent keeps candidates published within maxAge of now. Candidates
// without a parseable date are kept: missing metadata is not grounds to drop
// a story.
func FilterRecent(candidates []Candidate, maxAge time.Duration, now time.Time) []Candidate {
	if maxAge <= 0 {
		return candidates
	}
	var out []Candidate
	for _, c := range candidates {
		if c.Published.IsZero() || now.Sub(c.Published) <= maxAge {
			out = append(out, c)
		}
	}
	return out
}

func atomHref(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

func parseFeedTime(ts string) time.Time {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}
	}
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
