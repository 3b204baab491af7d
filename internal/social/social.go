// Package social announces published articles. The network client is an
// interface so the poster's policy (text composition, duplicate tolerance)
// is testable without credentials.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"newsforge/internal/config"
	"newsforge/internal/core"
	"newsforge/internal/logger"
	"newsforge/internal/publish"
)

// duplicateStatusCode is the service's "status is a duplicate" error code.
// Re-announcing an already announced article is not a failure.
const duplicateStatusCode = 187

const maxTweetLen = 280

// Client posts one status update, optionally with an image.
type Client interface {
	PostStatus(ctx context.Context, text, imageURL string) (statusID string, err error)
}

// StatusError is a structured error from the status service.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status service error %d: %s", e.Code, e.Message)
}

// Poster composes and sends the announcement for a published record.
type Poster struct {
	client  Client
	baseURL string
}

func NewPoster(client Client, cfg *config.Config) *Poster {
	return &Poster{client: client, baseURL: cfg.Site.BaseURL}
}

// Announce tweets the article headline and canonical URL. A duplicate-status
// rejection counts as success: the announcement already exists.
func (p *Poster) Announce(ctx context.Context, rec *core.ArticleRecord) error {
	if p.client == nil {
		rec.SetStageStatus("social", core.StatusSkippedInsufficient)
		return nil
	}

	text := composeStatus(rec, p.baseURL)
	id, err := p.client.PostStatus(ctx, text, rec.SelectedImageURL)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == duplicateStatusCode {
			logger.Info("Announcement already posted", "article_id", rec.ID)
			rec.SetStageStatus("social", core.StatusSuccess)
			return nil
		}
		rec.SetStageStatus("social", core.StatusFailedLLMCall)
		return fmt.Errorf("posting announcement for %s: %w", rec.ID, err)
	}

	rec.SetStageStatus("social", core.StatusSuccess)
	logger.Info("Announcement posted", "article_id", rec.ID, "status_id", id)
	return nil
}

// composeStatus builds "headline + canonical URL" within the length limit.
// URLs count as 23 characters after link wrapping.
func composeStatus(rec *core.ArticleRecord, baseURL string) string {
	headline := rec.FinalPageH1
	if headline == "" {
		headline = rec.InitialTitle
	}
	link := publish.CanonicalURL(baseURL, rec.Slug)

	const wrappedURLLen = 23
	budget := maxTweetLen - wrappedURLLen - 1
	if len([]rune(headline)) > budget {
		headline = publish.TruncateAtWordBoundary(headline, budget-3) + "..."
	}
	return headline + "\n" + link
}

// HTTPClient is the concrete status-service client.
type HTTPClient struct {
	endpoint    string
	accessToken string
	httpClient  *http.Client
}

// NewHTTPClient returns nil when credentials are absent, which disables the
// poster rather than failing the pipeline.
func NewHTTPClient(cfg *config.Config, endpoint string) *HTTPClient {
	if cfg.Twitter.AccessToken == "" {
		return nil
	}
	return &HTTPClient{
		endpoint:    endpoint,
		accessToken: cfg.Twitter.AccessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

type statusRequest struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
}

type statusResponse struct {
	ID     string `json:"id"`
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *HTTPClient) PostStatus(ctx context.Context, text, imageURL string) (string, error) {
	body, err := json.Marshal(statusRequest{Text: text, ImageURL: imageURL})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("decoding status response (HTTP %d): %w", resp.StatusCode, err)
	}
	if len(sr.Errors) > 0 {
		return "", &StatusError{Code: sr.Errors[0].Code, Message: sr.Errors[0].Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status service returned HTTP %d", resp.StatusCode)
	}
	return sr.ID, nil
}
