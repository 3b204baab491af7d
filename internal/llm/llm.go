// Package llm is the single gateway for structured-JSON LLM calls. Every
// analyzer stage goes through Client.Call: model selection by profile, retry
// with exponential backoff, markdown fence stripping, and schema-key
// validation all live here so stages only deal in parsed assessments.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"newsforge/internal/config"
	"newsforge/internal/logger"
)

// Profile selects a model/temperature pairing. Callers pick the profile; the
// concrete model name and endpoint are resolved from config.
type Profile string

const (
	ProfileDeterministicJSON Profile = "deterministic_json"
	ProfileAnalytical        Profile = "analytical"
	ProfileCreativeTitle     Profile = "creative_title"
	ProfileCreativeMeta      Profile = "creative_meta"
	ProfileQueryGen          Profile = "query_gen"
)

// ErrorKind is the gateway failure taxonomy. The names are contracts used in
// stage statuses and logs.
type ErrorKind string

const (
	KindConfigMissing    ErrorKind = "CONFIG_MISSING"
	KindTransport        ErrorKind = "TRANSPORT"
	KindTimeout          ErrorKind = "TIMEOUT"
	KindHTTPStatus       ErrorKind = "HTTP_STATUS"
	KindBadJSON          ErrorKind = "BAD_JSON"
	KindSchemaIncomplete ErrorKind = "SCHEMA_INCOMPLETE"
)

// Error is a classified gateway failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int // Set when Kind is KindHTTPStatus
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("llm: %s(%d): %v", e.Kind, e.StatusCode, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("llm: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("llm: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from an error returned by this package.
// Returns KindTransport for unclassified errors.
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindTransport
}

// Client is the HTTP gateway to the configured LLM endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	models     map[Profile]string
}

// profileTemperatures maps each profile to its sampling temperature.
var profileTemperatures = map[Profile]float64{
	ProfileDeterministicJSON: 0.1,
	ProfileAnalytical:        0.25,
	ProfileCreativeTitle:     0.6,
	ProfileCreativeMeta:      0.8,
	ProfileQueryGen:          0.6,
}

// NewClient creates the gateway from configuration. The API key and endpoint
// are required; everything else has defaults.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.LLM.APIKey == "" {
		return nil, &Error{Kind: KindConfigMissing, Err: errors.New("LLM_API_KEY is not set")}
	}
	if cfg.LLM.Endpoint == "" {
		return nil, &Error{Kind: KindConfigMissing, Err: errors.New("LLM_ENDPOINT is not set")}
	}

	timeout := cfg.LLM.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	return &Client{
		endpoint:   cfg.LLM.Endpoint,
		apiKey:     cfg.LLM.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: cfg.Retry.MaxRetries,
		baseDelay:  cfg.Retry.BaseDelay,
		maxDelay:   30 * time.Second,
		models: map[Profile]string{
			ProfileDeterministicJSON: cfg.LLM.ModelDeterministic,
			ProfileAnalytical:        cfg.LLM.ModelAnalytical,
			ProfileCreativeTitle:     cfg.LLM.ModelCreative,
			ProfileCreativeMeta:      cfg.LLM.ModelCreative,
			ProfileQueryGen:          cfg.LLM.ModelAnalytical,
		},
	}, nil
}

// chatRequest is the wire request shape.
type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

// chatResponse is the wire response shape. Only the first choice is read.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Call sends one structured-JSON request and returns the parsed top-level
// object. Every key in expectKeys must be present in the response; extra keys
// are tolerated. On retryable failures (transport, timeout, 5xx, 429) the call
// is retried up to the configured attempt count with exponential backoff.
func (c *Client) Call(ctx context.Context, profile Profile, systemPrompt, userPayload string, expectKeys []string) (map[string]json.RawMessage, error) {
	model, ok := c.models[profile]
	if !ok || model == "" {
		return nil, &Error{Kind: KindConfigMissing, Err: fmt.Errorf("no model configured for profile %q", profile)}
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPayload},
		},
		Temperature:    profileTemperatures[profile],
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, &Error{Kind: KindBadJSON, Err: err}
	}

	content, err := c.postWithRetry(ctx, body)
	if err != nil {
		return nil, err
	}

	parsed, err := parseStructured(content)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, key := range expectKeys {
		if _, ok := parsed[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &Error{Kind: KindSchemaIncomplete, Err: fmt.Errorf("response missing keys: %s", strings.Join(missing, ", "))}
	}

	return parsed, nil
}

// postWithRetry performs the HTTP exchange, retrying transport errors,
// timeouts, 5xx and 429. Other 4xx responses fail immediately.
func (c *Client) postWithRetry(ctx context.Context, body []byte) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			logger.Debug("Retrying LLM call", "attempt", attempt, "delay", delay.String())
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", &Error{Kind: KindTimeout, Err: ctx.Err()}
			}
		}

		content, retryable, err := c.postOnce(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}

	return "", lastErr
}

func (c *Client) postOnce(ctx context.Context, body []byte) (content string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, &Error{Kind: KindTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", true, &Error{Kind: KindTimeout, Err: err}
		}
		return "", true, &Error{Kind: KindTransport, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, &Error{Kind: KindTransport, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, &Error{
			Kind:       KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(firstN(string(raw), 300))),
		}
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", false, &Error{Kind: KindBadJSON, Err: err}
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return "", false, &Error{Kind: KindBadJSON, Err: errors.New("empty completion")}
	}

	return cr.Choices[0].Message.Content, false, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	d := time.Duration(float64(c.baseDelay) * math.Pow(2, float64(attempt-1)))
	if d > c.maxDelay {
		d = c.maxDelay
	}
	return d
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	var t timeouter
	return errors.As(err, &t) && t.Timeout()
}

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// parseStructured turns raw model text into a JSON object. Models frequently
// wrap JSON in markdown fences despite response_format, so fences are stripped
// first; if the stripped text still fails to parse, the first fenced block in
// the original text is extracted and parsed once more.
func parseStructured(content string) (map[string]json.RawMessage, error) {
	candidate := StripFences(content)

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
		return parsed, nil
	}

	if m := fencedJSONRe.FindStringSubmatch(content); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &parsed); err == nil {
			return parsed, nil
		}
	}

	return nil, &Error{Kind: KindBadJSON, Err: fmt.Errorf("unparseable model output: %s", firstN(content, 200))}
}

// StripFences removes a single wrapping markdown code fence (```json ... ```
// or ``` ... ```) if the whole payload is fenced.
func StripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimPrefix(trimmed, "json")
	trimmed = strings.TrimPrefix(trimmed, "\n")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// DecodeInto re-marshals a parsed object into a typed assessment block.
// A decode failure is reported as SCHEMA_INCOMPLETE since the keys were
// present but their shapes did not match the contract.
func DecodeInto(parsed map[string]json.RawMessage, out any) error {
	blob, err := json.Marshal(parsed)
	if err != nil {
		return &Error{Kind: KindBadJSON, Err: err}
	}
	if err := json.Unmarshal(blob, out); err != nil {
		return &Error{Kind: KindSchemaIncomplete, Err: err}
	}
	return nil
}
