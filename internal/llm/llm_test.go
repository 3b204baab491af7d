package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newsforge/internal/config"
)

func testConfig(endpoint string) *config.Config {
	cfg := &config.Config{}
	cfg.LLM.APIKey = "test-key"
	cfg.LLM.Endpoint = endpoint
	cfg.LLM.Timeout = 5 * time.Second
	cfg.LLM.ModelDeterministic = "test-model"
	cfg.LLM.ModelAnalytical = "test-model"
	cfg.LLM.ModelCreative = "test-model"
	cfg.Retry.MaxRetries = 3
	cfg.Retry.BaseDelay = time.Millisecond
	return cfg
}

func completion(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestCallSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Error("Expected response_format json_object in request")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("Expected system+user messages, got %+v", req.Messages)
		}
		w.Write([]byte(completion(`{"novelty_level":"Significant","novelty_confidence":0.8}`)))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	result, err := client.Call(context.Background(), ProfileDeterministicJSON, "sys", "user", []string{"novelty_level", "novelty_confidence"})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	var level string
	if err := json.Unmarshal(result["novelty_level"], &level); err != nil || level != "Significant" {
		t.Errorf("Expected novelty_level Significant, got %s (err %v)", level, err)
	}
}

func TestCallStripsFences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completion("```json\n{\"slug\":\"hello\"}\n```")))
	}))
	defer server.Close()

	client, _ := NewClient(testConfig(server.URL))
	result, err := client.Call(context.Background(), ProfileAnalytical, "sys", "user", []string{"slug"})
	if err != nil {
		t.Fatalf("Call failed on fenced JSON: %v", err)
	}
	if _, ok := result["slug"]; !ok {
		t.Error("Expected slug key after fence stripping")
	}
}

func TestCallExtractsEmbeddedFencedBlock(t *testing.T) {
	// Chatty preamble around a fenced block: the first parse fails, the
	// fallback extraction must succeed.
	content := "Here is the assessment you asked for:\n```json\n{\"hype_score\": 0.4}\n```\nLet me know if you need anything else."
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completion(content)))
	}))
	defer server.Close()

	client, _ := NewClient(testConfig(server.URL))
	result, err := client.Call(context.Background(), ProfileAnalytical, "sys", "user", []string{"hype_score"})
	if err != nil {
		t.Fatalf("Call failed on embedded fenced block: %v", err)
	}
	if _, ok := result["hype_score"]; !ok {
		t.Error("Expected hype_score key from extracted block")
	}
}

func TestCallSchemaIncomplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completion(`{"partial":"only"}`)))
	}))
	defer server.Close()

	client, _ := NewClient(testConfig(server.URL))
	_, err := client.Call(context.Background(), ProfileAnalytical, "sys", "user", []string{"partial", "missing_key"})
	if err == nil {
		t.Fatal("Expected schema error for missing key")
	}
	if KindOf(err) != KindSchemaIncomplete {
		t.Errorf("Expected SCHEMA_INCOMPLETE, got %s", KindOf(err))
	}
}

func TestCallRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(completion(`{"ok":true}`)))
	}))
	defer server.Close()

	client, _ := NewClient(testConfig(server.URL))
	_, err := client.Call(context.Background(), ProfileAnalytical, "sys", "user", []string{"ok"})
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestCallRetries429(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completion(`{"ok":true}`)))
	}))
	defer server.Close()

	client, _ := NewClient(testConfig(server.URL))
	if _, err := client.Call(context.Background(), ProfileAnalytical, "sys", "user", []string{"ok"}); err != nil {
		t.Fatalf("Expected success after 429 retry, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestCallDoesNotRetry4xx(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client, _ := NewClient(testConfig(server.URL))
	_, err := client.Call(context.Background(), ProfileAnalytical, "sys", "user", nil)
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}
	var ge *Error
	if !errors.As(err, &ge) || ge.Kind != KindHTTPStatus || ge.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected HTTP_STATUS(400), got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected exactly 1 attempt for 400, got %d", attempts)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	cfg := testConfig("http://example.com")
	cfg.LLM.APIKey = ""
	if _, err := NewClient(cfg); err == nil || KindOf(err) != KindConfigMissing {
		t.Errorf("Expected CONFIG_MISSING for empty API key, got %v", err)
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripFences(tc.in); got != tc.want {
				t.Errorf("StripFences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
