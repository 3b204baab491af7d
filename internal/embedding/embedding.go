// Package embedding produces fixed-dimension semantic vectors for text blobs.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"newsforge/internal/config"
)

// Dimensions is the output dimensionality requested from the embedding model
// (Matryoshka truncation).
const Dimensions = int32(768)

// ErrTextTooShort is returned when the cleaned input is below the configured
// minimum length. Callers treat this as "skip", not as a failure.
var ErrTextTooShort = errors.New("embedding: text below minimum length")

// Embedder produces a semantic vector for a text blob.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// GeminiEmbedder calls the Gemini embedding API. Results are cached in memory
// by content hash so repeated classification of the same text costs one call.
type GeminiEmbedder struct {
	apiKey    string
	modelName string
	minLength int

	mu     sync.Mutex
	client *genai.Client
	cache  map[string][]float64
}

// NewGeminiEmbedder creates an embedder from configuration. The genai client
// is created lazily on first use so construction never needs network access.
func NewGeminiEmbedder(cfg *config.Config) (*GeminiEmbedder, error) {
	if cfg.Embed.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is not set")
	}
	minLength := cfg.Embed.MinLength
	if minLength <= 0 {
		minLength = 75
	}
	modelName := cfg.Embed.ModelName
	if modelName == "" {
		modelName = "gemini-embedding-001"
	}
	return &GeminiEmbedder{
		apiKey:    cfg.Embed.APIKey,
		modelName: modelName,
		minLength: minLength,
		cache:     make(map[string][]float64),
	}, nil
}

func (e *GeminiEmbedder) ensureClient(ctx context.Context) (*genai.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return e.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  e.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	e.client = client
	return e.client, nil
}

// Embed returns a 768-dimension vector for text. Returns ErrTextTooShort when
// the cleaned text is under the configured minimum.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	cleaned := strings.TrimSpace(text)
	if len(cleaned) < e.minLength {
		return nil, ErrTextTooShort
	}

	key := contentHash(cleaned)
	e.mu.Lock()
	if cached, ok := e.cache[key]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	client, err := e.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: cleaned}},
		Role:  "user",
	}}

	dims := Dimensions
	resp, err := client.Models.EmbedContent(ctx, e.modelName, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned from API")
	}

	values := resp.Embeddings[0].Values
	vector := make([]float64, len(values))
	for i, val := range values {
		vector[i] = float64(val)
	}

	e.mu.Lock()
	e.cache[key] = vector
	e.mu.Unlock()

	return vector, nil
}

// Reset drops the cached client and embeddings. Intended for tests and for
// releasing the model handle on shutdown.
func (e *GeminiEmbedder) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.client = nil
	e.cache = make(map[string][]float64)
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
