// Package search supplies the corroboration stage with external evidence:
// an ordered list of results for a claim query, from a live provider or the
// simulated one.
package search

import (
	"context"
	"errors"
	"time"
)

// Provider defines the unified interface for search providers.
type Provider interface {
	// Search performs a search with configuration.
	Search(ctx context.Context, query string, config Config) ([]Result, error)

	// GetName returns the name of the search provider.
	GetName() string
}

// Config holds configuration for search requests.
type Config struct {
	MaxResults int           // Maximum number of results to return
	SinceTime  time.Duration // Only return results newer than this duration
	Language   string        // Language preference (e.g., "en")
}

// Result is one search hit in the corroboration wire format.
type Result struct {
	Title        string `json:"title"`
	Link         string `json:"link"`
	SourceDomain string `json:"source_domain"`
	Snippet      string `json:"snippet"`
	DateApprox   string `json:"date_approx,omitempty"`
}

var (
	// ErrMissingAPIKey is returned when a required API key is not provided.
	ErrMissingAPIKey = errors.New("API key is required")

	// ErrMissingSearchID is returned when a required search ID is not provided.
	ErrMissingSearchID = errors.New("search ID is required")

	// ErrUnsupportedProvider is returned when an unknown provider is requested.
	ErrUnsupportedProvider = errors.New("unsupported search provider")
)

// NewProvider creates a provider by name. The "mock" provider serves the
// simulated-search path used when no live credentials are configured.
func NewProvider(name, apiKey, searchID string) (Provider, error) {
	switch name {
	case "google":
		if apiKey == "" {
			return nil, ErrMissingAPIKey
		}
		if searchID == "" {
			return nil, ErrMissingSearchID
		}
		return NewGoogleProvider(apiKey, searchID), nil
	case "mock", "":
		return NewMockProvider(), nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
