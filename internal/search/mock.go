package search

import (
	"context"
	"fmt"
)

// MockProvider implements Provider with simulated results. It stands in for a
// live search when no credentials are configured and in tests.
type MockProvider struct {
	name    string
	results []Result
}

// NewMockProvider creates a mock provider with a plausible corroboration
// spread: two tier-1 outlets, one independent site.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name: "Mock",
		results: []Result{
			{
				Title:        "Simulated coverage from a major outlet",
				Link:         "https://www.reuters.com/technology/simulated-article",
				SourceDomain: "reuters.com",
				Snippet:      "Simulated confirmation of the reported development from an established newsroom.",
			},
			{
				Title:        "Simulated technology desk report",
				Link:         "https://arstechnica.com/simulated-article",
				SourceDomain: "arstechnica.com",
				Snippet:      "Simulated independent analysis covering the same announcement.",
			},
			{
				Title:        "Simulated community discussion",
				Link:         "https://example.org/discussion",
				SourceDomain: "example.org",
				Snippet:      "Simulated secondary commentary referencing the original claim.",
			},
		},
	}
}

// GetName returns the name of this provider.
func (m *MockProvider) GetName() string {
	return m.name
}

// Search returns the configured mock results, titles annotated with the query.
func (m *MockProvider) Search(ctx context.Context, query string, config Config) ([]Result, error) {
	maxResults := config.MaxResults
	if maxResults <= 0 || maxResults > len(m.results) {
		maxResults = len(m.results)
	}

	results := make([]Result, maxResults)
	for i := 0; i < maxResults; i++ {
		result := m.results[i]
		result.Title = fmt.Sprintf("%s (for query: %s)", result.Title, query)
		results[i] = result
	}
	return results, nil
}

// SetResults allows customization of mock results for testing.
func (m *MockProvider) SetResults(results []Result) {
	m.results = results
}
