package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testGoogleProvider(t *testing.T, hits *atomic.Int32) *GoogleProvider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"title": "Result", "link": "https://www.example.org/a", "snippet": "snippet"},
			},
		})
	}))
	t.Cleanup(srv.Close)

	g := NewGoogleProvider("key", "cx")
	g.baseURL = srv.URL
	return g
}

func TestGoogleSearchParsesResults(t *testing.T) {
	var hits atomic.Int32
	g := testGoogleProvider(t, &hits)
	g.rateLimit = 0

	results, err := g.Search(context.Background(), "quantum chips", Config{MaxResults: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].SourceDomain != "example.org" {
		t.Fatalf("results = %+v", results)
	}
}

func TestGoogleSearchConcurrentCallsAreRateSpaced(t *testing.T) {
	var hits atomic.Int32
	g := testGoogleProvider(t, &hits)
	g.rateLimit = 20 * time.Millisecond

	const callers = 5
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Search(context.Background(), "q", Config{}); err != nil {
				t.Errorf("Search: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := hits.Load(); got != callers {
		t.Errorf("requests = %d, want %d", got, callers)
	}
	// Each call after the first waits out the limiter, so the batch cannot
	// finish faster than the summed spacing.
	if elapsed := time.Since(start); elapsed < (callers-1)*20*time.Millisecond {
		t.Errorf("elapsed = %v, rate limit not enforced across goroutines", elapsed)
	}
}
