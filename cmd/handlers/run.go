package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"newsforge/internal/config"
	"newsforge/internal/dedup"
	"newsforge/internal/embedding"
	"newsforge/internal/feeds"
	"newsforge/internal/fetch"
	"newsforge/internal/llm"
	"newsforge/internal/logger"
	"newsforge/internal/media"
	"newsforge/internal/pipeline"
	"newsforge/internal/publish"
	"newsforge/internal/records"
	"newsforge/internal/search"
	"newsforge/internal/social"
	"newsforge/internal/stages"
	"newsforge/internal/store"
	"newsforge/internal/tts"
	"newsforge/internal/writer"

	"github.com/spf13/cobra"
)

const statusEndpoint = "https://api.twitter.com/2/tweets"

// NewRunCmd creates the pipeline run command
func NewRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest candidates and run the editorial pipeline",
		Long: `Fetch candidate articles from the given URLs and feeds, then drive
every pending record through the full pipeline: dedup, analysis,
adjudication, writing, assembly, media, and publication.`,
		Run: func(cmd *cobra.Command, args []string) {
			urls, _ := cmd.Flags().GetStringArray("url")
			feedURLs, _ := cmd.Flags().GetStringArray("feed")
			ids, _ := cmd.Flags().GetStringArray("id")
			if err := runPipeline(urls, feedURLs, ids); err != nil {
				logger.Error("Pipeline run failed", err)
				os.Exit(1)
			}
		},
	}

	runCmd.Flags().StringArray("url", nil, "article URL to ingest (repeatable)")
	runCmd.Flags().StringArray("feed", nil, "RSS/Atom feed URL to discover candidates from (repeatable)")
	runCmd.Flags().StringArray("id", nil, "process only these record IDs (repeatable)")
	return runCmd
}

func runPipeline(urls, feedURLs, onlyIDs []string) error {
	cfg := config.Get()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recStore, err := records.NewStore(cfg.ProcessedDir())
	if err != nil {
		return fmt.Errorf("opening record store: %w", err)
	}

	cache, err := store.Open(cfg.App.DataDir)
	if err != nil {
		return fmt.Errorf("opening fetch cache: %w", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Error("Failed to close fetch cache", err)
		}
	}()

	if err := ingestCandidates(ctx, cfg, recStore, cache, urls, feedURLs); err != nil {
		return err
	}

	p, err := buildPipeline(cfg, recStore)
	if err != nil {
		return err
	}

	ids := onlyIDs
	if len(ids) == 0 {
		ids, err = p.PendingIDs()
		if err != nil {
			return fmt.Errorf("listing pending records: %w", err)
		}
	}
	if len(ids) == 0 {
		fmt.Println("No pending records to process.")
		return nil
	}

	fmt.Printf("Processing %d record(s)...\n", len(ids))
	return p.Run(ctx, ids)
}

// ingestCandidates turns URLs and feed entries into pending pipeline records.
func ingestCandidates(ctx context.Context, cfg *config.Config, recStore *records.Store, cache *store.Cache, urls, feedURLs []string) error {
	if len(urls) == 0 && len(feedURLs) == 0 {
		return nil
	}

	fetcher := fetch.New(cfg, cache)

	if len(feedURLs) > 0 {
		candidates, err := feeds.New(cfg).Discover(ctx, feedURLs)
		if err != nil {
			return fmt.Errorf("discovering feed candidates: %w", err)
		}
		for _, c := range candidates {
			urls = append(urls, c.URL)
		}
	}

	for _, u := range urls {
		rec, err := fetcher.Ingest(ctx, u, fetch.IngestOptions{})
		if err != nil {
			logger.Warn("Ingest failed", "url", u, "error", err)
			continue
		}
		if err := recStore.Save(rec); err != nil {
			return fmt.Errorf("saving record for %s: %w", u, err)
		}
		fmt.Printf("Ingested %s (%s)\n", rec.InitialTitle, rec.ID)
	}
	return nil
}

// buildPipeline wires every pipeline collaborator from configuration.
func buildPipeline(cfg *config.Config, recStore *records.Store) (*pipeline.Pipeline, error) {
	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("configuring LLM gateway: %w", err)
	}
	embedder, err := embedding.NewGeminiEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("configuring embedder: %w", err)
	}
	dedupStore, err := dedup.Open(cfg.DedupStorePath())
	if err != nil {
		return nil, fmt.Errorf("opening dedup store: %w", err)
	}
	provider, err := search.NewProvider(cfg.Search.Provider, cfg.Search.GoogleAPIKey, cfg.Search.GoogleSearchID)
	if err != nil {
		return nil, fmt.Errorf("configuring search provider: %w", err)
	}

	var socialClient social.Client
	if hc := social.NewHTTPClient(cfg, statusEndpoint); hc != nil {
		socialClient = hc
	}

	deps := pipeline.Deps{
		Config:    cfg,
		Records:   recStore,
		Dedup:     dedupStore,
		Embedder:  embedder,
		Analyzer:  stages.NewAnalyzer(llmClient, provider, cfg),
		Writer:    writer.New(llmClient),
		Media:     media.NewIntegrator(cfg),
		Publisher: publish.New(cfg),
		Social:    social.NewPoster(socialClient, cfg),
	}
	if cfg.TTS.Enabled {
		deps.TTS = tts.NewManager(cfg)
	}
	return pipeline.New(deps), nil
}
