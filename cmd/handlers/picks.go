package handlers

import (
	"context"
	"fmt"
	"os"

	"newsforge/internal/config"
	"newsforge/internal/fetch"
	"newsforge/internal/logger"
	"newsforge/internal/records"
	"newsforge/internal/store"

	"github.com/spf13/cobra"
)

// NewPicksCmd creates the editor-picks command for manual candidate entry
func NewPicksCmd() *cobra.Command {
	picksCmd := &cobra.Command{
		Use:   "picks",
		Short: "Manage manually picked candidate articles",
		Long: `Add hand-picked articles to the pending queue ahead of the next
pipeline run, or list the records already in the queue.`,
	}

	picksCmd.AddCommand(newPicksAddCmd())
	picksCmd.AddCommand(newPicksListCmd())
	return picksCmd
}

func newPicksAddCmd() *cobra.Command {
	addCmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Fetch a URL and queue it as a pending record",
		Long: `Fetch the article at the given URL and create a pending record.
Without flags this is a quick add; the title, importance, trending
flag, and preferred image can be pinned explicitly.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			opts := fetch.IngestOptions{}
			opts.Title, _ = cmd.Flags().GetString("title")
			opts.Importance, _ = cmd.Flags().GetString("importance")
			opts.Trending, _ = cmd.Flags().GetBool("trending")
			opts.ImageURL, _ = cmd.Flags().GetString("image")
			if err := runPicksAdd(args[0], opts); err != nil {
				logger.Error("Failed to add pick", err)
				os.Exit(1)
			}
		},
	}

	addCmd.Flags().String("title", "", "override the scraped title")
	addCmd.Flags().String("importance", "", "manual importance (Normal, High, Breaking)")
	addCmd.Flags().Bool("trending", false, "mark the article as trending")
	addCmd.Flags().String("image", "", "preferred image URL")
	return addCmd
}

func newPicksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all records and their pipeline state",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runPicksList(); err != nil {
				logger.Error("Failed to list records", err)
				os.Exit(1)
			}
		},
	}
}

func runPicksAdd(url string, opts fetch.IngestOptions) error {
	switch opts.Importance {
	case "", "Normal", "High", "Breaking":
	default:
		return fmt.Errorf("invalid importance %q (valid: Normal, High, Breaking)", opts.Importance)
	}

	cfg := config.Get()
	recStore, err := records.NewStore(cfg.ProcessedDir())
	if err != nil {
		return err
	}
	cache, err := store.Open(cfg.App.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	rec, err := fetch.New(cfg, cache).Ingest(context.Background(), url, opts)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", url, err)
	}
	if err := recStore.Save(rec); err != nil {
		return err
	}

	fmt.Printf("Queued %q (%s)\n", rec.InitialTitle, rec.ID)
	return nil
}

func runPicksList() error {
	cfg := config.Get()
	recStore, err := records.NewStore(cfg.ProcessedDir())
	if err != nil {
		return err
	}
	ids, err := recStore.ListIDs()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No records.")
		return nil
	}

	for _, id := range ids {
		rec, err := recStore.Load(id)
		if err != nil {
			logger.Warn("Unreadable record skipped", "article_id", id, "error", err)
			continue
		}
		state := rec.TerminalStatus
		if state == "" {
			state = "pending"
			if adj := rec.FinalAdjudication; adj != nil {
				state = fmt.Sprintf("pending (%s)", adj.FinalPublicationDecision)
			}
		}
		fmt.Printf("%s  %-45s %s\n", rec.ID, truncateTitle(rec.InitialTitle, 45), state)
	}
	return nil
}

func truncateTitle(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
