package handlers

import (
	"fmt"
	"os"
	"time"

	"newsforge/internal/config"
	"newsforge/internal/logger"
	"newsforge/internal/store"

	"github.com/spf13/cobra"
)

// NewCacheCmd creates the fetch-cache management command
func NewCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the page fetch cache",
		Long:  `Inspect and prune the SQLite cache of fetched article pages.`,
	}

	cacheCmd.AddCommand(newCachePurgeCmd())
	return cacheCmd
}

func newCachePurgeCmd() *cobra.Command {
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove cached pages older than the retention window",
		Run: func(cmd *cobra.Command, args []string) {
			maxAge, _ := cmd.Flags().GetDuration("max-age")
			if err := runCachePurge(maxAge); err != nil {
				logger.Error("Failed to purge cache", err)
				os.Exit(1)
			}
		},
	}

	purgeCmd.Flags().Duration("max-age", 7*24*time.Hour, "purge entries fetched longer ago than this")
	return purgeCmd
}

func runCachePurge(maxAge time.Duration) error {
	cache, err := store.Open(config.Get().App.DataDir)
	if err != nil {
		return fmt.Errorf("opening fetch cache: %w", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Error("Failed to close fetch cache", err)
		}
	}()

	n, err := cache.Purge(maxAge)
	if err != nil {
		return err
	}
	fmt.Printf("Purged %d cached page(s)\n", n)
	return nil
}
