package handlers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"newsforge/internal/config"
	"newsforge/internal/core"
	"newsforge/internal/logger"
	"newsforge/internal/publish"
	"newsforge/internal/records"
	"newsforge/internal/render"

	"github.com/spf13/cobra"
)

// NewDeleteCmd creates the article removal command
func NewDeleteCmd() *cobra.Command {
	deleteCmd := &cobra.Command{
		Use:   "delete <url-or-id>",
		Short: "Remove a published article and its record",
		Long: `Remove an article identified by its record ID or original source URL:
the published HTML page, the audio file, the master index entry, and
the pipeline record itself.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := runDelete(args[0]); err != nil {
				logger.Error("Failed to delete article", err)
				os.Exit(1)
			}
		},
	}
	return deleteCmd
}

func runDelete(key string) error {
	cfg := config.Get()
	recStore, err := records.NewStore(cfg.ProcessedDir())
	if err != nil {
		return err
	}

	rec, err := findRecord(recStore, key)
	if err != nil {
		return err
	}

	if rec.Slug != "" {
		removeArtifact(cfg.ArticlesDir(), filepath.Join(cfg.ArticlesDir(), rec.Slug+".html"))
	}
	if rec.AudioURL != "" {
		removeArtifact(cfg.AudioDir(), filepath.Join(cfg.App.SiteDir, filepath.FromSlash(rec.AudioURL)))
	}

	idx := publish.NewIndex(cfg.MasterIndexPath())
	if err := idx.Remove(rec.ID); err != nil {
		logger.Warn("Failed to update master index", "article_id", rec.ID, "error", err)
	} else if err := render.HomePage(cfg, idx); err != nil {
		logger.Warn("Home page regeneration failed", "error", err)
	}
	if err := recStore.Delete(rec.ID); err != nil {
		return fmt.Errorf("deleting record %s: %w", rec.ID, err)
	}

	fmt.Printf("Deleted %q (%s)\n", rec.InitialTitle, rec.ID)
	return nil
}

// findRecord resolves the key as a record ID first, then as a source URL.
func findRecord(recStore *records.Store, key string) (*core.ArticleRecord, error) {
	if r, err := recStore.Load(key); err == nil {
		return r, nil
	}

	ids, err := recStore.ListIDs()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		r, err := recStore.Load(id)
		if err != nil {
			continue
		}
		if r.OriginalSourceURL == key {
			return r, nil
		}
	}
	return nil, errors.New("no record matches " + key)
}

// removeArtifact deletes path only when it resolves inside dir, so a
// corrupted slug or audio URL cannot escape the site tree.
func removeArtifact(dir, path string) {
	rel, err := filepath.Rel(dir, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		logger.Warn("Refusing to remove path outside site tree", "path", path)
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to remove artifact", "path", path, "error", err)
	}
}
