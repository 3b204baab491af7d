package handlers

import (
	"os"

	"newsforge/internal/config"
	"newsforge/internal/logger"
	"newsforge/internal/records"
	"newsforge/internal/tui"

	"github.com/spf13/cobra"
)

// NewReviewCmd creates the interactive review queue command
func NewReviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Review articles the adjudicator flagged for a human decision",
		Long: `Open the interactive review queue. Articles the adjudicator parked
with a Flag for Human Review decision can be approved (they publish on
the next run) or rejected.`,
		Run: func(cmd *cobra.Command, args []string) {
			recStore, err := records.NewStore(config.Get().ProcessedDir())
			if err != nil {
				logger.Error("Failed to open record store", err)
				os.Exit(1)
			}
			if err := tui.Run(recStore); err != nil {
				logger.Error("Review session failed", err)
				os.Exit(1)
			}
		},
	}
}
