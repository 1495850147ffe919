package cli

import (
	"github.com/spf13/cobra"

	"purchase-anomaly-alerts/internal/app"
)

var (
	backfillInput  string
	backfillDryRun bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Load an existing flagged purchases log into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.BackfillOptions{
			InputPath: backfillInput,
			DryRun:    backfillDryRun,
		}

		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillInput, "input", "", "Flagged purchases log to load (defaults to output.path)")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Parse the log without writing to storage")
}
