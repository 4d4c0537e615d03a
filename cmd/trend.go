package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"patchwatch.dev/pkg/patchwatch/internal/domain"
)

// trendCmd represents the trend command.
var trendCmd = newTrendCmd()

func newTrendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trend",
		Short: "Print the recorded trend series",
		Long: `Print the most recent snapshots of the trend series without scanning.
The newest snapshot is compared with the ones before it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			ui, err := newUI(cmd, false)
			if err != nil {
				return err
			}

			store, err := openTrendStore(true)
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(); err != nil {
					slog.Warn("Failed to close trend store", "error", err)
				}
			}()

			report, warnings, err := newWorkflow(domain.WithTrendEngine(newTrendEngine(store, true))).Trend(ctx)
			if err != nil {
				return err
			}

			return ui.DisplayTrend(ctx, report, warnings)
		},
	}
}

func init() {
	rootCmd.AddCommand(trendCmd)
}
