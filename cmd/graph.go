package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// graphCmd represents the graph command.
var graphCmd = newGraphCmd()

func newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph [root]",
		Short: "Show the import graph, its hotspots and cycles",
		Long: `Build the top-level import graph of the Python tree below root (default:
current directory) and report import cycles plus the fan-in and fan-out
hotspots. Nothing is recorded in the trend series.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			root, err := scanRoot(args)
			if err != nil {
				return err
			}

			sargs, err := scanArgs(root)
			if err != nil {
				return err
			}

			ui, err := newUI(cmd, false)
			if err != nil {
				return err
			}

			result, err := newWorkflow().Graph(ctx, sargs)
			if err != nil {
				slog.Error("Graph analysis failed", "root", root, "error", err)
				return err
			}

			return ui.DisplayGraph(ctx, result)
		},
	}
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
