package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"patchwatch.dev/pkg/patchwatch/internal/controller"
	"patchwatch.dev/pkg/patchwatch/internal/domain"
)

var scanNoTrendFlag bool
var scanDryRunFlag bool
var scanFindingsFlag bool

// scanCmd represents the scan command.
var scanCmd = newScanCmd()

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [root]",
		Short: "Scan a Python tree and record the result",
		Long: `Scan every Python file below root (default: current directory) for runtime
mutation patterns, analyze the import graph and compare the result with the
recorded trend series. The snapshot is appended to the series unless
--dry-run or --no-trend is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args, scanNoTrendFlag, scanDryRunFlag, false)
		},
	}

	configureScanFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func configureScanFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&scanNoTrendFlag, noTrendFlagName, false, "do not read or write the trend series")
	cmd.Flags().BoolVar(&scanDryRunFlag, dryRunFlagName, false, "compare with the trend series without appending to it")
	cmd.Flags().BoolVar(&scanFindingsFlag, findingsFlagName, false, "list every finding in table output")
}

// runScan executes a full scan. A dry run opens the series read-only.
func runScan(cmd *cobra.Command, args []string, noTrend, dryRun, interactive bool) error {
	ctx := cmd.Context()

	root, err := scanRoot(args)
	if err != nil {
		return err
	}

	sargs, err := scanArgs(root)
	if err != nil {
		return err
	}

	ui, err := newUI(cmd, interactive)
	if err != nil {
		return err
	}

	if simple, ok := ui.(*controller.SimpleUI); ok {
		simple.Findings = scanFindingsFlag || interactive
	}

	var opts []domain.WorkflowOption

	if !noTrend {
		store, err := openTrendStore(dryRun)
		if err != nil {
			return err
		}

		defer func() {
			if err := store.Close(); err != nil {
				slog.Warn("Failed to close trend store", "error", err)
			}
		}()

		opts = append(opts, domain.WithTrendEngine(newTrendEngine(store, dryRun)))
	}

	result, err := newWorkflow(opts...).Scan(ctx, sargs)
	if err != nil {
		slog.Error("Scan failed", "root", root, "error", err)
		return err
	}

	return ui.DisplayResult(ctx, result)
}
