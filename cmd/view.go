package cmd

import (
	"github.com/spf13/cobra"
)

var viewNoTrendFlag bool

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view [root]",
		Short: "Scan and browse the result interactively",
		Long: `Scan the Python tree below root like "scan --dry-run --findings" and show the
result in a scrollable terminal viewer. Falls back to plain tables when the
output is not a terminal. The trend series is read but never written.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args, viewNoTrendFlag, true, true)
		},
	}

	cmd.Flags().BoolVar(&viewNoTrendFlag, noTrendFlagName, false, "do not read the trend series")

	return cmd
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
