package controller

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// SimpleUI implements UI by printing tables to the command's output.
type SimpleUI struct {
	cmd *cobra.Command
	// Findings also lists every finding, not only the per-category counts.
	Findings bool
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// DisplayResult prints a scan result.
func (s *SimpleUI) DisplayResult(ctx context.Context, result m.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("%s", joinSections(resultSections(result, s.Findings)))

	return nil
}

// DisplayGraph prints the import graph, its hotspots and cycles.
func (s *SimpleUI) DisplayGraph(ctx context.Context, result m.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("%s", joinSections(graphSections(result)))

	return nil
}

// DisplayTrend prints the stored series.
func (s *SimpleUI) DisplayTrend(ctx context.Context, report m.TrendReport, warnings []m.Warning) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("%s", joinSections(append(trendSections(report), renderWarnings(warnings))))

	return nil
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
