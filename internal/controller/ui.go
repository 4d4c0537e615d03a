// Package controller provides output adapters for displaying analysis results.
package controller

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// Format selects how results are written.
type Format string

// Available Format values.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates an output format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q: want table, json or yaml", name)
	}
}

// UI defines the interface for displaying analysis results.
// Implementations can use different output methods (tables, TUI, encoders).
type UI interface {
	DisplayResult(ctx context.Context, result m.Result) error
	DisplayGraph(ctx context.Context, result m.Result) error
	DisplayTrend(ctx context.Context, report m.TrendReport, warnings []m.Warning) error
}

// NewUI picks the UI for a format. Interactive table output falls back to
// plain tables when stdout is not a terminal.
func NewUI(cmd *cobra.Command, format Format, interactive bool) UI {
	switch format {
	case FormatJSON, FormatYAML:
		return NewStructuredUI(cmd.OutOrStdout(), format)
	}

	if interactive && IsTTY(cmd.OutOrStdout()) {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether w is an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
