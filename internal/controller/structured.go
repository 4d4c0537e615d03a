package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// StructuredUI implements UI by encoding results as JSON or YAML documents.
type StructuredUI struct {
	output io.Writer
	format Format
}

// NewStructuredUI creates a StructuredUI writing format to output.
func NewStructuredUI(output io.Writer, format Format) *StructuredUI {
	return &StructuredUI{output: output, format: format}
}

// DisplayResult implements UI.
func (s *StructuredUI) DisplayResult(ctx context.Context, result m.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.encode(result)
}

// DisplayGraph implements UI.
func (s *StructuredUI) DisplayGraph(ctx context.Context, result m.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.encode(struct {
		Edges    []m.ImportEdge `json:"edges" yaml:"edges"`
		FanIn    []m.Hotspot    `json:"fan_in" yaml:"fan_in"`
		FanOut   []m.Hotspot    `json:"fan_out" yaml:"fan_out"`
		Cycles   []m.Cycle      `json:"cycles" yaml:"cycles"`
		Warnings []m.Warning    `json:"warnings" yaml:"warnings"`
	}{
		Edges:    result.Edges,
		FanIn:    result.Snapshot.FanIn,
		FanOut:   result.Snapshot.FanOut,
		Cycles:   result.Snapshot.Cycles,
		Warnings: result.Warnings,
	})
}

// DisplayTrend implements UI.
func (s *StructuredUI) DisplayTrend(ctx context.Context, report m.TrendReport, warnings []m.Warning) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.encode(struct {
		Trend    m.TrendReport `json:"trend" yaml:"trend"`
		Warnings []m.Warning   `json:"warnings" yaml:"warnings"`
	}{Trend: report, Warnings: warnings})
}

func (s *StructuredUI) encode(v any) error {
	switch s.format {
	case FormatYAML:
		enc := yaml.NewEncoder(s.output)
		enc.SetIndent(2)

		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return enc.Close()
	default:
		enc := json.NewEncoder(s.output)
		enc.SetIndent("", "  ")

		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil
	}
}
