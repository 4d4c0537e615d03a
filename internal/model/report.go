package model

// WarningKind classifies a non-fatal problem met during a run.
type WarningKind string

const (
	// WarnIO is an unreadable file.
	WarnIO WarningKind = "io"
	// WarnParse is a file skipped because its syntax tree has errors.
	WarnParse WarningKind = "parse"
	// WarnTimeout is a file skipped because it exceeded its read or parse budget.
	WarnTimeout WarningKind = "timeout"
	// WarnGraph is an import graph analysis that was cut short.
	WarnGraph WarningKind = "graph"
	// WarnTrendStore is an unreadable or corrupt trend history.
	WarnTrendStore WarningKind = "trend_store"
)

// Warning is surfaced next to the result; warnings are never dropped.
type Warning struct {
	Kind    WarningKind `json:"kind" yaml:"kind"`
	Path    Path        `json:"path,omitempty" yaml:"path,omitempty"`
	Message string      `json:"message" yaml:"message"`
}

// Result is the structured output of one run, consumed by the renderers.
type Result struct {
	Snapshot ScanSnapshot `json:"snapshot" yaml:"snapshot"`
	Findings []Finding    `json:"findings" yaml:"findings"`
	Edges    []ImportEdge `json:"edges,omitempty" yaml:"edges,omitempty"`
	Trend    *TrendReport `json:"trend,omitempty" yaml:"trend,omitempty"`
	Warnings []Warning    `json:"warnings" yaml:"warnings"`
}
