package model

import "time"

// ScanSnapshot is the immutable summary of one run, keyed by Timestamp.
type ScanSnapshot struct {
	ID               string         `json:"id" yaml:"id"`
	Timestamp        time.Time      `json:"timestamp" yaml:"timestamp"`
	Root             string         `json:"root" yaml:"root"`
	FilesScanned     int            `json:"files_scanned" yaml:"files_scanned"`
	TotalFindings    int            `json:"total_findings" yaml:"total_findings"`
	AllCounts        CategoryCounts `json:"all_counts" yaml:"all_counts"`
	PolicyCounts     CategoryCounts `json:"policy_counts" yaml:"policy_counts"`
	FindingsByModule map[string]int `json:"findings_by_module" yaml:"findings_by_module"`
	ImportBases      map[string]int `json:"import_bases" yaml:"import_bases"`
	FanIn            []Hotspot      `json:"fan_in" yaml:"fan_in"`
	FanOut           []Hotspot      `json:"fan_out" yaml:"fan_out"`
	Cycles           []Cycle        `json:"cycles" yaml:"cycles"`
}

// SnapshotSummary is one row of the trend series table.
type SnapshotSummary struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Total     int       `json:"total" yaml:"total"`
	Delta     int       `json:"delta" yaml:"delta"`
}

// CategoryDelta compares one category between two snapshots.
type CategoryDelta struct {
	Category       MutationCategory `json:"category" yaml:"category"`
	Previous       int              `json:"previous" yaml:"previous"`
	Current        int              `json:"current" yaml:"current"`
	Delta          int              `json:"delta" yaml:"delta"`
	PolicyPrevious int              `json:"policy_previous" yaml:"policy_previous"`
	PolicyCurrent  int              `json:"policy_current" yaml:"policy_current"`
	PolicyDelta    int              `json:"policy_delta" yaml:"policy_delta"`
}

// MoverDimension names a keyed dimension that supports per-key deltas.
type MoverDimension string

const (
	// DimensionModule keys findings by the top-level module of their file.
	DimensionModule MoverDimension = "module"
	// DimensionImportBase keys import statements by imported top-level name.
	DimensionImportBase MoverDimension = "import_base"
)

// Mover is a key whose count grew between two snapshots.
type Mover struct {
	Dimension MoverDimension `json:"dimension" yaml:"dimension"`
	Key       string         `json:"key" yaml:"key"`
	Previous  int            `json:"previous" yaml:"previous"`
	Current   int            `json:"current" yaml:"current"`
	Delta     int            `json:"delta" yaml:"delta"`
}

// TrendReport compares the current snapshot against the stored history.
type TrendReport struct {
	Series           []SnapshotSummary `json:"series" yaml:"series"`
	HasPrevious      bool              `json:"has_previous" yaml:"has_previous"`
	PreviousAt       time.Time         `json:"previous_at,omitempty" yaml:"previous_at,omitempty"`
	TotalDelta       int               `json:"total_delta" yaml:"total_delta"`
	PolicyTotalDelta int               `json:"policy_total_delta" yaml:"policy_total_delta"`
	Categories       []CategoryDelta   `json:"categories" yaml:"categories"`
	WindowSize       int               `json:"window_size" yaml:"window_size"`
	WindowTotalDelta int               `json:"window_total_delta" yaml:"window_total_delta"`
	WindowCategories []CategoryDelta   `json:"window_categories" yaml:"window_categories"`
	TopMovers        []Mover           `json:"top_movers" yaml:"top_movers"`
	CyclesAdded      []Cycle           `json:"cycles_added" yaml:"cycles_added"`
	CyclesResolved   []Cycle           `json:"cycles_resolved" yaml:"cycles_resolved"`
}
