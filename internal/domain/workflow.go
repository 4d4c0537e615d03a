package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
	"patchwatch.dev/pkg/patchwatch/pkg"
)

// DefaultFileTimeout bounds reading and parsing a single file.
const DefaultFileTimeout = 10 * time.Second

// ScanArgs are the per-run inputs of a workflow.
type ScanArgs struct {
	Root          m.Path
	Policy        FilePolicy
	Parallel      int
	FileTimeout   time.Duration
	CycleLimit    int
	MaxCycleSteps int
	TopK          int
	// SpillDir holds the temporary finding spill; empty uses the system temp dir.
	SpillDir string
}

// Workflow runs the analysis pipeline and produces results for the
// controllers to render.
type Workflow interface {
	// Scan walks, scans, builds the import graph and records the trend.
	Scan(ctx context.Context, args ScanArgs) (m.Result, error)
	// Graph runs the import graph half only: no findings, no trend.
	Graph(ctx context.Context, args ScanArgs) (m.Result, error)
	// Trend reports the stored series without scanning.
	Trend(ctx context.Context) (m.TrendReport, []m.Warning, error)
}

// WorkflowOption configures NewWorkflow.
type WorkflowOption func(*workflow)

// WithTrendEngine records every scan in the given engine. Without it Scan
// results carry no trend report.
func WithTrendEngine(engine TrendEngine) WorkflowOption {
	return func(w *workflow) {
		w.trend = engine
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) WorkflowOption {
	return func(w *workflow) {
		w.now = now
	}
}

type workflow struct {
	Walker
	Scanner
	trend TrendEngine
	now   func() time.Time
}

// NewWorkflow creates a Workflow from its components.
func NewWorkflow(walker Walker, scanner Scanner, opts ...WorkflowOption) Workflow {
	w := &workflow{
		Walker:  walker,
		Scanner: scanner,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// fileSlot receives the outcome of one file; each slot has a single writer.
type fileSlot struct {
	scanned bool
	imports []ImportRef
	warning *m.Warning
}

type analysis struct {
	files    []m.SourceFile
	slots    []fileSlot
	findings []m.Finding
	warnings []m.Warning
}

func (w *workflow) Scan(ctx context.Context, args ScanArgs) (m.Result, error) {
	start := w.now()

	a, err := w.analyze(ctx, args, true)
	if err != nil {
		return m.Result{}, err
	}

	result, err := w.graphResult(ctx, args, a)
	if err != nil {
		return m.Result{}, err
	}

	snapshot := &result.Snapshot
	snapshot.Timestamp = start.UTC()
	snapshot.AllCounts, snapshot.PolicyCounts = m.CountFindings(a.findings)
	snapshot.TotalFindings = snapshot.AllCounts.Total()
	snapshot.FindingsByModule = map[string]int{}

	for _, f := range a.findings {
		snapshot.FindingsByModule[f.Module]++
	}

	result.Findings = a.findings

	if w.trend != nil {
		outcome, err := w.trend.Record(ctx, result.Snapshot)
		if err != nil {
			return m.Result{}, fmt.Errorf("trend: %w", err)
		}

		result.Snapshot = outcome.Snapshot
		result.Trend = &outcome.Report
		result.Warnings = append(result.Warnings, outcome.Warnings...)
	}

	slog.Info("Scan completed",
		"root", args.Root,
		"files", result.Snapshot.FilesScanned,
		"findings", result.Snapshot.TotalFindings,
		"cycles", len(result.Snapshot.Cycles),
		"warnings", len(result.Warnings),
		"duration", time.Since(start))

	return result, nil
}

func (w *workflow) Graph(ctx context.Context, args ScanArgs) (m.Result, error) {
	a, err := w.analyze(ctx, args, false)
	if err != nil {
		return m.Result{}, err
	}

	result, err := w.graphResult(ctx, args, a)
	if err != nil {
		return m.Result{}, err
	}

	result.Snapshot.Timestamp = w.now().UTC()

	return result, nil
}

func (w *workflow) Trend(ctx context.Context) (m.TrendReport, []m.Warning, error) {
	if w.trend == nil {
		return m.TrendReport{}, nil, errors.New("trend store is not configured")
	}

	return w.trend.History(ctx)
}

// graphResult builds the graph from the analysis and runs cycle detection
// and hotspot ranking concurrently on the frozen graph.
func (w *workflow) graphResult(ctx context.Context, args ScanArgs, a *analysis) (m.Result, error) {
	inputs := make([]GraphInput, 0, len(a.files))
	for i, f := range a.files {
		inputs = append(inputs, GraphInput{TopLevel: f.TopLevel, Imports: a.slots[i].imports})
	}

	graph, bases := BuildGraph(TopLevels(inputs), inputs)

	var (
		search        CycleSearch
		fanIn, fanOut []m.Hotspot
	)

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var err error
		search, err = FindCycles(gctx, graph, args.CycleLimit, args.MaxCycleSteps)

		return err
	})

	group.Go(func() error {
		fanIn, fanOut = RankHotspots(graph, args.TopK)
		return nil
	})

	if err := group.Wait(); err != nil {
		slog.Error("Import graph analysis failed", "error", err)
		return m.Result{}, fmt.Errorf("analyze import graph: %w", err)
	}

	warnings := a.warnings

	if search.Truncated {
		slog.Warn("Cycle search stopped early", "steps", search.Steps, "found", len(search.Cycles))
		warnings = append(warnings, m.Warning{
			Kind:    m.WarnGraph,
			Message: fmt.Sprintf("cycle search stopped after %d steps; %d cycles reported", search.Steps, len(search.Cycles)),
		})
	}

	filesScanned := 0

	for _, s := range a.slots {
		if s.scanned {
			filesScanned++
		}
	}

	return m.Result{
		Snapshot: m.ScanSnapshot{
			ID:           uuid.NewString(),
			Root:         string(args.Root),
			FilesScanned: filesScanned,
			AllCounts:    m.NewCategoryCounts(),
			PolicyCounts: m.NewCategoryCounts(),
			ImportBases:  bases,
			FanIn:        fanIn,
			FanOut:       fanOut,
			Cycles:       search.Cycles,
		},
		Findings: []m.Finding{},
		Edges:    graph.Edges(),
		Warnings: warnings,
	}, nil
}

// analyze enumerates the root and scans every candidate with a bounded
// worker pool. Findings are spilled to disk while workers run and read back
// in sorted order once all of them are done.
func (w *workflow) analyze(ctx context.Context, args ScanArgs, keepFindings bool) (*analysis, error) {
	a := &analysis{}

	candidates, errCh := w.Stream(ctx, args.Root, args.Policy)
	for c := range candidates {
		if c.Warning != nil {
			a.warnings = append(a.warnings, *c.Warning)
			continue
		}

		a.files = append(a.files, c.File)
	}

	if err := <-errCh; err != nil {
		return nil, err
	}

	slog.Debug("Enumerated candidates", "root", args.Root, "files", len(a.files))

	spill, err := pkg.NewFileSpill[m.Finding](args.SpillDir)
	if err != nil {
		return nil, fmt.Errorf("create finding spill: %w", err)
	}

	defer func() {
		if err := spill.Close(); err != nil {
			slog.Warn("Failed to release finding spill", "error", err)
		}
	}()

	a.slots = make([]fileSlot, len(a.files))

	parallel := args.Parallel
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}

	timeout := args.FileTimeout
	if timeout <= 0 {
		timeout = DefaultFileTimeout
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(parallel)

	for i := range a.files {
		if gctx.Err() != nil {
			break
		}

		group.Go(func() error {
			return w.scanOne(gctx, a.files[i], timeout, &a.slots[i], spill, keepFindings)
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, s := range a.slots {
		if s.warning != nil {
			a.warnings = append(a.warnings, *s.warning)
		}
	}

	a.findings, err = spill.Collect()
	if err != nil {
		return nil, fmt.Errorf("collect findings: %w", err)
	}

	m.SortFindings(a.findings)

	return a, nil
}

// scanOne loads and scans one file into its slot. Per-file failures become
// warnings; only cancellation of the run is returned as an error.
func (w *workflow) scanOne(ctx context.Context, file m.SourceFile, timeout time.Duration, slot *fileSlot, spill pkg.FileSpill[m.Finding], keepFindings bool) error {
	loaded, err := w.Load(ctx, file, timeout)
	if err != nil {
		return fileFailure(ctx, file, err, slot)
	}

	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	scan, err := w.ScanFile(scanCtx, loaded)
	if err != nil {
		return fileFailure(ctx, file, err, slot)
	}

	slot.scanned = true
	slot.imports = scan.Imports

	if keepFindings && len(scan.Findings) > 0 {
		if err := spill.AppendBatch(scan.Findings); err != nil {
			return fmt.Errorf("spill findings of %s: %w", file.RelPath, err)
		}
	}

	return nil
}

func fileFailure(ctx context.Context, file m.SourceFile, err error, slot *fileSlot) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	kind := m.WarnIO

	switch {
	case errors.Is(err, m.ErrFileTimeout):
		kind = m.WarnTimeout
	case errors.Is(err, m.ErrParse):
		kind = m.WarnParse
	}

	slog.Warn("Skipping file", "path", file.RelPath, "kind", kind, "error", err)
	slot.warning = &m.Warning{Kind: kind, Path: m.Path(file.RelPath), Message: err.Error()}

	return nil
}
