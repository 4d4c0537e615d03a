package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"patchwatch.dev/pkg/patchwatch/internal/adapter"
	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

const (
	// DefaultTrendWindow is the number of stored snapshots compared against.
	DefaultTrendWindow = 5
	// DefaultTopMovers is the number of movers kept across all dimensions.
	DefaultTopMovers = 5
)

// TrendOptions configures NewTrendEngine.
type TrendOptions struct {
	Window    int
	TopMovers int
	// DryRun computes the report without appending the snapshot.
	DryRun bool
}

// TrendOutcome is the result of comparing one snapshot with the series.
type TrendOutcome struct {
	// Snapshot is the compared snapshot, with its timestamp moved past the
	// latest stored entry when needed.
	Snapshot m.ScanSnapshot
	Report   m.TrendReport
	Warnings []m.Warning
}

// TrendEngine compares snapshots against the stored series.
type TrendEngine interface {
	// Record compares current with the history and appends it to the store.
	Record(ctx context.Context, current m.ScanSnapshot) (TrendOutcome, error)
	// History returns up to window stored snapshots as a report without a
	// current run; the newest stored snapshot plays the current role.
	History(ctx context.Context) (m.TrendReport, []m.Warning, error)
}

type trendEngine struct {
	store adapter.TrendStore
	opts  TrendOptions
}

// NewTrendEngine creates a TrendEngine over an explicit store.
func NewTrendEngine(store adapter.TrendStore, opts TrendOptions) TrendEngine {
	if opts.Window <= 0 {
		opts.Window = DefaultTrendWindow
	}

	if opts.TopMovers <= 0 {
		opts.TopMovers = DefaultTopMovers
	}

	return &trendEngine{store: store, opts: opts}
}

// load reads the window plus one older entry, used only as the predecessor
// of the oldest windowed entry. Read errors degrade to an empty history.
func (e *trendEngine) load(ctx context.Context) (before *m.ScanSnapshot, history []m.ScanSnapshot, warnings []m.Warning) {
	entries, err := e.store.Latest(ctx, e.opts.Window+1)
	if err != nil {
		slog.Warn("Trend history unavailable, treating it as empty", "error", err)

		return nil, nil, []m.Warning{{Kind: m.WarnTrendStore, Message: err.Error()}}
	}

	if len(entries) > e.opts.Window {
		first := entries[0]
		return &first, entries[1:], nil
	}

	return nil, entries, nil
}

func (e *trendEngine) Record(ctx context.Context, current m.ScanSnapshot) (TrendOutcome, error) {
	before, history, warnings := e.load(ctx)

	if n := len(history); n > 0 {
		latest := history[n-1].Timestamp
		if !current.Timestamp.After(latest) {
			bumped := latest.Add(time.Nanosecond)
			slog.Debug("Bumping snapshot timestamp past latest entry", "from", current.Timestamp, "to", bumped)
			current.Timestamp = bumped
		}
	}

	report := e.compare(before, history, current)

	if !e.opts.DryRun {
		if err := e.store.Append(ctx, current); err != nil {
			slog.Error("Failed to record snapshot", "error", err)
			return TrendOutcome{}, fmt.Errorf("record snapshot: %w", err)
		}
	}

	return TrendOutcome{Snapshot: current, Report: report, Warnings: warnings}, nil
}

func (e *trendEngine) History(ctx context.Context) (m.TrendReport, []m.Warning, error) {
	if err := ctx.Err(); err != nil {
		return m.TrendReport{}, nil, err
	}

	before, history, warnings := e.load(ctx)
	if len(history) == 0 {
		return m.TrendReport{Series: []m.SnapshotSummary{}, Categories: zeroDeltas(), WindowCategories: zeroDeltas()}, warnings, nil
	}

	current := history[len(history)-1]

	return e.compare(before, history[:len(history)-1], current), warnings, nil
}

// compare builds the report for current against history (oldest first).
func (e *trendEngine) compare(before *m.ScanSnapshot, history []m.ScanSnapshot, current m.ScanSnapshot) m.TrendReport {
	var previous, oldest m.ScanSnapshot

	report := m.TrendReport{
		HasPrevious: len(history) > 0,
		WindowSize:  len(history),
	}

	if report.HasPrevious {
		previous = history[len(history)-1]
		oldest = history[0]
		report.PreviousAt = previous.Timestamp
	}

	report.Categories = categoryDeltas(previous, current)
	report.TotalDelta = current.TotalFindings - previous.TotalFindings
	report.PolicyTotalDelta = current.PolicyCounts.Total() - previous.PolicyCounts.Total()
	report.WindowCategories = categoryDeltas(oldest, current)
	report.WindowTotalDelta = current.TotalFindings - oldest.TotalFindings

	report.TopMovers = topMovers(e.opts.TopMovers,
		movers(m.DimensionModule, previous.FindingsByModule, current.FindingsByModule),
		movers(m.DimensionImportBase, previous.ImportBases, current.ImportBases),
	)

	report.CyclesAdded, report.CyclesResolved = diffCycles(previous.Cycles, current.Cycles)
	report.Series = series(before, history, current)

	return report
}

func categoryDeltas(previous, current m.ScanSnapshot) []m.CategoryDelta {
	deltas := make([]m.CategoryDelta, 0, len(m.AllCategories()))

	for _, c := range m.AllCategories() {
		d := m.CategoryDelta{
			Category:       c,
			Previous:       previous.AllCounts[c],
			Current:        current.AllCounts[c],
			PolicyPrevious: previous.PolicyCounts[c],
			PolicyCurrent:  current.PolicyCounts[c],
		}
		d.Delta = d.Current - d.Previous
		d.PolicyDelta = d.PolicyCurrent - d.PolicyPrevious

		deltas = append(deltas, d)
	}

	return deltas
}

func zeroDeltas() []m.CategoryDelta {
	return categoryDeltas(m.ScanSnapshot{}, m.ScanSnapshot{})
}

func movers(dim m.MoverDimension, previous, current map[string]int) []m.Mover {
	var out []m.Mover

	for key, now := range current {
		if delta := now - previous[key]; delta > 0 {
			out = append(out, m.Mover{Dimension: dim, Key: key, Previous: previous[key], Current: now, Delta: delta})
		}
	}

	return out
}

func topMovers(k int, groups ...[]m.Mover) []m.Mover {
	all := []m.Mover{}
	for _, g := range groups {
		all = append(all, g...)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Delta != all[j].Delta {
			return all[i].Delta > all[j].Delta
		}

		if all[i].Key != all[j].Key {
			return all[i].Key < all[j].Key
		}

		return all[i].Dimension < all[j].Dimension
	})

	if len(all) > k {
		all = all[:k]
	}

	return all
}

func diffCycles(previous, current []m.Cycle) (added, resolved []m.Cycle) {
	prev := make(map[string]bool, len(previous))
	for _, c := range previous {
		prev[c.Key()] = true
	}

	cur := make(map[string]bool, len(current))
	for _, c := range current {
		cur[c.Key()] = true
	}

	added, resolved = []m.Cycle{}, []m.Cycle{}

	for _, c := range current {
		if !prev[c.Key()] {
			added = append(added, c)
		}
	}

	for _, c := range previous {
		if !cur[c.Key()] {
			resolved = append(resolved, c)
		}
	}

	return added, resolved
}

// series summarises history plus current, oldest first. The oldest entry is
// compared with before when it is known and with zero otherwise.
func series(before *m.ScanSnapshot, history []m.ScanSnapshot, current m.ScanSnapshot) []m.SnapshotSummary {
	entries := append(append([]m.ScanSnapshot{}, history...), current)
	out := make([]m.SnapshotSummary, 0, len(entries))

	prevTotal := 0
	if before != nil {
		prevTotal = before.TotalFindings
	}

	for _, s := range entries {
		out = append(out, m.SnapshotSummary{
			Timestamp: s.Timestamp,
			Total:     s.TotalFindings,
			Delta:     s.TotalFindings - prevTotal,
		})
		prevTotal = s.TotalFindings
	}

	return out
}
