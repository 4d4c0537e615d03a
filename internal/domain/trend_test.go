package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patchwatch.dev/pkg/patchwatch/internal/adapter"
	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// memStore is a TrendStore kept in a slice.
type memStore struct {
	entries   []m.ScanSnapshot
	latestErr error
	appendErr error
}

func (s *memStore) Latest(_ context.Context, n int) ([]m.ScanSnapshot, error) {
	if s.latestErr != nil {
		return nil, s.latestErr
	}

	start := max(len(s.entries)-n, 0)

	return append([]m.ScanSnapshot(nil), s.entries[start:]...), nil
}

func (s *memStore) Append(_ context.Context, snapshot m.ScanSnapshot) error {
	if s.appendErr != nil {
		return s.appendErr
	}

	if n := len(s.entries); n > 0 && !snapshot.Timestamp.After(s.entries[n-1].Timestamp) {
		return m.ErrNonMonotonicTimestamp
	}

	s.entries = append(s.entries, snapshot)

	return nil
}

func (s *memStore) Close() error { return nil }

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// snapshotAt builds a snapshot whose findings all count as policy findings.
func snapshotAt(ts time.Time, counts map[m.MutationCategory]int, modules map[string]int, cycles ...m.Cycle) m.ScanSnapshot {
	all := m.NewCategoryCounts()
	policy := m.NewCategoryCounts()

	for c, n := range counts {
		all[c] = n
		policy[c] = n
	}

	if cycles == nil {
		cycles = []m.Cycle{}
	}

	return m.ScanSnapshot{
		Timestamp:        ts,
		TotalFindings:    all.Total(),
		AllCounts:        all,
		PolicyCounts:     policy,
		FindingsByModule: modules,
		ImportBases:      map[string]int{},
		Cycles:           cycles,
	}
}

func deltaOf(t *testing.T, deltas []m.CategoryDelta, c m.MutationCategory) m.CategoryDelta {
	t.Helper()

	for _, d := range deltas {
		if d.Category == c {
			return d
		}
	}

	t.Fatalf("no delta for %s", c)

	return m.CategoryDelta{}
}

func TestTrendEngine_FirstRun(t *testing.T) {
	store := &memStore{}
	engine := NewTrendEngine(store, TrendOptions{})

	current := snapshotAt(t0, map[m.MutationCategory]int{m.GlobalEnvMutation: 2}, map[string]int{"agents": 2})

	out, err := engine.Record(context.Background(), current)
	require.NoError(t, err)

	report := out.Report
	assert.False(t, report.HasPrevious)
	assert.Equal(t, 2, report.TotalDelta)
	assert.Equal(t, 2, report.PolicyTotalDelta)
	assert.Len(t, report.Categories, len(m.AllCategories()))
	assert.Equal(t, []m.SnapshotSummary{{Timestamp: t0, Total: 2, Delta: 2}}, report.Series)
	assert.Empty(t, report.CyclesAdded)
	assert.Empty(t, report.CyclesResolved)
	assert.Empty(t, out.Warnings)
	require.Len(t, store.entries, 1)
}

func TestTrendEngine_Deltas(t *testing.T) {
	store := &memStore{entries: []m.ScanSnapshot{
		snapshotAt(t0, map[m.MutationCategory]int{m.GlobalEnvMutation: 3, m.SysModulesAssignment: 1}, map[string]int{"agents": 3, "api": 1}),
	}}
	engine := NewTrendEngine(store, TrendOptions{})

	current := snapshotAt(t0.Add(time.Hour),
		map[m.MutationCategory]int{m.GlobalEnvMutation: 4, m.SysModulesAssignment: 1},
		map[string]int{"agents": 3, "api": 2})

	out, err := engine.Record(context.Background(), current)
	require.NoError(t, err)

	report := out.Report
	assert.True(t, report.HasPrevious)
	assert.Equal(t, t0, report.PreviousAt)
	assert.Equal(t, 1, report.TotalDelta)

	env := deltaOf(t, report.Categories, m.GlobalEnvMutation)
	assert.Equal(t, m.CategoryDelta{
		Category: m.GlobalEnvMutation, Previous: 3, Current: 4, Delta: 1,
		PolicyPrevious: 3, PolicyCurrent: 4, PolicyDelta: 1,
	}, env)
	assert.Equal(t, 0, deltaOf(t, report.Categories, m.SysModulesAssignment).Delta)

	assert.Equal(t, []m.Mover{{Dimension: m.DimensionModule, Key: "api", Previous: 1, Current: 2, Delta: 1}}, report.TopMovers)

	assert.Equal(t, []m.SnapshotSummary{
		{Timestamp: t0, Total: 4, Delta: 4},
		{Timestamp: t0.Add(time.Hour), Total: 5, Delta: 1},
	}, report.Series)
}

func TestTrendEngine_Idempotent(t *testing.T) {
	store := &memStore{}
	engine := NewTrendEngine(store, TrendOptions{})
	counts := map[m.MutationCategory]int{m.BuiltinsMutation: 1}

	_, err := engine.Record(context.Background(), snapshotAt(t0, counts, nil))
	require.NoError(t, err)

	out, err := engine.Record(context.Background(), snapshotAt(t0.Add(time.Minute), counts, nil))
	require.NoError(t, err)

	assert.Equal(t, 0, out.Report.TotalDelta)
	assert.Equal(t, 0, out.Report.PolicyTotalDelta)
	for _, d := range out.Report.Categories {
		assert.Zero(t, d.Delta, d.Category)
	}
	assert.Empty(t, out.Report.TopMovers)
}

func TestTrendEngine_TimestampBump(t *testing.T) {
	store := &memStore{entries: []m.ScanSnapshot{snapshotAt(t0, nil, nil)}}
	engine := NewTrendEngine(store, TrendOptions{})

	out, err := engine.Record(context.Background(), snapshotAt(t0.Add(-time.Hour), nil, nil))
	require.NoError(t, err)

	assert.Equal(t, t0.Add(time.Nanosecond), out.Snapshot.Timestamp)
	require.Len(t, store.entries, 2)
	assert.Equal(t, t0.Add(time.Nanosecond), store.entries[1].Timestamp)
}

func TestTrendEngine_DryRun(t *testing.T) {
	store := &memStore{entries: []m.ScanSnapshot{snapshotAt(t0, nil, nil)}}
	engine := NewTrendEngine(store, TrendOptions{DryRun: true})

	out, err := engine.Record(context.Background(), snapshotAt(t0.Add(time.Hour), map[m.MutationCategory]int{m.GlobalEnvMutation: 1}, nil))
	require.NoError(t, err)

	assert.Equal(t, 1, out.Report.TotalDelta)
	assert.Len(t, store.entries, 1)
}

func TestTrendEngine_StoreErrors(t *testing.T) {
	t.Run("unreadable history degrades to a warning", func(t *testing.T) {
		store := &memStore{latestErr: errors.New("corrupt value log")}
		engine := NewTrendEngine(store, TrendOptions{})

		out, err := engine.Record(context.Background(), snapshotAt(t0, map[m.MutationCategory]int{m.GlobalEnvMutation: 1}, nil))
		require.NoError(t, err)

		assert.False(t, out.Report.HasPrevious)
		assert.Equal(t, 1, out.Report.TotalDelta)
		require.Len(t, out.Warnings, 1)
		assert.Equal(t, m.WarnTrendStore, out.Warnings[0].Kind)
	})

	t.Run("failed append is fatal", func(t *testing.T) {
		store := &memStore{appendErr: errors.New("disk full")}
		engine := NewTrendEngine(store, TrendOptions{})

		_, err := engine.Record(context.Background(), snapshotAt(t0, nil, nil))
		require.Error(t, err)
	})
}

func TestTrendEngine_Window(t *testing.T) {
	store := &memStore{}
	for i, total := range []int{1, 2, 4, 7} {
		store.entries = append(store.entries,
			snapshotAt(t0.Add(time.Duration(i)*time.Hour), map[m.MutationCategory]int{m.GlobalEnvMutation: total}, nil))
	}

	engine := NewTrendEngine(store, TrendOptions{Window: 2})

	out, err := engine.Record(context.Background(), snapshotAt(t0.Add(4*time.Hour), map[m.MutationCategory]int{m.GlobalEnvMutation: 8}, nil))
	require.NoError(t, err)

	report := out.Report
	assert.Equal(t, 2, report.WindowSize)
	assert.Equal(t, 1, report.TotalDelta)
	assert.Equal(t, 4, report.WindowTotalDelta)
	assert.Equal(t, 4, deltaOf(t, report.WindowCategories, m.GlobalEnvMutation).Delta)

	assert.Equal(t, []m.SnapshotSummary{
		{Timestamp: t0.Add(2 * time.Hour), Total: 4, Delta: 2},
		{Timestamp: t0.Add(3 * time.Hour), Total: 7, Delta: 3},
		{Timestamp: t0.Add(4 * time.Hour), Total: 8, Delta: 1},
	}, report.Series)
}

func TestTrendEngine_CyclesAndMovers(t *testing.T) {
	kept := m.Cycle{"agents", "api", "agents"}
	gone := m.Cycle{"core", "utils", "core"}
	fresh := m.Cycle{"api", "scripts", "api"}

	previous := snapshotAt(t0, nil, map[string]int{"a": 1, "b": 5}, kept, gone)
	previous.ImportBases = map[string]int{"requests": 2}

	current := snapshotAt(t0.Add(time.Hour), nil, map[string]int{"a": 3, "b": 4, "c": 1}, kept, fresh)
	current.ImportBases = map[string]int{"requests": 4, "yaml": 1}

	engine := NewTrendEngine(&memStore{entries: []m.ScanSnapshot{previous}}, TrendOptions{TopMovers: 3})

	out, err := engine.Record(context.Background(), current)
	require.NoError(t, err)

	assert.Equal(t, []m.Cycle{fresh}, out.Report.CyclesAdded)
	assert.Equal(t, []m.Cycle{gone}, out.Report.CyclesResolved)

	assert.Equal(t, []m.Mover{
		{Dimension: m.DimensionModule, Key: "a", Previous: 1, Current: 3, Delta: 2},
		{Dimension: m.DimensionImportBase, Key: "requests", Previous: 2, Current: 4, Delta: 2},
		{Dimension: m.DimensionModule, Key: "c", Previous: 0, Current: 1, Delta: 1},
	}, out.Report.TopMovers)
}

func TestTrendEngine_History(t *testing.T) {
	t.Run("empty series", func(t *testing.T) {
		report, warnings, err := NewTrendEngine(&memStore{}, TrendOptions{}).History(context.Background())
		require.NoError(t, err)

		assert.Empty(t, warnings)
		assert.Empty(t, report.Series)
		assert.False(t, report.HasPrevious)
		assert.Len(t, report.Categories, len(m.AllCategories()))
	})

	t.Run("newest entry is current", func(t *testing.T) {
		store := &memStore{entries: []m.ScanSnapshot{
			snapshotAt(t0, map[m.MutationCategory]int{m.GlobalEnvMutation: 2}, nil),
			snapshotAt(t0.Add(time.Hour), map[m.MutationCategory]int{m.GlobalEnvMutation: 5}, nil),
		}}

		report, _, err := NewTrendEngine(store, TrendOptions{}).History(context.Background())
		require.NoError(t, err)

		assert.True(t, report.HasPrevious)
		assert.Equal(t, 3, report.TotalDelta)
		assert.Len(t, report.Series, 2)
		assert.Len(t, store.entries, 2)
	})
}

func TestTrendEngine_BadgerStore(t *testing.T) {
	store, err := adapter.OpenBadgerTrendStore(adapter.TrendStoreOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	engine := NewTrendEngine(store, TrendOptions{})
	counts := map[m.MutationCategory]int{m.ImportTimeSideEffect: 2}

	_, err = engine.Record(context.Background(), snapshotAt(t0, counts, map[string]int{"scripts": 2}))
	require.NoError(t, err)

	counts[m.ImportTimeSideEffect] = 3
	out, err := engine.Record(context.Background(), snapshotAt(t0.Add(time.Hour), counts, map[string]int{"scripts": 3}))
	require.NoError(t, err)

	assert.True(t, out.Report.HasPrevious)
	assert.Equal(t, 1, out.Report.TotalDelta)
	assert.Len(t, out.Report.Series, 2)

	stored, err := store.Latest(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}
