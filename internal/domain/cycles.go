package domain

import (
	"context"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// DefaultCycleLimit is the number of cycles reported when no limit is configured.
const DefaultCycleLimit = 10

// DefaultMaxCycleSteps bounds the edges explored by FindCycles.
const DefaultMaxCycleSteps = 1_000_000

// CycleSearch is the outcome of FindCycles.
type CycleSearch struct {
	Cycles []m.Cycle
	// Truncated is set when the step budget ran out before the search ended.
	Truncated bool
	Steps     int
}

// FindCycles enumerates simple import cycles. Every cycle is reported once,
// starting and ending at its lexicographically smallest module. The search
// stops after limit cycles (limit <= 0 means no limit) or after maxSteps
// edge visits (maxSteps <= 0 means DefaultMaxCycleSteps).
func FindCycles(ctx context.Context, g *ImportGraph, limit, maxSteps int) (CycleSearch, error) {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxCycleSteps
	}

	f := &cycleFinder{
		g:        g,
		limit:    limit,
		maxSteps: maxSteps,
		onPath:   make([]bool, g.Len()),
		result:   CycleSearch{Cycles: []m.Cycle{}},
	}

	for _, start := range g.Nodes() {
		if err := ctx.Err(); err != nil {
			return f.result, err
		}

		if f.done() {
			break
		}

		f.start = start
		f.path = f.path[:0]
		f.visit(start)
	}

	return f.result, nil
}

type cycleFinder struct {
	g        *ImportGraph
	limit    int
	maxSteps int
	start    int
	path     []int
	onPath   []bool
	result   CycleSearch
}

func (f *cycleFinder) done() bool {
	return f.result.Truncated || (f.limit > 0 && len(f.result.Cycles) >= f.limit)
}

func (f *cycleFinder) visit(id int) {
	f.path = append(f.path, id)
	f.onPath[id] = true

	defer func() {
		f.onPath[id] = false
		f.path = f.path[:len(f.path)-1]
	}()

	startName := f.g.Name(f.start)

	for _, next := range f.g.Successors(id) {
		if f.done() {
			return
		}

		f.result.Steps++
		if f.result.Steps > f.maxSteps {
			f.result.Truncated = true
			return
		}

		if next == f.start {
			f.record()
			continue
		}

		// Cycles through a smaller node are found from that node instead.
		if f.onPath[next] || f.g.Name(next) < startName {
			continue
		}

		f.visit(next)
	}
}

func (f *cycleFinder) record() {
	cycle := make(m.Cycle, 0, len(f.path)+1)
	for _, id := range f.path {
		cycle = append(cycle, f.g.Name(id))
	}

	cycle = append(cycle, f.g.Name(f.start))
	f.result.Cycles = append(f.result.Cycles, cycle)
}
