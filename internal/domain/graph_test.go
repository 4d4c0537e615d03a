package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

func graphOf(nodes []string, edges ...[2]string) *ImportGraph {
	g := NewImportGraph(nodes...)
	for _, e := range edges {
		g.AddEdge(e[0], e[1])
	}

	return g.Freeze()
}

func TestImportGraph_AddEdge(t *testing.T) {
	g := NewImportGraph("a", "b")
	g.AddEdge("a", "b")
	g.AddEdge("a", "b")
	g.AddEdge("a", "a")
	g.AddEdge("a", "")
	g.AddEdge("b", "c")
	g.Freeze()

	assert.Equal(t, 3, g.Len())

	c, ok := g.Lookup("c")
	require.True(t, ok, "unknown edge targets are created on demand")

	assert.Equal(t, []m.ImportEdge{
		{From: "a", To: "b", Count: 2},
		{From: "b", To: "c", Count: 1},
	}, g.Edges())

	assert.Empty(t, g.Successors(c))

	assert.Panics(t, func() { g.AddEdge("b", "a") })
}

func TestImportGraph_SortedAdjacency(t *testing.T) {
	g := graphOf([]string{"z", "m", "a"}, [2]string{"z", "m"}, [2]string{"z", "a"})

	z, _ := g.Lookup("z")

	var names []string
	for _, id := range g.Successors(z) {
		names = append(names, g.Name(id))
	}

	assert.Equal(t, []string{"a", "m"}, names)

	var nodes []string
	for _, id := range g.Nodes() {
		nodes = append(nodes, g.Name(id))
	}

	assert.Equal(t, []string{"a", "m", "z"}, nodes)
}

func TestBuildGraph(t *testing.T) {
	files := []GraphInput{
		{TopLevel: "agents", Imports: []ImportRef{
			{Module: "api.client", Base: "api"},
			{Module: "api", Base: "api"},
			{Module: "os", Base: "os"},
			{Module: ".sibling", Relative: true},
			{Module: "agents.core", Base: "agents"},
		}},
		{TopLevel: "api", Imports: []ImportRef{
			{Module: "requests", Base: "requests"},
		}},
		{TopLevel: "scripts"},
	}

	modules := TopLevels(files)
	assert.Equal(t, []string{"agents", "api", "scripts"}, modules)

	g, bases := BuildGraph(modules, files)

	assert.Equal(t, []m.ImportEdge{{From: "agents", To: "api", Count: 2}}, g.Edges())
	assert.Equal(t, map[string]int{"api": 2, "os": 1, "agents": 1, "requests": 1}, bases)
	assert.Equal(t, 3, g.Len())
}

func TestFindCycles(t *testing.T) {
	tests := []struct {
		name      string
		nodes     []string
		edges     [][2]string
		limit     int
		maxSteps  int
		want      []m.Cycle
		truncated bool
	}{
		{
			name:  "three node ring",
			nodes: []string{"A", "B", "C"},
			edges: [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}},
			want:  []m.Cycle{{"A", "B", "C", "A"}},
		},
		{
			name:  "rotation starts at the smallest module",
			nodes: []string{"agents", "api", "scripts"},
			edges: [][2]string{{"scripts", "agents"}, {"agents", "api"}, {"api", "scripts"}},
			want:  []m.Cycle{{"agents", "api", "scripts", "agents"}},
		},
		{
			name:  "acyclic",
			nodes: []string{"a", "b", "c"},
			edges: [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}},
			want:  []m.Cycle{},
		},
		{
			name:  "overlapping cycles",
			nodes: []string{"a", "b", "c"},
			edges: [][2]string{{"a", "b"}, {"b", "a"}, {"b", "c"}, {"c", "b"}},
			want:  []m.Cycle{{"a", "b", "a"}, {"b", "c", "b"}},
		},
		{
			name:  "limit",
			nodes: []string{"a", "b", "c"},
			edges: [][2]string{{"a", "b"}, {"b", "a"}, {"b", "c"}, {"c", "b"}},
			limit: 1,
			want:  []m.Cycle{{"a", "b", "a"}},
		},
		{
			name:      "step budget",
			nodes:     []string{"a", "b", "c"},
			edges:     [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}},
			maxSteps:  2,
			want:      []m.Cycle{},
			truncated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := graphOf(tt.nodes, tt.edges...)

			search, err := FindCycles(context.Background(), g, tt.limit, tt.maxSteps)
			require.NoError(t, err)

			assert.Equal(t, tt.want, search.Cycles)
			assert.Equal(t, tt.truncated, search.Truncated)
		})
	}
}

func TestFindCycles_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FindCycles(ctx, graphOf([]string{"a", "b"}, [2]string{"a", "b"}, [2]string{"b", "a"}), 0, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRankHotspots(t *testing.T) {
	g := NewImportGraph("a", "b", "c", "d", "lonely")
	g.AddEdge("a", "c")
	g.AddEdge("a", "c")
	g.AddEdge("b", "c")
	g.AddEdge("a", "d")
	g.AddEdge("b", "d")
	g.AddEdge("c", "d")
	g.Freeze()

	fanIn, fanOut := RankHotspots(g, 6)

	assert.Equal(t, []m.Hotspot{
		{Module: "d", Degree: 3, Imports: 3},
		{Module: "c", Degree: 2, Imports: 3},
	}, fanIn)

	assert.Equal(t, []m.Hotspot{
		{Module: "a", Degree: 2, Imports: 3},
		{Module: "b", Degree: 2, Imports: 2},
		{Module: "c", Degree: 1, Imports: 1},
	}, fanOut)

	fanIn, fanOut = RankHotspots(g, 1)
	assert.Equal(t, []m.Hotspot{{Module: "d", Degree: 3, Imports: 3}}, fanIn)
	assert.Equal(t, []m.Hotspot{{Module: "a", Degree: 2, Imports: 3}}, fanOut)
}
