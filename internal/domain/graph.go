package domain

import (
	"log/slog"
	"sort"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// ImportGraph is a directed graph of top-level modules stored as an arena:
// nodes are indices into names and edges are index pairs. It is mutable
// while built and read-only once Freeze has been called.
type ImportGraph struct {
	names  []string
	index  map[string]int
	out    [][]int
	in     [][]int
	counts map[[2]int]int
	frozen bool
}

// NewImportGraph creates an empty graph with the given nodes.
func NewImportGraph(nodes ...string) *ImportGraph {
	g := &ImportGraph{
		index:  map[string]int{},
		counts: map[[2]int]int{},
	}

	for _, name := range nodes {
		g.addNode(name)
	}

	return g
}

func (g *ImportGraph) addNode(name string) int {
	if id, ok := g.index[name]; ok {
		return id
	}

	id := len(g.names)
	g.names = append(g.names, name)
	g.index[name] = id
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)

	return id
}

// node resolves a name, creating it when an edge references an unknown node.
func (g *ImportGraph) node(name string) int {
	if id, ok := g.index[name]; ok {
		return id
	}

	slog.Debug("Graph inconsistency: creating missing node", "module", name)

	return g.addNode(name)
}

// AddEdge records one import of to by from. Self edges are ignored.
func (g *ImportGraph) AddEdge(from, to string) {
	if g.frozen {
		panic("domain: AddEdge on frozen import graph")
	}

	if from == "" || to == "" || from == to {
		return
	}

	a, b := g.node(from), g.node(to)
	key := [2]int{a, b}

	if g.counts[key] == 0 {
		g.out[a] = append(g.out[a], b)
		g.in[b] = append(g.in[b], a)
	}

	g.counts[key]++
}

// Freeze sorts every adjacency list by node name and makes the graph
// read-only. It is safe to share a frozen graph between goroutines.
func (g *ImportGraph) Freeze() *ImportGraph {
	byName := func(ids []int) {
		sort.Slice(ids, func(i, j int) bool { return g.names[ids[i]] < g.names[ids[j]] })
	}

	for i := range g.out {
		byName(g.out[i])
		byName(g.in[i])
	}

	g.frozen = true

	return g
}

// Len returns the number of nodes.
func (g *ImportGraph) Len() int {
	return len(g.names)
}

// Name returns the module name of node id.
func (g *ImportGraph) Name(id int) string {
	return g.names[id]
}

// Lookup returns the node id of a module name.
func (g *ImportGraph) Lookup(name string) (int, bool) {
	id, ok := g.index[name]
	return id, ok
}

// Successors returns the modules imported by node id, sorted by name.
func (g *ImportGraph) Successors(id int) []int {
	return g.out[id]
}

// Predecessors returns the modules importing node id, sorted by name.
func (g *ImportGraph) Predecessors(id int) []int {
	return g.in[id]
}

// Count returns how many import statements were folded into an edge.
func (g *ImportGraph) Count(from, to int) int {
	return g.counts[[2]int{from, to}]
}

// Nodes returns every node id ordered by module name.
func (g *ImportGraph) Nodes() []int {
	ids := make([]int, len(g.names))
	for i := range ids {
		ids[i] = i
	}

	sort.Slice(ids, func(i, j int) bool { return g.names[ids[i]] < g.names[ids[j]] })

	return ids
}

// Edges returns every edge ordered by source then target name.
func (g *ImportGraph) Edges() []m.ImportEdge {
	edges := make([]m.ImportEdge, 0, len(g.counts))

	for _, from := range g.Nodes() {
		for _, to := range g.out[from] {
			edges = append(edges, m.ImportEdge{
				From:  g.names[from],
				To:    g.names[to],
				Count: g.counts[[2]int{from, to}],
			})
		}
	}

	return edges
}
