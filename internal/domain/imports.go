package domain

import (
	"log/slog"
)

// GraphInput is what the graph builder needs from a scanned file.
type GraphInput struct {
	TopLevel string
	Imports  []ImportRef
}

// BuildGraph folds the import references of every file into an import graph
// over the given top-level modules. Relative imports stay inside the
// importing module, and imports of names outside modules are external; both
// are left out of the graph. It also returns the number of import
// statements per imported top-level name, internal and external.
func BuildGraph(modules []string, files []GraphInput) (*ImportGraph, map[string]int) {
	g := NewImportGraph(modules...)
	internal := make(map[string]bool, len(modules))

	for _, name := range modules {
		internal[name] = true
	}

	bases := map[string]int{}
	external := 0

	for _, file := range files {
		for _, ref := range file.Imports {
			if ref.Relative {
				continue
			}

			bases[ref.Base]++

			if !internal[ref.Base] {
				external++
				continue
			}

			g.AddEdge(file.TopLevel, ref.Base)
		}
	}

	slog.Debug("Built import graph", "modules", g.Len(), "edges", len(g.counts), "external_imports", external)

	return g.Freeze(), bases
}

// TopLevels returns the distinct top-level module names of files, in first
// seen order.
func TopLevels(files []GraphInput) []string {
	seen := map[string]bool{}

	var out []string

	for _, f := range files {
		if f.TopLevel == "" || seen[f.TopLevel] {
			continue
		}

		seen[f.TopLevel] = true
		out = append(out, f.TopLevel)
	}

	return out
}
