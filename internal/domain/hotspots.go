package domain

import (
	"sort"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// DefaultTopK is the number of hotspots kept per direction.
const DefaultTopK = 6

// RankHotspots ranks modules by fan-in (distinct importers) and fan-out
// (distinct imports). Ties resolve by module name; modules with degree zero
// are left out.
func RankHotspots(g *ImportGraph, k int) (fanIn, fanOut []m.Hotspot) {
	if k <= 0 {
		k = DefaultTopK
	}

	fanIn = make([]m.Hotspot, 0, g.Len())
	fanOut = make([]m.Hotspot, 0, g.Len())

	for _, id := range g.Nodes() {
		if preds := g.Predecessors(id); len(preds) > 0 {
			total := 0
			for _, p := range preds {
				total += g.Count(p, id)
			}

			fanIn = append(fanIn, m.Hotspot{Module: g.Name(id), Degree: len(preds), Imports: total})
		}

		if succs := g.Successors(id); len(succs) > 0 {
			total := 0
			for _, s := range succs {
				total += g.Count(id, s)
			}

			fanOut = append(fanOut, m.Hotspot{Module: g.Name(id), Degree: len(succs), Imports: total})
		}
	}

	return topHotspots(fanIn, k), topHotspots(fanOut, k)
}

func topHotspots(spots []m.Hotspot, k int) []m.Hotspot {
	sort.SliceStable(spots, func(i, j int) bool {
		if spots[i].Degree != spots[j].Degree {
			return spots[i].Degree > spots[j].Degree
		}

		return spots[i].Module < spots[j].Module
	})

	if len(spots) > k {
		spots = spots[:k]
	}

	return spots
}
