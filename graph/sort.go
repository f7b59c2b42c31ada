package graph

import (
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/dcsrlab/dcsr/utils"
)

// sortEdges sorts one region in place (slices.SortFunc: pdqsort).
func sortEdges[V VertexID, W any](edges []Edge[V, W], cmp func(a, b Edge[V, W]) int) {
	slices.SortFunc(edges, cmp)
}

// mergeSortedRegions merges the adjacent sorted regions delimited by
// bounds (absolute offsets strictly inside (begin, end)) into one sorted
// region [begin, end), stable across regions. The merge streams through a
// reusable scratch buffer; region count is small (the merged runs, the
// stolen chunks and the freshly sorted tail), so a linear minimum scan
// wins over a heap.
func mergeSortedRegions[V VertexID, W any](batch []Edge[V, W], begin uint64, bounds []uint64, end uint64, scratch []Edge[V, W], cmp func(a, b Edge[V, W]) int) {
	if len(bounds) == 0 {
		return
	}

	regions := make([][2]uint64, 0, len(bounds)+1)
	prev := begin
	for _, b := range bounds {
		if b <= prev || b >= end {
			log.Panic().Msg("merge bound " + utils.V(b) + " outside (" + utils.V(prev) + ", " + utils.V(end) + ")")
		}
		regions = append(regions, [2]uint64{prev, b})
		prev = b
	}
	regions = append(regions, [2]uint64{prev, end})

	out := scratch[:0]
	for {
		best := -1
		for i := range regions {
			if regions[i][0] == regions[i][1] {
				continue
			}
			if best < 0 || cmp(batch[regions[i][0]], batch[regions[best][0]]) < 0 {
				best = i
			}
		}
		if best < 0 {
			break
		}
		out = append(out, batch[regions[best][0]])
		regions[best][0]++
	}
	copy(batch[begin:end], out)
}

// checkSorted verifies a region is non-decreasing under cmp.
func checkSorted[V VertexID, W any](edges []Edge[V, W], cmp func(a, b Edge[V, W]) int) {
	for i := 1; i < len(edges); i++ {
		if cmp(edges[i-1], edges[i]) > 0 {
			log.Panic().Msg("region not sorted at offset " + utils.V(i))
		}
	}
}

// checkFromInRange verifies every source vertex falls inside the
// partition's range.
func checkFromInRange[V VertexID, W any](edges []Edge[V, W], vstart, vend uint64) {
	for i := range edges {
		if uint64(edges[i].From) < vstart || uint64(edges[i].From) >= vend {
			log.Panic().Msg("edge source " + utils.V(edges[i].From) + " outside [" + utils.V(vstart) + ", " + utils.V(vend) + ")")
		}
	}
}
