package graph

import (
	"math/rand"
	"slices"
	"testing"
)

// The analytic kernels are read-side clients of the query API; these
// sweeps exercise the surface the way BFS / CC / TC drive it.

func TestKernelBFS(t *testing.T) {
	const n = 64
	g := NewGraph[uint64, Unweighted](testGraphConfig(n, 4096, 8, 16, 2), OrderFrom, 0)
	defer g.Close()

	// A chain with shortcuts: distance of v from 0 is known.
	var edges []E
	for v := uint64(0); v+1 < n; v++ {
		edges = append(edges, E{From: v, To: v + 1})
	}
	for v := uint64(0); v+10 < n; v += 10 {
		edges = append(edges, E{From: v, To: v + 10})
	}
	g.AddEdgeBatch(edges)
	g.FreezeForRead()
	defer g.UnfreezeForWrite()

	dist := make([]int, n)
	for i := range dist {
		dist[i] = -1
	}
	dist[0] = 0
	frontier := []uint64{0}
	for len(frontier) > 0 {
		var next []uint64
		for _, u := range frontier {
			g.IterateNeighbors(u, func(to uint64) bool {
				if dist[to] < 0 {
					dist[to] = dist[u] + 1
					next = append(next, to)
				}
				return true
			})
		}
		frontier = next
	}

	for v := uint64(0); v < n; v++ {
		want := int(v/10) + int(v%10)
		if dist[v] != want {
			t.Fatalf("dist[%d] = %d, want %d", v, dist[v], want)
		}
	}
}

func TestKernelConnectedComponents(t *testing.T) {
	const n = 96
	ug := NewUGraph[uint64, Unweighted](testGraphConfig(n, 1<<14, 8, 32, 2))
	defer ug.Close()

	// Three components: [0,32), [32,64), [64,96), randomly wired inside.
	var edges []E
	for comp := uint64(0); comp < 3; comp++ {
		base := comp * 32
		for v := uint64(1); v < 32; v++ {
			edges = append(edges, E{From: base + v, To: base + uint64(rand.Intn(int(v)))})
		}
	}
	ug.AddEdgeBatch(edges)
	ug.FreezeForRead()
	defer ug.UnfreezeForWrite()

	// Label propagation over the range surface, GAP style: one pass over a
	// sampled bounded neighborhood first, then full sweeps to converge.
	label := make([]uint64, n)
	for v := range label {
		label[v] = uint64(v)
	}
	ug.View().SampleNeighborsRangeDensityAware(0, n, 2, func(from, to uint64, _ int) {
		if label[to] < label[from] {
			label[from] = label[to]
		}
	})
	for changed := true; changed; {
		changed = false
		ug.View().IterateNeighborsRange(0, n, func(from, to uint64) {
			if label[to] < label[from] {
				label[from] = label[to]
				changed = true
			}
			if label[from] < label[to] {
				label[to] = label[from]
				changed = true
			}
		})
	}

	for v := uint64(0); v < n; v++ {
		if label[v] != (v/32)*32 {
			t.Fatalf("label[%d] = %d, want %d", v, label[v], (v/32)*32)
		}
	}
}

func TestKernelTriangleCount(t *testing.T) {
	// K4 plus a pendant vertex: exactly 4 triangles.
	ug := NewUGraph[uint64, Unweighted](testGraphConfig(5, 64, 2, 5, 1))
	defer ug.Close()

	k4 := []E{
		{From: 0, To: 1}, {From: 0, To: 2}, {From: 0, To: 3},
		{From: 1, To: 2}, {From: 1, To: 3}, {From: 2, To: 3},
		{From: 3, To: 4},
	}
	for _, e := range k4 {
		ug.AddEdge(e)
	}
	ug.FreezeForRead()
	defer ug.UnfreezeForWrite()

	neighbors := func(v uint64) []uint64 {
		var out []uint64
		ug.IterateNeighborsInOrder(v, func(to uint64) bool {
			out = append(out, to)
			return true
		})
		return slices.Compact(out)
	}

	common := 0
	for u := uint64(0); u < 5; u++ {
		nu := neighbors(u)
		for _, v := range nu {
			if v <= u {
				continue
			}
			nv := neighbors(v)
			// Streaming intersection of two in-order neighborhoods.
			i, j := 0, 0
			for i < len(nu) && j < len(nv) {
				switch {
				case nu[i] == nv[j]:
					common++
					i++
					j++
				case nu[i] < nv[j]:
					i++
				default:
					j++
				}
			}
		}
	}
	// Each triangle is counted once per unordered adjacent pair.
	if common/3 != 4 {
		t.Fatalf("triangles = %d (common %d), want 4", common/3, common)
	}
}
