package graph

import (
	"math/rand"
	"slices"
	"testing"
)

// The engine is generic over the vertex width; drive the 32-bit
// instantiation through the same surface as the 64-bit tests.
func TestGraph32BitVertices(t *testing.T) {
	g := NewGraph[uint32, Unweighted](testGraphConfig(16, 64, 2, 8, 2), OrderFrom, 0)
	defer g.Close()

	want := map[uint32][]uint32{}
	for i := 0; i < 60; i++ {
		from := uint32(rand.Intn(16))
		to := uint32(rand.Intn(16))
		g.AddEdge(Edge[uint32, Unweighted]{From: from, To: to})
		want[from] = append(want[from], to)
	}
	g.FreezeForRead()
	defer g.UnfreezeForWrite()

	for v := uint32(0); v < 16; v++ {
		var got []uint32
		g.IterateNeighbors(v, func(to uint32) bool {
			got = append(got, to)
			return true
		})
		slices.Sort(got)
		wantV := append([]uint32(nil), want[v]...)
		slices.Sort(wantV)
		if !slices.Equal(got, wantV) {
			t.Fatalf("neighbors of %d mismatch", v)
		}
		if d := g.GetDegree(v); d != uint64(len(wantV)) {
			t.Fatalf("degree of %d = %d, want %d", v, d, len(wantV))
		}
	}
}

func TestIterateRangeInLevelOps(t *testing.T) {
	g := NewGraph[uint64, Unweighted](testGraphConfig(8, 64, 8, 8, 1), OrderFrom, 0)
	defer g.Close()

	// One fully sorted run: two edges per vertex.
	for v := uint64(0); v < 8; v++ {
		g.AddEdge(E{From: v, To: v * 2})
		g.AddEdge(E{From: v, To: v*2 + 1})
	}
	g.FreezeForRead()
	defer g.UnfreezeForWrite()

	p := g.part(0)
	if p.runs.Len() != 1 {
		t.Fatalf("runs = %d, want 1", p.runs.Len())
	}

	// Break stops the level walk immediately.
	seen := 0
	p.IterateNeighborsRangeInLevel(0, 8, 0, func(_, _ uint64) IterateOp {
		seen++
		if seen == 3 {
			return Break
		}
		return Continue
	})
	if seen != 3 {
		t.Fatalf("break after %d edges", seen)
	}

	// SkipToNextVertex yields exactly one edge per source.
	var firsts []uint64
	p.IterateNeighborsRangeInLevel(0, 8, 0, func(from, _ uint64) IterateOp {
		firsts = append(firsts, from)
		return SkipToNextVertex
	})
	if !slices.Equal(firsts, []uint64{0, 1, 2, 3, 4, 5, 6, 7}) {
		t.Fatalf("skip walk = %v", firsts)
	}

	// A level beyond the hierarchy is empty.
	p.IterateNeighborsRangeInLevel(0, 8, 5, func(_, _ uint64) IterateOp {
		t.Fatal("edge from a nonexistent level")
		return Break
	})
}

// Degree through a bucketed (non per-vertex) index needs the secondary
// binary search.
func TestGetDegreeBucketedRun(t *testing.T) {
	c := testPartitionConfig(1024, 8, 1)
	c.IndexRatio = 8
	p := newPartition[uint64, Unweighted](0, 0, 64, 0, OrderFrom, c)

	// First run: 8 edges. Second run: 64 edges whose index has
	// 64/8 = 8 buckets over 64 vertices.
	for i := 0; i < 8; i++ {
		p.AddEdge(Edge[uint64, Unweighted]{From: 7, To: uint64(i)}, 0)
	}
	if !p.SortTick() {
		t.Fatal("first tick did no work")
	}
	for i := 0; i < 64; i++ {
		p.AddEdge(Edge[uint64, Unweighted]{From: uint64(i), To: 0}, 0)
	}
	for p.SortTick() {
	}
	if p.runs.Len() < 2 {
		t.Fatalf("runs = %d, want >= 2", p.runs.Len())
	}
	s, e := p.runs.At(1)
	if bi := p.indexFor(s, e); bi.key.perVertex() {
		t.Fatal("second run should use a bucketed index")
	}

	if d := p.GetDegree(7); d != 9 {
		t.Fatalf("degree of 7 = %d, want 9", d)
	}
	if d := p.GetDegree(8); d != 1 {
		t.Fatalf("degree of 8 = %d, want 1", d)
	}
}
