package graph

import (
	"math/rand"
	"slices"
	"testing"
)

func testPartitionConfig(bufferSize, sortBatch uint64, writers int) Config {
	c := DefaultConfig()
	c.AutoExtend = false
	c.BindCore = false
	c.BindNuma = false
	c.BufferSize = bufferSize
	c.SortBatchSize = sortBatch
	c.IndexRatio = 2
	c.DispatchThreads = writers
	return c
}

func partitionNeighbors(p *Partition[uint64, Unweighted], v uint64) []uint64 {
	var out []uint64
	p.IterateNeighbors(v, func(to uint64) bool {
		out = append(out, to)
		return true
	})
	slices.Sort(out)
	return out
}

// Push mini-batch sized groups and tick after each, exercising the tiered
// merge policy.
func TestPartitionTieredMerge(t *testing.T) {
	c := testPartitionConfig(64, 4, 1)
	p := newPartition[uint64, Unweighted](0, 0, 16, 0, OrderFrom, c)

	var want []uint64
	for i := 0; i < 12; i++ {
		for j := 0; j < 4; j++ {
			to := uint64(i*4 + j)
			p.AddEdge(Edge[uint64, Unweighted]{From: 0, To: to}, 0)
			want = append(want, to)
		}
		if !p.SortTick() {
			t.Fatalf("tick %d: expected sort work", i)
		}
		if p.runs.Len() > 3 {
			t.Fatalf("tick %d: %d runs, want <= 3", i, p.runs.Len())
		}
	}

	if !p.VisibleSorted() {
		t.Fatal("visible prefix not fully sorted")
	}
	if p.sortedCount != 48 {
		t.Fatalf("sorted = %d, want 48", p.sortedCount)
	}
	got := partitionNeighbors(p, 0)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Fatalf("neighbors of 0 = %v, want %v", got, want)
	}
	if d := p.GetDegree(0); d != 48 {
		t.Fatalf("degree = %d, want 48", d)
	}
}

// Invariant: each run is sorted and its group index brackets every vertex.
func TestPartitionRunInvariants(t *testing.T) {
	const width = 32
	c := testPartitionConfig(4096, 8, 1)
	p := newPartition[uint64, Unweighted](0, 0, width, 0, OrderFrom, c)

	want := map[uint64][]uint64{}
	for i := 0; i < 2000; i++ {
		from := uint64(rand.Intn(width))
		to := uint64(rand.Intn(1000))
		p.AddEdge(Edge[uint64, Unweighted]{From: from, To: to}, 0)
		want[from] = append(want[from], to)
		if i%64 == 0 {
			p.SortTick()
		}
	}
	p.Collect()
	for p.SortTick() {
	}
	if !p.VisibleSorted() {
		t.Fatal("visible prefix not fully sorted")
	}

	for i := 0; i < p.runs.Len(); i++ {
		s, e := p.runs.At(i)
		checkSorted(p.batch[s:e], p.cmp)
		checkFromInRange(p.batch[s:e], 0, width)
	}

	for v := uint64(0); v < width; v++ {
		got := partitionNeighbors(p, v)
		wantV := append([]uint64(nil), want[v]...)
		slices.Sort(wantV)
		if wantV == nil {
			wantV = []uint64{}
		}
		if len(got) == 0 && len(wantV) == 0 {
			continue
		}
		if !slices.Equal(got, wantV) {
			t.Fatalf("neighbors of %d mismatch: got %d, want %d edges", v, len(got), len(wantV))
		}
		if d := p.GetDegree(v); d != uint64(len(wantV)) {
			t.Fatalf("degree of %d = %d, want %d", v, d, len(wantV))
		}
	}
}

// A stolen prefix is merged rather than re-sorted by the owner.
func TestPartitionStealThenTick(t *testing.T) {
	c := testPartitionConfig(8192, 8, 1)
	p := newPartition[uint64, Unweighted](0, 0, 64, 0, OrderFrom, c)

	push := func(n int) {
		for i := 0; i < n; i++ {
			p.AddEdge(Edge[uint64, Unweighted]{From: uint64(rand.Intn(64)), To: uint64(i)}, 0)
		}
	}

	// Closed gate refuses stealers.
	if p.TrySteal() {
		t.Fatal("steal succeeded through a closed gate")
	}

	push(1024)
	p.stealGate.release()
	if !p.TrySteal() {
		t.Fatal("steal failed with an open gate")
	}
	if got := p.stealSortedCount.Load(); got != 1024 {
		t.Fatalf("steal sorted = %d, want 1024", got)
	}

	// A second chunk accumulates its own boundary.
	push(1024)
	if !p.TrySteal() {
		t.Fatal("second steal failed")
	}
	if len(p.stealBounds) != 2 {
		t.Fatalf("steal bounds = %v", p.stealBounds)
	}

	if !p.SortTick() {
		t.Fatal("expected sort work")
	}
	if p.runs.Len() != 1 {
		t.Fatalf("runs = %d, want 1", p.runs.Len())
	}
	s, e := p.runs.Back()
	if s != 0 || e != 2048 {
		t.Fatalf("run = [%d, %d)", s, e)
	}
	checkSorted(p.batch[s:e], p.cmp)
	if len(p.stealBounds) != 0 {
		t.Fatalf("stale steal bounds: %v", p.stealBounds)
	}
}

func TestPartitionBelowBatchNoTick(t *testing.T) {
	c := testPartitionConfig(64, 8, 1)
	p := newPartition[uint64, Unweighted](0, 0, 8, 0, OrderFrom, c)
	for i := 0; i < 7; i++ {
		p.AddEdge(Edge[uint64, Unweighted]{From: 1, To: uint64(i)}, 0)
	}
	if p.SortTick() {
		t.Fatal("tick below one mini-batch")
	}
	// The pushed edges are still reachable through the tail.
	if d := p.GetDegree(1); d != 7 {
		t.Fatalf("degree = %d, want 7", d)
	}
}
