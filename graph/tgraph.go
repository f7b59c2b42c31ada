package graph

import (
	"sync/atomic"
)

// TGraph stores each edge in both directions: gout holds (u, v) keyed by
// u, gin holds (v, u) keyed by v, so both in- and out-neighborhoods are
// source-indexed lookups.
type TGraph[V VertexID, W any] struct {
	gin  *Graph[V, W]
	gout *Graph[V, W]

	edgeCount       atomic.Uint64
	dispatchThreads int
}

func NewTGraph[V VertexID, W any](c Config, ordering Ordering) *TGraph[V, W] {
	return &TGraph[V, W]{
		gin:             NewGraph[V, W](c, ordering, 0),
		gout:            NewGraph[V, W](c, ordering, 1),
		dispatchThreads: c.DispatchThreads,
	}
}

func (t *TGraph[V, W]) AddEdge(e Edge[V, W]) {
	t.AddEdgeWithWriter(e, 0)
	t.edgeCount.Add(1)
}

func (t *TGraph[V, W]) AddEdgeWithWriter(e Edge[V, W], writer int) {
	t.gin.AddEdgeWithWriter(e.Reverse(), writer)
	t.gout.AddEdgeWithWriter(e, writer)
}

// AddEdgeBatch fans the batch out over the dispatcher workers; each worker
// writes to its own sub-buffer in both graphs.
func (t *TGraph[V, W]) AddEdgeBatch(edges []Edge[V, W]) {
	t.edgeCount.Add(uint64(len(edges)))
	parallelForDynamic(len(edges), t.dispatchThreads, func(worker, lo, hi int) {
		for i := lo; i < hi; i++ {
			t.gin.AddEdgeWithWriter(edges[i].Reverse(), worker)
			t.gout.AddEdgeWithWriter(edges[i], worker)
		}
	})
}

func (t *TGraph[V, W]) Collect() {
	t.gin.Collect()
	t.gout.Collect()
}

func (t *TGraph[V, W]) FreezeForRead() {
	t.gin.Collect()
	t.gout.Collect()
	t.gin.FreezeForReadAsync()
	t.gout.FreezeForReadAsync()
	t.gin.WaitFrozen()
	t.gout.WaitFrozen()
}

func (t *TGraph[V, W]) UnfreezeForWrite() {
	t.gin.UnfreezeForWrite()
	t.gout.UnfreezeForWrite()
}

func (t *TGraph[V, W]) BuildBitmapParallel() {
	t.gin.BuildBitmapParallel()
	t.gout.BuildBitmapParallel()
}

func (t *TGraph[V, W]) Close() {
	t.gin.Close()
	t.gout.Close()
}

func (t *TGraph[V, W]) VertexCount() uint64 {
	return t.gin.VertexCount()
}

func (t *TGraph[V, W]) EdgeCount() uint64 {
	return t.edgeCount.Load()
}

func (t *TGraph[V, W]) TotalSleepMillis() uint64 {
	return t.gin.TotalSleepMillis() + t.gout.TotalSleepMillis()
}

// InView and OutView expose the per-direction query surface.
func (t *TGraph[V, W]) InView() *Graph[V, W]  { return t.gin }
func (t *TGraph[V, W]) OutView() *Graph[V, W] { return t.gout }

func (t *TGraph[V, W]) GetDegreeIn(v V) uint64  { return t.gin.GetDegree(v) }
func (t *TGraph[V, W]) GetDegreeOut(v V) uint64 { return t.gout.GetDegree(v) }

func (t *TGraph[V, W]) IterateNeighborsIn(v V, fn NeighborFunc[V]) {
	t.gin.IterateNeighbors(v, fn)
}

func (t *TGraph[V, W]) IterateNeighborsOut(v V, fn NeighborFunc[V]) {
	t.gout.IterateNeighbors(v, fn)
}

func (t *TGraph[V, W]) IterateNeighborsInRange(v1, v2 V, fn RangeFunc[V]) {
	t.gin.IterateNeighborsRange(v1, v2, fn)
}

func (t *TGraph[V, W]) IterateNeighborsOutRange(v1, v2 V, fn RangeFunc[V]) {
	t.gout.IterateNeighborsRange(v1, v2, fn)
}

func (t *TGraph[V, W]) IterateNeighborsInRangeInLevel(v1, v2 V, level int, fn RangeOpFunc[V]) {
	t.gin.IterateNeighborsRangeInLevel(v1, v2, level, fn)
}

func (t *TGraph[V, W]) IterateNeighborsOutRangeInLevel(v1, v2 V, level int, fn RangeOpFunc[V]) {
	t.gout.IterateNeighborsRangeInLevel(v1, v2, level, fn)
}

func (t *TGraph[V, W]) SampleNeighborsInRange(v1, v2 V, sampleCount int, fn SampleFunc[V]) {
	t.gin.SampleNeighborsRange(v1, v2, sampleCount, fn)
}

func (t *TGraph[V, W]) SampleNeighborsOutRange(v1, v2 V, sampleCount int, fn SampleFunc[V]) {
	t.gout.SampleNeighborsRange(v1, v2, sampleCount, fn)
}

func (t *TGraph[V, W]) SampleNeighborsInRangeDensityAware(v1, v2 V, sampleCount int, fn SampleFunc[V]) {
	t.gin.SampleNeighborsRangeDensityAware(v1, v2, sampleCount, fn)
}

func (t *TGraph[V, W]) SampleNeighborsOutRangeDensityAware(v1, v2 V, sampleCount int, fn SampleFunc[V]) {
	t.gout.SampleNeighborsRangeDensityAware(v1, v2, sampleCount, fn)
}
