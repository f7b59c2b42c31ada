package graph

import (
	"sync/atomic"
)

// UGraph drives one Graph with both directions of every undirected edge.
// Runs are kept in (from, to) order so triangle counting can stream merged
// neighborhoods.
type UGraph[V VertexID, W any] struct {
	g *Graph[V, W]

	edgeCount       atomic.Uint64
	dispatchThreads int
}

func NewUGraph[V VertexID, W any](c Config) *UGraph[V, W] {
	return &UGraph[V, W]{
		g:               NewGraph[V, W](c, OrderFromTo, 0),
		dispatchThreads: c.DispatchThreads,
	}
}

func (u *UGraph[V, W]) AddEdge(e Edge[V, W]) {
	u.g.AddEdgeWithWriter(e, 0)
	u.g.AddEdgeWithWriter(e.Reverse(), 0)
	u.edgeCount.Add(1)
}

func (u *UGraph[V, W]) AddEdgeBatch(edges []Edge[V, W]) {
	u.edgeCount.Add(uint64(len(edges)))
	parallelForDynamic(len(edges), u.dispatchThreads, func(worker, lo, hi int) {
		for i := lo; i < hi; i++ {
			u.g.AddEdgeWithWriter(edges[i], worker)
			u.g.AddEdgeWithWriter(edges[i].Reverse(), worker)
		}
	})
}

func (u *UGraph[V, W]) Collect() {
	u.g.Collect()
}

func (u *UGraph[V, W]) FreezeForRead() {
	u.g.FreezeForRead()
}

func (u *UGraph[V, W]) UnfreezeForWrite() {
	u.g.UnfreezeForWrite()
}

func (u *UGraph[V, W]) BuildBitmapParallel() {
	u.g.BuildBitmapParallel()
}

func (u *UGraph[V, W]) Close() {
	u.g.Close()
}

func (u *UGraph[V, W]) VertexCount() uint64 { return u.g.VertexCount() }

// EdgeCount is the number of undirected inputs; the store holds twice as
// many directed edges.
func (u *UGraph[V, W]) EdgeCount() uint64 { return u.edgeCount.Load() }

// View exposes the underlying query surface.
func (u *UGraph[V, W]) View() *Graph[V, W] { return u.g }

func (u *UGraph[V, W]) GetDegree(v V) uint64 { return u.g.GetDegree(v) }

func (u *UGraph[V, W]) IterateNeighbors(v V, fn NeighborFunc[V]) {
	u.g.IterateNeighbors(v, fn)
}

func (u *UGraph[V, W]) IterateNeighborsInOrder(v V, fn NeighborFunc[V]) {
	u.g.IterateNeighborsInOrder(v, fn)
}

func (u *UGraph[V, W]) IterateNeighborsRange(v1, v2 V, fn RangeFunc[V]) {
	u.g.IterateNeighborsRange(v1, v2, fn)
}

func (u *UGraph[V, W]) SampleNeighborsRangeDensityAware(v1, v2 V, sampleCount int, fn SampleFunc[V]) {
	u.g.SampleNeighborsRangeDensityAware(v1, v2, sampleCount, fn)
}
