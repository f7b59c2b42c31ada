package graph

import (
	"sync"
	"sync/atomic"
)

const dispatchChunk = 4096

// parallelForDynamic spreads [0, n) over the given worker count with
// dynamic chunking, so uneven per-edge routing cost does not skew the
// writers. Each worker receives its own index for sub-buffer selection.
func parallelForDynamic(n, workers int, body func(worker, lo, hi int)) {
	if n == 0 {
		return
	}
	var next atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				lo := int(next.Add(dispatchChunk)) - dispatchChunk
				if lo >= n {
					return
				}
				hi := lo + dispatchChunk
				if hi > n {
					hi = n
				}
				body(worker, lo, hi)
			}
		}(w)
	}
	wg.Wait()
}

// AddEdgeBatch fans a batch out over the configured dispatcher count.
func (g *Graph[V, W]) AddEdgeBatch(edges []Edge[V, W]) {
	parallelForDynamic(len(edges), g.config.DispatchThreads, func(worker, lo, hi int) {
		for i := lo; i < hi; i++ {
			g.AddEdgeWithWriter(edges[i], worker)
		}
	})
}
