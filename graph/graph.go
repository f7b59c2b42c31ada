package graph

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dcsrlab/dcsr/utils"
)

// MaxMemPartitions bounds the partition list of one graph.
const MaxMemPartitions = 128

// Graph routes every appended edge to the partition owning its source
// vertex, spawns one sorter goroutine per partition, and coordinates the
// freeze/unfreeze handshake with readers.
type Graph[V VertexID, W any] struct {
	// Fixed-capacity partition table: entries are published before
	// partCount, so readers index below partCount without locks.
	parts     [MaxMemPartitions]*Partition[V, W]
	partCount atomic.Int32
	extendMu  sync.Mutex

	vertexCount    uint64 // grows under auto-extend, CAS-max
	maxVertexCount atomic.Uint64
	partWidth      uint64
	graphID        int
	ordering       Ordering

	readFlag    atomic.Bool
	stopFlag    atomic.Bool
	lockedParts int

	availableCores utils.Bitmap
	coreMu         sync.Mutex
	numaNodes      int

	config           Config
	wg               sync.WaitGroup
	totalSleepMillis atomic.Uint64
}

// NewGraph builds the partition table for the configured vertex range and
// spawns the sorters. The graphID selects the NUMA interleaving role (out
// and in graphs of a TGraph land on opposite sockets).
func NewGraph[V VertexID, W any](c Config, ordering Ordering, graphID int) *Graph[V, W] {
	if err := c.Validate(); err != nil {
		log.Panic().Err(err).Msg("invalid configuration")
	}
	c.BufferSize = utils.RoundUpPow(c.BufferSize)
	c.SortBatchSize = utils.RoundUpPow(c.SortBatchSize)

	g := &Graph[V, W]{
		partWidth:   c.PartitionSize,
		graphID:     graphID,
		ordering:    ordering,
		numaNodes:   utils.NumaNodeCount(),
		config:      c,
		vertexCount: c.InitVertexCount,
	}
	log.Debug().Msg("graph " + utils.V(graphID) + " (" + ordering.String() + " order) " + c.String())

	var cores []int
	if c.BindNuma {
		cores = utils.CoresOnNumaNode(graphID % g.numaNodes)
	} else {
		cores = utils.AllCores()
	}
	for _, core := range cores {
		g.availableCores.Set(uint32(core))
	}
	g.allocateCore() // one core belongs to the caller's thread

	g.extendTo(int(utils.DivUp(c.InitVertexCount, c.PartitionSize)))

	for i := 0; i < g.PartitionCount(); i++ {
		<-g.part(i).initialized
	}
	return g
}

func (g *Graph[V, W]) PartitionCount() int {
	return int(g.partCount.Load())
}

func (g *Graph[V, W]) part(i int) *Partition[V, W] {
	return g.parts[i]
}

func (g *Graph[V, W]) allocateCore() int {
	g.coreMu.Lock()
	defer g.coreMu.Unlock()
	if pos, ok := g.availableCores.FirstSet(); ok {
		g.availableCores.Unset(pos)
		return int(pos)
	}
	log.Warn().Msg("no available core left for graph " + utils.V(g.graphID) + "; sorter runs unpinned")
	return -1
}

func (g *Graph[V, W]) extendTo(requiredParts int) {
	if requiredParts > MaxMemPartitions {
		log.Panic().Msg("required partitions " + utils.V(requiredParts) + " exceed " + utils.V(MaxMemPartitions))
	}
	g.extendMu.Lock()
	defer g.extendMu.Unlock()
	for pid := g.PartitionCount(); pid < requiredParts; pid++ {
		numaNode := ((pid % g.numaNodes) ^ (g.graphID & 1)) % g.numaNodes
		p := newPartition[V, W](pid, uint64(pid)*g.partWidth, g.partWidth, numaNode, g.ordering, g.config)
		g.parts[pid] = p
		g.partCount.Store(int32(pid + 1))
		g.maxVertexCount.Store(uint64(pid+1) * g.partWidth)

		core := g.allocateCore()
		g.wg.Add(1)
		go g.sorterLoop(p, core)
	}
}

// AddEdgeWithWriter routes the edge to the partition owning its source.
// writer identifies the dispatcher's sub-buffer in the target partition.
func (g *Graph[V, W]) AddEdgeWithWriter(e Edge[V, W], writer int) {
	if g.config.AutoExtend {
		maxVid := uint64(utils.Max(e.From, e.To))
		if maxVid >= atomic.LoadUint64(&g.vertexCount) {
			utils.AtomicMaxUint64(&g.vertexCount, maxVid+1)
		}
		if maxVid >= g.maxVertexCount.Load() {
			g.extendTo(int(maxVid/g.partWidth) + 1)
		}
	} else if uint64(e.From) >= g.maxVertexCount.Load() {
		log.Panic().Msg("source vertex " + utils.V(e.From) + " outside configured range (auto_extend off)")
	}
	g.part(int(uint64(e.From)/g.partWidth)).AddEdge(e, writer)
}

func (g *Graph[V, W]) AddEdge(e Edge[V, W]) {
	g.AddEdgeWithWriter(e, 0)
}

// Collect compacts every partition's batch buffer. Producers must have
// stopped.
func (g *Graph[V, W]) Collect() {
	for i := 0; i < g.PartitionCount(); i++ {
		g.part(i).Collect()
	}
}

// FreezeForReadAsync raises the read flag; each sorter releases its
// reading mutex once its visible prefix is fully sorted.
func (g *Graph[V, W]) FreezeForReadAsync() {
	g.readFlag.Store(true)
}

// WaitFrozen blocks until every partition's reading mutex is held by the
// reader side.
func (g *Graph[V, W]) WaitFrozen() {
	n := g.PartitionCount()
	for i := 0; i < n; i++ {
		p := g.part(i)
		<-p.initialized
		p.readingMu.Lock()
	}
	g.lockedParts = n
}

// FreezeForRead brackets Collect, the flag raise, and the lock
// acquisition.
func (g *Graph[V, W]) FreezeForRead() {
	g.Collect()
	g.FreezeForReadAsync()
	g.WaitFrozen()
}

// UnfreezeForWrite drops the read flag and every reading mutex; nonempty
// bitsets become invalid. Returns once every sorter holds its reading
// mutex again, so the next freeze waits for newly visible edges to be
// sorted.
func (g *Graph[V, W]) UnfreezeForWrite() {
	g.readFlag.Store(false)
	for i := 0; i < g.lockedParts; i++ {
		g.part(i).InvalidateBitmap()
		g.part(i).readingMu.Unlock()
	}
	for i := 0; i < g.lockedParts; i++ {
		p := g.part(i)
		for fails := 0; !g.stopFlag.Load() && p.readingMu.TryLock(); fails++ {
			p.readingMu.Unlock()
			utils.BackOff(fails)
		}
	}
	g.lockedParts = 0
}

// BuildBitmapParallel builds every partition's nonempty bitset. Frozen
// only.
func (g *Graph[V, W]) BuildBitmapParallel() {
	var wg sync.WaitGroup
	for i := 0; i < g.PartitionCount(); i++ {
		wg.Add(1)
		go func(p *Partition[V, W]) {
			defer wg.Done()
			p.BuildBitmap()
		}(g.part(i))
	}
	wg.Wait()
}

// Close stops and joins the sorters.
func (g *Graph[V, W]) Close() {
	g.stopFlag.Store(true)
	g.wg.Wait()
	log.Debug().Msg("graph " + utils.V(g.graphID) + " total sorter sleep (ms): " + utils.V(g.totalSleepMillis.Load()))
}

func (g *Graph[V, W]) VertexCount() uint64 {
	return atomic.LoadUint64(&g.vertexCount)
}

// EdgeCount sums the edges held by every partition. Quiescent-only.
func (g *Graph[V, W]) EdgeCount() (count uint64) {
	for i := 0; i < g.PartitionCount(); i++ {
		count += g.part(i).buf.TotalCount()
	}
	return count
}

func (g *Graph[V, W]) TotalSleepMillis() uint64 {
	return g.totalSleepMillis.Load()
}

// ---------------------------- Query surface ----------------------------

func (g *Graph[V, W]) pidOf(v V) int {
	return int(uint64(v) / g.partWidth)
}

func (g *Graph[V, W]) IterateNeighbors(v V, fn NeighborFunc[V]) {
	pid := g.pidOf(v)
	if pid >= g.PartitionCount() {
		return
	}
	g.part(pid).IterateNeighbors(v, fn)
}

func (g *Graph[V, W]) GetDegree(v V) uint64 {
	pid := g.pidOf(v)
	if pid >= g.PartitionCount() {
		return 0
	}
	return g.part(pid).GetDegree(v)
}

func (g *Graph[V, W]) IterateNeighborsInOrder(v V, fn NeighborFunc[V]) {
	pid := g.pidOf(v)
	if pid >= g.PartitionCount() {
		return
	}
	g.part(pid).IterateNeighborsInOrder(v, fn)
}

func (g *Graph[V, W]) rangePids(v1, v2 V) (int, int) {
	if v1 >= v2 {
		return 0, -1
	}
	pid1 := g.pidOf(v1)
	pid2 := g.pidOf(v2 - 1)
	last := g.PartitionCount() - 1
	return pid1, utils.Min(pid2, last)
}

func (g *Graph[V, W]) IterateNeighborsRange(v1, v2 V, fn RangeFunc[V]) {
	pid1, pid2 := g.rangePids(v1, v2)
	for pid := pid1; pid <= pid2; pid++ {
		g.part(pid).IterateNeighborsRange(v1, v2, fn)
	}
}

func (g *Graph[V, W]) IterateNeighborsRangeInLevel(v1, v2 V, level int, fn RangeOpFunc[V]) {
	pid1, pid2 := g.rangePids(v1, v2)
	for pid := pid1; pid <= pid2; pid++ {
		g.part(pid).IterateNeighborsRangeInLevel(v1, v2, level, fn)
	}
}

func (g *Graph[V, W]) SampleNeighborsRange(v1, v2 V, sampleCount int, fn SampleFunc[V]) {
	pid1, pid2 := g.rangePids(v1, v2)
	for pid := pid1; pid <= pid2; pid++ {
		g.part(pid).SampleNeighborsRange(v1, v2, sampleCount, fn)
	}
}

func (g *Graph[V, W]) SampleNeighborsRangeDensityAware(v1, v2 V, sampleCount int, fn SampleFunc[V]) {
	pid1, pid2 := g.rangePids(v1, v2)
	for pid := pid1; pid <= pid2; pid++ {
		g.part(pid).SampleNeighborsRangeDensityAware(v1, v2, sampleCount, fn)
	}
}
