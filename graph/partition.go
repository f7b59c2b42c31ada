package graph

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dcsrlab/dcsr/utils"
)

const (
	MaxWriteThreads = 16
	MaxSortLevels   = 16

	enableStealThreshold = 8 * 1024
	maxStealSize         = 32 * 1024
	minStealSize         = 512
)

// binarySemaphore is the steal gate: true means stealable. Acquire/release
// ordering on the flag publishes the stealer's writes to the owner.
type binarySemaphore struct {
	state atomic.Bool
}

func (s *binarySemaphore) tryAcquire() bool {
	return s.state.CompareAndSwap(true, false)
}

func (s *binarySemaphore) acquire() {
	for fails := 0; !s.tryAcquire(); fails++ {
		utils.BackOff(fails)
	}
}

func (s *binarySemaphore) release() {
	s.state.Store(true)
}

// Partition is one Sort-Based Memory Partition: it buffers, sorts,
// indexes, and serves the edges of a contiguous source-vertex range.
// Exactly one sorter goroutine owns the sorted prefix; many dispatchers
// write through the batch buffer; readers query only while frozen.
type Partition[V VertexID, W any] struct {
	pid      int
	vidStart uint64
	width    uint64

	sortBatch       uint64
	mergeMultiplier float64
	flushBatchSize  uint64
	indexRatio      uint64
	indexRatioBits  uint
	numaNode        int
	ordering        Ordering
	cmp             func(a, b Edge[V, W]) int

	buf         *MultiWritableBatchBuffer[V, W]
	batch       []Edge[V, W]
	sortedCount uint64

	// Work stealing. stealBounds records the end offset of every stolen
	// chunk so the owner can merge chunks instead of re-sorting; mutated
	// only while holding the gate (stealer) or with the gate closed (owner).
	stealGate        binarySemaphore
	stealSortedCount atomic.Uint64
	stealBounds      []uint64

	// Index
	runs        MergeableRuns
	arenaIndex  []uint32 // packed indexes of runs past the first
	firstIndex  []uint32 // per-vertex index of the first run
	nonempty    utils.Bitmap
	bitsetValid bool

	readingMu   sync.Mutex
	initialized chan struct{}

	scratch []Edge[V, W] // sorter-owned merge buffer
}

func newPartition[V VertexID, W any](pid int, vidStart, width uint64, numaNode int, ordering Ordering, c Config) *Partition[V, W] {
	bufferSize := utils.RoundUpPow(c.BufferSize)
	if bufferSize%c.IndexRatio != 0 {
		log.Panic().Msg("buffer_size must be a multiple of index_ratio")
	}
	buf := NewMultiWritableBatchBuffer[V, W](bufferSize, c.SortBatchSize, c.DispatchThreads, numaNode)
	p := &Partition[V, W]{
		pid:             pid,
		vidStart:        vidStart,
		width:           width,
		sortBatch:       utils.RoundUpPow(c.SortBatchSize),
		mergeMultiplier: c.MergeMultiplier,
		flushBatchSize:  bufferSize,
		indexRatio:      c.IndexRatio,
		indexRatioBits:  uint(log2(c.IndexRatio)),
		numaNode:        numaNode,
		ordering:        ordering,
		cmp:             comparatorFor[V, W](ordering),
		buf:             buf,
		batch:           buf.Batch(),
		runs:            NewMergeableRuns(),
		arenaIndex:      make([]uint32, bufferSize/c.IndexRatio),
		firstIndex:      make([]uint32, width),
		initialized:     make(chan struct{}),
	}
	return p
}

func log2(v uint64) int {
	n := 0
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}

// AddEdge appends for the given writer. Non-blocking except for the
// block-claim fetch-add on sub-buffer exhaustion.
func (p *Partition[V, W]) AddEdge(e Edge[V, W], writer int) {
	p.buf.PushBackInto(e, writer)
}

// Collect compacts the batch buffer. Producers must have stopped.
func (p *Partition[V, W]) Collect() {
	p.buf.Collect()
}

// SortTick sorts every complete mini-batch of newly visible edges and
// updates the run hierarchy. Returns whether any work was performed.
// Called only by the owning sorter.
func (p *Partition[V, W]) SortTick() bool {
	visible := p.buf.VisibleBatchSize()
	newEdges := visible - p.sortedCount
	if newEdges < p.sortBatch {
		return false
	}
	p.sortMiniBatches(newEdges / p.sortBatch)
	return true
}

// VisibleSorted reports whether the whole visible prefix is covered by
// runs; the condition for yielding to readers.
func (p *Partition[V, W]) VisibleSorted() bool {
	return p.buf.VisibleBatchSize() == p.sortedCount
}

// TrySteal is called by an idle sorter of another partition. If the gate
// is open, sort a bounded slice of fresh edges in place; the owner later
// merges the pre-sorted prefix instead of re-sorting it.
func (p *Partition[V, W]) TrySteal() bool {
	if !p.stealGate.tryAcquire() {
		return false
	}
	success := false
	visible := p.buf.VisibleBatchSize()
	ssc := p.stealSortedCount.Load()
	if visible-ssc >= minStealSize {
		stealLen := utils.Min(uint64(maxStealSize), visible-ssc)
		sortEdges(p.batch[ssc:ssc+stealLen], p.cmp)
		p.stealBounds = append(p.stealBounds, ssc+stealLen)
		p.stealSortedCount.Store(ssc + stealLen)
		success = true
	}
	p.stealGate.release()
	return success
}

// Decide the best merge start. Walk the runs oldest to newest; the
// leftmost run r with max(|r|, newEdges) * multiplier <= the combined size
// of r, every newer run and the new edges is merged together with
// everything newer.
// Returns mergedRuns == 0 when no run qualifies.
func (p *Partition[V, W]) optimizeMergeStart(newEdges uint64) (start uint64, mergedRuns int) {
	total := p.sortedCount + newEdges
	count := p.runs.Len()
	for i := 0; i < p.runs.Len(); i++ {
		s, e := p.runs.At(i)
		rsize := e - s
		if float64(utils.Max(rsize, newEdges))*p.mergeMultiplier <= float64(total) {
			return start, count
		}
		start += rsize
		total -= rsize
		count--
	}
	return 0, 0
}

func (p *Partition[V, W]) sortMiniBatches(count uint64) {
	newEdges := count * p.sortBatch
	bestStart, merged := p.optimizeMergeStart(newEdges)
	newSorted := p.sortedCount + newEdges
	ed := newSorted

	// Gate is closed here, so the steal state is stable. Snapshot the
	// chunk boundaries before reopening it for the new region.
	stealSorted := p.stealSortedCount.Load()
	stealBounds := append([]uint64(nil), p.stealBounds...)

	if merged == 0 {
		// Only sort the new mini-batches into a fresh run.
		st := p.sortedCount
		needSteal := ed-st > enableStealThreshold
		if needSteal {
			p.stealSortedCount.Store(newSorted)
			p.stealGate.release()
		}
		if stealSorted > st {
			p.mergeRange(st, stealSorted, ed, stealBounds)
		} else {
			sortEdges(p.batch[st:ed], p.cmp)
		}
		p.runs.Append(newSorted)
		p.buildGroupIndex(st, ed)
		if needSteal {
			p.stealGate.acquire()
		}
	} else {
		// Merge trailing runs together with the new region.
		unsortedSt := p.sortedCount
		if stealSorted > unsortedSt {
			unsortedSt = stealSorted
		}
		needSteal := ed-bestStart > enableStealThreshold
		if needSteal {
			p.stealSortedCount.Store(newSorted)
			p.stealGate.release()
		}

		p.mergeRange(bestStart, unsortedSt, ed, stealBounds)

		p.runs.Append(newSorted)
		p.runs.MergeLastK(merged + 1)
		p.buildGroupIndex(bestStart, ed)

		if needSteal {
			p.stealGate.acquire()
		}
	}
	p.sortedCount = newSorted

	// Chunk boundaries at or below the sorted prefix are consumed.
	kept := p.stealBounds[:0]
	for _, b := range p.stealBounds {
		if b > newSorted {
			kept = append(kept, b)
		}
	}
	p.stealBounds = kept
	if p.stealSortedCount.Load() < newSorted {
		p.stealSortedCount.Store(newSorted)
	}

	if debugChecks {
		for i := 0; i < p.runs.Len(); i++ {
			s, e := p.runs.At(i)
			checkSorted(p.batch[s:e], p.cmp)
		}
		checkFromInRange(p.batch[:p.sortedCount], p.vidStart, p.vidStart+p.width)
		if _, e := p.runs.Back(); e != p.sortedCount {
			log.Panic().Msg("[" + utils.V(p.pid) + "] unexpected sorted count " + utils.V(p.sortedCount) + " runs " + p.runs.String())
		}
	}
}

// mergeRange sorts the unsorted tail [unsortedBegin, end), then merges the
// sorted sub-regions spanning [begin, end) into one run. Sub-region
// boundaries are the run ends plus any stolen chunk ends; a boundary that
// falls inside an already sorted region only splits it and stays correct.
func (p *Partition[V, W]) mergeRange(begin, unsortedBegin, end uint64, stealBounds []uint64) {
	if unsortedBegin > end {
		// A stolen prefix may overrun the mini-batch boundary; the overrun
		// stays sorted and is folded in on the next tick.
		unsortedBegin = end
	}
	if unsortedBegin < end {
		sortEdges(p.batch[unsortedBegin:end], p.cmp)
	}

	bounds := make([]uint64, 0, p.runs.Len()+len(stealBounds)+1)
	for i := 0; i < p.runs.Len(); i++ {
		_, e := p.runs.At(i)
		if e > begin && e < unsortedBegin {
			bounds = append(bounds, e)
		}
	}
	for _, b := range stealBounds {
		if b > begin && b < unsortedBegin {
			bounds = append(bounds, b)
		}
	}
	slices.Sort(bounds)
	bounds = slices.Compact(bounds)
	if unsortedBegin > begin && unsortedBegin < end {
		bounds = append(bounds, unsortedBegin)
	}
	p.ensureScratch(end - begin)
	mergeSortedRegions(p.batch, begin, bounds, end, p.scratch, p.cmp)
}

func (p *Partition[V, W]) ensureScratch(n uint64) {
	if uint64(cap(p.scratch)) < n {
		p.scratch = make([]Edge[V, W], n)
	}
	p.scratch = p.scratch[:n]
}

// indexFor returns one run's offset table and key function. The first run
// uses the standalone per-vertex index; later runs use their slice of the
// packed arena.
func (p *Partition[V, W]) indexFor(begin, end uint64) bucketIndex {
	if begin == 0 {
		return bucketIndex{
			index: p.firstIndex,
			key:   newIndexKey(len(p.firstIndex), p.vidStart, p.width),
		}
	}
	idx := p.arenaIndex[begin>>p.indexRatioBits : end>>p.indexRatioBits]
	return bucketIndex{
		index: idx,
		key:   newIndexKey(len(idx), p.vidStart, p.width),
	}
}

func (p *Partition[V, W]) buildGroupIndex(begin, end uint64) {
	bi := p.indexFor(begin, end)
	buildGroupIndexInto(p.batch[begin:end], bi.index, bi.key)
}
