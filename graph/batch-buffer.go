package graph

import (
	"slices"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dcsrlab/dcsr/utils"
)

// One sub-buffer per writer. Writers only ever touch their own entry, the
// reader only loads latestWritten; padding keeps the entries off each
// other's cache lines.
type subBuffer struct {
	base          uint64 // absolute offset of the writer's current block
	size          uint64 // edges written into the current block
	latestWritten atomic.Uint64
	_             [5]uint64
}

// MultiWritableBatchBuffer accepts appends from many writers with no
// per-push synchronization, publishing a monotonically growing contiguous
// prefix that is safe for the single reader to scan. Append-only between
// Collect calls; overflowing the backing array is a configuration error.
type MultiWritableBatchBuffer[V VertexID, W any] struct {
	edges     []Edge[V, W]
	allocated atomic.Uint64
	blockSize uint64 // power of two
	writers   int
	numaNode  int
	subs      []subBuffer
}

func NewMultiWritableBatchBuffer[V VertexID, W any](bufferSize, blockSize uint64, writers, numaNode int) *MultiWritableBatchBuffer[V, W] {
	b := &MultiWritableBatchBuffer[V, W]{
		edges:     make([]Edge[V, W], bufferSize),
		blockSize: utils.RoundUpPow(blockSize),
		writers:   writers,
		numaNode:  numaNode,
		subs:      make([]subBuffer, writers),
	}
	for i := 0; i < writers; i++ {
		b.subs[i].base = b.allocBlock()
		b.subs[i].size = 0
		b.subs[i].latestWritten.Store(0)
	}
	return b
}

func (b *MultiWritableBatchBuffer[V, W]) allocBlock() uint64 {
	off := b.allocated.Add(b.blockSize) - b.blockSize
	if off+b.blockSize > uint64(len(b.edges)) {
		log.Panic().Msg("batch buffer overrun: raise buffer_size or Collect more often (allocated " +
			utils.V(off) + " of " + utils.V(len(b.edges)) + ")")
	}
	return off
}

// PushBackInto appends into the writer's sub-buffer. When the block fills,
// it is published and a fresh block claimed with one fetch-add.
func (b *MultiWritableBatchBuffer[V, W]) PushBackInto(e Edge[V, W], writer int) {
	sb := &b.subs[writer]
	b.edges[sb.base+sb.size] = e
	sb.size++
	if sb.size == b.blockSize {
		sb.latestWritten.Store(sb.base + sb.size)
		sb.base = b.allocBlock()
		sb.size = 0
	}
}

// VisibleBatchSize is the minimum published offset over all writers: every
// edge below it is fully written. Never decreases.
func (b *MultiWritableBatchBuffer[V, W]) VisibleBatchSize() uint64 {
	latest := ^uint64(0)
	for i := 0; i < b.writers; i++ {
		latest = utils.Min(latest, b.subs[i].latestWritten.Load())
	}
	return latest
}

// Batch exposes the backing array. Offsets below VisibleBatchSize are
// stable for the reader.
func (b *MultiWritableBatchBuffer[V, W]) Batch() []Edge[V, W] {
	return b.edges
}

// ReadyData is the compacted unsorted tail: the contents of sub-buffer 0.
// Only meaningful while writers are quiescent (after Collect).
func (b *MultiWritableBatchBuffer[V, W]) ReadyData() []Edge[V, W] {
	sb := &b.subs[0]
	return b.edges[sb.base : sb.base+sb.size]
}

// TotalCount is the number of edges pushed so far. Quiescent-only.
func (b *MultiWritableBatchBuffer[V, W]) TotalCount() uint64 {
	return b.VisibleBatchSize() + b.subs[0].size
}

// Collect collapses the partially-filled sub-buffers into a dense prefix:
// tail edges of the highest partial blocks move into the holes of the
// lowest ones. Writers must be quiescent. Earlier full blocks of each
// writer are already contiguous and never move.
func (b *MultiWritableBatchBuffer[V, W]) Collect() {
	notFull := make([]collectBlock, b.writers)
	for i := 0; i < b.writers; i++ {
		notFull[i] = collectBlock{b.subs[i].base, b.subs[i].size}
	}
	slices.SortFunc(notFull, func(a, c collectBlock) int {
		switch {
		case a.base < c.base:
			return -1
		case a.base > c.base:
			return 1
		}
		return 0
	})

	k := 0
	fillBase, pos := notFull[0].base, notFull[0].size

	mk := b.writers - 1
	moveBase, mpos := notFull[mk].base, notFull[mk].size
	for fillBase < moveBase {
		if mpos <= b.blockSize-pos { // the whole top block fits into the hole
			for mpos > 0 {
				b.edges[fillBase+pos] = b.edges[moveBase+mpos-1]
				pos++
				mpos--
			}

			moveBase -= b.blockSize
			if moveBase == fillBase {
				mpos = pos
				break
			}

			if moveBase == notFull[mk-1].base {
				mpos = notFull[mk-1].size
				mk--
			} else {
				b.collectCheck(notFull[:mk], moveBase)
				mpos = b.blockSize
			}
		} else { // fill the hole, continue draining the same block
			for pos < b.blockSize {
				b.edges[fillBase+pos] = b.edges[moveBase+mpos-1]
				pos++
				mpos--
			}
			if k == b.writers-1 {
				break
			}
			k++
			fillBase, pos = notFull[k].base, notFull[k].size
		}
	}

	if mpos == b.blockSize {
		moveBase += b.blockSize
		mpos = 0
	}

	newVisible := moveBase
	b.allocated.Store(newVisible + b.blockSize)

	b.subs[0].base = moveBase
	b.subs[0].size = mpos
	b.subs[0].latestWritten.Store(newVisible)

	for i := 1; i < b.writers; i++ {
		b.subs[i].base = b.allocBlock()
		b.subs[i].size = 0
		b.subs[i].latestWritten.Store(newVisible)
	}
}

type collectBlock struct{ base, size uint64 }

// Any block the drain cursor steps across that is not the next partial
// block must be a full block of some writer.
func (b *MultiWritableBatchBuffer[V, W]) collectCheck(lowerPartials []collectBlock, moveBase uint64) {
	if !debugChecks {
		return
	}
	for i := range lowerPartials {
		if lowerPartials[i].base == moveBase {
			log.Panic().Msg("collect: stepped onto a partial block assumed full at offset " + utils.V(moveBase))
		}
	}
}
