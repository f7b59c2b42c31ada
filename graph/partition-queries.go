package graph

import (
	"github.com/rs/zerolog/log"

	"github.com/dcsrlab/dcsr/utils"
)

// All queries below are read-only and safe only while the graph is frozen
// and the partition's reading mutex is held by the reader side.

// NeighborFunc receives one target vertex; returning false stops the
// iteration.
type NeighborFunc[V VertexID] func(to V) bool

// RangeFunc receives (source, target) pairs over a source range.
type RangeFunc[V VertexID] func(from, to V)

// RangeOpFunc is a RangeFunc with the Continue / Break / SkipToNextVertex
// continuation contract.
type RangeOpFunc[V VertexID] func(from, to V) IterateOp

// SampleFunc receives (source, target, ordinal) during sampling; ordinal
// counts delivered neighbors of the current source.
type SampleFunc[V VertexID] func(from, to V, i int)

func (p *Partition[V, W]) clampRange(v1, v2 V) (V, V) {
	lo := V(p.vidStart)
	hi := V(p.vidStart + p.width)
	return utils.Max(v1, lo), utils.Min(v2, hi)
}

// IterateNeighbors calls fn for every neighbor of v, runs first then the
// unsorted tail. Neighbor order across runs is unspecified.
func (p *Partition[V, W]) IterateNeighbors(v V, fn NeighborFunc[V]) {
	if p.bitsetValid && !p.nonempty.Get(uint32(uint64(v)-p.vidStart)) {
		return
	}

	for i := 0; i < p.runs.Len(); i++ {
		s, e := p.runs.At(i)
		run := p.batch[s:e]
		st, ed := p.indexFor(s, e).bucket(uint64(v))
		if st == ed {
			continue
		}
		it := int(st) + lowerBoundFrom(run[st:ed], v)
		for it < len(run) && run[it].From == v {
			if !fn(run[it].To) {
				return
			}
			it++
		}
	}

	for _, e := range p.buf.ReadyData() {
		if e.From == v {
			if !fn(e.To) {
				return
			}
		}
	}
}

// GetDegree sums v's edges over the unsorted tail and every run; O(1) per
// per-vertex-indexed run, a bounded bucket search otherwise.
func (p *Partition[V, W]) GetDegree(v V) (degree uint64) {
	if p.bitsetValid && !p.nonempty.Get(uint32(uint64(v)-p.vidStart)) {
		return 0
	}

	for _, e := range p.buf.ReadyData() {
		if e.From == v {
			degree++
		}
	}

	for i := 0; i < p.runs.Len(); i++ {
		s, e := p.runs.At(i)
		bi := p.indexFor(s, e)
		st, ed := bi.bucket(uint64(v))
		if st == ed {
			continue
		}
		if bi.key.perVertex() {
			degree += uint64(ed - st)
			continue
		}
		seg := p.batch[s:e][st:ed]
		lo := lowerBoundFrom(seg, v)
		degree += uint64(upperBoundFrom(seg[lo:], v))
	}
	return degree
}

// IterateNeighborsRangeInLevel walks sources [v1, v2) inside one run,
// honouring the IterateOp continuation contract.
func (p *Partition[V, W]) IterateNeighborsRangeInLevel(v1, v2 V, level int, fn RangeOpFunc[V]) {
	if level >= p.runs.Len() {
		return
	}
	v1, v2 = p.clampRange(v1, v2)
	if v1 >= v2 {
		return
	}

	s, e := p.runs.At(level)
	run := p.batch[s:e]
	st, ed := p.indexFor(s, e).bucket(uint64(v1))
	it := int(st) + lowerBoundFrom(run[st:ed], v1)

	for it < len(run) && run[it].From < v2 {
		switch fn(run[it].From, run[it].To) {
		case Continue:
			it++
		case Break:
			return
		case SkipToNextVertex:
			// Most of the time the next vertex is close; exponential search.
			it = exponentialSearchFrom(run, it, run[it].From+1)
		}
	}
}

// Jump variant: fn returns how many source vertices to jump ahead; zero
// advances one edge.
func (p *Partition[V, W]) iterateNeighborsRangeInLevelJump(v1, v2 V, level int, fn func(from, to V) uint64) {
	if level >= p.runs.Len() {
		return
	}
	v1, v2 = p.clampRange(v1, v2)
	if v1 >= v2 {
		return
	}

	s, e := p.runs.At(level)
	run := p.batch[s:e]
	st, ed := p.indexFor(s, e).bucket(uint64(v1))
	it := int(st) + lowerBoundFrom(run[st:ed], v1)

	for it < len(run) && run[it].From < v2 {
		jump := fn(run[it].From, run[it].To)
		if jump == 0 {
			it++
		} else {
			it = exponentialSearchFrom(run, it, run[it].From+V(jump))
		}
	}
}

// IterateNeighborsRange visits every edge with source in [v1, v2), one run
// level at a time, then the unsorted tail.
func (p *Partition[V, W]) IterateNeighborsRange(v1, v2 V, fn RangeFunc[V]) {
	v1, v2 = p.clampRange(v1, v2)
	if v1 >= v2 {
		return
	}

	for level := 0; level < p.runs.Len(); level++ {
		p.IterateNeighborsRangeInLevel(v1, v2, level, func(from, to V) IterateOp {
			fn(from, to)
			return Continue
		})
	}

	for _, e := range p.buf.ReadyData() {
		if e.From >= v1 && e.From < v2 {
			fn(e.From, e.To)
		}
	}
}

// SampleNeighborsRange delivers up to sampleCount neighbors per source in
// [v1, v2), walking run levels with a per-source quota array.
func (p *Partition[V, W]) SampleNeighborsRange(v1, v2 V, sampleCount int, fn SampleFunc[V]) {
	v1, v2 = p.clampRange(v1, v2)
	if v1 >= v2 {
		return
	}
	count := make([]uint8, uint64(v2)-uint64(v1))
	quota := uint8(sampleCount)

	for level := 0; level < p.runs.Len(); level++ {
		p.iterateNeighborsRangeInLevelJump(v1, v2, level, func(from, to V) uint64 {
			i := uint64(from) - uint64(v1)
			if count[i] == quota {
				return nextUnfullJump(count, i, quota)
			}
			fn(from, to, int(count[i]))
			count[i]++
			if count[i] == quota {
				return nextUnfullJump(count, i, quota)
			}
			return 0
		})
	}

	for _, e := range p.buf.ReadyData() {
		if e.From >= v1 && e.From < v2 {
			i := uint64(e.From) - uint64(v1)
			if count[i] == quota {
				continue
			}
			fn(e.From, e.To, int(count[i]))
			count[i]++
		}
	}
}

func nextUnfullJump(count []uint8, i uint64, quota uint8) uint64 {
	jump := uint64(1)
	for i+jump < uint64(len(count)) && count[i+jump] == quota {
		jump++
	}
	return jump
}

// cursor is a consumable view into one sorted source of neighbor edges.
type cursor[V VertexID, W any] struct {
	edges []Edge[V, W]
	pos   int
}

func (c *cursor[V, W]) empty() bool { return c.pos >= len(c.edges) }
func (c *cursor[V, W]) head() *Edge[V, W] {
	return &c.edges[c.pos]
}

// SampleNeighborsRangeDensityAware delivers up to sampleCount neighbors
// per source in [v1, v2). Fast path: the first run's per-vertex bucket
// already holds the full quota. Otherwise the remainder comes from later
// runs (and the tail) through exponential-search cursors.
func (p *Partition[V, W]) SampleNeighborsRangeDensityAware(v1, v2 V, sampleCount int, fn SampleFunc[V]) {
	v1, v2 = p.clampRange(v1, v2)
	if v1 >= v2 {
		return
	}

	var tail []Edge[V, W]
	for _, e := range p.buf.ReadyData() {
		if e.From >= v1 && e.From < v2 {
			tail = append(tail, e)
		}
	}
	sortEdges(tail, cmpFrom[V, W])

	var rest []cursor[V, W]
	for i := 1; i < p.runs.Len(); i++ {
		s, e := p.runs.At(i)
		run := p.batch[s:e]
		st, _ := p.indexFor(s, e).bucket(uint64(v1))
		pos := int(st) + lowerBoundFrom(run[st:], v1)
		if pos < len(run) && run[pos].From < v2 {
			end := pos + lowerBoundFrom(run[pos:], v2)
			rest = append(rest, cursor[V, W]{edges: run[:end], pos: pos})
		}
	}
	if len(tail) > 0 {
		rest = append(rest, cursor[V, W]{edges: tail})
	}

	var r0 bucketIndex
	haveFirst := p.runs.Len() > 0
	if haveFirst {
		s, e := p.runs.At(0)
		r0 = p.indexFor(s, e)
		if debugChecks && !r0.key.perVertex() {
			log.Panic().Msg("first run index must be per-vertex")
		}
	}

	for v := v1; v < v2; v++ {
		delivered := 0
		if haveFirst {
			st, ed := r0.bucket(uint64(v))
			n := int(ed - st)
			if n > sampleCount {
				n = sampleCount
			}
			for i := 0; i < n; i++ {
				fn(v, p.batch[st+uint32(i)].To, i)
			}
			delivered = n
		}
		if delivered >= sampleCount {
			continue
		}

		for ci := range rest {
			c := &rest[ci]
			if !c.empty() && c.head().From < v {
				c.pos = exponentialSearchFrom(c.edges, c.pos, v)
			}
			for !c.empty() && c.head().From == v {
				fn(v, c.head().To, delivered)
				c.pos++
				delivered++
				if delivered == sampleCount {
					break
				}
			}
			if delivered == sampleCount {
				break
			}
		}
	}
}

// IterateNeighborsInOrder yields v's neighbors in ascending target order
// through a streaming merge over the per-run cursors plus the sorted tail.
// The run count is tiny, so insertion-sort maintenance of the cursor list
// beats a heap. Requires (from, to) ordering.
func (p *Partition[V, W]) IterateNeighborsInOrder(v V, fn NeighborFunc[V]) {
	if p.ordering != OrderFromTo {
		log.Panic().Msg("IterateNeighborsInOrder requires (from, to) ordering")
	}

	var tail []Edge[V, W]
	for _, e := range p.buf.ReadyData() {
		if e.From == v {
			tail = append(tail, e)
		}
	}
	sortEdges(tail, cmpTo[V, W])

	var cursors []cursor[V, W]
	for i := 0; i < p.runs.Len(); i++ {
		s, e := p.runs.At(i)
		run := p.batch[s:e]
		st, ed := p.indexFor(s, e).bucket(uint64(v))
		if st == ed {
			continue
		}
		pos := int(st) + lowerBoundFrom(run[st:ed], v)
		if pos < len(run) && run[pos].From == v {
			cursors = append(cursors, cursor[V, W]{edges: run, pos: pos})
		}
	}
	if len(tail) > 0 {
		cursors = append(cursors, cursor[V, W]{edges: tail})
	}

	sortCursorsByTarget(cursors)

	for len(cursors) > 0 {
		c := cursors[0]
		if !fn(c.head().To) {
			return
		}
		if c.pos+1 < len(c.edges) && c.edges[c.pos+1].From == v {
			c.pos++
			// Re-insert at the correct position to keep the heads ordered.
			lo := 1
			for lo < len(cursors) && cursors[lo].head().To < c.head().To {
				lo++
			}
			copy(cursors[0:], cursors[1:lo])
			cursors[lo-1] = c
		} else {
			cursors = cursors[1:]
		}
	}
}

func sortCursorsByTarget[V VertexID, W any](cursors []cursor[V, W]) {
	for i := 1; i < len(cursors); i++ {
		for j := i; j > 0 && cursors[j].head().To < cursors[j-1].head().To; j-- {
			cursors[j], cursors[j-1] = cursors[j-1], cursors[j]
		}
	}
}

// BuildBitmap builds the optional nonempty-vertex bitset from the current
// runs and tail. Answers may be conservative; the bitset is dropped on
// unfreeze.
func (p *Partition[V, W]) BuildBitmap() {
	if p.width > 0 {
		p.nonempty.Grow(uint32(p.width - 1))
	}
	p.nonempty.Zeroes()
	v1 := V(p.vidStart)
	v2 := V(p.vidStart + p.width)
	for level := 0; level < p.runs.Len(); level++ {
		p.IterateNeighborsRangeInLevel(v1, v2, level, func(from, _ V) IterateOp {
			p.nonempty.Set(uint32(uint64(from) - p.vidStart))
			return SkipToNextVertex
		})
	}
	for _, e := range p.buf.ReadyData() {
		p.nonempty.Set(uint32(uint64(e.From) - p.vidStart))
	}
	p.bitsetValid = true
}

func (p *Partition[V, W]) InvalidateBitmap() {
	p.bitsetValid = false
}
