package graph

import (
	"math/bits"

	"github.com/dcsrlab/dcsr/utils"
)

// indexKey maps a source vertex to its group-index bucket for one run:
// key(v) = (v - vstart) >> shift, with shift chosen so bucketCount buckets
// cover the partition's vertex width.
type indexKey struct {
	vstart uint64
	shift  uint
}

func newIndexKey(bucketCount int, vstart, width uint64) indexKey {
	perBucket := utils.DivUp(width, uint64(bucketCount))
	return indexKey{
		vstart: vstart,
		shift:  uint(bits.Len64(perBucket - 1)),
	}
}

func (k indexKey) of(v uint64) int {
	return int((v - k.vstart) >> k.shift)
}

// perVertex reports whether each bucket holds exactly one source vertex,
// in which case the bucket is the vertex's edge range with no secondary
// search needed.
func (k indexKey) perVertex() bool {
	return k.shift == 0
}

// bucketIndex is one run's offset table: index[i] is the exclusive end
// offset within the run of edges whose source falls in bucket i.
type bucketIndex struct {
	index []uint32
	key   indexKey
}

// bucket returns the run-relative range holding all edges of v's bucket.
func (b bucketIndex) bucket(v uint64) (st, ed uint32) {
	k := b.key.of(v)
	if k > 0 {
		st = b.index[k-1]
	}
	return st, b.index[k]
}

// buildGroupIndexInto fills the offset table with one linear pass over a
// sorted run. Buckets with no edges share their predecessor's end.
// arr = [1, 1, 2, 2, 2, 4, 4, 4, 4], key(x) = x  =>  index = [0, 2, 5, 5, 9]
func buildGroupIndexInto[V VertexID, W any](run []Edge[V, W], index []uint32, key indexKey) {
	cur := 0
	for i := range run {
		k := key.of(uint64(run[i].From))
		for cur < k {
			index[cur] = uint32(i)
			cur++
		}
	}
	for ; cur < len(index); cur++ {
		index[cur] = uint32(len(run))
	}
}
