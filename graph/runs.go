package graph

import (
	"github.com/rs/zerolog/log"

	"github.com/dcsrlab/dcsr/utils"
)

// MaxRunCount bounds the sorted-run hierarchy of one partition.
const MaxRunCount = 64

// MergeableRuns tracks the boundaries of the sorted runs inside one
// partition batch as strictly increasing offsets. starts = [0, 3, 9]
// describes the two runs [0, 3) and [3, 9).
type MergeableRuns struct {
	starts []uint64
}

func NewMergeableRuns() MergeableRuns {
	starts := make([]uint64, 1, MaxRunCount+1)
	starts[0] = 0
	return MergeableRuns{starts: starts}
}

func (r *MergeableRuns) Len() int {
	return len(r.starts) - 1
}

// At returns run i as the half-open offset pair [start, end).
func (r *MergeableRuns) At(i int) (start, end uint64) {
	return r.starts[i], r.starts[i+1]
}

func (r *MergeableRuns) Back() (start, end uint64) {
	return r.At(r.Len() - 1)
}

// Append adds one run ending at rangeEnd.
func (r *MergeableRuns) Append(rangeEnd uint64) {
	if r.Len() >= MaxRunCount {
		log.Panic().Msg("run count exceeds " + utils.V(MaxRunCount))
	}
	if rangeEnd <= r.starts[len(r.starts)-1] {
		log.Panic().Msg("run end " + utils.V(rangeEnd) + " does not extend " + utils.V(r.starts[len(r.starts)-1]))
	}
	r.starts = append(r.starts, rangeEnd)
}

// MergeLastK collapses the trailing count runs into one.
func (r *MergeableRuns) MergeLastK(count int) {
	if count > r.Len() {
		log.Panic().Msg("cannot merge " + utils.V(count) + " of " + utils.V(r.Len()) + " runs")
	}
	_, ed := r.Back()
	r.starts = r.starts[:len(r.starts)-count+1]
	r.starts[len(r.starts)-1] = ed
}

func (r *MergeableRuns) String() string {
	return utils.V(r.starts)
}
