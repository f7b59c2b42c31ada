package graph

import (
	"errors"
	"math/bits"

	"github.com/dcsrlab/dcsr/utils"
)

// Config holds the recognized engine options. Zero values are not usable;
// start from DefaultConfig or one of the generators below.
type Config struct {
	AutoExtend      bool    // Unknown source vertex extends the partition list instead of failing.
	BindCore        bool    // Pin each sorter goroutine to exactly one logical core.
	BindNuma        bool    // Restrict thread placement to the NUMA node matching the graph role.
	BufferCount     int     // Kept for forward compatibility; effective value is 1.
	BufferSize      uint64  // Per-partition batch capacity in edges; rounded up to a power of two.
	DispatchThreads int     // Parallel dispatchers used by batch fan-out (also the MWBB writer count).
	IndexRatio      uint64  // Per-run index granularity; one bucket per IndexRatio edges, per-vertex on the first run.
	InitVertexCount uint64  // Initial vertex range; partitions = ceil(InitVertexCount / PartitionSize).
	MergeMultiplier float64 // Size-tiering threshold for run compaction.
	PartitionSize   uint64  // Source-vertex width of one partition.
	SortBatchSize   uint64  // Minimum unit of one sort tick.
}

func DefaultConfig() Config {
	return Config{
		AutoExtend:      true,
		BindCore:        false,
		BindNuma:        true,
		BufferCount:     1,
		BufferSize:      1024 * 1024,
		DispatchThreads: 4,
		IndexRatio:      8,
		InitVertexCount: 0,
		MergeMultiplier: 2.0,
		PartitionSize:   128 * 1024,
		SortBatchSize:   1024,
	}
}

func (c Config) String() string {
	return "Config{auto_extend: " + utils.V(c.AutoExtend) +
		", bind_core: " + utils.V(c.BindCore) +
		", bind_numa: " + utils.V(c.BindNuma) +
		", buffer_count: " + utils.V(c.BufferCount) +
		", buffer_size: " + utils.V(c.BufferSize) +
		", dispatch_thread_count: " + utils.V(c.DispatchThreads) +
		", index_ratio: " + utils.V(c.IndexRatio) +
		", init_vertex_count: " + utils.V(c.InitVertexCount) +
		", merge_multiplier: " + utils.F("%.1f", c.MergeMultiplier) +
		", partition_size: " + utils.V(c.PartitionSize) +
		", sort_batch_size: " + utils.V(c.SortBatchSize) + "}"
}

// The ratio bound keeps one sort tick from covering more blocks than the
// MWBB can describe.
const maxBufferToBatchRatio = 65536

func (c Config) Validate() error {
	if c.PartitionSize == 0 {
		return errors.New("partition_size must be non-zero")
	}
	if c.BufferSize == 0 || c.SortBatchSize == 0 {
		return errors.New("buffer_size and sort_batch_size must be non-zero")
	}
	bufferSize := utils.RoundUpPow(c.BufferSize)
	sortBatch := utils.RoundUpPow(c.SortBatchSize)
	if bufferSize%sortBatch != 0 {
		return errors.New("buffer_size must be a multiple of sort_batch_size")
	}
	if bufferSize/sortBatch > maxBufferToBatchRatio {
		return errors.New("buffer_size / sort_batch_size exceeds " + utils.V(maxBufferToBatchRatio))
	}
	if c.IndexRatio == 0 || bits.OnesCount64(c.IndexRatio) != 1 {
		return errors.New("index_ratio must be a power of two")
	}
	if sortBatch%c.IndexRatio != 0 {
		return errors.New("sort_batch_size must be a multiple of index_ratio")
	}
	if c.DispatchThreads < 1 || c.DispatchThreads > MaxWriteThreads {
		return errors.New("dispatch_thread_count must be in [1, " + utils.V(MaxWriteThreads) + "]")
	}
	if c.BufferCount < 1 {
		return errors.New("buffer_count must be at least 1")
	}
	if c.MergeMultiplier < 1.0 {
		return errors.New("merge_multiplier must be at least 1.0")
	}
	return nil
}

// GenerateUGraphConfig sizes a configuration for a single undirected graph
// ingesting both directions of each edge.
func GenerateUGraphConfig(vertexCount, edgeCount uint64, threadCount int) Config {
	c := DefaultConfig()
	dispatch := utils.Min(16, utils.DivUp(uint64(threadCount), 8))
	partitionCount := utils.Max(uint64(1), uint64(threadCount)-dispatch)
	partitionWidth := utils.DivUp(vertexCount, partitionCount)

	c.SortBatchSize = 128
	c.BufferSize = utils.RoundUpPow(edgeCount + dispatch*c.SortBatchSize)
	c.InitVertexCount = vertexCount
	c.PartitionSize = partitionWidth
	c.BufferCount = 1

	c.AutoExtend = false
	c.BindCore = false
	c.BindNuma = false
	c.DispatchThreads = int(dispatch)
	return c
}

// GenerateTGraphConfig sizes a configuration for a two-direction graph,
// splitting the worker budget between the in and out graphs.
func GenerateTGraphConfig(vertexCount, edgeCount uint64, threadCount int) Config {
	var dispatch uint64
	if threadCount < 4 { // should bind cores by taskset manually, otherwise it will use one extra core for dispatching
		dispatch = 1
	} else {
		dispatch = utils.Min(16, utils.DivUp(uint64(threadCount), 10)*2)
		threadCount -= int(dispatch)
	}

	partitionCount := utils.Max(uint64(1), uint64(threadCount)/2) // In/Out graph got half
	partitionWidth := utils.DivUp(vertexCount, partitionCount)

	c := DefaultConfig()
	c.SortBatchSize = 128
	c.BufferSize = utils.RoundUpPow(edgeCount + c.SortBatchSize*dispatch)
	c.InitVertexCount = vertexCount
	c.PartitionSize = partitionWidth

	c.BufferCount = 1
	c.AutoExtend = false
	c.BindCore = false
	c.DispatchThreads = int(dispatch)
	return c
}
