package utils

import (
	"sync/atomic"
)

//go:nosplit
func AtomicMaxUint64(targetVal *uint64, new uint64) (old uint64) {
	for {
		old = atomic.LoadUint64(targetVal)
		if new <= old || atomic.CompareAndSwapUint64(targetVal, old, new) {
			return old
		}
	}
}

//go:nosplit
func AtomicMinUint64(targetVal *uint64, new uint64) (old uint64) {
	for {
		old = atomic.LoadUint64(targetVal)
		if new >= old || atomic.CompareAndSwapUint64(targetVal, old, new) {
			return old
		}
	}
}
