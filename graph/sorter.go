package graph

import (
	"runtime"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dcsrlab/dcsr/utils"
)

const sorterSleep = 5 * time.Millisecond

// sorterLoop is the partition's dedicated sorter. It holds the reading
// mutex while ingestion is live, sorts whatever becomes visible, steals
// from peers when idle, and yields the mutex to readers once the freeze
// flag is up and the visible prefix is fully sorted.
func (g *Graph[V, W]) sorterLoop(p *Partition[V, W], core int) {
	defer g.wg.Done()

	if g.config.BindCore && core >= 0 {
		runtime.LockOSThread()
		utils.SetAffinityThisThread(core)
		defer runtime.UnlockOSThread()
	} else if g.config.BindNuma {
		runtime.LockOSThread()
		utils.SetAffinityThisThreadMultiCores(utils.CoresOnNumaNode(p.numaNode))
		defer runtime.UnlockOSThread()
	}
	log.Debug().Msg("[worker " + utils.V(g.graphID) + ":" + utils.F("%2d", p.pid) + "] start sorter loop on core " + utils.V(core))

	initialized := false
	idle := 0
	consecutiveSleep := 0
	sleepMillis := uint64(0)
	stealingPid := (p.pid + 1) % utils.Max(1, g.PartitionCount())

	for !g.stopFlag.Load() {
		// Wait until readers are done with the graph. The first pass always
		// takes the mutex so that initialized is signalled.
		for initialized && g.readFlag.Load() && !g.stopFlag.Load() {
			time.Sleep(time.Millisecond)
		}

		p.readingMu.Lock()
		if !initialized {
			close(p.initialized)
			initialized = true
		}
		// Internal loop to avoid repeated lock/unlock.
		for !g.stopFlag.Load() {
			if g.readFlag.Load() && p.VisibleSorted() {
				break // release the reading mutex to the readers
			}

			if p.SortTick() {
				idle = 0
				consecutiveSleep = 0
			} else {
				idle++
			}

			stole := false
			if consecutiveSleep > 2 {
				n := g.PartitionCount()
				for i := 0; i < n; i++ {
					if stealingPid == p.pid {
						stealingPid = (stealingPid + 1) % n
						break // sleep one round
					}
					if g.part(stealingPid).TrySteal() {
						stole = true
						break
					}
					stealingPid = (stealingPid + 1) % n
				}
			}

			if idle > 1 && !stole {
				g.totalSleepMillis.Add(uint64(sorterSleep / time.Millisecond))
				sleepMillis += uint64(sorterSleep / time.Millisecond)
				idle = 0
				consecutiveSleep++
				time.Sleep(sorterSleep)
			}
		}
		p.readingMu.Unlock()
		log.Trace().Msg("[worker " + utils.V(g.graphID) + ":" + utils.F("%2d", p.pid) + "] released reading mutex, slept (ms): " + utils.V(sleepMillis))
	}
}
