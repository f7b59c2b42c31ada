package utils

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// Pins the calling thread to a single logical core.
// Callers should hold runtime.LockOSThread for the pin to mean anything.
func SetAffinityThisThread(core int) {
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		log.Panic().Err(err).Msg("SchedSetaffinity failed for core " + V(core))
	}
}

// Pins the calling thread to a set of logical cores.
func SetAffinityThisThreadMultiCores(cores []int) {
	if len(cores) == 0 {
		return
	}
	var set unix.CPUSet
	set.Zero()
	for _, c := range cores {
		set.Set(c)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		log.Panic().Err(err).Msg("SchedSetaffinity failed")
	}
}

// Number of NUMA nodes on this machine, from sysfs. At least 1.
func NumaNodeCount() int {
	count := 0
	for {
		if _, err := os.Stat(nodePath(count)); err != nil {
			break
		}
		count++
	}
	if count == 0 {
		return 1
	}
	return count
}

// Logical cores belonging to one NUMA node. Falls back to all cores when
// the topology is not exposed (non-linux, containers).
func CoresOnNumaNode(node int) []int {
	data, err := os.ReadFile(nodePath(node) + "/cpulist")
	if err != nil {
		return AllCores()
	}
	return parseCPUList(strings.TrimSpace(string(data)))
}

// All logical cores usable by this process.
func AllCores() []int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		log.Panic().Err(err).Msg("SchedGetaffinity failed")
	}
	cores := make([]int, 0, set.Count())
	for c := 0; c < len(set)*64; c++ {
		if set.IsSet(c) {
			cores = append(cores, c)
		}
	}
	return cores
}

func nodePath(node int) string {
	return "/sys/devices/system/node/node" + strconv.Itoa(node)
}

// Parses the sysfs "0-3,8-11" range syntax.
func parseCPUList(s string) (cores []int) {
	if s == "" {
		return nil
	}
	for _, part := range strings.Split(s, ",") {
		if lo, hi, found := strings.Cut(part, "-"); found {
			start, err1 := strconv.Atoi(lo)
			end, err2 := strconv.Atoi(hi)
			if err1 != nil || err2 != nil {
				continue
			}
			for c := start; c <= end; c++ {
				cores = append(cores, c)
			}
		} else if c, err := strconv.Atoi(part); err == nil {
			cores = append(cores, c)
		}
	}
	return cores
}
