// Package cpuonline reads the set of CPUs the kernel currently has
// online, used to size the per-CPU perf ring/map arrays the profiling
// session attaches to.
//
// Grounded on common/src/ebpf/cpuonline/cpuonline.rs.
package cpuonline

import (
	"os"
	"strconv"
	"strings"

	"github.com/iwmforge/ebpfprof/symtab/symerr"
)

const onlineCPUsPath = "/sys/devices/system/cpu/online"

// Get returns the online CPU numbers in ascending order, e.g. [0 1 2 3]
// for "0-3" or [0 2 3] for "0,2-3".
func Get() ([]int, error) {
	buf, err := os.ReadFile(onlineCPUsPath)
	if err != nil {
		return nil, symerr.Wrap(symerr.OSError, err, "read "+onlineCPUsPath)
	}
	return parseCPURange(string(buf))
}

func parseCPURange(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var cpus []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		bounds := strings.SplitN(part, "-", 2)
		first, err := strconv.Atoi(bounds[0])
		if err != nil {
			return nil, symerr.Wrap(symerr.InvalidData, err, "parse cpu range "+part)
		}
		if len(bounds) == 1 {
			cpus = append(cpus, first)
			continue
		}

		last, err := strconv.Atoi(bounds[1])
		if err != nil {
			return nil, symerr.Wrap(symerr.InvalidData, err, "parse cpu range "+part)
		}
		for n := first; n <= last; n++ {
			cpus = append(cpus, n)
		}
	}
	return cpus, nil
}
