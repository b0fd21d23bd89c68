package symtab

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/iwmforge/ebpfprof/metrics"
	"github.com/iwmforge/ebpfprof/symtab/procmap"
)

// PidKey identifies a process for cache and lookup purposes; its own
// type so it can't be confused with an arbitrary uint32.
type PidKey uint32

// endOfStack is a sentinel PC written by some runtimes' unwind tables to
// mark the outermost synthetic frame; resolving it to a fixed name lets
// the stack walk record it as a named frame instead of a symbolization
// failure.
const (
	endOfStackCC = 0xcccccccccccccccc
	endOfStack90 = 0x9090909090909090
)

type elfRange struct {
	m     procmap.ProcMap
	table *ElfTable
}

// ProcTable resolves addresses for one process, backed by its parsed
// /proc/<pid>/maps ranges, each lazily bound to a (possibly shared)
// ElfTable the first time it's hit.
//
// Grounded on common/src/ebpf/symtab/proc.rs.
type ProcTable struct {
	pid         PidKey
	rootFS      string
	ranges      []elfRange
	fileToTable map[procmap.File]*ElfTable
	cache       *ElfCache
	metrics     *metrics.SymtabMetrics
	err         error
}

func NewProcTable(pid PidKey, cache *ElfCache, m *metrics.SymtabMetrics) *ProcTable {
	return &ProcTable{
		pid:         pid,
		rootFS:      fmt.Sprintf("/proc/%d/root", pid),
		fileToTable: make(map[procmap.File]*ElfTable),
		cache:       cache,
		metrics:     m,
	}
}

// Refresh re-reads /proc/<pid>/maps and rebuilds the range index,
// dropping ElfTables for files no longer mapped by this process. Once
// an error is recorded (e.g. the process exited) it short-circuits on
// every subsequent call, matching the "expected ENOENT" error policy.
func (t *ProcTable) Refresh() {
	if t.err != nil {
		return
	}

	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/maps", t.pid))
	if err != nil {
		t.err = err
		t.metrics.ProcErrors.WithLabelValues("read").Inc()
		return
	}

	maps, err := procmap.ParseExecutableRanges(strings.NewReader(string(data)))
	if err != nil {
		t.err = err
		t.metrics.ProcErrors.WithLabelValues("parse").Inc()
		return
	}

	keep := make(map[procmap.File]struct{}, len(maps))
	ranges := make([]elfRange, 0, len(maps))
	for _, m := range maps {
		table := t.getElfTable(m)
		if table == nil {
			continue
		}
		keep[m.Key()] = struct{}{}
		ranges = append(ranges, elfRange{m: m, table: table})
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].m.StartAddr < ranges[j].m.StartAddr })
	t.ranges = ranges

	for f := range t.fileToTable {
		if _, ok := keep[f]; !ok {
			delete(t.fileToTable, f)
		}
	}
}

func (t *ProcTable) getElfTable(m procmap.ProcMap) *ElfTable {
	f := m.Key()
	if table, ok := t.fileToTable[f]; ok {
		return table
	}
	if !strings.HasPrefix(m.Pathname, "/") {
		return nil
	}
	table := NewElfTable(t.rootFS, m, t.cache, t.metrics)
	t.fileToTable[f] = table
	return table
}

// Resolve finds the range covering pc via binary search over the sorted
// ranges and delegates to its ElfTable. It returns only the symbol name;
// the range's pathname is available separately through ModuleAt.
func (t *ProcTable) Resolve(pc uint64) (string, bool) {
	if pc == endOfStackCC || pc == endOfStack90 {
		return "end_of_stack", true
	}

	i := sort.Search(len(t.ranges), func(i int) bool { return t.ranges[i].m.EndAddr > pc })
	if i >= len(t.ranges) || pc < t.ranges[i].m.StartAddr {
		return "", false
	}
	r := t.ranges[i]
	name, ok := r.table.Resolve(pc)
	if !ok {
		return "", false
	}
	return name, true
}

// ModuleAt returns the pathname of the mapped range covering pc, or ""
// if pc falls outside every known range. Used to label frames whose
// symbol didn't resolve with the module they came from instead of
// "[unknown]".
func (t *ProcTable) ModuleAt(pc uint64) string {
	i := sort.Search(len(t.ranges), func(i int) bool { return t.ranges[i].m.EndAddr > pc })
	if i >= len(t.ranges) || pc < t.ranges[i].m.StartAddr {
		return ""
	}
	return t.ranges[i].m.Pathname
}

func (t *ProcTable) Cleanup() {
	for _, table := range t.fileToTable {
		table.Cleanup()
	}
}

// Error reports the error recorded by the most recent Refresh, if any —
// typically ENOENT once the process has exited.
func (t *ProcTable) Error() error { return t.err }

// Pid returns the process this table resolves addresses for.
func (t *ProcTable) Pid() PidKey { return t.pid }

// ProcTableDebugInfo summarizes a ProcTable for the river/debug API.
type ProcTableDebugInfo struct {
	Pid  PidKey `river:"pid,attr,optional"`
	Size int    `river:"size,attr,optional"`
}

func (t *ProcTable) DebugInfo() ProcTableDebugInfo {
	return ProcTableDebugInfo{Pid: t.pid, Size: len(t.fileToTable)}
}
