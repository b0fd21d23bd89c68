package symtab

import (
	"os"
	"path/filepath"
	"syscall"

	goelf "debug/elf"
	"errors"

	"github.com/iwmforge/ebpfprof/metrics"
	"github.com/iwmforge/ebpfprof/symtab/elf"
	"github.com/iwmforge/ebpfprof/symtab/procmap"
	"github.com/iwmforge/ebpfprof/symtab/symerr"
)

// ElfTable lazily resolves addresses within one mapped range of one
// process. Loading is deferred until the first Resolve call for the
// range, since most ranges mapped into a process are never sampled.
//
// Grounded on common/src/ebpf/symtab/elf_module.rs.
type ElfTable struct {
	root     string // e.g. /proc/<pid>/root, or "" for the host namespace
	procMap  procmap.ProcMap
	cache    *ElfCache
	metrics  *metrics.SymtabMetrics

	loaded       bool
	loadedCached bool
	dead         bool
	table        *elf.SymbolNameTable
	base         uint64
}

// NewElfTable constructs an ElfTable for one executable range; Resolve
// triggers the actual mmap and symbol parsing.
func NewElfTable(root string, pm procmap.ProcMap, cache *ElfCache, m *metrics.SymtabMetrics) *ElfTable {
	return &ElfTable{root: root, procMap: pm, cache: cache, metrics: m}
}

func (t *ElfTable) fullPath() string {
	if t.root == "" {
		return t.procMap.Pathname
	}
	return filepath.Join(t.root, t.procMap.Pathname)
}

func (t *ElfTable) load() {
	t.loaded = true
	path := t.fullPath()

	mf, err := elf.OpenMapped(path)
	if err != nil {
		t.metrics.ElfErrors.WithLabelValues(errorLabel(err)).Inc()
		t.dead = true
		return
	}

	t.base = t.computeBase(mf.File)

	buildID, bidErr := elf.ReadBuildID(mf.File)
	if bidErr == nil && !buildID.Empty() {
		if cached, ok := t.cache.GetByBuildID(buildID); ok {
			mf.Close()
			t.table = cached
			t.loadedCached = true
			return
		}
	}

	st, statErr := os.Stat(path)
	var fileStat Stat
	if statErr == nil {
		fileStat = statFromFileInfo(st)
		if cached, ok := t.cache.GetByStat(fileStat); ok {
			mf.Close()
			t.table = cached
			t.loadedCached = true
			return
		}
	}

	table, err := elf.BuildSymbolNameTable(mf)
	if err != nil {
		mf.Close()
		t.dead = true
		return
	}
	t.table = table

	if bidErr == nil && !buildID.Empty() {
		t.cache.CacheByBuildID(buildID, table)
	} else if statErr == nil {
		t.cache.CacheByStat(fileStat, table)
	}
}

// computeBase finds the PT_LOAD segment whose file offset equals the
// mapping's offset and returns the mapping start minus that segment's
// p_vaddr, so resolve can translate a process-relative PC back to a
// file-relative one; with no such segment it falls back to the mapping
// start minus its offset.
func (t *ElfTable) computeBase(f *goelf.File) uint64 {
	base := t.procMap.StartAddr - uint64(t.procMap.Offset)
	for _, p := range f.Progs {
		if p.Type == goelf.PT_LOAD && p.Off == uint64(t.procMap.Offset) {
			return t.procMap.StartAddr - p.Vaddr
		}
	}
	return base
}

// Resolve maps a whole-process virtual address to a function name,
// reloading the backing symbol table once if it turns out to have gone
// dead (e.g. cache entry closed from underneath it by Cleanup).
func (t *ElfTable) Resolve(pc uint64) (string, bool) {
	if !t.loaded {
		t.load()
	}
	if t.dead || t.table == nil {
		return "", false
	}

	relative := pc - t.base
	name, ok := t.table.Resolve(relative)
	if ok {
		return name, true
	}
	if !t.loadedCached {
		return "", false
	}

	t.table = nil
	t.loaded = false
	t.loadedCached = false
	t.load()
	if t.dead || t.table == nil {
		return "", false
	}
	return t.table.Resolve(relative)
}

func (t *ElfTable) Cleanup() {}

func errorLabel(err error) string {
	var se *symerr.Error
	if errors.As(err, &se) {
		return se.Kind.String()
	}
	return "unknown"
}

func statFromFileInfo(fi os.FileInfo) Stat {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return Stat{Dev: uint64(st.Dev), Inode: st.Ino}
	}
	return Stat{}
}
