package symtab

import (
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/iwmforge/ebpfprof/metrics"
	"github.com/iwmforge/ebpfprof/symtab/gcache"
)

// CacheOptions sizes every cache tier SymbolCache owns: the per-process
// table cache, and the two ElfCache tiers shared across processes.
type CacheOptions struct {
	PidCacheSize      int
	BuildIDCacheSize  int
	SameFileCacheSize int
	KeepRounds        gcache.Round
}

// DefaultCacheOptions is a ready-made set of cache sizes for callers
// that have no configured values; the session does not apply it on its
// own.
var DefaultCacheOptions = CacheOptions{
	PidCacheSize:      239,
	BuildIDCacheSize:  161,
	SameFileCacheSize: 239,
	KeepRounds:        3,
}

// GCacheDebugInfo is the river-serializable snapshot of a GCache's size,
// generic over whatever per-entry debug type its caller wants reported.
type GCacheDebugInfo[V any] struct {
	Size int `river:"size,attr,optional"`
}

// SymbolCache owns one ProcTable per live pid plus the shared ElfCache
// tiers those ProcTables draw from; it is the single entry point
// session.go uses for symbolization.
//
// Grounded on common/src/ebpf/symtab/symbols.rs.
type SymbolCache struct {
	mu       sync.Mutex
	logger   log.Logger
	options  CacheOptions
	metrics  *metrics.SymtabMetrics
	elfCache *ElfCache
	pidCache *gcache.GCache[PidKey, *ProcTable]
	kallsyms *SymbolTab
}

func NewSymbolCache(logger log.Logger, options CacheOptions, m *metrics.SymtabMetrics) (*SymbolCache, error) {
	elfCache, err := NewElfCache(ElfCacheOptions{
		BuildIDCacheSize:  options.BuildIDCacheSize,
		SameFileCacheSize: options.SameFileCacheSize,
		KeepRounds:        options.KeepRounds,
	})
	if err != nil {
		return nil, err
	}
	pidCache, err := gcache.New[PidKey, *ProcTable](options.PidCacheSize)
	if err != nil {
		return nil, err
	}

	kallsyms, err := NewKallsyms()
	if err != nil {
		level.Warn(logger).Log("msg", "failed to load kallsyms, kernel frames will not resolve", "err", err)
		kallsyms = NewSymbolTab(nil)
	}

	return &SymbolCache{
		logger:   logger,
		options:  options,
		metrics:  m,
		elfCache: elfCache,
		pidCache: pidCache,
		kallsyms: kallsyms,
	}, nil
}

// GetProcTable returns (creating if necessary) the ProcTable for pid.
// A new table is filled from /proc/<pid>/maps when it is created; a
// cached table is returned as is, without re-reading the maps.
func (c *SymbolCache) GetProcTable(pid PidKey) *ProcTable {
	c.mu.Lock()
	defer c.mu.Unlock()

	table, err := c.pidCache.GetOrCreate(pid, func() (*ProcTable, error) {
		t := NewProcTable(pid, c.elfCache, c.metrics)
		t.Refresh()
		return t, nil
	})
	if err != nil {
		return nil
	}
	return table
}

// RemoveDeadPID drops the cached ProcTable for a pid the session has
// observed exit, so its ElfTables are released promptly instead of
// waiting for round-based eviction.
func (c *SymbolCache) RemoveDeadPID(pid PidKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.pidCache.Get(pid); ok {
		t.Cleanup()
	}
	c.pidCache.Remove(pid)
}

// Kallsyms returns the shared kernel symbol table used to resolve the
// kernel-space half of a mixed user/kernel stack.
func (c *SymbolCache) Kallsyms() *SymbolTab {
	return c.kallsyms
}

// NewRound advances the round counters on every cache tier; call this
// once per collection round before resolving any stacks.
func (c *SymbolCache) NewRound() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pidCache.NewRound()
	c.elfCache.NewRound()
}

// Cleanup evicts stale entries from every tier according to the
// configured KeepRounds.
func (c *SymbolCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pidCache.Cleanup(c.options.KeepRounds)
	c.elfCache.Cleanup()
}

// Update stores new cache options. Only KeepRounds is read afterwards,
// by Cleanup for the pid cache; the cache sizes and the ELF cache's
// keep-rounds stay as they were at construction.
func (c *SymbolCache) Update(options CacheOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = options
}

// ElfCacheDebugInfo reports the shared ELF cache's tier sizes.
func (c *SymbolCache) ElfCacheDebugInfo() ElfCacheDebugInfo {
	return c.elfCache.DebugInfo()
}

// PidCacheDebugInfo reports the per-process table cache's size.
func (c *SymbolCache) PidCacheDebugInfo() GCacheDebugInfo[ProcTableDebugInfo] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return GCacheDebugInfo[ProcTableDebugInfo]{Size: c.pidCache.Len()}
}
