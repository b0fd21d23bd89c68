package symtab

import (
	"sync"

	"github.com/iwmforge/ebpfprof/symtab/elf"
	"github.com/iwmforge/ebpfprof/symtab/gcache"
)

// ElfCacheOptions sizes the two generational tiers backing ElfCache.
type ElfCacheOptions struct {
	BuildIDCacheSize int
	SameFileCacheSize int
	KeepRounds        gcache.Round
}

// ElfCache shares one *elf.SymbolNameTable across every process that maps
// the same binary, keyed first by build-id (stable across bind mounts
// and container filesystems) and, for binaries lacking one, by (dev,
// inode) instead.
//
// Grounded on common/src/ebpf/symtab/elf_cache.rs.
type ElfCache struct {
	mu           sync.Mutex
	byBuildID    *gcache.GCache[elf.BuildID, *elf.SymbolNameTable]
	byStat       *gcache.GCache[Stat, *elf.SymbolNameTable]
	keepRounds   gcache.Round
}

func NewElfCache(opts ElfCacheOptions) (*ElfCache, error) {
	byBuildID, err := gcache.New[elf.BuildID, *elf.SymbolNameTable](opts.BuildIDCacheSize)
	if err != nil {
		return nil, err
	}
	byStat, err := gcache.New[Stat, *elf.SymbolNameTable](opts.SameFileCacheSize)
	if err != nil {
		return nil, err
	}
	return &ElfCache{byBuildID: byBuildID, byStat: byStat, keepRounds: opts.KeepRounds}, nil
}

func (c *ElfCache) GetByBuildID(id elf.BuildID) (*elf.SymbolNameTable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byBuildID.Get(id)
}

func (c *ElfCache) CacheByBuildID(id elf.BuildID, v *elf.SymbolNameTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byBuildID.Put(id, v)
}

func (c *ElfCache) GetByStat(s Stat) (*elf.SymbolNameTable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byStat.Get(s)
}

func (c *ElfCache) CacheByStat(s Stat, v *elf.SymbolNameTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byStat.Put(s, v)
}

// NewRound advances both tiers' round counters, called once per
// collection round before any resolution happens.
func (c *ElfCache) NewRound() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byBuildID.NewRound()
	c.byStat.NewRound()
}

// Cleanup evicts entries unused for longer than the configured number of
// rounds, closing their underlying mmap'd files.
func (c *ElfCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byBuildID.Cleanup(c.keepRounds)
	c.byStat.Cleanup(c.keepRounds)
}

// ElfCacheDebugInfo reports the size of each tier for the debug/river
// snapshot exposed by the session.
type ElfCacheDebugInfo struct {
	BuildIDCacheSize int `river:"build_id_cache_size,attr,optional"`
	SameFileCacheSize int `river:"same_file_cache_size,attr,optional"`
}

func (c *ElfCache) DebugInfo() ElfCacheDebugInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ElfCacheDebugInfo{
		BuildIDCacheSize:  c.byBuildID.Len(),
		SameFileCacheSize: c.byStat.Len(),
	}
}
