package symtab

import (
	"testing"

	"github.com/iwmforge/ebpfprof/symtab/elf"
)

func TestElfCache_ByBuildID_RoundTrip(t *testing.T) {
	c, err := NewElfCache(ElfCacheOptions{BuildIDCacheSize: 8, SameFileCacheSize: 8, KeepRounds: 2})
	if err != nil {
		t.Fatal(err)
	}
	id := elf.BuildID{ID: "abc123", Type: elf.BuildIDGNU}
	tbl := &elf.SymbolNameTable{}

	c.CacheByBuildID(id, tbl)
	got, ok := c.GetByBuildID(id)
	if !ok || got != tbl {
		t.Fatal("expected cached table to round-trip by build id")
	}
}

func TestElfCache_ByStat_RoundTrip(t *testing.T) {
	c, err := NewElfCache(ElfCacheOptions{BuildIDCacheSize: 8, SameFileCacheSize: 8, KeepRounds: 2})
	if err != nil {
		t.Fatal(err)
	}
	st := Stat{Dev: 1, Inode: 2}
	tbl := &elf.SymbolNameTable{}

	c.CacheByStat(st, tbl)
	got, ok := c.GetByStat(st)
	if !ok || got != tbl {
		t.Fatal("expected cached table to round-trip by stat")
	}
}

func TestElfCache_DebugInfo(t *testing.T) {
	c, err := NewElfCache(ElfCacheOptions{BuildIDCacheSize: 8, SameFileCacheSize: 8, KeepRounds: 2})
	if err != nil {
		t.Fatal(err)
	}
	c.CacheByStat(Stat{Dev: 1, Inode: 2}, &elf.SymbolNameTable{})
	info := c.DebugInfo()
	if info.SameFileCacheSize != 1 {
		t.Fatalf("SameFileCacheSize = %d, want 1", info.SameFileCacheSize)
	}
}
