package elf

import (
	"debug/elf"
	"sort"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// FlatSymbolIndex merges STT_FUNC symbols from .symtab and .dynsym into
// one array sorted by value, so PCIndex binary search can drive address
// resolution without walking two separate tables at lookup time.
//
// Grounded on common/src/ebpf/symtab/elf/symbol_table.rs; names are
// stored resolved (debug/elf already demands a full string-table pass to
// hand back elf.Symbol.Name, so there is no offset left to defer here
// the way the Rust version does against its own raw section reader).
type FlatSymbolIndex struct {
	names  []string
	values *PCIndex
}

// SymbolNameTable resolves addresses to (possibly demangled) function
// names for one ELF file. It holds the mmap'd file open for the
// lifetime of the cache entry; Close releases it.
type SymbolNameTable struct {
	file  *MappedFile
	index FlatSymbolIndex
}

// BuildSymbolNameTable reads the STT_FUNC symbols out of .symtab and
// .dynsym (whichever are present) and builds a name table sorted by
// address for binary search resolution.
func BuildSymbolNameTable(file *MappedFile) (*SymbolNameTable, error) {
	type entry struct {
		value uint64
		name  string
	}
	var entries []entry

	collect := func(syms []elf.Symbol) {
		for _, s := range syms {
			if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 || s.Name == "" {
				continue
			}
			entries = append(entries, entry{value: s.Value, name: s.Name})
		}
	}
	if syms, err := file.File.Symbols(); err == nil {
		collect(syms)
	}
	if syms, err := file.File.DynamicSymbols(); err == nil {
		collect(syms)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].value < entries[j].value })

	idx := NewPCIndex(len(entries))
	names := make([]string, len(entries))
	for i, e := range entries {
		idx.Set(i, e.value)
		names[i] = demangleIfNeeded(e.name)
	}

	return &SymbolNameTable{
		file:  file,
		index: FlatSymbolIndex{names: names, values: idx},
	}, nil
}

func demangleIfNeeded(s string) string {
	if strings.HasPrefix(s, "_Z") {
		return demangle.Filter(s)
	}
	return s
}

// Resolve returns the demangled name of the function covering addr, or
// ok=false if no symbol in this table covers it.
func (t *SymbolNameTable) Resolve(addr uint64) (string, bool) {
	if t.index.values == nil || t.index.values.Len() == 0 {
		return "", false
	}
	i := t.index.values.FindIndex(addr)
	if i < 0 {
		return "", false
	}
	return t.index.names[i], true
}

// Size reports the number of resolvable symbols in this table.
func (t *SymbolNameTable) Size() int {
	return len(t.index.names)
}

// Close releases the underlying mmap'd file.
func (t *SymbolNameTable) Close() error {
	return t.file.Close()
}
