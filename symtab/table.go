package symtab

import (
	"strings"

	"github.com/iwmforge/ebpfprof/symtab/elf"
)

// SymbolTable resolves kernel or module addresses to a name. It is the
// generic interface WalkStack uses for whichever table covers a given
// PC: the kallsyms table, or a process's ProcTable.
//
// Grounded on common/src/ebpf/symtab/symtab.rs.
type SymbolTable interface {
	Resolve(addr uint64) (string, bool)
	Cleanup()
}

// ModuleResolver is implemented by symbol tables that can still name the
// containing module (e.g. a shared library path) even when the address
// itself doesn't resolve to a symbol. ProcTable implements it; the flat
// kallsyms SymbolTab doesn't need to since its module is always "kernel".
type ModuleResolver interface {
	ModuleAt(addr uint64) string
}

// Sym is one named address in a flat symbol table.
type Sym struct {
	Start  uint64
	Name   string
	Module string
}

// SymbolTab is a flat, address-sorted symbol table used for kernel
// symbols (kallsyms) where there is exactly one table for the whole
// machine rather than one per binary.
//
// Grounded on common/src/ebpf/symtab/table.rs.
type SymbolTab struct {
	symbols []Sym
	index   *elf.PCIndex
	base    uint64
}

// NewSymbolTab builds a SymbolTab from symbols, which must already be
// sorted by Start ascending.
func NewSymbolTab(symbols []Sym) *SymbolTab {
	idx := elf.NewPCIndex(len(symbols))
	for i, s := range symbols {
		idx.Set(i, s.Start)
	}
	return &SymbolTab{symbols: symbols, index: idx}
}

// Rebase shifts all lookups by base, used when a symbol table is shared
// across processes with address-space layout randomization disabled at
// different load addresses (not used for kallsyms, whose base is 0).
func (t *SymbolTab) Rebase(base uint64) {
	t.base = base
}

func (t *SymbolTab) Resolve(addr uint64) (string, bool) {
	if len(t.symbols) == 0 {
		return "", false
	}
	addr -= t.base
	i := t.index.FindIndex(addr)
	if i < 0 {
		return "", false
	}
	return t.symbols[i].Name, true
}

func (t *SymbolTab) Cleanup() {}

// Len reports the number of resolvable symbols.
func (t *SymbolTab) Len() int { return len(t.symbols) }

func trimModuleBrackets(s string) string {
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return s[1 : len(s)-1]
	}
	return s
}
