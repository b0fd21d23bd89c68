package elf

import "testing"

func TestDemangleIfNeeded(t *testing.T) {
	if got := demangleIfNeeded("main"); got != "main" {
		t.Errorf("plain C name should pass through unchanged, got %q", got)
	}
	mangled := "_Z3fooi"
	if got := demangleIfNeeded(mangled); got == mangled {
		t.Errorf("expected %q to be demangled", mangled)
	}
}

func TestSymbolNameTable_Resolve(t *testing.T) {
	idx := NewPCIndex(3)
	idx.Set(0, 0x1000)
	idx.Set(1, 0x2000)
	idx.Set(2, 0x3000)

	tbl := &SymbolNameTable{
		index: FlatSymbolIndex{
			names:  []string{"alpha", "beta", "gamma"},
			values: idx,
		},
	}

	name, ok := tbl.Resolve(0x2500)
	if !ok || name != "beta" {
		t.Errorf("Resolve(0x2500) = (%q, %v), want (beta, true)", name, ok)
	}

	_, ok = tbl.Resolve(0x500)
	if ok {
		t.Error("Resolve before first symbol should miss")
	}

	if tbl.Size() != 3 {
		t.Errorf("Size() = %d, want 3", tbl.Size())
	}
}
