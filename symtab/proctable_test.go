package symtab

import (
	"testing"

	"github.com/iwmforge/ebpfprof/symtab/procmap"
)

func TestProcTable_Resolve_EndOfStackSentinel(t *testing.T) {
	pt := &ProcTable{}
	name, ok := pt.Resolve(0xcccccccccccccccc)
	if !ok || name != "end_of_stack" {
		t.Fatalf("Resolve(sentinel) = (%q, %v), want (end_of_stack, true)", name, ok)
	}
	name, ok = pt.Resolve(0x9090909090909090)
	if !ok || name != "end_of_stack" {
		t.Fatalf("Resolve(nop sentinel) = (%q, %v), want (end_of_stack, true)", name, ok)
	}
}

func TestProcTable_Resolve_MissOutsideRanges(t *testing.T) {
	pt := &ProcTable{
		ranges: []elfRange{
			{m: procmap.ProcMap{StartAddr: 0x1000, EndAddr: 0x2000}},
		},
	}
	_, ok := pt.Resolve(0x5000)
	if ok {
		t.Fatal("Resolve outside every range should miss")
	}
}
