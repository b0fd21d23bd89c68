package symtab

import (
	"strings"
	"testing"
)

func TestParseKallsyms_FiltersDataSymbols(t *testing.T) {
	data := "ffffffff81000000 T startup_64\n" +
		"ffffffff82000000 d some_data\n" +
		"ffffffff83000000 t helper_func\n"
	tab, err := ParseKallsyms(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if tab.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (data symbol filtered out)", tab.Len())
	}
}

func TestParseKallsyms_AllZerosYieldsEmptyTable(t *testing.T) {
	data := "0000000000000000 T hidden_by_kptr_restrict\n" +
		"0000000000000000 t another_hidden\n"
	tab, err := ParseKallsyms(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if tab.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 when kptr_restrict masks all addresses", tab.Len())
	}
}

func TestParseKallsyms_Resolve(t *testing.T) {
	data := "ffffffff81000000 T startup_64\n" +
		"ffffffff81001000 T secondary_func\n"
	tab, err := ParseKallsyms(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	name, ok := tab.Resolve(0xffffffff81000500)
	if !ok || name != "startup_64" {
		t.Errorf("Resolve = (%q, %v), want (startup_64, true)", name, ok)
	}
}

func TestParseKallsyms_BelowKernelAddrSpaceSkipped(t *testing.T) {
	data := "0000000000001000 T userspace_looking\n" +
		"ffffffff81000000 T real_kernel_sym\n"
	tab, err := ParseKallsyms(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if tab.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tab.Len())
	}
}
