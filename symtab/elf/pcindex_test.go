package elf

import "testing"

func TestPCIndex_FindIndex_Basic(t *testing.T) {
	idx := NewPCIndex(4)
	idx.Set(0, 100)
	idx.Set(1, 200)
	idx.Set(2, 300)
	idx.Set(3, 400)

	cases := map[uint64]int{
		50:  -1,
		100: 0,
		150: 0,
		250: 1,
		400: 3,
		500: 3,
	}
	for addr, want := range cases {
		if got := idx.FindIndex(addr); got != want {
			t.Errorf("FindIndex(%d) = %d, want %d", addr, got, want)
		}
	}
}

func TestPCIndex_FindIndex_Duplicates(t *testing.T) {
	idx := NewPCIndex(5)
	idx.Set(0, 100)
	idx.Set(1, 200)
	idx.Set(2, 200)
	idx.Set(3, 200)
	idx.Set(4, 300)

	if got := idx.FindIndex(250); got != 1 {
		t.Errorf("FindIndex(250) = %d, want 1 (first of duplicate run)", got)
	}
}

func TestPCIndex_PromotesTo64(t *testing.T) {
	idx := NewPCIndex(2)
	idx.Set(0, 10)
	idx.Set(1, 1<<40)

	if idx.v32 != nil {
		t.Fatal("expected promotion to 64-bit storage")
	}
	if idx.Get(0) != 10 || idx.Get(1) != 1<<40 {
		t.Fatal("values lost during promotion")
	}
	if got := idx.FindIndex(1 << 40); got != 1 {
		t.Errorf("FindIndex after promotion = %d, want 1", got)
	}
}
