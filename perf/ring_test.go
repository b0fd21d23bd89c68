package perf

import (
	"os"
	"testing"
)

func TestPerfBufferSize_RoundsToPowerOfTwoPagesPlusMeta(t *testing.T) {
	pageSize := os.Getpagesize()
	got := perfBufferSize(3 * pageSize)
	want := 5 * pageSize // 1 meta page + 4 data pages (next pow2 >= 3)
	if got != want {
		t.Fatalf("perfBufferSize(3 pages) = %d, want %d", got, want)
	}
}

func TestPerfBufferSize_ExactPowerOfTwo(t *testing.T) {
	pageSize := os.Getpagesize()
	got := perfBufferSize(4 * pageSize)
	want := 5 * pageSize
	if got != want {
		t.Fatalf("perfBufferSize(4 pages) = %d, want %d", got, want)
	}
}
