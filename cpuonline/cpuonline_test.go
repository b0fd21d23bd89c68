package cpuonline

import (
	"reflect"
	"testing"
)

func TestParseCPURange(t *testing.T) {
	cases := []struct {
		in   string
		want []int
	}{
		{"0-3\n", []int{0, 1, 2, 3}},
		{"0,2-3", []int{0, 2, 3}},
		{"0", []int{0}},
		{"", nil},
	}
	for _, c := range cases {
		got, err := parseCPURange(c.in)
		if err != nil {
			t.Fatalf("parseCPURange(%q): %v", c.in, err)
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("parseCPURange(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseCPURange_InvalidRejected(t *testing.T) {
	if _, err := parseCPURange("x-3"); err == nil {
		t.Fatal("expected error for malformed range")
	}
}
