//go:build linux

package ebpfprof

import (
	"encoding/binary"
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iwmforge/ebpfprof/metrics"
	"github.com/iwmforge/ebpfprof/sd"
)

// fakeResolver resolves addresses from a fixed table and optionally
// reports a module name for addresses it doesn't know, exercising both
// the symtab.SymbolTable and symtab.ModuleResolver code paths WalkStack
// takes.
type fakeResolver struct {
	names   map[uint64]string
	modules map[uint64]string
}

func (f *fakeResolver) Resolve(addr uint64) (string, bool) {
	name, ok := f.names[addr]
	return name, ok
}

func (f *fakeResolver) Cleanup() {}

func (f *fakeResolver) ModuleAt(addr uint64) string {
	return f.modules[addr]
}

func encodeStack(ips ...uint64) []byte {
	buf := make([]byte, 127*8)
	for i, ip := range ips {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], ip)
	}
	return buf
}

func newTestSession() *session {
	return &session{
		logger: log.NewNopLogger(),
		options: SessionOptions{
			Metrics: &metrics.EbpfMetrics{Symtab: metrics.NewSymtabMetrics(metrics.NewRegisterer(prometheus.NewRegistry()))},
		},
	}
}

func TestWalkStack_ResolvesKnownSymbols(t *testing.T) {
	s := newTestSession()
	resolver := &fakeResolver{names: map[uint64]string{0x1000: "main", 0x2000: "foo"}}
	sb := &stackBuilder{}
	stats := StackResolveStats{}

	s.walkStack(sb, encodeStack(0x2000, 0x1000), resolver, &stats)

	if stats.known != 2 {
		t.Fatalf("expected 2 known frames, got %d", stats.known)
	}
	want := []string{"main", "foo"}
	if len(sb.stack) != len(want) {
		t.Fatalf("stack = %v, want %v", sb.stack, want)
	}
	for i, w := range want {
		if sb.stack[i] != w {
			t.Fatalf("stack[%d] = %q, want %q", i, sb.stack[i], w)
		}
	}
}

func TestWalkStack_FallsBackToModuleName(t *testing.T) {
	s := newTestSession()
	resolver := &fakeResolver{
		names:   map[uint64]string{},
		modules: map[uint64]string{0x3000: "/usr/lib/libc.so"},
	}
	sb := &stackBuilder{}
	stats := StackResolveStats{}

	s.walkStack(sb, encodeStack(0x3000), resolver, &stats)

	if stats.unknownSymbols != 1 || stats.known != 0 {
		t.Fatalf("stats = %+v, want 1 unknownSymbols", stats)
	}
	if len(sb.stack) != 1 || sb.stack[0] != "/usr/lib/libc.so" {
		t.Fatalf("stack = %v, want [/usr/lib/libc.so]", sb.stack)
	}
}

func TestWalkStack_UnknownAddressWithoutModule(t *testing.T) {
	s := newTestSession()
	resolver := &fakeResolver{names: map[uint64]string{}}
	sb := &stackBuilder{}
	stats := StackResolveStats{}

	s.walkStack(sb, encodeStack(0xdeadbeef), resolver, &stats)

	if stats.unknownModules != 1 {
		t.Fatalf("stats = %+v, want 1 unknownModules", stats)
	}
	if len(sb.stack) != 1 || sb.stack[0] != "[unknown]" {
		t.Fatalf("stack = %v, want [[unknown]]", sb.stack)
	}
}

func TestWalkStack_UnknownSymbolAddressOption(t *testing.T) {
	s := newTestSession()
	s.options.UnknownSymbolAddress = true
	resolver := &fakeResolver{names: map[uint64]string{}}
	sb := &stackBuilder{}
	stats := StackResolveStats{}

	s.walkStack(sb, encodeStack(0xcafe), resolver, &stats)

	if len(sb.stack) != 1 || sb.stack[0] != "cafe" {
		t.Fatalf("stack = %v, want [cafe]", sb.stack)
	}
}

func TestWalkStack_StopsAtZeroFrame(t *testing.T) {
	s := newTestSession()
	resolver := &fakeResolver{names: map[uint64]string{0x1: "a", 0x2: "b"}}
	sb := &stackBuilder{}
	stats := StackResolveStats{}

	s.walkStack(sb, encodeStack(0x2, 0, 0x1), resolver, &stats)

	if len(sb.stack) != 1 || sb.stack[0] != "b" {
		t.Fatalf("stack = %v, want [b] (walk must stop at the first zero frame)", sb.stack)
	}
}

func TestComm_FallsBackToPidUnknown(t *testing.T) {
	s := newTestSession()
	s.pids.all = map[uint32]procInfoLite{42: {comm: "nginx"}}

	if got := s.comm(42); got != "nginx" {
		t.Fatalf("comm(42) = %q, want nginx", got)
	}
	if got := s.comm(7); got != "pid_unknown" {
		t.Fatalf("comm(7) = %q, want pid_unknown", got)
	}
}

func TestStackBuilder_ResetClearsPriorFrames(t *testing.T) {
	sb := &stackBuilder{}
	sb.append("a")
	sb.append("b")
	sb.reset()
	sb.append("c")

	if len(sb.stack) != 1 || sb.stack[0] != "c" {
		t.Fatalf("stack = %v, want [c]", sb.stack)
	}
}

func TestCollectMetrics_TalliesByServiceName(t *testing.T) {
	s := newTestSession()
	target := sd.NewTarget("", 0, sd.DiscoveryTarget{"service_name": "checkout"})
	sb := &stackBuilder{stack: []string{"comm", "main", "foo"}}

	s.collectMetrics(target, &StackResolveStats{known: 1, unknownModules: 5}, sb)

	m := s.options.Metrics.Symtab
	if got := testutil.ToFloat64(m.UnknownStacks.WithLabelValues("checkout")); got != 1 {
		t.Fatalf("UnknownStacks = %v, want 1 (unknowns exceed knowns)", got)
	}
}
