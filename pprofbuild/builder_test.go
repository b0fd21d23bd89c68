package pprofbuild

import (
	"testing"

	"github.com/iwmforge/ebpfprof/sd"
)

func testTarget() *sd.Target {
	return sd.NewTarget("", 0, sd.DiscoveryTarget{"app": "checkout"})
}

func TestProfileBuilders_AggregatesRepeatedStacks(t *testing.T) {
	bs := NewProfileBuilders(BuildersOptions{SampleRate: 100})
	target := testTarget()

	stack := []string{"main", "foo", "bar"}
	bs.AddSample(Sample{Target: target, SampleType: SampleTypeCPU, Stack: stack, Value: 1})
	bs.AddSample(Sample{Target: target, SampleType: SampleTypeCPU, Stack: stack, Value: 1})

	builders := bs.Builders()
	if len(builders) != 1 {
		t.Fatalf("expected 1 builder, got %d", len(builders))
	}
	b := builders[0]
	if b.SampleCount() != 1 {
		t.Fatalf("expected identical stacks to aggregate into 1 sample, got %d", b.SampleCount())
	}

	wantPeriod := int64(1e9) / 100
	if b.prof.Sample[0].Value[0] != 2*wantPeriod {
		t.Fatalf("Value[0] = %d, want %d", b.prof.Sample[0].Value[0], 2*wantPeriod)
	}
}

func TestProfileBuilders_DistinctStacksCreateDistinctSamples(t *testing.T) {
	bs := NewProfileBuilders(BuildersOptions{SampleRate: 100})
	target := testTarget()

	bs.AddSample(Sample{Target: target, SampleType: SampleTypeCPU, Stack: []string{"a", "b"}, Value: 1})
	bs.AddSample(Sample{Target: target, SampleType: SampleTypeCPU, Stack: []string{"a", "c"}, Value: 1})

	b := bs.Builders()[0]
	if b.SampleCount() != 2 {
		t.Fatalf("expected 2 distinct samples, got %d", b.SampleCount())
	}
	if len(b.prof.Function) != 3 {
		t.Fatalf("expected 3 deduped functions (a,b,c), got %d", len(b.prof.Function))
	}
}

func TestProfileBuilders_PerPidSplitsBuilders(t *testing.T) {
	bs := NewProfileBuilders(BuildersOptions{SampleRate: 100, PerPIDProfile: true})
	target := testTarget()

	bs.AddSample(Sample{Target: target, Pid: 1, SampleType: SampleTypeCPU, Stack: []string{"a"}, Value: 1})
	bs.AddSample(Sample{Target: target, Pid: 2, SampleType: SampleTypeCPU, Stack: []string{"a"}, Value: 1})

	if len(bs.Builders()) != 2 {
		t.Fatalf("expected 2 builders when per-pid profiling is enabled, got %d", len(bs.Builders()))
	}
}

func TestProfileBuilder_MemorySampleValues(t *testing.T) {
	bs := NewProfileBuilders(BuildersOptions{})
	target := testTarget()
	bs.AddSample(Sample{Target: target, SampleType: SampleTypeMemory, Stack: []string{"alloc"}, Value: 10, Value2: 4096})

	b := bs.Builders()[0]
	sample := b.prof.Sample[0]
	if sample.Value[0] != 10 || sample.Value[1] != 4096 {
		t.Fatalf("memory sample values = %v, want [10 4096]", sample.Value)
	}
}

func TestProfileBuilder_WriteGzip(t *testing.T) {
	bs := NewProfileBuilders(BuildersOptions{SampleRate: 100})
	target := testTarget()
	bs.AddSample(Sample{Target: target, SampleType: SampleTypeCPU, Stack: []string{"main"}, Value: 1})

	data, err := bs.Builders()[0].WriteGzip()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty gzip output")
	}
	if data[0] != 0x1f || data[1] != 0x8b {
		t.Fatal("expected gzip magic bytes")
	}
}
