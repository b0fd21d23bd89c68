// Package pprofbuild assembles symbolized stacks into pprof profiles,
// one ProfileBuilder per distinct (target, pid, sample type) combination
// observed in a collection round.
//
// Grounded on iwm/src/ebpf/pprof/mod.rs and common/src/ebpf/pprof/pprof.rs;
// it uses github.com/google/pprof/profile for the wire format instead of
// hand-rolling protobuf encoding, since the Go ecosystem's canonical
// pprof representation already provides that plus gzip writing.
package pprofbuild

import (
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/pprof/profile"

	"github.com/iwmforge/ebpfprof/sd"
)

// SampleType distinguishes the two profile kinds the agent-side eBPF
// programs can produce; each gets its own sample/period-type semantics.
type SampleType int

const (
	SampleTypeCPU SampleType = iota
	SampleTypeMemory
)

// Sample is one resolved stack plus its associated value(s), ready to be
// folded into a ProfileBuilder.
type Sample struct {
	Target     *sd.Target
	Pid        uint32
	SampleType SampleType
	Stack      []string // innermost frame first
	Value      uint64
	Value2     uint64 // second value channel (e.g. alloc_space) for memory samples
}

// BuildersOptions configures period/dedup semantics shared by every
// ProfileBuilder a ProfileBuilders instance creates.
type BuildersOptions struct {
	SampleRate     int64 // Hz, used to compute the CPU sample period
	PerPIDProfile  bool  // key builders by pid in addition to target labels
}

type builderKey struct {
	labelsHash uint64
	pid        uint32
	sampleType SampleType
}

// ProfileBuilders fans incoming samples out to one ProfileBuilder per
// distinct (target labels, optionally pid, sample type), creating each
// lazily on first use.
type ProfileBuilders struct {
	opt      BuildersOptions
	builders map[builderKey]*ProfileBuilder
}

func NewProfileBuilders(opt BuildersOptions) *ProfileBuilders {
	return &ProfileBuilders{opt: opt, builders: make(map[builderKey]*ProfileBuilder)}
}

// AddSample routes sample to its builder, creating one if this is the
// first sample seen for that (target, pid, sample type) this round.
func (bs *ProfileBuilders) AddSample(sample Sample) {
	b := bs.builderFor(sample)
	b.addSample(sample)
}

// Builders exposes every builder created this round, keyed by nothing
// in particular — callers range over the returned slice to flush them.
func (bs *ProfileBuilders) Builders() []*ProfileBuilder {
	out := make([]*ProfileBuilder, 0, len(bs.builders))
	for _, b := range bs.builders {
		out = append(out, b)
	}
	return out
}

func (bs *ProfileBuilders) builderFor(sample Sample) *ProfileBuilder {
	k := builderKey{labelsHash: sample.Target.Fingerprint(), sampleType: sample.SampleType}
	if bs.opt.PerPIDProfile {
		k.pid = sample.Pid
	}
	if b, ok := bs.builders[k]; ok {
		return b
	}
	b := newProfileBuilder(sample.Target, sample.SampleType, bs.opt.SampleRate)
	bs.builders[k] = b
	return b
}

// ProfileBuilder accumulates samples for one output profile: dedup maps
// for functions/locations keep the pprof encoding dense (1-based ids, no
// duplicate entries), and sampleHashToIndex folds repeated stacks into a
// single Sample with an accumulated value.
//
// Grounded on iwm/src/ebpf/pprof/mod.rs's ProfileBuilder.
type ProfileBuilder struct {
	Target *sd.Target

	prof *profile.Profile

	locations       map[string]*profile.Location
	functions       map[string]*profile.Function
	sampleHashToIdx map[uint64]int

	sampleType SampleType
}

func newProfileBuilder(target *sd.Target, st SampleType, sampleRateHz int64) *ProfileBuilder {
	prof := &profile.Profile{
		TimeNanos: time.Now().UnixNano(),
	}

	switch st {
	case SampleTypeCPU:
		prof.SampleType = []*profile.ValueType{{Type: "cpu", Unit: "nanoseconds"}}
		prof.PeriodType = &profile.ValueType{Type: "cpu", Unit: "nanoseconds"}
		if sampleRateHz <= 0 {
			sampleRateHz = 100
		}
		prof.Period = int64(time.Second) / sampleRateHz
		prof.DurationNanos = prof.Period
	case SampleTypeMemory:
		prof.SampleType = []*profile.ValueType{
			{Type: "alloc_objects", Unit: "count"},
			{Type: "alloc_space", Unit: "bytes"},
		}
		prof.PeriodType = &profile.ValueType{Type: "space", Unit: "bytes"}
		prof.Period = 512 * 1024
		prof.DurationNanos = prof.Period
	}

	return &ProfileBuilder{
		Target:          target,
		prof:            prof,
		locations:       make(map[string]*profile.Location),
		functions:       make(map[string]*profile.Function),
		sampleHashToIdx: make(map[uint64]int),
		sampleType:      st,
	}
}

func (b *ProfileBuilder) addSample(s Sample) {
	locIDs := make([]uint64, 0, len(s.Stack))
	locs := make([]*profile.Location, 0, len(s.Stack))
	for _, frame := range s.Stack {
		loc := b.addLocation(frame)
		locs = append(locs, loc)
		locIDs = append(locIDs, loc.ID)
	}

	h := hashLocationIDs(locIDs)
	if idx, ok := b.sampleHashToIdx[h]; ok {
		b.addValue(b.prof.Sample[idx], s)
		return
	}

	sample := &profile.Sample{
		Location: locs,
		Value:    b.zeroValue(),
	}
	b.addValue(sample, s)
	b.sampleHashToIdx[h] = len(b.prof.Sample)
	b.prof.Sample = append(b.prof.Sample, sample)
}

func (b *ProfileBuilder) zeroValue() []int64 {
	if b.sampleType == SampleTypeCPU {
		return []int64{0}
	}
	return []int64{0, 0}
}

func (b *ProfileBuilder) addValue(sample *profile.Sample, s Sample) {
	if b.sampleType == SampleTypeCPU {
		sample.Value[0] += int64(s.Value) * b.prof.Period
		return
	}
	sample.Value[0] += int64(s.Value)
	sample.Value[1] += int64(s.Value2)
}

func (b *ProfileBuilder) addLocation(function string) *profile.Location {
	if loc, ok := b.locations[function]; ok {
		return loc
	}
	fn := b.addFunction(function)
	loc := &profile.Location{
		ID:   uint64(len(b.prof.Location)) + 1,
		Line: []profile.Line{{Function: fn}},
	}
	b.locations[function] = loc
	b.prof.Location = append(b.prof.Location, loc)
	return loc
}

func (b *ProfileBuilder) addFunction(name string) *profile.Function {
	if fn, ok := b.functions[name]; ok {
		return fn
	}
	fn := &profile.Function{
		ID:   uint64(len(b.prof.Function)) + 1,
		Name: name,
	}
	b.functions[name] = fn
	b.prof.Function = append(b.prof.Function, fn)
	return fn
}

func hashLocationIDs(ids []uint64) uint64 {
	h := xxhash.New()
	buf := make([]byte, 8)
	for _, id := range ids {
		for i := 0; i < 8; i++ {
			buf[i] = byte(id >> (8 * i))
		}
		h.Write(buf)
	}
	return h.Sum64()
}

// SampleCount reports how many distinct stacks this builder holds, used
// for the iwm_ebpf_pprof_samples_total metric.
func (b *ProfileBuilder) SampleCount() int {
	return len(b.prof.Sample)
}

// Profile returns the underlying *profile.Profile as built so far; it
// is not validated here.
func (b *ProfileBuilder) Profile() *profile.Profile {
	return b.prof
}
