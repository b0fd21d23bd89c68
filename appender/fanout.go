// Package appender defines the narrow interface the collector pushes
// resolved stacks into, and a Fanout that replicates every round to
// several such appenders sequentially.
//
// Grounded on agent/src/appender.rs.
package appender

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iwmforge/ebpfprof/metrics"
)

// RawSample is the unit an Appender consumes once a collection round
// has symbolized and aggregated raw eBPF counts into an encoded pprof
// profile: the profile's bytes plus the stack/value(s) that produced
// it and an id identifying the builder it came from.
type RawSample struct {
	ID         string
	RawProfile []byte   // gzip-encoded pprof profile, as produced by ProfileBuilder.WriteGzip
	Stack      []string // innermost frame first
	Value      uint64
	Value2     uint64
}

// Appender receives one target's samples for a collection round. Real
// implementations (gRPC push, local file, remote write) live outside
// this repo's scope; this interface only lets the core collector
// compile and be tested against a fake.
type Appender interface {
	Append(ctx context.Context, labels map[string]string, samples []RawSample) error
}

// Appendable hands out a fresh Appender, mirroring the teacher's
// Fanout/AppenderImpl split so a single Fanout can be shared across
// goroutines while each caller gets its own lightweight handle.
type Appendable interface {
	Appender() Appender
}

// Fanout replicates every Append call to all of its children
// sequentially, never aborting early on a child's error — a failing
// sink is logged, not allowed to block the others. Failures are not
// counted in any metric and Append always returns nil.
type Fanout struct {
	logger      log.Logger
	children    []Appender
	componentID string
	writeLatency prometheus.Histogram
}

// NewFanout builds a Fanout over children, registering the
// iwm_fanout_latency histogram for this component.
func NewFanout(logger log.Logger, children []Appender, componentID string, reg metrics.Registerer) *Fanout {
	return &Fanout{
		logger:      logger,
		children:    children,
		componentID: componentID,
		writeLatency: reg.RegisterHistogram(
			"iwm_fanout_latency",
			"Write latency for sending to iwm profiles",
			prometheus.DefBuckets,
		),
	}
}

func (f *Fanout) Appender() Appender {
	return &fanoutAppender{f: f}
}

type fanoutAppender struct {
	f *Fanout
}

func (a *fanoutAppender) Append(ctx context.Context, labels map[string]string, samples []RawSample) error {
	f := a.f
	start := time.Now()
	for _, child := range f.children {
		if err := child.Append(ctx, labels, samples); err != nil {
			_ = level.Error(f.logger).Log("msg", "appender failed", "component", f.componentID, "err", err)
		}
	}
	f.writeLatency.Observe(time.Since(start).Seconds())
	return nil
}
