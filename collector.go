//go:build linux

package ebpfprof

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/iwmforge/ebpfprof/appender"
	"github.com/iwmforge/ebpfprof/clock"
	"github.com/iwmforge/ebpfprof/discovery"
	"github.com/iwmforge/ebpfprof/metrics"
	"github.com/iwmforge/ebpfprof/pprofbuild"
	"github.com/iwmforge/ebpfprof/sd"
)

// CollectorOptions configures the tick-driven loop that turns a
// Session's raw samples into pprof profiles and hands them to an
// Appender.
type CollectorOptions struct {
	CollectInterval time.Duration
	BuildersOptions pprofbuild.BuildersOptions
}

// Collector owns the profiling Session and drives it on a fixed
// interval: refresh targets from the discovery Source, collect one
// round of samples, fold them into per-target pprof profiles, and push
// the result through the Appendable.
type Collector struct {
	logger  log.Logger
	session Session
	source  discovery.Source
	sink    appender.Appendable
	metrics *metrics.EbpfMetrics
	ticker  clock.Ticker
	options CollectorOptions

	stop chan struct{}
	done chan struct{}
}

func NewCollector(logger log.Logger, session Session, source discovery.Source, sink appender.Appendable, m *metrics.EbpfMetrics, options CollectorOptions) *Collector {
	return &Collector{
		logger:  logger,
		session: session,
		source:  source,
		sink:    sink,
		metrics: m,
		ticker:  clock.NewTicker(options.CollectInterval),
		options: options,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run starts the Session and blocks, collecting one round per tick
// until ctx is done or Stop is called.
func (c *Collector) Run(ctx context.Context) error {
	defer close(c.done)

	if err := c.session.Start(); err != nil {
		c.metrics.ProfilingSessionsFailingTotal.Inc()
		return fmt.Errorf("start profiling session: %w", err)
	}
	c.metrics.ProfilingSessionsTotal.Inc()
	defer c.session.Stop()

	c.refreshTargets()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.stop:
			return nil
		case <-c.ticker.C():
			c.refreshTargets()
			if err := c.collectRound(ctx); err != nil {
				_ = level.Error(c.logger).Log("msg", "collect round failed", "err", err)
			}
		}
	}
}

// Stop ends Run's loop and waits for it to return.
func (c *Collector) Stop() {
	close(c.stop)
	c.ticker.Stop()
	<-c.done
}

func (c *Collector) refreshTargets() {
	targets := c.source.Targets()
	c.metrics.TargetsActive.Set(float64(len(targets)))
	c.session.UpdateTargets(sd.TargetsOptions{Targets: targets})
}

func (c *Collector) collectRound(ctx context.Context) error {
	builders := pprofbuild.NewProfileBuilders(c.options.BuildersOptions)

	err := c.session.CollectProfiles(func(target *sd.Target, stack []string, value uint64, pid uint32, aggregation SampleAggregation) {
		builders.AddSample(pprofbuild.Sample{
			Target:     target,
			Pid:        pid,
			SampleType: pprofbuild.SampleTypeCPU,
			Stack:      stack,
			Value:      value,
		})
	})
	if err != nil {
		return fmt.Errorf("collect profiles: %w", err)
	}

	appenderHandle := c.sink.Appender()
	for _, b := range builders.Builders() {
		if err := c.pushBuilder(ctx, appenderHandle, b); err != nil {
			_ = level.Error(c.logger).Log("msg", "append profile failed", "target", b.Target.ServiceName(), "err", err)
		}
	}
	return nil
}

// pushBuilder encodes one built profile and hands it to the sink,
// recording its byte/sample counts against the target's service name.
func (c *Collector) pushBuilder(ctx context.Context, a appender.Appender, b *pprofbuild.ProfileBuilder) error {
	serviceName := b.Target.ServiceName()
	payload, err := b.WriteGzip()
	if err != nil {
		return fmt.Errorf("encode pprof: %w", err)
	}

	c.metrics.PprofsTotal.WithLabelValues(serviceName).Inc()
	c.metrics.PprofBytesTotal.WithLabelValues(serviceName).Add(float64(len(payload)))
	c.metrics.PprofSamplesTotal.WithLabelValues(serviceName).Add(float64(b.SampleCount()))

	samples := []appender.RawSample{{ID: serviceName, RawProfile: payload}}
	return a.Append(ctx, b.Target.Labels(), samples)
}
