// Package metrics wires the profiler's Prometheus instrumentation.
// Metric names are bit-exact with the rest of the deployment's naming
// scheme and must not be renamed independently of it.
//
// Grounded on common/src/ebpf/metrics/registry.rs, symtab.rs and
// ebpf_metrics.rs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registerer abstracts prometheus.Registerer so tests can use a fresh
// throwaway registry instead of the global default one.
type Registerer interface {
	RegisterGauge(name, help string) prometheus.Gauge
	RegisterCounter(name, help string) prometheus.Counter
	RegisterCounterVec(name, help string, labels []string) *prometheus.CounterVec
	RegisterHistogram(name, help string, buckets []float64) prometheus.Histogram
}

type promRegisterer struct {
	reg prometheus.Registerer
}

// NewRegisterer wraps a prometheus.Registerer (prometheus.DefaultRegisterer
// or a prometheus.NewRegistry() in tests).
func NewRegisterer(reg prometheus.Registerer) Registerer {
	return &promRegisterer{reg: reg}
}

func (r *promRegisterer) RegisterGauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	r.reg.MustRegister(g)
	return g
}

func (r *promRegisterer) RegisterCounter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	r.reg.MustRegister(c)
	return c
}

func (r *promRegisterer) RegisterCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	r.reg.MustRegister(c)
	return c
}

func (r *promRegisterer) RegisterHistogram(name, help string, buckets []float64) prometheus.Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets})
	r.reg.MustRegister(h)
	return h
}
