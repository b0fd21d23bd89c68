package metrics

import "github.com/prometheus/client_golang/prometheus"

// EbpfMetrics instruments the top-level profiling loop: how many
// targets are active, how many sessions have started/failed, and the
// size/shape of the pprof profiles produced each round.
type EbpfMetrics struct {
	TargetsActive                  prometheus.Gauge
	ProfilingSessionsTotal         prometheus.Counter
	ProfilingSessionsFailingTotal  prometheus.Counter
	PprofsTotal                    *prometheus.CounterVec
	PprofBytesTotal                *prometheus.CounterVec
	PprofSamplesTotal              *prometheus.CounterVec
	Symtab                         *SymtabMetrics
}

func NewEbpfMetrics(reg Registerer) *EbpfMetrics {
	return &EbpfMetrics{
		TargetsActive: reg.RegisterGauge(
			"iwm_ebpf_active_targets",
			"Current number of active targets being tracked by the ebpf component",
		),
		ProfilingSessionsTotal: reg.RegisterCounter(
			"iwm_ebpf_profiling_sessions_total",
			"Total number of profiling sessions started by the ebpf component",
		),
		ProfilingSessionsFailingTotal: reg.RegisterCounter(
			"iwm_ebpf_profiling_sessions_failing_total",
			"Total number of profiling sessions failed to complete by the ebpf component",
		),
		PprofsTotal: reg.RegisterCounterVec(
			"iwm_ebpf_pprofs_total",
			"Total number of pprof profiles collected by the ebpf component",
			[]string{"service_name"},
		),
		PprofBytesTotal: reg.RegisterCounterVec(
			"iwm_ebpf_pprof_bytes_total",
			"Total number of bytes of pprof profiles collected by the ebpf component",
			[]string{"service_name"},
		),
		PprofSamplesTotal: reg.RegisterCounterVec(
			"iwm_ebpf_pprof_samples_total",
			"Total number of samples in pprof profiles collected by the ebpf component",
			[]string{"service_name"},
		),
		Symtab: NewSymtabMetrics(reg),
	}
}
