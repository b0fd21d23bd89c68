// Package discovery defines the narrow interface the profiler uses to
// pull target label sets from whatever discovery mechanism the embedder
// wires up (static config, Kubernetes, Docker); the profiler itself
// only ever needs a flat snapshot of DiscoveryTarget maps per refresh.
package discovery

import "github.com/iwmforge/ebpfprof/sd"

// Source yields the current set of discovered targets. Implementations
// are expected to refresh their own view asynchronously and return
// quickly from Targets.
type Source interface {
	Targets() []sd.DiscoveryTarget
}

// StaticSource is the simplest Source: a fixed list configured once at
// startup, useful for tests and single-node deployments that don't run
// a separate service-discovery component.
type StaticSource struct {
	targets []sd.DiscoveryTarget
}

func NewStaticSource(targets []sd.DiscoveryTarget) *StaticSource {
	return &StaticSource{targets: targets}
}

func (s *StaticSource) Targets() []sd.DiscoveryTarget {
	return s.targets
}
