// Package sd resolves kernel-observed pids into labeled profiling
// targets: discovery metadata plus an inferred service name and a
// stable fingerprint used to deduplicate profiles from the same
// logical target across collection rounds.
//
// Grounded on common/src/ebpf/sd/target.rs and sd/container_id.rs.
package sd

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	labelMetricName    = "__name__"
	labelContainerID   = "__container_id__"
	labelProcessPID    = "__process_pid__"
	labelServiceName   = "service_name"
	labelServiceNameK8S = "__meta_kubernetes_pod_annotation_pyroscope_io_service_name"
	metricValue        = "process_cpu"
	reservedLabelPrefix = "__"
)

// DiscoveryTarget is the raw label set a Source hands the profiler for
// one discovered pid, before reserved labels are stripped and the
// service name is inferred.
type DiscoveryTarget map[string]string

// Target is a fully resolved profiling target: its public label set,
// inferred service name, and a fingerprint over the label set used as
// the dedup/cache key in pprof building and target-finding.
type Target struct {
	labels      map[string]string
	serviceName string

	fingerprint         uint64
	fingerprintComputed bool
}

// NewTarget builds a Target from raw discovery labels plus the
// container id and pid the profiler itself observed, stripping every
// reserved (double-underscore) label except __name__ and injecting
// __container_id__/__process_pid__ when known.
func NewTarget(containerID string, pid uint32, raw DiscoveryTarget) *Target {
	serviceName := raw[labelServiceName]
	if serviceName == "" {
		serviceName = inferServiceName(raw)
	}

	lset := make(map[string]string, len(raw))
	for k, v := range raw {
		if strings.HasPrefix(k, reservedLabelPrefix) && k != labelMetricName {
			continue
		}
		lset[k] = v
	}
	if lset[labelMetricName] == "" {
		lset[labelMetricName] = metricValue
	}
	if lset[labelServiceName] == "" {
		lset[labelServiceName] = serviceName
	}
	if containerID != "" {
		lset[labelContainerID] = containerID
	}
	if pid != 0 {
		lset[labelProcessPID] = strconv.FormatUint(uint64(pid), 10)
	}

	return &Target{labels: lset, serviceName: serviceName}
}

// Labels returns the target's public label set; callers must treat the
// result as read-only.
func (t *Target) Labels() map[string]string {
	return t.labels
}

// ServiceName returns the resolved service name, falling back to
// "unspecified" when nothing in the discovery metadata identified one.
func (t *Target) ServiceName() string {
	return t.serviceName
}

// Fingerprint hashes the sorted label set with xxhash, memoizing the
// result since it's recomputed every round a profile is attributed to
// this target.
func (t *Target) Fingerprint() uint64 {
	if t.fingerprintComputed {
		return t.fingerprint
	}
	keys := make([]string, 0, len(t.labels))
	for k := range t.labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := xxhash.New()
	for _, k := range keys {
		h.WriteString(k)
		h.Write([]byte{0})
		h.WriteString(t.labels[k])
		h.Write([]byte{0})
	}
	t.fingerprint = h.Sum64()
	t.fingerprintComputed = true
	return t.fingerprint
}

func (t *Target) String() string {
	keys := make([]string, 0, len(t.labels))
	for k := range t.labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(strconv.Quote(t.labels[k]))
	}
	b.WriteByte('}')
	return b.String()
}

func inferServiceName(target DiscoveryTarget) string {
	if v := target[labelServiceNameK8S]; v != "" {
		return v
	}
	ns, container := target["__meta_kubernetes_namespace"], target["__meta_kubernetes_pod_container_name"]
	if ns != "" && container != "" {
		return "ebpf/" + ns + "/" + container
	}
	if v := target["__meta_docker_container_name"]; v != "" {
		return v
	}
	if v := target["__meta_dockerswarm_container_label_service_name"]; v != "" {
		return v
	}
	if v := target["__meta_dockerswarm_service_name"]; v != "" {
		return v
	}
	return "unspecified"
}
