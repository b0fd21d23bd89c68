package sd

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// cgroupContainerIDRe extracts the 64 hex character container id from a
// cgroup path like "/docker/<id>" or "/kubepods/.../<prefix>-<id>.scope".
var cgroupContainerIDRe = regexp.MustCompile(`^.*/(?:.*-)?([0-9a-f]{64})(?:\.|\s*$)`)

var knownContainerIDPrefixes = []string{"docker://", "containerd://", "cri-o://"}

// ContainerIDFromTarget extracts a container id from whichever discovery
// label carries one, preferring the profiler's own __container_id__
// label (set once a pid has already been resolved) over discovery
// metadata from Kubernetes or Docker.
//
// Grounded on common/src/ebpf/sd/container_id.rs.
func ContainerIDFromTarget(target DiscoveryTarget) (string, bool) {
	if cid := target[labelContainerID]; cid != "" {
		return cid, true
	}
	if cid := target["__meta_kubernetes_pod_container_id"]; cid != "" {
		if stripped, ok := containerIDFromK8s(cid); ok {
			return stripped, true
		}
	}
	if cid := target["__meta_docker_container_id"]; cid != "" {
		return cid, true
	}
	if cid := target["__meta_dockerswarm_task_container_id"]; cid != "" {
		return cid, true
	}
	return "", false
}

func containerIDFromK8s(id string) (string, bool) {
	for _, prefix := range knownContainerIDPrefixes {
		if strings.HasPrefix(id, prefix) {
			return strings.TrimPrefix(id, prefix), true
		}
	}
	return "", false
}

// ContainerIDFromCgroupLine extracts a container id from one line of
// /proc/<pid>/cgroup, or ok=false if the line doesn't match the known
// cgroup path shapes.
func ContainerIDFromCgroupLine(line string) (string, bool) {
	m := cgroupContainerIDRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ContainerIDFromPidCgroup reads /proc/<pid>/cgroup and returns the
// first container id found in it, or ok=false if the process has
// already exited or no line matches.
func ContainerIDFromPidCgroup(pid uint32) (string, bool) {
	path := fmt.Sprintf("/proc/%d/cgroup", pid)
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if cid, ok := ContainerIDFromCgroupLine(sc.Text()); ok {
			return cid, true
		}
	}
	return "", false
}
