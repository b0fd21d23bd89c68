package sd

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TargetsOptions reconfigures a TargetFinder's known targets, applied
// wholesale on every discovery refresh.
type TargetsOptions struct {
	Targets            []DiscoveryTarget
	ContainerCacheSize int
}

// TargetFinder maps a kernel-observed pid to the Target whose discovery
// labels matched its container, returning nil if none did — never a
// default. Container ids are cached per-pid in an LRU since reading
// /proc/<pid>/cgroup on every sample would be far too costly.
//
// Grounded on common/src/ebpf/sd/target.rs.
type TargetFinder struct {
	mu           sync.Mutex
	cidToTarget  map[string]*Target
	pidToTarget  map[uint32]*Target
	containerIDs *lru.Cache[uint32, string]
}

func NewTargetFinder(containerCacheSize int) (*TargetFinder, error) {
	cache, err := lru.New[uint32, string](containerCacheSize)
	if err != nil {
		return nil, err
	}
	return &TargetFinder{
		cidToTarget:  make(map[string]*Target),
		pidToTarget:  make(map[uint32]*Target),
		containerIDs: cache,
	}, nil
}

// Update replaces the known target set wholesale: each DiscoveryTarget's
// container id (if any) is indexed by ContainerIDFromTarget.
func (f *TargetFinder) Update(opts TargetsOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cidToTarget := make(map[string]*Target, len(opts.Targets))
	for _, raw := range opts.Targets {
		cid, _ := ContainerIDFromTarget(raw)
		t := NewTarget(cid, 0, raw)
		if cid != "" {
			cidToTarget[cid] = t
		}
	}
	f.cidToTarget = cidToTarget
	f.pidToTarget = make(map[uint32]*Target)
}

// FindTarget resolves pid to a Target, consulting (in order) the
// per-pid cache and the container-id-to-target index via the cached
// container id. Returns nil if no match is found — never a default.
func (f *TargetFinder) FindTarget(pid uint32) *Target {
	f.mu.Lock()
	defer f.mu.Unlock()

	if t, ok := f.pidToTarget[pid]; ok {
		return t
	}

	cid, ok := f.containerIDs.Get(pid)
	if !ok {
		if resolved, found := ContainerIDFromPidCgroup(pid); found {
			cid = resolved
			f.containerIDs.Add(pid, cid)
			ok = true
		}
	}

	var t *Target
	if ok && cid != "" {
		t = f.cidToTarget[cid]
	}
	if t != nil {
		f.pidToTarget[pid] = t
	}
	return t
}

// RemovePid drops cached pid-level resolution, called when the session
// observes the process has exited.
func (f *TargetFinder) RemovePid(pid uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pidToTarget, pid)
	f.containerIDs.Remove(pid)
}

// DebugInfo reports index sizes for the debug/river snapshot.
type TargetFinderDebugInfo struct {
	Targets int `river:"targets,attr,optional"`
}

func (f *TargetFinder) DebugInfo() TargetFinderDebugInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return TargetFinderDebugInfo{Targets: len(f.cidToTarget)}
}
