//go:build linux

// Package ebpfprof implements the whole-machine continuous CPU profiler
// agent pipeline: a Session attaches a frame-pointer stack-walking BPF
// program to every online CPU, drains its two event channels (pid
// lifecycle requests and, separately, the aggregated stacks/counts
// maps), symbolizes with the symtab package, and hands resolved stacks
// to a caller-supplied callback once per collection round.
//
// It is a rough copy of profile.py from BCC tools, wired against this
// module's own symtab/sd/pprofbuild/perf packages instead of the
// upstream Pyroscope agent's:
//
//	https://github.com/iovisor/bcc/blob/master/tools/profile.py
package ebpfprof

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/btf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/samber/lo"

	"github.com/iwmforge/ebpfprof/cpuonline"
	"github.com/iwmforge/ebpfprof/metrics"
	"github.com/iwmforge/ebpfprof/perf"
	"github.com/iwmforge/ebpfprof/pyrobpf"
	"github.com/iwmforge/ebpfprof/sd"
	"github.com/iwmforge/ebpfprof/symtab"
)

// SessionOptions configures one profiling Session: what to collect, how
// aggressively to cache symbols, and where metrics land.
type SessionOptions struct {
	CollectUser               bool
	CollectKernel             bool
	UnknownSymbolModuleOffset bool // use libfoo.so+7f12ab34 (module plus the raw address in hex) instead of libfoo.so for unknown symbols
	UnknownSymbolAddress      bool // use cafebabe (the address in hex) instead of [unknown]
	CacheOptions              symtab.CacheOptions
	Metrics                   *metrics.EbpfMetrics
	SampleRate                int64
}

// SampleAggregation reports whether Value was already accumulated
// inside the BPF program (the frame-pointer path aggregates; a
// hypothetical unwinder that streams one event per sample would not).
type SampleAggregation bool

var (
	SampleAggregated    = SampleAggregation(true)
	SampleNotAggregated = SampleAggregation(false)
)

// CollectProfilesCallback receives one resolved, innermost-frame-first
// stack (the process comm is the last element) per distinct (target,
// stack) observed this round.
type CollectProfilesCallback func(target *sd.Target, stack []string, value uint64, pid uint32, aggregation SampleAggregation)

// Session is the agent pipeline's core: attach, collect, and tear down
// the whole-machine profiling program.
type Session interface {
	Start() error
	Stop()
	Update(SessionOptions) error
	UpdateTargets(args sd.TargetsOptions)
	CollectProfiles(f CollectProfilesCallback) error
	DebugInfo() SessionDebugInfo
}

// SessionDebugInfo snapshots the symbol cache's tiers for introspection.
type SessionDebugInfo struct {
	ElfCache symtab.ElfCacheDebugInfo
	PidCache symtab.GCacheDebugInfo[symtab.ProcTableDebugInfo]
}

type pids struct {
	// processes not selected for profiling by sd
	unknown map[uint32]struct{}
	// got a pid dead event or errored during refresh
	dead map[uint32]struct{}
	// contains all known pids, same as ebpf pids map but without unknowns
	all map[uint32]procInfoLite
}

type session struct {
	logger log.Logger

	targetFinder *sd.TargetFinder

	clockEvents []*perf.ClockEvent

	symCache *symtab.SymbolCache

	bpf pyrobpf.ProfileObjects

	eventsReader    *perf.Reader
	pidInfoRequests chan uint32
	deadPIDEvents   chan uint32
	pidExecRequests chan uint32

	options     SessionOptions
	roundNumber int

	// all Session methods are guarded by mutex; the three request-
	// processing goroutines touch Session fields only under it (the
	// perf-event reading goroutine never touches Session state).
	mutex   sync.Mutex
	wg      sync.WaitGroup
	started bool
	kprobes []link.Link

	pids pids
}

func NewSession(logger log.Logger, targetFinder *sd.TargetFinder, sessionOptions SessionOptions) (Session, error) {
	symCache, err := symtab.NewSymbolCache(logger, sessionOptions.CacheOptions, sessionOptions.Metrics.Symtab)
	if err != nil {
		return nil, err
	}

	return &session{
		logger:       logger,
		symCache:     symCache,
		targetFinder: targetFinder,
		options:      sessionOptions,
		pids: pids{
			unknown: make(map[uint32]struct{}),
			dead:    make(map[uint32]struct{}),
			all:     make(map[uint32]procInfoLite),
		},
	}, nil
}

func (s *session) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := rlimit.RemoveMemlock(); err != nil {
		return err
	}

	opts := &ebpf.CollectionOptions{
		Programs: ebpf.ProgramOptions{LogDisabled: true},
	}
	if err := pyrobpf.LoadProfileObjects(&s.bpf, opts); err != nil {
		s.stopLocked()
		return fmt.Errorf("load bpf objects: %w", err)
	}

	btf.FlushKernelSpec() // save some memory

	cpus, err := cpuonline.Get()
	if err != nil {
		s.stopLocked()
		return fmt.Errorf("get cpuonline: %w", err)
	}

	eventsReader, err := perf.NewReader(s.bpf.Events, cpus, perf.ReaderOptions{
		PerCPUBuffer: 4 * os.Getpagesize(),
		Watermark:    1,
	})
	if err != nil {
		s.stopLocked()
		return fmt.Errorf("perf new reader for events map: %w", err)
	}
	s.eventsReader = eventsReader

	s.clockEvents, err = perf.AttachAll(cpus, s.options.SampleRate, s.bpf.DoPerfEvent)
	if err != nil {
		s.stopLocked()
		return fmt.Errorf("attach perf events: %w", err)
	}

	if err := s.linkKProbes(); err != nil {
		s.stopLocked()
		return fmt.Errorf("link kprobes: %w", err)
	}

	pidInfoRequests := make(chan uint32, 1024)
	pidExecRequests := make(chan uint32, 1024)
	deadPIDsEvents := make(chan uint32, 1024)
	s.pidInfoRequests = pidInfoRequests
	s.pidExecRequests = pidExecRequests
	s.deadPIDEvents = deadPIDsEvents

	s.wg.Add(4)
	s.started = true
	go func() { defer s.wg.Done(); s.readEvents(eventsReader, pidInfoRequests, pidExecRequests, deadPIDsEvents) }()
	go func() { defer s.wg.Done(); s.processPidInfoRequests(pidInfoRequests) }()
	go func() { defer s.wg.Done(); s.processDeadPIDsEvents(deadPIDsEvents) }()
	go func() { defer s.wg.Done(); s.processPIDExecRequests(pidExecRequests) }()
	return nil
}

func (s *session) Stop() {
	s.stopAndWait()
}

func (s *session) Update(options SessionOptions) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.symCache.Update(options.CacheOptions)
	s.options = options
	return nil
}

func (s *session) UpdateTargets(args sd.TargetsOptions) {
	s.targetFinder.Update(args)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for pid := range s.pids.unknown {
		target := s.targetFinder.FindTarget(pid)
		if target == nil {
			continue
		}
		s.startProfilingLocked(pid, target)
		delete(s.pids.unknown, pid)
	}
}

func (s *session) CollectProfiles(cb CollectProfilesCallback) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.symCache.NewRound()
	s.roundNumber++

	if err := s.collectRegularProfile(cb); err != nil {
		return err
	}

	s.cleanup()
	return nil
}

func (s *session) DebugInfo() SessionDebugInfo {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return SessionDebugInfo{
		ElfCache: s.symCache.ElfCacheDebugInfo(),
		PidCache: s.symCache.PidCacheDebugInfo(),
	}
}

func (s *session) collectRegularProfile(cb CollectProfilesCallback) error {
	sb := &stackBuilder{}

	keys, values, batch, err := s.getCountsMapValues()
	if err != nil {
		return fmt.Errorf("get counts map: %w", err)
	}

	knownStacks := map[uint32]bool{}

	for i := range keys {
		ck := &keys[i]
		value := values[i]

		if ck.UserStack >= 0 {
			knownStacks[uint32(ck.UserStack)] = true
		}
		if ck.KernStack >= 0 {
			knownStacks[uint32(ck.KernStack)] = true
		}
		target := s.targetFinder.FindTarget(ck.Pid)
		if target == nil {
			continue
		}
		if _, ok := s.pids.dead[ck.Pid]; ok {
			continue
		}

		proc := s.symCache.GetProcTable(symtab.PidKey(ck.Pid))
		if proc.Error() != nil {
			s.pids.dead[uint32(proc.Pid())] = struct{}{}
			continue
		}

		var uStack []byte
		var kStack []byte
		if s.options.CollectUser {
			uStack = s.getStack(ck.UserStack)
		}
		if s.options.CollectKernel {
			kStack = s.getStack(ck.KernStack)
		}

		stats := StackResolveStats{}
		sb.reset()
		sb.append(s.comm(ck.Pid))
		if s.options.CollectUser {
			s.walkStack(sb, uStack, proc, &stats)
		}
		if s.options.CollectKernel {
			s.walkStack(sb, kStack, s.symCache.Kallsyms(), &stats)
		}
		if len(sb.stack) == 1 {
			continue // only comm
		}
		lo.Reverse(sb.stack)
		cb(target, sb.stack, uint64(value), ck.Pid, SampleAggregated)
		s.collectMetrics(target, &stats, sb)
	}

	if err := s.clearCountsMap(keys, batch); err != nil {
		return fmt.Errorf("clear counts map: %w", err)
	}
	if err := s.clearStacksMap(knownStacks); err != nil {
		return fmt.Errorf("clear stacks map: %w", err)
	}
	return nil
}

// getCountsMapValues drains the counts map for this round. When the
// kernel supports batch lookup-and-delete the map is cleared as part of
// the read itself (batch=true, clearCountsMap becomes a no-op);
// otherwise it falls back to a plain iterator and the caller must clear
// what it read via clearCountsMap.
func (s *session) getCountsMapValues() ([]pyrobpf.ProfileSampleKey, []uint64, bool, error) {
	m := s.bpf.Counts
	maxEntries := int(m.MaxEntries())
	keys := make([]pyrobpf.ProfileSampleKey, maxEntries)
	values := make([]uint64, maxEntries)

	var cursor pyrobpf.ProfileSampleKey
	n, err := m.BatchLookupAndDelete(nil, &cursor, keys, values, new(ebpf.BatchOptions))
	if err == nil || errors.Is(err, ebpf.ErrKeyNotExist) {
		return keys[:n], values[:n], true, nil
	}
	if !errors.Is(err, ebpf.ErrNotSupported) {
		return nil, nil, false, err
	}

	keys = keys[:0]
	values = values[:0]
	it := m.Iterate()
	var key pyrobpf.ProfileSampleKey
	var value uint64
	for it.Next(&key, &value) {
		keys = append(keys, key)
		values = append(values, value)
	}
	if err := it.Err(); err != nil {
		return nil, nil, false, err
	}
	return keys, values, false, nil
}

// clearCountsMap deletes every key read by getCountsMapValues, unless
// the batch path already drained the map as part of the read.
func (s *session) clearCountsMap(keys []pyrobpf.ProfileSampleKey, batch bool) error {
	if batch {
		return nil
	}
	for i := range keys {
		if err := s.bpf.Counts.Delete(&keys[i]); err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
			return err
		}
	}
	return nil
}

// clearStacksMap deletes every stack id referenced by this round's
// counts so the fixed-size stacks map doesn't fill up with stale traces
// across rounds.
func (s *session) clearStacksMap(knownStacks map[uint32]bool) error {
	for stackID := range knownStacks {
		if err := s.bpf.Stacks.Delete(stackID); err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
			return err
		}
	}
	return nil
}

func (s *session) comm(pid uint32) string {
	if c := s.pids.all[pid].comm; c != "" {
		return c
	}
	return "pid_unknown"
}

func (s *session) collectMetrics(target *sd.Target, stats *StackResolveStats, sb *stackBuilder) {
	m := s.options.Metrics.Symtab
	if m == nil {
		return
	}
	serviceName := target.ServiceName()
	m.KnownSymbols.WithLabelValues(serviceName).Add(float64(stats.known))
	m.UnknownSymbols.WithLabelValues(serviceName).Add(float64(stats.unknownSymbols))
	m.UnknownModules.WithLabelValues(serviceName).Add(float64(stats.unknownModules))
	if len(sb.stack) > 2 && stats.unknownSymbols+stats.unknownModules > stats.known {
		m.UnknownStacks.WithLabelValues(serviceName).Inc()
	}
}

func (s *session) stopAndWait() {
	s.mutex.Lock()
	s.stopLocked()
	s.mutex.Unlock()
	s.wg.Wait()
}

func (s *session) stopLocked() {
	perf.CloseAll(s.clockEvents)
	s.clockEvents = nil
	for _, kprobe := range s.kprobes {
		_ = kprobe.Close()
	}
	s.kprobes = nil
	_ = s.bpf.Close()
	if s.eventsReader != nil {
		if err := s.eventsReader.Close(); err != nil {
			_ = level.Error(s.logger).Log("err", err, "msg", "closing events map reader")
		}
		s.eventsReader = nil
	}
	if s.pidInfoRequests != nil {
		close(s.pidInfoRequests)
		s.pidInfoRequests = nil
	}
	if s.deadPIDEvents != nil {
		close(s.deadPIDEvents)
		s.deadPIDEvents = nil
	}
	if s.pidExecRequests != nil {
		close(s.pidExecRequests)
		s.pidExecRequests = nil
	}
	s.started = false
}

func (s *session) setPidConfig(pid uint32, pi procInfoLite, collectUser, collectKernel bool) {
	s.pids.all[pid] = pi
	config := &pyrobpf.ProfilePidConfig{
		Type:          uint8(pi.typ),
		CollectUser:   uint8FromBool(collectUser),
		CollectKernel: uint8FromBool(collectKernel),
	}
	if err := s.bpf.Pids.Update(&pid, config, ebpf.UpdateAny); err != nil {
		_ = level.Error(s.logger).Log("msg", "updating pids map", "err", err)
	}
}

func uint8FromBool(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (s *session) getStack(stackID int64) []byte {
	if stackID < 0 {
		return nil
	}
	res, err := s.bpf.Stacks.LookupBytes(uint32(stackID))
	if err != nil {
		return nil
	}
	return res
}

// StackResolveStats tallies how many frames of a stack resolved to a
// known symbol versus a known-module/unknown-symbol versus a wholly
// unknown address, driving the iwm_symtab_* metrics.
type StackResolveStats struct {
	known          uint32
	unknownSymbols uint32
	unknownModules uint32
}

// walkStack resolves every non-zero frame in stack (an array of 127
// little-endian uint64 instruction pointers) via resolver and appends
// the resolved names to sb, outermost frame first.
func (s *session) walkStack(sb *stackBuilder, stack []byte, resolver symtab.SymbolTable, stats *StackResolveStats) {
	if len(stack) == 0 {
		return
	}
	var frames []string
	for i := 0; i < 127; i++ {
		ip := binary.LittleEndian.Uint64(stack[i*8 : i*8+8])
		if ip == 0 {
			break
		}
		name, ok := resolver.Resolve(ip)
		if ok {
			stats.known++
			frames = append(frames, name)
			continue
		}

		module := ""
		if mr, isMR := resolver.(symtab.ModuleResolver); isMR {
			module = mr.ModuleAt(ip)
		}
		if module != "" {
			stats.unknownSymbols++
			if s.options.UnknownSymbolModuleOffset {
				frames = append(frames, fmt.Sprintf("%s+%x", module, ip))
			} else {
				frames = append(frames, module)
			}
			continue
		}

		stats.unknownModules++
		if s.options.UnknownSymbolAddress {
			frames = append(frames, fmt.Sprintf("%x", ip))
		} else {
			frames = append(frames, "[unknown]")
		}
	}
	lo.Reverse(frames)
	for _, f := range frames {
		sb.append(f)
	}
}

func (s *session) readEvents(events *perf.Reader, pidConfigRequest, pidExecRequest, deadPIDsEvents chan<- uint32) {
	defer events.Close()
	for {
		record, err := events.Read()
		if err != nil {
			if perf.IsClosed(err) {
				return
			}
			_ = level.Error(s.logger).Log("msg", "reading from perf event reader", "err", err)
			continue
		}

		if record.LostSamples != 0 {
			_ = level.Error(s.logger).Log("err", "perf event ring buffer full, dropped samples", "n", record.LostSamples)
		}

		if record.RawSample == nil {
			continue
		}
		if len(record.RawSample) < 8 {
			_ = level.Error(s.logger).Log("msg", "perf event record too small", "len", len(record.RawSample))
			continue
		}
		e := pyrobpf.ProfilePidEvent{
			Op:  binary.LittleEndian.Uint32(record.RawSample[0:4]),
			Pid: binary.LittleEndian.Uint32(record.RawSample[4:8]),
		}
		switch pyrobpf.PidOp(e.Op) {
		case pyrobpf.PidOpRequestUnknownProcessInfo:
			s.trySend(pidConfigRequest, e.Pid, "pid info request queue full, dropping request")
		case pyrobpf.PidOpDead:
			s.trySend(deadPIDsEvents, e.Pid, "dead pid info queue full, dropping event")
		case pyrobpf.PidOpRequestExecProcessInfo:
			s.trySend(pidExecRequest, e.Pid, "pid exec request queue full, dropping event")
		default:
			_ = level.Error(s.logger).Log("msg", "unknown perf event record", "op", e.Op, "pid", e.Pid)
		}
	}
}

func (s *session) trySend(ch chan<- uint32, pid uint32, dropMsg string) {
	select {
	case ch <- pid:
	default:
		_ = level.Error(s.logger).Log("msg", dropMsg, "pid", pid)
	}
}

func (s *session) processPidInfoRequests(requests <-chan uint32) {
	for pid := range requests {
		target := s.targetFinder.FindTarget(pid)
		_ = level.Debug(s.logger).Log("msg", "pid info request", "pid", pid, "target", target)
		s.handleNewPID(pid, target)
	}
}

func (s *session) processPIDExecRequests(requests <-chan uint32) {
	for pid := range requests {
		target := s.targetFinder.FindTarget(pid)
		_ = level.Debug(s.logger).Log("msg", "pid exec request", "pid", pid)
		s.handleNewPID(pid, target)
	}
}

func (s *session) handleNewPID(pid uint32, target *sd.Target) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, dead := s.pids.dead[pid]; dead {
		_ = level.Debug(s.logger).Log("msg", "pid request for dead pid", "pid", pid)
		return
	}
	if target == nil {
		s.saveUnknownPIDLocked(pid)
		return
	}
	s.startProfilingLocked(pid, target)
}

func (s *session) processDeadPIDsEvents(dead <-chan uint32) {
	for pid := range dead {
		_ = level.Debug(s.logger).Log("msg", "pid dead", "pid", pid)
		func() {
			s.mutex.Lock()
			defer s.mutex.Unlock()
			s.pids.dead[pid] = struct{}{} // keep them until next round
		}()
	}
}

func (s *session) startProfilingLocked(pid uint32, target *sd.Target) {
	if !s.started {
		return
	}
	typ := s.selectProfilingType(pid)
	s.setPidConfig(pid, typ, s.options.CollectUser, s.options.CollectKernel)
}

// procInfoLite is what the session remembers about a pid between a
// profiling-type selection and the next time it needs the exe/comm.
type procInfoLite struct {
	pid  uint32
	comm string
	exe  string
	typ  pyrobpf.ProfilingType
}

// selectProfilingType always routes to the frame-pointer stack walker:
// there is no Python interpreter stack unwinder in this profiler, only
// the pid→config map entry and ProfilingType value the kernel side
// still branches on.
func (s *session) selectProfilingType(pid uint32) procInfoLite {
	exePath, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		_ = s.procErrLogger(err).Log("err", err, "msg", "select profiling type failed", "pid", pid)
		return procInfoLite{pid: pid, typ: pyrobpf.ProfilingTypeError}
	}
	comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		_ = s.procErrLogger(err).Log("err", err, "msg", "select profiling type failed", "pid", pid)
		return procInfoLite{pid: pid, typ: pyrobpf.ProfilingTypeError}
	}
	if len(comm) > 0 && comm[len(comm)-1] == '\n' {
		comm = comm[:len(comm)-1]
	}
	_ = level.Debug(s.logger).Log("exe", exePath, "pid", pid)
	return procInfoLite{pid: pid, comm: string(comm), exe: filepath.Base(exePath), typ: pyrobpf.ProfilingTypeFramepointers}
}

func (s *session) procErrLogger(err error) log.Logger {
	if errors.Is(err, os.ErrNotExist) {
		return level.Debug(s.logger)
	}
	return level.Error(s.logger)
}

// saveUnknownPIDLocked remembers a pid seen before the first target
// discovery round completed, or one that started between sd runs; it's
// retried on the next UpdateTargets call.
func (s *session) saveUnknownPIDLocked(pid uint32) {
	s.pids.unknown[pid] = struct{}{}
}

func (s *session) linkKProbes() error {
	type hook struct {
		kprobe   string
		prog     *ebpf.Program
		required bool
	}
	archSys := "__x64_"
	if runtime.GOARCH == "arm64" {
		archSys = "__arm64_"
	}
	hooks := []hook{
		{kprobe: "disassociate_ctty", prog: s.bpf.DisassociateCtty, required: true},
		{kprobe: archSys + "sys_execve", prog: s.bpf.Exec, required: false},
		{kprobe: archSys + "sys_execveat", prog: s.bpf.Exec, required: false},
	}
	for _, h := range hooks {
		kp, err := link.Kprobe(h.kprobe, h.prog, nil)
		if err != nil {
			if h.required {
				return fmt.Errorf("link kprobe %s: %w", h.kprobe, err)
			}
			_ = level.Error(s.logger).Log("msg", "link kprobe", "kprobe", h.kprobe, "err", err)
			continue
		}
		s.kprobes = append(s.kprobes, kp)
	}
	return nil
}

func (s *session) cleanup() {
	s.symCache.Cleanup()

	for pid := range s.pids.dead {
		_ = level.Debug(s.logger).Log("msg", "cleanup dead pid", "pid", pid)
		delete(s.pids.dead, pid)
		delete(s.pids.unknown, pid)
		delete(s.pids.all, pid)
		s.symCache.RemoveDeadPID(symtab.PidKey(pid))
		if err := s.bpf.Pids.Delete(pid); err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
			_ = level.Error(s.logger).Log("msg", "delete pid config", "pid", pid, "err", err)
		}
		s.targetFinder.RemovePid(pid)
	}

	for pid := range s.pids.unknown {
		if _, err := os.Stat(fmt.Sprintf("/proc/%d", pid)); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				_ = level.Error(s.logger).Log("msg", "cleanup stat pid", "pid", pid, "err", err)
			}
			delete(s.pids.unknown, pid)
			delete(s.pids.all, pid)
			if err := s.bpf.Pids.Delete(pid); err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
				_ = level.Error(s.logger).Log("msg", "delete pid config", "pid", pid, "err", err)
			}
		}
	}

	if s.roundNumber%10 == 0 {
		s.checkStalePids()
	}
}

// checkStalePids iterates every pid still in the kernel-side pids map
// and deletes any whose /proc entry is gone; only needed in case the
// disassociate_ctty hook somehow missed a process death.
func (s *session) checkStalePids() {
	m := s.bpf.Pids
	mapSize := int(m.MaxEntries())
	nextKey := uint32(0)

	keys := make([]uint32, mapSize)
	values := make([]pyrobpf.ProfilePidConfig, mapSize)
	n, err := m.BatchLookup(nil, &nextKey, keys, values, new(ebpf.BatchOptions))
	_ = level.Debug(s.logger).Log("msg", "check stale pids", "count", n)

	for i := 0; i < n; i++ {
		if _, err := os.Stat(fmt.Sprintf("/proc/%d/status", keys[i])); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				_ = level.Error(s.logger).Log("msg", "check stale pids", "err", err)
			}
			if err := m.Delete(keys[i]); err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
				_ = level.Error(s.logger).Log("msg", "delete stale pid", "pid", keys[i], "err", err)
			}
			_ = level.Debug(s.logger).Log("msg", "stale pid deleted", "pid", keys[i])
		}
	}
	if err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
		_ = level.Error(s.logger).Log("msg", "check stale pids", "err", err)
	}
}

type stackBuilder struct {
	stack []string
}

func (s *stackBuilder) reset()            { s.stack = s.stack[:0] }
func (s *stackBuilder) append(sym string) { s.stack = append(s.stack, sym) }
