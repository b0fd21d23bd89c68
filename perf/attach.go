package perf

import (
	"fmt"
	"unsafe"

	"github.com/cilium/ebpf"
	"golang.org/x/sys/unix"
)

// createPerfEvent opens the PERF_TYPE_SOFTWARE/PERF_COUNT_SW_BPF_OUTPUT
// event a BPF program's bpf_perf_event_output call writes into, on the
// given CPU, enabled on open and watermark-triggered so userspace wakes
// only once at least watermark bytes have accumulated.
func createPerfEvent(cpu, watermark int) (int, error) {
	attr := unix.PerfEventAttr{
		Type:        unix.PERF_TYPE_SOFTWARE,
		Config:      unix.PERF_COUNT_SW_BPF_OUTPUT,
		Bits:        unix.PerfBitWatermark,
		Sample_type: unix.PERF_SAMPLE_RAW,
		Wakeup:      uint32(watermark),
	}
	attr.Size = uint32(unsafe.Sizeof(attr))

	fd, err := unix.PerfEventOpen(&attr, -1, cpu, -1, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

// ClockEvent is the CPU-clock perf_event that drives one CPU's sampling
// interrupt: it carries no ring buffer of its own, it only triggers the
// attached BPF program sampleRate times per second.
type ClockEvent struct {
	fd int
}

// OpenClockEvent opens a disabled, per-CPU PERF_COUNT_SW_CPU_CLOCK event
// sampling at sampleHz, the trigger a BPF program attaches to via
// PERF_EVENT_IOC_SET_BPF.
func OpenClockEvent(cpu int, sampleHz int64) (*ClockEvent, error) {
	if sampleHz <= 0 {
		sampleHz = 100
	}
	attr := unix.PerfEventAttr{
		Type:   unix.PERF_TYPE_SOFTWARE,
		Config: unix.PERF_COUNT_SW_CPU_CLOCK,
		Bits:   unix.PerfBitDisabled,
		Sample: uint64(1e9 / sampleHz),
	}
	attr.Size = uint32(unsafe.Sizeof(attr))

	fd, err := unix.PerfEventOpen(&attr, -1, cpu, -1, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("perf: open cpu-clock event for cpu %d: %w", cpu, err)
	}
	return &ClockEvent{fd: fd}, nil
}

// Attach sets prog as the BPF program run on every clock tick and
// enables the event.
func (e *ClockEvent) Attach(prog *ebpf.Program) error {
	if err := unix.IoctlSetInt(e.fd, unix.PERF_EVENT_IOC_SET_BPF, prog.FD()); err != nil {
		return fmt.Errorf("perf: set bpf program on clock event: %w", err)
	}
	if err := unix.IoctlSetInt(e.fd, unix.PERF_EVENT_IOC_ENABLE, 0); err != nil {
		return fmt.Errorf("perf: enable clock event: %w", err)
	}
	return nil
}

// Close disables the event and releases its fd.
func (e *ClockEvent) Close() error {
	_ = unix.IoctlSetInt(e.fd, unix.PERF_EVENT_IOC_DISABLE, 0)
	return unix.Close(e.fd)
}

// AttachAll opens and attaches one ClockEvent per CPU in cpus, rolling
// back any already-opened events if a later one fails.
func AttachAll(cpus []int, sampleHz int64, prog *ebpf.Program) ([]*ClockEvent, error) {
	events := make([]*ClockEvent, 0, len(cpus))
	for _, cpu := range cpus {
		ev, err := OpenClockEvent(cpu, sampleHz)
		if err != nil {
			CloseAll(events)
			return nil, err
		}
		if err := ev.Attach(prog); err != nil {
			ev.Close()
			CloseAll(events)
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// CloseAll closes every event in events, ignoring individual errors.
func CloseAll(events []*ClockEvent) {
	for _, ev := range events {
		ev.Close()
	}
}
