// Package perf implements per-CPU perf_event ring buffer reading and
// epoll-based multiplexing across CPUs, reimplemented directly against
// mmap/epoll rather than delegating to cilium/ebpf's perf.Reader so the
// mmap layout and wakeup semantics stay in this module's control.
//
// Grounded on the vendored cilium/ebpf perf ring/reader implementation
// this repository's retrieval pack carries as reference material.
package perf

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// perfEventRing is one CPU's metadata page followed by a power-of-two
// number of data pages, exposed as a forward-only byte stream.
type perfEventRing struct {
	fd   int
	cpu  int
	mmap []byte

	meta       *unix.PerfEventMmapPage
	head, tail uint64
	mask       uint64
	ring       []byte
}

func newPerfEventRing(cpu, perCPUBuffer, watermark int) (*perfEventRing, error) {
	if watermark <= 0 {
		watermark = 1
	}
	if watermark >= perCPUBuffer {
		return nil, errors.New("perf: watermark must be smaller than perCPUBuffer")
	}

	fd, err := createPerfEvent(cpu, watermark)
	if err != nil {
		return nil, err
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}

	size := perfBufferSize(perCPUBuffer)
	mmap, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("perf: mmap ring for cpu %d: %w", cpu, err)
	}

	meta := (*unix.PerfEventMmapPage)(unsafe.Pointer(&mmap[0]))
	data := mmap[meta.Data_offset : meta.Data_offset+meta.Data_size]

	ring := &perfEventRing{
		fd:   fd,
		cpu:  cpu,
		mmap: mmap,
		meta: meta,
		head: atomic.LoadUint64(&meta.Data_head),
		tail: atomic.LoadUint64(&meta.Data_tail),
		mask: uint64(cap(data) - 1),
		ring: data,
	}
	runtime.SetFinalizer(ring, (*perfEventRing).Close)
	return ring, nil
}

// perfBufferSize rounds perCPUBuffer up to 1+2^n pages: one metadata
// page plus a power-of-two number of data pages, the layout
// perf_event_open requires.
func perfBufferSize(perCPUBuffer int) int {
	pageSize := os.Getpagesize()
	nPages := (perCPUBuffer + pageSize - 1) / pageSize
	nPages = int(math.Pow(2, math.Ceil(math.Log2(float64(nPages)))))
	return (nPages + 1) * pageSize
}

func (r *perfEventRing) loadHead() {
	r.head = atomic.LoadUint64(&r.meta.Data_head)
}

// writeTail commits the tail back to the kernel, signaling that
// everything up to it has been consumed and its space may be reused.
func (r *perfEventRing) writeTail() {
	atomic.StoreUint64(&r.meta.Data_tail, r.tail)
}

// Read implements io.Reader over the unread portion of the ring,
// wrapping around the buffer boundary and returning io.EOF once it
// catches up to the last-loaded head.
func (r *perfEventRing) Read(p []byte) (int, error) {
	start := int(r.tail & r.mask)

	n := len(p)
	if remainder := cap(r.ring) - start; n > remainder {
		n = remainder
	}
	if remainder := int(r.head - r.tail); n > remainder {
		n = remainder
	}

	copy(p, r.ring[start:start+n])
	r.tail += uint64(n)

	if r.tail == r.head {
		return n, io.EOF
	}
	return n, nil
}

func (r *perfEventRing) Close() {
	runtime.SetFinalizer(r, nil)
	unix.Close(r.fd)
	unix.Munmap(r.mmap)
	r.fd = -1
	r.mmap = nil
}
