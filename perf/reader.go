package perf

import (
	"encoding/binary"
	"io"
	"math"
	"runtime"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/iwmforge/ebpfprof/symtab/symerr"
)

var (
	errClosed   = symerr.New(symerr.Closed, "perf reader was closed")
	errEndOfRing = symerr.New(symerr.EndOfRing, "end of ring")
)

// perfEventHeader mirrors struct perf_event_header from <linux/perf_event.h>.
type perfEventHeader struct {
	Type uint32
	Misc uint16
	Size uint16
}

const (
	perfRecordLost   = 2
	perfRecordSample = 9
)

// Record is one decoded entry read off a per-CPU ring: either a raw
// sample (a kernel-side stack-walk result) or a lost-sample counter
// reported when the ring overflowed before userspace could drain it.
type Record struct {
	CPU         int
	RawSample   []byte
	LostSamples uint64
}

func readRecordFromRing(ring *perfEventRing) (Record, error) {
	defer ring.writeTail()
	return readRecord(ring, ring.cpu)
}

func readRecord(rd io.Reader, cpu int) (Record, error) {
	var header perfEventHeader
	if err := binary.Read(rd, binary.LittleEndian, &header); err != nil {
		if err == io.EOF {
			return Record{}, errEndOfRing
		}
		return Record{}, errors.Wrap(err, "perf: read event header")
	}

	switch header.Type {
	case perfRecordLost:
		lost, err := readLostRecords(rd)
		return Record{CPU: cpu, LostSamples: lost}, err
	case perfRecordSample:
		sample, err := readRawSample(rd)
		return Record{CPU: cpu, RawSample: sample}, err
	default:
		return Record{}, &symerr.UnknownEventErr{Type: header.Type}
	}
}

func readLostRecords(rd io.Reader) (uint64, error) {
	var lostHeader struct {
		ID   uint64
		Lost uint64
	}
	if err := binary.Read(rd, binary.LittleEndian, &lostHeader); err != nil {
		return 0, errors.Wrap(err, "perf: read lost records header")
	}
	return lostHeader.Lost, nil
}

func readRawSample(rd io.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(rd, binary.LittleEndian, &size); err != nil {
		return nil, errors.Wrap(err, "perf: read sample size")
	}
	data := make([]byte, int(size))
	_, err := io.ReadFull(rd, data)
	if err != nil {
		return nil, errors.Wrap(err, "perf: read sample")
	}
	return data, nil
}

// Reader multiplexes every CPU's perf_event ring into a single blocking
// Read call via epoll, the way the session's readEvents goroutine
// consumes samples without one goroutine per CPU.
//
// Grounded on the vendored cilium/ebpf perf.Reader reference; this
// implementation is independent so the mmap/epoll mechanics the
// profiling session depends on stay visible in this module rather than
// behind a third-party Reader's opaque API.
type Reader struct {
	mu    sync.Mutex
	array *ebpf.Map
	rings []*perfEventRing

	epollFd     int
	epollEvents []unix.EpollEvent
	epollRings  []*perfEventRing

	closeFd   int
	closeOnce sync.Once

	pauseMu  sync.Mutex
	pauseFds []int
}

// ReaderOptions controls the buffer sizing and watermark for all rings
// a Reader opens.
type ReaderOptions struct {
	PerCPUBuffer int
	Watermark    int
}

// NewReader opens one perf ring per CPU listed in cpus, stores each
// ring's fd in array under that CPU's number, and multiplexes them
// through a single epoll instance.
func NewReader(array *ebpf.Map, cpus []int, opts ReaderOptions) (pr *Reader, err error) {
	if opts.PerCPUBuffer < 1 {
		return nil, errors.New("perf: PerCPUBuffer must be larger than 0")
	}

	epollFd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "perf: create epoll fd")
	}

	var (
		rings    = make([]*perfEventRing, 0, len(cpus))
		pauseFds = make([]int, 0, len(cpus))
	)
	defer func() {
		if err != nil {
			unix.Close(epollFd)
			for _, ring := range rings {
				ring.Close()
			}
		}
	}()

	for i, cpu := range cpus {
		ring, rerr := newPerfEventRing(cpu, opts.PerCPUBuffer, opts.Watermark)
		if rerr != nil {
			err = errors.Wrapf(rerr, "perf: create ring for cpu %d", cpu)
			return nil, err
		}
		rings = append(rings, ring)
		pauseFds = append(pauseFds, ring.fd)

		if aerr := addToEpoll(epollFd, ring.fd, i); aerr != nil {
			err = aerr
			return nil, err
		}
	}

	closeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, errors.Wrap(err, "perf: create close eventfd")
	}
	if err = addToEpoll(epollFd, closeFd, -1); err != nil {
		return nil, err
	}

	pr = &Reader{
		array:       array,
		rings:       rings,
		epollFd:     epollFd,
		epollEvents: make([]unix.EpollEvent, len(rings)+1),
		epollRings:  make([]*perfEventRing, 0, len(rings)),
		closeFd:     closeFd,
		pauseFds:    pauseFds,
	}
	if err = pr.Resume(); err != nil {
		return nil, err
	}
	runtime.SetFinalizer(pr, (*Reader).Close)
	return pr, nil
}

func addToEpoll(epollFd, fd, cpuIndex int) error {
	if int64(cpuIndex) > math.MaxInt32 {
		return errors.Errorf("perf: unsupported cpu index: %d", cpuIndex)
	}
	event := unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fd),
		Pad:    int32(cpuIndex),
	}
	return errors.Wrap(unix.EpollCtl(epollFd, unix.EPOLL_CTL_ADD, fd, &event), "perf: add fd to epoll")
}

func ringIndexForEvent(event *unix.EpollEvent) int {
	return int(event.Pad)
}

// Close interrupts any blocked Read and releases every ring and fd.
func (pr *Reader) Close() error {
	var err error
	pr.closeOnce.Do(func() {
		runtime.SetFinalizer(pr, nil)

		var value [8]byte
		binary.LittleEndian.PutUint64(value[:], 1)
		if _, werr := unix.Write(pr.closeFd, value[:]); werr != nil {
			err = errors.Wrap(werr, "perf: write close eventfd")
			return
		}

		pr.mu.Lock()
		defer pr.mu.Unlock()
		pr.pauseMu.Lock()
		defer pr.pauseMu.Unlock()

		unix.Close(pr.epollFd)
		unix.Close(pr.closeFd)
		pr.epollFd, pr.closeFd = -1, -1

		for _, ring := range pr.rings {
			ring.Close()
		}
		pr.rings = nil
		pr.pauseFds = nil
	})
	return err
}

// Read blocks until a record is available on any CPU's ring, or until
// Close is called from another goroutine.
func (pr *Reader) Read() (Record, error) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if pr.epollFd == -1 {
		return Record{}, errClosed
	}

	for {
		if len(pr.epollRings) == 0 {
			n, err := unix.EpollWait(pr.epollFd, pr.epollEvents, -1)
			if err == unix.EINTR {
				continue
			}
			if err != nil {
				return Record{}, errors.Wrap(err, "perf: epoll wait")
			}

			for _, event := range pr.epollEvents[:n] {
				if int(event.Fd) == pr.closeFd {
					return Record{}, errClosed
				}
				ring := pr.rings[ringIndexForEvent(&event)]
				pr.epollRings = append(pr.epollRings, ring)
				ring.loadHead()
			}
		}

		last := pr.epollRings[len(pr.epollRings)-1]
		record, err := readRecordFromRing(last)
		if err == errEndOfRing {
			pr.epollRings = pr.epollRings[:len(pr.epollRings)-1]
			continue
		}
		return record, err
	}
}

// Pause stops event notifications by removing every CPU's fd from the
// underlying PERF_EVENT_ARRAY; BPF-side perf_event_output calls then
// fail with ENOENT until Resume.
func (pr *Reader) Pause() error {
	pr.pauseMu.Lock()
	defer pr.pauseMu.Unlock()
	if pr.pauseFds == nil {
		return errClosed
	}
	for i := range pr.pauseFds {
		cpu := pr.rings[i].cpu
		if err := pr.array.Delete(uint32(cpu)); err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
			return errors.Wrapf(err, "perf: delete event fd for cpu %d", cpu)
		}
	}
	return nil
}

// Resume re-inserts every CPU's event fd into the PERF_EVENT_ARRAY.
func (pr *Reader) Resume() error {
	pr.pauseMu.Lock()
	defer pr.pauseMu.Unlock()
	if pr.pauseFds == nil {
		return errClosed
	}
	for i, fd := range pr.pauseFds {
		cpu := pr.rings[i].cpu
		if err := pr.array.Put(uint32(cpu), uint32(fd)); err != nil {
			return errors.Wrapf(err, "perf: put event fd %d for cpu %d", fd, cpu)
		}
	}
	return nil
}

// IsClosed reports whether err indicates the Reader was closed.
func IsClosed(err error) bool {
	return errors.Is(err, errClosed)
}

// IsUnknownEvent reports whether err is an unrecognized perf record type.
func IsUnknownEvent(err error) bool {
	_, ok := err.(*symerr.UnknownEventErr)
	return ok
}
