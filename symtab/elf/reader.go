package elf

import (
	"debug/elf"
	"io"
	"os"

	"github.com/avvmoto/buf-readerat"
	"golang.org/x/sys/unix"

	"github.com/iwmforge/ebpfprof/symtab/symerr"
)

// MappedFile is an ELF file backed by an mmap'd region, read through a
// buffered ReaderAt so repeated small reads (symbol names, notes) do not
// each cost a page fault.
//
// Grounded on common/src/ebpf/symtab/elf/elfmmap.rs.
type MappedFile struct {
	Path string

	f      *os.File
	data   []byte
	reader *bufra.BufReaderAt
	File   *elf.File
}

// OpenMapped mmaps path and parses its ELF headers. The mapping stays
// resident until Close is called, which is deferred to cache eviction
// by the owning ElfTable.
func OpenMapped(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, symerr.Wrap(symerr.ELFError, err, "opening elf file "+path)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, symerr.Wrap(symerr.ELFError, err, "stat elf file "+path)
	}
	if st.Size() == 0 {
		f.Close()
		return nil, symerr.New(symerr.InvalidData, "empty elf file "+path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		f.Close()
		return nil, symerr.Wrap(symerr.OSError, err, "mmap elf file "+path)
	}

	reader := bufra.NewBufReaderAt(newByteReaderAt(data), 4096)
	ef, err := elf.NewFile(reader)
	if err != nil {
		unix.Munmap(data)
		f.Close()
		return nil, symerr.Wrap(symerr.ELFError, err, "parsing elf headers "+path)
	}

	return &MappedFile{Path: path, f: f, data: data, reader: reader, File: ef}, nil
}

// Close unmaps the file and releases its descriptor; further use of
// File or its Sections is undefined afterwards.
func (m *MappedFile) Close() error {
	var err error
	if m.File != nil {
		err = m.File.Close()
	}
	if m.data != nil {
		if uerr := unix.Munmap(m.data); uerr != nil && err == nil {
			err = uerr
		}
		m.data = nil
	}
	if m.f != nil {
		if ferr := m.f.Close(); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}

// StringAt reads a NUL-terminated string starting at byte offset off in
// the mmap'd image, used to resolve symbol names out of a string table
// section without materializing the whole section.
func (m *MappedFile) StringAt(off uint64) (string, bool) {
	if off >= uint64(len(m.data)) {
		return "", false
	}
	end := off
	for end < uint64(len(m.data)) && m.data[end] != 0 {
		end++
	}
	return string(m.data[off:end]), true
}

type byteReaderAt struct {
	b []byte
}

func newByteReaderAt(b []byte) io.ReaderAt {
	return &byteReaderAt{b: b}
}

func (r *byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(r.b)) {
		return 0, io.EOF
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
