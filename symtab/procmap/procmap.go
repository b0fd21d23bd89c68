// Package procmap parses /proc/<pid>/maps into ordered executable ranges.
//
// Grounded on common/src/ebpf/symtab/procmap.rs and symtab/proc.rs from
// the original source this spec was distilled from.
package procmap

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iwmforge/ebpfprof/symtab/symerr"
)

// Permissions mirrors the rwxsp flags parsed from a maps line.
type Permissions struct {
	Read    bool
	Write   bool
	Execute bool
	Shared  bool
	Private bool
}

// File identifies the backing file of a mapping: (dev, inode, pathname).
// Two ranges that share a File can share a single ElfTable.
type File struct {
	Dev    uint64
	Inode  uint64
	Path   string
}

// ProcMap is one executable range parsed from /proc/<pid>/maps.
type ProcMap struct {
	StartAddr uint64
	EndAddr   uint64
	Perms     Permissions
	Offset    int64
	Dev       uint64
	Inode     uint64
	Pathname  string
}

// Key returns the File identity used to deduplicate ranges backed by the
// same file within a ProcTable.
func (m ProcMap) Key() File {
	return File{Dev: m.Dev, Inode: m.Inode, Path: m.Pathname}
}

// ParseExecutableRanges reads lines in /proc/<pid>/maps format from r and
// returns only the executable ranges, in input order (the kernel lists
// them by ascending address); it does not sort them itself.
func ParseExecutableRanges(r io.Reader) ([]ProcMap, error) {
	return parseMaps(r, true)
}

// ParseAllRanges parses every range regardless of permissions; used by
// tests and tools that need the full map, not just executable regions.
func ParseAllRanges(r io.Reader) ([]ProcMap, error) {
	return parseMaps(r, false)
}

func parseMaps(r io.Reader, executableOnly bool) ([]ProcMap, error) {
	var out []ProcMap
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		m, ok, err := parseLine(line, executableOnly)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, symerr.Wrap(symerr.ProcError, err, "reading proc maps")
	}
	return out, nil
}

func parseLine(line string, executableOnly bool) (ProcMap, bool, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return ProcMap{}, false, nil
	}

	perms, err := parsePermissions(fields[1])
	if err != nil {
		return ProcMap{}, false, symerr.Wrap(symerr.ProcError, err, "invalid permissions field")
	}
	if executableOnly && !perms.Execute {
		return ProcMap{}, false, nil
	}

	start, end, err := parseAddresses(fields[0])
	if err != nil {
		return ProcMap{}, false, symerr.Wrap(symerr.ProcError, err, "invalid address range")
	}
	if start >= end {
		return ProcMap{}, false, symerr.New(symerr.ProcError, "non-monotonic range")
	}

	offset, err := strconv.ParseInt(fields[2], 16, 64)
	if err != nil {
		return ProcMap{}, false, symerr.Wrap(symerr.ProcError, err, "invalid offset field")
	}

	dev, err := parseDevice(fields[3])
	if err != nil {
		return ProcMap{}, false, symerr.Wrap(symerr.ProcError, err, "invalid device field")
	}

	var inode uint64
	if len(fields) >= 5 {
		inode, _ = strconv.ParseUint(fields[4], 10, 64)
	}

	pathname := ""
	if len(fields) > 5 {
		pathname = strings.Join(fields[5:], " ")
	}

	return ProcMap{
		StartAddr: start,
		EndAddr:   end,
		Perms:     perms,
		Offset:    offset,
		Dev:       dev,
		Inode:     inode,
		Pathname:  pathname,
	}, true, nil
}

func parsePermissions(s string) (Permissions, error) {
	if len(s) < 4 {
		return Permissions{}, fmt.Errorf("permissions field too short: %q", s)
	}
	return Permissions{
		Read:    strings.Contains(s, "r"),
		Write:   strings.Contains(s, "w"),
		Execute: strings.Contains(s, "x"),
		Shared:  strings.Contains(s, "s"),
		Private: strings.Contains(s, "p"),
	}, nil
}

func parseAddresses(s string) (start, end uint64, err error) {
	i := strings.IndexByte(s, '-')
	if i < 0 {
		return 0, 0, fmt.Errorf("invalid address range %q", s)
	}
	start, err = strconv.ParseUint(s[:i], 16, 64)
	if err != nil {
		return 0, 0, err
	}
	end, err = strconv.ParseUint(s[i+1:], 16, 64)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseDevice decodes the "major:minor" hex device field into the
// combined dev_t the kernel uses for /proc/<pid>/maps and stat(2),
// matching the mkdev() encoding in symtab/procmap.rs.
func parseDevice(s string) (uint64, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid device field %q", s)
	}
	major, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return 0, err
	}
	minor, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return 0, err
	}
	return mkdev(uint32(major), uint32(minor)), nil
}

func mkdev(major, minor uint32) uint64 {
	dev := uint64(major&0x00000fff) << 8
	dev |= uint64(major&0xfffff000) << 32
	dev |= uint64(minor & 0x000000ff)
	dev |= uint64(minor&0xffffff00) << 12
	return dev
}
