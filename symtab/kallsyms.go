package symtab

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

const kallsymsModule = "kernel"

// kernelAddrSpace is the lowest address considered to be in kernel space
// on x86_64; addresses below this are discarded since /proc/kallsyms can
// interleave user-space-looking garbage when kptr_restrict masks values
// to zero. The same cutoff is applied on every architecture.
const kernelAddrSpace = 0x00ffffffffffffff

// NewKallsyms loads the running kernel's symbol table from
// /proc/kallsyms. If kptr_restrict hides every address (all entries
// read back as zero), it returns an empty, harmless table rather than
// an error, since stacks simply won't resolve kernel frames.
//
// Grounded on common/src/ebpf/symtab/kallsyms.rs.
func NewKallsyms() (*SymbolTab, error) {
	return NewKallsymsFromFile("/proc/kallsyms")
}

func NewKallsymsFromFile(path string) (*SymbolTab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseKallsyms(f)
}

// ParseKallsyms is the testable core of NewKallsyms, accepting any
// reader in the /proc/kallsyms line format:
// "<hex addr> <type> <name> [<module>]".
func ParseKallsyms(r io.Reader) (*SymbolTab, error) {
	var syms []Sym
	allZeros := true

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		addrPart, typ := fields[0], fields[1]
		namePart := kallsymsModule
		if len(fields) >= 3 {
			namePart = fields[2]
		}

		switch typ[0] {
		case 'b', 'B', 'd', 'D', 'r', 'R':
			continue
		}

		start, err := strconv.ParseUint(addrPart, 16, 64)
		if err != nil {
			continue
		}
		if start < kernelAddrSpace {
			continue
		}
		if start != 0 {
			allZeros = false
		}

		syms = append(syms, Sym{
			Start:  start,
			Name:   namePart,
			Module: kallsymsModule,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if allZeros {
		return NewSymbolTab(nil), nil
	}
	return NewSymbolTab(syms), nil
}
