// Package elf wraps debug/elf with the symbol-resolution machinery the
// profiler needs: build-id extraction, a dense PC index and a flattened
// symbol name table read lazily off an mmap'd file.
//
// Grounded on common/src/ebpf/symtab/elf/buildid.rs, pcindex.rs and
// symbol_table.rs.
package elf

import (
	"bytes"
	"debug/elf"
	"encoding/hex"

	"github.com/iwmforge/ebpfprof/symtab/symerr"
)

// BuildIDType distinguishes the two note sections a build-id can come
// from; Go toolchain binaries carry their own format in addition to the
// GNU one most other binaries use.
type BuildIDType string

const (
	BuildIDGNU BuildIDType = "gnu"
	BuildIDGo  BuildIDType = "go"
)

// BuildID is a stable identity for an executable's contents, used as the
// primary ElfCache key so two processes mapping the same binary share
// one parsed symbol table.
type BuildID struct {
	ID   string
	Type BuildIDType
}

func (b BuildID) Empty() bool {
	return b.ID == "" || b.Type == ""
}

func (b BuildID) IsGNU() bool {
	return b.Type == BuildIDGNU
}

// ReadBuildID prefers the GNU note, falling back to the Go-specific one;
// this mirrors how the loader itself distinguishes toolchains.
func ReadBuildID(f *elf.File) (BuildID, error) {
	if id, err := gnuBuildID(f); err == nil && !id.Empty() {
		return id, nil
	}
	if id, err := goBuildID(f); err == nil && !id.Empty() {
		return id, nil
	}
	return BuildID{}, symerr.New(symerr.NotFound, "no build id")
}

func goBuildID(f *elf.File) (BuildID, error) {
	sec := f.Section(".note.go.buildid")
	if sec == nil {
		return BuildID{}, symerr.New(symerr.NotFound, ".note.go.buildid absent")
	}
	data, err := sec.Data()
	if err != nil {
		return BuildID{}, symerr.Wrap(symerr.ELFError, err, "reading .note.go.buildid")
	}
	if len(data) < 17 {
		return BuildID{}, symerr.New(symerr.InvalidData, ".note.go.buildid is too small")
	}
	payload := data[16 : len(data)-1]
	if len(payload) < 40 || bytes.Count(payload, []byte{'/'}) < 2 {
		return BuildID{}, symerr.New(symerr.InvalidData, "wrong .note.go.buildid")
	}
	id := string(payload)
	if id == "redacted" {
		return BuildID{}, symerr.New(symerr.InvalidData, "blacklisted .note.go.buildid")
	}
	return BuildID{ID: id, Type: BuildIDGo}, nil
}

func gnuBuildID(f *elf.File) (BuildID, error) {
	sec := f.Section(".note.gnu.build-id")
	if sec == nil {
		return BuildID{}, symerr.New(symerr.NotFound, ".note.gnu.build-id absent")
	}
	data, err := sec.Data()
	if err != nil {
		return BuildID{}, symerr.Wrap(symerr.ELFError, err, "reading .note.gnu.build-id")
	}
	if len(data) < 16 {
		return BuildID{}, symerr.New(symerr.InvalidData, ".note.gnu.build-id is too small")
	}
	if !bytes.Equal(data[12:15], []byte("GNU")) {
		return BuildID{}, symerr.New(symerr.InvalidData, ".note.gnu.build-id is not a GNU build-id")
	}
	raw := data[16:]
	if len(raw) != 20 && len(raw) != 8 {
		return BuildID{}, symerr.New(symerr.InvalidData, ".note.gnu.build-id has wrong size")
	}
	return BuildID{ID: hex.EncodeToString(raw), Type: BuildIDGNU}, nil
}
