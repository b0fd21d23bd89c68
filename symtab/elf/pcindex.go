package elf

import "sort"

// PCIndex is a sorted array of program-counter values supporting a
// find-nearest-below lookup. It starts as a dense []uint32 and promotes
// itself to []uint64 in place the first time a value would overflow
// 32 bits, which keeps the common case (binaries under 4GiB of code)
// at half the memory of a plain []uint64.
//
// Grounded on common/src/ebpf/symtab/elf/pcindex.rs.
type PCIndex struct {
	v32 []uint32
	v64 []uint64
}

// NewPCIndex preallocates a 32-bit backed index of length sz, with every
// slot initialized to zero, to be filled in via Set.
func NewPCIndex(sz int) *PCIndex {
	return &PCIndex{v32: make([]uint32, sz)}
}

// Len reports the number of entries regardless of which tier is active.
func (p *PCIndex) Len() int {
	if p.v32 != nil {
		return len(p.v32)
	}
	return len(p.v64)
}

// Set stores value at idx, promoting the whole index to 64-bit storage
// the first time a value does not fit in uint32.
func (p *PCIndex) Set(idx int, value uint64) {
	if p.v32 != nil {
		if value <= 0xFFFFFFFF {
			p.v32[idx] = uint32(value)
			return
		}
		p.promote()
	}
	p.v64[idx] = value
}

func (p *PCIndex) promote() {
	v64 := make([]uint64, len(p.v32))
	for i, v := range p.v32 {
		v64[i] = uint64(v)
	}
	p.v64 = v64
	p.v32 = nil
}

// Get returns the value stored at idx.
func (p *PCIndex) Get(idx int) uint64 {
	if p.v32 != nil {
		return uint64(p.v32[idx])
	}
	return p.v64[idx]
}

func (p *PCIndex) first() uint64 {
	return p.Get(0)
}

// FindIndex returns the index of the greatest value <= addr, walking
// back over any run of duplicate values so the caller always lands on
// the first symbol whose value matches, or -1 if addr precedes every
// entry. Values are assumed sorted ascending.
func (p *PCIndex) FindIndex(addr uint64) int {
	if p.Len() == 0 || addr < p.first() {
		return -1
	}
	if p.v32 != nil {
		if addr > 0xFFFFFFFF {
			return walkBack32(p.v32, len(p.v32)-1)
		}
		addr32 := uint32(addr)
		i := sort.Search(len(p.v32), func(i int) bool { return p.v32[i] >= addr32 })
		if i < len(p.v32) && p.v32[i] == addr32 {
			return walkBack32(p.v32, i)
		}
		if i == 0 {
			return -1
		}
		return walkBack32(p.v32, i-1)
	}
	i := sort.Search(len(p.v64), func(i int) bool { return p.v64[i] >= addr })
	if i < len(p.v64) && p.v64[i] == addr {
		return walkBack64(p.v64, i)
	}
	if i == 0 {
		return -1
	}
	return walkBack64(p.v64, i-1)
}

func walkBack32(v []uint32, i int) int {
	val := v[i]
	for i > 0 && v[i-1] == val {
		i--
	}
	return i
}

func walkBack64(v []uint64, i int) int {
	val := v[i]
	for i > 0 && v[i-1] == val {
		i--
	}
	return i
}
