package cpu

import (
	"fmt"
	"sort"
)

type MemError struct {
	Addr uint64
	Size int
	Enum int
}

func (m *MemError) Error() string {
	reason := "memory error"
	switch m.Enum {
	case MEM_READ_UNMAPPED:
		reason = "unmapped read"
	case MEM_WRITE_UNMAPPED:
		reason = "unmapped write"
	}
	return fmt.Sprintf("%s at %#x(%d)", reason, m.Addr, m.Size)
}

// MemSim is a sorted list of non-overlapping pages.
type MemSim struct {
	Mem Pages
}

// Covered reports whether every byte of addr:addr+size is mapped, possibly
// by several adjacent pages.
func (m *MemSim) Covered(addr, size uint64) bool {
	_, i := m.Mem.bsearch(addr)
	if i < 0 {
		return false
	}
	end := addr + size
	for _, pg := range m.Mem[i:] {
		if pg.Addr > addr {
			return false
		}
		addr = pg.Addr + pg.Size
		if addr >= end {
			return true
		}
	}
	return false
}

// Overlaps reports whether any part of addr:addr+size is mapped.
func (m *MemSim) Overlaps(addr, size uint64) bool {
	return len(m.Mem.FindRange(addr, size)) > 0
}

// MapShared maps data at addr without copying it, so writes through this
// mapping are visible to every other holder of data. Anything already
// mapped in the range is unmapped first.
func (m *MemSim) MapShared(addr uint64, data []byte, prot int) *Page {
	size := uint64(len(data))
	if m.Overlaps(addr, size) {
		m.Unmap(addr, size)
	}
	page := &Page{Addr: addr, Size: size, Prot: prot, Data: data}
	m.Mem = append(m.Mem, page)
	sort.Sort(m.Mem)
	return page
}

// Unmap removes addr:addr+size, trimming or splitting pages that straddle
// either edge.
func (m *MemSim) Unmap(addr, size uint64) {
	tmp := make(Pages, 0, len(m.Mem)+1)
	for _, pg := range m.Mem {
		oaddr, osize, ok := pg.Intersect(addr, size)
		if !ok {
			tmp = append(tmp, pg)
			continue
		}
		left, right := pg.Split(oaddr, osize)
		if left != nil {
			tmp = append(tmp, left)
		}
		if right != nil {
			tmp = append(tmp, right)
		}
	}
	m.Mem = tmp
}

// access walks the pages backing addr:addr+len(p), calling fn with the
// page bytes from the current address and what is left of p.
func (m *MemSim) access(addr uint64, p []byte, enum int, fn func(page, buf []byte) int) error {
	if !m.Covered(addr, uint64(len(p))) {
		return &MemError{Addr: addr, Size: len(p), Enum: enum}
	}
	_, i := m.Mem.bsearch(addr)
	for _, pg := range m.Mem[i:] {
		if len(p) == 0 {
			break
		}
		n := fn(pg.Data[addr-pg.Addr:], p)
		addr, p = addr+uint64(n), p[n:]
	}
	return nil
}

// Read and Write ignore page protections.
func (m *MemSim) Read(addr uint64, p []byte) error {
	return m.access(addr, p, MEM_READ_UNMAPPED, func(page, buf []byte) int { return copy(buf, page) })
}

func (m *MemSim) Write(addr uint64, p []byte) error {
	return m.access(addr, p, MEM_WRITE_UNMAPPED, func(page, buf []byte) int { return copy(page, buf) })
}
