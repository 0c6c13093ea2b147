package models

import (
	"fmt"
)

// Segment is the page-aligned range backing one LOAD program header.
// Addr/FileSize/MemSize describe the unaligned content placed inside it.
type Segment struct {
	Start, End uint64
	Perm       Perm

	Addr     uint64
	Off      uint64
	FileSize uint64
	MemSize  uint64
}

func (s *Segment) Size() uint64 {
	return s.End - s.Start
}

func (s *Segment) Contains(addr uint64) bool {
	return s.Start <= addr && addr < s.End
}

func (s *Segment) Overlaps(o *Segment) bool {
	return (s.Start >= o.Start && s.Start < o.End) || (o.Start >= s.Start && o.Start < s.End)
}

func (s *Segment) String() string {
	return fmt.Sprintf("0x%x-0x%x %s (vaddr 0x%x filesz 0x%x memsz 0x%x)", s.Start, s.End, s.Perm, s.Addr, s.FileSize, s.MemSize)
}
