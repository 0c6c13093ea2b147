package loader

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"

	"github.com/sereneos/initsys/go/models"
)

const (
	ehdrSize = 64
	phdrSize = 56

	PT_LOAD = 1

	PF_X = 1 << 0
	PF_W = 1 << 1
	PF_R = 1 << 2
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

const elfClass64 = 2

type Header64 struct {
	Ident     string `struc:"[16]byte"`
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type Prog64 struct {
	Type   uint32
	Flags  uint32
	Off    uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

// File is a decoded view over an ELF image. It borrows the caller's bytes.
type File struct {
	Header Header64
	Progs  []Prog64
	data   []byte
}

func MatchElf(data []byte) bool {
	return len(data) >= len(elfMagic) && bytes.Equal(data[:len(elfMagic)], elfMagic)
}

func unpack(p []byte, v interface{}) error {
	return struc.UnpackWithOrder(bytes.NewReader(p), v, binary.LittleEndian)
}

// Parse decodes and bounds-checks the header and every program header.
// It has no side effects.
func Parse(data []byte) (*File, error) {
	if len(data) < ehdrSize {
		return nil, malformed("image is %d bytes, header needs %d", len(data), ehdrSize)
	}
	if !MatchElf(data) {
		return nil, malformed("bad magic % x", data[:4])
	}
	if data[4] != elfClass64 {
		return nil, malformed("ELF class %d is not 64-bit", data[4])
	}
	f := &File{data: data}
	if err := unpack(data[:ehdrSize], &f.Header); err != nil {
		return nil, malformed("header: %v", err)
	}
	h := &f.Header
	if h.Phnum > 0 && h.Phentsize < phdrSize {
		return nil, malformed("program header entry size %d < %d", h.Phentsize, phdrSize)
	}
	size := uint64(len(data))
	f.Progs = make([]Prog64, h.Phnum)
	for i := range f.Progs {
		off := h.Phoff + uint64(i)*uint64(h.Phentsize)
		if off < h.Phoff || off > size || size-off < phdrSize {
			return nil, malformed("program header %d at %#x outside image", i, off)
		}
		p := &f.Progs[i]
		if err := unpack(data[off:off+phdrSize], p); err != nil {
			return nil, malformed("program header %d: %v", i, err)
		}
		if p.Type != PT_LOAD {
			continue
		}
		if p.Filesz > p.Memsz {
			return nil, malformed("segment %d filesz %#x > memsz %#x", i, p.Filesz, p.Memsz)
		}
		if p.Vaddr+p.Memsz < p.Vaddr || align(p.Vaddr+p.Memsz) < p.Vaddr {
			return nil, malformed("segment %d at %#x+%#x overflows", i, p.Vaddr, p.Memsz)
		}
		if p.Filesz > 0 && (p.Off > size || size-p.Off < p.Filesz) {
			return nil, malformed("segment %d file range %#x+%#x outside image", i, p.Off, p.Filesz)
		}
	}
	return f, nil
}

func (f *File) Entry() uint64 {
	return f.Header.Entry
}

func perms(flags uint32) models.Perm {
	var perm models.Perm
	if flags&PF_R != 0 {
		perm |= models.PermRead
	}
	if flags&PF_W != 0 {
		perm |= models.PermWrite
	}
	if flags&PF_X != 0 {
		perm |= models.PermExec
	}
	return perm
}

// Plan returns the page-aligned segment for every LOAD header with a
// non-zero memory size, in file order. p_align is ignored: mappings always
// use page granularity.
func (f *File) Plan() []models.Segment {
	var segs []models.Segment
	for _, p := range f.Progs {
		if p.Type != PT_LOAD || p.Memsz == 0 {
			continue
		}
		segs = append(segs, models.Segment{
			Start:    alignDown(p.Vaddr),
			End:      align(p.Vaddr + p.Memsz),
			Perm:     perms(p.Flags),
			Addr:     p.Vaddr,
			Off:      p.Off,
			FileSize: p.Filesz,
			MemSize:  p.Memsz,
		})
	}
	return segs
}

// Overlaps returns index pairs into Plan() whose page ranges overlap. Such
// images fail to load: each segment is mapped on its own.
func (f *File) Overlaps() [][2]int {
	segs := f.Plan()
	var ret [][2]int
	for i := range segs {
		for j := i + 1; j < len(segs); j++ {
			if segs[i].Overlaps(&segs[j]) {
				ret = append(ret, [2]int{i, j})
			}
		}
	}
	return ret
}

func (f *File) segmentData(s *models.Segment) []byte {
	return f.data[s.Off : s.Off+s.FileSize]
}
