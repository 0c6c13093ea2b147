// Package elftest builds small ELF64 images for tests.
package elftest

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
)

const (
	PT_NULL = 0
	PT_LOAD = 1
	PT_NOTE = 4

	PF_X = 1
	PF_W = 2
	PF_R = 4
)

type ehdr struct {
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

type phdr struct {
	Type   uint32
	Flags  uint32
	Off    uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

// Seg describes one program header. Data is placed in the file and Filesz
// is len(Data). Memsz defaults to len(Data).
type Seg struct {
	Type  uint32
	Flags uint32
	Vaddr uint64
	Data  []byte
	Memsz uint64
	Align uint64
}

// Load is a LOAD segment shorthand.
func Load(vaddr uint64, flags uint32, data []byte, memsz uint64) Seg {
	return Seg{Type: PT_LOAD, Flags: flags, Vaddr: vaddr, Data: data, Memsz: memsz, Align: 0x1000}
}

// Build lays out the header, the program header table and each segment's
// data in that order.
func Build(entry uint64, segs ...Seg) []byte {
	ident := make([]byte, 16)
	copy(ident, []byte{0x7f, 'E', 'L', 'F', 2, 1, 1})
	h := ehdr{
		Ident:     string(ident),
		Type:      2, // ET_EXEC
		Machine:   62,
		Version:   1,
		Entry:     entry,
		Phoff:     64,
		Ehsize:    64,
		Phentsize: 56,
		Phnum:     uint16(len(segs)),
	}
	off := uint64(64 + 56*len(segs))
	progs := make([]phdr, len(segs))
	var data bytes.Buffer
	for i, s := range segs {
		memsz := s.Memsz
		if memsz == 0 {
			memsz = uint64(len(s.Data))
		}
		progs[i] = phdr{
			Type:   s.Type,
			Flags:  s.Flags,
			Off:    off + uint64(data.Len()),
			Vaddr:  s.Vaddr,
			Paddr:  s.Vaddr,
			Filesz: uint64(len(s.Data)),
			Memsz:  memsz,
			Align:  s.Align,
		}
		data.Write(s.Data)
	}
	var buf bytes.Buffer
	if err := struc.PackWithOrder(&buf, &h, binary.LittleEndian); err != nil {
		panic(err)
	}
	for i := range progs {
		if err := struc.PackWithOrder(&buf, &progs[i], binary.LittleEndian); err != nil {
			panic(err)
		}
	}
	buf.Write(data.Bytes())
	return buf.Bytes()
}

// Code is a tiny x86_64 program: mov eax, 60; xor edi, edi; syscall.
var Code = []byte{0xb8, 0x3c, 0x00, 0x00, 0x00, 0x31, 0xff, 0x0f, 0x05}
