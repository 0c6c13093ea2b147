package cpu

import (
	"github.com/pkg/errors"
)

// Mem wraps MemSim with an address-space limit. It is the address space of
// one simulated process.
type Mem struct {
	// addresses must fit inside mask, ^uint64(0) >> (64 - bits)
	mask uint64
	sim  MemSim
}

func NewMem(bits uint) *Mem {
	return &Mem{mask: ^uint64(0) >> (64 - bits)}
}

func (m *Mem) inRange(addr, size uint64) bool {
	if size == 0 {
		return addr&m.mask == addr
	}
	end := addr + size - 1
	return end >= addr && end&m.mask == end
}

// MemMapShared maps data at addr without copying it.
func (m *Mem) MemMapShared(addr uint64, data []byte, prot int, desc string) error {
	if !m.inRange(addr, uint64(len(data))) {
		return errors.Errorf("region %#x+%#x outside memory range", addr, len(data))
	}
	m.sim.MapShared(addr, data, prot).Desc = desc
	return nil
}

// Mapped reports whether any byte of addr:addr+size is mapped.
func (m *Mem) Mapped(addr, size uint64) bool {
	return m.sim.Overlaps(addr, size)
}

func (m *Mem) MemUnmap(addr, size uint64) error {
	if !m.sim.Covered(addr, size) {
		return errors.Errorf("range %#x+%#x not mapped", addr, size)
	}
	m.sim.Unmap(addr, size)
	return nil
}

func (m *Mem) MemReadInto(p []byte, addr uint64) error {
	return m.sim.Read(addr, p)
}

func (m *Mem) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := m.MemReadInto(p, addr); err != nil {
		return nil, err
	}
	return p, nil
}

// MemWrite ignores protections, as the kernel does when it copies into a
// process.
func (m *Mem) MemWrite(addr uint64, p []byte) error {
	return m.sim.Write(addr, p)
}

func (m *Mem) Maps() Pages {
	ret := make(Pages, len(m.sim.Mem))
	copy(ret, m.sim.Mem)
	return ret
}
