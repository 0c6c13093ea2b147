package cpu

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	cs "github.com/lunixbochs/capstr"
	"github.com/pkg/errors"
)

type Ins interface {
	Addr() uint64
	Bytes() []byte
	Mnemonic() string
	OpStr() string
}

type discacheEntry struct {
	mem []byte
	dis []Ins
}

type discache struct {
	sync.RWMutex
	cache map[uint64]*discacheEntry
}

func (d *discache) Get(addr uint64, mem []byte) *discacheEntry {
	d.RLock()
	defer d.RUnlock()
	if ent, ok := d.cache[addr]; ok && bytes.Equal(mem, ent.mem) {
		return ent
	}
	return nil
}

func (d *discache) Put(addr uint64, mem []byte, dis []Ins) {
	d.Lock()
	defer d.Unlock()
	d.cache[addr] = &discacheEntry{mem: append([]byte(nil), mem...), dis: dis}
}

// Capstr disassembles x86_64 code. The engine is opened on first use.
type Capstr struct {
	Arch, Mode int

	cs *cs.Engine
	dc discache
}

func NewX86_64() *Capstr {
	return &Capstr{Arch: cs.ARCH_X86, Mode: cs.MODE_64}
}

func (c *Capstr) Open() error {
	engine, err := cs.New(c.Arch, c.Mode)
	if err != nil {
		return errors.Wrap(err, "cs.New() failed")
	}
	c.cs = engine
	c.dc.cache = make(map[uint64]*discacheEntry)
	return nil
}

func (c *Capstr) Dis(mem []byte, addr uint64) ([]Ins, error) {
	if c.cs == nil {
		if err := c.Open(); err != nil {
			return nil, err
		}
	}
	if ent := c.dc.Get(addr, mem); ent != nil {
		return ent.dis, nil
	}
	dis, err := c.cs.Dis(mem, addr, 0)
	if err != nil {
		return nil, errors.Wrap(err, "capstone disassembly failed")
	}
	ret := make([]Ins, len(dis))
	for i, v := range dis {
		ret[i] = v
	}
	c.dc.Put(addr, mem, ret)
	return ret, nil
}

// Disas returns one "addr: bytes mnemonic operands" line per instruction,
// with the byte column padded to the widest instruction.
func (c *Capstr) Disas(mem []byte, addr uint64) (string, error) {
	if len(mem) == 0 {
		return "", nil
	}
	dis, err := c.Dis(mem, addr)
	if err != nil {
		return "", err
	}
	return Format(dis), nil
}

func Format(dis []Ins) string {
	width := 0
	for _, ins := range dis {
		if n := len(ins.Bytes()); n > width {
			width = n
		}
	}
	out := make([]string, len(dis))
	for i, ins := range dis {
		pad := strings.Repeat(" ", (width-len(ins.Bytes()))*2)
		out[i] = strings.TrimRight(fmt.Sprintf("0x%x: %s%s %s %s", ins.Addr(), pad, hex.EncodeToString(ins.Bytes()), ins.Mnemonic(), ins.OpStr()), " ")
	}
	return strings.Join(out, "\n")
}
