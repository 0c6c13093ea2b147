package cpu

import (
	"bytes"
	"testing"
)

// offset-dependent bytes, so a misplaced copy shows up
func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		if i%2 == 0 {
			p[i] = byte(i >> 9)
		} else {
			p[i] = byte(i >> 1)
		}
	}
	return p
}

func BenchmarkMemSimRead(b *testing.B) {
	m := &MemSim{}
	m.MapShared(0, make([]byte, 0x100000), PROT_READ)
	p := make([]byte, 4)
	for i := 0; i < b.N; i++ {
		m.Read(uint64(i*4)&0xfffff, p)
	}
}

func TestMemSimAdjacent(t *testing.T) {
	m := &MemSim{}
	for _, addr := range []uint64{0x3000, 0x1000, 0x2000} {
		m.MapShared(addr, make([]byte, 0x1000), PROT_READ)
	}
	b := pattern(0x3000)
	c := make([]byte, len(b))
	if err := m.Write(0x1000, b); err != nil {
		t.Fatal(err)
	}
	if err := m.Read(0x1000, c); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, c) {
		t.Fatal("read across adjacent pages does not match write")
	}
	if !m.Covered(0x1800, 0x2000) || m.Covered(0x1800, 0x3000) {
		t.Error("Covered() mismatch across adjacent pages")
	}
}

func TestMemSimUnmapHole(t *testing.T) {
	m := &MemSim{}
	b := pattern(0x1000)
	m.MapShared(0x1000, b, PROT_READ|PROT_WRITE)
	m.Unmap(0x1100, 0x100)
	if len(m.Mem) != 2 {
		t.Fatalf("expected 2 pages after unmap, got:\n%s", m.Mem)
	}

	cases := []struct {
		start, end uint64
		mapped     bool
	}{
		{0x1000, 0x1100, true},
		{0x1000, 0x1050, true},
		{0x1000, 0x1200, false},
		{0x1100, 0x1150, false},
		{0x1150, 0x1250, false},
		{0x1200, 0x1250, true},
		{0x1200, 0x2000, true},
		{0x1f00, 0x2001, false},
	}
	for _, c := range cases {
		p := make([]byte, c.end-c.start)
		err := m.Read(c.start, p)
		if (err == nil) != c.mapped {
			t.Errorf("Read(%#x-%#x) = %v, mapped %v", c.start, c.end, err, c.mapped)
		}
		if err == nil && !bytes.Equal(p, b[c.start-0x1000:c.end-0x1000]) {
			t.Errorf("Read(%#x-%#x) returned the wrong bytes", c.start, c.end)
		}
		err = m.Write(c.start, p)
		if (err == nil) != c.mapped {
			t.Errorf("Write(%#x-%#x) = %v, mapped %v", c.start, c.end, err, c.mapped)
		}
		if err != nil {
			if me, ok := err.(*MemError); !ok || me.Enum != MEM_WRITE_UNMAPPED || me.Addr != c.start {
				t.Errorf("Write(%#x-%#x) error %#v", c.start, c.end, err)
			}
		}
	}
}

func TestMemSimRemap(t *testing.T) {
	m := &MemSim{}
	old := pattern(0x3000)
	m.MapShared(0x1000, old, PROT_READ)
	fresh := make([]byte, 0x1000)
	m.MapShared(0x2000, fresh, PROT_READ|PROT_WRITE)
	if len(m.Mem) != 3 {
		t.Fatalf("expected 3 pages after remap, got:\n%s", m.Mem)
	}
	if err := m.Write(0x2000, []byte{0xaa}); err != nil {
		t.Fatal(err)
	}
	if fresh[0] != 0xaa || old[0x1000] == 0xaa {
		t.Error("write landed in the replaced mapping")
	}
	c := make([]byte, 0x1000)
	if err := m.Read(0x3000, c); err != nil {
		t.Fatal(err)
	} else if !bytes.Equal(c, old[0x2000:]) {
		t.Error("right remainder lost its data")
	}
}

func TestMemSimShared(t *testing.T) {
	m := &MemSim{}
	data := make([]byte, 0x1000)
	m.MapShared(0x1000, data, PROT_READ)
	m.MapShared(0x10000, data, PROT_READ)

	if err := m.Write(0x1000, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	p := make([]byte, 3)
	if err := m.Read(0x10000, p); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(p, []byte{1, 2, 3}) || !bytes.Equal(data[:3], p) {
		t.Error("write not visible through the other mapping")
	}
	// punching a hole leaves both halves on the same backing
	m.Unmap(0x1800, 0x100)
	if err := m.Write(0x1900, []byte{9}); err != nil {
		t.Fatal(err)
	}
	if err := m.Write(0x1000, []byte{4}); err != nil {
		t.Fatal(err)
	}
	if data[0x900] != 9 || data[0] != 4 {
		t.Error("split page lost its backing")
	}
	if !m.Overlaps(0x1fff, 0x10) || m.Overlaps(0x2000, 0x1000) {
		t.Error("Overlaps() mismatch")
	}
}
