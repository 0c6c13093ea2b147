package loader

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"

	"github.com/sereneos/initsys/go/loader/elftest"
	"github.com/sereneos/initsys/go/models"
)

func TestParse(t *testing.T) {
	data := elftest.Build(0x401000,
		elftest.Seg{Type: elftest.PT_NOTE, Data: []byte("note")},
		elftest.Load(0x401000, elftest.PF_R|elftest.PF_X, []byte("code"), 0x2000),
	)
	f, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if f.Entry() != 0x401000 || len(f.Progs) != 2 {
		t.Fatalf("bad header: %+v", f.Header)
	}
	plan := f.Plan()
	if len(plan) != 1 {
		t.Fatalf("plan has %d segments, want 1", len(plan))
	}
	seg := plan[0]
	if seg.Start != 0x401000 || seg.End != 0x403000 || seg.Perm != models.PermRead|models.PermExec {
		t.Errorf("bad segment %s", &seg)
	}
	if string(f.segmentData(&seg)) != "code" {
		t.Errorf("segment data = %q", f.segmentData(&seg))
	}
}

func TestParseMalformed(t *testing.T) {
	good := elftest.Build(0x1000, elftest.Load(0x1000, elftest.PF_R, []byte("abcd"), 0))
	mutate := func(f func(b []byte)) []byte {
		b := append([]byte(nil), good...)
		f(b)
		return b
	}
	le := binary.LittleEndian
	tests := map[string][]byte{
		"empty":          nil,
		"short":          good[:63],
		"bad magic":      mutate(func(b []byte) { b[1] = 'X' }),
		"32-bit":         mutate(func(b []byte) { b[4] = 1 }),
		"phoff past end": mutate(func(b []byte) { le.PutUint64(b[32:], uint64(len(good))) }),
		"phoff overflow": mutate(func(b []byte) { le.PutUint64(b[32:], ^uint64(0)-8) }),
		"phnum too big":  mutate(func(b []byte) { le.PutUint16(b[56:], 3) }),
		"phentsize tiny": mutate(func(b []byte) { le.PutUint16(b[54:], 8) }),
		"filesz > memsz": mutate(func(b []byte) { le.PutUint64(b[64+40:], 2) }),
		"offset past end": mutate(func(b []byte) {
			le.PutUint64(b[64+8:], uint64(len(good)-2))
		}),
		"vaddr overflow": mutate(func(b []byte) { le.PutUint64(b[64+16:], ^uint64(0)-1) }),
	}
	for name, data := range tests {
		if _, err := Parse(data); errors.Cause(err) != ErrMalformed {
			t.Errorf("%s: Parse() = %v, want ErrMalformed", name, err)
		}
	}
}

func TestPerms(t *testing.T) {
	tests := map[uint32]models.Perm{
		0:                  models.PermNone,
		PF_R:               models.PermRead,
		PF_W:               models.PermWrite,
		PF_X:               models.PermExec,
		PF_R | PF_X:        models.PermRead | models.PermExec,
		PF_R | PF_W | PF_X: models.PermAll,
		0xf0:               models.PermNone,
	}
	for flags, want := range tests {
		if got := perms(flags); got != want {
			t.Errorf("perms(%#x) = %s, want %s", flags, got, want)
		}
	}
}

func TestAlign(t *testing.T) {
	if alignDown(0x401fff) != 0x401000 || align(0x401001) != 0x402000 || align(0x401000) != 0x401000 {
		t.Error("page alignment is wrong")
	}
}

func TestOverlaps(t *testing.T) {
	f, err := Parse(elftest.Build(0x400000,
		elftest.Load(0x400000, elftest.PF_R|elftest.PF_X, []byte("text"), 0x100),
		elftest.Load(0x400800, elftest.PF_R|elftest.PF_W, []byte("data"), 0x100),
		elftest.Load(0x600000, elftest.PF_R, nil, 0x1000),
	))
	if err != nil {
		t.Fatal(err)
	}
	if o := f.Overlaps(); len(o) != 1 || o[0] != [2]int{0, 1} {
		t.Errorf("Overlaps() = %v", o)
	}
}
