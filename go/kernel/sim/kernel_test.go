package sim

import (
	"bytes"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/sereneos/initsys/go/models"
)

func mustProc(t *testing.T, k *Kernel) models.Handle {
	h, err := k.ProcessCreateEmpty()
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func mustObj(t *testing.T, k *Kernel, size uint64, perms models.Perm) models.Handle {
	h, err := k.MemobjCreate(size, perms)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestMemobjCreate(t *testing.T) {
	k := New()
	for _, size := range []uint64{0, 0x123, 0x1001} {
		if _, err := k.MemobjCreate(size, models.PermRead); errors.Cause(err) != models.ErrInvalidArgument {
			t.Errorf("MemobjCreate(%#x) = %v", size, err)
		}
	}
	if _, err := k.MemobjCreate(0x1000, 8); errors.Cause(err) != models.ErrInvalidArgument {
		t.Errorf("unknown perm bit accepted: %v", err)
	}
	if h := mustObj(t, k, 0x2000, models.PermNone); h == models.InvalidHandle {
		t.Error("got the invalid handle")
	}
}

func TestMapFixed(t *testing.T) {
	k := New()
	proc := mustProc(t, k)
	a := mustObj(t, k, 0x2000, models.PermRead|models.PermWrite)
	b := mustObj(t, k, 0x1000, models.PermRead)

	addr, err := k.Map(proc, a, 0x400000, models.PermRead, models.MapFixed)
	if err != nil || addr != 0x400000 {
		t.Fatalf("Map() = %#x, %v", addr, err)
	}
	if _, err := k.Map(proc, b, 0x401000, models.PermRead, models.MapFixed); errors.Cause(err) != models.ErrAddressInUse {
		t.Errorf("overlapping fixed map = %v", err)
	}
	if _, err := k.Map(proc, b, 0x400800, models.PermRead, models.MapFixed); errors.Cause(err) != models.ErrInvalidArgument {
		t.Errorf("unaligned map = %v", err)
	}
	if _, err := k.Map(proc, b, 0x402000, models.PermWrite, models.MapFixed); errors.Cause(err) != models.ErrInvalidArgument {
		t.Errorf("perms beyond memobj = %v", err)
	}
	if _, err := k.Map(b, a, 0x500000, models.PermRead, models.MapFixed); errors.Cause(err) != models.ErrInvalidHandle {
		t.Errorf("memobj used as process = %v", err)
	}
	// the first mapping is untouched by the failed ones
	p, _ := k.Process(proc)
	if maps := p.Mappings(); len(maps) != 1 || maps[0].Size != 0x2000 {
		t.Errorf("mappings = %v", maps)
	}
}

func TestMapHint(t *testing.T) {
	k := New()
	proc := mustProc(t, k)
	a := mustObj(t, k, 0x1000, models.PermRead)
	b := mustObj(t, k, 0x1000, models.PermRead)
	first, err := k.Map(proc, a, 0, models.PermRead, 0)
	if err != nil || first != MmapBase {
		t.Fatalf("Map() = %#x, %v", first, err)
	}
	second, err := k.Map(proc, b, MmapBase, models.PermRead, 0)
	if err != nil || second != MmapBase+0x1000 {
		t.Fatalf("hinted Map() = %#x, %v", second, err)
	}
}

func TestCopyTo(t *testing.T) {
	k := New()
	proc := mustProc(t, k)
	obj := mustObj(t, k, 0x1000, models.PermRead)
	if _, err := k.Map(proc, obj, 0x10000, models.PermRead, models.MapFixed); err != nil {
		t.Fatal(err)
	}
	// read-only for the process, but the kernel may still write
	if err := k.CopyTo(proc, 0x10010, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	got, err := k.ReadFrom(proc, 0x10000, 0x20)
	if err != nil {
		t.Fatal(err)
	}
	want := append(make([]byte, 0x10), "hello"...)
	want = append(want, make([]byte, 0x20-len(want))...)
	if !bytes.Equal(got, want) {
		t.Errorf("memory = %q", got)
	}
	if err := k.CopyTo(proc, 0x10ffe, []byte("spill")); errors.Cause(err) != models.ErrInvalidArgument {
		t.Errorf("copy past mapping = %v", err)
	}
}

type recordRunner struct {
	entry uint64
	err   error
}

func (r *recordRunner) Run(k *Kernel, p *Process) error {
	r.entry = p.Entry
	return r.err
}

func TestStart(t *testing.T) {
	k := New()
	runner := &recordRunner{}
	k.Runner = runner
	proc := mustProc(t, k)
	text := mustObj(t, k, 0x1000, models.PermRead|models.PermExec)
	data := mustObj(t, k, 0x1000, models.PermRead|models.PermWrite)
	k.Map(proc, text, 0x400000, models.PermRead|models.PermExec, models.MapFixed)
	k.Map(proc, data, 0x401000, models.PermRead|models.PermWrite, models.MapFixed)

	if err := k.Start(proc, 0x401000); errors.Cause(err) != models.ErrInvalidArgument {
		t.Errorf("start in data = %v", err)
	}
	if err := k.Start(proc, 0x400010); err != nil {
		t.Fatal(err)
	}
	if runner.entry != 0x400010 {
		t.Errorf("runner saw entry %#x", runner.entry)
	}
	p, _ := k.Process(proc)
	if p.State != Exited {
		t.Errorf("state = %s", p.State)
	}
	if err := k.Start(proc, 0x400010); errors.Cause(err) != models.ErrBadState {
		t.Errorf("second start = %v", err)
	}
	if err := k.CopyTo(proc, 0x400000, []byte{1}); errors.Cause(err) != models.ErrBadState {
		t.Errorf("copy into started process = %v", err)
	}
}

func TestDestroy(t *testing.T) {
	k := New()
	proc := mustProc(t, k)
	obj := mustObj(t, k, 0x1000, models.PermRead)
	k.Map(proc, obj, 0x400000, models.PermRead, models.MapFixed)
	p, _ := k.Process(proc)
	if err := k.Destroy(proc); err != nil {
		t.Fatal(err)
	}
	if p.State != Dead || p.Mem.Mapped(0x400000, 0x1000) {
		t.Error("destroyed process still has its address space")
	}
	if err := k.Destroy(proc); errors.Cause(err) != models.ErrInvalidHandle {
		t.Errorf("double destroy = %v", err)
	}
	// the memobj mapped into the process went with it
	if k.Live() != 0 || k.MemUsed() != 0 {
		t.Errorf("live handles = %d, memory in use = %#x", k.Live(), k.MemUsed())
	}
	if err := k.Destroy(obj); errors.Cause(err) != models.ErrInvalidHandle {
		t.Errorf("destroy of released memobj = %v", err)
	}
}

func TestDestroyUnmappedMemobj(t *testing.T) {
	k := New()
	proc := mustProc(t, k)
	mapped := mustObj(t, k, 0x1000, models.PermRead)
	spare := mustObj(t, k, 0x1000, models.PermRead)
	k.Map(proc, mapped, 0x400000, models.PermRead, models.MapFixed)
	// destroying the memobj first leaves nothing for the process to release
	if err := k.Destroy(mapped); err != nil {
		t.Fatal(err)
	}
	if err := k.Destroy(proc); err != nil {
		t.Fatal(err)
	}
	if k.Live() != 1 || k.MemUsed() != 0x1000 {
		t.Errorf("live handles = %d, memory in use = %#x", k.Live(), k.MemUsed())
	}
	k.Destroy(spare)
}

func TestMemLimit(t *testing.T) {
	k := New()
	if _, err := k.MemobjCreate(1<<45, models.PermRead); errors.Cause(err) != models.ErrNoMemory {
		t.Errorf("huge memobj = %v", err)
	}
	k.MemLimit = 0x3000
	a := mustObj(t, k, 0x2000, models.PermRead)
	if _, err := k.MemobjCreate(0x2000, models.PermRead); errors.Cause(err) != models.ErrNoMemory {
		t.Errorf("memobj past the limit = %v", err)
	}
	mustObj(t, k, 0x1000, models.PermRead)
	if k.MemUsed() != 0x3000 {
		t.Errorf("memory in use = %#x", k.MemUsed())
	}
	k.Destroy(a)
	if _, err := k.MemobjCreate(0x2000, models.PermRead); err != nil {
		t.Errorf("memobj after release = %v", err)
	}
}

func TestBootArchive(t *testing.T) {
	k := New()
	if _, _, err := k.BootArchive(); err == nil {
		t.Error("BootArchive() without an archive succeeded")
	}
	region := bytes.Repeat([]byte{7}, 0x3000)
	k.SetBootArchive(region, false)
	base, n, err := k.BootArchive()
	if err != nil || base != BootBase || n != 0 {
		t.Fatalf("BootArchive() = %#x, %#x, %v", base, n, err)
	}
	view, err := k.ReadBoot(base, 1<<24)
	if err != nil || len(view) != len(region) {
		t.Fatalf("ReadBoot() = %d bytes, %v", len(view), err)
	}
	view, err = k.ReadBoot(base+0x1000, 0x10)
	if err != nil || len(view) != 0x10 {
		t.Fatalf("ReadBoot(offset) = %d bytes, %v", len(view), err)
	}
	if _, err := k.ReadBoot(base-1, 1); err == nil {
		t.Error("ReadBoot below region succeeded")
	}
	k.SetBootArchive(region, true)
	if _, n, _ := k.BootArchive(); n != 0x3000 {
		t.Errorf("known length = %#x", n)
	}
}

func TestEndpoint(t *testing.T) {
	k := New()
	ep, err := k.EndpointCreate()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := k.EndpointReceive(ep); errors.Cause(err) != models.ErrWouldBlock {
		t.Errorf("receive on empty endpoint = %v", err)
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		k.EndpointSend(ep, []byte("proceed"))
	}()
	if err := k.WaitFor(ep); err != nil {
		t.Fatal(err)
	}
	msg, err := k.EndpointReceive(ep)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Length != 7 || string(msg.Payload) != "proceed" {
		t.Errorf("message = %d %q", msg.Length, msg.Payload)
	}
	if k.Outstanding() != 1 {
		t.Error("message not tracked")
	}
	if err := k.FreeMessage(msg); err != nil {
		t.Fatal(err)
	}
	if err := k.FreeMessage(msg); errors.Cause(err) != models.ErrInvalidArgument {
		t.Errorf("double free = %v", err)
	}
	if err := k.EndpointDestroy(ep); err != nil {
		t.Fatal(err)
	}
	if err := k.WaitFor(ep); errors.Cause(err) != models.ErrInvalidHandle {
		t.Errorf("wait on destroyed endpoint = %v", err)
	}
}

func TestEndpointDestroyWakesWaiter(t *testing.T) {
	k := New()
	ep, _ := k.EndpointCreate()
	done := make(chan error)
	go func() { done <- k.WaitFor(ep) }()
	time.Sleep(10 * time.Millisecond)
	k.EndpointDestroy(ep)
	select {
	case err := <-done:
		if errors.Cause(err) != models.ErrInvalidHandle {
			t.Errorf("WaitFor() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by destroy")
	}
}
