// Package sim is an in-process microkernel exposing the capability
// interface: processes, memory objects, fixed mappings and endpoints, all
// named by handles.
package sim

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sereneos/initsys/go/logflags"
	"github.com/sereneos/initsys/go/models"
)

// user address space width
const AddrBits = 47

// non-fixed mappings are placed at or above this address
const MmapBase = 0x7f0000000000

// DefaultMemLimit caps the bytes held by live memory objects.
const DefaultMemLimit = 1 << 30

// Runner executes a process once Start has succeeded.
type Runner interface {
	Run(k *Kernel, p *Process) error
}

type Kernel struct {
	mu      sync.Mutex
	wake    *sync.Cond
	handles map[models.Handle]interface{}
	next    models.Handle
	log     *logrus.Entry

	boot      []byte
	bootBase  uint64
	bootKnown bool
	messages  map[*models.Message]bool

	memUsed uint64
	// MemLimit is the total size of live memory objects. MemobjCreate
	// fails with ErrNoMemory past it.
	MemLimit uint64
	Runner   Runner
}

func New() *Kernel {
	k := &Kernel{
		handles:  make(map[models.Handle]interface{}),
		next:     1,
		log:      logflags.KernelLogger(),
		messages: make(map[*models.Message]bool),
		MemLimit: DefaultMemLimit,
	}
	k.wake = sync.NewCond(&k.mu)
	return k
}

func (k *Kernel) trace(format string, args ...interface{}) {
	if logflags.Kernel() {
		k.log.Debug(fmt.Sprintf(format, args...))
	}
}

// alloc must be called with mu held.
func (k *Kernel) alloc(obj interface{}) models.Handle {
	h := k.next
	k.next++
	k.handles[h] = obj
	return h
}

func (k *Kernel) process(h models.Handle) (*Process, error) {
	if p, ok := k.handles[h].(*Process); ok {
		return p, nil
	}
	return nil, errors.Wrapf(models.ErrInvalidHandle, "handle %d is not a process", h)
}

func (k *Kernel) memobj(h models.Handle) (*memobj, error) {
	if m, ok := k.handles[h].(*memobj); ok {
		return m, nil
	}
	return nil, errors.Wrapf(models.ErrInvalidHandle, "handle %d is not a memory object", h)
}

func (k *Kernel) endpoint(h models.Handle) (*endpoint, error) {
	if e, ok := k.handles[h].(*endpoint); ok {
		return e, nil
	}
	return nil, errors.Wrapf(models.ErrInvalidHandle, "handle %d is not an endpoint", h)
}

// Destroy releases any handle. Destroying a process tears down its address
// space and releases every memory object mapped into it; destroying an
// endpoint wakes its waiters.
func (k *Kernel) Destroy(h models.Handle) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	obj, ok := k.handles[h]
	if !ok {
		k.trace("destroy(%d) = invalid", h)
		return errors.Wrapf(models.ErrInvalidHandle, "handle %d", h)
	}
	switch v := obj.(type) {
	case *Process:
		for _, m := range v.maps {
			k.releaseMemobj(m.Obj)
		}
		v.destroy()
	case *memobj:
		k.memUsed -= uint64(len(v.data))
	case *endpoint:
		v.close()
	}
	delete(k.handles, h)
	k.trace("destroy(%d)", h)
	return nil
}

// releaseMemobj drops h if it is still a live memory object. mu must be
// held.
func (k *Kernel) releaseMemobj(h models.Handle) {
	if m, ok := k.handles[h].(*memobj); ok {
		k.memUsed -= uint64(len(m.data))
		delete(k.handles, h)
		k.trace("destroy(%d) with its process", h)
	}
}

// Live returns the number of live handles.
func (k *Kernel) Live() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.handles)
}

// MemUsed returns the bytes held by live memory objects.
func (k *Kernel) MemUsed() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.memUsed
}
