package sim

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/sereneos/initsys/go/models"
)

type memobj struct {
	data []byte
	perm models.Perm
}

// MemobjCreate allocates size bytes of zeroed memory. size must be a
// non-zero multiple of the page size and fit in what is left of MemLimit.
func (k *Kernel) MemobjCreate(size uint64, perms models.Perm) (models.Handle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if size == 0 || size%models.PageSize != 0 || perms&^models.PermAll != 0 {
		k.trace("memobj_create(%#x, %s) = invalid", size, perms)
		return models.InvalidHandle, errors.Wrapf(models.ErrInvalidArgument, "memobj size %#x", size)
	}
	if size > k.MemLimit || k.memUsed > k.MemLimit-size {
		k.trace("memobj_create(%#x, %s) = no memory", size, perms)
		return models.InvalidHandle, errors.Wrapf(models.ErrNoMemory, "memobj size %#x, %#x of %#x in use", size, k.memUsed, k.MemLimit)
	}
	k.memUsed += size
	h := k.alloc(&memobj{data: make([]byte, size), perm: perms})
	k.trace("memobj_create(%#x, %s) = %d", size, perms, h)
	return h, nil
}

// Map maps obj into proc. Without MapFixed, addr is a hint and the mapping
// goes to the first free range at or above it.
func (k *Kernel) Map(proc, obj models.Handle, addr uint64, perms models.Perm, flags models.MapFlags) (uint64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, err := k.process(proc)
	if err != nil {
		return 0, err
	}
	m, err := k.memobj(obj)
	if err != nil {
		return 0, err
	}
	if p.State != Created && p.State != Running {
		return 0, errors.Wrapf(models.ErrBadState, "process %d is %s", proc, p.State)
	}
	if perms&^m.perm != 0 {
		return 0, errors.Wrapf(models.ErrInvalidArgument, "perms %s exceed memobj perms %s", perms, m.perm)
	}
	size := uint64(len(m.data))
	if addr%models.PageSize != 0 {
		return 0, errors.Wrapf(models.ErrInvalidArgument, "unaligned address %#x", addr)
	}
	if flags&models.MapFixed != 0 {
		if p.Mem.Mapped(addr, size) {
			k.trace("map(%d, %d, %#x, %s, fixed) = in use", proc, obj, addr, perms)
			return 0, errors.Wrapf(models.ErrAddressInUse, "%#x-%#x", addr, addr+size)
		}
	} else {
		if addr < MmapBase {
			addr = MmapBase
		}
		addr = p.findFree(addr, size)
	}
	if err := p.Mem.MemMapShared(addr, m.data, int(perms), fmt.Sprintf("memobj %d", obj)); err != nil {
		return 0, errors.Wrap(models.ErrInvalidArgument, err.Error())
	}
	p.maps = append(p.maps, &models.Mmap{Addr: addr, Size: size, Perm: perms, Obj: obj})
	sort.Sort(models.MmapAddrSort(p.maps))
	k.trace("map(%d, %d, %#x, %s, %d) = %#x", proc, obj, addr, perms, flags, addr)
	return addr, nil
}

func (p *Process) findFree(addr, size uint64) uint64 {
	for _, m := range p.maps {
		if m.Addr+m.Size <= addr {
			continue
		}
		if m.Addr >= addr+size {
			break
		}
		addr = m.Addr + m.Size
	}
	return addr
}

// CopyTo writes src into proc at dst regardless of page protections. Only
// processes that have not been started accept copies.
func (k *Kernel) CopyTo(proc models.Handle, dst uint64, src []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, err := k.process(proc)
	if err != nil {
		return err
	}
	if p.State != Created {
		return errors.Wrapf(models.ErrBadState, "process %d is %s", proc, p.State)
	}
	if err := p.Mem.MemWrite(dst, src); err != nil {
		k.trace("copy_to(%d, %#x, %#x) = %v", proc, dst, len(src), err)
		return errors.Wrap(models.ErrInvalidArgument, err.Error())
	}
	k.trace("copy_to(%d, %#x, %#x)", proc, dst, len(src))
	return nil
}

// ReadFrom reads n bytes of proc's memory at addr, for inspection.
func (k *Kernel) ReadFrom(proc models.Handle, addr, n uint64) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, err := k.process(proc)
	if err != nil {
		return nil, err
	}
	data, err := p.Mem.MemRead(addr, n)
	if err != nil {
		return nil, errors.Wrap(models.ErrInvalidArgument, err.Error())
	}
	return data, nil
}
