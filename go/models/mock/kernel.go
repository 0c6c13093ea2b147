package mock

import (
	"fmt"

	"github.com/sereneos/initsys/go/models"
)

// Kernel records capability calls and forwards them to Next. With Next nil
// every call succeeds and Map returns the requested address.
type Kernel struct {
	Next models.Kernel

	// Fail makes the named call return the error.
	Fail map[string]error
	// Shift is added to every address Map returns.
	Shift uint64

	Calls     []string
	Destroyed []models.Handle
	Copies    map[uint64][]byte

	next models.Handle
}

func (k *Kernel) call(name string, format string, args ...interface{}) error {
	k.Calls = append(k.Calls, name+fmt.Sprintf(format, args...))
	if err, ok := k.Fail[name]; ok {
		return err
	}
	return nil
}

func (k *Kernel) handle() models.Handle {
	k.next++
	return k.next
}

// Count returns how many times the named call was made.
func (k *Kernel) Count(name string) int {
	n := 0
	for _, c := range k.Calls {
		if len(c) >= len(name) && c[:len(name)] == name && (len(c) == len(name) || c[len(name)] == '(') {
			n++
		}
	}
	return n
}

func (k *Kernel) ProcessCreateEmpty() (models.Handle, error) {
	if err := k.call("process_create_empty", "()"); err != nil {
		return 0, err
	}
	if k.Next != nil {
		return k.Next.ProcessCreateEmpty()
	}
	return k.handle(), nil
}

func (k *Kernel) MemobjCreate(size uint64, perms models.Perm) (models.Handle, error) {
	if err := k.call("memobj_create", "(%#x, %s)", size, perms); err != nil {
		return 0, err
	}
	if k.Next != nil {
		return k.Next.MemobjCreate(size, perms)
	}
	return k.handle(), nil
}

func (k *Kernel) Map(proc, obj models.Handle, addr uint64, perms models.Perm, flags models.MapFlags) (uint64, error) {
	if err := k.call("map", "(%d, %d, %#x, %s, %d)", proc, obj, addr, perms, flags); err != nil {
		return 0, err
	}
	if k.Next != nil {
		got, err := k.Next.Map(proc, obj, addr, perms, flags)
		return got + k.Shift, err
	}
	return addr + k.Shift, nil
}

func (k *Kernel) CopyTo(proc models.Handle, dst uint64, src []byte) error {
	if err := k.call("copy_to", "(%d, %#x, %#x)", proc, dst, len(src)); err != nil {
		return err
	}
	if k.Copies == nil {
		k.Copies = make(map[uint64][]byte)
	}
	k.Copies[dst] = append([]byte(nil), src...)
	if k.Next != nil {
		return k.Next.CopyTo(proc, dst, src)
	}
	return nil
}

func (k *Kernel) Start(proc models.Handle, entry uint64) error {
	if err := k.call("start", "(%d, %#x)", proc, entry); err != nil {
		return err
	}
	if k.Next != nil {
		return k.Next.Start(proc, entry)
	}
	return nil
}

func (k *Kernel) Destroy(h models.Handle) error {
	if err := k.call("destroy", "(%d)", h); err != nil {
		return err
	}
	k.Destroyed = append(k.Destroyed, h)
	if k.Next != nil {
		return k.Next.Destroy(h)
	}
	return nil
}
