package proc

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"

	"github.com/sereneos/initsys/go/cmd"
	"github.com/sereneos/initsys/go/kernel/sim"
	"github.com/sereneos/initsys/go/models"
)

// Smoke drives the capability calls the loader depends on and checks each
// result. Every handle it creates is destroyed before it returns.
func Smoke(k *sim.Kernel, addr uint64) error {
	proc, err := k.ProcessCreateEmpty()
	if err != nil {
		return errors.Wrap(err, "process_create_empty")
	}
	defer k.Destroy(proc)
	obj, err := k.MemobjCreate(2*models.PageSize, models.PermRead|models.PermWrite)
	if err != nil {
		return errors.Wrap(err, "memobj_create")
	}
	defer k.Destroy(obj)
	got, err := k.Map(proc, obj, addr, models.PermRead|models.PermWrite, models.MapFixed)
	if err != nil {
		return errors.Wrap(err, "map")
	}
	if got != addr {
		return errors.Errorf("map landed at %#x, wanted %#x", got, addr)
	}
	if _, err := k.Map(proc, obj, addr+models.PageSize, models.PermRead, models.MapFixed); errors.Cause(err) != models.ErrAddressInUse {
		return errors.Errorf("overlapping fixed map returned %v", err)
	}
	pattern := []byte("sereneos")
	if err := k.CopyTo(proc, addr+models.PageSize-4, pattern); err != nil {
		return errors.Wrap(err, "copy_to")
	}
	back, err := k.ReadFrom(proc, addr+models.PageSize-4, uint64(len(pattern)))
	if err != nil {
		return errors.Wrap(err, "read back")
	}
	if !bytes.Equal(back, pattern) {
		return errors.Errorf("read back %q", back)
	}
	p, _ := k.Process(proc)
	for _, m := range p.Mappings() {
		fmt.Printf("  %s\n", m)
	}
	return nil
}

func Main(args []string) int {
	c := cmd.NewInitCmd("proc")
	var addr *uint64
	c.SetupFlags = func() error {
		addr = c.Flags.Uint64("addr", 0x400000, "fixed mapping address")
		return nil
	}
	c.Main = func(args []string) error {
		k := sim.New()
		if err := Smoke(k, *addr); err != nil {
			return err
		}
		if live := k.Live(); live != 0 {
			return errors.Errorf("%d handles leaked", live)
		}
		fmt.Println("ok")
		return nil
	}
	return c.Run(args)
}

func init() { cmd.Register("proc", "exercise process creation on the simulated kernel", Main) }
