// Package emu runs started processes on a unicorn x86_64 CPU.
package emu

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/sereneos/initsys/go/cpu"
	"github.com/sereneos/initsys/go/kernel/sim"
	"github.com/sereneos/initsys/go/logflags"
	"github.com/sereneos/initsys/go/models"
)

const (
	StackTop  = 0x7ff000000000
	StackSize = 0x10000
)

// syscall numbers
const (
	SysWrite     = 1
	SysExit      = 60
	SysExitGroup = 231
	// SysSend queues rsi:rdx on endpoint rdi.
	SysSend = 0x1000
)

const enosys = 38

var argRegs = []int{uc.X86_REG_RDI, uc.X86_REG_RSI, uc.X86_REG_RDX}

var ErrBudget = errors.New("instruction budget exhausted")

type ExitError struct {
	Status int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Status)
}

// Runner is a sim.Runner. A zero Budget runs without an instruction limit.
type Runner struct {
	Budget uint64
	Stdout io.Writer
	// Trace logs every executed instruction.
	Trace bool
	// Args are placed in rdi, rsi and rdx at entry.
	Args []uint64

	log *logrus.Entry
	dis *cpu.Capstr
}

func (r *Runner) logger() *logrus.Entry {
	if r.log == nil {
		r.log = logflags.EmuLogger()
	}
	return r.log
}

type run struct {
	*Runner
	mu     uc.Unicorn
	k      *sim.Kernel
	p      *sim.Process
	exited bool
	status int
	err    error
}

// Run copies the process address space into a fresh CPU, gives it a stack
// and executes from the entry point until exit, fault or budget.
func (r *Runner) Run(k *sim.Kernel, p *sim.Process) error {
	log := r.logger()
	if err := r.mapStack(k, p); err != nil {
		return err
	}
	mu, err := uc.NewUnicorn(uc.ARCH_X86, uc.MODE_64)
	if err != nil {
		return errors.Wrap(err, "NewUnicorn() failed")
	}
	defer mu.Close()
	for _, page := range p.Mem.Maps() {
		log.Debugf("map %s", page)
		if err := mu.MemMapProt(page.Addr, page.Size, page.Prot); err != nil {
			return errors.Wrapf(err, "MemMap(%#x, %#x)", page.Addr, page.Size)
		}
		if err := mu.MemWrite(page.Addr, page.Data); err != nil {
			return errors.Wrapf(err, "MemWrite(%#x)", page.Addr)
		}
	}
	if err := mu.RegWrite(uc.X86_REG_RSP, StackTop); err != nil {
		return errors.Wrap(err, "RegWrite(rsp)")
	}
	if len(r.Args) > len(argRegs) {
		return errors.Errorf("too many entry arguments: %d", len(r.Args))
	}
	for i, arg := range r.Args {
		if err := mu.RegWrite(argRegs[i], arg); err != nil {
			return errors.Wrap(err, "RegWrite(arg)")
		}
	}

	ru := &run{Runner: r, mu: mu, k: k, p: p}
	if err := ru.hooks(); err != nil {
		return err
	}
	log.Debugf("process %d: running at %#x, budget %d", p.Handle, p.Entry, r.Budget)
	err = mu.StartWithOptions(p.Entry, 0xffffffffffffffff, &uc.UcOptions{Count: r.Budget})
	ru.writeback()
	switch {
	case ru.err != nil:
		return ru.err
	case err != nil:
		return errors.Wrap(err, "emulation failed")
	case !ru.exited:
		return ErrBudget
	case ru.status != 0:
		return &ExitError{Status: ru.status}
	}
	log.Debugf("process %d: exited", p.Handle)
	return nil
}

func (r *Runner) mapStack(k *sim.Kernel, p *sim.Process) error {
	obj, err := k.MemobjCreate(StackSize, models.PermRead|models.PermWrite)
	if err != nil {
		return errors.Wrap(err, "stack memobj_create")
	}
	if _, err := k.Map(p.Handle, obj, StackTop-StackSize, models.PermRead|models.PermWrite, models.MapFixed); err != nil {
		if derr := k.Destroy(obj); derr != nil {
			r.logger().WithError(derr).Warnf("destroy handle %d", obj)
		}
		return errors.Wrap(err, "stack map")
	}
	return nil
}

// writeback copies writable pages back into the process so the kernel
// sees what the program left in memory.
func (r *run) writeback() {
	for _, page := range r.p.Mem.Maps() {
		if page.Prot&uc.PROT_WRITE == 0 {
			continue
		}
		data, err := r.mu.MemRead(page.Addr, page.Size)
		if err != nil {
			r.logger().WithError(err).Warnf("writeback %s", page)
			continue
		}
		copy(page.Data, data)
	}
}

func (r *run) hooks() error {
	log := r.logger()
	if _, err := r.mu.HookAdd(uc.HOOK_INSN, func(_ uc.Unicorn) {
		r.syscall()
	}, 1, 0, uc.X86_INS_SYSCALL); err != nil {
		return errors.Wrap(err, "HookAdd(syscall)")
	}
	if _, err := r.mu.HookAdd(uc.HOOK_MEM_INVALID, func(_ uc.Unicorn, access int, addr uint64, size int, value int64) bool {
		what := "read"
		if access == uc.MEM_WRITE || access == uc.MEM_WRITE_UNMAPPED || access == uc.MEM_WRITE_PROT {
			what = "write"
		} else if access == uc.MEM_FETCH_UNMAPPED || access == uc.MEM_FETCH_PROT {
			what = "fetch"
		}
		r.err = errors.Errorf("invalid %s at %#x (%d bytes)", what, addr, size)
		log.Warn(r.err)
		return false
	}, 1, 0); err != nil {
		return errors.Wrap(err, "HookAdd(mem)")
	}
	if r.Trace {
		if r.dis == nil {
			r.dis = cpu.NewX86_64()
		}
		if _, err := r.mu.HookAdd(uc.HOOK_CODE, func(mu uc.Unicorn, addr uint64, size uint32) {
			mem, err := mu.MemRead(addr, uint64(size))
			if err != nil {
				return
			}
			if dis, err := r.dis.Disas(mem, addr); err == nil {
				log.Debug(dis)
			}
		}, 1, 0); err != nil {
			return errors.Wrap(err, "HookAdd(code)")
		}
	}
	return nil
}

func (r *run) reg(enum int) uint64 {
	val, _ := r.mu.RegRead(enum)
	return val
}

func (r *run) syscall() {
	log := r.logger()
	num := r.reg(uc.X86_REG_RAX)
	a0, a1, a2 := r.reg(uc.X86_REG_RDI), r.reg(uc.X86_REG_RSI), r.reg(uc.X86_REG_RDX)
	var ret uint64
	switch num {
	case SysExit, SysExitGroup:
		r.exited = true
		r.status = int(int32(a0))
		log.Debugf("process %d: exit(%d)", r.p.Handle, r.status)
		r.mu.Stop()
		return
	case SysWrite:
		buf, err := r.mu.MemRead(a1, a2)
		if err != nil {
			ret = ^uint64(14 - 1) // -EFAULT
			break
		}
		w := r.Stdout
		if w == nil {
			w = os.Stdout
		}
		n, _ := w.Write(buf)
		ret = uint64(n)
	case SysSend:
		buf, err := r.mu.MemRead(a1, a2)
		if err != nil {
			ret = ^uint64(14 - 1)
			break
		}
		if err := r.k.EndpointSend(models.Handle(a0), buf); err != nil {
			log.WithError(err).Warnf("process %d: send(%d)", r.p.Handle, a0)
			ret = ^uint64(22 - 1) // -EINVAL
		}
	default:
		log.Debugf("process %d: unknown syscall %d", r.p.Handle, num)
		ret = ^uint64(enosys - 1)
	}
	r.mu.RegWrite(uc.X86_REG_RAX, ret)
}
