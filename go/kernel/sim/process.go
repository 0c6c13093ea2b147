package sim

import (
	"github.com/pkg/errors"

	"github.com/sereneos/initsys/go/models"
	"github.com/sereneos/initsys/go/models/cpu"
)

type State int

const (
	Created State = iota
	Running
	Exited
	Dead
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Exited:
		return "exited"
	default:
		return "dead"
	}
}

type Process struct {
	Handle models.Handle
	Mem    *cpu.Mem
	State  State
	Entry  uint64
	// Err is set when the Runner fails.
	Err  error
	maps []*models.Mmap
}

func (p *Process) destroy() {
	for _, m := range p.maps {
		p.Mem.MemUnmap(m.Addr, m.Size)
	}
	p.maps = nil
	p.State = Dead
}

// Mappings returns the process mappings sorted by address.
func (p *Process) Mappings() []*models.Mmap {
	ret := make([]*models.Mmap, len(p.maps))
	copy(ret, p.maps)
	return ret
}

func (p *Process) mapping(addr uint64) *models.Mmap {
	for _, m := range p.maps {
		if m.Contains(addr) {
			return m
		}
	}
	return nil
}

func (k *Kernel) ProcessCreateEmpty() (models.Handle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p := &Process{Mem: cpu.NewMem(AddrBits)}
	p.Handle = k.alloc(p)
	k.trace("process_create_empty() = %d", p.Handle)
	return p.Handle, nil
}

// Process returns the live process behind h.
func (k *Kernel) Process(h models.Handle) (*Process, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.process(h)
}

// Start marks the process running at entry and hands it to the Runner, if
// any. entry must lie in an executable mapping.
func (k *Kernel) Start(proc models.Handle, entry uint64) error {
	k.mu.Lock()
	p, err := k.process(proc)
	if err != nil {
		k.mu.Unlock()
		return err
	}
	if p.State != Created {
		k.mu.Unlock()
		return errors.Wrapf(models.ErrBadState, "process %d is %s", proc, p.State)
	}
	if m := p.mapping(entry); m == nil || m.Perm&models.PermExec == 0 {
		k.mu.Unlock()
		k.trace("start(%d, %#x) = invalid entry", proc, entry)
		return errors.Wrapf(models.ErrInvalidArgument, "entry %#x is not in an executable mapping", entry)
	}
	p.State = Running
	p.Entry = entry
	runner := k.Runner
	k.mu.Unlock()
	k.trace("start(%d, %#x)", proc, entry)

	if runner != nil {
		if err := runner.Run(k, p); err != nil {
			k.log.WithError(err).Warnf("process %d failed", proc)
			p.Err = err
		}
		p.State = Exited
	}
	return nil
}
