package models

import (
	"github.com/pkg/errors"
)

// Handle is an opaque kernel capability.
type Handle uint64

const InvalidHandle Handle = 0

// Perm is the kernel's memory permission set. Bits are independent, and an
// empty set maps an inaccessible reservation.
type Perm int

const (
	PermNone  Perm = 0
	PermRead  Perm = 1
	PermWrite Perm = 2
	PermExec  Perm = 4
	PermAll   Perm = PermRead | PermWrite | PermExec
)

func (p Perm) String() string {
	chars := []string{"r", "w", "x"}
	prot := ""
	for i, bit := range []Perm{PermRead, PermWrite, PermExec} {
		if p&bit != 0 {
			prot += chars[i]
		} else {
			prot += "-"
		}
	}
	return prot
}

type MapFlags int

// MapFixed requires the mapping to land at exactly the requested address.
const MapFixed MapFlags = 1

const PageSize = 0x1000

// kernel error codes
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidHandle   = errors.New("invalid handle")
	ErrAddressInUse    = errors.New("address in use")
	ErrNoMemory        = errors.New("out of memory")
	ErrWouldBlock      = errors.New("would block")
	ErrBadState        = errors.New("bad process state")
)

// Kernel is the process/memory/execution capability interface the loader
// drives. Every call is synchronous.
type Kernel interface {
	ProcessCreateEmpty() (Handle, error)
	MemobjCreate(size uint64, perms Perm) (Handle, error)
	// Map maps obj into proc. addr is a hint unless flags has MapFixed.
	// The returned address is where the mapping actually landed.
	Map(proc, obj Handle, addr uint64, perms Perm, flags MapFlags) (uint64, error)
	CopyTo(proc Handle, dst uint64, src []byte) error
	Start(proc Handle, entry uint64) error
	Destroy(h Handle) error
}

// Message is a received IPC message. Payload is only valid until the
// message is freed.
type Message struct {
	Length  uint32
	Payload []byte
}

// IPC is the rendezvous and boot-information interface the bootstrap
// driver consumes on top of Kernel.
type IPC interface {
	// BootArchive reports the boot archive's base address and its length in
	// bytes. A zero length means the kernel does not know it.
	BootArchive() (base uint64, length uint64, err error)
	// ReadBoot returns a view of size bytes of the boot region at base.
	ReadBoot(base, size uint64) ([]byte, error)
	EndpointCreate() (Handle, error)
	EndpointDestroy(ep Handle) error
	WaitFor(ep Handle) error
	EndpointReceive(ep Handle) (*Message, error)
	FreeMessage(msg *Message) error
}
