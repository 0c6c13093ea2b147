package sim

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/sereneos/initsys/go/models"
)

// BootBase is where the boot archive region is placed.
const BootBase = 0x10000000

// SetBootArchive installs the boot archive region. The region's extent is
// len(data). When known is false BootArchive reports a zero length, like a
// kernel that only hands out the base address.
func (k *Kernel) SetBootArchive(data []byte, known bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.boot = data
	k.bootBase = BootBase
	k.bootKnown = known
}

func (k *Kernel) BootArchive() (uint64, uint64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.boot == nil {
		return 0, 0, errors.Wrap(models.ErrInvalidArgument, "no boot archive")
	}
	var n uint64
	if k.bootKnown {
		n = uint64(len(k.boot))
	}
	k.trace("boot_archive() = %#x, %#x", k.bootBase, n)
	return k.bootBase, n, nil
}

// ReadBoot returns a view of the boot region. The view is clipped to the
// region's extent.
func (k *Kernel) ReadBoot(base, size uint64) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	extent := uint64(len(k.boot))
	if k.boot == nil || base < k.bootBase || base-k.bootBase > extent {
		return nil, errors.Wrapf(models.ErrInvalidArgument, "boot region does not contain %#x", base)
	}
	off := base - k.bootBase
	if size > extent-off {
		size = extent - off
	}
	return k.boot[off : off+size : off+size], nil
}

type wireHeader struct {
	Length uint32
}

type endpoint struct {
	queue  [][]byte
	closed bool
	k      *Kernel
}

func (e *endpoint) close() {
	e.closed = true
	e.queue = nil
	e.k.wake.Broadcast()
}

func (k *Kernel) EndpointCreate() (models.Handle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	h := k.alloc(&endpoint{k: k})
	k.trace("endpoint_create() = %d", h)
	return h, nil
}

func (k *Kernel) EndpointDestroy(ep models.Handle) error {
	k.mu.Lock()
	_, err := k.endpoint(ep)
	k.mu.Unlock()
	if err != nil {
		return err
	}
	return k.Destroy(ep)
}

// EndpointSend queues payload on ep. It is safe to call from another
// goroutine while a WaitFor is blocked.
func (k *Kernel) EndpointSend(ep models.Handle, payload []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, err := k.endpoint(ep)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := struc.PackWithOrder(&buf, &wireHeader{Length: uint32(len(payload))}, binary.LittleEndian); err != nil {
		return errors.Wrap(err, "struc.Pack() failed")
	}
	buf.Write(payload)
	e.queue = append(e.queue, buf.Bytes())
	k.trace("endpoint_send(%d, %#x)", ep, len(payload))
	k.wake.Broadcast()
	return nil
}

// WaitFor blocks until ep has a message. It fails if ep is destroyed while
// waiting.
func (k *Kernel) WaitFor(ep models.Handle) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, err := k.endpoint(ep)
	if err != nil {
		return err
	}
	k.trace("wait_for(%d)", ep)
	for len(e.queue) == 0 {
		if e.closed {
			return errors.Wrapf(models.ErrInvalidHandle, "endpoint %d destroyed while waiting", ep)
		}
		k.wake.Wait()
	}
	return nil
}

// EndpointReceive dequeues one message without blocking.
func (k *Kernel) EndpointReceive(ep models.Handle) (*models.Message, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, err := k.endpoint(ep)
	if err != nil {
		return nil, err
	}
	if len(e.queue) == 0 {
		return nil, errors.Wrapf(models.ErrWouldBlock, "endpoint %d is empty", ep)
	}
	raw := e.queue[0]
	e.queue = e.queue[1:]
	var hdr wireHeader
	if err := struc.UnpackWithOrder(bytes.NewReader(raw), &hdr, binary.LittleEndian); err != nil {
		return nil, errors.Wrap(err, "struc.Unpack() failed")
	}
	msg := &models.Message{Length: hdr.Length, Payload: raw[4 : 4+hdr.Length]}
	k.messages[msg] = true
	k.trace("endpoint_receive(%d) = %#x bytes", ep, hdr.Length)
	return msg, nil
}

func (k *Kernel) FreeMessage(msg *models.Message) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.messages[msg] {
		return errors.Wrap(models.ErrInvalidArgument, "message not outstanding")
	}
	delete(k.messages, msg)
	msg.Payload = nil
	k.trace("endpoint_free_message()")
	return nil
}

// Outstanding returns the number of received messages not yet freed.
func (k *Kernel) Outstanding() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.messages)
}
