// Package boot finds the init executable in the boot archive, loads it
// into a new process and starts it.
package boot

import (
	"encoding/hex"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sereneos/initsys/go/loader"
	"github.com/sereneos/initsys/go/logflags"
	"github.com/sereneos/initsys/go/models"
	"github.com/sereneos/initsys/go/tar"
)

type Driver struct {
	Kernel models.Kernel
	IPC    models.IPC
	Config *models.Config

	// Endpoint is the rendezvous channel to wait on. When it is
	// InvalidHandle the driver creates one, reports it through OnEndpoint
	// and destroys it afterwards.
	Endpoint   models.Handle
	OnEndpoint func(ep models.Handle)

	Log *logrus.Entry
}

type Result struct {
	Process  models.Handle
	Entry    uint64
	Segments []models.Segment
	// Message is a copy of the completion message payload.
	Message []byte
}

func (d *Driver) logger() *logrus.Entry {
	if d.Log == nil {
		d.Log = logflags.BootLogger()
	}
	return d.Log
}

func (d *Driver) config() *models.Config {
	if d.Config == nil {
		d.Config = models.DefaultConfig()
	}
	return d.Config
}

// Run performs the whole boot sequence. Any error is a *StageError and is
// fatal: nothing is retried.
func (d *Driver) Run() (*Result, error) {
	log := d.logger()
	cfg := d.config()
	target := cfg.Target
	if target == "" {
		target = models.DefaultTarget
	}

	archive, err := d.Archive()
	if err != nil {
		return nil, &StageError{Stage: StageArchive, Err: err}
	}
	data, err := archive.Read(target)
	if err != nil {
		return nil, &StageError{Stage: StageRead, Path: target, Err: err}
	}
	log.Debugf("found %s (%d bytes)", target, len(data))

	img, err := loader.Load(d.Kernel, data)
	if err != nil {
		return nil, &StageError{Stage: StageLoad, Path: target, Err: err}
	}
	g := Guard(d.Kernel, img.Process, log)
	defer g.Release()
	for _, seg := range img.Segments {
		log.Debugf("mapped %s", &seg)
	}

	if err := d.Kernel.Start(img.Process, img.Entry); err != nil {
		return nil, &StageError{Stage: StageStart, Path: target, Err: err}
	}
	g.Disarm()
	log.Infof("started %s as process %d at %#x", target, img.Process, img.Entry)

	res := &Result{Process: img.Process, Entry: img.Entry, Segments: img.Segments}
	if cfg.WaitMessage {
		msg, err := d.wait()
		if err != nil {
			return res, &StageError{Stage: StageWait, Path: target, Err: err}
		}
		res.Message = msg
	}
	return res, nil
}

// Archive returns a reader over the boot archive. Without a length from
// the kernel it falls back to the configured view size, which the kernel
// clips to the region it handed out.
func (d *Driver) Archive() (*tar.Archive, error) {
	log := d.logger()
	base, n, err := d.IPC.BootArchive()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		n = d.config().ViewSize
		if n == 0 {
			n = models.DefaultViewSize
		}
		log.Debugf("boot archive length unknown, using a %#x byte view", n)
	}
	view, err := d.IPC.ReadBoot(base, n)
	if err != nil {
		return nil, err
	}
	log.Debugf("boot archive at %#x, %#x bytes", base, len(view))
	archive := tar.New(view)
	if logflags.Boot() {
		paths, err := archive.List("/")
		for _, p := range paths {
			log.Debugf("archive: %s", p)
		}
		if err != nil {
			log.WithError(err).Warn("archive listing stopped early")
		}
	}
	return archive, nil
}

func (d *Driver) wait() ([]byte, error) {
	log := d.logger()
	ep := d.Endpoint
	if ep == models.InvalidHandle {
		var err error
		if ep, err = d.IPC.EndpointCreate(); err != nil {
			return nil, errors.Wrap(err, "endpoint_create")
		}
		defer func() {
			if err := d.IPC.EndpointDestroy(ep); err != nil {
				log.WithError(err).Warnf("destroy endpoint %d", ep)
			}
		}()
		if d.OnEndpoint != nil {
			d.OnEndpoint(ep)
		}
	}
	if err := d.IPC.WaitFor(ep); err != nil {
		return nil, errors.Wrap(err, "wait_for")
	}
	msg, err := d.IPC.EndpointReceive(ep)
	if err != nil {
		return nil, errors.Wrap(err, "endpoint_receive")
	}
	n := int(msg.Length)
	if n > len(msg.Payload) {
		n = len(msg.Payload)
	}
	payload := append([]byte(nil), msg.Payload[:n]...)
	if err := d.IPC.FreeMessage(msg); err != nil {
		return nil, errors.Wrap(err, "free_message")
	}
	if utf8.Valid(payload) {
		log.Infof("recv on %d: %q", ep, payload)
	} else {
		log.Infof("recv on %d: %s", ep, hex.EncodeToString(payload))
	}
	return payload, nil
}
