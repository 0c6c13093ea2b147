package boot

import (
	"github.com/sirupsen/logrus"

	"github.com/sereneos/initsys/go/models"
)

// ProcGuard destroys a loaded process on Release unless it was disarmed
// after a successful start. Use it with defer between Load and Start.
type ProcGuard struct {
	k     models.Kernel
	proc  models.Handle
	armed bool
	log   *logrus.Entry
}

func Guard(k models.Kernel, proc models.Handle, log *logrus.Entry) *ProcGuard {
	return &ProcGuard{k: k, proc: proc, armed: true, log: log}
}

func (g *ProcGuard) Disarm() {
	g.armed = false
}

func (g *ProcGuard) Release() {
	if !g.armed {
		return
	}
	g.armed = false
	if err := g.k.Destroy(g.proc); err != nil {
		g.log.WithError(err).Warnf("destroy process %d", g.proc)
	} else {
		g.log.Debugf("destroyed unstarted process %d", g.proc)
	}
}
