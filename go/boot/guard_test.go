package boot_test

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/sereneos/initsys/go/boot"
	"github.com/sereneos/initsys/go/models/mock"
)

func TestGuardRelease(t *testing.T) {
	k := &mock.Kernel{}
	g := boot.Guard(k, 3, logrus.NewEntry(logrus.New()))
	g.Release()
	g.Release()
	if len(k.Destroyed) != 1 || k.Destroyed[0] != 3 {
		t.Fatalf("Destroyed = %v, want [3]", k.Destroyed)
	}
}

func TestGuardDisarm(t *testing.T) {
	k := &mock.Kernel{}
	g := boot.Guard(k, 3, logrus.NewEntry(logrus.New()))
	g.Disarm()
	g.Release()
	if len(k.Destroyed) != 0 {
		t.Fatalf("disarmed guard destroyed %v", k.Destroyed)
	}
}

func TestGuardDestroyFails(t *testing.T) {
	k := &mock.Kernel{Fail: map[string]error{"destroy": errors.New("gone")}}
	log := logrus.New()
	var hooked []string
	log.AddHook(hook(func(e *logrus.Entry) { hooked = append(hooked, e.Message) }))
	boot.Guard(k, 5, logrus.NewEntry(log)).Release()
	if len(hooked) != 1 || hooked[0] != "destroy process 5" {
		t.Fatalf("logged %q", hooked)
	}
}

type hook func(*logrus.Entry)

func (h hook) Levels() []logrus.Level     { return logrus.AllLevels }
func (h hook) Fire(e *logrus.Entry) error { h(e); return nil }
