// Package logflags holds the per-layer loggers. A layer that was not
// enabled by Setup logs nothing.
package logflags

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var boot = false
var loader = false
var kernel = false
var emu = false

var out io.Writer = os.Stderr

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New()
	logger.Out = out
	logger.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	logger.Level = logrus.DebugLevel
	if !flag {
		logger.Level = logrus.PanicLevel
	}
	return logger.WithFields(fields)
}

// Boot returns true if the bootstrap driver should log.
func Boot() bool {
	return boot
}

func BootLogger() *logrus.Entry {
	return makeLogger(boot, logrus.Fields{"layer": "boot"})
}

// Loader returns true if the ELF loader should log each segment.
func Loader() bool {
	return loader
}

func LoaderLogger() *logrus.Entry {
	return makeLogger(loader, logrus.Fields{"layer": "loader"})
}

// Kernel returns true if capability calls should be traced.
func Kernel() bool {
	return kernel
}

func KernelLogger() *logrus.Entry {
	return makeLogger(kernel, logrus.Fields{"layer": "kernel"})
}

func Emu() bool {
	return emu
}

func EmuLogger() *logrus.Entry {
	return makeLogger(emu, logrus.Fields{"layer": "emu"})
}

var errLayersWithoutLog = errors.New("-log-layers specified without -log")

// Setup enables the layers named in the comma separated list layers. An
// empty list with logFlag set enables the boot layer.
func Setup(logFlag bool, layers string, w io.Writer) error {
	if w != nil {
		out = w
	}
	boot, loader, kernel, emu = false, false, false, false
	if !logFlag {
		if layers != "" {
			return errLayersWithoutLog
		}
		return nil
	}
	if layers == "" {
		layers = "boot"
	}
	for _, layer := range strings.Split(layers, ",") {
		switch strings.TrimSpace(layer) {
		case "boot":
			boot = true
		case "loader":
			loader = true
		case "kernel":
			kernel = true
		case "emu":
			emu = true
		case "all":
			boot, loader, kernel, emu = true, true, true, true
		default:
			return errors.Errorf("unknown log layer %q", layer)
		}
	}
	return nil
}
