package models

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
)

const (
	DefaultTarget   = "/init"
	DefaultViewSize = 16 * 1024 * 1024
	DefaultBudget   = 1000000
)

type Config struct {
	Archive     string `toml:"archive"`
	Target      string `toml:"target"`
	WaitMessage bool   `toml:"wait_message"`
	ViewSize    uint64 `toml:"view_size"`

	Run    bool   `toml:"run"`
	Budget uint64 `toml:"budget"`

	Verbose   bool   `toml:"verbose"`
	TraceKern bool   `toml:"trace_kernel"`
	Log       bool   `toml:"log"`
	LogLayers string `toml:"log_layers"`
}

func DefaultConfig() *Config {
	return &Config{
		Target:   DefaultTarget,
		ViewSize: DefaultViewSize,
		Budget:   DefaultBudget,
	}
}

// ConfigPath returns the first existing config.toml in the user or system
// config folders, or "" if there is none.
func ConfigPath() string {
	dirs := configdir.New("sereneos", "initsys")
	if folder := dirs.QueryFolderContainsFile("config.toml"); folder != nil {
		return filepath.Join(folder.Path, "config.toml")
	}
	return ""
}

// Load merges the TOML file at path over c. A missing file is not an error
// when path came from ConfigPath.
func (c *Config) Load(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(err, "config %s", path)
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return errors.Wrapf(err, "config %s", path)
	}
	return nil
}
