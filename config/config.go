// Package config loads the local tool configuration (A4): default port,
// baud override, firmware root, and verbosity, persisted as an ini file
// the way mos/aws stores its shared credentials file.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-ini/ini"
	"github.com/juju/errors"
)

const (
	defaultDirName  = ".modiflash"
	configFileName  = "config.ini"
	sectionDefaults = "defaults"
)

// Config is the local tool's persisted defaults, overridable per-run by
// CLI flags (§A4).
type Config struct {
	Port         string
	Baud         int
	FirmwareRoot string
	Verbosity    int

	path string
}

// Path returns the default config file location under the user's home
// directory.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Annotatef(err, "resolving home directory")
	}
	return filepath.Join(home, defaultDirName, configFileName), nil
}

// Load reads the config file at path, returning zero-value defaults (not
// an error) if it doesn't exist yet — first run has no config.
func Load(path string) (*Config, error) {
	cf, err := ini.Load(path)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return &Config{path: path}, nil
		}
		cf = ini.Empty()
	}
	sec := cf.Section(sectionDefaults)
	baud, _ := strconv.Atoi(sec.Key("baud").String())
	verbosity, _ := strconv.Atoi(sec.Key("verbosity").String())
	return &Config{
		Port:         sec.Key("port").String(),
		Baud:         baud,
		FirmwareRoot: sec.Key("firmware_root").String(),
		Verbosity:    verbosity,
		path:         path,
	}, nil
}

// Save persists c to its path, creating the parent directory if needed.
func (c *Config) Save() error {
	if c.path == "" {
		p, err := Path()
		if err != nil {
			return errors.Trace(err)
		}
		c.path = p
	}
	cf := ini.Empty()
	sec := cf.Section(sectionDefaults)
	sec.NewKey("port", c.Port)
	sec.NewKey("baud", strconv.Itoa(c.Baud))
	sec.NewKey("firmware_root", c.FirmwareRoot)
	sec.NewKey("verbosity", strconv.Itoa(c.Verbosity))

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return errors.Annotatef(err, "creating config directory")
	}
	if err := cf.SaveTo(c.path); err != nil {
		return errors.Annotatef(err, "saving %s", c.path)
	}
	return nil
}
