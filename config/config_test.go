package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsZeroValueDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent", "config.ini")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != "" || c.Baud != 0 || c.FirmwareRoot != "" || c.Verbosity != 0 {
		t.Errorf("expected zero-value defaults, got %+v", c)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".modiflash", "config.ini")
	c := &Config{Port: "/dev/ttyUSB0", Baud: 921600, FirmwareRoot: "/opt/modi/firmware", Verbosity: 2, path: path}
	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Port != c.Port || loaded.Baud != c.Baud || loaded.FirmwareRoot != c.FirmwareRoot || loaded.Verbosity != c.Verbosity {
		t.Errorf("loaded = %+v, want %+v", loaded, c)
	}
}
