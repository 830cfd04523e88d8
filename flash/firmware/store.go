// Package firmware implements the Firmware Store (C5): resolving
// (module_type, section, version) to a binary blob and its flash layout,
// and the manifest describing which version of each type is current.
package firmware

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/kardianos/osext"
	flock "github.com/theckman/go-flock"

	"github.com/modi-tools/fw-updater/flash/catalog"
)

// ModuleVersions is one module type's recorded {app, os, bootloader}
// version strings (§3 FirmwareManifest).
type ModuleVersions struct {
	App        string `json:"app"`
	OS         string `json:"os"`
	Bootloader string `json:"bootloader"`
}

// NetworkVersions is the network module's own {app, sub, ota} versions.
type NetworkVersions struct {
	App string `json:"app"`
	Sub string `json:"sub"`
	OTA string `json:"ota"`
}

// Manifest is the on-disk firmware_version.json: module_type -> versions,
// plus the network module's own entry.
type Manifest struct {
	Modules map[catalog.Type]ModuleVersions `json:"modules"`
	Network NetworkVersions                 `json:"network"`
}

// Store resolves binaries and metadata out of a root directory laid out
// per §4.5, falling back to a bundled assets directory next to the running
// executable when root is missing a path (the teacher's own self-update
// code locates its executable the same way: mos/update/update.go via
// osext.ExecutableFolder()).
type Store struct {
	Root       string
	AssetsRoot string // fallback, defaults to osext.ExecutableFolder()/assets/module_firmware
}

// NewStore builds a Store rooted at root, with the fallback assets
// directory resolved relative to the running binary unless assetsRoot is
// given explicitly.
func NewStore(root, assetsRoot string) (*Store, error) {
	if assetsRoot == "" {
		dir, err := osext.ExecutableFolder()
		if err != nil {
			return nil, errors.Annotatef(err, "resolving executable folder for asset fallback")
		}
		assetsRoot = filepath.Join(dir, "assets", "module_firmware")
	}
	return &Store{Root: root, AssetsRoot: assetsRoot}, nil
}

// LoadManifest reads firmware_version.json under Root, holding a shared
// advisory lock for the duration of the read so a concurrently-running
// refresh pipeline can't truncate the file mid-read (§3's "manifest is
// read-only during an update run" invariant).
func (s *Store) LoadManifest() (*Manifest, error) {
	path := filepath.Join(s.Root, "firmware_version.json")
	fl := flock.NewFlock(path + ".lock")
	if err := fl.RLock(); err != nil {
		return nil, errors.Annotatef(err, "locking manifest")
	}
	defer fl.Unlock()

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "reading manifest")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Annotatef(err, "parsing manifest")
	}
	return &m, nil
}

// resolve returns the first existing path among root-relative candidates,
// falling back to the same relative path under AssetsRoot.
func (s *Store) resolve(rel ...string) (string, error) {
	p := filepath.Join(append([]string{s.Root}, rel...)...)
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}
	fallback := filepath.Join(append([]string{s.AssetsRoot}, rel...)...)
	if _, err := os.Stat(fallback); err == nil {
		return fallback, nil
	}
	return "", errors.NotFoundf("%s (root or bundled assets)", filepath.Join(rel...))
}

// ModuleBinary returns the path to a general module's application binary
// for the given type and version.
func (s *Store) ModuleBinary(t catalog.Type, version string) (string, error) {
	return s.resolve(string(t), version, string(t)+".bin")
}

// BootloaderBinary returns the path to a bootloader-family binary: name is
// "bootloader" or "second_bootloader".
func (s *Store) BootloaderBinary(family Family, name, version string) (string, error) {
	return s.resolve("bootloader", string(family), version, name+"_"+string(family)+".bin")
}

// NetworkBinary returns the path to the network module's own application
// binary, <root>/network/<version>/network.bin (flashed with the e103 page
// layout).
func (s *Store) NetworkBinary(version string) (string, error) {
	return s.resolve("network", version, "network.bin")
}

// ESPAppBinaries returns the four images making up an ESP application
// bundle, in the fixed order the chunked-flash stream expects them (§4.8).
func (s *Store) ESPAppBinaries(version string) (bootloader, partitions, otaDataInitial, app string, err error) {
	base := []string{"network", "esp32", "app", version}
	if bootloader, err = s.resolve(append(append([]string{}, base...), "bootloader.bin")...); err != nil {
		return
	}
	if partitions, err = s.resolve(append(append([]string{}, base...), "partitions.bin")...); err != nil {
		return
	}
	if otaDataInitial, err = s.resolve(append(append([]string{}, base...), "ota_data_initial.bin")...); err != nil {
		return
	}
	app, err = s.resolve(append(append([]string{}, base...), "esp32.bin")...)
	return
}

// ESPOTABinary returns the path to the ESP OTA factory image.
func (s *Store) ESPOTABinary(version string) (string, error) {
	return s.resolve("network", "esp32", "ota", version, "modi_ota_factory.bin")
}

// SectionBinaryName maps a Section to the bootloader-family filename
// fragment used by BootloaderBinary.
func SectionBinaryName(section Section) string {
	switch section {
	case SectionSecondBootloader:
		return "second_bootloader"
	default:
		return "bootloader"
	}
}

