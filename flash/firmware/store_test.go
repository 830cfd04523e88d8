package firmware

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/modi-tools/fw-updater/flash/catalog"
)

func TestResolveFallsBackToAssetsRoot(t *testing.T) {
	root := t.TempDir()
	assets := t.TempDir()
	s := &Store{Root: root, AssetsRoot: assets}

	if _, err := s.ModuleBinary(catalog.Button, "1.2.3"); err == nil {
		t.Fatal("expected NotFound when neither root nor assets has the binary")
	}

	rel := filepath.Join(string(catalog.Button), "1.2.3", string(catalog.Button)+".bin")
	full := filepath.Join(assets, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(full, []byte{0xAA}, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.ModuleBinary(catalog.Button, "1.2.3")
	if err != nil {
		t.Fatalf("ModuleBinary: %v", err)
	}
	if got != full {
		t.Errorf("resolved %q, want fallback path %q", got, full)
	}
}

func TestResolvePrefersRootOverAssets(t *testing.T) {
	root := t.TempDir()
	assets := t.TempDir()
	s := &Store{Root: root, AssetsRoot: assets}

	rel := filepath.Join(string(catalog.Button), "1.2.3", string(catalog.Button)+".bin")
	rootPath := filepath.Join(root, rel)
	assetsPath := filepath.Join(assets, rel)
	for _, p := range []string{rootPath, assetsPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := ioutil.WriteFile(p, []byte{0xAA}, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ModuleBinary(catalog.Button, "1.2.3")
	if err != nil {
		t.Fatalf("ModuleBinary: %v", err)
	}
	if got != rootPath {
		t.Errorf("resolved %q, want root path %q", got, rootPath)
	}
}

func TestLoadManifestParsesModulesAndNetwork(t *testing.T) {
	root := t.TempDir()
	m := Manifest{
		Modules: map[catalog.Type]ModuleVersions{
			catalog.Button: {App: "1.2.3", OS: "1.1.0", Bootloader: "1.0.0"},
		},
		Network: NetworkVersions{App: "2.0.0", Sub: "1.0.0", OTA: "1.0.0"},
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filepath.Join(root, "firmware_version.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	s := &Store{Root: root, AssetsRoot: t.TempDir()}
	got, err := s.LoadManifest()
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if got.Modules[catalog.Button].App != "1.2.3" {
		t.Errorf("button app version = %q, want 1.2.3", got.Modules[catalog.Button].App)
	}
	if got.Network.App != "2.0.0" {
		t.Errorf("network app version = %q, want 2.0.0", got.Network.App)
	}
}

func TestSectionBinaryName(t *testing.T) {
	if got := SectionBinaryName(SectionSecondBootloader); got != "second_bootloader" {
		t.Errorf("SectionBinaryName(second_bootloader) = %q", got)
	}
	if got := SectionBinaryName(SectionBootloader); got != "bootloader" {
		t.Errorf("SectionBinaryName(bootloader) = %q", got)
	}
}
