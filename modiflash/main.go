// Command modiflash is the headless CLI driving the firmware update
// engine against every gateway currently attached (§6): discover modules,
// flash module sections, flash the gateway's own network MCU, drive the
// ESP32 SLIP bootloader, send the stop-interpreter recovery command, or
// reassign a module's type tag.
package main

import (
	"encoding/json"
	goflag "flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/modi-tools/fw-updater/common/pflagenv"
	"github.com/modi-tools/fw-updater/config"
	"github.com/modi-tools/fw-updater/flash/catalog"
	"github.com/modi-tools/fw-updater/flash/coordinator"
	"github.com/modi-tools/fw-updater/flash/esp"
	"github.com/modi-tools/fw-updater/flash/firmware"
	"github.com/modi-tools/fw-updater/flash/module"
	"github.com/modi-tools/fw-updater/flash/network"
	"github.com/modi-tools/fw-updater/flash/progress"
	"github.com/modi-tools/fw-updater/flash/transport"
	"github.com/modi-tools/fw-updater/ourutil"
)

const envPrefix = "MODIFLASH_"

var (
	mode         = flag.String("mode", "modules", "modules|network|network-bootloader|esp|esp-reset|change-type")
	manifestPath = flag.String("manifest", "", "Path to firmware_version.json (default: <firmware-root>/firmware_version.json)")
	firmwareRoot = flag.String("firmware-root", "", "Firmware store root (default: from ~/.modiflash/config.ini, else bundled assets)")
	port         = flag.String("port", "", "Serial port of the gateway to flash; if empty, every enumerated gateway is driven")
	jsonProgress = flag.Bool("json-progress", false, "Emit newline-delimited ProgressSnapshot JSON on stdout")
	changeTarget = flag.String("change-type", "", "Target module type for --mode=change-type")
	changeSource = flag.Uint64("source-uuid", 0, "Source module uuid for --mode=change-type")
)

func main() {
	// glog registers -v and its other flags on the standard flag set.
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()
	pflagenv.Parse(envPrefix)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	store, mf, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	candidates, err := gateways()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if len(candidates) == 0 {
		// Terminal status string per the headless CLI contract (spec.md
		// §8 scenario 5: zero tasks, immediate completion).
		fmt.Fprintln(os.Stderr, "No MODI port is connected")
		os.Exit(1)
	}

	if *mode == "change-type" {
		os.Exit(runChangeType(candidates[0]))
	}

	tasks, transports, err := buildTasks(candidates, store, mf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer closeAll(transports)

	c, err := coordinator.New(tasks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	runErr := c.Run(func(u coordinator.ProgressUpdate) { reportProgress(u) })
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", runErr)
		os.Exit(1)
	}
	os.Exit(0)
}

func loadConfig() (*config.Config, error) {
	path, err := config.Path()
	if err != nil {
		return &config.Config{}, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, errors.Annotatef(err, "loading config")
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*firmware.Store, *firmware.Manifest, error) {
	root := *firmwareRoot
	if root == "" {
		root = cfg.FirmwareRoot
	}
	store, err := firmware.NewStore(root, "")
	if err != nil {
		return nil, nil, errors.Annotatef(err, "opening firmware store")
	}
	manifestStore := store
	if *manifestPath != "" {
		// LoadManifest always reads "<Root>/firmware_version.json"; an
		// explicit --manifest names that file directly, so the manifest is
		// read through a copy of the store rooted at its parent directory,
		// leaving the firmware root for binaries unchanged.
		ms := *store
		ms.Root = filepath.Dir(*manifestPath)
		manifestStore = &ms
	}
	mf, err := manifestStore.LoadManifest()
	if err != nil {
		return nil, nil, errors.Annotatef(err, "loading manifest")
	}
	return store, mf, nil
}

func gateways() ([]transport.Candidate, error) {
	if *port != "" {
		return []transport.Candidate{{Port: *port}}, nil
	}
	return transport.Enumerate()
}

func buildTasks(candidates []transport.Candidate, store *firmware.Store, mf *firmware.Manifest) ([]coordinator.Task, []transport.Transport, error) {
	var tasks []coordinator.Task
	var opened []transport.Transport
	for _, c := range candidates {
		t, err := transport.Open(c)
		if err != nil {
			glog.Warningf("%s: %v", c.Port, err)
			continue
		}
		opened = append(opened, t)
		tasks = append(tasks, newTask(t, store, mf))
	}
	if len(tasks) == 0 {
		return nil, opened, errors.New("no gateway could be opened")
	}
	return tasks, opened, nil
}

// gatewayTask adapts one of the three Flasher kinds to coordinator.Task.
type gatewayTask struct {
	run      func() progress.Snapshot
	progress func() progress.Snapshot
}

func (g *gatewayTask) Run() progress.Snapshot      { return g.run() }
func (g *gatewayTask) Progress() progress.Snapshot { return g.progress() }

func newTask(t transport.Transport, store *firmware.Store, mf *firmware.Manifest) coordinator.Task {
	switch *mode {
	case "network":
		f := network.New(t, store, mf)
		return &gatewayTask{run: func() progress.Snapshot { return f.Run(network.ModeUpdate) }, progress: f.Progress}
	case "network-bootloader":
		f := network.New(t, store, mf)
		return &gatewayTask{run: func() progress.Snapshot { return f.Run(network.ModeBootloaderOnly) }, progress: f.Progress}
	case "esp":
		f := esp.New(t, store)
		return &gatewayTask{run: func() progress.Snapshot { return f.Run(mf.Network.OTA) }, progress: f.Progress}
	case "esp-reset":
		f := esp.New(t, store)
		return &gatewayTask{run: func() progress.Snapshot { return resetSnapshot(f.ResetInterpreter()) }, progress: f.Progress}
	default: // "modules"
		f := module.New(t, store, mf)
		return &gatewayTask{run: f.Run, progress: f.Progress}
	}
}

func resetSnapshot(err error) progress.Snapshot {
	if err != nil {
		return progress.Snapshot{Phase: progress.Failed, ErrorText: err.Error()}
	}
	return progress.Snapshot{Phase: progress.Done}
}

func runChangeType(c transport.Candidate) int {
	if *changeTarget == "" || *changeSource == 0 {
		fmt.Fprintln(os.Stderr, "Error: --mode=change-type requires --source-uuid and --change-type")
		return 1
	}
	t, err := transport.Open(c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 1
	}
	defer t.Close()

	if err := module.ChangeType(t, *changeSource, catalog.Type(*changeTarget)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 1
	}
	ourutil.Reportf("module %#x reassigned to %s", *changeSource, *changeTarget)
	return 0
}

func closeAll(ts []transport.Transport) {
	for _, t := range ts {
		_ = t.Close()
	}
}

func reportProgress(u coordinator.ProgressUpdate) {
	if *jsonProgress {
		b, err := json.Marshal(u)
		if err == nil {
			fmt.Println(string(b))
		}
		return
	}
	ourutil.Reportf("overall: %.0f%%", u.Overall)
}
