package module

import (
	"io/ioutil"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/modi-tools/fw-updater/flash/catalog"
	"github.com/modi-tools/fw-updater/flash/firmware"
	"github.com/modi-tools/fw-updater/flash/progress"
	"github.com/modi-tools/fw-updater/flash/transport"
	"github.com/modi-tools/fw-updater/flash/wire"
	"github.com/modi-tools/fw-updater/version"
)

const maxSectionRetries = 3

// Flasher drives one gateway's full module update: discovery, then each
// discovered module through its ordered sections (§4.6).
type Flasher struct {
	session *session
	store   *firmware.Store
	mf      *firmware.Manifest

	mu       sync.Mutex
	snapshot progress.Snapshot
}

// New builds a Flasher bound to an already-open gateway Transport.
func New(t transport.Transport, store *firmware.Store, mf *firmware.Manifest) *Flasher {
	f := &Flasher{store: store, mf: mf}
	f.session = newSession(t, func(*wire.Frame) {}) // replaced once discovery is attached
	return f
}

// Progress returns the current snapshot, safe to call from another
// goroutine (the Coordinator's poller).
func (f *Flasher) Progress() progress.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *Flasher) setPhase(phase progress.Phase) {
	f.mu.Lock()
	f.snapshot.Phase = phase
	f.mu.Unlock()
}

func (f *Flasher) setError(err error) {
	f.mu.Lock()
	f.snapshot.Phase = progress.Failed
	f.snapshot.ErrorText = err.Error()
	f.mu.Unlock()
}

// Run executes discovery followed by a sequential drive of every
// discovered module through its remaining sections, returning the final
// snapshot. Modules are processed one at a time: the protocol is strictly
// request/reply (§5), so nothing is gained by interleaving them within a
// single gateway connection.
func (f *Flasher) Run() progress.Snapshot {
	defer f.session.stop()

	f.setPhase(progress.WaitingUUID)
	disc := newDiscovery(f.session, f.mf)
	f.session.setOnFrame(disc.onFrame)

	f.setPhase(progress.WaitingModules)
	modules := disc.run()
	if uuid, busID, ok := disc.network(); ok {
		glog.V(1).Infof("%s: network module uuid=%#x bus=%d", f.session.t.Name(), uuid, busID)
	}

	f.mu.Lock()
	f.snapshot.TotalUnits = uint32(len(modules))
	f.mu.Unlock()

	f.setPhase(progress.Updating)
	anyError := false
	for i, info := range modules {
		f.mu.Lock()
		f.snapshot.CurrentType = string(info.Type)
		f.mu.Unlock()

		if err := f.driveModule(info); err != nil {
			glog.Warningf("module %#x: %v", info.UUID, err)
			info.Stage = StageError
			anyError = true
		} else {
			info.Stage = StageDone
		}

		f.mu.Lock()
		f.snapshot.CompletedUnits = uint32(i + 1)
		f.snapshot.CurrentSubprogress = 0
		f.mu.Unlock()
	}

	_ = f.session.send(wire.CmdSetModuleState, 0, wire.BroadcastDest,
		[]byte{wire.StateReboot, wire.PnPOff})

	f.mu.Lock()
	if anyError {
		f.snapshot.Phase = progress.Failed
		f.snapshot.ErrorText = "one or more modules failed to update"
	} else {
		f.snapshot.Phase = progress.Done
	}
	final := f.snapshot
	f.mu.Unlock()
	return final
}

// driveModule walks a single module through its ordered sections starting
// at its classified stage, retrying each section up to maxSectionRetries
// times before declaring the module errored (§4.6.2).
func (f *Flasher) driveModule(info *Info) error {
	order := []Stage{StageSecondBootloader, StageBootloader, StageApp}
	startIdx := 0
	for i, s := range order {
		if s == info.Stage {
			startIdx = i
			break
		}
	}

	for _, stage := range order[startIdx:] {
		var lastErr error
		for attempt := 0; attempt < maxSectionRetries; attempt++ {
			if err := f.driveSection(info, stage); err != nil {
				lastErr = err
				info.RetryCount++
				continue
			}
			lastErr = nil
			break
		}
		if lastErr != nil {
			return errors.Annotatef(lastErr, "section %s", stage)
		}
		if stage != StageApp {
			// Targeted reboot so the module re-enters the next section.
			_ = f.session.send(wire.CmdSetModuleState, 0, info.BusID,
				[]byte{wire.StateReboot, wire.PnPOff})
			time.Sleep(time.Second)
		}
		info.Stage = stage
	}
	return nil
}

func (f *Flasher) driveSection(info *Info, stage Stage) error {
	family := firmware.FamilyFor(info.Type)
	section := sectionFor(stage)
	layout := firmware.LayoutFor(family, section)

	data, versions, err := f.loadSectionData(info.Type, family, section)
	if err != nil {
		return errors.Trace(err)
	}

	pw := &pageSession{s: f.session, did: info.BusID, progress: func(done, total int) {
		f.mu.Lock()
		if total > 0 {
			f.snapshot.CurrentSubprogress = done * 100 / total
		}
		f.mu.Unlock()
	}}

	sectionErr := firmware.WriteSection(pw, layout, data)
	success := sectionErr == nil

	osWord, _ := version.PackString(versions.OS)
	appWord, _ := version.PackString(versions.App)
	resetVector := layout.ResetVector
	rec := firmware.EndFlashRecord(success, osWord, appWord, resetVector)
	if err := firmware.WriteEndFlashRecord(pw, layout, rec); err != nil {
		return errors.Annotatef(err, "end-of-flash record")
	}
	if sectionErr != nil {
		return errors.Trace(sectionErr)
	}
	return nil
}

func sectionFor(stage Stage) firmware.Section {
	switch stage {
	case StageBootloader:
		return firmware.SectionBootloader
	case StageSecondBootloader:
		return firmware.SectionSecondBootloader
	default:
		return firmware.SectionApp
	}
}

func (f *Flasher) loadSectionData(t catalog.Type, family firmware.Family, section firmware.Section) ([]byte, firmware.ModuleVersions, error) {
	mv, ok := f.mf.Modules[t]
	if !ok {
		return nil, mv, errors.Errorf("manifest has no entry for module type %q", t)
	}

	var path string
	var err error
	switch section {
	case firmware.SectionApp:
		path, err = f.store.ModuleBinary(t, mv.App)
	default:
		path, err = f.store.BootloaderBinary(family, firmware.SectionBinaryName(section), mv.Bootloader)
	}
	if err != nil {
		return nil, mv, errors.Trace(err)
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, mv, errors.Annotatef(err, "reading %s", path)
	}
	return data, mv, nil
}
