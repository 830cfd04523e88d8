package network

import (
	"io/ioutil"
	"sync"
	"time"

	"github.com/juju/errors"

	"github.com/modi-tools/fw-updater/flash/firmware"
	"github.com/modi-tools/fw-updater/flash/progress"
	"github.com/modi-tools/fw-updater/flash/transport"
	"github.com/modi-tools/fw-updater/flash/wire"
	"github.com/modi-tools/fw-updater/version"
)

const (
	discoverTimeout      = time.Second
	bootloaderWaitPeriod = 5 * time.Second
	maxSectionRetries    = 3
)

// Mode selects what Run drives the network MCU through.
type Mode int

const (
	// ModeUpdate runs the full second_bootloader -> bootloader -> app page
	// loop against the gateway's own MCU.
	ModeUpdate Mode = iota
	// ModeBootloaderOnly issues only the enter-bootloader command and
	// waits for the device to reappear, installing a prebuilt bootloader
	// delivered by firmware refresh rather than by this flasher.
	ModeBootloaderOnly
)

// Flasher drives the network-module update for one gateway.
type Flasher struct {
	session *session
	store   *firmware.Store
	mf      *firmware.Manifest

	mu       sync.Mutex
	snapshot progress.Snapshot
}

// New builds a network Flasher bound to an already-open gateway Transport.
func New(t transport.Transport, store *firmware.Store, mf *firmware.Manifest) *Flasher {
	return &Flasher{session: newSession(t), store: store, mf: mf}
}

func (f *Flasher) Progress() progress.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *Flasher) setPhase(p progress.Phase) {
	f.mu.Lock()
	f.snapshot.Phase = p
	f.mu.Unlock()
}

func (f *Flasher) fail(err error) progress.Snapshot {
	f.mu.Lock()
	f.snapshot.Phase = progress.Failed
	f.snapshot.ErrorText = err.Error()
	final := f.snapshot
	f.mu.Unlock()
	return final
}

// Run drives the network MCU through mode and returns the final snapshot.
func (f *Flasher) Run(mode Mode) progress.Snapshot {
	defer f.session.stop()

	f.setPhase(progress.WaitingUUID)
	busID, err := f.waitForNetworkModule()
	if err != nil {
		return f.fail(errors.Annotatef(err, "waiting for network module identity"))
	}

	if mode == ModeBootloaderOnly {
		return f.runBootloaderOnly(busID)
	}
	return f.runUpdate(busID)
}

// waitForNetworkModule broadcasts request-network-id and waits for the
// network module's own uuid announcement to arrive.
func (f *Flasher) waitForNetworkModule() (uint16, error) {
	deadline := time.Now().Add(discoverTimeout)
	for i := 0; i < 3; i++ {
		_ = f.session.send(wire.CmdRequestNetworkID, 0, wire.BroadcastDest, wire.RequestIDPayload)
		time.Sleep(10 * time.Millisecond)
	}
	for time.Now().Before(deadline) {
		if busID, ok := f.session.bus(); ok {
			return busID, nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return 0, errors.Errorf("no network module identity within %s", discoverTimeout)
}

func (f *Flasher) runBootloaderOnly(busID uint16) progress.Snapshot {
	f.setPhase(progress.Updating)
	// Entering bootloader mode is the same state transition that drives a
	// general module into bootloader: set-network-module-state(update_firmware).
	if err := f.session.send(wire.CmdSetNetworkState, 0, busID,
		[]byte{wire.StateUpdateFirmware, wire.PnPOff}); err != nil {
		return f.fail(errors.Annotatef(err, "entering bootloader"))
	}
	time.Sleep(bootloaderWaitPeriod)

	f.mu.Lock()
	f.snapshot.Phase = progress.Done
	f.snapshot.TotalUnits = 1
	f.snapshot.CompletedUnits = 1
	final := f.snapshot
	f.mu.Unlock()
	return final
}

func (f *Flasher) runUpdate(busID uint16) progress.Snapshot {
	// Force the network-module interpretation of update-firmware so the
	// MCU (not a peripheral module) answers (§4.7).
	if err := f.session.send(wire.CmdSetNetworkState, 0, wire.BroadcastDest,
		[]byte{wire.StateUpdateFirmware, wire.PnPOff}); err != nil {
		return f.fail(errors.Annotatef(err, "broadcasting update-firmware"))
	}

	f.setPhase(progress.Updating)
	order := []firmware.Section{
		firmware.SectionSecondBootloader, firmware.SectionBootloader, firmware.SectionApp,
	}
	f.mu.Lock()
	f.snapshot.TotalUnits = uint32(len(order))
	f.mu.Unlock()

	for i, section := range order {
		f.mu.Lock()
		f.snapshot.CurrentType = string(section)
		f.mu.Unlock()

		var lastErr error
		for attempt := 0; attempt < maxSectionRetries; attempt++ {
			if err := f.driveSection(busID, section); err != nil {
				lastErr = err
				continue
			}
			lastErr = nil
			break
		}
		if lastErr != nil {
			return f.fail(errors.Annotatef(lastErr, "section %s", section))
		}

		f.mu.Lock()
		f.snapshot.CompletedUnits = uint32(i + 1)
		f.snapshot.CurrentSubprogress = 0
		f.mu.Unlock()
	}

	_ = f.session.send(wire.CmdSetNetworkState, 0, wire.BroadcastDest,
		[]byte{wire.StateReboot, wire.PnPOff})

	f.mu.Lock()
	f.snapshot.Phase = progress.Done
	final := f.snapshot
	f.mu.Unlock()
	return final
}

func (f *Flasher) driveSection(busID uint16, section firmware.Section) error {
	family := firmware.FamilyE103 // the network module's own MCU uses e103 (§4.5)
	layout := firmware.LayoutFor(family, section)

	data, versions, err := f.loadSectionData(family, section)
	if err != nil {
		return errors.Trace(err)
	}

	pw := &pageSession{s: f.session, did: busID, progress: func(done, total int) {
		f.mu.Lock()
		if total > 0 {
			f.snapshot.CurrentSubprogress = done * 100 / total
		}
		f.mu.Unlock()
	}}

	sectionErr := firmware.WriteSection(pw, layout, data)
	success := sectionErr == nil

	osWord, _ := version.PackString(versions.Sub)
	appWord, _ := version.PackString(versions.App)
	rec := firmware.EndFlashRecord(success, osWord, appWord, layout.ResetVector)
	if err := firmware.WriteEndFlashRecord(pw, layout, rec); err != nil {
		return errors.Annotatef(err, "end-of-flash record")
	}
	return errors.Trace(sectionErr)
}

func (f *Flasher) loadSectionData(family firmware.Family, section firmware.Section) ([]byte, firmware.NetworkVersions, error) {
	nv := f.mf.Network
	var path string
	var err error
	switch section {
	case firmware.SectionApp:
		path, err = f.store.NetworkBinary(nv.App)
	default:
		path, err = f.store.BootloaderBinary(family, firmware.SectionBinaryName(section), nv.Sub)
	}
	if err != nil {
		return nil, nv, errors.Trace(err)
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, nv, errors.Annotatef(err, "reading %s", path)
	}
	return data, nv, nil
}
