package module

import (
	"sync"
	"time"

	"github.com/modi-tools/fw-updater/flash/catalog"
	"github.com/modi-tools/fw-updater/flash/firmware"
	"github.com/modi-tools/fw-updater/flash/wire"
	"github.com/modi-tools/fw-updater/version"
)

// discovery runs §4.6.1: broadcast request-uuid, classify replies into a
// frozen work set, bounded by a fixed window.
type discovery struct {
	s  *session
	mf *firmware.Manifest // for the per-type bootloader-version escalation check

	mu           sync.Mutex
	open         bool
	modules      map[uint64]*Info // by full 64-bit uuid
	networkUUID  uint64
	networkBusID uint16
}

func newDiscovery(s *session, mf *firmware.Manifest) *discovery {
	return &discovery{
		s:       s,
		mf:      mf,
		open:    true,
		modules: make(map[uint64]*Info),
	}
}

// onFrame is the session's dispatch callback for every non-firmware-state
// frame while discovery (or the whole run) is active.
func (d *discovery) onFrame(f *wire.Frame) {
	switch f.Command {
	case wire.CmdRequestUUIDEcho:
		if f.Source != d.networkBusID || d.networkBusID == 0 {
			_ = d.s.send(wire.CmdRequestModuleID, 0, f.Source, wire.RequestIDPayload)
		}
	case wire.CmdUUIDAnnouncement:
		d.handleAnnouncement(f)
	case wire.CmdWarning:
		d.handleWarning(f)
	}
}

func (d *discovery) handleAnnouncement(f *wire.Frame) {
	uuid, ok := wire.Uint48At(f.Payload, 0)
	if !ok {
		return
	}
	t := catalog.TypeFromUUID(uuid)
	if t == catalog.Network {
		d.mu.Lock()
		d.networkUUID = uuid
		d.networkBusID = f.Source
		d.mu.Unlock()
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return
	}
	if _, exists := d.modules[uuid]; exists {
		return
	}
	d.modules[uuid] = &Info{
		UUID:  uuid,
		BusID: f.Source,
		Type:  t,
		State: StateUnknown,
	}
}

func (d *discovery) handleWarning(f *wire.Frame) {
	uuid, ok := wire.Uint48At(f.Payload, 0)
	if !ok || len(f.Payload) < 7 {
		return
	}
	warningType := f.Payload[6]
	switch warningType {
	case wire.WarningHealthy:
		return
	case wire.WarningNotReady:
		_ = d.s.send(wire.CmdSetModuleState, 0, f.Source,
			[]byte{wire.StateUpdateFirmwareReady, wire.PnPOff})
		return
	case wire.WarningReady:
	default:
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	info, exists := d.modules[uuid]
	if !exists {
		info = &Info{UUID: uuid, BusID: f.Source, Type: catalog.TypeFromUUID(uuid)}
		d.modules[uuid] = info
	}
	info.BusID = f.Source
	info.State = StateUpdateReady

	if len(f.Payload) < 10 {
		info.Stage = StageSecondBootloader
		return
	}
	section := f.Payload[7]
	bootver, _ := wire.Uint16At(f.Payload, 8)
	switch section {
	case wire.SectionApp:
		reported := version.Unpack(bootver).String()
		required := ""
		if mv, ok := d.mf.Modules[info.Type]; ok {
			required = mv.Bootloader
		}
		if required != "" && version.Compare(reported, required) != 0 {
			info.Stage = StageSecondBootloader
		} else {
			info.Stage = StageApp
		}
	case wire.SectionBootloader:
		info.Stage = StageBootloader
	case wire.SectionSecondBootloader:
		info.Stage = StageSecondBootloader
	default:
		info.Stage = StageSecondBootloader
	}
}

// run executes the bounded discovery window and returns the frozen work
// set (§4.6.1's "work set is frozen" close).
func (d *discovery) run() []*Info {
	for i := 0; i < 3; i++ {
		_ = d.s.send(wire.CmdRequestNetworkID, 0, wire.BroadcastDest, wire.RequestIDPayload)
		time.Sleep(10 * time.Millisecond)
	}

	for i := 0; i < 2; i++ {
		_ = d.s.send(wire.CmdSetModuleState, 0, wire.BroadcastDest,
			[]byte{wire.StateUpdateFirmware, wire.PnPOff})
		time.Sleep(500 * time.Millisecond)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if !d.anyUnknown() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	d.mu.Lock()
	d.open = false
	out := make([]*Info, 0, len(d.modules))
	for _, info := range d.modules {
		out = append(out, info)
	}
	d.mu.Unlock()
	return out
}

func (d *discovery) anyUnknown() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, info := range d.modules {
		if info.State == StateUnknown {
			return true
		}
	}
	return false
}

func (d *discovery) network() (uuid uint64, busID uint16, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.networkUUID, d.networkBusID, d.networkBusID != 0
}
