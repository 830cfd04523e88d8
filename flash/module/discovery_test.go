package module

import (
	"io"
	"testing"
	"time"

	"github.com/modi-tools/fw-updater/flash/catalog"
	"github.com/modi-tools/fw-updater/flash/firmware"
	"github.com/modi-tools/fw-updater/flash/wire"
)

// nopTransport discards writes and never yields reads; enough for tests
// that drive discovery by calling its handlers directly rather than over
// a real byte stream.
type nopTransport struct{}

func (nopTransport) Read(p []byte) (int, error)  { return 0, io.EOF }
func (nopTransport) Write(p []byte) (int, error) { return len(p), nil }
func (nopTransport) Close() error                { return nil }
func (nopTransport) ReadUntil(byte, time.Time) ([]byte, error) {
	return nil, io.EOF
}
func (nopTransport) Name() string { return "nop" }

func newTestDiscovery(mf *firmware.Manifest) *discovery {
	s := newSession(nopTransport{}, func(*wire.Frame) {})
	return newDiscovery(s, mf)
}

func announcementFrame(source uint16, uuid uint64) *wire.Frame {
	payload := wire.PutUint32LE(nil, uint32(uuid))
	payload = append(payload, byte(uuid>>32), byte(uuid>>40))
	payload = append(payload, 0, 0) // version, unused by the test
	return &wire.Frame{Command: wire.CmdUUIDAnnouncement, Source: source, Payload: payload}
}

func TestHandleAnnouncementNetworkVsModule(t *testing.T) {
	d := newTestDiscovery(&firmware.Manifest{})

	networkUUID := uint64(0xABCDEF) // top 32 bits unmapped -> Network
	d.handleAnnouncement(announcementFrame(1, networkUUID))
	if uuid, busID, ok := d.network(); !ok || uuid != networkUUID || busID != 1 {
		t.Fatalf("network() = %#x,%d,%v; want %#x,1,true", uuid, busID, ok, networkUUID)
	}

	buttonUUID := uint64(0x2030)<<32 | 1
	d.handleAnnouncement(announcementFrame(2, buttonUUID))
	info, ok := d.modules[buttonUUID]
	if !ok {
		t.Fatal("expected button module to be recorded")
	}
	if info.Type != catalog.Button || info.BusID != 2 || info.State != StateUnknown {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestHandleAnnouncementIgnoredWhenClosed(t *testing.T) {
	d := newTestDiscovery(&firmware.Manifest{})
	d.open = false
	d.handleAnnouncement(announcementFrame(2, uint64(0x2030)<<32|1))
	if len(d.modules) != 0 {
		t.Error("expected announcement to be dropped once discovery is closed")
	}
}

func warningFrame(source uint16, uuid uint64, warningType, section uint8, bootver uint16, short bool) *wire.Frame {
	payload := make([]byte, 6, 10)
	for i := 0; i < 6; i++ {
		payload[i] = byte(uuid >> (8 * uint(i)))
	}
	payload = append(payload, warningType)
	if !short {
		payload = append(payload, section, byte(bootver), byte(bootver>>8))
	}
	return &wire.Frame{Command: wire.CmdWarning, Source: source, Payload: payload}
}

func TestHandleWarningShortPayloadNeedsSecondBootloader(t *testing.T) {
	d := newTestDiscovery(&firmware.Manifest{})
	uuid := uint64(0x2030)<<32 | 1
	d.handleWarning(warningFrame(3, uuid, wire.WarningReady, 0, 0, true))
	info := d.modules[uuid]
	if info == nil || info.Stage != StageSecondBootloader {
		t.Fatalf("expected second_bootloader escalation for short payload, got %+v", info)
	}
}

func TestHandleWarningReportedAppSectionMatchesManifest(t *testing.T) {
	mf := &firmware.Manifest{Modules: map[catalog.Type]firmware.ModuleVersions{
		catalog.Button: {Bootloader: "1.0.0"},
	}}
	d := newTestDiscovery(mf)
	uuid := uint64(0x2030)<<32 | 1
	d.handleWarning(warningFrame(3, uuid, wire.WarningReady, wire.SectionApp, 0x2000, false))
	info := d.modules[uuid]
	if info == nil || info.Stage != StageApp {
		t.Fatalf("expected app stage accepted (matching manifest), got %+v", info)
	}
}

func TestHandleWarningReportedAppSectionEscalatesOnMismatch(t *testing.T) {
	mf := &firmware.Manifest{Modules: map[catalog.Type]firmware.ModuleVersions{
		catalog.Button: {Bootloader: "1.1.0"},
	}}
	d := newTestDiscovery(mf)
	uuid := uint64(0x2030)<<32 | 1
	d.handleWarning(warningFrame(3, uuid, wire.WarningReady, wire.SectionApp, 0x2000, false))
	info := d.modules[uuid]
	if info == nil || info.Stage != StageSecondBootloader {
		t.Fatalf("expected escalation to second_bootloader on version mismatch, got %+v", info)
	}
}

func TestHandleWarningHealthyIgnored(t *testing.T) {
	d := newTestDiscovery(&firmware.Manifest{})
	uuid := uint64(0x2030)<<32 | 1
	d.handleWarning(warningFrame(3, uuid, wire.WarningHealthy, 0, 0, true))
	if _, ok := d.modules[uuid]; ok {
		t.Error("expected healthy warning to be ignored, not recorded")
	}
}
