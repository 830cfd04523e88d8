package module

import (
	"testing"

	"github.com/modi-tools/fw-updater/flash/catalog"
	"github.com/modi-tools/fw-updater/flash/wire"
)

func TestChangeTypeWatchRecognizesTargetIndicator(t *testing.T) {
	targetUUID, ok := catalog.UUIDFromType(catalog.Button, 0x2030<<32|1)
	if !ok {
		t.Fatal("expected button to have a canonical indicator")
	}
	w := &changeTypeWatch{wantIndic: uint32(targetUUID >> 32)}

	w.onFrame(announcementFrame(2, uint64(0x2000)<<32|1)) // env: different indicator
	if w.found() {
		t.Fatal("expected a mismatched announcement to not satisfy the watch")
	}

	w.onFrame(announcementFrame(2, targetUUID))
	if !w.found() {
		t.Fatal("expected the matching announcement to satisfy the watch")
	}
}

func TestChangeTypeWatchIgnoresNonAnnouncementFrames(t *testing.T) {
	w := &changeTypeWatch{wantIndic: 0x2030}
	w.onFrame(&wire.Frame{Command: wire.CmdWarning, Payload: wire.PutUint64LE(nil, uint64(0x2030)<<32)})
	if w.found() {
		t.Fatal("expected a non-announcement frame to be ignored")
	}
}
