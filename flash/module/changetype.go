package module

import (
	"sync"
	"time"

	"github.com/juju/errors"

	"github.com/modi-tools/fw-updater/flash/catalog"
	"github.com/modi-tools/fw-updater/flash/transport"
	"github.com/modi-tools/fw-updater/flash/wire"
)

const (
	changeTypeWaitTimeout = 5 * time.Second
	changeTypeResendEvery = time.Second
)

type changeTypeWatch struct {
	mu        sync.Mutex
	wantIndic uint32
	seen      bool
}

func (w *changeTypeWatch) onFrame(f *wire.Frame) {
	if f.Command != wire.CmdUUIDAnnouncement {
		return
	}
	uuid, ok := wire.Uint48At(f.Payload, 0)
	if !ok {
		return
	}
	if uint32(uuid>>32) != w.wantIndic {
		return
	}
	w.mu.Lock()
	w.seen = true
	w.mu.Unlock()
}

func (w *changeTypeWatch) found() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seen
}

// ChangeType reassigns a module's type tag (§4.6.3): it broadcasts a
// change-type command carrying the target uuid derived from sourceUUID's
// bus id and target's canonical indicator, reboots the bus with PnP on, and
// waits (resending the reboot every second) for the module to re-announce
// itself under the new type. ChangeType owns the session for its duration.
func ChangeType(t transport.Transport, sourceUUID uint64, target catalog.Type) error {
	targetUUID, ok := catalog.UUIDFromType(target, sourceUUID)
	if !ok {
		return errors.Errorf("module type %q has no canonical uuid indicator", target)
	}

	watch := &changeTypeWatch{wantIndic: uint32(targetUUID >> 32)}
	s := newSession(t, watch.onFrame)
	defer s.stop()

	payload := wire.PutUint64LE(nil, targetUUID)
	if err := s.send(wire.CmdChangeType, 0, wire.BroadcastDest, payload); err != nil {
		return errors.Annotatef(err, "sending change-type")
	}
	time.Sleep(50 * time.Millisecond)

	deadline := time.Now().Add(changeTypeWaitTimeout)
	nextReboot := time.Now()
	for time.Now().Before(deadline) {
		if watch.found() {
			return nil
		}
		if !time.Now().Before(nextReboot) {
			_ = s.send(wire.CmdSetModuleState, 0, wire.BroadcastDest,
				[]byte{wire.StateReboot, wire.PnPOn})
			nextReboot = time.Now().Add(changeTypeResendEvery)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if watch.found() {
		return nil
	}
	return errors.Errorf("module %#x did not re-announce as %q within %s", sourceUUID, target, changeTypeWaitTimeout)
}
