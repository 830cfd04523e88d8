// Package module implements the Module Flasher (C6): per-gateway module
// discovery and classification, and the page-level erase/write/CRC loop
// that drives each discovered module through its ordered update sections.
package module

import (
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/modi-tools/fw-updater/flash/transport"
	"github.com/modi-tools/fw-updater/flash/wire"
)

const ackDeadline = 500 * time.Millisecond

// ack is one firmware-state (0x0C) reply.
type ack struct {
	ok   bool
	code uint8
}

// session owns a gateway's Transport: one reader goroutine feeding a
// scanner/decoder, dispatching uuid/warning frames to onFrame, and a
// single outstanding-ack channel serialized by sendMu (the bus never
// pipelines a second command ahead of the first's reply, §4.6.4).
type session struct {
	t transport.Transport

	sendMu  sync.Mutex
	ackCh   chan ack
	scanner wire.Scanner

	onFrameMu sync.RWMutex
	onFrame   func(*wire.Frame)

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func newSession(t transport.Transport, onFrame func(*wire.Frame)) *session {
	s := &session{
		t:       t,
		ackCh:   make(chan ack, 1),
		onFrame: onFrame,
		stopCh:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.readLoop()
	return s
}

// setOnFrame swaps the non-ack frame handler, e.g. once discovery owns
// the session after construction.
func (s *session) setOnFrame(f func(*wire.Frame)) {
	s.onFrameMu.Lock()
	s.onFrame = f
	s.onFrameMu.Unlock()
}

func (s *session) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, 512)
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		n, _ := s.t.Read(buf)
		if n == 0 {
			continue
		}
		for _, raw := range s.scanner.Feed(buf[:n]) {
			frame, err := wire.Decode(raw)
			if err != nil {
				glog.V(2).Infof("%s: dropping malformed frame: %v", s.t.Name(), err)
				continue
			}
			s.dispatch(frame)
		}
	}
}

func (s *session) dispatch(f *wire.Frame) {
	if f.Command == wire.CmdFirmwareState {
		if len(f.Payload) > 4 {
			c := f.Payload[4]
			switch c {
			case wire.StreamCRCComplete, wire.StreamEraseComplete:
				s.pushAck(ack{ok: true, code: c})
			case wire.StreamCRCError, wire.StreamEraseError:
				s.pushAck(ack{ok: false, code: c})
			}
			// Any other code is ignored (§4.6.4).
		}
		return
	}
	s.onFrameMu.RLock()
	handler := s.onFrame
	s.onFrameMu.RUnlock()
	if handler != nil {
		handler(f)
	}
}

func (s *session) pushAck(a ack) {
	select {
	case s.ackCh <- a:
	default:
		// No command currently waiting (stray/duplicate reply); drop it.
	}
}

func (s *session) stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// send writes a frame with no expectation of a reply (uuid requests,
// set-module-state, reboot, change-type).
func (s *session) send(command uint8, sid, did uint16, payload []byte) error {
	raw, err := wire.Encode(command, sid, did, payload)
	if err != nil {
		return errors.Trace(err)
	}
	if _, err := s.t.Write(raw); err != nil {
		return errors.Annotatef(err, "writing command %#x", command)
	}
	return nil
}

// sendCommand writes a firmware-command (0x0D) frame and blocks for its
// matching firmware-state ack, per the 500ms per-command deadline of
// §4.6.4 (the teacher's flag-pair wait loop redesigned as a single
// buffered channel, per the Design Notes).
func (s *session) sendCommand(did uint16, sub uint8, value, addr uint32) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	select {
	case <-s.ackCh:
	default:
	}

	payload := wire.PutUint32LE(nil, value)
	payload = wire.PutUint32LE(payload, addr)
	sid := uint16(sub)<<8 | 1
	if err := s.send(wire.CmdFirmwareCommand, sid, did, payload); err != nil {
		return errors.Trace(err)
	}

	select {
	case a := <-s.ackCh:
		if !a.ok {
			return errors.Errorf("firmware-command %#x: module replied error (code %d)", sub, a.code)
		}
		return nil
	case <-time.After(ackDeadline):
		return errors.Errorf("firmware-command %#x: timed out waiting for ack", sub)
	}
}

// pageSession adapts one (session, destination bus id) pair to
// firmware.PageWriter so the shared page loop can drive either a discovered
// peripheral module or the gateway's own MCU.
type pageSession struct {
	s        *session
	did      uint16
	progress func(done, total int)
}

func (p *pageSession) SendData(seq uint16, chunk [8]byte) error {
	return p.s.send(wire.CmdFirmwareData, seq, p.did, chunk[:])
}

func (p *pageSession) SendCommand(sub uint8, value, addr uint32) error {
	return p.s.sendCommand(p.did, sub, value, addr)
}

func (p *pageSession) Progress(done, total int) {
	if p.progress != nil {
		p.progress(done, total)
	}
}
