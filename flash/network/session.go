// Package network implements the Network-Module Flasher (C7): the same
// page-loop machinery as the Module Flasher, targeted at the gateway's own
// application MCU instead of a peripheral module.
package network

import (
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/modi-tools/fw-updater/flash/catalog"
	"github.com/modi-tools/fw-updater/flash/transport"
	"github.com/modi-tools/fw-updater/flash/wire"
)

const ackDeadline = 500 * time.Millisecond

type ack struct {
	ok   bool
	code uint8
}

// session is a trimmed version of the Module Flasher's: it only ever
// talks to one bus id (the gateway's own MCU), discovered once via its
// uuid announcement rather than tracking a whole module catalog.
type session struct {
	t transport.Transport

	sendMu  sync.Mutex
	ackCh   chan ack
	scanner wire.Scanner

	mu      sync.Mutex
	busID   uint16
	haveBus bool
	uuid    uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func newSession(t transport.Transport) *session {
	s := &session{
		t:      t,
		ackCh:  make(chan ack, 1),
		stopCh: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.readLoop()
	return s
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
	switch f.Command {
	case wire.CmdFirmwareState:
		if len(f.Payload) > 4 {
			c := f.Payload[4]
			switch c {
			case wire.StreamCRCComplete, wire.StreamEraseComplete:
				s.pushAck(ack{ok: true, code: c})
			case wire.StreamCRCError, wire.StreamEraseError:
				s.pushAck(ack{ok: false, code: c})
			}
		}
	case wire.CmdUUIDAnnouncement:
		uuid, ok := wire.Uint48At(f.Payload, 0)
		if !ok || catalog.TypeFromUUID(uuid) != catalog.Network {
			return
		}
		s.mu.Lock()
		s.busID = f.Source
		s.uuid = uuid
		s.haveBus = true
		s.mu.Unlock()
	}
}

func (s *session) pushAck(a ack) {
	select {
	case s.ackCh <- a:
	default:
	}
}

func (s *session) bus() (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busID, s.haveBus
}

func (s *session) stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

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

// pageSession adapts session to firmware.PageWriter, targeted at did.
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
