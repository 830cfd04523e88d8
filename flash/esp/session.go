package esp

import (
	"time"

	"github.com/juju/errors"

	"github.com/modi-tools/fw-updater/flash/slip"
	"github.com/modi-tools/fw-updater/flash/transport"
)

const (
	syncTimeout     = 10 * time.Second
	syncResendEvery = 100 * time.Millisecond
	cmdTimeout      = 3 * time.Second
)

// session wraps a gateway Transport already redirected into ESP
// pass-through mode, speaking SLIP-framed ROM bootloader packets.
type session struct {
	rw  *slip.ReaderWriter
	buf []byte
}

func newSession(t transport.Transport) *session {
	return &session{rw: slip.New(t), buf: make([]byte, 4096)}
}

func (s *session) writePacket(p packet) error {
	_, err := s.rw.Write(p.encode())
	return errors.Trace(err)
}

// readPacket reads one SLIP frame and decodes it; mismatched command bytes
// are the caller's concern (sendAndWait filters them).
func (s *session) readPacket() (packet, error) {
	n, err := s.rw.Read(s.buf)
	if err != nil {
		return packet{}, errors.Trace(err)
	}
	p, ok := decodePacket(s.buf[:n])
	if !ok {
		return packet{}, errors.Errorf("malformed ROM bootloader packet")
	}
	return p, nil
}

// sendAndWait writes req once and reads replies until one whose Command
// matches arrives, ignoring mismatched frames, or until timeout.
func (s *session) sendAndWait(req packet, timeout time.Duration) (packet, error) {
	if err := s.writePacket(req); err != nil {
		return packet{}, errors.Trace(err)
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := s.readPacket()
		if err != nil {
			continue
		}
		if resp.Command != req.Command {
			continue
		}
		return resp, nil
	}
	return packet{}, errors.Errorf("command %#x: timed out waiting for reply", req.Command)
}

// sync resends the sync packet until a matching success reply arrives or
// syncTimeout elapses (§4.8 step 1).
func (s *session) sync() error {
	data := append([]byte{0x07, 0x07, 0x12, 0x20}, bytesRepeat(0x55, 32)...)
	req := packet{Direction: directionRequest, Command: cmdSync, Data: data}

	deadline := time.Now().Add(syncTimeout)
	for time.Now().Before(deadline) {
		if err := s.writePacket(req); err != nil {
			return errors.Trace(err)
		}
		resp, err := s.readWithin(syncResendEvery)
		if err == nil && resp.Command == cmdSync && statusOK(resp) {
			return nil
		}
	}
	return errors.Errorf("sync: no response within %s", syncTimeout)
}

func (s *session) readWithin(d time.Duration) (packet, error) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		resp, err := s.readPacket()
		if err == nil {
			return resp, nil
		}
	}
	return packet{}, errors.Errorf("no reply within %s", d)
}

func bytesRepeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// commandOK sends req and requires a successful (status-OK) matching reply.
func (s *session) commandOK(req packet) error {
	resp, err := s.sendAndWait(req, cmdTimeout)
	if err != nil {
		return errors.Trace(err)
	}
	if !statusOK(resp) {
		return errors.Errorf("command %#x: device replied error (value %#x)", req.Command, resp.Value)
	}
	return nil
}
