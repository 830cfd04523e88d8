// Package slip implements RFC 1055 SLIP byte-stuffing framing, used by the
// ESP32-class bootloader session (§4.8) on top of the raw serial transport.
package slip

import (
	"io"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

const (
	frameDelimiter       = 0xC0
	escape               = 0xDB
	escapeFrameDelimiter = 0xDC
	escapeEscape         = 0xDD
)

// ReaderWriter wraps an io.ReadWriter, framing each Write and de-framing
// each Read as a single SLIP packet.
type ReaderWriter struct {
	rw io.ReadWriter
}

// New wraps rw for SLIP framing.
func New(rw io.ReadWriter) *ReaderWriter {
	return &ReaderWriter{rw: rw}
}

// Read reads one SLIP frame byte by byte, unescaping it into buf, and
// returns its length. buf must be large enough for the frame; a "frame
// buffer overflow" error is returned otherwise. If the underlying reader
// yields no byte and no error, Read returns the bytes unescaped so far with
// a nil error.
func (s *ReaderWriter) Read(buf []byte) (int, error) {
	n := 0
	start := true
	esc := false
	for {
		b := []byte{0}
		bn, err := s.rw.Read(b)
		if err != nil || bn != 1 {
			return n, errors.Annotatef(err, "error reading")
		}
		if start {
			if b[0] != frameDelimiter {
				return 0, errors.Errorf("invalid SLIP starting byte: 0x%02x", b[0])
			}
			start = false
			continue
		}
		if !esc {
			switch b[0] {
			case frameDelimiter:
				glog.V(4).Infof("<= (%d) %v", n, buf[:n])
				return n, nil
			case escape:
				esc = true
			default:
				if n >= len(buf) {
					return n, errors.Errorf("frame buffer overflow (%d)", len(buf))
				}
				buf[n] = b[0]
				n++
			}
		} else {
			if n >= len(buf) {
				return n, errors.Errorf("frame buffer overflow (%d)", len(buf))
			}
			switch b[0] {
			case escapeFrameDelimiter:
				buf[n] = frameDelimiter
			case escapeEscape:
				buf[n] = escape
			default:
				return n, errors.Errorf("invalid SLIP escape sequence: %d", b[0])
			}
			n++
			esc = false
		}
	}
}

// Write frames data as a single SLIP packet and writes it to the underlying
// ReadWriter.
func (s *ReaderWriter) Write(data []byte) (int, error) {
	frame := make([]byte, 0, len(data)+2)
	frame = append(frame, frameDelimiter)
	for _, b := range data {
		switch b {
		case frameDelimiter:
			frame = append(frame, escape, escapeFrameDelimiter)
		case escape:
			frame = append(frame, escape, escapeEscape)
		default:
			frame = append(frame, b)
		}
	}
	frame = append(frame, frameDelimiter)
	glog.V(4).Infof("=> (%d) %v", len(data), data)
	if _, err := s.rw.Write(frame); err != nil {
		return 0, errors.Trace(err)
	}
	return len(data), nil
}
