// Package transport implements Transport (C1): gateway enumeration and a
// byte-oriented, framed read/write/close session per gateway.
package transport

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cesanta/go-serial/serial"
	"github.com/golang/glog"
	"github.com/juju/errors"
)

// VendorID and ProductID identify a MODI network module on the USB bus.
const (
	VendorID  = 0x2FDE
	ProductID = 0x0003
)

const (
	baudRate    = 921600
	readTimeout = 100 * time.Millisecond
)

// ErrKind classifies a Transport failure for the Flasher's error_text.
type ErrKind int

const (
	ErrNone ErrKind = iota
	ErrPortBusy
	ErrNotPresent
	ErrIO
	ErrClosed
)

// Error wraps an ErrKind with the underlying cause.
type Error struct {
	Kind  ErrKind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	switch e.Kind {
	case ErrPortBusy:
		return "port busy"
	case ErrNotPresent:
		return "port not present"
	case ErrClosed:
		return "closed"
	default:
		return "io error"
	}
}

// Transport is a single gateway's byte stream. Exclusively owned by one
// Flasher at a time (§3 Gateway handle invariant).
type Transport interface {
	io.ReadWriteCloser
	// ReadUntil reads until terminator is seen or deadline elapses,
	// returning whatever was accumulated either way.
	ReadUntil(terminator byte, deadline time.Time) ([]byte, error)
	// Name identifies the underlying port, for logging and ProgressSnapshot
	// attribution.
	Name() string
}

// Candidate is one enumerated gateway port, not yet opened.
type Candidate struct {
	Port string // OS device path, e.g. /dev/ttyUSB0 or COM3
}

// serialTransport is the serial-port implementation of Transport, grounded
// on the teacher's serial codec (common/mgrpc/codec/serial.go): open at a
// fixed baud rate, flush stale bytes, and guard Close against a concurrent
// Read/Write with a RWMutex.
type serialTransport struct {
	portName string
	conn     serial.Serial

	closeLock sync.RWMutex
	closed    bool
}

func openSerial(portName string) (Transport, error) {
	glog.Infof("opening %s...", portName)
	oo := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baudRate,
		DataBits:              8,
		ParityMode:            serial.PARITY_NONE,
		StopBits:              1,
		InterCharacterTimeout: uint(readTimeout / time.Millisecond),
		MinimumReadSize:       0,
	}
	conn, err := serial.Open(oo)
	if err != nil {
		return nil, classifyOpenErr(portName, err)
	}
	conn.Flush()
	return &serialTransport{portName: portName, conn: conn}, nil
}

func classifyOpenErr(portName string, err error) error {
	// go-serial doesn't export typed errors; classify on message content,
	// same best-effort approach the teacher takes with errors.Cause on
	// opaque OS errors.
	msg := err.Error()
	switch {
	case containsAny(msg, "busy", "in use"):
		return &Error{Kind: ErrPortBusy, Cause: errors.Annotatef(err, "opening %s", portName)}
	case containsAny(msg, "no such file", "not found", "cannot find"):
		return &Error{Kind: ErrNotPresent, Cause: errors.Annotatef(err, "opening %s", portName)}
	default:
		return &Error{Kind: ErrIO, Cause: errors.Annotatef(err, "opening %s", portName)}
	}
}

func containsAny(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (t *serialTransport) Name() string { return t.portName }

func (t *serialTransport) Read(buf []byte) (int, error) {
	t.closeLock.RLock()
	defer t.closeLock.RUnlock()
	if t.closed {
		return 0, &Error{Kind: ErrClosed}
	}
	n, err := t.conn.Read(buf)
	if err != nil {
		return n, &Error{Kind: ErrIO, Cause: errors.Trace(err)}
	}
	return n, nil
}

func (t *serialTransport) Write(buf []byte) (int, error) {
	t.closeLock.RLock()
	defer t.closeLock.RUnlock()
	if t.closed {
		return 0, &Error{Kind: ErrClosed}
	}
	n, err := t.conn.Write(buf)
	if err != nil {
		return n, &Error{Kind: ErrIO, Cause: errors.Trace(err)}
	}
	return n, nil
}

func (t *serialTransport) ReadUntil(terminator byte, deadline time.Time) ([]byte, error) {
	var out []byte
	one := make([]byte, 1)
	for time.Now().Before(deadline) {
		n, err := t.Read(one)
		if err != nil {
			if kindOf(err) == ErrIO {
				// Likely just the per-read timeout; keep polling until deadline.
				continue
			}
			return out, err
		}
		if n == 0 {
			continue
		}
		out = append(out, one[0])
		if one[0] == terminator {
			return out, nil
		}
	}
	return out, errors.Errorf("ReadUntil: deadline exceeded")
}

func (t *serialTransport) Close() error {
	t.closeLock.Lock()
	defer t.closeLock.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

func kindOf(err error) ErrKind {
	if te, ok := err.(*Error); ok {
		return te.Kind
	}
	return ErrIO
}
