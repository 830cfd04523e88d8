package slip

import (
	"bytes"
	"io"
	"testing"
)

type loopback struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func (l *loopback) Read(p []byte) (int, error) { return l.in.Read(p) }
func (l *loopback) Write(p []byte) (int, error) { return l.out.Write(p) }

func TestWriteEscapesDelimiterAndEscape(t *testing.T) {
	lb := &loopback{in: &bytes.Buffer{}, out: &bytes.Buffer{}}
	s := New(lb)
	data := []byte{0xC0, 0xDB, 0x01, 0xC0}
	if _, err := s.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := []byte{0xC0, 0xDB, 0xDC, 0xDB, 0xDD, 0x01, 0xDB, 0xDC, 0xC0}
	if !bytes.Equal(lb.out.Bytes(), want) {
		t.Errorf("Write output = %#v, want %#v", lb.out.Bytes(), want)
	}
}

func TestReadUnescapesFrame(t *testing.T) {
	framed := []byte{0xC0, 0xDB, 0xDC, 0xDB, 0xDD, 0x01, 0xDB, 0xDC, 0xC0}
	lb := &loopback{in: bytes.NewBuffer(framed), out: &bytes.Buffer{}}
	s := New(lb)
	buf := make([]byte, 16)
	n, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte{0xC0, 0xDB, 0x01, 0xC0}
	if !bytes.Equal(buf[:n], want) {
		t.Errorf("Read = %#v, want %#v", buf[:n], want)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, data := range [][]byte{
		{},
		{0x00},
		{0xC0, 0xC0, 0xC0},
		{0xDB, 0xDB, 0xDB},
		{0x01, 0x02, 0xC0, 0xDB, 0xDC, 0xDD, 0xFF},
	} {
		fwd := &bytes.Buffer{}
		writer := New(&loopback{in: &bytes.Buffer{}, out: fwd})
		if _, err := writer.Write(data); err != nil {
			t.Fatalf("Write(%v): %v", data, err)
		}

		reader := New(&loopback{in: bytes.NewBuffer(fwd.Bytes()), out: &bytes.Buffer{}})
		buf := make([]byte, 64)
		n, err := reader.Read(buf)
		if err != nil {
			t.Fatalf("Read back %v: %v", data, err)
		}
		if !bytes.Equal(buf[:n], data) {
			t.Errorf("round trip %v => %v", data, buf[:n])
		}
	}
}

func TestReadRejectsBadStartByte(t *testing.T) {
	lb := &loopback{in: bytes.NewBuffer([]byte{0x01}), out: &bytes.Buffer{}}
	s := New(lb)
	buf := make([]byte, 16)
	if _, err := s.Read(buf); err == nil {
		t.Fatal("expected error for bad start byte")
	}
}

func TestReadOverflowError(t *testing.T) {
	framed := []byte{0xC0, 0x01, 0x02, 0x03, 0xC0}
	lb := &loopback{in: bytes.NewBuffer(framed), out: &bytes.Buffer{}}
	s := New(lb)
	buf := make([]byte, 1)
	if _, err := s.Read(buf); err == nil {
		t.Fatal("expected overflow error")
	}
}

var _ io.ReadWriter = (*loopback)(nil)
