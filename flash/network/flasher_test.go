package network

import (
	"io"
	"testing"
	"time"
)

type nopTransport struct{}

func (nopTransport) Read(p []byte) (int, error)  { return 0, io.EOF }
func (nopTransport) Write(p []byte) (int, error) { return len(p), nil }
func (nopTransport) Close() error                { return nil }
func (nopTransport) ReadUntil(byte, time.Time) ([]byte, error) {
	return nil, io.EOF
}
func (nopTransport) Name() string { return "nop" }

func TestWaitForNetworkModuleTimesOutWithoutAnnouncement(t *testing.T) {
	f := New(nopTransport{}, nil, nil)
	defer f.session.stop()
	if _, err := f.waitForNetworkModule(); err == nil {
		t.Fatal("expected timeout error when no announcement ever arrives")
	}
}
