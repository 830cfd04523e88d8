package esp

import (
	"io/ioutil"
	"sync"

	"github.com/juju/errors"

	"github.com/modi-tools/fw-updater/flash/firmware"
	"github.com/modi-tools/fw-updater/flash/progress"
	"github.com/modi-tools/fw-updater/flash/transport"
	"github.com/modi-tools/fw-updater/flash/wire"
)

const (
	flashTotalSize  = 2 * 1024 * 1024
	flashBlockSize  = 64 * 1024
	flashSectorSize = 4 * 1024
	flashPageSize   = 256
	flashStatusMask = 0xFFFF
)

// segment offsets within the concatenated ESP flash stream (§4.8 step 4).
const (
	offsetBootloader     = 0x1000
	offsetPartitions     = 0x8000
	offsetOTADataInitial = 0xD000
	offsetOTAFactory     = 0x10000
	offsetApp            = 0xD0000
)

// Flasher drives the ESP32 SLIP bootloader session for one gateway.
type Flasher struct {
	t     transport.Transport
	store *firmware.Store

	mu       sync.Mutex
	snapshot progress.Snapshot
}

// New builds an ESP Flasher bound to an already-open gateway Transport.
func New(t transport.Transport, store *firmware.Store) *Flasher {
	return &Flasher{t: t, store: store}
}

func (f *Flasher) Progress() progress.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *Flasher) fail(err error) progress.Snapshot {
	f.mu.Lock()
	f.snapshot.Phase = progress.Failed
	f.snapshot.ErrorText = err.Error()
	final := f.snapshot
	f.mu.Unlock()
	return final
}

// acquirePassthrough sends the three application-layer commands that stop
// the network MCU's interpreter, select the ESP as the SWU pass-through
// target, and redirect the serial channel to it (§4.8).
func (f *Flasher) acquirePassthrough() error {
	if err := writeFrame(f.t, wire.CmdSetNetworkState, wire.BroadcastDest,
		[]byte{wire.StateForcedPause, wire.PnPOff}); err != nil {
		return errors.Annotatef(err, "stopping interpreter")
	}
	if err := writeFrame(f.t, wire.CmdSelectSWUMode, wire.BroadcastDest,
		[]byte{1, 0}); err != nil {
		return errors.Annotatef(err, "selecting swu mode")
	}
	if err := writeFrame(f.t, wire.CmdEnterESPPassthrough, wire.BroadcastDest,
		[]byte{0x00}); err != nil {
		return errors.Annotatef(err, "entering esp passthrough")
	}
	return nil
}

func writeFrame(t transport.Transport, command uint8, did uint16, payload []byte) error {
	raw, err := wire.Encode(command, 0, did, payload)
	if err != nil {
		return errors.Trace(err)
	}
	_, err = t.Write(raw)
	return errors.Trace(err)
}

// ResetInterpreter is the simplified recovery flow: it sends only the
// stop-interpreter command and returns, for when the ESP's application
// layer has been left in a corrupted state (§4.8 final paragraph).
func (f *Flasher) ResetInterpreter() error {
	return writeFrame(f.t, wire.CmdSetNetworkState, wire.BroadcastDest,
		[]byte{wire.StateForcedPause, wire.PnPOff})
}

// Run drives the full flash session: acquire pass-through, sync, attach,
// chunked flash of the app bundle, boot, and version-tag verification.
func (f *Flasher) Run(version string) progress.Snapshot {
	f.mu.Lock()
	f.snapshot.Phase = progress.WaitingUUID
	f.mu.Unlock()

	if err := f.acquirePassthrough(); err != nil {
		return f.fail(err)
	}

	s := newSession(f.t)
	if err := s.sync(); err != nil {
		return f.fail(errors.Annotatef(err, "sync"))
	}
	if err := s.commandOK(packet{Direction: directionRequest, Command: cmdFlashAttach, Data: make([]byte, 16)}); err != nil {
		return f.fail(errors.Annotatef(err, "flash attach"))
	}
	if err := f.setFlashParam(s); err != nil {
		return f.fail(errors.Annotatef(err, "set flash param"))
	}

	f.mu.Lock()
	f.snapshot.Phase = progress.Updating
	f.mu.Unlock()

	segs, err := f.loadSegments(version)
	if err != nil {
		return f.fail(errors.Annotatef(err, "loading esp app binaries"))
	}
	stream := buildStream(segs)
	cks := chunks(stream)

	f.mu.Lock()
	f.snapshot.TotalUnits = uint32(len(cks))
	f.mu.Unlock()

	for i, c := range cks {
		if err := f.flashChunk(s, c); err != nil {
			return f.fail(errors.Annotatef(err, "flashing chunk at offset %#x", c.offset))
		}
		f.mu.Lock()
		f.snapshot.CompletedUnits = uint32(i + 1)
		f.mu.Unlock()
	}

	if err := s.commandOK(packet{Direction: directionRequest, Command: cmdFlashEnd, Data: le32(0)}); err != nil {
		return f.fail(errors.Annotatef(err, "boot to app"))
	}

	if err := f.writeAndVerifyVersion(s, version); err != nil {
		return f.fail(errors.Annotatef(err, "version tag"))
	}

	f.mu.Lock()
	f.snapshot.Phase = progress.Done
	final := f.snapshot
	f.mu.Unlock()
	return final
}

func (f *Flasher) setFlashParam(s *session) error {
	data := make([]byte, 24)
	putUint32LE(data, 0, 0)                // flash_id
	putUint32LE(data, 4, flashTotalSize)
	putUint32LE(data, 8, flashBlockSize)
	putUint32LE(data, 12, flashSectorSize)
	putUint32LE(data, 16, flashPageSize)
	putUint32LE(data, 20, flashStatusMask)
	return s.commandOK(packet{Direction: directionRequest, Command: cmdSetFlashParam, Data: data})
}

func (f *Flasher) loadSegments(version string) ([]segment, error) {
	bootloader, partitions, otaDataInitial, app, err := f.store.ESPAppBinaries(version)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ota, err := f.store.ESPOTABinary(version)
	if err != nil {
		return nil, errors.Trace(err)
	}
	paths := []struct {
		name   string
		offset int
		path   string
	}{
		{"bootloader", offsetBootloader, bootloader},
		{"partitions", offsetPartitions, partitions},
		{"ota_data_initial", offsetOTADataInitial, otaDataInitial},
		{"modi_ota_factory", offsetOTAFactory, ota},
		{"esp32", offsetApp, app},
	}
	segs := make([]segment, 0, len(paths))
	for _, p := range paths {
		data, err := ioutil.ReadFile(p.path)
		if err != nil {
			return nil, errors.Annotatef(err, "reading %s", p.name)
		}
		segs = append(segs, segment{name: p.name, offset: p.offset, data: data})
	}
	return segs, nil
}

func (f *Flasher) flashChunk(s *session, c chunk) error {
	beginData := make([]byte, 16)
	putUint32LE(beginData, 0, uint32(len(c.data)))
	putUint32LE(beginData, 4, uint32(blockCount(len(c.data))))
	putUint32LE(beginData, 8, blockSize)
	putUint32LE(beginData, 12, uint32(c.offset))
	if err := s.commandOK(packet{Direction: directionRequest, Command: cmdFlashBegin, Data: beginData}); err != nil {
		return errors.Trace(err)
	}

	for seq, block := range blocks(c.data) {
		data := make([]byte, 16+len(block))
		putUint32LE(data, 0, uint32(len(block)))
		putUint32LE(data, 4, uint32(seq))
		copy(data[16:], block)
		req := packet{
			Direction: directionRequest,
			Command:   cmdFlashData,
			Value:     flashDataChecksum(block),
			Data:      data,
		}
		if err := s.commandOK(req); err != nil {
			return errors.Annotatef(err, "block %d", seq)
		}
	}
	return nil
}

func (f *Flasher) writeAndVerifyVersion(s *session, ver string) error {
	tag := make([]byte, 8)
	copy(tag, ver)
	if err := s.commandOK(packet{Direction: directionRequest, Command: cmdWriteVersion, Data: tag}); err != nil {
		return errors.Trace(err)
	}
	resp, err := s.sendAndWait(packet{Direction: directionRequest, Command: cmdReadVersion}, cmdTimeout)
	if err != nil {
		return errors.Trace(err)
	}
	if !statusOK(resp) {
		return errors.Errorf("read-version: device replied error")
	}
	if string(resp.Data) != string(tag) {
		return errors.Errorf("version tag mismatch: wrote %q, read back %q", tag, resp.Data)
	}
	return nil
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	putUint32LE(b, 0, v)
	return b
}
