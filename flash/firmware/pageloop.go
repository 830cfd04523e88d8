package firmware

import (
	"time"

	"github.com/juju/errors"

	"github.com/modi-tools/fw-updater/flash/crc"
	"github.com/modi-tools/fw-updater/flash/wire"
)

// PageWriter is the minimal capability a page loop needs from its caller's
// transport session: stream one 8-byte sub-chunk, or issue an
// erase/CRC command and block for its matching firmware-state ack. Both
// Module Flasher (C6) and Network-Module Flasher (C7) implement this over
// the same wire protocol, so the retry/page-stepping shape lives here once
// instead of being copied per caller, per the redesign guidance to express
// the nested retry loops as one small table-driven engine.
type PageWriter interface {
	SendData(seq uint16, chunk [8]byte) error
	// SendCommand issues an erase (sub=SubErase) or CRC (sub=SubCRC)
	// firmware-command and blocks for its ack; returns a non-nil error on
	// timeout or a *_ERROR reply.
	SendCommand(sub uint8, value, addr uint32) error
	// Progress is called after each page completes so the caller can
	// publish a ProgressSnapshot; total/done are page counts.
	Progress(done, total int)
}

const maxPhaseRetries = 2 // 2 retries beyond the first attempt = 3 total

// WriteSection drives the full page loop for one section's binary: erase,
// stream, CRC for every non-skippable, non-empty page, in order.
func WriteSection(pw PageWriter, l Layout, data []byte) error {
	binEnd := l.BinEnd(len(data))
	total := pagesIn(l, binEnd)
	done := 0
	for pageBegin := l.BinBegin; pageBegin < binEnd; pageBegin += l.PageSize {
		if l.SkipPage(pageBegin) {
			continue
		}
		page := pageBytes(data, pageBegin, l.PageSize)
		if isAllZero(page) {
			continue
		}
		if err := writePage(pw, l, page, pageBegin); err != nil {
			return errors.Trace(err)
		}
		done++
		pw.Progress(done, total)
	}
	return nil
}

func pagesIn(l Layout, binEnd uint32) int {
	n := 0
	for pageBegin := l.BinBegin; pageBegin < binEnd; pageBegin += l.PageSize {
		if !l.SkipPage(pageBegin) {
			n++
		}
	}
	return n
}

func pageBytes(data []byte, pageBegin, pageSize uint32) []byte {
	start := int(pageBegin)
	if start >= len(data) {
		return nil
	}
	end := start + int(pageSize)
	if end > len(data) {
		end = len(data)
	}
	return data[start:end]
}

func isAllZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// writePage erases, streams, and CRCs a single page, retrying the erase
// and CRC phases independently up to maxPhaseRetries times each (§4.6.2).
func writePage(pw PageWriter, l Layout, page []byte, pageBegin uint32) error {
	addr := l.TargetAddress(pageBegin)

	var eraseErr error
	for attempt := 0; attempt <= maxPhaseRetries; attempt++ {
		if eraseErr = pw.SendCommand(wire.SubErase, l.ErasePageNum, addr); eraseErr == nil {
			break
		}
	}
	if eraseErr != nil {
		return errors.Annotatef(eraseErr, "erase page at %#x failed after retries", addr)
	}

	checksum := uint32(0)
	seq := uint16(0)
	for off := 0; off < len(page); off += 8 {
		var chunk [8]byte
		copy(chunk[:], page[off:])
		checksum = crc.Chunk64(chunk, checksum)
		if err := pw.SendData(seq, chunk); err != nil {
			return errors.Annotatef(err, "streaming page at %#x", addr)
		}
		seq++
		time.Sleep(time.Millisecond)
	}

	var crcErr error
	for attempt := 0; attempt <= maxPhaseRetries; attempt++ {
		if crcErr = pw.SendCommand(wire.SubCRC, checksum, addr); crcErr == nil {
			break
		}
	}
	if crcErr != nil {
		return errors.Annotatef(crcErr, "crc page at %#x failed after retries", addr)
	}
	return nil
}

// EndFlashRecord builds the 16-byte end-of-flash structure written after a
// section's page loop completes (§3).
func EndFlashRecord(success bool, osWord, appWord uint16, resetVector uint32) [16]byte {
	var rec [16]byte
	if success {
		rec[0] = 0xAA
	} else {
		rec[0] = 0xFF
	}
	rec[6] = byte(osWord)
	rec[7] = byte(osWord >> 8)
	rec[8] = byte(appWord)
	rec[9] = byte(appWord >> 8)
	for i := 0; i < 4; i++ {
		rec[12+i] = byte(resetVector >> (8 * uint(i)))
	}
	return rec
}

// WriteEndFlashRecord writes rec to the end-of-flash address using the
// same erase/stream/CRC shape as a normal page, retried identically.
func WriteEndFlashRecord(pw PageWriter, l Layout, rec [16]byte) error {
	addr := l.EndFlashAddr

	var eraseErr error
	for attempt := 0; attempt <= maxPhaseRetries; attempt++ {
		if eraseErr = pw.SendCommand(wire.SubErase, l.ErasePageNum, addr); eraseErr == nil {
			break
		}
	}
	if eraseErr != nil {
		return errors.Annotatef(eraseErr, "erase end-flash record at %#x failed after retries", addr)
	}

	checksum := uint32(0)
	for seq, off := uint16(0), 0; off < len(rec); seq, off = seq+1, off+8 {
		var chunk [8]byte
		copy(chunk[:], rec[off:])
		checksum = crc.Chunk64(chunk, checksum)
		if err := pw.SendData(seq, chunk); err != nil {
			return errors.Annotatef(err, "streaming end-flash record at %#x", addr)
		}
		time.Sleep(time.Millisecond)
	}

	var crcErr error
	for attempt := 0; attempt <= maxPhaseRetries; attempt++ {
		if crcErr = pw.SendCommand(wire.SubCRC, checksum, addr); crcErr == nil {
			break
		}
	}
	if crcErr != nil {
		return errors.Annotatef(crcErr, "crc end-flash record at %#x failed after retries", addr)
	}
	return nil
}
