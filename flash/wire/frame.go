// Package wire implements the JSON line-frame codec used on the module bus:
// one JSON object per logical frame, delimited by the literal '{' and '}'
// bytes with no nesting, payload base64-encoded inside the object.
package wire

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"

	"github.com/juju/errors"
)

// MaxPayload is the largest payload a Frame may carry (§3).
const MaxPayload = 8

// Frame is one decoded protocol message.
type Frame struct {
	Command    uint8
	Source     uint16
	Dest       uint16
	Payload    []byte
	PayloadLen uint8
}

// wireFrame is the on-the-wire JSON shape: short field names, base64 payload.
type wireFrame struct {
	C uint8  `json:"c"`
	S uint16 `json:"s"`
	D uint16 `json:"d"`
	B string `json:"b"`
	L uint8  `json:"l"`
}

// Encode builds the compact JSON frame for (command, sid, did, payload).
// payload must be no longer than MaxPayload.
func Encode(command uint8, sid, did uint16, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, errors.Errorf("payload too long (%d > %d)", len(payload), MaxPayload)
	}
	wf := wireFrame{
		C: command,
		S: sid,
		D: did,
		B: base64.StdEncoding.EncodeToString(payload),
		L: uint8(len(payload)),
	}
	return json.Marshal(wf)
}

// Decode parses a single frame's raw bytes as extracted by Scanner,
// including the surrounding '{' '}' (json.Unmarshal wants those, so callers
// pass the full delimited slice). A malformed frame yields an error; callers
// must treat that as "drop silently", never as fatal.
func Decode(raw []byte) (*Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, errors.Annotatef(err, "malformed frame")
	}
	payload, err := base64.StdEncoding.DecodeString(wf.B)
	if err != nil {
		return nil, errors.Annotatef(err, "malformed payload")
	}
	if int(wf.L) > len(payload) {
		return nil, errors.Errorf("payload length %d exceeds decoded %d bytes", wf.L, len(payload))
	}
	return &Frame{
		Command:    wf.C,
		Source:     wf.S,
		Dest:       wf.D,
		Payload:    payload[:wf.L],
		PayloadLen: wf.L,
	}, nil
}

// Uint16At unpacks a little-endian uint16 at the given byte offset.
func Uint16At(payload []byte, offset int) (uint16, bool) {
	if offset < 0 || offset+2 > len(payload) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(payload[offset : offset+2]), true
}

// Uint32At unpacks a little-endian uint32 at the given byte offset.
func Uint32At(payload []byte, offset int) (uint32, bool) {
	if offset < 0 || offset+4 > len(payload) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(payload[offset : offset+4]), true
}

// Uint48At unpacks a little-endian 48-bit unsigned integer (used for UUIDs
// truncated to 6 bytes on the wire) at the given byte offset.
func Uint48At(payload []byte, offset int) (uint64, bool) {
	if offset < 0 || offset+6 > len(payload) {
		return 0, false
	}
	var v uint64
	for i := 5; i >= 0; i-- {
		v = v<<8 | uint64(payload[offset+i])
	}
	return v, true
}

// PutUint32LE appends the little-endian encoding of v to dst.
func PutUint32LE(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

// PutUint64LE appends the little-endian encoding of v to dst.
func PutUint64LE(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}
