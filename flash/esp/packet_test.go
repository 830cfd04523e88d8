package esp

import "testing"

func TestPacketEncodeDecodeRoundTrip(t *testing.T) {
	p := packet{Direction: directionRequest, Command: cmdFlashBegin, Value: 0x11223344, Data: []byte{1, 2, 3, 4, 5}}
	got, ok := decodePacket(p.encode())
	if !ok {
		t.Fatal("decodePacket returned ok=false")
	}
	if got.Direction != p.Direction || got.Command != p.Command || got.Value != p.Value {
		t.Errorf("decoded header mismatch: %+v", got)
	}
	if string(got.Data) != string(p.Data) {
		t.Errorf("decoded data = %v, want %v", got.Data, p.Data)
	}
}

func TestDecodePacketRejectsTruncated(t *testing.T) {
	if _, ok := decodePacket([]byte{0, 1, 2}); ok {
		t.Error("expected decodePacket to reject a too-short buffer")
	}
}

func TestStatusOKChecksLowByte(t *testing.T) {
	if !statusOK(packet{Value: 1}) {
		t.Error("expected Value=1 to be status OK")
	}
	if statusOK(packet{Value: 0}) {
		t.Error("expected Value=0 to not be status OK")
	}
}

func TestFlashDataChecksumSeedsAt0xEF(t *testing.T) {
	got := flashDataChecksum(nil)
	if got != 0xEF {
		t.Errorf("checksum of empty block = %#x, want 0xEF (unfolded seed)", got)
	}
	got = flashDataChecksum([]byte{0xEF})
	if got != 0 {
		t.Errorf("checksum of [0xEF] = %#x, want 0 (cancels the seed)", got)
	}
}
