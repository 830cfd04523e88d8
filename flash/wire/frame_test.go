package wire

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		command uint8
		sid     uint16
		did     uint16
		payload []byte
	}{
		{"empty", 0x0A, 1, 2, nil},
		{"full", 0x2C, 0x1234, 0x5678, []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		{"braces", 0x04, 1, 1, []byte{'{', '}', '{', '}', 0, 0, 0, 0}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			raw, err := Encode(c.command, c.sid, c.did, c.payload)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(raw)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.Command != c.command || got.Source != c.sid || got.Dest != c.did {
				t.Errorf("header mismatch: got %+v", got)
			}
			if !bytes.Equal(got.Payload, c.payload) {
				t.Errorf("Payload = %v, want %v", got.Payload, c.payload)
			}
		})
	}
}

func TestEncodeRejectsOversizePayload(t *testing.T) {
	_, err := Encode(1, 1, 1, make([]byte, MaxPayload+1))
	if err == nil {
		t.Fatal("expected error for oversize payload")
	}
}

func TestDecodeMalformedIsError(t *testing.T) {
	_, err := Decode([]byte(`{"c":1,"s":1,"d":1,"b":"not-base64!!","l":1}`))
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
	_, err = Decode([]byte(`not json at all`))
	if err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestScannerExtractsFramesAcrossChunks(t *testing.T) {
	raw1, _ := Encode(1, 1, 2, []byte("ab"))
	raw2, _ := Encode(2, 3, 4, []byte("cd"))

	var s Scanner
	var got [][]byte

	stream := append([]byte("junk\r\n"), raw1...)
	stream = append(stream, []byte("\r\n")...)
	stream = append(stream, raw2...)

	for i := 0; i < len(stream); i += 3 {
		end := i + 3
		if end > len(stream) {
			end = len(stream)
		}
		got = append(got, s.Feed(stream[i:end])...)
	}

	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	f1, err := Decode(got[0])
	if err != nil {
		t.Fatalf("Decode frame 1: %v", err)
	}
	if f1.Command != 1 || string(f1.Payload) != "ab" {
		t.Errorf("frame 1 = %+v", f1)
	}
	f2, err := Decode(got[1])
	if err != nil {
		t.Fatalf("Decode frame 2: %v", err)
	}
	if f2.Command != 2 || string(f2.Payload) != "cd" {
		t.Errorf("frame 2 = %+v", f2)
	}
}

func TestScannerHoldsUnterminatedFrame(t *testing.T) {
	var s Scanner
	got := s.Feed([]byte(`{"c":1,"s":1,"d":1,"b":"`))
	if len(got) != 0 {
		t.Fatalf("expected no complete frames, got %d", len(got))
	}
}
