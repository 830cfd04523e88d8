package crc

import "testing"

func refChunk32(chunk [4]byte, seed uint32) uint32 {
	crc := seed ^ (uint32(chunk[0]) | uint32(chunk[1])<<8 | uint32(chunk[2])<<16 | uint32(chunk[3])<<24)
	for i := 0; i < 32; i++ {
		if crc&0x80000000 != 0 {
			crc = (crc << 1) ^ poly32
		} else {
			crc <<= 1
		}
	}
	return crc
}

func TestChunk64MatchesReference(t *testing.T) {
	cases := []struct {
		name  string
		chunk [8]byte
		seed  uint32
	}{
		{"zero", [8]byte{}, 0},
		{"allones", [8]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, 0xffffffff},
		{"seeded", [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, 0x12345678},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var lo, hi [4]byte
			copy(lo[:], c.chunk[0:4])
			copy(hi[:], c.chunk[4:8])
			want := refChunk32(lo, refChunk32(hi, c.seed))
			got := Chunk64(c.chunk, c.seed)
			if got != want {
				t.Errorf("Chunk64(%v, %#x) = %#x, want %#x", c.chunk, c.seed, got, want)
			}
		})
	}
}

func TestPageComposesChunk64(t *testing.T) {
	data := make([]byte, 32)
	for i := range data {
		data[i] = byte(i)
	}
	seed := uint32(0)
	want := seed
	for off := 0; off+8 <= len(data); off += 8 {
		var c [8]byte
		copy(c[:], data[off:off+8])
		want = Chunk64(c, want)
	}
	if got := Page(data, seed); got != want {
		t.Errorf("Page() = %#x, want %#x", got, want)
	}
}

func TestPageEmpty(t *testing.T) {
	if got := Page(nil, 0x1234); got != 0x1234 {
		t.Errorf("Page(nil) = %#x, want seed unchanged", got)
	}
}
