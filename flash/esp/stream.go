package esp

const (
	chunkSize = 16 * 1024
	blockSize = 512
)

// segment is one binary image placed at a fixed absolute flash offset
// within the concatenated ESP flash stream (§4.8 step 4).
type segment struct {
	name   string
	offset int
	data   []byte
}

// buildStream concatenates segments into one contiguous, 0xFF-padded
// image spanning from offset 0 to the end of the last segment.
func buildStream(segments []segment) []byte {
	total := 0
	for _, s := range segments {
		if end := s.offset + len(s.data); end > total {
			total = end
		}
	}
	stream := make([]byte, total)
	for i := range stream {
		stream[i] = 0xFF
	}
	for _, s := range segments {
		copy(stream[s.offset:], s.data)
	}
	return stream
}

// chunk is one 16KiB (or shorter, for the final chunk) window of the
// stream along with its absolute flash offset.
type chunk struct {
	offset int
	data   []byte
}

// chunks splits stream into fixed-size windows starting at offset 0.
func chunks(stream []byte) []chunk {
	var out []chunk
	for off := 0; off < len(stream); off += chunkSize {
		end := off + chunkSize
		if end > len(stream) {
			end = len(stream)
		}
		out = append(out, chunk{offset: off, data: stream[off:end]})
	}
	return out
}

// blocks splits a chunk's data into blockSize-byte pieces for flash-data.
func blocks(data []byte) [][]byte {
	var out [][]byte
	for off := 0; off < len(data); off += blockSize {
		end := off + blockSize
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[off:end])
	}
	return out
}

func blockCount(size int) int {
	return (size + blockSize - 1) / blockSize
}
