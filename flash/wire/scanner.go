package wire

// Scanner extracts '{'...'}' delimited frames from a byte stream that may
// deliver data in arbitrary chunks (as serial reads do). Frames never nest,
// since payloads are base64 and so can never contain '{' or '}'; bytes
// outside of a frame (stray newlines, partial junk) are discarded.
type Scanner struct {
	buf     []byte
	inFrame bool
}

// Feed appends newly read bytes and returns any complete frames found,
// each as the raw '{'...'}' slice ready for Decode. Incomplete trailing
// data is retained for the next call.
func (s *Scanner) Feed(data []byte) [][]byte {
	s.buf = append(s.buf, data...)

	var frames [][]byte
	start := 0
	for i := 0; i < len(s.buf); i++ {
		switch s.buf[i] {
		case '{':
			if !s.inFrame {
				s.inFrame = true
				start = i
			}
		case '}':
			if s.inFrame {
				frame := make([]byte, i-start+1)
				copy(frame, s.buf[start:i+1])
				frames = append(frames, frame)
				s.inFrame = false
				start = i + 1
			}
		}
	}
	if s.inFrame {
		s.buf = append([]byte(nil), s.buf[start:]...)
	} else {
		s.buf = s.buf[:0]
	}
	return frames
}
