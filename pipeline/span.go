package pipeline

import (
	"github.com/noriah/fftpipe/device"
)

// Span is one gulp of frames handed from a block to the next. Exactly one
// of F32, C64 or Dev holds data, matching Header.DType and Header.Space.
// Buffers may be longer than Frames*FrameSize; the tail is undefined.
type Span struct {
	Header *Header
	Frames int

	F32 []float32
	C64 []complex64
	Dev device.Buffer

	release func()
}

// Len is the number of valid elements in the span.
func (s *Span) Len() int {
	return s.Frames * s.Header.FrameSize()
}

// Release hands the backing buffer back to the block that owns it. It is
// safe to call more than once.
func (s *Span) Release() {
	if s.release != nil {
		s.release()
		s.release = nil
	}
}

// OnRelease sets the function Release calls.
func (s *Span) OnRelease(fn func()) {
	s.release = fn
}
