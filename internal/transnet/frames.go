package transnet

import (
	"errors"
	"fmt"
)

// Model input geometry, fixed by the TransNetV2 weights.
const (
	InputHeight   = 27
	InputWidth    = 48
	InputChannels = 3

	// FrameBytes is the packed size of one raw rgb24 frame.
	FrameBytes = InputHeight * InputWidth * InputChannels
)

var (
	ErrEmptySequence = errors.New("transnet: empty frame sequence")
	ErrShapeMismatch = errors.New("transnet: pixel buffer is not a whole number of frames")
)

// FrameSequence is a decoded video as packed rgb24 bytes, one frame after
// another in presentation order. It is read-only after construction.
type FrameSequence struct {
	pix []byte
	n   int
}

func NewFrameSequence(pix []byte) (*FrameSequence, error) {
	if len(pix) == 0 {
		return nil, ErrEmptySequence
	}
	if len(pix)%FrameBytes != 0 {
		return nil, fmt.Errorf("%w: %d bytes, frame is %d", ErrShapeMismatch, len(pix), FrameBytes)
	}
	return &FrameSequence{pix: pix, n: len(pix) / FrameBytes}, nil
}

// Len returns the number of frames.
func (s *FrameSequence) Len() int { return s.n }

// Frame returns the packed pixels of frame i.
func (s *FrameSequence) Frame(i int) []byte {
	return s.pix[i*FrameBytes : (i+1)*FrameBytes]
}

// padded returns a new buffer with lead copies of the first frame, the
// sequence itself, and tail copies of the last frame.
func (s *FrameSequence) padded(lead, tail int) []byte {
	out := make([]byte, (lead+s.n+tail)*FrameBytes)
	first := s.Frame(0)
	last := s.Frame(s.n - 1)

	off := 0
	for i := 0; i < lead; i++ {
		off += copy(out[off:], first)
	}
	off += copy(out[off:], s.pix)
	for i := 0; i < tail; i++ {
		off += copy(out[off:], last)
	}
	return out
}
