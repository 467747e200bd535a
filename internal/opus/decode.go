package opus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var ErrFrameTooLarge = errors.New("opus frame exceeds length prefix")

// FrameReader reads length-prefixed Opus frames from an io.Reader.
type FrameReader struct {
	r io.Reader
}

// NewFrameReader returns a new FrameReader that reads from r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadFrame reads and returns the next raw Opus frame.
// Returns io.EOF when there are no more frames.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	var size uint16
	if err := binary.Read(f.r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}

	frame := make([]byte, size)
	if _, err := io.ReadFull(f.r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, frame []byte) error {
	if len(frame) > math.MaxUint16 {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}

	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(frame)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}
