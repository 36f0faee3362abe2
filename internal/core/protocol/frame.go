package protocol

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// FrameReader splits a byte stream into newline terminated frames.
type FrameReader struct {
	r   *bufio.Reader
	max int
}

func NewFrameReader(r io.Reader, max int) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r), max: max}
}

// ReadFrame returns the next non-empty frame without its terminator.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	var buf []byte
	for {
		chunk, isPrefix, err := fr.r.ReadLine()
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
		if fr.max > 0 && len(buf) > fr.max {
			return nil, errors.Wrapf(ErrFrameTooLarge, "%d bytes", len(buf))
		}
		if isPrefix {
			continue
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			buf = buf[:0]
			continue
		}
		return buf, nil
	}
}

// WriteFrame writes frame followed by a newline. The frame must not contain
// a newline.
func WriteFrame(w io.Writer, frame []byte) error {
	if bytes.IndexByte(frame, '\n') >= 0 {
		return errors.New("frame contains newline")
	}
	out := make([]byte, 0, len(frame)+1)
	out = append(out, frame...)
	out = append(out, '\n')
	_, err := w.Write(out)
	return errors.Wrap(err, "write frame")
}
