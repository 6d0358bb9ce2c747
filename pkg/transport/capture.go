package transport

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// CapturePort copies every byte read from the wrapped Port to a writer, so
// a live session can be replayed later with a FilePort.
type CapturePort struct {
	Port
	w      io.Writer
	closer io.Closer
}

// NewCapturePort tees reads of p into w.
func NewCapturePort(p Port, w io.Writer) *CapturePort {
	return &CapturePort{Port: p, w: w}
}

// CaptureToFile tees reads of p into a newly created file at path.
func CaptureToFile(p Port, path string) (*CapturePort, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("transport: create capture %s: %w", path, err)
	}
	return &CapturePort{Port: p, w: f, closer: f}, nil
}

func (c *CapturePort) Read(buf []byte) (int, error) {
	n, err := c.Port.Read(buf)
	if n > 0 {
		if _, werr := c.w.Write(buf[:n]); werr != nil {
			return n, fmt.Errorf("transport: capture write: %w", werr)
		}
	}
	return n, err
}

// Close closes the wrapped port and the capture file.
func (c *CapturePort) Close() error {
	err := c.Port.Close()
	if c.closer != nil {
		err = errors.Join(err, c.closer.Close())
	}
	return err
}
