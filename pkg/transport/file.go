package transport

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// FilePort replays a capture file. Reads return the file contents followed
// by io.EOF; writes are counted and dropped so no acknowledgement leaves the
// process.
type FilePort struct {
	r io.ReadCloser

	mu      sync.Mutex
	written int
}

// OpenFile opens a capture written by CapturePort.
func OpenFile(path string) (*FilePort, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transport: open replay %s: %w", path, err)
	}
	return &FilePort{r: f}, nil
}

// NewReaderPort replays an arbitrary reader.
func NewReaderPort(r io.Reader) *FilePort {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	return &FilePort{r: rc}
}

func (f *FilePort) Read(buf []byte) (int, error) {
	return f.r.Read(buf)
}

func (f *FilePort) Write(data []byte) (int, error) {
	f.mu.Lock()
	f.written += len(data)
	f.mu.Unlock()
	return len(data), nil
}

// Written returns how many bytes were written and dropped.
func (f *FilePort) Written() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

func (f *FilePort) Close() error {
	return f.r.Close()
}
