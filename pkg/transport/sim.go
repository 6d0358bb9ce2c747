package transport

import (
	"errors"
	"io"
	"sync"
	"time"
)

// ErrClosed is returned by SimPort operations after Close.
var ErrClosed = errors.New("transport: port closed")

// SimPort is an in-memory Port for tests. Reads are served from a script of
// byte slices, one slice per Read; once the script is drained Reads behave
// like a timed-out serial port, or return io.EOF / a scripted error. Writes
// are recorded.
type SimPort struct {
	mu sync.Mutex

	script  [][]byte
	endErr  error
	delay   time.Duration
	written []byte
	writes  int
	closed  bool

	// WriteErr, when set, fails every Write.
	WriteErr error
}

// NewSimPort returns a SimPort that serves reads in order.
func NewSimPort(reads ...[]byte) *SimPort {
	s := &SimPort{}
	for _, r := range reads {
		s.script = append(s.script, append([]byte(nil), r...))
	}
	return s
}

// Push appends reads to the script.
func (s *SimPort) Push(reads ...[]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range reads {
		s.script = append(s.script, append([]byte(nil), r...))
	}
}

// EndWith makes Read return err once the script is drained. io.EOF models a
// finite capture; any other error models a failing device.
func (s *SimPort) EndWith(err error) {
	s.mu.Lock()
	s.endErr = err
	s.mu.Unlock()
}

// SetIdleDelay makes an empty Read sleep for d, like a serial read timeout.
func (s *SimPort) SetIdleDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

func (s *SimPort) Read(buf []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	if len(s.script) == 0 {
		err, delay := s.endErr, s.delay
		s.mu.Unlock()
		if err != nil {
			return 0, err
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		return 0, nil
	}

	next := s.script[0]
	n := copy(buf, next)
	if n < len(next) {
		s.script[0] = next[n:]
	} else {
		s.script = s.script[1:]
	}
	s.mu.Unlock()
	return n, nil
}

func (s *SimPort) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.WriteErr != nil {
		return 0, s.WriteErr
	}
	s.written = append(s.written, data...)
	s.writes++
	return len(data), nil
}

// Written returns a copy of everything written so far.
func (s *SimPort) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.written...)
}

// Writes returns the number of successful Write calls.
func (s *SimPort) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Closed reports whether Close was called.
func (s *SimPort) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *SimPort) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

var _ Port = (*SimPort)(nil)
var _ io.ReadWriteCloser = (*FilePort)(nil)
