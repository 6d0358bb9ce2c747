// Package transport provides the byte links to the pin-test firmware: a
// serial port, a USB CDC bulk pipe, a capture file for replay, and an
// in-memory simulator for tests.
package transport

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Port is a bidirectional byte link to the firmware.
//
// Read blocks for at most the port's read timeout and returns (0, nil) when
// it elapses without data. It returns io.EOF once a finite source is
// exhausted; any other error is fatal for the session.
type Port interface {
	io.ReadWriteCloser
}

// Kind selects a Port implementation.
type Kind string

const (
	KindSerial Kind = "serial"
	KindUSB    Kind = "usb"
	KindReplay Kind = "replay"
	KindSim    Kind = "sim"
)

// ErrUnknownKind is returned by Open for an unsupported Kind.
var ErrUnknownKind = errors.New("transport: unknown port kind")

// DefaultReadTimeout bounds a single Read so the reader can notice shutdown.
const DefaultReadTimeout = 100 * time.Millisecond

// Config describes the port to open.
type Config struct {
	Kind Kind
	// Name is the serial device path or the replay file path.
	Name      string
	Baud      int
	VendorID  uint16
	ProductID uint16
	// ReadTimeout defaults to DefaultReadTimeout.
	ReadTimeout time.Duration
}

// Open opens the port described by cfg.
func Open(cfg Config) (Port, error) {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	var (
		port Port
		err  error
	)
	switch cfg.Kind {
	case KindSerial, "":
		port, err = OpenSerial(cfg.Name, cfg.Baud, cfg.ReadTimeout)
	case KindUSB:
		port, err = OpenUSB(cfg.VendorID, cfg.ProductID, cfg.ReadTimeout)
	case KindReplay:
		port, err = OpenFile(cfg.Name)
	case KindSim:
		port = NewSimPort()
	default:
		err = fmt.Errorf("%w %q", ErrUnknownKind, cfg.Kind)
	}
	if err != nil {
		// a failed constructor leaves a typed nil in port
		return nil, err
	}
	return port, nil
}

