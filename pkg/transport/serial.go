package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaud matches the firmware's UART configuration.
const DefaultBaud = 115200

// SerialPort is a Port over a serial device.
type SerialPort struct {
	serial.Port
	name string
}

// OpenSerial opens a serial device in 8N1 mode with the given read timeout.
func OpenSerial(name string, baud int, readTimeout time.Duration) (*SerialPort, error) {
	if name == "" {
		return nil, fmt.Errorf("transport: no serial port given")
	}
	if baud <= 0 {
		baud = DefaultBaud
	}

	p, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", name, err)
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("transport: set read timeout on %s: %w", name, err)
	}

	return &SerialPort{Port: p, name: name}, nil
}

// Name returns the device path.
func (s *SerialPort) Name() string {
	return s.name
}
