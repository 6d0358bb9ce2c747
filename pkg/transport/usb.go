package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
)

const (
	// CDC class request that raises DTR and RTS. Several firmware builds only
	// start streaming once the host asserts DTR.
	cdcSetControlLineState = 0x22
	cdcLineStateDTRRTS     = 0x03
	cdcRequestTypeOut      = 0x21
)

// USBPort talks to the firmware's CDC-ACM data interface directly over bulk
// endpoints, bypassing the operating system's serial driver.
type USBPort struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	readTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// OpenUSB opens the first device matching vid:pid and claims its CDC data
// interface.
func OpenUSB(vid, pid uint16, readTimeout time.Duration) (*USBPort, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("transport: usb open %04X:%04X: %w", vid, pid, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("transport: usb device %04X:%04X not found", vid, pid)
	}

	// Not supported on every platform.
	_ = dev.SetAutoDetach(true)

	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	p := &USBPort{ctx: ctx, dev: dev, readTimeout: readTimeout}

	if err := p.claimInterface(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// claimInterface claims the CDC data interface and raises DTR on the
// matching communication interface.
func (p *USBPort) claimInterface() error {
	cfgNum, err := p.dev.ActiveConfigNum()
	if err != nil {
		cfgNum = 1
	}
	cfg, err := p.dev.Config(cfgNum)
	if err != nil {
		return fmt.Errorf("transport: usb config %d: %w", cfgNum, err)
	}
	p.cfg = cfg

	dataIntf, commIntf := -1, -1
	for _, intf := range cfg.Desc.Interfaces {
		if len(intf.AltSettings) == 0 {
			continue
		}
		switch intf.AltSettings[0].Class {
		case gousb.ClassData:
			if dataIntf < 0 {
				dataIntf = intf.Number
			}
		case gousb.ClassComm:
			if commIntf < 0 {
				commIntf = intf.Number
			}
		}
	}
	if dataIntf < 0 {
		return fmt.Errorf("transport: no CDC data interface on %s", p.dev)
	}

	intf, err := cfg.Interface(dataIntf, 0)
	if err != nil {
		return fmt.Errorf("transport: claim interface %d: %w", dataIntf, err)
	}
	p.intf = intf

	if err := p.findEndpoints(); err != nil {
		return err
	}

	if commIntf >= 0 {
		// Best effort: composite devices may not accept the request.
		_, _ = p.dev.Control(cdcRequestTypeOut, cdcSetControlLineState, cdcLineStateDTRRTS, uint16(commIntf), nil)
	}
	return nil
}

// findEndpoints picks the bulk IN and OUT endpoints of the data interface.
func (p *USBPort) findEndpoints() error {
	inNum, outNum := -1, -1
	for _, ep := range p.intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch {
		case ep.Direction == gousb.EndpointDirectionIn && inNum < 0:
			inNum = ep.Number
		case ep.Direction == gousb.EndpointDirectionOut && outNum < 0:
			outNum = ep.Number
		}
	}
	if inNum < 0 {
		return fmt.Errorf("transport: bulk IN endpoint not found")
	}
	if outNum < 0 {
		return fmt.Errorf("transport: bulk OUT endpoint not found")
	}

	epIn, err := p.intf.InEndpoint(inNum)
	if err != nil {
		return fmt.Errorf("transport: open IN endpoint: %w", err)
	}
	epOut, err := p.intf.OutEndpoint(outNum)
	if err != nil {
		return fmt.Errorf("transport: open OUT endpoint: %w", err)
	}
	p.epIn, p.epOut = epIn, epOut
	return nil
}

// Read reads one bulk transfer. It returns (0, nil) when no data arrived
// within the read timeout.
func (p *USBPort) Read(buf []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.readTimeout)
	defer cancel()

	n, err := p.epIn.ReadContext(ctx, buf)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return n, nil
		}
		return n, fmt.Errorf("transport: usb read: %w", err)
	}
	return n, nil
}

// Write sends data on the bulk OUT endpoint.
func (p *USBPort) Write(data []byte) (int, error) {
	n, err := p.epOut.Write(data)
	if err != nil {
		return n, fmt.Errorf("transport: usb write: %w", err)
	}
	return n, nil
}

// Close releases the interface, device and USB context. It is safe to call
// more than once.
func (p *USBPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if p.intf != nil {
		p.intf.Close()
	}
	var errs []error
	if p.cfg != nil {
		errs = append(errs, p.cfg.Close())
	}
	if p.dev != nil {
		errs = append(errs, p.dev.Close())
	}
	if p.ctx != nil {
		errs = append(errs, p.ctx.Close())
	}
	return errors.Join(errs...)
}
