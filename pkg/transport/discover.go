package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/gousb"
	"go.bug.st/serial/enumerator"
)

// InterfaceInfo describes a link the firmware can be reached through.
type InterfaceInfo struct {
	Kind        Kind
	Description string
	VendorID    uint16
	ProductID   uint16
	Serial      string
	// Path is the serial device for KindSerial entries.
	Path string
}

// Label returns a user-friendly description for the interface.
func (i InterfaceInfo) Label() string {
	switch {
	case i.Path != "" && i.Description != "":
		return fmt.Sprintf("%s (%s)", i.Path, i.Description)
	case i.Path != "":
		return i.Path
	case i.Description != "":
		return i.Description
	case i.Kind != "":
		return fmt.Sprintf("%s (%04X:%04X)", string(i.Kind), i.VendorID, i.ProductID)
	}
	return fmt.Sprintf("Interface %04X:%04X", i.VendorID, i.ProductID)
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

// knownBoards lists the boards the pin-test firmware ships for.
var knownBoards = []knownUSBDevice{
	{VendorID: 0x1915, ProductID: 0x520F, Description: "Nordic nRF52840 CDC-ACM"},
	{VendorID: 0x1915, ProductID: 0xC00A, Description: "Nordic nRF52840 Dongle"},
	{VendorID: 0x2047, ProductID: 0x0013, Description: "TI MSP430 LaunchPad eZ-FET"},
	{VendorID: 0x0451, ProductID: 0xBEF3, Description: "TI XDS110 LaunchPad"},
}

// LookupBoard returns the known board with the given IDs.
func LookupBoard(vid, pid uint16) (string, bool) {
	for _, k := range knownBoards {
		if k.VendorID == vid && k.ProductID == pid {
			return k.Description, true
		}
	}
	return "", false
}

// DiscoverInterfaces lists serial ports and USB devices of known boards. It
// always ends with the simulator entry so the pipeline can be exercised
// without hardware. Enumeration failures of one source do not hide the other.
func DiscoverInterfaces(ctx context.Context) ([]InterfaceInfo, error) {
	var (
		results []InterfaceInfo
		errs    []error
	)

	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		errs = append(errs, fmt.Errorf("transport: list serial ports: %w", err))
	}
	for _, p := range ports {
		results = append(results, classifySerialPort(p))
	}

	usbDevices, err := discoverUSB(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	results = append(results, usbDevices...)

	results = append(results, InterfaceInfo{
		Kind:        KindSim,
		Description: "Simulator (no hardware)",
	})

	return results, errors.Join(errs...)
}

func classifySerialPort(p *enumerator.PortDetails) InterfaceInfo {
	info := InterfaceInfo{Kind: KindSerial, Path: p.Name, Serial: p.SerialNumber}
	if !p.IsUSB {
		return info
	}

	info.VendorID = parseHexID(p.VID)
	info.ProductID = parseHexID(p.PID)
	if desc, ok := LookupBoard(info.VendorID, info.ProductID); ok {
		info.Description = desc
	} else {
		info.Description = p.Product
	}
	return info
}

func parseHexID(s string) uint16 {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}

func discoverUSB(ctx context.Context) ([]InterfaceInfo, error) {
	var results []InterfaceInfo
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if info, ok := classifyUSBDevice(desc); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return results, fmt.Errorf("transport: list usb devices: %w", err)
	}
	return results, nil
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (InterfaceInfo, bool) {
	label, ok := LookupBoard(uint16(desc.Vendor), uint16(desc.Product))
	if !ok {
		return InterfaceInfo{}, false
	}
	return InterfaceInfo{
		Kind:        KindUSB,
		Description: label,
		VendorID:    uint16(desc.Vendor),
		ProductID:   uint16(desc.Product),
	}, true
}
