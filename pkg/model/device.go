// Package model holds the per-device pin telemetry assembled from firmware
// chunks.
package model

import (
	"sort"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/events"
)

// ConnectionType distinguishes connections to a pin of the same device from
// connections to a pin of another device.
type ConnectionType int

const (
	Internal ConnectionType = 0
	External ConnectionType = 1
)

func (t ConnectionType) String() string {
	if t == External {
		return "external"
	}
	return "internal"
}

// Connection is one observed link from a pin. Parameter is the phase for
// internal connections and the peer device id for external ones.
type Connection struct {
	OtherPin    int            `json:"other_pin"`
	Parameter   int            `json:"parameter"`
	Type        ConnectionType `json:"type"`
	Masked      bool           `json:"masked"`
	PhaseMasked bool           `json:"phase_masked"`
}

// Internal reports whether c links two pins of the same device.
func (c Connection) Internal() bool { return c.Type != External }

// Phase returns the test phase of an internal connection.
func (c Connection) Phase() Phase { return Phase(c.Parameter) }

// Hidden reports whether either masking pass suppressed c.
func (c Connection) Hidden() bool { return c.Masked || c.PhaseMasked }

// Pin is the accumulated state of one physical pin.
type Pin struct {
	Number      int             `json:"pin"`
	Mask        uint32          `json:"bitmask"`
	Events      []string        `json:"events"`
	Strength    events.Strength `json:"strength"`
	Connections []Connection    `json:"connections"`
}

// HasEvent reports whether the pin's decoded events include name.
func (p *Pin) HasEvent(name string) bool {
	return events.Has(p.Events, name)
}

// Device is everything collected for one device family since its last header.
type Device struct {
	Family           string `json:"device_family"`
	UUID             string `json:"uuid,omitempty"`
	Version          string `json:"version,omitempty"`
	TotalChunks      int    `json:"total_chunks"`
	ExpectedSessions int    `json:"expected_sessions"`
	SeenDevices      int    `json:"seen_devices,omitempty"`

	Pins []Pin `json:"pins"`

	Complete       bool `json:"complete"`
	Exported       bool `json:"exported"`
	MaskingApplied bool `json:"masking_applied"`

	sessions map[int]map[int]struct{}
	index    map[int]int
}

// NewDevice returns an empty device in the collecting state. An
// expectedSessions below 1 is treated as 1.
func NewDevice(family string, totalChunks, expectedSessions int) *Device {
	if expectedSessions < 1 {
		expectedSessions = 1
	}
	return &Device{
		Family:           family,
		TotalChunks:      totalChunks,
		ExpectedSessions: expectedSessions,
		Pins:             []Pin{},
		sessions:         make(map[int]map[int]struct{}),
		index:            make(map[int]int),
	}
}

// Pin returns the pin with the given number.
func (d *Device) Pin(number int) (*Pin, bool) {
	i, ok := d.index[number]
	if !ok {
		return nil, false
	}
	return &d.Pins[i], true
}

// PinIndex maps pin numbers to their row in Pins.
func (d *Device) PinIndex() map[int]int {
	out := make(map[int]int, len(d.index))
	for k, v := range d.index {
		out[k] = v
	}
	return out
}

// MergePin records a pin sighting. A new pin is appended in arrival order; a
// known pin has its events, bitmask and strength replaced and the new
// connections appended.
func (d *Device) MergePin(p Pin) *Pin {
	if existing, ok := d.Pin(p.Number); ok {
		existing.Mask = p.Mask
		existing.Events = p.Events
		existing.Strength = p.Strength
		existing.Connections = append(existing.Connections, p.Connections...)
		return existing
	}

	if p.Connections == nil {
		p.Connections = []Connection{}
	}
	d.index[p.Number] = len(d.Pins)
	d.Pins = append(d.Pins, p)
	return &d.Pins[len(d.Pins)-1]
}

// HasChunk reports whether chunkID was already recorded for session.
func (d *Device) HasChunk(session, chunkID int) bool {
	_, ok := d.sessions[session][chunkID]
	return ok
}

// RecordChunk marks chunkID as received for session. It returns false if the
// pair was already recorded.
func (d *Device) RecordChunk(session, chunkID int) bool {
	if d.HasChunk(session, chunkID) {
		return false
	}
	chunks, ok := d.sessions[session]
	if !ok {
		chunks = make(map[int]struct{})
		d.sessions[session] = chunks
	}
	chunks[chunkID] = struct{}{}
	return true
}

// Received returns the sorted chunk ids recorded per session.
func (d *Device) Received() map[int][]int {
	out := make(map[int][]int, len(d.sessions))
	for s, chunks := range d.sessions {
		ids := make([]int, 0, len(chunks))
		for id := range chunks {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		out[s] = ids
	}
	return out
}

// AllReceived reports whether every session in [0, ExpectedSessions) holds
// exactly TotalChunks distinct chunk ids.
func (d *Device) AllReceived() bool {
	for s := 0; s < d.ExpectedSessions; s++ {
		if len(d.sessions[s]) != d.TotalChunks {
			return false
		}
	}
	return true
}

// Clone returns a deep copy that shares nothing with d.
func (d *Device) Clone() *Device {
	c := *d
	c.Pins = make([]Pin, len(d.Pins))
	for i, p := range d.Pins {
		p.Events = append([]string(nil), p.Events...)
		p.Connections = append([]Connection{}, p.Connections...)
		c.Pins[i] = p
	}
	c.index = d.PinIndex()
	c.sessions = make(map[int]map[int]struct{}, len(d.sessions))
	for s, chunks := range d.sessions {
		cp := make(map[int]struct{}, len(chunks))
		for id := range chunks {
			cp[id] = struct{}{}
		}
		c.sessions[s] = cp
	}
	return &c
}
