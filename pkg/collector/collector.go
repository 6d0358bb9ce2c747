// Package collector reassembles header and chunk packets into per-device
// snapshots.
//
// Each device family moves through no-header, collecting, complete and
// exported. A header starts a fresh record for its family; chunks are merged
// into the family they name, or the family of the last header. A device is
// complete once every expected session holds exactly total_chunks distinct
// chunk ids. Masking runs once, on the transition into complete, and Poll
// hands each complete device to the Sink exactly once.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/analysis"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/events"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/model"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/tables"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/wire"
)

var (
	// ErrChecksum rejects packets whose checksum did not match.
	ErrChecksum = errors.New("collector: checksum mismatch")
	// ErrNoFamily rejects headers without a device family.
	ErrNoFamily = errors.New("collector: header has no device family")
	// ErrNoHeader rejects chunks for a family that has no active header.
	ErrNoHeader = errors.New("collector: no header for device family")
	// ErrKind rejects a packet passed to the wrong entry point.
	ErrKind = errors.New("collector: unexpected packet kind")
)

// Sink receives complete devices. target is the device that just completed;
// all holds every known device, target included, for cross-device matrices.
// Both are snapshots the sink may keep. Export runs with the collector
// locked, so a sink must not call back into it.
type Sink interface {
	Export(ctx context.Context, target *model.Device, all []*model.Device) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, target *model.Device, all []*model.Device) error

// Export calls f.
func (f SinkFunc) Export(ctx context.Context, target *model.Device, all []*model.Device) error {
	return f(ctx, target, all)
}

// Options configures a Collector.
type Options struct {
	// ExtendedPhases enables phase-presence masking.
	ExtendedPhases bool
	// ExpectedDevices overrides the device count announced by headers when
	// greater than zero.
	ExpectedDevices int
	// Tables decodes event masks and names pins. Nil uses tables.Default().
	Tables *tables.Tables
}

// Collector is the device reassembly state machine. It is safe for concurrent
// use, although the monitor drives it from a single goroutine.
type Collector struct {
	log    zerolog.Logger
	sink   Sink
	opts   Options
	tables *tables.Tables

	mu              sync.Mutex
	devices         map[string]*model.Device
	order           []string
	current         string
	expectedDevices int
}

// New creates a Collector. sink may be nil, in which case complete devices
// are only marked exported.
func New(log zerolog.Logger, sink Sink, opts Options) *Collector {
	tb := opts.Tables
	if tb == nil {
		tb = tables.Default()
	}
	expected := 1
	if opts.ExpectedDevices > 0 {
		expected = opts.ExpectedDevices
	}
	return &Collector{
		log:             log.With().Str("component", "collector").Logger(),
		sink:            sink,
		opts:            opts,
		tables:          tb,
		devices:         make(map[string]*model.Device),
		expectedDevices: expected,
	}
}

func checkPacket(p *wire.Packet, kind wire.Kind) error {
	if p == nil || p.Kind != kind {
		return ErrKind
	}
	if !p.ChecksumValid {
		return fmt.Errorf("%w: got 0x%08X, computed 0x%08X", ErrChecksum, p.ReceivedChecksum, p.ComputedChecksum)
	}
	if p.Err != nil {
		return fmt.Errorf("collector: %w", p.Err)
	}
	return nil
}

// ProcessHeader starts a new record for the header's family, discarding any
// previous state of that family only. It makes that family current.
func (c *Collector) ProcessHeader(p *wire.Packet) error {
	if err := checkPacket(p, wire.KindHeader); err != nil {
		return err
	}
	h := p.Header
	if h == nil || h.DeviceFamily == "" {
		return ErrNoFamily
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	family := string(h.DeviceFamily)
	dev := model.NewDevice(family, h.TotalChunks, h.ExpectedSessions)
	dev.UUID = string(h.DeviceUUID)
	dev.Version = string(h.Version)
	dev.SeenDevices = h.NumberSeenDevices

	if _, known := c.devices[family]; !known {
		c.order = append(c.order, family)
	}
	c.devices[family] = dev
	c.current = family

	if c.opts.ExpectedDevices <= 0 {
		c.expectedDevices = max(h.NumberSeenDevices, 1)
	}

	c.log.Info().
		Str("family", family).
		Str("uuid", dev.UUID).
		Int("total_chunks", dev.TotalChunks).
		Int("sessions", dev.ExpectedSessions).
		Int("expected_devices", c.expectedDevices).
		Msg("Reset device")
	return nil
}

// ProcessChunk merges a chunk into its device. It returns false without error
// for a (session, chunk) pair that was already recorded.
func (c *Collector) ProcessChunk(p *wire.Packet) (bool, error) {
	if err := checkPacket(p, wire.KindChunk); err != nil {
		return false, err
	}
	body := p.Chunk
	if body == nil {
		return false, fmt.Errorf("collector: chunk %d has no body", p.PacketID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	family := c.current
	if body.DeviceFamily != "" {
		family = string(body.DeviceFamily)
	}
	dev, ok := c.devices[family]
	if !ok {
		return false, fmt.Errorf("%w %q", ErrNoHeader, family)
	}

	chunkID := body.ID(p.PacketID)
	if !dev.RecordChunk(body.Session, chunkID) {
		c.log.Debug().
			Str("family", family).
			Int("session", body.Session).
			Int("chunk", chunkID).
			Msg("Duplicate chunk dropped")
		return false, nil
	}

	for _, entry := range body.Pins {
		dev.MergePin(c.pinFromEntry(family, entry))
	}

	c.log.Debug().
		Str("family", family).
		Int("session", body.Session).
		Int("chunk", chunkID).
		Int("pins", len(body.Pins)).
		Msg("Chunk accepted")

	if !dev.Complete && dev.AllReceived() {
		c.complete(dev)
	}
	return true, nil
}

func (c *Collector) pinFromEntry(family string, entry wire.PinEntry) model.Pin {
	names := c.tables.Decode(entry.Events)
	if events.Has(names, events.ExceedsConnectionLimit) {
		c.log.Warn().
			Str("family", family).
			Str("pin", c.tables.PinName(family, entry.Pin)).
			Msg("Pin exceeded connection limit")
	}

	conns := make([]model.Connection, 0, len(entry.Connections))
	for _, ce := range entry.Connections {
		conns = append(conns, model.Connection{
			OtherPin:  ce.OtherPin,
			Parameter: ce.Parameter,
			Type:      model.ConnectionType(ce.Type),
		})
	}

	return model.Pin{
		Number:      entry.Pin,
		Mask:        entry.Events,
		Events:      names,
		Strength:    events.Classify(names),
		Connections: conns,
	}
}

// complete marks dev complete and applies masking. Callers hold c.mu.
func (c *Collector) complete(dev *model.Device) {
	dev.Complete = true
	res := analysis.ApplyMasks(dev, c.opts.ExtendedPhases)
	dev.MaskingApplied = true

	c.log.Info().
		Str("family", dev.Family).
		Int("pins", len(dev.Pins)).
		Int("strength_masked", res.StrengthMasked).
		Int("phase_masked", res.PhaseMasked).
		Msg("Device complete")
}

// Poll exports every complete device that has not been exported yet and
// reports whether at least the expected number of devices is complete. A
// failed export leaves the device pending so the next Poll retries it.
func (c *Collector) Poll(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	completed := 0
	for _, family := range c.order {
		dev := c.devices[family]
		if !dev.Complete {
			continue
		}
		completed++
		if dev.Exported {
			continue
		}

		if c.sink != nil {
			if err := c.sink.Export(ctx, dev.Clone(), c.snapshotsLocked()); err != nil {
				errs = append(errs, fmt.Errorf("collector: export %s: %w", family, err))
				continue
			}
		}
		dev.Exported = true
		c.log.Info().Str("family", family).Msg("Device exported")
	}

	return completed >= c.expectedDevices, errors.Join(errs...)
}

// Pending reports whether a complete device is still waiting to be exported.
func (c *Collector) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, dev := range c.devices {
		if dev.Complete && !dev.Exported {
			return true
		}
	}
	return false
}

// CurrentFamily returns the family of the last accepted header.
func (c *Collector) CurrentFamily() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// ExpectedDevices returns how many complete devices end a collection.
func (c *Collector) ExpectedDevices() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expectedDevices
}

// Snapshot returns a deep copy of one device.
func (c *Collector) Snapshot(family string) (*model.Device, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dev, ok := c.devices[family]
	if !ok {
		return nil, false
	}
	return dev.Clone(), true
}

// Snapshots returns deep copies of all devices in first-header order.
func (c *Collector) Snapshots() []*model.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotsLocked()
}

func (c *Collector) snapshotsLocked() []*model.Device {
	out := make([]*model.Device, 0, len(c.order))
	for _, family := range c.order {
		out = append(out, c.devices[family].Clone())
	}
	return out
}
