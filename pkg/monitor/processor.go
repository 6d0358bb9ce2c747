package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/collector"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/wire"
)

// Stats is a point-in-time copy of the pipeline counters.
type Stats struct {
	BytesRead      uint64 `json:"bytes_read"`
	Backpressure   uint64 `json:"backpressure"`
	DebugLines     uint64 `json:"debug_lines"`
	Discarded      uint64 `json:"discarded"`
	Headers        uint64 `json:"headers"`
	Chunks         uint64 `json:"chunks"`
	Accepted       uint64 `json:"accepted"`
	Duplicates     uint64 `json:"duplicates"`
	Rejected       uint64 `json:"rejected"`
	Acks           uint64 `json:"acks"`
	AckFailures    uint64 `json:"ack_failures"`
	ExportFailures uint64 `json:"export_failures"`
}

type counters struct {
	bytesRead      atomic.Uint64
	backpressure   atomic.Uint64
	debugLines     atomic.Uint64
	discarded      atomic.Uint64
	headers        atomic.Uint64
	chunks         atomic.Uint64
	accepted       atomic.Uint64
	duplicates     atomic.Uint64
	rejected       atomic.Uint64
	acks           atomic.Uint64
	ackFailures    atomic.Uint64
	exportFailures atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		BytesRead:      c.bytesRead.Load(),
		Backpressure:   c.backpressure.Load(),
		DebugLines:     c.debugLines.Load(),
		Discarded:      c.discarded.Load(),
		Headers:        c.headers.Load(),
		Chunks:         c.chunks.Load(),
		Accepted:       c.accepted.Load(),
		Duplicates:     c.duplicates.Load(),
		Rejected:       c.rejected.Load(),
		Acks:           c.acks.Load(),
		AckFailures:    c.ackFailures.Load(),
		ExportFailures: c.exportFailures.Load(),
	}
}

// Processor drives one byte stream through framing, decoding,
// acknowledgement and collection. It is not safe for concurrent use; the
// Monitor feeds it from a single goroutine.
type Processor struct {
	log    zerolog.Logger
	framer *wire.Framer
	coll   *collector.Collector
	ack    io.Writer
	stats  *counters
}

// NewProcessor creates a Processor that writes ACK frames to ack. ack may be
// nil, in which case nothing is acknowledged.
func NewProcessor(log zerolog.Logger, coll *collector.Collector, ack io.Writer) *Processor {
	return newProcessor(log, coll, ack, &counters{})
}

func newProcessor(log zerolog.Logger, coll *collector.Collector, ack io.Writer, stats *counters) *Processor {
	p := &Processor{
		log:   log.With().Str("component", "processor").Logger(),
		coll:  coll,
		ack:   ack,
		stats: stats,
	}
	fw := log.With().Str("component", "firmware").Logger()
	p.framer = wire.NewFramer(func(line string) {
		stats.debugLines.Add(1)
		fw.Debug().Msg(line)
	})
	return p
}

// Stats returns the current counters.
func (p *Processor) Stats() Stats {
	return p.stats.snapshot()
}

// Feed processes data and reports whether the collection is complete. The
// collector is polled whenever a packet was accepted or an earlier export is
// still pending, so any later traffic retries a failed export. Decode and
// collector errors are logged, never returned: only the byte
// source can end a session.
func (p *Processor) Feed(ctx context.Context, data []byte) bool {
	before := p.framer.Discarded()
	frames := p.framer.Feed(data)
	p.stats.discarded.Add(p.framer.Discarded() - before)

	accepted := false
	for _, f := range frames {
		if p.handle(wire.Decode(f.Kind, f.Raw)) {
			accepted = true
		}
	}
	if !accepted && !p.coll.Pending() {
		return false
	}

	done, err := p.coll.Poll(ctx)
	if err != nil {
		p.stats.exportFailures.Add(1)
		p.log.Warn().Err(err).Msg("Export failed, will retry")
	}
	return done
}

// handle applies one packet and reports whether it changed collector state.
func (p *Processor) handle(pkt *wire.Packet) bool {
	if pkt.Kind == wire.KindHeader {
		p.stats.headers.Add(1)
	} else {
		p.stats.chunks.Add(1)
	}

	logPacket := func(e *zerolog.Event) *zerolog.Event {
		return e.Stringer("kind", pkt.Kind).Int("packet_id", pkt.PacketID).Int("length", pkt.Length)
	}

	if !pkt.Valid() {
		p.stats.rejected.Add(1)
		switch {
		case pkt.Err != nil && !errors.Is(pkt.Err, wire.ErrDecode):
			logPacket(p.log.Warn()).Err(pkt.Err).Msg("Malformed packet")
		case !pkt.ChecksumValid:
			logPacket(p.log.Warn()).
				Str("received", hex32(pkt.ReceivedChecksum)).
				Str("computed", hex32(pkt.ComputedChecksum)).
				Msg("Checksum mismatch, no ACK sent")
		default:
			logPacket(p.log.Warn()).Err(pkt.Err).Msg("CBOR decode failed, no ACK sent")
		}
		return false
	}

	changed := false
	var err error
	switch pkt.Kind {
	case wire.KindHeader:
		err = p.coll.ProcessHeader(pkt)
		changed = err == nil
	case wire.KindChunk:
		changed, err = p.coll.ProcessChunk(pkt)
		if err == nil && !changed {
			p.stats.duplicates.Add(1)
		}
	}
	if err != nil {
		p.stats.rejected.Add(1)
		logPacket(p.log.Warn()).Err(err).Msg("Packet rejected")
	} else if changed {
		p.stats.accepted.Add(1)
	}

	// The firmware waits for the ACK even when the packet was a duplicate
	// or could not be used.
	if wire.ShouldAck(pkt) {
		p.sendAck(pkt.ReceivedChecksum)
	}
	return changed
}

func (p *Processor) sendAck(checksum uint32) {
	if p.ack == nil {
		return
	}
	frame := wire.AckFrame(checksum)
	if _, err := p.ack.Write(frame[:]); err != nil {
		p.stats.ackFailures.Add(1)
		p.log.Warn().Err(err).Str("checksum", hex32(checksum)).Msg("ACK write failed")
		return
	}
	p.stats.acks.Add(1)
	p.log.Debug().Str("checksum", hex32(checksum)).Msg("ACK sent")
}

func hex32(v uint32) string {
	return fmt.Sprintf("0x%08X", v)
}
