package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Kind tells header packets from chunk packets.
type Kind uint8

const (
	KindHeader Kind = iota
	KindChunk
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindChunk:
		return "chunk"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	ErrEmpty     = errors.New("wire: empty packet")
	ErrTruncated = errors.New("wire: truncated packet")
	ErrDecode    = errors.New("wire: cbor decode failed")
	ErrTooLarge  = errors.New("wire: cbor body exceeds 65535 bytes")
)

// Packet is one decoded protocol packet. It is produced for every frame the
// Framer emits, including broken ones: decode problems end up in Err and
// Valid reports false.
type Packet struct {
	Kind             Kind
	PacketID         int // -1 for headers
	Length           int
	CBOR             []byte // raw body, kept for lossless re-export
	ReceivedChecksum uint32
	ComputedChecksum uint32
	ChecksumValid    bool
	AckRequested     bool

	Header *HeaderBody
	Chunk  *ChunkBody

	Err error
}

// Valid reports whether the packet may mutate collector state. A CBOR decode
// failure counts as invalid even when the checksum matched.
func (p *Packet) Valid() bool {
	return p != nil && p.ChecksumValid && p.Err == nil
}

// Decode parses a raw frame payload (markers already stripped).
//
// Header: [2B length][length bytes CBOR][4B checksum]
// Chunk:  [1B packet id][2B length][length bytes CBOR][4B checksum]
func Decode(kind Kind, raw []byte) *Packet {
	p := &Packet{Kind: kind, PacketID: -1}

	if len(raw) == 0 {
		p.Err = ErrEmpty
		return p
	}

	off := 0
	if kind == KindChunk {
		p.PacketID = int(raw[0])
		off = PacketIDSize
	}

	if len(raw) < off+LengthSize {
		p.Err = fmt.Errorf("%w: %d bytes, no length field", ErrTruncated, len(raw))
		return p
	}
	p.Length = int(binary.LittleEndian.Uint16(raw[off:]))
	off += LengthSize

	end := off + p.Length
	if len(raw) < end+ChecksumSize {
		p.Err = fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, end+ChecksumSize, len(raw))
		return p
	}

	p.CBOR = append([]byte(nil), raw[off:end]...)
	p.ReceivedChecksum = binary.LittleEndian.Uint32(raw[end:])
	p.ComputedChecksum = Checksum(p.CBOR)
	p.ChecksumValid = p.ReceivedChecksum == p.ComputedChecksum

	switch kind {
	case KindHeader:
		var body HeaderBody
		if err := cbor.Unmarshal(p.CBOR, &body); err != nil {
			p.Err = fmt.Errorf("%w: %v", ErrDecode, err)
			return p
		}
		p.Header = &body
		p.AckRequested = bool(body.AckRequested)
	case KindChunk:
		var body ChunkBody
		if err := cbor.Unmarshal(p.CBOR, &body); err != nil {
			p.Err = fmt.Errorf("%w: %v", ErrDecode, err)
			return p
		}
		p.Chunk = &body
		p.AckRequested = bool(body.AckRequested)
	}

	return p
}

// EncodePacket builds a complete marker-delimited frame around an already
// encoded CBOR body. packetID is ignored for headers.
func EncodePacket(kind Kind, packetID uint8, body []byte) ([]byte, error) {
	if len(body) > 0xFFFF {
		return nil, ErrTooLarge
	}

	start, end := HeaderStart, HeaderEnd
	if kind == KindChunk {
		start, end = ChunkStart, ChunkEnd
	}

	frame := make([]byte, 0, 4+PacketIDSize+LengthSize+len(body)+ChecksumSize+4)
	frame = append(frame, start[:]...)
	if kind == KindChunk {
		frame = append(frame, packetID)
	}
	frame = binary.LittleEndian.AppendUint16(frame, uint16(len(body)))
	frame = append(frame, body...)
	frame = binary.LittleEndian.AppendUint32(frame, Checksum(body))
	frame = append(frame, end[:]...)
	return frame, nil
}

// EncodeHeader marshals a header body and frames it.
func EncodeHeader(body HeaderBody) ([]byte, error) {
	data, err := cbor.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal header: %w", err)
	}
	return EncodePacket(KindHeader, 0, data)
}

// EncodeChunk marshals a chunk body and frames it with the given packet id.
func EncodeChunk(packetID uint8, body ChunkBody) ([]byte, error) {
	data, err := cbor.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal chunk: %w", err)
	}
	return EncodePacket(KindChunk, packetID, data)
}
