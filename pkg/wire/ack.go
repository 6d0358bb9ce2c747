package wire

import (
	"encoding/binary"
	"fmt"
)

// ShouldAck reports whether the firmware expects an ACK for p. Invalid
// packets are never acknowledged so the device retransmits them.
func ShouldAck(p *Packet) bool {
	return p.Valid() && p.AckRequested
}

// AckFrame builds the 12-byte acknowledgement for a received checksum.
func AckFrame(checksum uint32) [AckFrameSize]byte {
	var frame [AckFrameSize]byte
	binary.LittleEndian.PutUint32(frame[0:], AckStart)
	binary.LittleEndian.PutUint32(frame[4:], checksum)
	binary.LittleEndian.PutUint32(frame[8:], AckEnd)
	return frame
}

// ParseAck extracts the acknowledged checksum from an ACK frame.
func ParseAck(frame []byte) (uint32, error) {
	if len(frame) < AckFrameSize {
		return 0, fmt.Errorf("wire: ack frame too short: %d bytes", len(frame))
	}
	if start := binary.LittleEndian.Uint32(frame[0:]); start != AckStart {
		return 0, fmt.Errorf("wire: bad ack start 0x%08X", start)
	}
	if end := binary.LittleEndian.Uint32(frame[8:]); end != AckEnd {
		return 0, fmt.Errorf("wire: bad ack end 0x%08X", end)
	}
	return binary.LittleEndian.Uint32(frame[4:]), nil
}
