package wire

import "hash/crc32"

// Marker is a 4-byte frame delimiter as it appears on the wire.
type Marker [4]byte

// Frame delimiters emitted by the pin-test firmware.
var (
	HeaderStart = Marker{0x0C, 0x0B, 0x0A, 0x09}
	HeaderEnd   = Marker{0x10, 0x0F, 0x0E, 0x0D}
	ChunkStart  = Marker{0x04, 0x03, 0x02, 0x01}
	ChunkEnd    = Marker{0x08, 0x07, 0x06, 0x05}
)

// ACK frame delimiters (little-endian on the wire)
const (
	AckStart uint32 = 0x191A1B1C
	AckEnd   uint32 = 0x1D1E1F20

	AckFrameSize = 12
)

// Layout sizes
const (
	LengthSize   = 2
	ChecksumSize = 4
	PacketIDSize = 1
)

// Text framing
const (
	DebugPrefix     = "DEBUG:"
	MaxDebugLineLen = 1000
)

// Header body keys
const (
	HeaderKeyDeviceUUID        = 0
	HeaderKeyDeviceFamily      = 1
	HeaderKeyTotalChunks       = 2
	HeaderKeyTotalPins         = 3
	HeaderKeyActivePins        = 4
	HeaderKeyHeaderHash        = 5
	HeaderKeyNumberSeenDevices = 6
	HeaderKeySeenDeviceIDs     = 7
	HeaderKeyAckRequested      = 8
	HeaderKeyVersion           = 9
	HeaderKeyExpectedSessions  = 10
)

// Chunk, pin and connection body keys
const (
	ChunkKeyChunkID      = 0
	ChunkKeyNumEntries   = 1
	ChunkKeyPins         = 2
	ChunkKeyCRC          = 3
	PinKeyPin            = 4
	PinKeyEvents         = 5
	PinKeyConnections    = 6
	ConnKeyOtherPin      = 7
	ConnKeyParameter     = 8
	ConnKeyType          = 9
	ChunkKeyAckRequested = 8
	ChunkKeySession      = 10
	ChunkKeyDeviceFamily = 11
)

// Connection types
const (
	ConnectionInternal = 0
	ConnectionExternal = 1
)

// Checksum computes the frame CRC-32 over the CBOR byte range.
//
// The firmware uses polynomial 0x04C11DB7 with reflected input and output,
// initial value 0xFFFFFFFF and final XOR 0xFFFFFFFF, which is exactly the
// IEEE table in hash/crc32.
func Checksum(cbor []byte) uint32 {
	return crc32.ChecksumIEEE(cbor)
}
