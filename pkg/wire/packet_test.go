package wire

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumKnownVectors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want uint32
	}{
		{"check string", []byte("123456789"), 0xCBF43926},
		{"empty", nil, 0x00000000},
		{"single zero", []byte{0x00}, 0xD202EF8D},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Checksum(tt.in))
		})
	}
}

// stripMarkers removes the 4-byte start and end markers from an encoded frame.
func stripMarkers(frame []byte) []byte {
	return frame[4 : len(frame)-4]
}

func TestDecodeHeaderRoundTrip(t *testing.T) {
	frame, err := EncodeHeader(HeaderBody{
		DeviceUUID:        "a1b2",
		DeviceFamily:      "NRF",
		TotalChunks:       2,
		NumberSeenDevices: 1,
		AckRequested:      true,
		Version:           "1.4.0",
		ExpectedSessions:  3,
	})
	require.NoError(t, err)

	p := Decode(KindHeader, stripMarkers(frame))
	require.NoError(t, p.Err)
	assert.True(t, p.Valid())
	assert.True(t, p.AckRequested)
	assert.Equal(t, -1, p.PacketID)
	assert.Equal(t, len(p.CBOR), p.Length)
	assert.Equal(t, p.ReceivedChecksum, p.ComputedChecksum)

	require.NotNil(t, p.Header)
	assert.Equal(t, Text("NRF"), p.Header.DeviceFamily)
	assert.Equal(t, Text("a1b2"), p.Header.DeviceUUID)
	assert.Equal(t, 2, p.Header.TotalChunks)
	assert.Equal(t, 3, p.Header.ExpectedSessions)
	assert.Equal(t, Text("1.4.0"), p.Header.Version)
}

func TestDecodeChunk(t *testing.T) {
	id := 7
	frame, err := EncodeChunk(42, ChunkBody{
		ChunkID: &id,
		Session: 1,
		Pins: []PinEntry{
			{Pin: 21, Events: 0b101, Connections: []ConnEntry{{OtherPin: 8, Parameter: 3, Type: ConnectionInternal}}},
			{Pin: 8},
		},
	})
	require.NoError(t, err)

	p := Decode(KindChunk, stripMarkers(frame))
	require.True(t, p.Valid(), "err=%v", p.Err)
	assert.Equal(t, 42, p.PacketID)
	assert.False(t, p.AckRequested)
	require.NotNil(t, p.Chunk)
	assert.Equal(t, 7, p.Chunk.ID(p.PacketID))
	assert.Equal(t, 1, p.Chunk.Session)
	require.Len(t, p.Chunk.Pins, 2)
	assert.Equal(t, uint32(0b101), p.Chunk.Pins[0].Events)
	assert.Equal(t, []ConnEntry{{OtherPin: 8, Parameter: 3}}, p.Chunk.Pins[0].Connections)
}

func TestChunkIDFallsBackToPacketID(t *testing.T) {
	frame, err := EncodeChunk(5, ChunkBody{Pins: []PinEntry{{Pin: 1}}})
	require.NoError(t, err)

	p := Decode(KindChunk, stripMarkers(frame))
	require.True(t, p.Valid())
	assert.Equal(t, 5, p.Chunk.ID(p.PacketID))
}

func TestDecodeIntegerKeyedMapFromFirmware(t *testing.T) {
	// Hand-built body the way the firmware's CBOR encoder emits it: integer
	// keys, family as an integer, ack as 1.
	body, err := cbor.Marshal(map[int]any{
		HeaderKeyDeviceUUID:   []byte{0xDE, 0xAD},
		HeaderKeyDeviceFamily: 2,
		HeaderKeyTotalChunks:  4,
		HeaderKeyAckRequested: 1,
	})
	require.NoError(t, err)

	frame, err := EncodePacket(KindHeader, 0, body)
	require.NoError(t, err)

	p := Decode(KindHeader, stripMarkers(frame))
	require.True(t, p.Valid(), "err=%v", p.Err)
	assert.True(t, p.AckRequested)
	assert.Equal(t, Text("2"), p.Header.DeviceFamily)
	assert.Equal(t, Text("dead"), p.Header.DeviceUUID)
	assert.Equal(t, 4, p.Header.TotalChunks)
}

func TestDecodeErrors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		p := Decode(KindHeader, nil)
		assert.ErrorIs(t, p.Err, ErrEmpty)
		assert.False(t, p.Valid())
	})

	t.Run("no length", func(t *testing.T) {
		p := Decode(KindChunk, []byte{0x01, 0x02})
		assert.ErrorIs(t, p.Err, ErrTruncated)
		assert.Equal(t, 1, p.PacketID)
	})

	t.Run("short body", func(t *testing.T) {
		raw := []byte{0x10, 0x00, 0xA0}
		p := Decode(KindHeader, raw)
		assert.ErrorIs(t, p.Err, ErrTruncated)
		assert.False(t, p.Valid())
	})

	t.Run("bad checksum", func(t *testing.T) {
		frame, err := EncodeHeader(HeaderBody{DeviceFamily: "MSP", AckRequested: true})
		require.NoError(t, err)
		raw := stripMarkers(frame)
		raw[len(raw)-1] ^= 0xFF

		p := Decode(KindHeader, raw)
		require.NoError(t, p.Err)
		assert.False(t, p.ChecksumValid)
		assert.False(t, p.Valid())
		assert.False(t, ShouldAck(p))
	})

	t.Run("undecodable cbor with valid checksum", func(t *testing.T) {
		body := []byte{0xFF, 0xFF}
		raw := binary.LittleEndian.AppendUint16(nil, uint16(len(body)))
		raw = append(raw, body...)
		raw = binary.LittleEndian.AppendUint32(raw, Checksum(body))

		p := Decode(KindHeader, raw)
		assert.True(t, p.ChecksumValid)
		assert.True(t, errors.Is(p.Err, ErrDecode))
		assert.False(t, p.Valid())
		assert.Nil(t, p.Header)
	})

	t.Run("body is not a map", func(t *testing.T) {
		body, err := cbor.Marshal([]int{1, 2, 3})
		require.NoError(t, err)
		frame, err := EncodePacket(KindChunk, 3, body)
		require.NoError(t, err)

		p := Decode(KindChunk, stripMarkers(frame))
		assert.ErrorIs(t, p.Err, ErrDecode)
	})
}

func TestEncodePacketTooLarge(t *testing.T) {
	_, err := EncodePacket(KindHeader, 0, make([]byte, 0x10000))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestAckFrame(t *testing.T) {
	frame := AckFrame(0xCBF43926)
	want := []byte{
		0x1C, 0x1B, 0x1A, 0x19,
		0x26, 0x39, 0xF4, 0xCB,
		0x20, 0x1F, 0x1E, 0x1D,
	}
	assert.Equal(t, want, frame[:])

	sum, err := ParseAck(frame[:])
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCBF43926), sum)

	_, err = ParseAck(frame[:8])
	assert.Error(t, err)

	bad := frame
	bad[0] = 0
	_, err = ParseAck(bad[:])
	assert.Error(t, err)
}

func TestShouldAck(t *testing.T) {
	frame, err := EncodeHeader(HeaderBody{DeviceFamily: "NRF", AckRequested: true})
	require.NoError(t, err)
	assert.True(t, ShouldAck(Decode(KindHeader, stripMarkers(frame))))

	frame, err = EncodeHeader(HeaderBody{DeviceFamily: "NRF"})
	require.NoError(t, err)
	assert.False(t, ShouldAck(Decode(KindHeader, stripMarkers(frame))))
}
