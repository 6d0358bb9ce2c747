package wire

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

// Text is a CBOR scalar read as a string. The firmware sends identifiers
// either as text, as byte strings or as unsigned integers depending on the
// device family; all three collapse to one comparable form.
type Text string

// UnmarshalCBOR implements cbor.Unmarshaler.
func (t *Text) UnmarshalCBOR(data []byte) error {
	var v any
	if err := cbor.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*t = ""
	case string:
		*t = Text(x)
	case []byte:
		*t = Text(hex.EncodeToString(x))
	case uint64:
		*t = Text(strconv.FormatUint(x, 10))
	case int64:
		*t = Text(strconv.FormatInt(x, 10))
	default:
		return fmt.Errorf("wire: unsupported text value of type %T", v)
	}
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (t Text) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(string(t))
}

// Flag is a CBOR boolean that also accepts 0/1 integers.
type Flag bool

// UnmarshalCBOR implements cbor.Unmarshaler.
func (f *Flag) UnmarshalCBOR(data []byte) error {
	var v any
	if err := cbor.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*f = false
	case bool:
		*f = Flag(x)
	case uint64:
		*f = x != 0
	case int64:
		*f = x != 0
	default:
		return fmt.Errorf("wire: unsupported flag value of type %T", v)
	}
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (f Flag) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(bool(f))
}

// HeaderBody is the CBOR body of a header packet.
type HeaderBody struct {
	DeviceUUID        Text   `cbor:"0,keyasint,omitempty" json:"device_uuid"`
	DeviceFamily      Text   `cbor:"1,keyasint,omitempty" json:"device_family"`
	TotalChunks       int    `cbor:"2,keyasint,omitempty" json:"total_chunks"`
	TotalPins         int    `cbor:"3,keyasint,omitempty" json:"total_pins"`
	ActivePins        int    `cbor:"4,keyasint,omitempty" json:"active_pins"`
	HeaderHash        uint64 `cbor:"5,keyasint,omitempty" json:"header_hash"`
	NumberSeenDevices int    `cbor:"6,keyasint,omitempty" json:"number_seen_devices"`
	SeenDeviceIDs     []Text `cbor:"7,keyasint,omitempty" json:"seen_device_ids"`
	AckRequested      Flag   `cbor:"8,keyasint,omitempty" json:"ack_requested"`
	Version           Text   `cbor:"9,keyasint,omitempty" json:"version"`
	ExpectedSessions  int    `cbor:"10,keyasint,omitempty" json:"expected_sessions"`
}

// ChunkBody is the CBOR body of a chunk packet.
type ChunkBody struct {
	ChunkID      *int       `cbor:"0,keyasint,omitempty" json:"chunk_id"`
	NumEntries   int        `cbor:"1,keyasint,omitempty" json:"num_entries"`
	Pins         []PinEntry `cbor:"2,keyasint,omitempty" json:"pins"`
	CRC          uint64     `cbor:"3,keyasint,omitempty" json:"crc"`
	AckRequested Flag       `cbor:"8,keyasint,omitempty" json:"ack_requested"`
	Session      int        `cbor:"10,keyasint,omitempty" json:"session"`
	DeviceFamily Text       `cbor:"11,keyasint,omitempty" json:"device_family,omitempty"`
}

// PinEntry is one measured pin inside a chunk.
type PinEntry struct {
	Pin         int         `cbor:"4,keyasint" json:"pin"`
	Events      uint32      `cbor:"5,keyasint,omitempty" json:"events"`
	Connections []ConnEntry `cbor:"6,keyasint,omitempty" json:"connections"`
}

// ConnEntry is one observed connection of a pin. Parameter holds the phase
// for internal connections and the peer device id for external ones.
type ConnEntry struct {
	OtherPin  int `cbor:"7,keyasint" json:"other_pin"`
	Parameter int `cbor:"8,keyasint" json:"parameter"`
	Type      int `cbor:"9,keyasint,omitempty" json:"type"`
}

// ID returns the chunk id, falling back to the packet id when the body
// does not carry one.
func (c *ChunkBody) ID(packetID int) int {
	if c.ChunkID != nil {
		return *c.ChunkID
	}
	return packetID
}
