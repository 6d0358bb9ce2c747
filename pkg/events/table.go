// Package events decodes the 32-bit pin event mask reported by the pin-test
// firmware and classifies a pin's drive strength from the decoded events.
package events

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Bits is the width of the event mask.
const Bits = 32

// Event names known to the default firmware build.
const (
	PinInitiallyLow          = "PIN_INITIALLY_LOW"
	PinInitiallyHigh         = "PIN_INITIALLY_HIGH"
	PinDisturbed             = "PIN_DISTURBED"
	HandshakeOKInitiator     = "HANDSHAKE_OK_INITIATOR"
	HandshakeOKResponder     = "HANDSHAKE_OK_RESPONDER"
	HandshakeFailure         = "HANDSHAKE_FAILURE"
	DataHandshakeOK          = "DATA_HANDSHAKE_OK"
	DataHandshakeFailure     = "DATA_HANDSHAKE_FAILURE"
	ConnectedWithInternalPin = "PIN_IS_CONNECTED_WITH_INTERNAL_PIN"
	ConnectedWithExternalPin = "PIN_IS_CONNECTED_WITH_EXTERNAL_PIN"
	NotLowWhenPulledDown     = "PIN_IS_NOT_LOW_WHEN_PULLED_DOWN"
	NotHighWhenPulledUp      = "PIN_IS_NOT_HIGH_WHEN_PULLED_UP"
	NotLowWhenDrivenLow      = "PIN_IS_NOT_LOW_WHEN_DRIVEN_LOW"
	NotHighWhenDrivenHigh    = "PIN_IS_NOT_HIGH_WHEN_DRIVEN_HIGH"
	ExceedsConnectionLimit   = "EXCEEDS_CONNECTION_LIMIT"
	unknownPrefix            = "UNKNOWN_EVENT_"
)

// ErrUnknownEvent is returned by Encode for names the table cannot map.
var ErrUnknownEvent = errors.New("events: unknown event name")

// Table maps each bit position of the event mask to a name. Empty entries
// decode to UNKNOWN_EVENT_<bit>.
type Table [Bits]string

// DefaultTable is the table of the current firmware release.
var DefaultTable = func() Table {
	var t Table
	copy(t[:], []string{
		PinInitiallyLow,
		PinInitiallyHigh,
		PinDisturbed,
		HandshakeOKInitiator,
		HandshakeOKResponder,
		HandshakeFailure,
		DataHandshakeOK,
		DataHandshakeFailure,
		ConnectedWithInternalPin,
		ConnectedWithExternalPin,
		NotLowWhenPulledDown,
		NotHighWhenPulledUp,
		NotLowWhenDrivenLow,
		NotHighWhenDrivenHigh,
		ExceedsConnectionLimit,
	})

	bit := 15
	for _, stage := range StageNames {
		for _, level := range []string{"HIGH", "LOW"} {
			t[bit] = stage + "_" + level
			bit++
		}
	}
	return t
}()

// Name returns the event name for a bit position.
func (t *Table) Name(bit int) string {
	if bit >= 0 && bit < Bits && t[bit] != "" {
		return t[bit]
	}
	return unknownPrefix + strconv.Itoa(bit)
}

// Decode expands a mask into event names in ascending bit order. The mask
// carries no timing, so the order says nothing about when events happened.
func (t *Table) Decode(mask uint32) []string {
	var names []string
	for bit := 0; bit < Bits; bit++ {
		if mask&(1<<uint(bit)) != 0 {
			names = append(names, t.Name(bit))
		}
	}
	return names
}

// Encode is the inverse of Decode. UNKNOWN_EVENT_<n> names map back to bit n.
func (t *Table) Encode(names []string) (uint32, error) {
	var mask uint32
	for _, name := range names {
		bit, ok := t.Bit(name)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
		}
		mask |= 1 << uint(bit)
	}
	return mask, nil
}

// Bit returns the bit position for an event name.
func (t *Table) Bit(name string) (int, bool) {
	for bit, n := range t {
		if n != "" && n == name {
			return bit, true
		}
	}
	if rest, ok := strings.CutPrefix(name, unknownPrefix); ok {
		bit, err := strconv.Atoi(rest)
		if err == nil && bit >= 0 && bit < Bits && t[bit] == "" {
			return bit, true
		}
	}
	return 0, false
}

// Decode decodes mask with DefaultTable.
func Decode(mask uint32) []string {
	return DefaultTable.Decode(mask)
}

// Has reports whether name is in events.
func Has(events []string, name string) bool {
	for _, e := range events {
		if e == name {
			return true
		}
	}
	return false
}
