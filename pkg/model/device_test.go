package model

import (
	"encoding/json"
	"testing"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergePinKeepsFirstSightingOrder(t *testing.T) {
	d := NewDevice("NRF", 2, 1)

	d.MergePin(Pin{Number: 21, Mask: 1, Connections: []Connection{{OtherPin: 8}}})
	d.MergePin(Pin{Number: 8})
	d.MergePin(Pin{Number: 21, Mask: 2, Strength: events.Known(3), Connections: []Connection{{OtherPin: 4, Parameter: 1}}})

	require.Len(t, d.Pins, 2)
	assert.Equal(t, 21, d.Pins[0].Number)
	assert.Equal(t, 8, d.Pins[1].Number)

	p, ok := d.Pin(21)
	require.True(t, ok)
	assert.Equal(t, uint32(2), p.Mask)
	assert.Equal(t, events.Known(3), p.Strength)
	assert.Equal(t, []Connection{{OtherPin: 8}, {OtherPin: 4, Parameter: 1}}, p.Connections)

	assert.Equal(t, map[int]int{21: 0, 8: 1}, d.PinIndex())
}

func TestRecordChunk(t *testing.T) {
	d := NewDevice("MSP", 2, 2)

	assert.True(t, d.RecordChunk(0, 0))
	assert.False(t, d.RecordChunk(0, 0))
	assert.True(t, d.RecordChunk(1, 0), "same chunk id in another session is new")
	assert.True(t, d.HasChunk(1, 0))
	assert.False(t, d.HasChunk(2, 0))
}

func TestAllReceived(t *testing.T) {
	tests := []struct {
		name     string
		sessions int
		record   [][2]int
		want     bool
	}{
		{"nothing", 1, nil, false},
		{"one session complete", 1, [][2]int{{0, 0}, {0, 1}}, true},
		{"second session missing", 2, [][2]int{{0, 0}, {0, 1}, {1, 0}}, false},
		{"both sessions complete", 2, [][2]int{{0, 0}, {0, 1}, {1, 1}, {1, 0}}, true},
		{"too many distinct ids", 1, [][2]int{{0, 0}, {0, 1}, {0, 2}}, false},
		{"extra session ignored", 1, [][2]int{{0, 0}, {0, 1}, {5, 0}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDevice("NRF", 2, tt.sessions)
			for _, r := range tt.record {
				d.RecordChunk(r[0], r[1])
			}
			assert.Equal(t, tt.want, d.AllReceived())
		})
	}
}

func TestNewDeviceDefaultsSessions(t *testing.T) {
	assert.Equal(t, 1, NewDevice("X", 1, 0).ExpectedSessions)
}

func TestCloneIsIndependent(t *testing.T) {
	d := NewDevice("NRF", 1, 1)
	d.MergePin(Pin{Number: 1, Events: []string{"A"}, Connections: []Connection{{OtherPin: 2}}})
	d.RecordChunk(0, 0)

	c := d.Clone()
	c.Pins[0].Events[0] = "B"
	c.Pins[0].Connections[0].Masked = true
	c.MergePin(Pin{Number: 9})
	c.RecordChunk(0, 1)

	assert.Equal(t, "A", d.Pins[0].Events[0])
	assert.False(t, d.Pins[0].Connections[0].Masked)
	assert.Len(t, d.Pins, 1)
	_, ok := d.Pin(9)
	assert.False(t, ok)
	assert.False(t, d.HasChunk(0, 1))
	assert.Equal(t, map[int][]int{0: {0}}, d.Received())
}

func TestPinJSON(t *testing.T) {
	p := Pin{Number: 4, Mask: 0x100, Events: []string{events.ConnectedWithInternalPin}}
	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"pin": 4,
		"bitmask": 256,
		"events": ["PIN_IS_CONNECTED_WITH_INTERNAL_PIN"],
		"strength": null,
		"connections": null
	}`, string(out))
}

func TestPhase(t *testing.T) {
	tests := []struct {
		phase Phase
		name  string
		high  bool
		event string
	}{
		{PhasePulldown, "PULLDOWN", false, events.NotLowWhenPulledDown},
		{PhasePullup, "PULLUP", true, events.NotHighWhenPulledUp},
		{PhaseDriveLow, "DRIVE_LOW", false, events.NotLowWhenDrivenLow},
		{PhaseDriveHigh, "DRIVE_HIGH", true, events.NotHighWhenDrivenHigh},
		{PhaseAggregateLow, "AGGREGATE_LOW", false, events.NotLowWhenPulledDown},
		{PhaseAggregateHigh, "AGGREGATE_HIGH", true, events.NotHighWhenPulledUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.phase.String())
			assert.Equal(t, tt.high, tt.phase.High())
			assert.Equal(t, !tt.high, tt.phase.Low())
			ev, ok := tt.phase.SelfCheckEvent()
			assert.True(t, ok)
			assert.Equal(t, tt.event, ev)
		})
	}

	assert.Equal(t, "PHASE_9", Phase(9).String())
	_, ok := Phase(9).SelfCheckEvent()
	assert.False(t, ok)
}

func TestPhaseCorroborator(t *testing.T) {
	for p, want := range map[Phase]Phase{2: 0, 3: 1, 4: 2, 5: 3} {
		got, ok := p.Corroborator()
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	for _, p := range []Phase{0, 1, 6, -1} {
		_, ok := p.Corroborator()
		assert.False(t, ok, "phase %d", p)
	}
}
