package analysis

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/events"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func internal(other int, phase model.Phase) model.Connection {
	return model.Connection{OtherPin: other, Parameter: int(phase), Type: model.Internal}
}

func external(other, device int) model.Connection {
	return model.Connection{OtherPin: other, Parameter: device, Type: model.External}
}

func device(family string, pins ...model.Pin) *model.Device {
	d := model.NewDevice(family, 1, 1)
	for _, p := range pins {
		d.MergePin(p)
	}
	return d
}

func conns(t *testing.T, d *model.Device, pin int) []model.Connection {
	t.Helper()
	p, ok := d.Pin(pin)
	require.True(t, ok)
	return p.Connections
}

func TestBiasMasks(t *testing.T) {
	tests := []struct {
		name     string
		strength events.Strength
		phase    model.Phase
		want     bool
	}{
		{"high bias hides pullup", events.Known(1), model.PhasePullup, true},
		{"high bias hides drive high", events.Known(6), model.PhaseDriveHigh, true},
		{"high bias hides aggregate high", events.Known(2), model.PhaseAggregateHigh, true},
		{"high bias keeps pulldown", events.Known(2), model.PhasePulldown, false},
		{"low bias hides pulldown", events.Known(-1), model.PhasePulldown, true},
		{"low bias hides drive low", events.Known(-4), model.PhaseDriveLow, true},
		{"low bias keeps pullup", events.Known(-1), model.PhasePullup, false},
		{"neutral keeps all", events.Known(0), model.PhasePullup, false},
		{"undefined keeps all", events.Strength{}, model.PhasePulldown, false},
		{"unknown phase", events.Known(3), model.Phase(7), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BiasMasks(tt.strength, tt.phase))
		})
	}
}

func TestApplyStrengthMasks(t *testing.T) {
	// pin 1 rests high (+2), pin 2 is neutral.
	d := device("NRF",
		model.Pin{Number: 1, Strength: events.Known(2), Connections: []model.Connection{
			internal(2, model.PhaseDriveHigh),
			internal(2, model.PhasePulldown),
			external(2, 7),
		}},
		model.Pin{Number: 2, Strength: events.Known(0), Connections: []model.Connection{
			internal(1, model.PhasePullup),
			internal(1, model.PhaseDriveLow),
			internal(9, model.PhasePullup), // pin 9 never reported
		}},
	)

	assert.Equal(t, 2, ApplyStrengthMasks(d))

	c1 := conns(t, d, 1)
	assert.True(t, c1[0].Masked, "source bias masks drive high")
	assert.False(t, c1[1].Masked)
	assert.False(t, c1[2].Masked, "external connections are never masked")

	c2 := conns(t, d, 2)
	assert.True(t, c2[0].Masked, "target bias masks pullup")
	assert.False(t, c2[1].Masked)
	assert.False(t, c2[2].Masked)
}

func TestApplyPhaseMasks(t *testing.T) {
	d := device("NRF",
		model.Pin{Number: 1, Connections: []model.Connection{
			internal(2, model.PhaseDriveLow),
			internal(3, model.PhaseDriveLow),
			internal(3, model.PhasePulldown),
			internal(3, model.PhaseAggregateLow),
		}},
		model.Pin{Number: 2, Connections: []model.Connection{
			internal(1, model.PhasePulldown),
			internal(1, model.PhaseDriveHigh),
		}},
	)

	assert.Equal(t, 2, ApplyPhaseMasks(d))

	c1 := conns(t, d, 1)
	assert.True(t, c1[0].PhaseMasked, "1->2 drive low has no 1->2 pulldown")
	assert.False(t, c1[1].PhaseMasked, "1->3 drive low corroborated by pulldown")
	assert.False(t, c1[2].PhaseMasked)
	assert.False(t, c1[3].PhaseMasked, "aggregate low corroborated by drive low")

	c2 := conns(t, d, 2)
	assert.False(t, c2[0].PhaseMasked)
	assert.True(t, c2[1].PhaseMasked, "2->1 drive high needs 2->1 pullup")
}

func TestApplyPhaseMasksIsDirectional(t *testing.T) {
	d := device("NRF",
		model.Pin{Number: 1, Connections: []model.Connection{internal(2, model.PhasePulldown)}},
		model.Pin{Number: 2, Connections: []model.Connection{internal(1, model.PhaseDriveLow)}},
	)
	ApplyPhaseMasks(d)
	assert.True(t, conns(t, d, 2)[0].PhaseMasked)
}

func TestApplyMasks(t *testing.T) {
	build := func() *model.Device {
		return device("NRF",
			model.Pin{Number: 1, Connections: []model.Connection{internal(2, model.PhaseDriveLow)}},
			model.Pin{Number: 2, Strength: events.Known(-2)},
		)
	}

	res := ApplyMasks(build(), false)
	assert.Equal(t, MaskResult{StrengthMasked: 1}, res)

	res = ApplyMasks(build(), true)
	assert.Equal(t, MaskResult{StrengthMasked: 1, PhaseMasked: 1}, res)
}

func TestExternalMatrix(t *testing.T) {
	a := device("1",
		model.Pin{Number: 4, Connections: []model.Connection{external(9, 2), external(8, 3), internal(5, 0)}},
		model.Pin{Number: 5},
	)
	b := device("2", model.Pin{Number: 8}, model.Pin{Number: 9})

	m := ExternalMatrix(a, b)
	assert.Equal(t, []int{4, 5}, m.Rows)
	assert.Equal(t, []int{8, 9}, m.Cols)
	assert.Equal(t, [][]int{{0, 1}, {0, 0}}, m.Cells)
	assert.Equal(t, 1, m.At(4, 9))
	assert.Equal(t, 0, m.At(4, 100))

	back := ExternalMatrix(b, a)
	assert.Equal(t, [][]int{{0, 0}, {0, 0}}, back.Cells)
}

func TestExternalMatrixMatchesUUID(t *testing.T) {
	a := device("NRF", model.Pin{Number: 4, Connections: []model.Connection{external(9, 17)}})
	b := device("MSP", model.Pin{Number: 9})

	assert.Equal(t, [][]int{{0}}, ExternalMatrix(a, b).Cells, "text family never matches a numeric id")

	b.UUID = "17"
	assert.Equal(t, [][]int{{1}}, ExternalMatrix(a, b).Cells)
	assert.False(t, MatchesDevice(internal(9, 0), b))
	assert.False(t, MatchesDevice(external(9, 17), nil))
}

func TestPhaseMatrix(t *testing.T) {
	d := device("NRF",
		model.Pin{
			Number: 1,
			Events: []string{events.NotLowWhenPulledDown},
			Connections: []model.Connection{
				internal(2, model.PhasePulldown),
				internal(3, model.PhasePulldown),
				internal(2, model.PhasePullup),
			},
		},
		model.Pin{Number: 2},
		model.Pin{Number: 3},
	)
	pin1 := &d.Pins[0]
	pin1.Connections[1].PhaseMasked = true

	m := PhaseMatrix(d, model.PhasePulldown)
	assert.Equal(t, [][]int{
		{0, 1, 3},
		{0, 1, 0},
		{0, 0, 1},
	}, m.Cells)

	// connections are not symmetric
	assert.Equal(t, 1, m.At(1, 2))
	assert.Equal(t, 0, m.At(2, 1))

	up := PhaseMatrix(d, model.PhasePullup)
	assert.Equal(t, 1, up.At(1, 1), "pin 1 only failed the pulldown check")
	assert.Equal(t, 1, up.At(1, 2))
	assert.Equal(t, 0, up.At(1, 3))
}

func TestPhaseMatrixCellPrecedence(t *testing.T) {
	strength := internal(2, model.PhaseDriveHigh)
	strength.Masked = true
	strength.PhaseMasked = true
	phase := internal(2, model.PhaseDriveHigh)
	phase.PhaseMasked = true

	d := device("NRF",
		model.Pin{Number: 1, Connections: []model.Connection{strength, phase}},
		model.Pin{Number: 2},
	)
	assert.Equal(t, CellStrengthMasked, PhaseMatrix(d, model.PhaseDriveHigh).At(1, 2))

	d.Pins[0].Connections = append(d.Pins[0].Connections, internal(2, model.PhaseDriveHigh))
	assert.Equal(t, CellConnected, PhaseMatrix(d, model.PhaseDriveHigh).At(1, 2))
}

func TestVectorsExtended(t *testing.T) {
	d := device("NRF",
		model.Pin{Number: 7, Connections: []model.Connection{
			internal(3, model.PhasePullup),
		}},
		model.Pin{Number: 3, Connections: []model.Connection{
			internal(7, model.PhasePulldown),
			internal(7, model.PhaseDriveLow),
			internal(7, model.PhaseAggregateHigh),
		}},
	)

	got := Vectors(d, true, nil)
	require.Len(t, got, 1)
	pv := got[0]
	assert.Equal(t, 3, pv.PinA)
	assert.Equal(t, 7, pv.PinB)
	assert.Equal(t, []int{0, 2, 5}, pv.AToBPhases)
	assert.Equal(t, []int{1}, pv.BToAPhases)
	assert.Equal(t, []GroupVector{
		{Group: GroupLow, Direction: AToB, Value: Vector{-3, 3}},
		{Group: GroupHigh, Direction: AToB, Value: Vector{-3, -3}},
		{Group: GroupHigh, Direction: BToA, Value: Vector{1, -1}},
	}, pv.Groups)
	assert.Equal(t, 3, pv.TotalCount)
}

func TestVectorsPinNames(t *testing.T) {
	d := device("NRF",
		model.Pin{Number: 21, Connections: []model.Connection{internal(8, model.PhasePulldown)}},
	)

	got := Vectors(d, true, func(family string, pin int) string {
		return family + "/" + strconv.Itoa(pin)
	})
	require.Len(t, got, 1)
	assert.Equal(t, "NRF/8", got[0].PinAName)
	assert.Equal(t, "NRF/21", got[0].PinBName)
	assert.Equal(t, 1, got[0].TotalCount)

	plain := Vectors(d, true, nil)
	assert.Equal(t, "8", plain[0].PinAName)
	assert.Equal(t, "21", plain[0].PinBName)
}

func TestVectorsBasic(t *testing.T) {
	d := device("MSP",
		model.Pin{Number: 1, Connections: []model.Connection{
			internal(2, model.PhasePulldown),
			internal(2, model.PhaseDriveHigh),
			internal(2, model.PhaseAggregateLow), // not in the 1-D table
		}},
	)

	got := Vectors(d, false, nil)
	require.Len(t, got, 1)
	assert.Equal(t, []GroupVector{
		{Group: GroupLow, Direction: AToB, Value: Vector{X: -1}},
		{Group: GroupHigh, Direction: AToB, Value: Vector{X: -2}},
	}, got[0].Groups)
	assert.Equal(t, []int{0, 3}, got[0].AToBPhases)
}

func TestVectorsSkipMaskedAndOrderPairs(t *testing.T) {
	masked := internal(2, model.PhasePulldown)
	masked.Masked = true

	d := device("NRF",
		model.Pin{Number: 9, Connections: []model.Connection{internal(4, model.PhasePullup)}},
		model.Pin{Number: 1, Connections: []model.Connection{masked, internal(5, model.PhasePulldown)}},
	)

	got := Vectors(d, true, nil)
	require.Len(t, got, 2)
	assert.Equal(t, [2]int{1, 5}, [2]int{got[0].PinA, got[0].PinB})
	assert.Equal(t, [2]int{4, 9}, [2]int{got[1].PinA, got[1].PinB})
}

func TestDeviceNets(t *testing.T) {
	hidden := internal(7, model.PhasePulldown)
	hidden.PhaseMasked = true

	d := device("NRF",
		model.Pin{Number: 3, Connections: []model.Connection{internal(2, 0), hidden}},
		model.Pin{Number: 2, Connections: []model.Connection{internal(1, 1)}},
		model.Pin{Number: 1},
		model.Pin{Number: 6, Connections: []model.Connection{internal(5, 0), external(9, 2), internal(40, 0)}},
		model.Pin{Number: 5},
		model.Pin{Number: 7},
	)

	nl := DeviceNets(d)
	require.Equal(t, 2, nl.NetCount())
	assert.Equal(t, &Net{ID: 0, Pins: []int{1, 2, 3}}, nl.Nets[0])
	assert.Equal(t, &Net{ID: 1, Pins: []int{5, 6}}, nl.Nets[1])
	assert.Equal(t, nl.Find(1), nl.Find(3))
	assert.NotEqual(t, nl.Find(1), nl.Find(7))
}

func TestNetlistExportJSON(t *testing.T) {
	nl := NewNetlist([]int{1, 2})
	_, err := nl.ExportJSON()
	assert.Error(t, err)

	nl.Connect(1, 2)
	nl.Finalize()
	out, err := nl.ExportJSON()
	require.NoError(t, err)

	var parsed struct {
		NetCount int `json:"net_count"`
	}
	require.NoError(t, json.Unmarshal(out, &parsed))
	assert.Equal(t, 1, parsed.NetCount)
}

func TestBuildReport(t *testing.T) {
	a := device("1",
		model.Pin{Number: 1, Strength: events.Known(0), Connections: []model.Connection{
			internal(2, model.PhasePulldown),
			external(4, 2),
		}},
		model.Pin{Number: 2},
	)
	b := device("2", model.Pin{Number: 4})

	r := BuildReport(a, []*model.Device{b, a}, Options{
		Extended: true,
		PinName:  func(_ string, pin int) string { return "P" + string(rune('0'+pin)) },
	})

	assert.Equal(t, "1", r.Family)
	require.Len(t, r.Phases, 6)
	assert.Equal(t, "AGGREGATE_HIGH", r.Phases[5].Name)
	require.Len(t, r.External, 1)
	assert.Equal(t, "2", r.External[0].Peer)
	assert.Equal(t, 1, r.External[0].At(1, 4))

	require.Len(t, r.Pins, 2)
	assert.Equal(t, "P1", r.Pins[0].Label)
	assert.Equal(t, "0", r.Pins[0].Strength)
	assert.Equal(t, []string{"-> P2 [PULLDOWN]", "-> Device2:P4 [EXT]"}, r.Pins[0].Links)
	assert.Equal(t, "undefined", r.Pins[1].Strength)

	require.Len(t, r.Nets, 1)
	assert.Equal(t, []int{1, 2}, r.Nets[0].Pins)
	require.Len(t, r.Vectors, 1)
}
