package model

import (
	"strconv"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/events"
)

// Phase is the electrical test condition under which an internal connection
// was observed.
type Phase int

const (
	PhasePulldown Phase = iota
	PhasePullup
	PhaseDriveLow
	PhaseDriveHigh
	PhaseAggregateLow
	PhaseAggregateHigh
)

// BasicPhases are the phases every firmware reports.
var BasicPhases = []Phase{PhasePulldown, PhasePullup, PhaseDriveLow, PhaseDriveHigh}

// ExtendedPhases adds the aggregate phases of the extended protocol.
var ExtendedPhases = []Phase{
	PhasePulldown, PhasePullup,
	PhaseDriveLow, PhaseDriveHigh,
	PhaseAggregateLow, PhaseAggregateHigh,
}

var phaseNames = map[Phase]string{
	PhasePulldown:      "PULLDOWN",
	PhasePullup:        "PULLUP",
	PhaseDriveLow:      "DRIVE_LOW",
	PhaseDriveHigh:     "DRIVE_HIGH",
	PhaseAggregateLow:  "AGGREGATE_LOW",
	PhaseAggregateHigh: "AGGREGATE_HIGH",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "PHASE_" + strconv.Itoa(int(p))
}

// Known reports whether p is one of the six defined phases.
func (p Phase) Known() bool {
	_, ok := phaseNames[p]
	return ok
}

// High reports whether p tests the high direction (pullup, drive-high,
// aggregate-high).
func (p Phase) High() bool { return p >= 0 && p%2 == 1 }

// Low reports whether p tests the low direction.
func (p Phase) Low() bool { return p >= 0 && p%2 == 0 }

// SelfCheckEvent names the event a pin raises when it failed to follow its own
// excitation during p. Aggregate phases reuse the pull checks.
func (p Phase) SelfCheckEvent() (string, bool) {
	switch p {
	case PhasePulldown, PhaseAggregateLow:
		return events.NotLowWhenPulledDown, true
	case PhasePullup, PhaseAggregateHigh:
		return events.NotHighWhenPulledUp, true
	case PhaseDriveLow:
		return events.NotLowWhenDrivenLow, true
	case PhaseDriveHigh:
		return events.NotHighWhenDrivenHigh, true
	}
	return "", false
}

// Corroborator returns the phase that must also be observed on the same
// directional pin pair for a connection at p to be trusted: 2 needs 0,
// 4 needs 2, 3 needs 1, 5 needs 3.
func (p Phase) Corroborator() (Phase, bool) {
	if p >= 2 && p.Known() {
		return p - 2, true
	}
	return 0, false
}
