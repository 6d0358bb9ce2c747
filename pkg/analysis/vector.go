package analysis

import (
	"sort"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/model"
)

// Vector is a coupling contribution. The 1-D table leaves Y at zero.
type Vector struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Direction of a connection relative to the ordered pin pair (A < B).
type Direction string

const (
	AToB Direction = "A_to_B"
	BToA Direction = "B_to_A"
)

// Phase groups: even phases pull or drive low, odd phases high.
const (
	GroupLow  = 1
	GroupHigh = 2
)

type phaseVector struct {
	aToB, bToA Vector
}

// extendedVectors covers all six phases: X is the direction and magnitude of
// the excitation, Y the tested level.
var extendedVectors = map[model.Phase]phaseVector{
	model.PhasePulldown:      {Vector{-1, 1}, Vector{1, 1}},
	model.PhasePullup:        {Vector{-1, -1}, Vector{1, -1}},
	model.PhaseDriveLow:      {Vector{-2, 2}, Vector{2, 2}},
	model.PhaseDriveHigh:     {Vector{-2, -2}, Vector{2, -2}},
	model.PhaseAggregateLow:  {Vector{-3, 3}, Vector{3, 3}},
	model.PhaseAggregateHigh: {Vector{-3, -3}, Vector{3, -3}},
}

var basicVectors = map[model.Phase]phaseVector{
	model.PhasePulldown:  {Vector{X: -1}, Vector{X: 1}},
	model.PhasePullup:    {Vector{X: -1}, Vector{X: 1}},
	model.PhaseDriveLow:  {Vector{X: -2}, Vector{X: 2}},
	model.PhaseDriveHigh: {Vector{X: -2}, Vector{X: 2}},
}

// GroupVector is the sum of one direction's vectors within one phase group.
type GroupVector struct {
	Group     int       `json:"group"`
	Direction Direction `json:"direction"`
	Value     Vector    `json:"value"`
}

// PairVectors summarizes the internal coupling between two pins.
// TotalCount is the number of non-zero group vectors.
type PairVectors struct {
	PinA       int           `json:"pin_a"`
	PinB       int           `json:"pin_b"`
	PinAName   string        `json:"pin_a_name"`
	PinBName   string        `json:"pin_b_name"`
	Groups     []GroupVector `json:"grouped_vectors"`
	AToBPhases []int         `json:"a_to_b_phases"`
	BToAPhases []int         `json:"b_to_a_phases"`
	TotalCount int           `json:"total_count"`
}

type pairAccum struct {
	sums   map[Direction]map[int]Vector
	counts map[Direction]map[int]int
	phases map[Direction]map[int]struct{}
}

func groupOf(p model.Phase) int {
	if p.High() {
		return GroupHigh
	}
	return GroupLow
}

// Vectors projects every unmasked internal connection of dev through the
// phase vector table (2-D when extended, 1-D otherwise) and sums the result
// per pin pair, direction and phase group. Zero sums are dropped, and pairs
// with nothing left are omitted. Pairs are ordered by (PinA, PinB). Pins are
// labelled through name, or by number when name is nil.
func Vectors(dev *model.Device, extended bool, name PinNamer) []PairVectors {
	if name == nil {
		name = func(_ string, pin int) string { return strconv.Itoa(pin) }
	}
	table := basicVectors
	if extended {
		table = extendedVectors
	}

	pairs := make(map[[2]int]*pairAccum)
	for _, p := range dev.Pins {
		for _, c := range p.Connections {
			if !c.Internal() || c.Hidden() {
				continue
			}
			pv, ok := table[c.Phase()]
			if !ok {
				continue
			}

			a, b := p.Number, c.OtherPin
			dir, v := AToB, pv.aToB
			if a > b {
				a, b = b, a
				dir, v = BToA, pv.bToA
			}

			acc, ok := pairs[[2]int{a, b}]
			if !ok {
				acc = &pairAccum{
					sums:   map[Direction]map[int]Vector{AToB: {}, BToA: {}},
					counts: map[Direction]map[int]int{AToB: {}, BToA: {}},
					phases: map[Direction]map[int]struct{}{AToB: {}, BToA: {}},
				}
				pairs[[2]int{a, b}] = acc
			}
			g := groupOf(c.Phase())
			s := acc.sums[dir][g]
			acc.sums[dir][g] = Vector{s.X + v.X, s.Y + v.Y}
			acc.counts[dir][g]++
			acc.phases[dir][int(c.Phase())] = struct{}{}
		}
	}

	keys := make([][2]int, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	var out []PairVectors
	for _, k := range keys {
		acc := pairs[k]
		pv := PairVectors{
			PinA:       k[0],
			PinB:       k[1],
			AToBPhases: sortedKeys(acc.phases[AToB]),
			BToAPhases: sortedKeys(acc.phases[BToA]),
		}
		for _, dir := range []Direction{AToB, BToA} {
			for _, g := range []int{GroupLow, GroupHigh} {
				if acc.counts[dir][g] == 0 {
					continue
				}
				if v := acc.sums[dir][g]; v != (Vector{}) {
					pv.Groups = append(pv.Groups, GroupVector{Group: g, Direction: dir, Value: v})
				}
			}
		}
		if len(pv.Groups) > 0 {
			pv.PinAName = name(dev.Family, pv.PinA)
			pv.PinBName = name(dev.Family, pv.PinB)
			pv.TotalCount = len(pv.Groups)
			out = append(out, pv)
		}
	}
	return out
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
