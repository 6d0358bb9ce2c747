package analysis

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/model"
)

// Net is a set of pins of one device that are wired together.
type Net struct {
	ID   int   `json:"id"`
	Pins []int `json:"pins"`
}

// Netlist tracks pin connectivity with a union-find structure.
type Netlist struct {
	parent map[int]int
	rank   map[int]int

	// Nets is populated by Finalize.
	Nets []*Net

	allPins []int
}

// NewNetlist creates a netlist in which every pin is its own net.
func NewNetlist(pins []int) *Netlist {
	nl := &Netlist{
		parent:  make(map[int]int, len(pins)),
		rank:    make(map[int]int, len(pins)),
		allPins: make([]int, 0, len(pins)),
	}
	for _, p := range pins {
		nl.add(p)
	}
	return nl
}

func (nl *Netlist) add(pin int) {
	if _, ok := nl.parent[pin]; ok {
		return
	}
	nl.parent[pin] = pin
	nl.rank[pin] = 0
	nl.allPins = append(nl.allPins, pin)
}

// Connect merges the nets of a and b. Unknown pins are added first.
func (nl *Netlist) Connect(a, b int) {
	nl.add(a)
	nl.add(b)

	rootA := nl.Find(a)
	rootB := nl.Find(b)
	if rootA == rootB {
		return
	}

	// Union by rank
	switch {
	case nl.rank[rootA] < nl.rank[rootB]:
		nl.parent[rootA] = rootB
	case nl.rank[rootA] > nl.rank[rootB]:
		nl.parent[rootB] = rootA
	default:
		nl.parent[rootB] = rootA
		nl.rank[rootA]++
	}
}

// Find returns the representative pin of the net containing pin, compressing
// the path on the way.
func (nl *Netlist) Find(pin int) int {
	root := pin
	for nl.parent[root] != root {
		root = nl.parent[root]
	}

	for cur := pin; cur != root; {
		next := nl.parent[cur]
		nl.parent[cur] = root
		cur = next
	}
	return root
}

// Finalize builds Nets from the union-find state. Single-pin nets are
// skipped. Pins within a net are sorted and nets are ordered by their lowest
// pin, so IDs are stable across runs.
func (nl *Netlist) Finalize() {
	groups := make(map[int][]int)
	for _, pin := range nl.allPins {
		root := nl.Find(pin)
		groups[root] = append(groups[root], pin)
	}

	nl.Nets = make([]*Net, 0, len(groups))
	for _, pins := range groups {
		if len(pins) < 2 {
			continue
		}
		sort.Ints(pins)
		nl.Nets = append(nl.Nets, &Net{Pins: pins})
	}

	sort.Slice(nl.Nets, func(i, j int) bool {
		return nl.Nets[i].Pins[0] < nl.Nets[j].Pins[0]
	})
	for i, n := range nl.Nets {
		n.ID = i
	}
}

// NetCount returns the number of multi-pin nets. Only valid after Finalize.
func (nl *Netlist) NetCount() int {
	return len(nl.Nets)
}

// ExportJSON encodes the finalized nets.
func (nl *Netlist) ExportJSON() ([]byte, error) {
	if nl.Nets == nil {
		return nil, fmt.Errorf("analysis: netlist not finalized")
	}

	output := struct {
		NetCount int    `json:"net_count"`
		Nets     []*Net `json:"nets"`
	}{
		NetCount: nl.NetCount(),
		Nets:     nl.Nets,
	}
	return json.MarshalIndent(output, "", "  ")
}

// DeviceNets groups the pins of dev joined by visible internal connections.
// Connections to pins the device never reported are ignored.
func DeviceNets(dev *model.Device) *Netlist {
	nl := NewNetlist(pinNumbers(dev))
	for _, p := range dev.Pins {
		for _, c := range p.Connections {
			if !c.Internal() || c.Hidden() {
				continue
			}
			if _, ok := dev.Pin(c.OtherPin); !ok {
				continue
			}
			nl.Connect(p.Number, c.OtherPin)
		}
	}
	nl.Finalize()
	return nl
}
