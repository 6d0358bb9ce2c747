package analysis

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/model"
)

// PinNamer labels a pin of a device family, e.g. "21: GPIO0_UART_RX".
type PinNamer func(family string, pin int) string

// Options controls report generation.
type Options struct {
	// Extended enables the aggregate phases and the 2-D vector table.
	Extended bool
	// PinName labels pins in the report. Nil leaves labels empty.
	PinName PinNamer
}

// PhaseMatrixReport is one phase matrix with its phase name.
type PhaseMatrixReport struct {
	Phase int    `json:"phase"`
	Name  string `json:"name"`
	Matrix
}

// ExternalMatrixReport is the link matrix to one peer device.
type ExternalMatrixReport struct {
	Peer string `json:"peer"`
	Matrix
}

// PinReport is the per-pin summary line of a report.
type PinReport struct {
	Pin      int      `json:"pin"`
	Label    string   `json:"label,omitempty"`
	Strength string   `json:"strength"`
	Events   []string `json:"events"`
	// Links lists the visible connections in readable form.
	Links []string `json:"links,omitempty"`
}

// Report is everything derived from one complete device.
type Report struct {
	Family   string                 `json:"device_family"`
	Pins     []PinReport            `json:"pins"`
	Phases   []PhaseMatrixReport    `json:"phase_matrices"`
	External []ExternalMatrixReport `json:"external_matrices,omitempty"`
	Vectors  []PairVectors          `json:"vectors,omitempty"`
	Nets     []*Net                 `json:"nets"`
}

// BuildReport assembles the matrices, vectors and nets of dev. Peers are the
// other known devices; dev itself is skipped if present. Masks must already
// be applied.
func BuildReport(dev *model.Device, peers []*model.Device, opts Options) Report {
	label := func(family string, pin int) string {
		if opts.PinName == nil {
			return ""
		}
		return opts.PinName(family, pin)
	}

	r := Report{Family: dev.Family}

	for _, p := range dev.Pins {
		pr := PinReport{
			Pin:      p.Number,
			Label:    label(dev.Family, p.Number),
			Strength: p.Strength.String(),
			Events:   p.Events,
		}
		for _, c := range p.Connections {
			if c.Hidden() {
				continue
			}
			pr.Links = append(pr.Links, describe(dev.Family, c, label))
		}
		r.Pins = append(r.Pins, pr)
	}

	phases := model.BasicPhases
	if opts.Extended {
		phases = model.ExtendedPhases
	}
	for _, ph := range phases {
		r.Phases = append(r.Phases, PhaseMatrixReport{
			Phase:  int(ph),
			Name:   ph.String(),
			Matrix: PhaseMatrix(dev, ph),
		})
	}

	others := make([]*model.Device, 0, len(peers))
	for _, p := range peers {
		if p != nil && p.Family != dev.Family {
			others = append(others, p)
		}
	}
	sort.Slice(others, func(i, j int) bool { return others[i].Family < others[j].Family })
	for _, peer := range others {
		r.External = append(r.External, ExternalMatrixReport{
			Peer:   peer.Family,
			Matrix: ExternalMatrix(dev, peer),
		})
	}

	r.Vectors = Vectors(dev, opts.Extended, opts.PinName)
	r.Nets = DeviceNets(dev).Nets
	return r
}

func describe(family string, c model.Connection, label func(string, int) string) string {
	other := label(family, c.OtherPin)
	if other == "" {
		other = strconv.Itoa(c.OtherPin)
	}
	if c.Internal() {
		return fmt.Sprintf("-> %s [%s]", other, c.Phase())
	}
	return fmt.Sprintf("-> Device%d:%s [EXT]", c.Parameter, other)
}
