// Package analysis derives masks, matrices, vectors and nets from a complete
// device snapshot.
package analysis

import (
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/events"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/model"
)

// BiasMasks reports whether a pin with strength s would show a connection at
// phase p purely because of its own resting bias. A pin at strength >= 1
// explains high phases; a pin at strength <= -1 explains low phases.
func BiasMasks(s events.Strength, p model.Phase) bool {
	if !p.Known() {
		return false
	}
	switch {
	case p.High() && s.AtLeast(1):
		return true
	case p.Low() && s.AtMost(-1):
		return true
	}
	return false
}

// ApplyStrengthMasks sets Masked on every internal connection whose source or
// target pin is biased toward the tested direction. External connections are
// never masked. It returns the number of connections masked.
func ApplyStrengthMasks(dev *model.Device) int {
	masked := 0
	for i := range dev.Pins {
		src := &dev.Pins[i]
		for j := range src.Connections {
			c := &src.Connections[j]
			if !c.Internal() {
				continue
			}

			hit := BiasMasks(src.Strength, c.Phase())
			if !hit {
				if dst, ok := dev.Pin(c.OtherPin); ok {
					hit = BiasMasks(dst.Strength, c.Phase())
				}
			}
			c.Masked = hit
			if hit {
				masked++
			}
		}
	}
	return masked
}

type directedPhase struct {
	src, dst int
	phase    model.Phase
}

// ApplyPhaseMasks sets PhaseMasked on internal connections at phases 2..5
// whose corroborating phase (two below, same parity) was never reported for
// the same source and target pins. It returns the number of connections
// phase-masked.
func ApplyPhaseMasks(dev *model.Device) int {
	observed := make(map[directedPhase]struct{})
	for _, p := range dev.Pins {
		for _, c := range p.Connections {
			if c.Internal() {
				observed[directedPhase{p.Number, c.OtherPin, c.Phase()}] = struct{}{}
			}
		}
	}

	masked := 0
	for i := range dev.Pins {
		src := &dev.Pins[i]
		for j := range src.Connections {
			c := &src.Connections[j]
			if !c.Internal() {
				continue
			}
			need, ok := c.Phase().Corroborator()
			if !ok {
				c.PhaseMasked = false
				continue
			}
			_, seen := observed[directedPhase{src.Number, c.OtherPin, need}]
			c.PhaseMasked = !seen
			if c.PhaseMasked {
				masked++
			}
		}
	}
	return masked
}

// MaskResult counts what ApplyMasks suppressed.
type MaskResult struct {
	StrengthMasked int `json:"strength_masked"`
	PhaseMasked    int `json:"phase_masked"`
}

// ApplyMasks runs strength masking and, for the extended protocol, phase
// masking over dev.
func ApplyMasks(dev *model.Device, extended bool) MaskResult {
	res := MaskResult{StrengthMasked: ApplyStrengthMasks(dev)}
	if extended {
		res.PhaseMasked = ApplyPhaseMasks(dev)
	}
	return res
}
