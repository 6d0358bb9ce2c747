package events

import (
	"encoding/json"
	"strconv"
)

// StageNames lists the six strength measurements in tuple order: stage 1 A/B,
// stage 2 A/B, stage 3 A/B. Each has a _HIGH and a _LOW event.
var StageNames = [6]string{
	"STEP_1_A", "STEP_1_B",
	"STEP_2_A", "STEP_2_B",
	"STEP_3_A", "STEP_3_B",
}

// Level is the value of one measurement.
type Level int8

const (
	Low Level = iota
	High
	Undefined
)

func (l Level) String() string {
	switch l {
	case Low:
		return "0"
	case High:
		return "1"
	default:
		return "U"
	}
}

const (
	u = Undefined
	h = High
	l = Low
)

// strengthPatterns maps each canonical measurement tuple to its strength.
// Matching is exact: an Undefined entry only matches an Undefined measurement.
var strengthPatterns = []struct {
	levels   [6]Level
	strength int
}{
	{[6]Level{h, h, h, h, h, h}, 6},
	{[6]Level{h, h, h, h, u, h}, 5},
	{[6]Level{h, h, h, h, l, h}, 4},
	{[6]Level{h, h, u, h, l, h}, 3},
	{[6]Level{h, h, l, h, l, h}, 2},
	{[6]Level{u, h, l, h, l, h}, 1},
	{[6]Level{l, h, l, h, l, h}, 0},
	{[6]Level{l, u, l, h, l, h}, -1},
	{[6]Level{l, l, l, h, l, h}, -2},
	{[6]Level{l, l, u, h, l, h}, -3},
	{[6]Level{l, l, l, l, l, h}, -4},
	{[6]Level{l, l, l, l, u, h}, -5},
	{[6]Level{l, l, l, l, l, l}, -6},
}

// Strength is a classified drive strength in [-6, 6]. The zero value is
// unknown.
type Strength struct {
	Level int
	Known bool
}

// Known returns a classified strength.
func Known(level int) Strength {
	return Strength{Level: level, Known: true}
}

func (s Strength) String() string {
	if !s.Known {
		return "undefined"
	}
	if s.Level > 0 {
		return "+" + strconv.Itoa(s.Level)
	}
	return strconv.Itoa(s.Level)
}

// AtLeast reports whether the strength is known and >= n.
func (s Strength) AtLeast(n int) bool { return s.Known && s.Level >= n }

// AtMost reports whether the strength is known and <= n.
func (s Strength) AtMost(n int) bool { return s.Known && s.Level <= n }

// MarshalJSON encodes an unknown strength as null.
func (s Strength) MarshalJSON() ([]byte, error) {
	if !s.Known {
		return []byte("null"), nil
	}
	return json.Marshal(s.Level)
}

// UnmarshalJSON accepts an integer or null.
func (s *Strength) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Strength{}
		return nil
	}
	var level int
	if err := json.Unmarshal(data, &level); err != nil {
		return err
	}
	*s = Known(level)
	return nil
}

// Measurements returns the six measurement levels found in names. A _HIGH
// event wins over a _LOW event for the same measurement.
func Measurements(names []string) [6]Level {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}

	var levels [6]Level
	for i, stage := range StageNames {
		switch {
		case contains(set, stage+"_HIGH"):
			levels[i] = High
		case contains(set, stage+"_LOW"):
			levels[i] = Low
		default:
			levels[i] = Undefined
		}
	}
	return levels
}

func contains(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

// Classify derives the drive strength of a pin from its decoded events.
func Classify(names []string) Strength {
	levels := Measurements(names)
	for _, p := range strengthPatterns {
		if p.levels == levels {
			return Known(p.strength)
		}
	}
	return Strength{}
}
