// Package tables holds the fixed decoding tables the host applies to firmware
// telemetry: event bit names and per-family pin names. Built-in defaults can
// be overridden from a table file.
package tables

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/events"
)

// ErrUnknownEvent is returned when a name does not map to any event bit.
var ErrUnknownEvent = events.ErrUnknownEvent

// ErrInvalidTable is returned for table files with out-of-range entries.
var ErrInvalidTable = errors.New("tables: invalid table")

// Family maps pin numbers to names for device families whose id contains
// Match.
type Family struct {
	Match string
	Pins  map[int]string
}

// Tables is the active set of decoding tables.
type Tables struct {
	Events   events.Table
	Families []Family
}

// Default returns the built-in tables.
func Default() *Tables {
	t := &Tables{Events: events.DefaultTable}
	for _, f := range builtinFamilies {
		pins := make(map[int]string, len(f.Pins))
		for k, v := range f.Pins {
			pins[k] = v
		}
		t.Families = append(t.Families, Family{Match: f.Match, Pins: pins})
	}
	return t
}

// Load returns the built-in tables with the overrides in path applied. An
// empty path returns the defaults.
func Load(path string) (*Tables, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	f, err := p.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if err := t.Apply(f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Apply merges a parsed file into t. Event declarations replace the bit's
// name; family declarations add or replace pin names of a family with the
// same match string, or append a new family.
func (t *Tables) Apply(f *File) error {
	for _, e := range f.Events() {
		if e.Bit < 0 || e.Bit >= events.Bits {
			return fmt.Errorf("%w: event bit %d out of range", ErrInvalidTable, e.Bit)
		}
		t.Events[e.Bit] = e.Name
	}

	for _, fd := range f.Families() {
		if strings.TrimSpace(fd.Match) == "" {
			return fmt.Errorf("%w: empty family match", ErrInvalidTable)
		}
		fam := t.family(fd.Match)
		if fam == nil {
			t.Families = append(t.Families, Family{Match: fd.Match, Pins: map[int]string{}})
			fam = &t.Families[len(t.Families)-1]
		}
		for _, pd := range fd.Pins {
			fam.Pins[pd.Number] = pd.Name
		}
	}
	return nil
}

func (t *Tables) family(match string) *Family {
	for i := range t.Families {
		if strings.EqualFold(t.Families[i].Match, match) {
			return &t.Families[i]
		}
	}
	return nil
}

// Lookup returns the first family whose match string occurs in the device
// family id, ignoring case.
func (t *Tables) Lookup(family string) (*Family, bool) {
	upper := strings.ToUpper(family)
	for i := range t.Families {
		if strings.Contains(upper, strings.ToUpper(t.Families[i].Match)) {
			return &t.Families[i], true
		}
	}
	return nil, false
}

// PinName labels a pin as "<n>: <name>", or just "<n>" when the family or
// pin has no name.
func (t *Tables) PinName(family string, pin int) string {
	if f, ok := t.Lookup(family); ok {
		if name, ok := f.Pins[pin]; ok {
			return strconv.Itoa(pin) + ": " + name
		}
	}
	return strconv.Itoa(pin)
}

// KnownPins returns the named pins of a family in ascending order.
func (t *Tables) KnownPins(family string) []int {
	f, ok := t.Lookup(family)
	if !ok {
		return nil
	}
	pins := make([]int, 0, len(f.Pins))
	for p := range f.Pins {
		pins = append(pins, p)
	}
	sort.Ints(pins)
	return pins
}

// Decode expands an event mask with the active event table.
func (t *Tables) Decode(mask uint32) []string {
	return t.Events.Decode(mask)
}

// Encode converts event names back to a mask with the active event table.
func (t *Tables) Encode(names []string) (uint32, error) {
	return t.Events.Encode(names)
}
