package tables

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinName(t *testing.T) {
	tb := Default()

	tests := []struct {
		family string
		pin    int
		want   string
	}{
		{"NRF", 21, "21: GPIO0_UART_RX"},
		{"nrf52840", 45, "45: PIN_LED0"},
		{"MSP430FR5994", 0, "0: PIN_LED2"},
		{"NRF", 99, "99"},
		{"2", 21, "21"},
	}
	for _, tt := range tests {
		t.Run(tt.family, func(t *testing.T) {
			assert.Equal(t, tt.want, tb.PinName(tt.family, tt.pin))
		})
	}
}

func TestKnownPins(t *testing.T) {
	tb := Default()
	pins := tb.KnownPins("NRF")
	assert.Len(t, pins, 33)
	assert.Equal(t, 3, pins[0])
	assert.Nil(t, tb.KnownPins("unknown"))
}

func TestDefaultIsACopy(t *testing.T) {
	a := Default()
	a.Families[0].Pins[21] = "CHANGED"
	assert.Equal(t, "21: GPIO0_UART_RX", Default().PinName("NRF", 21))
}

func TestParseTableFile(t *testing.T) {
	input := `
# firmware 2.x adds a bit
event 27 PIN_FLOATING

family "STM" {
	pin 1 "PA1"   # comment after a pin
	pin 2 "PA2"
}
`
	p, err := NewParser()
	require.NoError(t, err)

	f, err := p.ParseString(input)
	require.NoError(t, err)

	require.Len(t, f.Events(), 1)
	assert.Equal(t, 27, f.Events()[0].Bit)
	assert.Equal(t, "PIN_FLOATING", f.Events()[0].Name)

	require.Len(t, f.Families(), 1)
	fam := f.Families()[0]
	assert.Equal(t, "STM", fam.Match)
	require.Len(t, fam.Pins, 2)
	assert.Equal(t, "PA2", fam.Pins[1].Name)
}

func TestParseErrors(t *testing.T) {
	p, err := NewParser()
	require.NoError(t, err)

	for _, input := range []string{
		`event PIN_X`,
		`family NRF { }`,
		`family "NRF" { pin 1 }`,
		`pin 1 "x"`,
	} {
		_, err := p.ParseString(input)
		assert.Error(t, err, input)
	}
}

func TestApply(t *testing.T) {
	p, err := NewParser()
	require.NoError(t, err)
	f, err := p.ParseString(`
event 14 CONNECTION_LIMIT
event 30 PIN_FLOATING
family "nrf" { pin 21 "UART_RX" pin 60 "EXTRA" }
family "STM" { pin 1 "PA1" }
`)
	require.NoError(t, err)

	tb := Default()
	require.NoError(t, tb.Apply(f))

	assert.Equal(t, []string{"CONNECTION_LIMIT", "PIN_FLOATING"}, tb.Decode(1<<14|1<<30))
	mask, err := tb.Encode([]string{"PIN_FLOATING"})
	require.NoError(t, err)
	assert.Equal(t, uint32(1<<30), mask)

	assert.Equal(t, "21: UART_RX", tb.PinName("NRF52840", 21))
	assert.Equal(t, "60: EXTRA", tb.PinName("NRF52840", 60))
	assert.Equal(t, "8: GPIO1_UART_TX", tb.PinName("NRF52840", 8))
	assert.Equal(t, "1: PA1", tb.PinName("STM32", 1))
}

func TestApplyRejectsOutOfRangeBit(t *testing.T) {
	p, err := NewParser()
	require.NoError(t, err)
	f, err := p.ParseString(`event 32 TOO_HIGH`)
	require.NoError(t, err)

	assert.ErrorIs(t, Default().Apply(f), ErrInvalidTable)
}

func TestLoad(t *testing.T) {
	tb, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "PIN_INITIALLY_LOW", tb.Events.Name(0))

	path := filepath.Join(t.TempDir(), "tables.txt")
	require.NoError(t, os.WriteFile(path, []byte("event 0 PIN_LOW_AT_START\n"), 0o644))
	tb, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "PIN_LOW_AT_START", tb.Events.Name(0))

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	_, err = tb.Encode([]string{"NOPE"})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}
