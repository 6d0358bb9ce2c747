package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriterLevels(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want zerolog.Level
	}{
		{"default", Config{Format: "json"}, zerolog.InfoLevel},
		{"explicit", Config{Level: "WARN", Format: "json"}, zerolog.WarnLevel},
		{"debug wins", Config{Level: "error", Debug: true, Format: "json"}, zerolog.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewWriter(tt.cfg, &bytes.Buffer{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, log.GetLevel())
		})
	}
}

func TestNewWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriter(Config{Format: "json"}, &buf)
	require.NoError(t, err)

	log.Info().Str("component", "collector").Msg("Device complete")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "collector", line["component"])
	assert.Equal(t, "Device complete", line["message"])
	assert.Contains(t, line, "time")
}

func TestNewWriterConsole(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriter(Config{}, &buf)
	require.NoError(t, err)
	log.Warn().Msg("Queue full")
	assert.Contains(t, buf.String(), "Queue full")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestInvalidConfig(t *testing.T) {
	_, err := NewWriter(Config{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
	_, err = NewWriter(Config{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
	_, err = New(Config{Output: "syslog"})
	assert.Error(t, err)
}
