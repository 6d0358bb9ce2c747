// Package logging builds the zerolog logger used by the shepherd binary.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level, destination and encoding.
type Config struct {
	Level string `mapstructure:"level" json:"level"`
	// Debug forces debug level, overriding Level.
	Debug bool `mapstructure:"debug" json:"debug"`
	// Output is "stdout" or "stderr".
	Output string `mapstructure:"output" json:"output"`
	// Format is "console" or "json".
	Format string `mapstructure:"format" json:"format"`
}

// New returns a logger writing to cfg.Output.
func New(cfg Config) (zerolog.Logger, error) {
	var out io.Writer = os.Stderr
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
	case "stdout":
		out = os.Stdout
	default:
		return zerolog.Nop(), fmt.Errorf("logging: unknown output %q", cfg.Output)
	}
	return NewWriter(cfg, out)
}

// NewWriter returns a logger writing to w.
func NewWriter(cfg Config, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	} else if cfg.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("logging: %w", err)
		}
	}

	switch strings.ToLower(cfg.Format) {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
