package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceShepherd/internal/config"
	"github.com/OpenTraceLab/OpenTraceShepherd/internal/logging"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/tables"
)

var (
	// Global flags
	configFile string

	// Resolved in PersistentPreRunE
	cfg    *config.Config
	logger = zerolog.Nop()
	tbl    = tables.Default()
)

var rootCmd = &cobra.Command{
	Use:   "shepherd",
	Short: "Host-side harness for the pin-test firmware",
	Long: `Shepherd talks to the pin-test firmware over a serial link. It frames and
verifies the binary protocol, acknowledges packets, reassembles chunked
transfers into per-device snapshots, classifies pin strength and derives the
connection matrices and vectors that show whether a board is wired correctly.

Examples:
  shepherd interfaces                               # List serial ports and probes
  shepherd monitor --port /dev/ttyACM0              # Collect from a live device
  shepherd monitor --port /dev/ttyACM0 --capture s.bin
  shepherd replay s.bin                             # Re-run a captured session
  shepherd decode 0x00001F5B                        # Decode an event bitmask`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default ./shepherd.yaml or ~/.config/shepherd/shepherd.yaml)")
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.String("log-format", "console", "log format (console, json)")
	pf.String("log-output", "stderr", "log destination (stderr, stdout)")
	pf.String("tables", "", "decoding-table file layered over the built-in tables")
	pf.Bool("extended-phases", false, "enable aggregate phases and phase-presence masking")
	pf.Int("expected-devices", 0, "devices to collect before the session is complete (0: as announced by the firmware)")
	pf.String("output-dir", "raw_data", "directory for exported snapshots")
	pf.Bool("keep-masked", false, "keep masked connections in the CBOR re-export")
}

// setup resolves configuration, logging and decoding tables for every
// subcommand.
func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(config.Options{File: configFile, Flags: cmd.Flags()})
	if err != nil {
		return err
	}

	l, err := logging.New(c.LoggingConfig())
	if err != nil {
		return err
	}

	t := tables.Default()
	if c.Tables != "" {
		if t, err = tables.Load(c.Tables); err != nil {
			return err
		}
		l.Debug().Str("path", c.Tables).Msg("Loaded decoding tables")
	}

	cfg, logger, tbl = c, l, t
	return nil
}
