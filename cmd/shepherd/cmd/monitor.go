package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/transport"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Collect pin-test data from a live device",
	Long: `Open the configured link, acknowledge and collect every packet the firmware
sends, and export each device once it is complete. Runs until interrupted, the
link fails, or (with --stop-when-complete) every expected device is complete.

Examples:
  shepherd monitor --port /dev/ttyACM0
  shepherd monitor --transport usb --usb-vid 0x1915 --usb-pid 0x520F
  shepherd monitor --port COM4 --capture session.bin --stop-when-complete`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	f := monitorCmd.Flags()
	f.String("transport", "serial", "link type (serial, usb, sim)")
	f.StringP("port", "p", "", "serial device, e.g. /dev/ttyACM0 or COM3")
	f.Int("baud", transport.DefaultBaud, "serial baud rate")
	f.Int("usb-vid", 0x1915, "USB vendor id for --transport usb")
	f.Int("usb-pid", 0x520F, "USB product id for --transport usb")
	f.Duration("read-timeout", transport.DefaultReadTimeout, "maximum time a single read blocks")
	f.String("capture", "", "also write every received byte to this file for replay")
	f.Int("queue-size", 1000, "read chunks buffered between reader and processor")
	f.Duration("grace-period", 2*time.Second, "time allowed for a clean shutdown")
	f.Bool("stop-when-complete", false, "exit once every expected device is complete")

	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	tc := cfg.TransportConfig()
	if tc.Kind == transport.KindReplay {
		return errors.New("use the replay command for capture files")
	}

	port, err := transport.Open(tc)
	if err != nil {
		return fmt.Errorf("open %s link: %w", tc.Kind, err)
	}
	logger.Info().Str("transport", string(tc.Kind)).Str("port", tc.Name).Msg("Link open")

	if cfg.Capture != "" {
		capture, err := transport.CaptureToFile(port, cfg.Capture)
		if err != nil {
			port.Close()
			return err
		}
		port = capture
		logger.Info().Str("path", cfg.Capture).Msg("Capturing raw bytes")
	}
	defer port.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = runSession(ctx, port, cfg.MonitorConfig(), cfg.OutputDir)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
