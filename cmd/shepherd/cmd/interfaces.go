package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/transport"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List serial ports and known USB probes",
	Long: `Scan the host for serial ports and USB CDC boards running the pin-test firmware
and print a summary. Use this to find the --port or --usb-vid/--usb-pid values
for the monitor command.`,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	infos, err := transport.DiscoverInterfaces(ctx)
	if err != nil {
		// one source failing still leaves the other results usable
		logger.Warn().Err(err).Msg("Interface discovery incomplete")
	}

	fmt.Println("Detected interfaces:")
	for _, iface := range infos {
		if iface.VendorID == 0 && iface.ProductID == 0 {
			fmt.Printf("  - %s [%s]\n", iface.Label(), iface.Kind)
			continue
		}
		fmt.Printf("  - %s [%s] (VID:PID %04X:%04X)\n", iface.Label(), iface.Kind, iface.VendorID, iface.ProductID)
	}

	return nil
}
