package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/events"
)

var decodeJSON bool

var decodeCmd = &cobra.Command{
	Use:   "decode <bitmask>...",
	Short: "Decode event bitmasks and classify strength",
	Long: `Decode one or more 32-bit event masks (decimal, 0x hex or 0b binary) through the
active event table and print the event names and the classified strength.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeJSON, "json", false, "output JSON")
	rootCmd.AddCommand(decodeCmd)
}

// DecodedMask is the decode command's JSON output.
type DecodedMask struct {
	Mask     string          `json:"mask"`
	Events   []string        `json:"events"`
	Strength events.Strength `json:"strength"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	var out []DecodedMask
	for _, arg := range args {
		v, err := strconv.ParseUint(arg, 0, 32)
		if err != nil {
			return fmt.Errorf("invalid bitmask %q: %w", arg, err)
		}
		names := tbl.Decode(uint32(v))
		out = append(out, DecodedMask{
			Mask:     fmt.Sprintf("0x%08X", v),
			Events:   names,
			Strength: events.Classify(names),
		})
	}

	if decodeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, d := range out {
		fmt.Printf("%s  strength %s\n", d.Mask, d.Strength)
		for _, name := range d.Events {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}
