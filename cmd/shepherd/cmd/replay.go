package cmd

import (
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/transport"
)

var noExport bool

var replayCmd = &cobra.Command{
	Use:   "replay <capture>",
	Short: "Run a captured byte stream through the pipeline",
	Long: `Feed a file written by "monitor --capture" through the same framing, collection
and analysis as a live session. Nothing is sent back: acknowledgements are
counted and dropped.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&noExport, "no-export", false, "only print the summary")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	port, err := transport.OpenFile(args[0])
	if err != nil {
		return err
	}
	defer port.Close()

	dir := cfg.OutputDir
	if noExport {
		dir = ""
	}
	return runSession(cmd.Context(), port, cfg.MonitorConfig(), dir)
}
