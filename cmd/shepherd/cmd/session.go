package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/analysis"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/collector"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/export"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/monitor"
	"github.com/OpenTraceLab/OpenTraceShepherd/pkg/transport"
)

// runSession drives port through the monitor and prints what was collected.
// exportDir disables exporting when empty.
func runSession(ctx context.Context, port transport.Port, mcfg monitor.Config, exportDir string) error {
	var sink collector.Sink
	if exportDir != "" {
		sink = export.NewFileSink(logger, export.Options{
			Dir:      exportDir,
			Extended: cfg.ExtendedPhases,
			Tables:   tbl,
			CBOR:     export.CBOROptions{KeepMasked: cfg.KeepMasked},
		})
	}

	coll := collector.New(logger, sink, collector.Options{
		ExtendedPhases:  cfg.ExtendedPhases,
		ExpectedDevices: cfg.ExpectedDevices,
		Tables:          tbl,
	})
	mon := monitor.New(logger, port, coll, mcfg)

	runErr := mon.Run(ctx)
	if coll.Pending() {
		if _, err := coll.Poll(context.WithoutCancel(ctx)); err != nil {
			logger.Error().Err(err).Msg("Final export failed")
			runErr = errors.Join(runErr, err)
		}
	}
	printSummary(coll, mon.Stats())
	return runErr
}

func printSummary(coll *collector.Collector, st monitor.Stats) {
	devices := coll.Snapshots()

	fmt.Println("=== Session Summary ===")
	fmt.Printf("Bytes: %d  Headers: %d  Chunks: %d  Accepted: %d  Duplicates: %d  Rejected: %d\n",
		st.BytesRead, st.Headers, st.Chunks, st.Accepted, st.Duplicates, st.Rejected)
	fmt.Printf("ACKs: %d  ACK failures: %d  Debug lines: %d  Queue full: %d\n",
		st.Acks, st.AckFailures, st.DebugLines, st.Backpressure)

	if len(devices) == 0 {
		fmt.Println("No devices seen.")
		return
	}

	for _, dev := range devices {
		state := "collecting"
		switch {
		case dev.Exported:
			state = "exported"
		case dev.Complete:
			state = "complete"
		}

		var sessions []string
		for s, ids := range dev.Received() {
			sessions = append(sessions, fmt.Sprintf("s%d=%d/%d", s, len(ids), dev.TotalChunks))
		}
		sort.Strings(sessions)

		fmt.Printf("\nDevice %s (uuid %s, version %s): %s, %d pins, %s\n",
			dev.Family, orDash(dev.UUID), orDash(dev.Version), state, len(dev.Pins), strings.Join(sessions, " "))
		if !dev.Complete {
			continue
		}

		report := analysis.BuildReport(dev, devices, analysis.Options{
			Extended: cfg.ExtendedPhases,
			PinName:  tbl.PinName,
		})
		for _, p := range report.Pins {
			label := p.Label
			if label == "" {
				label = fmt.Sprint(p.Pin)
			}
			fmt.Printf("  %-24s strength %-9s %s\n", label, p.Strength, strings.Join(p.Links, ", "))
		}
		if len(report.Nets) > 0 {
			fmt.Printf("  Nets: %d\n", len(report.Nets))
			for _, n := range report.Nets {
				fmt.Printf("    net %d: %v\n", n.ID, n.Pins)
			}
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
