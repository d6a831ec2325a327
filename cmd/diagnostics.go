// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/solstat/pkg/vedirect"
)

var (
	showAll       bool
	showStates    bool
	statsInterval int
)

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Track framing errors and unsupported labels",
	Long: `Decode the stream and report framing problems with periodic statistics.

This command counts and reports:
  - Records dropped after 200 ms of inactivity (timeouts)
  - Records dropped for exceeding the label or value buffers (overflows)
  - Labels without a conversion (reported once per label)
  - Numeric values that did not parse cleanly
  - Blocks, record rate and error rate

By default, only problems are displayed. Use --show-all to display every record
and --states to include the current sensor states with each summary.`,
	RunE: runDiagnostics,
}

func init() {
	rootCmd.AddCommand(diagnosticsCmd)
	diagnosticsCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all records (not just errors)")
	diagnosticsCmd.Flags().BoolVar(&showStates, "states", false, "Print sensor states with each statistics summary")
	diagnosticsCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	if statsInterval <= 0 {
		return fmt.Errorf("--stats-interval must be positive")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, nil, false)
	if err != nil {
		return err
	}

	s, err := openSession(cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("Solstat - Diagnostics Mode\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	fmt.Printf("Record timeout: %s\n", cfg.Decoder.Timeout)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All records\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	var out sync.Mutex
	synchronized := false
	s.handle(vedirect.RecordHandlerFunc(func(r vedirect.Record) {
		out.Lock()
		defer out.Unlock()

		if !synchronized {
			synchronized = true
			fmt.Printf("[SYNC] First record received: %s\n\n", r.Label)
		}
		if showAll {
			fmt.Print(vedirect.FormatRecord(r))
		}
	}))

	ctx, cancel := signalContext()
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.run(ctx)
	}()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case err := <-errChan:
			out.Lock()
			writeSummary(os.Stdout, s, showStates)
			out.Unlock()
			return err

		case <-statsTicker.C:
			out.Lock()
			writeSummary(os.Stdout, s, showStates)
			fmt.Println()
			out.Unlock()
		}
	}
}

// writeSummary prints the statistics and, with states set, every sensor state
func writeSummary(w io.Writer, s *session, states bool) {
	fmt.Fprintln(w)
	fmt.Fprint(w, s.stats.String())
	if states {
		fmt.Fprint(w, formatStates(s.sensors))
	}
}

// formatStates renders every sensor that has a state, one per line
func formatStates(sensors *vedirect.SensorSet) string {
	var b strings.Builder
	for _, id := range sensors.IDs() {
		info, _ := sensors.Info(id)
		if sensor, ok := sensors.Sensor(id); ok {
			if v, has := sensor.State(); has {
				b.WriteString("  " + vedirect.FormatState(info, v, "") + "\n")
			}
			continue
		}
		if sensor, ok := sensors.TextSensor(id); ok {
			if v, has := sensor.State(); has {
				b.WriteString("  " + vedirect.FormatState(info, 0, v) + "\n")
			}
		}
	}
	return b.String()
}
