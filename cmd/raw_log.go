// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/solstat/pkg/vedirect"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded records in human-readable format",
	Long: `Continuously decode and display VE.Direct records as they arrive.

Each record is printed with its timestamp, label and raw value, followed by the
sensors it updates or "(unsupported)" for labels without a conversion.
Checksum records are never shown. A statistics summary is printed on exit.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("Solstat - Raw Record Log\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	s.handle(vedirect.RecordHandlerFunc(func(r vedirect.Record) {
		fmt.Print(vedirect.FormatRecord(r))
	}))

	ctx, cancel := signalContext()
	defer cancel()

	err = s.run(ctx)
	fmt.Println()
	fmt.Print(s.stats.String())
	return err
}
