// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/solstat/pkg/vedirect"
)

var (
	probeTimeout int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for a VE.Direct record",
	Long: `Wait for a complete VE.Direct record on the connection until timeout.

This command connects to a serial port or WebSocket and waits for the first
label/value record. Bytes received before the first record boundary are
ignored.

Exit codes:
  0 - Record received before timeout
  1 - Timeout reached without receiving a record
  2 - Connection error

Useful for checking cabling and baud rate before running the monitor.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a record")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	log, err := newLogger(cfg, nil, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}

	s, err := openSession(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	fmt.Printf("Solstat - Probe\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for VE.Direct record...\n\n")

	recordChan := make(chan vedirect.Record, 1)
	errChan := make(chan error, 1)

	s.handle(vedirect.RecordHandlerFunc(func(r vedirect.Record) {
		select {
		case recordChan <- r:
		default:
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := s.run(ctx); err != nil {
			errChan <- err
			return
		}
		errChan <- ErrConnectionClosed
	}()

	select {
	case r := <-recordChan:
		fmt.Printf("SUCCESS: Received record\n")
		fmt.Printf("  Label: %s\n", r.Label)
		fmt.Printf("  Value: %q\n", r.Value)
		if ids := vedirect.LabelSensors(r.Label); ids != nil {
			fmt.Printf("  Sensors: %v\n", ids)
		} else {
			fmt.Printf("  Sensors: (unsupported label)\n")
		}
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(probeTimeout) * time.Second):
		c := s.stats.Snapshot()
		fmt.Fprintf(os.Stderr, "TIMEOUT: No record received within %d seconds (%d timeouts, %d overflows)\n",
			probeTimeout, c.Timeouts, c.Overflows)
		os.Exit(1)
	}

	return nil
}
