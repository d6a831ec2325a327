// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	captureDuration int
	captureOutput   string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Record the raw byte stream to a file",
	Long: `Record the raw VE.Direct byte stream for a fixed duration.

Bytes are written to the output file exactly as received, checksum bytes
included, and can be replayed later with --file by every other command.
Progress is reported every second. Useful for bug reports and for checking
connection stability.

Exit codes:
  0 - Capture completed
  1 - Connection failed during the capture
  2 - Connection error`,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().IntVar(&captureDuration, "duration", 30, "Capture duration in seconds")
	captureCmd.Flags().StringVarP(&captureOutput, "output", "o", "capture.bin", "Output file")
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Connection.File != "" {
		return fmt.Errorf("capture needs a device, not --file")
	}
	log, err := newLogger(cfg, nil, false)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection(cfg.Connection, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	out, err := os.Create(captureOutput)
	if err != nil {
		return fmt.Errorf("create %s: %w", captureOutput, err)
	}
	defer out.Close()

	fmt.Printf("Solstat - Capture\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Output: %s\n", captureOutput)
	fmt.Printf("Duration: %d seconds\n\n", captureDuration)

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	start := time.Now()
	endTime := start.Add(time.Duration(captureDuration) * time.Second)
	bytesReceived := 0
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	printResults := func(result string) {
		fmt.Printf("\n--- Capture Results ---\n")
		fmt.Printf("Duration: %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("Bytes received: %d\n", bytesReceived)
		fmt.Printf("Result: %s\n", result)
	}

	for time.Now().Before(endTime) {
		select {
		case data := <-readChan:
			if _, err := out.Write(data); err != nil {
				return fmt.Errorf("write %s: %w", captureOutput, err)
			}
			bytesReceived += len(data)

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), err)
			printResults("FAILED (connection error)")
			out.Close()
			os.Exit(1)

		case <-heartbeat.C:
			fmt.Printf("[%s] %d bytes captured (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), bytesReceived, time.Until(endTime).Seconds())
		}
	}

	printResults("PASSED")
	return nil
}
