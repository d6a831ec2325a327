// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Thermoquad/solstat/pkg/vedirect"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Replay
	replayFile string

	// Configuration and logging
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "solstat",
	Short: "VE.Direct Telemetry Monitor",
	Long: `Solstat - A CLI tool for decoding and monitoring Victron VE.Direct telemetry.

Reads the VE.Direct text protocol broadcast by BMV battery monitors, SmartShunt
and BlueSolar/SmartSolar MPPT chargers, decodes every record and converts it
into typed sensor values (voltages, currents, state of charge, yields, charger
state and error codes).

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 19200]
  WebSocket: --url ws://host/path [--username user]
  Replay:    --file capture.bin (see the capture command)

Settings can also be read from a TOML file with --config. Flags given on the
command line take precedence over the file.

For WebSocket authentication, the password is read from the SOLSTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", vedirect.DefaultBaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Replay
	rootCmd.PersistentFlags().StringVarP(&replayFile, "file", "f", "", "Replay a captured stream instead of opening a device")

	// Configuration
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
