// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Solstat - VE.Direct Telemetry Monitor
//
// A CLI tool for decoding Victron VE.Direct text protocol telemetry
// and publishing it as typed sensor values.

package main

import (
	"os"

	"github.com/Thermoquad/solstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
