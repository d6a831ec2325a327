// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/solstat/pkg/vedirect"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive dashboard of sensor states",
	Long: `Display a live terminal dashboard of every enabled sensor.

The dashboard shows decoding statistics, a table of the current sensor values
and a log of recent events (timeouts, overflows, unsupported labels).

Keys:
  up/down  scroll the sensor table
  /        filter sensors by name
  r        reset statistics
  q        quit`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Log lines go to the event log instead of the terminal
	writer := &programWriter{}
	log, err := newLogger(cfg, writer, true)
	if err != nil {
		return err
	}

	s, err := openSession(cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	m := initialModel(s.connInfo, cfg.Decoder.Timeout, s.sensors, s.stats)
	p := tea.NewProgram(m)
	writer.attach(p)

	s.handle(vedirect.RecordHandlerFunc(func(r vedirect.Record) {
		p.Send(recordMsg{record: r})
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		err := s.run(ctx)
		p.Send(sessionDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
