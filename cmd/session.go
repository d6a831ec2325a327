// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/solstat/internal/config"
	"github.com/Thermoquad/solstat/internal/logging"
	"github.com/Thermoquad/solstat/pkg/vedirect"
)

// loadConfig reads the configuration file and applies the connection and
// logging flags that were set explicitly
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("file") {
		cfg.Connection.File = replayFile
	}
	if flags.Changed("port") {
		cfg.Connection.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Connection.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.Connection.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.Connection.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Connection.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger creates the command logger writing to out (stderr when nil)
func newLogger(cfg config.Config, out io.Writer, noColor bool) (zerolog.Logger, error) {
	return logging.New(logging.Options{
		Level:   cfg.Log.Level,
		JSON:    cfg.Log.JSON,
		NoColor: noColor,
		Out:     out,
	})
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// session wires one connection to the decoding pipeline:
// connection -> ReaderSource -> Component -> Interpreter -> SensorSet
type session struct {
	cfg      config.Config
	log      zerolog.Logger
	conn     Connection
	connInfo string
	source   *vedirect.ReaderSource

	sensors     *vedirect.SensorSet
	stats       *vedirect.Statistics
	interpreter *vedirect.Interpreter

	// Extra record handlers, called after the interpreter
	handlers []vedirect.RecordHandler
}

func openSession(cfg config.Config, log zerolog.Logger) (*session, error) {
	sensors, err := cfg.NewSensorSet()
	if err != nil {
		return nil, err
	}

	conn, connInfo, err := OpenConnection(cfg.Connection, log)
	if err != nil {
		return nil, err
	}

	stats := vedirect.NewStatistics()
	s := &session{
		cfg:         cfg,
		log:         log,
		conn:        conn,
		connInfo:    connInfo,
		source:      vedirect.NewReaderSource(conn, 0),
		sensors:     sensors,
		stats:       stats,
		interpreter: vedirect.NewInterpreter(sensors, log, stats),
	}
	log.Debug().Str("connection", connInfo).Msg("Connected")
	return s, nil
}

// handle registers an additional record handler; call before run
func (s *session) handle(h vedirect.RecordHandler) {
	s.handlers = append(s.handlers, h)
}

// run polls the connection until ctx is cancelled or the connection ends.
// A cancelled context or a closed connection is not an error.
func (s *session) run(ctx context.Context) error {
	handlers := append([]vedirect.RecordHandler{s.interpreter}, s.handlers...)
	component := vedirect.NewComponent(s.source, vedirect.Handlers(handlers...), s.log, s.stats)
	component.Timeout = s.cfg.Decoder.Timeout

	err := component.Run(ctx, s.cfg.Decoder.TickInterval)
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, ErrConnectionClosed),
		errors.Is(err, vedirect.ErrSourceClosed),
		errors.Is(err, io.EOF):
		s.log.Debug().Err(err).Msg("Stopped")
		return nil
	}
	return err
}

func (s *session) Close() {
	s.source.Close()
	s.conn.Close()
}
