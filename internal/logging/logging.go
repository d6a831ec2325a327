// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging builds the zerolog logger shared by all commands.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLevel overrides the configured log level
const EnvLevel = "SOLSTAT_LOG_LEVEL"

// Options selects the logger output
type Options struct {
	Level   string
	JSON    bool      // Line-delimited JSON instead of the console format
	NoColor bool      // Console format without ANSI colors
	Out     io.Writer // Defaults to stderr
}

// ParseLevel parses a level name, case-insensitively. "warning" is
// accepted for "warn".
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// New creates the application logger and installs it as the zerolog global.
// The SOLSTAT_LOG_LEVEL environment variable wins over opts.Level.
func New(opts Options) (zerolog.Logger, error) {
	levelName := opts.Level
	if env := os.Getenv(EnvLevel); env != "" {
		levelName = env
	}
	level, err := ParseLevel(levelName)
	if err != nil {
		return zerolog.Nop(), err
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    opts.NoColor,
			TimeFormat: time.TimeOnly,
		}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Str("app", "solstat").Logger()
	log.Logger = logger
	return logger, nil
}
