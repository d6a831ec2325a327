// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"strings"

	"github.com/rs/zerolog"
)

// Interpreter converts records into sensor states
type Interpreter struct {
	sinks   Sinks
	log     zerolog.Logger
	stats   *Statistics
	unknown map[string]struct{} // Labels already warned about
}

// NewInterpreter creates an interpreter publishing to sinks.
// stats may be nil.
func NewInterpreter(sinks Sinks, log zerolog.Logger, stats *Statistics) *Interpreter {
	return &Interpreter{
		sinks:   sinks,
		log:     log,
		stats:   stats,
		unknown: make(map[string]struct{}),
	}
}

// HandleRecord implements RecordHandler
func (in *Interpreter) HandleRecord(r Record) {
	in.Interpret(r.Label, r.Value)
}

// Interpret publishes the states carried by one label/value pair.
// Malformed numbers publish as their numeric prefix (0 if none) and unknown
// labels only produce a log event; nothing here fails.
func (in *Interpreter) Interpret(label, value string) {
	f, ok := fields[label]
	if !ok {
		in.unsupported(label, value)
		return
	}
	if in.stats != nil {
		in.stats.countInterpreted()
	}

	switch f.kind {
	case kindNumeric:
		n := in.parse(label, value, f.base())
		in.publishNumeric(f.numeric, f.convert(n))

	case kindText:
		in.publishText(f.text, value)

	case kindFirmware:
		sink := in.text(f.text)
		if sink != nil && !sink.HasState() {
			sink.PublishState(FormatFirmware(value))
		}

	case kindProductID:
		sink := in.text(f.text)
		if sink == nil || sink.HasState() {
			return
		}
		pid := in.parse(label, value, f.base())
		if name, ok := DeviceTypeText(pid); ok {
			sink.PublishState(name)
		} else {
			in.log.Debug().Str("pid", value).Msg("Unknown product id")
		}

	case kindEnum:
		n := in.parse(label, value, f.base())
		in.publishNumeric(f.numeric, f.convert(n))
		in.publishText(f.text, f.lookup(n))
	}
}

// FormatFirmware turns a FW value such as "150" into "1.50".
// Values shorter than two digits are zero padded first.
func FormatFirmware(value string) string {
	if len(value) < 2 {
		value = strings.Repeat("0", 2-len(value)) + value
	}
	return value[:len(value)-2] + "." + value[len(value)-2:]
}

func (in *Interpreter) parse(label, value string, base int) int64 {
	n, ok := parseInt(value, base)
	if !ok {
		if in.stats != nil {
			in.stats.countParseFailure()
		}
		in.log.Debug().Str("label", label).Str("value", value).Int64("parsed", n).Msg("Malformed numeric value")
	}
	return n
}

func (in *Interpreter) unsupported(label, value string) {
	if in.stats != nil {
		in.stats.countUnknownLabel()
	}
	if _, seen := in.unknown[label]; seen {
		in.log.Debug().Str("label", label).Str("value", value).Msg("Unsupported message received")
		return
	}
	in.unknown[label] = struct{}{}
	in.log.Warn().Str("label", label).Str("value", value).Msg("Unsupported message received")
}

func (in *Interpreter) text(id SensorID) TextSink {
	if in.sinks == nil {
		return nil
	}
	return in.sinks.Text(id)
}

func (in *Interpreter) publishNumeric(id SensorID, v float64) {
	if in.sinks == nil {
		return
	}
	if sink := in.sinks.Numeric(id); sink != nil {
		sink.PublishState(v)
	}
}

func (in *Interpreter) publishText(id SensorID, v string) {
	if sink := in.text(id); sink != nil {
		sink.PublishState(v)
	}
}
