// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package vedirect decodes the Victron VE.Direct text protocol.
//
// VE.Direct devices (BMV battery monitors, SmartShunt, BlueSolar/SmartSolar MPPT
// chargers, Phoenix inverters) broadcast one block of label/value records per
// second on a 19200 baud serial line. Each record is "<label>\t<value>\r\n" and
// a block closes with a "Checksum" record whose value is one raw byte.
//
// The package is split in two layers: the Decoder rebuilds records from a byte
// stream, and the Interpreter converts each record into typed sensor states.
// A Component ties both to a polled ByteSource.
package vedirect

import "time"

// Protocol framing bytes
const (
	Tab            = '\t'
	CarriageReturn = '\r'
	LineFeed       = '\n'
)

// ChecksumLabel is the label of the record closing every block
const ChecksumLabel = "Checksum"

// Record size limits
const (
	ChecksumPayloadSize = 1  // Raw bytes following "Checksum\t"
	MaxLabelSize        = 32 // Protocol maximum is 9
	MaxValueSize        = 64 // Protocol maximum is 33
)

// Timing
const (
	DefaultBaudRate     = 19200
	DefaultTimeout      = 200 * time.Millisecond
	DefaultTickInterval = 16 * time.Millisecond
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLabel
	stateValue
)
