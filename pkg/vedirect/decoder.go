// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"errors"
	"fmt"
	"time"
)

// ErrOverflow is returned when a label or value exceeds its buffer
var ErrOverflow = errors.New("vedirect: record overflow")

// Decoder implements the VE.Direct text record state machine
type Decoder struct {
	state        int
	label        []byte
	value        []byte
	checksumSeen int    // Checksum payload bytes skipped so far
	blocks       uint64 // Checksum segments completed
}

// NewDecoder creates a new record decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state: stateIdle,
		label: make([]byte, 0, MaxLabelSize),
		value: make([]byte, 0, MaxValueSize),
	}
}

// Reset resets the decoder state to idle and drops any partial record
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.label = d.label[:0]
	d.value = d.value[:0]
	d.checksumSeen = 0
}

// Idle reports whether the decoder is between records
func (d *Decoder) Idle() bool {
	return d.state == stateIdle
}

// State returns the numeric decoder state (0 idle, 1 label, 2 value)
func (d *Decoder) State() int {
	return d.state
}

// Blocks returns the number of checksum segments skipped, one per block
func (d *Decoder) Blocks() uint64 {
	return d.blocks
}

// DecodeByte processes a single byte through the decoder state machine
// Returns a completed record, or nil if the record is incomplete
// Returns ErrOverflow if the record outgrew its buffers
func (d *Decoder) DecodeByte(b byte) (*Record, error) {
	if d.state == stateIdle {
		if b == CarriageReturn || b == LineFeed {
			return nil, nil
		}
		d.label = d.label[:0]
		d.value = d.value[:0]
		d.checksumSeen = 0
		d.state = stateLabel
		// The byte is the first label character, fall through
	}

	switch d.state {
	case stateLabel:
		if b == Tab {
			d.state = stateValue
			return nil, nil
		}
		if len(d.label) >= MaxLabelSize {
			d.Reset()
			return nil, fmt.Errorf("%w: label longer than %d bytes", ErrOverflow, MaxLabelSize)
		}
		d.label = append(d.label, b)
		return nil, nil

	case stateValue:
		// Checksum payload is raw binary, never scanned for terminators
		if string(d.label) == ChecksumLabel {
			d.checksumSeen++
			if d.checksumSeen >= ChecksumPayloadSize {
				d.blocks++
				d.Reset()
			}
			return nil, nil
		}
		if b == CarriageReturn || b == LineFeed {
			record := &Record{
				Label:     string(d.label),
				Value:     string(d.value),
				Timestamp: time.Now(),
			}
			d.Reset()
			return record, nil
		}
		if len(d.value) >= MaxValueSize {
			d.Reset()
			return nil, fmt.Errorf("%w: value of %q longer than %d bytes", ErrOverflow, string(d.label), MaxValueSize)
		}
		d.value = append(d.value, b)
		return nil, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}
