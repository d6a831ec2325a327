// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ByteSource is a non-blocking byte transport
type ByteSource interface {
	// Available reports whether ReadByte can return without blocking
	Available() bool
	ReadByte() (byte, error)
}

// Clock provides monotonic time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock (monotonic reading included)
var SystemClock Clock = systemClock{}

// Component polls a ByteSource, decodes records and hands them to a handler.
// Loop is meant to be called from a single goroutine.
type Component struct {
	decoder *Decoder
	source  ByteSource
	handler RecordHandler
	clock   Clock
	log     zerolog.Logger
	stats   *Statistics

	// Timeout is the inactivity after which a partial record is dropped
	Timeout time.Duration

	lastByte time.Time
}

// NewComponent creates a component reading from source.
// stats may be nil.
func NewComponent(source ByteSource, handler RecordHandler, log zerolog.Logger, stats *Statistics) *Component {
	return &Component{
		decoder: NewDecoder(),
		source:  source,
		handler: handler,
		clock:   SystemClock,
		log:     log,
		stats:   stats,
		Timeout: DefaultTimeout,
	}
}

// SetClock replaces the clock used for the inactivity timeout
func (c *Component) SetClock(clock Clock) {
	c.clock = clock
}

// Decoder returns the underlying decoder
func (c *Component) Decoder() *Decoder {
	return c.decoder
}

// Loop runs one scheduling tick: it expires a stalled record, then drains
// every byte currently available. It never blocks.
func (c *Component) Loop() {
	now := c.clock.Now()
	if !c.decoder.Idle() && now.Sub(c.lastByte) >= c.Timeout {
		c.log.Warn().Dur("idle", now.Sub(c.lastByte)).Int("state", c.decoder.State()).Msg("Last transmission too long ago")
		c.decoder.Reset()
		if c.stats != nil {
			c.stats.countTimeout()
		}
	}

	if !c.source.Available() {
		return
	}

	blocks := c.decoder.Blocks()
	for c.source.Available() {
		b, err := c.source.ReadByte()
		if err != nil {
			c.log.Debug().Err(err).Msg("Read error")
			break
		}
		c.lastByte = now

		record, err := c.decoder.DecodeByte(b)
		if err != nil {
			c.log.Warn().Err(err).Msg("Record dropped")
			if c.stats != nil && errors.Is(err, ErrOverflow) {
				c.stats.countOverflow()
			}
			continue
		}
		if record == nil {
			continue
		}

		record.Timestamp = now
		if c.stats != nil {
			c.stats.countRecord()
		}
		if c.handler != nil {
			c.handler.HandleRecord(*record)
		}
	}

	if c.stats != nil && c.decoder.Blocks() != blocks {
		c.stats.setBlocks(c.decoder.Blocks())
	}
}

// Run calls Loop every interval until ctx is done
func (c *Component) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Loop()
			if err := c.sourceErr(); err != nil {
				return err
			}
		}
	}
}

// sourceErr returns the terminal error of a drained source that reports one
func (c *Component) sourceErr() error {
	es, ok := c.source.(interface{ Err() error })
	if !ok {
		return nil
	}
	// The error is set only after the final chunk is queued
	err := es.Err()
	if err == nil || c.source.Available() {
		return nil
	}
	return err
}
