// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"fmt"
	"sync"
	"time"
)

// Counters is a point-in-time copy of the decoding statistics
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Records       uint64 // Records dispatched by the decoder
	Interpreted   uint64 // Records with a supported label
	Blocks        uint64 // Checksum segments skipped
	Timeouts      uint64 // Partial records dropped after inactivity
	Overflows     uint64 // Records dropped for exceeding buffer limits
	UnknownLabels uint64
	ParseFailures uint64

	// Rates (calculated)
	RecordRate float64 // records/sec
	ErrorRate  float64 // errors/sec
}

// Errors returns the number of framing and value errors
func (c Counters) Errors() uint64 {
	return c.Timeouts + c.Overflows + c.ParseFailures
}

// Statistics tracks record statistics and error rates.
// It is safe for concurrent use.
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{c: Counters{StartTime: now, LastUpdateTime: now}}
}

func (s *Statistics) update(fn func(c *Counters)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.c)
	s.c.LastUpdateTime = time.Now()
}

func (s *Statistics) countRecord() {
	s.update(func(c *Counters) { c.Records++ })
}

func (s *Statistics) countInterpreted() {
	s.update(func(c *Counters) { c.Interpreted++ })
}

func (s *Statistics) countTimeout() {
	s.update(func(c *Counters) { c.Timeouts++ })
}

func (s *Statistics) countOverflow() {
	s.update(func(c *Counters) { c.Overflows++ })
}

func (s *Statistics) countUnknownLabel() {
	s.update(func(c *Counters) { c.UnknownLabels++ })
}

func (s *Statistics) countParseFailure() {
	s.update(func(c *Counters) { c.ParseFailures++ })
}

func (s *Statistics) setBlocks(n uint64) {
	s.update(func(c *Counters) { c.Blocks = n })
}

// Snapshot returns a copy of the counters with rates calculated
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.c
	elapsed := time.Since(c.StartTime).Seconds()
	if elapsed > 0 {
		c.RecordRate = float64(c.Records) / elapsed
		c.ErrorRate = float64(c.Errors()) / elapsed
	}
	return c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	return s.Snapshot().String()
}

// String returns a formatted statistics summary
func (c Counters) String() string {
	var interpretedPercent, unknownPercent float64
	if c.Records > 0 {
		interpretedPercent = float64(c.Interpreted) * 100.0 / float64(c.Records)
		unknownPercent = float64(c.UnknownLabels) * 100.0 / float64(c.Records)
	}

	elapsed := time.Since(c.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Blocks:          %8d\n", c.Blocks)
	result += fmt.Sprintf("Records:         %8d\n", c.Records)
	result += fmt.Sprintf("Interpreted:     %8d (%.1f%%)\n", c.Interpreted, interpretedPercent)

	if c.UnknownLabels > 0 {
		result += fmt.Sprintf("Unknown Labels:  %8d (%.1f%%)\n", c.UnknownLabels, unknownPercent)
	}
	if c.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d\n", c.Timeouts)
	}
	if c.Overflows > 0 {
		result += fmt.Sprintf("Overflows:       %8d\n", c.Overflows)
	}
	if c.ParseFailures > 0 {
		result += fmt.Sprintf("Parse Failures:  %8d\n", c.ParseFailures)
	}

	result += fmt.Sprintf("Record Rate:     %8.1f recs/sec\n", c.RecordRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", c.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.c = Counters{StartTime: now, LastUpdateTime: now}
}
