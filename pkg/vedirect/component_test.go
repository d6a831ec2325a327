// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// ============================================================
// Test Helpers
// ============================================================

// fakeSource is a ByteSource fed by the test
type fakeSource struct {
	data  []byte
	reads int
}

func (s *fakeSource) push(data string) { s.data = append(s.data, data...) }

func (s *fakeSource) Available() bool { return len(s.data) > 0 }

func (s *fakeSource) ReadByte() (byte, error) {
	if len(s.data) == 0 {
		return 0, ErrNoData
	}
	b := s.data[0]
	s.data = s.data[1:]
	s.reads++
	return b, nil
}

// fakeClock is a manually advanced Clock
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// recorder collects handled records
type recorder struct {
	records []Record
}

func (r *recorder) HandleRecord(rec Record) { r.records = append(r.records, rec) }

func newTestComponent() (*Component, *fakeSource, *fakeClock, *recorder, *Statistics) {
	source := &fakeSource{}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rec := &recorder{}
	stats := NewStatistics()
	c := NewComponent(source, rec, zerolog.Nop(), stats)
	c.SetClock(clock)
	return c, source, clock, rec, stats
}

// ============================================================
// Component Tests
// ============================================================

func TestComponent_DispatchesRecords(t *testing.T) {
	c, source, clock, rec, stats := newTestComponent()

	source.push("\r\nV\t12600\r\nSOC\t950\r\n")
	c.Loop()

	if len(rec.records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(rec.records))
	}
	if rec.records[0].Label != "V" || rec.records[1].Label != "SOC" {
		t.Errorf("Unexpected records: %v", rec.records)
	}
	if !rec.records[0].Timestamp.Equal(clock.now) {
		t.Errorf("Record should be stamped with the component clock")
	}
	if got := stats.Snapshot().Records; got != 2 {
		t.Errorf("Expected 2 records counted, got %d", got)
	}
}

func TestComponent_DrainsEverythingAvailable(t *testing.T) {
	c, source, _, rec, _ := newTestComponent()

	source.push(strings.Repeat("P\t10\r\n", 50))
	c.Loop()

	if source.Available() {
		t.Error("Loop should drain every available byte")
	}
	if len(rec.records) != 50 {
		t.Errorf("Expected 50 records, got %d", len(rec.records))
	}
}

func TestComponent_SplitAcrossTicks(t *testing.T) {
	c, source, clock, rec, _ := newTestComponent()

	source.push("V\t126")
	c.Loop()
	clock.advance(50 * time.Millisecond)
	source.push("00\r\n")
	c.Loop()

	if len(rec.records) != 1 || rec.records[0].Value != "12600" {
		t.Fatalf("Expected V=12600, got %v", rec.records)
	}
}

func TestComponent_TimeoutAbandonsRecord(t *testing.T) {
	c, source, clock, rec, stats := newTestComponent()

	source.push("V\t12")
	c.Loop()

	clock.advance(DefaultTimeout)
	c.Loop()
	if !c.Decoder().Idle() {
		t.Fatal("Decoder should be reset after the inactivity timeout")
	}

	source.push("600\r\n")
	c.Loop()

	if len(rec.records) != 0 {
		t.Errorf("Abandoned record must not be dispatched, got %v", rec.records)
	}
	if got := stats.Snapshot().Timeouts; got != 1 {
		t.Errorf("Expected 1 timeout, got %d", got)
	}
}

func TestComponent_TimeoutCheckedBeforeDrain(t *testing.T) {
	c, source, clock, rec, _ := newTestComponent()

	source.push("V\t12")
	c.Loop()

	// Continuation arrives in the same tick that detects the gap
	clock.advance(250 * time.Millisecond)
	source.push("600\r\nI\t5\r\n")
	c.Loop()

	if len(rec.records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(rec.records))
	}
	if rec.records[0].Label != "600\r\nI" {
		t.Errorf("Expected resynchronised label, got %q", rec.records[0].Label)
	}
}

func TestComponent_NoTimeoutBelowThreshold(t *testing.T) {
	c, source, clock, rec, stats := newTestComponent()

	source.push("V\t12")
	c.Loop()
	clock.advance(DefaultTimeout - time.Millisecond)
	source.push("600\r\n")
	c.Loop()

	if len(rec.records) != 1 || rec.records[0].Value != "12600" {
		t.Fatalf("Expected V=12600, got %v", rec.records)
	}
	if got := stats.Snapshot().Timeouts; got != 0 {
		t.Errorf("Expected no timeout, got %d", got)
	}
}

func TestComponent_NoTimeoutWhileIdle(t *testing.T) {
	c, source, clock, _, stats := newTestComponent()

	source.push("V\t1\r\n")
	c.Loop()
	clock.advance(10 * time.Second)
	c.Loop()

	if got := stats.Snapshot().Timeouts; got != 0 {
		t.Errorf("Idle decoder must not time out, got %d timeouts", got)
	}
}

func TestComponent_CustomTimeout(t *testing.T) {
	c, source, clock, _, stats := newTestComponent()
	c.Timeout = time.Second

	source.push("V\t12")
	c.Loop()
	clock.advance(500 * time.Millisecond)
	c.Loop()

	if c.Decoder().Idle() {
		t.Error("Decoder should still be mid-record before the custom timeout")
	}
	clock.advance(500 * time.Millisecond)
	c.Loop()
	if got := stats.Snapshot().Timeouts; got != 1 {
		t.Errorf("Expected 1 timeout, got %d", got)
	}
}

func TestComponent_CountsBlocksAndOverflows(t *testing.T) {
	c, source, _, _, stats := newTestComponent()

	source.push(bmvBlock + bmvBlock)
	source.push("\r\nBMV\t" + strings.Repeat("x", MaxValueSize+1) + "\r\n")
	c.Loop()

	snap := stats.Snapshot()
	if snap.Blocks != 2 {
		t.Errorf("Expected 2 blocks, got %d", snap.Blocks)
	}
	if snap.Overflows != 1 {
		t.Errorf("Expected 1 overflow, got %d", snap.Overflows)
	}
	if snap.Records != 24 {
		t.Errorf("Expected 24 records, got %d", snap.Records)
	}
}

func TestComponent_WithInterpreter(t *testing.T) {
	sensors, err := NewSensorSet()
	if err != nil {
		t.Fatal(err)
	}
	stats := NewStatistics()
	source := &fakeSource{}
	c := NewComponent(source, NewInterpreter(sensors, zerolog.Nop(), stats), zerolog.Nop(), stats)

	source.push(bmvBlock)
	c.Loop()

	voltage, _ := sensors.Sensor(BatteryVoltage)
	if v, ok := voltage.State(); !ok || v != 26.201 {
		t.Errorf("Expected battery voltage 26.201, got %v (has=%v)", v, ok)
	}
	device, _ := sensors.TextSensor(DeviceType)
	if v, _ := device.State(); v != "BMV-700" {
		t.Errorf("Expected device type BMV-700, got %q", v)
	}
	firmware, _ := sensors.TextSensor(FirmwareVersion)
	if v, _ := firmware.State(); v != "03.07" {
		t.Errorf("Expected firmware 03.07, got %q", v)
	}

	snap := stats.Snapshot()
	// Relay and AR are not supported
	if snap.UnknownLabels != 2 {
		t.Errorf("Expected 2 unknown labels, got %d", snap.UnknownLabels)
	}
	if snap.Interpreted != 10 {
		t.Errorf("Expected 10 interpreted records, got %d", snap.Interpreted)
	}
}

func TestComponent_RunStopsOnCancel(t *testing.T) {
	c, source, _, rec, _ := newTestComponent()
	c.SetClock(SystemClock)
	source.push("V\t1\r\n")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Run(ctx, time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if len(rec.records) != 1 {
		t.Errorf("Expected 1 record, got %d", len(rec.records))
	}
}

func TestComponent_RunReturnsSourceError(t *testing.T) {
	source := NewReaderSource(strings.NewReader("V\t12600\r\n"), 4)
	rec := &recorder{}
	c := NewComponent(source, rec, zerolog.Nop(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := c.Run(ctx, time.Millisecond)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Expected io.EOF, got %v", err)
	}
	if len(rec.records) != 1 {
		t.Errorf("Expected 1 record before EOF, got %d", len(rec.records))
	}
}

// lateSource queues its final chunk right before reporting end of stream
type lateSource struct {
	fakeSource
	tail string
	err  error
}

func (s *lateSource) Err() error {
	if s.tail != "" {
		s.push(s.tail)
		s.tail = ""
		s.err = io.EOF
	}
	return s.err
}

func TestComponent_RunDrainsFinalChunk(t *testing.T) {
	source := &lateSource{tail: "I\t2\r\n"}
	source.push("V\t1\r\n")
	rec := &recorder{}
	c := NewComponent(source, rec, zerolog.Nop(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Run(ctx, time.Millisecond); !errors.Is(err, io.EOF) {
		t.Fatalf("Expected io.EOF, got %v", err)
	}
	if len(rec.records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(rec.records))
	}
	if rec.records[1].Label != "I" {
		t.Errorf("Expected final record I, got %q", rec.records[1].Label)
	}
}

// ============================================================
// ReaderSource Tests
// ============================================================

func TestReaderSource_DeliversBytes(t *testing.T) {
	pr, pw := io.Pipe()
	source := NewReaderSource(pr, 0)
	defer source.Close()

	go func() {
		pw.Write([]byte("abc"))
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !source.Available() {
		if time.Now().After(deadline) {
			t.Fatal("No data became available")
		}
		time.Sleep(time.Millisecond)
	}

	var got []byte
	for source.Available() {
		b, err := source.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte error: %v", err)
		}
		got = append(got, b)
	}
	if string(got) != "abc" {
		t.Errorf("Expected abc, got %q", got)
	}

	if _, err := source.ReadByte(); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData on empty source, got %v", err)
	}
	pw.Close()
}

func TestReaderSource_Close(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	source := NewReaderSource(pr, 0)

	source.Close()
	source.Close()
	if !errors.Is(source.Err(), ErrSourceClosed) {
		t.Errorf("Expected ErrSourceClosed, got %v", source.Err())
	}
}
