// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

const labelAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789#_"

// randomRecord returns a record that frames cleanly: the label has no tab and
// is never "Checksum", the value has no CR or LF
func randomRecord(rng *rand.Rand) Record {
	label := make([]byte, rng.Intn(MaxLabelSize)+1)
	for i := range label {
		label[i] = labelAlphabet[rng.Intn(len(labelAlphabet))]
	}
	if string(label) == ChecksumLabel {
		label[0] = 'X'
	}

	value := make([]byte, rng.Intn(MaxValueSize+1))
	for i := range value {
		if rng.Intn(20) == 0 {
			value[i] = Tab
		} else {
			value[i] = byte(0x20 + rng.Intn(0x5f))
		}
	}
	return Record{Label: string(label), Value: string(value)}
}

// randomStream builds a block stream and the records it carries
func randomStream(rng *rand.Rand) ([]byte, []Record) {
	var stream []byte
	var records []Record

	n := rng.Intn(30) + 1
	for i := 0; i < n; i++ {
		r := randomRecord(rng)
		records = append(records, r)
		stream = append(stream, "\r\n"+r.Label+"\t"+r.Value...)

		if rng.Intn(5) == 0 {
			stream = append(stream, "\r\n"+ChecksumLabel+"\t"...)
			stream = append(stream, byte(rng.Intn(256)))
		}
	}
	stream = append(stream, "\r\n"...)
	return stream, records
}

func sameRecords(t *testing.T, round int, expected, got []Record) {
	t.Helper()
	if len(got) != len(expected) {
		t.Errorf("Round %d: expected %d records, got %d", round, len(expected), len(got))
		return
	}
	for i := range expected {
		if got[i].Label != expected[i].Label || got[i].Value != expected[i].Value {
			t.Errorf("Round %d record %d: expected %q=%q, got %q=%q",
				round, i, expected[i].Label, expected[i].Value, got[i].Label, got[i].Value)
			return
		}
	}
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

// TestFuzzDecoder_RandomBytes feeds random bytes to the decoder
// and verifies it doesn't crash or panic
func TestFuzzDecoder_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		d := NewDecoder()

		length := rng.Intn(512) + 1
		data := make([]byte, length)
		rng.Read(data)

		for _, b := range data {
			r, err := d.DecodeByte(b)
			if r != nil && r.Label == ChecksumLabel {
				t.Fatalf("Round %d: checksum record dispatched", i)
			}
			if r != nil && (len(r.Label) > MaxLabelSize || len(r.Value) > MaxValueSize) {
				t.Fatalf("Round %d: record exceeds buffer limits", i)
			}
			if err != nil && !d.Idle() {
				t.Fatalf("Round %d: decoder not idle after error", i)
			}
		}
	}
}

// TestFuzzDecoder_RandomRecords verifies that random records interleaved with
// checksum segments decode to exactly the records sent
func TestFuzzDecoder_RandomRecords(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		d := NewDecoder()
		stream, expected := randomStream(rng)

		var got []Record
		for _, b := range stream {
			r, err := d.DecodeByte(b)
			if err != nil {
				t.Fatalf("Round %d: unexpected error: %v", i, err)
			}
			if r != nil {
				got = append(got, *r)
			}
		}

		sameRecords(t, i, expected, got)
		if !d.Idle() {
			t.Errorf("Round %d: decoder should end idle", i)
		}
	}
}

// TestFuzzDecoder_ResyncAfterGarbage verifies a Reset after random bytes
// recovers a full block
func TestFuzzDecoder_ResyncAfterGarbage(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		d := NewDecoder()

		garbage := make([]byte, rng.Intn(128))
		rng.Read(garbage)
		for _, b := range garbage {
			d.DecodeByte(b)
		}
		d.Reset()

		records := feed(t, d, bmvBlock)
		if len(records) != 12 {
			t.Errorf("Round %d: expected 12 records after resync, got %d", i, len(records))
		}
	}
}

// ============================================================
// Component Fuzz Tests
// ============================================================

// TestFuzzComponent_RandomChunks splits a stream over random ticks below the
// timeout and verifies nothing is lost
func TestFuzzComponent_RandomChunks(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		c, source, clock, rec, _ := newTestComponent()
		stream, expected := randomStream(rng)

		for len(stream) > 0 {
			n := rng.Intn(len(stream)) + 1
			source.push(string(stream[:n]))
			stream = stream[n:]

			c.Loop()
			clock.advance(time.Duration(rng.Intn(int(DefaultTimeout/time.Millisecond))) * time.Millisecond)
		}

		sameRecords(t, i, expected, rec.records)
	}
}

// TestFuzzInterpreter_RandomValues feeds random values for every supported
// label and verifies the interpreter never panics
func TestFuzzInterpreter_RandomValues(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	labels := Labels()
	sensors, err := NewSensorSet()
	if err != nil {
		t.Fatal(err)
	}
	in := NewInterpreter(sensors, zerolog.Nop(), NewStatistics())

	for i := 0; i < rounds; i++ {
		label := labels[rng.Intn(len(labels))]
		r := randomRecord(rng)
		in.Interpret(label, r.Value)
	}
}
