// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"strings"
	"testing"
	"time"
)

func TestFormatRecord(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 30, 45, 123000000, time.Local)

	line := FormatRecord(Record{Label: "CS", Value: "3", Timestamp: ts})
	if !strings.HasPrefix(line, "[12:30:45.123] CS") {
		t.Errorf("Unexpected prefix: %q", line)
	}
	if !strings.Contains(line, "-> charging_mode_id, charging_mode") {
		t.Errorf("Expected sensor targets in %q", line)
	}

	line = FormatRecord(Record{Label: "Relay", Value: "OFF", Timestamp: ts})
	if !strings.Contains(line, "(unsupported)") {
		t.Errorf("Expected unsupported marker in %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("Expected trailing newline")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v        float64
		unit     string
		expected string
	}{
		{12.6, "V", "12.6 V"},
		{-1.5, "A", "-1.5 A"},
		{95, "%", "95 %"},
		{17, "", "17"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.v, tt.unit); got != tt.expected {
			t.Errorf("FormatValue(%v, %q): expected %q, got %q", tt.v, tt.unit, tt.expected, got)
		}
	}
}

func TestFormatState(t *testing.T) {
	catalog := Catalog()

	if got := FormatState(catalog[BatteryVoltage], 12.6, ""); got != "Battery Voltage: 12.6 V" {
		t.Errorf("Unexpected numeric state: %q", got)
	}
	if got := FormatState(catalog[ChargingMode], 0, "Bulk"); got != "Charging Mode: Bulk" {
		t.Errorf("Unexpected text state: %q", got)
	}
}
