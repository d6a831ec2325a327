// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"math"
	"testing"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   string
		base int
		n    int64
		ok   bool
	}{
		{"12600", 10, 12600, true},
		{"-1500", 10, -1500, true},
		{"+7", 10, 7, true},
		{"  42", 10, 42, true},
		{"0", 10, 0, true},
		{"", 10, 0, false},
		{"-", 10, 0, false},
		{"abc", 10, 0, false},
		{"12abc", 10, 12, false},
		{"12 ", 10, 12, false},
		{"0x1F", 10, 0, false},

		// Base detection
		{"0xA389", 0, 0xA389, true},
		{"0XA053", 0, 0xA053, true},
		{"0xa381", 0, 0xA381, true},
		{"0203", 0, 0203, true},
		{"515", 0, 515, true},
		{"0", 0, 0, true},
		{"0x", 0, 0, false},
		{"-0x10", 0, -16, true},
		{"09", 0, 0, false},
	}

	for _, tt := range tests {
		n, ok := parseInt(tt.in, tt.base)
		if n != tt.n || ok != tt.ok {
			t.Errorf("parseInt(%q, %d): expected (%d, %v), got (%d, %v)", tt.in, tt.base, tt.n, tt.ok, n, ok)
		}
	}
}

func TestParseInt_Saturates(t *testing.T) {
	tests := []struct {
		in   string
		base int
		n    int64
	}{
		{"2147483647", 10, math.MaxInt32},
		{"2147483648", 10, math.MaxInt32},
		{"99999999999999999999999", 10, math.MaxInt32},
		{"-2147483648", 10, math.MinInt32},
		{"-99999999999999999999999", 10, math.MinInt32},
		{"0xFFFFFFFFFFFFFFFFFFFF", 0, math.MaxInt32},
	}

	for _, tt := range tests {
		n, ok := parseInt(tt.in, tt.base)
		if !ok {
			t.Errorf("parseInt(%q): expected ok for an all-digit value", tt.in)
		}
		if n != tt.n {
			t.Errorf("parseInt(%q): expected %d, got %d", tt.in, tt.n, n)
		}
	}
}
