// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import "math"

// parseInt reads the leading integer of s the way C atoi/strtol do: optional
// leading whitespace and sign, then as many digits of the given base as
// present. Base 0 selects 16 for a "0x" prefix, 8 for a leading "0" and 10
// otherwise. Out of range values saturate at the 32-bit int bounds. ok is
// false when s holds anything besides that integer.
func parseInt(s string, base int) (n int64, ok bool) {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}

	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}

	if base == 0 {
		switch {
		case i+1 < len(s) && s[i] == '0' && (s[i+1] == 'x' || s[i+1] == 'X') && i+2 < len(s) && digitValue(s[i+2]) < 16:
			base = 16
			i += 2
		case i < len(s) && s[i] == '0':
			base = 8
		default:
			base = 10
		}
	}

	limit := int64(math.MaxInt32)
	if neg {
		limit = -math.MinInt32
	}

	start := i
	for i < len(s) {
		v := digitValue(s[i])
		if v >= base {
			break
		}
		n = n*int64(base) + int64(v)
		if n > limit {
			n = limit
		}
		i++
	}

	if neg {
		n = -n
	}
	return n, i > start && i == len(s)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return 36
	}
}
