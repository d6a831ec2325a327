// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatRecord formats a record into a human-readable line
func FormatRecord(r Record) string {
	timestamp := r.Timestamp.Format("15:04:05.000")

	ids := LabelSensors(r.Label)
	if ids == nil {
		return fmt.Sprintf("[%s] %-8s %-20q (unsupported)\n", timestamp, r.Label, r.Value)
	}

	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return fmt.Sprintf("[%s] %-8s %-20q -> %s\n", timestamp, r.Label, r.Value, strings.Join(names, ", "))
}

// FormatValue renders a numeric state with its unit
func FormatValue(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if unit == "" {
		return s
	}
	return s + " " + unit
}

// FormatState renders one sensor state as "Name: value unit"
func FormatState(info SensorInfo, numeric float64, text string) string {
	if info.Text {
		return fmt.Sprintf("%s: %s", info.Name, text)
	}
	return fmt.Sprintf("%s: %s", info.Name, FormatValue(numeric, info.Unit))
}
