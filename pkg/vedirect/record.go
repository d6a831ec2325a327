// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import "time"

// Record is one decoded label/value pair
type Record struct {
	Label     string
	Value     string
	Timestamp time.Time
}

// RecordHandler receives completed records
type RecordHandler interface {
	HandleRecord(r Record)
}

// RecordHandlerFunc adapts a plain function to RecordHandler
type RecordHandlerFunc func(r Record)

// HandleRecord calls f(r)
func (f RecordHandlerFunc) HandleRecord(r Record) {
	f(r)
}

// Handlers fans a record out to every non-nil handler in order
func Handlers(handlers ...RecordHandler) RecordHandler {
	return RecordHandlerFunc(func(r Record) {
		for _, h := range handlers {
			if h != nil {
				h.HandleRecord(r)
			}
		}
	})
}
