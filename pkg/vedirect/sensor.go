// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import "sync"

// NumericSink accepts numeric sensor states
type NumericSink interface {
	PublishState(v float64)
	HasState() bool
}

// TextSink accepts text sensor states
type TextSink interface {
	PublishState(v string)
	HasState() bool
}

// Sensor is an in-memory NumericSink that remembers its last state and
// notifies subscribers on every publish
type Sensor struct {
	ID   SensorID
	Info SensorInfo

	mu        sync.RWMutex
	state     float64
	hasState  bool
	callbacks []func(float64)
}

// NewSensor creates a sensor for id using its catalog metadata
func NewSensor(id SensorID) *Sensor {
	return &Sensor{ID: id, Info: Catalog()[id]}
}

// PublishState stores v and runs the state callbacks
func (s *Sensor) PublishState(v float64) {
	s.mu.Lock()
	s.state = v
	s.hasState = true
	callbacks := s.callbacks
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(v)
	}
}

// HasState reports whether a state was ever published
func (s *Sensor) HasState() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasState
}

// State returns the last published state
func (s *Sensor) State() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.hasState
}

// OnState registers a callback run after every publish
func (s *Sensor) OnState(cb func(float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// TextSensor is the text counterpart of Sensor
type TextSensor struct {
	ID   SensorID
	Info SensorInfo

	mu        sync.RWMutex
	state     string
	hasState  bool
	callbacks []func(string)
}

// NewTextSensor creates a text sensor for id using its catalog metadata
func NewTextSensor(id SensorID) *TextSensor {
	return &TextSensor{ID: id, Info: Catalog()[id]}
}

// PublishState stores v and runs the state callbacks
func (s *TextSensor) PublishState(v string) {
	s.mu.Lock()
	s.state = v
	s.hasState = true
	callbacks := s.callbacks
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(v)
	}
}

// HasState reports whether a state was ever published
func (s *TextSensor) HasState() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasState
}

// State returns the last published state
func (s *TextSensor) State() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.hasState
}

// OnState registers a callback run after every publish
func (s *TextSensor) OnState(cb func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}
