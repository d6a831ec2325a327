// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// SensorID names one output sink
type SensorID string

// Numeric sensors
const (
	BatteryVoltage             SensorID = "battery_voltage"
	BatteryCurrent             SensorID = "battery_current"
	LoadCurrent                SensorID = "load_current"
	PanelVoltage               SensorID = "panel_voltage"
	PanelPower                 SensorID = "panel_power"
	InstantaneousPower         SensorID = "instantaneous_power"
	ConsumedAmpHours           SensorID = "consumed_amp_hours"
	StateOfCharge              SensorID = "state_of_charge"
	TimeToGo                   SensorID = "time_to_go"
	DepthOfTheDeepestDischarge SensorID = "depth_of_the_deepest_discharge"
	DepthOfTheLastDischarge    SensorID = "depth_of_the_last_discharge"
	MinBatteryVoltage          SensorID = "min_battery_voltage"
	MaxBatteryVoltage          SensorID = "max_battery_voltage"
	LastFullCharge             SensorID = "last_full_charge"
	AmountOfDischargedEnergy   SensorID = "amount_of_discharged_energy"
	AmountOfChargedEnergy      SensorID = "amount_of_charged_energy"
	YieldTotal                 SensorID = "yield_total"
	YieldToday                 SensorID = "yield_today"
	MaxPowerToday              SensorID = "max_power_today"
	YieldYesterday             SensorID = "yield_yesterday"
	MaxPowerYesterday          SensorID = "max_power_yesterday"
	DayNumber                  SensorID = "day_number"
	ChargingModeID             SensorID = "charging_mode_id"
	ErrorCode                  SensorID = "error_code"
	TrackingModeID             SensorID = "tracking_mode_id"
)

// Text sensors
const (
	BMV             SensorID = "bmv"
	BMVAlarm        SensorID = "bmv_alarm"
	FirmwareVersion SensorID = "firmware_version"
	DeviceType      SensorID = "device_type"
	ChargingMode    SensorID = "charging_mode"
	ErrorText       SensorID = "error_text"
	TrackingMode    SensorID = "tracking_mode"
)

// SensorInfo describes a sensor for display and discovery
type SensorInfo struct {
	ID          SensorID
	Name        string
	Unit        string
	DeviceClass string // Home Assistant device class, empty if none
	Text        bool
}

var sensorCatalog = []SensorInfo{
	{ID: BatteryVoltage, Name: "Battery Voltage", Unit: "V", DeviceClass: "voltage"},
	{ID: BatteryCurrent, Name: "Battery Current", Unit: "A", DeviceClass: "current"},
	{ID: LoadCurrent, Name: "Load Current", Unit: "A", DeviceClass: "current"},
	{ID: PanelVoltage, Name: "Panel Voltage", Unit: "V", DeviceClass: "voltage"},
	{ID: PanelPower, Name: "Panel Power", Unit: "W", DeviceClass: "power"},
	{ID: InstantaneousPower, Name: "Instantaneous Power", Unit: "W", DeviceClass: "power"},
	{ID: ConsumedAmpHours, Name: "Consumed Amp Hours", Unit: "Ah"},
	{ID: StateOfCharge, Name: "State of Charge", Unit: "%", DeviceClass: "battery"},
	{ID: TimeToGo, Name: "Time to Go", Unit: "min", DeviceClass: "duration"},
	{ID: DepthOfTheDeepestDischarge, Name: "Depth of the Deepest Discharge", Unit: "Ah"},
	{ID: DepthOfTheLastDischarge, Name: "Depth of the Last Discharge", Unit: "Ah"},
	{ID: MinBatteryVoltage, Name: "Minimum Battery Voltage", Unit: "V", DeviceClass: "voltage"},
	{ID: MaxBatteryVoltage, Name: "Maximum Battery Voltage", Unit: "V", DeviceClass: "voltage"},
	{ID: LastFullCharge, Name: "Time Since Last Full Charge", Unit: "min", DeviceClass: "duration"},
	{ID: AmountOfDischargedEnergy, Name: "Discharged Energy", Unit: "Wh", DeviceClass: "energy"},
	{ID: AmountOfChargedEnergy, Name: "Charged Energy", Unit: "Wh", DeviceClass: "energy"},
	{ID: YieldTotal, Name: "Yield Total", Unit: "Wh", DeviceClass: "energy"},
	{ID: YieldToday, Name: "Yield Today", Unit: "Wh", DeviceClass: "energy"},
	{ID: MaxPowerToday, Name: "Max Power Today", Unit: "W", DeviceClass: "power"},
	{ID: YieldYesterday, Name: "Yield Yesterday", Unit: "Wh", DeviceClass: "energy"},
	{ID: MaxPowerYesterday, Name: "Max Power Yesterday", Unit: "W", DeviceClass: "power"},
	{ID: DayNumber, Name: "Day Number"},
	{ID: ChargingModeID, Name: "Charging Mode ID"},
	{ID: ErrorCode, Name: "Error Code"},
	{ID: TrackingModeID, Name: "Tracking Mode ID"},

	{ID: BMV, Name: "BMV Model", Text: true},
	{ID: BMVAlarm, Name: "BMV Alarm", Text: true},
	{ID: FirmwareVersion, Name: "Firmware Version", Text: true},
	{ID: DeviceType, Name: "Device Type", Text: true},
	{ID: ChargingMode, Name: "Charging Mode", Text: true},
	{ID: ErrorText, Name: "Error Text", Text: true},
	{ID: TrackingMode, Name: "Tracking Mode", Text: true},
}

var catalogByID = func() map[SensorID]SensorInfo {
	m := make(map[SensorID]SensorInfo, len(sensorCatalog))
	for _, info := range sensorCatalog {
		m[info.ID] = info
	}
	return m
}()

// Catalog returns the metadata of every known sensor keyed by id
func Catalog() map[SensorID]SensorInfo {
	return catalogByID
}

// CatalogIDs returns every known sensor id in display order
func CatalogIDs() []SensorID {
	ids := make([]SensorID, len(sensorCatalog))
	for i, info := range sensorCatalog {
		ids[i] = info.ID
	}
	return ids
}

// Sinks resolves sensor ids to sinks. Absent sinks are returned as nil.
type Sinks interface {
	Numeric(id SensorID) NumericSink
	Text(id SensorID) TextSink
}

// SensorSet is the registry of sensors a host wires to the interpreter
type SensorSet struct {
	numeric map[SensorID]*Sensor
	text    map[SensorID]*TextSensor
	order   []SensorID
}

// NewSensorSet creates sensors for the given ids, or for the whole catalog
// when no id is given
func NewSensorSet(ids ...SensorID) (*SensorSet, error) {
	if len(ids) == 0 {
		ids = CatalogIDs()
	}

	s := &SensorSet{
		numeric: make(map[SensorID]*Sensor),
		text:    make(map[SensorID]*TextSensor),
	}
	for _, id := range ids {
		info, ok := catalogByID[id]
		if !ok {
			return nil, fmt.Errorf("unknown sensor %q", id)
		}
		if s.has(id) {
			continue
		}
		if info.Text {
			s.text[id] = NewTextSensor(id)
		} else {
			s.numeric[id] = NewSensor(id)
		}
		s.order = append(s.order, id)
	}
	return s, nil
}

func (s *SensorSet) has(id SensorID) bool {
	_, n := s.numeric[id]
	_, t := s.text[id]
	return n || t
}

// Numeric returns the numeric sink for id, or nil
func (s *SensorSet) Numeric(id SensorID) NumericSink {
	if sensor, ok := s.numeric[id]; ok {
		return sensor
	}
	return nil
}

// Text returns the text sink for id, or nil
func (s *SensorSet) Text(id SensorID) TextSink {
	if sensor, ok := s.text[id]; ok {
		return sensor
	}
	return nil
}

// Sensor returns the concrete numeric sensor for id
func (s *SensorSet) Sensor(id SensorID) (*Sensor, bool) {
	sensor, ok := s.numeric[id]
	return sensor, ok
}

// TextSensor returns the concrete text sensor for id
func (s *SensorSet) TextSensor(id SensorID) (*TextSensor, bool) {
	sensor, ok := s.text[id]
	return sensor, ok
}

// IDs returns the configured sensor ids in creation order
func (s *SensorSet) IDs() []SensorID {
	return append([]SensorID(nil), s.order...)
}

// Rename overrides the display name of a configured sensor
func (s *SensorSet) Rename(id SensorID, name string) error {
	if sensor, ok := s.numeric[id]; ok {
		sensor.Info.Name = name
		return nil
	}
	if sensor, ok := s.text[id]; ok {
		sensor.Info.Name = name
		return nil
	}
	return fmt.Errorf("sensor %q not configured", id)
}

// Info returns the (possibly renamed) metadata of a configured sensor
func (s *SensorSet) Info(id SensorID) (SensorInfo, bool) {
	if sensor, ok := s.numeric[id]; ok {
		return sensor.Info, true
	}
	if sensor, ok := s.text[id]; ok {
		return sensor.Info, true
	}
	return SensorInfo{}, false
}

// Dump logs the configured sensors, numeric first, sorted by id
func (s *SensorSet) Dump(log zerolog.Logger) {
	numeric := make([]string, 0, len(s.numeric))
	for id := range s.numeric {
		numeric = append(numeric, string(id))
	}
	text := make([]string, 0, len(s.text))
	for id := range s.text {
		text = append(text, string(id))
	}
	sort.Strings(numeric)
	sort.Strings(text)

	log.Info().Int("numeric", len(numeric)).Int("text", len(text)).Msg("Victron sensors")
	for _, id := range numeric {
		info := s.numeric[SensorID(id)].Info
		log.Info().Str("id", id).Str("unit", info.Unit).Msgf("  Sensor %q", info.Name)
	}
	for _, id := range text {
		info := s.text[SensorID(id)].Info
		log.Info().Str("id", id).Msgf("  Text sensor %q", info.Name)
	}
}
