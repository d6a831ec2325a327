// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

// fieldKind selects how a record value is converted
type fieldKind int

const (
	kindNumeric   fieldKind = iota // integer, scaled, one numeric sink
	kindText                       // raw text, one text sink
	kindFirmware                   // "150" -> "1.50", latched text sink
	kindProductID                  // PID lookup, latched text sink
	kindEnum                       // integer to numeric sink plus table text
)

// field describes one label of the dispatch table
type field struct {
	kind    fieldKind
	convert func(n int64) float64
	numeric SensorID
	text    SensorID
	lookup  func(n int64) string
	auto    bool // parse with base prefix detection
}

// base returns the parse base for the field's numeric text
func (f field) base() int {
	if f.auto {
		return 0
	}
	return 10
}

func raw(n int64) float64 { return float64(n) }

func milli(n int64) float64 { return float64(n) / 1000 }

func deci(n int64) float64 { return float64(n) / 10 }

func tenfold(n int64) float64 { return float64(n) * 10 }

func minutes(n int64) float64 { return float64(n / 60) }

func scaled(id SensorID, convert func(int64) float64) field {
	return field{kind: kindNumeric, convert: convert, numeric: id}
}

// fields maps VE.Direct labels to their conversion and sinks.
//
// Device units (VE.Direct-Protocol-3.32 pages 5-7): voltages in mV, currents
// in mA, charges in mAh, SOC in per mille, H9 in seconds and the H17-H22
// energy counters in 0.01 kWh.
var fields = map[string]field{
	"V":    scaled(BatteryVoltage, milli),
	"I":    scaled(BatteryCurrent, milli),
	"IL":   scaled(LoadCurrent, milli),
	"VPV":  scaled(PanelVoltage, milli),
	"PPV":  scaled(PanelPower, raw),
	"P":    scaled(InstantaneousPower, raw),
	"CE":   scaled(ConsumedAmpHours, milli),
	"SOC":  scaled(StateOfCharge, deci),
	"TTG":  scaled(TimeToGo, raw),
	"H1":   scaled(DepthOfTheDeepestDischarge, milli),
	"H2":   scaled(DepthOfTheLastDischarge, milli),
	"H7":   scaled(MinBatteryVoltage, milli),
	"H8":   scaled(MaxBatteryVoltage, milli),
	"H9":   scaled(LastFullCharge, minutes),
	"H17":  scaled(AmountOfDischargedEnergy, tenfold),
	"H18":  scaled(AmountOfChargedEnergy, tenfold),
	"H19":  scaled(YieldTotal, tenfold),
	"H20":  scaled(YieldToday, tenfold),
	"H21":  scaled(MaxPowerToday, raw),
	"H22":  scaled(YieldYesterday, tenfold),
	"H23":  scaled(MaxPowerYesterday, raw),
	"HSDS": scaled(DayNumber, raw),

	"BMV":   {kind: kindText, text: BMV},
	"Alarm": {kind: kindText, text: BMVAlarm},
	"FW":    {kind: kindFirmware, text: FirmwareVersion},
	"PID":   {kind: kindProductID, text: DeviceType, auto: true},

	"CS":   {kind: kindEnum, convert: raw, numeric: ChargingModeID, text: ChargingMode, lookup: ChargingModeText},
	"ERR":  {kind: kindEnum, convert: raw, numeric: ErrorCode, text: ErrorText, lookup: ErrorCodeText},
	"MPPT": {kind: kindEnum, convert: raw, numeric: TrackingModeID, text: TrackingMode, lookup: TrackingModeText},
}

// LabelSensors returns the sensor ids a label publishes to, nil for
// unsupported labels
func LabelSensors(label string) []SensorID {
	f, ok := fields[label]
	if !ok {
		return nil
	}
	var ids []SensorID
	if f.numeric != "" {
		ids = append(ids, f.numeric)
	}
	if f.text != "" {
		ids = append(ids, f.text)
	}
	return ids
}

// Labels returns every supported label
func Labels() []string {
	labels := make([]string, 0, len(fields))
	for label := range fields {
		labels = append(labels, label)
	}
	return labels
}
