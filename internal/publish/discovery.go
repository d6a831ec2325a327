// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package publish

import (
	"encoding/json"
	"fmt"

	"github.com/Thermoquad/solstat/internal/config"
	"github.com/Thermoquad/solstat/pkg/vedirect"
)

// discoveryDevice groups all sensors under one Home Assistant device
type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
}

// DiscoveryConfig is a Home Assistant MQTT sensor discovery message
type DiscoveryConfig struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	StateTopic        string          `json:"state_topic"`
	AvailabilityTopic string          `json:"availability_topic"`
	Unit              string          `json:"unit_of_measurement,omitempty"`
	DeviceClass       string          `json:"device_class,omitempty"`
	StateClass        string          `json:"state_class,omitempty"`
	ValueTemplate     string          `json:"value_template,omitempty"`
	Device            discoveryDevice `json:"device"`
}

// DiscoveryTopic returns the config topic of a sensor
func DiscoveryTopic(cfg config.MQTT, id vedirect.SensorID) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", cfg.DiscoveryPrefix, cfg.NodeID, id)
}

// NewDiscoveryConfig describes one sensor for Home Assistant
func NewDiscoveryConfig(cfg config.MQTT, info vedirect.SensorInfo) DiscoveryConfig {
	dc := DiscoveryConfig{
		Name:              info.Name,
		UniqueID:          fmt.Sprintf("%s_%s", cfg.NodeID, info.ID),
		StateTopic:        StateTopic(cfg, info.ID),
		AvailabilityTopic: StatusTopic(cfg),
		Unit:              info.Unit,
		DeviceClass:       info.DeviceClass,
		Device: discoveryDevice{
			Identifiers:  []string{cfg.NodeID},
			Name:         "Victron " + cfg.NodeID,
			Manufacturer: "Victron Energy",
		},
	}

	if !info.Text {
		switch info.DeviceClass {
		case "energy":
			dc.StateClass = "total_increasing"
		case "":
		default:
			dc.StateClass = "measurement"
		}
	}
	if cfg.Format == config.FormatJSON {
		dc.ValueTemplate = "{{ value_json.value }}"
	}
	return dc
}

// PublishDiscovery announces every sensor of the set. The device model is
// filled in when the device type is already known.
func (p *Publisher) PublishDiscovery(sensors *vedirect.SensorSet) error {
	model := ""
	if s, ok := sensors.TextSensor(vedirect.DeviceType); ok {
		model, _ = s.State()
	}

	for _, id := range sensors.IDs() {
		info, _ := sensors.Info(id)
		dc := NewDiscoveryConfig(p.cfg, info)
		dc.Device.Model = model

		payload, err := json.Marshal(dc)
		if err != nil {
			return fmt.Errorf("encode discovery for %s: %w", id, err)
		}
		topic := DiscoveryTopic(p.cfg, id)
		if err := p.wait(p.client.Publish(topic, byte(p.cfg.QoS), true, payload)); err != nil {
			return fmt.Errorf("publish discovery %s: %w", topic, err)
		}
	}

	p.log.Info().Int("sensors", len(sensors.IDs())).Str("prefix", p.cfg.DiscoveryPrefix).Msg("Published Home Assistant discovery")
	return nil
}
