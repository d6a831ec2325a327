// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the solstat TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Thermoquad/solstat/internal/logging"
	"github.com/Thermoquad/solstat/pkg/vedirect"
)

// ErrInvalid is wrapped by every validation error
var ErrInvalid = errors.New("invalid configuration")

// Payload formats accepted by [mqtt] format
const (
	FormatPlain = "plain"
	FormatJSON  = "json"
	FormatCBOR  = "cbor"
)

// Config is the complete runtime configuration
type Config struct {
	Connection Connection
	Decoder    Decoder
	Sensors    Sensors
	MQTT       MQTT
	Log        Log
}

// Connection selects the byte transport. File wins over URL, URL over Port.
type Connection struct {
	File        string // Captured stream to replay
	Port        string
	Baud        int
	URL         string
	Username    string
	NoSSLVerify bool
}

// Decoder holds the polling component timing
type Decoder struct {
	Timeout      time.Duration
	TickInterval time.Duration
}

// Sensors selects and names the published sensors.
// An empty Enabled list means every sensor.
type Sensors struct {
	Enabled []string
	Names   map[string]string
}

// MQTT configures the publish sink
type MQTT struct {
	Broker          string
	ClientID        string
	Username        string
	Password        string
	TopicPrefix     string
	Format          string
	QoS             int
	Retain          bool
	Discovery       bool
	DiscoveryPrefix string
	NodeID          string
	Timeout         time.Duration
}

// Log configures logging
type Log struct {
	Level string
	JSON  bool
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Connection: Connection{
			Baud: vedirect.DefaultBaudRate,
		},
		Decoder: Decoder{
			Timeout:      vedirect.DefaultTimeout,
			TickInterval: vedirect.DefaultTickInterval,
		},
		Sensors: Sensors{
			Names: map[string]string{},
		},
		MQTT: MQTT{
			ClientID:        "solstat",
			TopicPrefix:     "solstat",
			Format:          FormatPlain,
			QoS:             0,
			Retain:          true,
			DiscoveryPrefix: "homeassistant",
			NodeID:          "victron",
			Timeout:         5 * time.Second,
		},
		Log: Log{
			Level: "info",
		},
	}
}

type fileConfig struct {
	Connection struct {
		File        string `toml:"file"`
		Port        string `toml:"port"`
		Baud        int    `toml:"baud"`
		URL         string `toml:"url"`
		Username    string `toml:"username"`
		NoSSLVerify bool   `toml:"no_ssl_verify"`
	} `toml:"connection"`

	Decoder struct {
		TimeoutMS int64 `toml:"timeout_ms"`
		TickMS    int64 `toml:"tick_ms"`
	} `toml:"decoder"`

	Sensors struct {
		Enabled []string          `toml:"enabled"`
		Names   map[string]string `toml:"names"`
	} `toml:"sensors"`

	MQTT struct {
		Broker          string `toml:"broker"`
		ClientID        string `toml:"client_id"`
		Username        string `toml:"username"`
		Password        string `toml:"password"`
		TopicPrefix     string `toml:"topic_prefix"`
		Format          string `toml:"format"`
		QoS             int    `toml:"qos"`
		Retain          bool   `toml:"retain"`
		Discovery       bool   `toml:"discovery"`
		DiscoveryPrefix string `toml:"discovery_prefix"`
		NodeID          string `toml:"node_id"`
		TimeoutMS       int64  `toml:"timeout_ms"`
	} `toml:"mqtt"`

	Log struct {
		Level string `toml:"level"`
		JSON  bool   `toml:"json"`
	} `toml:"log"`
}

// Load reads path and overlays the keys it defines onto Default().
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
	}

	c := &cfg.Connection
	if meta.IsDefined("connection", "file") {
		c.File = strings.TrimSpace(raw.Connection.File)
	}
	if meta.IsDefined("connection", "port") {
		c.Port = strings.TrimSpace(raw.Connection.Port)
	}
	if meta.IsDefined("connection", "baud") {
		c.Baud = raw.Connection.Baud
	}
	if meta.IsDefined("connection", "url") {
		c.URL = strings.TrimSpace(raw.Connection.URL)
	}
	if meta.IsDefined("connection", "username") {
		c.Username = raw.Connection.Username
	}
	if meta.IsDefined("connection", "no_ssl_verify") {
		c.NoSSLVerify = raw.Connection.NoSSLVerify
	}

	if meta.IsDefined("decoder", "timeout_ms") {
		cfg.Decoder.Timeout = time.Duration(raw.Decoder.TimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("decoder", "tick_ms") {
		cfg.Decoder.TickInterval = time.Duration(raw.Decoder.TickMS) * time.Millisecond
	}

	if meta.IsDefined("sensors", "enabled") {
		cfg.Sensors.Enabled = normalizeIDs(raw.Sensors.Enabled)
	}
	if meta.IsDefined("sensors", "names") {
		for id, name := range raw.Sensors.Names {
			cfg.Sensors.Names[strings.TrimSpace(id)] = name
		}
	}

	m := &cfg.MQTT
	if meta.IsDefined("mqtt", "broker") {
		m.Broker = strings.TrimSpace(raw.MQTT.Broker)
	}
	if meta.IsDefined("mqtt", "client_id") {
		m.ClientID = strings.TrimSpace(raw.MQTT.ClientID)
	}
	if meta.IsDefined("mqtt", "username") {
		m.Username = raw.MQTT.Username
	}
	if meta.IsDefined("mqtt", "password") {
		m.Password = raw.MQTT.Password
	}
	if meta.IsDefined("mqtt", "topic_prefix") {
		m.TopicPrefix = strings.Trim(strings.TrimSpace(raw.MQTT.TopicPrefix), "/")
	}
	if meta.IsDefined("mqtt", "format") {
		m.Format = strings.ToLower(strings.TrimSpace(raw.MQTT.Format))
	}
	if meta.IsDefined("mqtt", "qos") {
		m.QoS = raw.MQTT.QoS
	}
	if meta.IsDefined("mqtt", "retain") {
		m.Retain = raw.MQTT.Retain
	}
	if meta.IsDefined("mqtt", "discovery") {
		m.Discovery = raw.MQTT.Discovery
	}
	if meta.IsDefined("mqtt", "discovery_prefix") {
		m.DiscoveryPrefix = strings.Trim(strings.TrimSpace(raw.MQTT.DiscoveryPrefix), "/")
	}
	if meta.IsDefined("mqtt", "node_id") {
		m.NodeID = strings.TrimSpace(raw.MQTT.NodeID)
	}
	if meta.IsDefined("mqtt", "timeout_ms") {
		m.Timeout = time.Duration(raw.MQTT.TimeoutMS) * time.Millisecond
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "json") {
		cfg.Log.JSON = raw.Log.JSON
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field constraints
func (cfg Config) Validate() error {
	if cfg.Connection.Baud <= 0 {
		return fmt.Errorf("%w: connection.baud must be positive, got %d", ErrInvalid, cfg.Connection.Baud)
	}
	if cfg.Connection.URL != "" {
		u, err := url.Parse(cfg.Connection.URL)
		if err != nil {
			return fmt.Errorf("%w: connection.url: %v", ErrInvalid, err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("%w: connection.url scheme %q (use ws:// or wss://)", ErrInvalid, u.Scheme)
		}
	}

	if cfg.Decoder.Timeout <= 0 {
		return fmt.Errorf("%w: decoder.timeout_ms must be positive", ErrInvalid)
	}
	if cfg.Decoder.TickInterval <= 0 {
		return fmt.Errorf("%w: decoder.tick_ms must be positive", ErrInvalid)
	}
	if cfg.Decoder.TickInterval >= cfg.Decoder.Timeout {
		return fmt.Errorf("%w: decoder.tick_ms (%s) must be below decoder.timeout_ms (%s)",
			ErrInvalid, cfg.Decoder.TickInterval, cfg.Decoder.Timeout)
	}

	if _, err := cfg.SensorIDs(); err != nil {
		return err
	}
	catalog := vedirect.Catalog()
	for id := range cfg.Sensors.Names {
		if _, ok := catalog[vedirect.SensorID(id)]; !ok {
			return fmt.Errorf("%w: sensors.names: unknown sensor %q", ErrInvalid, id)
		}
	}

	switch cfg.MQTT.Format {
	case FormatPlain, FormatJSON, FormatCBOR:
	default:
		return fmt.Errorf("%w: mqtt.format %q (use plain, json or cbor)", ErrInvalid, cfg.MQTT.Format)
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		return fmt.Errorf("%w: mqtt.qos must be 0, 1 or 2, got %d", ErrInvalid, cfg.MQTT.QoS)
	}
	if cfg.MQTT.Discovery && cfg.MQTT.Format == FormatCBOR {
		return fmt.Errorf("%w: mqtt.discovery needs the plain or json format", ErrInvalid)
	}
	if cfg.MQTT.TopicPrefix == "" {
		return fmt.Errorf("%w: mqtt.topic_prefix must not be empty", ErrInvalid)
	}
	if cfg.MQTT.Timeout <= 0 {
		return fmt.Errorf("%w: mqtt.timeout_ms must be positive", ErrInvalid)
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	return nil
}

// SensorIDs returns the enabled sensor ids, nil meaning all of them
func (cfg Config) SensorIDs() ([]vedirect.SensorID, error) {
	if len(cfg.Sensors.Enabled) == 0 {
		return nil, nil
	}
	catalog := vedirect.Catalog()
	ids := make([]vedirect.SensorID, 0, len(cfg.Sensors.Enabled))
	for _, name := range cfg.Sensors.Enabled {
		id := vedirect.SensorID(name)
		if _, ok := catalog[id]; !ok {
			return nil, fmt.Errorf("%w: sensors.enabled: unknown sensor %q", ErrInvalid, name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// NewSensorSet builds the sensor set selected by the configuration and
// applies the name overrides
func (cfg Config) NewSensorSet() (*vedirect.SensorSet, error) {
	ids, err := cfg.SensorIDs()
	if err != nil {
		return nil, err
	}
	sensors, err := vedirect.NewSensorSet(ids...)
	if err != nil {
		return nil, err
	}
	for id, name := range cfg.Sensors.Names {
		// Overrides for disabled sensors are ignored
		_ = sensors.Rename(vedirect.SensorID(id), name)
	}
	return sensors, nil
}

func normalizeIDs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, id := range in {
		v := strings.TrimSpace(id)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
