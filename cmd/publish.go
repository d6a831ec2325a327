// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/solstat/internal/config"
	"github.com/Thermoquad/solstat/internal/publish"
	"github.com/Thermoquad/solstat/pkg/vedirect"
)

// MQTTPasswordEnv overrides [mqtt] password
const MQTTPasswordEnv = "SOLSTAT_MQTT_PASSWORD"

var (
	mqttBroker    string
	mqttFormat    string
	mqttPrefix    string
	mqttDiscovery bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Bridge sensor states to an MQTT broker",
	Long: `Decode the stream and publish every sensor state to MQTT.

States are published on <topic_prefix>/sensor/<sensor id>/state as plain text,
JSON ({"sensor", "value", "unit", "ts"}) or CBOR with the same fields. The
bridge availability is published on <topic_prefix>/status (online/offline,
retained, offline set as last will).

With --discovery, Home Assistant MQTT discovery messages are published for
every enabled sensor, and again once the device type is known.

Broker settings come from the [mqtt] section of the configuration file. The
broker password may be given in the SOLSTAT_MQTT_PASSWORD environment variable.`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&mqttBroker, "broker", "", "MQTT broker URL (tcp://host:1883, ssl://host:8883)")
	publishCmd.Flags().StringVar(&mqttFormat, "format", "", "Payload format (plain, json, cbor)")
	publishCmd.Flags().StringVar(&mqttPrefix, "topic-prefix", "", "Topic prefix")
	publishCmd.Flags().BoolVar(&mqttDiscovery, "discovery", false, "Publish Home Assistant discovery messages")
}

func mqttConfig(cmd *cobra.Command, cfg config.Config) (config.Config, error) {
	flags := cmd.Flags()
	if flags.Changed("broker") {
		cfg.MQTT.Broker = mqttBroker
	}
	if flags.Changed("format") {
		cfg.MQTT.Format = strings.ToLower(mqttFormat)
	}
	if flags.Changed("topic-prefix") {
		cfg.MQTT.TopicPrefix = strings.Trim(mqttPrefix, "/")
	}
	if flags.Changed("discovery") {
		cfg.MQTT.Discovery = mqttDiscovery
	}
	if pw := os.Getenv(MQTTPasswordEnv); pw != "" {
		cfg.MQTT.Password = pw
	}

	if cfg.MQTT.Broker == "" {
		return cfg, fmt.Errorf("no MQTT broker: set [mqtt] broker or --broker")
	}
	return cfg, cfg.Validate()
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg, err = mqttConfig(cmd, cfg)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, nil, false)
	if err != nil {
		return err
	}

	client := mqtt.NewClient(publish.NewClientOptions(cfg.MQTT, log))
	publisher := publish.New(client, cfg.MQTT, log)
	if err := publisher.Connect(); err != nil {
		return err
	}
	defer publisher.Close()

	s, err := openSession(cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	s.sensors.Dump(log)
	publisher.Attach(s.sensors)

	if cfg.MQTT.Discovery {
		if err := publisher.PublishDiscovery(s.sensors); err != nil {
			return err
		}
		// Device type is latched, so this runs once
		if dt, ok := s.sensors.TextSensor(vedirect.DeviceType); ok {
			dt.OnState(func(string) {
				if err := publisher.PublishDiscovery(s.sensors); err != nil {
					log.Warn().Err(err).Msg("Discovery update failed")
				}
			})
		}
	}

	log.Info().Str("connection", s.connInfo).Str("broker", cfg.MQTT.Broker).Str("format", cfg.MQTT.Format).Msg("Publishing")

	ctx, cancel := signalContext()
	defer cancel()

	err = s.run(ctx)
	published, failed := publisher.Counts()
	log.Info().Uint64("published", published).Uint64("failed", failed).Msg("Stopped publishing")
	return err
}
