// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package publish forwards sensor states to an MQTT broker.
package publish

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/solstat/internal/config"
	"github.com/Thermoquad/solstat/pkg/vedirect"
)

// ErrTimeout is returned when the broker does not acknowledge in time
var ErrTimeout = errors.New("mqtt: operation timed out")

// QueueSize bounds the states waiting for the broker. States arriving while
// the queue is full are dropped and counted as failed.
const QueueSize = 256

// Availability payloads published on <prefix>/status
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Client is the part of mqtt.Client the publisher needs
type Client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// statePayload is the json and cbor message body
type statePayload struct {
	Sensor    string      `json:"sensor" cbor:"sensor"`
	Value     interface{} `json:"value" cbor:"value"`
	Unit      string      `json:"unit,omitempty" cbor:"unit,omitempty"`
	Timestamp int64       `json:"ts" cbor:"ts"`
}

// pendingState is a sensor state waiting in the publish queue
type pendingState struct {
	info  vedirect.SensorInfo
	value interface{} // float64 or string
}

// Publisher publishes sensor states as MQTT messages
type Publisher struct {
	client Client
	cfg    config.MQTT
	log    zerolog.Logger
	now    func() time.Time

	queue   chan pendingState
	done    chan struct{}
	started sync.Once

	mu        sync.Mutex
	closed    bool
	published uint64
	failed    uint64
}

// NewClientOptions translates the configuration into paho client options.
// The last will marks the bridge offline.
func NewClientOptions(cfg config.MQTT, log zerolog.Logger) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout).
		SetKeepAlive(30*time.Second).
		SetWill(StatusTopic(cfg), StatusOffline, byte(cfg.QoS), true).
		SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}).
		SetOnConnectHandler(func(c mqtt.Client) {
			log.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
			c.Publish(StatusTopic(cfg), byte(cfg.QoS), true, StatusOnline)
		}).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		})
	return opts
}

// New creates a publisher on top of client
func New(client Client, cfg config.MQTT, log zerolog.Logger) *Publisher {
	return &Publisher{
		client: client,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		queue:  make(chan pendingState, QueueSize),
		done:   make(chan struct{}),
	}
}

// StateTopic returns the topic a sensor state is published on
func StateTopic(cfg config.MQTT, id vedirect.SensorID) string {
	return fmt.Sprintf("%s/sensor/%s/state", cfg.TopicPrefix, id)
}

// StatusTopic returns the availability topic
func StatusTopic(cfg config.MQTT) string {
	return cfg.TopicPrefix + "/status"
}

// Connect connects to the broker and waits for the acknowledgement
func (p *Publisher) Connect() error {
	if err := p.wait(p.client.Connect()); err != nil {
		return fmt.Errorf("connect to %s: %w", p.cfg.Broker, err)
	}
	return nil
}

// Close flushes queued states, publishes the offline status and disconnects
func (p *Publisher) Close() {
	p.mu.Lock()
	wasClosed := p.closed
	p.closed = true
	p.mu.Unlock()
	if wasClosed {
		return
	}

	close(p.queue)
	// Without a worker, done is closed here
	p.started.Do(func() { close(p.done) })
	<-p.done

	if err := p.wait(p.client.Publish(StatusTopic(p.cfg), byte(p.cfg.QoS), true, StatusOffline)); err != nil {
		p.log.Debug().Err(err).Msg("Failed to publish offline status")
	}
	p.client.Disconnect(250)
}

// Attach subscribes the publisher to every sensor of the set. States are
// queued and published by a background worker, so sensor callbacks never
// wait for the broker.
func (p *Publisher) Attach(sensors *vedirect.SensorSet) {
	p.started.Do(func() { go p.worker() })

	for _, id := range sensors.IDs() {
		info, _ := sensors.Info(id)
		if sensor, ok := sensors.Sensor(id); ok {
			sensor.OnState(func(v float64) {
				p.enqueue(pendingState{info: info, value: v})
			})
		}
		if sensor, ok := sensors.TextSensor(id); ok {
			sensor.OnState(func(v string) {
				p.enqueue(pendingState{info: info, value: v})
			})
		}
	}
}

func (p *Publisher) enqueue(st pendingState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- st:
	default:
		p.failed++
		p.log.Debug().Str("sensor", string(st.info.ID)).Msg("Publish queue full, state dropped")
	}
}

func (p *Publisher) worker() {
	defer close(p.done)
	for st := range p.queue {
		var err error
		switch v := st.value.(type) {
		case float64:
			err = p.PublishNumeric(st.info, v)
		case string:
			err = p.PublishText(st.info, v)
		}
		p.report(st.info.ID, err)
	}
}

func (p *Publisher) report(id vedirect.SensorID, err error) {
	p.mu.Lock()
	if err != nil {
		p.failed++
	} else {
		p.published++
	}
	p.mu.Unlock()

	if err != nil {
		p.log.Warn().Err(err).Str("sensor", string(id)).Msg("Publish failed")
	}
}

// Counts returns the number of published and failed messages
func (p *Publisher) Counts() (published, failed uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.failed
}

// PublishNumeric publishes one numeric state
func (p *Publisher) PublishNumeric(info vedirect.SensorInfo, v float64) error {
	if p.cfg.Format == config.FormatPlain {
		return p.publish(StateTopic(p.cfg, info.ID), []byte(strconv.FormatFloat(v, 'f', -1, 64)))
	}
	return p.publishStructured(info, v)
}

// PublishText publishes one text state
func (p *Publisher) PublishText(info vedirect.SensorInfo, v string) error {
	if p.cfg.Format == config.FormatPlain {
		return p.publish(StateTopic(p.cfg, info.ID), []byte(v))
	}
	return p.publishStructured(info, v)
}

func (p *Publisher) publishStructured(info vedirect.SensorInfo, v interface{}) error {
	payload, err := EncodeState(p.cfg.Format, statePayload{
		Sensor:    string(info.ID),
		Value:     v,
		Unit:      info.Unit,
		Timestamp: p.now().Unix(),
	})
	if err != nil {
		return err
	}
	return p.publish(StateTopic(p.cfg, info.ID), payload)
}

// EncodeState marshals a state body in the json or cbor format
func EncodeState(format string, body interface{}) ([]byte, error) {
	switch format {
	case config.FormatJSON:
		return json.Marshal(body)
	case config.FormatCBOR:
		return cbor.Marshal(body)
	default:
		return nil, fmt.Errorf("unsupported payload format %q", format)
	}
}

func (p *Publisher) publish(topic string, payload []byte) error {
	if err := p.wait(p.client.Publish(topic, byte(p.cfg.QoS), p.cfg.Retain, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.log.Trace().Str("topic", topic).Bytes("payload", payload).Msg("Published")
	return nil
}

func (p *Publisher) wait(token mqtt.Token) error {
	if !token.WaitTimeout(p.cfg.Timeout) {
		return ErrTimeout
	}
	return token.Error()
}
