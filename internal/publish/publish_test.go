// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package publish

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/solstat/internal/config"
	"github.com/Thermoquad/solstat/pkg/vedirect"
)

type mockMsg struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// mockClient records publishes instead of talking to a broker
type mockClient struct {
	mu           sync.Mutex
	pub          []mockMsg
	err          error
	stall        bool
	gate         chan struct{} // Publish waits for it when set
	connected    bool
	disconnected bool
}

func (c *mockClient) Connect() mqtt.Token {
	c.connected = true
	return mockToken{err: c.err, stall: c.stall}
}

func (c *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	}
	c.pub = append(c.pub, mockMsg{topic, qos, retained, b})
	return mockToken{err: c.err, stall: c.stall}
}

func (c *mockClient) Disconnect(uint) { c.disconnected = true }

func (c *mockClient) messages() []mockMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]mockMsg(nil), c.pub...)
}

type mockToken struct {
	err   error
	stall bool
}

func (t mockToken) Wait() bool                     { return !t.stall }
func (t mockToken) WaitTimeout(time.Duration) bool { return !t.stall }
func (t mockToken) Error() error                   { return t.err }

func testConfig(format string) config.MQTT {
	cfg := config.Default().MQTT
	cfg.Broker = "tcp://localhost:1883"
	cfg.Format = format
	cfg.Timeout = 10 * time.Millisecond
	return cfg
}

func newTestPublisher(format string) (*Publisher, *mockClient) {
	client := &mockClient{}
	p := New(client, testConfig(format), zerolog.Nop())
	p.now = func() time.Time { return time.Unix(1700000000, 0) }
	return p, client
}

func TestTopics(t *testing.T) {
	cfg := testConfig(config.FormatPlain)
	assert.Equal(t, "solstat/sensor/battery_voltage/state", StateTopic(cfg, vedirect.BatteryVoltage))
	assert.Equal(t, "solstat/status", StatusTopic(cfg))
	assert.Equal(t, "homeassistant/sensor/victron/battery_voltage/config", DiscoveryTopic(cfg, vedirect.BatteryVoltage))
}

func TestPublishPlain(t *testing.T) {
	p, client := newTestPublisher(config.FormatPlain)
	catalog := vedirect.Catalog()

	require.NoError(t, p.PublishNumeric(catalog[vedirect.BatteryVoltage], 12.6))
	require.NoError(t, p.PublishText(catalog[vedirect.ChargingMode], "Bulk"))

	msgs := client.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "solstat/sensor/battery_voltage/state", msgs[0].Topic)
	assert.Equal(t, "12.6", string(msgs[0].Payload))
	assert.True(t, msgs[0].Retained)
	assert.Equal(t, "Bulk", string(msgs[1].Payload))
}

func TestPublishJSON(t *testing.T) {
	p, client := newTestPublisher(config.FormatJSON)

	require.NoError(t, p.PublishNumeric(vedirect.Catalog()[vedirect.StateOfCharge], 95))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(client.messages()[0].Payload, &body))
	assert.Equal(t, "state_of_charge", body["sensor"])
	assert.Equal(t, 95.0, body["value"])
	assert.Equal(t, "%", body["unit"])
	assert.Equal(t, 1700000000.0, body["ts"])
}

func TestPublishCBOR(t *testing.T) {
	p, client := newTestPublisher(config.FormatCBOR)

	require.NoError(t, p.PublishText(vedirect.Catalog()[vedirect.DeviceType], "SmartShunt"))

	var body struct {
		Sensor string `cbor:"sensor"`
		Value  string `cbor:"value"`
		TS     int64  `cbor:"ts"`
	}
	require.NoError(t, cbor.Unmarshal(client.messages()[0].Payload, &body))
	assert.Equal(t, "device_type", body.Sensor)
	assert.Equal(t, "SmartShunt", body.Value)
	assert.Equal(t, int64(1700000000), body.TS)
}

func TestEncodeStateUnknownFormat(t *testing.T) {
	_, err := EncodeState("xml", statePayload{})
	assert.Error(t, err)
}

func TestPublishErrors(t *testing.T) {
	p, client := newTestPublisher(config.FormatPlain)
	info := vedirect.Catalog()[vedirect.BatteryVoltage]

	client.err = errors.New("not connected")
	err := p.PublishNumeric(info, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")

	client.err = nil
	client.stall = true
	assert.True(t, errors.Is(p.PublishNumeric(info, 1), ErrTimeout))
	assert.True(t, errors.Is(p.Connect(), ErrTimeout))
}

func TestAttach(t *testing.T) {
	p, client := newTestPublisher(config.FormatPlain)
	sensors, err := vedirect.NewSensorSet(vedirect.BatteryVoltage, vedirect.ChargingMode)
	require.NoError(t, err)

	p.Attach(sensors)

	in := vedirect.NewInterpreter(sensors, zerolog.Nop(), nil)
	in.Interpret("V", "12600")
	in.Interpret("CS", "5")
	in.Interpret("I", "1000") // not configured

	// Close flushes the queue before the offline status
	p.Close()

	msgs := client.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "solstat/sensor/battery_voltage/state", msgs[0].Topic)
	assert.Equal(t, "12.6", string(msgs[0].Payload))
	assert.Equal(t, "solstat/sensor/charging_mode/state", msgs[1].Topic)
	assert.Equal(t, "Float", string(msgs[1].Payload))
	assert.Equal(t, "solstat/status", msgs[2].Topic)

	published, failed := p.Counts()
	assert.Equal(t, uint64(2), published)
	assert.Equal(t, uint64(0), failed)
}

func TestAttachCountsFailures(t *testing.T) {
	p, client := newTestPublisher(config.FormatPlain)
	client.err = errors.New("broken pipe")
	sensors, _ := vedirect.NewSensorSet(vedirect.BatteryVoltage)
	p.Attach(sensors)

	s, _ := sensors.Sensor(vedirect.BatteryVoltage)
	s.PublishState(12)
	p.Close()

	_, failed := p.Counts()
	assert.Equal(t, uint64(1), failed)
}

func TestAttachDoesNotWaitForBroker(t *testing.T) {
	p, client := newTestPublisher(config.FormatPlain)
	client.gate = make(chan struct{})
	sensors, _ := vedirect.NewSensorSet(vedirect.BatteryVoltage)
	p.Attach(sensors)
	s, _ := sensors.Sensor(vedirect.BatteryVoltage)

	total := QueueSize + 10
	done := make(chan struct{})
	go func() {
		for i := 0; i < total; i++ {
			s.PublishState(float64(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Sensor callbacks blocked on a stalled broker")
	}

	// One state is in flight, the rest beyond the queue are dropped
	_, failed := p.Counts()
	assert.True(t, failed >= 9, "expected dropped states, got %d", failed)

	close(client.gate)
	p.Close()

	published, failed := p.Counts()
	assert.Equal(t, uint64(total), published+failed)
	msgs := client.messages()
	assert.Equal(t, "solstat/status", msgs[len(msgs)-1].Topic)
}

func TestAttachAfterClose(t *testing.T) {
	p, client := newTestPublisher(config.FormatPlain)
	p.Close()

	sensors, _ := vedirect.NewSensorSet(vedirect.BatteryVoltage)
	p.Attach(sensors)
	s, _ := sensors.Sensor(vedirect.BatteryVoltage)
	s.PublishState(12)
	p.Close()

	require.Len(t, client.messages(), 1)
	published, failed := p.Counts()
	assert.Equal(t, uint64(0), published+failed)
}

func TestConnectAndClose(t *testing.T) {
	p, client := newTestPublisher(config.FormatPlain)

	require.NoError(t, p.Connect())
	assert.True(t, client.connected)

	p.Close()
	msgs := client.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "solstat/status", msgs[0].Topic)
	assert.Equal(t, StatusOffline, string(msgs[0].Payload))
	assert.True(t, msgs[0].Retained)
	assert.True(t, client.disconnected)
}

func TestNewClientOptions(t *testing.T) {
	cfg := testConfig(config.FormatPlain)
	cfg.Username = "solar"
	opts := NewClientOptions(cfg, zerolog.Nop())

	assert.Equal(t, "solstat", opts.ClientID)
	assert.Equal(t, "solar", opts.Username)
	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "solstat/status", opts.WillTopic)
	assert.Equal(t, []byte(StatusOffline), opts.WillPayload)
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "localhost:1883", opts.Servers[0].Host)
}

func TestDiscovery(t *testing.T) {
	p, client := newTestPublisher(config.FormatJSON)
	sensors, err := vedirect.NewSensorSet(vedirect.YieldToday, vedirect.BatteryVoltage, vedirect.DeviceType)
	require.NoError(t, err)
	dt, _ := sensors.TextSensor(vedirect.DeviceType)
	dt.PublishState("SmartSolar MPPT 75/15")

	require.NoError(t, p.PublishDiscovery(sensors))

	msgs := client.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "homeassistant/sensor/victron/yield_today/config", msgs[0].Topic)
	assert.True(t, msgs[0].Retained)

	var dc DiscoveryConfig
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &dc))
	assert.Equal(t, "victron_yield_today", dc.UniqueID)
	assert.Equal(t, "solstat/sensor/yield_today/state", dc.StateTopic)
	assert.Equal(t, "Wh", dc.Unit)
	assert.Equal(t, "total_increasing", dc.StateClass)
	assert.Equal(t, "{{ value_json.value }}", dc.ValueTemplate)
	assert.Equal(t, "SmartSolar MPPT 75/15", dc.Device.Model)

	require.NoError(t, json.Unmarshal(msgs[1].Payload, &dc))
	assert.Equal(t, "measurement", dc.StateClass)

	var text DiscoveryConfig
	require.NoError(t, json.Unmarshal(msgs[2].Payload, &text))
	assert.Empty(t, text.StateClass)
	assert.Empty(t, text.Unit)
}
