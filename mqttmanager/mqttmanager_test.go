package mqttmanager

import (
	"context"
	"encoding/json"
	"testing"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thomas-leister.de/greenhouse/configmanager"
	"thomas-leister.de/greenhouse/sensor"
	"thomas-leister.de/greenhouse/watering"
)

type fakeCommander struct {
	manual int
	status watering.Status
	err    error
}

func (f *fakeCommander) RequestManualWatering() error {
	f.manual++
	return f.err
}

func (f *fakeCommander) SetAutoWateringConfig(enabled bool, min, max float64) error {
	if err := watering.ValidateThresholds(min, max); err != nil {
		return err
	}
	f.status.AutoEnabled = enabled
	f.status.MinThreshold = min
	f.status.MaxThreshold = max
	return nil
}

func (f *fakeCommander) WateringState() (watering.Status, bool) {
	return f.status, true
}

func newTestClient(commander Commander) *MqttClient {
	config := configmanager.Default()
	config.Device.Name = "gh1"
	config.Mqtt.Host = "broker.local"
	config.Mqtt.TopicPrefix = ""
	config.ApplyDefaults()

	client := &MqttClient{}
	client.Init(&config, commander)
	return client
}

func TestInit(t *testing.T) {
	client := newTestClient(&fakeCommander{})
	assert.Equal(t, "greenhouse/gh1/telemetry", client.TelemetryTopic)
	assert.Equal(t, "greenhouse/gh1/commands", client.CommandTopic)
	assert.Equal(t, "tcp://broker.local:8883", client.brokerURL())

	client.Tls = true
	assert.Equal(t, "mqtts://broker.local:8883", client.brokerURL())
}

func TestParseCommand(t *testing.T) {
	command, err := ParseCommand([]byte(`{"command":"auto_config","enabled":false,"max_threshold":75}`))
	require.NoError(t, err)
	assert.Equal(t, CommandAutoConfig, command.Command)
	require.NotNil(t, command.Enabled)
	assert.False(t, *command.Enabled)
	assert.Nil(t, command.MinThreshold)
	assert.Equal(t, 75.0, *command.MaxThreshold)

	_, err = ParseCommand([]byte(`{"command":`))
	assert.Error(t, err)
}

func TestHandleCommand(t *testing.T) {
	commander := &fakeCommander{status: watering.Status{AutoEnabled: true, MinThreshold: 30, MaxThreshold: 60}}
	client := newTestClient(commander)

	require.NoError(t, client.HandleCommand(Command{Command: CommandWater}))
	assert.Equal(t, 1, commander.manual)

	commander.err = watering.ErrAlreadyWatering
	assert.ErrorIs(t, client.HandleCommand(Command{Command: CommandWater}), watering.ErrAlreadyWatering)

	min := 20.0
	require.NoError(t, client.HandleCommand(Command{Command: CommandAutoConfig, MinThreshold: &min}))
	assert.True(t, commander.status.AutoEnabled)
	assert.Equal(t, 20.0, commander.status.MinThreshold)
	assert.Equal(t, 60.0, commander.status.MaxThreshold)

	max := 10.0
	assert.ErrorIs(t, client.HandleCommand(Command{Command: CommandAutoConfig, MaxThreshold: &max}), watering.ErrInvalidThresholds)
	assert.Equal(t, 60.0, commander.status.MaxThreshold)

	assert.ErrorIs(t, client.HandleCommand(Command{Command: "reboot"}), ErrUnknownCommand)
}

func TestTelemetryJSON(t *testing.T) {
	payload, err := json.Marshal(Telemetry{Device: "gh1", Reading: sensor.Reading{Temperature: sensor.Float(20), Timestamp: 5}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"device":"gh1","temperature":20,"pressure":null,"light":null,"soil_moisture":null,"timestamp":5}`, string(payload))
}

type offlineClient struct {
	mqtt.Client
	published int
}

func (o *offlineClient) IsConnectionOpen() bool { return false }

func (o *offlineClient) Publish(string, byte, bool, interface{}) mqtt.Token {
	o.published++
	return nil
}

func TestPublishWhileDisconnected(t *testing.T) {
	client := newTestClient(&fakeCommander{})
	assert.ErrorIs(t, client.Publish(context.Background(), sensor.Reading{}), ErrNotConnected)

	offline := &offlineClient{}
	client.client = offline
	assert.ErrorIs(t, client.Publish(context.Background(), sensor.Reading{}), ErrNotConnected)
	assert.Equal(t, 0, offline.published)
}
