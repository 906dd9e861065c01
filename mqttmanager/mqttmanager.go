/*
 * MqttManager:
 * Publishes telemetry to <topic_prefix>/telemetry and receives
 * watering commands on <topic_prefix>/commands
 */

package mqttmanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"thomas-leister.de/greenhouse/configmanager"
	"thomas-leister.de/greenhouse/log"
	"thomas-leister.de/greenhouse/sensor"
	"thomas-leister.de/greenhouse/watering"
)

const (
	CommandWater      = "water"
	CommandAutoConfig = "auto_config"
)

var ErrUnknownCommand = errors.New("unknown command")

// ErrNotConnected is returned while the broker connection is down. paho would queue the message otherwise.
var ErrNotConnected = errors.New("mqtt broker not connected")

// Commander executes remote commands, usually the monitor.
type Commander interface {
	RequestManualWatering() error
	SetAutoWateringConfig(enabled bool, minThreshold, maxThreshold float64) error
	WateringState() (watering.Status, bool)
}

type MqttClient struct {
	Host           string
	Port           int
	Tls            bool
	Username       string
	Password       string
	Device         string
	TelemetryTopic string
	CommandTopic   string

	client    mqtt.Client
	commander Commander
}

type Telemetry struct {
	Device string `json:"device"`
	sensor.Reading
}

// Command is the JSON payload on the command topic. Omitted auto_config fields keep their current value.
type Command struct {
	Command      string   `json:"command"`
	Enabled      *bool    `json:"enabled,omitempty"`
	MinThreshold *float64 `json:"min_threshold,omitempty"`
	MaxThreshold *float64 `json:"max_threshold,omitempty"`
}

func ParseCommand(payload []byte) (Command, error) {
	var command Command
	if err := json.Unmarshal(payload, &command); err != nil {
		return command, fmt.Errorf("could not parse command: %w", err)
	}
	return command, nil
}

func (m *MqttClient) ConnectHandler(client mqtt.Client) {
	log.Infof("MQTT: Connected to %s", m.Host)

	// Subscribe on every (re)connect
	token := client.Subscribe(m.CommandTopic, 1, m.messageHandler)
	token.Wait()
	if err := token.Error(); err != nil {
		log.Errorf("MQTT: Could not subscribe to %s: %v", m.CommandTopic, err)
		return
	}
	log.Infof("MQTT: Subscribed to topic %s", m.CommandTopic)
}

func (m *MqttClient) ConnectLostHandler(client mqtt.Client, err error) {
	log.Warnf("MQTT: Connection lost: %v", err)
}

func (m *MqttClient) Init(config *configmanager.Config, commander Commander) {
	m.Host = config.Mqtt.Host
	m.Port = config.Mqtt.Port
	m.Tls = config.Mqtt.Tls
	m.Username = config.Mqtt.Username
	m.Password = config.Mqtt.Password
	m.Device = config.Device.Name
	m.TelemetryTopic = config.Mqtt.TopicPrefix + "/telemetry"
	m.CommandTopic = config.Mqtt.TopicPrefix + "/commands"
	m.commander = commander
}

func (m *MqttClient) brokerURL() string {
	scheme := "tcp"
	if m.Tls {
		scheme = "mqtts"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, m.Host, m.Port)
}

// Connect starts the client. Reconnects are handled by paho.
func (m *MqttClient) Connect() error {
	opts := mqtt.NewClientOptions()

	// Set options for connection
	opts.AddBroker(m.brokerURL())
	opts.SetClientID(fmt.Sprintf("greenhouse-%s-%s", m.Device, uuid.NewString()[:8]))
	opts.SetUsername(m.Username)
	opts.SetPassword(m.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)

	// Set callback functions
	opts.OnConnect = m.ConnectHandler
	opts.OnConnectionLost = m.ConnectLostHandler

	m.client = mqtt.NewClient(opts)
	token := m.client.Connect()
	if token.WaitTimeout(30*time.Second) && token.Error() != nil {
		return fmt.Errorf("could not connect to %s: %w", m.brokerURL(), token.Error())
	}
	return nil
}

func (m *MqttClient) Disconnect() {
	if m.client != nil {
		m.client.Disconnect(250)
	}
}

// Publish sends one reading as JSON to the telemetry topic
func (m *MqttClient) Publish(ctx context.Context, reading sensor.Reading) error {
	if m.client == nil || !m.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(Telemetry{Device: m.Device, Reading: reading})
	if err != nil {
		return fmt.Errorf("could not encode telemetry: %w", err)
	}

	token := m.client.Publish(m.TelemetryTopic, 0, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MqttClient) messageHandler(_ mqtt.Client, message mqtt.Message) {
	command, err := ParseCommand(message.Payload())
	if err != nil {
		log.Warnf("MQTT: %v", err)
		return
	}
	if err := m.HandleCommand(command); err != nil {
		log.Warnf("MQTT: Command %q rejected: %v", command.Command, err)
		return
	}
	log.Infof("MQTT: Command %q executed", command.Command)
}

// HandleCommand forwards a command to the commander
func (m *MqttClient) HandleCommand(command Command) error {
	switch command.Command {
	case CommandWater:
		return m.commander.RequestManualWatering()

	case CommandAutoConfig:
		current, _ := m.commander.WateringState()
		enabled, min, max := current.AutoEnabled, current.MinThreshold, current.MaxThreshold
		if command.Enabled != nil {
			enabled = *command.Enabled
		}
		if command.MinThreshold != nil {
			min = *command.MinThreshold
		}
		if command.MaxThreshold != nil {
			max = *command.MaxThreshold
		}
		return m.commander.SetAutoWateringConfig(enabled, min, max)

	default:
		return fmt.Errorf("%w %q", ErrUnknownCommand, command.Command)
	}
}
