package publisher

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jgoulah/gridload/internal/config"
	"github.com/jgoulah/gridload/pkg/models"
)

// mqttClient is the part of mqtt.Client the publisher uses
type mqttClient interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes alert events to an MQTT broker
type MQTT struct {
	client      mqttClient
	topicPrefix string
	timeout     time.Duration
}

// connectTimeout bounds how long NewMQTT waits for the broker
const connectTimeout = 10 * time.Second

// NewMQTT connects to the configured broker. It gives up when ctx is done or
// the broker has not answered within connectTimeout.
func NewMQTT(ctx context.Context, cfg config.MQTTConfig) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.GetClientID())
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if err := connect(ctx, client, connectTimeout); err != nil {
		client.Disconnect(0)
		return nil, err
	}

	return newMQTT(client, cfg.GetTopicPrefix()), nil
}

type connector interface {
	Connect() mqtt.Token
}

// connect waits for the first connection attempt to finish
func connect(ctx context.Context, c connector, timeout time.Duration) error {
	token := c.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("connecting to MQTT broker: %w", ctx.Err())
	case <-time.After(timeout):
		return fmt.Errorf("connecting to MQTT broker: timed out after %s", timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	return nil
}

func newMQTT(client mqttClient, topicPrefix string) *MQTT {
	return &MQTT{client: client, topicPrefix: topicPrefix, timeout: 10 * time.Second}
}

// Topic returns the topic alerts for a transformer are published on
func (p *MQTT) Topic(transformerID string) string {
	return fmt.Sprintf("%s/%s/alert", p.topicPrefix, transformerID)
}

// Notify publishes the event at QoS 1
func (p *MQTT) Notify(ctx context.Context, event models.AlertEvent) error {
	body, err := encode(event)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.Topic(event.TransformerID), 1, false, body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publishing to MQTT: %w", ctx.Err())
	case <-time.After(p.timeout):
		return fmt.Errorf("publishing to MQTT: timed out after %s", p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to MQTT: %w", err)
	}
	return nil
}

// Close disconnects from the MQTT broker
func (p *MQTT) Close() error {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	return nil
}
