package telemetry

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// MQTTConfig holds broker settings.
type MQTTConfig struct {
	Broker   string
	ClientID string
	// ConnectTimeout bounds the initial connect and subscribe handshakes.
	ConnectTimeout time.Duration
	// PublishTimeout bounds each publish; zero waits for the transport to settle.
	PublishTimeout time.Duration
}

// Stats contains client statistics.
type Stats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
	Received  uint64 `json:"received"`
}

// MQTTClient publishes telemetry at QoS 0 and can listen on a topic.
type MQTTClient struct {
	cfg    MQTTConfig
	client mqtt.Client
	log    logrus.FieldLogger

	mu        sync.RWMutex
	published uint64
	errors    uint64
	received  uint64
	connected bool
}

// NewMQTTClient creates a client for cfg. Call Connect before publishing.
func NewMQTTClient(cfg MQTTConfig, log logrus.FieldLogger) *MQTTClient {
	c := &MQTTClient{cfg: cfg, log: log}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		c.setConnected(true)
		c.log.WithField("broker", cfg.Broker).Info("MQTT connection established")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.setConnected(false)
		c.log.WithField("broker", cfg.Broker).WithError(err).Warn("MQTT connection lost")
	}

	c.client = mqtt.NewClient(opts)
	return c
}

// newMQTTClientWith wraps an existing paho client.
func newMQTTClientWith(client mqtt.Client, cfg MQTTConfig, log logrus.FieldLogger) *MQTTClient {
	return &MQTTClient{cfg: cfg, client: client, log: log}
}

// Connect establishes the broker connection.
func (c *MQTTClient) Connect() error {
	c.log.WithField("broker", c.cfg.Broker).Info("Connecting to MQTT broker")

	token := c.client.Connect()
	if !c.wait(token, c.cfg.ConnectTimeout) {
		return fmt.Errorf("mqtt connect to %s: timeout", c.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", c.cfg.Broker, err)
	}

	c.setConnected(true)
	return nil
}

// Publish sends message on topic at QoS 0 without retain. A disconnected
// client fails immediately instead of buffering the message.
func (c *MQTTClient) Publish(topic, message string) error {
	if !c.isConnected() {
		c.countError()
		return fmt.Errorf("%w: not connected", ErrPublish)
	}

	token := c.client.Publish(topic, 0, false, message)
	if !c.wait(token, c.cfg.PublishTimeout) {
		c.countError()
		return fmt.Errorf("%w: timeout", ErrPublish)
	}
	if err := token.Error(); err != nil {
		c.countError()
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}

	c.mu.Lock()
	c.published++
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"topic": topic, "message": message}).Debug("Telemetry published")
	return nil
}

// Subscribe calls handler for every message received on topic.
func (c *MQTTClient) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	token := c.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		c.mu.Lock()
		c.received++
		c.mu.Unlock()
		handler(msg.Topic(), msg.Payload())
	})
	if !c.wait(token, c.cfg.ConnectTimeout) {
		return fmt.Errorf("mqtt subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}

	c.log.WithField("topic", topic).Info("Subscribed to telemetry topic")
	return nil
}

// Disconnect closes the broker connection.
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		c.log.Info("MQTT disconnected")
	}
	c.setConnected(false)
}

// Stats returns client statistics.
func (c *MQTTClient) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Connected: c.connected,
		Published: c.published,
		Errors:    c.errors,
		Received:  c.received,
	}
}

func (c *MQTTClient) wait(token mqtt.Token, timeout time.Duration) bool {
	if timeout <= 0 {
		return token.Wait()
	}
	return token.WaitTimeout(timeout)
}

func (c *MQTTClient) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *MQTTClient) isConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *MQTTClient) countError() {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}
