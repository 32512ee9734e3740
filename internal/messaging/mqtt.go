package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"vehicle-remote/internal/logger"
)

const (
	DefaultMQTTClientID     = "vehicle-remote"
	DefaultMQTTCommandTopic = "vehicle/control"
	DefaultMQTTStatusTopic  = "vehicle/status"
)

type MQTTOptions struct {
	Broker       string
	ClientID     string
	Username     string
	Password     string
	CommandTopic string
	StatusTopic  string
	QoS          byte
	// ConnectTimeout also bounds publish acknowledgements.
	ConnectTimeout time.Duration
}

// MQTTClient carries command frames to the controller over an MQTT broker.
type MQTTClient struct {
	opts     MQTTOptions
	client   mqtt.Client
	logger   *logger.Logger
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	onStatus func([]byte)
}

func NewMQTTClient(opts MQTTOptions, l *logger.Logger) *MQTTClient {
	if opts.ClientID == "" {
		opts.ClientID = DefaultMQTTClientID
	}
	if opts.CommandTopic == "" {
		opts.CommandTopic = DefaultMQTTCommandTopic
	}
	if opts.StatusTopic == "" {
		opts.StatusTopic = DefaultMQTTStatusTopic
	}
	if opts.QoS > 2 {
		opts.QoS = 1
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	return &MQTTClient{
		opts:   opts,
		logger: l,
		done:   make(chan struct{}),
	}
}

func (c *MQTTClient) OnStatus(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = fn
}

func (c *MQTTClient) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.opts.Broker)
	opts.SetClientID(c.opts.ClientID)
	if c.opts.Username != "" {
		opts.SetUsername(c.opts.Username)
		opts.SetPassword(c.opts.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(c.opts.ConnectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.logger.Infof("Connected to MQTT broker %s", c.opts.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Warnf("Lost connection to MQTT broker: %v", err)
	})
	return opts
}

func (c *MQTTClient) Init(ctx context.Context) error {
	c.client = mqtt.NewClient(c.clientOptions())
	token := c.client.Connect()
	if err := waitToken(ctx, token, c.opts.ConnectTimeout); err != nil {
		return fmt.Errorf("MQTT connection failed: %w", err)
	}
	return nil
}

// Start subscribes to the status topic and blocks until ctx is cancelled
// or Stop is called.
func (c *MQTTClient) Start(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("MQTT client not initialised")
	}
	token := c.client.Subscribe(c.opts.StatusTopic, c.opts.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		c.logger.Debugf("Received status frame on %s: % X", msg.Topic(), msg.Payload())
		c.deliver(msg.Payload())
	})
	if err := waitToken(ctx, token, c.opts.ConnectTimeout); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.opts.StatusTopic, err)
	}
	c.logger.Infof("Subscribed to MQTT topic: %s", c.opts.StatusTopic)

	select {
	case <-ctx.Done():
	case <-c.done:
	}
	return nil
}

func (c *MQTTClient) deliver(raw []byte) {
	c.mu.RLock()
	fn := c.onStatus
	c.mu.RUnlock()
	if fn != nil {
		fn(raw)
	}
}

func (c *MQTTClient) SendCommand(ctx context.Context, id uint8, payload []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if c.client == nil {
		return ErrClosed
	}
	token := c.client.Publish(c.opts.CommandTopic, c.opts.QoS, false, frame(id, payload))
	if err := waitToken(ctx, token, c.opts.ConnectTimeout); err != nil {
		return fmt.Errorf("failed to publish command 0x%02X: %w", id, err)
	}
	return nil
}

func (c *MQTTClient) Stop() error {
	c.stopOnce.Do(func() {
		close(c.done)
		if c.client != nil && c.client.IsConnected() {
			c.client.Unsubscribe(c.opts.StatusTopic)
			c.client.Disconnect(250)
		}
		c.logger.Infof("MQTT client stopped")
	})
	return nil
}

// waitToken waits for token to complete, ctx to end or timeout to pass.
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	}
}
