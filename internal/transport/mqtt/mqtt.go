// Package mqtt bridges the command channel to an MQTT broker: messages on the
// command topic become commands, and every status change is published on the
// status topic.
package mqtt

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"libdb.so/tailglow/internal/mode"
)

var (
	// ErrNotConnected is returned when publishing while the broker is
	// unreachable.
	ErrNotConnected = errors.New("not connected to broker")
	// ErrPublishTimeout is returned when the broker does not confirm a
	// publish in time.
	ErrPublishTimeout = errors.New("timed out publishing status")
)

// DefaultPublishTimeout bounds a status publish when no timeout is configured.
const DefaultPublishTimeout = 2 * time.Second

// Config configures the MQTT client.
type Config struct {
	Broker       string
	ClientID     string
	CommandTopic string
	StatusTopic  string
	Username     string
	Password     string
	QoS          byte
	// ReconnectInterval is the delay between connection attempts.
	ReconnectInterval time.Duration
	// PublishTimeout bounds how long PublishStatus waits for the broker.
	PublishTimeout time.Duration
}

// Deliverer accepts inbound command messages.
type Deliverer interface {
	Deliver(ctx context.Context, payload []byte) error
}

// Client is the MQTT adapter. It implements command.Publisher.
type Client struct {
	cfg      Config
	logger   *slog.Logger
	commands Deliverer
	client   paho.Client
	ctx      context.Context
}

// New creates a client. It does not connect until Run is called.
func New(cfg Config, commands Deliverer, logger *slog.Logger) *Client {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}

	c := &Client{
		cfg:      cfg,
		logger:   logger,
		commands: commands,
		ctx:      context.Background(),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(cfg.ReconnectInterval).
		SetMaxReconnectInterval(cfg.ReconnectInterval).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetReconnectingHandler(c.onReconnecting)

	c.client = paho.NewClient(opts)
	return c
}

// Run connects to the broker and stays connected, reconnecting as needed,
// until ctx is canceled.
func (c *Client) Run(ctx context.Context) error {
	c.ctx = ctx

	c.logger.Info(
		"connecting to MQTT broker",
		"broker", c.cfg.Broker,
		"client_id", c.cfg.ClientID)

	// With connect retry enabled the token only completes once connected, so
	// it is not waited on.
	c.client.Connect()

	<-ctx.Done()
	c.client.Disconnect(250)
	return ctx.Err()
}

func (c *Client) onConnect(client paho.Client) {
	c.logger.Info("connected to MQTT broker", "broker", c.cfg.Broker)

	token := client.Subscribe(c.cfg.CommandTopic, c.cfg.QoS, c.handleMessage)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.logger.Warn(
				"failed to subscribe to command topic",
				"topic", c.cfg.CommandTopic,
				"error", err)
			return
		}
		c.logger.Debug("subscribed to command topic", "topic", c.cfg.CommandTopic)
	}()
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	c.logger.Warn("lost connection to MQTT broker", "error", err)
}

func (c *Client) onReconnecting(paho.Client, *paho.ClientOptions) {
	c.logger.Debug("reconnecting to MQTT broker", "broker", c.cfg.Broker)
}

func (c *Client) handleMessage(_ paho.Client, msg paho.Message) {
	c.logger.Debug(
		"received command message",
		"topic", msg.Topic(),
		"payload", string(msg.Payload()))

	if err := c.commands.Deliver(c.ctx, msg.Payload()); err != nil {
		c.logger.Warn(
			"failed to queue command",
			"payload", string(msg.Payload()),
			"error", err)
	}
}

// PublishStatus implements command.Publisher. It publishes the status as JSON
// to the status topic and waits at most the publish timeout for the broker.
// Tokens left pending by a lost connection are abandoned.
func (c *Client) PublishStatus(ctx context.Context, status mode.Status) error {
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	b, err := json.Marshal(status)
	if err != nil {
		return errors.Wrap(err, "failed to encode status")
	}

	timer := time.NewTimer(c.cfg.PublishTimeout)
	defer timer.Stop()

	token := c.client.Publish(c.cfg.StatusTopic, c.cfg.QoS, false, b)
	select {
	case <-token.Done():
		return errors.Wrap(token.Error(), "failed to publish status")
	case <-timer.C:
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
