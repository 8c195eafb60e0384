package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/autopeer-io/commhub/pkg/log"
)

// ErrNotStarted is returned by operations invoked before Start.
var ErrNotStarted = errors.New("mqtt client not started")

type pahoClient struct {
	cfg    *ClientConfig
	logger log.Logger

	mu     sync.RWMutex
	cm     *autopaho.ConnectionManager
	ctx    context.Context // handed to message handlers, cancelled by Disconnect
	cancel context.CancelFunc

	online atomic.Bool
	subs   *subscriptionTable
}

// NewClient validates cfg, fills in defaults and returns an unstarted Client.
func NewClient(cfg *ClientConfig) (Client, error) {
	if cfg == nil {
		return nil, errors.New("mqtt config is required")
	}
	setDefaultConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}

	return &pahoClient{
		cfg:    cfg,
		logger: log.WithName("mqtt").WithValues("clientID", cfg.ClientID),
		subs:   newSubscriptionTable(),
	}, nil
}

func (c *pahoClient) connectionConfig() autopaho.ClientConfig {
	// Validate already rejected an unparsable URL.
	server, _ := url.Parse(c.cfg.BrokerURL)

	return autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{server},
		KeepAlive:                     c.cfg.KeepAlive,
		ConnectTimeout:                c.cfg.ConnectTimeout,
		ReconnectBackoff:              autopaho.NewConstantBackoff(c.cfg.ReconnectBackoff),
		CleanStartOnInitialConnection: c.cfg.CleanStart,
		SessionExpiryInterval:         c.cfg.SessionExpiry,
		ConnectUsername:               c.cfg.Username,
		ConnectPassword:               []byte(c.cfg.Password),
		TlsCfg:                        &tls.Config{InsecureSkipVerify: c.cfg.InsecureSkipVerify}, //nolint:gosec // opt-in
		OnConnectionUp:                c.connectionUp,
		OnConnectError: func(err error) {
			c.online.Store(false)
			c.logger.Error(err, "Broker connection attempt failed", "backoff", c.cfg.ReconnectBackoff)
		},
		ClientConfig: paho.ClientConfig{
			ClientID:          c.cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){c.deliver},
			OnClientError: func(err error) {
				c.online.Store(false)
				c.logger.Error(err, "Broker connection lost")
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				c.online.Store(false)
				var reason string
				if d.Properties != nil {
					reason = d.Properties.ReasonString
				}
				c.logger.Warn("Broker closed the connection", "code", d.ReasonCode, "reason", reason)
			},
		},
	}
}

func (c *pahoClient) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cm != nil {
		return errors.New("mqtt client already started")
	}

	c.logger.Info("Connecting to broker", "broker", c.cfg.BrokerURL)
	cm, err := autopaho.NewConnection(ctx, c.connectionConfig())
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.cfg.BrokerURL, err)
	}
	c.cm = cm
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	return nil
}

func (c *pahoClient) manager() (*autopaho.ConnectionManager, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cm == nil {
		return nil, ErrNotStarted
	}
	return c.cm, nil
}

func (c *pahoClient) Disconnect(ctx context.Context) {
	c.mu.Lock()
	cm, cancel := c.cm, c.cancel
	c.cm, c.cancel = nil, nil
	c.mu.Unlock()
	if cm == nil {
		return
	}

	cancel()
	if err := cm.Disconnect(ctx); err != nil {
		c.logger.Warn("Disconnect from broker was not clean", "error", err)
	}
	c.online.Store(false)
	c.logger.Info("Disconnected from broker")
}

func (c *pahoClient) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error {
	cm, err := c.manager()
	if err != nil {
		return err
	}
	if _, err := cm.Publish(ctx, &paho.Publish{Topic: topic, QoS: byte(qos), Retain: retain, Payload: payload}); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (c *pahoClient) Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error {
	cm, err := c.manager()
	if err != nil {
		return err
	}

	// Registered before the packet goes out so a reconnect in between still restores it.
	c.subs.put(topic, byte(qos), handler)
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: byte(qos)}},
	}); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	c.logger.Info("Subscribed", "topic", topic, "qos", qos)
	return nil
}

func (c *pahoClient) Unsubscribe(ctx context.Context, topic string) error {
	cm, err := c.manager()
	if err != nil {
		return err
	}

	c.subs.remove(topic)
	if _, err := cm.Unsubscribe(ctx, &paho.Unsubscribe{Topics: []string{topic}}); err != nil {
		return fmt.Errorf("unsubscribe from %s: %w", topic, err)
	}
	return nil
}

func (c *pahoClient) AwaitConnection(ctx context.Context) error {
	cm, err := c.manager()
	if err != nil {
		return err
	}
	return cm.AwaitConnection(ctx)
}

func (c *pahoClient) IsConnected() bool {
	return c.online.Load()
}

// connectionUp restores every registered subscription in a single SUBSCRIBE packet.
func (c *pahoClient) connectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	c.online.Store(true)

	opts := c.subs.options()
	c.logger.Info("Connected to broker", "subscriptions", len(opts))
	if len(opts) == 0 {
		return
	}
	if _, err := cm.Subscribe(c.handlerContext(), &paho.Subscribe{Subscriptions: opts}); err != nil {
		c.logger.Error(err, "Failed to restore subscriptions")
	}
}

func (c *pahoClient) handlerContext() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// deliver fans a received publish out to every matching handler. Handlers
// run on their own goroutine so the paho read loop is never blocked.
func (c *pahoClient) deliver(p paho.PublishReceived) (bool, error) {
	handlers := c.subs.match(p.Packet.Topic)
	if len(handlers) == 0 {
		c.logger.Debug("Dropping message without a handler", "topic", p.Packet.Topic)
		return true, nil
	}

	ctx := c.handlerContext()
	for _, h := range handlers {
		go h(ctx, p.Packet.Topic, p.Packet.Payload)
	}
	return true, nil
}
