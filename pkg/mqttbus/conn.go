// Package mqttbus owns the MQTT connections of the relay: connect with a fixed
// retry interval, re-subscribe on every (re)connect, deliver messages in
// arrival order and publish commands back onto the bus.
package mqttbus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/rover_relay/pkg/dedup"
)

var (
	ErrNotConnected   = errors.New("mqtt: not connected")
	ErrPublishTimeout = errors.New("mqtt: publish timed out")
)

// State of a single broker connection.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

type Config struct {
	Name          string // "main" | "gps", used in logs and metrics
	BrokerURL     string // tcp://host:1883, mqtt://host:1883, ws://...
	User          string
	Password      string
	ClientID      string
	QoS           byte
	RetryInterval time.Duration
}

// Handler receives every message delivered on the connection, in arrival order.
type Handler func(topic string, payload []byte)

// Conn is one broker connection with a fixed subscription set.
type Conn struct {
	cfg     Config
	topics  []string
	handler Handler
	client  mqtt.Client
	deduper *dedup.Deduper

	state   atomic.Int32
	hookMu  sync.RWMutex
	onState func(name string, s State)

	ctx    context.Context
	cancel context.CancelFunc
}

// NewConn builds a connection that will subscribe to topics once connected.
// Nothing touches the network until Start.
func NewConn(cfg Config, topics []string, handler Handler) *Conn {
	c := newConn(cfg, topics, handler)
	c.client = mqtt.NewClient(c.options())
	return c
}

func newConn(cfg Config, topics []string, handler Handler) *Conn {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 3 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "main"
	}
	return &Conn{
		cfg:     cfg,
		topics:  append([]string(nil), topics...),
		handler: handler,
		deduper: dedup.New(2*time.Minute, 10000),
		ctx:     context.Background(),
		cancel:  func() {},
	}
}

func (c *Conn) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.cfg.BrokerURL)
	opts.SetUsername(c.cfg.User)
	opts.SetPassword(c.cfg.Password)
	opts.SetClientID(c.cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetConnectTimeout(c.cfg.RetryInterval)
	// Reconnects go through connectLoop so the retry interval stays fixed.
	opts.SetAutoReconnect(false)
	// One default handler instead of per-subscription routes: overlapping
	// filters (rover/node1/data, rover/+/data) must not deliver a packet twice.
	opts.SetDefaultPublishHandler(c.onMessage)
	opts.SetOnConnectHandler(func(mqtt.Client) { c.onConnect() })
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) { c.onConnectionLost(err) })
	return opts
}

// Name of the connection as configured.
func (c *Conn) Name() string { return c.cfg.Name }

// Topics returns the subscription set in registration order.
func (c *Conn) Topics() []string { return append([]string(nil), c.topics...) }

func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) IsConnected() bool {
	return c.State() == StateConnected && c.client.IsConnectionOpen()
}

// OnStateChange registers a hook called on every state transition.
func (c *Conn) OnStateChange(fn func(name string, s State)) {
	c.hookMu.Lock()
	c.onState = fn
	c.hookMu.Unlock()
}

func (c *Conn) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	c.hookMu.RLock()
	fn := c.onState
	c.hookMu.RUnlock()
	if fn != nil {
		fn(c.cfg.Name, s)
	}
}

// Start connects in the background and keeps reconnecting until ctx is done.
// Connection failures are logged, never returned.
func (c *Conn) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.setState(StateConnecting)
	log.Printf("mqtt[%s]: connecting to %s", c.cfg.Name, c.cfg.BrokerURL)
	go c.connectLoop(c.ctx)

	go func() {
		<-c.ctx.Done()
		c.client.Disconnect(250)
		c.setState(StateDisconnected)
		log.Printf("mqtt[%s]: connection closed", c.cfg.Name)
	}()
}

// Close tears the connection down.
func (c *Conn) Close() { c.cancel() }

func (c *Conn) connectLoop(ctx context.Context) {
	bo := backoff.WithContext(backoff.NewConstantBackOff(c.cfg.RetryInterval), ctx)
	err := backoff.Retry(func() error {
		token := c.client.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("mqtt[%s]: connect to %s failed: %v (retry in %s)",
				c.cfg.Name, c.cfg.BrokerURL, err, c.cfg.RetryInterval)
			return err
		}
		return nil
	}, bo)
	if err != nil {
		log.Printf("mqtt[%s]: gave up connecting: %v", c.cfg.Name, err)
		return
	}
	if ctx.Err() != nil {
		c.client.Disconnect(0)
	}
}

func (c *Conn) onConnect() {
	c.setState(StateConnected)
	log.Printf("mqtt[%s]: connected to %s", c.cfg.Name, c.cfg.BrokerURL)
	c.subscribeAll()
}

func (c *Conn) onConnectionLost(err error) {
	log.Printf("mqtt[%s]: connection lost: %v", c.cfg.Name, err)
	if c.ctx.Err() != nil {
		return
	}
	c.setState(StateReconnecting)
	go c.connectLoop(c.ctx)
}

// subscribeAll issues the whole subscription set. Subscriptions are not
// assumed to survive a reconnect.
func (c *Conn) subscribeAll() {
	for _, topic := range c.topics {
		token := c.client.Subscribe(topic, c.cfg.QoS, nil)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("mqtt[%s]: subscribe %s failed: %v", c.cfg.Name, topic, err)
			continue
		}
		log.Printf("mqtt[%s]: subscribed to %s", c.cfg.Name, topic)
	}
}

func (c *Conn) onMessage(_ mqtt.Client, m mqtt.Message) {
	if m.Qos() > 0 && m.Duplicate() {
		if !c.deduper.ShouldProcess(fmt.Sprintf("%s#%d", m.Topic(), m.MessageID())) {
			return
		}
	}
	if c.handler == nil {
		log.Printf("mqtt[%s]: no handler for %s", c.cfg.Name, m.Topic())
		return
	}
	c.handler(m.Topic(), m.Payload())
}

// Publish sends payload on topic and waits at most timeout for the broker.
func (c *Conn) Publish(topic string, payload []byte, timeout time.Duration) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, c.cfg.QoS, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish %s: %w", topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
