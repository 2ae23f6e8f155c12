package mqttbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

type PublisherConfig struct {
	Timeout         time.Duration // max wait for the broker ack
	BreakerFailures int           // consecutive failures before fail-fast
	BreakerOpenFor  time.Duration
}

// Publisher republishes JSON payloads on a connection. A message that cannot be
// sent is dropped: nothing is queued or retried.
type Publisher struct {
	conn    *Conn
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

func NewPublisher(conn *Conn, cfg PublisherConfig) *Publisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.BreakerFailures < 1 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = 10 * time.Second
	}
	fails := uint32(cfg.BreakerFailures)
	return &Publisher{
		conn:    conn,
		timeout: cfg.Timeout,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "mqtt-publish-" + conn.Name(),
			Timeout: cfg.BreakerOpenFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= fails
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("mqtt[%s]: breaker %s -> %s", conn.Name(), from, to)
			},
		}),
	}
}

// PublishJSON marshals v and publishes it on topic.
func (p *Publisher) PublishJSON(topic string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	if !p.conn.IsConnected() {
		log.Printf("mqtt[%s]: cannot publish to %s, not connected", p.conn.Name(), topic)
		return ErrNotConnected
	}
	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.conn.Publish(topic, b, p.timeout)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Printf("mqtt[%s]: dropped publish to %s: %v", p.conn.Name(), topic, err)
		} else {
			log.Printf("mqtt[%s]: publish to %s failed: %v", p.conn.Name(), topic, err)
		}
		return err
	}
	log.Printf("mqtt[%s]: published %s %s", p.conn.Name(), topic, b)
	return nil
}

// BreakerState exposes the fail-fast state for health reporting.
func (p *Publisher) BreakerState() gobreaker.State { return p.breaker.State() }
