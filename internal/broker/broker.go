// Package broker wraps the AMQP connection: topology declaration,
// publishing, and the consume side the dispatcher pulls deliveries from.
// Connection drops are transient; the connection redials with backoff and
// the broker redelivers whatever was left unacked.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultPrefetch  = 16
	redialBaseDelay  = time.Second
	redialMaxDelay   = 30 * time.Second
	retryCountHeader = "x-retry-count"

	// Requeue publishes through the default exchange, which rewrites the
	// delivery's exchange/routing key. The originals ride along in headers
	// so retried facts keep their identity.
	originExchangeHeader   = "x-original-exchange"
	originRoutingKeyHeader = "x-original-routing-key"
)

type Connection struct {
	url      string
	prefetch int
	logger   *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
}

func Dial(url string, prefetch int, logger *slog.Logger) (*Connection, error) {
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	c := &Connection{url: url, prefetch: prefetch, logger: logger}
	if _, err := c.current(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connection) current() (*amqp.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn, nil
	}
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	c.conn = conn
	return conn, nil
}

// redial blocks until a connection is live again or ctx ends.
func (c *Connection) redial(ctx context.Context) (*amqp.Connection, error) {
	delay := redialBaseDelay
	for {
		conn, err := c.current()
		if err == nil {
			return conn, nil
		}
		c.logger.WarnContext(ctx, "broker dial failed, retrying", "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > redialMaxDelay {
			delay = redialMaxDelay
		}
	}
}

// Channel opens a fresh channel with prefetch applied.
func (c *Connection) Channel() (*amqp.Channel, error) {
	conn, err := c.current()
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set prefetch: %w", err)
	}
	return ch, nil
}

// DeclareTopology opens a channel, asserts the topology, and closes it.
func (c *Connection) DeclareTopology(t Topology) error {
	ch, err := c.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	return Declare(ch, t)
}

func (c *Connection) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.conn.IsClosed()
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func retryCountFrom(headers amqp.Table) int {
	raw, ok := headers[retryCountHeader]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
