package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/velprakashr08-max/Frutify/internal/event"
)

// Delivery is one message pulled off a queue, decoupled from the AMQP
// client so dispatcher tests can fabricate deliveries.
type Delivery struct {
	Queue      string
	Exchange   string
	RoutingKey string
	MessageID  string
	Body       json.RawMessage
	RetryCount int
	Timestamp  time.Time

	Ack    func() error
	Reject func(requeue bool) error
}

func (d Delivery) Fact() event.Fact {
	return event.Fact{
		Exchange:    d.Exchange,
		RoutingKey:  d.RoutingKey,
		MessageID:   d.MessageID,
		Payload:     d.Body,
		PublishedAt: d.Timestamp,
	}
}

// Source is what the consumer dispatcher runs against.
type Source interface {
	// Consume yields deliveries from queue until ctx ends. The channel
	// closes on connection loss; callers re-Consume to resume, and the
	// broker redelivers anything unacked.
	Consume(ctx context.Context, queue string) (<-chan Delivery, error)
	// Requeue republishes a failed delivery to the back of its queue with
	// the attempt count stamped on it.
	Requeue(ctx context.Context, d Delivery, attempt int) error
}

type amqpSource struct {
	conn *Connection
}

func NewSource(conn *Connection) Source {
	return &amqpSource{conn: conn}
}

func (s *amqpSource) Consume(ctx context.Context, queue string) (<-chan Delivery, error) {
	conn, err := s.conn.redial(ctx)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel for %q: %w", queue, err)
	}
	if err := ch.Qos(s.conn.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set prefetch for %q: %w", queue, err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume %q: %w", queue, err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-deliveries:
				if !ok {
					return
				}
				d := adapt(queue, msg)
				select {
				case out <- d:
				case <-ctx.Done():
					// Never acked; the broker will redeliver.
					return
				}
			}
		}
	}()
	return out, nil
}

func adapt(queue string, msg amqp.Delivery) Delivery {
	exchange, routingKey := msg.Exchange, msg.RoutingKey
	if v, ok := msg.Headers[originExchangeHeader].(string); ok {
		exchange = v
	}
	if v, ok := msg.Headers[originRoutingKeyHeader].(string); ok {
		routingKey = v
	}
	return Delivery{
		Queue:      queue,
		Exchange:   exchange,
		RoutingKey: routingKey,
		MessageID:  msg.MessageId,
		Body:       json.RawMessage(msg.Body),
		RetryCount: retryCountFrom(msg.Headers),
		Timestamp:  msg.Timestamp,
		Ack:        func() error { return msg.Ack(false) },
		Reject:     func(requeue bool) error { return msg.Nack(false, requeue) },
	}
}

// Requeue publishes straight to the queue via the default exchange so the
// retry skips exchange routing and lands only on the failing queue.
func (s *amqpSource) Requeue(ctx context.Context, d Delivery, attempt int) error {
	ch, err := s.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, "", d.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageID,
		Timestamp:    d.Timestamp,
		Headers: amqp.Table{
			retryCountHeader:       int32(attempt),
			originExchangeHeader:   d.Exchange,
			originRoutingKeyHeader: d.RoutingKey,
		},
		Body: d.Body,
	})
	if err != nil {
		return fmt.Errorf("requeue %q on %q: %w", d.MessageID, d.Queue, err)
	}
	return nil
}
