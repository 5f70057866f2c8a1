package broker

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/velprakashr08-max/Frutify/internal/event"
)

func TestAdaptFirstDelivery(t *testing.T) {
	msg := amqp.Delivery{
		Exchange:   event.ExchangeOrders,
		RoutingKey: event.OrderCreated,
		MessageId:  "evt-1",
		Body:       []byte(`{"order_id":"o-1"}`),
		Timestamp:  time.Unix(1700000000, 0),
	}
	d := adapt(QueueOrderEmail, msg)
	f := d.Fact()
	if f.Exchange != event.ExchangeOrders || f.RoutingKey != event.OrderCreated {
		t.Fatalf("fact identity = %s/%s", f.Exchange, f.RoutingKey)
	}
	if d.RetryCount != 0 {
		t.Fatalf("fresh delivery retry count = %d", d.RetryCount)
	}
}

func TestAdaptRestoresIdentityAfterRequeue(t *testing.T) {
	// A requeued delivery travels through the default exchange, so the
	// broker reports Exchange="" and RoutingKey equal to the queue name.
	// The headers stamped by Requeue carry the fact's real identity.
	msg := amqp.Delivery{
		Exchange:   "",
		RoutingKey: QueueOrderEmail,
		MessageId:  "evt-1",
		Body:       []byte(`{"order_id":"o-1"}`),
		Timestamp:  time.Unix(1700000000, 0),
		Headers: amqp.Table{
			retryCountHeader:       int32(2),
			originExchangeHeader:   event.ExchangeOrders,
			originRoutingKeyHeader: event.OrderCreated,
		},
	}
	d := adapt(QueueOrderEmail, msg)
	f := d.Fact()
	if f.Exchange != event.ExchangeOrders {
		t.Fatalf("retried fact exchange = %q, want %q", f.Exchange, event.ExchangeOrders)
	}
	if f.RoutingKey != event.OrderCreated {
		t.Fatalf("retried fact routing key = %q, want %q", f.RoutingKey, event.OrderCreated)
	}
	if d.RetryCount != 2 {
		t.Fatalf("retry count = %d, want 2", d.RetryCount)
	}
}
