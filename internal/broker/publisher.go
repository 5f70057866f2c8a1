package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/velprakashr08-max/Frutify/internal/event"
)

// Publisher sends facts as persistent deliveries. The MessageID is the dedup
// key for every consumer; producers deriving one from upstream state should
// assign it themselves, others get a fresh UUID at publish time.
type Publisher struct {
	conn *Connection
}

func NewPublisher(conn *Connection) *Publisher {
	return &Publisher{conn: conn}
}

// withPublishDefaults fills the fields a producer may leave open. The id is
// minted once here, before the wire write, so broker redelivery always
// carries the same MessageId.
func withPublishDefaults(f event.Fact) event.Fact {
	if f.MessageID == "" {
		f.MessageID = uuid.NewString()
	}
	if f.PublishedAt.IsZero() {
		f.PublishedAt = time.Now().UTC()
	}
	return f
}

func (p *Publisher) Publish(ctx context.Context, f event.Fact) error {
	f = withPublishDefaults(f)
	if err := f.Validate(); err != nil {
		return err
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, f.Exchange, f.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    f.MessageID,
		Timestamp:    f.PublishedAt,
		Body:         f.Payload,
	})
	if err != nil {
		return fmt.Errorf("publish %s %s: %w", f.Exchange, f.RoutingKey, err)
	}
	return nil
}
