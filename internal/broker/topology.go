package broker

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/velprakashr08-max/Frutify/internal/event"
)

const (
	// Unprocessed facts surface in the dead-letter queue after 24h instead
	// of expiring unseen.
	messageTTLMillis = 86_400_000

	DeadLetterQueue = "q.dead.letters"
)

// Order worker queues.
const (
	QueueOrderEmail         = "q.order.email"
	QueueOrderSMS           = "q.order.sms"
	QueueOrderPush          = "q.order.push"
	QueueOrderReviewRequest = "q.order.review_request"
	QueueOrderAnalytics     = "q.order.analytics"
)

// Payment worker queues.
const (
	QueuePaymentConfirmOrder  = "q.payment.confirm_order"
	QueuePaymentNotifyFailure = "q.payment.notify_failure"
	QueuePaymentProcessRefund = "q.payment.process_refund"
)

// Catalog worker queues.
const (
	QueueCatalogSearchSync       = "q.catalog.es_sync"
	QueueCatalogSearchDelete     = "q.catalog.es_delete"
	QueueCatalogRatingAggregator = "q.catalog.rating_aggregator"
	QueueCatalogCacheInvalidate  = "q.catalog.cache_invalidate"
)

type ExchangeSpec struct {
	Name string
	Kind string // "topic" or "direct"
}

type QueueSpec struct {
	Name     string
	Exchange string
	// Bindings are routing-key patterns; topic exchanges match wildcards,
	// direct exchanges match exactly.
	Bindings []string
}

type Topology struct {
	Exchanges []ExchangeSpec
	Queues    []QueueSpec
}

// DefaultTopology is the static exchange/queue/binding layout. Every queue
// dead-letters into the catch-all dlx and carries the 24h message TTL.
func DefaultTopology() Topology {
	return Topology{
		Exchanges: []ExchangeSpec{
			{Name: event.ExchangeDeadLetter, Kind: "topic"},
			{Name: event.ExchangeOrders, Kind: "topic"},
			{Name: event.ExchangePayments, Kind: "direct"},
			{Name: event.ExchangeCatalog, Kind: "direct"},
		},
		Queues: []QueueSpec{
			{Name: QueueOrderEmail, Exchange: event.ExchangeOrders, Bindings: []string{"order.*"}},
			{Name: QueueOrderSMS, Exchange: event.ExchangeOrders, Bindings: []string{"order.*"}},
			{Name: QueueOrderPush, Exchange: event.ExchangeOrders, Bindings: []string{"order.*"}},
			{Name: QueueOrderReviewRequest, Exchange: event.ExchangeOrders, Bindings: []string{event.OrderDelivered}},
			{Name: QueueOrderAnalytics, Exchange: event.ExchangeOrders, Bindings: []string{event.OrderCreated}},

			{Name: QueuePaymentConfirmOrder, Exchange: event.ExchangePayments, Bindings: []string{event.PaymentSuccess}},
			{Name: QueuePaymentNotifyFailure, Exchange: event.ExchangePayments, Bindings: []string{event.PaymentFailed}},
			{Name: QueuePaymentProcessRefund, Exchange: event.ExchangePayments, Bindings: []string{event.PaymentRefunded}},

			{Name: QueueCatalogSearchSync, Exchange: event.ExchangeCatalog, Bindings: []string{event.ProductUpdated}},
			{Name: QueueCatalogSearchDelete, Exchange: event.ExchangeCatalog, Bindings: []string{event.ProductDeleted}},
			{Name: QueueCatalogRatingAggregator, Exchange: event.ExchangeCatalog, Bindings: []string{event.ReviewCreated}},
			{Name: QueueCatalogCacheInvalidate, Exchange: event.ExchangeCatalog, Bindings: []string{event.ProductUpdated, event.ProductDeleted}},
		},
	}
}

// Validate enforces the topology invariants: every queue has at least one
// binding and points at a declared exchange.
func (t Topology) Validate() error {
	exchanges := map[string]bool{}
	for _, ex := range t.Exchanges {
		if ex.Kind != "topic" && ex.Kind != "direct" {
			return fmt.Errorf("exchange %q has unsupported kind %q", ex.Name, ex.Kind)
		}
		exchanges[ex.Name] = true
	}
	for _, q := range t.Queues {
		if len(q.Bindings) == 0 {
			return fmt.Errorf("queue %q has no bindings", q.Name)
		}
		if !exchanges[q.Exchange] {
			return fmt.Errorf("queue %q binds undeclared exchange %q", q.Name, q.Exchange)
		}
	}
	return nil
}

// Declare asserts the whole topology. Assertions are create-if-absent, so
// concurrently starting instances can all run this safely.
func Declare(ch *amqp.Channel, t Topology) error {
	if err := t.Validate(); err != nil {
		return err
	}
	for _, ex := range t.Exchanges {
		if err := ch.ExchangeDeclare(ex.Name, ex.Kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %q: %w", ex.Name, err)
		}
	}

	// The inspection queue takes everything the dlx sees and has no TTL or
	// dead-letter target of its own.
	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %q: %w", DeadLetterQueue, err)
	}
	if err := ch.QueueBind(DeadLetterQueue, "#", event.ExchangeDeadLetter, false, nil); err != nil {
		return fmt.Errorf("bind %q: %w", DeadLetterQueue, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange": event.ExchangeDeadLetter,
		"x-message-ttl":          int32(messageTTLMillis),
	}
	for _, q := range t.Queues {
		if _, err := ch.QueueDeclare(q.Name, true, false, false, false, args); err != nil {
			return fmt.Errorf("declare queue %q: %w", q.Name, err)
		}
		for _, binding := range q.Bindings {
			if err := ch.QueueBind(q.Name, binding, q.Exchange, false, nil); err != nil {
				return fmt.Errorf("bind %q to %q via %q: %w", q.Name, q.Exchange, binding, err)
			}
		}
	}
	return nil
}

// MatchesBinding reports whether routingKey routes to a queue binding on an
// exchange of the given kind. Topic patterns support "*" (one word) and "#"
// (zero or more words).
func MatchesBinding(kind, pattern, routingKey string) bool {
	if kind == "direct" {
		return pattern == routingKey
	}
	return topicMatch(splitDots(pattern), splitDots(routingKey))
}

func splitDots(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

func topicMatch(pattern, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}
	switch pattern[0] {
	case "#":
		for skip := 0; skip <= len(key); skip++ {
			if topicMatch(pattern[1:], key[skip:]) {
				return true
			}
		}
		return false
	case "*":
		return len(key) > 0 && topicMatch(pattern[1:], key[1:])
	default:
		return len(key) > 0 && pattern[0] == key[0] && topicMatch(pattern[1:], key[1:])
	}
}
