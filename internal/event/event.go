// Package event defines the facts flowing through the commerce backbone and
// the routing-key vocabulary producers must use. A fact is an immutable
// record of something that already happened; its MessageID is assigned by
// the producer and stable across redelivery, which is what makes dedup
// possible downstream.
package event

import (
	"encoding/json"
	"errors"
	"time"
)

// Exchanges.
const (
	ExchangeOrders     = "order.events"   // topic
	ExchangePayments   = "payment.events" // direct
	ExchangeCatalog    = "catalog.events" // direct
	ExchangeDeadLetter = "dlx"            // topic, catch-all bound
)

// Order lifecycle routing keys (order.events, topic).
const (
	OrderCreated   = "order.created"
	OrderConfirmed = "order.confirmed"
	OrderShipped   = "order.shipped"
	OrderDelivered = "order.delivered"
	OrderCancelled = "order.cancelled"
	OrderRefunded  = "order.refunded"
)

// Payment outcome routing keys (payment.events, direct).
const (
	PaymentSuccess  = "payment.success"
	PaymentFailed   = "payment.failed"
	PaymentRefunded = "payment.refunded"
)

// Catalog and review routing keys (catalog.events, direct).
const (
	ProductCreated = "product.created"
	ProductUpdated = "product.updated"
	ProductDeleted = "product.deleted"
	ReviewCreated  = "review.created"
)

var ErrMissingMessageID = errors.New("fact has no message id")

// Fact is one published business occurrence.
type Fact struct {
	Exchange    string          `json:"exchange"`
	RoutingKey  string          `json:"routing_key"`
	MessageID   string          `json:"message_id"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"published_at"`
}

func (f Fact) Validate() error {
	if f.MessageID == "" {
		return ErrMissingMessageID
	}
	if f.Exchange == "" || f.RoutingKey == "" {
		return errors.New("fact has no routing")
	}
	return nil
}

// OrderPayload is the body of every order.* fact.
type OrderPayload struct {
	OrderID string  `json:"order_id"`
	UserID  string  `json:"user_id"`
	Phone   string  `json:"phone,omitempty"`
	Email   string  `json:"email,omitempty"`
	Total   float64 `json:"total,omitempty"`
}

// PaymentPayload is the body of every payment.* fact.
type PaymentPayload struct {
	PaymentID string  `json:"payment_id"`
	OrderID   string  `json:"order_id"`
	UserID    string  `json:"user_id"`
	Amount    float64 `json:"amount,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// ProductPayload is the body of product.* facts.
type ProductPayload struct {
	ProductID string `json:"product_id"`
	Slug      string `json:"slug"`
}

// ReviewPayload is the body of review.created facts.
type ReviewPayload struct {
	ReviewID  string `json:"review_id"`
	ProductID uint   `json:"product_id"`
	Rating    int    `json:"rating"`
}

// DecodePayload unmarshals the fact body into out. A body that does not
// decode marks the fact as poison; it will never succeed on retry.
func (f Fact) DecodePayload(out any) error {
	return json.Unmarshal(f.Payload, out)
}
