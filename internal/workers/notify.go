package workers

import (
	"context"
	"log/slog"

	"github.com/velprakashr08-max/Frutify/internal/event"
)

// Notifiers are the downstream providers the notification workers call.
// The dev implementations log instead of sending, the same pattern the
// storefront uses for verification mail in development.

type EmailNotifier interface {
	SendOrderEmail(ctx context.Context, routingKey string, order event.OrderPayload) error
	SendPaymentFailure(ctx context.Context, payment event.PaymentPayload) error
	SendReviewRequest(ctx context.Context, order event.OrderPayload) error
}

type SMSNotifier interface {
	SendOrderSMS(ctx context.Context, routingKey string, order event.OrderPayload) error
}

type PushNotifier interface {
	SendOrderPush(ctx context.Context, routingKey string, order event.OrderPayload) error
}

// AnalyticsSink ingests order facts for reporting.
type AnalyticsSink interface {
	TrackOrderCreated(ctx context.Context, order event.OrderPayload) error
}

// SearchIndexer is the external search index. Index maintenance logic lives
// there; this side only triggers it.
type SearchIndexer interface {
	Index(ctx context.Context, slug string) error
	Delete(ctx context.Context, slug string) error
}

// RefundProcessor settles refunds with the payment provider.
type RefundProcessor interface {
	ProcessRefund(ctx context.Context, payment event.PaymentPayload) error
}

type DevNotifier struct {
	logger *slog.Logger
}

func NewDevNotifier(logger *slog.Logger) *DevNotifier {
	return &DevNotifier{logger: logger}
}

func (n *DevNotifier) SendOrderEmail(ctx context.Context, routingKey string, order event.OrderPayload) error {
	n.logger.InfoContext(ctx, "order email", "routing_key", routingKey, "order_id", order.OrderID, "email", order.Email)
	return nil
}

func (n *DevNotifier) SendPaymentFailure(ctx context.Context, payment event.PaymentPayload) error {
	n.logger.InfoContext(ctx, "payment failure notice", "order_id", payment.OrderID, "reason", payment.Reason)
	return nil
}

func (n *DevNotifier) SendReviewRequest(ctx context.Context, order event.OrderPayload) error {
	n.logger.InfoContext(ctx, "review request", "order_id", order.OrderID, "user_id", order.UserID)
	return nil
}

func (n *DevNotifier) SendOrderSMS(ctx context.Context, routingKey string, order event.OrderPayload) error {
	n.logger.InfoContext(ctx, "order sms", "routing_key", routingKey, "order_id", order.OrderID, "phone", order.Phone)
	return nil
}

func (n *DevNotifier) SendOrderPush(ctx context.Context, routingKey string, order event.OrderPayload) error {
	n.logger.InfoContext(ctx, "order push", "routing_key", routingKey, "order_id", order.OrderID, "user_id", order.UserID)
	return nil
}

func (n *DevNotifier) TrackOrderCreated(ctx context.Context, order event.OrderPayload) error {
	n.logger.InfoContext(ctx, "analytics ingest", "order_id", order.OrderID, "total", order.Total)
	return nil
}

func (n *DevNotifier) Index(ctx context.Context, slug string) error {
	n.logger.InfoContext(ctx, "search index", "slug", slug)
	return nil
}

func (n *DevNotifier) Delete(ctx context.Context, slug string) error {
	n.logger.InfoContext(ctx, "search delete", "slug", slug)
	return nil
}

func (n *DevNotifier) ProcessRefund(ctx context.Context, payment event.PaymentPayload) error {
	n.logger.InfoContext(ctx, "refund processed", "payment_id", payment.PaymentID, "amount", payment.Amount)
	return nil
}
