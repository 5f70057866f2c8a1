// Package workers holds the per-queue handlers. Handlers decode the fact,
// call one downstream collaborator, and return; retries, acks, and dedup
// belong to the dispatcher. A payload that does not decode is wrapped in
// dispatch.ErrPoison so it is dead-lettered without burning retries.
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/velprakashr08-max/Frutify/internal/broker"
	"github.com/velprakashr08-max/Frutify/internal/catalog"
	"github.com/velprakashr08-max/Frutify/internal/dispatch"
	"github.com/velprakashr08-max/Frutify/internal/event"
	"github.com/velprakashr08-max/Frutify/internal/orders"
)

// Registration binds one queue to its handler and worker count.
type Registration struct {
	Queue   string
	Handler dispatch.Handler
	Workers int
}

// EventPublisher republishes follow-up facts onto the backbone.
type EventPublisher interface {
	Publish(ctx context.Context, f event.Fact) error
}

type Deps struct {
	Email     EmailNotifier
	SMS       SMSNotifier
	Push      PushNotifier
	Analytics AnalyticsSink
	Search    SearchIndexer
	Refunds   RefundProcessor
	Events    EventPublisher
	Orders    *orders.Store
	Catalog   *catalog.Store
	Cache     *catalog.Cache
}

// All returns the full queue/handler registry for the backbone.
func All(d Deps) []Registration {
	return []Registration{
		{Queue: broker.QueueOrderEmail, Handler: OrderEmail(d.Email), Workers: 4},
		{Queue: broker.QueueOrderSMS, Handler: OrderSMS(d.SMS), Workers: 4},
		{Queue: broker.QueueOrderPush, Handler: OrderPush(d.Push), Workers: 4},
		{Queue: broker.QueueOrderReviewRequest, Handler: ReviewRequest(d.Email), Workers: 2},
		{Queue: broker.QueueOrderAnalytics, Handler: OrderAnalytics(d.Analytics), Workers: 2},

		{Queue: broker.QueuePaymentConfirmOrder, Handler: ConfirmOrder(d.Orders), Workers: 2},
		{Queue: broker.QueuePaymentNotifyFailure, Handler: PaymentFailure(d.Email), Workers: 2},
		{Queue: broker.QueuePaymentProcessRefund, Handler: ProcessRefund(d.Refunds, d.Orders), Workers: 2},

		{Queue: broker.QueueCatalogSearchSync, Handler: SearchSync(d.Search), Workers: 2},
		{Queue: broker.QueueCatalogSearchDelete, Handler: SearchDelete(d.Search), Workers: 2},
		{Queue: broker.QueueCatalogRatingAggregator, Handler: RatingAggregator(d.Catalog, d.Events), Workers: 2},
		{Queue: broker.QueueCatalogCacheInvalidate, Handler: CacheInvalidate(d.Cache), Workers: 2},
	}
}

func decodeOrder(f event.Fact) (event.OrderPayload, error) {
	var p event.OrderPayload
	if err := f.DecodePayload(&p); err != nil {
		return p, fmt.Errorf("%w: order payload: %v", dispatch.ErrPoison, err)
	}
	if p.OrderID == "" {
		return p, fmt.Errorf("%w: order payload without order_id", dispatch.ErrPoison)
	}
	return p, nil
}

func decodePayment(f event.Fact) (event.PaymentPayload, error) {
	var p event.PaymentPayload
	if err := f.DecodePayload(&p); err != nil {
		return p, fmt.Errorf("%w: payment payload: %v", dispatch.ErrPoison, err)
	}
	if p.OrderID == "" {
		return p, fmt.Errorf("%w: payment payload without order_id", dispatch.ErrPoison)
	}
	return p, nil
}

func decodeProduct(f event.Fact) (event.ProductPayload, error) {
	var p event.ProductPayload
	if err := f.DecodePayload(&p); err != nil {
		return p, fmt.Errorf("%w: product payload: %v", dispatch.ErrPoison, err)
	}
	if p.Slug == "" {
		return p, fmt.Errorf("%w: product payload without slug", dispatch.ErrPoison)
	}
	return p, nil
}

func OrderEmail(email EmailNotifier) dispatch.Handler {
	return func(ctx context.Context, f event.Fact) error {
		p, err := decodeOrder(f)
		if err != nil {
			return err
		}
		return email.SendOrderEmail(ctx, f.RoutingKey, p)
	}
}

func OrderSMS(sms SMSNotifier) dispatch.Handler {
	return func(ctx context.Context, f event.Fact) error {
		p, err := decodeOrder(f)
		if err != nil {
			return err
		}
		return sms.SendOrderSMS(ctx, f.RoutingKey, p)
	}
}

func OrderPush(push PushNotifier) dispatch.Handler {
	return func(ctx context.Context, f event.Fact) error {
		p, err := decodeOrder(f)
		if err != nil {
			return err
		}
		return push.SendOrderPush(ctx, f.RoutingKey, p)
	}
}

func ReviewRequest(email EmailNotifier) dispatch.Handler {
	return func(ctx context.Context, f event.Fact) error {
		p, err := decodeOrder(f)
		if err != nil {
			return err
		}
		return email.SendReviewRequest(ctx, p)
	}
}

func OrderAnalytics(sink AnalyticsSink) dispatch.Handler {
	return func(ctx context.Context, f event.Fact) error {
		p, err := decodeOrder(f)
		if err != nil {
			return err
		}
		return sink.TrackOrderCreated(ctx, p)
	}
}

func ConfirmOrder(store *orders.Store) dispatch.Handler {
	return func(ctx context.Context, f event.Fact) error {
		p, err := decodePayment(f)
		if err != nil {
			return err
		}
		return store.Confirm(ctx, p.OrderID, p.PaymentID)
	}
}

func PaymentFailure(email EmailNotifier) dispatch.Handler {
	return func(ctx context.Context, f event.Fact) error {
		p, err := decodePayment(f)
		if err != nil {
			return err
		}
		return email.SendPaymentFailure(ctx, p)
	}
}

func ProcessRefund(refunds RefundProcessor, store *orders.Store) dispatch.Handler {
	return func(ctx context.Context, f event.Fact) error {
		p, err := decodePayment(f)
		if err != nil {
			return err
		}
		if err := refunds.ProcessRefund(ctx, p); err != nil {
			return err
		}
		return store.MarkRefunded(ctx, p.OrderID, time.Now().UTC())
	}
}

func SearchSync(search SearchIndexer) dispatch.Handler {
	return func(ctx context.Context, f event.Fact) error {
		p, err := decodeProduct(f)
		if err != nil {
			return err
		}
		return search.Index(ctx, p.Slug)
	}
}

func SearchDelete(search SearchIndexer) dispatch.Handler {
	return func(ctx context.Context, f event.Fact) error {
		p, err := decodeProduct(f)
		if err != nil {
			return err
		}
		return search.Delete(ctx, p.Slug)
	}
}

// RatingAggregator recalculates the denormalized rating columns and then
// announces the product change so cached snapshots get dropped. The
// follow-up fact derives its id from the triggering one, so a crash between
// publish and ack cannot produce two distinct downstream messages.
func RatingAggregator(store *catalog.Store, events EventPublisher) dispatch.Handler {
	return func(ctx context.Context, f event.Fact) error {
		var p event.ReviewPayload
		if err := f.DecodePayload(&p); err != nil {
			return fmt.Errorf("%w: review payload: %v", dispatch.ErrPoison, err)
		}
		if p.ProductID == 0 {
			return fmt.Errorf("%w: review payload without product_id", dispatch.ErrPoison)
		}
		if err := store.RecalculateRating(ctx, p.ProductID); err != nil {
			return err
		}
		if events == nil {
			return nil
		}
		prod, err := store.ProductByID(ctx, p.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil
			}
			return err
		}
		payload, err := json.Marshal(event.ProductPayload{
			ProductID: strconv.FormatUint(uint64(prod.ID), 10),
			Slug:      prod.Slug,
		})
		if err != nil {
			return err
		}
		return events.Publish(ctx, event.Fact{
			Exchange:   event.ExchangeCatalog,
			RoutingKey: event.ProductUpdated,
			MessageID:  f.MessageID + ":rating",
			Payload:    payload,
		})
	}
}

// CacheInvalidate drops the product snapshot and, because membership or
// ordering of any page may have changed, every cached list page.
func CacheInvalidate(cache *catalog.Cache) dispatch.Handler {
	return func(ctx context.Context, f event.Fact) error {
		p, err := decodeProduct(f)
		if err != nil {
			return err
		}
		if err := cache.InvalidateProduct(ctx, p.Slug); err != nil {
			return err
		}
		return cache.InvalidateLists(ctx)
	}
}
