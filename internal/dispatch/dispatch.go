// Package dispatch runs the per-queue consumer loop: ledger check, reserve,
// handle under a deadline, ack, and on failure rollback plus retry or
// dead-letter. Handlers are pure functions of the fact; all broker
// acknowledgment and ledger bookkeeping stays here so handler authors
// cannot bypass the idempotency discipline.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/velprakashr08-max/Frutify/internal/broker"
	"github.com/velprakashr08-max/Frutify/internal/event"
	"github.com/velprakashr08-max/Frutify/internal/ledger"
	"github.com/velprakashr08-max/Frutify/internal/observability"
)

// ErrPoison marks a delivery that can never succeed (undecodable payload).
// Handlers wrap decode failures with it; the dispatcher dead-letters such
// deliveries immediately instead of burning the retry budget.
var ErrPoison = errors.New("poison message")

type Handler func(ctx context.Context, f event.Fact) error

type Options struct {
	// Workers is the number of goroutines competing on one queue.
	Workers int
	// MaxAttempts caps handler executions per delivery before dead-letter.
	MaxAttempts int
	// HandlerTimeout is the per-message deadline enforced regardless of
	// handler behavior.
	HandlerTimeout time.Duration
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.HandlerTimeout <= 0 {
		o.HandlerTimeout = 30 * time.Second
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
	return o
}

type Dispatcher struct {
	queue   string
	source  broker.Source
	ledger  *ledger.Ledger
	handler Handler
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

func New(queue string, source broker.Source, led *ledger.Ledger, handler Handler, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		source:  source,
		ledger:  led,
		handler: handler,
		opts:    opts.withDefaults(),
		logger:  logger.With("queue", queue),
		metrics: metrics,
		tracer:  observability.Tracer(),
	}
}

// Run consumes until ctx ends. A closed delivery channel means the broker
// connection dropped; consumption resumes on a fresh channel and the broker
// redelivers whatever was unacked.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		deliveries, err := d.source.Consume(ctx, d.queue)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.WarnContext(ctx, "consume failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.opts.BaseBackoff):
			}
			continue
		}
		d.drain(ctx, deliveries)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.logger.WarnContext(ctx, "delivery stream closed, reconnecting")
	}
}

func (d *Dispatcher) drain(ctx context.Context, deliveries <-chan broker.Delivery) {
	var wg sync.WaitGroup
	for i := 0; i < d.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dlv := range deliveries {
				d.process(ctx, dlv)
			}
		}()
	}
	wg.Wait()
}

func (d *Dispatcher) process(ctx context.Context, dlv broker.Delivery) {
	ctx, span := d.tracer.Start(ctx, "consume "+d.queue, trace.WithAttributes(
		attribute.String("messaging.destination", d.queue),
		attribute.String("messaging.message_id", dlv.MessageID),
		attribute.String("messaging.routing_key", dlv.RoutingKey),
	))
	defer span.End()

	if dlv.MessageID == "" {
		// Without a producer-assigned id there is nothing to dedup on;
		// the contract was violated and retrying cannot fix it.
		d.logger.ErrorContext(ctx, "delivery without message id, dead-lettering")
		d.metrics.MessagesPoison.WithLabelValues(d.queue).Inc()
		d.rejectQuietly(ctx, dlv, false)
		return
	}

	reserved, ok := d.reserveWithRetry(ctx, dlv.MessageID)
	if !ok {
		// Ledger unreachable: state unknown, hand the delivery back.
		d.rejectQuietly(ctx, dlv, true)
		return
	}
	if !reserved {
		d.metrics.MessagesDuplicate.WithLabelValues(d.queue).Inc()
		d.logger.DebugContext(ctx, "duplicate delivery skipped", "message_id", dlv.MessageID)
		d.ackQuietly(ctx, dlv)
		return
	}

	start := time.Now()
	err := d.runHandler(ctx, dlv.Fact())
	d.metrics.HandlerDuration.WithLabelValues(d.queue).Observe(time.Since(start).Seconds())

	if err == nil {
		d.metrics.MessagesProcessed.WithLabelValues(d.queue).Inc()
		d.ackQuietly(ctx, dlv)
		return
	}

	// Roll the reservation back before anything else, otherwise the
	// redelivery would be skipped as already-done without having run.
	if rmErr := d.releaseWithRetry(ctx, dlv.MessageID); rmErr != nil {
		d.logger.ErrorContext(ctx, "reservation rollback failed, redelivery may be skipped",
			"message_id", dlv.MessageID, "error", rmErr)
	}

	if errors.Is(err, ErrPoison) {
		d.metrics.MessagesPoison.WithLabelValues(d.queue).Inc()
		d.logger.ErrorContext(ctx, "poison message dead-lettered", "message_id", dlv.MessageID, "error", err)
		d.rejectQuietly(ctx, dlv, false)
		return
	}

	attempt := dlv.RetryCount + 1
	if attempt >= d.opts.MaxAttempts {
		d.metrics.MessagesDeadLettered.WithLabelValues(d.queue).Inc()
		d.logger.ErrorContext(ctx, "retries exhausted, dead-lettering",
			"message_id", dlv.MessageID, "attempts", attempt, "error", err)
		d.rejectQuietly(ctx, dlv, false)
		return
	}

	d.metrics.MessagesRetried.WithLabelValues(d.queue).Inc()
	d.logger.WarnContext(ctx, "handler failed, retrying",
		"message_id", dlv.MessageID, "attempt", attempt, "error", err)

	select {
	case <-ctx.Done():
		// Shutting down mid-retry: leave the delivery unacked for the
		// broker to redeliver.
		d.rejectQuietly(ctx, dlv, true)
		return
	case <-time.After(backoffDelay(d.opts.BaseBackoff, d.opts.MaxBackoff, attempt)):
	}

	if reqErr := d.source.Requeue(ctx, dlv, attempt); reqErr != nil {
		d.logger.WarnContext(ctx, "requeue failed, returning delivery to broker", "error", reqErr)
		d.rejectQuietly(ctx, dlv, true)
		return
	}
	d.ackQuietly(ctx, dlv)
}

// runHandler enforces the per-message deadline independent of the handler's
// own behavior; a handler that neither returns nor times out would otherwise
// wedge its worker forever.
func (d *Dispatcher) runHandler(ctx context.Context, f event.Fact) error {
	hctx, cancel := context.WithTimeout(ctx, d.opts.HandlerTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.handler(hctx, f) }()
	select {
	case err := <-done:
		return err
	case <-hctx.Done():
		return hctx.Err()
	}
}

func (d *Dispatcher) reserveWithRetry(ctx context.Context, messageID string) (reserved, ok bool) {
	delay := d.opts.BaseBackoff
	for attempt := 0; attempt < 3; attempt++ {
		reserved, err := d.ledger.Reserve(ctx, d.queue, messageID)
		if err == nil {
			return reserved, true
		}
		d.logger.WarnContext(ctx, "ledger reserve failed", "message_id", messageID, "error", err)
		select {
		case <-ctx.Done():
			return false, false
		case <-time.After(delay):
		}
		delay *= 2
	}
	return false, false
}

func (d *Dispatcher) releaseWithRetry(ctx context.Context, messageID string) error {
	var err error
	delay := d.opts.BaseBackoff
	for attempt := 0; attempt < 3; attempt++ {
		if err = d.ledger.Release(ctx, d.queue, messageID); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

func (d *Dispatcher) ackQuietly(ctx context.Context, dlv broker.Delivery) {
	if err := dlv.Ack(); err != nil {
		d.logger.WarnContext(ctx, "ack failed", "message_id", dlv.MessageID, "error", err)
	}
}

func (d *Dispatcher) rejectQuietly(ctx context.Context, dlv broker.Delivery, requeue bool) {
	if err := dlv.Reject(requeue); err != nil {
		d.logger.WarnContext(ctx, "reject failed", "message_id", dlv.MessageID, "error", err)
	}
}

func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
