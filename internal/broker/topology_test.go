package broker

import (
	"testing"

	"github.com/velprakashr08-max/Frutify/internal/event"
)

// queuesReceiving resolves which queues a routing key fans out to, using the
// same matching rules the broker applies.
func queuesReceiving(t Topology, exchange, routingKey string) []string {
	kinds := map[string]string{}
	for _, ex := range t.Exchanges {
		kinds[ex.Name] = ex.Kind
	}
	var out []string
	for _, q := range t.Queues {
		if q.Exchange != exchange {
			continue
		}
		for _, b := range q.Bindings {
			if MatchesBinding(kinds[exchange], b, routingKey) {
				out = append(out, q.Name)
				break
			}
		}
	}
	return out
}

func TestDefaultTopologyValid(t *testing.T) {
	if err := DefaultTopology().Validate(); err != nil {
		t.Fatalf("default topology invalid: %v", err)
	}
}

func TestOrderCreatedFanOut(t *testing.T) {
	got := queuesReceiving(DefaultTopology(), event.ExchangeOrders, event.OrderCreated)
	want := map[string]bool{
		QueueOrderEmail:     true,
		QueueOrderSMS:       true,
		QueueOrderPush:      true,
		QueueOrderAnalytics: true,
	}
	if len(got) != len(want) {
		t.Fatalf("order.created queues = %v", got)
	}
	for _, q := range got {
		if !want[q] {
			t.Fatalf("unexpected queue %q for order.created", q)
		}
	}
	// The review-request queue only listens for deliveries.
	for _, q := range got {
		if q == QueueOrderReviewRequest {
			t.Fatal("review_request must not see order.created")
		}
	}
}

func TestOrderDeliveredReachesReviewRequest(t *testing.T) {
	got := queuesReceiving(DefaultTopology(), event.ExchangeOrders, event.OrderDelivered)
	found := false
	for _, q := range got {
		if q == QueueOrderReviewRequest {
			found = true
		}
		if q == QueueOrderAnalytics {
			t.Fatal("analytics only ingests order.created")
		}
	}
	if !found {
		t.Fatalf("order.delivered queues = %v", got)
	}
}

func TestPaymentRoutingIsExact(t *testing.T) {
	top := DefaultTopology()
	if got := queuesReceiving(top, event.ExchangePayments, event.PaymentSuccess); len(got) != 1 || got[0] != QueuePaymentConfirmOrder {
		t.Fatalf("payment.success queues = %v", got)
	}
	if got := queuesReceiving(top, event.ExchangePayments, event.PaymentFailed); len(got) != 1 || got[0] != QueuePaymentNotifyFailure {
		t.Fatalf("payment.failed queues = %v", got)
	}
	if got := queuesReceiving(top, event.ExchangePayments, "payment.unknown"); len(got) != 0 {
		t.Fatalf("unbound key should route nowhere, got %v", got)
	}
}

func TestCacheInvalidateSeesUpdateAndDelete(t *testing.T) {
	top := DefaultTopology()
	for _, key := range []string{event.ProductUpdated, event.ProductDeleted} {
		found := false
		for _, q := range queuesReceiving(top, event.ExchangeCatalog, key) {
			if q == QueueCatalogCacheInvalidate {
				found = true
			}
		}
		if !found {
			t.Fatalf("cache_invalidate must be bound to %s", key)
		}
	}
	for _, q := range queuesReceiving(top, event.ExchangeCatalog, event.ProductCreated) {
		if q == QueueCatalogCacheInvalidate {
			t.Fatal("product.created does not invalidate caches")
		}
	}
}

func TestTopicMatching(t *testing.T) {
	cases := []struct {
		kind, pattern, key string
		want               bool
	}{
		{"topic", "order.*", "order.created", true},
		{"topic", "order.*", "order.created.v2", false},
		{"topic", "#", "anything.at.all", true},
		{"topic", "order.#", "order", true},
		{"topic", "order.#", "order.created.v2", true},
		{"topic", "*.created", "order.created", true},
		{"topic", "*.created", "created", false},
		{"direct", "payment.success", "payment.success", true},
		{"direct", "payment.*", "payment.success", false},
	}
	for _, c := range cases {
		if got := MatchesBinding(c.kind, c.pattern, c.key); got != c.want {
			t.Fatalf("MatchesBinding(%s, %q, %q)=%v want %v", c.kind, c.pattern, c.key, got, c.want)
		}
	}
}

func TestValidateRejectsBrokenTopologies(t *testing.T) {
	bad := Topology{
		Exchanges: []ExchangeSpec{{Name: "x", Kind: "topic"}},
		Queues:    []QueueSpec{{Name: "q", Exchange: "x"}},
	}
	if err := bad.Validate(); err == nil {
		t.Fatal("queue without bindings must be rejected")
	}

	bad = Topology{
		Exchanges: []ExchangeSpec{{Name: "x", Kind: "fanout"}},
	}
	if err := bad.Validate(); err == nil {
		t.Fatal("unsupported exchange kind must be rejected")
	}

	bad = Topology{
		Queues: []QueueSpec{{Name: "q", Exchange: "ghost", Bindings: []string{"a"}}},
	}
	if err := bad.Validate(); err == nil {
		t.Fatal("binding to an undeclared exchange must be rejected")
	}
}
