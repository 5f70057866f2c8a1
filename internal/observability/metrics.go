package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics carries every counter the backbone exposes. One instance per
// process, registered against a single registry so /metrics serves it all.
type Metrics struct {
	Registry *prometheus.Registry

	MessagesProcessed    *prometheus.CounterVec
	MessagesDuplicate    *prometheus.CounterVec
	MessagesRetried      *prometheus.CounterVec
	MessagesDeadLettered *prometheus.CounterVec
	MessagesPoison       *prometheus.CounterVec
	HandlerDuration      *prometheus.HistogramVec

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
	RedisErrors *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.MessagesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backbone_messages_processed_total",
		Help: "Messages whose handler completed and were acked.",
	}, []string{"queue"})
	m.MessagesDuplicate = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backbone_messages_duplicate_total",
		Help: "Deliveries skipped because the ledger already held a reservation.",
	}, []string{"queue"})
	m.MessagesRetried = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backbone_messages_retried_total",
		Help: "Deliveries requeued after a handler failure.",
	}, []string{"queue"})
	m.MessagesDeadLettered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backbone_messages_dead_lettered_total",
		Help: "Deliveries rejected to the dead-letter exchange.",
	}, []string{"queue"})
	m.MessagesPoison = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backbone_messages_poison_total",
		Help: "Deliveries dead-lettered immediately because the payload will never decode.",
	}, []string{"queue"})
	m.HandlerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backbone_handler_duration_seconds",
		Help:    "Handler wall time per queue.",
		Buckets: prometheus.DefBuckets,
	}, []string{"queue"})

	m.CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backbone_keyspace_hits_total",
		Help: "Keyspace reads that found a value.",
	}, []string{"command"})
	m.CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backbone_keyspace_misses_total",
		Help: "Keyspace reads that found nothing.",
	}, []string{"command"})
	m.RedisErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backbone_redis_errors_total",
		Help: "Store errors by class.",
	}, []string{"class"})

	m.Registry.MustRegister(
		m.MessagesProcessed, m.MessagesDuplicate, m.MessagesRetried,
		m.MessagesDeadLettered, m.MessagesPoison, m.HandlerDuration,
		m.CacheHits, m.CacheMisses, m.RedisErrors,
	)
	return m
}
