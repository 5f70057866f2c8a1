// Package ledger is the processed-message dedup ledger shared by every
// consumer queue. A reservation is taken before the handler runs and rolled
// back when it fails, which is what turns at-least-once broker delivery into
// at-most-once handler effect.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/velprakashr08-max/Frutify/internal/store"
)

const DefaultTTL = 24 * time.Hour

type Ledger struct {
	kv  store.KV
	ttl time.Duration
}

func New(kv store.KV, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Ledger{kv: kv, ttl: ttl}
}

func key(queue, messageID string) string {
	return fmt.Sprintf("processed:%s:%s", messageID, queue)
}

// Reserve atomically claims (queue, messageID). It returns false when the
// pair was already claimed, meaning the handler ran (or is running) and the
// delivery should be acked without side effects.
func (l *Ledger) Reserve(ctx context.Context, queue, messageID string) (bool, error) {
	return l.kv.SetIfAbsent(ctx, key(queue, messageID), "1", l.ttl)
}

// Release rolls a reservation back after a failed handler so that a
// redelivery is retried instead of silently dropped.
func (l *Ledger) Release(ctx context.Context, queue, messageID string) error {
	return l.kv.Delete(ctx, key(queue, messageID))
}

// Processed reports whether the pair currently holds a reservation.
func (l *Ledger) Processed(ctx context.Context, queue, messageID string) (bool, error) {
	_, ok, err := l.kv.Get(ctx, key(queue, messageID))
	return ok, err
}
