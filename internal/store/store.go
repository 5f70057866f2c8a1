package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable reports a transport failure against the backing store. The
// caller must treat the key state as unknown, never as absent.
var ErrUnavailable = errors.New("keyed store unavailable")

// KV is the keyed expiring store every auxiliary component is built on.
// All operations are atomic with respect to concurrent callers on the same
// key; SetIfAbsent and Incr are single round trips, never read-modify-write.
type KV interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns (value, true, nil) on a hit and ("", false, nil) on a
	// miss. A non-nil error means the store could not be reached.
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	// IncrWithWindow increments key and, only when this increment created
	// the key, sets its TTL to window. One round trip.
	IncrWithWindow(ctx context.Context, key string, window time.Duration) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL returns the remaining lifetime, or (0, false, nil) when the key
	// is absent or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
}
