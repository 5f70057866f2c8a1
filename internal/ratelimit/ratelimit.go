// Package ratelimit bounds attempt rates per subject with fixed, TTL-scoped
// windows. The window TTL is set only on the increment that creates the
// counter, so a burst straddling a window boundary may briefly exceed the
// limit; callers needing tighter bounds should shrink the window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/velprakashr08-max/Frutify/internal/store"
)

type FailureMode string

const (
	// FailOpen admits traffic when the store is unreachable.
	FailOpen FailureMode = "fail_open"
	// FailClosed rejects traffic when the store is unreachable.
	FailClosed FailureMode = "fail_closed"
)

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter struct {
	kv   store.KV
	mode FailureMode
}

func New(kv store.KV, mode FailureMode) *Limiter {
	if mode == "" {
		mode = FailClosed
	}
	return &Limiter{kv: kv, mode: mode}
}

func key(scope, subject string) string {
	return fmt.Sprintf("rate:%s:%s", scope, subject)
}

// Allow records one attempt for (scope, subject) and reports whether it fits
// within limit per window. The attempt is counted even when denied.
func (l *Limiter) Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (Decision, error) {
	if subject == "" {
		subject = "unknown"
	}
	k := key(scope, subject)
	count, err := l.kv.IncrWithWindow(ctx, k, window)
	if err != nil {
		if l.mode == FailOpen {
			return Decision{Allowed: true}, nil
		}
		return Decision{}, err
	}
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{Allowed: count <= int64(limit), Remaining: remaining}
	if !d.Allowed {
		ttl, ok, ttlErr := l.kv.TTL(ctx, k)
		if ttlErr == nil && ok {
			d.RetryAfter = ttl
		} else {
			d.RetryAfter = window
		}
	}
	return d, nil
}
