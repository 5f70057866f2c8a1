package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWithWindowScript creates the fixed-window semantics the rate limiter
// and the OTP attempts counter rely on: the TTL is applied only on the
// increment that created the key, so the window starts at first use and the
// counter vanishes when it elapses.
var incrWithWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

type RedisKV struct {
	client redis.UniversalClient
}

func NewRedisKV(client redis.UniversalClient) *RedisKV {
	return &RedisKV{client: client}
}

func (s *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (s *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %q: %v", ErrUnavailable, key, err)
	}
	return val, true, nil
}

func (s *RedisKV) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: del %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (s *RedisKV) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: setnx %q: %v", ErrUnavailable, key, err)
	}
	return ok, nil
}

func (s *RedisKV) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: incr %q: %v", ErrUnavailable, key, err)
	}
	return n, nil
}

func (s *RedisKV) IncrWithWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	raw, err := incrWithWindowScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: incr-window %q: %v", ErrUnavailable, key, err)
	}
	n, ok := raw.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected incr-window result type %T", raw)
	}
	return n, nil
}

func (s *RedisKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("%w: expire %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (s *RedisKV) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("%w: ttl %q: %v", ErrUnavailable, key, err)
	}
	// go-redis maps "no key" to -2ns and "no expiry" to -1ns.
	if d < 0 {
		return 0, false, nil
	}
	return d, true, nil
}
