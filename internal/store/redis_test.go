package store

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newKVForTest(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return m, NewRedisKV(client)
}

func TestSetGetDelete(t *testing.T) {
	_, kv := newKVForTest(t)
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, ok, err := kv.Get(ctx, "k")
	if err != nil || !ok || val != "v" {
		t.Fatalf("get mismatch val=%q ok=%v err=%v", val, ok, err)
	}
	if err := kv.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "k"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestSetIfAbsent(t *testing.T) {
	_, kv := newKVForTest(t)
	ctx := context.Background()

	ok, err := kv.SetIfAbsent(ctx, "k", "first", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first setnx to win, ok=%v err=%v", ok, err)
	}
	ok, err = kv.SetIfAbsent(ctx, "k", "second", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second setnx to lose, ok=%v err=%v", ok, err)
	}
	val, _, _ := kv.Get(ctx, "k")
	if val != "first" {
		t.Fatalf("expected original value preserved, got %q", val)
	}
}

func TestIncrWithWindowResetsAfterExpiry(t *testing.T) {
	m, kv := newKVForTest(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := kv.IncrWithWindow(ctx, "w", time.Minute)
		if err != nil || n != want {
			t.Fatalf("incr %d: n=%d err=%v", want, n, err)
		}
	}
	d, ok, err := kv.TTL(ctx, "w")
	if err != nil || !ok || d <= 0 || d > time.Minute {
		t.Fatalf("expected window ttl set once, got d=%v ok=%v err=%v", d, ok, err)
	}

	m.FastForward(time.Minute + time.Second)

	n, err := kv.IncrWithWindow(ctx, "w", time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("expected counter reset after window, n=%d err=%v", n, err)
	}
}

func TestTTLAbsentKey(t *testing.T) {
	_, kv := newKVForTest(t)
	if _, ok, err := kv.TTL(context.Background(), "nope"); err != nil || ok {
		t.Fatalf("expected absent ttl, ok=%v err=%v", ok, err)
	}
}

func TestTransportFailureIsNotAMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:1",
		DialTimeout:  20 * time.Millisecond,
		ReadTimeout:  20 * time.Millisecond,
		WriteTimeout: 20 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	kv := NewRedisKV(client)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, _, err := kv.Get(ctx, "k"); err == nil {
		t.Fatal("expected transport error")
	}
	if _, err := kv.SetIfAbsent(ctx, "k", "v", time.Minute); err == nil {
		t.Fatal("expected transport error from setnx")
	}
}
