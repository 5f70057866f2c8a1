package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/velprakashr08-max/Frutify/internal/store"
)

func newLedgerForTest(t *testing.T) (*miniredis.Miniredis, *Ledger) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return m, New(store.NewRedisKV(client), time.Hour)
}

func TestReserveOnlyOnce(t *testing.T) {
	_, l := newLedgerForTest(t)
	ctx := context.Background()

	ok, err := l.Reserve(ctx, "q.order.email", "m-1")
	if err != nil || !ok {
		t.Fatalf("first reserve: ok=%v err=%v", ok, err)
	}
	ok, err = l.Reserve(ctx, "q.order.email", "m-1")
	if err != nil || ok {
		t.Fatalf("duplicate reserve should lose: ok=%v err=%v", ok, err)
	}

	// Same message on a different queue is an independent claim.
	ok, err = l.Reserve(ctx, "q.order.sms", "m-1")
	if err != nil || !ok {
		t.Fatalf("other-queue reserve: ok=%v err=%v", ok, err)
	}
}

func TestReserveConcurrentSingleWinner(t *testing.T) {
	_, l := newLedgerForTest(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Reserve(ctx, "q", "race-msg")
			if err != nil {
				t.Errorf("reserve: %v", err)
				return
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)
	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}
}

func TestReleaseAllowsRetry(t *testing.T) {
	_, l := newLedgerForTest(t)
	ctx := context.Background()

	if ok, _ := l.Reserve(ctx, "q", "m-2"); !ok {
		t.Fatal("expected initial reserve to win")
	}
	if err := l.Release(ctx, "q", "m-2"); err != nil {
		t.Fatalf("release: %v", err)
	}
	done, err := l.Processed(ctx, "q", "m-2")
	if err != nil || done {
		t.Fatalf("expected not-processed after release, done=%v err=%v", done, err)
	}
	if ok, _ := l.Reserve(ctx, "q", "m-2"); !ok {
		t.Fatal("expected re-reserve to win after release")
	}
}

func TestReservationExpires(t *testing.T) {
	m, l := newLedgerForTest(t)
	ctx := context.Background()

	if ok, _ := l.Reserve(ctx, "q", "m-3"); !ok {
		t.Fatal("reserve")
	}
	m.FastForward(2 * time.Hour)
	done, err := l.Processed(ctx, "q", "m-3")
	if err != nil || done {
		t.Fatalf("expected reservation to expire, done=%v err=%v", done, err)
	}
}
