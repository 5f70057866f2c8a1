package catalog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newCacheForTest(t *testing.T) (*miniredis.Miniredis, *Store, *Cache) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := newStoreForTest(t)
	return m, s, NewCache(client, s, nil)
}

func TestGetProductPopulatesOnMiss(t *testing.T) {
	m, s, c := newCacheForTest(t)
	seedProduct(t, s, "organic-carrot")
	ctx := context.Background()

	snap, err := c.GetProduct(ctx, "organic-carrot")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.Name != "Organic Carrot" || snap.Price != 49 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if !m.Exists("product:organic-carrot") {
		t.Fatal("expected cache populated after miss")
	}

	// A later DB change is not visible until the TTL elapses or the entry
	// is invalidated: the snapshot is served from cache.
	s.db.Model(&Product{}).Where("slug = ?", "organic-carrot").Update("price", 99)
	snap2, err := c.GetProduct(ctx, "organic-carrot")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if snap2.Price != 49 {
		t.Fatalf("expected cached price 49, got %v", snap2.Price)
	}

	m.FastForward(ProductTTL + time.Second)
	snap3, err := c.GetProduct(ctx, "organic-carrot")
	if err != nil {
		t.Fatalf("third get: %v", err)
	}
	if snap3.Price != 99 {
		t.Fatalf("expected repopulated price 99, got %v", snap3.Price)
	}
}

func TestInvalidateProductDropsStaleSnapshot(t *testing.T) {
	m, s, c := newCacheForTest(t)
	seedProduct(t, s, "alphonso-mango")
	ctx := context.Background()

	if _, err := c.GetProduct(ctx, "alphonso-mango"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	s.db.Model(&Product{}).Where("slug = ?", "alphonso-mango").Update("price", 500)

	// Simulate a stale in-flight writer racing the invalidation: the stale
	// snapshot lands first, then the invalidation consumer deletes.
	stale, _ := json.Marshal(Snapshot{Slug: "alphonso-mango", Price: 320})
	m.Set("product:alphonso-mango", string(stale))

	if err := c.InvalidateProduct(ctx, "alphonso-mango"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if m.Exists("product:alphonso-mango") {
		t.Fatal("invalidation must leave the entry absent")
	}

	snap, err := c.GetProduct(ctx, "alphonso-mango")
	if err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if snap.Price != 500 {
		t.Fatalf("expected post-update price 500, got %v", snap.Price)
	}
}

func TestStaleWriteAfterInvalidationIsDiscarded(t *testing.T) {
	m, s, c := newCacheForTest(t)
	seedProduct(t, s, "alphonso-mango")
	ctx := context.Background()

	// Reader A misses and loads the row before the update commits. The
	// update lands, the invalidation consumer deletes, and only then does
	// A's populate arrive carrying the pre-update snapshot.
	stale, _ := json.Marshal(Snapshot{Slug: "alphonso-mango", Price: 320})
	s.db.Model(&Product{}).Where("slug = ?", "alphonso-mango").Update("price", 500)
	if err := c.InvalidateProduct(ctx, "alphonso-mango"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	stored, err := c.populateProduct(ctx, "alphonso-mango", stale)
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	if stored {
		t.Fatal("stale populate must lose to a live invalidation tombstone")
	}
	if m.Exists("product:alphonso-mango") {
		t.Fatal("discarded populate must leave no entry behind")
	}

	// Reads inside the tombstone window still serve the record.
	snap, err := c.GetProduct(ctx, "alphonso-mango")
	if err != nil {
		t.Fatalf("get during tombstone: %v", err)
	}
	if snap.Price != 500 {
		t.Fatalf("expected post-update price 500, got %v", snap.Price)
	}
	if m.Exists("product:alphonso-mango") {
		t.Fatal("populate must stay suppressed while the tombstone lives")
	}

	// Once the tombstone lapses, population resumes.
	m.FastForward(TombstoneTTL + time.Second)
	if _, err := c.GetProduct(ctx, "alphonso-mango"); err != nil {
		t.Fatalf("get after tombstone: %v", err)
	}
	if !m.Exists("product:alphonso-mango") {
		t.Fatal("expected repopulation after the tombstone expires")
	}
}

func TestListCacheAndIndexInvalidation(t *testing.T) {
	m, s, c := newCacheForTest(t)
	seedProduct(t, s, "spinach")
	seedProduct(t, s, "papaya")
	ctx := context.Background()

	page, err := c.GetProductList(ctx, "page=1&limit=20", 0, 20)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 products, got %d", len(page))
	}
	if !m.Exists("products:list:page=1&limit=20") {
		t.Fatal("expected list page cached")
	}

	if _, err := c.GetProductList(ctx, "page=2&limit=20", 20, 20); err != nil {
		t.Fatalf("second page: %v", err)
	}

	if err := c.InvalidateLists(ctx); err != nil {
		t.Fatalf("invalidate lists: %v", err)
	}
	if m.Exists("products:list:page=1&limit=20") || m.Exists("products:list:page=2&limit=20") {
		t.Fatal("expected every list page dropped")
	}
	if m.Exists(listIndexKey) {
		t.Fatal("expected list index dropped")
	}
}

func TestUndecodableEntryFallsBackToRecord(t *testing.T) {
	m, s, c := newCacheForTest(t)
	seedProduct(t, s, "banana")
	m.Set("product:banana", "{not json")

	snap, err := c.GetProduct(context.Background(), "banana")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.Slug != "banana" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
