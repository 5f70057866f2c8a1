package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/velprakashr08-max/Frutify/internal/media"
)

const (
	ProductTTL = 15 * time.Minute
	ListTTL    = 5 * time.Minute

	// TombstoneTTL bounds how long an invalidation blocks repopulation. A
	// read that loaded the row before an update can land its snapshot after
	// the invalidation consumer's delete; the tombstone makes that write a
	// no-op instead of pinning the stale value for the full TTL.
	TombstoneTTL = 2 * time.Second

	listIndexKey     = "products:list:index"
	listTombstoneKey = "products:list:tombstone"
)

// populateProductScript and populateListScript only write when no
// invalidation tombstone is live; the check and the write are one script so
// a tombstone cannot slip in between them.
var populateProductScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

var populateListScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[3]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SADD", KEYS[2], KEYS[1])
redis.call("PEXPIRE", KEYS[2], ARGV[3])
return 1
`)

// Snapshot is the denormalized product view served to the storefront. It is
// not authoritative; the system of record wins on miss or conflict.
type Snapshot struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Category    string    `json:"category"`
	Type        string    `json:"type"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	Unit        string    `json:"unit"`
	Organic     bool      `json:"organic"`
	ImageURLs   []string  `json:"image_urls,omitempty"`
	AvgRating   float64   `json:"avg_rating"`
	ReviewCount int       `json:"review_count"`
	CachedAt    time.Time `json:"cached_at"`
}

// Cache is the cache-aside layer over Store. List pages are tracked in a
// Redis set index so invalidation can drop every page without a keyspace
// scan, the same shape the evaluation caches elsewhere in this codebase use.
type Cache struct {
	client redis.UniversalClient
	store  *Store
	images media.Presigner // optional; nil skips URL presigning
}

func NewCache(client redis.UniversalClient, store *Store, images media.Presigner) *Cache {
	return &Cache{client: client, store: store, images: images}
}

func productKey(slug string) string   { return "product:" + slug }
func tombstoneKey(slug string) string { return "product:tombstone:" + slug }
func listKey(pageKey string) string   { return "products:list:" + pageKey }

// GetProduct serves the cached snapshot for slug, falling back to the
// system of record and populating the cache on a miss.
func (c *Cache) GetProduct(ctx context.Context, slug string) (*Snapshot, error) {
	raw, err := c.client.Get(ctx, productKey(slug)).Bytes()
	if err == nil {
		var snap Snapshot
		if jsonErr := json.Unmarshal(raw, &snap); jsonErr == nil {
			return &snap, nil
		}
		// Undecodable entry: drop it and fall through to the record.
		_ = c.client.Del(ctx, productKey(slug)).Err()
	} else if err != redis.Nil {
		return nil, fmt.Errorf("read product cache: %w", err)
	}

	p, err := c.store.ProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	snap := c.snapshot(ctx, p)
	if payload, jsonErr := json.Marshal(snap); jsonErr == nil {
		_, _ = c.populateProduct(ctx, slug, payload)
	}
	return &snap, nil
}

// populateProduct writes a freshly loaded snapshot unless an invalidation
// tombstone for slug is live. Returns false when the write was discarded.
func (c *Cache) populateProduct(ctx context.Context, slug string, payload []byte) (bool, error) {
	keys := []string{productKey(slug), tombstoneKey(slug)}
	stored, err := populateProductScript.Run(ctx, c.client, keys, payload, ProductTTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("populate product %q: %w", slug, err)
	}
	return stored == 1, nil
}

// GetProductList serves a cached page, keyed by the caller's pageKey
// (e.g. "page=2&limit=20"), populating on miss.
func (c *Cache) GetProductList(ctx context.Context, pageKey string, offset, limit int) ([]Snapshot, error) {
	raw, err := c.client.Get(ctx, listKey(pageKey)).Bytes()
	if err == nil {
		var page []Snapshot
		if jsonErr := json.Unmarshal(raw, &page); jsonErr == nil {
			return page, nil
		}
		_ = c.client.Del(ctx, listKey(pageKey)).Err()
	} else if err != redis.Nil {
		return nil, fmt.Errorf("read list cache: %w", err)
	}

	products, err := c.store.ProductPage(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	page := make([]Snapshot, 0, len(products))
	for i := range products {
		page = append(page, c.snapshot(ctx, &products[i]))
	}
	if payload, jsonErr := json.Marshal(page); jsonErr == nil {
		keys := []string{listKey(pageKey), listIndexKey, listTombstoneKey}
		_ = populateListScript.Run(ctx, c.client, keys,
			payload, ListTTL.Milliseconds(), (ListTTL + time.Minute).Milliseconds()).Err()
	}
	return page, nil
}

// InvalidateProduct drops the cached snapshot for slug. Callers observing a
// product.updated or product.deleted fact must also invalidate the list
// pages, since membership and ordering may have changed.
func (c *Cache) InvalidateProduct(ctx context.Context, slug string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, productKey(slug))
	pipe.Set(ctx, tombstoneKey(slug), "1", TombstoneTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("invalidate product %q: %w", slug, err)
	}
	return nil
}

// InvalidateLists drops every cached list page via the set index.
func (c *Cache) InvalidateLists(ctx context.Context) error {
	keys, err := c.client.SMembers(ctx, listIndexKey).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("read list index: %w", err)
	}
	pipe := c.client.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, listIndexKey)
	pipe.Set(ctx, listTombstoneKey, "1", TombstoneTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("invalidate list pages: %w", err)
	}
	return nil
}

func (c *Cache) snapshot(ctx context.Context, p *Product) Snapshot {
	snap := Snapshot{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Category:    p.Category,
		Type:        p.Type,
		Price:       p.Price,
		Stock:       p.Stock,
		Unit:        p.Unit,
		Organic:     p.Organic,
		AvgRating:   p.AvgRating,
		ReviewCount: p.ReviewCount,
		CachedAt:    time.Now().UTC(),
	}
	if c.images != nil {
		snap.ImageURLs = c.images.PresignAll(ctx, p.Images())
	}
	return snap
}
