// Package cart keeps per-user carts in the keyed store. Items are
// denormalized snapshots taken at add time; price drift against the catalog
// is reconciled at checkout, not here.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/velprakashr08-max/Frutify/internal/store"
)

const DefaultTTL = 24 * time.Hour

type Item struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Unit      string  `json:"unit"`
}

type Store struct {
	kv  store.KV
	ttl time.Duration
}

func NewStore(kv store.KV, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{kv: kv, ttl: ttl}
}

func key(userID string) string { return "cart:" + userID }

// Put replaces the user's cart and restarts its 24h idle expiry.
func (s *Store) Put(ctx context.Context, userID string, items []Item) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.kv.Set(ctx, key(userID), string(payload), s.ttl); err != nil {
		return fmt.Errorf("store cart: %w", err)
	}
	return nil
}

// Get returns the user's cart; an absent or expired cart is empty, not an
// error.
func (s *Store) Get(ctx context.Context, userID string) ([]Item, error) {
	raw, ok, err := s.kv.Get(ctx, key(userID))
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return items, nil
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.kv.Delete(ctx, key(userID))
}
