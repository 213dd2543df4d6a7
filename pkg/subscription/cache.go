package subscription

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/planguard/pkg/cache"
)

// Entry is what the resolver caches per subscriber. A nil Subscription
// records that the subscriber has no current subscription.
type Entry struct {
	Subscription *Subscription `json:"subscription,omitempty"`
}

// Cache holds resolved subscriptions between lookups. Implementations may
// drop entries at any time.
type Cache interface {
	Get(ctx context.Context, subscriberID uuid.UUID) (Entry, bool)
	Set(ctx context.Context, subscriberID uuid.UUID, e Entry)
	Delete(ctx context.Context, subscriberID uuid.UUID)
}

// NoOpCache never stores anything.
type NoOpCache struct{}

func (NoOpCache) Get(context.Context, uuid.UUID) (Entry, bool) { return Entry{}, false }
func (NoOpCache) Set(context.Context, uuid.UUID, Entry)        {}
func (NoOpCache) Delete(context.Context, uuid.UUID)            {}

type lruCache struct {
	lru *cache.LRU[uuid.UUID, Entry]
}

// NewLRUCache keeps up to capacity entries in process memory for ttl.
func NewLRUCache(capacity int, ttl time.Duration) Cache {
	return &lruCache{lru: cache.New[uuid.UUID, Entry](capacity, cache.WithTTL(ttl))}
}

func (c *lruCache) Get(_ context.Context, id uuid.UUID) (Entry, bool) {
	e, ok := c.lru.Get(id)
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

func (c *lruCache) Set(_ context.Context, id uuid.UUID, e Entry) {
	c.lru.Put(id, e.clone())
}

func (c *lruCache) Delete(_ context.Context, id uuid.UUID) {
	c.lru.Remove(id)
}

// KV is the byte store a shared cache runs on; *redis.Storage satisfies it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type kvCache struct {
	kv  KV
	ttl time.Duration
}

// NewKVCache stores entries as JSON under "subscription:<subscriberID>".
// Store errors are treated as misses.
func NewKVCache(kv KV, ttl time.Duration) Cache {
	return &kvCache{kv: kv, ttl: ttl}
}

func (c *kvCache) Get(ctx context.Context, id uuid.UUID) (Entry, bool) {
	raw, ok, err := c.kv.Get(ctx, kvKey(id))
	if err != nil || !ok {
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false
	}
	return e, true
}

func (c *kvCache) Set(ctx context.Context, id uuid.UUID, e Entry) {
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	_ = c.kv.Set(ctx, kvKey(id), raw, c.ttl)
}

func (c *kvCache) Delete(ctx context.Context, id uuid.UUID) {
	_ = c.kv.Delete(ctx, kvKey(id))
}

func kvKey(id uuid.UUID) string {
	return "subscription:" + id.String()
}

func (e Entry) clone() Entry {
	if e.Subscription == nil {
		return e
	}
	sub := *e.Subscription
	return Entry{Subscription: &sub}
}
