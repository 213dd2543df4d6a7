// Package ratelimit throttles API callers with an in-memory token bucket.
//
// Each key owns a bucket holding up to Burst tokens that refills Rate tokens
// every Interval. Buckets live in a bounded LRU, so idle keys are forgotten
// once they would have refilled completely anyway.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/dmitrymomot/planguard/pkg/cache"
)

var ErrInvalidConfig = errors.New("ratelimit.errors.invalid_config")

// Config is read from the environment by cmd/server. A zero Rate disables limiting.
type Config struct {
	Rate     int           `env:"RATE_LIMIT_RATE" envDefault:"120"`
	Interval time.Duration `env:"RATE_LIMIT_INTERVAL" envDefault:"1m"`
	Burst    int           `env:"RATE_LIMIT_BURST" envDefault:"30"`
	MaxKeys  int           `env:"RATE_LIMIT_MAX_KEYS" envDefault:"10000"`
}

func (c Config) Enabled() bool { return c.Rate > 0 }

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time // when the bucket is full again
}

// RetryAfter is how long a denied caller should wait for one token.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed {
		return 0
	}
	return max(r.ResetAt.Sub(now), 0)
}

// Limiter is implemented by TokenBucket.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

type bucket struct {
	tokens float64
	last   time.Time
}

type TokenBucket struct {
	mu      sync.Mutex
	burst   float64
	perTick float64 // tokens per nanosecond
	buckets *cache.LRU[string, bucket]
	now     func() time.Time
}

type Option func(*TokenBucket)

func WithClock(now func() time.Time) Option {
	return func(tb *TokenBucket) {
		if now != nil {
			tb.now = now
		}
	}
}

func NewTokenBucket(cfg Config, opts ...Option) (*TokenBucket, error) {
	if cfg.Rate <= 0 || cfg.Interval <= 0 || cfg.Burst <= 0 {
		return nil, ErrInvalidConfig
	}
	tb := &TokenBucket{
		burst:   float64(cfg.Burst),
		perTick: float64(cfg.Rate) / float64(cfg.Interval),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(tb)
	}

	fill := time.Duration(math.Ceil(tb.burst / tb.perTick))
	tb.buckets = cache.New[string, bucket](max(cfg.MaxKeys, 1), cache.WithTTL(fill), cache.WithClock(tb.now))
	return tb, nil
}

// Allow takes one token from key's bucket when one is available.
func (tb *TokenBucket) Allow(_ context.Context, key string) (Result, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets.Get(key)
	if !ok {
		b = bucket{tokens: tb.burst, last: now}
	}
	if elapsed := now.Sub(b.last); elapsed > 0 {
		b.tokens = min(tb.burst, b.tokens+float64(elapsed)*tb.perTick)
		b.last = now
	}

	res := Result{Limit: int(tb.burst)}
	if b.tokens >= 1 {
		b.tokens--
		res.Allowed = true
	}
	tb.buckets.Put(key, b)

	res.Remaining = int(b.tokens)
	if res.Allowed {
		res.ResetAt = now.Add(time.Duration(math.Ceil((tb.burst - b.tokens) / tb.perTick)))
	} else {
		res.ResetAt = now.Add(time.Duration(math.Ceil((1 - b.tokens) / tb.perTick)))
	}
	return res, nil
}
