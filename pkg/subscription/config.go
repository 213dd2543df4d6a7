package subscription

import "time"

// ResolverConfig configures the resolver cache and lookup bound.
type ResolverConfig struct {
	// CacheBackend is one of "memory", "redis" or "none".
	CacheBackend  string        `env:"RESOLVER_CACHE" envDefault:"memory"`
	CacheSize     int           `env:"RESOLVER_CACHE_SIZE" envDefault:"10000"`
	CacheTTL      time.Duration `env:"RESOLVER_CACHE_TTL" envDefault:"1m"`
	LookupTimeout time.Duration `env:"RESOLVER_LOOKUP_TIMEOUT" envDefault:"2s"`
}

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)
