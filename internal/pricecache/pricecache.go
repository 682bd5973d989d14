// Package pricecache is a shared price cache TargetEngine consults
// before hitting the Jupiter price endpoint on every tick. Backed by
// Redis when configured, the same remote-first/local-fallback shape the
// teacher uses for RPC endpoints (config.RPCConfig.FallbackURL): when no
// REDIS_URL is set, or Redis becomes unreachable, it transparently falls
// back to an in-process cache with identical TTL semantics.
package pricecache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const keyPrefix = "slopesniper:price:"

// Cache answers cached USD prices by mint, with a TTL per entry.
type Cache struct {
	rdb   *redis.Client
	local *localCache
}

// New builds a Cache. If redisURL is empty, or the initial ping fails,
// it falls back to the in-process cache and logs once rather than
// failing startup — a price cache is an optimization, not a dependency.
func New(ctx context.Context, redisURL string) *Cache {
	c := &Cache{local: newLocalCache()}
	if redisURL == "" {
		return c
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("pricecache: invalid REDIS_URL, using in-process cache")
		return c
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("pricecache: redis unreachable, using in-process cache")
		return c
	}

	c.rdb = rdb
	return c
}

// Get returns the cached price for mint, if present and unexpired.
func (c *Cache) Get(ctx context.Context, mint string) (decimal.Decimal, bool) {
	if c.rdb == nil {
		return c.local.get(mint)
	}

	val, err := c.rdb.Get(ctx, keyPrefix+mint).Result()
	if err == redis.Nil {
		return decimal.Zero, false
	}
	if err != nil {
		log.Warn().Err(err).Msg("pricecache: redis get failed, falling back to in-process cache")
		return c.local.get(mint)
	}

	price, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

// Set caches price for mint for ttl.
func (c *Cache) Set(ctx context.Context, mint string, price decimal.Decimal, ttl time.Duration) {
	c.local.set(mint, price, ttl)
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+mint, price.String(), ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("pricecache: redis set failed")
	}
}

// Close releases the Redis connection pool, if one was opened.
func (c *Cache) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

type localEntry struct {
	price   decimal.Decimal
	expires time.Time
}

type localCache struct {
	mu      sync.Mutex
	entries map[string]localEntry
}

func newLocalCache() *localCache {
	return &localCache{entries: map[string]localEntry{}}
}

func (l *localCache) get(mint string) (decimal.Decimal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[mint]
	if !ok {
		return decimal.Zero, false
	}
	if time.Now().After(e.expires) {
		delete(l.entries, mint)
		return decimal.Zero, false
	}
	return e.price, true
}

func (l *localCache) set(mint string, price decimal.Decimal, ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[mint] = localEntry{price: price, expires: time.Now().Add(ttl)}
}

// String helps debug log lines identify which backing store is active.
func (c *Cache) String() string {
	if c.rdb == nil {
		return "pricecache(in-process)"
	}
	return "pricecache(redis)"
}
