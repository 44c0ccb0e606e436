package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orderflow/core/pkg/catalog"
)

// CacheConfig tunes the two-tier cache's TTL (MATCH_CACHE_TTL,
// default 1 hour).
type CacheConfig struct {
	TTL time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: time.Hour}
}

type cacheEntry struct {
	candidates []catalog.Candidate
	expiresAt  time.Time
}

// Cache is the two-tier cache fronting the external catalog: an
// in-process map for the hot path, with Redis as the durable tier so
// other case-store replicas can share cached matches. On a
// catalog error, a stale entry from either tier may still be served,
// flagged via StaleCache so the caller can emit a stale_cache audit
// note.
type Cache struct {
	mu     sync.RWMutex
	memory map[string]cacheEntry
	redis  *redis.Client
	cfg    CacheConfig
	client catalog.Client
}

func NewCache(client catalog.Client, redisClient *redis.Client, cfg CacheConfig) *Cache {
	return &Cache{
		memory: make(map[string]cacheEntry),
		redis:  redisClient,
		cfg:    cfg,
		client: client,
	}
}

func customerCacheKey(tenant, name string) string {
	return fmt.Sprintf("customer:%s:%s", tenant, name)
}

func itemCacheKey(tenant, sku, gtin, description string) string {
	return fmt.Sprintf("item:%s:%s:%s:%s", tenant, sku, gtin, description)
}

func (c *Cache) CustomerCandidates(ctx context.Context, tenant, name string) ([]catalog.Candidate, bool, error) {
	key := customerCacheKey(tenant, name)
	return c.get(ctx, key, func() ([]catalog.Candidate, error) {
		return c.client.SearchCustomer(ctx, name, tenant)
	})
}

func (c *Cache) ItemCandidates(ctx context.Context, tenant, sku, gtin, description string) ([]catalog.Candidate, bool, error) {
	key := itemCacheKey(tenant, sku, gtin, description)
	query := sku
	if query == "" {
		query = gtin
	}
	if query == "" {
		query = description
	}
	return c.get(ctx, key, func() ([]catalog.Candidate, error) {
		return c.client.SearchItem(ctx, query, tenant)
	})
}

// get checks the in-memory tier, then Redis, then the catalog itself.
// On a live catalog success, both tiers are refreshed. On a catalog
// error, a stale entry from either tier is served if one exists.
func (c *Cache) get(ctx context.Context, key string, fetch func() ([]catalog.Candidate, error)) ([]catalog.Candidate, bool, error) {
	if entry, ok := c.memoryGet(key); ok && time.Now().Before(entry.expiresAt) {
		return entry.candidates, false, nil
	}

	if candidates, ok := c.redisGet(ctx, key); ok {
		c.memorySet(key, candidates)
		return candidates, false, nil
	}

	candidates, err := fetch()
	if err != nil {
		if entry, ok := c.memoryGet(key); ok {
			return entry.candidates, true, nil
		}
		if candidates, ok := c.redisGetIgnoringTTL(ctx, key); ok {
			return candidates, true, nil
		}
		return nil, false, err
	}

	c.memorySet(key, candidates)
	c.redisSet(ctx, key, candidates)
	return candidates, false, nil
}

func (c *Cache) memoryGet(key string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.memory[key]
	return entry, ok
}

func (c *Cache) memorySet(key string, candidates []catalog.Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory[key] = cacheEntry{candidates: candidates, expiresAt: time.Now().Add(c.cfg.TTL)}
}

func (c *Cache) redisGet(ctx context.Context, key string) ([]catalog.Candidate, bool) {
	if c.redis == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var candidates []catalog.Candidate
	if err := json.Unmarshal(raw, &candidates); err != nil {
		return nil, false
	}
	return candidates, true
}

// redisGetIgnoringTTL reads from redis even if our own bookkeeping would
// consider the value expired; Redis's own TTL already governs eviction,
// so any value still present is fair game for a stale-serving fallback.
func (c *Cache) redisGetIgnoringTTL(ctx context.Context, key string) ([]catalog.Candidate, bool) {
	return c.redisGet(ctx, key)
}

func (c *Cache) redisSet(ctx context.Context, key string, candidates []catalog.Candidate) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(candidates)
	if err != nil {
		return
	}
	c.redis.Set(ctx, key, raw, c.cfg.TTL)
}
