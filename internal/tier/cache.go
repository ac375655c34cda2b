package tier

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"suptia-engine/internal/catalog"
	"suptia-engine/internal/scoring"
)

const (
	defaultCacheSize = 8
	defaultCacheTTL  = 15 * time.Minute
)

// CacheConfig configures the batch result cache.
type CacheConfig struct {
	MaxSize int
	TTL     time.Duration
}

type cacheEntry struct {
	batch    Batch
	storedAt time.Time
}

// Cache keeps recent catalog-wide tier batches keyed by a fingerprint of the
// catalog snapshot, so repeated reads of an unchanged catalog do not rescore
// it. Concurrent misses on the same key compute once.
type Cache struct {
	cache *lru.Cache[string, cacheEntry]
	size  int
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time

	mu     sync.Mutex
	hits   int
	misses int
}

// NewCache builds a cache; zero config values fall back to defaults.
func NewCache(config CacheConfig) *Cache {
	if config.MaxSize <= 0 {
		config.MaxSize = defaultCacheSize
	}
	if config.TTL <= 0 {
		config.TTL = defaultCacheTTL
	}
	// lru.New only fails on a non-positive size.
	cache, _ := lru.New[string, cacheEntry](config.MaxSize)
	return &Cache{cache: cache, size: config.MaxSize, ttl: config.TTL, now: time.Now}
}

// Fingerprint hashes everything a batch depends on: the products, the
// ingredient catalog the name matcher reads and the weight table.
func Fingerprint(snapshot catalog.Snapshot, weights scoring.WeightTable) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	// plain data, Encode cannot fail
	for _, p := range snapshot.Products {
		_ = enc.Encode(p)
	}
	h.Write([]byte{0})
	for _, ing := range snapshot.Ingredients {
		_ = enc.Encode(ing)
	}
	h.Write([]byte{0})
	_ = enc.Encode(weights)
	return hex.EncodeToString(h.Sum(nil))
}

// GetOrCompute returns the cached batch for the snapshot or runs compute
// and stores its result. hit reports whether compute was skipped.
func (c *Cache) GetOrCompute(snapshot catalog.Snapshot, weights scoring.WeightTable, compute func() (Batch, error)) (batch Batch, hit bool, err error) {
	key := Fingerprint(snapshot, weights)
	if entry, ok := c.cache.Get(key); ok {
		if c.now().Sub(entry.storedAt) < c.ttl {
			c.record(true)
			return entry.batch, true, nil
		}
		c.cache.Remove(key)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if entry, ok := c.cache.Get(key); ok && c.now().Sub(entry.storedAt) < c.ttl {
			return entry.batch, nil
		}
		b, err := compute()
		if err != nil {
			return Batch{}, err
		}
		c.cache.Add(key, cacheEntry{batch: b, storedAt: c.now()})
		return b, nil
	})
	c.record(false)
	if err != nil {
		return Batch{}, false, err
	}
	return v.(Batch), false, nil
}

// Purge drops every cached batch.
func (c *Cache) Purge() {
	c.cache.Purge()
}

// Stats returns hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Config returns the effective size and TTL.
func (c *Cache) Config() CacheConfig {
	return CacheConfig{MaxSize: c.size, TTL: c.ttl}
}

// Len returns the number of cached batches.
func (c *Cache) Len() int {
	return c.cache.Len()
}

func (c *Cache) record(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}
