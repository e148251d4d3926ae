package embed

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zcb617/openclaw-memory-pro/config"
	"github.com/zcb617/openclaw-memory-pro/pkg/memory"
)

// Cache stores embedding vectors keyed by content hash. Lookups are
// best-effort: a cache failure never fails an embedding call.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vector []float32)
}

// NewCache builds the cache backend named by the configuration.
func NewCache(cfg config.EmbedCacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "memory", "":
		size := cfg.Size
		if size <= 0 {
			size = 1024
		}
		return newLRUCache(size), nil
	case "redis":
		if cfg.RedisAddress == "" {
			return nil, fmt.Errorf("embed: redis address is required for the redis cache backend")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return &redisCache{client: client, ttl: cfg.TTL}, nil
	default:
		return nil, fmt.Errorf("embed: unknown cache backend %q", cfg.Backend)
	}
}

// CacheKey hashes text into a stable cache key.
func CacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embed:" + hex.EncodeToString(sum[:])
}

// --- In-memory LRU backend ---

type lruCache struct {
	mu       sync.Mutex
	maxSize  int
	items    map[string]*list.Element
	eviction *list.List
}

type lruItem struct {
	key    string
	vector []float32
}

func newLRUCache(maxSize int) *lruCache {
	return &lruCache{
		maxSize:  maxSize,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
	}
}

func (c *lruCache) Get(ctx context.Context, key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		return elem.Value.(*lruItem).vector, true
	}
	return nil, false
}

func (c *lruCache) Set(ctx context.Context, key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		elem.Value.(*lruItem).vector = vector
		return
	}

	if c.eviction.Len() >= c.maxSize {
		back := c.eviction.Back()
		if back != nil {
			c.eviction.Remove(back)
			delete(c.items, back.Value.(*lruItem).key)
		}
	}
	c.items[key] = c.eviction.PushFront(&lruItem{key: key, vector: vector})
}

// --- Redis backend ---

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (c *redisCache) Get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, false
	}
	return vector, true
}

func (c *redisCache) Set(ctx context.Context, key string, vector []float32) {
	data, err := json.Marshal(vector)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, data, c.ttl)
}

// --- Cached embedder ---

// CachedEmbedder wraps an embedder with a cache.
type CachedEmbedder struct {
	inner memory.Embedder
	cache Cache
}

// NewCachedEmbedder wraps inner with cache. A nil cache passes through.
func NewCachedEmbedder(inner memory.Embedder, cache Cache) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache}
}

// Dimension returns the inner embedder's dimensionality.
func (e *CachedEmbedder) Dimension() int {
	return e.inner.Dimension()
}

// Embed returns a cached vector when available, calling through otherwise.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.cache == nil {
		return e.inner.Embed(ctx, text)
	}

	key := CacheKey(text)
	if vec, ok := e.cache.Get(ctx, key); ok {
		return vec, nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(ctx, key, vec)
	return vec, nil
}
