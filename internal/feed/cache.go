package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pulsenote/pulsenote/internal/post"
)

// DefaultCacheTTL is how long a generated feed stays valid.
const DefaultCacheTTL = time.Hour

// ScoredPost pairs a candidate post with its computed feed score.
type ScoredPost struct {
	Post  post.Post `json:"post" cbor:"post"`
	Score float64   `json:"score" cbor:"score"`
}

// CacheEntry is a per-user cached feed. An entry older than the
// configured TTL is treated as absent and recomputed on next request.
type CacheEntry struct {
	Posts    []ScoredPost `json:"posts" cbor:"posts"`
	CachedAt time.Time    `json:"cached_at" cbor:"cached_at"`
}

// Cache stores generated feeds keyed by user. Implementations are
// fail-open: backend errors are logged and surface as cache misses so a
// degraded cache never breaks feed generation. TTL expiry itself is
// enforced lazily by the engine at read time.
type Cache interface {
	// Get returns the cached entry for a user, or false on miss.
	Get(ctx context.Context, userID string) (*CacheEntry, bool)

	// Set stores an entry for a user. ttl is advisory for backends with
	// native expiry; in-memory entries rely on the engine's lazy check.
	Set(ctx context.Context, userID string, entry CacheEntry, ttl time.Duration)

	// Delete removes one user's entry.
	Delete(ctx context.Context, userID string)

	// Clear removes all entries.
	Clear(ctx context.Context)
}

// MemoryCache is an in-memory Cache implementation.
// Thread-safe via RWMutex.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
}

// NewMemoryCache creates an empty in-memory feed cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]CacheEntry),
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, userID string) (*CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	return &entry, true
}

// Set implements Cache. The ttl is ignored; expiry is checked lazily.
func (c *MemoryCache) Set(_ context.Context, userID string, entry CacheEntry, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = entry
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

// Clear implements Cache.
func (c *MemoryCache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]CacheEntry)
}

// redisKeyPrefix namespaces feed cache keys in a shared Redis.
const redisKeyPrefix = "pulsenote:feed:"

// RedisCache is a Redis-backed Cache implementation. Entries are
// CBOR-encoded and stored with the TTL as native key expiry, letting
// Redis evict stale feeds on its own in addition to the engine's lazy
// check. Backend errors are logged and treated as misses (fail-open).
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisCache creates a Redis-backed feed cache.
// A nil logger falls back to slog.Default.
func NewRedisCache(client *redis.Client, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, logger: logger}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, userID string) (*CacheEntry, bool) {
	data, err := c.client.Get(ctx, redisKeyPrefix+userID).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("feed cache read failed, treating as miss",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return nil, false
	}

	var entry CacheEntry
	if err := cbor.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("feed cache entry corrupt, treating as miss",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return nil, false
	}
	return &entry, true
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, userID string, entry CacheEntry, ttl time.Duration) {
	data, err := cbor.Marshal(entry)
	if err != nil {
		c.logger.Warn("failed to encode feed cache entry",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+userID, data, ttl).Err(); err != nil {
		c.logger.Warn("feed cache write failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
	}
}

// Delete implements Cache.
func (c *RedisCache) Delete(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, redisKeyPrefix+userID).Err(); err != nil {
		c.logger.Warn("feed cache delete failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
	}
}

// Clear implements Cache. Keys are discovered with SCAN to avoid
// blocking Redis the way KEYS would.
func (c *RedisCache) Clear(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("feed cache clear failed for key",
				slog.String("key", iter.Val()),
				slog.String("error", err.Error()))
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("feed cache scan failed",
			slog.String("error", err.Error()))
	}
}
