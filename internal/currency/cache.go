package currency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateCache stores live rates between lookups. Implementations swallow
// their own failures; a miss simply triggers a live lookup.
type RateCache interface {
	Get(ctx context.Context, from, to string) (float64, bool)
	Set(ctx context.Context, from, to string, rate float64)
}

// MemoryCache is an in-process RateCache with a fixed TTL.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	rate    float64
	expires time.Time
}

// NewMemoryCache creates a MemoryCache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (m *MemoryCache) Get(_ context.Context, from, to string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[from+":"+to]
	if !ok || m.now().After(e.expires) {
		return 0, false
	}
	return e.rate, true
}

func (m *MemoryCache) Set(_ context.Context, from, to string, rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[from+":"+to] = memoryEntry{rate: rate, expires: m.now().Add(m.ttl)}
}

// RedisCache shares live rates across processes through Redis.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewRedisCache creates a RedisCache with keys under "stockpulse:fx:".
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "stockpulse:fx:"}
}

func (r *RedisCache) key(from, to string) string {
	return fmt.Sprintf("%s%s:%s", r.prefix, from, to)
}

func (r *RedisCache) Get(ctx context.Context, from, to string) (float64, bool) {
	v, err := r.client.Get(ctx, r.key(from, to)).Float64()
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func (r *RedisCache) Set(ctx context.Context, from, to string, rate float64) {
	_ = r.client.Set(ctx, r.key(from, to), rate, r.ttl).Err()
}
