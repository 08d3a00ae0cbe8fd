// Package cache provides Redis caching with a local TinyLFU-style layer for
// repeated suggestion requests on the same transaction, grounded on the
// teacher's two-tier prediction cache in this same file but keyed by txn_id
// (or idempotency key) instead of store/family/date/horizon.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mlrf/mlrf-suggest/internal/domain"
	"github.com/mlrf/mlrf-suggest/internal/metrics"
)

// CachedSuggestion is a cached serving result, keyed by txn_id or the
// caller's idempotency key for inline-feature requests.
type CachedSuggestion struct {
	Label          string    `json:"label"`
	Confidence     float64   `json:"confidence"`
	Source         string    `json:"source"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	RunID          string    `json:"run_id,omitempty"`
	CachedAt       time.Time `json:"cached_at"`
}

// FromSuggestion converts a domain.Suggestion into its cached form. Shadow
// comparisons are recomputed per request and intentionally not cached: a
// cache hit skips model inference entirely, leaving nothing fresh to
// compare against the rule engine.
func FromSuggestion(sug domain.Suggestion) CachedSuggestion {
	return CachedSuggestion{
		Label:          sug.Label,
		Confidence:     sug.Confidence,
		Source:         string(sug.Source),
		FallbackReason: sug.FallbackReason,
		RunID:          sug.RunID,
	}
}

// RedisCache wraps a Redis client with a bounded local cache in front of it.
type RedisCache struct {
	client     *redis.Client
	localCache map[string]*cacheEntry
	maxLocal   int
	ttl        time.Duration
}

type cacheEntry struct {
	result    *CachedSuggestion
	expiresAt time.Time
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string
	MaxLocal int           // Maximum local cache entries (TinyLFU-like behavior)
	TTL      time.Duration // Cache TTL
}

// DefaultConfig returns sensible defaults for cache configuration.
func DefaultConfig() Config {
	return Config{
		URL:      "redis://localhost:6379",
		MaxLocal: 10000,
		TTL:      5 * time.Minute,
	}
}

// NewRedisCache creates a new Redis cache connection.
func NewRedisCache(cfg Config) (*RedisCache, error) {
	if cfg.URL == "" {
		cfg = DefaultConfig()
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCache{
		client:     client,
		localCache: make(map[string]*cacheEntry),
		maxLocal:   cfg.MaxLocal,
		ttl:        cfg.TTL,
	}, nil
}

// SuggestionKey builds the deterministic cache key for a suggestion request.
func SuggestionKey(key string) string {
	return fmt.Sprintf("suggest:v1:%s", key)
}

// GetSuggestion retrieves a cached suggestion. Checks local cache first,
// then Redis.
func (r *RedisCache) GetSuggestion(ctx context.Context, key string) (*CachedSuggestion, error) {
	// Check local cache first
	if entry, ok := r.localCache[key]; ok {
		if time.Now().Before(entry.expiresAt) {
			metrics.RecordCacheHit()
			return entry.result, nil
		}
		// Expired, remove from local cache
		delete(r.localCache, key)
	}

	// Check Redis
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			metrics.RecordCacheMiss()
			return nil, fmt.Errorf("cache miss")
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	// Redis hit (but local miss)
	metrics.RecordCacheHit()

	var result CachedSuggestion
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal failed: %w", err)
	}

	// Store in local cache
	r.setLocal(key, &result)

	return &result, nil
}

// SetSuggestion stores a suggestion in both local and Redis cache.
func (r *RedisCache) SetSuggestion(ctx context.Context, key string, result *CachedSuggestion) error {
	result.CachedAt = time.Now()

	// Store in local cache
	r.setLocal(key, result)

	// Store in Redis
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// setLocal stores an entry in the local cache with simple eviction.
func (r *RedisCache) setLocal(key string, result *CachedSuggestion) {
	// Simple eviction: if at capacity, remove stale entries
	if len(r.localCache) >= r.maxLocal {
		// Remove up to maxLocal/10 entries cached more than ttl/2 ago, in map
		// iteration order; entries are not sorted by age.
		var oldest []string
		cutoff := time.Now().Add(-r.ttl / 2)
		for k, v := range r.localCache {
			if v.result.CachedAt.Before(cutoff) {
				oldest = append(oldest, k)
			}
			if len(oldest) >= r.maxLocal/10 {
				break
			}
		}
		for _, k := range oldest {
			delete(r.localCache, k)
		}
	}

	r.localCache[key] = &cacheEntry{
		result:    result,
		expiresAt: time.Now().Add(r.ttl),
	}
}

// Ping verifies Redis connectivity, used by the health handler.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Stats returns cache statistics.
func (r *RedisCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"local_entries": len(r.localCache),
		"max_local":     r.maxLocal,
		"ttl_seconds":   r.ttl.Seconds(),
	}
}
