// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// keyPrefix namespaces cache entries in Valkey.
	keyPrefix = "cache:"

	// publicPrefix groups every public listing entry so a single
	// invalidation clears all page sizes.
	publicPrefix = "public:"

	// DefaultTTL is how long a cached entry lives.
	DefaultTTL = 5 * time.Minute
)

// ListingCache stores serialized listings in Valkey. Errors are logged
// and treated as misses; the database stays the source of truth.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewListingCache creates a cache backed by the given Valkey client.
func NewListingCache(client *redis.Client, ttl time.Duration) *ListingCache {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &ListingCache{client: client, ttl: ttl}
}

// Get returns the cached value for key.
func (c *ListingCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("cache get error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("cache hit", "key", key)
	return val, true
}

// Set stores a value with the configured TTL.
func (c *ListingCache) Set(ctx context.Context, key string, val []byte) {
	if err := c.client.Set(ctx, keyPrefix+key, val, c.ttl).Err(); err != nil {
		slog.Warn("cache set error", "key", key, "error", err)
	}
}

// InvalidatePublic removes every cached public listing.
func (c *ListingCache) InvalidatePublic(ctx context.Context) {
	c.invalidatePrefix(ctx, keyPrefix+publicPrefix)
}

// InvalidateAll removes all cache entries.
func (c *ListingCache) InvalidateAll(ctx context.Context) {
	c.invalidatePrefix(ctx, keyPrefix)
}

func (c *ListingCache) invalidatePrefix(ctx context.Context, prefix string) {
	var cursor uint64
	var deleted int
	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			slog.Warn("cache scan error", "prefix", prefix, "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	slog.Debug("cache invalidated", "prefix", prefix, "deleted", deleted)
}

// PublicListingKey returns the key of the public listing of the given size.
func PublicListingKey(limit int) string {
	return publicPrefix + strconv.Itoa(limit)
}
