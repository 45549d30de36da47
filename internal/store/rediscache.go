package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisGeoCache is an alternative GeoBackend for the IP-geo cache, for
// deployments that already run Redis for other state and would rather not
// add another flat file. It is a thin prefix-namespaced wrapper with no
// TTL, since geo lookups for a given IP don't go stale the way a
// short-lived auth token would.
type RedisGeoCache struct {
	client *redis.Client
	prefix string
}

// NewRedisGeoCache wraps an existing Redis client. prefix namespaces keys,
// e.g. "proxypulse:geo:".
func NewRedisGeoCache(client *redis.Client, prefix string) *RedisGeoCache {
	return &RedisGeoCache{client: client, prefix: prefix}
}

func (r *RedisGeoCache) Get(ctx context.Context, ip string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key(ip)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("rediscache: get %s: %w", ip, err)
	}
	return val, true, nil
}

func (r *RedisGeoCache) Set(ctx context.Context, ip, location string) error {
	if err := r.client.Set(ctx, r.key(ip), location, 0).Err(); err != nil {
		return fmt.Errorf("rediscache: set %s: %w", ip, err)
	}
	return nil
}

func (r *RedisGeoCache) key(ip string) string {
	return r.prefix + ip
}
