package router

import (
	"context"
	"encoding/json"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisCache shares routes between replicas. Failures degrade to cache misses.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{rdb: redis.NewClient(opt), ttl: ttl, prefix: "route:"}, nil
}

// NewRedisCacheClient wraps an existing client.
func NewRedisCacheClient(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "route:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Route, bool) {
	data, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[router] redis cache get: %v", err)
		}
		return Route{}, false
	}
	var r Route
	if err := json.Unmarshal(data, &r); err != nil {
		return Route{}, false
	}
	return r, true
}

func (c *RedisCache) Set(ctx context.Context, key string, r Route) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		log.Printf("[router] redis cache set: %v", err)
	}
}

func (c *RedisCache) Close() error { return c.rdb.Close() }
