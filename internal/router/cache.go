package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"seekroute/internal/geo"
)

// DefaultKeyDecimals rounds coordinates to about 11 m.
const DefaultKeyDecimals = 4

// Cache stores routes by rounded origin/destination key.
type Cache interface {
	Get(ctx context.Context, key string) (Route, bool)
	Set(ctx context.Context, key string, r Route)
}

// Key builds the cache key of a pair with coordinates rounded to decimals.
func Key(origin, destination geo.Point, decimals int) string {
	o, d := origin.Round(decimals), destination.Round(decimals)
	return fmt.Sprintf("%.*f,%.*f>%.*f,%.*f", decimals, o.Lat, decimals, o.Lon, decimals, d.Lat, decimals, d.Lon)
}

type memEntry struct {
	route   Route
	expires time.Time
}

// MemoryCache is an in-process TTL cache. A zero TTL keeps entries forever.
type MemoryCache struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]memEntry
	now func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, m: map[string]memEntry{}, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Route, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return Route{}, false
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.m, key)
		return Route{}, false
	}
	return e.route, true
}

func (c *MemoryCache) Set(_ context.Context, key string, r Route) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memEntry{route: r}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.m[key] = e
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
