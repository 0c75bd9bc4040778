package main

import (
	"fmt"
	"log"
	"strings"

	"seekroute/internal/config"
	"seekroute/internal/matcher"
	"seekroute/internal/registry"
	"seekroute/internal/router"
	"seekroute/internal/scheduler"
)

// buildRouter selects the routing provider and cache. The returned func
// releases the cache connection.
func buildRouter(cfg *config.Config) (*router.Router, func(), error) {
	rc := cfg.Routing
	var p router.Provider
	switch rc.Provider {
	case "mapbox":
		mb := router.NewMapbox(rc.MapboxToken)
		if rc.MapboxURL != "" {
			mb.BaseURL = rc.MapboxURL
		}
		if rc.MapboxProfile != "" {
			mb.Profile = rc.MapboxProfile
		}
		p = mb
	case "straight_line":
		p = router.StraightLine{SpeedMPS: rc.SpeedMPS}
	default:
		return nil, nil, fmt.Errorf("unknown routing provider %q", rc.Provider)
	}

	closer := func() {}
	var cache router.Cache = router.NewMemoryCache(rc.CacheTTL.Duration)
	if cfg.RedisURL != "" {
		rcache, err := router.NewRedisCache(cfg.RedisURL, rc.CacheTTL.Duration)
		if err != nil {
			log.Printf("[router] redis cache unavailable, using in-memory: %v", err)
		} else {
			cache = rcache
			closer = func() { _ = rcache.Close() }
		}
	}
	r := router.New(p, cache, router.Config{
		Timeout:     rc.Timeout.Duration,
		RatePerSec:  rc.RatePerSec,
		Burst:       rc.Burst,
		Parallelism: rc.Parallelism,
		KeyDecimals: rc.CacheDecimals,
	})
	return r, closer, nil
}

func buildScheduler(cfg *config.Config, rt scheduler.RouteAller) (*scheduler.Scheduler, error) {
	sc := cfg.Scheduler
	opts := matcher.Options{TieBreak: matcher.TieBreak(sc.TieBreak), Combination: matcher.Combination(sc.Combination)}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	var clock scheduler.Clock
	switch sc.Clock {
	case "wall":
		clock = scheduler.NewWallClock()
	default:
		clock = scheduler.NewLogicalClock()
	}
	reg := registry.New(registry.Config{
		ServiceDuration: cfg.Registry.ServiceDuration.Duration,
		PendingTimeout:  cfg.Registry.PendingTimeout.Duration,
	})
	return scheduler.New(reg, rt, clock, scheduler.Config{
		TickInterval:     sc.TickInterval.Duration,
		MaxRouteFailures: sc.MaxRouteFailures,
		MoveToleranceM:   sc.MoveToleranceM,
		Matcher:          opts,
	}), nil
}

// routeLabel collapses id path segments so metric label cardinality stays
// bounded.
func routeLabel(path string) string {
	for _, prefix := range []string{"/v1/emergencies/", "/v1/resources/", "/v1/cycles/", "/v1/subscriptions/", "/v1/admin/webhook-deliveries/"} {
		if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
			rest := path[len(prefix):]
			if i := strings.Index(rest, "/"); i >= 0 {
				return prefix + "{id}" + rest[i:]
			}
			return prefix + "{id}"
		}
	}
	return path
}
