package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"seekroute/internal/geo"
	"seekroute/internal/metrics"
	"seekroute/internal/model"
)

type Config struct {
	// Timeout bounds one provider call; expiry counts as ErrProviderUnavailable.
	Timeout time.Duration
	// RatePerSec and Burst shape provider calls. RatePerSec <= 0 disables limiting.
	RatePerSec  float64
	Burst       int
	Parallelism int
	KeyDecimals int
}

func DefaultConfig() Config {
	return Config{Timeout: 5 * time.Second, RatePerSec: 10, Burst: 20, Parallelism: 8, KeyDecimals: DefaultKeyDecimals}
}

type Router struct {
	provider Provider
	cache    Cache
	limiter  *rate.Limiter
	cfg      Config
	flight   singleflight.Group
}

// New builds a router. A nil cache disables caching.
func New(p Provider, c Cache, cfg Config) *Router {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 8
	}
	if cfg.KeyDecimals <= 0 {
		cfg.KeyDecimals = DefaultKeyDecimals
	}
	var lim *rate.Limiter
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return &Router{provider: p, cache: c, limiter: lim, cfg: cfg}
}

func (r *Router) ProviderName() string { return r.provider.Name() }

// Route returns the cached route for the rounded pair or asks the provider.
// Concurrent requests for the same key share one provider call.
func (r *Router) Route(ctx context.Context, origin, destination geo.Point) (Route, error) {
	key := Key(origin, destination, r.cfg.KeyDecimals)
	if r.cache != nil {
		if rt, ok := r.cache.Get(ctx, key); ok {
			metrics.RouteCache.WithLabelValues("hit").Inc()
			return rt, nil
		}
		metrics.RouteCache.WithLabelValues("miss").Inc()
	}
	v, err, _ := r.flight.Do(key, func() (any, error) {
		return r.call(ctx, origin, destination)
	})
	if err != nil {
		return Route{}, err
	}
	rt := v.(Route)
	if r.cache != nil {
		r.cache.Set(ctx, key, rt)
	}
	return rt, nil
}

func (r *Router) call(ctx context.Context, origin, destination geo.Point) (Route, error) {
	name := r.provider.Name()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			metrics.ProviderCalls.WithLabelValues(name, "throttled").Inc()
			return Route{}, fmt.Errorf("%w: rate limit: %v", ErrProviderUnavailable, err)
		}
	}
	start := time.Now()
	rt, err := r.provider.Route(ctx, origin, destination)
	metrics.ProviderLatency.WithLabelValues(name).Observe(float64(time.Since(start).Milliseconds()))
	switch {
	case err == nil:
		metrics.ProviderCalls.WithLabelValues(name, "ok").Inc()
		return rt, nil
	case errors.Is(err, ErrNoPathFound):
		metrics.ProviderCalls.WithLabelValues(name, "no_path").Inc()
		return Route{}, err
	case errors.Is(err, ErrProviderUnavailable):
		metrics.ProviderCalls.WithLabelValues(name, "unavailable").Inc()
		return Route{}, err
	case ctx.Err() != nil:
		metrics.ProviderCalls.WithLabelValues(name, "timeout").Inc()
		return Route{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, ctx.Err())
	default:
		metrics.ProviderCalls.WithLabelValues(name, "error").Inc()
		return Route{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
}

// Request is one resource-to-emergency leg.
type Request struct {
	EmergencyID model.ID
	ResourceID  model.ID
	Origin      geo.Point
	Destination geo.Point
}

type Result struct {
	Request
	Route Route
	Err   error
}

// RouteAll routes independent legs concurrently, at most Parallelism at a
// time. Results keep the order of reqs; a failed leg carries its error and
// does not affect the others.
func (r *Router) RouteAll(ctx context.Context, reqs []Request) []Result {
	out := make([]Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallelism)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			rt, err := r.Route(gctx, req.Origin, req.Destination)
			out[i] = Result{Request: req, Route: rt, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
