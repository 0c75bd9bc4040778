// Package router computes driving routes between resources and emergencies
// through a pluggable provider, with caching, rate limiting and per-call
// timeouts.
package router

import (
	"context"
	"errors"
	"time"

	"seekroute/internal/geo"
)

var (
	// ErrProviderUnavailable covers timeouts, throttling and transport or
	// server failures. The call may succeed if retried later.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoPathFound means the provider answered but has no route between the points.
	ErrNoPathFound = errors.New("no path found")
)

// Route is a computed path from Origin to Destination.
type Route struct {
	Origin      geo.Point     `json:"origin"`
	Destination geo.Point     `json:"destination"`
	Path        []geo.Point   `json:"path"`
	DistanceM   float64       `json:"distanceM"`
	ETA         time.Duration `json:"eta"`
}

// Provider computes a single route. Implementations must be safe for
// concurrent use.
type Provider interface {
	Name() string
	Route(ctx context.Context, origin, destination geo.Point) (Route, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, origin, destination geo.Point) (Route, error)

func (f ProviderFunc) Name() string { return "func" }

func (f ProviderFunc) Route(ctx context.Context, origin, destination geo.Point) (Route, error) {
	return f(ctx, origin, destination)
}
