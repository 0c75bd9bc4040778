package router

import (
	"context"
	"time"

	"seekroute/internal/geo"
)

// DefaultSpeedMPS is roughly 50 km/h, an urban response average.
const DefaultSpeedMPS = 13.9

// StraightLine routes along the great circle at a constant speed. It never
// fails and needs no network, which makes it the fallback when no external
// provider is configured.
type StraightLine struct {
	SpeedMPS float64
}

func (StraightLine) Name() string { return "straight_line" }

func (s StraightLine) Route(ctx context.Context, origin, destination geo.Point) (Route, error) {
	if err := ctx.Err(); err != nil {
		return Route{}, err
	}
	speed := s.SpeedMPS
	if speed <= 0 {
		speed = DefaultSpeedMPS
	}
	d := geo.DistanceM(origin, destination)
	return Route{
		Origin:      origin,
		Destination: destination,
		Path:        []geo.Point{origin, destination},
		DistanceM:   d,
		ETA:         time.Duration(d / speed * float64(time.Second)),
	}, nil
}
