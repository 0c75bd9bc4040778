package scheduler

import (
	"context"
	"time"

	"seekroute/internal/model"
	"seekroute/internal/registry"
)

// Cycle is what a published scheduling pass hands to its sinks.
type Cycle struct {
	Payload   model.Payload
	Events    []registry.Event
	StartedAt time.Time
	Duration  time.Duration
}

// Sink receives every published cycle. Publish is called synchronously from
// the cycle, so implementations should hand work off rather than block.
type Sink interface {
	Publish(ctx context.Context, c Cycle)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, c Cycle)

func (f SinkFunc) Publish(ctx context.Context, c Cycle) { f(ctx, c) }
