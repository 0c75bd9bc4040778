// Package scheduler drives the dispatch cycle: admit, match, route, publish.
//
// Exactly one cycle runs at a time. Snapshots and kicks arriving while a
// cycle is in flight are deferred to the next one; at most one kick is
// remembered.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"seekroute/internal/geo"
	"seekroute/internal/matcher"
	"seekroute/internal/model"
	"seekroute/internal/registry"
	"seekroute/internal/router"
)

var (
	// ErrCycleInFlight is returned by RunCycle when another cycle holds the
	// scheduling lock. The request is coalesced into the next cycle.
	ErrCycleInFlight = errors.New("scheduling cycle already in flight")
	// ErrStopped is delivered to snapshots still queued when Run returns.
	ErrStopped = errors.New("scheduler stopped")
)

// Phase is the position of the scheduler in its cycle.
type Phase int

const (
	Idle Phase = iota
	Admitting
	Matching
	Routing
	Publishing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Admitting:
		return "admitting"
	case Matching:
		return "matching"
	case Routing:
		return "routing"
	case Publishing:
		return "publishing"
	default:
		return "unknown"
	}
}

// RouteAller routes a batch of independent legs.
type RouteAller interface {
	RouteAll(ctx context.Context, reqs []router.Request) []router.Result
}

type Config struct {
	TickInterval time.Duration
	// MaxRouteFailures is the number of failed routing attempts for a leg
	// after which its whole assignment is revoked.
	MaxRouteFailures int
	// MoveToleranceM is how far a resource may drift from the origin of its
	// route before the leg is routed again.
	MoveToleranceM float64
	Matcher        matcher.Options
}

func DefaultConfig() Config {
	return Config{
		TickInterval:     time.Second,
		MaxRouteFailures: 3,
		MoveToleranceM:   50,
		Matcher:          matcher.DefaultOptions(),
	}
}

// Outcome is delivered to the caller of Enqueue once its snapshot has been
// applied (or rejected).
type Outcome struct {
	Payload model.Payload
	Err     error
}

type queued struct {
	snap model.Snapshot
	done chan Outcome
}

// leg is the routing state of one resource assigned to one emergency.
type leg struct {
	route    *router.Route
	origin   geo.Point // resource position the route starts from
	failures int
	fresh    bool // routed this cycle, ETA not yet applied
}

type Scheduler struct {
	reg    *registry.Registry
	router RouteAller
	clock  Clock
	cfg    Config
	sinks  []Sink

	cycleMu sync.Mutex
	kick    chan struct{}

	mu     sync.Mutex
	inbox  []queued
	legs   map[model.ID]map[model.ID]*leg
	latest model.Payload
	seq    uint64
	phase  Phase
}

func New(reg *registry.Registry, r RouteAller, clock Clock, cfg Config, sinks ...Sink) *Scheduler {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.MaxRouteFailures <= 0 {
		cfg.MaxRouteFailures = def.MaxRouteFailures
	}
	if cfg.MoveToleranceM <= 0 {
		cfg.MoveToleranceM = def.MoveToleranceM
	}
	if clock == nil {
		clock = NewLogicalClock()
	}
	return &Scheduler{
		reg:    reg,
		router: r,
		clock:  clock,
		cfg:    cfg,
		sinks:  sinks,
		kick:   make(chan struct{}, 1),
		legs:   map[model.ID]map[model.ID]*leg{},
	}
}

// AddSink registers another sink. Call before Run.
func (s *Scheduler) AddSink(sink Sink) { s.sinks = append(s.sinks, sink) }

func (s *Scheduler) Registry() *registry.Registry { return s.reg }

func (s *Scheduler) Clock() Clock { return s.clock }

// Kick requests a cycle as soon as possible. Kicks made while one is already
// pending are merged.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Phase reports the current cycle phase.
func (s *Scheduler) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Latest returns the payload of the last published cycle.
func (s *Scheduler) Latest() model.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Enqueue validates a snapshot and queues it for the next cycle. The returned
// channel receives exactly one Outcome.
func (s *Scheduler) Enqueue(snap model.Snapshot) (<-chan Outcome, error) {
	if err := registry.Validate(snap); err != nil {
		return nil, err
	}
	done := make(chan Outcome, 1)
	s.mu.Lock()
	s.inbox = append(s.inbox, queued{snap: snap, done: done})
	s.mu.Unlock()
	return done, nil
}

// Ingest queues a snapshot, kicks the loop and waits for the payload of the
// cycle that applied it.
func (s *Scheduler) Ingest(ctx context.Context, snap model.Snapshot) (model.Payload, error) {
	done, err := s.Enqueue(snap)
	if err != nil {
		return model.Payload{}, err
	}
	s.Kick()
	select {
	case out := <-done:
		return out.Payload, out.Err
	case <-ctx.Done():
		return model.Payload{}, ctx.Err()
	}
}

// Run cycles on every tick and kick until ctx is cancelled. A cycle in
// progress always completes. Run returns ctx.Err() on cancellation, or the
// error of a cycle that found the registry inconsistent.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	defer s.failQueued(ErrStopped)
	log.Printf("[scheduler] running, tick=%s", s.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[scheduler] stopping: %v", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		case <-s.kick:
		}
		if _, err := s.RunCycle(ctx); err != nil {
			switch {
			case errors.Is(err, registry.ErrInvariantViolation):
				return err
			case errors.Is(err, ErrCycleInFlight):
			default:
				log.Printf("[scheduler] cycle failed: %v", err)
			}
		}
	}
}

func (s *Scheduler) failQueued(err error) {
	s.mu.Lock()
	q := s.inbox
	s.inbox = nil
	s.mu.Unlock()
	for _, item := range q {
		item.done <- Outcome{Err: err}
	}
}

func (s *Scheduler) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// Resolve, Cancel and SetOutOfService are operator actions. They wait for
// any cycle in flight and trigger a new one.
func (s *Scheduler) Resolve(id model.ID) error {
	return s.operate(func() error { return s.reg.Resolve(id) })
}

func (s *Scheduler) Cancel(id model.ID) error {
	return s.operate(func() error { return s.reg.Cancel(id) })
}

func (s *Scheduler) SetOutOfService(id model.ID) error {
	return s.operate(func() error { return s.reg.SetOutOfService(id) })
}

func (s *Scheduler) operate(fn func() error) error {
	s.cycleMu.Lock()
	err := fn()
	if err == nil {
		s.pruneLegs()
	}
	s.cycleMu.Unlock()
	if err == nil {
		s.Kick()
	}
	return err
}

// pruneLegs drops routing state of emergencies that no longer hold resources.
func (s *Scheduler) pruneLegs() {
	active := map[model.ID]registry.Emergency{}
	for _, e := range s.reg.Emergencies() {
		active[e.ID] = e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, legs := range s.legs {
		e, ok := active[id]
		if !ok || (e.State != registry.Assigned && e.State != registry.OnScene) {
			delete(s.legs, id)
			continue
		}
		held := map[model.ID]bool{}
		for _, rid := range e.Resources {
			held[rid] = true
		}
		for rid := range legs {
			if !held[rid] {
				delete(legs, rid)
			}
		}
	}
}
