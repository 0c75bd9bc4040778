package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"seekroute/internal/capability"
	"seekroute/internal/geo"
	"seekroute/internal/model"
	"seekroute/internal/registry"
	"seekroute/internal/router"
)

func f64(v float64) *float64 { return &v }

func car(id string, lat, lon float64, c capability.Capability) model.ResourceIn {
	return model.ResourceIn{ID: model.ID(id), Lat: f64(lat), Lon: f64(lon), Capability: &c}
}

func incident(id string, lat, lon float64, p model.Priority, need ...capability.Capability) model.EmergencyIn {
	req := capability.Of(need...)
	return model.EmergencyIn{ID: model.ID(id), Lat: f64(lat), Lon: f64(lon), Priority: &p, Requirements: &req}
}

func basicSnapshot() model.Snapshot {
	return model.Snapshot{
		Cars: []model.ResourceIn{
			car("A", -32, 116, capability.PoliceCar),
			car("B", -32.01, 115.9, capability.Ambulance),
		},
		Emergencies: []model.EmergencyIn{incident("e1", -32, 115.9, model.Urgent, capability.Ambulance)},
	}
}

// failingRouter fails every leg with the given error.
type failingRouter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *failingRouter) RouteAll(_ context.Context, reqs []router.Request) []router.Result {
	f.mu.Lock()
	f.calls += len(reqs)
	f.mu.Unlock()
	out := make([]router.Result, len(reqs))
	for i, r := range reqs {
		out[i] = router.Result{Request: r, Err: f.err}
	}
	return out
}

// gatedRouter blocks until release is closed, then routes in a straight line.
type gatedRouter struct {
	entered chan struct{}
	release chan struct{}
	inner   *router.Router
}

func (g *gatedRouter) RouteAll(ctx context.Context, reqs []router.Request) []router.Result {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.inner.RouteAll(ctx, reqs)
}

func straightRouter() *router.Router {
	return router.New(router.StraightLine{SpeedMPS: 10}, router.NewMemoryCache(0), router.Config{Timeout: time.Second})
}

func statusOf(t *testing.T, reg *registry.Registry, id model.ID) registry.ResourceStatus {
	t.Helper()
	for _, r := range reg.Resources() {
		if r.ID == id {
			return r.Status
		}
	}
	t.Fatalf("resource %s not found", id)
	return 0
}

func mustEnqueue(t *testing.T, s *Scheduler, snap model.Snapshot) <-chan Outcome {
	t.Helper()
	done, err := s.Enqueue(snap)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return done
}

func TestCycleAssignsAndRoutes(t *testing.T) {
	reg := registry.New(registry.Config{})
	var published []Cycle
	sink := SinkFunc(func(_ context.Context, c Cycle) { published = append(published, c) })
	s := New(reg, straightRouter(), NewLogicalClock(), DefaultConfig(), sink)

	done := mustEnqueue(t, s, basicSnapshot())
	p, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if out := <-done; out.Err != nil || out.Payload.Cycle != p.Cycle {
		t.Fatalf("outcome: %+v", out)
	}
	if len(p.Assignments) != 1 {
		t.Fatalf("assignments: %+v", p.Assignments)
	}
	a := p.Assignments[0]
	if a.EmergencyID != "e1" || a.ResourceID != "B" || a.Status != "en_route" || a.Route == nil {
		t.Fatalf("assignment: %+v", a)
	}
	if a.Route.Geometry.Coordinates[0] != [2]float64{115.9, -32.01} {
		t.Fatalf("route starts at %v", a.Route.Geometry.Coordinates[0])
	}
	if statusOf(t, reg, "A") != registry.Available {
		t.Fatal("A should stay available")
	}
	if len(published) != 1 || published[0].Payload.Cycle != 1 {
		t.Fatalf("sink saw %d cycles", len(published))
	}
	if s.Phase() != Idle || s.Latest().Cycle != 1 {
		t.Fatalf("phase %s latest %d", s.Phase(), s.Latest().Cycle)
	}
}

func TestThreeRoutingTimeoutsRevokeAssignment(t *testing.T) {
	reg := registry.New(registry.Config{})
	fr := &failingRouter{err: router.ErrProviderUnavailable}
	s := New(reg, fr, NewLogicalClock(), DefaultConfig())
	mustEnqueue(t, s, basicSnapshot())

	for i := 1; i <= 2; i++ {
		p, err := s.RunCycle(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(p.AwaitingRoute) != 1 || len(p.Assignments) != 0 {
			t.Fatalf("cycle %d: %+v", i, p)
		}
		if st := statusOf(t, reg, "B"); st != registry.Reserved {
			t.Fatalf("cycle %d: B is %s, want reserved", i, st)
		}
	}
	p, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Revoked) != 1 || p.Revoked[0] != "e1" {
		t.Fatalf("revoked: %v", p.Revoked)
	}
	if len(p.Pending) != 1 || p.Pending[0] != "e1" {
		t.Fatalf("pending: %v", p.Pending)
	}
	if st := statusOf(t, reg, "B"); st != registry.Available {
		t.Fatalf("B is %s after revoke", st)
	}
	if fr.calls != 3 {
		t.Fatalf("router calls = %d", fr.calls)
	}
}

func TestProviderTimeoutsRevokeAssignment(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	hang := router.ProviderFunc(func(ctx context.Context, _, _ geo.Point) (router.Route, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-ctx.Done()
		return router.Route{}, ctx.Err()
	})
	rt := router.New(hang, router.NewMemoryCache(0), router.Config{Timeout: 20 * time.Millisecond})
	reg := registry.New(registry.Config{})
	s := New(reg, rt, NewLogicalClock(), DefaultConfig())
	mustEnqueue(t, s, basicSnapshot())

	var p model.Payload
	for i := 1; i <= 3; i++ {
		var err error
		if p, err = s.RunCycle(context.Background()); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		if i < 3 && statusOf(t, reg, "B") != registry.Reserved {
			t.Fatalf("cycle %d: B released early", i)
		}
	}
	if len(p.Revoked) != 1 || p.Revoked[0] != "e1" {
		t.Fatalf("revoked: %v", p.Revoked)
	}
	if st := statusOf(t, reg, "B"); st != registry.Available {
		t.Fatalf("B is %s after revoke", st)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Fatalf("provider calls = %d", calls)
	}
}

func TestServiceProgressesWithSnapshotClock(t *testing.T) {
	reg := registry.New(registry.Config{ServiceDuration: 10 * time.Second})
	s := New(reg, straightRouter(), NewLogicalClock(), DefaultConfig())
	mustEnqueue(t, s, basicSnapshot())
	p, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	eta := time.Duration(p.Assignments[0].Route.ETASeconds * float64(time.Second))

	late := basicSnapshot()
	ms := (eta + 11*time.Second).Milliseconds() + 1000
	late.ClockMs = &ms
	mustEnqueue(t, s, late) // arrival: on scene
	if _, err := s.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	mustEnqueue(t, s, late) // same instant, service not yet elapsed since on scene
	ms2 := ms + 10_000
	later := basicSnapshot()
	later.ClockMs = &ms2
	mustEnqueue(t, s, later)
	p, err = s.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Retired) != 1 || p.Retired[0] != "e1" {
		t.Fatalf("retired: %+v", p)
	}
	if statusOf(t, reg, "B") != registry.Available {
		t.Fatal("B not freed")
	}
	// The resolved emergency is re-sent by the client but stays retired.
	if _, ok := reg.Emergency("e1"); ok {
		t.Fatal("e1 resurrected")
	}
}

func TestRunCycleConflictCoalesces(t *testing.T) {
	s := New(registry.New(registry.Config{}), straightRouter(), nil, DefaultConfig())
	s.cycleMu.Lock()
	if _, err := s.RunCycle(context.Background()); !errors.Is(err, ErrCycleInFlight) {
		t.Fatalf("want ErrCycleInFlight, got %v", err)
	}
	s.Kick()
	s.Kick()
	s.cycleMu.Unlock()
	if n := len(s.kick); n != 1 {
		t.Fatalf("pending kicks = %d, want 1", n)
	}
}

func TestSnapshotDuringCycleIsDeferred(t *testing.T) {
	reg := registry.New(registry.Config{})
	g := &gatedRouter{entered: make(chan struct{}, 1), release: make(chan struct{}), inner: straightRouter()}
	s := New(reg, g, NewLogicalClock(), DefaultConfig())
	mustEnqueue(t, s, basicSnapshot())

	errc := make(chan error, 1)
	go func() {
		_, err := s.RunCycle(context.Background())
		errc <- err
	}()
	<-g.entered
	if s.Phase() != Routing {
		t.Fatalf("phase = %s", s.Phase())
	}
	extra := model.Snapshot{Cars: []model.ResourceIn{car("C", -31.9, 115.8, capability.FireTruck)}}
	done := mustEnqueue(t, s, extra)
	close(g.release)
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if len(reg.Resources()) != 2 {
		t.Fatal("snapshot applied mid-cycle")
	}
	if _, err := s.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if out := <-done; out.Err != nil || out.Payload.Cycle != 2 {
		t.Fatalf("deferred outcome: %+v", out)
	}
	if len(reg.Resources()) != 3 {
		t.Fatal("deferred snapshot not applied")
	}
}

func TestRunServesIngestAndStops(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = time.Hour
	s := New(registry.New(registry.Config{}), straightRouter(), NewLogicalClock(), cfg)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	wait, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	p, err := s.Ingest(wait, basicSnapshot())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(p.Assignments) != 1 {
		t.Fatalf("payload: %+v", p)
	}
	if _, err := s.Ingest(wait, model.Snapshot{Cars: []model.ResourceIn{{ID: "bad"}}}); !errors.Is(err, registry.ErrMalformedSnapshot) {
		t.Fatalf("malformed: %v", err)
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("run: %v", err)
	}
}

func TestOperatorResolveFreesResources(t *testing.T) {
	reg := registry.New(registry.Config{})
	s := New(reg, straightRouter(), NewLogicalClock(), DefaultConfig())
	mustEnqueue(t, s, basicSnapshot())
	if _, err := s.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Resolve("e1"); err != nil {
		t.Fatal(err)
	}
	p, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Assignments) != 0 || len(p.Retired) != 1 {
		t.Fatalf("payload after resolve: %+v", p)
	}
	if err := s.Cancel("e1"); !errors.Is(err, registry.ErrInvalidTransition) {
		t.Fatalf("cancel resolved: %v", err)
	}
}

func TestMovedResourceIsRerouted(t *testing.T) {
	reg := registry.New(registry.Config{})
	calls := 0
	p := router.ProviderFunc(func(ctx context.Context, o, d geo.Point) (router.Route, error) {
		calls++
		return router.StraightLine{}.Route(ctx, o, d)
	})
	s := New(reg, router.New(p, nil, router.Config{Timeout: time.Second, Parallelism: 1}), NewLogicalClock(), DefaultConfig())
	mustEnqueue(t, s, basicSnapshot())
	if _, err := s.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Same position: no new provider call.
	mustEnqueue(t, s, basicSnapshot())
	if _, err := s.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	moved := basicSnapshot()
	moved.Cars[1] = car("B", -32.005, 115.9, capability.Ambulance)
	mustEnqueue(t, s, moved)
	if _, err := s.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("provider calls = %d, want 2", calls)
	}
}

func TestLogicalClockIsMonotonic(t *testing.T) {
	c := NewLogicalClock()
	c.AdvanceTo(3 * time.Second)
	c.AdvanceTo(time.Second)
	c.Advance(-time.Second)
	if c.Now() != 3*time.Second {
		t.Fatalf("now = %v", c.Now())
	}
}
