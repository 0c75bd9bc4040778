package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"seekroute/internal/geo"
	"seekroute/internal/matcher"
	"seekroute/internal/metrics"
	"seekroute/internal/model"
	"seekroute/internal/registry"
	"seekroute/internal/router"
)

// RunCycle runs one full Admitting, Matching, Routing, Publishing pass and
// returns the published payload. If another cycle holds the lock it records
// a kick and returns ErrCycleInFlight.
//
// Routing calls are detached from ctx cancellation and bounded only by the
// router's per-call timeout, so a cycle never stops half way.
func (s *Scheduler) RunCycle(ctx context.Context) (model.Payload, error) {
	if !s.cycleMu.TryLock() {
		s.Kick()
		metrics.Cycles.WithLabelValues("conflict").Inc()
		return model.Payload{}, ErrCycleInFlight
	}
	defer s.cycleMu.Unlock()
	defer s.setPhase(Idle)

	started := time.Now()
	ctx = context.WithoutCancel(ctx)

	s.setPhase(Admitting)
	applied := s.admit()

	s.setPhase(Matching)
	s.pruneLegs()
	res, err := s.match()
	if err != nil {
		s.finish(applied, model.Payload{}, err)
		metrics.Cycles.WithLabelValues("failed").Inc()
		return model.Payload{}, err
	}

	s.setPhase(Routing)
	revoked, err := s.route(ctx)
	if err != nil {
		s.finish(applied, model.Payload{}, err)
		metrics.Cycles.WithLabelValues("failed").Inc()
		return model.Payload{}, err
	}

	s.setPhase(Publishing)
	p, err := s.publish(ctx, started, res, revoked)
	s.finish(applied, p, err)
	if err != nil {
		metrics.Cycles.WithLabelValues("failed").Inc()
		return model.Payload{}, err
	}
	metrics.Cycles.WithLabelValues("published").Inc()
	metrics.CycleDuration.Observe(time.Since(started).Seconds())
	return p, nil
}

// admit applies queued snapshots in arrival order and ticks the registry.
// Rejected snapshots are answered immediately; the rest wait for the payload.
func (s *Scheduler) admit() []queued {
	s.mu.Lock()
	q := s.inbox
	s.inbox = nil
	s.mu.Unlock()

	var applied []queued
	for _, item := range q {
		if err := s.reg.Ingest(item.snap); err != nil {
			item.done <- Outcome{Err: err}
			continue
		}
		if item.snap.ClockMs != nil {
			if adv, ok := s.clock.(advancer); ok {
				adv.AdvanceTo(time.Duration(*item.snap.ClockMs) * time.Millisecond)
			}
		}
		applied = append(applied, item)
	}
	s.reg.Tick(s.clock.Now())
	return applied
}

func (s *Scheduler) finish(applied []queued, p model.Payload, err error) {
	for _, item := range applied {
		item.done <- Outcome{Payload: p, Err: err}
	}
}

// match runs the matcher over every pending emergency and reserves the result.
func (s *Scheduler) match() (matcher.Result, error) {
	pending := s.reg.PendingEmergencies()
	res := matcher.Match(pending, s.reg.AvailableResources(), matcher.FleetCapacity(s.reg.Resources()), s.cfg.Matcher)
	for _, id := range res.Unsatisfiable {
		s.reg.MarkUnsatisfiable(id, true)
	}
	for _, id := range res.Deferred {
		s.reg.MarkUnsatisfiable(id, false)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range res.Assignments {
		if err := s.reg.Reserve(a.EmergencyID, a.ResourceIDs); err != nil {
			return res, fmt.Errorf("reserve %s: %w", a.EmergencyID, err)
		}
		legs := map[model.ID]*leg{}
		for _, rid := range a.ResourceIDs {
			legs[rid] = &leg{}
		}
		s.legs[a.EmergencyID] = legs
	}
	return res, nil
}

// route computes every leg that has no route yet or whose resource moved
// beyond the tolerance. A leg that never routed and fails MaxRouteFailures
// times revokes its whole assignment; a leg that already has a route keeps
// it when re-routing fails.
func (s *Scheduler) route(ctx context.Context) ([]model.ID, error) {
	fleet := map[model.ID]registry.Resource{}
	for _, r := range s.reg.Resources() {
		fleet[r.ID] = r
	}
	var reqs []router.Request
	s.mu.Lock()
	for _, e := range s.reg.Emergencies() {
		if e.State != registry.Assigned {
			continue
		}
		for _, rid := range e.Resources {
			res := fleet[rid]
			if res.Status != registry.Reserved && res.Status != registry.EnRoute {
				continue
			}
			l := s.legOf(e.ID, rid)
			if l.route != nil && geo.DistanceM(l.origin, res.Location) <= s.cfg.MoveToleranceM {
				continue
			}
			reqs = append(reqs, router.Request{EmergencyID: e.ID, ResourceID: rid, Origin: res.Location, Destination: e.Location})
		}
	}
	s.mu.Unlock()
	if len(reqs) == 0 {
		return nil, nil
	}

	results := s.router.RouteAll(ctx, reqs)

	s.mu.Lock()
	defer s.mu.Unlock()
	var revoke []model.ID
	seen := map[model.ID]bool{}
	for _, r := range results {
		l := s.legOf(r.EmergencyID, r.ResourceID)
		if r.Err == nil {
			rt := r.Route
			l.route, l.origin, l.failures, l.fresh = &rt, r.Origin, 0, true
			continue
		}
		if l.route != nil {
			log.Printf("[scheduler] re-route %s->%s failed, keeping previous route: %v", r.ResourceID, r.EmergencyID, r.Err)
			continue
		}
		l.failures++
		log.Printf("[scheduler] route %s->%s failed (%d/%d): %v", r.ResourceID, r.EmergencyID, l.failures, s.cfg.MaxRouteFailures, r.Err)
		if l.failures >= s.cfg.MaxRouteFailures && !seen[r.EmergencyID] {
			seen[r.EmergencyID] = true
			revoke = append(revoke, r.EmergencyID)
		}
	}
	for _, id := range revoke {
		if err := s.reg.Revoke(id); err != nil {
			return nil, fmt.Errorf("revoke %s: %w", id, err)
		}
		delete(s.legs, id)
		metrics.Assignments.WithLabelValues("revoked").Inc()
		log.Printf("[scheduler] assignment for %s revoked after %d routing failures", id, s.cfg.MaxRouteFailures)
	}
	return model.SortIDs(revoke), nil
}

// legOf returns the leg, creating it if needed. Must be called with s.mu held.
func (s *Scheduler) legOf(emergencyID, resourceID model.ID) *leg {
	legs, ok := s.legs[emergencyID]
	if !ok {
		legs = map[model.ID]*leg{}
		s.legs[emergencyID] = legs
	}
	l, ok := legs[resourceID]
	if !ok {
		l = &leg{}
		legs[resourceID] = l
	}
	return l
}

// publish confirms every fully routed assignment, checks the registry
// invariants, builds the payload and hands it to the sinks.
func (s *Scheduler) publish(ctx context.Context, started time.Time, res matcher.Result, revoked []model.ID) (model.Payload, error) {
	now := s.reg.Now()
	s.mu.Lock()
	var awaiting []model.ID
	for _, e := range s.reg.Emergencies() {
		if e.State != registry.Assigned {
			continue
		}
		etas, ready := s.readyETAs(e)
		if !ready {
			awaiting = append(awaiting, e.ID)
			continue
		}
		if err := s.reg.Confirm(e.ID, etas); err != nil {
			s.mu.Unlock()
			return model.Payload{}, fmt.Errorf("confirm %s: %w", e.ID, err)
		}
	}
	s.mu.Unlock()

	if err := s.reg.Verify(); err != nil {
		log.Printf("[scheduler] registry inconsistent: %v", err)
		return model.Payload{}, err
	}

	events := s.reg.DrainEvents()
	p := model.Payload{
		CycleID:       uuid.NewString(),
		ClockMs:       now.Milliseconds(),
		Assignments:   s.assignments(now),
		Unsatisfiable: nonNil(res.Unsatisfiable),
		AwaitingRoute: awaiting,
		Revoked:       revoked,
	}
	for _, e := range s.reg.PendingEmergencies() {
		p.Pending = append(p.Pending, e.ID)
	}
	p.Pending = nonNil(p.Pending)
	for _, ev := range events {
		switch ev.Type {
		case registry.EmergencyResolved, registry.EmergencyCancelled, registry.EmergencyTimedOut:
			p.Retired = append(p.Retired, ev.EmergencyID)
		case registry.AssignmentConfirmed:
			metrics.Assignments.WithLabelValues("confirmed").Inc()
		}
	}

	s.mu.Lock()
	s.seq++
	p.Cycle = s.seq
	s.latest = p
	s.mu.Unlock()

	metrics.PendingEmergencies.Set(float64(len(p.Pending)))
	metrics.AvailableResources.Set(float64(len(s.reg.AvailableResources())))
	metrics.Unsatisfiable.Set(float64(len(p.Unsatisfiable)))

	c := Cycle{Payload: p, Events: events, StartedAt: started, Duration: time.Since(started)}
	for _, sink := range s.sinks {
		sink.Publish(ctx, c)
	}
	return p, nil
}

// readyETAs reports whether every leg of e has a route and returns the ETAs
// of the legs routed in this cycle, marking them applied. Must be called
// with s.mu held.
func (s *Scheduler) readyETAs(e registry.Emergency) (map[model.ID]time.Duration, bool) {
	for _, rid := range e.Resources {
		if l := s.legs[e.ID][rid]; l == nil || l.route == nil {
			return nil, false
		}
	}
	etas := map[model.ID]time.Duration{}
	for _, rid := range e.Resources {
		if l := s.legs[e.ID][rid]; l.fresh {
			etas[rid] = l.route.ETA
			l.fresh = false
		}
	}
	return etas, true
}

// assignments lists every held resource of Assigned and OnScene emergencies
// in dispatch order. Must not be called with s.mu held.
func (s *Scheduler) assignments(now time.Duration) []model.AssignmentOut {
	fleet := map[model.ID]registry.Resource{}
	for _, r := range s.reg.Resources() {
		fleet[r.ID] = r
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.AssignmentOut{}
	for _, e := range s.reg.Emergencies() {
		if e.State != registry.Assigned && e.State != registry.OnScene {
			continue
		}
		for _, rid := range e.Resources {
			res := fleet[rid]
			if res.Status == registry.Reserved {
				continue
			}
			a := model.AssignmentOut{EmergencyID: e.ID, ResourceID: rid, Status: res.Status.String()}
			if l := s.legs[e.ID][rid]; l != nil && l.route != nil {
				remaining := time.Duration(0)
				if res.Status == registry.EnRoute && res.ArriveBy > now {
					remaining = res.ArriveBy - now
				}
				a.Route = &model.RouteOut{
					Geometry:   model.NewLineString(l.route.Path),
					ETA:        remaining.Round(time.Second).String(),
					ETASeconds: remaining.Seconds(),
					DistanceM:  l.route.DistanceM,
				}
			}
			out = append(out, a)
		}
	}
	return out
}

func nonNil(ids []model.ID) []model.ID {
	if ids == nil {
		return []model.ID{}
	}
	return ids
}

// IsFatal reports whether a cycle error means the process must restart.
func IsFatal(err error) bool { return errors.Is(err, registry.ErrInvariantViolation) }
