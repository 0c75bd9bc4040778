// Package registry holds the current fleet and incident state of a dispatch
// session. It is the single owned store the scheduler passes into each cycle;
// every mutation goes through its mutex.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"seekroute/internal/capability"
	"seekroute/internal/geo"
	"seekroute/internal/model"
)

type Registry struct {
	mu          sync.Mutex
	cfg         Config
	now         time.Duration
	resources   map[model.ID]*Resource
	emergencies map[model.ID]*Emergency // active set, Scheduled..OnScene
	retired     map[model.ID]EmergencyState
	events      []Event
}

func New(cfg Config) *Registry {
	return &Registry{
		cfg:         cfg,
		resources:   map[model.ID]*Resource{},
		emergencies: map[model.ID]*Emergency{},
		retired:     map[model.ID]EmergencyState{},
	}
}

// Now returns the logical time of the last Tick.
func (r *Registry) Now() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now
}

// Ingest validates and merges a snapshot. New resources join as Available,
// known resources take the reported position, new emergencies are Scheduled
// until their arrival offset. Known and retired emergency ids are ignored.
// A rejected snapshot leaves the registry untouched.
func (r *Registry) Ingest(snap model.Snapshot) error {
	if err := Validate(snap); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fleet := snap.Fleet()
	for i, in := range fleet {
		if cur, ok := r.resources[in.ID]; ok && cur.Capability != *in.Capability {
			return fmt.Errorf("%w: resources[%d]: capability of %s changed from %s to %s",
				ErrMalformedSnapshot, i, in.ID, cur.Capability, *in.Capability)
		}
	}
	for _, in := range fleet {
		loc := geo.Point{Lat: *in.Lat, Lon: *in.Lon}
		res, ok := r.resources[in.ID]
		if !ok {
			res = &Resource{ID: in.ID, Capability: *in.Capability, Status: Available}
			r.resources[in.ID] = res
		}
		res.Location = loc
		if strings.EqualFold(in.Status, "out_of_service") {
			r.retireResource(res)
		}
	}
	for _, in := range snap.Emergencies {
		if _, ok := r.emergencies[in.ID]; ok {
			continue
		}
		if _, ok := r.retired[in.ID]; ok {
			continue
		}
		r.emergencies[in.ID] = &Emergency{
			ID:            in.ID,
			Location:      geo.Point{Lat: *in.Lat, Lon: *in.Lon},
			Requirements:  *in.Requirements,
			Priority:      *in.Priority,
			ArrivalOffset: time.Duration(in.OffsetMs) * time.Millisecond,
			State:         Scheduled,
		}
	}
	return nil
}

// Tick advances the logical clock to now (never backwards), admits
// emergencies whose arrival offset has elapsed, moves arrived resources on
// scene, resolves serviced emergencies and times out stale pending ones.
func (r *Registry) Tick(now time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now > r.now {
		r.now = now
	}
	for _, e := range r.sortedEmergencies() {
		switch e.State {
		case Scheduled:
			if e.ArrivalOffset <= r.now {
				e.State = Pending
				e.AdmittedAt = r.now
				r.emit(Event{Type: EmergencyAdmitted, EmergencyID: e.ID})
			}
		case Pending:
			if r.cfg.PendingTimeout > 0 && r.now-e.AdmittedAt >= r.cfg.PendingTimeout {
				r.retire(e, TimedOut, EmergencyTimedOut)
			}
		case Assigned:
			r.advanceArrivals(e)
		case OnScene:
			if r.cfg.ServiceDuration > 0 && r.now-e.OnSceneAt >= r.cfg.ServiceDuration {
				r.retire(e, Resolved, EmergencyResolved)
			}
		}
	}
}

func (r *Registry) advanceArrivals(e *Emergency) {
	onScene := len(e.Resources) > 0
	for _, id := range e.Resources {
		res := r.resources[id]
		if res.Status == EnRoute && res.ArriveBy <= r.now {
			res.Status = Busy
			res.Location = e.Location
		}
		if res.Status != Busy {
			onScene = false
		}
	}
	if onScene {
		e.State = OnScene
		e.OnSceneAt = r.now
		r.emit(Event{Type: EmergencyOnScene, EmergencyID: e.ID})
	}
}

// PendingEmergencies returns copies of the Pending emergencies in dispatch order.
func (r *Registry) PendingEmergencies() []Emergency {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Emergency
	for _, e := range r.emergencies {
		if e.State == Pending {
			out = append(out, copyEmergency(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// AvailableResources returns copies of the Available resources ordered by id.
func (r *Registry) AvailableResources() []Resource {
	return r.resourcesWhere(func(res *Resource) bool { return res.Status == Available })
}

// Resources returns copies of the whole fleet ordered by id.
func (r *Registry) Resources() []Resource {
	return r.resourcesWhere(func(*Resource) bool { return true })
}

func (r *Registry) resourcesWhere(keep func(*Resource) bool) []Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Resource, 0, len(r.resources))
	for _, res := range r.resources {
		if keep(res) {
			out = append(out, *res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Emergency returns a copy of an active emergency.
func (r *Registry) Emergency(id model.ID) (Emergency, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.emergencies[id]
	if !ok {
		return Emergency{}, false
	}
	return copyEmergency(e), true
}

// Emergencies returns copies of every active emergency, in dispatch order.
func (r *Registry) Emergencies() []Emergency {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Emergency, 0, len(r.emergencies))
	for _, e := range r.sortedEmergencies() {
		out = append(out, copyEmergency(e))
	}
	return out
}

// Reserve binds the given Available resources to a Pending emergency. The
// resources must cover the requirements; anything else is a logic error in
// the caller and reported as ErrInvariantViolation.
func (r *Registry) Reserve(emergencyID model.ID, resourceIDs []model.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.emergencies[emergencyID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEmergency, emergencyID)
	}
	if e.State != Pending {
		return fmt.Errorf("%w: reserve for %s in state %s", ErrInvariantViolation, emergencyID, e.State)
	}
	if len(resourceIDs) == 0 {
		return fmt.Errorf("%w: empty assignment for %s", ErrInvariantViolation, emergencyID)
	}
	var have capability.Requirements
	seen := map[model.ID]bool{}
	for _, id := range resourceIDs {
		res, ok := r.resources[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownResource, id)
		}
		if seen[id] || res.Status != Available {
			return fmt.Errorf("%w: resource %s double-assigned (status %s, held by %q)",
				ErrInvariantViolation, id, res.Status, res.EmergencyID)
		}
		seen[id] = true
		have[res.Capability]++
	}
	if !have.Covers(e.Requirements) {
		return fmt.Errorf("%w: %s assigned %v, needs %v", ErrInvariantViolation, emergencyID, have, e.Requirements)
	}
	ids := model.SortIDs(resourceIDs)
	for _, id := range ids {
		res := r.resources[id]
		res.Status = Reserved
		res.EmergencyID = emergencyID
	}
	e.State = Assigned
	e.Unsatisfiable = false
	e.Resources = ids
	return nil
}

// Confirm starts the listed resources of an Assigned emergency driving, each
// arriving eta from now. Already moving resources take the refreshed eta.
func (r *Registry) Confirm(emergencyID model.ID, etas map[model.ID]time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.emergencies[emergencyID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEmergency, emergencyID)
	}
	if e.State != Assigned {
		return fmt.Errorf("%w: confirm %s in state %s", ErrInvalidTransition, emergencyID, e.State)
	}
	for id := range etas {
		if res, ok := r.resources[id]; !ok || res.EmergencyID != emergencyID {
			return fmt.Errorf("%w: resource %s not held by %s", ErrInvariantViolation, id, emergencyID)
		}
	}
	started := false
	for id, eta := range etas {
		res := r.resources[id]
		switch res.Status {
		case Reserved:
			started = true
			fallthrough
		case EnRoute:
			res.Status = EnRoute
			res.ArriveBy = r.now + eta
		}
	}
	if started {
		r.emit(Event{Type: AssignmentConfirmed, EmergencyID: emergencyID})
	}
	return nil
}

// Revoke releases an Assigned emergency's resources and returns it to Pending.
func (r *Registry) Revoke(emergencyID model.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.emergencies[emergencyID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEmergency, emergencyID)
	}
	if e.State != Assigned {
		return fmt.Errorf("%w: revoke %s in state %s", ErrInvalidTransition, emergencyID, e.State)
	}
	r.release(e)
	e.State = Pending
	r.emit(Event{Type: AssignmentRevoked, EmergencyID: e.ID})
	return nil
}

// Resolve retires an active emergency as serviced and frees its resources.
func (r *Registry) Resolve(emergencyID model.ID) error {
	return r.finish(emergencyID, Resolved, EmergencyResolved)
}

// Cancel retires an active emergency without service.
func (r *Registry) Cancel(emergencyID model.ID) error {
	return r.finish(emergencyID, Cancelled, EmergencyCancelled)
}

func (r *Registry) finish(id model.ID, state EmergencyState, evt EventType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.emergencies[id]
	if !ok {
		if st, gone := r.retired[id]; gone {
			return fmt.Errorf("%w: %s already %s", ErrInvalidTransition, id, st)
		}
		return fmt.Errorf("%w: %s", ErrUnknownEmergency, id)
	}
	r.retire(e, state, evt)
	return nil
}

// SetOutOfService takes a resource out of the fleet for the rest of the
// session. A held resource finishes its current assignment first.
func (r *Registry) SetOutOfService(resourceID model.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[resourceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, resourceID)
	}
	r.retireResource(res)
	return nil
}

// MarkUnsatisfiable flags (or clears) a Pending emergency the whole fleet cannot serve.
func (r *Registry) MarkUnsatisfiable(emergencyID model.ID, flag bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.emergencies[emergencyID]; ok && e.State == Pending {
		e.Unsatisfiable = flag
	}
}

// DrainEvents returns and clears the events emitted since the last call.
func (r *Registry) DrainEvents() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

// Verify checks the cross-entity invariants: every held resource belongs to
// exactly one active emergency that lists it, and every Assigned or OnScene
// emergency's resources cover its requirements.
func (r *Registry) Verify() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	holder := map[model.ID]model.ID{}
	for _, e := range r.emergencies {
		if e.State != Assigned && e.State != OnScene {
			if len(e.Resources) > 0 {
				return fmt.Errorf("%w: %s in state %s holds resources", ErrInvariantViolation, e.ID, e.State)
			}
			continue
		}
		var have capability.Requirements
		for _, id := range e.Resources {
			if prev, dup := holder[id]; dup {
				return fmt.Errorf("%w: resource %s held by %s and %s", ErrInvariantViolation, id, prev, e.ID)
			}
			holder[id] = e.ID
			res, ok := r.resources[id]
			if !ok || res.EmergencyID != e.ID || !res.Status.Held() {
				return fmt.Errorf("%w: %s lists resource %s it does not hold", ErrInvariantViolation, e.ID, id)
			}
			have[res.Capability]++
		}
		if !have.Covers(e.Requirements) {
			return fmt.Errorf("%w: %s holds %v, needs %v", ErrInvariantViolation, e.ID, have, e.Requirements)
		}
	}
	for _, res := range r.resources {
		if res.Status.Held() && holder[res.ID] != res.EmergencyID {
			return fmt.Errorf("%w: resource %s is %s for %q which does not list it",
				ErrInvariantViolation, res.ID, res.Status, res.EmergencyID)
		}
	}
	return nil
}

// retire removes e from the active set and frees what it held.
// Must be called with r.mu held.
func (r *Registry) retire(e *Emergency, state EmergencyState, evt EventType) {
	r.release(e)
	e.State = state
	delete(r.emergencies, e.ID)
	r.retired[e.ID] = state
	r.emit(Event{Type: evt, EmergencyID: e.ID})
}

// release returns e's resources to the pool. Resources that were on scene
// stay at the emergency location. Must be called with r.mu held.
func (r *Registry) release(e *Emergency) {
	for _, id := range e.Resources {
		res, ok := r.resources[id]
		if !ok || res.EmergencyID != e.ID {
			continue
		}
		res.EmergencyID = ""
		res.ArriveBy = 0
		if res.retire {
			res.Status = OutOfService
			continue
		}
		res.Status = Available
		r.emit(Event{Type: ResourceFreed, EmergencyID: e.ID, ResourceID: id})
	}
	e.Resources = nil
}

// Must be called with r.mu held.
func (r *Registry) retireResource(res *Resource) {
	if res.Status.Held() {
		res.retire = true
		return
	}
	res.Status = OutOfService
}

// Must be called with r.mu held.
func (r *Registry) emit(evt Event) {
	evt.At = r.now
	r.events = append(r.events, evt)
}

// Must be called with r.mu held.
func (r *Registry) sortedEmergencies() []*Emergency {
	out := make([]*Emergency, 0, len(r.emergencies))
	for _, e := range r.emergencies {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return Less(*out[i], *out[j]) })
	return out
}

func copyEmergency(e *Emergency) Emergency {
	c := *e
	c.Resources = append([]model.ID(nil), e.Resources...)
	return c
}
