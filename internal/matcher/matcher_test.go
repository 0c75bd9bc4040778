package matcher

import (
	"reflect"
	"testing"
	"time"

	"seekroute/internal/capability"
	"seekroute/internal/geo"
	"seekroute/internal/model"
	"seekroute/internal/registry"
)

func resource(id string, lat, lon float64, c capability.Capability) registry.Resource {
	return registry.Resource{ID: model.ID(id), Location: geo.Point{Lat: lat, Lon: lon}, Capability: c}
}

func emergency(id string, lat, lon float64, p model.Priority, offset time.Duration, need capability.Requirements) registry.Emergency {
	return registry.Emergency{ID: model.ID(id), Location: geo.Point{Lat: lat, Lon: lon}, Priority: p, ArrivalOffset: offset, Requirements: need, State: registry.Pending}
}

func TestAmbulanceGoesToAmbulanceNeed(t *testing.T) {
	fleet := []registry.Resource{
		resource("A", -32, 116, capability.PoliceCar),
		resource("B", -32.01, 115.9, capability.Ambulance),
	}
	pending := []registry.Emergency{
		emergency("e", -32, 115.9, model.Urgent, 0, capability.Of(capability.Ambulance)),
	}
	got := Match(pending, fleet, FleetCapacity(fleet), DefaultOptions())
	if len(got.Assignments) != 1 || !reflect.DeepEqual(got.Assignments[0].ResourceIDs, []model.ID{"B"}) {
		t.Fatalf("assignments: %+v", got.Assignments)
	}
}

func TestCapabilityAbsentFromFleetIsUnsatisfiable(t *testing.T) {
	fleet := []registry.Resource{resource("A", -32, 116, capability.PoliceCar)}
	pending := []registry.Emergency{
		emergency("fire", -32, 116, model.Immediate, 0, capability.Of(capability.FireTruck)),
	}
	got := Match(pending, fleet, FleetCapacity(fleet), DefaultOptions())
	if len(got.Assignments) != 0 || !reflect.DeepEqual(got.Unsatisfiable, []model.ID{"fire"}) {
		t.Fatalf("result: %+v", got)
	}
}

func TestEarlierOffsetWinsAtEqualPriority(t *testing.T) {
	fleet := []registry.Resource{resource("amb", -32, 116, capability.Ambulance)}
	need := capability.Of(capability.Ambulance)
	pending := []registry.Emergency{
		emergency("late", -32, 116.001, model.Urgent, time.Second, need),
		emergency("early", -32, 116.5, model.Urgent, 0, need),
	}
	got := Match(pending, fleet, FleetCapacity(fleet), DefaultOptions())
	if len(got.Assignments) != 1 || got.Assignments[0].EmergencyID != "early" {
		t.Fatalf("assignments: %+v", got.Assignments)
	}
	if !reflect.DeepEqual(got.Deferred, []model.ID{"late"}) || len(got.Unsatisfiable) != 0 {
		t.Fatalf("late must stay pending and satisfiable: %+v", got)
	}
}

func TestImmediateBeatsEarlierUrgent(t *testing.T) {
	fleet := []registry.Resource{resource("car", -32, 116, capability.PoliceCar)}
	need := capability.Of(capability.PoliceCar)
	pending := []registry.Emergency{
		emergency("urgent", -32, 116, model.Urgent, 0, need),
		emergency("immediate", -31, 115, model.Immediate, 5*time.Second, need),
	}
	got := Match(pending, fleet, FleetCapacity(fleet), DefaultOptions())
	if got.Assignments[0].EmergencyID != "immediate" {
		t.Fatalf("assignments: %+v", got.Assignments)
	}
}

func TestMultiResourceCoverageWithoutDoubleBooking(t *testing.T) {
	fleet := []registry.Resource{
		resource("p1", -32.00, 116.00, capability.PoliceCar),
		resource("p2", -32.05, 116.00, capability.PoliceCar),
		resource("p3", -32.50, 116.00, capability.PoliceCar),
		resource("a1", -32.01, 116.00, capability.Ambulance),
		resource("a2", -32.40, 116.00, capability.Ambulance),
	}
	pending := []registry.Emergency{
		emergency("big", -32, 116, model.Immediate, 0, capability.Of(capability.PoliceCar, capability.PoliceCar, capability.Ambulance)),
		emergency("small", -32, 116, model.Urgent, 0, capability.Of(capability.PoliceCar, capability.Ambulance)),
		emergency("starved", -32, 116, model.NonUrgent, 0, capability.Of(capability.PoliceCar)),
	}
	got := Match(pending, fleet, FleetCapacity(fleet), DefaultOptions())

	want := map[model.ID][]model.ID{
		"big":   {"a1", "p1", "p2"},
		"small": {"a2", "p3"},
	}
	used := map[model.ID]model.ID{}
	caps := map[model.ID]capability.Capability{}
	for _, r := range fleet {
		caps[r.ID] = r.Capability
	}
	for _, a := range got.Assignments {
		if !reflect.DeepEqual(a.ResourceIDs, want[a.EmergencyID]) {
			t.Errorf("%s got %v, want %v", a.EmergencyID, a.ResourceIDs, want[a.EmergencyID])
		}
		var have capability.Requirements
		for _, id := range a.ResourceIDs {
			if prev, dup := used[id]; dup {
				t.Fatalf("%s double-booked to %s and %s", id, prev, a.EmergencyID)
			}
			used[id] = a.EmergencyID
			have[caps[id]]++
		}
		for _, e := range pending {
			if e.ID == a.EmergencyID && !have.Covers(e.Requirements) {
				t.Errorf("%s not covered: %v", e.ID, have)
			}
		}
	}
	if !reflect.DeepEqual(got.Deferred, []model.ID{"starved"}) {
		t.Fatalf("deferred: %v", got.Deferred)
	}
}

func TestMatchIsDeterministic(t *testing.T) {
	// Equidistant resources fall back to id order.
	fleet := []registry.Resource{
		resource("c", -32, 116.01, capability.Motorcycle),
		resource("a", -32, 116.01, capability.Motorcycle),
		resource("b", -32, 116.01, capability.Motorcycle),
	}
	pending := []registry.Emergency{emergency("e", -32, 116, model.Urgent, 0, capability.Of(capability.Motorcycle))}
	first := Match(pending, fleet, FleetCapacity(fleet), DefaultOptions())
	for i := 0; i < 20; i++ {
		if again := Match(pending, fleet, FleetCapacity(fleet), DefaultOptions()); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, first, again)
		}
	}
	if first.Assignments[0].ResourceIDs[0] != "a" {
		t.Fatalf("tie-break: %v", first.Assignments[0].ResourceIDs)
	}
}

func TestNumericTieBreakAndFirstFit(t *testing.T) {
	fleet := []registry.Resource{
		resource("10", -32, 116, capability.FireTruck),
		resource("9", -33, 117, capability.FireTruck),
	}
	pending := []registry.Emergency{emergency("e", -32, 116, model.Urgent, 0, capability.Of(capability.FireTruck))}
	got := Match(pending, fleet, FleetCapacity(fleet), Options{TieBreak: TieByNumeric, Combination: FirstFit})
	if got.Assignments[0].ResourceIDs[0] != "9" {
		t.Fatalf("first-fit numeric should take 9: %v", got.Assignments[0].ResourceIDs)
	}
	got = Match(pending, fleet, FleetCapacity(fleet), DefaultOptions())
	if got.Assignments[0].ResourceIDs[0] != "10" {
		t.Fatalf("nearest should take 10: %v", got.Assignments[0].ResourceIDs)
	}
	if err := (Options{TieBreak: "random"}).Validate(); err == nil {
		t.Fatal("unknown tie-break accepted")
	}
}
