package registry

import (
	"errors"
	"fmt"
	"strings"

	"seekroute/internal/geo"
	"seekroute/internal/model"
)

var (
	ErrMalformedSnapshot  = errors.New("malformed snapshot")
	ErrUnknownEmergency   = errors.New("unknown emergency")
	ErrUnknownResource    = errors.New("unknown resource")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrInvariantViolation = errors.New("registry invariant violated")
)

const maxReportedProblems = 8

// Validate checks a snapshot without touching registry state: required
// fields, coordinate ranges, requirement vectors and duplicate ids.
func Validate(snap model.Snapshot) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	seen := map[model.ID]bool{}
	for i, r := range snap.Fleet() {
		where := fmt.Sprintf("resources[%d]", i)
		if r.ID == "" {
			add("%s: missing id", where)
		} else if seen[r.ID] {
			add("%s: duplicate id %s", where, r.ID)
		}
		seen[r.ID] = true
		if r.Lat == nil || r.Lon == nil {
			add("%s: missing lat/lon", where)
		} else if !(geo.Point{Lat: *r.Lat, Lon: *r.Lon}).Valid() {
			add("%s: coordinates out of range", where)
		}
		if r.Capability == nil {
			add("%s: missing capability", where)
		} else if !r.Capability.Valid() {
			add("%s: unknown capability %d", where, int(*r.Capability))
		}
		switch strings.ToLower(r.Status) {
		case "", "available", "out_of_service":
		default:
			add("%s: unknown status %q", where, r.Status)
		}
	}
	seen = map[model.ID]bool{}
	for i, e := range snap.Emergencies {
		where := fmt.Sprintf("emergencies[%d]", i)
		if e.ID == "" {
			add("%s: missing id", where)
		} else if seen[e.ID] {
			add("%s: duplicate id %s", where, e.ID)
		}
		seen[e.ID] = true
		if e.Lat == nil || e.Lon == nil {
			add("%s: missing lat/lon", where)
		} else if !(geo.Point{Lat: *e.Lat, Lon: *e.Lon}).Valid() {
			add("%s: coordinates out of range", where)
		}
		if e.Priority == nil {
			add("%s: missing priority", where)
		} else if !e.Priority.Valid() {
			add("%s: unknown priority %d", where, int(*e.Priority))
		}
		if e.Requirements == nil {
			add("%s: missing requirements", where)
		} else if err := e.Requirements.Validate(); err != nil {
			add("%s: %v", where, err)
		}
		if e.OffsetMs < 0 {
			add("%s: negative offset", where)
		}
	}
	if snap.ClockMs != nil && *snap.ClockMs < 0 {
		add("clockMs: negative")
	}
	if len(problems) == 0 {
		return nil
	}
	if len(problems) > maxReportedProblems {
		n := len(problems) - maxReportedProblems
		problems = append(problems[:maxReportedProblems], fmt.Sprintf("and %d more", n))
	}
	return fmt.Errorf("%w: %s", ErrMalformedSnapshot, strings.Join(problems, "; "))
}
