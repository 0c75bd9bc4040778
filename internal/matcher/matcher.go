// Package matcher assigns available resources to pending emergencies.
//
// Matching is greedy and strictly priority-first: emergencies are taken in
// dispatch order, each one gets the nearest resources that cover its
// requirement vector, and consumed resources leave the pool for the rest of
// the pass. There is no backtracking across emergencies.
package matcher

import (
	"fmt"
	"sort"

	"seekroute/internal/capability"
	"seekroute/internal/geo"
	"seekroute/internal/model"
	"seekroute/internal/registry"
)

// TieBreak orders resources that are equally good candidates.
type TieBreak string

const (
	TieByID      TieBreak = "id"      // lexicographic id
	TieByNumeric TieBreak = "numeric" // ids compared as integers when both parse
)

// Combination selects how multi-resource requirements are filled.
type Combination string

const (
	Nearest  Combination = "nearest"   // nearest resources per capability
	FirstFit Combination = "first-fit" // first resources per capability in tie-break order
)

type Options struct {
	TieBreak    TieBreak
	Combination Combination
}

// DefaultOptions is nearest-first with lexicographic id tie-break.
func DefaultOptions() Options {
	return Options{TieBreak: TieByID, Combination: Nearest}
}

// Validate rejects unknown option values.
func (o Options) Validate() error {
	switch o.TieBreak {
	case "", TieByID, TieByNumeric:
	default:
		return fmt.Errorf("matcher: unknown tie-break %q", o.TieBreak)
	}
	switch o.Combination {
	case "", Nearest, FirstFit:
	default:
		return fmt.Errorf("matcher: unknown combination %q", o.Combination)
	}
	return nil
}

// Assignment binds resources to one emergency. ResourceIDs are sorted.
type Assignment struct {
	EmergencyID model.ID
	ResourceIDs []model.ID
	// DistanceM is the straight-line distance of each chosen resource.
	DistanceM map[model.ID]float64
}

type Result struct {
	Assignments []Assignment
	// Unsatisfiable lists emergencies the whole fleet cannot serve, in
	// dispatch order. They are not attempted.
	Unsatisfiable []model.ID
	// Deferred lists satisfiable emergencies left Pending this pass.
	Deferred []model.ID
}

// FleetCapacity counts every resource that can ever serve, by capability.
// Out-of-service resources are excluded.
func FleetCapacity(fleet []registry.Resource) capability.Requirements {
	var c capability.Requirements
	for _, r := range fleet {
		if r.Status == registry.OutOfService || r.RetiringAfterRelease() {
			continue
		}
		c[r.Capability]++
	}
	return c
}

type candidate struct {
	res  registry.Resource
	dist float64
}

// Match runs one matching pass. Inputs are not modified; for identical
// inputs the result is identical.
func Match(pending []registry.Emergency, available []registry.Resource, fleet capability.Requirements, opts Options) Result {
	if opts.TieBreak == "" {
		opts.TieBreak = TieByID
	}
	if opts.Combination == "" {
		opts.Combination = Nearest
	}
	order := append([]registry.Emergency(nil), pending...)
	sort.SliceStable(order, func(i, j int) bool { return registry.Less(order[i], order[j]) })

	pool := map[capability.Capability][]registry.Resource{}
	for _, r := range available {
		if r.Status != registry.Available {
			continue
		}
		pool[r.Capability] = append(pool[r.Capability], r)
	}

	var out Result
	for _, e := range order {
		if !fleet.Covers(e.Requirements) {
			out.Unsatisfiable = append(out.Unsatisfiable, e.ID)
			continue
		}
		picked, ok := pick(e, pool, opts)
		if !ok {
			out.Deferred = append(out.Deferred, e.ID)
			continue
		}
		a := Assignment{EmergencyID: e.ID, DistanceM: map[model.ID]float64{}}
		for _, c := range picked {
			a.ResourceIDs = append(a.ResourceIDs, c.res.ID)
			a.DistanceM[c.res.ID] = c.dist
			pool[c.res.Capability] = remove(pool[c.res.Capability], c.res.ID)
		}
		a.ResourceIDs = model.SortIDs(a.ResourceIDs)
		out.Assignments = append(out.Assignments, a)
	}
	return out
}

// pick selects, for every capability e needs, that many resources from the
// pool. Each resource provides one unit of its capability, so the minimal
// feasible combination has exactly Total() members and a single-resource
// match is the only candidate when one unit is required.
func pick(e registry.Emergency, pool map[capability.Capability][]registry.Resource, opts Options) ([]candidate, bool) {
	var picked []candidate
	for _, c := range capability.All {
		need := e.Requirements[c]
		if need == 0 {
			continue
		}
		if len(pool[c]) < need {
			return nil, false
		}
		cands := make([]candidate, len(pool[c]))
		for i, r := range pool[c] {
			cands[i] = candidate{res: r, dist: geo.DistanceM(r.Location, e.Location)}
		}
		sort.Slice(cands, func(i, j int) bool { return better(cands[i], cands[j], opts) })
		picked = append(picked, cands[:need]...)
	}
	return picked, true
}

func better(a, b candidate, opts Options) bool {
	if opts.Combination == Nearest && a.dist != b.dist {
		return a.dist < b.dist
	}
	if opts.TieBreak == TieByNumeric {
		if a.res.ID.LessNumeric(b.res.ID) {
			return true
		}
		if b.res.ID.LessNumeric(a.res.ID) {
			return false
		}
	}
	return a.res.ID < b.res.ID
}

func remove(rs []registry.Resource, id model.ID) []registry.Resource {
	out := rs[:0:0]
	for _, r := range rs {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}
