package registry

import (
	"time"

	"seekroute/internal/capability"
	"seekroute/internal/geo"
	"seekroute/internal/model"
)

// ResourceStatus is the dispatch state of a fleet resource.
type ResourceStatus int

const (
	Available    ResourceStatus = iota
	Reserved                    // matched, route not yet confirmed
	EnRoute                     // driving to its emergency
	Busy                        // on scene
	OutOfService                // permanently unavailable
)

func (s ResourceStatus) String() string {
	switch s {
	case Available:
		return "available"
	case Reserved:
		return "reserved"
	case EnRoute:
		return "en_route"
	case Busy:
		return "busy"
	case OutOfService:
		return "out_of_service"
	default:
		return "unknown"
	}
}

// Held reports whether a resource in this status belongs to an emergency.
func (s ResourceStatus) Held() bool { return s == Reserved || s == EnRoute || s == Busy }

// EmergencyState is the lifecycle state of an emergency.
type EmergencyState int

const (
	Scheduled EmergencyState = iota // known, arrival offset not reached
	Pending
	Assigned
	OnScene
	Resolved
	Cancelled
	TimedOut
)

func (s EmergencyState) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case Pending:
		return "pending"
	case Assigned:
		return "assigned"
	case OnScene:
		return "on_scene"
	case Resolved:
		return "resolved"
	case Cancelled:
		return "cancelled"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether the emergency has left the active set.
func (s EmergencyState) Terminal() bool { return s >= Resolved }

type Resource struct {
	ID          model.ID
	Location    geo.Point
	Capability  capability.Capability
	Status      ResourceStatus
	EmergencyID model.ID
	// ArriveBy is the logical time the resource reaches its emergency;
	// valid while Status is EnRoute or Busy.
	ArriveBy time.Duration

	retire bool // go out of service once released
}

type Emergency struct {
	ID            model.ID
	Location      geo.Point
	Requirements  capability.Requirements
	Priority      model.Priority
	ArrivalOffset time.Duration
	State         EmergencyState
	AdmittedAt    time.Duration
	OnSceneAt     time.Duration
	Unsatisfiable bool
	// Resources holds the ids of the resources currently assigned, sorted.
	Resources []model.ID
}

// Config tunes service progression.
type Config struct {
	// ServiceDuration is the time on scene before an emergency resolves by
	// itself. Zero leaves resolution to the operator.
	ServiceDuration time.Duration
	// PendingTimeout retires emergencies that stay Pending this long. Zero
	// disables the timeout.
	PendingTimeout time.Duration
}

// Less is the total pending order: priority, then arrival offset, then id.
func Less(a, b Emergency) bool {
	if a.Priority != b.Priority {
		return a.Priority.Before(b.Priority)
	}
	if a.ArrivalOffset != b.ArrivalOffset {
		return a.ArrivalOffset < b.ArrivalOffset
	}
	return a.ID < b.ID
}

// RetiringAfterRelease reports whether the resource goes out of service once
// its current assignment ends.
func (r Resource) RetiringAfterRelease() bool { return r.retire }
