package registry

import (
	"time"

	"seekroute/internal/model"
)

type EventType string

const (
	EmergencyAdmitted   EventType = "emergency.admitted"
	EmergencyOnScene    EventType = "emergency.on_scene"
	EmergencyResolved   EventType = "emergency.resolved"
	EmergencyCancelled  EventType = "emergency.cancelled"
	EmergencyTimedOut   EventType = "emergency.timed_out"
	AssignmentConfirmed EventType = "assignment.confirmed"
	AssignmentRevoked   EventType = "assignment.revoked"
	ResourceFreed       EventType = "resource.freed"
)

// Event is a domain event emitted by registry mutations.
type Event struct {
	Type        EventType     `json:"type"`
	EmergencyID model.ID      `json:"emergencyId,omitempty"`
	ResourceID  model.ID      `json:"resourceId,omitempty"`
	At          time.Duration `json:"-"`
}

// Wakes reports whether the event gives the matcher new work: a newly pending
// emergency or a resource back in the pool.
func (e Event) Wakes() bool {
	return e.Type == EmergencyAdmitted || e.Type == ResourceFreed || e.Type == AssignmentRevoked
}
