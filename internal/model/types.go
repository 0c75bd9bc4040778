package model

import (
	"seekroute/internal/capability"
	"seekroute/internal/geo"
)

// Snapshot is the periodic fleet/incident payload posted by the map client.
// The original client names the fleet "cars"; "resources" is accepted too.
type Snapshot struct {
	Cars        []ResourceIn  `json:"cars,omitempty"`
	Resources   []ResourceIn  `json:"resources,omitempty"`
	Emergencies []EmergencyIn `json:"emergencies"`
	ClockMs     *int64        `json:"clockMs,omitempty"`
}

// Fleet returns the resources of the snapshot regardless of which key carried them.
func (s Snapshot) Fleet() []ResourceIn {
	if len(s.Resources) == 0 {
		return s.Cars
	}
	if len(s.Cars) == 0 {
		return s.Resources
	}
	out := make([]ResourceIn, 0, len(s.Cars)+len(s.Resources))
	out = append(out, s.Cars...)
	return append(out, s.Resources...)
}

type ResourceIn struct {
	ID         ID                     `json:"id"`
	Lat        *float64               `json:"lat"`
	Lon        *float64               `json:"lon"`
	Capability *capability.Capability `json:"capability"`
	Status     string                 `json:"status,omitempty"` // "" | available | out_of_service
}

type EmergencyIn struct {
	ID           ID                       `json:"id"`
	Lat          *float64                 `json:"lat"`
	Lon          *float64                 `json:"lon"`
	Priority     *Priority                `json:"priority"`
	Requirements *capability.Requirements `json:"requirements"`
	OffsetMs     int64                    `json:"offset,omitempty"`
}

// Payload is the result of one published scheduling cycle. AwaitingRoute
// lists assigned emergencies with a leg not yet routed; Retired lists
// emergencies resolved, cancelled or timed out during the cycle.
type Payload struct {
	Cycle         uint64          `json:"cycle"`
	CycleID       string          `json:"cycleId"`
	ClockMs       int64           `json:"clockMs"`
	Assignments   []AssignmentOut `json:"assignments"`
	Unsatisfiable []ID            `json:"unsatisfiable"`
	Pending       []ID            `json:"pending"`
	AwaitingRoute []ID            `json:"awaitingRoute,omitempty"`
	Revoked       []ID            `json:"revoked,omitempty"`
	Retired       []ID            `json:"retired,omitempty"`
}

type AssignmentOut struct {
	EmergencyID ID        `json:"emergencyId"`
	ResourceID  ID        `json:"resourceId"`
	Status      string    `json:"status"`
	Route       *RouteOut `json:"route,omitempty"`
}

type RouteOut struct {
	Geometry   LineString `json:"geometry"`
	ETA        string     `json:"eta"`
	ETASeconds float64    `json:"etaSeconds"`
	DistanceM  float64    `json:"distanceM"`
}

// LineString is a GeoJSON LineString geometry; coordinates are [lon, lat].
type LineString struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

// NewLineString converts a path into GeoJSON coordinate order.
func NewLineString(path []geo.Point) LineString {
	ls := LineString{Type: "LineString", Coordinates: make([][2]float64, len(path))}
	for i, p := range path {
		ls.Coordinates[i] = [2]float64{p.Lon, p.Lat}
	}
	return ls
}

// EmergencyView and ResourceView are read models for the operator endpoints.
type EmergencyView struct {
	ID            ID                      `json:"id"`
	Location      geo.Point               `json:"location"`
	Priority      Priority                `json:"priority"`
	Requirements  capability.Requirements `json:"requirements"`
	OffsetMs      int64                   `json:"offset"`
	State         string                  `json:"state"`
	Unsatisfiable bool                    `json:"unsatisfiable,omitempty"`
	Resources     []ID                    `json:"resources,omitempty"`
}

type ResourceView struct {
	ID          ID                    `json:"id"`
	Location    geo.Point             `json:"location"`
	Capability  capability.Capability `json:"capability"`
	Status      string                `json:"status"`
	EmergencyID ID                    `json:"emergencyId,omitempty"`
}

type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
