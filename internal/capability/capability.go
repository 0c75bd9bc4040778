// Package capability defines the closed set of resource capability types and
// the per-capability requirement vector an emergency carries.
package capability

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Capability is the functional type of a resource.
type Capability int

const (
	PoliceCar  Capability = iota // A
	PoliceVan                    // B
	Motorcycle                   // C
	FireTruck                    // D, heavy rescue
	Ambulance                    // E, medical unit

	// NumCapabilities is the size of a Requirements vector.
	NumCapabilities = 5
)

// All lists every capability in index order.
var All = [NumCapabilities]Capability{PoliceCar, PoliceVan, Motorcycle, FireTruck, Ambulance}

var ErrUnknown = errors.New("unknown capability")

var names = [NumCapabilities]struct{ tag, snake, camel string }{
	{"A", "police_car", "PoliceCar"},
	{"B", "police_van", "PoliceVan"},
	{"C", "motorcycle", "Motorcycle"},
	{"D", "fire_truck", "FireTruck"},
	{"E", "ambulance", "Ambulance"},
}

// Valid reports whether c is one of the enumerated capabilities.
func (c Capability) Valid() bool { return c >= 0 && int(c) < NumCapabilities }

func (c Capability) String() string {
	if !c.Valid() {
		return "Capability(" + strconv.Itoa(int(c)) + ")"
	}
	return names[c].camel
}

// Tag returns the single-letter wire tag (A..E).
func (c Capability) Tag() string {
	if !c.Valid() {
		return ""
	}
	return names[c].tag
}

// Parse accepts the letter tag, the snake_case or CamelCase name, or the
// enum index as a decimal string. Matching is case-insensitive.
func Parse(s string) (Capability, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		c := Capability(n)
		if !c.Valid() {
			return 0, fmt.Errorf("%w: %d", ErrUnknown, n)
		}
		return c, nil
	}
	for i, n := range names {
		if strings.EqualFold(s, n.tag) || strings.EqualFold(s, n.snake) || strings.EqualFold(s, n.camel) {
			return Capability(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknown, s)
}

// MarshalJSON writes the letter tag, which is what the map client keys its
// icon table by.
func (c Capability) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknown, int(c))
	}
	return json.Marshal(c.Tag())
}

// UnmarshalJSON accepts either a JSON string (see Parse) or an enum index.
func (c *Capability) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := Parse(s)
		if err != nil {
			return err
		}
		*c = v
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknown, string(b))
	}
	v := Capability(n)
	if !v.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknown, n)
	}
	*c = v
	return nil
}
