package capability

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Requirements is a per-capability count vector indexed by Capability.
type Requirements [NumCapabilities]int

var ErrBadRequirements = errors.New("invalid requirement vector")

// MaxCount bounds a single requirement count.
const MaxCount = 1000

// Of builds a vector with one unit for each listed capability.
func Of(caps ...Capability) Requirements {
	var r Requirements
	for _, c := range caps {
		r[c]++
	}
	return r
}

// Total returns the number of resource units the vector asks for.
func (r Requirements) Total() int {
	n := 0
	for _, v := range r {
		n += v
	}
	return n
}

// Add returns the component-wise sum of r and o.
func (r Requirements) Add(o Requirements) Requirements {
	for i := range r {
		r[i] += o[i]
	}
	return r
}

// Covers reports whether r meets or exceeds need component-wise.
func (r Requirements) Covers(need Requirements) bool {
	for i := range r {
		if r[i] < need[i] {
			return false
		}
	}
	return true
}

// Missing returns the capabilities for which have falls short of r, in index order.
func (r Requirements) Missing(have Requirements) []Capability {
	var out []Capability
	for i := range r {
		if have[i] < r[i] {
			out = append(out, Capability(i))
		}
	}
	return out
}

// Validate rejects negative or oversized counts and vectors that ask for nothing.
func (r Requirements) Validate() error {
	for i, v := range r {
		if v < 0 {
			return fmt.Errorf("%w: negative count %d for %s", ErrBadRequirements, v, Capability(i))
		}
		if v > MaxCount {
			return fmt.Errorf("%w: count %d for %s exceeds %d", ErrBadRequirements, v, Capability(i), MaxCount)
		}
	}
	if r.Total() == 0 {
		return fmt.Errorf("%w: no capability requested", ErrBadRequirements)
	}
	return nil
}

func (r Requirements) String() string {
	var parts []string
	for i, v := range r {
		if v > 0 {
			parts = append(parts, fmt.Sprintf("%dx%s", v, Capability(i)))
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// UnmarshalJSON accepts a positional array of exactly NumCapabilities counts,
// as the map client sends it, or an object keyed by capability tag.
func (r *Requirements) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var m map[string]int
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("%w: %v", ErrBadRequirements, err)
		}
		var out Requirements
		for k, v := range m {
			c, err := Parse(k)
			if err != nil {
				return err
			}
			if v < 0 || v > MaxCount {
				return fmt.Errorf("%w: count %d for %s out of range", ErrBadRequirements, v, k)
			}
			out[c] += v
		}
		*r = out
		return nil
	}
	var arr []int
	if err := json.Unmarshal(b, &arr); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequirements, err)
	}
	if len(arr) != NumCapabilities {
		return fmt.Errorf("%w: want %d counts, got %d", ErrBadRequirements, NumCapabilities, len(arr))
	}
	copy(r[:], arr)
	return nil
}

// MarshalJSON writes the positional array form.
func (r Requirements) MarshalJSON() ([]byte, error) {
	return json.Marshal([NumCapabilities]int(r))
}
