package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Priority is an emergency level. Lower values are served first.
type Priority int

const (
	Immediate Priority = iota
	Urgent
	NonUrgent
)

var ErrUnknownPriority = errors.New("unknown priority")

func (p Priority) Valid() bool { return p >= Immediate && p <= NonUrgent }

func (p Priority) String() string {
	switch p {
	case Immediate:
		return "Immediate"
	case Urgent:
		return "Urgent"
	case NonUrgent:
		return "Non-Urgent"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// Before reports whether p outranks o.
func (p Priority) Before(o Priority) bool { return p < o }

// ParsePriority accepts "Immediate", "Urgent", "Non-Urgent" (or "NonUrgent",
// "non_urgent"), case-insensitive.
func ParsePriority(s string) (Priority, error) {
	k := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	switch k {
	case "immediate":
		return Immediate, nil
	case "urgent":
		return Urgent, nil
	case "nonurgent":
		return NonUrgent, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPriority, s)
}

func (p Priority) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

func (p *Priority) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := ParsePriority(s)
		if err != nil {
			return err
		}
		*p = v
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownPriority, string(b))
	}
	if v := Priority(n); v.Valid() {
		*p = v
		return nil
	}
	return fmt.Errorf("%w: %d", ErrUnknownPriority, n)
}
