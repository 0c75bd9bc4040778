package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ID identifies a resource or emergency. The map client sends numeric ids,
// other callers send strings; both decode to the same textual form.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %s", string(b))
	}
	*id = ID(n.String())
	return nil
}

// Less orders ids lexicographically.
func (id ID) Less(o ID) bool { return id < o }

// LessNumeric orders ids as integers when both parse, falling back to Less.
func (id ID) LessNumeric(o ID) bool {
	a, errA := strconv.ParseInt(string(id), 10, 64)
	b, errB := strconv.ParseInt(string(o), 10, 64)
	if errA == nil && errB == nil {
		return a < b
	}
	return id < o
}

// SortIDs returns ids sorted lexicographically, for stable response payloads.
func SortIDs(ids []ID) []ID {
	out := append([]ID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
