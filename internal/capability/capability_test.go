package capability

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	cases := map[string]Capability{
		"A":          PoliceCar,
		"b":          PoliceVan,
		"motorcycle": Motorcycle,
		"FireTruck":  FireTruck,
		"ambulance":  Ambulance,
		"4":          Ambulance,
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil || got != want {
			t.Errorf("Parse(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "Z", "5", "-1", "helicopter"} {
		if _, err := Parse(bad); !errors.Is(err, ErrUnknown) {
			t.Errorf("Parse(%q): want ErrUnknown, got %v", bad, err)
		}
	}
}

func TestCapabilityJSON(t *testing.T) {
	var v struct {
		A Capability `json:"a"`
		B Capability `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":"E","b":2}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A != Ambulance || v.B != Motorcycle {
		t.Fatalf("got %v %v", v.A, v.B)
	}
	if err := json.Unmarshal([]byte(`{"a":9}`), &v); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
	b, _ := json.Marshal(FireTruck)
	if string(b) != `"D"` {
		t.Fatalf("marshal: %s", b)
	}
}

func TestRequirementsJSON(t *testing.T) {
	var r Requirements
	if err := json.Unmarshal([]byte(`[0,0,1,0,2]`), &r); err != nil {
		t.Fatalf("array: %v", err)
	}
	if r != (Requirements{0, 0, 1, 0, 2}) {
		t.Fatalf("array: got %v", r)
	}
	if err := json.Unmarshal([]byte(`{"ambulance":1,"A":2}`), &r); err != nil {
		t.Fatalf("object: %v", err)
	}
	if r != (Requirements{2, 0, 0, 0, 1}) {
		t.Fatalf("object: got %v", r)
	}
	if err := json.Unmarshal([]byte(`[1,0]`), &r); !errors.Is(err, ErrBadRequirements) {
		t.Fatalf("short array: got %v", err)
	}
}

func TestRequirementsVectorOps(t *testing.T) {
	need := Of(Ambulance, Ambulance, PoliceCar)
	if need.Total() != 3 {
		t.Fatalf("total: %d", need.Total())
	}
	have := Of(Ambulance).Add(Of(PoliceCar))
	if have.Covers(need) {
		t.Fatal("one ambulance must not cover two")
	}
	if m := need.Missing(have); len(m) != 1 || m[0] != Ambulance {
		t.Fatalf("missing: %v", m)
	}
	if !have.Add(Of(Ambulance, FireTruck)).Covers(need) {
		t.Fatal("superset must cover")
	}
	if err := (Requirements{}).Validate(); !errors.Is(err, ErrBadRequirements) {
		t.Fatalf("empty vector: %v", err)
	}
	if err := (Requirements{1, -1, 0, 0, 0}).Validate(); !errors.Is(err, ErrBadRequirements) {
		t.Fatalf("negative: %v", err)
	}
	if err := (Requirements{MaxCount + 1, 0, 0, 0, 0}).Validate(); !errors.Is(err, ErrBadRequirements) {
		t.Fatalf("oversized: %v", err)
	}
	if err := (Requirements{MaxCount, 0, 0, 0, 0}).Validate(); err != nil {
		t.Fatalf("at limit: %v", err)
	}
}

func TestHugeCountsAreRejected(t *testing.T) {
	var r Requirements
	body := `{"A":4611686018427387904,"B":4611686018427387904,"C":4611686018427387904,"D":4611686018427387904}`
	if err := json.Unmarshal([]byte(body), &r); !errors.Is(err, ErrBadRequirements) {
		t.Fatalf("object form: got %v", err)
	}
	if err := json.Unmarshal([]byte(`[9223372036854775807,1,0,0,0]`), &r); err != nil {
		t.Fatalf("array decode: %v", err)
	}
	if err := r.Validate(); !errors.Is(err, ErrBadRequirements) {
		t.Fatalf("array form passed validation: %v", r)
	}
}

func TestCatalogueCoversEveryCapability(t *testing.T) {
	cat := Catalogue()
	for _, c := range All {
		if cat[c].Tag != c.Tag() || cat[c].Name != c.String() {
			t.Errorf("catalogue entry %d = %+v, want tag %s", c, cat[c], c.Tag())
		}
	}
}
