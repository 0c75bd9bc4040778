package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"seekroute/internal/geo"
)

type countingProvider struct {
	calls atomic.Int32
	fn    func(ctx context.Context, o, d geo.Point) (Route, error)
}

func (p *countingProvider) Name() string { return "fake" }

func (p *countingProvider) Route(ctx context.Context, o, d geo.Point) (Route, error) {
	p.calls.Add(1)
	return p.fn(ctx, o, d)
}

var (
	perth = geo.Point{Lat: -31.9498342, Lon: 115.8578795}
	scene = geo.Point{Lat: -32, Lon: 115.9}
)

func TestRouteCachesByRoundedKey(t *testing.T) {
	p := &countingProvider{fn: StraightLine{}.Route}
	r := New(p, NewMemoryCache(time.Minute), Config{Timeout: time.Second})
	if _, err := r.Route(context.Background(), perth, scene); err != nil {
		t.Fatal(err)
	}
	nudged := geo.Point{Lat: perth.Lat + 0.000001, Lon: perth.Lon}
	if _, err := r.Route(context.Background(), nudged, scene); err != nil {
		t.Fatal(err)
	}
	if n := p.calls.Load(); n != 1 {
		t.Fatalf("provider calls = %d, want 1", n)
	}
}

func TestRouteTimeoutIsProviderUnavailable(t *testing.T) {
	p := &countingProvider{fn: func(ctx context.Context, _, _ geo.Point) (Route, error) {
		<-ctx.Done()
		return Route{}, ctx.Err()
	}}
	r := New(p, nil, Config{Timeout: 20 * time.Millisecond})
	_, err := r.Route(context.Background(), perth, scene)
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("want ErrProviderUnavailable, got %v", err)
	}
}

func TestRouteAllKeepsOrderAndIsolatesFailures(t *testing.T) {
	bad := geo.Point{Lat: 10, Lon: 10}
	p := &countingProvider{fn: func(ctx context.Context, o, d geo.Point) (Route, error) {
		if d == bad {
			return Route{}, ErrNoPathFound
		}
		return StraightLine{}.Route(ctx, o, d)
	}}
	r := New(p, NewMemoryCache(0), Config{Timeout: time.Second, Parallelism: 2})
	reqs := []Request{
		{EmergencyID: "e1", ResourceID: "r1", Origin: perth, Destination: scene},
		{EmergencyID: "e2", ResourceID: "r2", Origin: perth, Destination: bad},
		{EmergencyID: "e3", ResourceID: "r3", Origin: scene, Destination: perth},
	}
	res := r.RouteAll(context.Background(), reqs)
	if len(res) != 3 || res[0].EmergencyID != "e1" || res[2].ResourceID != "r3" {
		t.Fatalf("order: %+v", res)
	}
	if res[0].Err != nil || res[2].Err != nil {
		t.Fatalf("unexpected errors: %v %v", res[0].Err, res[2].Err)
	}
	if !errors.Is(res[1].Err, ErrNoPathFound) {
		t.Fatalf("leg 2: %v", res[1].Err)
	}
}

func TestStraightLineETA(t *testing.T) {
	rt, err := StraightLine{SpeedMPS: 10}.Route(context.Background(), perth, scene)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Duration(rt.DistanceM / 10 * float64(time.Second))
	if rt.ETA != want || len(rt.Path) != 2 {
		t.Fatalf("route: %+v", rt)
	}
}

func TestMapboxParsesDirections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/directions/v5/mapbox/driving/") {
			t.Errorf("path %s", r.URL.Path)
		}
		if r.URL.Query().Get("geometries") != "geojson" || r.URL.Query().Get("access_token") != "tok" {
			t.Errorf("query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":1234.5,"duration":90,
			"geometry":{"type":"LineString","coordinates":[[115.85,-31.94],[115.9,-32]]}}]}`))
	}))
	defer srv.Close()
	m := NewMapbox("tok")
	m.BaseURL = srv.URL
	rt, err := m.Route(context.Background(), perth, scene)
	if err != nil {
		t.Fatal(err)
	}
	if rt.DistanceM != 1234.5 || rt.ETA != 90*time.Second {
		t.Fatalf("route: %+v", rt)
	}
	if rt.Path[1] != (geo.Point{Lat: -32, Lon: 115.9}) {
		t.Fatalf("path not converted to lat/lon: %v", rt.Path)
	}
}

func TestMapboxErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusOK, `{"code":"NoRoute","routes":[]}`, ErrNoPathFound},
		{http.StatusTooManyRequests, `{"message":"slow down"}`, ErrProviderUnavailable},
		{http.StatusBadGateway, ``, ErrProviderUnavailable},
		{http.StatusUnauthorized, `{"message":"Not Authorized - Invalid Token"}`, ErrProviderUnavailable},
		{http.StatusOK, `<html>upstream error</html>`, ErrProviderUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		m := NewMapbox("tok")
		m.BaseURL = srv.URL
		_, err := m.Route(context.Background(), perth, scene)
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: got %v, want %v", tc.status, err, tc.want)
		}
		srv.Close()
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(time.Second)
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }
	c.Set(context.Background(), "k", Route{DistanceM: 1})
	if _, ok := c.Get(context.Background(), "k"); !ok {
		t.Fatal("miss before expiry")
	}
	now = now.Add(2 * time.Second)
	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Fatal("hit after expiry")
	}
}
