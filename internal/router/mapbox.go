package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"seekroute/internal/geo"
)

const DefaultMapboxURL = "https://api.mapbox.com"

// Mapbox calls the Directions v5 API with GeoJSON geometries, the same
// request the map client issues for display.
type Mapbox struct {
	Token   string
	BaseURL string
	Profile string // driving, driving-traffic, walking, cycling
	HTTP    *http.Client
}

func NewMapbox(token string) *Mapbox {
	return &Mapbox{
		Token:   token,
		BaseURL: DefaultMapboxURL,
		Profile: "driving",
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (m *Mapbox) Name() string { return "mapbox" }

type directionsResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Type        string       `json:"type"`
			Coordinates [][2]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

func (m *Mapbox) Route(ctx context.Context, origin, destination geo.Point) (Route, error) {
	base := strings.TrimRight(m.BaseURL, "/")
	if base == "" {
		base = DefaultMapboxURL
	}
	profile := m.Profile
	if profile == "" {
		profile = "driving"
	}
	q := url.Values{}
	q.Set("geometries", "geojson")
	q.Set("overview", "full")
	q.Set("access_token", m.Token)
	u := fmt.Sprintf("%s/directions/v5/mapbox/%s/%f,%f;%f,%f?%s",
		base, profile, origin.Lon, origin.Lat, destination.Lon, destination.Lat, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Route{}, err
	}
	client := m.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Route{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Route{}, fmt.Errorf("%w: read body: %v", ErrProviderUnavailable, err)
	}
	var dr directionsResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return Route{}, fmt.Errorf("%w: mapbox status %d: decode: %v", ErrProviderUnavailable, resp.StatusCode, err)
	}
	switch {
	case dr.Code == "NoRoute" || dr.Code == "NoSegment":
		return Route{}, fmt.Errorf("%w: %s", ErrNoPathFound, dr.Code)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Route{}, fmt.Errorf("%w: mapbox status %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return Route{}, fmt.Errorf("%w: mapbox status %d: %s", ErrProviderUnavailable, resp.StatusCode, dr.Message)
	case dr.Code != "Ok" || len(dr.Routes) == 0:
		return Route{}, fmt.Errorf("%w: mapbox code %q", ErrNoPathFound, dr.Code)
	}
	best := dr.Routes[0]
	path := make([]geo.Point, 0, len(best.Geometry.Coordinates))
	for _, c := range best.Geometry.Coordinates {
		path = append(path, geo.Point{Lat: c[1], Lon: c[0]})
	}
	return Route{
		Origin:      origin,
		Destination: destination,
		Path:        path,
		DistanceM:   best.Distance,
		ETA:         time.Duration(best.Duration * float64(time.Second)),
	}, nil
}
