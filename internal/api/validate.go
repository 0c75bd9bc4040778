package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"seekroute/internal/model"
	"seekroute/internal/registry"
)

const maxSnapshotBytes = 4 << 20

// decodeSnapshot reads a snapshot body. Syntax and type errors are reported
// as registry.ErrMalformedSnapshot so the caller answers them like any other
// rejected snapshot.
func decodeSnapshot(w http.ResponseWriter, r *http.Request) (model.Snapshot, error) {
	var snap model.Snapshot
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSnapshotBytes))
	if err := dec.Decode(&snap); err != nil {
		return snap, fmt.Errorf("%w: %v", registry.ErrMalformedSnapshot, err)
	}
	return snap, nil
}

var knownEvents = map[string]struct{}{
	"*":                                  {},
	"dispatch.cycle":                     {},
	string(registry.EmergencyAdmitted):   {},
	string(registry.EmergencyOnScene):    {},
	string(registry.EmergencyResolved):   {},
	string(registry.EmergencyCancelled):  {},
	string(registry.EmergencyTimedOut):   {},
	string(registry.AssignmentConfirmed): {},
	string(registry.AssignmentRevoked):   {},
	string(registry.ResourceFreed):       {},
}

func validateSubscription(req *model.SubscriptionRequest) error {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) URL")
	}
	if len(req.Events) == 0 {
		return fmt.Errorf("events must not be empty")
	}
	for i, e := range req.Events {
		e = strings.TrimSpace(e)
		if _, ok := knownEvents[e]; !ok {
			return fmt.Errorf("unknown event type: %s", e)
		}
		req.Events[i] = e
	}
	return nil
}
