package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"seekroute/internal/capability"
	"seekroute/internal/model"
	"seekroute/internal/registry"
	"seekroute/internal/scheduler"
	"seekroute/internal/store"
)

// OptimiseHandler handles POST /optimise/: queue a snapshot and answer with
// the payload of the cycle that applied it.
func (s *Server) OptimiseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap, err := decodeSnapshot(w, r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Malformed snapshot", err.Error(), r.URL.Path)
		return
	}
	p, err := s.Sched.Ingest(r.Context(), snap)
	if err != nil {
		s.writeDispatchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registry.ErrMalformedSnapshot):
		writeProblem(w, http.StatusBadRequest, "Malformed snapshot", err.Error(), r.URL.Path)
	case errors.Is(err, registry.ErrUnknownEmergency), errors.Is(err, registry.ErrUnknownResource):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), r.URL.Path)
	case errors.Is(err, registry.ErrInvalidTransition):
		writeProblem(w, http.StatusConflict, "Invalid transition", err.Error(), r.URL.Path)
	case errors.Is(err, scheduler.ErrStopped):
		writeProblem(w, http.StatusServiceUnavailable, "Scheduler stopped", err.Error(), r.URL.Path)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusGatewayTimeout, "Cycle not completed", err.Error(), r.URL.Path)
	default:
		log.Printf("[api] %s %s: %v", r.Method, r.URL.Path, err)
		writeProblem(w, http.StatusInternalServerError, "Dispatch failed", err.Error(), r.URL.Path)
	}
}

// AssignmentsHandler handles GET /v1/assignments (latest published payload).
func (s *Server) AssignmentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.Sched.Latest())
}

// EmergenciesHandler handles GET /v1/emergencies
func (s *Server) EmergenciesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ev, _ := s.Sched.Registry().View()
	if st := r.URL.Query().Get("state"); st != "" {
		out := ev[:0]
		for _, e := range ev {
			if e.State == st {
				out = append(out, e)
			}
		}
		ev = out
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": ev})
}

// EmergencyByIDHandler handles GET /v1/emergencies/{id} and
// POST /v1/emergencies/{id}/resolve|cancel
func (s *Server) EmergencyByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/emergencies/"), "/")
	if rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := model.ID(parts[0])
	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ev, _ := s.Sched.Registry().View()
		for _, e := range ev {
			if e.ID == id {
				writeJSON(w, http.StatusOK, e)
				return
			}
		}
		writeProblem(w, http.StatusNotFound, "Emergency not found", string(id), r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanDispatch() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var err error
	switch parts[1] {
	case "resolve":
		err = s.Sched.Resolve(id)
	case "cancel":
		err = s.Sched.Cancel(id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if err != nil {
		s.writeDispatchError(w, r, err)
		return
	}
	log.Printf("[api] %s %s emergency %s", p.Role, parts[1], id)
	writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "action": parts[1]})
}

// ResourcesHandler handles GET /v1/resources
func (s *Server) ResourcesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, rv := s.Sched.Registry().View()
	if st := r.URL.Query().Get("status"); st != "" {
		out := rv[:0]
		for _, res := range rv {
			if res.Status == st {
				out = append(out, res)
			}
		}
		rv = out
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rv})
}

// ResourceByIDHandler handles POST /v1/resources/{id}/out-of-service
func (s *Server) ResourceByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/resources/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "out-of-service" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanDispatch() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	id := model.ID(parts[0])
	if err := s.Sched.SetOutOfService(id); err != nil {
		s.writeDispatchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "action": "out-of-service"})
}

// CapabilitiesHandler handles GET /v1/capabilities
func (s *Server) CapabilitiesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": capability.Catalogue()})
}

// CyclesHandler handles GET /v1/cycles (newest first, cursor paginated)
func (s *Server) CyclesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, next, err := s.Store.ListCycles(r.Context(), r.URL.Query().Get("cursor"), queryLimit(r, 50, 500))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List cycles failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// CycleByIDHandler handles GET /v1/cycles/{id}: the payload as published.
func (s *Server) CycleByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/cycles/"), "/")
	rec, err := s.Store.GetCycle(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Cycle not found", id, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get cycle failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cycle": rec, "payload": json.RawMessage(rec.Payload)})
}

// OutcomesHandler handles GET /v1/outcomes?state=
func (s *Server) OutcomesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, err := s.Store.ListOutcomes(r.Context(), r.URL.Query().Get("state"), queryLimit(r, 100, 1000))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List outcomes failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateSubscription(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", err.Error(), r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		items, next, err := s.Store.ListSubscriptions(r.Context(), r.URL.Query().Get("cursor"), queryLimit(r, 100, 500))
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Subscription delete (admin)
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	err := s.Store.DeleteSubscription(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Subscription not found", id, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Admin: webhook deliveries list and retry
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	q := r.URL.Query()
	items, next, err := s.Store.ListWebhookDeliveries(r.Context(), q.Get("status"), q.Get("cursor"), queryLimit(r, 100, 500))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/retry") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
	err := s.Store.RetryWebhookDelivery(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Delivery not found", id, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Retry delivery failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": 1})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "phase": s.Sched.Phase().String(), "cycle": s.Sched.Latest().Cycle})
}
