package api

import "net/http"

// Routes registers every API endpoint on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	// Snapshot ingestion; the map client posts to /optimise/.
	optimise := s.RateLimit(s.OptimiseHandler)
	mux.HandleFunc("/optimise/", optimise)
	mux.HandleFunc("/optimise", optimise)
	mux.HandleFunc("/v1/optimise", optimise)

	// Dispatch state
	mux.HandleFunc("/v1/assignments", s.AssignmentsHandler)
	mux.HandleFunc("/v1/emergencies", s.EmergenciesHandler)
	mux.HandleFunc("/v1/emergencies/", s.EmergencyByIDHandler) // includes /resolve, /cancel
	mux.HandleFunc("/v1/resources", s.ResourcesHandler)
	mux.HandleFunc("/v1/resources/", s.ResourceByIDHandler)
	mux.HandleFunc("/v1/capabilities", s.CapabilitiesHandler)

	// History
	mux.HandleFunc("/v1/cycles", s.CyclesHandler)
	mux.HandleFunc("/v1/cycles/", s.CycleByIDHandler)
	mux.HandleFunc("/v1/outcomes", s.OutcomesHandler)

	// Streams
	mux.HandleFunc("/v1/dispatch/stream", s.DispatchStreamHandler)
	mux.HandleFunc("/v1/dispatch/ws", s.DispatchWSHandler)

	// Webhooks
	mux.HandleFunc("/v1/subscriptions", s.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", s.SubscriptionByIDHandler)
	mux.HandleFunc("/v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)
	mux.HandleFunc("/v1/admin/webhook-deliveries/", s.WebhookDeliveryRetryHandler)

	// Health, docs, debug
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("/docs", s.DocsHandler)
	mux.HandleFunc("/debug/config", s.DebugJSON)
}
