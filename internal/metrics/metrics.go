package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Cycles counts scheduling cycles by outcome (published, failed, conflict)
	Cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_cycles_total", Help: "Scheduling cycles by outcome."},
		[]string{"outcome"},
	)
	// CycleDuration records how long a full cycle takes, routing included
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "dispatch_cycle_duration_seconds", Help: "Scheduling cycle duration in seconds.", Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5, 10}},
	)
	// Assignments counts assignments confirmed and revoked
	Assignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_assignments_total", Help: "Assignments by event (confirmed, revoked)."},
		[]string{"event"},
	)
	// PendingEmergencies and AvailableResources are sampled after each cycle
	PendingEmergencies = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "dispatch_pending_emergencies", Help: "Pending emergencies after the last cycle."},
	)
	AvailableResources = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "dispatch_available_resources", Help: "Available resources after the last cycle."},
	)
	Unsatisfiable = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "dispatch_unsatisfiable_emergencies", Help: "Emergencies the whole fleet cannot serve."},
	)

	// ProviderCalls counts routing provider calls by provider and outcome
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routing_provider_calls_total", Help: "Routing provider calls by provider and outcome."},
		[]string{"provider", "outcome"},
	)
	// ProviderLatency tracks provider round trips in milliseconds
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "routing_provider_latency_ms", Help: "Routing provider latency in ms.", Buckets: []float64{5, 20, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"provider"},
	)
	// RouteCache counts cache lookups by result (hit, miss)
	RouteCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routing_cache_lookups_total", Help: "Route cache lookups by result."},
		[]string{"result"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(Cycles, CycleDuration, Assignments)
		Registry.MustRegister(PendingEmergencies, AvailableResources, Unsatisfiable)
		Registry.MustRegister(ProviderCalls, ProviderLatency, RouteCache)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
