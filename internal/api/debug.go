package api

import (
	"net/http"
	"time"

	"seekroute/internal/buildinfo"
)

// DebugJSON reports build info and the effective configuration without
// secrets.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	if !s.getPrincipal(r).IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	c := s.Cfg
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":                 c.Port,
			"authMode":             c.Auth.Mode,
			"allowOrigins":         c.AllowOrigins,
			"rateRps":              c.RateRPS,
			"rateBurst":            c.RateBurst,
			"webhookMaxAttempts":   c.Webhooks.MaxAttempts,
			"hasDatabaseUrl":       c.DatabaseURL != "",
			"hasRedisUrl":          c.RedisURL != "",
			"clock":                c.Scheduler.Clock,
			"tickInterval":         c.Scheduler.TickInterval.String(),
			"maxRouteFailures":     c.Scheduler.MaxRouteFailures,
			"tieBreak":             c.Scheduler.TieBreak,
			"combination":          c.Scheduler.Combination,
			"routingProvider":      c.Routing.Provider,
			"routingTimeout":       c.Routing.Timeout.String(),
			"serviceDuration":      c.Registry.ServiceDuration.String(),
			"pendingTimeout":       c.Registry.PendingTimeout.String(),
			"routeCacheTtl":        c.Routing.CacheTTL.String(),
			"routeCacheDecimals":   c.Routing.CacheDecimals,
			"routingParallelism":   c.Routing.Parallelism,
			"hasMapboxToken":       c.Routing.MapboxToken != "",
			"schedulerPhase":       s.Sched.Phase().String(),
			"latestPublishedCycle": s.Sched.Latest().Cycle,
		},
	}
	writeJSON(w, http.StatusOK, info)
}
