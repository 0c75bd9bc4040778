package api

import (
	"context"
	"log"
	"strings"
	"time"

	"seekroute/internal/auth"
	"seekroute/internal/config"
	"seekroute/internal/registry"
	"seekroute/internal/scheduler"
	"seekroute/internal/store"
	"seekroute/internal/webhooks"
)

type Server struct {
	Cfg    *config.Config
	Store  store.Store
	Pub    *webhooks.Publisher
	Auth   *auth.Verifier
	Broker EventBroker
	Sched  *scheduler.Scheduler

	limiter *clientLimiter
}

// NewServer wires persistence, fan-out and auth around a scheduler and
// registers the server's sinks on it. If DatabaseURL is unset, uses the
// in-memory store.
func NewServer(cfg *config.Config, sched *scheduler.Scheduler) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := sp.MigrateDir("db/migrations"); err != nil {
				log.Printf("[api] migrations: %v", err)
			}
		}
		s = sp
	}
	var broker EventBroker = NewBroker()
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = rb
		} else {
			log.Printf("[api] redis broker unavailable, using in-memory: %v", err)
		}
	}
	srv := &Server{
		Cfg:     cfg,
		Store:   s,
		Pub:     webhooks.NewPublisher(s),
		Auth:    auth.NewVerifier(cfg.Auth.Mode, cfg.Auth.Secret),
		Broker:  broker,
		Sched:   sched,
		limiter: newClientLimiter(cfg.RateRPS, cfg.RateBurst),
	}
	sched.AddSink(scheduler.SinkFunc(srv.recordCycle))
	sched.AddSink(scheduler.SinkFunc(srv.broadcastCycle))
	sched.AddSink(srv.Pub)
	return srv, nil
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Cfg.Webhooks.MaxAttempts)
}

// recordCycle persists the cycle summary and the outcomes of emergencies
// retired during it.
func (s *Server) recordCycle(ctx context.Context, c scheduler.Cycle) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	p := c.Payload
	body, err := marshalPayload(p)
	if err != nil {
		log.Printf("[api] encode cycle %d: %v", p.Cycle, err)
		return
	}
	rec := store.CycleRecord{
		ID:            p.CycleID,
		Seq:           p.Cycle,
		ClockMs:       p.ClockMs,
		StartedAt:     c.StartedAt.UTC(),
		DurationMs:    c.Duration.Milliseconds(),
		Assigned:      len(p.Assignments),
		Pending:       len(p.Pending),
		Unsatisfiable: len(p.Unsatisfiable),
		Revoked:       len(p.Revoked),
		Payload:       body,
	}
	if err := s.Store.SaveCycle(ctx, rec); err != nil {
		log.Printf("[api] save cycle %d: %v", p.Cycle, err)
	}
	for _, ev := range c.Events {
		state := outcomeState(ev.Type)
		if state == "" {
			continue
		}
		o := store.Outcome{EmergencyID: ev.EmergencyID, State: state, ClockMs: ev.At.Milliseconds(), CycleID: p.CycleID, RecordedAt: time.Now().UTC()}
		if err := s.Store.RecordOutcome(ctx, o); err != nil {
			log.Printf("[api] record outcome %s: %v", ev.EmergencyID, err)
		}
	}
}

func outcomeState(t registry.EventType) string {
	switch t {
	case registry.EmergencyResolved:
		return "resolved"
	case registry.EmergencyCancelled:
		return "cancelled"
	case registry.EmergencyTimedOut:
		return "timed_out"
	}
	return ""
}

// broadcastCycle forwards the payload to stream subscribers.
func (s *Server) broadcastCycle(_ context.Context, c scheduler.Cycle) {
	s.Broker.Publish(dispatchTopic, SSEEvent{Type: "dispatch.cycle", Data: c.Payload})
	for _, ev := range c.Events {
		s.Broker.Publish(dispatchTopic, SSEEvent{Type: string(ev.Type), Data: ev})
	}
}
