package webhooks

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"seekroute/internal/scheduler"
	"seekroute/internal/store"
)

// CycleEvent is the event type carrying every published cycle payload.
const CycleEvent = "dispatch.cycle"

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// Emit enqueues an event for every subscription to its type.
func (p *Publisher) Emit(ctx context.Context, eventType string, data any) {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, eventType)
	if err != nil || len(subs) == 0 {
		if err != nil {
			log.Printf("[webhooks] subscriptions for %s: %v", eventType, err)
		}
		return
	}
	payload := map[string]any{
		"id":   "evt_" + uuid.NewString(),
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	}
	body, _ := json.Marshal(payload)
	for _, s := range subs {
		if _, err := p.Store.EnqueueWebhook(ctx, s.ID, eventType, s.URL, s.Secret, body); err != nil {
			log.Printf("[webhooks] enqueue %s for %s: %v", eventType, s.URL, err)
		}
	}
}

// Publish fans a scheduling cycle out to subscribers: one event per registry
// event, plus the full payload under CycleEvent.
func (p *Publisher) Publish(ctx context.Context, c scheduler.Cycle) {
	for _, ev := range c.Events {
		p.Emit(ctx, string(ev.Type), map[string]any{
			"emergencyId": ev.EmergencyID,
			"resourceId":  ev.ResourceID,
			"clockMs":     ev.At.Milliseconds(),
			"cycleId":     c.Payload.CycleID,
		})
	}
	p.Emit(ctx, CycleEvent, c.Payload)
}
