package store

import (
	"context"
	"errors"
	"time"

	"seekroute/internal/model"
)

// Store is the persistence interface behind the dispatch service: published
// cycle history, emergency outcomes, webhook subscriptions and deliveries.
type Store interface {
	// Cycle history
	SaveCycle(ctx context.Context, rec CycleRecord) error
	GetCycle(ctx context.Context, id string) (CycleRecord, error)
	ListCycles(ctx context.Context, cursor string, limit int) ([]CycleRecord, string, error)

	// Emergency outcomes
	RecordOutcome(ctx context.Context, o Outcome) error
	ListOutcomes(ctx context.Context, state string, limit int) ([]Outcome, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]map[string]any, string, error)
	RetryWebhookDelivery(ctx context.Context, id string) error

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

// CycleRecord summarises one published scheduling cycle. Payload holds the
// JSON body sent to clients.
type CycleRecord struct {
	ID            string    `json:"id"`
	Seq           uint64    `json:"seq"`
	ClockMs       int64     `json:"clockMs"`
	StartedAt     time.Time `json:"startedAt"`
	DurationMs    int64     `json:"durationMs"`
	Assigned      int       `json:"assigned"`
	Pending       int       `json:"pending"`
	Unsatisfiable int       `json:"unsatisfiable"`
	Revoked       int       `json:"revoked"`
	Payload       []byte    `json:"-"`
}

// Outcome is the terminal state reached by an emergency.
type Outcome struct {
	EmergencyID model.ID  `json:"emergencyId"`
	State       string    `json:"state"` // resolved, cancelled, timed_out
	ClockMs     int64     `json:"clockMs"`
	CycleID     string    `json:"cycleId"`
	RecordedAt  time.Time `json:"recordedAt"`
}
