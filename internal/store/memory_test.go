package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"seekroute/internal/model"
)

func TestMemoryCyclesNewestFirstWithCursor(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		if err := m.SaveCycle(ctx, CycleRecord{ID: formatSeq(uint64(i)), Seq: uint64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	page, next, err := m.ListCycles(ctx, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].Seq != 5 || page[1].Seq != 4 || next != "4" {
		t.Fatalf("first page: %+v next=%q", page, next)
	}
	page, next, _ = m.ListCycles(ctx, next, 10)
	if len(page) != 3 || page[0].Seq != 3 || next != "" {
		t.Fatalf("second page: %+v next=%q", page, next)
	}
	if _, err := m.GetCycle(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetCycle: %v", err)
	}
}

func TestMemorySubscriptionsMatchEvents(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a, _ := m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "http://a", Events: []string{"emergency.resolved"}})
	_, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "http://b", Events: []string{"*"}})
	subs, _ := m.GetSubscriptionsForEvent(ctx, "emergency.resolved")
	if len(subs) != 2 {
		t.Fatalf("resolved subscribers: %d", len(subs))
	}
	subs, _ = m.GetSubscriptionsForEvent(ctx, "dispatch.cycle")
	if len(subs) != 1 || subs[0].URL != "http://b" {
		t.Fatalf("wildcard: %+v", subs)
	}
	if err := m.DeleteSubscription(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteSubscription(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestMemoryDeliveryLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	id, _ := m.EnqueueWebhook(ctx, "sub", "emergency.resolved", "http://x", "s", []byte(`{}`))
	due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("due: %+v", due)
	}
	later := time.Now().Add(time.Hour)
	_ = m.MarkWebhookDelivery(ctx, id, false, &later, "boom", 500, 3)
	if due, _ = m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 0 {
		t.Fatal("retry scheduled in the future must not be due")
	}
	_ = m.RetryWebhookDelivery(ctx, id)
	_ = m.MarkWebhookDelivery(ctx, id, true, nil, "", 204, 1)
	items, _, _ := m.ListWebhookDeliveries(ctx, "delivered", "", 10)
	if len(items) != 1 || items[0]["attempts"] != 2 {
		t.Fatalf("delivered: %+v", items)
	}
}
