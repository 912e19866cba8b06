package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"driverflow/internal/model"
)

func seedOrder(t *testing.T, m *Memory) model.Order {
	t.Helper()
	_, created, _, err := m.CreateOrders(context.Background(), "t1", []model.OrderIn{{
		ExternalRef: "ext-1",
		Vendor:      &model.GeoPoint{Lat: 40.7128, Lng: -74.0060},
		Customer:    &model.GeoPoint{Lat: 40.7306, Lng: -73.9352},
	}})
	if err != nil || created != 1 {
		t.Fatalf("seed: created=%d err=%v", created, err)
	}
	orders, _, err := m.ListOrders(context.Background(), "t1", "", "", "", 10)
	if err != nil || len(orders) != 1 {
		t.Fatalf("list: %v", err)
	}
	return orders[0]
}

func TestCreateOrdersDedupByExternalRef(t *testing.T) {
	m := NewMemory()
	seedOrder(t, m)
	_, created, skipped, err := m.CreateOrders(context.Background(), "t1", []model.OrderIn{{ExternalRef: "ext-1"}})
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 || skipped != 1 {
		t.Fatalf("created=%d skipped=%d, want 0/1", created, skipped)
	}
}

func TestApplyTransitionOptimisticConflict(t *testing.T) {
	m := NewMemory()
	o := seedOrder(t, m)
	ctx := context.Background()

	got, err := m.ApplyTransition(ctx, "t1", o.ID, model.StatusAssigned, o.Version, model.StatusOnRouteToVendor, time.Now())
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if got.Status != model.StatusOnRouteToVendor || got.Version != o.Version+1 {
		t.Fatalf("got status=%s version=%d", got.Status, got.Version)
	}

	// same snapshot again: the order has moved, so the apply must conflict
	_, err = m.ApplyTransition(ctx, "t1", o.ID, model.StatusAssigned, o.Version, model.StatusOnRouteToVendor, time.Now())
	if err != ErrConflict {
		t.Fatalf("want ErrConflict, got %v", err)
	}

	events, err := m.ListTransitions(ctx, "t1", o.ID)
	if err != nil || len(events) != 1 {
		t.Fatalf("events=%d err=%v", len(events), err)
	}
	if events[0].FromStatus != model.StatusAssigned || events[0].ToStatus != model.StatusOnRouteToVendor {
		t.Fatalf("unexpected event %+v", events[0])
	}
}

func TestTenantIsolation(t *testing.T) {
	m := NewMemory()
	o := seedOrder(t, m)
	if _, err := m.GetOrder(context.Background(), "t2", o.ID); err != ErrNotFound {
		t.Fatalf("cross-tenant read: want ErrNotFound, got %v", err)
	}
}

func TestListActiveOrdersForDriver(t *testing.T) {
	m := NewMemory()
	o := seedOrder(t, m)
	ctx := context.Background()
	if _, err := m.AssignOrder(ctx, "t1", o.ID, "d1"); err != nil {
		t.Fatal(err)
	}
	active, err := m.ListActiveOrdersForDriver(ctx, "t1", "d1")
	if err != nil || len(active) != 1 {
		t.Fatalf("active=%d err=%v", len(active), err)
	}

	// drive it to a terminal state and it drops off the active list
	cur, _ := m.GetOrder(ctx, "t1", o.ID)
	if _, err := m.ApplyTransition(ctx, "t1", o.ID, cur.Status, cur.Version, model.StatusCancelled, time.Now()); err != nil {
		t.Fatal(err)
	}
	active, _ = m.ListActiveOrdersForDriver(ctx, "t1", "d1")
	if len(active) != 0 {
		t.Fatalf("terminal order still active: %d", len(active))
	}
}

func TestBatchVersionBump(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	b, err := m.CreateBatch(ctx, model.Batch{TenantID: "t1", DriverID: "d1", Waypoints: []model.Waypoint{}})
	if err != nil {
		t.Fatal(err)
	}
	if b.Version != 1 {
		t.Fatalf("new batch version=%d", b.Version)
	}
	b.Current = 1
	b2, err := m.UpdateBatch(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	if b2.Version != 2 || b2.Current != 1 {
		t.Fatalf("updated batch version=%d current=%d", b2.Version, b2.Current)
	}

	// Re-applying the stale version-1 snapshot must conflict, not double the
	// cursor advance.
	b.Current = 2
	if _, err := m.UpdateBatch(ctx, b); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale batch update: want ErrConflict, got %v", err)
	}
	cur, err := m.GetBatch(ctx, "t1", b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cur.Current != 1 || cur.Version != 2 {
		t.Fatalf("conflicting update must not apply: %+v", cur)
	}
}

func TestWebhookQueueLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	id, err := m.EnqueueWebhook(ctx, "t1", "sub1", "order.transitioned", "http://example.com/hook", "s3cr3t", []byte(`{"id":"evt_1"}`))
	if err != nil {
		t.Fatal(err)
	}

	due, err := m.FetchDueWebhookDeliveries(ctx, 10)
	if err != nil || len(due) != 1 {
		t.Fatalf("due=%d err=%v", len(due), err)
	}
	if due[0].ID != id || due[0].EventType != "order.transitioned" {
		t.Fatalf("unexpected delivery %+v", due[0])
	}

	// failed attempt schedules a retry in the future
	next := time.Now().Add(time.Hour)
	if err := m.MarkWebhookDelivery(ctx, id, false, &next, "boom", 500, 12); err != nil {
		t.Fatal(err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("retry scheduled in future but still due: %d", len(due))
	}

	// manual retry makes it due again, then success finishes it
	if err := m.RetryWebhookDelivery(ctx, "t1", id); err != nil {
		t.Fatal(err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 {
		t.Fatalf("retried delivery not due: %d", len(due))
	}
	if err := m.MarkWebhookDelivery(ctx, id, true, nil, "", 200, 8); err != nil {
		t.Fatal(err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("delivered webhook still due: %d", len(due))
	}

	list, _, err := m.ListWebhookDeliveries(ctx, "t1", "delivered", "", 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("delivered list=%d err=%v", len(list), err)
	}
}

func TestSubscriptionEventMatching(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, err := m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://example.com/a", Events: []string{"order.transitioned"}, Secret: "x"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://example.com/b", Events: []string{"batch.advanced"}, Secret: "y"})
	if err != nil {
		t.Fatal(err)
	}
	subs, err := m.GetSubscriptionsForEvent(ctx, "t1", "order.transitioned")
	if err != nil || len(subs) != 1 {
		t.Fatalf("subs=%d err=%v", len(subs), err)
	}
	if subs[0].URL != "http://example.com/a" {
		t.Fatalf("wrong subscription matched: %s", subs[0].URL)
	}
}
