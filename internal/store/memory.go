package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"driverflow/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu     sync.Mutex
	orders map[string]model.Order          // id -> order
	byTen  map[string][]string             // tenant -> order ids
	trans  map[string][]model.TransitionEvent // orderId -> history
	proofs map[string][]byte               // proofId -> evidence JSON
	batches map[string]model.Batch         // id -> batch
	subs   map[string][]model.Subscription // tenant -> subscriptions
	// Webhook queue state
	deliveries         map[string]*memDelivery // id -> delivery state
	deliveriesByTenant map[string][]string     // tenant -> delivery ids
}

func NewMemory() *Memory {
	return &Memory{
		orders:             map[string]model.Order{},
		byTen:              map[string][]string{},
		trans:              map[string][]model.TransitionEvent{},
		proofs:             map[string][]byte{},
		batches:            map[string]model.Batch{},
		subs:               map[string][]model.Subscription{},
		deliveries:         map[string]*memDelivery{},
		deliveriesByTenant: map[string][]string{},
	}
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func (m *Memory) CreateOrders(ctx context.Context, tenantID string, orders []model.OrderIn) (string, int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created, skipped := 0, 0
	for _, in := range orders {
		if in.ExternalRef != "" && m.hasExternalRef(tenantID, in.ExternalRef) {
			skipped++
			continue
		}
		id := uuid.New().String()
		m.orders[id] = model.Order{
			ID:                id,
			TenantID:          tenantID,
			ExternalRef:       in.ExternalRef,
			Status:            model.StatusAssigned,
			Version:           1,
			Vendor:            in.Vendor,
			Customer:          in.Customer,
			VendorContact:     in.VendorContact,
			CustomerContact:   in.CustomerContact,
			CreatedAt:         time.Now().UTC(),
			RequestedDelivery: in.RequestedDelivery,
		}
		m.byTen[tenantID] = append(m.byTen[tenantID], id)
		created++
	}
	return fmt.Sprintf("imp_%d", time.Now().UnixNano()), created, skipped, nil
}

func (m *Memory) hasExternalRef(tenantID, ref string) bool {
	for _, id := range m.byTen[tenantID] {
		if m.orders[id].ExternalRef == ref {
			return true
		}
	}
	return false
}

func (m *Memory) GetOrder(ctx context.Context, tenantID, orderID string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return model.Order{}, ErrNotFound
	}
	return o, nil
}

func (m *Memory) ListOrders(ctx context.Context, tenantID, status, driverID, cursor string, limit int) ([]model.Order, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.byTen[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	out := []model.Order{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		o := m.orders[ids[i]]
		if status != "" && string(o.Status) != status {
			continue
		}
		if driverID != "" && o.DriverID != driverID {
			continue
		}
		out = append(out, o)
		next = ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) AssignOrder(ctx context.Context, tenantID, orderID, driverID string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return model.Order{}, ErrNotFound
	}
	o.DriverID = driverID
	o.Version++
	m.orders[orderID] = o
	return o, nil
}

func (m *Memory) ListActiveOrdersForDriver(ctx context.Context, tenantID, driverID string) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Order{}
	for _, id := range m.byTen[tenantID] {
		o := m.orders[id]
		if o.DriverID == driverID && !o.Status.IsTerminal() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *Memory) ApplyTransition(ctx context.Context, tenantID, orderID string, fromStatus model.OrderStatus, fromVersion int, to model.OrderStatus, effectiveAt time.Time) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return model.Order{}, ErrNotFound
	}
	if o.Status != fromStatus || o.Version != fromVersion {
		return model.Order{}, ErrConflict
	}
	o.Status = to
	o.Version++
	m.orders[orderID] = o
	m.trans[orderID] = append(m.trans[orderID], model.TransitionEvent{
		ID:          uuid.New().String(),
		OrderID:     orderID,
		TenantID:    tenantID,
		FromStatus:  fromStatus,
		ToStatus:    to,
		EffectiveAt: effectiveAt,
	})
	return o, nil
}

func (m *Memory) ListTransitions(ctx context.Context, tenantID, orderID string) ([]model.TransitionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return append([]model.TransitionEvent(nil), m.trans[orderID]...), nil
}

func (m *Memory) CreateProof(ctx context.Context, tenantID, orderID string, evidence model.Evidence) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	b, err := json.Marshal(evidence)
	if err != nil {
		return "", err
	}
	m.proofs[id] = b
	return id, nil
}

func (m *Memory) CreateBatch(ctx context.Context, b model.Batch) (model.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.Version = 1
	b.CreatedAt = time.Now().UTC()
	m.batches[b.ID] = b
	return b, nil
}

func (m *Memory) GetBatch(ctx context.Context, tenantID, batchID string) (model.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[batchID]
	if !ok || b.TenantID != tenantID {
		return model.Batch{}, ErrNotFound
	}
	return b, nil
}

func (m *Memory) UpdateBatch(ctx context.Context, b model.Batch) (model.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.batches[b.ID]
	if !ok || cur.TenantID != b.TenantID {
		return model.Batch{}, ErrNotFound
	}
	if cur.Version != b.Version {
		return model.Batch{}, ErrConflict
	}
	b.Version = cur.Version + 1
	b.CreatedAt = cur.CreatedAt
	m.batches[b.ID] = b
	return b, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[tenantID] {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[tenantID]
	start := 0
	if cursor != "" {
		for i := range list {
			if list[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	items := append([]model.Subscription(nil), list[start:end]...)
	next := ""
	if end < len(list) {
		next = list[end-1].ID
	}
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	arr := m.subs[tenantID]
	out := make([]model.Subscription, 0, len(arr))
	for _, s := range arr {
		if s.ID != id {
			out = append(out, s)
		}
	}
	m.subs[tenantID] = out
	return nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending", Attempts: 0}, NextAttemptAt: time.Now()}
	m.deliveries[id] = d
	m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.iterDeliveryIDs() {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return nil
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
	} else {
		d.Status = "retry"
		d.LastError = lastError
		if nextAttemptAt != nil {
			d.NextAttemptAt = *nextAttemptAt
		} else {
			d.NextAttemptAt = time.Now().Add(1 * time.Minute)
		}
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d != nil {
		d.Status = "failed"
		d.LastError = lastError
		d.ResponseCode = responseCode
		d.LatencyMs = latencyMs
	}
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []map[string]any{}
	for _, id := range m.deliveriesByTenant[tenantID] {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if status == "" || d.Status == status {
			item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
			if !d.NextAttemptAt.IsZero() {
				item["nextAttemptAt"] = d.NextAttemptAt
			}
			if d.LastError != "" {
				item["lastError"] = d.LastError
			}
			out = append(out, item)
		}
	}
	return out, "", nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d != nil && d.TenantID == tenantID {
		d.Status = "pending"
		d.NextAttemptAt = time.Now()
	}
	return nil
}

// helper: iterate delivery IDs by tenant order
func (m *Memory) iterDeliveryIDs() []string {
	ids := []string{}
	for _, lst := range m.deliveriesByTenant {
		ids = append(ids, lst...)
	}
	return ids
}
