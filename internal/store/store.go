package store

import (
	"context"
	"errors"
	"time"

	"driverflow/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Orders
	CreateOrders(ctx context.Context, tenantID string, orders []model.OrderIn) (importID string, created, skipped int, err error)
	GetOrder(ctx context.Context, tenantID, orderID string) (model.Order, error)
	ListOrders(ctx context.Context, tenantID, status, driverID, cursor string, limit int) ([]model.Order, string, error)
	AssignOrder(ctx context.Context, tenantID, orderID, driverID string) (model.Order, error)
	ListActiveOrdersForDriver(ctx context.Context, tenantID, driverID string) ([]model.Order, error)

	// ApplyTransition persists an accepted transition with optimistic
	// concurrency: the order must still be at fromStatus/fromVersion or
	// ErrConflict is returned and nothing changes. A transition event row is
	// appended on success.
	ApplyTransition(ctx context.Context, tenantID, orderID string, fromStatus model.OrderStatus, fromVersion int, to model.OrderStatus, effectiveAt time.Time) (model.Order, error)
	ListTransitions(ctx context.Context, tenantID, orderID string) ([]model.TransitionEvent, error)

	// CreateProof stores the evidence payload attached to an accepted
	// transition for audit.
	CreateProof(ctx context.Context, tenantID, orderID string, evidence model.Evidence) (proofID string, err error)

	// Batches
	CreateBatch(ctx context.Context, b model.Batch) (model.Batch, error)
	GetBatch(ctx context.Context, tenantID, batchID string) (model.Batch, error)
	UpdateBatch(ctx context.Context, b model.Batch) (model.Batch, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
	RetryWebhookDelivery(ctx context.Context, tenantID, id string) error
}

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the order moved between snapshot and apply; the
	// caller refetches and resubmits.
	ErrConflict = errors.New("order state conflict")
)
