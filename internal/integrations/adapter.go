package integrations

import "driverflow/internal/model"

// SourceAdapter defines the minimal interface for upstream order sources
// (marketplaces, vendor POS feeds) pushing work into the workflow.
type SourceAdapter interface {
    Name() string
    Authenticate(cfg map[string]any) (AuthState, error)
    FetchOrders(since string, cursor string) (OrderBatch, error)
    AckOrders(ids []string) error
    // MapStatus translates an upstream status code into the workflow status
    // it corresponds to, or "" when no transition should be made.
    MapStatus(ext ExternalStatus) model.OrderStatus
    Webhooks() WebhookInfo
}

type AuthState struct {
    Method string
    Token  string
}

type OrderBatch struct {
    Orders []model.OrderIn
    Cursor string
}

type ExternalStatus struct {
    Code string
}

type WebhookInfo struct {
    Events []string
    Verify func(sig string, body []byte) bool
}
