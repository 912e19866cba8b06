package model

import "time"

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// OrderStatus is the closed set of driver workflow states.
type OrderStatus string

const (
	StatusAssigned          OrderStatus = "assigned"
	StatusOnRouteToVendor   OrderStatus = "on_route_to_vendor"
	StatusArrivedAtVendor   OrderStatus = "arrived_at_vendor"
	StatusPickedUp          OrderStatus = "picked_up"
	StatusOnRouteToCustomer OrderStatus = "on_route_to_customer"
	StatusArrivedAtCustomer OrderStatus = "arrived_at_customer"
	StatusDelivered         OrderStatus = "delivered"
	StatusCancelled         OrderStatus = "cancelled"
	StatusFailed            OrderStatus = "failed"
)

// IsTerminal reports whether no further transition is legal from s.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusFailed
}

// Contact carries display metadata for the parties on an order.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// OrderIn is the create payload for an order import.
type OrderIn struct {
	ExternalRef       string         `json:"externalRef,omitempty"`
	Vendor            *GeoPoint      `json:"vendor"`
	Customer          *GeoPoint      `json:"customer"`
	VendorContact     Contact        `json:"vendorContact,omitempty"`
	CustomerContact   Contact        `json:"customerContact,omitempty"`
	RequestedDelivery *time.Time     `json:"requestedDelivery,omitempty"`
	Attributes        map[string]any `json:"attributes,omitempty"`
}

// Order is a snapshot of a delivery as seen by the workflow engine.
// The engine never mutates it; accepted transitions are applied by the store.
type Order struct {
	ID                string      `json:"id"`
	TenantID          string      `json:"tenantId"`
	ExternalRef       string      `json:"externalRef,omitempty"`
	DriverID          string      `json:"driverId,omitempty"`
	Status            OrderStatus `json:"status"`
	Version           int         `json:"version"`
	Vendor            *GeoPoint   `json:"vendor,omitempty"`
	Customer          *GeoPoint   `json:"customer,omitempty"`
	VendorContact     Contact     `json:"vendorContact,omitempty"`
	CustomerContact   Contact     `json:"customerContact,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	RequestedDelivery *time.Time  `json:"requestedDelivery,omitempty"`
}

// Evidence is the proof payload attached to a transition request. It is a
// sealed union: only PickupConfirmation and DeliveryConfirmation implement it,
// so orchestrator dispatch is checked at compile time.
type Evidence interface {
	isEvidence()
}

// PickupConfirmation is the checklist evidence required to reach picked_up.
type PickupConfirmation struct {
	OrderID   string          `json:"orderId"`
	Checklist map[string]bool `json:"checklist"`
	Notes     string          `json:"notes,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func (PickupConfirmation) isEvidence() {}

// DeliveryConfirmation is the photo+GPS evidence required to reach delivered.
type DeliveryConfirmation struct {
	OrderID       string    `json:"orderId"`
	PhotoURL      string    `json:"photoUrl"`
	Location      *GeoPoint `json:"location"`
	AccuracyM     *float64  `json:"accuracyM,omitempty"`
	RecipientName string    `json:"recipientName,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (DeliveryConfirmation) isEvidence() {}

// TransitionRequest is the wire form submitted by a driver client.
// At most one of Pickup/Delivery is set.
type TransitionRequest struct {
	TargetStatus   OrderStatus           `json:"targetStatus"`
	DriverLocation *GeoPoint             `json:"driverLocation,omitempty"`
	Pickup         *PickupConfirmation   `json:"pickupConfirmation,omitempty"`
	Delivery       *DeliveryConfirmation `json:"deliveryConfirmation,omitempty"`
}

// TransitionResult is the engine's adjudication. Accepted results carry the
// new status and effective timestamp; rejected results carry every reason
// found, in the order the checks ran. Never both.
type TransitionResult struct {
	Accepted    bool        `json:"accepted"`
	NewStatus   OrderStatus `json:"newStatus,omitempty"`
	EffectiveAt time.Time   `json:"effectiveAt,omitempty"`
	Reasons     []string    `json:"reasons,omitempty"`
}

// TransitionEvent is one row of an order's transition history.
type TransitionEvent struct {
	ID          string      `json:"id"`
	OrderID     string      `json:"orderId"`
	TenantID    string      `json:"tenantId"`
	FromStatus  OrderStatus `json:"fromStatus"`
	ToStatus    OrderStatus `json:"toStatus"`
	EffectiveAt time.Time   `json:"effectiveAt"`
}

// WaypointStage distinguishes pickup stops from dropoff stops.
type WaypointStage string

const (
	StagePickup  WaypointStage = "pickup"
	StageDropoff WaypointStage = "dropoff"
)

// Waypoint is a single stop within a multi-order batch route.
type Waypoint struct {
	OrderID  string        `json:"orderId"`
	Stage    WaypointStage `json:"stage"`
	Location GeoPoint      `json:"location"`
}

// Batch is a persisted multi-order route with a cursor at the next
// unvisited waypoint.
type Batch struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenantId"`
	DriverID  string     `json:"driverId"`
	Waypoints []Waypoint `json:"waypoints"`
	Current   int        `json:"current"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"createdAt"`
}

// AdvanceResult reports the outcome of advancing a batch cursor.
type AdvanceResult struct {
	BatchID  string    `json:"batchId"`
	Visited  *Waypoint `json:"visited,omitempty"`
	Next     *Waypoint `json:"next,omitempty"`
	Current  int       `json:"current"`
	Complete bool      `json:"complete"`
	TS       string    `json:"ts"`
}

// SubscriptionRequest registers a webhook endpoint for event types.
type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}

// Subscription is a stored webhook registration.
type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}
