package api

import (
	"sync"
)

// LatestLocation holds the latest known location for a driver on an order.
type LatestLocation struct {
	Tenant   string  `json:"tenantId"`
	OrderID  string  `json:"orderId"`
	DriverID string  `json:"driverId"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	AccuracyM float64 `json:"accuracyM,omitempty"`
	TS       string  `json:"ts"`
}

// LocationCache stores latest driver locations per tenant/order/driver.
type LocationCache struct {
	mu sync.Mutex
	// key: tenant|orderId|driverId
	m map[string]LatestLocation
}

// NewLocationCache constructs a LocationCache.
func NewLocationCache() *LocationCache { return &LocationCache{m: map[string]LatestLocation{}} }

func (c *LocationCache) key(tenant, orderID, driverID string) string {
	return tenant + "|" + orderID + "|" + driverID
}

// Upsert stores or updates the latest location for a driver.
func (c *LocationCache) Upsert(tenant, orderID, driverID string, lat, lng, accuracyM float64, ts string) {
	if tenant == "" || orderID == "" || driverID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.key(tenant, orderID, driverID)
	c.m[k] = LatestLocation{Tenant: tenant, OrderID: orderID, DriverID: driverID, Lat: lat, Lng: lng, AccuracyM: accuracyM, TS: ts}
}

// Get returns the latest location for a driver on an order.
func (c *LocationCache) Get(tenant, orderID, driverID string) (LatestLocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[c.key(tenant, orderID, driverID)]
	return v, ok
}

// ListByOrder returns the latest locations for drivers on an order.
func (c *LocationCache) ListByOrder(tenant, orderID string) []LatestLocation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []LatestLocation{}
	prefix := tenant + "|" + orderID + "|"
	for k, v := range c.m {
		// simple prefix match
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, v)
		}
	}
	return out
}
