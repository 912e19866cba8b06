package workflow

import (
	"strings"
	"testing"
	"time"

	"driverflow/internal/model"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testOrder(status model.OrderStatus) model.Order {
	return model.Order{
		ID:        "ord_1",
		TenantID:  "t_test",
		Status:    status,
		Version:   1,
		Vendor:    &model.GeoPoint{Lat: 40.7128, Lng: -74.0060},
		Customer:  &model.GeoPoint{Lat: 40.7300, Lng: -73.9950},
		CreatedAt: testNow.Add(-time.Hour),
	}
}

func newTestEngine() *Engine {
	return NewEngine(DefaultPolicy())
}

func TestEvaluateIllegalTransition(t *testing.T) {
	res := newTestEngine().EvaluateTransition(testOrder(model.StatusAssigned), model.StatusDelivered, nil, nil, testNow)
	if res.Accepted {
		t.Fatal("skipping stages must be rejected")
	}
	if len(res.Reasons) != 1 {
		t.Fatalf("state machine rejection carries exactly one reason, got %v", res.Reasons)
	}
}

func TestEvaluateEscapeHatch(t *testing.T) {
	e := newTestEngine()
	for _, target := range []model.OrderStatus{model.StatusCancelled, model.StatusFailed} {
		res := e.EvaluateTransition(testOrder(model.StatusOnRouteToCustomer), target, nil, nil, testNow)
		if !res.Accepted {
			t.Fatalf("escape to %s should not require evidence, got %v", target, res.Reasons)
		}
		if res.NewStatus != target || !res.EffectiveAt.Equal(testNow) {
			t.Fatalf("accepted result should carry new status and caller now, got %+v", res)
		}
	}
}

func TestEvaluateOnRouteNeedsUsableLocation(t *testing.T) {
	e := newTestEngine()
	o := testOrder(model.StatusAssigned)
	o.Vendor = nil
	res := e.EvaluateTransition(o, model.StatusOnRouteToVendor, nil, nil, testNow)
	if res.Accepted || !strings.Contains(res.Reasons[0], "vendor location") {
		t.Fatalf("missing vendor location must reject, got %+v", res)
	}

	o = testOrder(model.StatusPickedUp)
	o.Customer = &model.GeoPoint{Lat: 0, Lng: 0}
	res = e.EvaluateTransition(o, model.StatusOnRouteToCustomer, nil, nil, testNow)
	if res.Accepted || !strings.Contains(res.Reasons[0], "customer location") {
		t.Fatalf("(0,0) customer location must reject, got %+v", res)
	}
}

func TestEvaluateArrivalProximity(t *testing.T) {
	e := newTestEngine()
	o := testOrder(model.StatusOnRouteToVendor)

	near := &model.GeoPoint{Lat: 40.7129, Lng: -74.0060}
	if res := e.EvaluateTransition(o, model.StatusArrivedAtVendor, nil, near, testNow); !res.Accepted {
		t.Fatalf("in-radius arrival should be accepted, got %v", res.Reasons)
	}

	far := &model.GeoPoint{Lat: 40.7528, Lng: -74.0060}
	res := e.EvaluateTransition(o, model.StatusArrivedAtVendor, nil, far, testNow)
	if res.Accepted || !strings.Contains(res.Reasons[0], "150m") {
		t.Fatalf("out-of-radius arrival must reject with the limit in the reason, got %+v", res)
	}

	res = e.EvaluateTransition(o, model.StatusArrivedAtVendor, nil, nil, testNow)
	if res.Accepted || !strings.Contains(res.Reasons[0], "driver location") {
		t.Fatalf("missing driver location must reject, got %+v", res)
	}
}

func TestEvaluatePickupRequiresConfirmation(t *testing.T) {
	e := newTestEngine()
	o := testOrder(model.StatusArrivedAtVendor)

	res := e.EvaluateTransition(o, model.StatusPickedUp, nil, nil, testNow)
	if res.Accepted || !strings.Contains(res.Reasons[0], "confirmation data is required") {
		t.Fatalf("missing evidence must reject, got %+v", res)
	}

	// Wrong evidence kind is the same as missing.
	res = e.EvaluateTransition(o, model.StatusPickedUp, model.DeliveryConfirmation{}, nil, testNow)
	if res.Accepted || !strings.Contains(res.Reasons[0], "Pickup confirmation data is required") {
		t.Fatalf("wrong evidence kind must reject, got %+v", res)
	}

	pc := model.PickupConfirmation{
		OrderID: o.ID,
		Checklist: map[string]bool{
			"Order number matches":         true,
			"All items are present":        true,
			"Items are properly packaged":  true,
			"Extra napkins included":       true,
			"Drinks separated from hot":    true,
		},
		Timestamp: testNow,
	}
	if res := e.EvaluateTransition(o, model.StatusPickedUp, pc, nil, testNow); !res.Accepted {
		t.Fatalf("complete checklist should be accepted, got %v", res.Reasons)
	}
}

// End-to-end scenario: all critical items true but ratio 3/4 = 75% < 80%.
func TestEvaluatePickupRatioShortfall(t *testing.T) {
	e := newTestEngine()
	o := testOrder(model.StatusArrivedAtVendor)
	pc := model.PickupConfirmation{
		OrderID: o.ID,
		Checklist: map[string]bool{
			"Order number matches":        true,
			"All items are present":       true,
			"Items are properly packaged": true,
			"Extra check":                 false,
		},
		Timestamp: testNow,
	}
	res := e.EvaluateTransition(o, model.StatusPickedUp, pc, nil, testNow)
	if res.Accepted {
		t.Fatal("75% completion must be rejected")
	}
	if len(res.Reasons) != 1 || !strings.Contains(res.Reasons[0], "75%") {
		t.Fatalf("want exactly the ratio-shortfall reason, got %v", res.Reasons)
	}
}

func TestEvaluateDeliveredAggregation(t *testing.T) {
	e := newTestEngine()
	o := testOrder(model.StatusArrivedAtCustomer)

	res := e.EvaluateTransition(o, model.StatusDelivered, nil, nil, testNow)
	if res.Accepted || !strings.Contains(res.Reasons[0], "confirmation data is required") {
		t.Fatalf("missing delivery evidence must reject, got %+v", res)
	}

	// Missing only the photo: one photo reason, no GPS reason.
	acc := 50.0
	dc := model.DeliveryConfirmation{
		OrderID:   o.ID,
		Location:  &model.GeoPoint{Lat: 40.7300, Lng: -73.9950},
		AccuracyM: &acc,
		Timestamp: testNow,
	}
	res = e.EvaluateTransition(o, model.StatusDelivered, dc, nil, testNow)
	if res.Accepted || len(res.Reasons) != 1 {
		t.Fatalf("want exactly one reason, got %+v", res)
	}
	if !strings.Contains(res.Reasons[0], "photo") || strings.Contains(res.Reasons[0], "GPS") {
		t.Fatalf("want a photo-specific reason only, got %q", res.Reasons[0])
	}

	dc.PhotoURL = "https://cdn.example.com/proof/p1.jpg"
	dc.RecipientName = "Jane Doe"
	res = e.EvaluateTransition(o, model.StatusDelivered, dc, nil, testNow)
	if !res.Accepted || len(res.Reasons) != 0 {
		t.Fatalf("valid delivery evidence should be accepted, got %+v", res)
	}
	if res.NewStatus != model.StatusDelivered {
		t.Fatalf("accepted result carries the new status, got %s", res.NewStatus)
	}
}

func TestEvaluateTimingChecks(t *testing.T) {
	p := DefaultPolicy()
	p.RequireTimingChecks = true
	e := NewEngine(p)

	o := testOrder(model.StatusAssigned)
	o.CreatedAt = testNow.Add(-25 * time.Hour)
	res := e.EvaluateTransition(o, model.StatusOnRouteToVendor, nil, nil, testNow)
	if res.Accepted || !strings.Contains(res.Reasons[0], "24 hours") {
		t.Fatalf("stale order must reject when timing checks are on, got %+v", res)
	}

	// Timing checks off: same order passes.
	res = newTestEngine().EvaluateTransition(o, model.StatusOnRouteToVendor, nil, nil, testNow)
	if !res.Accepted {
		t.Fatalf("timing checks off should accept, got %v", res.Reasons)
	}
}

func TestEvaluateNeverMutatesOrder(t *testing.T) {
	e := newTestEngine()
	o := testOrder(model.StatusArrivedAtCustomer)
	before := o
	_ = e.EvaluateTransition(o, model.StatusDelivered, nil, nil, testNow)
	if o != before {
		t.Fatal("EvaluateTransition must not mutate the order snapshot")
	}
}
