package batch

import (
	"testing"

	"driverflow/internal/model"
)

func activeOrder(id string, vendor, customer model.GeoPoint) model.Order {
	return model.Order{
		ID:       id,
		Status:   model.StatusAssigned,
		Vendor:   &vendor,
		Customer: &customer,
	}
}

func assertPickupBeforeDropoff(t *testing.T, s Sequence) {
	t.Helper()
	pickupIdx := map[string]int{}
	for i, wp := range s.Waypoints {
		if wp.Stage == model.StagePickup {
			pickupIdx[wp.OrderID] = i
		}
	}
	for i, wp := range s.Waypoints {
		if wp.Stage != model.StageDropoff {
			continue
		}
		if pi, ok := pickupIdx[wp.OrderID]; ok && pi > i {
			t.Fatalf("order %s: dropoff at %d before pickup at %d: %v", wp.OrderID, i, pi, s.Waypoints)
		}
	}
}

func testOrders() []model.Order {
	return []model.Order{
		activeOrder("o1", model.GeoPoint{Lat: 40.700, Lng: -74.000}, model.GeoPoint{Lat: 40.760, Lng: -73.980}),
		activeOrder("o2", model.GeoPoint{Lat: 40.705, Lng: -74.010}, model.GeoPoint{Lat: 40.710, Lng: -74.005}),
		activeOrder("o3", model.GeoPoint{Lat: 40.740, Lng: -73.990}, model.GeoPoint{Lat: 40.745, Lng: -73.985}),
	}
}

var start = model.GeoPoint{Lat: 40.7128, Lng: -74.0060}

func mustBuild(t *testing.T, orders []model.Order, from model.GeoPoint) Sequence {
	t.Helper()
	s, err := Build(orders, from)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func TestBuildRespectsPrecedence(t *testing.T) {
	s := mustBuild(t, testOrders(), start)
	if len(s.Waypoints) != 6 {
		t.Fatalf("want 6 waypoints, got %d", len(s.Waypoints))
	}
	if s.Current != 0 {
		t.Fatalf("fresh sequence cursor should be 0, got %d", s.Current)
	}
	assertPickupBeforeDropoff(t, s)
}

func TestBuildPickedUpOrderGetsOnlyDropoff(t *testing.T) {
	orders := testOrders()
	orders[0].Status = model.StatusOnRouteToCustomer
	s := mustBuild(t, orders, start)
	if len(s.Waypoints) != 5 {
		t.Fatalf("picked-up order contributes only a dropoff, want 5 waypoints, got %d", len(s.Waypoints))
	}
	for _, wp := range s.Waypoints {
		if wp.OrderID == "o1" && wp.Stage == model.StagePickup {
			t.Fatal("order past pickup must not get a pickup waypoint")
		}
	}
	assertPickupBeforeDropoff(t, s)
}

func TestBuildSkipsTerminalOrders(t *testing.T) {
	orders := testOrders()
	orders[2].Status = model.StatusCancelled
	s := mustBuild(t, orders, start)
	for _, wp := range s.Waypoints {
		if wp.OrderID == "o3" {
			t.Fatal("terminal order must not be sequenced")
		}
	}
}

func TestReoptimizePreservesPrecedenceAndVisited(t *testing.T) {
	s := mustBuild(t, testOrders(), start)
	s = s.Advance().Advance()
	visited := append([]model.Waypoint(nil), s.Waypoints[:2]...)

	r := s.Reoptimize()
	assertPickupBeforeDropoff(t, r)
	if r.Current != 2 {
		t.Fatalf("reoptimize must not move the cursor, got %d", r.Current)
	}
	for i, wp := range visited {
		if r.Waypoints[i] != wp {
			t.Fatalf("reoptimize must not reorder visited waypoints: %v vs %v", r.Waypoints[:2], visited)
		}
	}
}

func TestReoptimizeDoesNotWorsen(t *testing.T) {
	s := mustBuild(t, testOrders(), start)
	before := pathDistance(s.Waypoints)
	after := pathDistance(s.Reoptimize().Waypoints)
	if after > before+1e-6 {
		t.Fatalf("reoptimize worsened the route: %f -> %f", before, after)
	}
}

func TestAdvanceMonotonic(t *testing.T) {
	s := mustBuild(t, testOrders(), start)
	n := len(s.Waypoints)
	for i := 0; i < n; i++ {
		if s.Complete() {
			t.Fatalf("sequence complete too early at %d", i)
		}
		next := s.Advance()
		if next.Current != s.Current+1 {
			t.Fatalf("cursor must advance by one, got %d -> %d", s.Current, next.Current)
		}
		s = next
	}
	if !s.Complete() || s.Next() != nil {
		t.Fatal("sequence should be complete with no next waypoint")
	}
	// Advancing a completed sequence is a no-op.
	if s.Advance().Current != n {
		t.Fatal("advance past the end must not move the cursor")
	}
}

func TestInsertAndRemove(t *testing.T) {
	s := mustBuild(t, testOrders()[:2], start)
	s, err := s.Insert(activeOrder("o4", model.GeoPoint{Lat: 40.72, Lng: -74.0}, model.GeoPoint{Lat: 40.73, Lng: -74.0}))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if len(s.Waypoints) != 6 {
		t.Fatalf("insert should add pickup and dropoff, got %d waypoints", len(s.Waypoints))
	}
	assertPickupBeforeDropoff(t, s)

	s = s.Remove("o4")
	if len(s.Waypoints) != 4 {
		t.Fatalf("remove should drop both unvisited waypoints, got %d", len(s.Waypoints))
	}
	for _, wp := range s.Waypoints {
		if wp.OrderID == "o4" {
			t.Fatal("removed order still present")
		}
	}
}

func TestRemoveKeepsVisitedWaypoints(t *testing.T) {
	s := mustBuild(t, testOrders()[:1], start)
	s = s.Advance() // pickup visited
	s = s.Remove("o1")
	if len(s.Waypoints) != 1 || s.Waypoints[0].Stage != model.StagePickup {
		t.Fatalf("visited pickup must stay in the record, got %v", s.Waypoints)
	}
	if !s.Complete() {
		t.Fatal("only waypoint is visited; sequence should be complete")
	}
}

func TestBuildVendorlessPickupErrors(t *testing.T) {
	// An assigned order with no vendor location cannot be routed; that is bad
	// data from a feed, not a programming error, so Build must return an error
	// rather than panic.
	o := model.Order{ID: "o1", Status: model.StatusAssigned, Customer: &model.GeoPoint{Lat: 40.73, Lng: -73.93}}
	if _, err := Build([]model.Order{o}, start); err == nil {
		t.Fatal("vendorless assigned order should be a build error")
	}
	// Past pickup, the missing vendor no longer matters.
	o.Status = model.StatusOnRouteToCustomer
	s := mustBuild(t, []model.Order{o}, start)
	if len(s.Waypoints) != 1 || s.Waypoints[0].Stage != model.StageDropoff {
		t.Fatalf("want a single dropoff, got %v", s.Waypoints)
	}
}

func TestInsertVendorlessPickupErrors(t *testing.T) {
	s := mustBuild(t, testOrders()[:1], start)
	o := model.Order{ID: "o9", Status: model.StatusAssigned, Customer: &model.GeoPoint{Lat: 40.73, Lng: -73.93}}
	if _, err := s.Insert(o); err == nil {
		t.Fatal("inserting a vendorless assigned order should error")
	}
}

func TestInvariantBreachPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("dropoff-before-pickup must panic")
		}
	}()
	s := Sequence{Waypoints: []model.Waypoint{
		{OrderID: "o1", Stage: model.StageDropoff},
		{OrderID: "o1", Stage: model.StagePickup},
	}}
	s.mustBeValid()
}
