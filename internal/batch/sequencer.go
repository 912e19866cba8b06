// Package batch sequences a driver's active orders into a pickup/dropoff
// waypoint route. The ordering heuristic is advisory; the pickup-before-dropoff
// invariant is not, and every exported mutation re-checks it.
package batch

import (
	"fmt"

	"driverflow/internal/geo"
	"driverflow/internal/model"
)

// Sequence is an ordered waypoint route with a cursor at the next unvisited
// waypoint. Waypoints before Current are visited; the cursor only moves
// forward.
type Sequence struct {
	Waypoints []model.Waypoint
	Current   int
}

// Build produces an initial sequence for the given orders using a greedy
// nearest-neighbor walk from start. Orders already past pickup contribute only
// a dropoff waypoint. An order that still needs its pickup but carries no
// vendor location cannot be routed and is reported as an error, not a panic;
// such orders arrive from external feeds and are expected data.
func Build(orders []model.Order, start model.GeoPoint) (Sequence, error) {
	pending := make([]model.Waypoint, 0, 2*len(orders))
	for _, o := range orders {
		if o.Status.IsTerminal() {
			continue
		}
		if needsPickup(o.Status) {
			if o.Vendor == nil {
				return Sequence{}, fmt.Errorf("order %s needs pickup but has no vendor location", o.ID)
			}
			pending = append(pending, model.Waypoint{OrderID: o.ID, Stage: model.StagePickup, Location: *o.Vendor})
		}
		if o.Customer != nil {
			pending = append(pending, model.Waypoint{OrderID: o.ID, Stage: model.StageDropoff, Location: *o.Customer})
		}
	}

	seq := Sequence{Waypoints: greedyOrder(pending, start, pickedSet(orders))}
	seq.mustBeValid()
	return seq, nil
}

// Reoptimize applies 2-opt improvement to the unvisited suffix, accepting only
// swaps that keep every pickup ahead of its own dropoff. Visited waypoints and
// the cursor are untouched.
func (s Sequence) Reoptimize() Sequence {
	out := s.clone()
	suffix := out.Waypoints[out.Current:]
	n := len(suffix)
	if n < 3 {
		return out
	}
	improved := true
	for improved {
		improved = false
		for i := 0; i < n-2; i++ {
			for k := i + 1; k < n-1; k++ {
				cand := twoOptSwap(suffix, i, k)
				// Dropoffs whose pickup is in the visited prefix have no
				// pickup inside cand and pass the check unconditionally.
				if !pickupBeforeDropoff(cand, nil) {
					continue
				}
				if pathDistance(cand)+1e-3 < pathDistance(suffix) {
					copy(suffix, cand)
					improved = true
				}
			}
		}
	}
	out.mustBeValid()
	return out
}

// Advance marks the current waypoint visited and moves the cursor to the next
// one. Advancing a completed sequence is a no-op.
func (s Sequence) Advance() Sequence {
	out := s.clone()
	if out.Current < len(out.Waypoints) {
		out.Current++
	}
	return out
}

// Complete reports whether every waypoint has been visited.
func (s Sequence) Complete() bool {
	return s.Current >= len(s.Waypoints)
}

// Next returns the current (next unvisited) waypoint, or nil when complete.
func (s Sequence) Next() *model.Waypoint {
	if s.Complete() {
		return nil
	}
	wp := s.Waypoints[s.Current]
	return &wp
}

// Insert adds an order's remaining waypoints to the unvisited suffix and
// reoptimizes. Like Build, an order needing a pickup with no vendor location
// is an error.
func (s Sequence) Insert(o model.Order) (Sequence, error) {
	out := s.clone()
	if needsPickup(o.Status) {
		if o.Vendor == nil {
			return Sequence{}, fmt.Errorf("order %s needs pickup but has no vendor location", o.ID)
		}
		out.Waypoints = append(out.Waypoints, model.Waypoint{OrderID: o.ID, Stage: model.StagePickup, Location: *o.Vendor})
	}
	if o.Customer != nil {
		out.Waypoints = append(out.Waypoints, model.Waypoint{OrderID: o.ID, Stage: model.StageDropoff, Location: *o.Customer})
	}
	out.mustBeValid()
	return out.Reoptimize(), nil
}

// Remove drops an order's unvisited waypoints from the sequence. Visited
// waypoints stay; they record where the driver has been.
func (s Sequence) Remove(orderID string) Sequence {
	out := s.clone()
	kept := out.Waypoints[:out.Current]
	for _, wp := range out.Waypoints[out.Current:] {
		if wp.OrderID != orderID {
			kept = append(kept, wp)
		}
	}
	out.Waypoints = kept
	out.mustBeValid()
	return out
}

// mustBeValid panics when a dropoff precedes its own pickup. That state is a
// programming error in the caller, never a runtime condition.
func (s Sequence) mustBeValid() {
	if s.Current < 0 || s.Current > len(s.Waypoints) {
		panic(fmt.Sprintf("batch: cursor %d out of range for %d waypoints", s.Current, len(s.Waypoints)))
	}
	if !pickupBeforeDropoff(s.Waypoints, nil) {
		panic("batch: dropoff sequenced before its pickup")
	}
}

func (s Sequence) clone() Sequence {
	return Sequence{Waypoints: append([]model.Waypoint(nil), s.Waypoints...), Current: s.Current}
}

// needsPickup reports whether an order at the given status still has a vendor
// stop ahead of it.
func needsPickup(status model.OrderStatus) bool {
	switch status {
	case model.StatusAssigned, model.StatusOnRouteToVendor, model.StatusArrivedAtVendor:
		return true
	}
	return false
}

// pickedSet returns the IDs of orders whose pickup already happened, so their
// dropoffs are immediately eligible.
func pickedSet(orders []model.Order) map[string]bool {
	m := map[string]bool{}
	for _, o := range orders {
		if !needsPickup(o.Status) && !o.Status.IsTerminal() {
			m[o.ID] = true
		}
	}
	return m
}

// greedyOrder walks nearest-neighbor from start, only considering a dropoff
// once its pickup has been placed (or already happened).
func greedyOrder(pending []model.Waypoint, start model.GeoPoint, picked map[string]bool) []model.Waypoint {
	out := make([]model.Waypoint, 0, len(pending))
	remaining := append([]model.Waypoint(nil), pending...)
	pos := start
	for len(remaining) > 0 {
		best := -1
		bestDist := 0.0
		for i, wp := range remaining {
			if wp.Stage == model.StageDropoff && !picked[wp.OrderID] {
				continue
			}
			d := geo.DistanceMeters(pos.Lat, pos.Lng, wp.Location.Lat, wp.Location.Lng)
			if best == -1 || d < bestDist {
				best = i
				bestDist = d
			}
		}
		if best == -1 {
			// Remaining waypoints are all dropoffs whose pickups were never
			// supplied; a caller bug.
			panic("batch: dropoff waypoint with no pickup in batch")
		}
		wp := remaining[best]
		if wp.Stage == model.StagePickup {
			picked[wp.OrderID] = true
		}
		out = append(out, wp)
		pos = wp.Location
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return out
}

func twoOptSwap(ord []model.Waypoint, i, k int) []model.Waypoint {
	out := make([]model.Waypoint, len(ord))
	copy(out, ord[:i])
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}

func pathDistance(wps []model.Waypoint) float64 {
	total := 0.0
	for i := 0; i < len(wps)-1; i++ {
		a, b := wps[i].Location, wps[i+1].Location
		total += geo.DistanceMeters(a.Lat, a.Lng, b.Lat, b.Lng)
	}
	return total
}

// pickupBeforeDropoff checks the precedence invariant over wps, treating
// alreadyPicked orders as having their pickup behind them.
func pickupBeforeDropoff(wps []model.Waypoint, alreadyPicked map[string]bool) bool {
	seen := map[string]bool{}
	for k := range alreadyPicked {
		seen[k] = true
	}
	for _, wp := range wps {
		switch wp.Stage {
		case model.StagePickup:
			seen[wp.OrderID] = true
		case model.StageDropoff:
			if hasPickup(wps, wp.OrderID) && !seen[wp.OrderID] {
				return false
			}
		}
	}
	return true
}

func hasPickup(wps []model.Waypoint, orderID string) bool {
	for _, wp := range wps {
		if wp.OrderID == orderID && wp.Stage == model.StagePickup {
			return true
		}
	}
	return false
}
