package workflow

import (
	"strings"
	"testing"

	"driverflow/internal/model"
)

var allStatuses = []model.OrderStatus{
	model.StatusAssigned,
	model.StatusOnRouteToVendor,
	model.StatusArrivedAtVendor,
	model.StatusPickedUp,
	model.StatusOnRouteToCustomer,
	model.StatusArrivedAtCustomer,
	model.StatusDelivered,
	model.StatusCancelled,
	model.StatusFailed,
}

func TestIsLegalTransition(t *testing.T) {
	cases := []struct {
		from, to model.OrderStatus
		want     bool
	}{
		// happy-path forward transitions
		{model.StatusAssigned, model.StatusOnRouteToVendor, true},
		{model.StatusOnRouteToVendor, model.StatusArrivedAtVendor, true},
		{model.StatusArrivedAtVendor, model.StatusPickedUp, true},
		{model.StatusPickedUp, model.StatusOnRouteToCustomer, true},
		{model.StatusOnRouteToCustomer, model.StatusArrivedAtCustomer, true},
		{model.StatusArrivedAtCustomer, model.StatusDelivered, true},
		// escape hatch from every non-terminal state
		{model.StatusAssigned, model.StatusCancelled, true},
		{model.StatusAssigned, model.StatusFailed, true},
		{model.StatusArrivedAtVendor, model.StatusCancelled, true},
		{model.StatusOnRouteToCustomer, model.StatusFailed, true},
		// no skipping stages
		{model.StatusAssigned, model.StatusArrivedAtVendor, false},
		{model.StatusAssigned, model.StatusDelivered, false},
		{model.StatusOnRouteToVendor, model.StatusPickedUp, false},
		{model.StatusArrivedAtVendor, model.StatusDelivered, false},
		// no moving backward
		{model.StatusPickedUp, model.StatusArrivedAtVendor, false},
		{model.StatusArrivedAtCustomer, model.StatusOnRouteToCustomer, false},
		{model.StatusOnRouteToVendor, model.StatusAssigned, false},
		// no self loops
		{model.StatusAssigned, model.StatusAssigned, false},
		// terminals have no outgoing transitions
		{model.StatusDelivered, model.StatusCancelled, false},
		{model.StatusCancelled, model.StatusAssigned, false},
		{model.StatusFailed, model.StatusFailed, false},
	}
	for _, tc := range cases {
		if got := IsLegalTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("IsLegalTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

// Exhaustive forward-only check: the only legal non-escape move from any
// status is its immediate successor.
func TestForwardOnlyInvariant(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			legal := IsLegalTransition(from, to)
			isEscape := !from.IsTerminal() &&
				(to == model.StatusCancelled || to == model.StatusFailed)
			isSuccessor := successor[from] == to && successor[from] != ""
			if legal != (isEscape || isSuccessor) {
				t.Errorf("IsLegalTransition(%s, %s) = %v violates forward-only invariant", from, to, legal)
			}
		}
	}
}

func TestTerminalAbsorption(t *testing.T) {
	terminals := []model.OrderStatus{model.StatusDelivered, model.StatusCancelled, model.StatusFailed}
	for _, term := range terminals {
		for _, to := range allStatuses {
			if IsLegalTransition(term, to) {
				t.Errorf("terminal %s must not transition to %s", term, to)
			}
		}
	}
}

func TestNextStatuses(t *testing.T) {
	if got := NextStatuses(model.StatusDelivered); got != nil {
		t.Fatalf("terminal status should have no next statuses, got %v", got)
	}
	got := NextStatuses(model.StatusArrivedAtVendor)
	want := []model.OrderStatus{model.StatusPickedUp, model.StatusCancelled, model.StatusFailed}
	if len(got) != len(want) {
		t.Fatalf("NextStatuses(arrived_at_vendor) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("NextStatuses(arrived_at_vendor) = %v, want %v", got, want)
		}
	}
}

func TestTransitionReason(t *testing.T) {
	r := TransitionReason(model.StatusAssigned, model.StatusDelivered)
	if !strings.Contains(r, string(model.StatusOnRouteToVendor)) {
		t.Fatalf("reason should name the valid next status, got %q", r)
	}
	r = TransitionReason(model.StatusDelivered, model.StatusAssigned)
	if !strings.Contains(r, "delivered") {
		t.Fatalf("terminal reason should name the terminal status, got %q", r)
	}
}
