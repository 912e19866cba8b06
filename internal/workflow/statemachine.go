// Package workflow implements the driver delivery workflow engine: the order
// status state machine, the evidence validation rules, and the orchestrator
// that adjudicates transition requests.
package workflow

import (
	"fmt"
	"strings"

	"driverflow/internal/model"
)

// happyPath is the canonical forward chain of non-terminal statuses.
var happyPath = []model.OrderStatus{
	model.StatusAssigned,
	model.StatusOnRouteToVendor,
	model.StatusArrivedAtVendor,
	model.StatusPickedUp,
	model.StatusOnRouteToCustomer,
	model.StatusArrivedAtCustomer,
	model.StatusDelivered,
}

// successor maps each happy-path status to its immediate next stage.
var successor = func() map[model.OrderStatus]model.OrderStatus {
	m := make(map[model.OrderStatus]model.OrderStatus, len(happyPath)-1)
	for i := 0; i < len(happyPath)-1; i++ {
		m[happyPath[i]] = happyPath[i+1]
	}
	return m
}()

// IsLegalTransition reports whether target is reachable from current in one
// step. Forward-only along the happy path, cancelled/failed reachable from any
// non-terminal status, nothing reachable from a terminal status.
func IsLegalTransition(current, target model.OrderStatus) bool {
	if current.IsTerminal() {
		return false
	}
	if target == model.StatusCancelled || target == model.StatusFailed {
		return true
	}
	return successor[current] == target
}

// NextStatuses returns every status legally reachable from current.
func NextStatuses(current model.OrderStatus) []model.OrderStatus {
	if current.IsTerminal() {
		return nil
	}
	out := []model.OrderStatus{}
	if next, ok := successor[current]; ok {
		out = append(out, next)
	}
	return append(out, model.StatusCancelled, model.StatusFailed)
}

// TransitionReason returns a human-readable explanation for an illegal
// transition. Callers should only invoke it when IsLegalTransition is false.
func TransitionReason(current, target model.OrderStatus) string {
	if current.IsTerminal() {
		return fmt.Sprintf("order is already %s and cannot change status", current)
	}
	nexts := NextStatuses(current)
	names := make([]string, len(nexts))
	for i, n := range nexts {
		names[i] = string(n)
	}
	return fmt.Sprintf("cannot move from %s to %s; valid next statuses are: %s",
		current, target, strings.Join(names, ", "))
}
