package workflow

import (
	"time"

	"driverflow/internal/model"
)

// Engine adjudicates transition requests. It holds no mutable state and never
// applies a transition itself; callers persist the new status only after an
// accepted result.
type Engine struct {
	Policy Policy
}

// NewEngine returns an Engine with the given policy.
func NewEngine(p Policy) *Engine {
	return &Engine{Policy: p}
}

// EvaluateTransition decides whether order may move to target given the
// supplied evidence and driver location. now is caller-supplied so results are
// deterministic. Rejections carry every reason found, not just the first.
func (e *Engine) EvaluateTransition(order model.Order, target model.OrderStatus, evidence model.Evidence, driverLoc *model.GeoPoint, now time.Time) model.TransitionResult {
	if !IsLegalTransition(order.Status, target) {
		return rejected(TransitionReason(order.Status, target))
	}

	var reasons []string
	switch target {
	case model.StatusOnRouteToVendor:
		if !locationUsable(order.Vendor) {
			reasons = append(reasons, "order has no usable vendor location")
		}
		reasons = append(reasons, e.timingReasons(order, now)...)
	case model.StatusOnRouteToCustomer:
		if !locationUsable(order.Customer) {
			reasons = append(reasons, "order has no usable customer location")
		}
		reasons = append(reasons, e.timingReasons(order, now)...)
	case model.StatusArrivedAtVendor:
		reasons = append(reasons, e.proximityReasons(driverLoc, order.Vendor,
			e.Policy.ArrivalRadiusM, "vendor arrival")...)
	case model.StatusArrivedAtCustomer:
		reasons = append(reasons, e.proximityReasons(driverLoc, order.Customer,
			e.Policy.DropoffRadiusM, "customer arrival")...)
	case model.StatusPickedUp:
		if pc, ok := evidence.(model.PickupConfirmation); ok {
			reasons = append(reasons, ValidateChecklist(
				pc.Checklist, e.Policy.CriticalItems, e.Policy.ChecklistMinRatio, pc.Notes)...)
		} else {
			reasons = append(reasons, "Pickup confirmation data is required")
		}
	case model.StatusDelivered:
		if dc, ok := evidence.(model.DeliveryConfirmation); ok {
			reasons = append(reasons, ValidateDeliveryEvidence(
				dc.PhotoURL, dc.Location, dc.AccuracyM, dc.RecipientName, dc.Notes,
				e.Policy.MaxAccuracyM)...)
		} else {
			reasons = append(reasons, "Delivery confirmation data is required")
		}
	default:
		// cancelled/failed and assigned need nothing beyond the state machine.
	}

	if len(reasons) > 0 {
		return rejected(reasons...)
	}
	return model.TransitionResult{Accepted: true, NewStatus: target, EffectiveAt: now}
}

func (e *Engine) proximityReasons(driver, target *model.GeoPoint, maxMeters float64, operation string) []string {
	if !locationUsable(target) {
		return []string{"order has no usable location for " + operation + " check"}
	}
	if driver == nil {
		return []string{"driver location is required for " + operation}
	}
	return ValidateProximity(*driver, *target, maxMeters, operation)
}

func (e *Engine) timingReasons(order model.Order, now time.Time) []string {
	if !e.Policy.RequireTimingChecks {
		return nil
	}
	return ValidateOrderTiming(order.CreatedAt, order.RequestedDelivery, now)
}

// locationUsable reports whether p is a plausible real-world coordinate.
func locationUsable(p *model.GeoPoint) bool {
	if p == nil {
		return false
	}
	if p.Lat == 0 && p.Lng == 0 {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func rejected(reasons ...string) model.TransitionResult {
	return model.TransitionResult{Accepted: false, Reasons: reasons}
}
