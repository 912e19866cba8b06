package workflow

// Policy holds the deployment-tunable thresholds the orchestrator applies.
// Radii and checklist rules vary per market and are never hardcoded in the
// rules; see internal/config for how a deployment supplies them.
type Policy struct {
	// ArrivalRadiusM is the maximum distance from the vendor, in meters,
	// accepted for an arrived_at_vendor transition.
	ArrivalRadiusM float64 `yaml:"arrival_radius_m" json:"arrivalRadiusM"`
	// DropoffRadiusM is the maximum distance from the customer, in meters,
	// accepted for an arrived_at_customer transition.
	DropoffRadiusM float64 `yaml:"dropoff_radius_m" json:"dropoffRadiusM"`
	// MaxAccuracyM is the worst GPS accuracy accepted on delivery evidence.
	MaxAccuracyM float64 `yaml:"max_accuracy_m" json:"maxAccuracyM"`
	// ChecklistMinRatio is the minimum fraction of checklist items that must
	// be confirmed for pickup evidence to be valid.
	ChecklistMinRatio float64 `yaml:"checklist_min_ratio" json:"checklistMinRatio"`
	// CriticalItems must each be present and confirmed on every pickup
	// checklist regardless of the overall ratio.
	CriticalItems []string `yaml:"critical_items" json:"criticalItems"`
	// RequireTimingChecks wires order-age and delivery-window validation into
	// en-route transitions.
	RequireTimingChecks bool `yaml:"require_timing_checks" json:"requireTimingChecks"`
}

// DefaultPolicy returns the thresholds used when a deployment supplies none.
func DefaultPolicy() Policy {
	return Policy{
		ArrivalRadiusM:    150,
		DropoffRadiusM:    100,
		MaxAccuracyM:      100,
		ChecklistMinRatio: 0.80,
		CriticalItems: []string{
			"Order number matches",
			"All items are present",
			"Items are properly packaged",
		},
	}
}
