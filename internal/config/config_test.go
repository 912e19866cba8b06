package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempPolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	return path
}

func TestLoadPolicyOverridesDefaults(t *testing.T) {
	path := writeTempPolicy(t, `
arrival_radius_m: 250
dropoff_radius_m: 75
checklist_min_ratio: 0.9
critical_items:
  - "Order number matches"
`)
	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if p.ArrivalRadiusM != 250 || p.DropoffRadiusM != 75 {
		t.Fatalf("radii not applied: %+v", p)
	}
	if p.ChecklistMinRatio != 0.9 {
		t.Fatalf("ratio not applied: %+v", p)
	}
	if len(p.CriticalItems) != 1 {
		t.Fatalf("critical items not applied: %+v", p.CriticalItems)
	}
	// Unset field keeps its default.
	if p.MaxAccuracyM != 100 {
		t.Fatalf("unset max_accuracy_m should keep default, got %f", p.MaxAccuracyM)
	}
}

func TestLoadPolicyRejectsBadValues(t *testing.T) {
	path := writeTempPolicy(t, "arrival_radius_m: -10\n")
	if _, err := LoadPolicy(path); err == nil {
		t.Fatal("negative radius must be rejected")
	}
	path = writeTempPolicy(t, "checklist_min_ratio: 1.5\n")
	if _, err := LoadPolicy(path); err == nil {
		t.Fatal("ratio above 1 must be rejected")
	}
}

func TestPolicyFromEnvOverrides(t *testing.T) {
	t.Setenv("POLICY_FILE", "")
	t.Setenv("POLICY_ARRIVAL_RADIUS_M", "300")
	t.Setenv("POLICY_REQUIRE_TIMING_CHECKS", "true")
	p, err := PolicyFromEnv()
	if err != nil {
		t.Fatalf("PolicyFromEnv: %v", err)
	}
	if p.ArrivalRadiusM != 300 {
		t.Fatalf("env override not applied: %f", p.ArrivalRadiusM)
	}
	if !p.RequireTimingChecks {
		t.Fatal("timing checks env override not applied")
	}
}
