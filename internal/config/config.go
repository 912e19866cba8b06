// Package config loads the workflow policy for a deployment. Proximity radii
// and checklist rules are market-specific product parameters, so they come
// from a YAML file (POLICY_FILE) rather than constants in the engine.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"driverflow/internal/workflow"
)

// PolicyFromEnv returns the workflow policy: defaults, overlaid with the YAML
// file named by POLICY_FILE (if set), overlaid with individual env overrides.
func PolicyFromEnv() (workflow.Policy, error) {
	p := workflow.DefaultPolicy()
	if path := os.Getenv("POLICY_FILE"); path != "" {
		loaded, err := LoadPolicy(path)
		if err != nil {
			return p, err
		}
		p = loaded
	}
	applyEnvOverrides(&p)
	return p, nil
}

// LoadPolicy reads a policy YAML file. Unset fields keep their defaults.
func LoadPolicy(path string) (workflow.Policy, error) {
	p := workflow.DefaultPolicy()
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if err := validate(p); err != nil {
		return p, fmt.Errorf("policy file %s: %w", path, err)
	}
	return p, nil
}

func validate(p workflow.Policy) error {
	if p.ArrivalRadiusM <= 0 || p.DropoffRadiusM <= 0 {
		return fmt.Errorf("arrival/dropoff radii must be positive")
	}
	if p.ChecklistMinRatio < 0 || p.ChecklistMinRatio > 1 {
		return fmt.Errorf("checklist_min_ratio must be in [0,1]")
	}
	if p.MaxAccuracyM <= 0 {
		return fmt.Errorf("max_accuracy_m must be positive")
	}
	return nil
}

func applyEnvOverrides(p *workflow.Policy) {
	if v, ok := envFloat("POLICY_ARRIVAL_RADIUS_M"); ok {
		p.ArrivalRadiusM = v
	}
	if v, ok := envFloat("POLICY_DROPOFF_RADIUS_M"); ok {
		p.DropoffRadiusM = v
	}
	if v, ok := envFloat("POLICY_MAX_ACCURACY_M"); ok {
		p.MaxAccuracyM = v
	}
	if v, ok := envFloat("POLICY_CHECKLIST_MIN_RATIO"); ok {
		p.ChecklistMinRatio = v
	}
	if v := os.Getenv("POLICY_REQUIRE_TIMING_CHECKS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			p.RequireTimingChecks = b
		}
	}
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
