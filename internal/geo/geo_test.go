package geo

import (
	"math"
	"testing"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	if d := DistanceMeters(40.7128, -74.0060, 40.7128, -74.0060); d != 0 {
		t.Fatalf("same point: want 0, got %f", d)
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := DistanceMeters(40.7128, -74.0060, 34.0522, -118.2437)
	b := DistanceMeters(34.0522, -118.2437, 40.7128, -74.0060)
	if a != b {
		t.Fatalf("not symmetric: %f vs %f", a, b)
	}
}

func TestDistanceKnownPair(t *testing.T) {
	// NYC to LA is roughly 3936 km great-circle.
	d := DistanceMeters(40.7128, -74.0060, 34.0522, -118.2437)
	if math.Abs(d-3936000) > 10000 {
		t.Fatalf("NYC-LA distance out of tolerance: %f", d)
	}
}

func TestDistanceShortRange(t *testing.T) {
	// ~111 m per 0.001 degree of latitude.
	d := DistanceMeters(10.0, 20.0, 10.001, 20.0)
	if math.Abs(d-111.2) > 1.0 {
		t.Fatalf("short range distance out of tolerance: %f", d)
	}
}
