package store

import (
	"encoding/hex"
	"testing"

	"driverflow/internal/model"
)

func TestComputeDedupKeyFromID(t *testing.T) {
	body := []byte(`{"id":"evt_123","type":"x"}`)
	got := computeDedupKey(body)
	if got != "evt_123" {
		t.Fatalf("want evt_123, got %s", got)
	}
}

func TestComputeDedupKeyFromHash(t *testing.T) {
	body := []byte(`{"notId":"x"}`)
	got := computeDedupKey(body)
	// hex-encoded first 8 bytes -> 16 hex chars
	b, err := hex.DecodeString(got)
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
}

func TestNullIfEmpty(t *testing.T) {
	if v := nullIfEmpty(""); v != nil {
		t.Fatalf("empty -> nil expected")
	}
	if v := nullIfEmpty("x"); v != "x" {
		t.Fatalf("non-empty passthrough expected")
	}
}

func TestContactJSON(t *testing.T) {
	if v := contactJSON(model.Contact{}); v != nil {
		t.Fatalf("zero contact -> nil expected")
	}
	if v := contactJSON(model.Contact{Name: "Vendor A"}); v == nil {
		t.Fatalf("named contact -> non-nil expected")
	}
}
