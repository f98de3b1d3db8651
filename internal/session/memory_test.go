package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	reg := NewMemoryRegistry()
	reg.now = func() time.Time { return now }

	if err := reg.Save(ctx, "s1", "u1", time.Hour); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	userID, err := reg.Lookup(ctx, "s1")
	if err != nil || userID != "u1" {
		t.Fatalf("Lookup() = %q, %v; want u1, nil", userID, err)
	}

	if _, err := reg.Lookup(ctx, "missing"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Lookup(missing) error = %v, want ErrUnknownSession", err)
	}

	if err := reg.Revoke(ctx, "s1"); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, err := reg.Lookup(ctx, "s1"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Lookup() after revoke error = %v, want ErrUnknownSession", err)
	}
}

func TestMemoryRegistryExpiryAndSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	reg := NewMemoryRegistry()
	reg.now = func() time.Time { return now }

	_ = reg.Save(ctx, "short", "u1", time.Minute)
	_ = reg.Save(ctx, "long", "u1", time.Hour)

	now = now.Add(time.Minute)
	if _, err := reg.Lookup(ctx, "short"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Lookup(short) at expiry error = %v, want ErrUnknownSession", err)
	}
	if removed := reg.Sweep(); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
	if _, err := reg.Lookup(ctx, "long"); err != nil {
		t.Errorf("Lookup(long) error = %v", err)
	}
}
