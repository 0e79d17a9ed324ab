package idempotency

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestMemoryStoreReserveLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	key := ScopedKey("user-1", "/tools/checkout/create_draft_order", "key-1")

	res, err := store.Reserve(ctx, key, "fp-1", now, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != ReservationStateNew {
		t.Fatalf("expected new reservation, got %v", res.State)
	}

	res, err = store.Reserve(ctx, key, "fp-1", now.Add(time.Second), time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != ReservationStatePending {
		t.Fatalf("expected pending while in flight, got %v", res.State)
	}

	resp := Response{Status: http.StatusCreated, Body: []byte(`{"ok":true}`)}
	if err := store.SaveResponse(ctx, key, "fp-1", resp, now.Add(2*time.Second), time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err = store.Reserve(ctx, key, "fp-1", now.Add(3*time.Second), time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != ReservationStateCompleted {
		t.Fatalf("expected completed, got %v", res.State)
	}
	if res.Record.ResponseStatus != http.StatusCreated {
		t.Fatalf("expected stored status 201, got %d", res.Record.ResponseStatus)
	}
	if string(res.Record.ResponseBody) != `{"ok":true}` {
		t.Fatalf("unexpected stored body %s", res.Record.ResponseBody)
	}
}

func TestMemoryStoreFingerprintMismatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	key := ScopedKey("user-1", "/tools/cart/add_item", "key-1")

	if _, err := store.Reserve(ctx, key, "fp-1", now, time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Reserve(ctx, key, "fp-2", now, time.Hour); !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected ErrFingerprintMismatch, got %v", err)
	}
}

func TestMemoryStoreExpiredRecordIsReusable(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	key := ScopedKey("user-1", "/tools/cart/add_item", "key-1")

	if _, err := store.Reserve(ctx, key, "fp-1", now, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := store.Reserve(ctx, key, "fp-2", now.Add(2*time.Minute), time.Minute)
	if err != nil {
		t.Fatalf("expired record must accept a fresh fingerprint: %v", err)
	}
	if res.State != ReservationStateNew {
		t.Fatalf("expected new reservation after expiry, got %v", res.State)
	}
}

func TestMemoryStoreCleanupExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for _, key := range []string{"a", "b", "c"} {
		if _, err := store.Reserve(ctx, key, "fp", now, time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	removed, err := store.CleanupExpired(ctx, now.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}

	removed, err = store.CleanupExpired(ctx, now.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected nothing left to remove, got %d", removed)
	}
}

func TestMemoryStoreRelease(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	key := "release-key"

	if _, err := store.Reserve(ctx, key, "fp-1", now, time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Release(ctx, key, "fp-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := store.Reserve(ctx, key, "fp-1", now, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != ReservationStateNew {
		t.Fatalf("expected fresh reservation after release, got %v", res.State)
	}
}

func TestScopedKeyShape(t *testing.T) {
	key := ScopedKey("user-1", "/tools/cart/add_item", "key-9")
	if key != "user-1:/tools/cart/add_item:key-9" {
		t.Fatalf("unexpected scoped key %q", key)
	}
}
