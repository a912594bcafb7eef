package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}

	value := []byte(`{"id":"b1"}`)
	if err := s.Set(ctx, "k", value, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value[0] = 'X'

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"id":"b1"}` {
		t.Fatalf("stored value aliased caller slice: %q", got)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("expected hit before expiry, got %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := s.Set(ctx, "k", nil, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
