package lock

import (
	"context"
	"testing"
	"time"
)

func TestMemoryMutex_TryAcquire_ExclusiveUntilReleased(t *testing.T) {
	m := NewMemoryMutex()
	defer m.Stop()
	ctx := context.Background()

	ok, token, err := m.TryAcquire(ctx, "lock:ride:r1", 50*time.Millisecond, time.Second)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, got ok=%v err=%v", ok, err)
	}

	ok2, _, err := m.TryAcquire(ctx, "lock:ride:r1", 50*time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok2 {
		t.Fatal("expected second acquire to fail while held")
	}

	if err := m.Release(ctx, "lock:ride:r1", token); err != nil {
		t.Fatalf("Release: %v", err)
	}

	ok3, _, err := m.TryAcquire(ctx, "lock:ride:r1", 50*time.Millisecond, time.Second)
	if err != nil || !ok3 {
		t.Fatalf("expected acquire after release to succeed, got ok=%v err=%v", ok3, err)
	}
}

func TestMemoryMutex_LeaseExpiresWithoutExplicitRelease(t *testing.T) {
	m := NewMemoryMutex()
	defer m.Stop()
	ctx := context.Background()

	ok, _, err := m.TryAcquire(ctx, OfferTTLKey("r1", "d1"), 0, 20*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed")
	}

	time.Sleep(40 * time.Millisecond)

	ok2, _, err := m.TryAcquire(ctx, OfferTTLKey("r1", "d1"), 0, time.Second)
	if err != nil || !ok2 {
		t.Fatalf("expected acquire to succeed once lease expired, got ok=%v err=%v", ok2, err)
	}
}

func TestMemoryMutex_ReleaseRequiresMatchingToken(t *testing.T) {
	m := NewMemoryMutex()
	defer m.Stop()
	ctx := context.Background()

	_, _, _ = m.TryAcquire(ctx, "lock:ride:r1", 0, time.Second)

	if err := m.Release(ctx, "lock:ride:r1", "wrong-token"); err != nil {
		t.Fatalf("Release: %v", err)
	}

	locked, err := m.IsLocked(ctx, "lock:ride:r1")
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if !locked {
		t.Fatal("expected lock to remain held when released with the wrong token")
	}
}
