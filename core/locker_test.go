package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryUserLocker_AcquireAndConflict(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryUserLocker()

	handle, err := locker.Acquire(ctx, "garmin:u1", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := locker.Acquire(ctx, "garmin:u1", time.Minute); err == nil {
		t.Fatalf("expected second acquire to fail while held")
	}
	if _, err := locker.Acquire(ctx, "garmin:u2", time.Minute); err != nil {
		t.Fatalf("expected different key to acquire: %v", err)
	}

	if err := handle.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := locker.Acquire(ctx, "garmin:u1", time.Minute); err != nil {
		t.Fatalf("expected reacquire after unlock: %v", err)
	}
}

func TestMemoryUserLocker_ExpiredLockIsReclaimable(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	locker := NewMemoryUserLocker()
	locker.nowFn = func() time.Time { return current }

	if _, err := locker.Acquire(ctx, "whoop:u1", 10*time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	current = current.Add(11 * time.Second)
	if _, err := locker.Acquire(ctx, "whoop:u1", 10*time.Second); err != nil {
		t.Fatalf("expected expired lock to be reclaimable: %v", err)
	}
}

func TestMemoryUserLocker_UnlockIsIdempotent(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryUserLocker()

	first, err := locker.Acquire(ctx, "garmin:u1", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := first.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	second, err := locker.Acquire(ctx, "garmin:u1", time.Minute)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	// A stale double unlock must not release the new holder.
	if err := first.Unlock(ctx); err != nil {
		t.Fatalf("stale unlock: %v", err)
	}
	if _, err := locker.Acquire(ctx, "garmin:u1", time.Minute); err == nil {
		t.Fatalf("expected lock still held by second handle")
	}
	if err := second.Unlock(ctx); err != nil {
		t.Fatalf("second unlock: %v", err)
	}
}

func TestMemoryUserLocker_RequiresKey(t *testing.T) {
	locker := NewMemoryUserLocker()
	if _, err := locker.Acquire(context.Background(), "  ", time.Minute); err == nil {
		t.Fatalf("expected error for blank key")
	}
}
