package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiterAcquireRelease(t *testing.T) {
	l := New("test", 2)

	release1, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if l.InUse() != 1 {
		t.Fatalf("InUse() = %d, want 1", l.InUse())
	}

	release2, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if l.InUse() != 2 {
		t.Fatalf("InUse() = %d, want 2", l.InUse())
	}

	release1()
	if l.InUse() != 1 {
		t.Fatalf("InUse() after release1 = %d, want 1", l.InUse())
	}

	// Releasing twice must not double-decrement.
	release1()
	if l.InUse() != 1 {
		t.Fatalf("InUse() after double release = %d, want 1", l.InUse())
	}

	release2()
	if l.InUse() != 0 {
		t.Fatalf("InUse() after release2 = %d, want 0", l.InUse())
	}
}

func TestLimiterAcquireBlocksAtCapacity(t *testing.T) {
	l := New("test", 1)

	release, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := l.Acquire(ctx); err == nil {
		t.Fatal("expected Acquire to block past capacity and time out")
	}

	release()

	release2, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release2()
}

func TestLimiterTryAcquire(t *testing.T) {
	l := New("test", 1)

	release, ok := l.TryAcquire()
	if !ok {
		t.Fatal("expected first TryAcquire to succeed")
	}

	if _, ok := l.TryAcquire(); ok {
		t.Fatal("expected second TryAcquire to fail at capacity")
	}

	release()

	release2, ok := l.TryAcquire()
	if !ok {
		t.Fatal("expected TryAcquire to succeed after release")
	}
	release2()
}

func TestNewClampsNonPositiveCapacity(t *testing.T) {
	l := New("test", 0)
	if l.Capacity() != 1 {
		t.Fatalf("Capacity() = %d, want 1", l.Capacity())
	}
}
