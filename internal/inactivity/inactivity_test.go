package inactivity

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestMonitorFiresAfterIdleWindow(t *testing.T) {
	var fired atomic.Bool
	m := New(20*time.Millisecond, func() { fired.Store(true) })

	m.StartInactivity()
	time.Sleep(80 * time.Millisecond)

	if !fired.Load() {
		t.Fatal("expected onExpire to fire after the idle window elapsed")
	}
}

func TestEndInactivityCancelsPendingTimer(t *testing.T) {
	var fired atomic.Bool
	m := New(20*time.Millisecond, func() { fired.Store(true) })

	m.StartInactivity()
	m.EndInactivity()
	time.Sleep(80 * time.Millisecond)

	if fired.Load() {
		t.Fatal("expected EndInactivity to prevent onExpire from firing")
	}
}

func TestStartInactivityIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	m := New(30*time.Millisecond, func() { calls.Add(1) })

	m.StartInactivity()
	m.StartInactivity()
	m.StartInactivity()

	time.Sleep(100 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Fatalf("onExpire called %d times, want 1", got)
	}
}

func TestEndInactivityIsIdempotent(t *testing.T) {
	m := New(10*time.Millisecond, func() {})
	// Calling EndInactivity before any StartInactivity, and twice in a row,
	// must not panic.
	m.EndInactivity()
	m.EndInactivity()
}

func TestRestartAfterEndArmsFreshWindow(t *testing.T) {
	var calls atomic.Int32
	m := New(30*time.Millisecond, func() { calls.Add(1) })

	m.StartInactivity()
	m.EndInactivity()
	m.StartInactivity()

	time.Sleep(100 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Fatalf("onExpire called %d times, want 1", got)
	}
}
