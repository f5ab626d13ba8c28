// Package ratelimit implements component B: a bounded token pool with a
// FIFO wait queue, used for the download and extraction limiters of spec §4.2.
package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/sashko-guz/thumbnailerd/internal/logger"
)

// Limiter caps concurrent jobs at Capacity, granting and revoking tokens in
// FIFO order. Unlike the teacher's ad hoc `processSem chan struct{}`, a
// queued Acquire can be cancelled via ctx without leaking a token (spec §4.2:
// "cancellation of a queued job must remove it from the wait queue without
// leaking tokens").
type Limiter struct {
	name string
	cap  int64
	sem  *semaphore.Weighted
	inUse atomic.Int64
}

// New builds a limiter with the given capacity, clamped to ≥1 (spec §4.2:
// extraction_limiter "clamped to ≥1").
func New(name string, capacity int64) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{name: name, cap: capacity, sem: semaphore.NewWeighted(capacity)}
}

// Capacity returns the configured token count.
func (l *Limiter) Capacity() int64 { return l.cap }

// InUse returns the number of tokens currently held.
func (l *Limiter) InUse() int64 { return l.inUse.Load() }

// Acquire blocks until a token is available or ctx is cancelled. On success
// it returns a release func that must be called exactly once. Cancellation
// before acquisition removes the caller from the wait queue cleanly; a token
// already granted is never silently dropped, since Acquire only returns a
// release func on success.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("ratelimit %s: %w", l.name, err)
	}
	l.inUse.Add(1)
	logger.Debugf("[Limiter:%s] acquired (in_use=%d/%d)", l.name, l.inUse.Load(), l.cap)

	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			l.inUse.Add(-1)
			l.sem.Release(1)
			logger.Debugf("[Limiter:%s] released (in_use=%d/%d)", l.name, l.inUse.Load(), l.cap)
		}
	}, nil
}

// TryAcquire attempts a non-blocking acquire, returning nil release and
// false if no token is immediately available.
func (l *Limiter) TryAcquire() (release func(), ok bool) {
	if !l.sem.TryAcquire(1) {
		return nil, false
	}
	l.inUse.Add(1)
	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			l.inUse.Add(-1)
			l.sem.Release(1)
		}
	}, true
}
