// Package inactivity implements component G: it watches the dispatcher's
// start/end-inactivity edges and requests process shutdown after the
// configured idle window (spec §4.7).
package inactivity

import (
	"sync"
	"time"

	"github.com/sashko-guz/thumbnailerd/internal/logger"
)

// Monitor tracks two idempotent edges and arms/disarms a shutdown timer.
// Each start edge arms one time.AfterFunc timer and each end edge stops it,
// so a rapid start/end/start sequence leaves at most one pending timer.
type Monitor struct {
	maxIdle  time.Duration
	onExpire func()

	mu     sync.Mutex
	timer  *time.Timer
	active bool
}

// New builds a Monitor that calls onExpire once the idle window elapses
// with no intervening EndInactivity call.
func New(maxIdle time.Duration, onExpire func()) *Monitor {
	return &Monitor{maxIdle: maxIdle, onExpire: onExpire}
}

// StartInactivity arms the idle timer. Idempotent: a second call while
// already armed is a no-op (spec §4.7: "repeated edges are idempotent").
func (m *Monitor) StartInactivity() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return
	}
	m.active = true
	logger.Debugf("[InactivityMonitor] armed, idle window %v", m.maxIdle)
	m.timer = time.AfterFunc(m.maxIdle, m.fire)
}

// EndInactivity cancels a pending timer, if any. Idempotent.
func (m *Monitor) EndInactivity() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return
	}
	m.active = false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	logger.Debugf("[InactivityMonitor] disarmed")
}

func (m *Monitor) fire() {
	m.mu.Lock()
	// Between the timer firing and acquiring the lock, EndInactivity may
	// have already disarmed; still fine, onExpire is a shutdown *request*,
	// and spec §8 says repeated Shutdown is idempotent at the daemon level.
	m.active = false
	m.mu.Unlock()

	logger.Infof("[InactivityMonitor] idle window elapsed, requesting shutdown")
	m.onExpire()
}
