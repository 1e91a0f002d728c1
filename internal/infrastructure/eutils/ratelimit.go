package eutils

import (
	"context"
	"sync"
	"time"
)

// HostLimiter enforces a minimum interval between outbound requests to
// one upstream host. One limiter is constructed per host and a handle is
// passed explicitly to every client that talks to it; slots are granted
// in arrival order and the grant itself is the only critical section.
type HostLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewHostLimiter builds a limiter allowing rps requests per second.
// Rates at or below zero disable the gate.
func NewHostLimiter(rps float64) *HostLimiter {
	var interval time.Duration
	if rps > 0 {
		interval = time.Duration(float64(time.Second) / rps)
	}
	return &HostLimiter{interval: interval}
}

// Acquire blocks until the caller's slot arrives or ctx is done. A
// cancelled waiter forfeits its slot rather than handing it to a later
// caller, which keeps the grant order strictly first-come-first-served.
func (l *HostLimiter) Acquire(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := time.Now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.interval)
	l.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Interval reports the configured minimum spacing between requests.
func (l *HostLimiter) Interval() time.Duration {
	return l.interval
}
