package ai

import (
	"context"
	"sync"
	"time"
)

// Limiter admits AI calls under two process-wide budgets: a maximum number
// of in-flight calls, and a maximum number of admissions per sliding time
// window (the provider's free-tier ceiling). Admission is first-come
// first-served; a caller blocks in Acquire until both budgets have room.
//
// One Limiter is shared by every pipeline run in the process. It is safe
// for concurrent use.
type Limiter struct {
	slots   chan struct{} // in-flight concurrency tokens
	admitCh chan struct{} // serializes window admission so waiters keep arrival order
	window  time.Duration
	cap     int

	mu     sync.Mutex
	admits []time.Time // admission times within the current window
}

// NewLimiter creates a Limiter allowing maxConcurrent in-flight calls and
// windowCap admissions per window.
func NewLimiter(maxConcurrent, windowCap int, window time.Duration) *Limiter {
	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		admitCh: make(chan struct{}, 1),
		window:  window,
		cap:     windowCap,
	}
}

// Acquire blocks until a concurrency slot and a window token are both
// available, or until ctx is done. Every successful Acquire must be paired
// with a Release once the call finishes.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Hold the admission lock while waiting for window room; this keeps
	// waiters in arrival order.
	select {
	case l.admitCh <- struct{}{}:
	case <-ctx.Done():
		<-l.slots
		return ctx.Err()
	}
	defer func() { <-l.admitCh }()

	for {
		l.mu.Lock()
		now := time.Now()
		l.prune(now)
		if len(l.admits) < l.cap {
			l.admits = append(l.admits, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.admits[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			<-l.slots
			return ctx.Err()
		}
	}
}

// Release frees the concurrency slot taken by Acquire. The window token is
// intentionally not returned: it expires on its own as the window slides.
func (l *Limiter) Release() {
	<-l.slots
}

// InFlight returns the number of currently admitted, unreleased calls.
func (l *Limiter) InFlight() int {
	return len(l.slots)
}

// prune drops admission records that have slid out of the window.
// Callers must hold l.mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.admits) && !l.admits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.admits = append(l.admits[:0], l.admits[i:]...)
	}
}
