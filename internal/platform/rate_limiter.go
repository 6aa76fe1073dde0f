package platform

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces platform requests at a fixed interval. Each caller
// reserves the next free slot up front, so concurrent callers queue in
// reservation order.
type RateLimiter struct {
	mu   sync.Mutex
	next time.Time
	gap  time.Duration
}

func NewRateLimiter(requestsPerSecond int) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &RateLimiter{gap: time.Second / time.Duration(requestsPerSecond)}
}

// WaitTurn blocks until the caller's reserved slot arrives or ctx ends.
func (r *RateLimiter) WaitTurn(ctx context.Context) error {
	r.mu.Lock()
	now := time.Now()
	slot := r.next
	if slot.Before(now) {
		slot = now
	}
	r.next = slot.Add(r.gap)
	r.mu.Unlock()

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
