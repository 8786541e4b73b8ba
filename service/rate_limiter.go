package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// RateLimiter is a sliding-window throttle keyed by (email, ip). State is
// held in memory only and is lost on restart.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
	requests map[limiterKey][]time.Time
}

type limiterKey struct {
	email string
	ip    string
}

// NewRateLimiter allows limit requests per key in each window.
func NewRateLimiter(limit int, window time.Duration, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		now:      now,
		requests: make(map[limiterKey][]time.Time),
	}
}

// Allow records the request and reports true when fewer than limit requests
// were seen inside the window. Rejected requests are not recorded.
func (rl *RateLimiter) Allow(email, ip string) bool {
	key := limiterKey{email: strings.ToLower(strings.TrimSpace(email)), ip: ip}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := prune(rl.requests[key], now.Add(-rl.window))
	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false
	}

	rl.requests[key] = append(recent, now)
	return true
}

// Cleanup drops keys with no requests left inside the window.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	removed := 0
	for key, times := range rl.requests {
		recent := prune(times, cutoff)
		if len(recent) == 0 {
			delete(rl.requests, key)
			removed++
			continue
		}
		rl.requests[key] = recent
	}
	return removed
}

// Len returns the number of tracked (email, ip) pairs.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.requests)
}

// Run calls Cleanup every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// prune keeps timestamps after cutoff. Timestamps are appended in order.
func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
