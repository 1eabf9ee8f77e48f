package igdb

import (
	"context"
	"sync"
	"time"

	"games-api-go/logcolors"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultRateLimitWindow = 60 * time.Second
	DefaultRateLimitMax    = 50
)

// RateLimitCounter is the per-identifier request count within the current window
type RateLimitCounter struct {
	Count       int       `json:"count"`
	LastRequest time.Time `json:"lastRequest"`
}

// RateLimiter caps upstream calls per identifier. Once the gap since the last
// accepted call exceeds the window the whole count starts over, so this is an
// approximation of a sliding window rather than a precise one.
type RateLimiter struct {
	mu       sync.Mutex
	window   time.Duration
	max      int
	now      func() time.Time
	counters map[string]*RateLimitCounter
}

// NewRateLimiter creates a limiter. Zero values fall back to 50 per 60s.
func NewRateLimiter(window time.Duration, max int, now func() time.Time) *RateLimiter {
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	if max <= 0 {
		max = DefaultRateLimitMax
	}
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		window:   window,
		max:      max,
		now:      now,
		counters: make(map[string]*RateLimitCounter),
	}
}

// Allow records a call for identifier and reports whether it is within budget.
// Refused calls do not touch the counter.
func (rl *RateLimiter) Allow(identifier string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.counters[identifier]
	if !ok {
		c = &RateLimitCounter{LastRequest: now}
		rl.counters[identifier] = c
	}

	if now.Sub(c.LastRequest) > rl.window {
		c.Count = 0
	}
	if c.Count >= rl.max {
		return false
	}

	c.Count++
	c.LastRequest = now
	return true
}

// Snapshot copies every counter
func (rl *RateLimiter) Snapshot() map[string]RateLimitCounter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	out := make(map[string]RateLimitCounter, len(rl.counters))
	for id, c := range rl.counters {
		out[id] = *c
	}
	return out
}

// Prune drops counters idle for longer than the window. They would reset on
// their next call anyway.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for id, c := range rl.counters {
		if now.Sub(c.LastRequest) > rl.window {
			delete(rl.counters, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Prune every interval until ctx is done
func (rl *RateLimiter) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := rl.Prune(); n > 0 {
					log.Debugf("%s Pruned %d idle counters", logcolors.LogUpstreamRateLimit, n)
				}
			}
		}
	}()
}

// Reset forgets every counter
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.counters = make(map[string]*RateLimitCounter)
}
