package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestKey(t *testing.T) {
	tests := []struct {
		action, id, expected string
	}{
		{ActionSearch, "zelda", "search:zelda"},
		{ActionDetails, "1022", "details:1022"},
		{ActionPopular, "limit-20", "popular:limit-20"},
	}
	for _, tt := range tests {
		if got := Key(tt.action, tt.id); got != tt.expected {
			t.Errorf("Key(%q, %q) = %q, want %q", tt.action, tt.id, got, tt.expected)
		}
	}
}

func TestPolicyTTL(t *testing.T) {
	p := DefaultPolicy()

	if got := p.TTL(ActionPopular); got != 30*time.Minute {
		t.Errorf("popular TTL = %v, want 30m", got)
	}
	for _, action := range []string{ActionSearch, ActionDetails, ActionSlug, ActionResolve, "unknown"} {
		if got := p.TTL(action); got != 5*time.Minute {
			t.Errorf("%s TTL = %v, want 5m", action, got)
		}
	}

	var zero Policy
	if got := zero.TTL(ActionSearch); got != DefaultTTL {
		t.Errorf("zero policy TTL = %v, want %v", got, DefaultTTL)
	}
}

func TestTTLBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		elapsed time.Duration
		fresh   bool
	}{
		{"search just under 5m", ActionSearch, 5*time.Minute - time.Millisecond, true},
		{"search at 5m", ActionSearch, 5 * time.Minute, false},
		{"search just over 5m", ActionSearch, 5*time.Minute + time.Millisecond, false},
		{"details just under 5m", ActionDetails, 5*time.Minute - time.Millisecond, true},
		{"details just over 5m", ActionDetails, 5*time.Minute + time.Millisecond, false},
		{"popular past 5m still fresh", ActionPopular, 10 * time.Minute, true},
		{"popular just under 30m", ActionPopular, 30*time.Minute - time.Millisecond, true},
		{"popular just over 30m", ActionPopular, 30*time.Minute + time.Millisecond, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			c := NewTTLCache(NewMemoryStore(), DefaultPolicy(), WithClock(clock.Now))

			c.Set(tt.action, "id", []byte("payload"))
			clock.Advance(tt.elapsed)

			_, ok := c.Get(tt.action, "id")
			if ok != tt.fresh {
				t.Errorf("after %v: fresh = %v, want %v", tt.elapsed, ok, tt.fresh)
			}
		})
	}
}

func TestSetOverwritesAndRefreshesTimestamp(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCache(nil, DefaultPolicy(), WithClock(clock.Now))

	c.Set(ActionSearch, "zelda", []byte("old"))
	clock.Advance(4 * time.Minute)
	c.Set(ActionSearch, "zelda", []byte("new"))
	clock.Advance(4 * time.Minute)

	payload, ok := c.Get(ActionSearch, "zelda")
	if !ok {
		t.Fatal("Expected overwritten entry to be fresh")
	}
	if string(payload) != "new" {
		t.Errorf("Expected payload 'new', got %q", payload)
	}
}

func TestExpiredEntryIsNotEvictedOnRead(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCache(nil, DefaultPolicy(), WithClock(clock.Now))

	c.Set(ActionSearch, "zelda", []byte("x"))
	clock.Advance(time.Hour)

	if c.HasFresh(ActionSearch, "zelda") {
		t.Error("Expected stale entry")
	}
	if c.Len() != 1 {
		t.Errorf("Expected stale entry to stay stored until sweep, got Len=%d", c.Len())
	}
}

func TestJSONHelpers(t *testing.T) {
	type record struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	c := NewTTLCache(nil, DefaultPolicy())

	if err := SetJSON(c, ActionDetails, "1", &record{ID: 1, Name: "Halo"}); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}
	got, ok := GetJSON[*record](c, ActionDetails, "1")
	if !ok || got == nil || got.Name != "Halo" {
		t.Errorf("GetJSON returned %+v (ok=%v)", got, ok)
	}

	// A cached nil is a hit carrying nil
	var missing *record
	SetJSON(c, ActionDetails, "2", missing)
	got, ok = GetJSON[*record](c, ActionDetails, "2")
	if !ok {
		t.Error("Expected cached nil to be a hit")
	}
	if got != nil {
		t.Errorf("Expected nil record, got %+v", got)
	}

	// Undecodable payloads are misses
	c.Set(ActionDetails, "3", []byte("{not json"))
	if _, ok := GetJSON[*record](c, ActionDetails, "3"); ok {
		t.Error("Expected undecodable payload to be a miss")
	}
}

func TestSweep(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCache(nil, DefaultPolicy(), WithClock(clock.Now))

	c.Set(ActionSearch, "zelda", []byte("a"))
	c.Set(ActionPopular, "limit-20", []byte("b"))
	clock.Advance(10 * time.Minute)

	removed := c.Sweep()
	if removed != 1 {
		t.Errorf("Expected 1 expired entry removed, got %d", removed)
	}
	if !c.HasFresh(ActionPopular, "limit-20") {
		t.Error("Expected popular entry to survive the sweep")
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 entry left, got %d", c.Len())
	}
}

func TestStartSweeperStopsWithContext(t *testing.T) {
	c := NewTTLCache(nil, Policy{Default: time.Nanosecond})
	c.Set(ActionSearch, "x", []byte("1"))

	ctx, cancel := context.WithCancel(context.Background())
	c.StartSweeper(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for c.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if c.Len() != 0 {
		t.Errorf("Expected sweeper to remove expired entry, Len=%d", c.Len())
	}
}

func TestClear(t *testing.T) {
	c := NewTTLCache(nil, DefaultPolicy())
	c.Set(ActionSearch, "a", []byte("1"))
	c.Set(ActionSearch, "b", []byte("2"))

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d", c.Len())
	}
}
