package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(threshold int, cooldown time.Duration) (*CircuitBreaker, *testClock) {
	clock := &testClock{now: time.Unix(1700000000, 0)}
	cb := New(Config{
		Name:            "igdb",
		Threshold:       threshold,
		Cooldown:        cooldown,
		HalfOpenTimeout: 10 * time.Second,
		Now:             clock.Now,
	})
	return cb, clock
}

func trip(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.RecordFailure()
	}
}

func TestNew_Defaults(t *testing.T) {
	cb := New(Config{})

	if cb.threshold != 5 {
		t.Errorf("Expected default threshold 5, got %d", cb.threshold)
	}
	if cb.cooldown != time.Minute {
		t.Errorf("Expected default cooldown 1m, got %v", cb.cooldown)
	}
	if cb.halfOpenTimeout != 30*time.Second {
		t.Errorf("Expected default halfOpenTimeout 30s, got %v", cb.halfOpenTimeout)
	}
	if cb.name != "default" {
		t.Errorf("Expected default name 'default', got %q", cb.name)
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected initial state CLOSED, got %s", cb.State())
	}
}

func TestOpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	trip(cb, 2)
	if cb.State() != StateClosed {
		t.Fatalf("Expected CLOSED after 2 failures, got %s", cb.State())
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("Expected OPEN after 3 failures, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("Expected Allow() to return false while OPEN")
	}
}

func TestSuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	trip(cb, 2)
	cb.RecordSuccess()
	if cb.Failures() != 0 {
		t.Errorf("Expected 0 failures after success, got %d", cb.Failures())
	}

	trip(cb, 2)
	if cb.State() != StateClosed {
		t.Errorf("Expected streak to restart after success, got %s", cb.State())
	}
}

func TestHalfOpenProbe(t *testing.T) {
	tests := []struct {
		name     string
		probeOK  bool
		expected State
	}{
		{"probe succeeds", true, StateClosed},
		{"probe fails", false, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock := newTestBreaker(2, time.Minute)
			trip(cb, 2)

			clock.Advance(time.Minute - time.Millisecond)
			if cb.Allow() {
				t.Fatal("Expected breaker to stay OPEN before cooldown ends")
			}

			clock.Advance(time.Millisecond)
			if !cb.Allow() {
				t.Fatal("Expected a probe to be allowed after cooldown")
			}
			if cb.State() != StateHalfOpen {
				t.Fatalf("Expected HALF-OPEN, got %s", cb.State())
			}
			if cb.Allow() {
				t.Error("Expected only one probe while HALF-OPEN")
			}

			if tt.probeOK {
				cb.RecordSuccess()
			} else {
				cb.RecordFailure()
			}
			if cb.State() != tt.expected {
				t.Errorf("Expected %s after probe, got %s", tt.expected, cb.State())
			}
		})
	}
}

func TestHalfOpenTimeoutReopens(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Second)
	trip(cb, 1)

	clock.Advance(time.Second)
	cb.Allow()

	clock.Advance(10 * time.Second)
	if cb.Allow() {
		t.Error("Expected Allow() to be false when the probe timed out")
	}
	if cb.State() != StateOpen {
		t.Errorf("Expected OPEN after probe timeout, got %s", cb.State())
	}
}

func TestExecute(t *testing.T) {
	errUpstream := errors.New("upstream 503")
	errNotFound := errors.New("not found")
	onlyUpstream := func(err error) bool { return errors.Is(err, errUpstream) }

	cb, _ := newTestBreaker(2, time.Minute)

	// Errors the classifier ignores count as success
	for i := 0; i < 5; i++ {
		if err := cb.Execute(func() error { return errNotFound }, onlyUpstream); !errors.Is(err, errNotFound) {
			t.Fatalf("Expected fn error to pass through, got %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("Expected CLOSED after ignored errors, got %s", cb.State())
	}

	cb.Execute(func() error { return errUpstream }, onlyUpstream)
	cb.Execute(func() error { return errUpstream }, onlyUpstream)
	if cb.State() != StateOpen {
		t.Fatalf("Expected OPEN after upstream failures, got %s", cb.State())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil }, onlyUpstream)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Expected fn not to run while OPEN")
	}
}

func TestSnapshotAndRetry(t *testing.T) {
	cb, clock := newTestBreaker(2, time.Minute)

	if cb.TimeUntilRetry() != 0 {
		t.Errorf("Expected 0 retry time while CLOSED, got %v", cb.TimeUntilRetry())
	}

	trip(cb, 2)
	clock.Advance(20 * time.Second)

	if got := cb.TimeUntilRetry(); got != 40*time.Second {
		t.Errorf("Expected 40s until retry, got %v", got)
	}

	snap := cb.Snapshot()
	if snap.Name != "igdb" || snap.State != "OPEN" || snap.Failures != 2 || snap.Threshold != 2 || snap.Trips != 1 {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}
	if snap.RetryInMillis != 40000 {
		t.Errorf("Expected RetryInMillis 40000, got %d", snap.RetryInMillis)
	}
}

func TestReset(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)
	trip(cb, 2)

	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("Expected CLOSED after reset, got %s", cb.State())
	}
	if cb.Failures() != 0 {
		t.Errorf("Expected 0 failures after reset, got %d", cb.Failures())
	}
	if !cb.Allow() {
		t.Error("Expected Allow() after reset")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "CLOSED"},
		{StateOpen, "OPEN"},
		{StateHalfOpen, "HALF-OPEN"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if tt.state.String() != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, tt.state.String())
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	cb := New(Config{Threshold: 100, Cooldown: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				cb.Allow()
				cb.RecordFailure()
				cb.RecordSuccess()
				cb.Snapshot()
			}
		}()
	}
	wg.Wait()

	state := cb.State()
	if state != StateClosed && state != StateOpen && state != StateHalfOpen {
		t.Errorf("Invalid state after concurrent access: %v", state)
	}
}
