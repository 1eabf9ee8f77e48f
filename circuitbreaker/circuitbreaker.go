package circuitbreaker

import (
	"errors"
	"games-api-go/logcolors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// State is the breaker position
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker configuration
type Config struct {
	Name            string        // used in log prefixes
	Threshold       int           // consecutive failures before opening
	Cooldown        time.Duration // time spent open before a probe is let through
	HalfOpenTimeout time.Duration // how long a probe may take before reopening
	Now             func() time.Time
}

// CircuitBreaker guards an upstream. It opens after Threshold consecutive
// failures, lets a single probe through after Cooldown, and closes again
// when that probe succeeds.
type CircuitBreaker struct {
	mu sync.RWMutex

	name            string
	threshold       int
	cooldown        time.Duration
	halfOpenTimeout time.Duration
	now             func() time.Time

	state         State
	failures      int
	openedAt      time.Time
	halfOpenStart time.Time
	trips         int
}

// New creates a closed breaker, filling unset fields with defaults
func New(cfg Config) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	if cfg.HalfOpenTimeout <= 0 {
		cfg.HalfOpenTimeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &CircuitBreaker{
		name:            cfg.Name,
		threshold:       cfg.Threshold,
		cooldown:        cfg.Cooldown,
		halfOpenTimeout: cfg.HalfOpenTimeout,
		now:             cfg.Now,
		state:           StateClosed,
	}
}

// Allow reports whether a call may proceed. Moving from OPEN to HALF-OPEN
// happens here, and only the caller that triggers it gets true.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	switch cb.state {
	case StateOpen:
		if now.Sub(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.state = StateHalfOpen
		cb.halfOpenStart = now
		log.Infof("%s Cooldown passed, transitioning to HALF-OPEN", logcolors.CircuitBreakerPrefix(cb.name))
		return true

	case StateHalfOpen:
		if now.Sub(cb.halfOpenStart) >= cb.halfOpenTimeout {
			cb.state = StateOpen
			cb.openedAt = now
			log.Warnf("%s Probe timed out, transitioning back to OPEN", logcolors.CircuitBreakerPrefix(cb.name))
		}
		return false

	default:
		return true
	}
}

// RecordSuccess closes a half-open breaker and clears the failure streak
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		log.Infof("%s Probe succeeded, transitioning to CLOSED", logcolors.CircuitBreakerPrefix(cb.name))
		cb.state = StateClosed
	}
	cb.failures = 0
}

// RecordFailure extends the failure streak and opens the breaker when the
// threshold is reached or a probe fails
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++

	switch cb.state {
	case StateHalfOpen:
		cb.open()
		log.Warnf("%s Probe failed, transitioning back to OPEN", logcolors.CircuitBreakerPrefix(cb.name))
	case StateClosed:
		if cb.failures >= cb.threshold {
			cb.open()
			log.Warnf("%s Threshold reached (%d failures), transitioning to OPEN (cooldown: %v)",
				logcolors.CircuitBreakerPrefix(cb.name), cb.failures, cb.cooldown)
		}
	}
}

// open must be called with mu held
func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.trips++
}

// Execute runs fn if the breaker allows it. isFailure decides which errors
// count against the breaker; a nil isFailure counts every non-nil error.
func (cb *CircuitBreaker) Execute(fn func() error, isFailure func(error) bool) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}

	err := fn()
	if err != nil && (isFailure == nil || isFailure(err)) {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
	return err
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Failures returns the current consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Snapshot is a point-in-time view for the health endpoint
type Snapshot struct {
	Name          string `json:"name"`
	State         string `json:"state"`
	Failures      int    `json:"failures"`
	Threshold     int    `json:"threshold"`
	Trips         int    `json:"trips"`
	RetryInMillis int64  `json:"retryInMs,omitempty"`
}

// Snapshot returns the breaker's current statistics
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return Snapshot{
		Name:          cb.name,
		State:         cb.state.String(),
		Failures:      cb.failures,
		Threshold:     cb.threshold,
		Trips:         cb.trips,
		RetryInMillis: cb.timeUntilRetry().Milliseconds(),
	}
}

// TimeUntilRetry returns the remaining cooldown while OPEN, the remaining
// probe window while HALF-OPEN, and 0 otherwise
func (cb *CircuitBreaker) TimeUntilRetry() time.Duration {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.timeUntilRetry()
}

func (cb *CircuitBreaker) timeUntilRetry() time.Duration {
	var start time.Time
	var window time.Duration
	switch cb.state {
	case StateOpen:
		start, window = cb.openedAt, cb.cooldown
	case StateHalfOpen:
		start, window = cb.halfOpenStart, cb.halfOpenTimeout
	default:
		return 0
	}
	if remaining := window - cb.now().Sub(start); remaining > 0 {
		return remaining
	}
	return 0
}

// Reset forces the breaker back to CLOSED
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.openedAt = time.Time{}
	cb.halfOpenStart = time.Time{}
	log.Infof("%s Reset to CLOSED", logcolors.CircuitBreakerPrefix(cb.name))
}
