package igdb

import (
	"context"
	"errors"
	"fmt"

	"games-api-go/circuitbreaker"
)

// AuthError means the client-credentials exchange failed. The cached token
// stays unset so the next request tries again.
type AuthError struct {
	Status int
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("twitch token request failed: %v", e.Err)
	}
	return fmt.Sprintf("twitch token request failed: %d - %s", e.Status, e.Body)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError means the local per-identifier budget is spent
type RateLimitError struct {
	Identifier string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Rate limit exceeded for %s", e.Identifier)
}

// UpstreamError is a non-2xx answer or a transport failure (Status 0)
type UpstreamError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("IGDB API error: %v", e.Err)
	}
	return fmt.Sprintf("IGDB API error: %d - %s", e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// countsAgainstBreaker reports whether err says IGDB itself is unhealthy
func countsAgainstBreaker(err error) bool {
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return ue.Status == 0 || ue.Status >= 500
}

// IsCircuitOpen reports whether err was caused by an open breaker
func IsCircuitOpen(err error) bool {
	return errors.Is(err, circuitbreaker.ErrCircuitOpen)
}
