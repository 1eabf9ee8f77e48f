package igdb

import (
	"context"
	"sync"
)

// Values reported through CacheStatus
const (
	CacheHit         = "HIT"
	CacheNegativeHit = "NEGATIVE_HIT"
	CacheMiss        = "MISS"
)

type cacheStatusKey struct{}

// CacheStatus remembers how the most recent response cache lookup made with
// its context was answered
type CacheStatus struct {
	mu    sync.Mutex
	value string
}

// TrackCacheStatus returns a context whose cached lookups report into the returned CacheStatus
func TrackCacheStatus(ctx context.Context) (context.Context, *CacheStatus) {
	status := &CacheStatus{}
	return context.WithValue(ctx, cacheStatusKey{}, status), status
}

// String returns HIT, NEGATIVE_HIT, MISS or "" when no lookup happened
func (s *CacheStatus) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func markCacheStatus(ctx context.Context, value string) {
	if ctx == nil {
		return
	}
	if status, ok := ctx.Value(cacheStatusKey{}).(*CacheStatus); ok {
		status.mu.Lock()
		status.value = value
		status.mu.Unlock()
	}
}
