package stats

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const maxInt64 = int64(^uint64(0) >> 1)

// Stats holds all server statistics with atomic counters
type Stats struct {
	StartTime time.Time

	// Request counters by route
	TotalRequests      atomic.Int64
	GamesRequests      atomic.Int64
	CollectionRequests atomic.Int64
	StatsRequests      atomic.Int64
	HealthRequests     atomic.Int64
	OtherRequests      atomic.Int64

	// Response cache
	CacheHits         atomic.Int64
	CacheMisses       atomic.Int64
	NegativeCacheHits atomic.Int64

	// Inbound limiter rejections (429 before any work)
	RateLimitExceeded atomic.Int64

	// Upstream traffic
	UpstreamRequests    atomic.Int64
	UpstreamErrors      atomic.Int64
	UpstreamRateLimited atomic.Int64
	TokenRenewals       atomic.Int64

	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response times in microseconds
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	minResponseTime   atomic.Int64
	maxResponseTime   atomic.Int64

	gamesResponseTime  atomic.Int64
	gamesResponseCount atomic.Int64

	// Keyed counters: dispatch action -> count, resolution strategy -> count
	actions    sync.Map
	strategies sync.Map
}

// New returns a zeroed Stats starting now
func New() *Stats {
	s := &Stats{StartTime: time.Now()}
	s.minResponseTime.Store(maxInt64)
	return s
}

var global = New()

// Get returns the global stats instance
func Get() *Stats {
	return global
}

// RecordRequest counts a request by route prefix
func (s *Stats) RecordRequest(path string) {
	s.TotalRequests.Add(1)
	switch {
	case strings.HasPrefix(path, "/api/games"):
		s.GamesRequests.Add(1)
	case strings.HasPrefix(path, "/collection"):
		s.CollectionRequests.Add(1)
	case path == "/stats":
		s.StatsRequests.Add(1)
	case path == "/health":
		s.HealthRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

func (s *Stats) RecordCacheHit()         { s.CacheHits.Add(1) }
func (s *Stats) RecordCacheMiss()        { s.CacheMisses.Add(1) }
func (s *Stats) RecordNegativeCacheHit() { s.NegativeCacheHits.Add(1) }
func (s *Stats) RecordRateLimitExceeded() {
	s.RateLimitExceeded.Add(1)
}

// RecordUpstream counts one attempted upstream call and whether it failed
func (s *Stats) RecordUpstream(failed bool) {
	s.UpstreamRequests.Add(1)
	if failed {
		s.UpstreamErrors.Add(1)
	}
}

func (s *Stats) RecordUpstreamRateLimited() { s.UpstreamRateLimited.Add(1) }
func (s *Stats) RecordTokenRenewal()        { s.TokenRenewals.Add(1) }

func increment(m *sync.Map, key string) {
	counter, _ := m.LoadOrStore(key, &atomic.Int64{})
	counter.(*atomic.Int64).Add(1)
}

func snapshotMap(m *sync.Map) map[string]int64 {
	out := make(map[string]int64)
	m.Range(func(k, v interface{}) bool {
		out[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}

func restoreMap(m *sync.Map, values map[string]int64) {
	for k, n := range values {
		counter := &atomic.Int64{}
		counter.Store(n)
		m.Store(k, counter)
	}
}

// RecordAction counts a dispatched action (search, details, slug...)
func (s *Stats) RecordAction(action string) {
	increment(&s.actions, action)
}

// RecordResolution counts which strategy (or "cache"/"none") answered a resolve
func (s *Stats) RecordResolution(strategy string) {
	increment(&s.strategies, strategy)
}

// ActionsSnapshot returns per-action counts
func (s *Stats) ActionsSnapshot() map[string]int64 {
	return snapshotMap(&s.actions)
}

// ResolutionsSnapshot returns per-strategy counts
func (s *Stats) ResolutionsSnapshot() map[string]int64 {
	return snapshotMap(&s.strategies)
}

// RecordStatusCode records a response status code
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records a response time
func (s *Stats) RecordResponseTime(duration time.Duration, path string) {
	us := duration.Microseconds()

	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	for {
		current := s.minResponseTime.Load()
		if us >= current || s.minResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
	for {
		current := s.maxResponseTime.Load()
		if us <= current || s.maxResponseTime.CompareAndSwap(current, us) {
			break
		}
	}

	if strings.HasPrefix(path, "/api/games") {
		s.gamesResponseTime.Add(us)
		s.gamesResponseCount.Add(1)
	}
}

// Uptime returns the server uptime
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// CacheHitRate returns the cache hit rate as a percentage
func (s *Stats) CacheHitRate() float64 {
	hits := s.CacheHits.Load()
	total := hits + s.CacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

func average(total, count int64) time.Duration {
	if count == 0 {
		return 0
	}
	return time.Duration(total/count) * time.Microsecond
}

// AvgResponseTime returns the average response time
func (s *Stats) AvgResponseTime() time.Duration {
	return average(s.totalResponseTime.Load(), s.responseCount.Load())
}

// AvgGamesResponseTime returns the average response time of /api/games calls
func (s *Stats) AvgGamesResponseTime() time.Duration {
	return average(s.gamesResponseTime.Load(), s.gamesResponseCount.Load())
}

// MinResponseTime returns the minimum response time
func (s *Stats) MinResponseTime() time.Duration {
	min := s.minResponseTime.Load()
	if min == maxInt64 {
		return 0
	}
	return time.Duration(min) * time.Microsecond
}

// MaxResponseTime returns the maximum response time
func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

// topKeys orders keys by count desc, then name
func topKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Snapshot returns a point-in-time snapshot of all stats
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()
	resolutions := s.ResolutionsSnapshot()

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.StartTime.Format(time.RFC3339),
			"uptime":         uptime.String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"requests": map[string]interface{}{
			"total":      s.TotalRequests.Load(),
			"games":      s.GamesRequests.Load(),
			"collection": s.CollectionRequests.Load(),
			"stats":      s.StatsRequests.Load(),
			"health":     s.HealthRequests.Load(),
			"other":      s.OtherRequests.Load(),
			"by_action":  s.ActionsSnapshot(),
		},
		"cache": map[string]interface{}{
			"hits":          s.CacheHits.Load(),
			"misses":        s.CacheMisses.Load(),
			"negative_hits": s.NegativeCacheHits.Load(),
			"hit_rate":      s.CacheHitRate(),
		},
		"resolutions": map[string]interface{}{
			"by_strategy": resolutions,
			"ranking":     topKeys(resolutions),
		},
		"upstream": map[string]interface{}{
			"requests":       s.UpstreamRequests.Load(),
			"errors":         s.UpstreamErrors.Load(),
			"rate_limited":   s.UpstreamRateLimited.Load(),
			"token_renewals": s.TokenRenewals.Load(),
		},
		"rate_limiting": map[string]interface{}{
			"exceeded": s.RateLimitExceeded.Load(),
		},
		"responses": map[string]interface{}{
			"2xx": s.Status2xx.Load(),
			"4xx": s.Status4xx.Load(),
			"5xx": s.Status5xx.Load(),
		},
		"response_times": map[string]interface{}{
			"avg":       s.AvgResponseTime().String(),
			"min":       s.MinResponseTime().String(),
			"max":       s.MaxResponseTime().String(),
			"avg_games": s.AvgGamesResponseTime().String(),
		},
	}
}
