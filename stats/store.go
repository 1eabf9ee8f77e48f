package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"games-api-go/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	statsBucketName = "stats"
	statsKey        = "server_stats"
)

// Store persists counters across restarts in a dedicated BoltDB file
type Store struct {
	db       *bolt.DB
	stats    *Stats
	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// PersistedStats is the on-disk form. Counters accumulate across restarts.
type PersistedStats struct {
	TotalRequests       int64 `json:"total_requests"`
	GamesRequests       int64 `json:"games_requests"`
	CollectionRequests  int64 `json:"collection_requests"`
	StatsRequests       int64 `json:"stats_requests"`
	HealthRequests      int64 `json:"health_requests"`
	OtherRequests       int64 `json:"other_requests"`
	CacheHits           int64 `json:"cache_hits"`
	CacheMisses         int64 `json:"cache_misses"`
	NegativeCacheHits   int64 `json:"negative_cache_hits"`
	RateLimitExceeded   int64 `json:"rate_limit_exceeded"`
	UpstreamRequests    int64 `json:"upstream_requests"`
	UpstreamErrors      int64 `json:"upstream_errors"`
	UpstreamRateLimited int64 `json:"upstream_rate_limited"`
	TokenRenewals       int64 `json:"token_renewals"`
	Status2xx           int64 `json:"status_2xx"`
	Status4xx           int64 `json:"status_4xx"`
	Status5xx           int64 `json:"status_5xx"`

	TotalResponseTime  int64 `json:"total_response_time"`
	ResponseCount      int64 `json:"response_count"`
	MinResponseTime    int64 `json:"min_response_time"`
	MaxResponseTime    int64 `json:"max_response_time"`
	GamesResponseTime  int64 `json:"games_response_time"`
	GamesResponseCount int64 `json:"games_response_count"`

	Actions     map[string]int64 `json:"actions"`
	Resolutions map[string]int64 `json:"resolutions"`

	LastSaved    time.Time `json:"last_saved"`
	FirstStarted time.Time `json:"first_started"`
}

// NewStore opens the stats database at dbPath for s
func NewStore(dbPath string, s *Stats) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(statsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats bucket: %w", err)
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, dbPath)
	return &Store{
		db:       db,
		stats:    s,
		stopChan: make(chan struct{}),
	}, nil
}

// Load applies persisted counters to the tracked Stats
func (st *Store) Load() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	var p PersistedStats
	found := false
	err := st.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(statsBucketName)).Get([]byte(statsKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	if !found {
		return nil
	}

	s := st.stats
	s.TotalRequests.Store(p.TotalRequests)
	s.GamesRequests.Store(p.GamesRequests)
	s.CollectionRequests.Store(p.CollectionRequests)
	s.StatsRequests.Store(p.StatsRequests)
	s.HealthRequests.Store(p.HealthRequests)
	s.OtherRequests.Store(p.OtherRequests)
	s.CacheHits.Store(p.CacheHits)
	s.CacheMisses.Store(p.CacheMisses)
	s.NegativeCacheHits.Store(p.NegativeCacheHits)
	s.RateLimitExceeded.Store(p.RateLimitExceeded)
	s.UpstreamRequests.Store(p.UpstreamRequests)
	s.UpstreamErrors.Store(p.UpstreamErrors)
	s.UpstreamRateLimited.Store(p.UpstreamRateLimited)
	s.TokenRenewals.Store(p.TokenRenewals)
	s.Status2xx.Store(p.Status2xx)
	s.Status4xx.Store(p.Status4xx)
	s.Status5xx.Store(p.Status5xx)
	s.totalResponseTime.Store(p.TotalResponseTime)
	s.responseCount.Store(p.ResponseCount)
	s.gamesResponseTime.Store(p.GamesResponseTime)
	s.gamesResponseCount.Store(p.GamesResponseCount)

	if p.MinResponseTime > 0 && p.MinResponseTime < maxInt64 {
		s.minResponseTime.Store(p.MinResponseTime)
	}
	if p.MaxResponseTime > 0 {
		s.maxResponseTime.Store(p.MaxResponseTime)
	}

	restoreMap(&s.actions, p.Actions)
	restoreMap(&s.strategies, p.Resolutions)

	if !p.FirstStarted.IsZero() {
		s.StartTime = p.FirstStarted
	}

	log.Infof("%s Loaded persisted stats (total requests: %d, first started: %s)",
		logcolors.LogStats, p.TotalRequests, p.FirstStarted.Format(time.RFC3339))
	return nil
}

// Save writes the current counters to disk
func (st *Store) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.stats
	p := PersistedStats{
		TotalRequests:       s.TotalRequests.Load(),
		GamesRequests:       s.GamesRequests.Load(),
		CollectionRequests:  s.CollectionRequests.Load(),
		StatsRequests:       s.StatsRequests.Load(),
		HealthRequests:      s.HealthRequests.Load(),
		OtherRequests:       s.OtherRequests.Load(),
		CacheHits:           s.CacheHits.Load(),
		CacheMisses:         s.CacheMisses.Load(),
		NegativeCacheHits:   s.NegativeCacheHits.Load(),
		RateLimitExceeded:   s.RateLimitExceeded.Load(),
		UpstreamRequests:    s.UpstreamRequests.Load(),
		UpstreamErrors:      s.UpstreamErrors.Load(),
		UpstreamRateLimited: s.UpstreamRateLimited.Load(),
		TokenRenewals:       s.TokenRenewals.Load(),
		Status2xx:           s.Status2xx.Load(),
		Status4xx:           s.Status4xx.Load(),
		Status5xx:           s.Status5xx.Load(),
		TotalResponseTime:   s.totalResponseTime.Load(),
		ResponseCount:       s.responseCount.Load(),
		MinResponseTime:     s.minResponseTime.Load(),
		MaxResponseTime:     s.maxResponseTime.Load(),
		GamesResponseTime:   s.gamesResponseTime.Load(),
		GamesResponseCount:  s.gamesResponseCount.Load(),
		Actions:             s.ActionsSnapshot(),
		Resolutions:         s.ResolutionsSnapshot(),
		LastSaved:           time.Now(),
		FirstStarted:        s.StartTime,
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	err = st.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(statsBucketName)).Put([]byte(statsKey), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// StartAutoSave saves on every interval until Close
func (st *Store) StartAutoSave(interval time.Duration) {
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := st.Save(); err != nil {
					log.Warnf("%s Failed to auto-save stats: %v", logcolors.LogStats, err)
				}
			case <-st.stopChan:
				return
			}
		}
	}()
	log.Infof("%s Started auto-save with interval %v", logcolors.LogStats, interval)
}

// Close stops auto-save, saves once more and closes the database
func (st *Store) Close() error {
	st.stopOnce.Do(func() { close(st.stopChan) })
	st.wg.Wait()

	if err := st.Save(); err != nil {
		log.Warnf("%s Failed to save stats on close: %v", logcolors.LogStats, err)
	} else {
		log.Infof("%s Stats saved on shutdown", logcolors.LogStats)
	}
	return st.db.Close()
}
