package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"games-api-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// Action names used as key prefixes. Any other action falls back to the
// policy default.
const (
	ActionSearch  = "search"
	ActionDetails = "details"
	ActionSlug    = "slug"
	ActionPopular = "popular"
	ActionSimilar = "similar"
	ActionResolve = "resolve"
)

const (
	DefaultTTL = 5 * time.Minute
	PopularTTL = 30 * time.Minute
)

// Policy maps actions to TTLs
type Policy struct {
	Default   time.Duration
	PerAction map[string]time.Duration
}

// DefaultPolicy is 5 minutes for everything except popular lists (30 minutes)
func DefaultPolicy() Policy {
	return Policy{
		Default: DefaultTTL,
		PerAction: map[string]time.Duration{
			ActionPopular: PopularTTL,
		},
	}
}

// TTL returns the TTL configured for action
func (p Policy) TTL(action string) time.Duration {
	if ttl, ok := p.PerAction[action]; ok {
		return ttl
	}
	if p.Default > 0 {
		return p.Default
	}
	return DefaultTTL
}

// Key builds the "action:identifier" cache key
func Key(action, identifier string) string {
	return action + ":" + identifier
}

// actionOf returns the action prefix of a key built by Key
func actionOf(key string) string {
	action, _, _ := strings.Cut(key, ":")
	return action
}

// TTLCache memoizes payloads with a per-action TTL. Expired entries are
// treated as misses on read; nothing is evicted eagerly except by Sweep.
type TTLCache struct {
	store  Store
	policy Policy
	now    func() time.Time
}

// Option configures a TTLCache
type Option func(*TTLCache)

// WithClock overrides the time source (tests)
func WithClock(now func() time.Time) Option {
	return func(c *TTLCache) {
		c.now = now
	}
}

// NewTTLCache creates a TTL cache over store. A nil store gets a MemoryStore.
func NewTTLCache(store Store, policy Policy, opts ...Option) *TTLCache {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &TTLCache{
		store:  store,
		policy: policy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the TTL policy in use
func (c *TTLCache) Policy() Policy {
	return c.policy
}

func (c *TTLCache) fresh(action string, entry CacheEntry) bool {
	age := c.now().Sub(time.Unix(0, entry.Timestamp))
	return age < c.policy.TTL(action)
}

// Get returns the payload stored under action:identifier if it is still fresh
func (c *TTLCache) Get(action, identifier string) ([]byte, bool) {
	entry, ok := c.store.Get(Key(action, identifier))
	if !ok || !c.fresh(action, entry) {
		return nil, false
	}
	return []byte(entry.Value), true
}

// HasFresh reports whether a fresh entry exists
func (c *TTLCache) HasFresh(action, identifier string) bool {
	_, ok := c.Get(action, identifier)
	return ok
}

// Set unconditionally overwrites the entry for action:identifier
func (c *TTLCache) Set(action, identifier string, payload []byte) error {
	key := Key(action, identifier)
	err := c.store.Set(key, CacheEntry{
		Value:     string(payload),
		Timestamp: c.now().UnixNano(),
	})
	if err != nil {
		log.Errorf("%s Error setting cache value for %s: %v", logcolors.LogCache, key, err)
	}
	return err
}

// Delete drops a single entry
func (c *TTLCache) Delete(action, identifier string) error {
	return c.store.Delete(Key(action, identifier))
}

// Len returns the number of stored entries, fresh or not
func (c *TTLCache) Len() int {
	return c.store.Len()
}

// Clear drops every entry
func (c *TTLCache) Clear() error {
	return c.store.Clear()
}

// Sweep deletes expired entries and returns how many were removed
func (c *TTLCache) Sweep() int {
	var expired []string
	c.store.Range(func(key string, entry CacheEntry) bool {
		if !c.fresh(actionOf(key), entry) {
			expired = append(expired, key)
		}
		return true
	})

	for _, key := range expired {
		if err := c.store.Delete(key); err != nil {
			log.Warnf("%s Failed to delete expired key %s: %v", logcolors.LogCacheSweep, key, err)
		}
	}
	return len(expired)
}

// StartSweeper runs Sweep every interval until ctx is done
func (c *TTLCache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	log.Infof("%s Starting cache sweeper (interval: %v)", logcolors.LogCacheSweep, interval)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					log.Debugf("%s Deleted %d expired entries", logcolors.LogCacheSweep, n)
				}
			}
		}
	}()
}

// GetJSON decodes a fresh payload into T. A payload that fails to decode is a miss.
func GetJSON[T any](c *TTLCache, action, identifier string) (T, bool) {
	var v T
	payload, ok := c.Get(action, identifier)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		log.Warnf("%s Discarding undecodable entry %s: %v", logcolors.LogCache, Key(action, identifier), err)
		return v, false
	}
	return v, true
}

// SetJSON encodes v and stores it under action:identifier
func SetJSON(c *TTLCache, action, identifier string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(action, identifier, payload)
}
