package main

import (
	"fmt"
	"time"

	"games-api-go/cache"
	"games-api-go/circuitbreaker"
	"games-api-go/config"
	"games-api-go/logcolors"
	"games-api-go/services/collection"
	"games-api-go/services/igdb"
	"games-api-go/services/resolver"
	"games-api-go/stats"

	log "github.com/sirupsen/logrus"
)

// responsePolicy builds the per-action TTLs from configuration
func responsePolicy(c config.Config) cache.Policy {
	return cache.Policy{
		Default: config.Seconds(c.Configuration.CacheTTLInSeconds),
		PerAction: map[string]time.Duration{
			cache.ActionPopular: config.Seconds(c.Configuration.PopularCacheTTLInSeconds),
			cache.ActionResolve: config.Seconds(c.Configuration.ResolveCacheTTLInSeconds),
		},
	}
}

// setupResponseCache returns the IGDB response cache. With FF_PERSISTENT_CACHE
// it is backed by bbolt and survives restarts; the returned close func must be
// called on shutdown.
func setupResponseCache(c config.Config) (*cache.TTLCache, *cache.PersistentStore, func()) {
	policy := responsePolicy(c)

	if !c.FeatureFlags.PersistentCache {
		log.Infof("%s Using in-memory response cache", logcolors.LogCacheInit)
		return cache.NewTTLCache(nil, policy), nil, func() {}
	}

	store, err := cache.NewPersistentStore(c.Configuration.CacheDBPath, c.FeatureFlags.CacheCompression)
	if err != nil {
		log.Errorf("%s Falling back to in-memory cache: %v", logcolors.LogCacheInit, err)
		return cache.NewTTLCache(nil, policy), nil, func() {}
	}

	return cache.NewTTLCache(store, policy), store, func() {
		if err := store.Close(); err != nil {
			log.Errorf("%s Error closing cache: %v", logcolors.LogCacheInit, err)
		}
	}
}

// setupBreaker returns nil when FF_UPSTREAM_CIRCUIT_BREAKER is off
func setupBreaker(c config.Config) *circuitbreaker.CircuitBreaker {
	if !c.FeatureFlags.UpstreamCircuitBreaker {
		return nil
	}
	return circuitbreaker.New(circuitbreaker.Config{
		Name:      "IGDB",
		Threshold: c.Configuration.CircuitBreakerThreshold,
		Cooldown:  config.Seconds(c.Configuration.CircuitBreakerCooldownSecs),
	})
}

func setupIGDBClient(c config.Config, responses *cache.TTLCache, breaker *circuitbreaker.CircuitBreaker) *igdb.Client {
	if c.Configuration.IGDBClientID == "" || c.Configuration.IGDBClientSecret == "" {
		log.Warnf("%s TWITCH_CLIENT_ID or TWITCH_CLIENT_SECRET not set, upstream calls will fail", logcolors.LogConfig)
	}

	return igdb.NewClient(igdb.Options{
		ClientID:           c.Configuration.IGDBClientID,
		ClientSecret:       c.Configuration.IGDBClientSecret,
		BaseURL:            c.Configuration.IGDBBaseURL,
		TokenURL:           c.Configuration.IGDBTokenURL,
		Timeout:            config.Seconds(c.Configuration.IGDBTimeoutSecs),
		RateLimitWindow:    time.Duration(c.Configuration.UpstreamRateLimitWindowMs) * time.Millisecond,
		RateLimitMax:       c.Configuration.UpstreamRateLimitMax,
		MinRatingCount:     c.Configuration.MinRatingCount,
		DefaultSearchLimit: c.Configuration.DefaultSearchLimit,
		Cache:              responses,
		Breaker:            breaker,
		Stats:              stats.Get(),
	})
}

// setupResolver wires the strategy chain over memo. The collection is only
// consulted when FF_LOCAL_COLLECTION_LOOKUP is on.
func setupResolver(c config.Config, source resolver.GameSource, store *collection.Store, memo *cache.TTLCache) *resolver.Resolver {
	var lookup resolver.CollectionLookup
	if c.FeatureFlags.LocalCollectionLookup && store != nil {
		lookup = store
	}

	r := resolver.New(
		resolver.DefaultStrategies(source, lookup, c.Configuration.NameSearchCandidates, nil),
		resolver.WithMemo(memo),
		resolver.WithStats(stats.Get()),
	)
	log.Infof("%s Strategies: %v", logcolors.LogResolver, r.Strategies())
	return r
}

// setupStatsStore restores counters from disk and starts the auto-save loop
func setupStatsStore(c config.Config) (*stats.Store, error) {
	store, err := stats.NewStore(c.Configuration.StatsDBPath, stats.Get())
	if err != nil {
		return nil, fmt.Errorf("opening stats store: %w", err)
	}
	if err := store.Load(); err != nil {
		log.Warnf("%s Failed to load persisted stats: %v", logcolors.LogStats, err)
	}
	store.StartAutoSave(config.Seconds(c.Configuration.StatsSaveSecs))
	return store, nil
}
