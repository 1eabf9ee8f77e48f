package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Configuration struct {
		Port string `envconfig:"PORT" default:"8080"`

		// Inbound per-IP limiter (token bucket)
		RateLimitPerSecond  int `envconfig:"RATE_LIMIT_PER_SECOND" default:"10"`
		RateLimitBurstLimit int `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"20"`

		// IGDB / Twitch credentials
		IGDBClientID     string `envconfig:"TWITCH_CLIENT_ID" default:""`
		IGDBClientSecret string `envconfig:"TWITCH_CLIENT_SECRET" default:""`
		IGDBBaseURL      string `envconfig:"IGDB_BASE_URL" default:"https://api.igdb.com/v4"`
		IGDBTokenURL     string `envconfig:"IGDB_TOKEN_URL" default:"https://id.twitch.tv/oauth2/token"`
		IGDBTimeoutSecs  int    `envconfig:"IGDB_TIMEOUT_SECS" default:"15"`

		// Upstream accounting, per identifier
		UpstreamRateLimitWindowMs int `envconfig:"UPSTREAM_RATE_LIMIT_WINDOW_MS" default:"60000"`
		UpstreamRateLimitMax      int `envconfig:"UPSTREAM_RATE_LIMIT_MAX" default:"50"`

		// Search quality filter and limits
		MinRatingCount       int `envconfig:"MIN_RATING_COUNT" default:"5"`
		DefaultSearchLimit   int `envconfig:"DEFAULT_SEARCH_LIMIT" default:"20"`
		DefaultSimilarLimit  int `envconfig:"DEFAULT_SIMILAR_LIMIT" default:"6"`
		NameSearchCandidates int `envconfig:"NAME_SEARCH_CANDIDATES" default:"1"`
		SearchTimeoutSecs    int `envconfig:"SEARCH_TIMEOUT_SECS" default:"10"`

		// Response cache TTLs
		CacheTTLInSeconds        int `envconfig:"CACHE_TTL_IN_SECONDS" default:"300"`
		PopularCacheTTLInSeconds int `envconfig:"POPULAR_CACHE_TTL_IN_SECONDS" default:"1800"`
		ResolveCacheTTLInSeconds int `envconfig:"RESOLVE_CACHE_TTL_IN_SECONDS" default:"300"`
		CacheSweepIntervalInSecs int `envconfig:"CACHE_SWEEP_INTERVAL_IN_SECONDS" default:"600"`

		// Persistence
		CacheDBPath      string `envconfig:"CACHE_DB_PATH" default:"./data/cache.db"`
		CollectionDBPath string `envconfig:"COLLECTION_DB_PATH" default:"./data/collection.db"`
		StatsDBPath      string `envconfig:"STATS_DB_PATH" default:"./data/stats.db"`
		StatsSaveSecs    int    `envconfig:"STATS_SAVE_INTERVAL_SECS" default:"60"`

		CircuitBreakerThreshold    int `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`      // Consecutive failures before circuit opens
		CircuitBreakerCooldownSecs int `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"60"` // Seconds to wait before retrying

		AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	}

	FeatureFlags struct {
		PersistentCache        bool `envconfig:"FF_PERSISTENT_CACHE" default:"false"`
		PersistentStats        bool `envconfig:"FF_PERSISTENT_STATS" default:"false"`
		CacheCompression       bool `envconfig:"FF_CACHE_COMPRESSION" default:"true"`
		LocalCollectionLookup  bool `envconfig:"FF_LOCAL_COLLECTION_LOOKUP" default:"false"`
		UpstreamCircuitBreaker bool `envconfig:"FF_UPSTREAM_CIRCUIT_BREAKER" default:"true"`
	}
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Warnf("Error loading env config: %v", err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("Unable to load configuration")
	}

	return c
}

func Get() Config {
	return conf
}

// Seconds converts an integer seconds setting into a time.Duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
