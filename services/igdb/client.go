package igdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"games-api-go/cache"
	"games-api-go/circuitbreaker"
	"games-api-go/logcolors"
	"games-api-go/stats"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL  = "https://api.igdb.com/v4"
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"
	DefaultTimeout  = 15 * time.Second

	DefaultMinRatingCount = 5
	DefaultSearchLimit    = 20
)

// Options configures a Client. Zero values take the defaults above.
type Options struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	HTTPClient   *http.Client
	Timeout      time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int

	MinRatingCount     int
	DefaultSearchLimit int

	// Cache memoizes high-level results. Nil gets an in-memory cache with the default policy.
	Cache *cache.TTLCache
	// Breaker, when set, guards the network call
	Breaker *circuitbreaker.CircuitBreaker
	// Stats, when set, receives cache and upstream counters
	Stats *stats.Stats
	Now   func() time.Time
}

// Client talks to the IGDB games endpoint. It owns the access token, the
// per-identifier rate limiter and the response cache.
type Client struct {
	clientID   string
	gamesURL   string
	httpClient *http.Client

	tokens  *TokenSource
	limiter *RateLimiter
	cache   *cache.TTLCache
	breaker *circuitbreaker.CircuitBreaker
	stats   *stats.Stats

	minRatingCount     int
	defaultSearchLimit int
	now                func() time.Time
}

// NewClient builds a client from opts
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.MinRatingCount <= 0 {
		opts.MinRatingCount = DefaultMinRatingCount
	}
	if opts.DefaultSearchLimit <= 0 {
		opts.DefaultSearchLimit = DefaultSearchLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewTTLCache(nil, cache.DefaultPolicy(), cache.WithClock(opts.Now))
	}

	tokens := NewTokenSource(opts.ClientID, opts.ClientSecret, opts.TokenURL, opts.HTTPClient, opts.Now)
	if opts.Stats != nil {
		tokens.onRenew = opts.Stats.RecordTokenRenewal
	}

	return &Client{
		clientID:           opts.ClientID,
		gamesURL:           strings.TrimRight(opts.BaseURL, "/") + "/games",
		httpClient:         opts.HTTPClient,
		tokens:             tokens,
		limiter:            NewRateLimiter(opts.RateLimitWindow, opts.RateLimitMax, opts.Now),
		cache:              opts.Cache,
		breaker:            opts.Breaker,
		stats:              opts.Stats,
		minRatingCount:     opts.MinRatingCount,
		defaultSearchLimit: opts.DefaultSearchLimit,
		now:                opts.Now,
	}
}

// Request checks the rate limit for identifier, obtains a token and POSTs
// body to the games endpoint, returning the raw response body
func (c *Client) Request(ctx context.Context, body, identifier string) ([]byte, error) {
	if identifier == "" {
		identifier = "default"
	}

	if !c.limiter.Allow(identifier) {
		log.Warnf("%s Local budget exhausted for %s", logcolors.LogUpstreamRateLimit, identifier)
		if c.stats != nil {
			c.stats.RecordUpstreamRateLimited()
		}
		return nil, &RateLimitError{Identifier: identifier}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var payload []byte
	call := func() error {
		payload, err = c.post(ctx, token, body)
		return err
	}

	if c.breaker != nil {
		err = c.breaker.Execute(call, countsAgainstBreaker)
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			log.Warnf("%s Circuit open, skipping request for %s (retry in %v)",
				logcolors.LogIGDB, identifier, c.breaker.TimeUntilRetry().Round(time.Second))
			return nil, &UpstreamError{Status: http.StatusServiceUnavailable, Body: "circuit open", Err: err}
		}
	} else {
		err = call()
	}

	if c.stats != nil {
		c.stats.RecordUpstream(err != nil)
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) post(ctx context.Context, token, body string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gamesURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building IGDB request: %w", err)
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Errorf("%s Request failed: %v", logcolors.LogIGDB, err)
		return nil, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("reading IGDB response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Errorf("%s API error %d: %s", logcolors.LogIGDB, resp.StatusCode, string(data))
		if resp.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate()
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// RateLimitStats exposes the per-identifier counters for the health endpoint
func (c *Client) RateLimitStats() map[string]RateLimitCounter {
	return c.limiter.Snapshot()
}

// PruneRateLimits drops counters idle for longer than the window
func (c *Client) PruneRateLimits() int {
	return c.limiter.Prune()
}

// StartRateLimitSweeper prunes idle rate-limit counters every interval until ctx is done
func (c *Client) StartRateLimitSweeper(ctx context.Context, interval time.Duration) {
	c.limiter.StartSweeper(ctx, interval)
}

// CacheSize returns the number of stored response cache entries
func (c *Client) CacheSize() int {
	return c.cache.Len()
}

// Cache returns the response cache
func (c *Client) Cache() *cache.TTLCache {
	return c.cache
}

// Breaker returns the circuit breaker, nil when disabled
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// Reset clears the token, rate-limit counters and response cache
func (c *Client) Reset() {
	c.tokens.Invalidate()
	c.limiter.Reset()
	c.cache.Clear()
	if c.breaker != nil {
		c.breaker.Reset()
	}
}
