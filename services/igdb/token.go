package igdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"games-api-go/logcolors"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// expiryMargin is subtracted from expires_in so a token is never used in its last minute
const expiryMargin = 60 * time.Second

// TokenSource owns the Twitch app access token used for IGDB calls
type TokenSource struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
	now          func() time.Time
	onRenew      func()

	mu     sync.RWMutex
	token  string
	expiry time.Time

	group singleflight.Group
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// NewTokenSource creates a token source for the client-credentials flow
func NewTokenSource(clientID, clientSecret, tokenURL string, httpClient *http.Client, now func() time.Time) *TokenSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if now == nil {
		now = time.Now
	}
	return &TokenSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		httpClient:   httpClient,
		now:          now,
	}
}

// cached returns the token if it is still valid
func (ts *TokenSource) cached() (string, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if ts.token != "" && ts.now().Before(ts.expiry) {
		return ts.token, true
	}
	return "", false
}

// Token returns a valid access token, renewing it when expired. Concurrent
// callers share one exchange.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	if token, ok := ts.cached(); ok {
		return token, nil
	}

	v, err, _ := ts.group.Do("token", func() (interface{}, error) {
		// Another caller may have renewed while we waited
		if token, ok := ts.cached(); ok {
			return token, nil
		}
		// Shared by every waiter, so one caller going away must not fail the rest
		return ts.renew(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (ts *TokenSource) renew(ctx context.Context) (string, error) {
	log.Infof("%s Renewing IGDB access token", logcolors.LogToken)

	form := url.Values{}
	form.Set("client_id", ts.clientID)
	form.Set("client_secret", ts.clientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		log.Errorf("%s Token request failed: %v", logcolors.LogAuthError, err)
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AuthError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Errorf("%s Token request returned %d: %s", logcolors.LogAuthError, resp.StatusCode, string(body))
		return "", &AuthError{Status: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &AuthError{Status: resp.StatusCode, Err: fmt.Errorf("decoding token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return "", &AuthError{Status: resp.StatusCode, Body: string(body), Err: fmt.Errorf("empty access token")}
	}

	expiry := ts.now().Add(time.Duration(tr.ExpiresIn)*time.Second - expiryMargin)

	ts.mu.Lock()
	ts.token = tr.AccessToken
	ts.expiry = expiry
	ts.mu.Unlock()

	if ts.onRenew != nil {
		ts.onRenew()
	}

	log.Infof("%s New access token acquired, expires at %s", logcolors.LogToken, expiry.Format(time.RFC3339))
	return tr.AccessToken, nil
}

// Invalidate drops the cached token so the next call renews it
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.token = ""
	ts.expiry = time.Time{}
}

// Expiry returns when the cached token stops being used, zero if none
func (ts *TokenSource) Expiry() time.Time {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.expiry
}
