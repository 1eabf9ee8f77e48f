package igdb

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"games-api-go/cache"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeIGDB serves both the Twitch token endpoint and the IGDB games endpoint
type fakeIGDB struct {
	mu sync.Mutex

	tokenCalls  int
	tokenStatus int
	tokenDelay  time.Duration
	expiresIn   int64
	lastForm    map[string]string

	gameCalls   int
	bodies      []string
	headers     []http.Header
	gamesStatus int
	// respond picks the JSON answer for a query body; nil answers "[]"
	respond func(body string) string

	server *httptest.Server
}

func newFakeIGDB(t *testing.T) *fakeIGDB {
	t.Helper()
	f := &fakeIGDB{
		tokenStatus: http.StatusOK,
		gamesStatus: http.StatusOK,
		expiresIn:   3600,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		f.mu.Lock()
		f.tokenCalls++
		n := f.tokenCalls
		status := f.tokenStatus
		delay := f.tokenDelay
		expires := f.expiresIn
		f.lastForm = map[string]string{
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
			"grant_type":    r.PostForm.Get("grant_type"),
		}
		f.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"message":"invalid client secret"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","expires_in":%d,"token_type":"bearer"}`, n, expires)
	})
	mux.HandleFunc("/v4/games", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body := string(data)

		f.mu.Lock()
		f.gameCalls++
		f.bodies = append(f.bodies, body)
		f.headers = append(f.headers, r.Header.Clone())
		status := f.gamesStatus
		respond := f.respond
		f.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"message":"upstream says no"}`))
			return
		}
		answer := "[]"
		if respond != nil {
			answer = respond(body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(answer))
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeIGDB) options(clock *testClock) Options {
	return Options{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		BaseURL:      f.server.URL + "/v4",
		TokenURL:     f.server.URL + "/oauth2/token",
		Now:          clock.Now,
		Cache:        cache.NewTTLCache(nil, cache.DefaultPolicy(), cache.WithClock(clock.Now)),
	}
}

func (f *fakeIGDB) counts() (tokens, games int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls, f.gameCalls
}

func (f *fakeIGDB) lastBody() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		return ""
	}
	return f.bodies[len(f.bodies)-1]
}

func (f *fakeIGDB) set(fn func(f *fakeIGDB)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}
