package middleware

import (
	"games-api-go/logcolors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// IPRateLimiter keeps one token bucket per client IP
type IPRateLimiter struct {
	ips   map[string]*rate.Limiter
	mu    sync.Mutex
	rate  rate.Limit
	burst int
}

// NewIPRateLimiter creates a limiter allowing r requests per second with the given burst
func NewIPRateLimiter(r rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:   make(map[string]*rate.Limiter),
		rate:  r,
		burst: burst,
	}
}

// Limit returns the per-IP burst size
func (i *IPRateLimiter) Limit() int {
	return i.burst
}

// GetLimiter returns the bucket for ip, creating it on first use
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists := i.ips[ip]
	if !exists {
		limiter = rate.NewLimiter(i.rate, i.burst)
		i.ips[ip] = limiter
	}
	return limiter
}

// Remaining returns the whole tokens left for ip
func (i *IPRateLimiter) Remaining(ip string) int {
	return int(math.Floor(i.GetLimiter(ip).Tokens()))
}

// Len returns the number of tracked IPs
func (i *IPRateLimiter) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.ips)
}

// ClientIP prefers the first X-Forwarded-For hop, then RemoteAddr without its port
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimitMiddleware rejects requests over the per-IP budget with 429.
// Paths in exempt bypass the limiter. onReject, if set, is called for every
// rejected request.
func RateLimitMiddleware(limiter *IPRateLimiter, exempt []string, onReject func(r *http.Request)) func(http.Handler) http.Handler {
	exemptPaths := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		exemptPaths[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			l := limiter.GetLimiter(ip)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))

			if !l.Allow() {
				log.Warnf("%s Rate limit exceeded for %s on %s", logcolors.LogRateLimit, ip, r.URL.Path)
				if onReject != nil {
					onReject(r)
				}
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Too many requests"}`))
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(math.Floor(l.Tokens()))))
			next.ServeHTTP(w, r)
		})
	}
}
