package middleware

import (
	"net/http"
	"time"

	"games-api-go/logcolors"
	"games-api-go/stats"

	log "github.com/sirupsen/logrus"
)

// ResponseRecorder captures the status code and body size of a response
type ResponseRecorder struct {
	http.ResponseWriter
	StatusCode int
	BodySize   int
}

func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (r *ResponseRecorder) WriteHeader(code int) {
	r.StatusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *ResponseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.BodySize += n
	return n, err
}

func getStatusColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return logcolors.Green
	case code >= 300 && code < 400:
		return logcolors.Cyan
	case code >= 400 && code < 500:
		return logcolors.Yellow
	case code >= 500:
		return logcolors.Red
	default:
		return logcolors.Reset
	}
}

// LoggingMiddleware logs method, path, status, size and latency of every request
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewResponseRecorder(w)

		next.ServeHTTP(rec, r)

		color := getStatusColor(rec.StatusCode)
		log.Infof("%s %s %s %s%d%s %dB %v",
			logcolors.LogRequest, r.Method, r.URL.Path,
			color, rec.StatusCode, logcolors.Reset,
			rec.BodySize, time.Since(start))
	})
}

// StatsMiddleware feeds request counts, status codes and latencies into s
func StatsMiddleware(s *stats.Stats) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := NewResponseRecorder(w)

			next.ServeHTTP(rec, r)

			s.RecordRequest(r.URL.Path)
			s.RecordStatusCode(rec.StatusCode)
			s.RecordResponseTime(time.Since(start), r.URL.Path)
		})
	}
}
