package main

import (
	"encoding/json"
	"net/http"

	"games-api-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// APIResponse handles consistent header setting and JSON responses.
// It centralizes X-Cache-Status and X-Resolution-Strategy so handlers only
// decide the values.
type APIResponse struct {
	w           http.ResponseWriter
	r           *http.Request
	cacheStatus string
	strategy    string
}

// Respond creates a response helper for the request
func Respond(w http.ResponseWriter, r *http.Request) *APIResponse {
	return &APIResponse{w: w, r: r}
}

// SetCacheStatus sets the X-Cache-Status header value
func (a *APIResponse) SetCacheStatus(status string) *APIResponse {
	a.cacheStatus = status
	return a
}

// SetStrategy sets the X-Resolution-Strategy header value
func (a *APIResponse) SetStrategy(strategy string) *APIResponse {
	a.strategy = strategy
	return a
}

func (a *APIResponse) writeHeaders() {
	a.w.Header().Set("Content-Type", "application/json")

	if a.cacheStatus != "" {
		a.w.Header().Set("X-Cache-Status", a.cacheStatus)
	}
	if a.strategy != "" {
		a.w.Header().Set("X-Resolution-Strategy", a.strategy)
	}
}

// JSON writes headers and encodes data as JSON (200 OK)
func (a *APIResponse) JSON(data interface{}) error {
	a.writeHeaders()
	return json.NewEncoder(a.w).Encode(data)
}

// Status writes headers, sets status code and encodes data
func (a *APIResponse) Status(statusCode int, data interface{}) error {
	a.writeHeaders()
	a.w.WriteHeader(statusCode)
	return json.NewEncoder(a.w).Encode(data)
}

// Error writes an ErrorResponse with the given status code
func (a *APIResponse) Error(statusCode int, message string) error {
	log.Debugf("%s %s %s -> %d: %s", logcolors.LogRequest, a.r.Method, a.r.URL.Path, statusCode, message)
	return a.Status(statusCode, ErrorResponse{Error: message})
}
