package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"games-api-go/circuitbreaker"
	"games-api-go/services/collection"
	"games-api-go/services/igdb"
)

// Actions accepted by POST /api/games
const (
	actionSearch  = "search"
	actionDetails = "details"
	actionSlug    = "slug"
	actionPopular = "popular"
	actionSimilar = "similar"
)

const minQueryLength = 2

// GameID accepts both JSON numbers and numeric strings
type GameID struct {
	Value int
	Set   bool
}

func (g *GameID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	if raw == "" {
		return nil
	}

	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return fmt.Errorf("gameId must be a positive integer, got %s", string(data))
	}
	g.Value = id
	g.Set = true
	return nil
}

func (g GameID) MarshalJSON() ([]byte, error) {
	if !g.Set {
		return []byte("null"), nil
	}
	return json.Marshal(g.Value)
}

// GameDetailsResponse is a full game record plus company names flattened
// from involved_companies
type GameDetailsResponse struct {
	igdb.Game
	Developers []string `json:"developers,omitempty"`
	Publishers []string `json:"publishers,omitempty"`
}

func newGameDetailsResponse(game *igdb.Game) GameDetailsResponse {
	return GameDetailsResponse{
		Game:       *game,
		Developers: game.Developers(),
		Publishers: game.Publishers(),
	}
}

// GamesRequest is the body of POST /api/games
type GamesRequest struct {
	Action string `json:"action"`
	Query  string `json:"query,omitempty"`
	GameID GameID `json:"gameId"`
	Slug   string `json:"slug,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is served by GET /health and GET /api/games
type HealthResponse struct {
	Status         string                           `json:"status"`
	CacheSize      int                              `json:"cacheSize"`
	MemoSize       int                              `json:"memoSize"`
	RateLimitStats map[string]igdb.RateLimitCounter `json:"rateLimitStats"`
	CircuitBreaker *circuitbreaker.Snapshot         `json:"circuitBreaker,omitempty"`
	Strategies     []string                         `json:"strategies"`
}

// CollectionResponse is served by GET /collection
type CollectionResponse struct {
	Count int                `json:"count"`
	Sort  string             `json:"sort"`
	Games []collection.Entry `json:"games"`
}

// MembershipResponse is served by GET /collection/{id}
type MembershipResponse struct {
	ID        int               `json:"id"`
	Collected bool              `json:"collected"`
	Entry     *collection.Entry `json:"entry,omitempty"`
}

// AddCollectionResponse is served by POST /collection
type AddCollectionResponse struct {
	Added bool              `json:"added"`
	Entry *collection.Entry `json:"entry,omitempty"`
}
