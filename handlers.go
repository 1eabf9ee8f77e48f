package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"games-api-go/config"
	"games-api-go/logcolors"
	"games-api-go/services/collection"
	"games-api-go/services/igdb"
	"games-api-go/services/resolver"
	"games-api-go/stats"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

func decodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

// writeUpstreamError maps igdb errors onto HTTP statuses:
// rate limit 429, upstream or token failures 503, anything else 500
func writeUpstreamError(resp *APIResponse, action string, err error) {
	var rateErr *igdb.RateLimitError
	var upstreamErr *igdb.UpstreamError
	var authErr *igdb.AuthError

	switch {
	case errors.As(err, &rateErr):
		log.Warnf("%s %s refused: %v", logcolors.LogDispatch, action, err)
		resp.Error(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
	case igdb.IsCircuitOpen(err):
		log.Warnf("%s %s skipped, circuit open", logcolors.LogDispatch, action)
		resp.Error(http.StatusServiceUnavailable, "Game database temporarily unavailable")
	case errors.As(err, &upstreamErr), errors.As(err, &authErr):
		log.Errorf("%s %s failed upstream: %v", logcolors.LogDispatch, action, err)
		resp.Error(http.StatusServiceUnavailable, "Game database temporarily unavailable")
	default:
		log.Errorf("%s %s failed: %v", logcolors.LogDispatch, action, err)
		resp.Error(http.StatusInternalServerError, "Internal server error")
	}
}

// dispatchGames serves POST /api/games
func dispatchGames(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	resp := Respond(w, r)

	var req GamesRequest
	if err := decodeBody(r, &req); err != nil {
		log.Debugf("%s Bad body: %v", logcolors.LogDispatch, err)
		resp.Error(http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Action == "" {
		resp.Error(http.StatusBadRequest, "Action is required")
		return
	}

	log.Infof("%s action=%s query=%q gameId=%d slug=%q", logcolors.LogDispatch, req.Action, req.Query, req.GameID.Value, req.Slug)

	ctx, cacheStatus := igdb.TrackCacheStatus(r.Context())

	switch req.Action {
	case actionSearch:
		req.Query = strings.TrimSpace(req.Query)
		if utf8.RuneCountInString(req.Query) < minQueryLength {
			resp.Error(http.StatusBadRequest, "Query must be at least 2 characters")
			return
		}
		stats.Get().RecordAction(req.Action)

		searchCtx, cancel := context.WithTimeout(ctx, config.Seconds(conf.Configuration.SearchTimeoutSecs))
		defer cancel()

		games, err := igdbClient.SearchGames(searchCtx, req.Query, req.Limit)
		if err != nil {
			writeUpstreamError(resp, req.Action, err)
			return
		}
		resp.SetCacheStatus(cacheStatus.String()).JSON(games)

	case actionDetails:
		if !req.GameID.Set {
			resp.Error(http.StatusBadRequest, "Game ID is required")
			return
		}
		stats.Get().RecordAction(req.Action)

		game, err := igdbClient.GetGameDetails(ctx, req.GameID.Value)
		if err != nil {
			writeUpstreamError(resp, req.Action, err)
			return
		}
		resp.SetCacheStatus(cacheStatus.String())
		if game == nil {
			resp.Error(http.StatusNotFound, "Game not found")
			return
		}
		resp.JSON(newGameDetailsResponse(game))

	case actionSlug:
		if strings.TrimSpace(req.Slug) == "" {
			resp.Error(http.StatusBadRequest, "Slug is required")
			return
		}
		stats.Get().RecordAction(req.Action)

		result := gameResolver.Resolve(ctx, req.Slug)
		resp.SetStrategy(result.Strategy)
		if result.Strategy == resolver.StrategyCache {
			resp.SetCacheStatus(igdb.CacheHit)
		}
		if result.Game == nil {
			resp.Error(http.StatusNotFound, "Game not found")
			return
		}
		resp.JSON(result.Game)

	case actionPopular:
		stats.Get().RecordAction(req.Action)

		games, err := igdbClient.GetPopularGames(ctx, req.Limit)
		if err != nil {
			writeUpstreamError(resp, req.Action, err)
			return
		}
		resp.SetCacheStatus(cacheStatus.String()).JSON(games)

	case actionSimilar:
		if !req.GameID.Set {
			resp.Error(http.StatusBadRequest, "Game ID is required")
			return
		}
		stats.Get().RecordAction(req.Action)

		limit := req.Limit
		if limit <= 0 {
			limit = conf.Configuration.DefaultSimilarLimit
		}
		games, err := igdbClient.GetSimilarGames(ctx, req.GameID.Value, limit)
		if err != nil {
			writeUpstreamError(resp, req.Action, err)
			return
		}
		resp.SetCacheStatus(cacheStatus.String()).JSON(games)

	default:
		resp.Error(http.StatusBadRequest, "Invalid action")
		return
	}

	log.Infof("%s %s completed in %v", logcolors.LogDispatch, req.Action, time.Since(start))
}

// resolveGame serves GET /api/games/{slug}
func resolveGame(w http.ResponseWriter, r *http.Request) {
	identifier := mux.Vars(r)["slug"]
	stats.Get().RecordAction(actionSlug)

	result := gameResolver.Resolve(r.Context(), identifier)
	resp := Respond(w, r).SetStrategy(result.Strategy)
	if result.Strategy == resolver.StrategyCache {
		resp.SetCacheStatus(igdb.CacheHit)
	}

	if result.Game == nil {
		resp.Error(http.StatusNotFound, "Game not found")
		return
	}
	resp.JSON(result)
}

func getHealthStatus(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:         "healthy",
		CacheSize:      igdbClient.CacheSize(),
		MemoSize:       gameResolver.MemoSize(),
		RateLimitStats: igdbClient.RateLimitStats(),
		Strategies:     gameResolver.Strategies(),
	}

	// If circuit breaker is open, mark as degraded
	if cb := igdbClient.Breaker(); cb != nil {
		snapshot := cb.Snapshot()
		health.CircuitBreaker = &snapshot
		if snapshot.State != "CLOSED" {
			health.Status = "degraded"
		}
	}

	Respond(w, r).JSON(health)
}

func getStats(w http.ResponseWriter, r *http.Request) {
	snapshot := stats.Get().Snapshot()

	storage := map[string]interface{}{
		"keys":       igdbClient.CacheSize(),
		"memo_keys":  gameResolver.MemoSize(),
		"persistent": persistentStore != nil,
	}
	if persistentStore != nil {
		_, sizeInKB := persistentStore.Stats()
		storage["size_kb"] = sizeInKB
		storage["size_mb"] = float64(sizeInKB) / 1024
	}
	snapshot["cache_storage"] = storage

	if cb := igdbClient.Breaker(); cb != nil {
		snapshot["circuit_breaker"] = cb.Snapshot()
	}
	if collectionStore != nil {
		snapshot["collection"] = map[string]interface{}{
			"games": collectionStore.Len(),
		}
	}

	Respond(w, r).JSON(snapshot)
}

func collectionID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	return id, err == nil && id > 0
}

// listCollection serves GET /collection?sort=dateAdded|releaseDate|name
func listCollection(w http.ResponseWriter, r *http.Request) {
	resp := Respond(w, r)
	order := r.URL.Query().Get("sort")
	if !collection.ValidSort(order) {
		resp.Error(http.StatusBadRequest, "Invalid sort, expected dateAdded, releaseDate or name")
		return
	}
	if order == "" {
		order = collection.SortDateAdded
	}

	entries, err := collectionStore.List(order)
	if err != nil {
		log.Errorf("%s %v", logcolors.LogCollection, err)
		resp.Error(http.StatusInternalServerError, "Internal server error")
		return
	}
	resp.JSON(CollectionResponse{Count: len(entries), Sort: order, Games: entries})
}

// addToCollection serves POST /collection with a game record body
func addToCollection(w http.ResponseWriter, r *http.Request) {
	resp := Respond(w, r)

	var game igdb.Game
	if err := decodeBody(r, &game); err != nil {
		resp.Error(http.StatusBadRequest, "Invalid request body")
		return
	}

	added, err := collectionStore.Add(game)
	if errors.Is(err, collection.ErrInvalidGame) {
		resp.Error(http.StatusBadRequest, "Game ID is required")
		return
	}
	if err != nil {
		log.Errorf("%s %v", logcolors.LogCollection, err)
		resp.Error(http.StatusInternalServerError, "Internal server error")
		return
	}

	entry, err := collectionStore.Get(game.ID)
	if err != nil {
		log.Errorf("%s %v", logcolors.LogCollection, err)
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	resp.Status(status, AddCollectionResponse{Added: added, Entry: entry})
}

// getCollectionEntry serves GET /collection/{id}, reporting membership
func getCollectionEntry(w http.ResponseWriter, r *http.Request) {
	resp := Respond(w, r)
	id, ok := collectionID(r)
	if !ok {
		resp.Error(http.StatusBadRequest, "Invalid game ID")
		return
	}

	entry, err := collectionStore.Get(id)
	if err != nil {
		log.Errorf("%s %v", logcolors.LogCollection, err)
		resp.Error(http.StatusInternalServerError, "Internal server error")
		return
	}
	resp.JSON(MembershipResponse{ID: id, Collected: entry != nil, Entry: entry})
}

// removeFromCollection serves DELETE /collection/{id}
func removeFromCollection(w http.ResponseWriter, r *http.Request) {
	resp := Respond(w, r)
	id, ok := collectionID(r)
	if !ok {
		resp.Error(http.StatusBadRequest, "Invalid game ID")
		return
	}

	removed, err := collectionStore.Remove(id)
	if err != nil {
		log.Errorf("%s %v", logcolors.LogCollection, err)
		resp.Error(http.StatusInternalServerError, "Internal server error")
		return
	}
	if !removed {
		resp.Error(http.StatusNotFound, "Game not in collection")
		return
	}
	resp.JSON(map[string]interface{}{"removed": true, "id": id})
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"endpoints": map[string]string{
			"POST /api/games":         `{"action": "search|details|slug|popular|similar", "query", "gameId", "slug", "limit"}`,
			"GET /api/games/{slug}":   "resolve a slug, game-<id> or title to one game",
			"GET /health":             "cache size, rate-limit counters and circuit breaker",
			"GET /stats":              "request, cache, upstream and resolution counters",
			"GET /collection":         "saved games, ?sort=dateAdded|releaseDate|name",
			"POST /collection":        "save a game record",
			"GET /collection/{id}":    "whether a game is saved",
			"DELETE /collection/{id}": "remove a saved game",
		},
	})
}
