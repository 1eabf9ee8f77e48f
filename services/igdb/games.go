package igdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"games-api-go/cache"
	"games-api-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// cachedFetch returns the fresh cached value for action:id or calls fetch and caches its result.
// Errors are never cached; nil results are, as negative entries.
func cachedFetch[T any](ctx context.Context, c *Client, action, id string, fetch func() (T, error)) (T, error) {
	if v, ok := cache.GetJSON[T](c.cache, action, id); ok {
		log.Debugf("%s Cache hit for %s", logcolors.LogCacheGames, cache.Key(action, id))
		if isNil(v) {
			markCacheStatus(ctx, CacheNegativeHit)
		} else {
			markCacheStatus(ctx, CacheHit)
		}
		if c.stats != nil {
			if isNil(v) {
				c.stats.RecordNegativeCacheHit()
			} else {
				c.stats.RecordCacheHit()
			}
		}
		return v, nil
	}
	markCacheStatus(ctx, CacheMiss)
	if c.stats != nil {
		c.stats.RecordCacheMiss()
	}

	v, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}
	if err := cache.SetJSON(c.cache, action, id, v); err != nil {
		log.Warnf("%s Failed to cache %s: %v", logcolors.LogCacheGames, cache.Key(action, id), err)
	}
	return v, nil
}

func isNil(v any) bool {
	switch x := v.(type) {
	case *Game:
		return x == nil
	case []Game:
		return x == nil
	}
	return v == nil
}

func (c *Client) fetchGames(ctx context.Context, body, identifier string) ([]Game, error) {
	payload, err := c.Request(ctx, body, identifier)
	if err != nil {
		return nil, err
	}
	var games []Game
	if err := json.Unmarshal(payload, &games); err != nil {
		return nil, &UpstreamError{Status: 200, Body: truncate(string(payload), 200), Err: fmt.Errorf("decoding games: %w", err)}
	}
	return normalizeAll(games), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// sortByPopularity orders games by rating_count desc, keeping upstream order on ties
func sortByPopularity(games []Game) {
	sort.SliceStable(games, func(i, j int) bool {
		return games[i].RatingCount > games[j].RatingCount
	})
}

func (c *Client) searchCacheID(query string, limit int) string {
	if limit == c.defaultSearchLimit {
		return query
	}
	return fmt.Sprintf("%s|limit-%d", query, limit)
}

// SearchGames runs a quality-filtered text search, falling back to a
// name-contains match when the search finds nothing. Results are ordered by
// popularity. A limit <= 0 uses the default search limit.
func (c *Client) SearchGames(ctx context.Context, query string, limit int) ([]Game, error) {
	if limit <= 0 {
		limit = c.defaultSearchLimit
	}
	limit = clampLimit(limit)
	identifier := cache.Key(cache.ActionSearch, query)

	return cachedFetch(ctx, c, cache.ActionSearch, c.searchCacheID(query, limit), func() ([]Game, error) {
		body, err := searchQuery(query, limit, c.minRatingCount)
		if err != nil {
			return nil, fmt.Errorf("building search query: %w", err)
		}
		games, err := c.fetchGames(ctx, body, identifier)
		if err != nil {
			return nil, err
		}

		if len(games) == 0 {
			log.Infof("%s No results for %q, trying name match", logcolors.LogFallback, query)
			body, err = fallbackSearchQuery(query, limit)
			if err != nil {
				return nil, fmt.Errorf("building fallback query: %w", err)
			}
			games, err = c.fetchGames(ctx, body, identifier)
			if err != nil {
				return nil, err
			}
		}

		sortByPopularity(games)
		if games == nil {
			games = []Game{}
		}
		log.Infof("%s %q returned %d games", logcolors.LogSearch, query, len(games))
		return games, nil
	})
}

// GetPopularGames returns the most-rated games passing the quality filter
func (c *Client) GetPopularGames(ctx context.Context, limit int) ([]Game, error) {
	if limit <= 0 {
		limit = c.defaultSearchLimit
	}
	limit = clampLimit(limit)
	id := fmt.Sprintf("limit-%d", limit)

	return cachedFetch(ctx, c, cache.ActionPopular, id, func() ([]Game, error) {
		body, err := popularQuery(limit, c.minRatingCount)
		if err != nil {
			return nil, fmt.Errorf("building popular query: %w", err)
		}
		games, err := c.fetchGames(ctx, body, cache.Key(cache.ActionPopular, id))
		if err != nil {
			return nil, err
		}
		if games == nil {
			games = []Game{}
		}
		return games, nil
	})
}

// GetGameDetails returns the full record for id, or nil when IGDB has none
func (c *Client) GetGameDetails(ctx context.Context, id int) (*Game, error) {
	key := strconv.Itoa(id)
	return cachedFetch(ctx, c, cache.ActionDetails, key, func() (*Game, error) {
		body, err := detailsQuery(id)
		if err != nil {
			return nil, fmt.Errorf("building details query: %w", err)
		}
		games, err := c.fetchGames(ctx, body, cache.Key(cache.ActionDetails, key))
		if err != nil || len(games) == 0 {
			return nil, err
		}
		return &games[0], nil
	})
}

// GetGameBySlug returns the record whose slug matches exactly, or nil
func (c *Client) GetGameBySlug(ctx context.Context, slug string) (*Game, error) {
	return cachedFetch(ctx, c, cache.ActionSlug, slug, func() (*Game, error) {
		body, err := slugQuery(slug)
		if err != nil {
			return nil, fmt.Errorf("building slug query: %w", err)
		}
		games, err := c.fetchGames(ctx, body, cache.Key(cache.ActionSlug, slug))
		if err != nil || len(games) == 0 {
			return nil, err
		}
		return &games[0], nil
	})
}

// GetSimilarGames returns up to limit games IGDB lists as similar to id.
// A missing game yields an empty list.
func (c *Client) GetSimilarGames(ctx context.Context, id, limit int) ([]Game, error) {
	game, err := c.GetGameDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return []Game{}, nil
	}

	similar := game.SimilarGames
	if limit > 0 && len(similar) > limit {
		similar = similar[:limit]
	}
	if similar == nil {
		similar = []Game{}
	}
	return similar, nil
}
