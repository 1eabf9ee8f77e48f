package igdb

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"games-api-go/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchAnswer = `[
	{"id": 1, "slug": "zelda-ii", "name": "Zelda II", "rating_count": 40, "cover": {"id": 9, "image_id": "co1abc"}},
	{"id": 2, "name": "Zelda Untitled", "rating_count": 900},
	{"id": 3, "slug": "zelda", "name": "The Legend of Zelda", "rating_count": 900, "rating": 88.5}
]`

func TestSearchGamesNormalizesAndSortsByPopularity(t *testing.T) {
	f := newFakeIGDB(t)
	f.set(func(f *fakeIGDB) { f.respond = func(string) string { return searchAnswer } })
	c := NewClient(f.options(newTestClock()))

	games, err := c.SearchGames(context.Background(), "zelda", 0)
	require.NoError(t, err)
	require.Len(t, games, 3)

	// rating_count desc, upstream order kept on ties
	assert.Equal(t, []int{2, 3, 1}, []int{games[0].ID, games[1].ID, games[2].ID})
	assert.Equal(t, "game-2", games[0].Slug)
	assert.Equal(t, "https://images.igdb.com/igdb/image/upload/t_cover_big/co1abc.jpg", games[2].Cover.URL)

	body := f.lastBody()
	assert.Contains(t, body, `"zelda"`)
	assert.Contains(t, body, "rating_count >= 5")
	assert.Contains(t, body, "cover != null")
}

func TestSearchGamesFallsBackToNameMatch(t *testing.T) {
	f := newFakeIGDB(t)
	f.set(func(f *fakeIGDB) {
		f.respond = func(body string) string {
			if strings.Contains(body, "name ~") {
				return `[{"id": 7, "slug": "obscure", "name": "Obscure Zelda Clone"}]`
			}
			return `[]`
		}
	})
	c := NewClient(f.options(newTestClock()))

	games, err := c.SearchGames(context.Background(), "obscure", 0)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, 7, games[0].ID)

	_, calls := f.counts()
	assert.Equal(t, 2, calls)
	assert.Contains(t, f.lastBody(), `name ~ *"obscure"*`)
	assert.NotContains(t, f.lastBody(), "rating_count >=")
}

func TestSearchGamesEmptyResultIsEmptySlice(t *testing.T) {
	f := newFakeIGDB(t)
	c := NewClient(f.options(newTestClock()))

	games, err := c.SearchGames(context.Background(), "nothing", 0)
	require.NoError(t, err)
	assert.NotNil(t, games)
	assert.Empty(t, games)
}

func TestSearchGamesIsCachedPerQueryAndLimit(t *testing.T) {
	f := newFakeIGDB(t)
	f.set(func(f *fakeIGDB) { f.respond = func(string) string { return searchAnswer } })
	clock := newTestClock()
	opts := f.options(clock)
	s := stats.New()
	opts.Stats = s
	c := NewClient(opts)
	ctx := context.Background()

	c.SearchGames(ctx, "zelda", 0)
	c.SearchGames(ctx, "zelda", 20)
	_, calls := f.counts()
	assert.Equal(t, 1, calls, "default limit shares the plain search key")
	assert.True(t, c.Cache().HasFresh("search", "zelda"))

	c.SearchGames(ctx, "zelda", 5)
	_, calls = f.counts()
	assert.Equal(t, 2, calls)
	assert.True(t, c.Cache().HasFresh("search", "zelda|limit-5"))

	clock.Advance(5*time.Minute + time.Millisecond)
	c.SearchGames(ctx, "zelda", 0)
	_, calls = f.counts()
	assert.Equal(t, 3, calls, "stale entry is refetched")

	assert.Equal(t, int64(1), s.CacheHits.Load())
	assert.Equal(t, int64(3), s.CacheMisses.Load())
}

func TestSearchGamesErrorsAreNotCached(t *testing.T) {
	f := newFakeIGDB(t)
	f.set(func(f *fakeIGDB) { f.gamesStatus = http.StatusInternalServerError })
	c := NewClient(f.options(newTestClock()))
	ctx := context.Background()

	_, err := c.SearchGames(ctx, "zelda", 0)
	require.Error(t, err)
	assert.False(t, c.Cache().HasFresh("search", "zelda"))

	f.set(func(f *fakeIGDB) { f.gamesStatus = http.StatusOK })
	_, err = c.SearchGames(ctx, "zelda", 0)
	assert.NoError(t, err)
}

func TestSearchQueryIsEscaped(t *testing.T) {
	f := newFakeIGDB(t)
	c := NewClient(f.options(newTestClock()))

	c.SearchGames(context.Background(), `bad"; fields *;`, 0)
	assert.Contains(t, f.lastBody(), `bad\"; fields *;`)
}

func TestGetPopularGamesUsesLongerTTL(t *testing.T) {
	f := newFakeIGDB(t)
	f.set(func(f *fakeIGDB) { f.respond = func(string) string { return `[{"id": 5, "slug": "halo", "name": "Halo"}]` } })
	clock := newTestClock()
	c := NewClient(f.options(clock))
	ctx := context.Background()

	games, err := c.GetPopularGames(ctx, 20)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.True(t, c.Cache().HasFresh("popular", "limit-20"))
	assert.Contains(t, f.lastBody(), "rating_count")

	clock.Advance(29 * time.Minute)
	c.GetPopularGames(ctx, 20)
	_, calls := f.counts()
	assert.Equal(t, 1, calls)

	clock.Advance(time.Minute + time.Millisecond)
	c.GetPopularGames(ctx, 20)
	_, calls = f.counts()
	assert.Equal(t, 2, calls)
}

func TestGetGameDetails(t *testing.T) {
	f := newFakeIGDB(t)
	f.set(func(f *fakeIGDB) {
		f.respond = func(body string) string {
			if strings.Contains(body, "id = 1022") {
				return `[{
					"id": 1022, "name": "The Legend of Zelda",
					"screenshots": [{"id": 1, "image_id": "sc1"}],
					"similar_games": [{"id": 5, "name": "Zelda II"}],
					"involved_companies": [
						{"company": {"name": "Nintendo R&D4"}, "developer": true},
						{"company": {"name": "Nintendo"}, "publisher": true}
					]
				}]`
			}
			return `[]`
		}
	})
	c := NewClient(f.options(newTestClock()))
	ctx := context.Background()

	game, err := c.GetGameDetails(ctx, 1022)
	require.NoError(t, err)
	require.NotNil(t, game)
	assert.Equal(t, "game-1022", game.Slug)
	assert.Equal(t, "game-5", game.SimilarGames[0].Slug)
	assert.Equal(t, "https://images.igdb.com/igdb/image/upload/t_screenshot_big/sc1.jpg", game.Screenshots[0].URL)
	assert.Equal(t, []string{"Nintendo R&D4"}, game.Developers())
	assert.Equal(t, []string{"Nintendo"}, game.Publishers())
	assert.Contains(t, f.lastBody(), "involved_companies.company.name")
}

func TestGetGameDetailsAbsentIsNegativelyCached(t *testing.T) {
	f := newFakeIGDB(t)
	opts := f.options(newTestClock())
	s := stats.New()
	opts.Stats = s
	c := NewClient(opts)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		game, err := c.GetGameDetails(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, game)
	}

	_, calls := f.counts()
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(2), s.NegativeCacheHits.Load())
}

func TestGetGameBySlug(t *testing.T) {
	f := newFakeIGDB(t)
	f.set(func(f *fakeIGDB) {
		f.respond = func(body string) string {
			if strings.Contains(body, `slug = "super-mario-64"`) {
				return `[{"id": 1074, "slug": "super-mario-64", "name": "Super Mario 64"}]`
			}
			return `[]`
		}
	})
	c := NewClient(f.options(newTestClock()))
	ctx := context.Background()

	game, err := c.GetGameBySlug(ctx, "super-mario-64")
	require.NoError(t, err)
	require.NotNil(t, game)
	assert.Equal(t, 1074, game.ID)
	assert.Equal(t, "slug:super-mario-64", firstKey(c.RateLimitStats()))

	missing, err := c.GetGameBySlug(ctx, "no-such-game")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func firstKey(m map[string]RateLimitCounter) string {
	for k := range m {
		return k
	}
	return ""
}

func TestGetSimilarGames(t *testing.T) {
	f := newFakeIGDB(t)
	f.set(func(f *fakeIGDB) {
		f.respond = func(string) string {
			return `[{"id": 1, "slug": "a", "name": "A", "similar_games": [
				{"id": 2, "slug": "b", "name": "B"},
				{"id": 3, "slug": "c", "name": "C"},
				{"id": 4, "slug": "d", "name": "D"}
			]}]`
		}
	})
	c := NewClient(f.options(newTestClock()))

	similar, err := c.GetSimilarGames(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, similar, 2)
	assert.Equal(t, "b", similar[0].Slug)
}

func TestGetSimilarGamesMissingGame(t *testing.T) {
	f := newFakeIGDB(t)
	c := NewClient(f.options(newTestClock()))

	similar, err := c.GetSimilarGames(context.Background(), 404, 6)
	require.NoError(t, err)
	assert.NotNil(t, similar)
	assert.Empty(t, similar)
}

func TestMalformedUpstreamBody(t *testing.T) {
	f := newFakeIGDB(t)
	f.set(func(f *fakeIGDB) { f.respond = func(string) string { return `{"not": "a list"}` } })
	c := NewClient(f.options(newTestClock()))

	_, err := c.GetGameDetails(context.Background(), 1)
	var ue *UpstreamError
	assert.True(t, errors.As(err, &ue))
}

func TestImageURL(t *testing.T) {
	assert.Equal(t, "https://images.igdb.com/igdb/image/upload/t_thumb/abc.jpg", ImageURL("abc", SizeThumb))
	assert.Equal(t, "https://images.igdb.com/igdb/image/upload/t_cover_big/abc.jpg", ImageURL("abc", ""))
	assert.Empty(t, ImageURL("", SizeThumb))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `a\"b`, quote(`a"b`))
	assert.Equal(t, `a\\b`, quote(`a\b`))
	assert.Equal(t, "plain", quote("plain"))
}

func TestTrackCacheStatus(t *testing.T) {
	f := newFakeIGDB(t)
	f.set(func(f *fakeIGDB) { f.respond = func(string) string { return searchAnswer } })
	c := NewClient(f.options(newTestClock()))

	ctx, status := TrackCacheStatus(context.Background())
	assert.Equal(t, "", status.String())

	_, err := c.SearchGames(ctx, "zelda", 0)
	require.NoError(t, err)
	assert.Equal(t, CacheMiss, status.String())

	_, err = c.SearchGames(ctx, "zelda", 0)
	require.NoError(t, err)
	assert.Equal(t, CacheHit, status.String())

	f.set(func(f *fakeIGDB) { f.respond = func(string) string { return `[]` } })
	ctx, status = TrackCacheStatus(context.Background())
	_, err = c.GetGameBySlug(ctx, "missing")
	require.NoError(t, err)
	_, err = c.GetGameBySlug(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, CacheNegativeHit, status.String())

	// Untracked contexts are ignored
	_, err = c.GetGameBySlug(context.Background(), "missing")
	assert.NoError(t, err)
}
