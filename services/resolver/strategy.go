package resolver

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"games-api-go/logcolors"
	"games-api-go/services/igdb"

	log "github.com/sirupsen/logrus"
)

const (
	NameExactSlug  = "ExactSlug"
	NameIDSearch   = "IDSearch"
	NameNameSearch = "NameSearch"
	NameLocalCache = "LocalCache"
)

// GameSource is the upstream the strategies query. *igdb.Client satisfies it.
type GameSource interface {
	GetGameBySlug(ctx context.Context, slug string) (*igdb.Game, error)
	GetGameDetails(ctx context.Context, id int) (*igdb.Game, error)
	SearchGames(ctx context.Context, query string, limit int) ([]igdb.Game, error)
}

// CollectionLookup finds a game already saved in the local collection
type CollectionLookup interface {
	FindBySlug(slug string) (*igdb.Game, error)
}

// Strategy is one way of turning an identifier into a game. Implementations
// in this package log upstream failures and report them as no result.
type Strategy interface {
	Name() string
	Search(ctx context.Context, identifier string) (*igdb.Game, error)
}

// ExactSlug asks IGDB for a record with exactly this slug
type ExactSlug struct {
	source GameSource
}

func NewExactSlug(source GameSource) *ExactSlug {
	return &ExactSlug{source: source}
}

func (s *ExactSlug) Name() string { return NameExactSlug }

func (s *ExactSlug) Search(ctx context.Context, slug string) (*igdb.Game, error) {
	game, err := s.source.GetGameBySlug(ctx, slug)
	if err != nil {
		log.Warnf("%s Lookup for %q failed: %v", logcolors.Strategy(s.Name()), slug, err)
		return nil, nil
	}
	return game, nil
}

var generatedSlug = regexp.MustCompile(`^game-(\d+)$`)

// IDSearch handles the synthesized "game-<id>" slugs by fetching the id directly
type IDSearch struct {
	source GameSource
}

func NewIDSearch(source GameSource) *IDSearch {
	return &IDSearch{source: source}
}

func (s *IDSearch) Name() string { return NameIDSearch }

func (s *IDSearch) Search(ctx context.Context, identifier string) (*igdb.Game, error) {
	m := generatedSlug.FindStringSubmatch(identifier)
	if m == nil {
		return nil, nil
	}

	id, err := strconv.Atoi(m[1])
	if err != nil {
		// digits overflowing int cannot be an IGDB id
		return nil, nil
	}

	log.Debugf("%s Slug looks generated, fetching id %d", logcolors.Strategy(s.Name()), id)
	game, err := s.source.GetGameDetails(ctx, id)
	if err != nil {
		log.Warnf("%s Details for %d failed: %v", logcolors.Strategy(s.Name()), id, err)
		return nil, nil
	}
	return game, nil
}

// NameSearch derives a title from the slug and text-searches it
type NameSearch struct {
	source     GameSource
	candidates int
	now        func() time.Time
}

// NewNameSearch creates the strategy. With candidates > 1 the best of the
// returned candidates is picked by MatchScore.
func NewNameSearch(source GameSource, candidates int, now func() time.Time) *NameSearch {
	if candidates < 1 {
		candidates = 1
	}
	if now == nil {
		now = time.Now
	}
	return &NameSearch{source: source, candidates: candidates, now: now}
}

func (s *NameSearch) Name() string { return NameNameSearch }

func (s *NameSearch) Search(ctx context.Context, slug string) (*igdb.Game, error) {
	title := SlugToTitle(slug)
	log.Debugf("%s Converted %q to %q", logcolors.Strategy(s.Name()), slug, title)

	games, err := s.source.SearchGames(ctx, title, s.candidates)
	if err != nil {
		log.Warnf("%s Search for %q failed: %v", logcolors.Strategy(s.Name()), title, err)
		return nil, nil
	}

	best := BestMatch(games, title, slug, s.now())
	if best != nil && len(games) > 1 {
		log.Infof("%s %s (score: %.1f)", logcolors.LogBestMatch, best.Name, MatchScore(best, title, slug, s.now()))
	}
	return best, nil
}

// LocalCache checks the saved collection. Without a lookup it never matches.
type LocalCache struct {
	lookup CollectionLookup
}

func NewLocalCache(lookup CollectionLookup) *LocalCache {
	return &LocalCache{lookup: lookup}
}

func (s *LocalCache) Name() string { return NameLocalCache }

func (s *LocalCache) Search(_ context.Context, slug string) (*igdb.Game, error) {
	if s.lookup == nil {
		return nil, nil
	}
	game, err := s.lookup.FindBySlug(slug)
	if err != nil {
		log.Warnf("%s Collection lookup for %q failed: %v", logcolors.Strategy(s.Name()), slug, err)
		return nil, nil
	}
	return game, nil
}

// DefaultStrategies returns the fixed lookup order:
// exact slug, generated id, derived name, local collection
func DefaultStrategies(source GameSource, lookup CollectionLookup, candidates int, now func() time.Time) []Strategy {
	return []Strategy{
		NewExactSlug(source),
		NewIDSearch(source),
		NewNameSearch(source, candidates, now),
		NewLocalCache(lookup),
	}
}
