package resolver

import (
	"context"
	"fmt"
	"strings"

	"games-api-go/cache"
	"games-api-go/logcolors"
	"games-api-go/services/igdb"
	"games-api-go/stats"

	log "github.com/sirupsen/logrus"
)

// Provenance values reported besides strategy names
const (
	StrategyCache = "cache"
	StrategyNone  = "none"
)

// ResolutionResult is the resolved game and which strategy produced it.
// Game is nil exactly when Strategy is "none".
type ResolutionResult struct {
	Game     *igdb.Game `json:"game"`
	Strategy string     `json:"strategy"`
}

// Resolver walks its strategies in order and memoizes the outcome per raw
// identifier, including misses. Concurrent resolutions of the same
// identifier are not coalesced; each walks the strategies and the last
// write wins.
type Resolver struct {
	strategies []Strategy
	memo       *cache.TTLCache
	stats      *stats.Stats
}

type Option func(*Resolver)

// WithMemo sets the memo cache. Entries are stored under the "resolve" action.
func WithMemo(memo *cache.TTLCache) Option {
	return func(r *Resolver) {
		r.memo = memo
	}
}

// WithStats records every resolution's provenance
func WithStats(s *stats.Stats) Option {
	return func(r *Resolver) {
		r.stats = s
	}
}

// New creates a resolver over strategies, tried in the given order
func New(strategies []Strategy, opts ...Option) *Resolver {
	r := &Resolver{strategies: strategies}
	for _, opt := range opts {
		opt(r)
	}
	if r.memo == nil {
		r.memo = cache.NewTTLCache(nil, cache.DefaultPolicy())
	}
	return r
}

// Strategies returns the strategy names in walk order
func (r *Resolver) Strategies() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// Resolve maps a slug, generated id slug or free text to one game
func (r *Resolver) Resolve(ctx context.Context, identifier string) ResolutionResult {
	result := r.resolve(ctx, identifier)
	if r.stats != nil {
		r.stats.RecordResolution(result.Strategy)
	}
	return result
}

func (r *Resolver) resolve(ctx context.Context, identifier string) ResolutionResult {
	if strings.TrimSpace(identifier) == "" {
		return ResolutionResult{Strategy: StrategyNone}
	}

	if game, ok := cache.GetJSON[*igdb.Game](r.memo, cache.ActionResolve, identifier); ok {
		if game == nil {
			log.Debugf("%s Negative memo hit for %q", logcolors.LogCacheNegative, identifier)
			return ResolutionResult{Strategy: StrategyNone}
		}
		log.Debugf("%s Memo hit for %q", logcolors.LogResolver, identifier)
		return ResolutionResult{Game: game, Strategy: StrategyCache}
	}

	for _, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			log.Warnf("%s Resolution of %q abandoned: %v", logcolors.LogResolver, identifier, err)
			return ResolutionResult{Strategy: StrategyNone}
		}

		game := r.try(ctx, s, identifier)
		if game == nil {
			continue
		}

		log.Infof("%s %q resolved by %s as %q", logcolors.LogResolver, identifier, s.Name(), game.Name)
		r.remember(identifier, game)
		return ResolutionResult{Game: game, Strategy: s.Name()}
	}

	if ctx.Err() != nil {
		return ResolutionResult{Strategy: StrategyNone}
	}

	log.Infof("%s No game found for %q", logcolors.LogResolver, identifier)
	r.remember(identifier, nil)
	return ResolutionResult{Strategy: StrategyNone}
}

// try runs one strategy, treating errors and panics as no result
func (r *Resolver) try(ctx context.Context, s Strategy, identifier string) (game *igdb.Game) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("%s %s panicked on %q: %v", logcolors.LogResolver, s.Name(), identifier, rec)
			game = nil
		}
	}()

	game, err := s.Search(ctx, identifier)
	if err != nil {
		log.Warnf("%s %s failed on %q: %v", logcolors.LogResolver, s.Name(), identifier, err)
		return nil
	}
	return game
}

func (r *Resolver) remember(identifier string, game *igdb.Game) {
	if err := cache.SetJSON(r.memo, cache.ActionResolve, identifier, game); err != nil {
		log.Warnf("%s %v", logcolors.LogResolver, fmt.Errorf("memoizing %q: %w", identifier, err))
	}
}

// Reset clears the memo
func (r *Resolver) Reset() {
	r.memo.Clear()
}

// MemoSize returns the number of memoized identifiers, hits and misses
func (r *Resolver) MemoSize() int {
	return r.memo.Len()
}
