package resolver

import (
	"math"
	"strings"
	"time"

	"games-api-go/services/igdb"
)

const secondsPerYear = 365 * 24 * 60 * 60

// MatchScore ranks a candidate against the title derived from slug. Slug
// equality dominates, then exact and partial name matches, then rating and
// recency.
func MatchScore(game *igdb.Game, title, slug string, now time.Time) float64 {
	if game == nil {
		return -1
	}

	score := 0.0
	name := strings.ToLower(game.Name)
	wanted := strings.ToLower(title)

	if name == wanted {
		score += 100
	}
	if strings.Contains(name, wanted) {
		score += 50
	}
	if game.Slug == slug {
		score += 200
	}
	if game.Rating != 0 {
		score += game.Rating / 10
	}
	if game.FirstReleaseDate != 0 {
		yearsAgo := float64(now.Unix()-game.FirstReleaseDate) / secondsPerYear
		score += math.Max(0, 20-yearsAgo)
	}
	return score
}

// BestMatch returns the highest scoring candidate. Ties keep the earliest one.
func BestMatch(games []igdb.Game, title, slug string, now time.Time) *igdb.Game {
	if len(games) == 0 {
		return nil
	}

	best := 0
	bestScore := MatchScore(&games[0], title, slug, now)
	for i := 1; i < len(games); i++ {
		if s := MatchScore(&games[i], title, slug, now); s > bestScore {
			best, bestScore = i, s
		}
	}

	match := games[best]
	return &match
}
