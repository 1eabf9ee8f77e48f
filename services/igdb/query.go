package igdb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Henry-Sarabia/apicalypse"
)

var searchFields = []string{
	"name",
	"slug",
	"cover.image_id",
	"first_release_date",
	"rating",
	"rating_count",
	"platforms.name",
	"summary",
}

var detailFields = append(append([]string{}, searchFields...),
	"screenshots.image_id",
	"similar_games.name",
	"similar_games.slug",
	"similar_games.cover.image_id",
	"similar_games.first_release_date",
	"similar_games.rating",
	"genres.name",
	"involved_companies.company.name",
	"involved_companies.developer",
	"involved_companies.publisher",
	"websites.category",
	"websites.url",
)

const maxQueryLimit = 500

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quote escapes s for use inside an IGDB string literal
func quote(s string) string {
	return quoteEscaper.Replace(s)
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

func qualityFilter(minRatingCount int) string {
	return fmt.Sprintf("cover != null & rating_count >= %d", minRatingCount)
}

// searchQuery is a text search restricted to records with a cover and enough ratings
func searchQuery(term string, limit, minRatingCount int) (string, error) {
	return apicalypse.Query(
		apicalypse.Search("", quote(term)),
		apicalypse.Fields(searchFields...),
		apicalypse.Where(qualityFilter(minRatingCount)),
		apicalypse.Limit(clampLimit(limit)),
	)
}

// fallbackSearchQuery matches names containing term, case-insensitively
func fallbackSearchQuery(term string, limit int) (string, error) {
	return apicalypse.Query(
		apicalypse.Fields(searchFields...),
		apicalypse.Where(fmt.Sprintf(`name ~ *"%s"* & cover != null`, quote(term))),
		apicalypse.Limit(clampLimit(limit)),
	)
}

func popularQuery(limit, minRatingCount int) (string, error) {
	return apicalypse.Query(
		apicalypse.Fields(searchFields...),
		apicalypse.Where(qualityFilter(minRatingCount)),
		apicalypse.Sort("rating_count", "desc"),
		apicalypse.Limit(clampLimit(limit)),
	)
}

func detailsQuery(id int) (string, error) {
	return apicalypse.Query(
		apicalypse.Fields(detailFields...),
		apicalypse.Where("id = "+strconv.Itoa(id)),
		apicalypse.Limit(1),
	)
}

func slugQuery(slug string) (string, error) {
	return apicalypse.Query(
		apicalypse.Fields(detailFields...),
		apicalypse.Where(fmt.Sprintf(`slug = "%s"`, quote(slug))),
		apicalypse.Limit(1),
	)
}
