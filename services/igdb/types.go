package igdb

import "strconv"

// Image is a cover or screenshot reference. URL is rewritten to the CDN
// template on normalization.
type Image struct {
	ID      int    `json:"id,omitempty"`
	ImageID string `json:"image_id,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Named is any IGDB entity only used for its name (platforms, genres, companies)
type Named struct {
	ID   int    `json:"id,omitempty"`
	Name string `json:"name"`
}

type InvolvedCompany struct {
	ID        int   `json:"id,omitempty"`
	Company   Named `json:"company"`
	Developer bool  `json:"developer"`
	Publisher bool  `json:"publisher"`
}

type Website struct {
	ID       int    `json:"id,omitempty"`
	Category int    `json:"category,omitempty"`
	URL      string `json:"url"`
}

// Game is the canonical game record handed to callers. Slug is never empty
// once a Game leaves this package.
type Game struct {
	ID                int               `json:"id"`
	Slug              string            `json:"slug"`
	Name              string            `json:"name"`
	Cover             *Image            `json:"cover,omitempty"`
	FirstReleaseDate  int64             `json:"first_release_date,omitempty"`
	Rating            float64           `json:"rating,omitempty"`
	RatingCount       int               `json:"rating_count,omitempty"`
	Platforms         []Named           `json:"platforms,omitempty"`
	Genres            []Named           `json:"genres,omitempty"`
	Summary           string            `json:"summary,omitempty"`
	Screenshots       []Image           `json:"screenshots,omitempty"`
	SimilarGames      []Game            `json:"similar_games,omitempty"`
	InvolvedCompanies []InvolvedCompany `json:"involved_companies,omitempty"`
	Websites          []Website         `json:"websites,omitempty"`
}

// FallbackSlug is the synthesized slug for records IGDB returns without one
func FallbackSlug(id int) string {
	return "game-" + strconv.Itoa(id)
}

// Developers returns the names of involved companies flagged as developer
func (g *Game) Developers() []string {
	var names []string
	for _, ic := range g.InvolvedCompanies {
		if ic.Developer && ic.Company.Name != "" {
			names = append(names, ic.Company.Name)
		}
	}
	return names
}

// Publishers returns the names of involved companies flagged as publisher
func (g *Game) Publishers() []string {
	var names []string
	for _, ic := range g.InvolvedCompanies {
		if ic.Publisher && ic.Company.Name != "" {
			names = append(names, ic.Company.Name)
		}
	}
	return names
}

// normalize applies the slug fallback and CDN URLs, recursing into similar games
func normalize(g *Game) {
	if g == nil {
		return
	}
	if g.Slug == "" {
		g.Slug = FallbackSlug(g.ID)
	}
	if g.Cover != nil && g.Cover.ImageID != "" {
		g.Cover.URL = ImageURL(g.Cover.ImageID, SizeCoverBig)
	}
	for i := range g.Screenshots {
		if g.Screenshots[i].ImageID != "" {
			g.Screenshots[i].URL = ImageURL(g.Screenshots[i].ImageID, SizeScreenshotBig)
		}
	}
	for i := range g.SimilarGames {
		normalize(&g.SimilarGames[i])
	}
}

func normalizeAll(games []Game) []Game {
	for i := range games {
		normalize(&games[i])
	}
	return games
}
