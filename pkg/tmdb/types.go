package tmdb

import (
	"strconv"

	"github.com/fortal-play/superflix-stremio/pkg/media"
)

// IDPrefix is the prefix of catalog ids that carry a TMDB id.
const IDPrefix = "tmdb:"

// CatalogID turns a numeric TMDB id into the id used in catalog responses.
func CatalogID(id int64) string {
	return IDPrefix + strconv.FormatInt(id, 10)
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Name         string `json:"name"` // TV shows
	PosterPath   string `json:"poster_path"`
	BackdropPath string `json:"backdrop_path"`
	Overview     string `json:"overview"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
}

type detailResponse struct {
	searchResult
	Genres []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

type externalIDsResponse struct {
	IMDbID string `json:"imdb_id"`
	TVDbID int64  `json:"tvdb_id"`
}

func pickTitle(kind media.Kind, movieTitle, seriesName string) string {
	if kind == media.Movie && movieTitle != "" {
		return movieTitle
	}
	if seriesName != "" {
		return seriesName
	}
	return movieTitle
}

func pickYear(movieDate, seriesDate string) string {
	date := movieDate
	if date == "" {
		date = seriesDate
	}
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}
