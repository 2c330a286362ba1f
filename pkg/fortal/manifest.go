// Package fortal implements the Fortal Play addon: a TMDB search catalog whose entries
// resolve to Superflix streams.
package fortal

import (
	"github.com/fortal-play/superflix-stremio/pkg/tmdb"
	"github.com/fortal-play/superflix-stremio/types"
)

// Catalog ids.
const (
	CatalogMovies = "fortal-search-movies"
	CatalogSeries = "fortal-search-series"
)

// Manifest returns the addon's manifest.
// Meta is only served for the TMDB ids the catalogs return, IMDb ids are left to Cinemeta.
func Manifest(version string) types.Manifest {
	searchExtra := []types.ExtraItem{{Name: "search", IsRequired: true}}

	return types.Manifest{
		ID:          "org.fortal.play.superflix",
		Name:        "Fortal Play (Superflix)",
		Description: "Busca de filmes/séries e fontes de streaming da Superflix.",
		Version:     version,

		ResourceItems: []types.ResourceItem{
			types.Resource("catalog"),
			types.Resource("stream"),
			{
				Name:       "meta",
				Types:      []string{"movie", "series"},
				IDprefixes: []string{tmdb.IDPrefix},
			},
		},

		Types: []string{"movie", "series"},
		Catalogs: []types.CatalogItem{
			{
				Type:  "movie",
				ID:    CatalogMovies,
				Name:  "Busca Fortal Filmes",
				Extra: searchExtra,
			},
			{
				Type:  "series",
				ID:    CatalogSeries,
				Name:  "Busca Fortal Séries",
				Extra: searchExtra,
			},
		},

		IDprefixes: []string{"tt", tmdb.IDPrefix},
		Logo:       "https://files.catbox.moe/jwtaje.jpg",
	}
}
