package fortal

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	stremio "github.com/fortal-play/superflix-stremio"
	"github.com/fortal-play/superflix-stremio/pkg/ids"
	"github.com/fortal-play/superflix-stremio/pkg/proxy"
	"github.com/fortal-play/superflix-stremio/pkg/superflix"
	"github.com/fortal-play/superflix-stremio/pkg/tmdb"
)

const publicURL = "http://addon.test"

func newTMDBServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		switch r.URL.Path {
		case "/search/movie":
			_, _ = w.Write([]byte(`{"results":[
				{"id":603,"title":"Matrix","poster_path":"/matrix.jpg","release_date":"1999-03-30"},
				{"id":604,"title":"Matrix Reloaded"}
			]}`))
		case "/movie/603/external_ids":
			_, _ = w.Write([]byte(`{"id":603,"imdb_id":"tt0133093"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newSuperflixServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/filme/tt0133093":
			http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "s1", Path: "/"})
			_, _ = w.Write([]byte(`<div class="player_select_item" data-id="1001" data-label="Dublado"></div>
				<div class="player_select_item" data-id="legendado" data-label="Legendado"></div>`))
		case r.URL.Path == "/api" && r.Method == http.MethodPost:
			if r.Header.Get("Cookie") != "PHPSESSID=s1" || r.FormValue("video_id") != "1001" {
				_, _ = w.Write([]byte(`{"success":false}`))
				return
			}
			fmt.Fprintf(w, `{"success":true,"data":{"video_url":%q}}`, srv.URL+"/cdn/1001.mp4")
		case r.URL.Path == "/cdn/1001.mp4":
			assert.Equal(t, srv.URL+"/filme/tt0133093", r.Header.Get("Referer"))
			w.Header().Set("Content-Type", "video/mp4")
			_, _ = w.Write([]byte("matrix-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAddon(t *testing.T) *fiber.App {
	t.Helper()
	logger := zap.NewNop()

	tmdbSrv := newTMDBServer(t)
	tmdbClient := tmdb.NewClient(tmdb.ClientOptions{
		APIKey:     "secret",
		BaseURL:    tmdbSrv.URL,
		RetryDelay: time.Millisecond,
	}, tmdb.NewInMemoryCache(0), logger)

	superflixSrv := newSuperflixServer(t)
	superflixClient := superflix.NewClient(superflix.Options{BaseURL: superflixSrv.URL}, logger)

	byteProxy, err := proxy.New(proxy.Options{PublicBaseURL: publicURL}, proxy.NewStore(0, time.Hour), superflixClient, logger)
	require.NoError(t, err)
	strategy, err := superflix.NewStrategy(superflix.StrategyScrape, superflixClient, byteProxy)
	require.NoError(t, err)
	resolver := superflix.NewResolver(superflix.StrategyScrape, strategy, logger)

	handlers := NewHandlers(tmdbClient, ids.NewNormalizer(tmdbClient, logger), resolver, byteProxy, logger)
	addon, err := stremio.NewAddon(Manifest("0.0.1"), handlers.CatalogHandlers(), handlers.StreamHandlers(), handlers.MetaHandlers(), stremio.Options{Logger: logger})
	require.NoError(t, err)
	addon.AddEndpoint(fiber.MethodGet, "/proxy/:key", byteProxy.HandleProxy)
	addon.AddEndpoint(fiber.MethodGet, "/stream/:payload.:ext", byteProxy.HandleStream)

	app, err := addon.App(nil)
	require.NoError(t, err)
	return app
}

func getJSON(t *testing.T, app *fiber.App, target string, v any) {
	t.Helper()
	res, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode, target)
	require.NoError(t, json.NewDecoder(res.Body).Decode(v))
}

func TestAddonSearchToPlayback(t *testing.T) {
	app := newTestAddon(t)

	var catalog struct {
		Metas []struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Poster string `json:"poster"`
		} `json:"metas"`
	}
	getJSON(t, app, "/catalog/movie/"+CatalogMovies+"/search=Matrix.json", &catalog)
	require.Len(t, catalog.Metas, 1)
	require.Equal(t, "tmdb:603", catalog.Metas[0].ID)
	require.Equal(t, "https://image.tmdb.org/t/p/w500/matrix.jpg", catalog.Metas[0].Poster)

	var streams struct {
		Streams []struct {
			URL         string `json:"url"`
			ExternalURL string `json:"externalUrl"`
			Title       string `json:"title"`
		} `json:"streams"`
	}
	getJSON(t, app, "/stream/movie/"+catalog.Metas[0].ID+".json", &streams)
	require.Len(t, streams.Streams, 2)
	require.Equal(t, "Fortal Play (Dublado)", streams.Streams[0].Title)
	require.True(t, strings.HasPrefix(streams.Streams[0].URL, publicURL+"/proxy/"), streams.Streams[0].URL)
	require.Equal(t, "Fortal Play (Legendado)", streams.Streams[1].Title)
	require.True(t, strings.HasSuffix(streams.Streams[1].ExternalURL, "/filme/tt0133093/legendado"))

	res, err := app.Test(httptest.NewRequest(http.MethodGet, strings.TrimPrefix(streams.Streams[0].URL, publicURL), nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "video/mp4", res.Header.Get("Content-Type"))
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, "matrix-bytes", string(body))
}

func TestAddonEmptyResults(t *testing.T) {
	app := newTestAddon(t)

	var streams struct {
		Streams []any `json:"streams"`
	}
	for _, id := range []string{"tmdb:999", "tt0944947:1:1", "tt0000001", "nonsense"} {
		getJSON(t, app, "/stream/movie/"+id+".json", &streams)
		require.NotNil(t, streams.Streams, id)
		require.Empty(t, streams.Streams, id)
	}

	var catalog struct {
		Metas []any `json:"metas"`
	}
	getJSON(t, app, "/catalog/series/"+CatalogSeries+"/search=Nada.json", &catalog)
	require.NotNil(t, catalog.Metas)
	require.Empty(t, catalog.Metas)

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/proxy/unknown", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}
