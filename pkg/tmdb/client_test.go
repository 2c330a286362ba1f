package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortal-play/superflix-stremio/pkg/media"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cache Cache) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	opts := ClientOptions{
		APIKey:       "secret",
		BaseURL:      srv.URL,
		ImageBaseURL: "https://img.example.com/t/p",
		RetryDelay:   time.Millisecond,
	}
	return NewClient(opts, cache, nil), &calls
}

func TestSearch(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/movie", r.URL.Path)
		assert.Equal(t, "Matrix", r.URL.Query().Get("query"))
		assert.Equal(t, "pt-BR", r.URL.Query().Get("language"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"id":603,"title":"Matrix","poster_path":"/matrix.jpg"},
			{"id":604,"title":"Matrix Reloaded","poster_path":""}
		]}`))
	}, nil)

	items, err := client.Search(context.Background(), "Matrix", media.Movie)
	require.NoError(t, err)
	require.Equal(t, []media.CatalogItem{{
		ID:        "tmdb:603",
		Kind:      media.Movie,
		Title:     "Matrix",
		PosterURL: "https://img.example.com/t/p/w500/matrix.jpg",
	}}, items)

	// Same query, same provider state, same result
	again, err := client.Search(context.Background(), "Matrix", media.Movie)
	require.NoError(t, err)
	require.Equal(t, items, again)
	require.EqualValues(t, 2, calls.Load())
}

func TestSearchSeriesUsesName(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/tv", r.URL.Path)
		_, _ = w.Write([]byte(`{"results":[{"id":1399,"name":"Game of Thrones","poster_path":"/got.jpg"}]}`))
	}, nil)

	items, err := client.Search(context.Background(), "thrones", media.Series)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "tmdb:1399", items[0].ID)
	require.Equal(t, "Game of Thrones", items[0].Title)
	require.Equal(t, media.Series, items[0].Kind)
}

func TestSearchEmptyQuery(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, nil)

	items, err := client.Search(context.Background(), "   ", media.Movie)
	require.NoError(t, err)
	require.Empty(t, items)
	require.Zero(t, calls.Load())
}

func TestSearchUpstreamFailure(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, nil)

	items, err := client.Search(context.Background(), "Matrix", media.Movie)
	require.ErrorIs(t, err, ErrUpstream)
	require.Empty(t, items)
	// Retried
	require.EqualValues(t, 3, calls.Load())
}

func TestSearchMalformedJSON(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":`))
	}, nil)

	_, err := client.Search(context.Background(), "Matrix", media.Movie)
	require.ErrorIs(t, err, ErrUpstream)
	require.EqualValues(t, 1, calls.Load())
}

func TestNotConfigured(t *testing.T) {
	client := NewClient(ClientOptions{}, nil, nil)
	_, err := client.Search(context.Background(), "Matrix", media.Movie)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestCrossReference(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/movie/603/external_ids":
			_, _ = w.Write([]byte(`{"imdb_id":"tt0133093"}`))
		case "/movie/1/external_ids":
			_, _ = w.Write([]byte(`{"imdb_id":null}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, NewInMemoryCache(0))

	imdbID, err := client.CrossReference(context.Background(), "603", media.Movie)
	require.NoError(t, err)
	require.Equal(t, "tt0133093", imdbID.MustGet())

	// Served from the cache
	imdbID, err = client.CrossReference(context.Background(), "603", media.Movie)
	require.NoError(t, err)
	require.Equal(t, "tt0133093", imdbID.OrEmpty())
	require.EqualValues(t, 1, calls.Load())

	imdbID, err = client.CrossReference(context.Background(), "1", media.Movie)
	require.NoError(t, err)
	require.True(t, imdbID.IsAbsent())

	imdbID, err = client.CrossReference(context.Background(), "999", media.Movie)
	require.NoError(t, err)
	require.True(t, imdbID.IsAbsent())
}

func TestCrossReferenceFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, nil)

	imdbID, err := client.CrossReference(context.Background(), "603", media.Series)
	require.ErrorIs(t, err, ErrUpstream)
	require.True(t, imdbID.IsAbsent())
}

func TestDetail(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tv/1399":
			_, _ = w.Write([]byte(`{"id":1399,"name":"Game of Thrones","poster_path":"/got.jpg","backdrop_path":"/bg.jpg",
				"overview":"Winter is coming.","first_air_date":"2011-04-17","genres":[{"id":1,"name":"Drama"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, nil)

	item, err := client.Detail(context.Background(), "1399", media.Series)
	require.NoError(t, err)
	require.Equal(t, media.CatalogItem{
		ID:            "tmdb:1399",
		Kind:          media.Series,
		Title:         "Game of Thrones",
		PosterURL:     "https://img.example.com/t/p/w500/got.jpg",
		BackgroundURL: "https://img.example.com/t/p/w1280/bg.jpg",
		Description:   "Winter is coming.",
		ReleaseInfo:   "2011",
		Genres:        []string{"Drama"},
	}, item.MustGet())

	item, err = client.Detail(context.Background(), "42", media.Series)
	require.NoError(t, err)
	require.True(t, item.IsAbsent())
}
