// Package tmdb is a small client for The Movie Database API.
// It only implements the three lookups the addon needs: title search, detail lookup and the
// cross reference from TMDB ids to IMDb ids.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fortal-play/superflix-stremio/pkg/media"
)

var (
	// ErrNotConfigured is returned when no API key was set.
	ErrNotConfigured = errors.New("tmdb api key not configured")
	// ErrUpstream signals a network error, an unexpected status code or an undecodable response.
	ErrUpstream = errors.New("tmdb request failed")

	errNotFound = errors.New("tmdb item not found")
)

const posterSize = "w500"
const backdropSize = "w1280"

// ClientOptions are the options for the TMDB client.
type ClientOptions struct {
	// API key ("api_key" query parameter).
	APIKey string
	// Base URL of the API. Default "https://api.themoviedb.org/3".
	BaseURL string
	// Base URL for images. Default "https://image.tmdb.org/t/p".
	ImageBaseURL string
	// Language for titles and overviews. Default "pt-BR".
	Language string
	// Timeout for a single HTTP request. Default 10s.
	Timeout time.Duration
	// Number of attempts for requests that fail with a network error, 429 or 5xx. Default 3.
	Attempts uint
	// Initial delay between attempts, doubled after each one. Default 300ms.
	RetryDelay time.Duration
	// How long cached details and cross references are considered fresh. Default 24h.
	CacheAge time.Duration
	// Optional custom HTTP client. Timeout is ignored if this is set.
	HTTPClient *http.Client
}

// DefaultClientOptions is a ClientOptions object with default values.
var DefaultClientOptions = ClientOptions{
	BaseURL:      "https://api.themoviedb.org/3",
	ImageBaseURL: "https://image.tmdb.org/t/p",
	Language:     "pt-BR",
	Timeout:      10 * time.Second,
	Attempts:     3,
	RetryDelay:   300 * time.Millisecond,
	CacheAge:     24 * time.Hour,
}

// Client is a TMDB client.
type Client struct {
	apiKey       string
	baseURL      string
	imageBaseURL string
	language     string
	attempts     uint
	retryDelay   time.Duration
	cacheAge     time.Duration
	httpClient   *http.Client
	cache        Cache
	group        singleflight.Group
	logger       *zap.Logger
}

// NewClient returns a new TMDB client.
// The cache can be nil, in which case lookups aren't cached.
func NewClient(opts ClientOptions, cache Cache, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultClientOptions.BaseURL
	}
	if opts.ImageBaseURL == "" {
		opts.ImageBaseURL = DefaultClientOptions.ImageBaseURL
	}
	if opts.Language == "" {
		opts.Language = DefaultClientOptions.Language
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultClientOptions.Timeout
	}
	if opts.Attempts == 0 {
		opts.Attempts = DefaultClientOptions.Attempts
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = DefaultClientOptions.RetryDelay
	}
	if opts.CacheAge == 0 {
		opts.CacheAge = DefaultClientOptions.CacheAge
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		imageBaseURL: strings.TrimSuffix(opts.ImageBaseURL, "/"),
		language:     opts.Language,
		attempts:     opts.Attempts,
		retryDelay:   opts.RetryDelay,
		cacheAge:     opts.CacheAge,
		httpClient:   opts.HTTPClient,
		cache:        cache,
		logger:       logger.Named("tmdb"),
	}
}

// Search looks up movies or TV shows by title.
// Results without a poster are dropped. An empty query returns an empty list without a request.
func (c *Client) Search(ctx context.Context, query string, kind media.Kind) ([]media.CatalogItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("language", c.language)

	var res searchResponse
	if err := c.get(ctx, "/search/"+kind.TMDB(), params, &res); err != nil {
		return nil, fmt.Errorf("couldn't search %s %q: %w", kind, query, err)
	}

	items := lo.FilterMap(res.Results, func(r searchResult, _ int) (media.CatalogItem, bool) {
		if r.PosterPath == "" {
			return media.CatalogItem{}, false
		}
		return media.CatalogItem{
			ID:        CatalogID(r.ID),
			Kind:      kind,
			Title:     pickTitle(kind, r.Title, r.Name),
			PosterURL: c.image(posterSize, r.PosterPath),
		}, true
	})
	c.logger.Debug("Search finished", zap.String("query", query), zap.Stringer("kind", kind),
		zap.Int("results", len(res.Results)), zap.Int("withPoster", len(items)))
	return items, nil
}

// Detail returns the details of a movie or TV show by its numeric TMDB id.
// The result is empty if TMDB doesn't know the id.
func (c *Client) Detail(ctx context.Context, id string, kind media.Kind) (mo.Option[media.CatalogItem], error) {
	key := "detail:" + kind.TMDB() + ":" + id
	var cachedItem media.CatalogItem
	if c.cached(key, &cachedItem) {
		return mo.Some(cachedItem), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		var res detailResponse
		params := url.Values{}
		params.Set("language", c.language)
		if err := c.get(ctx, "/"+kind.TMDB()+"/"+url.PathEscape(id), params, &res); err != nil {
			return nil, err
		}
		item := media.CatalogItem{
			ID:            CatalogID(res.ID),
			Kind:          kind,
			Title:         pickTitle(kind, res.Title, res.Name),
			PosterURL:     c.image(posterSize, res.PosterPath),
			BackgroundURL: c.image(backdropSize, res.BackdropPath),
			Description:   res.Overview,
			ReleaseInfo:   pickYear(res.ReleaseDate, res.FirstAirDate),
		}
		for _, g := range res.Genres {
			item.Genres = append(item.Genres, g.Name)
		}
		c.store(key, item)
		return item, nil
	})
	if errors.Is(err, errNotFound) {
		return mo.None[media.CatalogItem](), nil
	} else if err != nil {
		return mo.None[media.CatalogItem](), fmt.Errorf("couldn't get details for %s %s: %w", kind, id, err)
	}
	return mo.Some(v.(media.CatalogItem)), nil
}

// CrossReference returns the IMDb id for a numeric TMDB id.
// The result is empty if TMDB doesn't know the id or doesn't have an IMDb id for it.
func (c *Client) CrossReference(ctx context.Context, id string, kind media.Kind) (mo.Option[string], error) {
	key := "xref:" + kind.TMDB() + ":" + id
	var cachedID string
	if c.cached(key, &cachedID) {
		return mo.Some(cachedID), nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		var res externalIDsResponse
		if err := c.get(ctx, "/"+kind.TMDB()+"/"+url.PathEscape(id)+"/external_ids", nil, &res); err != nil {
			return "", err
		}
		imdbID := strings.TrimSpace(res.IMDbID)
		if imdbID != "" {
			c.store(key, imdbID)
		}
		return imdbID, nil
	})
	if errors.Is(err, errNotFound) {
		return mo.None[string](), nil
	} else if err != nil {
		return mo.None[string](), fmt.Errorf("couldn't get external ids for %s %s: %w", kind, id, err)
	}
	imdbID := v.(string)
	c.logger.Debug("Cross reference finished", zap.String("tmdbID", id), zap.String("imdbID", imdbID), zap.Bool("shared", shared))
	if imdbID == "" {
		return mo.None[string](), nil
	}
	return mo.Some(imdbID), nil
}

// cached decodes a cached value into v.
func (c *Client) cached(key string, v any) bool {
	if c.cache == nil {
		return false
	}
	value, found := c.cache.Get(key)
	if !found {
		return false
	}
	if err := json.Unmarshal(value, v); err != nil {
		c.logger.Warn("Couldn't decode cached value", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Client) store(key string, v any) {
	if c.cache == nil {
		return
	}
	value, err := json.Marshal(v)
	if err == nil {
		err = c.cache.Set(key, value, c.cacheAge)
	}
	if err != nil {
		c.logger.Warn("Couldn't cache value", zap.String("key", key), zap.Error(err))
	}
}

func (c *Client) image(size, path string) string {
	if path == "" {
		return ""
	}
	return c.imageBaseURL + "/" + size + path
}

// get does a GET request and decodes the JSON response into v.
// Network errors, 429 and 5xx responses are retried with exponential backoff.
func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	attempt := 0
	return retry.Do(
		func() error {
			attempt++
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/json")

			res, err := c.httpClient.Do(req)
			if err != nil {
				c.logger.Debug("HTTP error", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
				return fmt.Errorf("%w: %w", ErrUpstream, err)
			}
			defer res.Body.Close()

			switch {
			case res.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(errNotFound)
			case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500:
				c.logger.Debug("Rate limited or server error", zap.String("path", path), zap.Int("attempt", attempt), zap.Int("status", res.StatusCode))
				return fmt.Errorf("%w: bad status: %s", ErrUpstream, res.Status)
			case res.StatusCode >= 400:
				return retry.Unrecoverable(fmt.Errorf("%w: bad status: %s", ErrUpstream, res.Status))
			}

			if err := json.NewDecoder(res.Body).Decode(v); err != nil {
				return retry.Unrecoverable(fmt.Errorf("%w: couldn't decode response: %w", ErrUpstream, err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}
