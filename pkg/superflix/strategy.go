package superflix

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"

	"github.com/fortal-play/superflix-stremio/pkg/media"
)

// Strategy resolves an IMDb id to sources.
// Implementations return an error when nothing was found, so callers can tell "no results" from "upstream failure".
type Strategy interface {
	Resolve(ctx context.Context, kind media.Kind, imdbID string) ([]media.ResolvedSource, error)
}

// Registrar hands out proxy URLs for sources, see the proxy package.
type Registrar interface {
	Register(entry media.ProxyEntry) (string, error)
}

// Strategy names for NewStrategy.
const (
	StrategyEndpoint = "endpoint"
	StrategyScrape   = "scrape"
	StrategyListing  = "listing"
)

// NewStrategy creates the strategy with the given name.
// The registrar is only used by the scrape strategy and can be nil.
func NewStrategy(name string, client *Client, registrar Registrar) (Strategy, error) {
	switch name {
	case StrategyEndpoint:
		return &EndpointStrategy{client: client}, nil
	case StrategyScrape:
		return &ScrapeStrategy{client: client, registrar: registrar}, nil
	case StrategyListing:
		return &ListingStrategy{client: client}, nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

// EndpointStrategy asks the provider's search endpoint for a slug and links to its page.
// The single result must be opened externally.
type EndpointStrategy struct {
	client *Client
}

// Resolve implements Strategy.
func (s *EndpointStrategy) Resolve(ctx context.Context, kind media.Kind, imdbID string) ([]media.ResolvedSource, error) {
	c := s.client
	params := url.Values{}
	params.Set("id", imdbID)
	params.Set("type", kind.Superflix())

	var res struct {
		Slug string `json:"slug"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/search?"+params.Encode(), &res); err != nil {
		return nil, err
	}
	slug := strings.Trim(strings.TrimSpace(res.Slug), "/")
	if slug == "" {
		return nil, ErrNotFound
	}

	return []media.ResolvedSource{{
		Label: "Superflix",
		URL:   c.baseURL + "/" + kind.Superflix() + "/" + slug,
		Hint:  media.Embed,
	}}, nil
}

// ListingStrategy reads the provider's JSON listing, which already contains the video URLs.
type ListingStrategy struct {
	client *Client
}

type listingResponse struct {
	Data []listingItem `json:"data"`
}

type listingItem struct {
	Label string `json:"label"`
	File  string `json:"file"`
}

// Resolve implements Strategy.
func (s *ListingStrategy) Resolve(ctx context.Context, kind media.Kind, imdbID string) ([]media.ResolvedSource, error) {
	var res listingResponse
	if err := s.client.getJSON(ctx, s.client.ContentURL(kind, imdbID), &res); err != nil {
		return nil, err
	}

	sources := lo.FilterMap(res.Data, func(v listingItem, _ int) (media.ResolvedSource, bool) {
		if v.File == "" {
			return media.ResolvedSource{}, false
		}
		// Links aren't always compatible with the native player (e.g. Chromecast)
		return media.ResolvedSource{Label: v.Label, URL: v.File, Hint: media.NotWebReady}, true
	})
	if len(sources) == 0 {
		return nil, ErrNotFound
	}
	return sources, nil
}

// ScrapeStrategy fetches the content page, extracts its server entries and resolves each one
// via the player endpoint. Entries that fail are dropped.
type ScrapeStrategy struct {
	client    *Client
	registrar Registrar
}

// Resolve implements Strategy.
func (s *ScrapeStrategy) Resolve(ctx context.Context, kind media.Kind, imdbID string) ([]media.ResolvedSource, error) {
	c := s.client
	p, err := c.fetchPage(ctx, c.ContentURL(kind, imdbID))
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(p.body)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't parse page: %w", ErrUpstream, err)
	}

	entries := ExtractServerEntries(doc, c.selectors)
	if len(entries) == 0 {
		return nil, ErrNoServers
	}

	// Results are in page order, independent of which call finishes first.
	results := iter.Map(entries, func(e *ServerEntry) mo.Option[media.ResolvedSource] {
		return s.resolveEntry(ctx, kind, imdbID, p, *e)
	})
	sources := lo.FilterMap(results, func(o mo.Option[media.ResolvedSource], _ int) (media.ResolvedSource, bool) {
		return o.Get()
	})
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: all %d server entries failed", ErrPlayer, len(entries))
	}
	return sources, nil
}

func (s *ScrapeStrategy) resolveEntry(ctx context.Context, kind media.Kind, imdbID string, p page, e ServerEntry) mo.Option[media.ResolvedSource] {
	c := s.client
	logger := c.logger.With(zap.String("id", imdbID), zap.String("serverID", e.ServerID))

	if e.IsSubtitled() {
		return mo.Some(media.ResolvedSource{
			Label: e.Label,
			URL:   c.ContentURL(kind, imdbID) + "/legendado",
			Hint:  media.Embed,
		})
	}

	videoURL, err := c.PlayerURL(ctx, p.session, p.url, e.ServerID)
	if err != nil {
		logger.Debug("Dropping server entry", zap.Error(err))
		return mo.None[media.ResolvedSource]()
	}
	if s.registrar == nil {
		return mo.Some(media.ResolvedSource{Label: e.Label, URL: videoURL, Hint: HintFor(videoURL), Referer: p.url})
	}

	// The video URL expires quickly, so the proxy gets what it needs to ask for a fresh one.
	proxyURL, err := s.registrar.Register(media.ProxyEntry{
		SessionToken:  p.session,
		OriginPageURL: p.url,
		VideoID:       e.ServerID,
	})
	if err != nil {
		logger.Warn("Couldn't register source with proxy", zap.Error(err))
		return mo.None[media.ResolvedSource]()
	}
	return mo.Some(media.ResolvedSource{Label: e.Label, URL: proxyURL, Hint: media.Direct})
}

func (c *Client) getJSON(ctx context.Context, reqURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	} else if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: bad status: %s", ErrUpstream, res.Status)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%w: couldn't read body: %w", ErrUpstream, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: couldn't decode response: %w", ErrUpstream, err)
	}
	return nil
}
