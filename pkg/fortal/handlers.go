package fortal

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"go.uber.org/zap"

	stremio "github.com/fortal-play/superflix-stremio"
	"github.com/fortal-play/superflix-stremio/pkg/ids"
	"github.com/fortal-play/superflix-stremio/pkg/media"
	"github.com/fortal-play/superflix-stremio/pkg/tmdb"
	"github.com/fortal-play/superflix-stremio/types"
)

const streamTitlePrefix = "Fortal Play"

// Lookup searches titles and fetches their details. *tmdb.Client implements it.
type Lookup interface {
	Search(ctx context.Context, query string, kind media.Kind) ([]media.CatalogItem, error)
	Detail(ctx context.Context, id string, kind media.Kind) (mo.Option[media.CatalogItem], error)
}

// Normalizer turns incoming ids into IMDb ids. *ids.Normalizer implements it.
type Normalizer interface {
	Normalize(ctx context.Context, req media.MediaRequest) (ids.ID, error)
}

// Resolver finds sources for IMDb ids. *superflix.Resolver implements it.
// It never fails, an empty list means nothing was found.
type Resolver interface {
	Resolve(ctx context.Context, kind media.Kind, imdbID string) []media.ResolvedSource
}

// StreamWrapper routes URLs through the addon. *proxy.Proxy implements it.
type StreamWrapper interface {
	StreamURL(upstreamURL string) (string, bool)
}

// Handlers are the addon's catalog, stream and meta handlers.
// Failures of the underlying stages are logged and lead to empty results, never to errors.
type Handlers struct {
	lookup     Lookup
	normalizer Normalizer
	resolver   Resolver
	wrapper    StreamWrapper
	logger     *zap.Logger
}

// NewHandlers creates the handlers. The wrapper and logger can be nil.
// With a wrapper, not-web-ready sources on allowed hosts are routed through it.
func NewHandlers(lookup Lookup, normalizer Normalizer, resolver Resolver, wrapper StreamWrapper, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		lookup:     lookup,
		normalizer: normalizer,
		resolver:   resolver,
		wrapper:    wrapper,
		logger:     logger.Named("fortal"),
	}
}

// CatalogHandlers returns the catalog handlers per type.
func (h *Handlers) CatalogHandlers() map[string]stremio.CatalogHandler {
	return map[string]stremio.CatalogHandler{
		media.Movie.String():  h.catalog(media.Movie),
		media.Series.String(): h.catalog(media.Series),
	}
}

// StreamHandlers returns the stream handlers per type.
func (h *Handlers) StreamHandlers() map[string]stremio.StreamHandler {
	return map[string]stremio.StreamHandler{
		media.Movie.String():  h.stream(media.Movie),
		media.Series.String(): h.stream(media.Series),
	}
}

// MetaHandlers returns the meta handlers per type.
func (h *Handlers) MetaHandlers() map[string]stremio.MetaHandler {
	return map[string]stremio.MetaHandler{
		media.Movie.String():  h.meta(media.Movie),
		media.Series.String(): h.meta(media.Series),
	}
}

func (h *Handlers) catalog(kind media.Kind) stremio.CatalogHandler {
	return func(ctx context.Context, id string, extra url.Values) ([]types.MetaPreviewItem, error) {
		query := extra.Get("search")
		items, err := h.lookup.Search(ctx, query, kind)
		if err != nil {
			h.logger.Warn("Search failed", zap.String("stage", "search"), zap.String("query", query), zap.Stringer("kind", kind), zap.String("outcome", "upstream_error"), zap.Error(err))
			return []types.MetaPreviewItem{}, nil
		}
		h.logger.Debug("Search finished", zap.String("stage", "search"), zap.String("query", query), zap.Int("results", len(items)))

		return lo.Map(items, func(item media.CatalogItem, _ int) types.MetaPreviewItem {
			return types.MetaPreviewItem{
				ID:     item.ID,
				Type:   kind.String(),
				Name:   item.Title,
				Poster: item.PosterURL,
			}
		}), nil
	}
}

func (h *Handlers) stream(kind media.Kind) stremio.StreamHandler {
	return func(ctx context.Context, id string) ([]types.StreamItem, error) {
		imdbID, err := h.normalizer.Normalize(ctx, media.MediaRequest{CompoundID: id, Kind: kind})
		if err != nil {
			h.logger.Info("Rejected id", zap.String("stage", "normalize"), zap.String("id", id), zap.Stringer("kind", kind), zap.String("outcome", rejectionOutcome(err)), zap.Error(err))
			return []types.StreamItem{}, nil
		}

		sources := h.resolver.Resolve(ctx, kind, imdbID.Value)
		return lo.Map(sources, func(source media.ResolvedSource, _ int) types.StreamItem {
			return h.streamItem(source)
		}), nil
	}
}

func (h *Handlers) streamItem(source media.ResolvedSource) types.StreamItem {
	item := types.StreamItem{
		Title: streamTitlePrefix + " (" + source.Label + ")",
	}
	switch source.Hint {
	case media.Embed:
		item.ExternalURL = source.URL
	case media.NotWebReady:
		if h.wrapper != nil {
			if wrapped, ok := h.wrapper.StreamURL(source.URL); ok {
				item.URL = wrapped
				return item
			}
		}
		item.URL = source.URL
		item.BehaviorHints.NotWebReady = true
	default:
		item.URL = source.URL
	}
	if item.URL != "" && source.Referer != "" {
		// Only Stremio's streaming server can send request headers
		item.BehaviorHints.NotWebReady = true
		item.BehaviorHints.ProxyHeaders = &types.ProxyHeaders{
			Request: map[string]string{"Referer": source.Referer},
		}
	}
	return item
}

func (h *Handlers) meta(kind media.Kind) stremio.MetaHandler {
	return func(ctx context.Context, id string) (types.MetaItem, error) {
		tmdbID, ok := strings.CutPrefix(id, tmdb.IDPrefix)
		if !ok || tmdbID == "" {
			return types.MetaItem{}, stremio.ErrNotFound
		}

		detail, err := h.lookup.Detail(ctx, tmdbID, kind)
		if err != nil {
			h.logger.Warn("Detail lookup failed", zap.String("stage", "detail"), zap.String("id", id), zap.String("outcome", "upstream_error"), zap.Error(err))
			return types.MetaItem{}, stremio.ErrNotFound
		}
		item, ok := detail.Get()
		if !ok {
			return types.MetaItem{}, stremio.ErrNotFound
		}

		return types.MetaItem{
			ID:          item.ID,
			Type:        kind.String(),
			Name:        item.Title,
			Genres:      item.Genres,
			Poster:      item.PosterURL,
			Background:  item.BackgroundURL,
			Description: item.Description,
			ReleaseInfo: item.ReleaseInfo,
			// Episodes aren't resolved, so series go straight to their streams like movies
			BehaviorHints: types.MetaBehaviorHints{DefaultVideoID: item.ID},
		}, nil
	}
}

func rejectionOutcome(err error) string {
	switch {
	case errors.Is(err, ids.ErrEpisodeUnsupported):
		return "episode_unsupported"
	case errors.Is(err, ids.ErrNoCrossReference):
		return "no_cross_reference"
	case errors.Is(err, ids.ErrMalformed):
		return "malformed"
	}
	return "rejected"
}
