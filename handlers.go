package stremio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/fortal-play/superflix-stremio/types"
)

type catalogResponse struct {
	Metas []types.MetaPreviewItem `json:"metas"`
}

type streamResponse struct {
	Streams []types.StreamItem `json:"streams"`
}

type metaResponse struct {
	Meta types.MetaItem `json:"meta"`
}

// cacheConfig is the caching behavior of one resource.
type cacheConfig struct {
	header     string
	handleEtag bool
}

func newCacheConfig(cacheAge time.Duration, cachePublic, handleEtag bool) cacheConfig {
	return cacheConfig{
		header:     createCacheHeader(cacheAge, cachePublic),
		handleEtag: handleEtag,
	}
}

func createHealthHandler(logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		logger.Debug("healthHandler called")
		return c.SendString("OK")
	}
}

func createRootHandler(redirectURL string, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		logger.Debug("rootHandler called")
		c.Set(fiber.HeaderLocation, redirectURL)
		return c.SendStatus(fiber.StatusMovedPermanently)
	}
}

func createManifestHandler(manifest types.Manifest, logger *zap.Logger) (fiber.Handler, error) {
	// The manifest doesn't change at runtime
	manifestBody, err := json.Marshal(manifest)
	if err != nil {
		return nil, err
	}
	return func(c fiber.Ctx) error {
		logger.Debug("manifestHandler called")
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
		return c.Send(manifestBody)
	}, nil
}

func createCatalogHandler(manifest types.Manifest, catalogHandlers map[string]CatalogHandler, cache cacheConfig, logger *zap.Logger) fiber.Handler {
	handlerLogger := logger.With(zap.String("handler", "catalog"))

	return func(c fiber.Ctx) error {
		handlerLogger.Debug("catalogHandler called")

		requestedType := c.Params("type")
		requestedID := c.Params("id")
		handler, ok := catalogHandlers[requestedType]
		if !ok {
			return c.SendStatus(fiber.StatusNotFound)
		}
		catalog, ok := findCatalog(manifest, requestedType, requestedID)
		if !ok {
			return c.SendStatus(fiber.StatusNotFound)
		}

		extra, err := ParseExtras(c.Params("extras"))
		if err != nil {
			handlerLogger.Debug("Couldn't parse extras", zap.Error(err))
			return sendHandlerError(c, fmt.Errorf("%w: %w", ErrBadRequest, err), handlerLogger)
		}
		for _, name := range catalog.RequiredExtras() {
			if extra.Get(name) == "" {
				// Stremio shows an empty catalog, as opposed to an error
				return sendJSON(c, catalogResponse{Metas: []types.MetaPreviewItem{}}, cache, false)
			}
		}

		var ctx context.Context = c.Context()
		metas, err := handler(ctx, requestedID, extra)
		if err != nil {
			return sendHandlerError(c, err, handlerLogger)
		}
		if metas == nil {
			metas = []types.MetaPreviewItem{}
		}
		return sendJSON(c, catalogResponse{Metas: metas}, cache, len(metas) > 0)
	}
}

func createStreamHandler(streamHandlers map[string]StreamHandler, cache cacheConfig, logger *zap.Logger) fiber.Handler {
	handlerLogger := logger.With(zap.String("handler", "stream"))

	return func(c fiber.Ctx) error {
		handlerLogger.Debug("streamHandler called")

		requestedType := c.Params("type")
		requestedID := c.Params("id")
		handler, ok := streamHandlers[requestedType]
		if !ok {
			return c.SendStatus(fiber.StatusNotFound)
		}

		var ctx context.Context = c.Context()
		streams, err := handler(ctx, requestedID)
		if err != nil {
			return sendHandlerError(c, err, handlerLogger)
		}

		valid := make([]types.StreamItem, 0, len(streams))
		for _, stream := range streams {
			if !stream.Valid() {
				handlerLogger.Warn("Dropping stream without exactly one URL", zap.String("id", requestedID), zap.String("title", stream.Title))
				continue
			}
			valid = append(valid, stream)
		}
		return sendJSON(c, streamResponse{Streams: valid}, cache, len(valid) > 0)
	}
}

func createMetaHandler(metaHandlers map[string]MetaHandler, cache cacheConfig, logger *zap.Logger) fiber.Handler {
	handlerLogger := logger.With(zap.String("handler", "meta"))

	return func(c fiber.Ctx) error {
		handlerLogger.Debug("metaHandler called")

		requestedType := c.Params("type")
		requestedID := c.Params("id")
		handler, ok := metaHandlers[requestedType]
		if !ok {
			return c.SendStatus(fiber.StatusNotFound)
		}

		var ctx context.Context = c.Context()
		meta, err := handler(ctx, requestedID)
		if err != nil {
			return sendHandlerError(c, err, handlerLogger)
		}
		return sendJSON(c, metaResponse{Meta: meta}, cache, true)
	}
}

func findCatalog(manifest types.Manifest, catalogType, id string) (types.CatalogItem, bool) {
	for _, catalog := range manifest.Catalogs {
		if catalog.Type == catalogType && catalog.ID == id {
			return catalog, true
		}
	}
	return types.CatalogItem{}, false
}

func sendHandlerError(c fiber.Ctx, err error, logger *zap.Logger) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return c.SendStatus(fiber.StatusNotFound)
	case errors.Is(err, ErrBadRequest):
		return c.SendStatus(fiber.StatusBadRequest)
	}
	logger.Error("Addon handler returned error", zap.Error(err), zap.String("url", c.OriginalURL()))
	return c.SendStatus(fiber.StatusInternalServerError)
}

// sendJSON sends the response body with cache headers and an ETag if configured and cacheable is true.
func sendJSON(c fiber.Ctx, res any, cache cacheConfig, cacheable bool) error {
	body, err := json.Marshal(res)
	if err != nil {
		return err
	}

	if cacheable && cache.header != "" {
		c.Set(fiber.HeaderCacheControl, cache.header)
		if cache.handleEtag {
			etag := `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
			c.Set(fiber.HeaderETag, etag)
			if c.Get(fiber.HeaderIfNoneMatch) == etag {
				return c.SendStatus(fiber.StatusNotModified)
			}
		}
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(body)
}
