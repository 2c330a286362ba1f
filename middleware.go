package stremio

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/fortal-play/superflix-stremio/types"
)

type customMiddleware struct {
	path string
	mw   fiber.Handler
}

type customEndpoint struct {
	method  string
	path    string
	handler fiber.Handler
}

func createLoggingMiddleware(logger *zap.Logger, logIPs, logUserAgent bool) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// First call the other handlers in the chain!
		err := c.Next()

		// Then log

		duration := time.Since(start)
		zapFields := []zap.Field{
			zap.Duration("duration", duration),
			zap.Int("status", c.Response().StatusCode()),
			zap.String("method", c.Method()),
			zap.String("url", c.OriginalURL()),
		}
		if logIPs {
			zapFields = append(zapFields, zap.String("ip", c.IP()))
			if forwardedFor := c.Get(fiber.HeaderXForwardedFor); forwardedFor != "" {
				zapFields = append(zapFields, zap.String("forwardedFor", forwardedFor))
			}
		}
		if logUserAgent {
			zapFields = append(zapFields, zap.String("userAgent", c.Get(fiber.HeaderUserAgent)))
		}
		if id, ok := c.Locals("id").(string); ok && id != "" {
			zapFields = append(zapFields, zap.String("id", id))
		}

		logger.Info("Handled request", zapFields...)

		return err
	}
}

func createMetricsMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// First call the other handlers in the chain!
		err := c.Next()

		// Then count
		endpoint := endpointOf(c.Path())
		status := strconv.Itoa(c.Response().StatusCode())
		metrics.GetOrCreateCounter(fmt.Sprintf(`http_requests_total{endpoint=%q,status=%q}`, endpoint, status)).Inc()
		metrics.GetOrCreateHistogram(fmt.Sprintf(`http_request_duration_seconds{endpoint=%q}`, endpoint)).UpdateDuration(start)

		return err
	}
}

// endpointOf maps a request path to a label with low cardinality.
func endpointOf(path string) string {
	switch {
	case path == "/manifest.json":
		return "manifest"
	case strings.HasPrefix(path, "/catalog/"):
		return "catalog"
	case strings.HasPrefix(path, "/stream/"):
		if strings.HasSuffix(path, ".json") {
			return "stream"
		}
		return "stream-proxy"
	case strings.HasPrefix(path, "/meta/"):
		return "meta"
	case strings.HasPrefix(path, "/proxy/"):
		return "proxy"
	case path == "/health":
		return "health"
	case path == "/metrics":
		return "metrics"
	case strings.HasPrefix(path, "/debug/pprof"):
		return "pprof"
	}
	return "other"
}

// Stremio doesn't show stream responses when no CORS middleware is used!
func corsMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		c.Set(fiber.HeaderAccessControlAllowHeaders, "*")
		c.Set(fiber.HeaderAccessControlAllowMethods, "GET, HEAD, OPTIONS")
		// Players need these for seeking in proxied streams
		c.Set(fiber.HeaderAccessControlExposeHeaders, "Content-Length, Content-Range, Accept-Ranges, Content-Type")
		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

// addRouteMatcherMiddleware filters requests for types the addon doesn't support
// and puts the requested type and id into the context locals for logging.
func addRouteMatcherMiddleware(app *fiber.App, manifest types.Manifest, logger *zap.Logger) {
	matcher := func(c fiber.Ctx) error {
		requestedType := c.Params("type")
		requestedID := c.Params("id")
		if requestedType == "" || requestedID == "" {
			logger.Debug("Missing type or id in request", zap.String("url", c.OriginalURL()))
			return c.SendStatus(fiber.StatusBadRequest)
		}
		if !manifest.HasType(requestedType) {
			logger.Debug("Unsupported type", zap.String("type", requestedType))
			return c.SendStatus(fiber.StatusNotFound)
		}
		c.Locals("type", requestedType)
		c.Locals("id", requestedID)
		return c.Next()
	}

	app.Use("/catalog/:type/:id", matcher)
	app.Use("/stream/:type/:id.json", matcher)
	app.Use("/meta/:type/:id.json", matcher)
}
