// Package stremio hosts a Stremio addon: it serves the manifest, catalog, stream and meta routes
// and calls the handlers registered for each type.
package stremio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	netpprof "net/http/pprof"
	"net/url"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"syscall"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"go.uber.org/zap"

	"github.com/fortal-play/superflix-stremio/types"
)

// CatalogHandler is the callback for catalog requests for a specific type (like "movie").
// The id parameter is the catalog ID that you specified yourself in the CatalogItem objects in the Manifest.
// The extra parameter holds the extras of the request, like "search".
// Extras the manifest marks as required are guaranteed to be non-empty.
// Other optional extras:
// genre - a string to filter the feed or search results by genres
// skip - used for catalog pagination, refers to the number of items skipped from the beginning of the catalog;
// the standard page size in Stremio is 100, so the skip value will be a multiple of 100; if you return less than 100 items,
// Stremio will consider this to be the end of the catalog.
type CatalogHandler func(ctx context.Context, id string, extra url.Values) ([]types.MetaPreviewItem, error)

// StreamHandler is the callback for stream requests for a specific type (like "movie").
// The id parameter can be for example an IMDb ID if your addon handles the "movie" type,
// or an ID with the season and episode appended for "series" ("tt0944947:1:2").
// Items without exactly one URL are dropped from the response.
type StreamHandler func(ctx context.Context, id string) ([]types.StreamItem, error)

// MetaHandler is the callback for metadata requests for a specific type (like "movie").
// The id parameter is one of the IDs your catalogs returned.
// Return ErrNotFound if there's no metadata for the ID.
type MetaHandler func(ctx context.Context, id string) (types.MetaItem, error)

// Addon represents a remote addon.
// You can create one with NewAddon() and then run it with Run().
type Addon struct {
	manifest          types.Manifest
	catalogHandlers   map[string]CatalogHandler
	streamHandlers    map[string]StreamHandler
	metaHandlers      map[string]MetaHandler
	opts              Options
	logger            *zap.Logger
	customMiddlewares []customMiddleware
	customEndpoints   []customEndpoint
}

// NewAddon creates a new Addon object that can be started with Run().
// A proper manifest must be supplied, but all but one handler can be nil in case you only want to handle specific requests and opts can be the zero value of Options.
func NewAddon(manifest types.Manifest, catalogHandlers map[string]CatalogHandler, streamHandlers map[string]StreamHandler, metaHandlers map[string]MetaHandler, opts Options) (*Addon, error) {
	// Precondition checks
	switch {
	case manifest.ID == "" || manifest.Name == "" || manifest.Description == "" || manifest.Version == "":
		return nil, errors.New("an empty manifest was passed")
	case catalogHandlers == nil && streamHandlers == nil && metaHandlers == nil:
		return nil, errors.New("no handler was passed")
	case (catalogHandlers != nil && !manifest.HasResource("catalog")) ||
		(streamHandlers != nil && !manifest.HasResource("stream")) ||
		(metaHandlers != nil && !manifest.HasResource("meta")):
		return nil, errors.New("every handler needs a matching resource in the manifest")
	case (opts.CachePublicCatalogs && opts.CacheAgeCatalogs == 0) ||
		(opts.CachePublicStreams && opts.CacheAgeStreams == 0) ||
		(opts.CachePublicMeta && opts.CacheAgeMeta == 0):
		return nil, errors.New("enabling public caching only makes sense when also setting a cache age")
	case (opts.HandleEtagCatalogs && opts.CacheAgeCatalogs == 0) ||
		(opts.HandleEtagStreams && opts.CacheAgeStreams == 0) ||
		(opts.HandleEtagMeta && opts.CacheAgeMeta == 0):
		return nil, errors.New(`ETag handling only makes sense when also setting a cache age`)
	case opts.DisableRequestLogging && (opts.LogIPs || opts.LogUserAgent):
		return nil, errors.New("enabling IP or user agent logging doesn't make sense when disabling request logging")
	case opts.Logger != nil && (opts.LoggingLevel != "" || opts.LogFile != ""):
		return nil, errors.New("setting a logging level or log file in the options doesn't make sense when you already set a custom logger")
	}

	// Set default values
	if opts.BindAddr == "" {
		opts.BindAddr = DefaultOptions.BindAddr
	}
	if opts.Port == 0 {
		opts.Port = DefaultOptions.Port
	}
	if opts.LoggingLevel == "" {
		opts.LoggingLevel = DefaultOptions.LoggingLevel
	}
	if opts.LogEncoding == "" {
		opts.LogEncoding = DefaultOptions.LogEncoding
	}
	if opts.LogFileMaxSizeMB == 0 {
		opts.LogFileMaxSizeMB = DefaultOptions.LogFileMaxSizeMB
	}

	// Configure logger if no custom one is set
	if opts.Logger == nil {
		var err error
		if opts.LogFile != "" {
			opts.Logger, err = NewFileLogger(opts.LoggingLevel, opts.LogEncoding, opts.LogFile, opts.LogFileMaxSizeMB)
		} else {
			opts.Logger, err = NewLogger(opts.LoggingLevel, opts.LogEncoding)
		}
		if err != nil {
			return nil, fmt.Errorf("couldn't create new logger: %w", err)
		}
	}

	// Create and return addon
	return &Addon{
		manifest:        manifest.Clone(),
		catalogHandlers: catalogHandlers,
		streamHandlers:  streamHandlers,
		metaHandlers:    metaHandlers,
		opts:            opts,
		logger:          opts.Logger,
	}, nil
}

// Logger returns the addon's logger, so custom endpoints and middlewares can log in the same format.
func (a *Addon) Logger() *zap.Logger {
	return a.logger
}

// AddMiddleware appends a custom middleware to the chain of existing middlewares.
// Set path to an empty string or "/" to let the middleware apply to all routes.
// Don't forget to call c.Next() on the Fiber context!
func (a *Addon) AddMiddleware(path string, middleware fiber.Handler) {
	customMW := customMiddleware{
		path: path,
		mw:   middleware,
	}
	a.customMiddlewares = append(a.customMiddlewares, customMW)
}

// AddEndpoint adds a custom endpoint (a route and its handler), like the byte proxy's "/proxy/:key".
// Custom endpoints pass through the same logging, metrics and CORS middlewares as the Stremio endpoints.
func (a *Addon) AddEndpoint(method, path string, handler fiber.Handler) {
	customEndpoint := customEndpoint{
		method:  method,
		path:    path,
		handler: handler,
	}
	a.customEndpoints = append(a.customEndpoints, customEndpoint)
}

// App creates the Fiber app with all middlewares and routes, without starting it.
// Run uses it, but it's also useful for testing with app.Test().
// fiberConf can be nil, in which case a default config is used.
func (a *Addon) App(fiberConf *fiber.Config) (*fiber.App, error) {
	logger := a.logger

	if fiberConf == nil {
		fiberConf = &fiber.Config{
			ErrorHandler: func(c fiber.Ctx, err error) error {
				code := fiber.StatusInternalServerError
				var e *fiber.Error
				if errors.As(err, &e) {
					code = e.Code
				}
				logger.Error("Fiber's error handler was called", zap.Error(err), zap.String("url", c.OriginalURL()))
				c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
				return c.Status(code).SendString("An internal server error occurred")
			},
			BodyLimit: 0,
			// No WriteTimeout, proxied streams can take hours
		}
	}

	// Fiber app

	logger.Info("Setting up server...")
	app := fiber.New(*fiberConf)

	// Middlewares

	app.Use(recover.New())
	if !a.opts.DisableRequestLogging {
		app.Use(createLoggingMiddleware(logger, a.opts.LogIPs, a.opts.LogUserAgent))
	}
	if a.opts.Metrics {
		app.Use(createMetricsMiddleware())
	}
	app.Use(corsMiddleware())
	// Filter requests for unsupported types and put the request info in the locals
	addRouteMatcherMiddleware(app, a.manifest, logger)
	// Custom middlewares
	for _, customMW := range a.customMiddlewares {
		app.Use(customMW.path, customMW.mw)
	}

	// Extra endpoints

	app.Get("/health", createHealthHandler(logger))
	// Optional profiling
	if a.opts.Profiling {
		group := app.Group("/debug/pprof")

		group.Get("/", func(c fiber.Ctx) error {
			c.Set(fiber.HeaderContentType, fiber.MIMETextHTML)
			return adaptor.HTTPHandlerFunc(netpprof.Index)(c)
		})
		for _, p := range pprof.Profiles() {
			group.Get("/"+p.Name(), adaptor.HTTPHandler(netpprof.Handler(p.Name())))
		}
		group.Get("/cmdline", adaptor.HTTPHandlerFunc(netpprof.Cmdline))
		group.Get("/profile", adaptor.HTTPHandlerFunc(netpprof.Profile))
		group.Get("/trace", adaptor.HTTPHandlerFunc(netpprof.Trace))
	}
	// Optional metrics
	if a.opts.Metrics {
		app.Get("/metrics", adaptor.HTTPHandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			metrics.WritePrometheus(w, true)
		}))
	}

	// Stremio endpoints

	manifestHandler, err := createManifestHandler(a.manifest, logger)
	if err != nil {
		return nil, fmt.Errorf("couldn't encode manifest: %w", err)
	}
	app.Get("/manifest.json", manifestHandler)

	if a.catalogHandlers != nil {
		cache := newCacheConfig(a.opts.CacheAgeCatalogs, a.opts.CachePublicCatalogs, a.opts.HandleEtagCatalogs)
		catalogHandler := createCatalogHandler(a.manifest, a.catalogHandlers, cache, logger)
		app.Get("/catalog/:type/:id.json", catalogHandler)
		app.Get("/catalog/:type/:id/:extras", catalogHandler)
	}

	if a.streamHandlers != nil {
		cache := newCacheConfig(a.opts.CacheAgeStreams, a.opts.CachePublicStreams, a.opts.HandleEtagStreams)
		app.Get("/stream/:type/:id.json", createStreamHandler(a.streamHandlers, cache, logger))
	}

	if a.metaHandlers != nil {
		cache := newCacheConfig(a.opts.CacheAgeMeta, a.opts.CachePublicMeta, a.opts.HandleEtagMeta)
		app.Get("/meta/:type/:id.json", createMetaHandler(a.metaHandlers, cache, logger))
	}

	// Additional endpoints

	// Root redirects to website
	if a.opts.RedirectURL != "" {
		app.Get("/", createRootHandler(a.opts.RedirectURL, logger))
	}

	// Custom endpoints
	for _, customEndpoint := range a.customEndpoints {
		app.Add([]string{customEndpoint.method}, customEndpoint.path, customEndpoint.handler)
	}

	logger.Info("Finished setting up server")
	return app, nil
}

// Run starts the remote addon. It sets up an HTTP server that handles requests to "/manifest.json" etc. and gracefully handles shutdowns.
// The call is *blocking*, so use the stoppingChan param if you want to be notified when the addon is about to shut down
// because of a system signal like Ctrl+C or `docker stop`. It should be a buffered channel with a capacity of 1.
func (a *Addon) Run(stoppingChan chan bool, fiberConf *fiber.Config) {
	logger := a.logger

	defer func() {
		// Fails for stdout on some platforms
		_ = logger.Sync()
	}()

	// Make sure the passed channel is buffered, so we can send a message before shutting down and not be blocked by the channel.
	if stoppingChan != nil && cap(stoppingChan) < 1 {
		logger.Fatal("The passed stopping channel isn't buffered")
	}

	app, err := a.App(fiberConf)
	if err != nil {
		logger.Fatal("Couldn't set up server", zap.Error(err))
	}

	stopping := false
	stoppingPtr := &stopping

	addr := a.opts.BindAddr + ":" + strconv.Itoa(a.opts.Port)
	logger.Info("Starting server", zap.String("address", addr))
	go func() {
		if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			if !*stoppingPtr {
				logger.Fatal("Couldn't start server", zap.Error(err))
			} else {
				logger.Fatal("Error in app.Listen() during server shutdown (probably context deadline expired before the server could shutdown cleanly)", zap.Error(err))
			}
		}
	}()

	// Graceful shutdown

	c := make(chan os.Signal, 1)
	// Accept SIGINT (Ctrl+C) and SIGTERM (`docker stop`)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	logger.Info("Received signal, shutting down server...", zap.Stringer("signal", sig))
	*stoppingPtr = true
	if stoppingChan != nil {
		stoppingChan <- true
	}
	// Graceful shutdown, waiting for all current requests to finish without accepting new ones.
	if err := app.Shutdown(); err != nil {
		logger.Fatal("Error shutting down server", zap.Error(err))
	}
	logger.Info("Finished shutting down server")
}
