package stremio

import (
	"time"

	"go.uber.org/zap"
)

// Options are the options that can be used to configure the addon.
type Options struct {
	// The interface to bind to.
	// "0.0.0.0" to bind to all interfaces. "localhost" to *exclude* requests from other machines.
	// Default "localhost".
	BindAddr string
	// The port to listen on.
	// Default 8080.
	Port int
	// You can set a custom logger, or leave this empty to create a new one
	// with sane defaults and the LoggingLevel and LogEncoding in these options.
	// If you already have a Zap logger, you can pass it here.
	Logger *zap.Logger
	// The logging level.
	// Only logs with the same or a higher log level will be shown.
	// For example when you set it to "info", info, warn and error logs will be shown, but no debug logs.
	// Accepts "debug", "info", "warn" and "error".
	// Only used when Logger is nil.
	// Default "info".
	LoggingLevel string
	// Configures whether logs are output in "console" or "json" format.
	// Only used when Logger is nil.
	// Default "console".
	LogEncoding string
	// Optional path of a file that logs are written to in addition to stdout.
	// The file is rotated when it reaches LogFileMaxSizeMB.
	// Only used when Logger is nil.
	LogFile string
	// Size in megabytes after which the log file is rotated.
	// Default 100.
	LogFileMaxSizeMB int
	// Flag for indicating whether requests should be logged.
	// Default false (meaning requests will be logged by default).
	DisableRequestLogging bool
	// Flag for indicating whether IP addresses should be logged.
	// Default false.
	LogIPs bool
	// Flag for indicating whether the user agent header should be logged.
	// Default false.
	LogUserAgent bool
	// URL to redirect to when someone requests the root of the handler instead of the manifest, catalog, stream etc.
	// When no value is set, it will lead to a "404 Not Found" response.
	// Default "".
	RedirectURL string
	// Flag for indicating whether you want to expose URL handlers for the Go profiler.
	// The URLs are the standard ones: "/debug/pprof/...".
	// Default false.
	Profiling bool
	// Flag for indicating whether you want to collect and expose Prometheus metrics.
	// The URL is the standard one: "/metrics".
	// There's no credentials required for accessing it. If you expose the addon to the public,
	// you might want to protect the metrics route in your reverse proxy.
	// Default false.
	Metrics bool

	// Duration of the catalog, stream and meta responses to be cached by clients.
	// They lead to a "Cache-Control" header. Zero means no header.
	// Empty responses aren't cached, so a title the provider adds later shows up without delay.
	// Default 0.
	CacheAgeCatalogs time.Duration
	CacheAgeStreams  time.Duration
	CacheAgeMeta     time.Duration
	// Flags for indicating whether the responses may also be cached by shared caches like CDNs.
	// Only makes sense in combination with the cache ages.
	// Default false.
	CachePublicCatalogs bool
	CachePublicStreams  bool
	CachePublicMeta     bool
	// Flags for indicating whether an ETag should be computed for the responses
	// and a "304 Not Modified" sent when the request's "If-None-Match" matches.
	// Only makes sense in combination with the cache ages.
	// Default false.
	HandleEtagCatalogs bool
	HandleEtagStreams  bool
	HandleEtagMeta     bool
}

// DefaultOptions is an Options object with default values.
// For fields that aren't set here the zero value is the default value.
var DefaultOptions = Options{
	BindAddr:         "localhost",
	Port:             8080,
	LoggingLevel:     "info",
	LogEncoding:      "console",
	LogFileMaxSizeMB: 100,
}
