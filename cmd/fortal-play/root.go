package main

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	stremio "github.com/fortal-play/superflix-stremio"
	"github.com/fortal-play/superflix-stremio/pkg/fortal"
	"github.com/fortal-play/superflix-stremio/pkg/ids"
	"github.com/fortal-play/superflix-stremio/pkg/proxy"
	"github.com/fortal-play/superflix-stremio/pkg/superflix"
	"github.com/fortal-play/superflix-stremio/pkg/tmdb"
)

const envPrefix = "FORTAL"

type config struct {
	TMDBAPIKey      string
	PublicURL       string
	BindAddr        string
	Port            int
	Language        string
	Strategy        string
	ProviderURL     string
	Proxy           bool
	ProxyTTL        time.Duration
	ProxyCacheMB    int
	ProxyConsume    bool
	ProxyAllowHosts []string
	LogLevel        string
	LogEncoding     string
	LogFile         string
	Metrics         bool
	Profiling       bool
	CacheAge        time.Duration
}

func newRootCmd() (*cobra.Command, *viper.Viper) {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:     "fortal-play",
		Short:   "Stremio addon that searches TMDB and streams from Superflix",
		Version: version,
		Long: `Fortal Play is a Stremio addon.

Its catalogs search movies and series on TMDB. Streams are resolved on Superflix
by IMDb id and can optionally be relayed through the addon's byte proxy.

Every flag can also be set via environment variable, e.g. FORTAL_TMDB_API_KEY
for --tmdb-api-key, or in a config file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if cfgFile == "" {
				return nil
			}
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("couldn't read config file: %w", err)
			}
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("couldn't create logger: %w", err)
			}
			if cfg.TMDBAPIKey == "" {
				logger.Warn("No TMDB API key set, catalogs and tmdb ids will return empty results")
			}

			addon, err := newAddon(cfg, logger)
			if err != nil {
				return err
			}
			logger.Info("Configured addon", zap.String("publicURL", cfg.PublicURL), zap.String("strategy", cfg.Strategy), zap.Bool("proxy", cfg.Proxy))
			addon.Run(nil, nil)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (json, yaml or toml)")

	flags := cmd.Flags()
	flags.String("tmdb-api-key", "", "TMDB API key")
	flags.String("public-url", "", `Public URL of the addon, used for proxy URLs (default "http://<bind-addr>:<port>")`)
	flags.String("bind-addr", stremio.DefaultOptions.BindAddr, `Interface to bind to, "0.0.0.0" for all`)
	flags.Int("port", stremio.DefaultOptions.Port, "Listening port")
	flags.String("language", tmdb.DefaultClientOptions.Language, "Language of TMDB titles and overviews")
	flags.String("strategy", superflix.StrategyScrape, "Link resolution strategy: endpoint, scrape or listing")
	flags.String("provider-url", superflix.DefaultOptions.BaseURL, "Base URL of Superflix")
	flags.Bool("proxy", false, "Relay resolved streams through the addon")
	flags.Duration("proxy-ttl", 6*time.Hour, "How long proxy URLs stay valid")
	flags.Int("proxy-cache-mb", 16, "Memory for proxy entries in MB")
	flags.Bool("proxy-consume", false, "Invalidate proxy URLs on first use")
	flags.StringSlice("proxy-allow-hosts", nil, "Hosts the /stream endpoint may relay, subdomains included")
	flags.String("log-level", stremio.DefaultOptions.LoggingLevel, `"debug", "info", "warn" or "error"`)
	flags.String("log-encoding", stremio.DefaultOptions.LogEncoding, `"console" or "json"`)
	flags.String("log-file", "", "Also write JSON logs to this file, rotated")
	flags.Bool("metrics", false, `Serve Prometheus metrics at "/metrics"`)
	flags.Bool("profiling", false, `Serve pprof at "/debug/pprof/"`)
	flags.Duration("cache-age", time.Hour, "Cache age of catalog and meta responses, 0 to disable caching")

	lo.Must0(v.BindPFlags(flags))
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd, v
}

func loadConfig(v *viper.Viper) (config, error) {
	cfg := config{
		TMDBAPIKey:   strings.TrimSpace(v.GetString("tmdb-api-key")),
		PublicURL:    strings.TrimSuffix(v.GetString("public-url"), "/"),
		BindAddr:     v.GetString("bind-addr"),
		Port:         v.GetInt("port"),
		Language:     v.GetString("language"),
		Strategy:     v.GetString("strategy"),
		ProviderURL:  v.GetString("provider-url"),
		Proxy:        v.GetBool("proxy"),
		ProxyTTL:     v.GetDuration("proxy-ttl"),
		ProxyCacheMB: v.GetInt("proxy-cache-mb"),
		ProxyConsume: v.GetBool("proxy-consume"),
		LogLevel:     v.GetString("log-level"),
		LogEncoding:  v.GetString("log-encoding"),
		LogFile:      v.GetString("log-file"),
		Metrics:      v.GetBool("metrics"),
		Profiling:    v.GetBool("profiling"),
		CacheAge:     v.GetDuration("cache-age"),
	}
	// Env values arrive as one string
	cfg.ProxyAllowHosts = lo.Compact(lo.FlatMap(v.GetStringSlice("proxy-allow-hosts"), func(s string, _ int) []string {
		return lo.Map(strings.Split(s, ","), func(host string, _ int) string {
			return strings.TrimSpace(host)
		})
	}))

	if cfg.Port < 1 || cfg.Port > 65535 {
		return config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.CacheAge < 0 {
		return config{}, errors.New("cache age can't be negative")
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = "http://" + cfg.BindAddr + ":" + strconv.Itoa(cfg.Port)
	}
	if u, err := url.Parse(cfg.PublicURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return config{}, fmt.Errorf("invalid public URL %q", cfg.PublicURL)
	}
	return cfg, nil
}

func newLogger(cfg config) (*zap.Logger, error) {
	if cfg.LogFile != "" {
		return stremio.NewFileLogger(cfg.LogLevel, cfg.LogEncoding, cfg.LogFile, stremio.DefaultOptions.LogFileMaxSizeMB)
	}
	return stremio.NewLogger(cfg.LogLevel, cfg.LogEncoding)
}

// newAddon wires metadata lookup, id normalization, link resolution and the optional proxy into the addon host.
func newAddon(cfg config, logger *zap.Logger) (*stremio.Addon, error) {
	tmdbClient := tmdb.NewClient(tmdb.ClientOptions{
		APIKey:   cfg.TMDBAPIKey,
		Language: cfg.Language,
	}, tmdb.NewInMemoryCache(0), logger)
	normalizer := ids.NewNormalizer(tmdbClient, logger)
	superflixClient := superflix.NewClient(superflix.Options{BaseURL: cfg.ProviderURL}, logger)

	// Interfaces stay nil without proxy
	var registrar superflix.Registrar
	var wrapper fortal.StreamWrapper
	var byteProxy *proxy.Proxy
	if cfg.Proxy {
		var err error
		store := proxy.NewStore(cfg.ProxyCacheMB*1024*1024, cfg.ProxyTTL)
		byteProxy, err = proxy.New(proxy.Options{
			PublicBaseURL: cfg.PublicURL,
			ConsumeOnUse:  cfg.ProxyConsume,
			AllowedHosts:  cfg.ProxyAllowHosts,
		}, store, superflixClient, logger)
		if err != nil {
			return nil, fmt.Errorf("couldn't create proxy: %w", err)
		}
		registrar = byteProxy
		wrapper = byteProxy
	}

	strategy, err := superflix.NewStrategy(cfg.Strategy, superflixClient, registrar)
	if err != nil {
		return nil, err
	}
	resolver := superflix.NewResolver(cfg.Strategy, strategy, logger)
	handlers := fortal.NewHandlers(tmdbClient, normalizer, resolver, wrapper, logger)

	opts := stremio.Options{
		BindAddr:    cfg.BindAddr,
		Port:        cfg.Port,
		Logger:      logger,
		LogEncoding: cfg.LogEncoding,
		Metrics:     cfg.Metrics,
		Profiling:   cfg.Profiling,
	}
	if cfg.CacheAge > 0 {
		opts.CacheAgeCatalogs = cfg.CacheAge
		opts.CacheAgeMeta = cfg.CacheAge
		opts.CachePublicCatalogs = true
		opts.CachePublicMeta = true
		opts.HandleEtagCatalogs = true
		opts.HandleEtagMeta = true
	}

	addon, err := stremio.NewAddon(fortal.Manifest(version), handlers.CatalogHandlers(), handlers.StreamHandlers(), handlers.MetaHandlers(), opts)
	if err != nil {
		return nil, fmt.Errorf("couldn't create addon: %w", err)
	}
	if byteProxy != nil {
		addon.AddEndpoint(fiber.MethodGet, "/proxy/:key", byteProxy.HandleProxy)
		addon.AddEndpoint(fiber.MethodGet, "/stream/:payload.:ext", byteProxy.HandleStream)
	}
	return addon, nil
}
