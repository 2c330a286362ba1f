package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// parse parses the flags and returns the command's configuration source.
func parse(t *testing.T, args ...string) *viper.Viper {
	t.Helper()
	cmd, v := newRootCmd()
	require.NoError(t, cmd.ParseFlags(args))
	return v
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(parse(t))
	require.NoError(t, err)
	require.Equal(t, "localhost", cfg.BindAddr)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "http://localhost:8080", cfg.PublicURL)
	require.Equal(t, "scrape", cfg.Strategy)
	require.Equal(t, "https://superflixapi.digital", cfg.ProviderURL)
	require.Equal(t, "pt-BR", cfg.Language)
	require.False(t, cfg.Proxy)
	require.Equal(t, 6*time.Hour, cfg.ProxyTTL)
	require.Empty(t, cfg.ProxyAllowHosts)
	require.Equal(t, time.Hour, cfg.CacheAge)
}

func TestLoadConfigEnvAndFlags(t *testing.T) {
	t.Setenv("FORTAL_TMDB_API_KEY", " secret ")
	t.Setenv("FORTAL_PUBLIC_URL", "https://fortal.example.com/")
	t.Setenv("FORTAL_PROXY_ALLOW_HOSTS", "cdn.example.com, video.example.org")
	t.Setenv("FORTAL_PROXY_TTL", "30m")
	t.Setenv("FORTAL_PORT", "7000")

	cfg, err := loadConfig(parse(t, "--port", "9000", "--proxy", "--strategy", "listing"))
	require.NoError(t, err)
	require.Equal(t, "secret", cfg.TMDBAPIKey)
	require.Equal(t, "https://fortal.example.com", cfg.PublicURL)
	require.Equal(t, []string{"cdn.example.com", "video.example.org"}, cfg.ProxyAllowHosts)
	require.Equal(t, 30*time.Minute, cfg.ProxyTTL)
	// Flags win over env
	require.Equal(t, 9000, cfg.Port)
	require.True(t, cfg.Proxy)
	require.Equal(t, "listing", cfg.Strategy)
}

func TestLoadConfigInvalid(t *testing.T) {
	_, err := loadConfig(parse(t, "--port", "0"))
	require.Error(t, err)

	_, err = loadConfig(parse(t, "--public-url", "ftp://example.com"))
	require.Error(t, err)

	_, err = loadConfig(parse(t, "--cache-age=-1s"))
	require.Error(t, err)
}

func TestNewAddon(t *testing.T) {
	status := func(t *testing.T, cfg config, target string) int {
		t.Helper()
		addon, err := newAddon(cfg, zap.NewNop())
		require.NoError(t, err)
		app, err := addon.App(nil)
		require.NoError(t, err)
		res, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		require.NoError(t, err)
		return res.StatusCode
	}

	cfg, err := loadConfig(parse(t, "--proxy", "--public-url", "http://addon.test"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status(t, cfg, "/manifest.json"))
	require.Equal(t, http.StatusNotFound, status(t, cfg, "/proxy/unknown"))
	require.Equal(t, http.StatusForbidden, status(t, cfg, "/stream/aHR0cHM6Ly9leGFtcGxlLmNvbS92Lm1wNA.mp4"))

	cfg.Proxy = false
	require.Equal(t, http.StatusOK, status(t, cfg, "/health"))
	require.Equal(t, http.StatusNotFound, status(t, cfg, "/stream/aHR0cHM6Ly9leGFtcGxlLmNvbS92Lm1wNA.mp4"))

	cfg.Strategy = "magic"
	_, err = newAddon(cfg, zap.NewNop())
	require.Error(t, err)
}
