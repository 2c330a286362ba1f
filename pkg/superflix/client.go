// Package superflix resolves IMDb ids to playable sources on the Superflix link provider.
//
// The provider changes its pages and endpoints without notice, so three strategies exist
// side by side: a slug search endpoint, a page scrape followed by player API calls and a JSON listing.
package superflix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/fortal-play/superflix-stremio/pkg/media"
)

var (
	// ErrUpstream signals a network error or an unexpected status code.
	ErrUpstream = errors.New("superflix request failed")
	// ErrNotFound means the provider doesn't have the requested title.
	ErrNotFound = errors.New("title not found on superflix")
	// ErrNoServers means a page was found but no server entries could be extracted.
	ErrNoServers = errors.New("no server entries found")
	// ErrPlayer means the player endpoint didn't return a video URL.
	ErrPlayer = errors.New("player returned no video")
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options are the options for the provider client.
type Options struct {
	// Default "https://superflixapi.digital".
	BaseURL string
	// Timeout for a single request. Default 15s.
	Timeout time.Duration
	// Default is a desktop Chrome user agent.
	UserAgent string
	// Selectors for the server list on content pages.
	Selectors Selectors
	// Optional custom HTTP client. Timeout is ignored if this is set.
	// Its Jar is replaced per page fetch.
	HTTPClient *http.Client
}

// DefaultOptions is an Options object with default values.
var DefaultOptions = Options{
	BaseURL:   "https://superflixapi.digital",
	Timeout:   15 * time.Second,
	UserAgent: defaultUserAgent,
	Selectors: DefaultSelectors,
}

// Client talks to the provider.
type Client struct {
	baseURL    string
	userAgent  string
	selectors  Selectors
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Client. The logger can be nil.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultOptions.BaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultOptions.Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultOptions.UserAgent
	}
	if opts.Selectors.Item == "" {
		opts.Selectors = DefaultOptions.Selectors
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		selectors:  opts.Selectors,
		httpClient: opts.HTTPClient,
		logger:     logger.Named("superflix"),
	}
}

// BaseURL returns the provider's base URL without trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ContentURL returns the URL of the content page for an IMDb id.
func (c *Client) ContentURL(kind media.Kind, imdbID string) string {
	return c.baseURL + "/" + kind.Superflix() + "/" + url.PathEscape(imdbID)
}

// page is a fetched content page together with the session cookies the provider set.
type page struct {
	url     string
	body    []byte
	session string
}

// fetchPage GETs a page with a fresh cookie jar, so the provider's session cookie can be reused for follow-up calls.
func (c *Client) fetchPage(ctx context.Context, pageURL string) (page, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return page{}, err
	}
	httpClient := *c.httpClient
	httpClient.Jar = jar

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return page{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	res, err := httpClient.Do(req)
	if err != nil {
		return page{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return page{}, ErrNotFound
	} else if res.StatusCode != http.StatusOK {
		return page{}, fmt.Errorf("%w: bad status: %s", ErrUpstream, res.Status)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return page{}, fmt.Errorf("%w: couldn't read body: %w", ErrUpstream, err)
	}

	return page{
		url:     pageURL,
		body:    body,
		session: cookieHeader(jar.Cookies(res.Request.URL)),
	}, nil
}

// PlayerURL asks the provider's player endpoint for the video URL of a server entry.
// The session and referer must be the ones of the page the server entry was found on.
// The returned URL is only valid for a short time.
func (c *Client) PlayerURL(ctx context.Context, session, referer, videoID string) (string, error) {
	form := url.Values{}
	form.Set("action", "getPlayer")
	form.Set("video_id", videoID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("User-Agent", c.userAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	if session != "" {
		req.Header.Set("Cookie", session)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: bad status: %s", ErrUpstream, res.Status)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("%w: couldn't read body: %w", ErrUpstream, err)
	}

	success, err := jsonparser.GetBoolean(body, "success")
	if err != nil || !success {
		return "", fmt.Errorf("%w: video %s: success=%t", ErrPlayer, videoID, success)
	}
	videoURL, err := jsonparser.GetString(body, "data", "video_url")
	if err != nil || videoURL == "" {
		return "", fmt.Errorf("%w: video %s: missing video_url", ErrPlayer, videoID)
	}
	return videoURL, nil
}

func cookieHeader(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// HintFor guesses how the host can play a URL, based on its file extension.
func HintFor(rawURL string) media.TransportHint {
	u, err := url.Parse(rawURL)
	if err != nil {
		return media.NotWebReady
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".mp4", ".m4v", ".webm", ".m3u8":
		return media.Direct
	case ".html", ".htm", ".php":
		return media.Embed
	}
	return media.NotWebReady
}
