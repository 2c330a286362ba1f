// Package proxy streams provider video bytes through the addon.
//
// Provider video URLs are bound to the session they were resolved in and expire quickly.
// Instead of handing them to the player, the resolver registers what's needed to resolve them again,
// and the proxy does that on each playback request.
package proxy

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fortal-play/superflix-stremio/pkg/media"
)

// Bytes read from the body for content type detection when upstream doesn't send one.
const sniffLen = 3072

// Headers copied from the upstream response.
var passthroughHeaders = []string{
	fiber.HeaderContentType,
	fiber.HeaderAcceptRanges,
	fiber.HeaderContentRange,
	fiber.HeaderLastModified,
	fiber.HeaderETag,
}

// PlayerResolver resolves a server entry to a fresh video URL.
// It's implemented by the superflix client.
type PlayerResolver interface {
	PlayerURL(ctx context.Context, session, referer, videoID string) (string, error)
}

// Options are the options for the Proxy.
type Options struct {
	// Public URL of the addon, used for the URLs returned by Register. Required.
	PublicBaseURL string
	// Delete entries on their first successful use instead of waiting for the TTL.
	// Players that send multiple range requests for one playback won't work with this.
	ConsumeOnUse bool
	// Hosts the /stream endpoint may fetch. Subdomains are included.
	AllowedHosts []string
	// Timeout for receiving upstream response headers. Default 15s.
	// The body is streamed without deadline.
	HeaderTimeout time.Duration
	// Default is the superflix client's user agent.
	UserAgent string
	// Optional custom HTTP client. HeaderTimeout is ignored if this is set.
	HTTPClient *http.Client
}

// DefaultOptions is an Options object with default values.
// PublicBaseURL must still be set.
var DefaultOptions = Options{
	HeaderTimeout: 15 * time.Second,
	UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Proxy registers sources and serves their bytes.
type Proxy struct {
	opts       Options
	store      *Store
	resolver   PlayerResolver
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a new Proxy. The logger can be nil.
func New(opts Options, store *Store, resolver PlayerResolver, logger *zap.Logger) (*Proxy, error) {
	if opts.PublicBaseURL == "" {
		return nil, errors.New("a public base URL is required for the proxy")
	} else if store == nil || resolver == nil {
		return nil, errors.New("the proxy requires a store and a player resolver")
	}
	if opts.HeaderTimeout == 0 {
		opts.HeaderTimeout = DefaultOptions.HeaderTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultOptions.UserAgent
	}
	if opts.HTTPClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = opts.HeaderTimeout
		opts.HTTPClient = &http.Client{Transport: transport}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.PublicBaseURL = strings.TrimSuffix(opts.PublicBaseURL, "/")

	return &Proxy{
		opts:       opts,
		store:      store,
		resolver:   resolver,
		httpClient: opts.HTTPClient,
		logger:     logger.Named("proxy"),
	}, nil
}

// Register stores the entry under a new random key and returns the proxy URL for it.
func (p *Proxy) Register(entry media.ProxyEntry) (string, error) {
	key := uuid.NewString()
	if err := p.store.Put(key, entry); err != nil {
		return "", err
	}
	metrics.GetOrCreateCounter(`proxy_registered_total`).Inc()
	return p.opts.PublicBaseURL + "/proxy/" + key, nil
}

// StreamURL returns the /stream URL for an upstream URL.
// The second return value is false if the host isn't allowed, in which case the URL shouldn't be proxied.
func (p *Proxy) StreamURL(upstreamURL string) (string, bool) {
	u, err := url.Parse(upstreamURL)
	if err != nil || !p.allowed(u) {
		return "", false
	}
	ext := strings.TrimPrefix(path.Ext(u.Path), ".")
	if ext == "" {
		ext = "mp4"
	}
	return p.opts.PublicBaseURL + "/stream/" + EncodePayload(upstreamURL) + "." + ext, true
}

// EncodePayload encodes an upstream URL for the /stream endpoint.
func EncodePayload(upstreamURL string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(upstreamURL))
}

func decodePayload(payload string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(payload, "="))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// HandleProxy serves "/proxy/:key".
// Unknown keys lead to a 404 without any upstream call, failed re-resolution to a 502.
// With ConsumeOnUse the entry is deleted once upstream answered a GET with a 2xx status,
// failed attempts leave it in place.
func (p *Proxy) HandleProxy(c fiber.Ctx) error {
	key := c.Params("key")
	logger := p.logger.With(zap.String("key", key))

	entry, err := p.store.Get(key)
	if errors.Is(err, ErrNotFound) {
		countOutcome("miss")
		logger.Debug("Unknown proxy key")
		return c.SendStatus(fiber.StatusNotFound)
	} else if err != nil {
		countOutcome("store_error")
		logger.Error("Couldn't read proxy entry", zap.Error(err))
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	var ctx context.Context = c.Context()
	videoURL, err := p.resolver.PlayerURL(ctx, entry.SessionToken, entry.OriginPageURL, entry.VideoID)
	if err != nil {
		countOutcome("resolve_failed")
		logger.Warn("Couldn't re-resolve video URL", zap.String("videoID", entry.VideoID), zap.Error(err))
		return c.SendStatus(fiber.StatusBadGateway)
	}

	var consume func() bool
	if p.opts.ConsumeOnUse && c.Method() == fiber.MethodGet {
		consume = func() bool {
			return p.store.Consume(key)
		}
	}
	return p.pipe(ctx, c, videoURL, entry.OriginPageURL, consume)
}

// HandleStream serves "/stream/:payload.:ext", where the payload is an upstream URL encoded with EncodePayload.
func (p *Proxy) HandleStream(c fiber.Ctx) error {
	upstreamURL, err := decodePayload(c.Params("payload"))
	if err != nil {
		countOutcome("bad_payload")
		return c.SendStatus(fiber.StatusBadRequest)
	}
	u, err := url.Parse(upstreamURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		countOutcome("bad_payload")
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if !p.allowed(u) {
		countOutcome("forbidden")
		p.logger.Info("Refusing to proxy host", zap.String("host", u.Hostname()))
		return c.SendStatus(fiber.StatusForbidden)
	}

	return p.pipe(c.Context(), c, upstreamURL, "", nil)
}

func (p *Proxy) allowed(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, allowed := range p.opts.AllowedHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}
		if h, _, err := net.SplitHostPort(allowed); err == nil {
			allowed = h
		}
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// pipe fetches the upstream URL and streams its body to the client.
// The client's Range header is forwarded and non-2xx statuses are passed on without body.
// If set, consume is called on a 2xx answer, and a false result turns the response into a 404.
func (p *Proxy) pipe(ctx context.Context, c fiber.Ctx, upstreamURL, referer string, consume func() bool) error {
	req, err := http.NewRequestWithContext(ctx, c.Method(), upstreamURL, nil)
	if err != nil {
		countOutcome("bad_upstream_url")
		return c.SendStatus(fiber.StatusBadGateway)
	}
	req.Header.Set("User-Agent", p.opts.UserAgent)
	req.Header.Set("Accept", "*/*")
	// Byte ranges must refer to the raw body
	req.Header.Set("Accept-Encoding", "identity")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	if rangeHeader := c.Get(fiber.HeaderRange); rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	start := time.Now()
	res, err := p.httpClient.Do(req)
	if err != nil {
		countOutcome("upstream_error")
		p.logger.Warn("Upstream request failed", zap.String("host", req.URL.Host), zap.Error(err))
		return c.SendStatus(fiber.StatusBadGateway)
	}
	metrics.GetOrCreateHistogram(`proxy_upstream_header_duration_seconds`).UpdateDuration(start)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		res.Body.Close()
		countOutcome("upstream_status")
		p.logger.Info("Upstream returned error status", zap.String("host", req.URL.Host), zap.Int("status", res.StatusCode))
		return c.SendStatus(res.StatusCode)
	}
	if consume != nil && !consume() {
		res.Body.Close()
		countOutcome("consumed")
		return c.SendStatus(fiber.StatusNotFound)
	}

	for _, h := range passthroughHeaders {
		if v := res.Header.Get(h); v != "" {
			c.Set(h, v)
		}
	}
	c.Status(res.StatusCode)
	countOutcome("ok")

	if c.Method() == fiber.MethodHead {
		res.Body.Close()
		if res.ContentLength >= 0 {
			c.Set(fiber.HeaderContentLength, fmt.Sprint(res.ContentLength))
		}
		return nil
	}

	var body io.Reader = res.Body
	if res.Header.Get(fiber.HeaderContentType) == "" {
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(res.Body, head)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			res.Body.Close()
			countOutcome("upstream_error")
			return c.SendStatus(fiber.StatusBadGateway)
		}
		head = head[:n]
		c.Set(fiber.HeaderContentType, mimetype.Detect(head).String())
		body = io.MultiReader(bytes.NewReader(head), res.Body)
	}

	// SendStream closes the body once it's fully sent
	stream := readCloser{Reader: body, Closer: res.Body}
	if res.ContentLength >= 0 {
		return c.SendStream(stream, int(res.ContentLength))
	}
	return c.SendStream(stream)
}

type readCloser struct {
	io.Reader
	io.Closer
}

func countOutcome(outcome string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`proxy_requests_total{outcome=%q}`, outcome)).Inc()
}
