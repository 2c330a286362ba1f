// Package media holds the domain types shared by the metadata lookup, the link resolver and the
// byte proxy.
package media

import (
	"fmt"
)

// Kind is the kind of media as Stremio names it.
type Kind string

const (
	Movie  Kind = "movie"
	Series Kind = "series"
)

func (k Kind) String() string {
	return string(k)
}

// TMDB returns the path segment TMDB uses for the kind ("movie" or "tv").
func (k Kind) TMDB() string {
	if k == Series {
		return "tv"
	}
	return "movie"
}

// Superflix returns the path segment the link provider uses for the kind ("filme" or "serie").
func (k Kind) Superflix() string {
	if k == Series {
		return "serie"
	}
	return "filme"
}

// CatalogItem is one movie or series found by the metadata lookup.
type CatalogItem struct {
	ID        string
	Kind      Kind
	Title     string
	PosterURL string

	// Only filled by detail lookups
	BackgroundURL string
	Description   string
	ReleaseInfo   string
	Genres        []string
}

// MediaRequest is a stream resolution request as it arrives from the host.
// CompoundID may carry a scheme prefix ("tmdb:603") and a selector suffix ("tt0111161:1:2").
type MediaRequest struct {
	CompoundID string
	Kind       Kind
}

// TransportHint tells the host how a resolved URL can be played.
type TransportHint int

const (
	// Direct URLs point at media the host's player can open itself.
	Direct TransportHint = iota
	// Embed URLs point at a web page that must be opened externally.
	Embed
	// NotWebReady URLs are media the host may not play natively (e.g. needs custom headers).
	NotWebReady
)

func (h TransportHint) String() string {
	switch h {
	case Direct:
		return "direct"
	case Embed:
		return "embed"
	case NotWebReady:
		return "not-web-ready"
	}
	return fmt.Sprintf("TransportHint(%d)", int(h))
}

// ResolvedSource is one playable source for a request.
type ResolvedSource struct {
	Label string
	URL   string
	Hint  TransportHint
	// Page the URL must be requested with as Referer, empty if none is needed
	Referer string
}

// ProxyEntry is what the byte proxy needs to re-resolve a source later.
// The video URL itself isn't stored because it's only valid for a short time.
type ProxyEntry struct {
	// Session cookies as sent in a Cookie header
	SessionToken string
	// Page the source was discovered on, sent as Referer
	OriginPageURL string
	// Server id for the provider's player endpoint
	VideoID string
}
