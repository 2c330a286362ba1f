package types

// StreamItem represents a stream for a MetaItem.
// See https://github.com/Stremio/stremio-addon-sdk/blob/f6f1f2a8b627b9d4f2c62b003b251d98adadbebe/docs/api/responses/stream.md
type StreamItem struct {
	// Exactly one of the following is required
	URL         string `json:"url,omitempty"`         // Played by Stremio's player
	ExternalURL string `json:"externalUrl,omitempty"` // Opened in the browser

	// Optional
	Name          string              `json:"name,omitempty"`
	Title         string              `json:"title,omitempty"` // Usually used for stream quality
	Description   string              `json:"description,omitempty"`
	BehaviorHints StreamBehaviorHints `json:"behaviorHints,omitempty"`
}

// Valid reports whether exactly one of URL and ExternalURL is set.
func (s StreamItem) Valid() bool {
	return (s.URL == "") != (s.ExternalURL == "")
}

type StreamBehaviorHints struct {
	// The URL can't be played in a browser (e.g. because of CORS or the container format) and must go through Stremio's streaming server
	NotWebReady bool `json:"notWebReady,omitempty"`
	// Streams with the same group are auto-selected for the next episode
	BingeGroup   string        `json:"bingeGroup,omitempty"`
	ProxyHeaders *ProxyHeaders `json:"proxyHeaders,omitempty"` // Only used with NotWebReady
	Filename     string        `json:"filename,omitempty"`
}

// ProxyHeaders are sent by Stremio's streaming server when it fetches a NotWebReady stream.
type ProxyHeaders struct {
	Request  map[string]string `json:"request,omitempty"`
	Response map[string]string `json:"response,omitempty"`
}
