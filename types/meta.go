package types

// MetaPreviewItem represents a meta preview item and is meant to be used within catalog responses.
// See https://github.com/Stremio/stremio-addon-sdk/blob/f6f1f2a8b627b9d4f2c62b003b251d98adadbebe/docs/api/responses/meta.md#meta-preview-object
type MetaPreviewItem struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Poster string `json:"poster"` // URL

	// Optional
	PosterShape string   `json:"posterShape,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	ReleaseInfo string   `json:"releaseInfo,omitempty"` // E.g. "2000" for movies and "2000-2014" or "2000-" for TV shows
	Description string   `json:"description,omitempty"`
}

// MetaItem represents a meta item and is meant to be used when info for a specific item was requested.
// See https://github.com/Stremio/stremio-addon-sdk/blob/f6f1f2a8b627b9d4f2c62b003b251d98adadbebe/docs/api/responses/meta.md
type MetaItem struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`

	// Optional
	Genres      []string       `json:"genres,omitempty"`
	Poster      string         `json:"poster,omitempty"` // URL
	PosterShape string         `json:"posterShape,omitempty"`
	Background  string         `json:"background,omitempty"` // URL
	Logo        string         `json:"logo,omitempty"`       // URL
	Description string         `json:"description,omitempty"`
	ReleaseInfo string         `json:"releaseInfo,omitempty"`
	Links       []MetaLinkItem `json:"links,omitempty"`
	Language    string         `json:"language,omitempty"`
	Website     string         `json:"website,omitempty"` // URL

	BehaviorHints MetaBehaviorHints `json:"behaviorHints,omitempty"`
}

type MetaBehaviorHints struct {
	// For movies this makes Stremio skip the video list and go straight to the streams
	DefaultVideoID string `json:"defaultVideoId,omitempty"`
}

// MetaLinkItem links to a page within Stremio or an external page.
type MetaLinkItem struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	URL      string `json:"url"`
}

// Preview returns the preview part of the meta item.
func (m MetaItem) Preview() MetaPreviewItem {
	return MetaPreviewItem{
		ID:          m.ID,
		Type:        m.Type,
		Name:        m.Name,
		Poster:      m.Poster,
		PosterShape: m.PosterShape,
		Genres:      m.Genres,
		ReleaseInfo: m.ReleaseInfo,
		Description: m.Description,
	}
}
