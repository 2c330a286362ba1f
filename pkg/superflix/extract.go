package superflix

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors locate the server list on a content page.
// Only this part of the package knows about the provider's markup.
type Selectors struct {
	// CSS selector matching one element per server entry.
	Item string
	// Attribute of the item that holds the server id.
	IDAttr string
	// Optional attribute with the label. The item's text is used if it's missing.
	LabelAttr string
}

// DefaultSelectors match the provider's current player page.
var DefaultSelectors = Selectors{
	Item:      ".player_select_item",
	IDAttr:    "data-id",
	LabelAttr: "data-label",
}

// ServerEntry is one candidate source on a content page, for example the dubbed or subtitled version.
type ServerEntry struct {
	ServerID string
	Label    string
}

// subtitledIDs are the server ids the provider uses for its subtitled pseudo server,
// which isn't resolved via the player endpoint.
var subtitledIDs = []string{"legendado", "subtitled"}

// IsSubtitled reports whether the entry is the subtitled pseudo server.
func (e ServerEntry) IsSubtitled() bool {
	for _, id := range subtitledIDs {
		if strings.EqualFold(e.ServerID, id) {
			return true
		}
	}
	return false
}

// ExtractServerEntries returns the server entries of a content page in page order.
// Entries without a server id are skipped.
func ExtractServerEntries(doc *goquery.Document, sel Selectors) []ServerEntry {
	var entries []ServerEntry
	doc.Find(sel.Item).Each(func(_ int, s *goquery.Selection) {
		id := strings.TrimSpace(s.AttrOr(sel.IDAttr, ""))
		if id == "" {
			return
		}
		label := ""
		if sel.LabelAttr != "" {
			label = strings.TrimSpace(s.AttrOr(sel.LabelAttr, ""))
		}
		if label == "" {
			label = strings.Join(strings.Fields(s.Text()), " ")
		}
		if label == "" {
			label = id
		}
		entries = append(entries, ServerEntry{ServerID: id, Label: label})
	})
	return entries
}

func parseDocument(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}
