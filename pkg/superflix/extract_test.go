package superflix

import (
	"os"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) *goquery.Document {
	t.Helper()
	f, err := os.Open("testdata/" + name)
	require.NoError(t, err)
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	return doc
}

func TestExtractServerEntries(t *testing.T) {
	doc := loadFixture(t, "filme.html")

	entries := ExtractServerEntries(doc, DefaultSelectors)
	require.Equal(t, []ServerEntry{
		{ServerID: "1001", Label: "Dublado"},
		{ServerID: "1002", Label: "Servidor 2"},
		{ServerID: "1003", Label: "Dublado HD"},
		{ServerID: "legendado", Label: "Legendado"},
	}, entries)

	require.False(t, entries[0].IsSubtitled())
	require.True(t, entries[3].IsSubtitled())
}

func TestExtractServerEntriesCustomSelectors(t *testing.T) {
	html := `<ul id="servers">
		<li data-server="a">Alpha</li>
		<li data-server="b"></li>
	</ul>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	entries := ExtractServerEntries(doc, Selectors{Item: "#servers li", IDAttr: "data-server"})
	require.Equal(t, []ServerEntry{
		{ServerID: "a", Label: "Alpha"},
		{ServerID: "b", Label: "b"},
	}, entries)
}

func TestExtractServerEntriesNoMatch(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><body><p>Conteúdo não encontrado</p></body></html>`))
	require.NoError(t, err)
	require.Empty(t, ExtractServerEntries(doc, DefaultSelectors))
}
