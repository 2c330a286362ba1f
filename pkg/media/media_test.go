package media

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindPathSegments(t *testing.T) {
	require.Equal(t, "movie", Movie.TMDB())
	require.Equal(t, "tv", Series.TMDB())
	require.Equal(t, "filme", Movie.Superflix())
	require.Equal(t, "serie", Series.Superflix())
}

func TestTransportHintString(t *testing.T) {
	require.Equal(t, "direct", Direct.String())
	require.Equal(t, "embed", Embed.String())
	require.Equal(t, "not-web-ready", NotWebReady.String())
	require.Equal(t, "TransportHint(9)", TransportHint(9).String())
}
