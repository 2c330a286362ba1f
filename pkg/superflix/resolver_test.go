package superflix

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/require"

	"github.com/fortal-play/superflix-stremio/pkg/media"
)

type strategyFunc func(ctx context.Context, kind media.Kind, imdbID string) ([]media.ResolvedSource, error)

func (f strategyFunc) Resolve(ctx context.Context, kind media.Kind, imdbID string) ([]media.ResolvedSource, error) {
	return f(ctx, kind, imdbID)
}

func TestResolver(t *testing.T) {
	source := media.ResolvedSource{Label: "Dublado", URL: "https://cdn.example.com/1.mp4", Hint: media.Direct}

	tests := []struct {
		name        string
		sources     []media.ResolvedSource
		err         error
		wantOutcome string
		want        []media.ResolvedSource
	}{
		{"ok", []media.ResolvedSource{source}, nil, "ok", []media.ResolvedSource{source}},
		{"nil without error", nil, nil, "ok", []media.ResolvedSource{}},
		{"not found", nil, fmt.Errorf("page: %w", ErrNotFound), "not_found", []media.ResolvedSource{}},
		{"no servers", nil, ErrNoServers, "no_servers", []media.ResolvedSource{}},
		{"player", nil, fmt.Errorf("%w: all 2 server entries failed", ErrPlayer), "player_failed", []media.ResolvedSource{}},
		{"upstream", nil, fmt.Errorf("%w: bad status", ErrUpstream), "upstream_error", []media.ResolvedSource{}},
		{"other", nil, errors.New("boom"), "upstream_error", []media.ResolvedSource{}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			name := "test-" + test.name
			r := NewResolver(name, strategyFunc(func(_ context.Context, kind media.Kind, imdbID string) ([]media.ResolvedSource, error) {
				require.Equal(t, media.Series, kind)
				require.Equal(t, "tt0944947", imdbID)
				return test.sources, test.err
			}), nil)

			got := r.Resolve(context.Background(), media.Series, "tt0944947")
			require.Equal(t, test.want, got)

			counter := metrics.GetOrCreateCounter(fmt.Sprintf(`superflix_resolve_total{strategy=%q,outcome=%q}`, name, test.wantOutcome))
			require.Equal(t, uint64(1), counter.Get())
		})
	}
}
