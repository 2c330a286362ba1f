package superflix

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"go.uber.org/zap"

	"github.com/fortal-play/superflix-stremio/pkg/media"
)

// Resolver runs a Strategy and turns every failure into an empty result.
// The failure is logged and counted, but never returned.
type Resolver struct {
	name     string
	strategy Strategy
	logger   *zap.Logger
}

// NewResolver creates a new Resolver. The logger can be nil.
func NewResolver(name string, strategy Strategy, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		name:     name,
		strategy: strategy,
		logger:   logger.Named("resolver"),
	}
}

// Resolve returns the sources for an IMDb id. The list is empty (never nil) if nothing was found or anything failed.
func (r *Resolver) Resolve(ctx context.Context, kind media.Kind, imdbID string) []media.ResolvedSource {
	start := time.Now()
	sources, err := r.strategy.Resolve(ctx, kind, imdbID)
	outcome := outcomeOf(err)

	metrics.GetOrCreateCounter(fmt.Sprintf(`superflix_resolve_total{strategy=%q,outcome=%q}`, r.name, outcome)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`superflix_resolve_duration_seconds{strategy=%q}`, r.name)).UpdateDuration(start)

	fields := []zap.Field{
		zap.String("stage", "resolve"),
		zap.String("strategy", r.name),
		zap.String("id", imdbID),
		zap.Stringer("kind", kind),
		zap.String("outcome", outcome),
	}
	if err != nil {
		level := zap.InfoLevel
		if outcome == "upstream_error" {
			level = zap.WarnLevel
		}
		r.logger.Log(level, "No sources", append(fields, zap.Error(err))...)
		return []media.ResolvedSource{}
	}
	r.logger.Debug("Resolved sources", append(fields, zap.Int("sources", len(sources)))...)
	if sources == nil {
		return []media.ResolvedSource{}
	}
	return sources
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNoServers):
		return "no_servers"
	case errors.Is(err, ErrPlayer):
		return "player_failed"
	}
	return "upstream_error"
}
