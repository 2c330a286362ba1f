// Package ids parses the ids Stremio sends and normalizes them to the IMDb ids the link
// provider understands.
package ids

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/mo"
	"go.uber.org/zap"

	"github.com/fortal-play/superflix-stremio/pkg/media"
)

// Scheme is the id scheme of an ID.
type Scheme int

const (
	IMDb Scheme = iota + 1
	TMDB
)

func (s Scheme) String() string {
	switch s {
	case IMDb:
		return "imdb"
	case TMDB:
		return "tmdb"
	}
	return fmt.Sprintf("Scheme(%d)", int(s))
}

const (
	tmdbPrefix = "tmdb:"
	separator  = ":"
)

var (
	imdbRegex = regexp.MustCompile(`^tt\d+$`)
	tmdbRegex = regexp.MustCompile(`^\d+$`)
)

var (
	// ErrRejected is the error all normalization failures wrap.
	ErrRejected = errors.New("id rejected")
	// ErrMalformed means the id couldn't be parsed.
	ErrMalformed = fmt.Errorf("%w: malformed id", ErrRejected)
	// ErrNoCrossReference means the TMDB id couldn't be translated to an IMDb id.
	ErrNoCrossReference = fmt.Errorf("%w: no imdb id for tmdb id", ErrRejected)
	// ErrEpisodeUnsupported means a series stream was requested for a specific episode.
	// Episode-level resolution isn't supported by the link provider integration.
	ErrEpisodeUnsupported = fmt.Errorf("%w: episode selection isn't supported", ErrRejected)
)

// ID is a canonical id. The zero value is invalid.
type ID struct {
	Scheme Scheme
	Value  string
}

// String returns the id as Stremio uses it ("tt0133093", "tmdb:603").
func (id ID) String() string {
	if id.Scheme == TMDB {
		return tmdbPrefix + id.Value
	}
	return id.Value
}

// Parsed is the result of parsing a compound id.
type Parsed struct {
	ID ID
	// Selector is everything after the working id, for example "1:2" for season 1 episode 2.
	Selector string
}

// Parse turns a compound id into its canonical id and selector.
func Parse(compound string) (Parsed, error) {
	compound = strings.TrimSpace(compound)
	rest, isTMDB := strings.CutPrefix(compound, tmdbPrefix)
	working, selector, _ := strings.Cut(rest, separator)

	switch {
	case isTMDB && tmdbRegex.MatchString(working):
		return Parsed{ID: ID{Scheme: TMDB, Value: working}, Selector: selector}, nil
	case !isTMDB && imdbRegex.MatchString(working):
		return Parsed{ID: ID{Scheme: IMDb, Value: working}, Selector: selector}, nil
	}
	return Parsed{}, fmt.Errorf("%w: %q", ErrMalformed, compound)
}

// CrossReferencer translates TMDB ids to IMDb ids.
// *tmdb.Client implements it.
type CrossReferencer interface {
	CrossReference(ctx context.Context, id string, kind media.Kind) (mo.Option[string], error)
}

// Normalizer turns compound ids into IMDb ids.
type Normalizer struct {
	xref   CrossReferencer
	logger *zap.Logger
}

// NewNormalizer creates a new Normalizer. The logger can be nil.
func NewNormalizer(xref CrossReferencer, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		xref:   xref,
		logger: logger.Named("ids"),
	}
}

// Normalize returns the IMDb id for the request.
// Every returned error wraps ErrRejected, which callers must treat as "no streams".
func (n *Normalizer) Normalize(ctx context.Context, req media.MediaRequest) (ID, error) {
	parsed, err := Parse(req.CompoundID)
	if err != nil {
		return ID{}, err
	}
	if req.Kind == media.Series && parsed.Selector != "" {
		return ID{}, fmt.Errorf("%w: %q", ErrEpisodeUnsupported, req.CompoundID)
	}

	id := parsed.ID
	if id.Scheme == TMDB {
		imdbID, err := n.xref.CrossReference(ctx, id.Value, req.Kind)
		if err != nil {
			return ID{}, fmt.Errorf("%w: %w", ErrNoCrossReference, err)
		}
		value, ok := imdbID.Get()
		if !ok {
			return ID{}, fmt.Errorf("%w: %s", ErrNoCrossReference, id)
		}
		n.logger.Debug("Converted id", zap.Stringer("from", id), zap.String("to", value))
		id = ID{Scheme: IMDb, Value: value}
	}

	if !imdbRegex.MatchString(id.Value) {
		return ID{}, fmt.Errorf("%w: %q isn't an imdb id", ErrMalformed, id.Value)
	}
	return id, nil
}
