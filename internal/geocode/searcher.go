package geocode

import (
	"context"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	// DefaultDebounce is how long a query must stay unchanged before it is looked up.
	DefaultDebounce = 300 * time.Millisecond

	// DefaultMinLength is the shortest query that triggers a lookup.
	DefaultMinLength = 3

	// DefaultLimit is the number of suggestions requested.
	DefaultLimit = 5
)

// SearcherConfig configures a Searcher.
type SearcherConfig struct {
	Provider  Provider
	Debounce  time.Duration
	MinLength int
	Limit     int
	Logger    zerolog.Logger
}

// Result is the outcome of one Search call.
type Result struct {
	Seq         uint64
	Query       string
	Suggestions []Suggestion
	// Failed is set when the provider errored and the result was emptied.
	Failed bool
}

// Searcher serves one input field. Each call takes the next sequence number; only the
// latest call's result is ever returned, older ones end with ErrSuperseded.
type Searcher struct {
	provider  Provider
	debounce  time.Duration
	minLength int
	limit     int
	logger    zerolog.Logger

	seq atomic.Uint64
}

// NewSearcher creates a searcher with defaults applied.
func NewSearcher(cfg SearcherConfig) *Searcher {
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	} else if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return &Searcher{
		provider:  cfg.Provider,
		debounce:  cfg.Debounce,
		minLength: cfg.MinLength,
		limit:     cfg.Limit,
		logger:    cfg.Logger,
	}
}

// Latest returns the sequence number of the most recent call.
func (s *Searcher) Latest() uint64 {
	return s.seq.Load()
}

// IsLatest reports whether seq belongs to the most recent call.
func (s *Searcher) IsLatest(seq uint64) bool {
	return s.seq.Load() == seq
}

// Search waits out the debounce window and queries the provider. Short queries resolve to an
// empty result without a lookup. Provider failures resolve to an empty result with Failed set
// and are not retried.
func (s *Searcher) Search(ctx context.Context, query string) (Result, error) {
	seq := s.seq.Add(1)
	query = strings.TrimSpace(query)
	res := Result{Seq: seq, Query: query}

	if utf8.RuneCountInString(query) < s.minLength {
		return res, nil
	}

	if s.debounce > 0 {
		timer := time.NewTimer(s.debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			return res, ctx.Err()
		case <-timer.C:
		}
	}
	if !s.IsLatest(seq) {
		return res, ErrSuperseded
	}

	if s.provider == nil {
		res.Failed = true
		return res, nil
	}

	suggestions, err := s.provider.Search(ctx, query, s.limit)
	if !s.IsLatest(seq) {
		return res, ErrSuperseded
	}
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		s.logger.Warn().Err(err).Str("query", query).Msg("geocode lookup failed")
		res.Failed = true
		return res, nil
	}

	if len(suggestions) > s.limit {
		suggestions = suggestions[:s.limit]
	}
	res.Suggestions = suggestions
	return res, nil
}
