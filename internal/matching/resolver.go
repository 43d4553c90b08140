package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/shared"
	"golang.org/x/time/rate"
)

// DefaultSearchTimeout bounds a single query attempt.
const DefaultSearchTimeout = 120 * time.Second

// MaxSurfaced is the number of candidates offered for manual disambiguation.
const MaxSurfaced = 3

// State is the resolver's per-track outcome.
type State int

const (
	Searching State = iota
	AutoMatched
	Awaiting
	UserResolved
	UserSkipped
	NoMatch
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case AutoMatched:
		return "auto_matched"
	case Awaiting:
		return "awaiting"
	case UserResolved:
		return "user_resolved"
	case UserSkipped:
		return "user_skipped"
	case NoMatch:
		return "no_match"
	default:
		return ""
	}
}

// Matched reports whether s carries a usable candidate.
func (s State) Matched() bool {
	return s == AutoMatched || s == UserResolved
}

// Searcher is the search collaborator: free-text query in, candidates out.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.Candidate, error)
}

// Decision is the answer to a disambiguation request: exactly one of a chosen candidate or Skip.
type Decision struct {
	Candidate *models.Candidate
	Skip      bool
}

// Disambiguator suspends until a human picks one of candidates or skips the track.
type Disambiguator interface {
	Await(ctx context.Context, track models.Track, candidates []models.Candidate) (Decision, error)
}

// Resolution is the result of resolving one track.
type Resolution struct {
	State      State
	Candidate  *models.Candidate  // Set when State.Matched()
	Candidates []models.Candidate // Ranked survivors; at most MaxSurfaced when disambiguation was needed
	Query      string             // Variant that produced results
}

// ResolverOpts configures a [Resolver].
type ResolverOpts struct {
	Searcher      Searcher
	Disambiguator Disambiguator // When nil, ambiguous tracks return State Awaiting without blocking
	Cache         *SearchCache
	Limiter       *rate.Limiter // Optional outbound search limiter
	Timeout       time.Duration
	Limit         int // Results requested per query
	Logger        *log.Logger
}

// Resolver runs the per-track search-and-score state machine.
type Resolver struct {
	searcher      Searcher
	disambiguator Disambiguator
	cache         *SearchCache
	limiter       *rate.Limiter
	timeout       time.Duration
	limit         int
	logger        *log.Logger
}

// NewResolver creates a [Resolver], filling unset options with defaults.
func NewResolver(opts ResolverOpts) *Resolver {
	if opts.Cache == nil {
		opts.Cache = NewSearchCache()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSearchTimeout
	}
	if opts.Limit <= 0 {
		opts.Limit = 5
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Resolver{
		searcher:      opts.Searcher,
		disambiguator: opts.Disambiguator,
		cache:         opts.Cache,
		limiter:       opts.Limiter,
		timeout:       opts.Timeout,
		limit:         opts.Limit,
		logger:        opts.Logger,
	}
}

// Queries returns the search variants for a track, from most to least specific.
func Queries(artist, title string) []string {
	base := strings.TrimSpace(artist + " " + title)
	return []string{
		base + " official audio",
		base + " official video",
		base + " lyrics",
		base,
	}
}

// Resolve searches for track and applies the decision policy:
//   - top score >= [AutoAcceptScore], or a single survivor, is accepted automatically;
//   - several low-confidence survivors are surfaced (at most [MaxSurfaced]) to the [Disambiguator];
//   - no survivors, or a failed search, is NoMatch.
//
// The only error returned is the context's, so cancellation propagates instead of becoming NoMatch.
func (r *Resolver) Resolve(ctx context.Context, track models.Track) (Resolution, error) {
	logger := shared.WithLogger(r.logger, "track", track.Index, "artist", track.Artist, "title", track.Title)

	results, query, err := r.search(ctx, track)
	if err != nil {
		return Resolution{State: NoMatch}, err
	}

	ranked := Rank(results, track)
	res := Resolution{Query: query}
	res.State, res.Candidates = Classify(ranked)

	switch res.State {
	case NoMatch:
		logger.Info("no match", "results", len(results))
		return res, nil
	case AutoMatched:
		best := res.Candidates[0]
		logger.Info("auto matched", "id", best.ID, "score", fmt.Sprintf("%.3f", best.Score))
		res.Candidate = &best
		return res, nil
	}

	if r.disambiguator == nil {
		return res, nil
	}

	logger.Info("awaiting decision", "candidates", len(res.Candidates), "top", fmt.Sprintf("%.3f", res.Candidates[0].Score))
	decision, err := r.disambiguator.Await(ctx, track, res.Candidates)
	if err != nil {
		if ctx.Err() != nil {
			return Resolution{State: NoMatch}, ctx.Err()
		}
		logger.Warn("disambiguation failed", "err", err)
		res.State = NoMatch
		return res, nil
	}

	if decision.Skip || decision.Candidate == nil {
		res.State = UserSkipped
		return res, nil
	}

	chosen := *decision.Candidate
	res.State = UserResolved
	res.Candidate = &chosen
	return res, nil
}

// Classify applies the decision policy to candidates already ranked by [Rank].
//
// It returns AutoMatched with the single accepted candidate, Awaiting with at most [MaxSurfaced] candidates in
// descending score order, or NoMatch.
func Classify(ranked []models.Candidate) (State, []models.Candidate) {
	switch {
	case len(ranked) == 0:
		return NoMatch, nil
	case ranked[0].Score >= AutoAcceptScore || len(ranked) == 1:
		return AutoMatched, ranked[:1]
	case len(ranked) > MaxSurfaced:
		return Awaiting, ranked[:MaxSurfaced]
	default:
		return Awaiting, ranked
	}
}

// search walks the query variants and returns the first non-empty result set.
// Failed or timed-out variants fall through to the next one.
func (r *Resolver) search(ctx context.Context, track models.Track) ([]models.Candidate, string, error) {
	for _, query := range Queries(track.Artist, track.Title) {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		results, err := r.lookup(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			r.logger.Debug("search variant failed", "query", query, "err", err)
			continue
		}
		if len(results) > 0 {
			return results, query, nil
		}
	}
	return nil, "", nil
}

func (r *Resolver) lookup(ctx context.Context, query string) ([]models.Candidate, error) {
	if cached, ok := r.cache.Get(query); ok {
		return cached, nil
	}
	if r.searcher == nil {
		return nil, fmt.Errorf("%w: no searcher configured", shared.ErrServiceUnavailable)
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	sctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results, err := r.searcher.Search(sctx, query, r.limit)
	if err != nil {
		if errors.Is(sctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %q after %v", shared.ErrTimeout, query, r.timeout)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrSearchFailed, err)
	}

	r.cache.Put(query, results)
	return results, nil
}
