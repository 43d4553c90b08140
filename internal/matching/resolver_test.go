package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/aether/internal/models"
	tu "github.com/desertthunder/aether/internal/testing"
	"golang.org/x/time/rate"
)

type mockDisambiguator struct {
	mu       sync.Mutex
	decision func([]models.Candidate) Decision
	err      error
	calls    int
	offered  []models.Candidate
}

func (m *mockDisambiguator) Await(ctx context.Context, track models.Track, candidates []models.Candidate) (Decision, error) {
	m.mu.Lock()
	m.calls++
	m.offered = append([]models.Candidate(nil), candidates...)
	m.mu.Unlock()

	if m.err != nil {
		return Decision{}, m.err
	}
	if m.decision == nil {
		return Decision{Skip: true}, nil
	}
	return m.decision(candidates), nil
}

func officialAudio() string { return Queries("Daft Punk", "One More Time")[0] }

func ambiguous() []models.Candidate {
	return []models.Candidate{
		tu.Candidate("b", "Daft Punk One More Time", 395, 1),
		tu.Candidate("a", "Daft Punk One More Time", 380, 1),
		tu.Candidate("c", "Daft Punk One More Time", 400, 1),
		tu.Candidate("d", "Daft Punk One More Time", 402, 1),
	}
}

func TestQueries(t *testing.T) {
	got := Queries("Daft Punk", "One More Time")
	want := []string{
		"Daft Punk One More Time official audio",
		"Daft Punk One More Time official video",
		"Daft Punk One More Time lyrics",
		"Daft Punk One More Time",
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d variants, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("variant %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		scores    []float64
		wantState State
		wantLen   int
	}{
		{"empty", nil, NoMatch, 0},
		{"confident top", []float64{0.95, 0.92}, AutoMatched, 1},
		{"single low survivor", []float64{0.2}, AutoMatched, 1},
		{"threshold is inclusive", []float64{AutoAcceptScore, 0.3}, AutoMatched, 1},
		{"two low", []float64{0.35, 0.30}, Awaiting, 2},
		{"capped at three", []float64{0.39, 0.35, 0.30, 0.25, 0.2}, Awaiting, MaxSurfaced},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked := make([]models.Candidate, len(tt.scores))
			for i, s := range tt.scores {
				ranked[i] = models.Candidate{ID: string(rune('a' + i)), Score: s}
			}

			state, surfaced := Classify(ranked)
			if state != tt.wantState {
				t.Errorf("expected state %v, got %v", tt.wantState, state)
			}
			if len(surfaced) != tt.wantLen {
				t.Fatalf("expected %d candidates, got %d", tt.wantLen, len(surfaced))
			}
			for i := 1; i < len(surfaced); i++ {
				if surfaced[i].Score > surfaced[i-1].Score {
					t.Errorf("candidates not in descending order at %d", i)
				}
			}
		})
	}
}

func TestResolverResolve(t *testing.T) {
	t.Run("auto accepts high confidence without disambiguation", func(t *testing.T) {
		searcher := &tu.MockSearcher{Results: map[string][]models.Candidate{
			officialAudio(): {
				tu.Candidate("good", "Daft Punk - One More Time (Official Audio)", 320, 80_000_000),
				tu.Candidate("loop", "Daft Punk - One More Time 1 Hour", 320, 90_000_000),
			},
		}}
		dis := &mockDisambiguator{}
		r := NewResolver(ResolverOpts{Searcher: searcher, Disambiguator: dis})

		res, err := r.Resolve(context.Background(), target())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != AutoMatched {
			t.Fatalf("expected AutoMatched, got %v", res.State)
		}
		if res.Candidate == nil || res.Candidate.ID != "good" {
			t.Errorf("expected candidate good, got %+v", res.Candidate)
		}
		if dis.calls != 0 {
			t.Errorf("expected no disambiguation, got %d calls", dis.calls)
		}
		if searcher.Calls() != 1 {
			t.Errorf("expected a single search, got %d", searcher.Calls())
		}
	})

	t.Run("single low survivor is accepted", func(t *testing.T) {
		searcher := &tu.MockSearcher{Fallback: []models.Candidate{
			tu.Candidate("only", "Daft Punk One More Time", 380, 1),
			tu.Candidate("mix", "Daft Punk Mix", 320, 1),
		}}
		dis := &mockDisambiguator{}
		r := NewResolver(ResolverOpts{Searcher: searcher, Disambiguator: dis})

		res, err := r.Resolve(context.Background(), target())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != AutoMatched || res.Candidate.ID != "only" {
			t.Errorf("expected AutoMatched only, got %v %+v", res.State, res.Candidate)
		}
		if dis.calls != 0 {
			t.Error("disambiguator should not be consulted for a single survivor")
		}
	})

	t.Run("surfaces at most three in descending order", func(t *testing.T) {
		searcher := &tu.MockSearcher{Fallback: ambiguous()}
		dis := &mockDisambiguator{decision: func(c []models.Candidate) Decision {
			return Decision{Candidate: &c[1]}
		}}
		r := NewResolver(ResolverOpts{Searcher: searcher, Disambiguator: dis})

		res, err := r.Resolve(context.Background(), target())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(dis.offered) != MaxSurfaced {
			t.Fatalf("expected %d offered, got %d", MaxSurfaced, len(dis.offered))
		}
		if dis.offered[0].ID != "a" || dis.offered[1].ID != "b" || dis.offered[2].ID != "c" {
			t.Errorf("unexpected order: %s %s %s", dis.offered[0].ID, dis.offered[1].ID, dis.offered[2].ID)
		}
		for _, c := range dis.offered {
			if c.Score >= AutoAcceptScore {
				t.Errorf("candidate %s should be below auto-accept, got %f", c.ID, c.Score)
			}
		}
		if res.State != UserResolved || res.Candidate.ID != "b" {
			t.Errorf("expected UserResolved b, got %v %+v", res.State, res.Candidate)
		}
	})

	t.Run("skip", func(t *testing.T) {
		r := NewResolver(ResolverOpts{
			Searcher:      &tu.MockSearcher{Fallback: ambiguous()},
			Disambiguator: &mockDisambiguator{},
		})

		res, err := r.Resolve(context.Background(), target())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != UserSkipped || res.Candidate != nil {
			t.Errorf("expected UserSkipped without candidate, got %v %+v", res.State, res.Candidate)
		}
	})

	t.Run("without disambiguator returns awaiting", func(t *testing.T) {
		r := NewResolver(ResolverOpts{Searcher: &tu.MockSearcher{Fallback: ambiguous()}})

		res, err := r.Resolve(context.Background(), target())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != Awaiting || len(res.Candidates) != MaxSurfaced {
			t.Errorf("expected Awaiting with %d candidates, got %v with %d", MaxSurfaced, res.State, len(res.Candidates))
		}
	})

	t.Run("disambiguator failure is no match", func(t *testing.T) {
		r := NewResolver(ResolverOpts{
			Searcher:      &tu.MockSearcher{Fallback: ambiguous()},
			Disambiguator: &mockDisambiguator{err: errors.New("ui closed")},
		})

		res, err := r.Resolve(context.Background(), target())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != NoMatch {
			t.Errorf("expected NoMatch, got %v", res.State)
		}
	})

	t.Run("denylisted only is no match", func(t *testing.T) {
		r := NewResolver(ResolverOpts{Searcher: &tu.MockSearcher{Fallback: []models.Candidate{
			tu.Candidate("x", "Daft Punk Megamix", 320, 100_000_000),
			tu.Candidate("y", "Daft Punk One More Time Karaoke", 320, 100_000_000),
		}}})

		res, err := r.Resolve(context.Background(), target())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State != NoMatch {
			t.Errorf("expected NoMatch, got %v", res.State)
		}
	})
}

func TestResolverQueryFallthrough(t *testing.T) {
	q := Queries("Daft Punk", "One More Time")
	searcher := &tu.MockSearcher{
		Errs: map[string]error{q[0]: errors.New("network down")},
		Results: map[string][]models.Candidate{
			q[1]: {},
			q[2]: {tu.Candidate("lyrics", "Daft Punk - One More Time (Lyrics)", 320, 1_000_000)},
		},
	}
	r := NewResolver(ResolverOpts{Searcher: searcher})

	res, err := r.Resolve(context.Background(), target())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Query != q[2] {
		t.Errorf("expected query %q, got %q", q[2], res.Query)
	}
	if got := searcher.Queries(); len(got) != 3 {
		t.Errorf("expected 3 searches before success, got %v", got)
	}
	if res.State != AutoMatched {
		t.Errorf("expected AutoMatched, got %v", res.State)
	}
}

func TestResolverCache(t *testing.T) {
	searcher := &tu.MockSearcher{Fallback: []models.Candidate{
		tu.Candidate("good", "Daft Punk - One More Time (Official Audio)", 320, 80_000_000),
	}}
	cache := NewSearchCache()
	r := NewResolver(ResolverOpts{Searcher: searcher, Cache: cache})

	for range 3 {
		if _, err := r.Resolve(context.Background(), target()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if searcher.Calls() != 1 {
		t.Errorf("expected cached results to be reused, got %d searches", searcher.Calls())
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 cache entry, got %d", cache.Len())
	}

	t.Run("empty results are cached", func(t *testing.T) {
		empty := &tu.MockSearcher{}
		r := NewResolver(ResolverOpts{Searcher: empty})
		_, _ = r.Resolve(context.Background(), target())
		_, _ = r.Resolve(context.Background(), target())

		if empty.Calls() != 4 {
			t.Errorf("expected 4 searches across two resolutions, got %d", empty.Calls())
		}
	})

	t.Run("errors are not cached", func(t *testing.T) {
		failing := &tu.MockSearcher{Err: errors.New("boom")}
		r := NewResolver(ResolverOpts{Searcher: failing})
		_, _ = r.Resolve(context.Background(), target())
		_, _ = r.Resolve(context.Background(), target())

		if failing.Calls() != 8 {
			t.Errorf("expected 8 searches, got %d", failing.Calls())
		}
	})
}

func TestResolverCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	searcher := &tu.MockSearcher{Block: true}
	r := NewResolver(ResolverOpts{Searcher: searcher})

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := r.Resolve(ctx, target())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if searcher.Calls() != 1 {
		t.Errorf("expected cancellation to stop the variant walk, got %d searches", searcher.Calls())
	}
}

type cancellingDisambiguator struct{ cancel context.CancelFunc }

func (c cancellingDisambiguator) Await(ctx context.Context, _ models.Track, _ []models.Candidate) (Decision, error) {
	c.cancel()
	<-ctx.Done()
	return Decision{}, ctx.Err()
}

func TestResolverCancelledDuringAwait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewResolver(ResolverOpts{
		Searcher:      &tu.MockSearcher{Fallback: ambiguous()},
		Disambiguator: cancellingDisambiguator{cancel: cancel},
	})

	_, err := r.Resolve(ctx, target())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestResolverTimeout(t *testing.T) {
	searcher := &tu.MockSearcher{Block: true}
	r := NewResolver(ResolverOpts{Searcher: searcher, Timeout: 10 * time.Millisecond})

	res, err := r.Resolve(context.Background(), target())
	if err != nil {
		t.Fatalf("expected timeouts to be folded into NoMatch, got %v", err)
	}
	if res.State != NoMatch {
		t.Errorf("expected NoMatch, got %v", res.State)
	}
	if searcher.Calls() != 4 {
		t.Errorf("expected every variant to be attempted, got %d", searcher.Calls())
	}
}

func TestResolverLimiter(t *testing.T) {
	searcher := &tu.MockSearcher{Fallback: []models.Candidate{
		tu.Candidate("good", "Daft Punk - One More Time (Official Audio)", 320, 80_000_000),
	}}
	r := NewResolver(ResolverOpts{Searcher: searcher, Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)})

	if _, err := r.Resolve(context.Background(), target()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	other := models.Track{Artist: "Justice", Title: "D.A.N.C.E.", Duration: 242}
	res, err := r.Resolve(ctx, other)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != NoMatch {
		t.Errorf("expected limited search to yield NoMatch, got %v", res.State)
	}
	if searcher.Calls() != 1 {
		t.Errorf("expected limiter to block further searches, got %d", searcher.Calls())
	}
}

func TestStateString(t *testing.T) {
	if AutoMatched.String() != "auto_matched" || NoMatch.String() != "no_match" {
		t.Error("unexpected state names")
	}
	if !UserResolved.Matched() || UserSkipped.Matched() || Awaiting.Matched() {
		t.Error("unexpected Matched results")
	}
}
