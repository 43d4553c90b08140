package matching

import (
	"math"
	"testing"

	"github.com/desertthunder/aether/internal/models"
)

func target() models.Track {
	return models.Track{Artist: "Daft Punk", Title: "One More Time", Duration: 320, DurationKnown: true}
}

func TestDurationScore(t *testing.T) {
	t.Run("monotonically non-increasing", func(t *testing.T) {
		prev := durationScore(0)
		for d := 1; d <= 180; d++ {
			cur := durationScore(float64(d))
			if cur > prev {
				t.Fatalf("durationScore(%d) = %f, greater than durationScore(%d) = %f", d, cur, d-1, prev)
			}
			prev = cur
		}
	})

	tests := []struct {
		diff float64
		want float64
	}{
		{0, 1},
		{30, 0.7},
		{60, 0.15},
		{90, 0},
		{91, 0},
		{600, 0},
	}

	for _, tt := range tests {
		if got := durationScore(tt.diff); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("durationScore(%v) = %f, want %f", tt.diff, got, tt.want)
		}
	}
}

func TestPopularityScore(t *testing.T) {
	tests := []struct {
		views int64
		want  float64
	}{
		{0, 0},
		{1, 0},
		{10_000, 0.5},
		{100_000_000, 1},
		{10_000_000_000, 1},
	}

	for _, tt := range tests {
		if got := popularityScore(tt.views); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("popularityScore(%d) = %f, want %f", tt.views, got, tt.want)
		}
	}
}

func TestTitleSimilarity(t *testing.T) {
	if got := TitleSimilarity("", ""); got != 0 {
		t.Errorf("expected 0 for empty strings, got %f", got)
	}
	if got := TitleSimilarity("abc", "abc"); got != 1 {
		t.Errorf("expected 1 for identical strings, got %f", got)
	}
	if got := TitleSimilarity("abc", "xyz"); got != 0 {
		t.Errorf("expected 0 for disjoint strings, got %f", got)
	}

	close := TitleSimilarity("daft punk one more time", "daft punk - one more time (official audio)")
	far := TitleSimilarity("daft punk one more time", "lofi beats to study to")
	if close <= far {
		t.Errorf("expected closer title to score higher: %f <= %f", close, far)
	}
}

func TestDenied(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"Daft Punk - One More Time (Official Audio)", false},
		{"Daft Punk - One More Time (1 Hour Loop)", true},
		{"Best of Daft Punk MIX 2020", true},
		{"Daft Punk - One More Time (Remix)", false},
		{"Daft Punk Full Album", true},
		{"Daft Punk Karaoke Version", true},
		{"Hourglass", false},
		{"Daft Punk Podcast Episode 4", true},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := Denied(tt.title); got != tt.want {
				t.Errorf("Denied(%q) = %v, want %v", tt.title, got, tt.want)
			}
		})
	}
}

func TestScore(t *testing.T) {
	exact := models.Candidate{Title: "Daft Punk - One More Time (Official Audio)", Duration: 320, Views: 100_000_000}
	if got := Score(exact, target()); got < AutoAcceptScore {
		t.Errorf("expected exact candidate to reach auto-accept, got %f", got)
	}

	offByMinute := models.Candidate{Title: "Daft Punk One More Time", Duration: 380, Views: 1}
	if got := Score(offByMinute, target()); math.Abs(got-0.39) > 1e-9 {
		t.Errorf("expected 0.39, got %f", got)
	}

	unknown := models.Candidate{Title: "Daft Punk One More Time", Duration: 0, Views: 1}
	if got := Score(unknown, target()); math.Abs(got-0.3) > 1e-9 {
		t.Errorf("expected zero duration to score only on title, got %f", got)
	}
}

func TestRank(t *testing.T) {
	candidates := []models.Candidate{
		{ID: "weak", Title: "Unrelated Song", Duration: 100, Views: 1},
		{ID: "loop", Title: "Daft Punk - One More Time (10 Hours)", Duration: 320, Views: 100_000_000},
		{ID: "near", Title: "Daft Punk One More Time", Duration: 380, Views: 1},
		{ID: "best", Title: "Daft Punk - One More Time (Official Audio)", Duration: 321, Views: 50_000_000},
	}

	ranked := Rank(candidates, target())

	if len(ranked) != 2 {
		t.Fatalf("expected 2 survivors, got %d: %+v", len(ranked), ranked)
	}
	if ranked[0].ID != "best" || ranked[1].ID != "near" {
		t.Errorf("unexpected order: %s, %s", ranked[0].ID, ranked[1].ID)
	}
	for _, c := range ranked {
		if c.ID == "loop" {
			t.Error("denylisted candidate survived ranking")
		}
		if c.Score <= MinScore {
			t.Errorf("candidate %s at or below MinScore survived: %f", c.ID, c.Score)
		}
	}
	if candidates[3].Score != 0 {
		t.Error("Rank mutated the input slice")
	}
}

func TestRankEmpty(t *testing.T) {
	if got := Rank(nil, target()); len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
}
