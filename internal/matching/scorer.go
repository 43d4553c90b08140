package matching

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/desertthunder/aether/internal/models"
	"github.com/hbollon/go-edlib"
)

// Score weights and thresholds.
const (
	DurationWeight   = 0.60
	TitleWeight      = 0.30
	PopularityWeight = 0.10

	// MinScore is the cutoff at or below which a candidate is discarded.
	MinScore = 0.15
	// AutoAcceptScore is the top score from which a match is accepted without asking.
	AutoAcceptScore = 0.40
)

// Denylist holds the title terms that exclude a candidate before scoring.
var Denylist = []string{
	"podcast", "mix", "compilation", "full album", "karaoke", "medley", "megamix", "instrumental only",
	"hour", "hours", "hrs",
}

var denied = compileDenylist(Denylist)

func compileDenylist(terms []string) *regexp.Regexp {
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = regexp.QuoteMeta(term)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Denied reports whether title contains a denylisted term as a whole word or phrase.
func Denied(title string) bool {
	return denied.MatchString(strings.ToLower(title))
}

// Score rates c against target; higher is better and the practical range is [0, 1].
//
// target.Duration must already be parsed.
func Score(c models.Candidate, target models.Track) float64 {
	diff := math.Abs(float64(c.Duration - target.Duration))
	want := strings.ToLower(target.Artist + " " + target.Title)

	return DurationWeight*durationScore(diff) +
		TitleWeight*TitleSimilarity(want, strings.ToLower(c.Title)) +
		PopularityWeight*popularityScore(c.Views)
}

func durationScore(diff float64) float64 {
	switch {
	case diff > 90:
		return 0
	case diff > 30:
		return 0.3 * (1 - (diff-30)/60)
	default:
		return 1 - (diff/30)*0.3
	}
}

func popularityScore(views int64) float64 {
	v := math.Max(float64(views), 1)
	return math.Min(math.Log10(v)/8, 1)
}

// TitleSimilarity returns the longest-common-subsequence ratio 2*LCS/(len(a)+len(b)) in [0, 1].
func TitleSimilarity(a, b string) float64 {
	total := len([]rune(a)) + len([]rune(b))
	if total == 0 {
		return 0
	}
	return 2 * float64(edlib.LCS(a, b)) / float64(total)
}

// Rank drops denylisted candidates, scores the rest against target, discards scores at or below [MinScore]
// and returns the survivors sorted by descending score.
func Rank(candidates []models.Candidate, target models.Track) []models.Candidate {
	ranked := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if Denied(c.Title) {
			continue
		}
		c.Score = Score(c, target)
		if c.Score <= MinScore {
			continue
		}
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}
