// Package matching resolves harvested tracks to source-platform candidates.
//
// # Scoring
//
// [Score] combines three signals:
//   - duration closeness (weight 0.60), a steep curve that zeroes differences above 90s
//   - an LCS ratio between "<artist> <title>" and the candidate title (weight 0.30)
//   - a log10 view-count signal saturating at 10^8 views (weight 0.10)
//
// [Rank] drops titles matching the [Denylist], discards scores at or below [MinScore] and sorts the rest.
//
// # Resolution
//
// [Resolver.Resolve] walks [Queries] in order, returning the first non-empty result set from the [Searcher].
// Results are memoized per exact query string in a [SearchCache] owned by the caller. [Classify] then either
// auto-accepts, surfaces up to [MaxSurfaced] candidates to a [Disambiguator], or reports NoMatch.
//
// Search failures and timeouts are folded into NoMatch; only context cancellation is returned as an error.
package matching
