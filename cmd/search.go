package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/aether/internal/duration"
	"github.com/desertthunder/aether/internal/matching"
	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/shared"
)

type searchResult struct {
	Artist     string             `json:"artist"`
	Title      string             `json:"title"`
	Duration   int                `json:"duration"`
	State      string             `json:"state"`
	Query      string             `json:"query,omitempty"`
	Match      *models.Candidate  `json:"match,omitempty"`
	Candidates []models.Candidate `json:"candidates"`
}

// Search resolves one track against YouTube and prints the ranked candidates.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	artist := strings.TrimSpace(cmd.StringArg("artist"))
	title := strings.TrimSpace(cmd.StringArg("title"))
	if title == "" {
		return fmt.Errorf("%w: artist and title", shared.ErrMissingArgument)
	}

	track := models.Track{Artist: artist, Title: title, Status: models.Discovered}
	if text := cmd.String("duration"); text != "" {
		secs, ok := duration.Parse(text)
		if !ok {
			return fmt.Errorf("%w: --duration %q", shared.ErrInvalidFlag, text)
		}
		track.DurationText, track.Duration, track.DurationKnown = text, secs, true
	}

	resolver := matching.NewResolver(matching.ResolverOpts{
		Searcher: r.service,
		Timeout:  r.config.SearchTimeout(),
		Limit:    cmd.Int("limit"),
		Logger:   r.logger,
	})

	res, err := resolver.Resolve(ctx, track)
	if err != nil {
		return err
	}

	result := searchResult{
		Artist:     artist,
		Title:      title,
		Duration:   track.Duration,
		State:      res.State.String(),
		Query:      res.Query,
		Match:      res.Candidate,
		Candidates: res.Candidates,
	}
	if result.Candidates == nil {
		result.Candidates = []models.Candidate{}
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s - %s", artist, title))
	r.writePlain("State: %s\n", result.State)
	if res.Query != "" {
		r.writePlain("Query: %s\n", res.Query)
	}
	if len(res.Candidates) == 0 {
		r.writePlainln("No candidates")
		return nil
	}

	r.writePlain("\n")
	for i, c := range res.Candidates {
		marker := " "
		if res.Candidate != nil && c.URL == res.Candidate.URL {
			marker = "*"
		}
		r.writePlain("%s %d. %s [%s] score %.2f\n     %s\n", marker, i+1, c.Title, duration.Format(c.Duration), c.Score, c.URL)
	}
	return nil
}
