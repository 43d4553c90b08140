package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/aether/internal/duration"
	"github.com/desertthunder/aether/internal/formatter"
	"github.com/desertthunder/aether/internal/matching"
	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/report"
	"github.com/desertthunder/aether/internal/shared"
	"github.com/desertthunder/aether/internal/tasks"
	"github.com/desertthunder/aether/internal/ui"
)

// ingestOpts are the headless mission settings read from flags.
type ingestOpts struct {
	params        ui.LaunchParams
	only          string
	skipAmbiguous bool
	progress      bool
	reportPath    string
}

// Ingest harvests a playlist and archives the selection without the TUI.
func (r *Runner) Ingest(ctx context.Context, cmd *cli.Command) error {
	source := strings.TrimSpace(cmd.StringArg("source"))
	if source == "" {
		return fmt.Errorf("%w: playlist source", shared.ErrMissingArgument)
	}

	threads := cmd.Int("threads")
	if threads <= 0 {
		return fmt.Errorf("%w: --threads must be positive, got %d", shared.ErrInvalidFlag, threads)
	}
	engine := strings.ToLower(cmd.String("engine"))
	if engine != "" && engine != "cpu" && engine != "gpu" {
		return fmt.Errorf("%w: --engine must be cpu or gpu, got %q", shared.ErrInvalidFlag, engine)
	}

	return r.ingest(ctx, ingestOpts{
		params: ui.LaunchParams{
			Source:  source,
			Library: cmd.String("library"),
			Threads: min(threads, shared.MaxConcurrency),
			Engine:  engine,
		},
		only:          cmd.String("only"),
		skipAmbiguous: cmd.Bool("skip-ambiguous"),
		progress:      !cmd.Bool("no-progress"),
		reportPath:    cmd.String("report"),
	})
}

func (r *Runner) ingest(ctx context.Context, opts ingestOpts) error {
	h, err := r.harvester(opts.params.Source)
	if err != nil {
		return err
	}

	p, err := r.newPipeline(ctx, opts.params)
	if err != nil {
		return err
	}
	defer p.Shutdown(context.WithoutCancel(ctx))

	r.logger.Info("harvesting playlist", "source", opts.params.Source, "harvester", h.Name())
	if err := p.Harvest(ctx, h, opts.params.Source); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.Len() == 0 {
			return err
		}
		r.logger.Warn("harvest ended early, continuing with discovered tracks", "tracks", p.Len(), "err", err)
	}
	r.writePlain("Harvested %d tracks\n", p.Len())

	if opts.only != "" {
		indices, err := parseSelection(opts.only, p.Len())
		if err != nil {
			return err
		}
		p.SelectNone()
		for _, i := range indices {
			if err := p.Select(i, true); err != nil {
				return err
			}
		}
	}

	drain(p.Events())

	m, err := p.Start(ctx)
	if err != nil {
		return err
	}

	bar := r.newProgressBar(m.Stats().Total, opts.progress)
	prompt := bufio.NewReader(r.input)

	var rep *report.Report
loop:
	for {
		select {
		case ev := <-p.Events():
			switch ev.Kind {
			case tasks.DecisionRequested:
				track, _ := p.Track(ev.Index)
				if track.Status != models.AwaitingDecision {
					// Answered through an earlier request for the same track
					break
				}
				d := matching.Decision{Skip: true}
				if !opts.skipAmbiguous {
					bar.Clear()
					d = r.promptDecision(prompt, track, ev.Candidates)
				}
				if err := p.Decide(ev.Index, d); err != nil {
					r.logger.Warn("decision not applied", "track", ev.Index, "err", err)
				}
			case tasks.Warning:
				r.logger.Warn(ev.Message)
			case tasks.MissionComplete:
				rep = ev.Report
				break loop
			}
			bar.Set(m.Stats().Done())

		case <-ctx.Done():
			r.writePlainln("Interrupted, finishing up…")
			if err := p.Shutdown(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("shutdown checkpoint failed", "err", err)
			}
			rep, _ = m.Wait(context.WithoutCancel(ctx))
			break loop
		}
	}
	bar.Finish()

	if rep == nil {
		return fmt.Errorf("mission %s finished without a report", m.ID)
	}

	r.writePlain("\n")
	r.writePlainHeader(fmt.Sprintf("Mission %s", rep.MissionID))
	r.output.Write(formatter.ReportToText(rep))

	if opts.reportPath != "" {
		path, err := formatter.WriteReport(rep, opts.reportPath, filepath.Ext(opts.reportPath))
		if err != nil {
			return err
		}
		r.writePlain("Report written to %s\n", path)
	}

	if rep.Interrupted {
		return ctx.Err()
	}
	return nil
}

// drain discards the events buffered while harvesting. Tracks still awaiting a decision are asked again by the
// mission workers.
func drain(events <-chan tasks.Event) {
	for {
		select {
		case <-events:
		default:
			return
		}
	}
}

func (r *Runner) newProgressBar(total int, enabled bool) *progressbar.ProgressBar {
	var w io.Writer = io.Discard
	if enabled {
		w = r.output
		if r.output == os.Stdout {
			w = ansi.NewAnsiStdout()
		}
	}

	return progressbar.NewOptions(
		total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionFullWidth(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Archiving[reset]"),
	)
}

// promptDecision asks on the input stream which candidate to archive. Anything other than a listed number skips
// the track, including EOF.
func (r *Runner) promptDecision(in *bufio.Reader, track models.Track, candidates []models.Candidate) matching.Decision {
	r.writePlainln("Ambiguous match for %s - %s (%s):", track.Artist, track.Title, duration.Format(track.Duration))
	for i, c := range candidates {
		r.writePlain("  %d) %s [%s] score %.2f\n     %s\n", i+1, c.Title, duration.Format(c.Duration), c.Score, c.URL)
	}
	r.writePlain("  s) skip\nChoice: ")

	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		r.logger.Warn("failed to read decision", "err", err)
	}

	n, convErr := strconv.Atoi(strings.TrimSpace(line))
	if convErr != nil || n < 1 || n > len(candidates) {
		return matching.Decision{Skip: true}
	}
	chosen := candidates[n-1]
	return matching.Decision{Candidate: &chosen}
}

// parseSelection turns "1,3,5-7" into sorted 0-based indices below n.
func parseSelection(list string, n int) ([]int, error) {
	seen := make(map[int]bool)
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi := part, part
		if a, b, ok := strings.Cut(part, "-"); ok {
			lo, hi = strings.TrimSpace(a), strings.TrimSpace(b)
		}

		from, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("%w: --only %q", shared.ErrInvalidFlag, part)
		}
		to, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("%w: --only %q", shared.ErrInvalidFlag, part)
		}
		if from < 1 || to < from || to > n {
			return nil, fmt.Errorf("%w: --only %q out of range 1-%d", shared.ErrInvalidFlag, part, n)
		}

		for i := from; i <= to; i++ {
			seen[i-1] = true
		}
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("%w: --only selects no tracks", shared.ErrInvalidFlag)
	}

	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}
