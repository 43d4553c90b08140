package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/aether/internal/formatter"
	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/report"
	"github.com/desertthunder/aether/internal/repositories"
	"github.com/desertthunder/aether/internal/shared"
	"github.com/desertthunder/aether/internal/ui"
)

// History prints the mission history file in the requested format.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if path == "" {
		path = r.config.Report.HistoryPath
	}

	reports, err := report.NewHistory(path, r.logger).Load()
	if err != nil {
		return err
	}
	if limit := cmd.Int("limit"); limit > 0 && len(reports) > limit {
		reports = reports[len(reports)-limit:]
	}

	format := cmd.String("format")
	if cmd.Bool("json") {
		format = formatter.FormatJSON
	}

	data, err := formatter.Render(format, reports)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if format == formatter.FormatJSON {
		return r.writePlain("\n")
	}
	return nil
}

// Missions lists the missions recorded in the database, newest first.
func (r *Runner) Missions(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	missions, err := repositories.NewMissionRepository(db).List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if missions == nil {
			missions = []*models.MissionRecord{}
		}
		return r.writeJSON(missions, true)
	}

	if len(missions) == 0 {
		r.writePlainln("No missions recorded")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Missions (%d)", len(missions)))
	for _, m := range missions {
		finished := "-"
		if m.FinishedAt != nil {
			finished = m.FinishedAt.Local().Format(time.DateTime)
		}
		r.writePlain("%s  %-11s  %s → %s\n", m.ID, m.Status, m.StartedAt.Local().Format(time.DateTime), finished)
		r.writePlain("    %s\n", m.Source)
		r.writePlain("    total %d, complete %d, archived %d, no match %d, failed %d\n",
			m.Stats.Total, m.Stats.Complete, m.Stats.AlreadyArchived, m.Stats.NoMatch, m.Stats.Failed)
	}
	return nil
}

// Checkpoint prints the last persisted status of every track in a mission.
func (r *Runner) Checkpoint(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("mission-id"))
	if id == "" {
		return fmt.Errorf("%w: mission id", shared.ErrMissingArgument)
	}

	db, err := r.database()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	mission, err := repositories.NewMissionRepository(db).Get(ctx, id)
	if err != nil {
		return err
	}
	checkpoints, err := repositories.NewCheckpointRepository(db).List(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if checkpoints == nil {
			checkpoints = []models.Checkpoint{}
		}
		return r.writeJSON(map[string]any{"mission": mission, "tracks": checkpoints}, true)
	}

	r.writePlainHeader(fmt.Sprintf("Mission %s (%s)", mission.ID, mission.Status))
	if len(checkpoints) == 0 {
		r.writePlainln("No checkpoint saved")
		return nil
	}
	for _, c := range checkpoints {
		r.writePlain("%4d  %s  %s - %s\n", c.Index+1, ui.Badge(c.Status), c.Artist, c.Title)
		if c.Error != "" {
			r.writePlain("      %s\n", c.Error)
		}
	}
	return nil
}
