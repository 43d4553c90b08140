package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/aether/internal/harvest"
	"github.com/desertthunder/aether/internal/shared"
	"github.com/desertthunder/aether/internal/tasks"
	"github.com/desertthunder/aether/internal/ui"
)

const defaultTUILog = "./tmp/aether-tui.log"

// TUI launches the interactive archivist.
//
// With a source argument the launch form is submitted right away.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	path := r.config.Logging.File
	if path == "" {
		path = defaultTUILog
	}
	fileLogger, err := shared.NewFileLogger(path)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	source := strings.TrimSpace(cmd.StringArg("source"))
	params := ui.LaunchParams{
		Source:  source,
		Library: cmd.String("library"),
		Threads: cmd.Int("threads"),
		Engine:  cmd.String("engine"),
	}
	if params.Library == "" {
		params.Library = r.config.Library.Dir
	}
	if params.Engine == "" {
		params.Engine = r.config.Library.Engine
	}

	launch := func(ctx context.Context, params ui.LaunchParams) (*tasks.Pipeline, harvest.Harvester, error) {
		h, err := r.harvester(params.Source)
		if err != nil {
			return nil, nil, err
		}
		p, err := r.newPipeline(ctx, params)
		if err != nil {
			return nil, nil, err
		}
		return p, h, nil
	}

	model := ui.NewModel(ctx, launch, params, source != "")
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	_, runErr := program.Run()
	if p := model.Pipeline(); p != nil {
		if err := p.Shutdown(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("shutdown checkpoint failed", "err", err)
		}
	}

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", runErr)
	}
	return nil
}
