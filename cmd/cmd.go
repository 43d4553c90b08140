// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/aether/internal/shared"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// launchFlags are shared by ingest and tui.
func launchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "library",
			Aliases: []string{"l"},
			Usage:   "Library directory archived tracks are written to (default from config)",
		},
		&cli.IntFlag{
			Name:    "threads",
			Aliases: []string{"t"},
			Usage:   "Worker pool size",
			Value:   shared.DefaultConcurrency,
		},
		&cli.StringFlag{
			Name:  "engine",
			Usage: "Encoding engine: cpu or gpu (default from config)",
		},
	}
}

// setupCommand writes the config file and initializes the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file, initialize the database and run migrations",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "install-ytdlp",
				Usage: "Download a yt-dlp binary when none is found",
			},
		},
		Action: r.Setup,
	}
}

// ingestCommand runs a mission without the TUI.
func ingestCommand(r *Runner) *cli.Command {
	flags := append(launchFlags(),
		&cli.StringFlag{
			Name:  "only",
			Usage: "Archive only these 1-based track numbers, e.g. 1,3,5-9",
		},
		&cli.BoolFlag{
			Name:  "skip-ambiguous",
			Usage: "Skip tracks that need a manual decision instead of prompting",
		},
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "Disable the progress bar",
		},
		&cli.StringFlag{
			Name:    "report",
			Aliases: []string{"o"},
			Usage:   "Also write the mission report to this file (format from extension: txt, md, csv or json)",
		},
	)

	return &cli.Command{
		Name:  "ingest",
		Usage: "Harvest a playlist and archive every selected track",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "source"},
		},
		Flags:  flags,
		Action: r.Ingest,
	}
}

// tuiCommand returns the top-level TUI command for interactive archiving.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive archivist",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "source"},
		},
		Flags:  launchFlags(),
		Action: r.TUI,
	}
}

// searchCommand exposes the matcher for a single track.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search YouTube for a track and print the ranked candidates",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "artist"},
			&cli.StringArg{Name: "title"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "duration",
				Usage: "Expected track length, e.g. 3:45",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Results requested per query",
				Value: 5,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Search,
	}
}

// historyCommand prints the mission history file.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List stored mission reports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: txt, md, csv or json",
				Value:   "txt",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON (same as --format json)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Show only the most recent missions",
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "History file (default from config)",
			},
		},
		Action: r.History,
	}
}

// missionsCommand lists the missions recorded in the database.
func missionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "missions",
		Usage: "List missions recorded in the database",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of missions to return",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Missions,
	}
}

// checkpointCommand prints the saved per-track statuses of a mission.
func checkpointCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "checkpoint",
		Usage: "Show the last checkpointed status of every track in a mission",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "mission-id"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Checkpoint,
	}
}
