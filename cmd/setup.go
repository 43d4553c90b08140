package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/aether/internal/services"
	"github.com/desertthunder/aether/internal/shared"
)

// Setup creates the config file when missing, initializes the database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}
	r.config = config
	r.configPath = configPath

	r.logger.Info("initializing database", "path", config.Database.Path)
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := os.MkdirAll(config.Library.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create library directory: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)

	if _, err := exec.LookPath("yt-dlp"); err != nil {
		if !cmd.Bool("install-ytdlp") {
			r.logger.Warn("yt-dlp not found in PATH; rerun with --install-ytdlp to download it")
		} else {
			path, err := services.Install(ctx)
			if err != nil {
				return err
			}
			r.logger.Info("yt-dlp installed", "path", path)
		}
	}
	if _, err := exec.LookPath(config.Tagging.FFmpegPath); err != nil && config.Tagging.Engine == "ffmpeg" {
		r.logger.Warn("ffmpeg not found; set tagging.engine = \"taglib\" or install ffmpeg", "path", config.Tagging.FFmpegPath)
	}

	r.writePlain("✓ Configuration: %s\n", configPath)
	r.writePlain("✓ Database:      %s\n", config.Database.Path)
	r.writePlain("✓ Library:       %s\n", config.Library.Dir)
	r.writePlainln("Next: aether ingest <playlist-url>")
	return nil
}
