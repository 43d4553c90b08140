package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"

	"github.com/desertthunder/aether/internal/download"
	"github.com/desertthunder/aether/internal/harvest"
	"github.com/desertthunder/aether/internal/report"
	"github.com/desertthunder/aether/internal/repositories"
	"github.com/desertthunder/aether/internal/services"
	"github.com/desertthunder/aether/internal/shared"
	"github.com/desertthunder/aether/internal/storage"
	"github.com/desertthunder/aether/internal/tagging"
	"github.com/desertthunder/aether/internal/tasks"
	"github.com/desertthunder/aether/internal/ui"
)

// HarvesterFunc picks the harvester for a playlist source.
type HarvesterFunc func(source string) (harvest.Harvester, error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	service    services.Service
	harvester  HarvesterFunc
	tagger     tagging.Tagger
	propReader tagging.PropertyReader
	logger     *log.Logger
	output     io.Writer
	input      io.Reader

	dbOnce  sync.Once
	db      *sql.DB
	dbErr   error
	closers []io.Closer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config         *shared.Config
	ConfigPath     string
	Service        services.Service // yt-dlp by default
	Harvester      HarvesterFunc    // [harvest.ForSource] by default
	Tagger         tagging.Tagger   // Chosen from the tagging config by default
	PropertyReader tagging.PropertyReader
	Logger         *log.Logger
	Output         io.Writer
	Input          io.Reader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Service == nil {
		opts.Service = services.NewYouTubeService("", opts.Logger)
	}
	if opts.PropertyReader == nil {
		opts.PropertyReader = tagging.TaglibReader{}
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		service:    opts.Service,
		harvester:  opts.Harvester,
		tagger:     opts.Tagger,
		propReader: opts.PropertyReader,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
	}
	if r.harvester == nil {
		r.harvester = r.defaultHarvester
	}
	return r
}

// SetLogger replaces the logger used by subsequent commands.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	if s, ok := r.service.(interface{ SetLogger(*log.Logger) }); ok {
		s.SetLogger(l)
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, ingestCommand, tuiCommand, searchCommand, historyCommand, missionsCommand, checkpointCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Close releases the database and any log files opened by commands.
func (r *Runner) Close() error {
	var firstErr error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.closers = nil
	return firstErr
}

func (r *Runner) defaultHarvester(source string) (harvest.Harvester, error) {
	return harvest.ForSource(source, harvest.Opts{
		UserAgent: r.config.Harvest.UserAgent,
		Timeout:   r.config.HarvestTimeout(),
		Logger:    r.logger,
	})
}

// database opens the configured SQLite database once and runs pending migrations.
func (r *Runner) database() (*sql.DB, error) {
	r.dbOnce.Do(func() {
		r.db, r.dbErr = shared.OpenDatabase(r.config.Database)
		if r.dbErr == nil {
			r.closers = append(r.closers, r.db)
		}
	})
	return r.db, r.dbErr
}

func (r *Runner) newTagger(gpu bool) tagging.Tagger {
	if r.tagger != nil {
		return r.tagger
	}
	if r.config.Tagging.Engine == "taglib" {
		return tagging.NewTaglibTagger()
	}
	return tagging.NewFFmpegTagger(r.config.Tagging.FFmpegPath, gpu, r.logger)
}

func (r *Runner) failureLogger() *log.Logger {
	path := r.config.Report.FailureLog
	if path == "" {
		return shared.NewFailureLogger(io.Discard)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			r.logger.Warn("failure log unavailable", "path", path, "err", err)
			return shared.NewFailureLogger(io.Discard)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		r.logger.Warn("failure log unavailable", "path", path, "err", err)
		return shared.NewFailureLogger(io.Discard)
	}
	r.closers = append(r.closers, f)
	return shared.NewFailureLogger(f)
}

// newPipeline wires every collaborator of an ingestion pipeline from the config and launch parameters.
func (r *Runner) newPipeline(ctx context.Context, params ui.LaunchParams) (*tasks.Pipeline, error) {
	cfg := r.config
	library := params.Library
	if library == "" {
		library = cfg.Library.Dir
	}
	if err := os.MkdirAll(library, 0755); err != nil {
		return nil, fmt.Errorf("failed to create library directory: %w", err)
	}

	engine, gpu := params.Engine, params.Engine == "gpu"
	if engine == "" {
		engine, gpu = cfg.Library.Engine, cfg.UseGPU()
	}

	threads := params.Threads
	if threads <= 0 {
		threads = cfg.Pipeline.Concurrency
	}

	dl := download.NewStage(download.StageOpts{
		Fetcher:  r.service,
		Dir:      library,
		Format:   cfg.Library.Format,
		Quality:  cfg.Library.Quality,
		GPU:      gpu,
		Attempts: cfg.Pipeline.Attempts,
		Timeout:  cfg.DownloadTimeout(),
		Logger:   r.logger,
	})
	tg := tagging.NewStage(tagging.StageOpts{
		Tagger:     r.newTagger(gpu),
		Covers:     services.NewArtworkService(cfg.Harvest.UserAgent, nil),
		EmbedCover: cfg.Library.EmbedCover,
		Dir:        library,
		Format:     dl.Format(),
		Logger:     r.logger,
	})

	opts := tasks.Opts{
		Searcher:       r.service,
		Download:       dl,
		Tagging:        tg,
		Concurrency:    threads,
		SearchTimeout:  cfg.SearchTimeout(),
		SearchResults:  cfg.Pipeline.SearchResults,
		Source:         params.Source,
		Library:        library,
		Engine:         engine,
		History:        report.NewHistory(cfg.Report.HistoryPath, r.logger),
		PropertyReader: r.propReader,
		Logger:         r.logger,
		FailureLog:     r.failureLogger(),
	}
	if cfg.Pipeline.SearchRate > 0 {
		opts.SearchLimiter = rate.NewLimiter(rate.Limit(cfg.Pipeline.SearchRate), 1)
	}

	if db, err := r.database(); err != nil {
		r.logger.Warn("mission database unavailable, checkpoints disabled", "path", cfg.Database.Path, "err", err)
	} else {
		opts.Checkpointer = repositories.NewCheckpointRepository(db)
		opts.Recorder = repositories.NewMissionRepository(db)
	}

	mirror, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to configure library mirror: %w", err)
	}
	if mirror != nil {
		opts.Mirror = mirror
		if c, ok := mirror.(io.Closer); ok {
			r.closers = append(r.closers, c)
		}
	}

	return tasks.NewPipeline(opts), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
