// Package download fetches a resolved candidate to a temporary file in the library directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/shared"
)

const (
	DefaultAttempts = 3
	DefaultTimeout  = 120 * time.Second

	tempPrefix = ".tmp_"
)

// FetchRequest describes one fetch-and-transcode invocation.
type FetchRequest struct {
	URL        string
	OutputStem string // Output path without extension
	Format     string // Target audio codec/extension, e.g. mp3
	Quality    string
	GPU        bool
	Progress   func(downloaded, total int64)
}

// Fetcher downloads and transcodes a media source, returning the produced file path.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (string, error)
}

// Result is a successful download.
type Result struct {
	Path     string
	Attempts int
	GPU      bool // Whether the GPU path produced the file
}

// StageOpts configures a [Stage].
type StageOpts struct {
	Fetcher  Fetcher
	Dir      string
	Format   string
	Quality  string
	GPU      bool
	Attempts int
	Timeout  time.Duration
	Logger   *log.Logger

	// Backoff returns the delay before retrying after the given failed attempt (1-based).
	Backoff func(attempt int) time.Duration
	// Sleep blocks for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Stage runs fetches with a bounded retry budget and tracks the temp stems it creates.
type Stage struct {
	fetcher  Fetcher
	dir      string
	format   string
	quality  string
	gpu      bool
	attempts int
	timeout  time.Duration
	backoff  func(int) time.Duration
	sleep    func(context.Context, time.Duration) error
	logger   *log.Logger

	mu    sync.Mutex
	stems map[string]struct{}
}

// NewStage creates a download [Stage], filling unset options with defaults.
func NewStage(opts StageOpts) *Stage {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Format == "" {
		opts.Format = "mp3"
	}
	if opts.Quality == "" {
		opts.Quality = "0"
	}
	if opts.Backoff == nil {
		opts.Backoff = ExponentialBackoff
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Stage{
		fetcher:  opts.Fetcher,
		dir:      opts.Dir,
		format:   opts.Format,
		quality:  opts.Quality,
		gpu:      opts.GPU,
		attempts: opts.Attempts,
		timeout:  opts.Timeout,
		backoff:  opts.Backoff,
		sleep:    opts.Sleep,
		logger:   opts.Logger,
		stems:    make(map[string]struct{}),
	}
}

// ExponentialBackoff waits 2^attempt seconds after the given failed attempt.
func ExponentialBackoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Format returns the target audio extension.
func (s *Stage) Format() string { return s.format }

// Dir returns the library directory.
func (s *Stage) Dir() string { return s.dir }

// TempStem returns the temporary output stem of c fetched for the track at index.
// Tracks resolving to the same video get distinct stems.
func (s *Stage) TempStem(index int, c models.Candidate) string {
	return filepath.Join(s.dir, tempPrefix+strconv.Itoa(index)+"_"+shared.SanitizeFilename(c.ID))
}

// Download fetches c for track into a temp file, retrying up to the attempt budget.
//
// Each attempt is bounded by the stage timeout. When the GPU path fails, the same attempt retries once on CPU.
// A fetch that reports success without producing a non-empty file counts as a failed attempt.
// The returned error wraps [shared.ErrDownloadFailed] unless the context was cancelled.
func (s *Stage) Download(ctx context.Context, track models.Track, c models.Candidate, progress func(downloaded, total int64)) (Result, error) {
	if s.fetcher == nil {
		return Result{}, fmt.Errorf("%w: no fetcher configured", shared.ErrServiceUnavailable)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return Result{}, fmt.Errorf("failed to create library directory: %w", err)
	}

	stem := s.TempStem(track.Index, c)
	s.track(stem)

	logger := shared.WithLogger(s.logger, "track", track.Index, "id", c.ID)
	req := FetchRequest{
		URL:        c.URL,
		OutputStem: stem,
		Format:     s.format,
		Quality:    s.quality,
		GPU:        s.gpu,
		Progress:   progress,
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if attempt > 1 {
			delay := s.backoff(attempt - 1)
			logger.Debug("retrying download", "attempt", attempt, "delay", delay)
			if err := s.sleep(ctx, delay); err != nil {
				return Result{}, err
			}
		}

		res, err := s.attempt(ctx, req, logger)
		if err == nil {
			res.Attempts = attempt
			return res, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}

		lastErr = err
		logger.Warn("download attempt failed", "attempt", attempt, "of", s.attempts, "err", err)
		s.removeStem(stem)
	}

	return Result{}, fmt.Errorf("%w: %s after %d attempts: %v", shared.ErrDownloadFailed, c.URL, s.attempts, lastErr)
}

func (s *Stage) attempt(ctx context.Context, req FetchRequest, logger *log.Logger) (Result, error) {
	path, err := s.fetchOnce(ctx, req)
	if err == nil || !req.GPU || ctx.Err() != nil {
		return Result{Path: path, GPU: req.GPU}, err
	}

	logger.Warn("gpu fetch failed, falling back to cpu", "err", err)
	s.removeStem(req.OutputStem)

	req.GPU = false
	path, err = s.fetchOnce(ctx, req)
	return Result{Path: path}, err
}

func (s *Stage) fetchOnce(ctx context.Context, req FetchRequest) (string, error) {
	actx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	path, err := s.fetcher.Fetch(actx, req)
	if err != nil {
		if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w: fetch exceeded %v: %v", shared.ErrTimeout, s.timeout, err)
		}
		return "", err
	}

	if path == "" {
		path = req.OutputStem + "." + req.Format
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", shared.ErrEmptyOutput, path, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return "", fmt.Errorf("%w: %s", shared.ErrEmptyOutput, path)
	}
	return path, nil
}

func (s *Stage) track(stem string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stems[stem] = struct{}{}
}

// Release stops tracking the temp stem of c for the track at index once its file has been finalized.
func (s *Stage) Release(index int, c models.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stems, s.TempStem(index, c))
}

// Discard removes any temp files of c for the track at index and stops tracking them.
func (s *Stage) Discard(index int, c models.Candidate) {
	stem := s.TempStem(index, c)
	s.removeStem(stem)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stems, stem)
}

func (s *Stage) removeStem(stem string) int {
	matches, err := filepath.Glob(stem + ".*")
	if err != nil {
		return 0
	}

	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err == nil {
			removed++
		} else if !os.IsNotExist(err) {
			s.logger.Warn("failed to remove temp file", "path", m, "err", err)
		}
	}
	return removed
}

// Cleanup removes every tracked temp file and returns the number of files removed. Safe to call repeatedly.
func (s *Stage) Cleanup() int {
	s.mu.Lock()
	stems := make([]string, 0, len(s.stems))
	for stem := range s.stems {
		stems = append(stems, stem)
	}
	s.stems = make(map[string]struct{})
	s.mu.Unlock()

	removed := 0
	for _, stem := range stems {
		removed += s.removeStem(stem)
	}
	if removed > 0 {
		s.logger.Info("removed temp files", "count", removed)
	}
	return removed
}

// Pending returns the number of tracked temp stems.
func (s *Stage) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stems)
}
