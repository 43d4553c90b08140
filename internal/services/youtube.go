// YouTube [Service] implementation
//
// Shells out to yt-dlp through go-ytdlp for search and audio extraction.
package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aether/internal/download"
	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/shared"
	"github.com/lrstanley/go-ytdlp"
)

const (
	watchURL         = "https://www.youtube.com/watch?v="
	progressInterval = 500 * time.Millisecond
	gpuPostProcessor = "ffmpeg:-hwaccel cuda"
)

// ytdlpError wraps a failed yt-dlp invocation with its arguments and stderr.
type ytdlpError struct {
	args    string
	stderr  string
	wrapped error
}

func (e *ytdlpError) Error() string {
	return fmt.Sprintf("yt-dlp error: %s\nArgs: %s\nStderr: %s", e.wrapped, e.args, e.stderr)
}

func (e *ytdlpError) Unwrap() error {
	return e.wrapped
}

func newYTDLPError(args []string, res *ytdlp.Result, err error) error {
	argStr := strings.Join(args, " ")
	if len(argStr) > 200 {
		argStr = argStr[:200] + "..."
	}

	var stderr string
	if res != nil {
		stderr = strings.TrimSpace(res.Stderr)
		if len(stderr) > 1000 {
			stderr = stderr[len(stderr)-1000:]
		}
	}
	return &ytdlpError{args: argStr, stderr: stderr, wrapped: err}
}

// YouTubeService implements [Service] with yt-dlp.
type YouTubeService struct {
	executable string
	logger     *log.Logger
}

// NewYouTubeService creates a YouTube service. An empty executable uses yt-dlp from PATH.
func NewYouTubeService(executable string, logger *log.Logger) *YouTubeService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &YouTubeService{executable: executable, logger: logger}
}

// SetLogger replaces the service logger.
func (y *YouTubeService) SetLogger(l *log.Logger) {
	y.logger = l
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube"
}

func (y *YouTubeService) command() *ytdlp.Command {
	cmd := ytdlp.New()
	if y.executable != "" {
		cmd = cmd.SetExecutable(y.executable)
	}
	return cmd
}

// SearchTarget builds the yt-dlp search pseudo-URL for query.
func SearchTarget(query string, limit int) string {
	if limit <= 0 {
		limit = 5
	}
	return fmt.Sprintf("ytsearch%d:%s", limit, query)
}

// Search runs a flat yt-dlp search and returns the results as candidates.
func (y *YouTubeService) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	target := SearchTarget(query, limit)

	res, err := y.command().
		FlatPlaylist().
		DumpJSON().
		Quiet().
		NoWarnings().
		Run(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrSearchFailed, newYTDLPError([]string{target}, res, err))
	}

	candidates, err := ParseSearchOutput(res.Stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSearchFailed, err)
	}

	y.logger.Debug("search complete", "query", query, "results", len(candidates))
	return candidates, nil
}

// ParseSearchOutput decodes newline-delimited yt-dlp JSON into candidates, skipping blank lines.
func ParseSearchOutput(stdout string) ([]models.Candidate, error) {
	var candidates []models.Candidate

	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var entry SearchEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode search result on line %d: %w", line, err)
		}
		if entry.ID == "" {
			continue
		}
		candidates = append(candidates, entry.Candidate())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search output: %w", err)
	}
	return candidates, nil
}

// Candidate converts a search entry, normalizing the URL and picking the widest thumbnail.
func (e SearchEntry) Candidate() models.Candidate {
	url := e.WebpageURL
	if url == "" {
		url = e.URL
	}
	if !strings.HasPrefix(url, "http") {
		url = watchURL + e.ID
	}

	var thumb string
	widest := -1
	for _, t := range e.Thumbnails {
		if t.Width > widest {
			widest, thumb = t.Width, t.URL
		}
	}

	return models.Candidate{
		ID:        e.ID,
		URL:       url,
		Title:     e.Title,
		Duration:  int(math.Round(e.Duration)),
		Views:     e.ViewCount,
		Thumbnail: thumb,
	}
}

// FetchArgs returns the yt-dlp arguments for req, in the order they are applied.
func FetchArgs(req download.FetchRequest) []string {
	args := []string{
		"--extract-audio",
		"--audio-format", req.Format,
		"--audio-quality", req.Quality,
		"--no-playlist",
		"--output", req.OutputStem + ".%(ext)s",
	}
	if req.GPU {
		args = append(args, "--postprocessor-args", gpuPostProcessor)
	}
	return append(args, req.URL)
}

// Fetch extracts audio from req.URL into req.OutputStem with the requested codec.
func (y *YouTubeService) Fetch(ctx context.Context, req download.FetchRequest) (string, error) {
	cmd := y.command().
		ExtractAudio().
		AudioFormat(req.Format).
		AudioQuality(req.Quality).
		NoPlaylist().
		Output(req.OutputStem + ".%(ext)s")

	if req.GPU {
		cmd = cmd.PostProcessorArgs(gpuPostProcessor)
	}
	if req.Progress != nil {
		cmd = cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			req.Progress(int64(update.DownloadedBytes), int64(update.TotalBytes))
		})
	}

	res, err := cmd.Run(ctx, req.URL)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", newYTDLPError(FetchArgs(req), res, err)
	}

	return req.OutputStem + "." + req.Format, nil
}

// Install ensures a yt-dlp binary is available, downloading one into the cache directory when needed.
func Install(ctx context.Context) (string, error) {
	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: yt-dlp: %v", shared.ErrServiceUnavailable, err)
	}
	return resolved.Executable, nil
}
