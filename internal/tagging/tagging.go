package tagging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/shared"
)

// Metadata is the tag set written to a finalized file.
type Metadata struct {
	Title     string
	Artist    string
	Album     string
	Comment   string // Source URL
	Cover     []byte
	CoverMIME string
}

// Tagger rewrites the tags of the file at path in place.
type Tagger interface {
	Write(ctx context.Context, path string, meta Metadata) error
}

// CoverFetcher downloads artwork, returning bytes and MIME type.
type CoverFetcher interface {
	Artwork(ctx context.Context, url string) ([]byte, string, error)
}

// Result is a finalized library file.
type Result struct {
	Path      string
	SizeBytes int64
}

// StageOpts configures a [Stage].
type StageOpts struct {
	Tagger     Tagger
	Covers     CoverFetcher // Optional; consulted only when EmbedCover is set
	EmbedCover bool
	Dir        string
	Format     string // Destination extension; the temp file's extension when empty
	Logger     *log.Logger
}

// Stage tags a temp file and renames it to the library destination.
type Stage struct {
	tagger     Tagger
	covers     CoverFetcher
	embedCover bool
	dir        string
	format     string
	logger     *log.Logger
}

// NewStage creates a tagging [Stage].
func NewStage(opts StageOpts) *Stage {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Stage{
		tagger:     opts.Tagger,
		covers:     opts.Covers,
		embedCover: opts.EmbedCover,
		dir:        opts.Dir,
		format:     strings.TrimPrefix(opts.Format, "."),
		logger:     opts.Logger,
	}
}

// Destination returns the library path a track is archived to.
func (s *Stage) Destination(track models.Track, ext string) string {
	return filepath.Join(s.dir, shared.DestinationName(track.Artist, track.Title, ext))
}

// MetadataFor builds the tag set for track matched to c, without artwork.
func MetadataFor(track models.Track, c models.Candidate) Metadata {
	return Metadata{
		Title:   track.Title,
		Artist:  track.Artist,
		Album:   track.Album,
		Comment: c.URL,
	}
}

// Finalize writes tags into tempPath and renames it to the track's destination.
//
// Artwork failures are logged and the file is finalized without a cover. A tagging failure leaves tempPath in
// place for the caller to discard and wraps [shared.ErrTagFailed].
func (s *Stage) Finalize(ctx context.Context, tempPath string, track models.Track, c models.Candidate) (Result, error) {
	meta := MetadataFor(track, c)
	logger := shared.WithLogger(s.logger, "track", track.Index)

	if s.embedCover && s.covers != nil && c.Thumbnail != "" {
		data, mime, err := s.covers.Artwork(ctx, c.Thumbnail)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			logger.Warn("skipping cover art", "url", c.Thumbnail, "err", err)
		} else {
			meta.Cover, meta.CoverMIME = data, mime
		}
	}

	if s.tagger != nil {
		if err := s.tagger.Write(ctx, tempPath, meta); err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			return Result{}, fmt.Errorf("%w: %s: %w", shared.ErrTagFailed, tempPath, err)
		}
	}

	ext := s.format
	if ext == "" {
		ext = strings.TrimPrefix(filepath.Ext(tempPath), ".")
	}
	dest := s.Destination(track, ext)
	if err := os.Rename(tempPath, dest); err != nil {
		return Result{}, fmt.Errorf("failed to move %s to library: %w", tempPath, err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat finalized file: %w", err)
	}

	logger.Debug("finalized", "path", dest, "bytes", info.Size())
	return Result{Path: dest, SizeBytes: info.Size()}, nil
}
