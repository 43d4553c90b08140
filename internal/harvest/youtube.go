package harvest

import (
	"context"
	"fmt"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/shared"
	"github.com/ytget/ytdlp/v2"
)

// YouTubeHarvester lists YouTube playlists. Video durations are not available in the listing.
type YouTubeHarvester struct {
	opts   Opts
	logger *log.Logger
}

// NewYouTubeHarvester creates a YouTube playlist harvester.
func NewYouTubeHarvester(opts Opts) *YouTubeHarvester {
	opts = opts.withDefaults()
	return &YouTubeHarvester{opts: opts, logger: opts.Logger}
}

func (y *YouTubeHarvester) Name() string { return "youtube" }

// YouTubePlaylistID returns the list= parameter of a playlist URL.
func YouTubePlaylistID(source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrUnsupportedSource, err)
	}
	if id := u.Query().Get("list"); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: no list parameter in %q", shared.ErrUnsupportedSource, source)
}

func (y *YouTubeHarvester) Harvest(ctx context.Context, source string, out chan<- models.TrackInfo) error {
	id, err := YouTubePlaylistID(source)
	if err != nil {
		return err
	}

	lctx, cancel := context.WithTimeout(ctx, y.opts.Timeout)
	defer cancel()

	items, err := ytdlp.New().GetPlaylistItemsAll(lctx, id, 0)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: playlist %s: %v", shared.ErrHarvestFailed, id, err)
	}
	y.logger.Info("harvested youtube playlist", "id", id, "items", len(items))

	for _, it := range items {
		artist, title := SplitVideoTitle(it.Title)
		if title == "" {
			continue
		}
		if err := send(ctx, out, models.TrackInfo{Artist: artist, Title: title}); err != nil {
			return err
		}
	}
	return nil
}
