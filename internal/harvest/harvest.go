package harvest

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/shared"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	DefaultTimeout   = 30 * time.Second
)

// Harvester streams the track listing of a playlist source.
//
// Implementations send descriptors to out in playlist order and return when the listing is exhausted.
// They never close out.
type Harvester interface {
	Name() string
	Harvest(ctx context.Context, source string, out chan<- models.TrackInfo) error
}

// Opts configures the harvesters built by [ForSource].
type Opts struct {
	UserAgent string
	Timeout   time.Duration
	Logger    *log.Logger
}

func (o Opts) withDefaults() Opts {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = shared.NewLogger(nil)
	}
	return o
}

// ForSource picks a harvester for a playlist URL or file path.
func ForSource(source string, opts Opts) (Harvester, error) {
	opts = opts.withDefaults()
	source = strings.TrimSpace(source)

	switch {
	case strings.HasSuffix(strings.ToLower(source), ".csv"):
		return NewCSVHarvester(), nil
	case strings.HasPrefix(source, "spotify:playlist:"):
		return NewSpotifyHarvester(opts), nil
	}

	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", shared.ErrUnsupportedSource, source)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case host == "open.spotify.com" && strings.Contains(u.Path, "/playlist/"):
		return NewSpotifyHarvester(opts), nil
	case (host == "youtube.com" || host == "music.youtube.com" || host == "m.youtube.com") && u.Query().Get("list") != "":
		return NewYouTubeHarvester(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnsupportedSource, source)
	}
}

func send(ctx context.Context, out chan<- models.TrackInfo, info models.TrackInfo) error {
	select {
	case out <- info:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var videoNoise = regexp.MustCompile(`(?i)\s*[\(\[][^\)\]]*\b(?:official|lyrics?|audio|video|visualizer|hd|hq|4k)\b[^\)\]]*[\)\]]`)

// SplitVideoTitle splits "Artist - Title" video titles, dropping bracketed noise such as "(Official Video)".
// Titles without a separator return an empty artist.
func SplitVideoTitle(raw string) (artist, title string) {
	clean := strings.TrimSpace(videoNoise.ReplaceAllString(raw, ""))
	for _, sep := range []string{" - ", " – ", " — "} {
		if before, after, ok := strings.Cut(clean, sep); ok {
			return strings.TrimSpace(before), strings.TrimSpace(after)
		}
	}
	return "", clean
}
