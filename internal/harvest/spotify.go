package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/aether/internal/duration"
	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/shared"
	"github.com/gocolly/colly"
)

const spotifyEmbedBase = "https://open.spotify.com/embed/playlist/"

// SpotifyHarvester reads public playlists from the Spotify embed page, which ships the full
// track list as JSON in the __NEXT_DATA__ script.
type SpotifyHarvester struct {
	embedBase string
	userAgent string
	opts      Opts
	logger    *log.Logger
}

// NewSpotifyHarvester creates a Spotify embed harvester.
func NewSpotifyHarvester(opts Opts) *SpotifyHarvester {
	opts = opts.withDefaults()
	return &SpotifyHarvester{
		embedBase: spotifyEmbedBase,
		userAgent: opts.UserAgent,
		opts:      opts,
		logger:    opts.Logger,
	}
}

// WithEmbedBase overrides the embed endpoint.
func (s *SpotifyHarvester) WithEmbedBase(base string) *SpotifyHarvester {
	s.embedBase = base
	return s
}

func (s *SpotifyHarvester) Name() string { return "spotify" }

// PlaylistID extracts the playlist ID from an open.spotify.com URL or a spotify:playlist: URI.
func PlaylistID(source string) (string, error) {
	if id, ok := strings.CutPrefix(source, "spotify:playlist:"); ok && id != "" {
		return id, nil
	}

	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrUnsupportedSource, err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "playlist" && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("%w: no playlist id in %q", shared.ErrUnsupportedSource, source)
}

func (s *SpotifyHarvester) Harvest(ctx context.Context, source string, out chan<- models.TrackInfo) error {
	id, err := PlaylistID(source)
	if err != nil {
		return err
	}

	var (
		body     []byte
		visitErr error
	)

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(s.userAgent),
	)
	c.SetRequestTimeout(s.opts.Timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("request %v failed with status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	target := s.embedBase + id
	s.logger.Info("fetching spotify embed", "url", target)

	if err := c.Visit(target); err != nil && visitErr == nil {
		visitErr = err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if visitErr != nil {
		return fmt.Errorf("%w: %v", shared.ErrHarvestFailed, visitErr)
	}

	data, err := ExtractNextData(bytes.NewReader(body))
	if err != nil {
		return err
	}

	name, tracks, err := ParseEmbed(data)
	if err != nil {
		return err
	}
	s.logger.Info("harvested spotify playlist", "name", name, "tracks", len(tracks))

	for _, info := range tracks {
		if err := send(ctx, out, info); err != nil {
			return err
		}
	}
	return nil
}

// ExtractNextData returns the contents of the script#__NEXT_DATA__ element of an HTML page.
func ExtractNextData(r io.Reader) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse embed html: %v", shared.ErrHarvestFailed, err)
	}

	script := strings.TrimSpace(doc.Find("script#__NEXT_DATA__").First().Text())
	if script == "" {
		return nil, fmt.Errorf("%w: embed page has no __NEXT_DATA__", shared.ErrHarvestFailed)
	}
	return []byte(script), nil
}

type embedTrack struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Duration int    `json:"duration"` // Milliseconds
}

type embedData struct {
	Props struct {
		PageProps struct {
			State struct {
				Data struct {
					Entity struct {
						Name      string       `json:"name"`
						Title     string       `json:"title"`
						TrackList []embedTrack `json:"trackList"`
					} `json:"entity"`
				} `json:"data"`
			} `json:"state"`
		} `json:"pageProps"`
	} `json:"props"`
}

// ParseEmbed decodes the embed JSON into the playlist name and its tracks, with durations rendered as M:SS.
func ParseEmbed(data []byte) (string, []models.TrackInfo, error) {
	var payload embedData
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", nil, fmt.Errorf("%w: decode embed json: %v", shared.ErrHarvestFailed, err)
	}

	entity := payload.Props.PageProps.State.Data.Entity
	name := entity.Name
	if name == "" {
		name = entity.Title
	}

	tracks := make([]models.TrackInfo, 0, len(entity.TrackList))
	for _, t := range entity.TrackList {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			continue
		}

		info := models.TrackInfo{
			Title:  title,
			Artist: strings.TrimSpace(strings.ReplaceAll(t.Subtitle, "\u00a0", " ")),
		}
		if t.Duration > 0 {
			info.Duration = duration.Format((t.Duration + 500) / 1000)
		}
		tracks = append(tracks, info)
	}

	if len(tracks) == 0 {
		return name, nil, fmt.Errorf("%w: playlist %q has no tracks", shared.ErrHarvestFailed, name)
	}
	return name, tracks, nil
}
