package harvest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/shared"
)

const embedJSON = `{"props":{"pageProps":{"state":{"data":{"entity":{"name":"Late Night Tape","trackList":[
{"uri":"spotify:track:0DiWol3AO6WpXZgp0goxAV","title":"One More Time","subtitle":"Daft Punk","duration":320357},
{"uri":"spotify:track:1","title":"Midnight City","subtitle":"M83","duration":243960},
{"uri":"spotify:track:2","title":"","subtitle":"Nobody","duration":1000},
{"uri":"spotify:track:3","title":"Intro","subtitle":"The xx","duration":0}
]}}}}}}`

func embedPage(payload string) string {
	return `<!DOCTYPE html><html><head><title>Spotify Embed</title></head><body><div id="__next"></div>` +
		`<script id="__NEXT_DATA__" type="application/json">` + payload + `</script></body></html>`
}

func collect(t *testing.T, h Harvester, source string) ([]models.TrackInfo, error) {
	t.Helper()
	out := make(chan models.TrackInfo, 64)
	err := h.Harvest(context.Background(), source, out)
	close(out)

	var got []models.TrackInfo
	for info := range out {
		got = append(got, info)
	}
	return got, err
}

func TestForSource(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc", "spotify"},
		{"https://open.spotify.com/embed/playlist/37i9dQZF1DXcBWIGoYBM5M", "spotify"},
		{"spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", "spotify"},
		{"https://www.youtube.com/playlist?list=PLFgquLnL59alCl_2TQvOiD5Vgm1hCaGSI", "youtube"},
		{"https://music.youtube.com/playlist?list=PL123", "youtube"},
		{"./exports/tape.CSV", "csv"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			h, err := ForSource(tt.source, Opts{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if h.Name() != tt.want {
				t.Errorf("expected %s harvester, got %s", tt.want, h.Name())
			}
		})
	}

	for _, bad := range []string{"", "not a url", "https://example.com/playlist/1", "https://www.youtube.com/watch?v=abc", "https://open.spotify.com/album/1"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			if _, err := ForSource(bad, Opts{}); !errors.Is(err, shared.ErrUnsupportedSource) {
				t.Errorf("expected ErrUnsupportedSource, got %v", err)
			}
		})
	}
}

func TestPlaylistID(t *testing.T) {
	tests := map[string]string{
		"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc": "37i9dQZF1DXcBWIGoYBM5M",
		"https://open.spotify.com/embed/playlist/abc/":                    "abc",
		"spotify:playlist:xyz":                                            "xyz",
	}
	for source, want := range tests {
		got, err := PlaylistID(source)
		if err != nil || got != want {
			t.Errorf("PlaylistID(%q) = %q, %v; want %q", source, got, err, want)
		}
	}

	if _, err := PlaylistID("https://open.spotify.com/track/1"); !errors.Is(err, shared.ErrUnsupportedSource) {
		t.Errorf("expected ErrUnsupportedSource, got %v", err)
	}
}

func TestParseEmbed(t *testing.T) {
	name, tracks, err := ParseEmbed([]byte(embedJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "Late Night Tape" {
		t.Errorf("unexpected name %q", name)
	}
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(tracks))
	}

	want := []models.TrackInfo{
		{Artist: "Daft Punk", Title: "One More Time", Duration: "5:20"},
		{Artist: "M83", Title: "Midnight City", Duration: "4:04"},
		{Artist: "The xx", Title: "Intro", Duration: ""},
	}
	for i := range want {
		if tracks[i] != want[i] {
			t.Errorf("track %d: got %+v, want %+v", i, tracks[i], want[i])
		}
	}

	t.Run("malformed json", func(t *testing.T) {
		if _, _, err := ParseEmbed([]byte("{")); !errors.Is(err, shared.ErrHarvestFailed) {
			t.Errorf("expected ErrHarvestFailed, got %v", err)
		}
	})

	t.Run("empty track list", func(t *testing.T) {
		if _, _, err := ParseEmbed([]byte(`{"props":{}}`)); !errors.Is(err, shared.ErrHarvestFailed) {
			t.Errorf("expected ErrHarvestFailed, got %v", err)
		}
	})
}

func TestExtractNextData(t *testing.T) {
	data, err := ExtractNextData(strings.NewReader(embedPage(`{"a":1}`)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("unexpected data %s", data)
	}

	if _, err := ExtractNextData(strings.NewReader("<html><body></body></html>")); !errors.Is(err, shared.ErrHarvestFailed) {
		t.Errorf("expected ErrHarvestFailed, got %v", err)
	}
}

func TestSpotifyHarvester(t *testing.T) {
	t.Run("scrapes embed page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/embed/playlist/37i9dQZF1DXcBWIGoYBM5M" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("User-Agent") != "aether-test" {
				t.Errorf("unexpected user agent %s", r.Header.Get("User-Agent"))
			}
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, embedPage(embedJSON))
		}))
		defer server.Close()

		h := NewSpotifyHarvester(Opts{UserAgent: "aether-test"}).WithEmbedBase(server.URL + "/embed/playlist/")
		tracks, err := collect(t, h, "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 3 || tracks[0].Title != "One More Time" {
			t.Errorf("unexpected tracks %+v", tracks)
		}
	})

	t.Run("http error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		h := NewSpotifyHarvester(Opts{}).WithEmbedBase(server.URL + "/")
		if _, err := collect(t, h, "spotify:playlist:missing"); !errors.Is(err, shared.ErrHarvestFailed) {
			t.Errorf("expected ErrHarvestFailed, got %v", err)
		}
	})
}

func TestSplitVideoTitle(t *testing.T) {
	tests := []struct {
		raw, artist, title string
	}{
		{"Daft Punk - One More Time (Official Video)", "Daft Punk", "One More Time"},
		{"M83 – Midnight City [Official Audio]", "M83", "Midnight City"},
		{"Justice - D.A.N.C.E. (Remix)", "Justice", "D.A.N.C.E. (Remix)"},
		{"Untitled Jam", "", "Untitled Jam"},
		{"The xx - Intro (Lyrics) [HD]", "The xx", "Intro"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			artist, title := SplitVideoTitle(tt.raw)
			if artist != tt.artist || title != tt.title {
				t.Errorf("SplitVideoTitle(%q) = %q, %q; want %q, %q", tt.raw, artist, title, tt.artist, tt.title)
			}
		})
	}
}

func TestYouTubePlaylistID(t *testing.T) {
	id, err := YouTubePlaylistID("https://www.youtube.com/playlist?list=PL123&si=x")
	if err != nil || id != "PL123" {
		t.Errorf("expected PL123, got %q %v", id, err)
	}
	if _, err := YouTubePlaylistID("https://www.youtube.com/watch?v=abc"); !errors.Is(err, shared.ErrUnsupportedSource) {
		t.Errorf("expected ErrUnsupportedSource, got %v", err)
	}
}

func TestCSVHarvester(t *testing.T) {
	t.Run("reads rows by header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tape.csv")
		content := "\ufeffTitle,Artist,Duration,Album\n" +
			"One More Time,Daft Punk,5:20,Discovery\n" +
			"\"Midnight City\", M83 ,4:04\n" +
			",Nobody,1:00\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		tracks, err := collect(t, NewCSVHarvester(), path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}
		if tracks[0] != (models.TrackInfo{Artist: "Daft Punk", Title: "One More Time", Duration: "5:20", Album: "Discovery"}) {
			t.Errorf("unexpected first track %+v", tracks[0])
		}
		if tracks[1].Artist != "M83" || tracks[1].Album != "" {
			t.Errorf("unexpected second track %+v", tracks[1])
		}
	})

	t.Run("missing column", func(t *testing.T) {
		out := make(chan models.TrackInfo, 1)
		err := ReadCSV(context.Background(), strings.NewReader("name,duration\nx,1:00\n"), out)
		if !errors.Is(err, shared.ErrHarvestFailed) {
			t.Errorf("expected ErrHarvestFailed, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := collect(t, NewCSVHarvester(), filepath.Join(t.TempDir(), "nope.csv")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("cancelled while sending", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		out := make(chan models.TrackInfo)
		err := ReadCSV(ctx, strings.NewReader("artist,title\na,b\n"), out)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
