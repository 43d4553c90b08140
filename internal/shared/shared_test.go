package shared

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNormalizeTrackKey(t *testing.T) {
	tc := []struct {
		name   string
		title  string
		artist string
		want   string
	}{
		{
			name:   "basic normalization",
			title:  "Song Title",
			artist: "Artist Name",
			want:   "song title|artist name",
		},
		{
			name:   "extra whitespace",
			title:  "  Song   Title  ",
			artist: "  Artist   Name  ",
			want:   "song title|artist name",
		},
		{
			name:   "mixed case",
			title:  "SoNg TiTlE",
			artist: "ArTiSt NaMe",
			want:   "song title|artist name",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTrackKey(tt.title, tt.artist)
			if got != tt.want {
				t.Errorf("NormalizeTrackKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDestinationName(t *testing.T) {
	tc := []struct {
		name   string
		artist string
		title  string
		ext    string
		want   string
	}{
		{
			name:   "plain ascii",
			artist: "Daft Punk",
			title:  "Digital Love",
			ext:    "mp3",
			want:   "Daft Punk - Digital Love.mp3",
		},
		{
			name:   "leading dot in extension",
			artist: "Daft Punk",
			title:  "Digital Love",
			ext:    ".m4a",
			want:   "Daft Punk - Digital Love.m4a",
		},
		{
			name:   "path separators and punctuation",
			artist: "AC/DC",
			title:  "Back In Black (Live!)",
			ext:    "mp3",
			want:   "AC_DC - Back In Black _Live__.mp3",
		},
		{
			name:   "unicode letters kept",
			artist: "Sigur Rós",
			title:  "Hoppípolla",
			ext:    "mp3",
			want:   "Sigur Rós - Hoppípolla.mp3",
		},
		{
			name:   "decomposed input is composed first",
			artist: "Beyonce\u0301",
			title:  "Halo",
			ext:    "mp3",
			want:   "Beyoncé - Halo.mp3",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := DestinationName(tt.artist, tt.title, tt.ext)
			if got != tt.want {
				t.Errorf("DestinationName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	got := SanitizeFilename("a:b*c?d\"e<f>g|h")
	if got != "a_b_c_d_e_f_g_h" {
		t.Errorf("expected reserved characters to be replaced, got %q", got)
	}
	if strings.ContainsAny(SanitizeFilename("x/y\\z"), "/\\") {
		t.Error("expected separators to be removed")
	}
}

func TestLoggers(t *testing.T) {
	t.Run("failure logger writes JSON", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewFailureLogger(&buf)
		l.Error("track failed", "track", 3, "phase", "download")

		out := buf.String()
		if !strings.HasPrefix(strings.TrimSpace(out), "{") {
			t.Fatalf("expected JSON record, got %q", out)
		}
		if !strings.Contains(out, `"phase":"download"`) {
			t.Errorf("expected phase field in %q", out)
		}
	})

	t.Run("ParseLogLevel", func(t *testing.T) {
		if ParseLogLevel("DEBUG") != log.DebugLevel {
			t.Error("expected debug level")
		}
		if ParseLogLevel("nonsense") != log.InfoLevel {
			t.Error("expected info fallback")
		}
	})
}
