package formatter

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/report"
	"github.com/desertthunder/aether/internal/shared"
)

func sampleReport() report.Report {
	bitrate := 288.0
	return report.Report{
		MissionID:         "m-1",
		Timestamp:         "2026-03-01T12:00:00Z",
		PlaylistID:        "1a2b3c4d",
		PlaylistURL:       "https://open.spotify.com/playlist/abc",
		Library:           "/music",
		Engine:            "ytdlp",
		TotalTime:         90,
		AvgTimePerSong:    45,
		AvgTrackTime:      15,
		MedianTrackTime:   15,
		Stats:             models.MissionStats{Total: 3, Complete: 2, NoMatch: 1},
		LargestSong:       "M83 - Midnight City",
		LargestSizeBytes:  9 * 1024 * 1024,
		SmallestSong:      "Daft Punk - One | More Time",
		SmallestSizeBytes: 4096,
		MedianSizeBytes:   4096,
		AvgBitrateKbps:    &bitrate,
		Tracks: []report.TrackRow{
			{Index: 0, Artist: "M83", Title: "Midnight City", Status: "COMPLETE", TimeSeconds: 10, SizeBytes: 9 * 1024 * 1024, URL: "https://www.youtube.com/watch?v=a"},
			{Index: 1, Artist: "Daft Punk", Title: "One | More Time", Status: "COMPLETE", TimeSeconds: 20, SizeBytes: 4096},
			{Index: 2, Title: "Ambient Rain 10 Hours", Status: "NO_MATCH"},
		},
	}
}

func TestExporters(t *testing.T) {
	r := sampleReport()

	t.Run("ReportToText", func(t *testing.T) {
		output := string(ReportToText(&r))

		for _, want := range []string{
			"Mission: m-1",
			"2/3 complete, 1 no match, 0 failed",
			"Total time: 1m30s",
			"Largest: M83 - Midnight City (9.0 MiB)",
			"Avg bitrate: 288 kbps",
			"M83 - Midnight City",
			"Ambient Rain 10 Hours",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("text missing %q, got:\n%s", want, output)
			}
		}
		if strings.Contains(output, "Interrupted") {
			t.Error("text should not flag a finished mission as interrupted")
		}
	})

	t.Run("ReportToMarkdown", func(t *testing.T) {
		output := string(ReportToMarkdown(&r))

		if !strings.Contains(output, "## Mission m-1") {
			t.Errorf("Markdown missing heading, got: %s", output)
		}
		if !strings.Contains(output, "| # | Artist | Title | Status | Time | Size |") {
			t.Errorf("Markdown missing table header")
		}
		if !strings.Contains(output, "One \\| More Time") {
			t.Errorf("Markdown should escape pipes in cells, got: %s", output)
		}
	})

	t.Run("HistoryToCSV", func(t *testing.T) {
		data, err := HistoryToCSV([]report.Report{r, r})
		if err != nil {
			t.Fatalf("HistoryToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 7 {
			t.Fatalf("expected header plus 6 rows, got %d", len(lines))
		}
		if lines[0] != "MissionID,Timestamp,PlaylistID,Index,Artist,Title,Status,TimeSeconds,SizeBytes,URL" {
			t.Errorf("unexpected headers: %s", lines[0])
		}
		if !strings.Contains(lines[1], "m-1,2026-03-01T12:00:00Z,1a2b3c4d,0,M83,Midnight City,COMPLETE,10.00,9437184,") {
			t.Errorf("unexpected first row: %s", lines[1])
		}
	})

	t.Run("HistoryToText", func(t *testing.T) {
		interrupted := r
		interrupted.Interrupted = true

		output := string(HistoryToText([]report.Report{r, interrupted}))
		if strings.Count(output, "m-1") != 2 {
			t.Errorf("expected one line per mission, got:\n%s", output)
		}
		if !strings.Contains(output, "[interrupted]") {
			t.Errorf("expected interrupted flag, got:\n%s", output)
		}

		if got := string(HistoryToText(nil)); got != "No missions recorded\n" {
			t.Errorf("unexpected empty history: %q", got)
		}
	})
}

func TestRender(t *testing.T) {
	reports := []report.Report{sampleReport()}

	tc := []struct {
		format string
		want   string
	}{
		{"txt", "2/3 complete"},
		{"text", "2/3 complete"},
		{"md", "# Mission History"},
		{"markdown", "# Mission History"},
		{"csv", "MissionID,Timestamp"},
		{"json", `"mission_id": "m-1"`},
	}

	for _, tt := range tc {
		t.Run(tt.format, func(t *testing.T) {
			data, err := Render(tt.format, reports)
			if err != nil {
				t.Fatalf("Render(%q) failed: %v", tt.format, err)
			}
			if !strings.Contains(string(data), tt.want) {
				t.Errorf("Render(%q) missing %q, got:\n%s", tt.format, tt.want, data)
			}
		})
	}

	t.Run("empty json", func(t *testing.T) {
		data, err := Render("json", nil)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		if string(data) != "[]" {
			t.Errorf("expected empty array, got %s", data)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := Render("xml", reports); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestWriteReport(t *testing.T) {
	r := sampleReport()
	dir := t.TempDir()

	t.Run("json", func(t *testing.T) {
		path, err := WriteReport(&r, filepath.Join(dir, "report.json"), "json")
		if err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}

		var decoded report.Report
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("report is not valid JSON: %v", err)
		}
		if decoded.MissionID != "m-1" || len(decoded.Tracks) != 3 {
			t.Errorf("unexpected decoded report: %+v", decoded)
		}
	})

	t.Run("default path", func(t *testing.T) {
		t.Chdir(dir)

		path, err := WriteReport(&r, "", "md")
		if err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		if path != "m-1.md" {
			t.Errorf("expected m-1.md, got %s", path)
		}
		if _, err := os.Stat(filepath.Join(dir, "m-1.md")); err != nil {
			t.Errorf("report file not created: %v", err)
		}
	})
}

func TestFormatHelpers(t *testing.T) {
	seconds := []struct {
		in   float64
		want string
	}{
		{0, "0.0s"},
		{4.3, "4.3s"},
		{90, "1m30s"},
		{3600, "1h0m0s"},
	}
	for _, tt := range seconds {
		if got := FormatSeconds(tt.in); got != tt.want {
			t.Errorf("FormatSeconds(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}

	sizes := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range sizes {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
