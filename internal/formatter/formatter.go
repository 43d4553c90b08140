// Package formatter renders mission reports and history to various formats (CSV, Markdown, plain text, JSON).
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/aether/internal/report"
	"github.com/desertthunder/aether/internal/shared"
)

// Format names accepted by [Render].
const (
	FormatText     = "txt"
	FormatMarkdown = "md"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

// ParseFormat normalizes a user supplied format name.
func ParseFormat(name string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "", "txt", "text":
		return FormatText, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, name)
	}
}

// Render renders a list of reports in format.
func Render(format string, reports []report.Report) ([]byte, error) {
	format, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatMarkdown:
		return HistoryToMarkdown(reports), nil
	case FormatCSV:
		return HistoryToCSV(reports)
	case FormatJSON:
		if reports == nil {
			reports = []report.Report{}
		}
		return json.MarshalIndent(reports, "", "  ")
	default:
		return HistoryToText(reports), nil
	}
}

// ReportToText renders one report as a plain text summary with a track listing.
func ReportToText(r *report.Report) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Mission: %s\n", r.MissionID))
	buf.WriteString(fmt.Sprintf("Playlist: %s (%s)\n", r.PlaylistURL, r.PlaylistID))
	buf.WriteString(fmt.Sprintf("Library: %s\n", r.Library))
	buf.WriteString(fmt.Sprintf("Finished: %s\n", r.Timestamp))
	if r.Interrupted {
		buf.WriteString("Interrupted: yes\n")
	}
	buf.WriteString("\n")

	buf.WriteString(statsLine(r) + "\n")
	buf.WriteString(fmt.Sprintf("Total time: %s (avg %s per song)\n", FormatSeconds(r.TotalTime), FormatSeconds(r.AvgTimePerSong)))
	if r.Stats.Complete > 0 {
		buf.WriteString(fmt.Sprintf("Track time: avg %s, median %s\n", FormatSeconds(r.AvgTrackTime), FormatSeconds(r.MedianTrackTime)))
		buf.WriteString(fmt.Sprintf("Largest: %s (%s)\n", r.LargestSong, FormatBytes(r.LargestSizeBytes)))
		buf.WriteString(fmt.Sprintf("Smallest: %s (%s)\n", r.SmallestSong, FormatBytes(r.SmallestSizeBytes)))
		buf.WriteString(fmt.Sprintf("Median size: %s\n", FormatBytes(r.MedianSizeBytes)))
	}
	if r.AvgBitrateKbps != nil {
		buf.WriteString(fmt.Sprintf("Avg bitrate: %.0f kbps\n", *r.AvgBitrateKbps))
	}
	if r.TotalPlaybackSeconds != nil {
		buf.WriteString(fmt.Sprintf("Playback: %s\n", FormatSeconds(float64(*r.TotalPlaybackSeconds))))
	}

	if len(r.Tracks) > 0 {
		buf.WriteString("\n")
		for _, t := range r.Tracks {
			buf.WriteString(fmt.Sprintf("%3d. %-16s %s\n", t.Index+1, t.Status, trackName(t)))
		}
	}

	return buf.Bytes()
}

// ReportToMarkdown renders one report as a Markdown section with a track table.
func ReportToMarkdown(r *report.Report) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("## Mission %s\n\n", r.MissionID))
	buf.WriteString(fmt.Sprintf("**Playlist**: %s\n", r.PlaylistURL))
	buf.WriteString(fmt.Sprintf("**Library**: `%s`\n", r.Library))
	buf.WriteString(fmt.Sprintf("**Finished**: %s\n", r.Timestamp))
	buf.WriteString(fmt.Sprintf("**Result**: %s\n", statsLine(r)))
	buf.WriteString(fmt.Sprintf("**Total time**: %s\n", FormatSeconds(r.TotalTime)))
	if r.Interrupted {
		buf.WriteString("**Interrupted**: yes\n")
	}
	buf.WriteString("\n")

	if len(r.Tracks) == 0 {
		return buf.Bytes()
	}

	buf.WriteString("| # | Artist | Title | Status | Time | Size |\n")
	buf.WriteString("|---|--------|-------|--------|------|------|\n")
	for _, t := range r.Tracks {
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s |\n",
			t.Index+1,
			escapeCell(t.Artist),
			escapeCell(t.Title),
			t.Status,
			FormatSeconds(t.TimeSeconds),
			FormatBytes(t.SizeBytes),
		))
	}
	buf.WriteString("\n")

	return buf.Bytes()
}

// HistoryToText renders one line per mission.
func HistoryToText(reports []report.Report) []byte {
	var buf bytes.Buffer
	if len(reports) == 0 {
		buf.WriteString("No missions recorded\n")
		return buf.Bytes()
	}

	for _, r := range reports {
		flag := ""
		if r.Interrupted {
			flag = " [interrupted]"
		}
		buf.WriteString(fmt.Sprintf("%s  %s  %s  %s%s\n", r.Timestamp, r.MissionID, r.PlaylistID, statsLine(&r), flag))
	}
	return buf.Bytes()
}

// HistoryToMarkdown renders every report as a Markdown section under a common heading.
func HistoryToMarkdown(reports []report.Report) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Mission History\n\n")
	buf.WriteString(fmt.Sprintf("**Missions**: %d\n\n", len(reports)))
	for i := range reports {
		buf.Write(ReportToMarkdown(&reports[i]))
	}
	return buf.Bytes()
}

// HistoryToCSV converts reports to CSV with one row per track and the mission columns repeated.
func HistoryToCSV(reports []report.Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"MissionID", "Timestamp", "PlaylistID", "Index", "Artist", "Title", "Status", "TimeSeconds", "SizeBytes", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range reports {
		for _, t := range r.Tracks {
			record := []string{
				r.MissionID,
				r.Timestamp,
				r.PlaylistID,
				strconv.Itoa(t.Index),
				t.Artist,
				t.Title,
				t.Status,
				strconv.FormatFloat(t.TimeSeconds, 'f', 2, 64),
				strconv.FormatInt(t.SizeBytes, 10),
				t.URL,
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteReport renders r in format and writes it to path.
//
// Defaults to {mission_id}.{format} as the filename.
func WriteReport(r *report.Report, path, format string) (string, error) {
	format, err := ParseFormat(format)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = fmt.Sprintf("%s.%s", r.MissionID, format)
	}

	var data []byte
	switch format {
	case FormatMarkdown:
		data = ReportToMarkdown(r)
	case FormatCSV:
		data, err = HistoryToCSV([]report.Report{*r})
	case FormatJSON:
		data, err = json.MarshalIndent(r, "", "  ")
	default:
		data = ReportToText(r)
	}
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

// FormatSeconds renders a duration in seconds as e.g. "1m30s" or "4.2s".
func FormatSeconds(s float64) string {
	if s < 60 {
		return strconv.FormatFloat(s, 'f', 1, 64) + "s"
	}
	return (time.Duration(s) * time.Second).Round(time.Second).String()
}

// FormatBytes renders a byte count with binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func statsLine(r *report.Report) string {
	s := r.Stats
	line := fmt.Sprintf("%d/%d complete, %d no match, %d failed", s.Complete, s.Total, s.NoMatch, s.Failed)
	if s.AlreadyArchived > 0 {
		line += fmt.Sprintf(", %d already archived", s.AlreadyArchived)
	}
	return line
}

func trackName(t report.TrackRow) string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
