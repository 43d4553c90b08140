// Package report builds mission reports and keeps the append-only mission history.
package report

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"sort"
	"time"

	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/shared"
	"github.com/desertthunder/aether/internal/tagging"
)

// TrackRow is the per-track entry of a [Report].
type TrackRow struct {
	Index       int     `json:"index"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Status      string  `json:"status"`
	TimeSeconds float64 `json:"time_seconds"`
	SizeBytes   int64   `json:"size_bytes"`
	URL         string  `json:"url,omitempty"`
}

// Report is an immutable snapshot of one finished or interrupted mission.
type Report struct {
	MissionID            string              `json:"mission_id"`
	Timestamp            string              `json:"timestamp"`
	PlaylistID           string              `json:"playlist_id"`
	PlaylistURL          string              `json:"playlist_url"`
	Library              string              `json:"library"`
	Engine               string              `json:"engine"`
	TotalTime            float64             `json:"total_time"`
	AvgTimePerSong       float64             `json:"avg_time_per_song"`
	AvgTrackTime         float64             `json:"avg_track_time"`
	MedianTrackTime      float64             `json:"median_track_time"`
	Stats                models.MissionStats `json:"stats"`
	LargestSong          string              `json:"largest_song,omitempty"`
	LargestSizeBytes     int64               `json:"largest_size_bytes"`
	SmallestSong         string              `json:"smallest_song,omitempty"`
	SmallestSizeBytes    int64               `json:"smallest_size_bytes"`
	MedianSizeBytes      int64               `json:"median_size_bytes"`
	AvgBitrateKbps       *float64            `json:"avg_bitrate_kbps,omitempty"`
	TotalPlaybackSeconds *int                `json:"total_playback_seconds,omitempty"`
	Interrupted          bool                `json:"interrupted"`
	Tracks               []TrackRow          `json:"tracks"`
}

// Input is everything [Build] needs from a mission.
type Input struct {
	MissionID      string
	URL            string
	Library        string
	Engine         string
	Started        time.Time
	Finished       time.Time
	Stats          models.MissionStats
	Tracks         []models.Track         // Tracks that took part in the mission, in index order
	Interrupted    bool
	PropertyReader tagging.PropertyReader // Optional; enables bitrate and playback metrics
}

// PlaylistID returns the short identifier of a playlist URL: the first 8 hex characters of its MD5.
func PlaylistID(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])[:8]
}

// Build computes the report for a mission.
//
// Time and size aggregates cover completed tracks only. The average time per song divides the mission wall time
// by max(complete, 1).
func Build(in Input) *Report {
	if in.MissionID == "" {
		in.MissionID = shared.GenerateID()
	}
	if in.Finished.IsZero() {
		in.Finished = time.Now()
	}

	total := 0.0
	if !in.Started.IsZero() {
		total = in.Finished.Sub(in.Started).Seconds()
	}

	r := &Report{
		MissionID:      in.MissionID,
		Timestamp:      in.Finished.Format(time.RFC3339),
		PlaylistID:     PlaylistID(in.URL),
		PlaylistURL:    in.URL,
		Library:        in.Library,
		Engine:         in.Engine,
		TotalTime:      round2(total),
		AvgTimePerSong: round2(total / float64(max(in.Stats.Complete, 1))),
		Stats:          in.Stats,
		Interrupted:    in.Interrupted,
		Tracks:         make([]TrackRow, 0, len(in.Tracks)),
	}

	var (
		times     []float64
		sizes     []int64
		completed []models.Track
	)
	for _, t := range in.Tracks {
		row := TrackRow{
			Index:       t.Index,
			Title:       t.Title,
			Artist:      t.Artist,
			Status:      t.Status.String(),
			TimeSeconds: round2(t.Elapsed.Seconds()),
			SizeBytes:   t.SizeBytes,
		}
		if c := t.Resolved(); c != nil {
			row.URL = c.URL
		}
		r.Tracks = append(r.Tracks, row)

		if t.Status != models.Complete {
			continue
		}
		completed = append(completed, t)
		times = append(times, t.Elapsed.Seconds())
		if t.SizeBytes > 0 {
			sizes = append(sizes, t.SizeBytes)
		}
		if t.SizeBytes > r.LargestSizeBytes {
			r.LargestSizeBytes, r.LargestSong = t.SizeBytes, t.Title
		}
		if t.SizeBytes > 0 && (r.SmallestSizeBytes == 0 || t.SizeBytes < r.SmallestSizeBytes) {
			r.SmallestSizeBytes, r.SmallestSong = t.SizeBytes, t.Title
		}
	}

	if len(times) > 0 {
		sum := 0.0
		for _, v := range times {
			sum += v
		}
		r.AvgTrackTime = round2(sum / float64(len(times)))
		r.MedianTrackTime = round2(medianFloat(times))
	}
	if len(sizes) > 0 {
		r.MedianSizeBytes = medianInt(sizes)
	}
	if in.PropertyReader != nil {
		r.AvgBitrateKbps, r.TotalPlaybackSeconds = audioMetrics(in.PropertyReader, completed)
	}
	return r
}

// audioMetrics reads audio properties of finalized files. Either metric is nil when no file could be read.
func audioMetrics(p tagging.PropertyReader, tracks []models.Track) (*float64, *int) {
	var (
		bitrates []int
		playback int
		measured int
	)
	for _, t := range tracks {
		if t.OutputPath == "" {
			continue
		}
		props, err := p.ReadProperties(t.OutputPath)
		if err != nil {
			continue
		}
		measured++
		playback += int(props.Length.Round(time.Second).Seconds())
		if props.BitrateKbps > 0 {
			bitrates = append(bitrates, props.BitrateKbps)
		}
	}
	if measured == 0 {
		return nil, nil
	}

	var avg *float64
	if len(bitrates) > 0 {
		sum := 0
		for _, b := range bitrates {
			sum += b
		}
		v := round2(float64(sum) / float64(len(bitrates)))
		avg = &v
	}
	return avg, &playback
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func medianFloat(vs []float64) float64 {
	s := append([]float64(nil), vs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func medianInt(vs []int64) int64 {
	s := append([]int64(nil), vs...)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
