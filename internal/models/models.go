// Package models defines the domain types shared by the ingestion pipeline, its collaborators and the UI.
package models

import (
	"time"
)

// TrackInfo is one harvested playlist entry before it becomes a [Track].
type TrackInfo struct {
	Artist   string
	Title    string
	Album    string
	Duration string // Source-reported duration text, e.g. "3:43"
}

// Track is one playlist entry within a mission.
//
// Index is assigned once at discovery and is the only key used to correlate pipeline events, UI rows and progress callbacks.
type Track struct {
	Index         int
	Artist        string
	Title         string
	Album         string
	DurationText  string
	Duration      int  // Parsed seconds, 0 when unknown
	DurationKnown bool // False when DurationText could not be parsed
	Status        Status
	Selected      bool
	Match         *Candidate // Resolved by proactive matching or the worker
	Override      *Candidate // Chosen manually during disambiguation
	OutputPath    string
	SizeBytes     int64
	Elapsed       time.Duration
	Error         string
}

// Resolved returns the candidate a worker should fetch: the manual override first, then the automatic match.
func (t Track) Resolved() *Candidate {
	if t.Override != nil {
		return t.Override
	}
	return t.Match
}

// Candidate is a prospective source-platform entry for a track.
type Candidate struct {
	ID        string
	URL       string
	Title     string
	Duration  int   // Seconds, 0 when unknown
	Views     int64 // 0 when unknown
	Thumbnail string
	Score     float64
}

// MissionStats holds the aggregate counters of one mission.
type MissionStats struct {
	Total           int `json:"total"`
	Complete        int `json:"complete"`
	NoMatch         int `json:"no_match"`
	Failed          int `json:"failed"`
	AlreadyArchived int `json:"already_archived"`
}

// Done returns the number of tracks that reached an outcome.
func (s MissionStats) Done() int {
	return s.Complete + s.NoMatch + s.Failed
}

// Mission lifecycle states persisted with a [MissionRecord].
const (
	MissionRunning     = "running"
	MissionComplete    = "complete"
	MissionInterrupted = "interrupted"
)

// MissionRecord is the persisted summary row of one ingestion run.
type MissionRecord struct {
	ID         string
	Source     string
	Library    string
	Engine     string
	Status     string
	Stats      MissionStats
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Checkpoint is the last saved state of one track within a mission.
type Checkpoint struct {
	MissionID  string
	Index      int
	Artist     string
	Title      string
	Status     Status
	MatchURL   string
	OutputPath string
	SizeBytes  int64
	Error      string
	UpdatedAt  time.Time
}
