package tasks

import (
	"fmt"

	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/report"
)

// Event is a pipeline broadcast consumed by the CLI or UI layer.
//
// Index is -1 for events that do not concern a single track.
type Event struct {
	Kind       EventKind
	Index      int
	Status     models.Status
	Message    string
	Candidates []models.Candidate  // Set on DecisionRequested
	Stats      models.MissionStats // Mission counters at the time of the event
	Downloaded int64               // Set on DownloadProgress
	Size       int64               // Total bytes when known
	Report     *report.Report      // Set on MissionComplete
}

// Event kind enumeration
type EventKind int

const (
	TrackDiscovered EventKind = iota
	TrackUpdated
	DecisionRequested
	DownloadProgress
	HarvestComplete
	MissionStarted
	MissionComplete
	Warning
)

func (k EventKind) String() string {
	switch k {
	case TrackDiscovered:
		return "track_discovered"
	case TrackUpdated:
		return "track_updated"
	case DecisionRequested:
		return "decision_requested"
	case DownloadProgress:
		return "download_progress"
	case HarvestComplete:
		return "harvest_complete"
	case MissionStarted:
		return "mission_started"
	case MissionComplete:
		return "mission_complete"
	case Warning:
		return "warning"
	default:
		return ""
	}
}

func discoveredEvent(t models.Track) Event {
	return Event{
		Kind:    TrackDiscovered,
		Index:   t.Index,
		Status:  t.Status,
		Message: fmt.Sprintf("[%d] %s - %s", t.Index, t.Artist, t.Title),
	}
}

func statusEvent(index int, status models.Status, msg string, stats models.MissionStats) Event {
	return Event{
		Kind:    TrackUpdated,
		Index:   index,
		Status:  status,
		Message: msg,
		Stats:   stats,
	}
}

func decisionEvent(t models.Track, candidates []models.Candidate) Event {
	return Event{
		Kind:       DecisionRequested,
		Index:      t.Index,
		Status:     models.AwaitingDecision,
		Message:    fmt.Sprintf("%d candidates for %s - %s", len(candidates), t.Artist, t.Title),
		Candidates: append([]models.Candidate(nil), candidates...),
	}
}

func progressEvent(index int, downloaded, total int64) Event {
	return Event{
		Kind:       DownloadProgress,
		Index:      index,
		Status:     models.Archiving,
		Downloaded: downloaded,
		Size:       total,
	}
}

func harvestCompleteEvent(discovered int, err error) Event {
	msg := fmt.Sprintf("Harvest complete: %d tracks", discovered)
	if err != nil {
		msg = fmt.Sprintf("Harvest stopped after %d tracks: %v", discovered, err)
	}
	return Event{Kind: HarvestComplete, Index: -1, Message: msg}
}

func missionStartedEvent(m *Mission, workers int) Event {
	return Event{
		Kind:    MissionStarted,
		Index:   -1,
		Message: fmt.Sprintf("Commencing ingestion of %d tracks (workers: %d)", m.total, workers),
		Stats:   m.Stats(),
	}
}

func missionCompleteEvent(r *report.Report) Event {
	msg := fmt.Sprintf("Mission complete: %d/%d archived", r.Stats.Complete, r.Stats.Total)
	if r.Interrupted {
		msg = fmt.Sprintf("Mission interrupted: %d/%d archived", r.Stats.Complete, r.Stats.Total)
	}
	return Event{Kind: MissionComplete, Index: -1, Message: msg, Stats: r.Stats, Report: r}
}

func warningEvent(err error) Event {
	return Event{Kind: Warning, Index: -1, Message: err.Error()}
}
