package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrTimeout       = fmt.Errorf("operation timed out")

	// Mission lifecycle errors
	ErrHarvestInProgress = fmt.Errorf("harvest still in progress")
	ErrMissionActive     = fmt.Errorf("an ingestion mission is already active")
	ErrEmptySelection    = fmt.Errorf("no tracks selected")
	ErrIllegalTransition = fmt.Errorf("illegal status transition")
	ErrUnknownTrack      = fmt.Errorf("unknown track")
	ErrNotAwaiting       = fmt.Errorf("track is not awaiting a decision")
	ErrNotFound          = fmt.Errorf("record not found")

	// Collaborator errors
	ErrUnsupportedSource  = fmt.Errorf("unsupported playlist source")
	ErrHarvestFailed      = fmt.Errorf("harvest failed")
	ErrSearchFailed       = fmt.Errorf("search failed")
	ErrNoCandidates       = fmt.Errorf("no candidates")
	ErrDownloadFailed     = fmt.Errorf("download failed")
	ErrEmptyOutput        = fmt.Errorf("fetch produced no output")
	ErrTagFailed          = fmt.Errorf("tagging failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
