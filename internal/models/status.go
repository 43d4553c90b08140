package models

import (
	"fmt"

	"github.com/desertthunder/aether/internal/shared"
)

// Status is the per-track lifecycle state, covering both the matching and archiving phases.
type Status int

const (
	Discovered Status = iota
	Matching
	Queued
	AwaitingDecision
	NoMatch
	Archiving
	Complete
	Failed
	AlreadyArchived
)

// Statuses lists every status in declaration order.
var Statuses = []Status{Discovered, Matching, Queued, AwaitingDecision, NoMatch, Archiving, Complete, Failed, AlreadyArchived}

var transitions = map[Status][]Status{
	Discovered:       {Matching, Archiving},
	Matching:         {Queued, AwaitingDecision, NoMatch},
	Queued:           {Archiving, Matching},
	AwaitingDecision: {Queued, NoMatch, Archiving},
	NoMatch:          {Archiving, Matching},
	Archiving:        {Complete, Failed, AlreadyArchived, AwaitingDecision, NoMatch},
	Complete:         {Archiving},
	Failed:           {Archiving},
	AlreadyArchived:  {Archiving},
}

func (s Status) String() string {
	switch s {
	case Discovered:
		return "DISCOVERED"
	case Matching:
		return "MATCHING"
	case Queued:
		return "QUEUED"
	case AwaitingDecision:
		return "AWAITING_USER_DECISION"
	case NoMatch:
		return "NO_MATCH"
	case Archiving:
		return "ARCHIVING"
	case Complete:
		return "COMPLETE"
	case Failed:
		return "FAILED"
	case AlreadyArchived:
		return "ALREADY_ARCHIVED"
	default:
		return ""
	}
}

// ParseStatus is the inverse of [Status.String].
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, s)
}

// Terminal reports whether s ends a track's archiving attempt.
func (s Status) Terminal() bool {
	return s == Complete || s == Failed || s == AlreadyArchived || s == NoMatch
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns an error wrapping [shared.ErrIllegalTransition] when from -> to is not allowed.
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", shared.ErrIllegalTransition, from, to)
	}
	return nil
}
