// Package models defines the domain entities of an archival mission.
//
// A mission starts with [TrackInfo] entries streamed by a harvester. The pipeline turns each unique entry into a [Track],
// attaches a [Candidate] resolved against the search collaborator, and tallies outcomes in [MissionStats].
//
// Track status is a closed enumeration ([Status]) with an explicit transition table:
//
//	DISCOVERED -> MATCHING -> {QUEUED | AWAITING_USER_DECISION | NO_MATCH}
//	           -> ARCHIVING -> {COMPLETE | FAILED | ALREADY_ARCHIVED}
//
// [Transition] rejects anything outside the table with [shared.ErrIllegalTransition].
// Terminal statuses may re-enter ARCHIVING so a later mission can revisit a track.
package models
