// Package repositories implements SQLite persistence for mission bookkeeping.
//
// Key Implementations:
//   - [MissionRepository] : One row per ingestion run with its final counters
//   - [CheckpointRepository] : Last known status of every track, keyed by (mission, index)
//
// Both satisfy the recorder and checkpointer interfaces the task pipeline depends on, so a run
// interrupted by a signal can be inspected later with the checkpoint command.
package repositories
