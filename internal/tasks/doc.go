// Package tasks runs ingestion missions over harvested playlist tracks with real-time event reporting.
//
// # Lifecycle
//
// A [Pipeline] owns the tracks of one playlist:
//
//  1. [Pipeline.Harvest] streams [models.TrackInfo] from a harvester into [Pipeline.Discover]
//     - Tracks are deduplicated by [shared.NormalizeTrackKey] and indexed once
//     - Each new track is matched proactively, bounded by the pool size
//
//  2. [Pipeline.Select], [Pipeline.SelectAll] and [Pipeline.SelectNone] choose what to archive
//
//  3. [Pipeline.Start] enqueues the selection and spawns the worker pool
//     - Dedup against the library, then Resolve, Download, Tag and finalize
//     - Ambiguous matches block the worker until [Pipeline.Decide] answers
//
//  4. The last unit to finish finalizes the [Mission] exactly once; [Mission.Wait] returns the report
//
//  5. [Pipeline.Shutdown] cancels everything in flight, removes temp files and checkpoints track statuses
//
// # Events
//
// All operations broadcast [Event] values on [Pipeline.Events].
// Updates use select with default to prevent blocking, except decision requests and mission completion,
// which wait on the context.
//
// # Failures
//
// A failed download or tag marks only that track FAILED and writes a JSON record to the failure log.
// Panics are recovered per track. Context cancellation is never counted as a failure.
package tasks
