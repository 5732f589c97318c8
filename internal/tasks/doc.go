// Package tasks copies selected tracks into new playlists and tracks where those playlists came from.
//
// # Core Operations
//
// [PlaylistEngine] exposes:
//
//  1. [PlaylistEngine.Copy] : Checkpointed copy
//     - Saves a checkpoint with status "creating", then creates the destination playlist
//     - Reverses the newest-first selection and writes it in batches of 100
//     - Saves the checkpoint after every batch ("in_progress", then "completed")
//     - Records a history entry anchored on the newest copied track
//
//  2. Recovery : [PlaylistEngine.PendingInterruption], [PlaylistEngine.AcceptCheckpoint],
//     [PlaylistEngine.DiscardCheckpoint] and [PlaylistEngine.FinishCheckpoint]
//     - A failed copy leaves its last checkpoint for the user to accept or discard
//     - Nothing is retried or resumed automatically
//
//  3. Lineage : [DetectOrigins], [PlaylistEngine.ReconcileHistory], [PlaylistEngine.LocateAndPreselect]
//     - Derived playlists are named "New - {parent} - {YYYY-MM-DD} ✨"
//     - A derived name only counts when the parent exists in the same library
//     - Locating selects every parent track added after the child's anchor
//
// # Selection
//
// [Selection] is a set of track positions. [Toggle], [ToggleAll], [SelectSince] and [ParseSelection]
// return new sets and [Materialize] turns a set back into tracks in list order.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
