// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for copying tracks into a new playlist:
//  1. [PlaylistListView] : Browse and filter Spotify playlists
//  2. [TrackListView] : Select tracks (space toggles, a selects all or none)
//  3. [ConfirmView] : Edit the destination name and visibility
//  4. [CopyView] : Monitor batch progress
//  5. [ResultView] : Show the created playlist, or how far a failed copy got
//  6. [HistoryView] : Browse created playlists, sync lineage and locate tracks added to a source since a copy
//  7. [RecoveryView] : Accept or discard an interrupted copy found at startup
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the PlaylistEngine, providing non-blocking status reporting during copies.
//
// Keyboard navigation uses the bubbles list bindings plus the keys shown in each view's help line.
package ui
