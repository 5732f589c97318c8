// Package models defines the domain entities of the spm playlist manager and the persistence interface they are stored through.
//
// The package contains two categories of types:
//
// 1. Provider data: lightweight structs mapped from the Spotify Web API
//   - [User] : the authenticated account, needed to create playlists
//   - [Playlist] : playlist metadata from the owned-playlists listing
//   - [Track] : a playlist item with the timestamp it was added
//
// 2. Local state: process-external records that survive a restart
//   - [Session] : access token with absolute expiry
//   - [Checkpoint] : the single in-flight or just-completed copy operation
//   - [HistoryEntry] : a completed copy, with the [LastItem] used for lineage
//
// Local state lives in single-key slots; the [Slot] interface is implemented by the repositories package.
package models
