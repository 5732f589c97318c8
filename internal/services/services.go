// package services defines the Spotify Web API client used by the playlist engine
package services

import (
	"context"
	"strings"

	"github.com/desertthunder/spm/internal/models"
)

// MaxBatchSize is the largest number of tracks accepted by a single add-tracks call.
const MaxBatchSize = 100

// Library is the subset of the Spotify Web API the playlist engine depends on.
type Library interface {
	// Me returns the authenticated user.
	Me(ctx context.Context) (*models.User, error)

	// Playlists returns every playlist of the user, following pagination to the end.
	Playlists(ctx context.Context) ([]models.Playlist, error)

	// PlaylistTracks returns every track of a playlist, newest addition first.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// LatestTrack returns the most recently added track of a playlist.
	LatestTrack(ctx context.Context, playlistID string) (*models.Track, error)

	// CreatePlaylist creates an empty playlist owned by userID.
	CreatePlaylist(ctx context.Context, userID string, playlist NewPlaylist) (*models.Playlist, error)

	// AddTracks appends up to [MaxBatchSize] track URIs to a playlist, in order.
	AddTracks(ctx context.Context, playlistID string, uris []string) error

	// UnfollowPlaylist removes a playlist from the user's library. Only the owner may delete.
	UnfollowPlaylist(ctx context.Context, playlistID string) error
}

// NewPlaylist describes a playlist to create.
type NewPlaylist struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

// FilterPlaylists returns the playlists whose name contains query, ignoring case.
// An empty query returns all playlists.
func FilterPlaylists(playlists []models.Playlist, query string) []models.Playlist {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return playlists
	}

	var matches []models.Playlist
	for _, p := range playlists {
		if strings.Contains(strings.ToLower(p.Name), query) {
			matches = append(matches, p)
		}
	}
	return matches
}

// FindPlaylist resolves ref against playlists by id, then exact name, then a unique case-insensitive match.
func FindPlaylist(playlists []models.Playlist, ref string) (*models.Playlist, bool) {
	for i := range playlists {
		if playlists[i].ID == ref {
			return &playlists[i], true
		}
	}
	for i := range playlists {
		if playlists[i].Name == ref {
			return &playlists[i], true
		}
	}
	if matches := FilterPlaylists(playlists, ref); len(matches) == 1 {
		return &matches[0], true
	}
	return nil, false
}
