// Package services implements the Spotify Web API client used by the playlist engine.
//
// # Library Interface
//
// [Library] is the slice of the API the engine needs: current user, playlists, playlist tracks,
// playlist creation, track appends and unfollowing. [SpotifyClient] implements it; tests use a mock.
//
// # Pagination
//
// [FetchAll] follows the provider's "next" links until they run out and returns a fully materialized slice,
// since callers need totals before acting. It is generic over the page item type and is used for both
// /me/playlists and /playlists/{id}/tracks. Pages are fetched sequentially; any failure discards what was read.
//
// # Authentication
//
// Every request loads the session from a [TokenSource]. An absent or expired session yields
// [shared.ErrNotAuthenticated] without a network call; there is no automatic refresh.
//
// # Error Handling
//
// Non-2xx responses become [*APIError], which unwraps to a shared sentinel:
//   - [shared.ErrNotAuthenticated] : 401
//   - [shared.ErrPermissionDenied] : 403, e.g. deleting a playlist owned by someone else
//   - [shared.ErrNotFound] : 404
//   - [shared.ErrServiceUnavailable] : 429 and 5xx
//   - [shared.ErrAPIRequest] : anything else, and transport failures
//
// Malformed bodies wrap [shared.ErrDecode].
//
// # Hardening
//
// Requests carry a client timeout and are paced by a [rate.Limiter] when configured.
package services
