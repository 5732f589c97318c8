// Spotify Web API implementation of [Library]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Product     string `json:"product"`
}

// SpotifyArtist represents a simplified artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a simplified album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	Album   SpotifyAlbum    `json:"album"`
	URI     string          `json:"uri"`
}

// SpotifyPlaylistItem represents a track within a playlist. Track is null for removed or unavailable items.
type SpotifyPlaylistItem struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// Owner is the owner of a playlist.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracksRef struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a simplified playlist object as returned by listings and creation.
type SpotifyPlaylist struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Owner        Owner             `json:"owner"`
	Public       bool              `json:"public"`
	Tracks       playlistTracksRef `json:"tracks"`
	Images       []SpotifyImage    `json:"images"`
	ExternalURLs externalURLs      `json:"external_urls"`
	URI          string            `json:"uri"`
}

type apiErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a non-2xx response from the Web API.
type APIError struct {
	Status  int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v: status %d: %s", e.kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%v: status %d", e.kind, e.Status)
}

// Unwrap returns the shared sentinel matching the status.
func (e *APIError) Unwrap() error {
	return e.kind
}

func statusError(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return shared.ErrNotAuthenticated
	case status == http.StatusForbidden:
		return shared.ErrPermissionDenied
	case status == http.StatusNotFound:
		return shared.ErrNotFound
	case status == http.StatusTooManyRequests, status >= 500:
		return shared.ErrServiceUnavailable
	default:
		return shared.ErrAPIRequest
	}
}

// TokenSource supplies the current session. A nil session means the user must log in.
type TokenSource interface {
	LoadSession(ctx context.Context) (*models.Session, error)
}

// ClientOptions configures a [SpotifyClient].
type ClientOptions struct {
	BaseURL   string        // defaults to the public Web API
	Timeout   time.Duration // per-request timeout; 0 disables it
	RateLimit float64       // requests per second; 0 disables pacing
	HTTP      *http.Client  // overrides the client built from Timeout
}

// SpotifyClient implements [Library] over the Spotify Web API.
type SpotifyClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	tokens     TokenSource
	logger     *log.Logger
}

// NewSpotifyClient creates a new [SpotifyClient] authenticated by tokens.
func NewSpotifyClient(tokens TokenSource, opts ClientOptions, logger *log.Logger) *SpotifyClient {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	c := &SpotifyClient{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: opts.HTTP,
		tokens:     tokens,
		logger:     shared.WithLogger(logger, "component", "spotify"),
	}
	if c.baseURL == "" {
		c.baseURL = spotifyBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c
}

func (c *SpotifyClient) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + endpoint
}

// doRequest performs an authenticated request. Next-page links are absolute and used as-is.
func (c *SpotifyClient) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	session, err := c.tokens.LoadSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return shared.ErrNotAuthenticated
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(endpoint), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	c.logger.Debug("request", "method", method, "path", req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", shared.ErrAPIRequest, method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, kind: statusError(resp.StatusCode)}
		var errBody apiErrorBody
		if data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); json.Unmarshal(data, &errBody) == nil {
			apiErr.Message = errBody.Error.Message
		}
		return apiErr
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: %s %s: %v", shared.ErrDecode, method, req.URL.Path, err)
		}
	}

	return nil
}

// GetJSON implements [PageGetter].
func (c *SpotifyClient) GetJSON(ctx context.Context, url string, v any) error {
	return c.doRequest(ctx, http.MethodGet, url, nil, v)
}

// Me implements [Library].
func (c *SpotifyClient) Me(ctx context.Context) (*models.User, error) {
	var user SpotifyUser
	if err := c.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &models.User{ID: user.ID, DisplayName: user.DisplayName, Email: user.Email, Product: user.Product}, nil
}

// Playlists implements [Library].
func (c *SpotifyClient) Playlists(ctx context.Context) ([]models.Playlist, error) {
	items, err := FetchAll[SpotifyPlaylist](ctx, c, "/me/playlists?limit=50", nil)
	if err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, 0, len(items))
	for _, sp := range items {
		playlists = append(playlists, toPlaylist(sp))
	}
	return playlists, nil
}

// PlaylistTracks implements [Library].
//
// Items without a track or without an added timestamp are dropped. The result is sorted by AddedAt descending.
func (c *SpotifyClient) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=100", url.PathEscape(playlistID))

	items, err := FetchAll(ctx, c, endpoint, func(item SpotifyPlaylistItem) bool {
		return item.Track != nil && item.AddedAt != ""
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
		}
		return nil, err
	}

	tracks := make([]models.Track, 0, len(items))
	for _, item := range items {
		track, err := toTrack(item)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	SortByAddedDesc(tracks)
	return tracks, nil
}

// LatestTrack implements [Library].
func (c *SpotifyClient) LatestTrack(ctx context.Context, playlistID string) (*models.Track, error) {
	tracks, err := c.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: playlist %s is empty", shared.ErrTrackNotFound, playlistID)
	}
	return &tracks[0], nil
}

// CreatePlaylist implements [Library].
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, userID string, playlist NewPlaylist) (*models.Playlist, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))

	var created SpotifyPlaylist
	if err := c.doRequest(ctx, http.MethodPost, endpoint, playlist, &created); err != nil {
		return nil, err
	}

	p := toPlaylist(created)
	return &p, nil
}

// AddTracks implements [Library].
func (c *SpotifyClient) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > MaxBatchSize {
		return fmt.Errorf("%w: %d tracks exceeds the batch limit of %d", shared.ErrInvalidInput, len(uris), MaxBatchSize)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	body := map[string][]string{"uris": uris}

	var snapshot struct {
		SnapshotID string `json:"snapshot_id"`
	}
	return c.doRequest(ctx, http.MethodPost, endpoint, body, &snapshot)
}

// UnfollowPlaylist implements [Library].
func (c *SpotifyClient) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	endpoint := fmt.Sprintf("/playlists/%s/followers", url.PathEscape(playlistID))
	return c.doRequest(ctx, http.MethodDelete, endpoint, nil, nil)
}

// SortByAddedDesc orders tracks newest addition first.
//
// Tracks sharing a timestamp (a batch added within one second) are ordered by descending playlist position,
// since a later position was appended later.
func SortByAddedDesc(tracks []models.Track) {
	slices.Reverse(tracks)
	slices.SortStableFunc(tracks, func(a, b models.Track) int {
		return b.AddedAt.Compare(a.AddedAt)
	})
}

func toPlaylist(sp SpotifyPlaylist) models.Playlist {
	p := models.Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		TrackCount:  sp.Tracks.Total,
		Public:      sp.Public,
		OwnerID:     sp.Owner.ID,
		URL:         sp.ExternalURLs.Spotify,
	}
	if len(sp.Images) > 0 {
		p.ImageURL = sp.Images[0].URL
	}
	return p
}

func toTrack(item SpotifyPlaylistItem) (models.Track, error) {
	addedAt, err := time.Parse(time.RFC3339, item.AddedAt)
	if err != nil {
		return models.Track{}, fmt.Errorf("%w: added_at %q: %v", shared.ErrDecode, item.AddedAt, err)
	}

	t := item.Track
	track := models.Track{
		ID:      t.ID,
		URI:     t.URI,
		Title:   t.Name,
		Album:   t.Album.Name,
		AddedAt: addedAt,
	}
	for _, a := range t.Artists {
		track.Artists = append(track.Artists, a.Name)
	}
	if n := len(t.Album.Images); n > 0 {
		track.Thumbnail = t.Album.Images[n-1].URL
	}
	return track, nil
}
