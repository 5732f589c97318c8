// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/services"
	"github.com/desertthunder/spm/internal/shared"
)

// MockLibrary is an in-memory test double for [services.Library].
//
// Playlists created through it start empty and collect the URIs passed to AddTracks.
type MockLibrary struct {
	mu sync.Mutex

	User      *models.User
	Lists     []models.Playlist
	Tracks    map[string][]models.Track // Newest first, keyed by playlist id
	Created   []services.NewPlaylist
	Batches   map[string][][]string // Add-tracks calls, keyed by playlist id
	Unfollows []string

	MeErr        error
	PlaylistsErr error
	TracksErr    error
	CreateErr    error
	AddErr       error
	FailAddAt    int // 1-based add-tracks call that returns AddErr; 0 fails every call
	UnfollowErr  error
	Calls        int
}

// NewMockLibrary returns a library for user "user-1" holding playlists.
//
// Playlists without an owner are owned by "user-1".
func NewMockLibrary(playlists ...models.Playlist) *MockLibrary {
	lists := slices.Clone(playlists)
	for i := range lists {
		if lists[i].OwnerID == "" {
			lists[i].OwnerID = "user-1"
		}
	}
	return &MockLibrary{
		User:    &models.User{ID: "user-1", DisplayName: "Test User"},
		Lists:   lists,
		Tracks:  make(map[string][]models.Track),
		Batches: make(map[string][][]string),
	}
}

func (m *MockLibrary) Me(ctx context.Context) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.MeErr != nil {
		return nil, m.MeErr
	}
	return m.User, nil
}

func (m *MockLibrary) Playlists(ctx context.Context) ([]models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.PlaylistsErr != nil {
		return nil, m.PlaylistsErr
	}
	return append([]models.Playlist(nil), m.Lists...), nil
}

func (m *MockLibrary) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.TracksErr != nil {
		return nil, m.TracksErr
	}
	return m.tracksOf(playlistID)
}

func (m *MockLibrary) LatestTrack(ctx context.Context, playlistID string) (*models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.TracksErr != nil {
		return nil, m.TracksErr
	}
	tracks, err := m.tracksOf(playlistID)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: playlist %s is empty", shared.ErrTrackNotFound, playlistID)
	}
	return &tracks[0], nil
}

// tracksOf returns the seeded tracks of a playlist, or the tracks added to it newest first.
func (m *MockLibrary) tracksOf(playlistID string) ([]models.Track, error) {
	if tracks, ok := m.Tracks[playlistID]; ok {
		return append([]models.Track(nil), tracks...), nil
	}
	batches, ok := m.Batches[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}

	var tracks []models.Track
	for _, batch := range batches {
		for _, uri := range batch {
			id := strings.TrimPrefix(uri, "spotify:track:")
			tracks = append([]models.Track{{ID: id, URI: uri, Title: id}}, tracks...)
		}
	}
	return tracks, nil
}

func (m *MockLibrary) CreatePlaylist(ctx context.Context, userID string, playlist services.NewPlaylist) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}

	m.Created = append(m.Created, playlist)
	id := fmt.Sprintf("created-%d", len(m.Created))
	pl := models.Playlist{
		ID:          id,
		Name:        playlist.Name,
		Description: playlist.Description,
		Public:      playlist.Public,
		OwnerID:     userID,
		URL:         "https://open.spotify.com/playlist/" + id,
	}
	m.Lists = append(m.Lists, pl)
	m.Batches[id] = nil
	return &pl, nil
}

func (m *MockLibrary) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++

	calls := 1
	for _, batches := range m.Batches {
		calls += len(batches)
	}
	if m.AddErr != nil && (m.FailAddAt == 0 || m.FailAddAt == calls) {
		return m.AddErr
	}
	if len(uris) > services.MaxBatchSize {
		return fmt.Errorf("%w: %d tracks in one batch", shared.ErrInvalidInput, len(uris))
	}
	m.Batches[playlistID] = append(m.Batches[playlistID], append([]string(nil), uris...))
	return nil
}

func (m *MockLibrary) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.UnfollowErr != nil {
		return m.UnfollowErr
	}
	m.Unfollows = append(m.Unfollows, playlistID)
	return nil
}

// Submitted returns every URI added to a playlist, in submission order.
func (m *MockLibrary) Submitted(playlistID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var uris []string
	for _, batch := range m.Batches[playlistID] {
		uris = append(uris, batch...)
	}
	return uris
}

// NewTracks returns n tracks ordered newest addition first, one hour apart, ending at newest.
// Track i has id "t{i}" and uri "spotify:track:t{i}".
func NewTracks(n int, newest time.Time) []models.Track {
	tracks := make([]models.Track, n)
	for i := range n {
		id := fmt.Sprintf("t%d", i)
		tracks[i] = models.Track{
			ID:      id,
			URI:     "spotify:track:" + id,
			Title:   "Track " + id,
			Artists: []string{"Artist"},
			Album:   "Album",
			AddedAt: newest.Add(-time.Duration(i) * time.Hour),
		}
	}
	return tracks
}

// MustOpenStore returns a migrated in-memory database closed at the end of the test.
func MustOpenStore(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
