package tasks

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
)

// DerivedMarker ends the names generated by [DerivedName]. Names from older releases lack it.
const DerivedMarker = "✨"

var derivedNamePattern = regexp.MustCompile(`^New - (.+) - (\d{4}-\d{2}-\d{2})(?: ` + DerivedMarker + `)?$`)

// DerivedName returns the default name of a playlist copied from source on day at.
func DerivedName(source string, at time.Time) string {
	return fmt.Sprintf("New - %s - %s %s", source, at.Format(time.DateOnly), DerivedMarker)
}

// Description returns the description of a playlist copied from source.
func Description(source string) string {
	return "Created from " + source
}

// ParseDerivedName extracts the parent name and date encoded by a derived name.
func ParseDerivedName(name string) (parent string, date time.Time, ok bool) {
	m := derivedNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", time.Time{}, false
	}
	date, err := time.Parse(time.DateOnly, m[2])
	if err != nil {
		return "", time.Time{}, false
	}
	return m[1], date, true
}

// Detection is a playlist whose name shows it was derived from another playlist in the same library.
type Detection struct {
	Child       models.Playlist
	Parent      models.Playlist
	ParentName  string
	DerivedDate time.Time
}

// OwnedBy returns the playlists owned by userID, keeping their order.
//
// The user's library also lists followed playlists, which can never be derived copies of the user's own.
func OwnedBy(playlists []models.Playlist, userID string) []models.Playlist {
	owned := make([]models.Playlist, 0, len(playlists))
	for _, p := range playlists {
		if p.OwnerID == userID {
			owned = append(owned, p)
		}
	}
	return owned
}

// OwnedPlaylists fetches the user's playlists and drops the ones owned by someone else.
func (e *PlaylistEngine) OwnedPlaylists(ctx context.Context, progress chan<- ProgressUpdate) ([]models.Playlist, error) {
	user, err := e.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	playlists, err := e.Playlists(ctx, progress)
	if err != nil {
		return nil, err
	}
	return OwnedBy(playlists, user.ID), nil
}

// DetectOrigins finds derived playlists whose parent exists in playlists.
//
// Callers pass the owned playlists from [PlaylistEngine.OwnedPlaylists].
// A name following the derived-name template is only reported when a different playlist carries the exact
// parent name.
func DetectOrigins(playlists []models.Playlist) []Detection {
	byName := make(map[string][]models.Playlist, len(playlists))
	for _, p := range playlists {
		byName[p.Name] = append(byName[p.Name], p)
	}

	var detections []Detection
	for _, child := range playlists {
		parentName, date, ok := ParseDerivedName(child.Name)
		if !ok {
			continue
		}
		for _, parent := range byName[parentName] {
			if parent.ID == child.ID {
				continue
			}
			detections = append(detections, Detection{
				Child:       child,
				Parent:      parent,
				ParentName:  parentName,
				DerivedDate: date,
			})
			break
		}
	}
	return detections
}

// ReconcileResult counts the history entries changed by [PlaylistEngine.ReconcileHistory].
type ReconcileResult struct {
	Added    int
	Enriched int
}

// ReconcileHistory makes sure every detection has a history entry carrying an anchor track.
//
// Missing entries are created from the child's current newest track. Entries without an anchor are enriched.
func (e *PlaylistEngine) ReconcileHistory(ctx context.Context, detections []Detection, progress chan<- ProgressUpdate) (ReconcileResult, error) {
	var result ReconcileResult
	for i, d := range detections {
		e.sendProgress(progress, reconcileUpdate(i+1, len(detections), d))

		entry, err := e.history.Get(ctx, d.Child.ID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			last, err := e.latestItem(ctx, d.Child.ID)
			if err != nil {
				return result, err
			}
			created := models.HistoryEntry{
				ID:         d.Child.ID,
				Name:       d.Child.Name,
				URL:        d.Child.URL,
				TrackCount: d.Child.TrackCount,
				CreatedAt:  d.DerivedDate,
				Source:     models.SourceRef{ID: d.Parent.ID, Name: d.ParentName},
				Public:     d.Child.Public,
				LastItem:   last,
			}
			if err := e.history.Add(ctx, created); err != nil {
				return result, fmt.Errorf("failed to add history entry: %w", err)
			}
			result.Added++
		case err != nil:
			return result, fmt.Errorf("failed to read history: %w", err)
		case !entry.HasAnchor():
			last, err := e.latestItem(ctx, d.Child.ID)
			if err != nil {
				return result, err
			}
			if last == nil {
				continue
			}
			entry.LastItem = last
			if entry.Source.ID == "" {
				entry.Source = models.SourceRef{ID: d.Parent.ID, Name: d.ParentName}
			}
			if err := e.history.Update(ctx, *entry); err != nil {
				return result, fmt.Errorf("failed to update history entry: %w", err)
			}
			result.Enriched++
		}
	}

	e.logger.Info("reconciled history", "detections", len(detections), "added", result.Added, "enriched", result.Enriched)
	return result, nil
}

// latestItem returns the newest track of a playlist, or nil when it is empty.
func (e *PlaylistEngine) latestItem(ctx context.Context, playlistID string) (*models.LastItem, error) {
	t, err := e.library.LatestTrack(ctx, playlistID)
	if errors.Is(err, shared.ErrTrackNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return models.NewLastItem(*t), nil
}

// Preselection is a parent playlist loaded with the tracks added since a child was derived from it.
type Preselection struct {
	Parent      models.Playlist
	Tracks      []models.Track // Newest addition first
	Selection   Selection      // Positions 0 through AnchorIndex-1
	AnchorIndex int            // Position of the anchor track, -1 when absent
	AnchorFound bool
}

// Selected returns the preselected tracks, newest first.
func (p *Preselection) Selected() []models.Track {
	return Materialize(p.Tracks, p.Selection)
}

// LocateAndPreselect loads the playlist named parentName and selects every track newer than anchorID.
//
// When the anchor is not in the playlist nothing is selected and AnchorFound is false.
func (e *PlaylistEngine) LocateAndPreselect(ctx context.Context, parentName, anchorID string, progress chan<- ProgressUpdate) (*Preselection, error) {
	playlists, err := e.Playlists(ctx, progress)
	if err != nil {
		return nil, err
	}

	var parent *models.Playlist
	for i := range playlists {
		if playlists[i].Name == parentName {
			parent = &playlists[i]
			break
		}
	}
	if parent == nil {
		return nil, fmt.Errorf("%w: %q", shared.ErrPlaylistNotFound, parentName)
	}

	tracks, err := e.Tracks(ctx, *parent, progress)
	if err != nil {
		return nil, err
	}

	selection, k := SelectSince(tracks, anchorID)
	p := &Preselection{
		Parent:      *parent,
		Tracks:      tracks,
		Selection:   selection,
		AnchorIndex: k,
		AnchorFound: k >= 0,
	}
	e.sendProgress(progress, locateUpdate(p))
	return p, nil
}

// LocateFromHistory runs [PlaylistEngine.LocateAndPreselect] for a history entry.
//
// Entries recorded without an anchor id are repaired once from the destination's current newest track.
// The parent is the entry's source, or the name encoded in a derived playlist name.
func (e *PlaylistEngine) LocateFromHistory(ctx context.Context, entry models.HistoryEntry, progress chan<- ProgressUpdate) (*Preselection, error) {
	if !entry.HasAnchor() {
		last, err := e.latestItem(ctx, entry.ID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			entry.LastItem = last
			if err := e.history.Update(ctx, entry); err != nil && !errors.Is(err, shared.ErrNotFound) {
				return nil, fmt.Errorf("failed to update history entry: %w", err)
			}
			e.logger.Info("repaired missing anchor", "playlist", entry.ID, "track", last.ID)
		}
	}

	parentName := entry.Source.Name
	if parentName == "" {
		name, _, ok := ParseDerivedName(entry.Name)
		if !ok {
			return nil, fmt.Errorf("%w: source of %q is unknown", shared.ErrPlaylistNotFound, entry.Name)
		}
		parentName = name
	}

	anchorID := ""
	if entry.LastItem != nil {
		anchorID = entry.LastItem.ID
	}
	return e.LocateAndPreselect(ctx, parentName, anchorID, progress)
}
