// package models defines the data model for the playlist manager
package models

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Slot is a single persisted value addressed by a fixed key.
// Implementations return (nil, nil) from Load when the slot is empty.
type Slot[T any] interface {
	Load(ctx context.Context) (*T, error)
	Save(ctx context.Context, value *T) error
	Clear(ctx context.Context) error
}

// Session is an issued access token.
//
// The refresh token is persisted but never used: an expired session requires a new login.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Valid reports whether the session can still be used at now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.AccessToken != "" && now.Before(s.ExpiresAt)
}

// User is the authenticated Spotify account.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	Product     string `json:"product,omitempty"`
}

// Name returns the display name, falling back to the id.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID
}

// Playlist is a playlist owned or followed by the user.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"trackCount"`
	Public      bool   `json:"public"`
	OwnerID     string `json:"ownerId,omitempty"`
	URL         string `json:"url,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// Track is a playlist item. Tracks are immutable once fetched.
type Track struct {
	ID        string    `json:"id"`
	URI       string    `json:"uri"`
	Title     string    `json:"title"`
	Artists   []string  `json:"artists"`
	Album     string    `json:"album"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
}

// Artist joins the track's artist names.
func (t Track) Artist() string {
	return strings.Join(t.Artists, ", ")
}

// String implements [fmt.Stringer].
func (t Track) String() string {
	if len(t.Artists) == 0 {
		return t.Title
	}
	return fmt.Sprintf("%s - %s", t.Artist(), t.Title)
}

// SourceRef identifies the playlist a copy was made from.
type SourceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CheckpointStatus is the lifecycle stage recorded in a [Checkpoint].
type CheckpointStatus string

const (
	CheckpointCreating   CheckpointStatus = "creating"
	CheckpointInProgress CheckpointStatus = "in_progress"
	CheckpointCompleted  CheckpointStatus = "completed"
)

// Checkpoint records the progress of a copy operation after every persisted step.
//
// ItemsWritten never decreases and never exceeds TotalItems.
type Checkpoint struct {
	OperationID     string           `json:"operationId"`
	Timestamp       time.Time        `json:"timestamp"`
	DestinationName string           `json:"destinationName"`
	Public          bool             `json:"public"`
	Source          SourceRef        `json:"source"`
	TotalItems      int              `json:"totalItems"`
	ItemsWritten    int              `json:"itemsWritten"`
	Status          CheckpointStatus `json:"status"`
	DestinationID   string           `json:"destinationId,omitempty"`
	DestinationURL  string           `json:"destinationUrl,omitempty"`
}

// Interrupted reports whether the checkpoint describes a copy that did not finish.
func (c *Checkpoint) Interrupted() bool {
	return c != nil && c.Status != CheckpointCompleted
}

// Stale reports whether the checkpoint is at least maxAge old at now.
func (c *Checkpoint) Stale(now time.Time, maxAge time.Duration) bool {
	return !now.Before(c.Timestamp.Add(maxAge))
}

// LastItem is the newest track of a created playlist at the time it was created.
type LastItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// NewLastItem captures t as a [LastItem].
func NewLastItem(t Track) *LastItem {
	return &LastItem{
		ID:        t.ID,
		Title:     t.Title,
		Artist:    t.Artist(),
		Album:     t.Album,
		Thumbnail: t.Thumbnail,
	}
}

// HistoryEntry is a completed copy.
type HistoryEntry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	TrackCount int       `json:"trackCount"`
	CreatedAt  time.Time `json:"createdAt"`
	Source     SourceRef `json:"source"`
	Public     bool      `json:"public"`
	LastItem   *LastItem `json:"lastItem,omitempty"`
}

// Validate checks the fields required to identify the entry.
func (h *HistoryEntry) Validate() error {
	if h.ID == "" {
		return fmt.Errorf("history entry id is required")
	}
	if h.Name == "" {
		return fmt.Errorf("history entry name is required")
	}
	return nil
}

// HasAnchor reports whether the entry can be located in its source playlist.
func (h *HistoryEntry) HasAnchor() bool {
	return h.LastItem != nil && h.LastItem.ID != ""
}
