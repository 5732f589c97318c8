package repositories

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
)

// MaxHistory is the number of entries kept.
const MaxHistory = 50

// HistoryRepository persists completed copies as a bounded list ordered newest first.
type HistoryRepository struct {
	slot *JSONSlot[[]models.HistoryEntry]
}

// NewHistoryRepository creates a new [HistoryRepository] on store.
func NewHistoryRepository(store *KVStore) *HistoryRepository {
	return &HistoryRepository{slot: NewJSONSlot[[]models.HistoryEntry](store, KeyHistory)}
}

// List returns all entries, newest first.
func (r *HistoryRepository) List(ctx context.Context) ([]models.HistoryEntry, error) {
	entries, err := r.slot.Load(ctx)
	if err != nil || entries == nil {
		return nil, err
	}
	return *entries, nil
}

// Get returns the entry for a playlist id.
func (r *HistoryRepository) Get(ctx context.Context, id string) (*models.HistoryEntry, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	for i := range entries {
		if entries[i].ID == id {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("%w: history entry %s", shared.ErrNotFound, id)
}

// Add inserts entry in CreatedAt order, replacing any entry with the same id.
// The oldest entries beyond [MaxHistory] are dropped.
func (r *HistoryRepository) Add(ctx context.Context, entry models.HistoryEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	entries, err := r.List(ctx)
	if err != nil {
		return err
	}

	entries = slices.DeleteFunc(entries, func(e models.HistoryEntry) bool { return e.ID == entry.ID })

	pos := len(entries)
	for i, e := range entries {
		if !entry.CreatedAt.Before(e.CreatedAt) {
			pos = i
			break
		}
	}
	entries = slices.Insert(entries, pos, entry)

	if len(entries) > MaxHistory {
		entries = entries[:MaxHistory]
	}
	return r.slot.Save(ctx, &entries)
}

// Update replaces the stored entry with the same id, keeping its position.
func (r *HistoryRepository) Update(ctx context.Context, entry models.HistoryEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	entries, err := r.List(ctx)
	if err != nil {
		return err
	}

	i := slices.IndexFunc(entries, func(e models.HistoryEntry) bool { return e.ID == entry.ID })
	if i < 0 {
		return fmt.Errorf("%w: history entry %s", shared.ErrNotFound, entry.ID)
	}
	entries[i] = entry
	return r.slot.Save(ctx, &entries)
}

// Delete removes the entry for a playlist id.
func (r *HistoryRepository) Delete(ctx context.Context, id string) error {
	entries, err := r.List(ctx)
	if err != nil {
		return err
	}

	kept := slices.DeleteFunc(slices.Clone(entries), func(e models.HistoryEntry) bool { return e.ID == id })
	if len(kept) == len(entries) {
		return fmt.Errorf("%w: history entry %s", shared.ErrNotFound, id)
	}
	return r.slot.Save(ctx, &kept)
}

// Clear removes every entry.
func (r *HistoryRepository) Clear(ctx context.Context) error {
	return r.slot.Clear(ctx)
}
