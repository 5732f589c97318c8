package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
)

// DefaultStaleAfter is the age at which a checkpoint is discarded unread.
const DefaultStaleAfter = 24 * time.Hour

// CheckpointRepository implements [models.Slot] for the single global [models.Checkpoint].
type CheckpointRepository struct {
	slot       *JSONSlot[models.Checkpoint]
	store      *KVStore
	staleAfter time.Duration
	now        func() time.Time
}

// NewCheckpointRepository creates a new [CheckpointRepository]. A non-positive staleAfter uses [DefaultStaleAfter].
func NewCheckpointRepository(store *KVStore, staleAfter time.Duration) *CheckpointRepository {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &CheckpointRepository{
		slot:       NewJSONSlot[models.Checkpoint](store, KeyCheckpoint),
		store:      store,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// SetClock replaces the time source used for staleness checks.
func (r *CheckpointRepository) SetClock(now func() time.Time) {
	r.now = now
}

// Load returns the current checkpoint, or nil when there is none.
//
// A stale checkpoint is cleared and never returned.
func (r *CheckpointRepository) Load(ctx context.Context) (*models.Checkpoint, error) {
	cp, err := r.slot.Load(ctx)
	if err != nil || cp == nil {
		return nil, err
	}

	if cp.Stale(r.now(), r.staleAfter) {
		if err := r.slot.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return cp, nil
}

// Save replaces the checkpoint.
func (r *CheckpointRepository) Save(ctx context.Context, cp *models.Checkpoint) error {
	if cp != nil && (cp.ItemsWritten < 0 || cp.ItemsWritten > cp.TotalItems) {
		return fmt.Errorf("%w: items written %d out of range 0..%d", shared.ErrInvalidInput, cp.ItemsWritten, cp.TotalItems)
	}
	return r.slot.Save(ctx, cp)
}

// Clear removes the checkpoint.
func (r *CheckpointRepository) Clear(ctx context.Context) error {
	return r.slot.Clear(ctx)
}

// ClearIf removes the checkpoint only if it belongs to operationID.
//
// A checkpoint written by a newer operation survives a delayed clear of an older one.
func (r *CheckpointRepository) ClearIf(ctx context.Context, operationID string) (bool, error) {
	return r.store.DeleteIf(ctx, KeyCheckpoint, "$.operationId", operationID)
}
