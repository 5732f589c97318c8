// Package repositories implements SQLite persistence for the local state of the playlist manager.
//
// All state lives in the single kv_store table as JSON values, one fixed key per slot.
// Each repository owns its keys:
//   - [SessionRepository] : session, refresh_token and user
//   - [CheckpointRepository] : checkpoint, discarded once stale
//   - [HistoryRepository] : history, newest first and capped at [MaxHistory]
//
// [JSONSlot] implements [models.Slot] on top of [KVStore] and is shared by every repository.
// Empty slots load as (nil, nil); lookups of a missing history entry return [shared.ErrNotFound].
package repositories
