// package repositories provides persistence layer implementations for the local state slots.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/desertthunder/spm/internal/shared"
)

// Keys of the kv_store slots.
const (
	KeySession      = "session"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
	KeyCheckpoint   = "checkpoint"
	KeyHistory      = "history"
)

// KVStore reads and writes raw values in the kv_store table.
type KVStore struct {
	db *sql.DB
}

// NewKVStore creates a new [KVStore] with the given database connection
func NewKVStore(db *sql.DB) *KVStore {
	return &KVStore{db: db}
}

// Get returns the value stored under key, or [shared.ErrNotFound].
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", key, err)
	}
	return []byte(value), nil
}

// Put inserts or replaces the value stored under key.
func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes every given key in one transaction. Missing keys are ignored.
func (s *KVStore) Delete(ctx context.Context, keys ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, "DELETE FROM kv_store WHERE key = ?", key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// DeleteIf removes key only when the JSON field at path equals value, and reports whether a row was removed.
func (s *KVStore) DeleteIf(ctx context.Context, key, path, value string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM kv_store WHERE key = ? AND json_extract(value, ?) = ?", key, path, value)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", key, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

// Keys lists the populated slots.
func (s *KVStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM kv_store ORDER BY key ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return keys, nil
}

// JSONSlot implements [models.Slot] by storing T as JSON under a fixed key.
type JSONSlot[T any] struct {
	store *KVStore
	key   string
}

// NewJSONSlot creates a [JSONSlot] for key.
func NewJSONSlot[T any](store *KVStore, key string) *JSONSlot[T] {
	return &JSONSlot[T]{store: store, key: key}
}

// Load decodes the stored value. An empty slot returns (nil, nil).
func (s *JSONSlot[T]) Load(ctx context.Context) (*T, error) {
	data, err := s.store.Get(ctx, s.key)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrDecode, s.key, err)
	}
	return &value, nil
}

// Save encodes value into the slot. A nil value clears it.
func (s *JSONSlot[T]) Save(ctx context.Context, value *T) error {
	if value == nil {
		return s.Clear(ctx)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.key, err)
	}
	return s.store.Put(ctx, s.key, data)
}

// Clear empties the slot.
func (s *JSONSlot[T]) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, s.key)
}
