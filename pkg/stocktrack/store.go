package stocktrack

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
)

// KVStore is the persistence adapter: a flat key-value store of JSON blobs.
type KVStore interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type sqliteStore struct {
	db *sql.DB
}

func newSQLiteStore(db *sql.DB) *sqliteStore {
	return &sqliteStore{db: db}
}

func (s *sqliteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (s *sqliteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, string(value))
	return err
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv_store WHERE key = ?", key)
	return err
}

// keyedMutex serializes load-modify-save cycles per storage key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*sync.Mutex{}}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// loadJSON decodes the value under key into dst. A missing key leaves dst untouched.
func (c *Core) loadJSON(ctx context.Context, key string, dst any) error {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Error("storage read failed", "key", key, "err", err)
		return WrapError(ErrCodeStorage, "read "+key, err)
	}
	if !ok || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Error("storage decode failed", "key", key, "err", err)
		return WrapError(ErrCodeStorage, "decode "+key, err)
	}
	return nil
}

func (c *Core) saveJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return WrapError(ErrCodeInternal, "encode "+key, err)
	}
	if err := c.store.Set(ctx, key, data); err != nil {
		c.logger.Error("storage write failed", "key", key, "err", err)
		return WrapError(ErrCodeStorage, "write "+key, err)
	}
	return nil
}

func (c *Core) deleteKey(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Error("storage delete failed", "key", key, "err", err)
		return WrapError(ErrCodeStorage, "delete "+key, err)
	}
	return nil
}
