package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveSyncState persists the local device's authoritative CRDT snapshot
// for the Sync Core (spec.md §4.7). There is exactly one row: each device
// has one shared-state replica, not one per peer.
func (s *Store) SaveSyncState(blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO sync_state (id, blob, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		blob, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

// LoadSyncState returns the last-saved CRDT snapshot, or ErrNotFound if
// none has been saved yet.
func (s *Store) LoadSyncState() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob []byte
	err := s.db.QueryRow(`SELECT blob FROM sync_state WHERE id = 1`).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return blob, nil
}
