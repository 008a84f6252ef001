package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveSession persists an opaque, already-encrypted session snapshot for a
// peer. The blob's contents are meaningless to Storage; session package
// owns encryption and serialization (spec.md §4.1, §4.3).
func (s *Store) SaveSession(peerID string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO sessions (peer_id, blob, updated_at) VALUES (?,?,?)
		ON CONFLICT(peer_id) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		peerID, blob, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

// LoadSession returns the last-saved opaque session blob for a peer.
func (s *Store) LoadSession(peerID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob []byte
	err := s.db.QueryRow(`SELECT blob FROM sessions WHERE peer_id = ?`, peerID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return blob, nil
}
