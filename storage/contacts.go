package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// UpsertContact inserts or updates a contact. Usernames are stored
// lowercase and compared case-insensitively per spec.md §4.1.
func (s *Store) UpsertContact(c *Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(c.Username)
	_, err := s.db.Exec(`INSERT INTO contacts
		(peer_id, username, public_key, display_name, prekey_bundle, bundle_cached_at, last_online)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(peer_id) DO UPDATE SET
			username = excluded.username,
			public_key = excluded.public_key,
			display_name = excluded.display_name,
			prekey_bundle = excluded.prekey_bundle,
			bundle_cached_at = excluded.bundle_cached_at,
			last_online = excluded.last_online`,
		c.PeerID, username, c.PublicKey[:], c.DisplayName, c.PrekeyBundle,
		unixOrZero(c.BundleCachedAt), unixOrZero(c.LastOnline))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

// ListContacts returns every known contact.
func (s *Store) ListContacts() ([]*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT peer_id, username, public_key, display_name,
		prekey_bundle, bundle_cached_at, last_online FROM contacts ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	defer rows.Close()

	var out []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetContactByUsername looks up a contact by its case-insensitive username.
func (s *Store) GetContactByUsername(username string) (*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT peer_id, username, public_key, display_name,
		prekey_bundle, bundle_cached_at, last_online FROM contacts WHERE username = ?`,
		strings.ToLower(username))
	return scanContactRow(row)
}

// GetContactByPeer looks up a contact by peer identifier.
func (s *Store) GetContactByPeer(peerID string) (*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT peer_id, username, public_key, display_name,
		prekey_bundle, bundle_cached_at, last_online FROM contacts WHERE peer_id = ?`, peerID)
	return scanContactRow(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(s rowScanner) (*Contact, error) {
	return scanContactRow(s)
}

func scanContactRow(row rowScanner) (*Contact, error) {
	var c Contact
	var pubKey []byte
	var cachedAt, lastOnline int64
	if err := row.Scan(&c.PeerID, &c.Username, &pubKey, &c.DisplayName,
		&c.PrekeyBundle, &cachedAt, &lastOnline); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	copy(c.PublicKey[:], pubKey)
	c.BundleCachedAt = timeOrZero(cachedAt)
	c.LastOnline = timeOrZero(lastOnline)
	return &c, nil
}

// ListConversations returns every conversation, most-recently-active first.
func (s *Store) ListConversations() ([]*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT conversation_id, kind, participants, admins,
		unread_count, last_activity FROM conversations ORDER BY last_activity DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		var conv Conversation
		var kind, participants, admins string
		var lastActivity int64
		if err := rows.Scan(&conv.ID, &kind, &participants, &admins, &conv.UnreadCount, &lastActivity); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		conv.Kind = ConversationKind(kind)
		conv.Participants = splitCSV(participants)
		conv.Admins = splitCSV(admins)
		conv.LastActivity = timeOrZero(lastActivity)
		out = append(out, &conv)
	}
	return out, rows.Err()
}

// UpsertConversation inserts or updates a conversation record. Used by
// create_group and by a newly invited member's first sender-key import,
// since the direct-conversation path (InsertMessage) only ever writes
// kind='direct' rows.
func (s *Store) UpsertConversation(conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	participants, err := json.Marshal(conv.Participants)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	admins, err := json.Marshal(conv.Admins)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	_, err = s.db.Exec(`INSERT INTO conversations (conversation_id, kind, participants, admins, last_activity)
		VALUES (?,?,?,?,?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			participants = excluded.participants,
			admins = excluded.admins,
			last_activity = excluded.last_activity`,
		conv.ID, string(conv.Kind), string(participants), string(admins), unixOrZero(conv.LastActivity))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

// GetConversation looks up a single conversation by ID.
func (s *Store) GetConversation(conversationID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT conversation_id, kind, participants, admins,
		unread_count, last_activity FROM conversations WHERE conversation_id = ?`, conversationID)

	var conv Conversation
	var kind, participants, admins string
	var lastActivity int64
	if err := row.Scan(&conv.ID, &kind, &participants, &admins, &conv.UnreadCount, &lastActivity); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	conv.Kind = ConversationKind(kind)
	conv.Participants = splitCSV(participants)
	conv.Admins = splitCSV(admins)
	conv.LastActivity = timeOrZero(lastActivity)
	return &conv, nil
}

// MarkConversationRead zeroes the unread counter for a conversation.
func (s *Store) MarkConversationRead(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`UPDATE conversations SET unread_count = 0 WHERE conversation_id = ?`,
		conversationID); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

func splitCSV(v string) []string {
	v = strings.Trim(v, "[]")
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
