package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// InsertMessage inserts a message unique by ID; a duplicate insert is a
// no-op (idempotent), matching spec.md §4.1 and testable property 4. The
// owning conversation's last-activity timestamp is updated.
func (s *Store) InsertMessage(m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := logrus.WithFields(logrus.Fields{"function": "InsertMessage", "message_id": m.ID})

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	defer tx.Rollback()

	seq, err := nextSequence(tx, m.ConversationID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	// The conversation row must exist before the message row references it.
	if _, err := tx.Exec(`INSERT OR IGNORE INTO conversations (conversation_id, kind, last_activity)
		VALUES (?, 'direct', ?)`, m.ConversationID, m.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	res, err := tx.Exec(`INSERT OR IGNORE INTO messages
		(message_id, conversation_id, sender_peer_id, recipient_id, content_type,
		 plaintext, ciphertext, created_at, sent_at, received_at, read_at,
		 status, delivery_path, edit_of, sequence)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.ConversationID, m.SenderPeerID, m.RecipientID, string(m.ContentType),
		m.Plaintext, m.Ciphertext, unixOrZero(m.CreatedAt), unixOrZero(m.SentAt),
		unixOrZero(m.ReceivedAt), unixOrZero(m.ReadAt), string(m.Status),
		string(m.DeliveryPath), nullableString(m.EditOf), seq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		logger.Debug("duplicate message insert ignored")
		return tx.Commit()
	}

	// messages_fts is contentless, so its columns read back as NULL; it is
	// keyed by the messages rowid instead.
	rowID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	if _, err := tx.Exec(`INSERT INTO messages_fts (rowid, message_id, plaintext) VALUES (?, ?, ?)`,
		rowID, m.ID, m.Plaintext); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	if _, err := tx.Exec(`INSERT INTO conversations (conversation_id, kind, last_activity)
		VALUES (?, 'direct', ?)
		ON CONFLICT(conversation_id) DO UPDATE SET last_activity = excluded.last_activity`,
		m.ConversationID, m.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	logger.Info("message inserted")
	return nil
}

// GetMessages returns messages for a conversation, most-recent-first,
// limit capped at MaxGetMessagesLimit per spec.md §4.1.
func (s *Store) GetMessages(conversationID string, limit, offset int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > MaxGetMessagesLimit {
		limit = MaxGetMessagesLimit
	}

	rows, err := s.db.Query(`SELECT message_id, conversation_id, sender_peer_id, recipient_id,
		content_type, plaintext, ciphertext, created_at, sent_at, received_at, read_at,
		status, delivery_path, edit_of
		FROM messages WHERE conversation_id = ?
		ORDER BY sequence DESC LIMIT ? OFFSET ?`, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMessageStatus applies a monotone status transition, silently
// rejecting downgrades per spec.md §4.1 and testable property 2.
func (s *Store) UpdateMessageStatus(id string, newStatus MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	defer tx.Rollback()

	var current string
	if err := tx.QueryRow(`SELECT status FROM messages WHERE message_id = ?`, id).Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	if statusRank[newStatus] < statusRank[MessageStatus(current)] {
		return tx.Commit() // silent no-op downgrade rejection
	}

	now := time.Now().Unix()
	updates := []string{"status = ?"}
	args := []any{string(newStatus)}
	switch newStatus {
	case StatusSent:
		updates = append(updates, "sent_at = ?")
		args = append(args, now)
	case StatusDelivered:
		updates = append(updates, "received_at = ?")
		args = append(args, now)
	case StatusRead:
		updates = append(updates, "read_at = ?")
		args = append(args, now)
	}
	args = append(args, id)

	query := "UPDATE messages SET " + joinSet(updates) + " WHERE message_id = ?"
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

// SearchMessages performs full-text search over plaintext content, ranked
// by recency × match score, per spec.md §4.1 and testable property 7.
func (s *Store) SearchMessages(query string, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > MaxGetMessagesLimit {
		limit = MaxGetMessagesLimit
	}

	rows, err := s.db.Query(`SELECT m.message_id, m.conversation_id, m.sender_peer_id, m.recipient_id,
		m.content_type, m.plaintext, m.ciphertext, m.created_at, m.sent_at, m.received_at, m.read_at,
		m.status, m.delivery_path, m.edit_of
		FROM messages_fts f
		JOIN messages m ON m.rowid = f.rowid
		WHERE messages_fts MATCH ?
		ORDER BY bm25(messages_fts) * (1.0 / (1.0 + (strftime('%s','now') - m.created_at)))
		LIMIT ?`, ftsQuery(query), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(rows *sql.Rows) (*Message, error) {
	var m Message
	var created, sent, received, read int64
	var contentType, status, path string
	var editOf sql.NullString
	if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderPeerID, &m.RecipientID,
		&contentType, &m.Plaintext, &m.Ciphertext, &created, &sent, &received, &read,
		&status, &path, &editOf); err != nil {
		return nil, err
	}
	m.ContentType = ContentType(contentType)
	m.Status = MessageStatus(status)
	m.DeliveryPath = DeliveryPath(path)
	m.CreatedAt = timeOrZero(created)
	m.SentAt = timeOrZero(sent)
	m.ReceivedAt = timeOrZero(received)
	m.ReadAt = timeOrZero(read)
	if editOf.Valid {
		m.EditOf = editOf.String
	}
	return &m, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(u int64) time.Time {
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0).UTC()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func joinSet(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += ", " + c
	}
	return out
}

// ftsQuery wraps a raw query term in double quotes so sqlite's fts5 treats
// it as a single phrase rather than parsing operators out of user input.
func ftsQuery(q string) string {
	return `"` + escapeFTS(q) + `"`
}

func escapeFTS(q string) string {
	out := make([]byte, 0, len(q))
	for i := 0; i < len(q); i++ {
		if q[i] == '"' {
			out = append(out, '"')
		}
		out = append(out, q[i])
	}
	return string(out)
}
