package delivery

import "time"

// StoreTTL is how long the offline-message-store service retains an
// undelivered frame before it expires (spec.md §4.5 default).
const StoreTTL = 14 * 24 * time.Hour

// Timeout defaults per strategy tier (spec.md §4.5).
const (
	DirectAckTimeout = 3 * time.Second
	RelayAckTimeout  = 5 * time.Second
)

// Frame is the already-encrypted, wire-ready unit the Delivery Engine
// moves between strategies. Ciphertext is opaque to this package — it was
// produced by session.Manager.Encrypt (or session.GroupSenderKey.Seal for
// group messages) before reaching here.
type Frame struct {
	MessageID      string
	SenderPeerID   string
	RecipientPeerID string
	Ciphertext     []byte
	Signature      []byte
	Timestamp      time.Time
}
