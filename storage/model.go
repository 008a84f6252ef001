package storage

import "time"

// MessageStatus is the monotone lifecycle state of a Message.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// statusRank orders statuses for the monotone-transition check in
// UpdateMessageStatus. Failed is a terminal state reachable from any
// non-terminal status but never left once entered, mirroring spec.md's
// "failed as an alternative terminal" invariant.
var statusRank = map[MessageStatus]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
	StatusFailed:    4,
}

// ContentType enumerates Message.ContentType values.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentVideo    ContentType = "video"
	ContentAudio    ContentType = "audio"
	ContentFile     ContentType = "file"
	ContentReaction ContentType = "reaction"
	ContentEdit     ContentType = "edit"
	ContentDelete   ContentType = "delete"

	// ContentCallSignal carries offer/answer/candidate/hangup/reject call
	// signaling (SPEC_FULL.md §4.6) as an ordinary Message so it rides the
	// Delivery Engine instead of a raw transport packet. Never persisted
	// past delivery; see messaging.go's handling of this content type.
	ContentCallSignal ContentType = "call_signal"

	// ContentTypingIndicator is an ephemeral, non-persisted signal
	// (SPEC_FULL.md §9's typing-indicator supplement).
	ContentTypingIndicator ContentType = "typing"
)

// DeliveryPath tags which of the three delivery strategies carried a
// message, recorded for operational metrics per spec.md §4.5.
type DeliveryPath string

const (
	PathP2P   DeliveryPath = "p2p"
	PathRelay DeliveryPath = "relay"
	PathStore DeliveryPath = "store"
)

// ConversationKind distinguishes a direct 1-to-1 channel from a group.
type ConversationKind string

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
)

// Message is the central record of the data model (spec.md §3).
type Message struct {
	ID             string
	ConversationID string
	SenderPeerID   string
	RecipientID    string
	ContentType    ContentType
	Plaintext      string
	Ciphertext     []byte
	CreatedAt      time.Time
	SentAt         time.Time
	ReceivedAt     time.Time
	ReadAt         time.Time
	Status         MessageStatus
	DeliveryPath   DeliveryPath
	EditOf         string
}

// Contact associates a local username with a remote identity.
type Contact struct {
	Username       string
	PeerID         string
	PublicKey      [32]byte
	DisplayName    string
	PrekeyBundle   []byte
	BundleCachedAt time.Time
	LastOnline     time.Time
}

// Conversation is a direct channel or a named group.
type Conversation struct {
	ID           string
	Kind         ConversationKind
	Participants []string
	Admins       []string
	UnreadCount  int
	LastActivity time.Time
}
