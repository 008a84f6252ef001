package nyxcore

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/nyxtalk/nyxcore/delivery"
	"github.com/nyxtalk/nyxcore/session"
	"github.com/nyxtalk/nyxcore/storage"
	"github.com/nyxtalk/nyxcore/synccore"
	"github.com/sirupsen/logrus"
)

// conversationIDFor returns the stable direct-conversation identifier for
// a pair of peer IDs, independent of call direction.
func conversationIDFor(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return "direct:" + a + ":" + b
}

// chatEnvelope is the plaintext structure sealed under the pairwise
// session for every ordinary chat content type, carrying the content
// type and any edit/delete/reaction target alongside the body so the
// receiver can reconstruct storage.Message without guessing (spec.md
// §3's edits/deletions/reactions as separate messages referencing the
// original). Self-describing payloads that already carry their own kind
// discriminator bypass this envelope: call signaling and typing
// indicators are sealed unwrapped by sendContent, and group control
// messages go out raw via sendRaw.
type chatEnvelope struct {
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
	EditOf      string `json:"edit_of,omitempty"`
}

func encodeChatEnvelope(env chatEnvelope) (string, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("nyxcore: encode chat envelope: %w", err)
	}
	return string(data), nil
}

func decodeChatEnvelope(plaintext string) (chatEnvelope, error) {
	var env chatEnvelope
	if err := json.Unmarshal([]byte(plaintext), &env); err != nil {
		return chatEnvelope{}, fmt.Errorf("nyxcore: decode chat envelope: %w", err)
	}
	if env.ContentType == "" {
		return chatEnvelope{}, fmt.Errorf("nyxcore: chat envelope missing content type")
	}
	return env, nil
}

// sendRaw encrypts plaintext for peerID's pairwise session and hands it
// to the Delivery Engine without touching durable storage, used for
// control payloads (group key invites, group departure notices) that are
// never part of conversation history.
func (c *Client) sendRaw(ctx context.Context, peerID string, plaintext []byte) error {
	ciphertext, err := c.sessions.Encrypt(peerID, plaintext)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrCryptoError, err)
	}
	frame := delivery.Frame{
		MessageID:       uuid.NewString(),
		SenderPeerID:    c.identity.PeerID(),
		RecipientPeerID: peerID,
		Ciphertext:      ciphertext,
		Signature:       c.identity.Sign(ciphertext),
		Timestamp:       time.Now(),
	}
	return c.engine.Send(ctx, frame)
}

// sendContent builds, persists, and dispatches a single outbound message
// of the given content type, shared by SendText, SendMedia, and the call
// signaling path in calls.go. It mirrors the teacher's
// SendFriendMessage→Network.Send pipeline, generalized to peer-ID
// addressing and the three-tier Delivery Engine. editOf, when non-empty,
// is the message ID this one edits, deletes, or reacts to; it is set on
// the persisted row before the insert, not patched in afterward.
func (c *Client) sendContent(ctx context.Context, peerID string, contentType storage.ContentType, plaintext, editOf string) (*storage.Message, error) {
	wire := []byte(plaintext)
	if contentType != storage.ContentCallSignal && contentType != storage.ContentTypingIndicator {
		envelope, err := encodeChatEnvelope(chatEnvelope{ContentType: string(contentType), Body: plaintext, EditOf: editOf})
		if err != nil {
			return nil, err
		}
		wire = []byte(envelope)
	}

	ciphertext, err := c.sessions.Encrypt(peerID, wire)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrCryptoError, err)
	}

	msg := &storage.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationIDFor(c.identity.PeerID(), peerID),
		SenderPeerID:   c.identity.PeerID(),
		RecipientID:    peerID,
		ContentType:    contentType,
		Plaintext:      plaintext,
		EditOf:         editOf,
		CreatedAt:      time.Now(),
		Status:         storage.StatusPending,
	}

	// Ephemeral signaling (calls, typing) never touches durable storage,
	// only the chat-visible content types do (spec.md §3's Message model
	// is for persisted conversation history).
	if contentType != storage.ContentCallSignal && contentType != storage.ContentTypingIndicator {
		if err := c.store.InsertMessage(msg); err != nil {
			return nil, err
		}
	}

	frame := delivery.Frame{
		MessageID:       msg.ID,
		SenderPeerID:    msg.SenderPeerID,
		RecipientPeerID: msg.RecipientID,
		Ciphertext:      ciphertext,
		Signature:       c.identity.Sign(ciphertext),
		Timestamp:       msg.CreatedAt,
	}

	if err := c.engine.Send(ctx, frame); err != nil {
		return msg, err
	}
	// The Engine records the outcome (sent or delivered) in storage; read it
	// back so the returned message reflects it.
	if stored, err := c.store.GetMessages(msg.ConversationID, 50, 0); err == nil {
		for _, m := range stored {
			if m.ID == msg.ID {
				msg.Status = m.Status
				break
			}
		}
	}
	return msg, nil
}

// SendText sends a plaintext chat message to peerID, blocking until the
// Delivery Engine's chain accepts it (spec.md §4.9's send_text).
func (c *Client) SendText(ctx context.Context, peerID, text string) (*storage.Message, error) {
	return submit(ctx, c, "send_text", func(ctx context.Context) (*storage.Message, error) {
		return c.sendContent(ctx, peerID, storage.ContentText, text, "")
	})
}

// SendTextAsync is SendText's non-blocking counterpart.
func (c *Client) SendTextAsync(peerID, text string) *Future[*storage.Message] {
	return submitAsync(c, "send_text", func(ctx context.Context) (*storage.Message, error) {
		return c.sendContent(ctx, peerID, storage.ContentText, text, "")
	})
}

// SendMedia sends a message referencing out-of-band media content
// (spec.md §3's image/video/audio/file content types); the caller is
// responsible for having already uploaded or otherwise made the
// referenced blob available, nyxcore only carries the reference.
func (c *Client) SendMedia(ctx context.Context, peerID string, kind storage.ContentType, reference string) (*storage.Message, error) {
	return submit(ctx, c, "send_media", func(ctx context.Context) (*storage.Message, error) {
		return c.sendContent(ctx, peerID, kind, reference, "")
	})
}

// SendMediaAsync is SendMedia's non-blocking counterpart.
func (c *Client) SendMediaAsync(peerID string, kind storage.ContentType, reference string) *Future[*storage.Message] {
	return submitAsync(c, "send_media", func(ctx context.Context) (*storage.Message, error) {
		return c.sendContent(ctx, peerID, kind, reference, "")
	})
}

// EditMessage replaces a previously sent message's content, recorded as
// a new ContentEdit record referencing the original (spec.md §3's EditOf
// field) rather than mutating history in place.
func (c *Client) EditMessage(ctx context.Context, peerID, originalID, newText string) (*storage.Message, error) {
	return submit(ctx, c, "edit_message", func(ctx context.Context) (*storage.Message, error) {
		return c.sendContent(ctx, peerID, storage.ContentEdit, newText, originalID)
	})
}

// DeleteMessage tombstones a previously sent message for the recipient,
// sent as a ContentDelete record referencing the original.
func (c *Client) DeleteMessage(ctx context.Context, peerID, originalID string) error {
	_, err := submit(ctx, c, "delete_message", func(ctx context.Context) (*storage.Message, error) {
		return c.sendContent(ctx, peerID, storage.ContentDelete, "", originalID)
	})
	return err
}

// React sends an emoji reaction referencing an existing message.
func (c *Client) React(ctx context.Context, peerID, targetID, emoji string) error {
	_, err := submit(ctx, c, "react", func(ctx context.Context) (*storage.Message, error) {
		return c.sendContent(ctx, peerID, storage.ContentReaction, emoji, targetID)
	})
	return err
}

// GetMessages returns up to limit messages from a conversation, newest
// excluded beyond offset, per spec.md §4.9's paginated history read.
func (c *Client) GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]*storage.Message, error) {
	return submit(ctx, c, "get_messages", func(ctx context.Context) ([]*storage.Message, error) {
		return c.store.GetMessages(conversationID, limit, offset)
	})
}

// MarkRead marks an entire conversation read in local storage. No
// read-receipt signal is sent to the peer, so the sender's copies of the
// messages stay at delivered.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	_, err := submit(ctx, c, "mark_read", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.store.MarkConversationRead(conversationID)
	})
	return err
}

// SearchMessages runs a full-text search across all stored plaintext.
func (c *Client) SearchMessages(ctx context.Context, query string, limit int) ([]*storage.Message, error) {
	return submit(ctx, c, "search_messages", func(ctx context.Context) ([]*storage.Message, error) {
		return c.store.SearchMessages(query, limit)
	})
}

// ListConversations returns every known direct and group conversation.
func (c *Client) ListConversations(ctx context.Context) ([]*storage.Conversation, error) {
	return submit(ctx, c, "list_conversations", func(ctx context.Context) ([]*storage.Conversation, error) {
		return c.store.ListConversations()
	})
}

// SendSyncMessage implements synccore.Sender, routing a sync protocol
// step to a linked device through the same pairwise-encrypted delivery
// path an ordinary chat message uses (SPEC_FULL.md §4.7).
func (c *Client) SendSyncMessage(ctx context.Context, deviceID string, msg synccore.Message) error {
	blob, err := msg.Encode()
	if err != nil {
		return err
	}
	ciphertext, err := c.sessions.Encrypt(deviceID, blob)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrCryptoError, err)
	}
	frame := delivery.Frame{
		MessageID:       uuid.NewString(),
		SenderPeerID:    c.identity.PeerID(),
		RecipientPeerID: deviceID,
		Ciphertext:      ciphertext,
		Signature:       c.identity.Sign(ciphertext),
		Timestamp:       time.Now(),
	}
	return c.engine.Send(ctx, frame)
}

// syncTicker periodically drives Sync Core exchanges with every linked
// device. Nothing else starts an exchange: there is no on-demand sync
// when a linked device becomes reachable.
func (c *Client) syncTicker() {
	ticker := time.NewTicker(c.opts.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.tickerDone:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.opts.SyncInterval)
			c.sync.SyncAll(ctx)
			cancel()
		}
	}
}

// handleInboundFrame is the Network adapter's callback for every
// decrypted-at-transport, still-encrypted-at-application frame, routing
// it to chat storage, the call manager, or Sync Core depending on the
// recovered content, and always acknowledging receipt back to the
// sender (spec.md §4.5's ack protocol).
func (c *Client) handleInboundFrame(data []byte, addr net.Addr) {
	frame, err := delivery.DecodeFrame(data)
	if err != nil {
		logrus.WithError(err).Warn("dropping malformed inbound frame")
		return
	}

	c.netRegistry.Learn(frame.SenderPeerID, addr, [32]byte{})

	if err := c.netAdapter.SendAck(frame.MessageID, addr); err != nil {
		logrus.WithError(err).Warn("failed to send ack for inbound frame")
	}

	if !c.sessions.HasSession(frame.SenderPeerID) {
		logrus.WithField("sender", frame.SenderPeerID).Warn("dropping frame from peer with no established session")
		c.emit(Event{Kind: EventError, PeerID: frame.SenderPeerID, Err: fmt.Errorf("nyxcore: no session established with %s", frame.SenderPeerID)})
		return
	}

	plaintext, err := c.sessions.Decrypt(frame.SenderPeerID, frame.Ciphertext)
	if err != nil {
		logrus.WithError(err).Warn("failed to decrypt inbound frame")
		c.emit(Event{Kind: EventError, PeerID: frame.SenderPeerID, Err: err})
		return
	}

	if sig, sigErr := decodeCallSignal(string(plaintext)); sigErr == nil && sig.Kind != "" {
		if c.tryHandleCallSignal(frame, sig) {
			return
		}
	}

	if syncMsg, syncErr := synccore.DecodeMessage(plaintext); syncErr == nil && c.isLinkedDevice(frame.SenderPeerID) {
		if err := c.sync.HandleMessage(context.Background(), frame.SenderPeerID, syncMsg); err != nil {
			logrus.WithError(err).Warn("sync message handling failed")
		}
		return
	}

	if inv, err := decodeGroupKeyInvite(string(plaintext)); err == nil && inv.GroupID != "" {
		c.handleGroupKeyInvite(frame, inv)
		return
	}

	if notice, err := decodeGroupLeaveNotice(string(plaintext)); err == nil && notice.GroupID != "" {
		c.handleGroupLeaveNotice(notice)
		return
	}

	if env, err := decodeGroupMessageEnvelope(string(plaintext)); err == nil && env.GroupID != "" {
		c.handleGroupMessage(frame, env)
		return
	}

	env, err := decodeChatEnvelope(string(plaintext))
	if err != nil {
		logrus.WithError(err).Warn("dropping inbound frame with unrecognized payload")
		return
	}

	msg := &storage.Message{
		ID:             frame.MessageID,
		ConversationID: conversationIDFor(c.identity.PeerID(), frame.SenderPeerID),
		SenderPeerID:   frame.SenderPeerID,
		RecipientID:    c.identity.PeerID(),
		ContentType:    storage.ContentType(env.ContentType),
		Plaintext:      env.Body,
		EditOf:         env.EditOf,
		CreatedAt:      frame.Timestamp,
		ReceivedAt:     time.Now(),
		Status:         storage.StatusDelivered,
	}
	if err := c.store.InsertMessage(msg); err != nil {
		logrus.WithError(err).Warn("failed to persist inbound message")
		return
	}
	c.emit(Event{Kind: EventMessageReceived, Message: msg})
}

// tryHandleCallSignal routes a decoded call signal to the call manager,
// reporting whether the frame was in fact call signaling (a JSON chat
// message can coincidentally decode with a zero-value Kind, filtered by
// the caller before this is reached).
func (c *Client) tryHandleCallSignal(frame delivery.Frame, sig callSignal) bool {
	switch sig.Kind {
	case "offer", "answer", "hangup", "reject", "candidate":
		c.calls.handleSignal(frame.SenderPeerID, sig)
		return true
	default:
		return false
	}
}

func (c *Client) isLinkedDevice(peerID string) bool {
	for _, id := range c.sync.LinkedDevices() {
		if id == peerID {
			return true
		}
	}
	return false
}

// handleInboundAck is the Network adapter's callback for ack(message_id)
// frames, waking whichever strategy's WaitAck is blocked on it.
func (c *Client) handleInboundAck(data []byte, addr net.Addr) {
	c.engine.Acks().Deliver(string(data))
}
