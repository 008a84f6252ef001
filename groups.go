package nyxcore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nyxtalk/nyxcore/delivery"
	"github.com/nyxtalk/nyxcore/session"
	"github.com/nyxtalk/nyxcore/storage"
	"github.com/sirupsen/logrus"
)

// groupState holds the per-group sender-key material a Client needs on
// top of the persisted storage.Conversation record: its own sending
// chain, one receiving chain per other member it has an invite for, and
// the set of peer IDs it currently fans outbound group messages out to
// (spec.md's group messaging extension of §4.3, grounded on
// session.GroupSenderKey / session.GroupChain).
type groupState struct {
	conversationID string
	sender         *session.GroupSenderKey
	peers          map[string]*session.GroupChain
	members        map[string]struct{}
}

// CreateGroup starts a new group conversation with the given members,
// generating this device's sender chain, persisting the conversation,
// and distributing the chain to each member over their existing
// pairwise session (spec.md's "independent sender chain per member"
// design).
func (c *Client) CreateGroup(ctx context.Context, name string, memberPeerIDs []string) (*storage.Conversation, error) {
	return submit(ctx, c, "create_group", func(ctx context.Context) (*storage.Conversation, error) {
		conv := &storage.Conversation{
			ID:           uuid.NewString(),
			Kind:         storage.KindGroup,
			Participants: append([]string{c.identity.PeerID()}, memberPeerIDs...),
			Admins:       []string{c.identity.PeerID()},
			LastActivity: time.Now(),
		}

		sender, err := session.NewGroupSenderKey(conv.ID, c.identity.PeerID())
		if err != nil {
			return nil, err
		}

		members := make(map[string]struct{}, len(memberPeerIDs))
		for _, peerID := range memberPeerIDs {
			members[peerID] = struct{}{}
		}

		c.groupsMu.Lock()
		c.groups[conv.ID] = &groupState{conversationID: conv.ID, sender: sender, peers: make(map[string]*session.GroupChain), members: members}
		c.groupsMu.Unlock()

		if err := c.store.UpsertConversation(conv); err != nil {
			return nil, fmt.Errorf("nyxcore: persist group %s: %w", conv.ID, err)
		}

		for _, peerID := range memberPeerIDs {
			if err := c.distributeSenderKey(ctx, conv.ID, peerID, sender); err != nil {
				return nil, fmt.Errorf("nyxcore: invite %s: %w", peerID, err)
			}
		}

		return conv, nil
	})
}

// distributeSenderKey ships this device's current group chain key to
// peerID over their pairwise session, a raw control payload rather than
// a chat message, so it never lands in conversation history.
func (c *Client) distributeSenderKey(ctx context.Context, groupID, peerID string, sender *session.GroupSenderKey) error {
	chainKey, iteration := sender.Export()
	plaintext, err := encodeGroupKeyInvite(groupKeyInvite{GroupID: groupID, ChainKey: chainKey, Iteration: iteration})
	if err != nil {
		return err
	}
	return c.sendRaw(ctx, peerID, []byte(plaintext))
}

// AddMember invites peerID into an existing group, redistributing this
// device's current sender chain position to the new member only (prior
// members already have it, per the sender-key design's no-re-key-on-join
// tradeoff — a leaving member is instead handled by LeaveGroup notifying
// the remaining members to drop it from their fan-out set).
func (c *Client) AddMember(ctx context.Context, conversationID, peerID string) error {
	_, err := submit(ctx, c, "add_member", func(ctx context.Context) (struct{}, error) {
		c.groupsMu.Lock()
		gs, ok := c.groups[conversationID]
		c.groupsMu.Unlock()
		if !ok {
			return struct{}{}, fmt.Errorf("%w: unknown group %s", storage.ErrNotFound, conversationID)
		}
		if err := c.distributeSenderKey(ctx, conversationID, peerID, gs.sender); err != nil {
			return struct{}{}, err
		}
		c.groupsMu.Lock()
		gs.members[peerID] = struct{}{}
		c.groupsMu.Unlock()
		return struct{}{}, nil
	})
	return err
}

// LeaveGroup removes this device from a group's local bookkeeping and
// best-effort notifies the other members it currently fans out to so
// they stop sending to and decrypting from it.
func (c *Client) LeaveGroup(ctx context.Context, conversationID string) error {
	_, err := submit(ctx, c, "leave_group", func(ctx context.Context) (struct{}, error) {
		c.groupsMu.Lock()
		gs, ok := c.groups[conversationID]
		delete(c.groups, conversationID)
		c.groupsMu.Unlock()
		if !ok {
			return struct{}{}, nil
		}

		plaintext, err := encodeGroupLeaveNotice(groupLeaveNotice{GroupID: conversationID, PeerID: c.identity.PeerID()})
		if err != nil {
			return struct{}{}, nil
		}
		for peerID := range gs.members {
			if sendErr := c.sendRaw(ctx, peerID, []byte(plaintext)); sendErr != nil {
				logrus.WithError(sendErr).WithField("peer", peerID).Warn("failed to notify peer of group departure")
			}
		}
		return struct{}{}, nil
	})
	return err
}

// ListGroups returns every group conversation persisted to storage.
func (c *Client) ListGroups(ctx context.Context) ([]*storage.Conversation, error) {
	return submit(ctx, c, "list_groups", func(ctx context.Context) ([]*storage.Conversation, error) {
		all, err := c.store.ListConversations()
		if err != nil {
			return nil, err
		}
		out := make([]*storage.Conversation, 0, len(all))
		for _, conv := range all {
			if conv.Kind == storage.KindGroup {
				out = append(out, conv)
			}
		}
		return out, nil
	})
}

// PostToGroup seals text under this device's group sender chain and fans
// it out to every known member over their pairwise sessions
// (spec.md §4.3's encrypt_for_group, generalized beyond plain text to
// any content type via sendGroupContent).
func (c *Client) PostToGroup(ctx context.Context, conversationID, text string) (*storage.Message, error) {
	return submit(ctx, c, "post_to_group", func(ctx context.Context) (*storage.Message, error) {
		return c.sendGroupContent(ctx, conversationID, storage.ContentText, text, "")
	})
}

// sendGroupContent seals body under the group's sender chain, persists a
// local copy of the message, and fans the sealed envelope out to every
// member over their pairwise session, each wrapped in its own Frame so
// per-recipient ack tracking does not collide.
func (c *Client) sendGroupContent(ctx context.Context, conversationID string, contentType storage.ContentType, body, editOf string) (*storage.Message, error) {
	c.groupsMu.Lock()
	gs, ok := c.groups[conversationID]
	c.groupsMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown group %s", storage.ErrNotFound, conversationID)
	}

	sealed, iteration, err := gs.sender.Seal([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrCryptoError, err)
	}

	plaintext, err := encodeGroupMessageEnvelope(groupMessageEnvelope{
		GroupID:     conversationID,
		SenderID:    c.identity.PeerID(),
		Iteration:   iteration,
		ContentType: string(contentType),
		EditOf:      editOf,
		Ciphertext:  sealed,
	})
	if err != nil {
		return nil, err
	}

	msg := &storage.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderPeerID:   c.identity.PeerID(),
		ContentType:    contentType,
		Plaintext:      body,
		EditOf:         editOf,
		CreatedAt:      time.Now(),
		Status:         storage.StatusSent,
	}
	if err := c.store.InsertMessage(msg); err != nil {
		return nil, err
	}

	for peerID := range gs.members {
		if !c.sessions.HasSession(peerID) {
			logrus.WithField("peer", peerID).Warn("skipping group fan-out: no pairwise session")
			continue
		}
		ciphertext, err := c.sessions.Encrypt(peerID, []byte(plaintext))
		if err != nil {
			logrus.WithError(err).WithField("peer", peerID).Warn("group fan-out encrypt failed")
			continue
		}
		frame := delivery.Frame{
			MessageID:       uuid.NewString(),
			SenderPeerID:    c.identity.PeerID(),
			RecipientPeerID: peerID,
			Ciphertext:      ciphertext,
			Signature:       c.identity.Sign(ciphertext),
			Timestamp:       msg.CreatedAt,
		}
		if err := c.engine.Send(ctx, frame); err != nil {
			logrus.WithError(err).WithField("peer", peerID).Warn("group fan-out send failed")
		}
	}

	return msg, nil
}

// handleGroupKeyInvite imports a member's sender chain on first (or
// refreshed) receipt of their invite, seeding this device's own group
// state if it has not seen the group before, and persists the
// conversation so list_groups reflects membership even for an invitee
// that never called CreateGroup.
func (c *Client) handleGroupKeyInvite(frame delivery.Frame, inv groupKeyInvite) {
	c.groupsMu.Lock()
	gs, ok := c.groups[inv.GroupID]
	if !ok {
		sender, err := session.NewGroupSenderKey(inv.GroupID, c.identity.PeerID())
		if err != nil {
			c.groupsMu.Unlock()
			logrus.WithError(err).Warn("failed to seed sender chain for invited group")
			return
		}
		gs = &groupState{conversationID: inv.GroupID, sender: sender, peers: make(map[string]*session.GroupChain), members: make(map[string]struct{})}
		c.groups[inv.GroupID] = gs
	}
	imported := session.ImportGroupSenderKey(inv.GroupID, frame.SenderPeerID, inv.ChainKey, inv.Iteration)
	chainKey, iteration := imported.Export()
	gs.peers[frame.SenderPeerID] = session.NewGroupChain(chainKey, iteration)
	gs.members[frame.SenderPeerID] = struct{}{}
	c.groupsMu.Unlock()

	participants := map[string]struct{}{c.identity.PeerID(): {}, frame.SenderPeerID: {}}
	if existing, err := c.store.GetConversation(inv.GroupID); err == nil {
		for _, p := range existing.Participants {
			participants[p] = struct{}{}
		}
	}
	conv := &storage.Conversation{
		ID:           inv.GroupID,
		Kind:         storage.KindGroup,
		Participants: mapKeys(participants),
		LastActivity: time.Now(),
	}
	if err := c.store.UpsertConversation(conv); err != nil {
		logrus.WithError(err).Warn("failed to persist invited group conversation")
	}
}

// handleGroupLeaveNotice drops a departed member from this device's
// fan-out set and receiving chain for the named group.
func (c *Client) handleGroupLeaveNotice(notice groupLeaveNotice) {
	c.groupsMu.Lock()
	defer c.groupsMu.Unlock()
	gs, ok := c.groups[notice.GroupID]
	if !ok {
		return
	}
	delete(gs.members, notice.PeerID)
	delete(gs.peers, notice.PeerID)
}

// handleGroupMessage opens a sealed group message with the sender's
// tracked chain and persists/emits it like any other received message,
// tagged with the group's conversation ID instead of a direct one
// (spec.md §4.3's decrypt_from_group).
func (c *Client) handleGroupMessage(frame delivery.Frame, env groupMessageEnvelope) {
	c.groupsMu.Lock()
	gs, ok := c.groups[env.GroupID]
	c.groupsMu.Unlock()
	if !ok {
		logrus.WithField("group", env.GroupID).Warn("dropping group message for unknown group")
		return
	}

	chain, ok := gs.peers[env.SenderID]
	if !ok {
		logrus.WithFields(logrus.Fields{"group": env.GroupID, "sender": env.SenderID}).Warn("dropping group message: no sender chain")
		return
	}

	body, err := chain.Open(env.Ciphertext, env.Iteration)
	if err != nil {
		logrus.WithError(err).Warn("failed to open group message")
		c.emit(Event{Kind: EventError, PeerID: env.SenderID, Err: err})
		return
	}

	msg := &storage.Message{
		ID:             frame.MessageID,
		ConversationID: env.GroupID,
		SenderPeerID:   env.SenderID,
		ContentType:    storage.ContentType(env.ContentType),
		Plaintext:      string(body),
		EditOf:         env.EditOf,
		CreatedAt:      frame.Timestamp,
		ReceivedAt:     time.Now(),
		Status:         storage.StatusDelivered,
	}
	if err := c.store.InsertMessage(msg); err != nil {
		logrus.WithError(err).Warn("failed to persist inbound group message")
		return
	}
	c.emit(Event{Kind: EventMessageReceived, Message: msg})
}

func mapKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// groupKeyInvite ships a sender's current chain key and iteration to a
// new or existing group member over their pairwise session, letting the
// recipient construct a session.GroupChain to decrypt that sender's
// future group messages.
type groupKeyInvite struct {
	GroupID   string   `json:"group_id"`
	ChainKey  [32]byte `json:"chain_key"`
	Iteration uint32   `json:"iteration"`
}

func encodeGroupKeyInvite(inv groupKeyInvite) (string, error) {
	data, err := json.Marshal(inv)
	if err != nil {
		return "", fmt.Errorf("nyxcore: encode group key invite: %w", err)
	}
	return string(data), nil
}

func decodeGroupKeyInvite(plaintext string) (groupKeyInvite, error) {
	var inv groupKeyInvite
	if err := json.Unmarshal([]byte(plaintext), &inv); err != nil {
		return groupKeyInvite{}, fmt.Errorf("nyxcore: decode group key invite: %w", err)
	}
	return inv, nil
}

// groupLeaveNotice tells existing members to drop the sender from their
// fan-out set and receiving chain. Field names carry a "gleave_" prefix
// so they never collide with groupKeyInvite's or chatEnvelope's fields
// when a receiver tries each decoder in turn on the same plaintext.
type groupLeaveNotice struct {
	GroupID string `json:"gleave_group_id"`
	PeerID  string `json:"gleave_peer_id"`
}

func encodeGroupLeaveNotice(n groupLeaveNotice) (string, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("nyxcore: encode group leave notice: %w", err)
	}
	return string(data), nil
}

func decodeGroupLeaveNotice(plaintext string) (groupLeaveNotice, error) {
	var n groupLeaveNotice
	if err := json.Unmarshal([]byte(plaintext), &n); err != nil {
		return groupLeaveNotice{}, fmt.Errorf("nyxcore: decode group leave notice: %w", err)
	}
	return n, nil
}

// groupMessageEnvelope carries a sealed group chat message. Field names
// carry a "gmsg_" prefix for the same decoder-ambiguity reason as
// groupLeaveNotice.
type groupMessageEnvelope struct {
	GroupID     string `json:"gmsg_group_id"`
	SenderID    string `json:"gmsg_sender_id"`
	Iteration   uint32 `json:"gmsg_iteration"`
	ContentType string `json:"gmsg_content_type"`
	EditOf      string `json:"gmsg_edit_of,omitempty"`
	Ciphertext  []byte `json:"gmsg_ciphertext"`
}

func encodeGroupMessageEnvelope(env groupMessageEnvelope) (string, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("nyxcore: encode group message envelope: %w", err)
	}
	return string(data), nil
}

func decodeGroupMessageEnvelope(plaintext string) (groupMessageEnvelope, error) {
	var env groupMessageEnvelope
	if err := json.Unmarshal([]byte(plaintext), &env); err != nil {
		return groupMessageEnvelope{}, fmt.Errorf("nyxcore: decode group message envelope: %w", err)
	}
	return env, nil
}
