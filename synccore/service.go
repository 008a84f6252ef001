package synccore

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nyxtalk/nyxcore/storage"
	"github.com/sirupsen/logrus"
)

// Sender delivers an already-framed sync Message to one linked device. The
// Command Bus wires this to session.Manager.Encrypt followed by
// delivery.Engine.Send, the same pairwise-encrypted path an ordinary chat
// message takes — the only difference is that the plaintext is a
// synccore.Message instead of chat content, and the receiving end routes
// it back into Service.HandleMessage instead of Storage.InsertMessage.
type Sender interface {
	SendSyncMessage(ctx context.Context, deviceID string, msg Message) error
}

// Metrics tracks sync round counts, mirroring acorde's SyncMetrics shape.
type Metrics struct {
	Attempts  int64
	Successes int64
	Failures  int64
}

// Service maintains the local replica of shared device state and drives
// the state-hash-then-state exchange with every linked device (spec.md
// §4.7). It holds no transport of its own; outbound messages go through
// an injected Sender and inbound ones arrive via HandleMessage.
type Service struct {
	mu        sync.Mutex
	localID   string
	state     *State
	store     *storage.Store
	sender    Sender
	linked    map[string]struct{}
	metrics   Metrics
}

// NewService loads (or initializes) the local replica for a device
// identified by localID and backed by store for persistence.
func NewService(localID string, store *storage.Store, sender Sender) (*Service, error) {
	s := &Service{
		localID: localID,
		store:   store,
		sender:  sender,
		linked:  make(map[string]struct{}),
	}

	blob, err := store.LoadSyncState()
	switch {
	case err == nil:
		state, decodeErr := DecodeState(blob)
		if decodeErr != nil {
			return nil, fmt.Errorf("synccore: decode persisted state: %w", decodeErr)
		}
		s.state = state
	case err == storage.ErrNotFound:
		s.state = NewState()
	default:
		return nil, fmt.Errorf("synccore: load persisted state: %w", err)
	}

	return s, nil
}

// LinkDevice adds deviceID to the set of devices this replica syncs with,
// called once a join completes (see link.go's CompleteLink).
func (s *Service) LinkDevice(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linked[deviceID] = struct{}{}
}

// UnlinkDevice removes a device, e.g. on user-initiated revocation.
func (s *Service) UnlinkDevice(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.linked, deviceID)
}

// LinkedDevices returns the current set of linked device peer IDs.
func (s *Service) LinkedDevices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.linked))
	for id := range s.linked {
		out = append(out, id)
	}
	return out
}

// AddContact, RemoveContact, SetReadMark, and SetDraft apply a local
// mutation to the replica and persist it. They send nothing; the change
// reaches linked devices on the next SyncAll or SyncWith round.
func (s *Service) AddContact(peerID string) error {
	return s.mutate(func(st *State, now time.Time) { st.Contacts.Add(peerID, now, s.localID) })
}

func (s *Service) RemoveContact(peerID string) error {
	return s.mutate(func(st *State, now time.Time) { st.Contacts.Remove(peerID, now, s.localID) })
}

func (s *Service) SetReadMark(conversationID, messageID string) error {
	return s.mutate(func(st *State, now time.Time) { st.SetReadMark(conversationID, messageID, now, s.localID) })
}

func (s *Service) SetDraft(conversationID, text string) error {
	return s.mutate(func(st *State, now time.Time) { st.SetDraft(conversationID, text, now, s.localID) })
}

func (s *Service) mutate(apply func(*State, time.Time)) error {
	s.mu.Lock()
	apply(s.state, time.Now())
	blob, err := s.state.Encode()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("synccore: encode state: %w", err)
	}
	return s.store.SaveSyncState(blob)
}

// SyncAll opens a sync round with every linked device, per spec.md
// §4.7's "whenever a linked device is reachable". A per-device failure is
// logged and counted but does not abort the others.
func (s *Service) SyncAll(ctx context.Context) {
	for _, deviceID := range s.LinkedDevices() {
		if err := s.SyncWith(ctx, deviceID); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Service.SyncAll",
				"device":   deviceID,
				"error":    err,
			}).Debug("sync round failed")
		}
	}
}

// SyncWith opens a sync round with a single device by sending it a state
// hash; a mismatch triggers the requester's MsgStateRequest/MsgState
// follow-up inside HandleMessage.
func (s *Service) SyncWith(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	s.metrics.Attempts++
	hash, err := s.state.Hash()
	s.mu.Unlock()
	if err != nil {
		s.recordFailure()
		return fmt.Errorf("synccore: hash local state: %w", err)
	}

	if err := s.sender.SendSyncMessage(ctx, deviceID, Message{Type: MsgStateHash, StateHash: hash}); err != nil {
		s.recordFailure()
		return fmt.Errorf("synccore: send state hash: %w", err)
	}

	s.mu.Lock()
	s.metrics.Successes++
	s.mu.Unlock()
	return nil
}

func (s *Service) recordFailure() {
	s.mu.Lock()
	s.metrics.Failures++
	s.mu.Unlock()
}

// Metrics returns a snapshot of sync round counters.
func (s *Service) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// HandleMessage processes one inbound sync protocol step from deviceID,
// already decrypted by the Crypto Session and routed here by the Command
// Bus instead of Storage.InsertMessage.
func (s *Service) HandleMessage(ctx context.Context, deviceID string, msg Message) error {
	s.mu.Lock()
	_, linked := s.linked[deviceID]
	s.mu.Unlock()
	if !linked {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	switch msg.Type {
	case MsgStateHash:
		return s.handleStateHash(ctx, deviceID, msg.StateHash)
	case MsgStateRequest:
		return s.handleStateRequest(ctx, deviceID)
	case MsgState:
		return s.handleState(msg.State)
	default:
		return fmt.Errorf("synccore: unknown message type %d", msg.Type)
	}
}

func (s *Service) handleStateHash(ctx context.Context, deviceID string, remoteHash []byte) error {
	s.mu.Lock()
	localHash, err := s.state.Hash()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("synccore: hash local state: %w", err)
	}

	if bytes.Equal(localHash, remoteHash) {
		return nil
	}
	return s.sender.SendSyncMessage(ctx, deviceID, Message{Type: MsgStateRequest})
}

func (s *Service) handleStateRequest(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	blob, err := s.state.Encode()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("synccore: encode state: %w", err)
	}
	return s.sender.SendSyncMessage(ctx, deviceID, Message{Type: MsgState, State: blob})
}

func (s *Service) handleState(blob []byte) error {
	remote, err := DecodeState(blob)
	if err != nil {
		return fmt.Errorf("synccore: decode remote state: %w", err)
	}

	s.mu.Lock()
	s.state.Merge(remote)
	merged, err := s.state.Encode()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("synccore: encode merged state: %w", err)
	}
	return s.store.SaveSyncState(merged)
}
