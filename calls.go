package nyxcore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nyxtalk/nyxcore/storage"
	"github.com/sirupsen/logrus"
)

// CallState is the call lifecycle named in spec.md §4.6, conceptually
// grounded on av.CallState's idle/ringing/active/finished shape but
// peer-ID addressed instead of friend-ID addressed, since the Media
// Pipeline here carries signaling through the Delivery Engine rather
// than through the teacher's transport-level friend connection.
type CallState uint8

const (
	CallIdle CallState = iota
	CallRinging
	CallConnecting
	CallActive
	CallTerminated
)

func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "idle"
	case CallRinging:
		return "ringing"
	case CallConnecting:
		return "connecting"
	case CallActive:
		return "active"
	case CallTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// callSignal is the wire payload of a ContentCallSignal message, carried
// as Message.Plaintext JSON through the ordinary delivery path so it
// benefits from the same encryption, retry, and store-and-forward
// fallback as any chat message.
type callSignal struct {
	CallID string `json:"call_id"`
	Kind   string `json:"kind"` // offer, answer, candidate, hangup, reject
	SDP    string `json:"sdp,omitempty"`
	Video  bool   `json:"video,omitempty"`
}

// signalTransport is the subset of Client a callManager needs, narrowed
// for testability the way session.Manager takes a storage interface
// rather than *storage.Store directly.
type signalTransport interface {
	sendCallSignal(ctx context.Context, peerID string, sig callSignal) error
	emit(ev Event)
}

// callManager tracks active and pending calls, one per remote peer ID,
// mirroring av.Manager's one-call-per-friend invariant generalized to
// string peer IDs. The state machine (idle → ringing → connecting →
// active → terminated) is spec.md §4.6, unchanged from the teacher's; no
// code path in this package moves a call to CallActive.
type callManager struct {
	mu    sync.Mutex
	calls map[string]*activeCall
	xport signalTransport
}

type activeCall struct {
	id        string
	peerID    string
	state     CallState
	video     bool
	startedAt time.Time
	cancel    context.CancelFunc
}

func newCallManagerFor(xport signalTransport) *callManager {
	return &callManager{calls: make(map[string]*activeCall), xport: xport}
}

// newCallManager binds a callManager to c, which satisfies
// signalTransport via Client.sendCallSignal and Client.emit.
func newCallManager(c *Client) *callManager {
	return newCallManagerFor(c)
}

// StartCall initiates an outbound call to peerID, generalizing
// av.Manager.StartCall to peer-ID addressing. The actual SDP offer is
// produced by the build-tagged webrtc session in av_enabled.go; this
// method only manages call bookkeeping and signaling dispatch, kept
// build-tag-free so av_disabled.go's stub can satisfy the same contract.
func (m *callManager) startCall(ctx context.Context, peerID string, video bool) (string, error) {
	m.mu.Lock()
	if _, exists := m.calls[peerID]; exists {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: call with %s already in progress", ErrCallAlreadyActive, peerID)
	}
	callID := uuid.NewString()
	m.calls[peerID] = &activeCall{id: callID, peerID: peerID, state: CallRinging, video: video, startedAt: time.Now()}
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{"function": "callManager.startCall", "peer_id": peerID, "call_id": callID}).Info("starting outbound call")
	return callID, nil
}

func (m *callManager) lookup(peerID string) (*activeCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[peerID]
	return c, ok
}

func (m *callManager) setState(peerID string, state CallState) {
	m.mu.Lock()
	c, ok := m.calls[peerID]
	if ok {
		c.state = state
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.xport.emit(Event{Kind: EventCallStateChanged, PeerID: peerID, CallID: c.id, CallState: state})
}

func (m *callManager) end(peerID string) {
	m.mu.Lock()
	c, ok := m.calls[peerID]
	if ok {
		delete(m.calls, peerID)
		if c.cancel != nil {
			c.cancel()
		}
	}
	m.mu.Unlock()
	if ok {
		m.xport.emit(Event{Kind: EventCallStateChanged, PeerID: peerID, CallID: c.id, CallState: CallTerminated})
	}
}

// handleSignal processes an inbound callSignal decoded from a received
// ContentCallSignal message, advancing the local state machine the same
// way av.Manager's friend_call_callback does for the teacher's
// friend-ID-keyed calls.
func (m *callManager) handleSignal(peerID string, sig callSignal) {
	switch sig.Kind {
	case "offer":
		m.mu.Lock()
		m.calls[peerID] = &activeCall{id: sig.CallID, peerID: peerID, state: CallRinging, video: sig.Video, startedAt: time.Now()}
		m.mu.Unlock()
		m.xport.emit(Event{Kind: EventCallIncoming, PeerID: peerID, CallID: sig.CallID})
	case "answer":
		m.setState(peerID, CallConnecting)
	case "hangup", "reject":
		m.end(peerID)
	default:
		logrus.WithField("kind", sig.Kind).Warn("unknown call signal kind")
	}
}

func encodeCallSignal(sig callSignal) (string, error) {
	data, err := json.Marshal(sig)
	if err != nil {
		return "", fmt.Errorf("nyxcore: encode call signal: %w", err)
	}
	return string(data), nil
}

func decodeCallSignal(plaintext string) (callSignal, error) {
	var sig callSignal
	if err := json.Unmarshal([]byte(plaintext), &sig); err != nil {
		return callSignal{}, fmt.Errorf("nyxcore: decode call signal: %w", err)
	}
	return sig, nil
}

// sendCallSignal wraps sig in a ContentCallSignal Message and routes it
// through the ordinary delivery path, per SPEC_FULL.md §4.6's
// "signaling messages are regular Message records" design.
func (c *Client) sendCallSignal(ctx context.Context, peerID string, sig callSignal) error {
	plaintext, err := encodeCallSignal(sig)
	if err != nil {
		return err
	}
	_, err = c.sendContent(ctx, peerID, storage.ContentCallSignal, plaintext, "")
	return err
}

var ErrCallAlreadyActive = fmt.Errorf("nyxcore: call already in progress with this peer")
